package models

import "time"

// SystemInfo holds free-form system facts reported by a device (model, OS version, uptime, ...).
type SystemInfo map[string]string

// InterfaceInfo describes one network interface.
type InterfaceInfo struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // up, down or unknown
	Speed   uint64 `json:"speed,omitempty"`
	MAC     string `json:"mac,omitempty"`
	IP      string `json:"ip,omitempty"`
	RxBytes uint64 `json:"rx_bytes"`
	TxBytes uint64 `json:"tx_bytes"`
	Errors  uint64 `json:"errors"`
}

// ArpEntry is one row of a device's ARP table.
type ArpEntry struct {
	IP        string `json:"ip"`
	MAC       string `json:"mac"`
	Interface string `json:"interface"`
	Type      string `json:"type"` // static or dynamic
}

// MacEntry is one row of a switch forwarding table.
type MacEntry struct {
	MAC  string `json:"mac"`
	Port string `json:"port"`
	VLAN int    `json:"vlan"`
	Type string `json:"type"` // static, dynamic or learned
}

// RouteEntry is one row of a routing table.
type RouteEntry struct {
	Destination string `json:"destination"`
	Gateway     string `json:"gateway"`
	Interface   string `json:"interface"`
	Metric      int    `json:"metric"`
	Protocol    string `json:"protocol"`
}

// ConnectionTestResult reports the outcome of a connector reachability test.
type ConnectionTestResult struct {
	Success   bool    `json:"success"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// PollResult is the cached outcome of the latest poll of one device.
// A light poll fills SystemInfo and Interfaces; a full refresh also fills
// the ARP, MAC and route tables.
type PollResult struct {
	SystemInfo  SystemInfo      `json:"system_info"`
	Interfaces  []InterfaceInfo `json:"interfaces"`
	ArpTable    []ArpEntry      `json:"arp_table,omitempty"`
	MacTable    []MacEntry      `json:"mac_table,omitempty"`
	Routes      []RouteEntry    `json:"routes,omitempty"`
	Full        bool            `json:"full"`
	LastPoll    time.Time       `json:"last_poll"`
	LastRefresh *time.Time      `json:"last_refresh,omitempty"`
}
