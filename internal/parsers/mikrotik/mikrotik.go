// Package mikrotik parses RouterOS CLI output.
//
// All functions are pure and tolerant: lines that do not match the expected
// layout are skipped, so unexpected output yields an empty or partial result.
package mikrotik

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/HerbHall/netvault/pkg/models"
)

var (
	interfaceLine = regexp.MustCompile(`^\s*\d+\s+([RXS]*)\s+(\S+)\s+(\S+)\s+(\d+)`)
	arpLine       = regexp.MustCompile(`^\s*\d+\s+([DIHC]*)\s+([\d\.]+)\s+([0-9A-F:]+)\s+(\S+)`)
	routeLine     = regexp.MustCompile(`^\s*\d+\s+([DACSdacs]*)\s+([\d\./]+)\s+(\S+)\s+(\d+)`)
)

// ParseSystemResource parses "/system resource print":
//
//	      uptime: 5d21h34m56s
//	     version: 7.12.1 (stable)
//	 free-memory: 110.4MiB
//	total-memory: 128.0MiB
//	         cpu: MIPS 24Kc V7.4
//	  board-name: hAP ac2
func ParseSystemResource(output string) models.SystemInfo {
	fields := map[string]string{}
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	get := func(key, def string) string {
		if v, ok := fields[key]; ok {
			return v
		}
		return def
	}
	return models.SystemInfo{
		"model":        get("board-name", "MikroTik"),
		"os_version":   get("version", "Unknown"),
		"uptime":       get("uptime", "Unknown"),
		"cpu":          get("cpu", "Unknown"),
		"memory_total": get("total-memory", "Unknown"),
		"memory_free":  get("free-memory", "Unknown"),
	}
}

// ParseInterfaces parses "/interface print". The R flag marks a running
// interface:
//
//	Flags: R - RUNNING; S - SLAVE
//	 #    NAME     TYPE   ACTUAL-MTU  L2MTU  MAX-L2MTU  MAC-ADDRESS
//	 0 RS ether1   ether        1500   1500       4074  48:8F:5A:00:00:01
func ParseInterfaces(output string) []models.InterfaceInfo {
	var out []models.InterfaceInfo
	for _, line := range strings.Split(output, "\n") {
		m := interfaceLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		status := "down"
		if strings.Contains(m[1], "R") {
			status = "up"
		}
		out = append(out, models.InterfaceInfo{Name: m[2], Status: status})
	}
	return out
}

// ParseArpTable parses "/ip arp print". The D flag marks a dynamic entry;
// the MAC is returned as printed.
//
//	Flags: D - DYNAMIC; I - INVALID, H - DHCP, C - COMPLETE
//	 #   ADDRESS         MAC-ADDRESS       INTERFACE
//	 0 D 192.168.88.254  48:8F:5A:AA:BB:CC bridge
func ParseArpTable(output string) []models.ArpEntry {
	var out []models.ArpEntry
	for _, line := range strings.Split(output, "\n") {
		m := arpLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		typ := "static"
		if strings.Contains(m[1], "D") {
			typ = "dynamic"
		}
		out = append(out, models.ArpEntry{IP: m[2], MAC: m[3], Interface: m[4], Type: typ})
	}
	return out
}

// ParseRoutes parses "/ip route print". C wins over D for the protocol;
// anything else is static. The distance column becomes the metric.
//
//	Flags: D - DYNAMIC; A - ACTIVE; c - CONNECT, s - STATIC
//	 #      DST-ADDRESS        GATEWAY         DISTANCE
//	 0  As  0.0.0.0/0          192.168.88.1           1
//	 1  DAC 192.168.88.0/24    bridge                 0
func ParseRoutes(output string) []models.RouteEntry {
	var out []models.RouteEntry
	for _, line := range strings.Split(output, "\n") {
		m := routeLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		flags := strings.ToUpper(m[1])
		protocol := "static"
		switch {
		case strings.Contains(flags, "C"):
			protocol = "connected"
		case strings.Contains(flags, "D"):
			protocol = "dynamic"
		}
		metric, _ := strconv.Atoi(m[4])
		out = append(out, models.RouteEntry{
			Destination: m[2],
			Gateway:     m[3],
			Metric:      metric,
			Protocol:    protocol,
		})
	}
	return out
}
