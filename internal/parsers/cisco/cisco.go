// Package cisco parses Cisco IOS CLI output.
//
// Hardware addresses in IOS output use dotted groups of four hex digits
// (0011.2233.4455); the parsers rewrite them as upper-case colon pairs.
package cisco

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/HerbHall/netvault/pkg/models"
)

var (
	versionRe = regexp.MustCompile(`Version ([^,]+)`)
	modelRe   = regexp.MustCompile(`(?i)cisco (\S+) \(([^)]+)\) processor`)
	uptimeRe  = regexp.MustCompile(`uptime is ([^\n]+)`)
	memoryRe  = regexp.MustCompile(`with (\d+)K bytes of memory`)

	briefLine     = regexp.MustCompile(`^(\S+)\s+(\S+)\s+(YES|NO)\s+(\S+)\s+(up|down|administratively down)\s+(up|down)`)
	arpLine       = regexp.MustCompile(`(?i)\s*Internet\s+(\S+)\s+(\S+)\s+(\S+)\s+ARPA\s+(\S+)`)
	macLine       = regexp.MustCompile(`(?i)^\s*(\d+)\s+([0-9a-f\.]+)\s+(DYNAMIC|STATIC)\s+(\S+)`)
	connectedLine = regexp.MustCompile(`^C\s+([\d\./]+) is directly connected, (\S+)`)
	staticLine    = regexp.MustCompile(`^[S]\*?\s+([\d\./]+) \[(\d+)/(\d+)\] via ([\d\.]+)`)
)

// ParseShowVersion extracts model, OS version, uptime, CPU and memory from
// "show version":
//
//	Cisco IOS Software, C2960 Software (C2960-LANBASEK9-M), Version 12.2(55)SE7, RELEASE SOFTWARE (fc1)
//	switch1 uptime is 3 weeks, 2 days, 4 hours, 1 minute
//	cisco WS-C2960-24TT-L (PowerPC405) processor (revision B0) with 65536K bytes of memory.
func ParseShowVersion(output string) models.SystemInfo {
	info := models.SystemInfo{
		"model":        "Cisco Device",
		"os_version":   "Unknown",
		"uptime":       "Unknown",
		"cpu":          "Unknown",
		"memory_total": "Unknown",
	}
	if m := versionRe.FindStringSubmatch(output); m != nil {
		info["os_version"] = m[1]
	}
	if m := modelRe.FindStringSubmatch(output); m != nil {
		info["model"] = m[1]
		info["cpu"] = m[2]
	}
	if m := uptimeRe.FindStringSubmatch(output); m != nil {
		info["uptime"] = strings.TrimRight(m[1], "\r")
	}
	if m := memoryRe.FindStringSubmatch(output); m != nil {
		if kb, err := strconv.Atoi(m[1]); err == nil {
			info["memory_total"] = fmt.Sprintf("%dMB", kb/1024)
		}
	}
	return info
}

// ParseShowIPInterfaceBrief parses "show ip interface brief". An interface
// is up only when both status and protocol are up.
//
//	Interface              IP-Address      OK? Method Status                Protocol
//	FastEthernet0/1        192.168.1.1     YES manual up                    up
//	FastEthernet0/2        unassigned      YES unset  down                  down
func ParseShowIPInterfaceBrief(output string) []models.InterfaceInfo {
	var out []models.InterfaceInfo
	for _, line := range strings.Split(output, "\n") {
		m := briefLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		status := "down"
		if m[5] == "up" && m[6] == "up" {
			status = "up"
		}
		ip := m[2]
		if ip == "unassigned" {
			ip = ""
		}
		out = append(out, models.InterfaceInfo{Name: m[1], Status: status, IP: ip})
	}
	return out
}

// ParseShowIPArp parses "show ip arp". An age of "-" marks the router's own
// (static) entry.
//
//	Protocol  Address          Age (min)  Hardware Addr   Type   Interface
//	Internet  192.168.1.1             -   0011.2233.4455  ARPA   FastEthernet0/1
func ParseShowIPArp(output string) []models.ArpEntry {
	var out []models.ArpEntry
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := arpLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		typ := "dynamic"
		if m[2] == "-" {
			typ = "static"
		}
		out = append(out, models.ArpEntry{
			IP:        m[1],
			MAC:       dottedToColon(m[3]),
			Interface: m[4],
			Type:      typ,
		})
	}
	return out
}

// ParseShowMacAddressTable parses "show mac address-table".
//
//	Vlan    Mac Address       Type        Ports
//	----    -----------       ----        -----
//	   1    00aa.bbcc.ddee    DYNAMIC     Fa0/1
func ParseShowMacAddressTable(output string) []models.MacEntry {
	var out []models.MacEntry
	for _, line := range strings.Split(output, "\n") {
		m := macLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		vlan, _ := strconv.Atoi(m[1])
		out = append(out, models.MacEntry{
			MAC:  dottedToColon(m[2]),
			Port: m[4],
			VLAN: vlan,
			Type: strings.ToLower(m[3]),
		})
	}
	return out
}

// ParseShowIPRoute parses connected and static routes from "show ip route".
// Other route sources are skipped.
//
//	S*    0.0.0.0/0 [1/0] via 192.168.1.254
//	C     192.168.1.0/24 is directly connected, FastEthernet0/1
func ParseShowIPRoute(output string) []models.RouteEntry {
	var out []models.RouteEntry
	for _, line := range strings.Split(output, "\n") {
		if m := connectedLine.FindStringSubmatch(line); m != nil {
			iface := strings.TrimRight(m[2], "\r")
			out = append(out, models.RouteEntry{
				Destination: m[1],
				Gateway:     iface,
				Interface:   iface,
				Metric:      0,
				Protocol:    "connected",
			})
			continue
		}
		if m := staticLine.FindStringSubmatch(line); m != nil {
			distance, _ := strconv.Atoi(m[2])
			out = append(out, models.RouteEntry{
				Destination: m[1],
				Gateway:     m[4],
				Metric:      distance,
				Protocol:    "static",
			})
		}
	}
	return out
}

// dottedToColon turns 0011.2233.4455 into 00:11:22:33:44:55.
func dottedToColon(mac string) string {
	hex := strings.ReplaceAll(mac, ".", "")
	if len(hex) != 12 {
		return strings.ToUpper(mac)
	}
	parts := make([]string, 0, 6)
	for i := 0; i < 12; i += 2 {
		parts = append(parts, hex[i:i+2])
	}
	return strings.ToUpper(strings.Join(parts, ":"))
}
