package connector

import (
	"fmt"
	"strings"
)

// FormatMAC renders raw hardware address bytes as lowercase colon-separated
// hex. Inputs that are not 6 bytes long yield "".
func FormatMAC(b []byte) string {
	if len(b) != 6 {
		return ""
	}
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", b[0], b[1], b[2], b[3], b[4], b[5])
}

// NormalizeMAC returns a comparison key for a MAC address. Case and the
// separator style (colon, dash, Cisco dotted) are ignored.
func NormalizeMAC(mac string) string {
	hex := strings.Map(func(r rune) rune {
		switch r {
		case ':', '-', '.':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(mac)))
	if len(hex) != 12 {
		return strings.ToLower(strings.TrimSpace(mac))
	}
	return hex[0:2] + ":" + hex[2:4] + ":" + hex[4:6] + ":" + hex[6:8] + ":" + hex[8:10] + ":" + hex[10:12]
}
