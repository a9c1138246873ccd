// Package genericjson does best-effort field extraction from arbitrary JSON
// REST APIs. Inputs are values produced by encoding/json decoding into any.
package genericjson

import (
	"fmt"
	"strings"

	"github.com/HerbHall/netvault/pkg/models"
)

// DefaultSystemInfo is reported when no system endpoint is configured.
func DefaultSystemInfo() models.SystemInfo {
	return models.SystemInfo{"model": "Generic HTTP", "os": "Unknown"}
}

// ParseSystemInfo maps model|device_model, os_version|firmware and uptime.
func ParseSystemInfo(data any) models.SystemInfo {
	obj, _ := data.(map[string]any)
	return models.SystemInfo{
		"model":  firstString(obj, "Generic", "model", "device_model"),
		"os":     firstString(obj, "Unknown", "os_version", "firmware"),
		"uptime": firstString(obj, "Unknown", "uptime"),
	}
}

// ParseInterfaces expects a JSON array of interface objects. Status "up",
// "online", 1 or true means up.
func ParseInterfaces(data any) []models.InterfaceInfo {
	items, _ := data.([]any)
	var out []models.InterfaceInfo
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name := asString(item["name"])
		if name == "" {
			name = asString(item["index"])
		}
		status := "down"
		if isUp(item["status"]) {
			status = "up"
		}
		out = append(out, models.InterfaceInfo{
			Name:    name,
			Status:  status,
			IP:      asString(item["ip_address"]),
			MAC:     asString(item["mac_address"]),
			RxBytes: asUint(item["rx_bytes"]),
			TxBytes: asUint(item["tx_bytes"]),
		})
	}
	return out
}

// ParseArpTable expects a JSON array of {ip, mac, interface, type} objects.
func ParseArpTable(data any) []models.ArpEntry {
	items, _ := data.([]any)
	var out []models.ArpEntry
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		iface := asString(item["interface"])
		if _, present := item["interface"]; !present {
			iface = "N/A"
		}
		typ := asString(item["type"])
		if _, present := item["type"]; !present {
			typ = "dynamic"
		}
		out = append(out, models.ArpEntry{
			IP:        asString(item["ip"]),
			MAC:       asString(item["mac"]),
			Interface: iface,
			Type:      typ,
		})
	}
	return out
}

func firstString(obj map[string]any, def string, keys ...string) string {
	for _, k := range keys {
		if s := asString(obj[k]); s != "" {
			return s
		}
	}
	return def
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprint(x)
	default:
		return fmt.Sprint(x)
	}
}

func asUint(v any) uint64 {
	if f, ok := v.(float64); ok && f > 0 {
		return uint64(f)
	}
	return 0
}

func isUp(v any) bool {
	switch x := v.(type) {
	case string:
		s := strings.ToLower(x)
		return s == "up" || s == "online"
	case bool:
		return x
	case float64:
		return x == 1
	}
	return false
}
