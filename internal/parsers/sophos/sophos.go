// Package sophos builds Sophos XG/XGS API request envelopes and parses the
// XML responses with XPath.
package sophos

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/HerbHall/netvault/pkg/models"
)

// APIPath and DefaultPort locate the XML API on the firewall.
const (
	APIPath     = "/webconsole/APIController"
	DefaultPort = 4444
)

// Entities requested for each capability.
const (
	EntitySystemStatus = "SystemStatus"
	EntityInterface    = "Interface"
	EntityARPTable     = "ARPTable"
	EntityRoutingTable = "RoutingTable"
)

// BuildRequest returns a <Request> envelope that authenticates inline and
// performs action ("get") on entity. The API has no session, so every
// request carries the credentials.
func BuildRequest(username, password, action, entity string) string {
	var b strings.Builder
	b.WriteString("<Request><Login><UserName>")
	b.WriteString(escape(username))
	b.WriteString("</UserName><Password>")
	b.WriteString(escape(password))
	b.WriteString("</Password></Login>")
	fmt.Fprintf(&b, "<%s><%s></%s></%s>", action, entity, entity, action)
	b.WriteString("</Request>")
	return b.String()
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func parse(body []byte) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse sophos response: %w", err)
	}
	return doc, nil
}

func text(n *xmlquery.Node, child string) string {
	if c := n.SelectElement(child); c != nil {
		return strings.TrimSpace(c.InnerText())
	}
	return ""
}

func number(s string) uint64 {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ParseSystemInfo reads //SystemStatus into model, os, uptime and serial.
func ParseSystemInfo(body []byte) (models.SystemInfo, error) {
	doc, err := parse(body)
	if err != nil {
		return nil, err
	}
	info := models.SystemInfo{"model": "", "os": "", "uptime": "", "serial": ""}
	status := xmlquery.FindOne(doc, "//SystemStatus")
	if status == nil {
		return info, nil
	}
	info["model"] = text(status, "Model")
	info["os"] = text(status, "FirmwareVersion")
	info["uptime"] = text(status, "Uptime")
	info["serial"] = text(status, "SerialNumber")
	return info, nil
}

// ParseInterfaces reads every //Interface element. Status "1" means up.
func ParseInterfaces(body []byte) ([]models.InterfaceInfo, error) {
	doc, err := parse(body)
	if err != nil {
		return nil, err
	}
	var out []models.InterfaceInfo
	for _, n := range xmlquery.Find(doc, "//Interface") {
		status := "down"
		if text(n, "Status") == "1" {
			status = "up"
		}
		out = append(out, models.InterfaceInfo{
			Name:    text(n, "Name"),
			Status:  status,
			IP:      text(n, "IPAddress"),
			MAC:     text(n, "MACAddress"),
			RxBytes: number(text(n, "RxBytes")),
			TxBytes: number(text(n, "TxBytes")),
		})
	}
	return out, nil
}

// ParseArpTable reads //ARPTable/Entry. The API does not report the entry
// type, so every entry is dynamic.
func ParseArpTable(body []byte) ([]models.ArpEntry, error) {
	doc, err := parse(body)
	if err != nil {
		return nil, err
	}
	var out []models.ArpEntry
	for _, n := range xmlquery.Find(doc, "//ARPTable/Entry") {
		out = append(out, models.ArpEntry{
			IP:        text(n, "IPAddress"),
			MAC:       text(n, "MACAddress"),
			Interface: text(n, "Interface"),
			Type:      "dynamic",
		})
	}
	return out, nil
}

// ParseRoutes reads //RoutingTable/Route.
func ParseRoutes(body []byte) ([]models.RouteEntry, error) {
	doc, err := parse(body)
	if err != nil {
		return nil, err
	}
	var out []models.RouteEntry
	for _, n := range xmlquery.Find(doc, "//RoutingTable/Route") {
		out = append(out, models.RouteEntry{
			Destination: text(n, "Destination"),
			Gateway:     text(n, "Gateway"),
			Interface:   text(n, "Interface"),
			Metric:      int(number(text(n, "Metric"))),
			Protocol:    text(n, "Protocol"),
		})
	}
	return out, nil
}
