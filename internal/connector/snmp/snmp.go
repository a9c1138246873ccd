// Package snmp implements the SNMP connector. It speaks v1, v2c and v3
// through gosnmp and reads the standard MIB-II tables plus a few vendor
// OIDs used to identify MikroTik and Cisco devices.
package snmp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/HerbHall/netvault/internal/connector"
	"github.com/HerbHall/netvault/pkg/models"
)

// Compile-time interface guard.
var _ connector.Connector = (*Connector)(nil)

// Connector polls a device over SNMP.
type Connector struct {
	target    connector.Target
	logger    *zap.Logger
	version   gosnmp.SnmpVersion
	community string
	port      int
	timeout   time.Duration
	retries   int

	newClient func() (client, error)

	mu     sync.Mutex
	client client
}

// New is the connector.Factory for SNMP devices.
func New(t connector.Target, logger *zap.Logger) (connector.Connector, error) {
	return newConnector(t, logger)
}

func newConnector(t connector.Target, logger *zap.Logger) (*Connector, error) {
	settings := t.Settings()
	version, err := parseVersion(settings.String("version", "v2c"))
	if err != nil {
		return nil, err
	}
	port := t.PortOr(defaultPort)
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid SNMP port %d", port)
	}
	c := &Connector{
		target:    t,
		logger:    logger.With(zap.String("device", t.Name), zap.String("host", t.Host)),
		version:   version,
		community: t.Secret.String("community", settings.String("community", "public")),
		port:      port,
		timeout:   settings.Duration("timeout", defaultTimeout),
		retries:   settings.Int("retries", defaultRetries),
	}
	c.newClient = c.newGoSNMP
	return c, nil
}

// Connect opens the session and probes sysDescr. A device that answers with
// an empty description is treated as unreachable.
func (c *Connector) Connect(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		cl, err := c.newClient()
		if err != nil {
			c.logger.Error("snmp session setup failed", zap.Error(err))
			return false
		}
		if err := cl.Connect(); err != nil {
			c.logger.Error("snmp connect failed", zap.Error(err))
			return false
		}
		c.client = cl
	}

	vals := c.getLocked([]string{OIDSysDescr})
	if pdu, ok := vals[OIDSysDescr]; ok && pduString(pdu) != "" {
		return true
	}
	c.logger.Warn("snmp device did not answer sysDescr")
	c.closeLocked()
	return false
}

// Disconnect closes the session. Safe to call at any time.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Connector) closeLocked() {
	if c.client == nil {
		return
	}
	if err := c.client.Close(); err != nil {
		c.logger.Debug("snmp close", zap.Error(err))
	}
	c.client = nil
}

// TestConnection times a Connect.
func (c *Connector) TestConnection(ctx context.Context) models.ConnectionTestResult {
	start := time.Now()
	if !c.Connect(ctx) {
		return models.ConnectionTestResult{Error: "Timeout or auth failure"}
	}
	return models.ConnectionTestResult{
		Success:   true,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
	}
}

// GetSystemInfo reads the system group and identifies the vendor from sysDescr.
func (c *Connector) GetSystemInfo(ctx context.Context) models.SystemInfo {
	if ctx.Err() != nil {
		return models.SystemInfo{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return models.SystemInfo{}
	}

	vals := c.getLocked([]string{OIDSysName, OIDSysDescr, OIDSysUpTime, OIDSysLocation, OIDSysContact})
	if len(vals) == 0 {
		return models.SystemInfo{}
	}

	info := models.SystemInfo{
		"name":     pduString(vals[OIDSysName]),
		"descr":    pduString(vals[OIDSysDescr]),
		"uptime":   strconv.FormatUint(pduUint64(vals[OIDSysUpTime]), 10),
		"location": pduString(vals[OIDSysLocation]),
		"contact":  pduString(vals[OIDSysContact]),
		"vendor":   "generic",
	}

	descr := strings.ToLower(info["descr"])
	switch {
	case strings.Contains(descr, "mikrotik") || strings.Contains(descr, "routeros"):
		info["vendor"] = "mikrotik"
		info["os"] = "RouterOS"
		extra := c.getLocked([]string{OIDMikroTikRouterOSVersion, OIDMikroTikBoardName})
		if v := pduString(extra[OIDMikroTikRouterOSVersion]); v != "" {
			info["os_version"] = v
		}
		if v := pduString(extra[OIDMikroTikBoardName]); v != "" {
			info["model"] = v
		}
	case strings.Contains(descr, "cisco") || strings.Contains(descr, "ios"):
		info["vendor"] = "cisco"
		info["os"] = "IOS"
		extra := c.getLocked([]string{OIDCiscoModel})
		if v := pduString(extra[OIDCiscoModel]); v != "" {
			info["model"] = v
		}
	}
	return info
}

// GetInterfaces walks the ifTable columns and joins them on ifIndex.
func (c *Connector) GetInterfaces(ctx context.Context) []models.InterfaceInfo {
	if ctx.Err() != nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}

	var order []string
	byIndex := make(map[string]*models.InterfaceInfo)
	entry := func(idx string) *models.InterfaceInfo {
		if e, ok := byIndex[idx]; ok {
			return e
		}
		e := &models.InterfaceInfo{Status: "unknown"}
		byIndex[idx] = e
		order = append(order, idx)
		return e
	}

	columns := []struct {
		oid   string
		apply func(*models.InterfaceInfo, gosnmp.SnmpPDU)
	}{
		{OIDIfDescr, func(e *models.InterfaceInfo, p gosnmp.SnmpPDU) { e.Name = pduString(p) }},
		{OIDIfOperStatus, func(e *models.InterfaceInfo, p gosnmp.SnmpPDU) {
			if pduInt(p) == 1 {
				e.Status = "up"
			} else {
				e.Status = "down"
			}
		}},
		{OIDIfSpeed, func(e *models.InterfaceInfo, p gosnmp.SnmpPDU) { e.Speed = pduUint64(p) }},
		{OIDIfPhysAddress, func(e *models.InterfaceInfo, p gosnmp.SnmpPDU) {
			if b, ok := p.Value.([]byte); ok {
				e.MAC = connector.FormatMAC(b)
			}
		}},
		{OIDIfInOctets, func(e *models.InterfaceInfo, p gosnmp.SnmpPDU) { e.RxBytes = pduUint64(p) }},
		{OIDIfInErrors, func(e *models.InterfaceInfo, p gosnmp.SnmpPDU) { e.Errors = pduUint64(p) }},
		{OIDIfOutOctets, func(e *models.InterfaceInfo, p gosnmp.SnmpPDU) { e.TxBytes = pduUint64(p) }},
	}

	for _, col := range columns {
		for _, pdu := range c.walkLocked(col.oid) {
			tail := oidTail(pdu.Name, col.oid)
			if len(tail) == 0 {
				continue
			}
			col.apply(entry(strings.Join(tail, ".")), pdu)
		}
	}

	out := make([]models.InterfaceInfo, 0, len(order))
	for _, idx := range order {
		e := byIndex[idx]
		if e.Name == "" {
			e.Name = "port-" + idx
		}
		out = append(out, *e)
	}
	return out
}

// GetArpTable walks ipNetToMediaPhysAddress. The OID tail carries the
// ifIndex followed by the four octets of the IP address.
func (c *Connector) GetArpTable(ctx context.Context) []models.ArpEntry {
	var out []models.ArpEntry
	for _, pdu := range c.walk(ctx, OIDIPNetToMediaPhysAddress) {
		tail := oidTail(pdu.Name, OIDIPNetToMediaPhysAddress)
		if len(tail) < 5 {
			continue
		}
		mac := ""
		if b, ok := pdu.Value.([]byte); ok {
			mac = connector.FormatMAC(b)
		}
		out = append(out, models.ArpEntry{
			IP:        strings.Join(tail[len(tail)-4:], "."),
			MAC:       mac,
			Interface: tail[len(tail)-5],
			Type:      "dynamic",
		})
	}
	return out
}

// GetMacTable walks the bridge forwarding database. The OID tail carries
// the six MAC octets in decimal; the value is the bridge port.
func (c *Connector) GetMacTable(ctx context.Context) []models.MacEntry {
	var out []models.MacEntry
	for _, pdu := range c.walk(ctx, OIDDot1dTpFdbPort) {
		tail := oidTail(pdu.Name, OIDDot1dTpFdbPort)
		if len(tail) < 6 {
			continue
		}
		octets := make([]string, 0, 6)
		valid := true
		for _, part := range tail[len(tail)-6:] {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 || n > 255 {
				valid = false
				break
			}
			octets = append(octets, fmt.Sprintf("%02x", n))
		}
		if !valid {
			continue
		}
		out = append(out, models.MacEntry{
			MAC:  strings.Join(octets, ":"),
			Port: strconv.Itoa(pduInt(pdu)),
			VLAN: 1, // dot1dTpFdbTable carries no VLAN
			Type: "learned",
		})
	}
	return out
}

// GetRoutes walks ipRouteNextHop from the legacy ipRouteTable.
func (c *Connector) GetRoutes(ctx context.Context) []models.RouteEntry {
	var out []models.RouteEntry
	for _, pdu := range c.walk(ctx, OIDIPRouteNextHop) {
		tail := oidTail(pdu.Name, OIDIPRouteNextHop)
		if len(tail) < 4 {
			continue
		}
		out = append(out, models.RouteEntry{
			Destination: strings.Join(tail[len(tail)-4:], "."),
			Gateway:     pduString(pdu),
			Interface:   "unknown",
			Protocol:    "unknown",
		})
	}
	return out
}

// RunAudit checks the protocol version and the community string in use.
func (c *Connector) RunAudit(_ context.Context) models.AuditResult {
	name := c.target.Name
	if name == "" {
		name = strconv.FormatInt(c.target.DeviceID, 10)
	}
	res := models.AuditResult{
		DeviceName: name,
		Timestamp:  time.Now().UTC(),
		Summary:    "Basic SNMP security audit completed.",
	}

	if c.version == gosnmp.Version3 {
		res.Checks = append(res.Checks, models.AuditCheck{
			Name:    "SNMP Version Security",
			Status:  models.CheckPass,
			Message: "Device is using SNMPv3.",
		})
		return res
	}

	res.Checks = append(res.Checks, models.AuditCheck{
		Name:    "SNMP Version Security",
		Status:  models.CheckWarning,
		Message: fmt.Sprintf("Device is using SNMP%s which transmits data in cleartext.", versionLabel(c.version)),
		Details: map[string]any{"recommendation": "Upgrade to SNMPv3 with AuthPriv for better security."},
	})
	if isCommonCommunity(c.community) {
		res.Checks = append(res.Checks, models.AuditCheck{
			Name:    "Common Community String",
			Status:  models.CheckFail,
			Message: "Device uses a common community string: " + c.community,
			Details: map[string]any{"recommendation": "Change the community string to something unique and complex."},
		})
	}
	return res
}

func versionLabel(v gosnmp.SnmpVersion) string {
	if v == gosnmp.Version1 {
		return "v1"
	}
	return "v2c"
}

func isCommonCommunity(s string) bool {
	switch strings.ToLower(s) {
	case "public", "private":
		return true
	}
	return false
}

func (c *Connector) walk(ctx context.Context, root string) []gosnmp.SnmpPDU {
	if ctx.Err() != nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	return c.walkLocked(root)
}

// walkLocked returns the PDUs under root, dropping exception values.
func (c *Connector) walkLocked(root string) []gosnmp.SnmpPDU {
	pdus, err := c.client.Walk(root)
	if err != nil {
		c.logger.Warn("snmp walk failed", zap.String("oid", root), zap.Error(err))
		return nil
	}
	out := pdus[:0]
	for _, pdu := range pdus {
		if !missing(pdu) {
			out = append(out, pdu)
		}
	}
	return out
}

// getLocked fetches scalar OIDs keyed by OID without the leading dot.
// Exceptions and error responses are omitted.
func (c *Connector) getLocked(oids []string) map[string]gosnmp.SnmpPDU {
	packet, err := c.client.Get(oids)
	if err != nil {
		c.logger.Warn("snmp get failed", zap.Strings("oids", oids), zap.Error(err))
		return nil
	}
	if packet.Error != gosnmp.NoError {
		c.logger.Warn("snmp get error response",
			zap.Strings("oids", oids),
			zap.Uint8("error_status", uint8(packet.Error)),
		)
		return nil
	}
	out := make(map[string]gosnmp.SnmpPDU, len(packet.Variables))
	for _, pdu := range packet.Variables {
		if missing(pdu) {
			continue
		}
		out[strings.TrimPrefix(pdu.Name, ".")] = pdu
	}
	return out
}
