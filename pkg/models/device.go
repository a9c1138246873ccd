package models

import (
	"strings"
	"time"
)

// DeviceType categorizes a managed network device.
type DeviceType string

const (
	DeviceTypeRouter   DeviceType = "router"
	DeviceTypeSwitch   DeviceType = "switch"
	DeviceTypeFirewall DeviceType = "firewall"
	DeviceTypeServer   DeviceType = "server"
	DeviceTypeUnknown  DeviceType = "unknown"
)

// DeviceStatus represents the outcome of the most recent poll attempt.
type DeviceStatus string

const (
	DeviceStatusUnknown DeviceStatus = "unknown"
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusWarning DeviceStatus = "warning"
	DeviceStatusOffline DeviceStatus = "offline"
)

// ConnectorKind names the protocol used to talk to a device.
type ConnectorKind string

const (
	ConnectorSNMP ConnectorKind = "snmp"
	ConnectorSSH  ConnectorKind = "ssh"
	ConnectorREST ConnectorKind = "rest_api"
)

// ParseConnectorKind maps a stored connector_type value to a ConnectorKind.
// "rest" is accepted as an alias for "rest_api".
func ParseConnectorKind(s string) (ConnectorKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "snmp":
		return ConnectorSNMP, true
	case "ssh":
		return ConnectorSSH, true
	case "rest_api", "rest":
		return ConnectorREST, true
	default:
		return "", false
	}
}

// Device is a managed device record as persisted in the devices table.
type Device struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Type          DeviceType     `json:"type"`
	IP            string         `json:"ip"`
	Port          int            `json:"port,omitempty"`
	ConnectorType string         `json:"connector_type"`
	Config        map[string]any `json:"config,omitempty"`
	Status        DeviceStatus   `json:"status"`
	CredentialID  *int64         `json:"credential_id,omitempty"`
	LastSeen      *time.Time     `json:"last_seen,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// CredentialName returns the credential name configured for the device, if any.
func (d *Device) CredentialName() string {
	if d.Config == nil {
		return ""
	}
	name, _ := d.Config["credential_name"].(string)
	return name
}

// DevicePatch carries the fields updated after a poll attempt. Nil fields are left unchanged.
type DevicePatch struct {
	Status   *DeviceStatus
	LastSeen *time.Time
	Name     *string
	IP       *string
	Port     *int
	Config   map[string]any
}
