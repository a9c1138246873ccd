// Package connector defines the capability contract shared by every protocol
// connector and the registry that maps a connector type to its constructor.
//
// Retrieval methods never return errors. A failure is logged by the
// connector and surfaces as an empty collection, which callers treat as
// "no data". Connect returning false means the device is unusable and no
// retrieval call should follow.
package connector

import (
	"context"

	"github.com/HerbHall/netvault/pkg/models"
)

// Connector is the capability set every protocol variant implements.
type Connector interface {
	Connect(ctx context.Context) bool
	Disconnect()
	TestConnection(ctx context.Context) models.ConnectionTestResult
	GetSystemInfo(ctx context.Context) models.SystemInfo
	GetInterfaces(ctx context.Context) []models.InterfaceInfo
	GetArpTable(ctx context.Context) []models.ArpEntry
	GetMacTable(ctx context.Context) []models.MacEntry
	GetRoutes(ctx context.Context) []models.RouteEntry
	RunAudit(ctx context.Context) models.AuditResult
}

// Target is everything a factory needs to build a connector for one device.
// Options come from the device config; Secret is the resolved credential.
type Target struct {
	DeviceID int64
	Name     string
	Host     string
	Port     int
	Options  Values
	Secret   Values
}

// Settings merges the credential and device options, device options winning.
// Secret material is only ever read from t.Secret directly.
func (t Target) Settings() Values {
	merged := make(Values, len(t.Secret)+len(t.Options))
	for k, v := range t.Secret {
		merged[k] = v
	}
	for k, v := range t.Options {
		merged[k] = v
	}
	return merged
}

// PortOr returns the device port, or def when none is configured.
func (t Target) PortOr(def int) int {
	if t.Port > 0 {
		return t.Port
	}
	if p := t.Settings().Int("port", 0); p > 0 {
		return p
	}
	return def
}
