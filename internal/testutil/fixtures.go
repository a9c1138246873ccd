// Package testutil holds fixtures and fakes shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/netvault/internal/connector"
	"github.com/HerbHall/netvault/internal/store"
	"github.com/HerbHall/netvault/pkg/models"
)

// NewDevice returns a Device with sensible defaults, suitable for test fixtures.
// Override individual fields after creation as needed.
func NewDevice(opts ...func(*models.Device)) models.Device {
	d := models.Device{
		Name:          "test-device",
		Type:          models.DeviceTypeSwitch,
		IP:            "192.168.1.100",
		ConnectorType: string(models.ConnectorSNMP),
		Status:        models.DeviceStatusUnknown,
		Config:        map[string]any{},
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// WithName sets the device name.
func WithName(name string) func(*models.Device) {
	return func(d *models.Device) { d.Name = name }
}

// WithIP sets the device's IP address.
func WithIP(ip string) func(*models.Device) {
	return func(d *models.Device) { d.IP = ip }
}

// WithConnector sets the connector type.
func WithConnector(kind string) func(*models.Device) {
	return func(d *models.Device) { d.ConnectorType = kind }
}

// WithStatus sets the device status.
func WithStatus(s models.DeviceStatus) func(*models.Device) {
	return func(d *models.Device) { d.Status = s }
}

// WithCredential sets credential_name in the device config.
func WithCredential(name string) func(*models.Device) {
	return func(d *models.Device) {
		if d.Config == nil {
			d.Config = map[string]any{}
		}
		d.Config["credential_name"] = name
	}
}

// WithLastSeen sets the device's last_seen timestamp.
func WithLastSeen(t time.Time) func(*models.Device) {
	return func(d *models.Device) { d.LastSeen = &t }
}

// NewStore opens a migrated SQLite database in a temp dir, closed on cleanup.
func NewStore(t testing.TB, extra ...store.Component) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "netvault.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	if err := s.Migrate(ctx, "core", store.CoreMigrations()); err != nil {
		t.Fatalf("migrate core: %v", err)
	}
	for _, c := range extra {
		if err := s.Migrate(ctx, c.Name, c.Migrations); err != nil {
			t.Fatalf("migrate %s: %v", c.Name, err)
		}
	}
	return s
}

// Tables is what a FakeConnector reports.
type Tables struct {
	SystemInfo models.SystemInfo
	Interfaces []models.InterfaceInfo
	Arp        []models.ArpEntry
	Mac        []models.MacEntry
	Routes     []models.RouteEntry
	Audit      models.AuditResult
}

// FakeConnector is an in-memory connector.Connector.
type FakeConnector struct {
	mu          sync.Mutex
	ConnectOK   bool
	Tables      Tables
	Delay       time.Duration
	Panic       bool
	Connects    int
	Disconnects int
	connected   bool
}

// Compile-time interface guard.
var _ connector.Connector = (*FakeConnector)(nil)

func (f *FakeConnector) Connect(ctx context.Context) bool {
	if f.Panic {
		panic("fake connector panic")
	}
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return false
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Connects++
	f.connected = f.ConnectOK
	return f.ConnectOK
}

func (f *FakeConnector) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Disconnects++
	f.connected = false
}

// DisconnectCount returns how many times Disconnect ran.
func (f *FakeConnector) DisconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Disconnects
}

func (f *FakeConnector) TestConnection(ctx context.Context) models.ConnectionTestResult {
	if !f.Connect(ctx) {
		return models.ConnectionTestResult{Error: "connect failed"}
	}
	return models.ConnectionTestResult{Success: true, LatencyMs: 1}
}

func (f *FakeConnector) GetSystemInfo(context.Context) models.SystemInfo {
	if f.Tables.SystemInfo == nil {
		return models.SystemInfo{}
	}
	return f.Tables.SystemInfo
}

func (f *FakeConnector) GetInterfaces(context.Context) []models.InterfaceInfo {
	return f.Tables.Interfaces
}

func (f *FakeConnector) GetArpTable(context.Context) []models.ArpEntry { return f.Tables.Arp }

func (f *FakeConnector) GetMacTable(context.Context) []models.MacEntry { return f.Tables.Mac }

func (f *FakeConnector) GetRoutes(context.Context) []models.RouteEntry { return f.Tables.Routes }

func (f *FakeConnector) RunAudit(context.Context) models.AuditResult { return f.Tables.Audit }
