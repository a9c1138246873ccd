// Package devicemgr coordinates device polling. It owns the device map, the
// live connector instances and the latest poll results, and bounds how many
// devices are contacted at once.
package devicemgr

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/HerbHall/netvault/internal/connector"
	"github.com/HerbHall/netvault/internal/event"
	"github.com/HerbHall/netvault/pkg/models"
)

var (
	// ErrDeviceNotFound is returned for an id that is not in the device map.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrNoConnector means no connector could be built for the device. Callers
	// treat it as the device being unreachable.
	ErrNoConnector = errors.New("no connector for device")
)

// DefaultMaxConcurrent bounds simultaneous device operations when the
// configuration does not.
const DefaultMaxConcurrent = 5

// DeviceStore is the persistence the manager reads devices from and writes
// status back to.
type DeviceStore interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	UpdateDevice(ctx context.Context, id int64, p models.DevicePatch) error
}

// CredentialResolver returns decrypted credential data.
type CredentialResolver interface {
	Resolve(ctx context.Context, name string) (map[string]any, error)
	ResolveByID(ctx context.Context, id int64) (map[string]any, error)
}

// ConnectorFactory builds connectors by connector type. *connector.Registry
// implements it.
type ConnectorFactory interface {
	New(connectorType string, t connector.Target, logger *zap.Logger) (connector.Connector, error)
}

// Options configures a Manager. Bus and Prober are optional.
type Options struct {
	MaxConcurrent int
	Bus           event.Publisher
	Prober        Prober
}

// Manager is the device-polling coordinator.
type Manager struct {
	store     DeviceStore
	creds     CredentialResolver
	factory   ConnectorFactory
	bus       event.Publisher
	prober    Prober
	logger    *zap.Logger
	gate      *semaphore.Weighted
	gateLimit int

	mu         sync.RWMutex
	devices    map[int64]models.Device
	connectors map[int64]connector.Connector
	cache      map[int64]*models.PollResult
	locks      map[int64]*sync.Mutex
}

// New creates a Manager. Call LoadDevices before polling.
func New(store DeviceStore, creds CredentialResolver, factory ConnectorFactory, opts Options, logger *zap.Logger) *Manager {
	limit := opts.MaxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}
	return &Manager{
		store:      store,
		creds:      creds,
		factory:    factory,
		bus:        opts.Bus,
		prober:     opts.Prober,
		logger:     logger,
		gate:       semaphore.NewWeighted(int64(limit)),
		gateLimit:  limit,
		devices:    make(map[int64]models.Device),
		connectors: make(map[int64]connector.Connector),
		cache:      make(map[int64]*models.PollResult),
		locks:      make(map[int64]*sync.Mutex),
	}
}

// LoadDevices replaces the device map with the store contents. Connectors
// of devices whose address, port, connector type or config changed, and of
// devices that disappeared, are disconnected and dropped.
func (m *Manager) LoadDevices(ctx context.Context) error {
	list, err := m.store.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("load devices: %w", err)
	}

	next := make(map[int64]models.Device, len(list))
	for i := range list {
		next[list[i].ID] = list[i]
	}

	var stale []connector.Connector
	m.mu.Lock()
	for id, conn := range m.connectors {
		nd, ok := next[id]
		if !ok || !sameTarget(m.devices[id], nd) {
			stale = append(stale, conn)
			delete(m.connectors, id)
		}
	}
	for id := range m.cache {
		if _, ok := next[id]; !ok {
			delete(m.cache, id)
		}
	}
	m.devices = next
	m.mu.Unlock()

	for _, conn := range stale {
		conn.Disconnect()
	}
	m.logger.Debug("devices loaded", zap.Int("count", len(next)), zap.Int("dropped_connectors", len(stale)))
	return nil
}

func sameTarget(a, b models.Device) bool {
	return a.IP == b.IP &&
		a.Port == b.Port &&
		a.ConnectorType == b.ConnectorType &&
		reflect.DeepEqual(a.CredentialID, b.CredentialID) &&
		reflect.DeepEqual(a.Config, b.Config)
}

// Devices returns the loaded devices ordered by id.
func (m *Manager) Devices() []models.Device {
	m.mu.RLock()
	out := make([]models.Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Device returns one loaded device.
func (m *Manager) Device(id int64) (models.Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	return d, ok
}

// GetConnector returns the device's connector, building it on first use.
// It fails with ErrDeviceNotFound for an unknown id and ErrNoConnector when
// the connector type is not registered or the credential cannot be resolved.
func (m *Manager) GetConnector(ctx context.Context, id int64) (connector.Connector, error) {
	m.mu.RLock()
	conn, ok := m.connectors[id]
	d, known := m.devices[id]
	m.mu.RUnlock()
	if ok {
		return conn, nil
	}
	if !known {
		return nil, fmt.Errorf("device %d: %w", id, ErrDeviceNotFound)
	}

	secret, err := m.resolveCredential(ctx, d)
	if err != nil {
		m.logger.Error("credential unavailable",
			zap.Int64("device_id", id),
			zap.String("credential_name", d.CredentialName()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("device %d: %w: %w", id, ErrNoConnector, err)
	}

	target := connector.Target{
		DeviceID: d.ID,
		Name:     d.Name,
		Host:     d.IP,
		Port:     d.Port,
		Options:  connector.Values(d.Config),
		Secret:   connector.Values(secret),
	}
	conn, err = m.factory.New(d.ConnectorType, target, m.logger.Named(d.ConnectorType))
	if err != nil {
		m.logger.Error("connector construction failed",
			zap.Int64("device_id", id),
			zap.String("connector_type", d.ConnectorType),
			zap.Error(err),
		)
		return nil, fmt.Errorf("device %d: %w: %w", id, ErrNoConnector, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.connectors[id]; ok {
		return existing, nil
	}
	m.connectors[id] = conn
	return conn, nil
}

// resolveCredential prefers credential_name from the device config and falls
// back to credential_id. A device with neither gets an empty secret.
func (m *Manager) resolveCredential(ctx context.Context, d models.Device) (map[string]any, error) {
	if name := d.CredentialName(); name != "" {
		return m.creds.Resolve(ctx, name)
	}
	if d.CredentialID != nil {
		return m.creds.ResolveByID(ctx, *d.CredentialID)
	}
	return map[string]any{}, nil
}

// GetCachedData returns a copy of the latest poll result for the device.
func (m *Manager) GetCachedData(id int64) (*models.PollResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.cache[id]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}

// AllCachedData returns a copy of every cached poll result keyed by device id.
func (m *Manager) AllCachedData() map[int64]models.PollResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]models.PollResult, len(m.cache))
	for id, r := range m.cache {
		out[id] = *r
	}
	return out
}

// CleanupCache drops poll results older than maxAge and returns how many
// were removed.
func (m *Manager) CleanupCache(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, r := range m.cache {
		if r.LastPoll.Before(cutoff) {
			delete(m.cache, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("poll cache cleaned", zap.Int("removed", removed))
	}
	return removed
}

// Close disconnects every live connector.
func (m *Manager) Close() {
	m.mu.Lock()
	conns := m.connectors
	m.connectors = make(map[int64]connector.Connector)
	m.mu.Unlock()
	for _, c := range conns {
		c.Disconnect()
	}
}

func (m *Manager) deviceLock(id int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}
