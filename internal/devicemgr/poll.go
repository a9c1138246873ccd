package devicemgr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/netvault/internal/connector"
	"github.com/HerbHall/netvault/internal/event"
	"github.com/HerbHall/netvault/pkg/models"
)

// TestResult is the outcome of TestDevice. ICMPReachable is nil when no
// prober is configured.
type TestResult struct {
	models.ConnectionTestResult
	ICMPReachable *bool   `json:"icmp_reachable,omitempty"`
	ICMPRttMs     float64 `json:"icmp_rtt_ms,omitempty"`
}

// acquire takes one slot of the shared concurrency gate.
func (m *Manager) acquire(ctx context.Context) (func(), error) {
	if err := m.gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	pollsInFlight.Inc()
	return func() {
		pollsInFlight.Dec()
		m.gate.Release(1)
	}, nil
}

// PollDevice performs a light poll (system info and interfaces). A failed
// connect maps to offline, a connect with no interfaces to warning, anything
// else to online. The status and last_seen are written to the store on every
// attempt. The returned error is non-nil only when the device is unknown,
// has no usable connector, the gate could not be acquired, or the store
// write failed.
func (m *Manager) PollDevice(ctx context.Context, id int64) (models.DeviceStatus, error) {
	status, _, err := m.poll(ctx, id, false)
	return status, err
}

// RefreshDeviceData performs a full poll that also collects the ARP, MAC and
// route tables, and returns the new cache entry. The result is nil when the
// device could not be reached.
func (m *Manager) RefreshDeviceData(ctx context.Context, id int64) (*models.PollResult, error) {
	_, res, err := m.poll(ctx, id, true)
	return res, err
}

func (m *Manager) poll(ctx context.Context, id int64, full bool) (models.DeviceStatus, *models.PollResult, error) {
	d, ok := m.Device(id)
	if !ok {
		return models.DeviceStatusUnknown, nil, fmt.Errorf("device %d: %w", id, ErrDeviceNotFound)
	}

	lock := m.deviceLock(id)
	lock.Lock()
	defer lock.Unlock()

	release, err := m.acquire(ctx)
	if err != nil {
		return d.Status, nil, fmt.Errorf("poll device %d: %w", id, err)
	}
	defer release()

	start := time.Now()
	conn, err := m.GetConnector(ctx, id)
	if err != nil {
		if recErr := m.record(ctx, d, models.DeviceStatusOffline, start); recErr != nil {
			return models.DeviceStatusOffline, nil, multierror.Append(err, recErr)
		}
		return models.DeviceStatusOffline, nil, err
	}

	if !conn.Connect(ctx) {
		m.logger.Warn("device unreachable",
			zap.Int64("device_id", id),
			zap.String("ip", d.IP),
			zap.String("connector_type", d.ConnectorType),
		)
		return models.DeviceStatusOffline, nil, m.record(ctx, d, models.DeviceStatusOffline, start)
	}
	defer conn.Disconnect()

	res := &models.PollResult{
		SystemInfo: conn.GetSystemInfo(ctx),
		Interfaces: conn.GetInterfaces(ctx),
	}
	if full {
		res.ArpTable = conn.GetArpTable(ctx)
		res.MacTable = conn.GetMacTable(ctx)
		res.Routes = conn.GetRoutes(ctx)
		res.Full = true
	}
	now := time.Now().UTC()
	res.LastPoll = now

	status := models.DeviceStatusOnline
	if len(res.Interfaces) == 0 {
		status = models.DeviceStatusWarning
	}

	if full {
		res.LastRefresh = &now
	}
	m.mu.Lock()
	m.cache[id] = res
	m.mu.Unlock()

	m.logger.Debug("device polled",
		zap.Int64("device_id", id),
		zap.String("status", string(status)),
		zap.Int("interfaces", len(res.Interfaces)),
		zap.Bool("full", full),
	)
	cp := *res
	return status, &cp, m.record(ctx, d, status, start)
}

// record writes the poll outcome through to the store, updates the loaded
// device and publishes a status change event.
func (m *Manager) record(ctx context.Context, d models.Device, status models.DeviceStatus, start time.Time) error {
	pollsTotal.WithLabelValues(d.ConnectorType, string(status)).Inc()
	pollDuration.WithLabelValues(d.ConnectorType).Observe(time.Since(start).Seconds())

	seen := time.Now().UTC()
	m.mu.Lock()
	prev := d.Status
	if cur, ok := m.devices[d.ID]; ok {
		prev = cur.Status
		cur.Status = status
		cur.LastSeen = &seen
		m.devices[d.ID] = cur
	}
	m.mu.Unlock()

	if err := m.store.UpdateDevice(ctx, d.ID, models.DevicePatch{Status: &status, LastSeen: &seen}); err != nil {
		m.logger.Error("failed to persist device status",
			zap.Int64("device_id", d.ID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return fmt.Errorf("update device %d status: %w", d.ID, err)
	}

	if prev != status && m.bus != nil {
		m.logger.Info("device status changed",
			zap.Int64("device_id", d.ID),
			zap.String("previous", string(prev)),
			zap.String("current", string(status)),
		)
		m.bus.PublishAsync(ctx, event.Event{
			Topic:  event.TopicDeviceStatusChanged,
			Source: "devicemgr",
			Payload: event.StatusChanged{
				DeviceID:   d.ID,
				DeviceName: d.Name,
				Previous:   prev,
				Current:    status,
			},
		})
	}
	return nil
}

// PollAll reloads the device list and light-polls every device with at most
// maxConcurrent polls in flight. A failing or panicking device is recorded as
// offline and never stops the others. The returned error aggregates every
// per-device failure.
func (m *Manager) PollAll(ctx context.Context, maxConcurrent int) (map[int64]models.DeviceStatus, error) {
	if err := m.LoadDevices(ctx); err != nil {
		return nil, err
	}
	if maxConcurrent <= 0 {
		maxConcurrent = m.gateLimit
	}

	devices := m.Devices()
	var (
		mu       sync.Mutex
		errs     *multierror.Error
		failures int
		statuses = make(map[int64]models.DeviceStatus, len(devices))
	)

	var g errgroup.Group
	g.SetLimit(maxConcurrent)
	for i := range devices {
		d := devices[i]
		g.Go(func() error {
			status, err := m.pollIsolated(ctx, d)
			mu.Lock()
			statuses[d.ID] = status
			if err != nil {
				errs = multierror.Append(errs, err)
				failures++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	m.logger.Info("poll cycle complete",
		zap.Int("devices", len(devices)),
		zap.Int("failures", failures),
	)
	return statuses, errs.ErrorOrNil()
}

func (m *Manager) pollIsolated(ctx context.Context, d models.Device) (status models.DeviceStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("device poll panicked",
				zap.Int64("device_id", d.ID),
				zap.Any("panic", r),
			)
			status = models.DeviceStatusOffline
			err = fmt.Errorf("device %d: poll panicked: %v", d.ID, r)
			if recErr := m.record(ctx, d, status, time.Now()); recErr != nil {
				err = multierror.Append(err, recErr)
			}
		}
	}()
	return m.PollDevice(ctx, d.ID)
}

// TestDevice runs the connector's connection test and, when a prober is
// configured, an ICMP probe. It never changes the device status.
func (m *Manager) TestDevice(ctx context.Context, id int64) (TestResult, error) {
	d, ok := m.Device(id)
	if !ok {
		return TestResult{}, fmt.Errorf("device %d: %w", id, ErrDeviceNotFound)
	}
	lock := m.deviceLock(id)
	lock.Lock()
	defer lock.Unlock()

	release, err := m.acquire(ctx)
	if err != nil {
		return TestResult{}, fmt.Errorf("test device %d: %w", id, err)
	}
	defer release()

	var out TestResult
	conn, err := m.GetConnector(ctx, id)
	if err != nil {
		out.Error = err.Error()
	} else {
		out.ConnectionTestResult = conn.TestConnection(ctx)
		conn.Disconnect()
	}

	if m.prober != nil {
		pr, perr := m.prober.Probe(ctx, d.IP)
		if perr != nil {
			m.logger.Debug("icmp probe failed", zap.Int64("device_id", id), zap.String("ip", d.IP), zap.Error(perr))
		}
		reachable := pr.Reachable
		out.ICMPReachable = &reachable
		if reachable {
			out.ICMPRttMs = float64(pr.RTT.Microseconds()) / 1000
		}
	}
	return out, nil
}

// Status returns the last recorded status of a loaded device.
func (m *Manager) Status(id int64) (models.DeviceStatus, bool) {
	d, ok := m.Device(id)
	if !ok {
		return models.DeviceStatusUnknown, false
	}
	return d.Status, true
}

// WithConnector runs fn with the device's connector while holding the
// device lock and one gate slot, so no poll of the same device interleaves.
func (m *Manager) WithConnector(ctx context.Context, id int64, fn func(conn connector.Connector) error) error {
	if _, ok := m.Device(id); !ok {
		return fmt.Errorf("device %d: %w", id, ErrDeviceNotFound)
	}
	lock := m.deviceLock(id)
	lock.Lock()
	defer lock.Unlock()

	release, err := m.acquire(ctx)
	if err != nil {
		return fmt.Errorf("device %d: %w", id, err)
	}
	defer release()

	conn, err := m.GetConnector(ctx, id)
	if err != nil {
		return err
	}
	return fn(conn)
}
