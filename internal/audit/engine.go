// Package audit runs per-device security audits and fleet-wide consistency
// checks, persists their results and raises alerts for every finding.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/netvault/internal/connector"
	"github.com/HerbHall/netvault/internal/event"
	"github.com/HerbHall/netvault/pkg/models"
)

// ErrConnectFailed is returned when the device did not accept a connection
// for the audit.
var ErrConnectFailed = errors.New("connect failed")

const (
	// NetworkAuditType is the audit_type of fleet-wide audit logs.
	NetworkAuditType = "network_audit"
	// GlobalScopeName is the device name on fleet-wide audit results.
	GlobalScopeName = "Global Network"

	defaultResultLimit   = 50
	defaultMaxConcurrent = 5
)

// Devices is the part of the device manager the engine drives.
type Devices interface {
	LoadDevices(ctx context.Context) error
	Devices() []models.Device
	Device(id int64) (models.Device, bool)
	WithConnector(ctx context.Context, id int64, fn func(conn connector.Connector) error) error
	RefreshDeviceData(ctx context.Context, id int64) (*models.PollResult, error)
}

// Store persists audit logs and alerts. *store.AuditStore implements it.
type Store interface {
	CreateAuditLog(ctx context.Context, l *models.AuditLog) error
	GetAuditLog(ctx context.Context, id int64) (*models.AuditLog, error)
	ListAuditLogs(ctx context.Context, deviceID *int64, limit int) ([]models.AuditLog, error)
	TriggerAlert(ctx context.Context, a *models.Alert) error
}

// Options configures an Engine.
type Options struct {
	// MaxConcurrent bounds the full refreshes of a network audit.
	MaxConcurrent int
	Bus           event.Publisher
}

// Engine is the audit engine.
type Engine struct {
	devices       Devices
	store         Store
	bus           event.Publisher
	maxConcurrent int
	logger        *zap.Logger
}

// New creates an Engine.
func New(devices Devices, store Store, opts Options, logger *zap.Logger) *Engine {
	n := opts.MaxConcurrent
	if n <= 0 {
		n = defaultMaxConcurrent
	}
	return &Engine{
		devices:       devices,
		store:         store,
		bus:           opts.Bus,
		maxConcurrent: n,
		logger:        logger,
	}
}

// RunDeviceAudit connects to a device, runs its connector audit, stores the
// result and raises one alert per non-passing check. The connector is always
// disconnected before returning.
func (e *Engine) RunDeviceAudit(ctx context.Context, id int64) (*models.AuditResult, error) {
	start := time.Now().UTC()
	e.logger.Info("starting device audit", zap.Int64("device_id", id))

	var result models.AuditResult
	err := e.devices.WithConnector(ctx, id, func(conn connector.Connector) error {
		defer conn.Disconnect()
		if !conn.Connect(ctx) {
			return ErrConnectFailed
		}
		result = conn.RunAudit(ctx)
		return nil
	})
	if err != nil {
		e.logger.Error("device audit failed", zap.Int64("device_id", id), zap.Error(err))
		return nil, fmt.Errorf("audit device %d: %w", id, err)
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now().UTC()
	}

	d, _ := e.devices.Device(id)
	auditType := deviceAuditType(d.ConnectorType)
	runID := uuid.NewString()
	status := result.OverallStatus()

	entry := &models.AuditLog{
		DeviceID:    id,
		AuditType:   auditType,
		RunID:       runID,
		Result:      result,
		Status:      status,
		StartedAt:   start,
		CompletedAt: time.Now().UTC(),
	}
	if err := e.store.CreateAuditLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("audit device %d: %w", id, err)
	}
	auditsTotal.WithLabelValues(auditType, string(status)).Inc()

	if err := e.raiseAlerts(ctx, id, d.Name, auditType, runID, "Audit", result.Checks); err != nil {
		return nil, fmt.Errorf("audit device %d: %w", id, err)
	}

	e.logger.Info("device audit complete",
		zap.Int64("device_id", id),
		zap.String("run_id", runID),
		zap.String("status", string(status)),
		zap.Duration("duration", time.Since(start)),
	)
	return &result, nil
}

// RunNetworkAudit reloads devices, refreshes every online device in full and
// runs the fleet-wide checks over the combined data. A device whose refresh
// fails is left out of the analysis. The result is stored under the global
// device id.
func (e *Engine) RunNetworkAudit(ctx context.Context) (*models.AuditResult, error) {
	start := time.Now().UTC()
	e.logger.Info("starting network audit")

	if err := e.devices.LoadDevices(ctx); err != nil {
		return nil, fmt.Errorf("network audit: %w", err)
	}
	inventory := e.devices.Devices()

	var online []int64
	for _, d := range inventory {
		if d.Status == models.DeviceStatusOnline {
			online = append(online, d.ID)
		}
	}

	var (
		mu   sync.Mutex
		data = make(map[int64]models.PollResult, len(online))
	)
	var g errgroup.Group
	g.SetLimit(e.maxConcurrent)
	for _, id := range online {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("device refresh panicked", zap.Int64("device_id", id), zap.Any("panic", r))
				}
			}()
			res, err := e.devices.RefreshDeviceData(ctx, id)
			if err != nil {
				e.logger.Warn("device refresh failed", zap.Int64("device_id", id), zap.Error(err))
				return nil
			}
			if res == nil {
				e.logger.Warn("device unreachable during network audit", zap.Int64("device_id", id))
				return nil
			}
			mu.Lock()
			data[id] = *res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	e.logger.Debug("gathered audit data", zap.Int("devices", len(data)))

	checks, dupIPs, dupMACs, orphans := networkChecks(data, inventory)
	result := models.AuditResult{
		DeviceName: GlobalScopeName,
		Timestamp:  time.Now().UTC(),
		Checks:     checks,
		Summary:    fmt.Sprintf("Found %d duplicate IPs, %d duplicate MACs, and %d orphan devices.", dupIPs, dupMACs, orphans),
	}
	if result.Checks == nil {
		result.Checks = []models.AuditCheck{}
	}
	status := result.OverallStatus()
	runID := uuid.NewString()

	entry := &models.AuditLog{
		DeviceID:    models.GlobalDeviceID,
		AuditType:   NetworkAuditType,
		RunID:       runID,
		Result:      result,
		Status:      status,
		StartedAt:   start,
		CompletedAt: time.Now().UTC(),
	}
	if err := e.store.CreateAuditLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("network audit: %w", err)
	}
	auditsTotal.WithLabelValues(NetworkAuditType, string(status)).Inc()

	if err := e.raiseAlerts(ctx, models.GlobalDeviceID, GlobalScopeName, NetworkAuditType, runID, "Network", checks); err != nil {
		return nil, fmt.Errorf("network audit: %w", err)
	}

	e.logger.Info("network audit complete",
		zap.String("run_id", runID),
		zap.String("status", string(status)),
		zap.Int("devices", len(data)),
		zap.Duration("duration", time.Since(start)),
	)
	return &result, nil
}

// RunSecurityAudit runs the fleet-wide audit.
func (e *Engine) RunSecurityAudit(ctx context.Context) (*models.AuditResult, error) {
	e.logger.Info("security audit requested")
	return e.RunNetworkAudit(ctx)
}

// GetAuditResults returns stored audit logs newest first. A nil deviceID
// covers every device; limit <= 0 means 50.
func (e *Engine) GetAuditResults(ctx context.Context, deviceID *int64, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = defaultResultLimit
	}
	return e.store.ListAuditLogs(ctx, deviceID, limit)
}

// GetAuditDetail returns one stored audit log, or nil when it does not exist.
func (e *Engine) GetAuditDetail(ctx context.Context, id int64) (*models.AuditLog, error) {
	return e.store.GetAuditLog(ctx, id)
}

func (e *Engine) raiseAlerts(ctx context.Context, deviceID int64, deviceName, auditType, runID, scope string, checks []models.AuditCheck) error {
	for _, c := range checks {
		if c.Status != models.CheckFail && c.Status != models.CheckWarning {
			continue
		}
		severity := models.SeverityWarning
		if c.Status == models.CheckFail {
			severity = models.SeverityCritical
		}
		a := &models.Alert{
			DeviceID: deviceID,
			RunID:    runID,
			Message:  fmt.Sprintf("%s %s: %s - %s", scope, strings.ToUpper(string(c.Status)), c.Name, c.Message),
			Severity: severity,
		}
		if err := e.store.TriggerAlert(ctx, a); err != nil {
			return err
		}
		alertsTriggered.WithLabelValues(severity).Inc()

		if e.bus != nil {
			e.bus.PublishAsync(ctx, event.Event{
				Topic:  event.TopicAlertTriggered,
				Source: "audit",
				Payload: event.AlertTriggered{
					Alert:      *a,
					DeviceName: deviceName,
					AuditType:  auditType,
				},
			})
		}
	}
	return nil
}

func deviceAuditType(connectorType string) string {
	if kind, ok := models.ParseConnectorKind(connectorType); ok {
		return string(kind) + "_audit"
	}
	return "device_audit"
}
