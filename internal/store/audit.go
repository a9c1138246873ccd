package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/netvault/pkg/models"
)

// AuditStore persists audit logs and the alerts derived from them.
type AuditStore struct {
	db *sql.DB
}

// NewAuditStore creates an AuditStore backed by the given database.
func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

// -- Audit logs --

// CreateAuditLog inserts an audit log and sets its ID.
func (s *AuditStore) CreateAuditLog(ctx context.Context, l *models.AuditLog) error {
	body, err := json.Marshal(l.Result)
	if err != nil {
		return fmt.Errorf("encode audit result: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (device_id, audit_type, run_id, result_json, status, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.DeviceID, l.AuditType, l.RunID, string(body), string(l.Status),
		l.StartedAt.UTC(), l.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	l.ID = id
	return nil
}

// GetAuditLog returns an audit log by ID. Returns nil, nil if not found.
func (s *AuditStore) GetAuditLog(ctx context.Context, id int64) (*models.AuditLog, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, audit_type, run_id, result_json, status, started_at, completed_at
		FROM audit_logs WHERE id = ?`, id)
	l, err := scanAuditLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get audit log: %w", err)
	}
	return l, nil
}

// ListAuditLogs returns audit logs newest first. A nil deviceID lists every
// device including the global scope. limit <= 0 means no limit.
func (s *AuditStore) ListAuditLogs(ctx context.Context, deviceID *int64, limit int) ([]models.AuditLog, error) {
	query := `SELECT id, device_id, audit_type, run_id, result_json, status, started_at, completed_at
		FROM audit_logs`
	var args []any
	if deviceID != nil {
		query += ` WHERE device_id = ?`
		args = append(args, *deviceID)
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		l, err := scanAuditLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

func scanAuditLog(r rowScanner) (*models.AuditLog, error) {
	var (
		l      models.AuditLog
		body   string
		status string
	)
	if err := r.Scan(&l.ID, &l.DeviceID, &l.AuditType, &l.RunID, &body, &status, &l.StartedAt, &l.CompletedAt); err != nil {
		return nil, err
	}
	l.Status = models.AuditStatus(status)
	if err := json.Unmarshal([]byte(body), &l.Result); err != nil {
		return nil, fmt.Errorf("decode audit result %d: %w", l.ID, err)
	}
	return &l, nil
}

// -- Alerts --

// TriggerAlert inserts a new unacknowledged alert and sets its ID.
func (s *AuditStore) TriggerAlert(ctx context.Context, a *models.Alert) error {
	if a.TriggeredAt.IsZero() {
		a.TriggeredAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (rule_id, device_id, run_id, message, severity, acknowledged, triggered_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		a.RuleID, a.DeviceID, a.RunID, a.Message, a.Severity, a.TriggeredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	a.ID = id
	a.Acknowledged = false
	return nil
}

// ListActiveAlerts returns unacknowledged alerts, newest first.
func (s *AuditStore) ListActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_id, device_id, run_id, message, severity, acknowledged, triggered_at
		FROM alerts WHERE acknowledged = 0
		ORDER BY triggered_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var (
			a   models.Alert
			ack int
		)
		if err := rows.Scan(&a.ID, &a.RuleID, &a.DeviceID, &a.RunID, &a.Message, &a.Severity, &ack, &a.TriggeredAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Acknowledged = ack != 0
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// AcknowledgeAlert marks an alert as acknowledged. Returns false if no such alert exists.
func (s *AuditStore) AcknowledgeAlert(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET acknowledged = 1 WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("acknowledge alert %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acknowledge alert %d: %w", id, err)
	}
	return n > 0, nil
}
