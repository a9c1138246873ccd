package store

import (
	"context"
	"testing"
	"time"

	"github.com/HerbHall/netvault/pkg/models"
)

func TestCreateAuditLog_RoundTripsResult(t *testing.T) {
	s := NewAuditStore(migratedDB(t).DB())
	ctx := context.Background()

	start := time.Now().UTC().Truncate(time.Second)
	l := &models.AuditLog{
		DeviceID:  3,
		AuditType: "snmp_audit",
		RunID:     "run-1",
		Status:    models.AuditWarning,
		Result: models.AuditResult{
			DeviceName: "core-sw1",
			Timestamp:  start,
			Checks: []models.AuditCheck{
				{Name: "SNMP Version Security", Status: models.CheckWarning, Message: "cleartext"},
			},
			Summary: "Basic SNMP security audit completed.",
		},
		StartedAt:   start,
		CompletedAt: start.Add(time.Second),
	}
	if err := s.CreateAuditLog(ctx, l); err != nil {
		t.Fatalf("CreateAuditLog: %v", err)
	}

	got, err := s.GetAuditLog(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetAuditLog: %v", err)
	}
	if got == nil {
		t.Fatal("GetAuditLog returned nil")
	}
	if got.Status != models.AuditWarning {
		t.Errorf("Status = %q, want %q", got.Status, models.AuditWarning)
	}
	if len(got.Result.Checks) != 1 || got.Result.Checks[0].Name != "SNMP Version Security" {
		t.Errorf("Result.Checks = %+v, want one SNMP Version Security check", got.Result.Checks)
	}
}

func TestListAuditLogs_FilterAndOrder(t *testing.T) {
	s := NewAuditStore(migratedDB(t).DB())
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, dev := range []int64{1, 0, 1} {
		l := &models.AuditLog{
			DeviceID:    dev,
			AuditType:   "test",
			Status:      models.AuditSuccess,
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			CompletedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateAuditLog(ctx, l); err != nil {
			t.Fatalf("CreateAuditLog: %v", err)
		}
	}

	dev := int64(1)
	logs, err := s.ListAuditLogs(ctx, &dev, 0)
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("len(logs) = %d, want 2", len(logs))
	}
	if !logs[0].StartedAt.After(logs[1].StartedAt) {
		t.Errorf("logs not newest first: %v then %v", logs[0].StartedAt, logs[1].StartedAt)
	}

	all, err := s.ListAuditLogs(ctx, nil, 2)
	if err != nil {
		t.Fatalf("ListAuditLogs(nil): %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len(all) = %d, want 2 (limit)", len(all))
	}
}

func TestAlerts_TriggerListAcknowledge(t *testing.T) {
	s := NewAuditStore(migratedDB(t).DB())
	ctx := context.Background()

	a := &models.Alert{DeviceID: 2, Message: "Audit FAIL: x - y", Severity: models.SeverityCritical}
	if err := s.TriggerAlert(ctx, a); err != nil {
		t.Fatalf("TriggerAlert: %v", err)
	}
	b := &models.Alert{DeviceID: 2, Message: "Audit WARNING: z - w", Severity: models.SeverityWarning}
	if err := s.TriggerAlert(ctx, b); err != nil {
		t.Fatalf("TriggerAlert: %v", err)
	}

	active, err := s.ListActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("ListActiveAlerts: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("len(active) = %d, want 2", len(active))
	}

	ok, err := s.AcknowledgeAlert(ctx, a.ID)
	if err != nil {
		t.Fatalf("AcknowledgeAlert: %v", err)
	}
	if !ok {
		t.Error("AcknowledgeAlert = false, want true")
	}

	active, err = s.ListActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("ListActiveAlerts: %v", err)
	}
	if len(active) != 1 || active[0].ID != b.ID {
		t.Errorf("active = %+v, want only alert %d", active, b.ID)
	}

	ok, err = s.AcknowledgeAlert(ctx, 999)
	if err != nil {
		t.Fatalf("AcknowledgeAlert(999): %v", err)
	}
	if ok {
		t.Error("AcknowledgeAlert(999) = true, want false")
	}
}
