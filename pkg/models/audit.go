package models

import "time"

// CheckStatus is the verdict of a single audit check.
type CheckStatus string

const (
	CheckPass    CheckStatus = "pass"
	CheckWarning CheckStatus = "warning"
	CheckFail    CheckStatus = "fail"
)

// AuditStatus is the overall status recorded on an audit log.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditWarning AuditStatus = "warning"
	AuditError   AuditStatus = "error"
)

// Alert severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// GlobalDeviceID is the synthetic device id used for fleet-wide audit results.
const GlobalDeviceID int64 = 0

// AuditCheck is one finding produced by an audit.
type AuditCheck struct {
	Name    string         `json:"name"`
	Status  CheckStatus    `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// AuditResult groups the checks of one audit run against a device or the whole network.
type AuditResult struct {
	DeviceName string       `json:"device_name"`
	Timestamp  time.Time    `json:"timestamp"`
	Checks     []AuditCheck `json:"checks"`
	Summary    string       `json:"summary"`
}

// OverallStatus classifies the result: any fail is an error, otherwise any
// warning is a warning, otherwise success.
func (r *AuditResult) OverallStatus() AuditStatus {
	status := AuditSuccess
	for i := range r.Checks {
		switch r.Checks[i].Status {
		case CheckFail:
			return AuditError
		case CheckWarning:
			status = AuditWarning
		}
	}
	return status
}

// CountStatus returns how many checks carry the given status.
func (r *AuditResult) CountStatus(s CheckStatus) int {
	n := 0
	for i := range r.Checks {
		if r.Checks[i].Status == s {
			n++
		}
	}
	return n
}

// AuditLog is a persisted audit run.
type AuditLog struct {
	ID          int64       `json:"id"`
	DeviceID    int64       `json:"device_id"`
	AuditType   string      `json:"audit_type"`
	RunID       string      `json:"run_id"`
	Result      AuditResult `json:"result"`
	Status      AuditStatus `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at"`
}

// Alert is raised for every non-passing audit check. The core never resolves alerts.
type Alert struct {
	ID           int64     `json:"id"`
	RuleID       int64     `json:"rule_id"`
	DeviceID     int64     `json:"device_id"`
	RunID        string    `json:"run_id,omitempty"`
	Message      string    `json:"message"`
	Severity     string    `json:"severity"`
	Acknowledged bool      `json:"acknowledged"`
	TriggeredAt  time.Time `json:"triggered_at"`
}
