package event

import "github.com/HerbHall/netvault/pkg/models"

// Topics.
const (
	TopicDeviceStatusChanged = "devicemgr.status.changed"
	TopicAlertTriggered      = "audit.alert.triggered"
)

// StatusChanged is the payload of TopicDeviceStatusChanged.
type StatusChanged struct {
	DeviceID   int64               `json:"device_id"`
	DeviceName string              `json:"device_name"`
	Previous   models.DeviceStatus `json:"previous"`
	Current    models.DeviceStatus `json:"current"`
}

// AlertTriggered is the payload of TopicAlertTriggered.
type AlertTriggered struct {
	Alert      models.Alert `json:"alert"`
	DeviceName string       `json:"device_name"`
	AuditType  string       `json:"audit_type"`
}
