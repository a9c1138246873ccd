package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HerbHall/netvault/pkg/models"
)

// DeviceStore provides access to the devices table.
type DeviceStore struct {
	db *sql.DB
}

// NewDeviceStore creates a DeviceStore backed by the given database.
func NewDeviceStore(db *sql.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

const deviceColumns = `id, name, type, ip, port, connector_type, config_json, status,
	credential_id, last_seen, created_at, updated_at`

// CreateDevice inserts a device and sets its ID.
func (s *DeviceStore) CreateDevice(ctx context.Context, d *models.Device) error {
	cfg, err := marshalConfig(d.Config)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if d.Status == "" {
		d.Status = models.DeviceStatusUnknown
	}
	if d.Type == "" {
		d.Type = models.DeviceTypeUnknown
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (
			name, type, ip, port, connector_type, config_json, status,
			credential_id, last_seen, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Name, string(d.Type), d.IP, d.Port, d.ConnectorType, cfg, string(d.Status),
		nullInt64(d.CredentialID), nullTime(d.LastSeen), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	d.ID = id
	d.CreatedAt = now
	d.UpdatedAt = now
	return nil
}

// UpsertDeviceByName creates the device or updates the inventory fields of the
// existing device with the same name. Status and last_seen are preserved.
func (s *DeviceStore) UpsertDeviceByName(ctx context.Context, d *models.Device) (created bool, err error) {
	existing, err := s.GetDeviceByName(ctx, d.Name)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return true, s.CreateDevice(ctx, d)
	}

	cfg, err := marshalConfig(d.Config)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE devices SET type = ?, ip = ?, port = ?, connector_type = ?, config_json = ?,
			credential_id = ?, updated_at = ?
		WHERE id = ?`,
		string(d.Type), d.IP, d.Port, d.ConnectorType, cfg, nullInt64(d.CredentialID), now, existing.ID,
	)
	if err != nil {
		return false, fmt.Errorf("update device %q: %w", d.Name, err)
	}
	d.ID = existing.ID
	d.Status = existing.Status
	d.LastSeen = existing.LastSeen
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = now
	return false, nil
}

// GetDevice returns a device by ID. Returns nil, nil if not found.
func (s *DeviceStore) GetDevice(ctx context.Context, id int64) (*models.Device, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

// GetDeviceByName returns a device by its unique name. Returns nil, nil if not found.
func (s *DeviceStore) GetDeviceByName(ctx context.Context, name string) (*models.Device, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE name = ?`, name)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device by name: %w", err)
	}
	return d, nil
}

// ListDevices returns all devices ordered by ID.
func (s *DeviceStore) ListDevices(ctx context.Context) ([]models.Device, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// UpdateDevice applies a patch to a device. Returns sql.ErrNoRows wrapped if
// the device does not exist.
func (s *DeviceStore) UpdateDevice(ctx context.Context, id int64, p models.DevicePatch) error {
	var (
		sets []string
		args []any
	)
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*p.Status))
	}
	if p.LastSeen != nil {
		sets = append(sets, "last_seen = ?")
		args = append(args, p.LastSeen.UTC())
	}
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.IP != nil {
		sets = append(sets, "ip = ?")
		args = append(args, *p.IP)
	}
	if p.Port != nil {
		sets = append(sets, "port = ?")
		args = append(args, *p.Port)
	}
	if p.Config != nil {
		cfg, err := marshalConfig(p.Config)
		if err != nil {
			return err
		}
		sets = append(sets, "config_json = ?")
		args = append(args, cfg)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update device %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update device %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update device %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// DeleteDevice removes a device by ID.
func (s *DeviceStore) DeleteDevice(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete device %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(r rowScanner) (*models.Device, error) {
	var (
		d        models.Device
		typ      string
		status   string
		cfg      string
		credID   sql.NullInt64
		lastSeen sql.NullTime
	)
	err := r.Scan(
		&d.ID, &d.Name, &typ, &d.IP, &d.Port, &d.ConnectorType, &cfg, &status,
		&credID, &lastSeen, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Type = models.DeviceType(typ)
	d.Status = models.DeviceStatus(status)
	if credID.Valid {
		id := credID.Int64
		d.CredentialID = &id
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		d.LastSeen = &t
	}
	if cfg != "" {
		if err := json.Unmarshal([]byte(cfg), &d.Config); err != nil {
			return nil, fmt.Errorf("decode config for device %d: %w", d.ID, err)
		}
	}
	return &d, nil
}

func marshalConfig(cfg map[string]any) (string, error) {
	if cfg == nil {
		return "{}", nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode device config: %w", err)
	}
	return string(b), nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
