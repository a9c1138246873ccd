// Package inventory loads the devices.yml inventory into the device store
// and watches the file for changes.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/HerbHall/netvault/pkg/models"
)

// File is the devices.yml document.
type File struct {
	Devices []Entry `yaml:"devices"`
}

// Entry is one device in the inventory file.
type Entry struct {
	Name           string         `yaml:"name"`
	Type           string         `yaml:"type"`
	IP             string         `yaml:"ip"`
	Port           int            `yaml:"port"`
	ConnectorType  string         `yaml:"connector_type"`
	CredentialName string         `yaml:"credential_name"`
	Config         map[string]any `yaml:"config"`
}

// Parse decodes and validates an inventory document. Unknown keys are errors.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("decode inventory: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks required fields, connector types and name uniqueness.
func (f *File) Validate() error {
	seen := make(map[string]struct{}, len(f.Devices))
	for i, e := range f.Devices {
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("device #%d: name is required", i+1)
		}
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("device %q: duplicate name", e.Name)
		}
		seen[e.Name] = struct{}{}
		if strings.TrimSpace(e.IP) == "" {
			return fmt.Errorf("device %q: ip is required", e.Name)
		}
		if _, ok := models.ParseConnectorKind(e.ConnectorType); !ok {
			return fmt.Errorf("device %q: unknown connector_type %q", e.Name, e.ConnectorType)
		}
		if e.Port < 0 || e.Port > 65535 {
			return fmt.Errorf("device %q: port %d out of range", e.Name, e.Port)
		}
	}
	return nil
}

// Device converts the entry to a device record. credential_name is folded
// into the config map.
func (e Entry) Device() models.Device {
	kind, _ := models.ParseConnectorKind(e.ConnectorType)
	cfg := make(map[string]any, len(e.Config)+1)
	for k, v := range e.Config {
		cfg[k] = v
	}
	if e.CredentialName != "" {
		cfg["credential_name"] = e.CredentialName
	}
	typ := models.DeviceType(strings.ToLower(e.Type))
	if typ == "" {
		typ = models.DeviceTypeUnknown
	}
	return models.Device{
		Name:          e.Name,
		Type:          typ,
		IP:            e.IP,
		Port:          e.Port,
		ConnectorType: string(kind),
		Config:        cfg,
	}
}

// DeviceUpserter is the store operation the loader needs.
type DeviceUpserter interface {
	UpsertDeviceByName(ctx context.Context, d *models.Device) (created bool, err error)
}

// Result counts what a load changed.
type Result struct {
	Created int
	Updated int
}

// Loader applies an inventory file to the device store.
type Loader struct {
	store  DeviceUpserter
	logger *zap.Logger
}

// NewLoader creates a Loader.
func NewLoader(store DeviceUpserter, logger *zap.Logger) *Loader {
	return &Loader{store: store, logger: logger}
}

// Load reads path and upserts every device by name. Devices missing from the
// file are left untouched.
func (l *Loader) Load(ctx context.Context, path string) (Result, error) {
	fh, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open inventory: %w", err)
	}
	defer fh.Close()

	f, err := Parse(fh)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", path, err)
	}
	return l.Apply(ctx, f)
}

// Apply upserts the devices of an already parsed inventory.
func (l *Loader) Apply(ctx context.Context, f *File) (Result, error) {
	var res Result
	for _, e := range f.Devices {
		d := e.Device()
		created, err := l.store.UpsertDeviceByName(ctx, &d)
		if err != nil {
			return res, fmt.Errorf("upsert device %q: %w", e.Name, err)
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}
	l.logger.Info("inventory loaded",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
	)
	return res, nil
}
