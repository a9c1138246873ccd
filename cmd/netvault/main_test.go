package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HerbHall/netvault/internal/inventory"
)

func TestCredentialData(t *testing.T) {
	data, err := credentialData([]string{"username=admin", "password=a=b"}, `{"port":22}`)
	if err != nil {
		t.Fatalf("credentialData: %v", err)
	}
	if data["username"] != "admin" {
		t.Errorf("username = %v, want admin", data["username"])
	}
	if data["password"] != "a=b" {
		t.Errorf("password = %v, want a=b", data["password"])
	}
	if data["port"] != float64(22) {
		t.Errorf("port = %v, want 22", data["port"])
	}
}

func TestCredentialData_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		pairs []string
		raw   string
	}{
		{"empty", nil, ""},
		{"no equals", []string{"community"}, ""},
		{"empty key", []string{"=public"}, ""},
		{"bad json", nil, "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := credentialData(tt.pairs, tt.raw); err == nil {
				t.Error("credentialData returned nil error")
			}
		})
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID("42"); err != nil || id != 42 {
		t.Errorf("parseID(42) = %d, %v", id, err)
	}
	for _, bad := range []string{"0", "-1", "abc", ""} {
		if _, err := parseID(bad); err == nil {
			t.Errorf("parseID(%q) returned nil error", bad)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "netvault ") {
		t.Errorf("output = %q, want netvault prefix", out.String())
	}
}

func TestSyncInventory_CountsStoredDevices(t *testing.T) {
	dir := t.TempDir()
	invPath := filepath.Join(dir, "inventory.yaml")
	cfgPath := filepath.Join(dir, "netvault.yaml")
	cfg := "database:\n  path: " + filepath.Join(dir, "netvault.db") +
		"\ninventory:\n  path: " + invPath + "\nlogging:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx := context.Background()
	app, err := openApp(ctx, cfgPath, false)
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	defer app.Close()
	loader := inventory.NewLoader(app.Devices, app.Logger)

	steps := []struct {
		name      string
		inventory string
		want      int
	}{
		{"no file", "", 0},
		{"two devices", "devices:\n  - {name: sw1, ip: 10.0.0.2, connector_type: snmp}\n  - {name: fw1, ip: 10.0.0.1, connector_type: ssh}\n", 2},
		{"invalid file keeps stored devices", "devices:\n  - {name: sw2, connector_type: snmp}\n", 2},
	}
	for _, step := range steps {
		if step.inventory != "" {
			if err := os.WriteFile(invPath, []byte(step.inventory), 0o600); err != nil {
				t.Fatalf("%s: write inventory: %v", step.name, err)
			}
		}
		got, err := syncInventory(ctx, app, loader)
		if err != nil {
			t.Fatalf("%s: syncInventory: %v", step.name, err)
		}
		if got != step.want {
			t.Errorf("%s: count = %d, want %d", step.name, got, step.want)
		}
		if n := len(app.Manager.Devices()); n != got {
			t.Errorf("%s: manager holds %d devices, reported %d", step.name, n, got)
		}
	}
}
