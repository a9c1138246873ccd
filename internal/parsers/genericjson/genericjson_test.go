package genericjson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/netvault/pkg/models"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestParseSystemInfo(t *testing.T) {
	tests := []struct {
		name string
		body string
		want models.SystemInfo
	}{
		{
			name: "primary keys",
			body: `{"model":"EdgeRouter","os_version":"2.0.9","uptime":"4d"}`,
			want: models.SystemInfo{"model": "EdgeRouter", "os": "2.0.9", "uptime": "4d"},
		},
		{
			name: "fallback keys",
			body: `{"device_model":"AP-22","firmware":"1.1"}`,
			want: models.SystemInfo{"model": "AP-22", "os": "1.1", "uptime": "Unknown"},
		},
		{
			name: "not an object",
			body: `[1,2,3]`,
			want: models.SystemInfo{"model": "Generic", "os": "Unknown", "uptime": "Unknown"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSystemInfo(decode(t, tt.body)))
		})
	}
}

func TestParseInterfaces(t *testing.T) {
	body := `[
		{"name":"wan","status":"online","ip_address":"203.0.113.2","mac_address":"aa:bb:cc:00:00:01","rx_bytes":100,"tx_bytes":200},
		{"index":3,"status":1},
		{"name":"lan","status":true},
		{"name":"dmz","status":"disabled"},
		"junk"
	]`
	got := ParseInterfaces(decode(t, body))
	require.Len(t, got, 4)
	assert.Equal(t, models.InterfaceInfo{
		Name: "wan", Status: "up", IP: "203.0.113.2", MAC: "aa:bb:cc:00:00:01", RxBytes: 100, TxBytes: 200,
	}, got[0])
	assert.Equal(t, "3", got[1].Name)
	assert.Equal(t, "up", got[1].Status)
	assert.Equal(t, "up", got[2].Status)
	assert.Equal(t, "down", got[3].Status)
}

func TestParseInterfaces_NotAList(t *testing.T) {
	assert.Empty(t, ParseInterfaces(decode(t, `{"interfaces":[]}`)))
}

func TestParseArpTable(t *testing.T) {
	got := ParseArpTable(decode(t, `[
		{"ip":"10.0.0.5","mac":"aa:bb:cc:dd:ee:ff"},
		{"ip":"10.0.0.6","mac":"aa:bb:cc:dd:ee:00","interface":"lan","type":"static"}
	]`))
	assert.Equal(t, []models.ArpEntry{
		{IP: "10.0.0.5", MAC: "aa:bb:cc:dd:ee:ff", Interface: "N/A", Type: "dynamic"},
		{IP: "10.0.0.6", MAC: "aa:bb:cc:dd:ee:00", Interface: "lan", Type: "static"},
	}, got)
}

func TestDefaultSystemInfo(t *testing.T) {
	assert.Equal(t, models.SystemInfo{"model": "Generic HTTP", "os": "Unknown"}, DefaultSystemInfo())
}
