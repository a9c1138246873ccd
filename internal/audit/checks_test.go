package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HerbHall/netvault/pkg/models"
)

func TestDuplicateMACs_Locations(t *testing.T) {
	data := map[int64]models.PollResult{
		1: {MacTable: []models.MacEntry{
			{MAC: "00:11:22:33:44:55", Port: "ether1"},
			{MAC: "00:11:22:33:44:55", Port: "ether1"},
		}},
		2: {MacTable: []models.MacEntry{{MAC: "00:11:22:33:44:55", Port: "Fa0/1"}}},
		3: {MacTable: []models.MacEntry{{MAC: "66:77:88:99:aa:bb", Port: "Gi0/2"}}},
	}

	got := duplicateMACs(data)
	assert.Equal(t, map[string][]string{
		"00:11:22:33:44:55": {"device_1:ether1", "device_2:Fa0/1"},
	}, got)
}

func TestDuplicateMACs_SameDeviceTwoPorts(t *testing.T) {
	data := map[int64]models.PollResult{
		1: {MacTable: []models.MacEntry{
			{MAC: "00:11:22:33:44:55", Port: "ether1"},
			{MAC: "00:11:22:33:44:55", Port: "ether2"},
		}},
	}
	assert.Len(t, duplicateMACs(data), 1)
}

func TestDuplicateIPs_IgnoresIncompleteEntries(t *testing.T) {
	data := map[int64]models.PollResult{
		1: {ArpTable: []models.ArpEntry{{IP: "10.0.0.5", MAC: ""}, {IP: "", MAC: "00:00:00:00:00:01"}}},
		2: {ArpTable: []models.ArpEntry{{IP: "10.0.0.5", MAC: "00:00:00:00:00:02"}}},
	}
	assert.Empty(t, duplicateIPs(data))
}

func TestDuplicateIPs_CiscoDottedMatchesColon(t *testing.T) {
	data := map[int64]models.PollResult{
		1: {ArpTable: []models.ArpEntry{{IP: "10.0.0.5", MAC: "0011.2233.4455"}}},
		2: {ArpTable: []models.ArpEntry{{IP: "10.0.0.5", MAC: "00:11:22:33:44:55"}}},
	}
	assert.Empty(t, duplicateIPs(data))
}

func TestOrphanIPs_Sorted(t *testing.T) {
	data := map[int64]models.PollResult{
		1: {ArpTable: []models.ArpEntry{{IP: "10.0.0.9"}, {IP: "10.0.0.1"}, {IP: "10.0.0.3"}}},
	}
	inventory := []models.Device{{IP: "10.0.0.1"}}
	assert.Equal(t, []string{"10.0.0.3", "10.0.0.9"}, orphanIPs(data, inventory))
}

func TestNetworkChecks_Empty(t *testing.T) {
	checks, ips, macs, orphans := networkChecks(nil, nil)
	assert.Empty(t, checks)
	assert.Zero(t, ips+macs+orphans)
}

func TestDeviceAuditType(t *testing.T) {
	assert.Equal(t, "snmp_audit", deviceAuditType("snmp"))
	assert.Equal(t, "rest_api_audit", deviceAuditType("rest"))
	assert.Equal(t, "device_audit", deviceAuditType("telnet"))
}
