package cisco

import (
	"reflect"
	"testing"

	"github.com/HerbHall/netvault/pkg/models"
)

const showVersion = `Cisco IOS Software, C2960 Software (C2960-LANBASEK9-M), Version 12.2(55)SE7, RELEASE SOFTWARE (fc1)
Technical Support: http://www.cisco.com/techsupport
ROM: Bootstrap program is C2960 boot loader
switch1 uptime is 3 weeks, 2 days, 4 hours, 1 minute
System image file is "flash:/c2960-lanbasek9-mz.122-55.SE7.bin"
cisco WS-C2960-24TT-L (PowerPC405) processor (revision B0) with 65536K bytes of memory.
Processor board ID FOC12345678
`

const showIPIntBrief = `Interface              IP-Address      OK? Method Status                Protocol
FastEthernet0/1        192.168.1.1     YES manual up                    up
FastEthernet0/2        unassigned      YES unset  down                  down
FastEthernet0/3        10.0.0.1        YES manual administratively down down
Vlan1                  10.1.1.1        YES NVRAM  up                    down
`

const showIPArp = `Protocol  Address          Age (min)  Hardware Addr   Type   Interface
Internet  192.168.1.1             -   0011.2233.4455  ARPA   FastEthernet0/1
Internet  192.168.1.100          10   00aa.bbcc.ddee  ARPA   FastEthernet0/1

`

const showMacTable = `          Mac Address Table
-------------------------------------------

Vlan    Mac Address       Type        Ports
----    -----------       ----        -----
   1    00aa.bbcc.ddee    DYNAMIC     Fa0/1
  20    0011.2233.4455    STATIC      Gi0/2
Total Mac Addresses for this criterion: 2
`

const showIPRoute = `Codes: C - connected, S - static, R - RIP, M - mobile, B - BGP

Gateway of last resort is 192.168.1.254 to network 0.0.0.0

C     192.168.1.0/24 is directly connected, FastEthernet0/1
S*    0.0.0.0/0 [1/0] via 192.168.1.254
S     10.20.0.0/16 [5/0] via 192.168.1.2
O     10.30.0.0/16 [110/2] via 192.168.1.3, 00:01:02, FastEthernet0/1
`

func TestParseShowVersion(t *testing.T) {
	got := ParseShowVersion(showVersion)
	want := models.SystemInfo{
		"model":        "WS-C2960-24TT-L",
		"os_version":   "12.2(55)SE7",
		"uptime":       "3 weeks, 2 days, 4 hours, 1 minute",
		"cpu":          "PowerPC405",
		"memory_total": "64MB",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseShowVersion() = %v, want %v", got, want)
	}
}

func TestParseShowVersion_Defaults(t *testing.T) {
	got := ParseShowVersion("% Invalid input detected at '^' marker.")
	if got["model"] != "Cisco Device" {
		t.Errorf("model = %q, want %q", got["model"], "Cisco Device")
	}
	if got["memory_total"] != "Unknown" {
		t.Errorf("memory_total = %q, want %q", got["memory_total"], "Unknown")
	}
}

func TestParseShowIPInterfaceBrief(t *testing.T) {
	got := ParseShowIPInterfaceBrief(showIPIntBrief)
	want := []models.InterfaceInfo{
		{Name: "FastEthernet0/1", Status: "up", IP: "192.168.1.1"},
		{Name: "FastEthernet0/2", Status: "down"},
		{Name: "FastEthernet0/3", Status: "down", IP: "10.0.0.1"},
		{Name: "Vlan1", Status: "down", IP: "10.1.1.1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseShowIPInterfaceBrief() = %+v, want %+v", got, want)
	}
}

func TestParseShowIPArp(t *testing.T) {
	got := ParseShowIPArp(showIPArp)
	want := []models.ArpEntry{
		{IP: "192.168.1.1", MAC: "00:11:22:33:44:55", Interface: "FastEthernet0/1", Type: "static"},
		{IP: "192.168.1.100", MAC: "00:AA:BB:CC:DD:EE", Interface: "FastEthernet0/1", Type: "dynamic"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseShowIPArp() = %+v, want %+v", got, want)
	}
}

func TestParseShowIPArp_SingleLine(t *testing.T) {
	got := ParseShowIPArp("Internet  192.168.1.1  -  0011.2233.4455  ARPA  FastEthernet0/1")
	want := models.ArpEntry{IP: "192.168.1.1", MAC: "00:11:22:33:44:55", Interface: "FastEthernet0/1", Type: "static"}
	if len(got) != 1 || got[0] != want {
		t.Errorf("ParseShowIPArp() = %+v, want [%+v]", got, want)
	}
}

func TestParseShowMacAddressTable(t *testing.T) {
	got := ParseShowMacAddressTable(showMacTable)
	want := []models.MacEntry{
		{MAC: "00:AA:BB:CC:DD:EE", Port: "Fa0/1", VLAN: 1, Type: "dynamic"},
		{MAC: "00:11:22:33:44:55", Port: "Gi0/2", VLAN: 20, Type: "static"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseShowMacAddressTable() = %+v, want %+v", got, want)
	}
}

func TestParseShowIPRoute(t *testing.T) {
	got := ParseShowIPRoute(showIPRoute)
	want := []models.RouteEntry{
		{Destination: "192.168.1.0/24", Gateway: "FastEthernet0/1", Interface: "FastEthernet0/1", Metric: 0, Protocol: "connected"},
		{Destination: "0.0.0.0/0", Gateway: "192.168.1.254", Metric: 1, Protocol: "static"},
		{Destination: "10.20.0.0/16", Gateway: "192.168.1.2", Metric: 5, Protocol: "static"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseShowIPRoute() = %+v, want %+v", got, want)
	}
}

func TestParsersAreIdempotent(t *testing.T) {
	if !reflect.DeepEqual(ParseShowIPArp(showIPArp), ParseShowIPArp(showIPArp)) {
		t.Error("ParseShowIPArp differs between runs")
	}
	if !reflect.DeepEqual(ParseShowVersion(showVersion), ParseShowVersion(showVersion)) {
		t.Error("ParseShowVersion differs between runs")
	}
}

func TestDottedToColon(t *testing.T) {
	tests := []struct{ in, want string }{
		{"0011.2233.4455", "00:11:22:33:44:55"},
		{"aabb.ccdd.eeff", "AA:BB:CC:DD:EE:FF"},
		{"abc", "ABC"},
	}
	for _, tt := range tests {
		if got := dottedToColon(tt.in); got != tt.want {
			t.Errorf("dottedToColon(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
