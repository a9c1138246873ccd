package devicemgr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netvault/internal/connector"
	"github.com/HerbHall/netvault/internal/event"
	"github.com/HerbHall/netvault/internal/testutil"
	"github.com/HerbHall/netvault/pkg/models"
)

// -- fakes --

type memStore struct {
	mu      sync.Mutex
	devices []models.Device
	updates int
}

func (s *memStore) ListDevices(context.Context) ([]models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Device, len(s.devices))
	copy(out, s.devices)
	return out, nil
}

func (s *memStore) UpdateDevice(_ context.Context, id int64, p models.DevicePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.devices {
		if s.devices[i].ID == id {
			if p.Status != nil {
				s.devices[i].Status = *p.Status
			}
			if p.LastSeen != nil {
				seen := *p.LastSeen
				s.devices[i].LastSeen = &seen
			}
			if p.IP != nil {
				s.devices[i].IP = *p.IP
			}
			s.updates++
			return nil
		}
	}
	return fmt.Errorf("device %d not found", id)
}

func (s *memStore) get(id int64) models.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.ID == id {
			return d
		}
	}
	return models.Device{}
}

var errNoCred = errors.New("credential not found")

type memCreds map[string]map[string]any

func (c memCreds) Resolve(_ context.Context, name string) (map[string]any, error) {
	if v, ok := c[name]; ok {
		return v, nil
	}
	return nil, errNoCred
}

func (c memCreds) ResolveByID(context.Context, int64) (map[string]any, error) {
	return nil, errNoCred
}

type fakeFactory struct {
	mu      sync.Mutex
	conns   map[int64]connector.Connector
	targets map[int64]connector.Target
	builds  int
}

func (f *fakeFactory) New(connectorType string, t connector.Target, _ *zap.Logger) (connector.Connector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if connectorType != "snmp" {
		return nil, fmt.Errorf("%q: %w", connectorType, connector.ErrUnknownKind)
	}
	if f.targets == nil {
		f.targets = make(map[int64]connector.Target)
	}
	f.targets[t.DeviceID] = t
	f.builds++
	c, ok := f.conns[t.DeviceID]
	if !ok {
		return nil, fmt.Errorf("no fake connector for device %d", t.DeviceID)
	}
	return c, nil
}

type fakeProber struct {
	res ProbeResult
}

func (p fakeProber) Probe(context.Context, string) (ProbeResult, error) { return p.res, nil }

func device(id int64, opts ...func(*models.Device)) models.Device {
	d := testutil.NewDevice(opts...)
	d.ID = id
	if d.Name == "test-device" {
		d.Name = fmt.Sprintf("dev-%d", id)
	}
	return d
}

func onlineConnector() *testutil.FakeConnector {
	return &testutil.FakeConnector{
		ConnectOK: true,
		Tables: testutil.Tables{
			SystemInfo: models.SystemInfo{"name": "sw"},
			Interfaces: []models.InterfaceInfo{{Name: "eth0", Status: "up"}},
			Arp:        []models.ArpEntry{{IP: "10.0.0.9", MAC: "00:11:22:33:44:55"}},
			Mac:        []models.MacEntry{{MAC: "00:11:22:33:44:55", Port: "1", VLAN: 1}},
			Routes:     []models.RouteEntry{{Destination: "0.0.0.0", Gateway: "10.0.0.1"}},
		},
	}
}

func newTestManager(t *testing.T, devices []models.Device, conns map[int64]connector.Connector, opts Options) (*Manager, *memStore, *fakeFactory) {
	t.Helper()
	st := &memStore{devices: devices}
	f := &fakeFactory{conns: conns}
	m := New(st, memCreds{"snmp-ro": {"community": "secret"}}, f, opts, zap.NewNop())
	if err := m.LoadDevices(context.Background()); err != nil {
		t.Fatalf("LoadDevices: %v", err)
	}
	return m, st, f
}

// -- tests --

func TestPollDevice_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		conn *testutil.FakeConnector
		want models.DeviceStatus
	}{
		{"connect failure", &testutil.FakeConnector{ConnectOK: false}, models.DeviceStatusOffline},
		{"no interfaces", &testutil.FakeConnector{ConnectOK: true}, models.DeviceStatusWarning},
		{"interfaces", onlineConnector(), models.DeviceStatusOnline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, st, _ := newTestManager(t,
				[]models.Device{device(1)},
				map[int64]connector.Connector{1: tt.conn},
				Options{},
			)
			got, err := m.PollDevice(context.Background(), 1)
			if err != nil {
				t.Fatalf("PollDevice: %v", err)
			}
			if got != tt.want {
				t.Errorf("status = %q, want %q", got, tt.want)
			}
			stored := st.get(1)
			if stored.Status != tt.want {
				t.Errorf("stored status = %q, want %q", stored.Status, tt.want)
			}
			if stored.LastSeen == nil {
				t.Error("stored LastSeen = nil, want set on every attempt")
			}
			if s, _ := m.Status(1); s != tt.want {
				t.Errorf("Status(1) = %q, want %q", s, tt.want)
			}
		})
	}
}

func TestPollDevice_DisconnectsAfterPoll(t *testing.T) {
	conn := onlineConnector()
	m, _, _ := newTestManager(t, []models.Device{device(1)}, map[int64]connector.Connector{1: conn}, Options{})

	if _, err := m.PollDevice(context.Background(), 1); err != nil {
		t.Fatalf("PollDevice: %v", err)
	}
	if n := conn.DisconnectCount(); n != 1 {
		t.Errorf("Disconnects = %d, want 1", n)
	}
}

func TestPollDevice_UnknownDevice(t *testing.T) {
	m, _, _ := newTestManager(t, nil, nil, Options{})
	_, err := m.PollDevice(context.Background(), 42)
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("err = %v, want ErrDeviceNotFound", err)
	}
}

func TestPollDevice_NoConnectorIsOffline(t *testing.T) {
	m, st, _ := newTestManager(t,
		[]models.Device{device(1, testutil.WithConnector("telnet"))},
		nil,
		Options{},
	)
	status, err := m.PollDevice(context.Background(), 1)
	if !errors.Is(err, ErrNoConnector) {
		t.Errorf("err = %v, want ErrNoConnector", err)
	}
	if status != models.DeviceStatusOffline {
		t.Errorf("status = %q, want %q", status, models.DeviceStatusOffline)
	}
	if got := st.get(1).Status; got != models.DeviceStatusOffline {
		t.Errorf("stored status = %q, want %q", got, models.DeviceStatusOffline)
	}
}

func TestGetConnector_CredentialResolution(t *testing.T) {
	m, _, f := newTestManager(t,
		[]models.Device{
			device(1, testutil.WithCredential("snmp-ro")),
			device(2, testutil.WithCredential("missing")),
			device(3),
		},
		map[int64]connector.Connector{1: onlineConnector(), 2: onlineConnector(), 3: onlineConnector()},
		Options{},
	)
	ctx := context.Background()

	if _, err := m.GetConnector(ctx, 1); err != nil {
		t.Fatalf("GetConnector(1): %v", err)
	}
	if got := f.targets[1].Secret.String("community", ""); got != "secret" {
		t.Errorf("secret community = %q, want %q", got, "secret")
	}

	_, err := m.GetConnector(ctx, 2)
	if !errors.Is(err, ErrNoConnector) {
		t.Errorf("GetConnector(2) err = %v, want ErrNoConnector", err)
	}
	if !errors.Is(err, errNoCred) {
		t.Errorf("GetConnector(2) err = %v, want wrapped credential error", err)
	}

	if _, err := m.GetConnector(ctx, 3); err != nil {
		t.Errorf("GetConnector(3) without credential: %v", err)
	}
	if len(f.targets[3].Secret) != 0 {
		t.Errorf("secret = %v, want empty", f.targets[3].Secret)
	}

	if _, err := m.GetConnector(ctx, 99); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetConnector(99) err = %v, want ErrDeviceNotFound", err)
	}
}

func TestGetConnector_Cached(t *testing.T) {
	m, _, f := newTestManager(t, []models.Device{device(1)}, map[int64]connector.Connector{1: onlineConnector()}, Options{})
	ctx := context.Background()

	a, err := m.GetConnector(ctx, 1)
	if err != nil {
		t.Fatalf("GetConnector: %v", err)
	}
	b, err := m.GetConnector(ctx, 1)
	if err != nil {
		t.Fatalf("GetConnector: %v", err)
	}
	if a != b {
		t.Error("second GetConnector returned a different instance")
	}
	if f.builds != 1 {
		t.Errorf("builds = %d, want 1", f.builds)
	}
}

// countingConnector tracks how many connects are open at once.
type countingConnector struct {
	*testutil.FakeConnector
	inFlight *int64
	peak     *int64
}

func (c *countingConnector) Connect(context.Context) bool {
	n := atomic.AddInt64(c.inFlight, 1)
	for {
		p := atomic.LoadInt64(c.peak)
		if n <= p || atomic.CompareAndSwapInt64(c.peak, p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return true
}

func (c *countingConnector) Disconnect() {
	atomic.AddInt64(c.inFlight, -1)
}

func TestPollAll_BoundsConcurrency(t *testing.T) {
	var inFlight, peak int64
	var devices []models.Device
	conns := make(map[int64]connector.Connector)
	for i := int64(1); i <= 20; i++ {
		devices = append(devices, device(i))
		conns[i] = &countingConnector{FakeConnector: onlineConnector(), inFlight: &inFlight, peak: &peak}
	}
	m, _, _ := newTestManager(t, devices, conns, Options{MaxConcurrent: 3})

	statuses, err := m.PollAll(context.Background(), 3)
	if err != nil {
		t.Fatalf("PollAll: %v", err)
	}
	if len(statuses) != 20 {
		t.Fatalf("len(statuses) = %d, want 20", len(statuses))
	}
	for id, s := range statuses {
		if s != models.DeviceStatusOnline {
			t.Errorf("device %d status = %q, want online", id, s)
		}
	}
	if p := atomic.LoadInt64(&peak); p > 3 {
		t.Errorf("peak concurrent connects = %d, want <= 3", p)
	}
	if n := atomic.LoadInt64(&inFlight); n != 0 {
		t.Errorf("connects still open = %d, want 0", n)
	}
}

func TestPollAll_IsolatesFailures(t *testing.T) {
	m, st, _ := newTestManager(t,
		[]models.Device{device(1), device(2), device(3), device(4, testutil.WithConnector("telnet"))},
		map[int64]connector.Connector{
			1: onlineConnector(),
			2: &testutil.FakeConnector{Panic: true},
			3: onlineConnector(),
		},
		Options{},
	)

	statuses, err := m.PollAll(context.Background(), 2)
	if err == nil {
		t.Fatal("PollAll err = nil, want aggregated failures")
	}
	want := map[int64]models.DeviceStatus{
		1: models.DeviceStatusOnline,
		2: models.DeviceStatusOffline,
		3: models.DeviceStatusOnline,
		4: models.DeviceStatusOffline,
	}
	for id, w := range want {
		if statuses[id] != w {
			t.Errorf("device %d status = %q, want %q", id, statuses[id], w)
		}
		if got := st.get(id).Status; got != w {
			t.Errorf("device %d stored status = %q, want %q", id, got, w)
		}
	}
}

func TestPollDevice_ReplacesRefreshEntryWholesale(t *testing.T) {
	fake := onlineConnector()
	m, _, _ := newTestManager(t, []models.Device{device(1)}, map[int64]connector.Connector{1: fake}, Options{})
	ctx := context.Background()

	if _, ok := m.GetCachedData(1); ok {
		t.Fatal("cache populated before any poll")
	}

	res, err := m.RefreshDeviceData(ctx, 1)
	if err != nil {
		t.Fatalf("RefreshDeviceData: %v", err)
	}
	if res == nil || !res.Full || len(res.ArpTable) != 1 || len(res.MacTable) != 1 || len(res.Routes) != 1 {
		t.Fatalf("refresh result = %+v, want full tables", res)
	}
	if res.LastRefresh == nil {
		t.Error("LastRefresh = nil after full refresh")
	}

	fake.Tables.Arp = nil
	fake.Tables.Interfaces = []models.InterfaceInfo{{Name: "eth1", Status: "up"}}
	if _, err := m.PollDevice(ctx, 1); err != nil {
		t.Fatalf("PollDevice: %v", err)
	}
	cached, ok := m.GetCachedData(1)
	if !ok {
		t.Fatal("GetCachedData: missing")
	}
	if cached.Full {
		t.Error("Full = true after light poll, want false")
	}
	if cached.LastRefresh != nil {
		t.Errorf("LastRefresh = %v after light poll, want nil", cached.LastRefresh)
	}
	if len(cached.ArpTable) != 0 || len(cached.MacTable) != 0 || len(cached.Routes) != 0 {
		t.Errorf("tables after light poll = arp %v mac %v routes %v, want none",
			cached.ArpTable, cached.MacTable, cached.Routes)
	}
	if len(cached.Interfaces) != 1 || cached.Interfaces[0].Name != "eth1" {
		t.Errorf("Interfaces = %+v, want only eth1", cached.Interfaces)
	}
	if cached.LastPoll.Before(res.LastPoll) {
		t.Errorf("LastPoll = %v, want >= %v", cached.LastPoll, res.LastPoll)
	}

	// The entry returned by the earlier refresh is a copy and is unaffected.
	if len(res.ArpTable) != 1 {
		t.Errorf("earlier refresh result mutated: ArpTable = %v", res.ArpTable)
	}
}

func TestRefreshDeviceData_Unreachable(t *testing.T) {
	m, _, _ := newTestManager(t, []models.Device{device(1)}, map[int64]connector.Connector{1: &testutil.FakeConnector{}}, Options{})
	res, err := m.RefreshDeviceData(context.Background(), 1)
	if err != nil {
		t.Fatalf("RefreshDeviceData: %v", err)
	}
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
	if _, ok := m.GetCachedData(1); ok {
		t.Error("cache populated for unreachable device")
	}
}

func TestCleanupCache(t *testing.T) {
	m, _, _ := newTestManager(t,
		[]models.Device{device(1), device(2)},
		map[int64]connector.Connector{1: onlineConnector(), 2: onlineConnector()},
		Options{},
	)
	ctx := context.Background()
	for _, id := range []int64{1, 2} {
		if _, err := m.PollDevice(ctx, id); err != nil {
			t.Fatalf("PollDevice(%d): %v", id, err)
		}
	}

	m.mu.Lock()
	m.cache[1].LastPoll = time.Now().Add(-48 * time.Hour)
	m.mu.Unlock()

	if n := m.CleanupCache(24 * time.Hour); n != 1 {
		t.Errorf("CleanupCache removed %d, want 1", n)
	}
	if _, ok := m.GetCachedData(1); ok {
		t.Error("stale entry still cached")
	}
	if _, ok := m.GetCachedData(2); !ok {
		t.Error("fresh entry was removed")
	}
}

func TestPollDevice_PublishesStatusChange(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	var (
		mu  sync.Mutex
		got []event.StatusChanged
	)
	bus.Subscribe(event.TopicDeviceStatusChanged, func(_ context.Context, e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Payload.(event.StatusChanged))
	})

	m, _, _ := newTestManager(t, []models.Device{device(1)}, map[int64]connector.Connector{1: onlineConnector()}, Options{Bus: bus})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := m.PollDevice(ctx, 1); err != nil {
			t.Fatalf("PollDevice: %v", err)
		}
	}
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("events = %d, want 1 (second poll has no transition)", len(got))
	}
	if got[0].Previous != models.DeviceStatusUnknown || got[0].Current != models.DeviceStatusOnline {
		t.Errorf("event = %+v, want unknown -> online", got[0])
	}
}

func TestTestDevice_DoesNotChangeStatus(t *testing.T) {
	m, st, _ := newTestManager(t,
		[]models.Device{device(1)},
		map[int64]connector.Connector{1: onlineConnector()},
		Options{Prober: fakeProber{res: ProbeResult{Reachable: true, RTT: 1500 * time.Microsecond}}},
	)

	res, err := m.TestDevice(context.Background(), 1)
	if err != nil {
		t.Fatalf("TestDevice: %v", err)
	}
	if !res.Success {
		t.Errorf("Success = false, want true")
	}
	if res.ICMPReachable == nil || !*res.ICMPReachable {
		t.Errorf("ICMPReachable = %v, want true", res.ICMPReachable)
	}
	if res.ICMPRttMs != 1.5 {
		t.Errorf("ICMPRttMs = %v, want 1.5", res.ICMPRttMs)
	}
	if st.updates != 0 {
		t.Errorf("store updates = %d, want 0", st.updates)
	}
	if s, _ := m.Status(1); s != models.DeviceStatusUnknown {
		t.Errorf("Status = %q, want unknown", s)
	}
}

func TestTestDevice_NoConnector(t *testing.T) {
	m, _, _ := newTestManager(t, []models.Device{device(1, testutil.WithConnector("telnet"))}, nil, Options{})
	res, err := m.TestDevice(context.Background(), 1)
	if err != nil {
		t.Fatalf("TestDevice: %v", err)
	}
	if res.Success || res.Error == "" {
		t.Errorf("result = %+v, want failure with error text", res)
	}
	if res.ICMPReachable != nil {
		t.Errorf("ICMPReachable = %v, want nil without prober", *res.ICMPReachable)
	}
}

func TestLoadDevices_DropsChangedConnectors(t *testing.T) {
	first := onlineConnector()
	m, st, f := newTestManager(t, []models.Device{device(1)}, map[int64]connector.Connector{1: first}, Options{})
	ctx := context.Background()

	if _, err := m.GetConnector(ctx, 1); err != nil {
		t.Fatalf("GetConnector: %v", err)
	}

	// Reload without changes keeps the connector.
	if err := m.LoadDevices(ctx); err != nil {
		t.Fatalf("LoadDevices: %v", err)
	}
	if _, err := m.GetConnector(ctx, 1); err != nil {
		t.Fatalf("GetConnector: %v", err)
	}
	if f.builds != 1 {
		t.Errorf("builds = %d, want 1", f.builds)
	}

	ip := "10.9.9.9"
	if err := st.UpdateDevice(ctx, 1, models.DevicePatch{IP: &ip}); err != nil {
		t.Fatalf("UpdateDevice: %v", err)
	}
	if err := m.LoadDevices(ctx); err != nil {
		t.Fatalf("LoadDevices: %v", err)
	}
	if n := first.DisconnectCount(); n != 1 {
		t.Errorf("Disconnects = %d, want 1", n)
	}
	if _, err := m.GetConnector(ctx, 1); err != nil {
		t.Fatalf("GetConnector: %v", err)
	}
	if f.builds != 2 {
		t.Errorf("builds = %d, want 2", f.builds)
	}
	if got := f.targets[1].Host; got != ip {
		t.Errorf("target host = %q, want %q", got, ip)
	}
}

func TestWithConnector(t *testing.T) {
	conn := onlineConnector()
	m, _, _ := newTestManager(t, []models.Device{device(1)}, map[int64]connector.Connector{1: conn}, Options{})
	ctx := context.Background()

	called := false
	err := m.WithConnector(ctx, 1, func(c connector.Connector) error {
		called = true
		if c != connector.Connector(conn) {
			t.Error("fn received a different connector")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithConnector: %v", err)
	}
	if !called {
		t.Error("fn was not called")
	}

	sentinel := errors.New("boom")
	if err := m.WithConnector(ctx, 1, func(connector.Connector) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want fn error", err)
	}
	if err := m.WithConnector(ctx, 2, func(connector.Connector) error { return nil }); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("err = %v, want ErrDeviceNotFound", err)
	}
}
