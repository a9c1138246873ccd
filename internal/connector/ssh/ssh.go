// Package ssh implements the CLI-over-SSH connector for MikroTik RouterOS
// and Cisco IOS devices. Commands run on a shared worker pool so a slow
// device never blocks the caller past its context.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/HerbHall/netvault/internal/connector"
	"github.com/HerbHall/netvault/internal/parsers/cisco"
	"github.com/HerbHall/netvault/internal/parsers/mikrotik"
	"github.com/HerbHall/netvault/internal/workpool"
	"github.com/HerbHall/netvault/pkg/models"
)

// Device types.
const (
	TypeAuto     = "auto"
	TypeMikroTik = "mikrotik"
	TypeCisco    = "cisco"
	TypeUnknown  = "unknown"
)

const (
	defaultPort    = 22
	defaultTimeout = 10 * time.Second
)

var errNotConnected = errors.New("not connected")

// Compile-time interface guard.
var _ connector.Connector = (*Connector)(nil)

// Connector drives a device CLI over one SSH connection.
type Connector struct {
	target     connector.Target
	logger     *zap.Logger
	pool       *workpool.Pool
	port       int
	timeout    time.Duration
	username   string
	knownHosts string
	configured string

	dial dialFunc

	mu           sync.Mutex
	remote       remote
	deviceType   string
	hostVerified bool
}

// NewFactory returns a connector.Factory whose connectors execute commands
// on pool.
func NewFactory(pool *workpool.Pool) connector.Factory {
	return func(t connector.Target, logger *zap.Logger) (connector.Connector, error) {
		return newConnector(t, pool, logger)
	}
}

func newConnector(t connector.Target, pool *workpool.Pool, logger *zap.Logger) (*Connector, error) {
	if pool == nil {
		return nil, errors.New("ssh connector requires a worker pool")
	}
	settings := t.Settings()
	deviceType := strings.ToLower(settings.String("device_type", TypeAuto))
	switch deviceType {
	case TypeAuto, TypeMikroTik, TypeCisco:
	default:
		return nil, fmt.Errorf("unsupported ssh device_type %q", deviceType)
	}
	return &Connector{
		target:     t,
		logger:     logger.With(zap.String("device", t.Name), zap.String("host", t.Host)),
		pool:       pool,
		port:       t.PortOr(defaultPort),
		timeout:    settings.Duration("timeout", defaultTimeout),
		username:   t.Secret.String("username", ""),
		knownHosts: settings.String("known_hosts", ""),
		configured: deviceType,
		deviceType: deviceType,
		dial:       dialSSH,
	}, nil
}

// Connect dials the device and, unless a device type is configured, probes
// the CLI to detect the vendor.
func (c *Connector) Connect(ctx context.Context) bool {
	c.mu.Lock()
	already := c.remote != nil
	c.mu.Unlock()
	if already {
		return true
	}

	auth, err := buildAuthMethods(c.target.Secret)
	if err != nil {
		c.logger.Error("ssh auth setup failed", zap.Error(err))
		return false
	}
	hostKey, verified, err := buildHostKeyCallback(c.knownHosts, c.logger)
	if err != nil {
		c.logger.Error("ssh host key setup failed", zap.Error(err))
		return false
	}
	cfg := &ssh.ClientConfig{
		User:            c.username,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         c.timeout,
	}
	addr := net.JoinHostPort(c.target.Host, strconv.Itoa(c.port))

	dctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	r, err := workpool.DoOrRelease(dctx, c.pool, func() (remote, error) {
		return c.dial("tcp", addr, cfg)
	}, func(late remote) {
		c.logger.Debug("closing ssh connection established after timeout", zap.String("addr", addr))
		_ = late.Close()
	})
	if err != nil {
		c.logger.Error("ssh connect failed", zap.String("addr", addr), zap.Error(err))
		return false
	}

	c.mu.Lock()
	c.remote = r
	c.hostVerified = verified
	c.mu.Unlock()

	if c.configured == TypeAuto {
		c.detectDeviceType(ctx)
	}
	c.logger.Info("connected via ssh", zap.String("device_type", c.DeviceType()))
	return true
}

// Disconnect closes the connection. Safe to call at any time.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remote == nil {
		return
	}
	if err := c.remote.Close(); err != nil {
		c.logger.Debug("ssh close", zap.Error(err))
	}
	c.remote = nil
}

// TestConnection dials, measures the latency and hangs up again.
func (c *Connector) TestConnection(ctx context.Context) models.ConnectionTestResult {
	start := time.Now()
	ok := c.Connect(ctx)
	latency := float64(time.Since(start).Microseconds()) / 1000
	if !ok {
		return models.ConnectionTestResult{LatencyMs: latency, Error: "Authentication failed or timeout"}
	}
	c.Disconnect()
	return models.ConnectionTestResult{Success: true, LatencyMs: latency}
}

// DeviceType reports the configured or detected vendor.
func (c *Connector) DeviceType() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceType
}

// detectDeviceType probes with "?" and falls back to "show version".
func (c *Connector) detectDeviceType(ctx context.Context) {
	detected := TypeUnknown
	out, err := c.execute(ctx, "?")
	switch {
	case err != nil:
		c.logger.Warn("ssh vendor probe failed", zap.Error(err))
	case strings.Contains(out, "RouterOS") || strings.Contains(out, "MikroTik"):
		detected = TypeMikroTik
	case strings.Contains(out, "Cisco") || strings.Contains(out, "exec"):
		detected = TypeCisco
	default:
		if ver, err := c.execute(ctx, "show version"); err == nil && strings.Contains(ver, "Cisco") {
			detected = TypeCisco
		}
	}
	c.mu.Lock()
	c.deviceType = detected
	c.mu.Unlock()
}

// execute runs one command on the worker pool and waits at most the
// configured timeout for its output.
func (c *Connector) execute(ctx context.Context, cmd string) (string, error) {
	c.mu.Lock()
	r := c.remote
	c.mu.Unlock()
	if r == nil {
		return "", errNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return workpool.Do(ctx, c.pool, func() (string, error) {
		return r.Run(cmd)
	})
}

// run executes cmd and logs failures, returning "" on error.
func (c *Connector) run(ctx context.Context, cmd string) string {
	out, err := c.execute(ctx, cmd)
	if err != nil {
		c.logger.Warn("ssh command failed", zap.String("command", cmd), zap.Error(err))
		return ""
	}
	return out
}

// GetSystemInfo runs the vendor's version or resource command.
func (c *Connector) GetSystemInfo(ctx context.Context) models.SystemInfo {
	var info models.SystemInfo
	switch c.DeviceType() {
	case TypeMikroTik:
		if out := c.run(ctx, "/system resource print"); out != "" {
			info = mikrotik.ParseSystemResource(out)
			info["vendor"] = TypeMikroTik
		}
	case TypeCisco:
		if out := c.run(ctx, "show version"); out != "" {
			info = cisco.ParseShowVersion(out)
			info["vendor"] = TypeCisco
		}
	}
	if info == nil {
		return models.SystemInfo{}
	}
	return info
}

// GetInterfaces lists interfaces with their link state.
func (c *Connector) GetInterfaces(ctx context.Context) []models.InterfaceInfo {
	switch c.DeviceType() {
	case TypeMikroTik:
		return mikrotik.ParseInterfaces(c.run(ctx, "/interface print"))
	case TypeCisco:
		return cisco.ParseShowIPInterfaceBrief(c.run(ctx, "show ip interface brief"))
	}
	return nil
}

// GetArpTable reads the device ARP cache.
func (c *Connector) GetArpTable(ctx context.Context) []models.ArpEntry {
	switch c.DeviceType() {
	case TypeMikroTik:
		return mikrotik.ParseArpTable(c.run(ctx, "/ip arp print"))
	case TypeCisco:
		return cisco.ParseShowIPArp(c.run(ctx, "show ip arp"))
	}
	return nil
}

// GetMacTable reads the switching table. RouterOS bridge hosts are not
// collected.
func (c *Connector) GetMacTable(ctx context.Context) []models.MacEntry {
	if c.DeviceType() == TypeCisco {
		return cisco.ParseShowMacAddressTable(c.run(ctx, "show mac address-table"))
	}
	return nil
}

// GetRoutes reads the IPv4 routing table.
func (c *Connector) GetRoutes(ctx context.Context) []models.RouteEntry {
	switch c.DeviceType() {
	case TypeMikroTik:
		return mikrotik.ParseRoutes(c.run(ctx, "/ip route print"))
	case TypeCisco:
		return cisco.ParseShowIPRoute(c.run(ctx, "show ip route"))
	}
	return nil
}

// RunAudit reports on host key verification and vendor detection.
func (c *Connector) RunAudit(_ context.Context) models.AuditResult {
	name := c.target.Name
	if name == "" {
		name = c.target.Host
	}
	res := models.AuditResult{DeviceName: name, Timestamp: time.Now().UTC()}

	c.mu.Lock()
	verified := c.hostVerified || c.knownHosts != ""
	deviceType := c.deviceType
	c.mu.Unlock()

	if verified {
		res.Checks = append(res.Checks, models.AuditCheck{
			Name:    "SSH Host Key Verification",
			Status:  models.CheckPass,
			Message: "Host key is verified against known_hosts.",
		})
	} else {
		res.Checks = append(res.Checks, models.AuditCheck{
			Name:    "SSH Host Key Verification",
			Status:  models.CheckWarning,
			Message: "Host key verification is disabled; any host key is accepted.",
			Details: map[string]any{"recommendation": "Configure known_hosts for this device."},
		})
	}

	switch deviceType {
	case TypeMikroTik, TypeCisco:
		res.Checks = append(res.Checks, models.AuditCheck{
			Name:    "Vendor Detection",
			Status:  models.CheckPass,
			Message: "Device type: " + deviceType,
		})
	default:
		res.Checks = append(res.Checks, models.AuditCheck{
			Name:    "Vendor Detection",
			Status:  models.CheckWarning,
			Message: "Device type could not be determined; no data will be collected.",
			Details: map[string]any{"recommendation": "Set device_type to mikrotik or cisco in the device config."},
		})
	}

	res.Summary = fmt.Sprintf("Audit completed with %d/%d checks passed.",
		res.CountStatus(models.CheckPass), len(res.Checks))
	return res
}
