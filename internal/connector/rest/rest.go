// Package rest implements the HTTP connector. A profile decides how each
// capability maps onto requests: "sophos" speaks the Sophos XG XML API,
// "generic" reads JSON from user-configured endpoint paths.
package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/netvault/internal/connector"
	"github.com/HerbHall/netvault/internal/parsers/genericjson"
	"github.com/HerbHall/netvault/internal/parsers/sophos"
	"github.com/HerbHall/netvault/pkg/models"
)

// Profiles.
const (
	ProfileGeneric = "generic"
	ProfileSophos  = "sophos"
)

// Auth types.
const (
	AuthBasic  = "basic"
	AuthBearer = "bearer"
	AuthAPIKey = "api_key"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
	defaultRateLimit  = 10.0
	maxBodyBytes      = 16 << 20
)

var errNotConnected = errors.New("not connected")

// Compile-time interface guard.
var _ connector.Connector = (*Connector)(nil)

// Connector talks to a device's HTTP management API.
type Connector struct {
	target     connector.Target
	logger     *zap.Logger
	profile    string
	baseURL    string
	verifySSL  bool
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter

	authType       string
	apiKeyLocation string
	apiKeyName     string
	endpoints      map[string]string

	mu     sync.Mutex
	client *http.Client
}

// New is the connector.Factory for REST devices.
func New(t connector.Target, logger *zap.Logger) (connector.Connector, error) {
	return newConnector(t, logger)
}

func newConnector(t connector.Target, logger *zap.Logger) (*Connector, error) {
	s := t.Settings()

	profile := strings.ToLower(s.String("rest_profile", ProfileGeneric))
	if profile != ProfileGeneric && profile != ProfileSophos {
		return nil, fmt.Errorf("unsupported rest_profile %q", profile)
	}
	authType := strings.ToLower(s.String("auth_type", AuthBasic))
	switch authType {
	case AuthBasic, AuthBearer, AuthAPIKey:
	default:
		return nil, fmt.Errorf("unsupported auth_type %q", authType)
	}

	scheme := s.String("protocol", "https")
	host := t.Host
	port := t.PortOr(0)
	if port == 0 && profile == ProfileSophos {
		port = sophos.DefaultPort
	}
	if port > 0 {
		host = net.JoinHostPort(host, strconv.Itoa(port))
	}

	rps := s.Float("rate_limit", defaultRateLimit)
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}

	return &Connector{
		target:         t,
		logger:         logger.With(zap.String("device", t.Name), zap.String("host", t.Host)),
		profile:        profile,
		baseURL:        scheme + "://" + host,
		verifySSL:      s.Bool("verify_ssl", false),
		timeout:        s.Duration("timeout", defaultTimeout),
		maxRetries:     s.Int("max_retries", defaultMaxRetries),
		retryDelay:     s.Duration("retry_delay", defaultRetryDelay),
		limiter:        rate.NewLimiter(limit, 1),
		authType:       authType,
		apiKeyLocation: strings.ToLower(s.String("api_key_location", "header")),
		apiKeyName:     s.String("api_key_name", "X-API-Key"),
		endpoints:      s.StringMap("endpoints"),
	}, nil
}

// Connect prepares the HTTP client. It does not touch the network.
func (c *Connector) Connect(_ context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return true
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: !c.verifySSL, //nolint:gosec // G402: appliances commonly ship self-signed certificates
	}
	c.client = &http.Client{Timeout: c.timeout, Transport: transport}
	return true
}

// Disconnect drops idle connections and the client.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return
	}
	c.client.CloseIdleConnections()
	c.client = nil
}

func (c *Connector) httpClient() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// TestConnection issues the system request and times it.
func (c *Connector) TestConnection(ctx context.Context) models.ConnectionTestResult {
	start := time.Now()
	c.Connect(ctx)

	var err error
	if c.profile == ProfileSophos {
		_, err = c.sophosGet(ctx, sophos.EntitySystemStatus)
	} else {
		path := c.endpoints["system"]
		if path == "" {
			path = "/"
		}
		_, err = c.do(ctx, http.MethodGet, path, nil)
	}
	latency := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		c.logger.Error("REST connection test failed", zap.Error(err))
		return models.ConnectionTestResult{LatencyMs: latency, Error: err.Error()}
	}
	return models.ConnectionTestResult{Success: true, LatencyMs: latency}
}

// GetSystemInfo returns model, OS and uptime details.
func (c *Connector) GetSystemInfo(ctx context.Context) models.SystemInfo {
	if c.profile == ProfileSophos {
		body, err := c.sophosGet(ctx, sophos.EntitySystemStatus)
		if err != nil {
			c.logFailure("system info", err)
			return models.SystemInfo{}
		}
		info, err := sophos.ParseSystemInfo(body)
		if err != nil {
			c.logFailure("system info", err)
			return models.SystemInfo{}
		}
		info["vendor"] = ProfileSophos
		return info
	}

	if c.endpoints["system"] == "" {
		if c.httpClient() == nil {
			return models.SystemInfo{}
		}
		return genericjson.DefaultSystemInfo()
	}
	data, err := c.getJSON(ctx, "system")
	if err != nil {
		c.logFailure("system info", err)
		return models.SystemInfo{}
	}
	return genericjson.ParseSystemInfo(data)
}

// GetInterfaces lists interfaces.
func (c *Connector) GetInterfaces(ctx context.Context) []models.InterfaceInfo {
	if c.profile == ProfileSophos {
		body, err := c.sophosGet(ctx, sophos.EntityInterface)
		if err != nil {
			c.logFailure("interfaces", err)
			return nil
		}
		out, err := sophos.ParseInterfaces(body)
		if err != nil {
			c.logFailure("interfaces", err)
			return nil
		}
		return out
	}
	if c.endpoints["interfaces"] == "" {
		return nil
	}
	data, err := c.getJSON(ctx, "interfaces")
	if err != nil {
		c.logFailure("interfaces", err)
		return nil
	}
	return genericjson.ParseInterfaces(data)
}

// GetArpTable reads the ARP table.
func (c *Connector) GetArpTable(ctx context.Context) []models.ArpEntry {
	if c.profile == ProfileSophos {
		body, err := c.sophosGet(ctx, sophos.EntityARPTable)
		if err != nil {
			c.logFailure("arp table", err)
			return nil
		}
		out, err := sophos.ParseArpTable(body)
		if err != nil {
			c.logFailure("arp table", err)
			return nil
		}
		return out
	}
	if c.endpoints["arp"] == "" {
		return nil
	}
	data, err := c.getJSON(ctx, "arp")
	if err != nil {
		c.logFailure("arp table", err)
		return nil
	}
	return genericjson.ParseArpTable(data)
}

// GetMacTable is not exposed by the supported APIs.
func (c *Connector) GetMacTable(_ context.Context) []models.MacEntry {
	return nil
}

// GetRoutes reads the routing table. The generic profile fetches the
// configured endpoint but has no route parser, so it reports nothing.
func (c *Connector) GetRoutes(ctx context.Context) []models.RouteEntry {
	if c.profile == ProfileSophos {
		body, err := c.sophosGet(ctx, sophos.EntityRoutingTable)
		if err != nil {
			c.logFailure("routes", err)
			return nil
		}
		out, err := sophos.ParseRoutes(body)
		if err != nil {
			c.logFailure("routes", err)
			return nil
		}
		return out
	}
	if c.endpoints["routes"] == "" {
		return nil
	}
	if _, err := c.getJSON(ctx, "routes"); err != nil {
		c.logFailure("routes", err)
	}
	return nil
}

// RunAudit checks API reachability and TLS verification.
func (c *Connector) RunAudit(ctx context.Context) models.AuditResult {
	name := c.target.Name
	if name == "" {
		name = strconv.FormatInt(c.target.DeviceID, 10)
	}
	res := models.AuditResult{DeviceName: name, Timestamp: time.Now().UTC()}

	conn := c.TestConnection(ctx)
	if conn.Success {
		res.Checks = append(res.Checks, models.AuditCheck{
			Name: "RestAPI Connectivity", Status: models.CheckPass, Message: "Successfully reached API",
		})
	} else {
		res.Checks = append(res.Checks, models.AuditCheck{
			Name: "RestAPI Connectivity", Status: models.CheckFail, Message: "Error: " + conn.Error,
		})
	}

	if c.verifySSL {
		res.Checks = append(res.Checks, models.AuditCheck{
			Name: "SSL Verification", Status: models.CheckPass, Message: "SSL verification enabled",
		})
	} else {
		res.Checks = append(res.Checks, models.AuditCheck{
			Name: "SSL Verification", Status: models.CheckWarning, Message: "SSL verification disabled (Insecure)",
		})
	}

	res.Summary = fmt.Sprintf("Audit completed with %d/%d checks passed.",
		res.CountStatus(models.CheckPass), len(res.Checks))
	return res
}

func (c *Connector) logFailure(what string, err error) {
	c.logger.Error("REST request failed", zap.String("resource", what), zap.Error(err))
}

// sophosGet posts a "get" request for entity with the credential embedded.
func (c *Connector) sophosGet(ctx context.Context, entity string) ([]byte, error) {
	body := sophos.BuildRequest(
		c.target.Secret.String("username", ""),
		c.target.Secret.String("password", ""),
		"get", entity,
	)
	return c.do(ctx, http.MethodPost, sophos.APIPath, []byte(body))
}

// getJSON fetches the endpoint configured for capability and decodes it.
func (c *Connector) getJSON(ctx context.Context, capability string) (any, error) {
	body, err := c.do(ctx, http.MethodGet, c.endpoints[capability], nil)
	if err != nil {
		return nil, err
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", capability, err)
	}
	return data, nil
}

// do performs one logical request through the rate limiter and the retry
// policy, returning the response body of the first 2xx answer.
func (c *Connector) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	client := c.httpClient()
	if client == nil {
		return nil, errNotConnected
	}
	url := c.baseURL + path

	var out []byte
	err := withRetry(ctx, c.maxRetries, c.retryDelay, c.logger, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := c.newRequest(ctx, method, url, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			serr := &StatusError{Code: resp.StatusCode, URL: url}
			if transient(resp.StatusCode) {
				return serr
			}
			return backoff.Permanent(serr)
		}
		out, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// newRequest builds a request with the configured authentication applied.
func (c *Connector) newRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		if c.profile == ProfileSophos {
			req.Header.Set("Content-Type", "application/xml")
		} else {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	req.Header.Set("Accept", "application/json, application/xml")

	secret := c.target.Secret
	switch c.authType {
	case AuthBasic:
		req.SetBasicAuth(secret.String("username", ""), secret.String("password", ""))
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+secret.String("token", ""))
	case AuthAPIKey:
		key := secret.String("api_key", "")
		if c.apiKeyLocation == "query" {
			q := req.URL.Query()
			q.Set(c.apiKeyName, key)
			req.URL.RawQuery = q.Encode()
		} else {
			req.Header.Set(c.apiKeyName, key)
		}
	}
	return req, nil
}
