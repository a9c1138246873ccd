package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HerbHall/netvault/internal/connector"
	"github.com/HerbHall/netvault/internal/parsers/sophos"
	"github.com/HerbHall/netvault/pkg/models"
)

// targetFor points a connector at srv over plain HTTP with fast retries.
func targetFor(t *testing.T, srv *httptest.Server, opts connector.Values, secret connector.Values) connector.Target {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	merged := connector.Values{"protocol": "http", "retry_delay": "1ms", "rate_limit": 0}
	for k, v := range opts {
		merged[k] = v
	}
	return connector.Target{DeviceID: 4, Name: "fw1", Host: u.Hostname(), Port: port, Options: merged, Secret: secret}
}

func connected(t *testing.T, target connector.Target) *Connector {
	t.Helper()
	c, err := newConnector(target, zap.NewNop())
	require.NoError(t, err)
	require.True(t, c.Connect(context.Background()))
	t.Cleanup(c.Disconnect)
	return c
}

func TestGenericInterfaces_APIKeyHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/interfaces", r.URL.Path)
		assert.Equal(t, "k3y", r.Header.Get("X-API-Key"))
		_, _ = io.WriteString(w, `[{"name":"wan","status":"up","ip_address":"203.0.113.2"},{"index":2,"status":0}]`)
	}))
	defer srv.Close()

	c := connected(t, targetFor(t, srv,
		connector.Values{"auth_type": "api_key", "endpoints": map[string]any{"interfaces": "/api/interfaces"}},
		connector.Values{"api_key": "k3y"},
	))

	ifaces := c.GetInterfaces(context.Background())
	require.Len(t, ifaces, 2)
	assert.Equal(t, "wan", ifaces[0].Name)
	assert.Equal(t, "up", ifaces[0].Status)
	assert.Equal(t, "2", ifaces[1].Name)
	assert.Equal(t, "down", ifaces[1].Status)
}

func TestAPIKeyQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := connected(t, targetFor(t, srv,
		connector.Values{
			"auth_type":        "api_key",
			"api_key_location": "query",
			"api_key_name":     "token",
			"endpoints":        map[string]any{"arp": "/arp"},
		},
		connector.Values{"api_key": "secret"},
	))
	assert.Empty(t, c.GetArpTable(context.Background()))
}

func TestBearerAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"model":"X1","firmware":"2.0"}`)
	}))
	defer srv.Close()

	c := connected(t, targetFor(t, srv,
		connector.Values{"auth_type": "bearer", "endpoints": map[string]any{"system": "/sys"}},
		connector.Values{"token": "abc"},
	))
	info := c.GetSystemInfo(context.Background())
	assert.Equal(t, "X1", info["model"])
	assert.Equal(t, "2.0", info["os"])
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `[{"ip":"10.0.0.5","mac":"aa:bb:cc:dd:ee:ff","interface":"lan"}]`)
	}))
	defer srv.Close()

	c := connected(t, targetFor(t, srv, connector.Values{"endpoints": map[string]any{"arp": "/arp"}}, nil))
	arp := c.GetArpTable(context.Background())
	require.Len(t, arp, 1)
	assert.Equal(t, "10.0.0.5", arp[0].IP)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := connected(t, targetFor(t, srv,
		connector.Values{"max_retries": 4, "endpoints": map[string]any{"arp": "/arp"}}, nil))
	assert.Empty(t, c.GetArpTable(context.Background()))
	assert.Equal(t, int32(4), calls.Load())
}

func TestRetry_NonTransientNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := connected(t, targetFor(t, srv, connector.Values{"endpoints": map[string]any{"interfaces": "/if"}}, nil))
	assert.Empty(t, c.GetInterfaces(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSophos_PostsXMLEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, sophos.APIPath, r.URL.Path)
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), "<UserName>admin</UserName>")
		assert.Contains(t, string(body), "<Interface></Interface>")
		_, _ = io.WriteString(w, `<Response><Interface><Name>Port1</Name><Status>1</Status><IPAddress>10.1.1.1</IPAddress></Interface></Response>`)
	}))
	defer srv.Close()

	c := connected(t, targetFor(t, srv,
		connector.Values{"rest_profile": "sophos"},
		connector.Values{"username": "admin", "password": "pw"},
	))
	ifaces := c.GetInterfaces(context.Background())
	require.Len(t, ifaces, 1)
	assert.Equal(t, "Port1", ifaces[0].Name)
	assert.Equal(t, "up", ifaces[0].Status)
}

func TestSophos_DefaultPort(t *testing.T) {
	c, err := newConnector(connector.Target{Host: "198.51.100.1", Options: connector.Values{"rest_profile": "sophos"}}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "https://198.51.100.1:4444", c.baseURL)
}

func TestGeneric_NoSystemEndpoint(t *testing.T) {
	c, err := newConnector(connector.Target{Host: "198.51.100.1"}, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, c.GetSystemInfo(context.Background()), "not connected")

	require.True(t, c.Connect(context.Background()))
	info := c.GetSystemInfo(context.Background())
	assert.Equal(t, "Generic HTTP", info["model"])
	assert.Empty(t, c.GetMacTable(context.Background()))
	assert.Empty(t, c.GetRoutes(context.Background()))
}

func TestRunAudit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := connected(t, targetFor(t, srv, nil, nil))
	res := c.RunAudit(context.Background())
	require.Len(t, res.Checks, 2)
	assert.Equal(t, models.CheckPass, res.Checks[0].Status)
	assert.Equal(t, models.CheckWarning, res.Checks[1].Status)
	assert.Equal(t, "Audit completed with 1/2 checks passed.", res.Summary)
	assert.Equal(t, models.AuditWarning, res.OverallStatus())
}

func TestTestConnection_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := targetFor(t, srv, connector.Values{"max_retries": 2}, nil)
	srv.Close()

	c := connected(t, target)
	res := c.TestConnection(context.Background())
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestNewConnector_RejectsUnknownProfile(t *testing.T) {
	_, err := newConnector(connector.Target{Host: "h", Options: connector.Values{"rest_profile": "fortinet"}}, zap.NewNop())
	assert.Error(t, err)
}
