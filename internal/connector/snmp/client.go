package snmp

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

// client is the subset of gosnmp the connector needs. Tests substitute a fake.
type client interface {
	Connect() error
	Close() error
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	Walk(rootOid string) ([]gosnmp.SnmpPDU, error)
}

// goSNMPClient adapts *gosnmp.GoSNMP to client.
type goSNMPClient struct {
	*gosnmp.GoSNMP
}

func (g goSNMPClient) Close() error {
	if g.Conn == nil {
		return nil
	}
	return g.Conn.Close()
}

// Walk uses GETBULK where the protocol version allows it.
func (g goSNMPClient) Walk(rootOid string) ([]gosnmp.SnmpPDU, error) {
	if g.Version == gosnmp.Version1 {
		return g.WalkAll(rootOid)
	}
	return g.BulkWalkAll(rootOid)
}

// parseVersion maps a configured version string to the gosnmp constant.
func parseVersion(s string) (gosnmp.SnmpVersion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "v1":
		return gosnmp.Version1, nil
	case "", "2", "2c", "v2", "v2c":
		return gosnmp.Version2c, nil
	case "3", "v3":
		return gosnmp.Version3, nil
	default:
		return 0, fmt.Errorf("unsupported SNMP version %q", s)
	}
}

// newGoSNMP builds an unconnected gosnmp session from the connector settings.
func (c *Connector) newGoSNMP() (client, error) {
	g := &gosnmp.GoSNMP{
		Target:         c.target.Host,
		Port:           uint16(c.port), //nolint:gosec // port validated by New
		Version:        c.version,
		Timeout:        c.timeout,
		Retries:        c.retries,
		MaxRepetitions: maxRepetitions,
	}

	if c.version != gosnmp.Version3 {
		g.Community = c.community
		return goSNMPClient{g}, nil
	}

	secret := c.target.Secret
	settings := c.target.Settings()
	auth := mapAuthProtocol(settings.String("auth_proto", "sha"))
	priv := mapPrivProtocol(settings.String("priv_proto", "aes"))

	g.SecurityModel = gosnmp.UserSecurityModel
	switch {
	case auth == gosnmp.NoAuth:
		g.MsgFlags = gosnmp.NoAuthNoPriv
	case priv == gosnmp.NoPriv:
		g.MsgFlags = gosnmp.AuthNoPriv
	default:
		g.MsgFlags = gosnmp.AuthPriv
	}
	g.SecurityParameters = &gosnmp.UsmSecurityParameters{
		UserName:                 secret.String("username", ""),
		AuthenticationProtocol:   auth,
		AuthenticationPassphrase: secret.String("auth_key", ""),
		PrivacyProtocol:          priv,
		PrivacyPassphrase:        secret.String("priv_key", ""),
	}
	return goSNMPClient{g}, nil
}

// mapAuthProtocol converts an auth protocol name to the gosnmp constant.
// Unknown names disable authentication.
func mapAuthProtocol(s string) gosnmp.SnmpV3AuthProtocol {
	switch strings.ToUpper(strings.ReplaceAll(s, "-", "")) {
	case "MD5":
		return gosnmp.MD5
	case "SHA", "SHA1":
		return gosnmp.SHA
	case "SHA224":
		return gosnmp.SHA224
	case "SHA256":
		return gosnmp.SHA256
	case "SHA384":
		return gosnmp.SHA384
	case "SHA512":
		return gosnmp.SHA512
	default:
		return gosnmp.NoAuth
	}
}

// mapPrivProtocol converts a privacy protocol name to the gosnmp constant.
// Unknown names disable privacy.
func mapPrivProtocol(s string) gosnmp.SnmpV3PrivProtocol {
	switch strings.ToUpper(strings.ReplaceAll(s, "-", "")) {
	case "DES":
		return gosnmp.DES
	case "AES", "AES128":
		return gosnmp.AES
	case "AES192":
		return gosnmp.AES192
	case "AES256":
		return gosnmp.AES256
	default:
		return gosnmp.NoPriv
	}
}

const (
	maxRepetitions = 25
	defaultPort    = 161
	defaultTimeout = 2 * time.Second
	defaultRetries = 1
)
