package ssh

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/HerbHall/netvault/internal/connector"
)

// remote is an established SSH connection able to run one command per session.
type remote interface {
	Run(cmd string) (string, error)
	Close() error
}

// dialFunc opens a connection. Tests replace it with an in-memory fake.
type dialFunc func(network, addr string, cfg *ssh.ClientConfig) (remote, error)

// dialSSH bounds the TCP dial and the SSH handshake together by cfg.Timeout.
func dialSSH(network, addr string, cfg *ssh.ClientConfig) (remote, error) {
	conn, err := net.DialTimeout(network, addr, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(cfg.Timeout)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set handshake deadline: %w", err)
		}
	}
	sc, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		sc.Close()
		return nil, fmt.Errorf("clear handshake deadline: %w", err)
	}
	return &sshRemote{client: ssh.NewClient(sc, chans, reqs)}, nil
}

type sshRemote struct {
	client *ssh.Client
}

// Run executes cmd in a fresh session and returns its stdout. A non-zero
// exit status still yields the captured output since network CLIs often
// exit non-zero on informational commands.
func (r *sshRemote) Run(cmd string) (string, error) {
	sess, err := r.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	var stdout bytes.Buffer
	sess.Stdout = &stdout
	if err := sess.Run(cmd); err != nil {
		var exitErr *ssh.ExitError
		var missing *ssh.ExitMissingError
		if errors.As(err, &exitErr) || errors.As(err, &missing) {
			return stdout.String(), nil
		}
		return "", fmt.Errorf("run %q: %w", cmd, err)
	}
	return stdout.String(), nil
}

func (r *sshRemote) Close() error {
	return r.client.Close()
}

// buildAuthMethods collects public-key and password auth from the credential.
func buildAuthMethods(secret connector.Values) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	key := []byte(secret.String("private_key", ""))
	if path := secret.String("key_file", ""); len(key) == 0 && path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading private key: %w", err)
		}
		key = b
	}
	if len(key) > 0 {
		var (
			signer ssh.Signer
			err    error
		)
		if pass := secret.String("passphrase", ""); pass != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(pass))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if pw := secret.String("password", ""); pw != "" {
		methods = append(methods, ssh.Password(pw))
	}

	if len(methods) == 0 {
		return nil, errors.New("no SSH authentication methods configured")
	}
	return methods, nil
}

// buildHostKeyCallback verifies against a known_hosts file when one is
// configured and otherwise accepts any host key.
func buildHostKeyCallback(path string, logger *zap.Logger) (ssh.HostKeyCallback, bool, error) {
	if path != "" {
		cb, err := knownhosts.New(path)
		if err != nil {
			return nil, false, fmt.Errorf("parsing known_hosts %s: %w", path, err)
		}
		return cb, true, nil
	}
	logger.Warn("ssh host key verification is disabled, set known_hosts to enable it")
	return ssh.InsecureIgnoreHostKey(), false, nil //nolint:gosec // G106: opt-in via missing known_hosts
}
