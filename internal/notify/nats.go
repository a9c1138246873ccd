package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/HerbHall/netvault/internal/config"
)

const defaultSubject = "netvault.alerts"

type natsPublisher interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATS publishes notifications on a subject.
type NATS struct {
	conn    natsPublisher
	subject string
}

// DialNATS connects to the configured server. The connection reconnects on
// its own; disconnects are logged.
func DialNATS(cfg config.NATSConfig, logger *zap.Logger) (*NATS, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("netvault"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	subject := cfg.Subject
	if subject == "" {
		subject = defaultSubject
	}
	logger.Info("nats notifier connected", zap.String("subject", subject))
	return newNATS(nc, subject), nil
}

func newNATS(conn natsPublisher, subject string) *NATS {
	return &NATS{conn: conn, subject: subject}
}

func (n *NATS) Name() string { return "nats" }

// Notify publishes body on the configured subject.
func (n *NATS) Notify(_ context.Context, _ Message, body []byte) error {
	if err := n.conn.Publish(n.subject, body); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}
	return nil
}

func (n *NATS) Close() error {
	n.conn.Close()
	return nil
}
