// Package notify delivers device status changes and audit alerts from the
// event bus to external sinks: an HTTP webhook, a NATS subject and an AMQP
// queue.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/HerbHall/netvault/internal/config"
	"github.com/HerbHall/netvault/internal/event"
)

// Notifier sends one encoded message to a sink.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg Message, body []byte) error
	Close() error
}

// Message is the JSON document every notifier delivers.
type Message struct {
	Event     string `json:"event"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

// Dispatcher fans bus events out to every configured notifier.
type Dispatcher struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(logger *zap.Logger, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers, logger: logger}
}

// Len returns the number of notifiers.
func (d *Dispatcher) Len() int { return len(d.notifiers) }

// Subscribe registers the dispatcher for status and alert events and returns
// a function that removes both subscriptions.
func (d *Dispatcher) Subscribe(bus *event.Bus) (unsubscribe func()) {
	offStatus := bus.Subscribe(event.TopicDeviceStatusChanged, d.Handle)
	offAlert := bus.Subscribe(event.TopicAlertTriggered, d.Handle)
	return func() {
		offStatus()
		offAlert()
	}
}

// Handle encodes an event and hands it to every notifier. Delivery failures
// are logged.
func (d *Dispatcher) Handle(ctx context.Context, e event.Event) {
	if len(d.notifiers) == 0 {
		return
	}
	msg := Message{
		Event:     e.Topic,
		Source:    e.Source,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		Data:      e.Payload,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		d.logger.Error("failed to marshal notification",
			zap.String("topic", e.Topic),
			zap.Error(err),
		)
		return
	}
	for _, n := range d.notifiers {
		if err := n.Notify(ctx, msg, body); err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("notifier", n.Name()),
				zap.String("topic", e.Topic),
				zap.Error(err),
			)
			continue
		}
		d.logger.Debug("notification delivered",
			zap.String("notifier", n.Name()),
			zap.String("topic", e.Topic),
		)
	}
}

// Close closes every notifier.
func (d *Dispatcher) Close() error {
	var errs *multierror.Error
	for _, n := range d.notifiers {
		if err := n.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close %s: %w", n.Name(), err))
		}
	}
	return errs.ErrorOrNil()
}

// FromConfig builds the notifiers whose URL is configured. Notifiers already
// opened are closed again when a later one fails.
func FromConfig(cfg config.NotifyConfig, logger *zap.Logger) ([]Notifier, error) {
	var out []Notifier
	fail := func(err error) ([]Notifier, error) {
		for _, n := range out {
			_ = n.Close()
		}
		return nil, err
	}

	if cfg.Webhook.URL != "" {
		out = append(out, NewWebhook(cfg.Webhook, logger.Named("webhook")))
	}
	if cfg.NATS.URL != "" {
		n, err := DialNATS(cfg.NATS, logger.Named("nats"))
		if err != nil {
			return fail(err)
		}
		out = append(out, n)
	}
	if cfg.AMQP.URL != "" {
		a, err := DialAMQP(cfg.AMQP, logger.Named("amqp"))
		if err != nil {
			return fail(err)
		}
		out = append(out, a)
	}
	return out, nil
}
