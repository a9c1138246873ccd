package notify

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/HerbHall/netvault/internal/config"
)

const defaultQueue = "netvault.alerts"

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQP publishes notifications to a durable queue through the default exchange.
type AMQP struct {
	conn  *amqp.Connection
	ch    amqpChannel
	queue string
}

// DialAMQP connects, opens a channel and declares the queue.
func DialAMQP(cfg config.AMQPConfig, logger *zap.Logger) (*AMQP, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	name := cfg.Queue
	if name == "" {
		name = defaultQueue
	}
	q, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", name, err)
	}
	logger.Info("amqp notifier connected", zap.String("queue", q.Name))

	a := newAMQP(ch, q.Name)
	a.conn = conn
	return a, nil
}

func newAMQP(ch amqpChannel, queue string) *AMQP {
	return &AMQP{ch: ch, queue: queue}
}

func (a *AMQP) Name() string { return "amqp" }

// Notify publishes body as a persistent JSON message.
func (a *AMQP) Notify(ctx context.Context, msg Message, body []byte) error {
	err := a.ch.PublishWithContext(ctx,
		"",      // exchange
		a.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Type:         msg.Event,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", a.queue, err)
	}
	return nil
}

func (a *AMQP) Close() error {
	err := a.ch.Close()
	if a.conn != nil {
		if cerr := a.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
