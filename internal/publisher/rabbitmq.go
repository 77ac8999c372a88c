package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"reader_sync/internal/domain"
)

// RabbitMQ forwards engine signals to a direct exchange.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	deviceID   string
	logger     *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
	// DeviceID tags every message with the installation that sent it.
	DeviceID string
}

// NewRabbitMQ connects and declares the durable signal exchange and queue.
// Declaring is idempotent, so every installation can run it on startup.
func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	if cfg.Exchange == "" || cfg.QueueName == "" {
		return nil, errors.New("rabbitmq exchange and queue name are required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err == nil {
		err = declareSignalTopology(ch, cfg)
	}
	if err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		deviceID:   cfg.DeviceID,
		logger:     logger.With("component", "publisher"),
	}, nil
}

func declareSignalTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// SignalMessage is the JSON body published for every engine signal.
type SignalMessage struct {
	DeviceID string        `json:"device_id,omitempty"`
	Signal   domain.Signal `json:"signal"`
}

// Notify publishes signal as a persistent JSON message.
func (r *RabbitMQ) Notify(ctx context.Context, signal domain.Signal) error {
	body, err := json.Marshal(SignalMessage{
		DeviceID: r.deviceID,
		Signal:   signal,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Type:         string(signal.Kind),
			Body:         body,
			Timestamp:    signal.Timestamp,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published signal", "kind", signal.Kind)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
