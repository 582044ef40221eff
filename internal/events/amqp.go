package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/reclaim-app/reclaim/internal/apperr"
	"github.com/reclaim-app/reclaim/internal/logging"
	"github.com/reclaim-app/reclaim/internal/model"
)

const (
	publishTimeout = 5 * time.Second
	reconnectDelay = 5 * time.Second
)

// AMQPPublisher publishes JSON envelopes to a topic exchange
type AMQPPublisher struct {
	url      string
	exchange string
	log      *logging.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
	done    chan struct{}
}

// NewAMQPPublisher connects to RabbitMQ and declares the exchange
func NewAMQPPublisher(url, exchange string, log *logging.Logger) (*AMQPPublisher, error) {
	p := &AMQPPublisher{
		url:      url,
		exchange: exchange,
		log:      log.With("component", "events"),
		done:     make(chan struct{}),
	}
	if err := p.connect(); err != nil {
		return nil, err
	}

	go p.handleReconnect()

	p.log.Info("amqp publisher initialized", "exchange", exchange)
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return apperr.Unavailable("events.connect", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return apperr.Unavailable("events.channel", err)
	}

	err = channel.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}

	p.mu.Lock()
	p.conn = conn
	p.channel = channel
	p.mu.Unlock()
	return nil
}

// Publish sends payload wrapped in an Envelope
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	env := NewEnvelope(routingKey, payload)
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", routingKey, err)
	}

	p.mu.Lock()
	channel, closed := p.channel, p.closed
	p.mu.Unlock()
	if closed || channel == nil {
		return apperr.Unavailable("events.publish", errors.New("publisher closed"))
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = channel.PublishWithContext(
		ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    env.OccurredAt,
			MessageId:    env.ID,
			Type:         routingKey,
		},
	)
	if err != nil {
		return apperr.Unavailable("events.publish", err)
	}

	p.log.Debug("event published", "routing_key", routingKey, "body_size", len(body))
	return nil
}

func (p *AMQPPublisher) handleReconnect() {
	for {
		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()

		closeChan := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-p.done:
			return
		case closeErr, ok := <-closeChan:
			if !ok || closeErr == nil {
				return
			}
			p.log.Error("amqp connection closed, reconnecting", "error", closeErr)
		}

		for {
			select {
			case <-p.done:
				return
			case <-time.After(reconnectDelay):
			}
			if err := p.connect(); err != nil {
				p.log.Warn("amqp reconnect failed", "error", err)
				continue
			}
			p.log.Info("amqp reconnected", "exchange", p.exchange)
			break
		}
	}
}

// Close stops reconnection and closes the connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

// New builds the publisher selected by cfg.Driver ("none" or "amqp")
func New(cfg model.EventsConfig, log *logging.Logger) (Publisher, error) {
	switch cfg.Driver {
	case "", "none":
		return NopPublisher{}, nil
	case "amqp":
		p, err := NewAMQPPublisher(cfg.URL, cfg.Exchange, log)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, apperr.Invalid("events.new", "unknown events driver %q", cfg.Driver)
	}
}
