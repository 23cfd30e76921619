// Package amqpad publishes operator alerts (overbookings, paused channels)
// to a RabbitMQ queue. Publishing is fire-and-forget: a broker outage must
// never fail a sync run, so errors are logged and swallowed.
package amqpad

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/himmu2625/baithkaGhar-sub031/internal/domain"
)

const alertQueue = "channel.alerts"

type alertMessage struct {
	Kind       string    `json:"kind"`
	PropertyID int64     `json:"property_id"`
	Channel    string    `json:"channel,omitempty"`
	Detail     string    `json:"detail"`
	At         time.Time `json:"at"`
}

// Publisher implements domain.Notifier over AMQP. The connection is opened
// lazily and reused; a failed publish drops the connection so the next alert
// redials.
type Publisher struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func New(url string) *Publisher { return &Publisher{url: url} }

func (p *Publisher) Alert(ctx context.Context, a domain.Alert) {
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}
	body, err := json.Marshal(alertMessage{
		Kind: a.Kind, PropertyID: a.PropertyID, Channel: a.Channel, Detail: a.Detail, At: a.At,
	})
	if err != nil {
		log.Warn().Err(err).Msg("amqp: marshal alert")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.publish(ctx, body); err != nil {
		p.reset()
		// one redial per alert
		if err = p.publish(ctx, body); err != nil {
			p.reset()
			log.Warn().Err(err).Str("kind", a.Kind).Int64("property_id", a.PropertyID).
				Msg("amqp: alert dropped")
		}
	}
}

// publish ensures the connection and queue exist, then sends. Caller holds mu.
func (p *Publisher) publish(ctx context.Context, body []byte) error {
	if p.ch == nil {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return err
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return err
		}
		// Durable so alerts survive broker restarts.
		if _, err := ch.QueueDeclare(alertQueue, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return err
		}
		p.conn, p.ch = conn, ch
	}
	return p.ch.PublishWithContext(ctx, "", alertQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}
