package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/expansionAgency/whatshub/internal/logging"
)

// RabbitPublisher pushes events onto a durable RabbitMQ queue so other
// internal tools can consume the message stream.
type RabbitPublisher struct {
	url   string
	queue string
	log   *logging.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitPublisher creates a publisher for the given broker URL and
// queue. The connection is established lazily on first publish so a
// slow broker never delays startup.
func NewRabbitPublisher(url, queue string, log *logging.Logger) *RabbitPublisher {
	return &RabbitPublisher{url: url, queue: queue, log: log.Sub("rabbitmq")}
}

func (p *RabbitPublisher) ensureChannel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil && !p.conn.IsClosed() {
		return p.channel, nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dialing rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring queue %s: %w", p.queue, err)
	}

	p.conn = conn
	p.channel = ch
	p.log.Info().Str("queue", p.queue).Msg("rabbitmq channel established")
	return ch, nil
}

func (p *RabbitPublisher) Notify(ctx context.Context, ev Event) error {
	ch, err := p.ensureChannel()
	if err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		// Drop the broken channel so the next publish redials.
		p.mu.Lock()
		p.channel = nil
		p.mu.Unlock()
		return fmt.Errorf("publishing to %s: %w", p.queue, err)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
