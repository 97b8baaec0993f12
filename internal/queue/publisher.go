package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// Lifecycle events emitted on the integration feed.
const (
	EventFollowUpCompleted = "followup.completed"
	EventEmailFailed       = "email.failed"
	EventLeadDeleted       = "lead.deleted"
)

// Envelope is the wire format on the crm_events queue.
type Envelope struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	EmittedAt time.Time   `json:"emitted_at"`
}

// Publisher pushes lifecycle events onto a durable queue for downstream
// consumers (dashboards, analytics) that are outside this service.
type Publisher struct {
	mu        sync.Mutex
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
}

func NewPublisher(url, queueName string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}
	return &Publisher{conn: conn, channel: ch, queueName: queueName}, nil
}

// Publish sends one envelope, retrying transient broker errors with
// bounded exponential backoff. A nil receiver is a no-op so callers can
// run without a broker configured.
func (p *Publisher) Publish(event string, data interface{}) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(Envelope{Event: event, Data: data, EmittedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event, err)
	}

	op := func() error {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.channel.Publish(
			"",          // default exchange
			p.queueName, // routing key
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
			},
		)
	}
	err = backoff.Retry(op, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3))
	if err != nil {
		logrus.Errorf("failed to publish %s event: %v", event, err)
		return err
	}
	return nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
