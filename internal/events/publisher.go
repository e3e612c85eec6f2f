// Package events publishes transaction list changes to an AMQP exchange so
// other services can react to new income and expenses.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

const (
	// DefaultExchange receives every change message
	DefaultExchange = "pennywise.events"

	// RoutingKey is the routing key of transaction change messages
	RoutingKey = "transactions.changed"

	publishTimeout = 5 * time.Second
	queueSize      = 64
)

// TransactionsChanged is the message body published after each change
type TransactionsChanged struct {
	UserID    string                 `json:"user_id"`
	Version   uint64                 `json:"version"`
	Count     int                    `json:"count"`
	Income    decimal.Decimal        `json:"income"`
	Expense   decimal.Decimal        `json:"expense"`
	Latest    *pennywise.Transaction `json:"latest,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// channel is the subset of *amqp091.Channel the publisher uses
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher is a pennywise.TransactionObserver that forwards changes to
// AMQP from a background goroutine. The snapshot delivered on Subscribe
// is treated as the baseline and not published.
type Publisher struct {
	conn     *amqp091.Connection
	channel  channel
	exchange string
	userID   string

	mu       sync.Mutex
	seen     bool
	last     uint64
	queue    chan TransactionsChanged
	done     chan struct{}
	closeOne sync.Once
}

// Dial connects to the broker and declares the topic exchange
func Dial(url, exchange, userID string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	p := newPublisher(ch, exchange, userID)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange, userID string) *Publisher {
	p := &Publisher{
		channel:  ch,
		exchange: exchange,
		userID:   userID,
		queue:    make(chan TransactionsChanged, queueSize),
		done:     make(chan struct{}),
	}
	go p.run(p.queue)
	return p
}

// TransactionsChanged queues a message for every version after the baseline
func (p *Publisher) TransactionsChanged(version uint64, snapshot []pennywise.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.seen {
		p.seen, p.last = true, version
		return
	}
	if version <= p.last || p.queue == nil {
		return
	}
	p.last = version

	msg := TransactionsChanged{
		UserID:    p.userID,
		Version:   version,
		Count:     len(snapshot),
		Income:    pennywise.SumByType(snapshot, pennywise.KindIncome),
		Expense:   pennywise.SumByType(snapshot, pennywise.KindExpense),
		Timestamp: time.Now().UTC(),
	}
	if len(snapshot) > 0 {
		latest := snapshot[0]
		msg.Latest = &latest
	}

	select {
	case p.queue <- msg:
	default:
		slog.Warn("Event queue full, dropping transaction change", "version", version)
	}
}

func (p *Publisher) run(queue <-chan TransactionsChanged) {
	defer close(p.done)
	for msg := range queue {
		if err := p.publish(msg); err != nil {
			slog.Error("Failed to publish transaction change", "version", msg.Version, "error", err)
		}
	}
}

func (p *Publisher) publish(msg TransactionsChanged) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange, // exchange
		RoutingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.Debug("Published transaction change",
		"version", msg.Version,
		"count", msg.Count,
		"exchange", p.exchange)
	return nil
}

// Close flushes queued messages and closes the connection
func (p *Publisher) Close() error {
	p.closeOne.Do(func() {
		p.mu.Lock()
		close(p.queue)
		p.queue = nil
		p.mu.Unlock()
	})
	<-p.done

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
