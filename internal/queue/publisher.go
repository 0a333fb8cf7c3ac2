package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-booking/internal/model"
)

// ErrPublisherClosed is returned by Notify after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// publishChannel is the subset of *amqp.Channel the publisher uses.
type publishChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// opener establishes a channel and returns it with the connection that
// owns it.
type opener func() (publishChannel, io.Closer, error)

// Publisher publishes booking events to a durable queue.  It keeps one
// connection and channel open and re-establishes them lazily after a
// failure, so a broker outage costs one failed Notify per attempt rather
// than a dial per event.
type Publisher struct {
	queue string
	open  opener
	log   *zap.Logger

	mu     sync.Mutex
	ch     publishChannel
	conn   io.Closer
	closed bool
}

// NewPublisher returns a Publisher for the broker at url.  No connection
// is made until the first event.
func NewPublisher(url, queue string, log *zap.Logger) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		queue: queue,
		log:   log,
		open: func() (publishChannel, io.Closer, error) {
			conn, err := amqp.Dial(url)
			if err != nil {
				return nil, nil, fmt.Errorf("dial broker: %w", err)
			}
			ch, err := conn.Channel()
			if err != nil {
				_ = conn.Close()
				return nil, nil, fmt.Errorf("channel open: %w", err)
			}
			return ch, conn, nil
		},
	}
}

// Notify publishes ev as a persistent JSON message.  It satisfies
// service.Notifier.
func (p *Publisher) Notify(ctx context.Context, ev model.BookingEvent) error {
	body, err := json.Marshal(NewBookingMessage(ev))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	if err := p.ensureChannel(); err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    ev.ID,
		Type:         string(ev.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	p.log.Debug("booking event published",
		zap.String("event_id", ev.ID),
		zap.String("type", string(ev.Type)),
		zap.Uint64("booking_id", ev.Booking.ID),
	)
	return nil
}

// ensureChannel opens a channel and declares the queue when none is
// open.  The caller holds p.mu.
func (p *Publisher) ensureChannel() error {
	if p.ch != nil {
		return nil
	}
	ch, conn, err := p.open()
	if err != nil {
		return err
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		if conn != nil {
			_ = conn.Close()
		}
		return fmt.Errorf("queue declare: %w", err)
	}
	p.ch, p.conn = ch, conn
	return nil
}

// reset drops the current channel and connection.  The caller holds p.mu.
func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// Close releases the connection.  Later Notify calls fail.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.reset()
	return nil
}
