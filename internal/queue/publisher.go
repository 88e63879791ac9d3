package queue

import (
    "context"
    "encoding/json"
    "errors"
    "sync"
    "time"

    "github.com/charmbracelet/log"
    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends audit events. Implementations never panic; errors are
// returned so callers may log and continue.
type Publisher interface {
    Publish(ctx context.Context, ev AuditEvent) error
}

// NewPublisher returns an AMQP publisher for url, or a no-op publisher
// when url is empty.
func NewPublisher(url string) Publisher {
    if url == "" {
        return NoopPublisher{}
    }
    return &AMQPPublisher{url: url}
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, AuditEvent) error { return nil }

// AMQPPublisher keeps one connection and channel to the broker and redials
// when either has been closed underneath it.
type AMQPPublisher struct {
    url string

    mu   sync.Mutex
    conn *amqp.Connection
    ch   *amqp.Channel
}

// channel returns the open channel, dialing and declaring the durable audit
// queue first if needed. Callers hold p.mu.
func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
    if p.ch != nil && !p.ch.IsClosed() && !p.conn.IsClosed() {
        return p.ch, nil
    }
    p.closeLocked()

    conn, err := amqp.Dial(p.url)
    if err != nil {
        log.Warn("rabbitmq: dial failed", "err", err)
        return nil, err
    }
    ch, err := conn.Channel()
    if err != nil {
        log.Warn("rabbitmq: channel open failed", "err", err)
        _ = conn.Close()
        return nil, err
    }
    if _, err := ch.QueueDeclare(
        AuditQueueName, // name
        true,           // durable
        false,          // autoDelete
        false,          // exclusive
        false,          // noWait
        nil,            // args
    ); err != nil {
        log.Warn("rabbitmq: queue declare failed", "err", err)
        _ = ch.Close()
        _ = conn.Close()
        return nil, err
    }
    p.conn, p.ch = conn, ch
    return ch, nil
}

// Publish sends ev as a persistent JSON message on the default exchange.
func (p *AMQPPublisher) Publish(ctx context.Context, ev AuditEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }

    p.mu.Lock()
    defer p.mu.Unlock()
    ch, err := p.channel()
    if err != nil {
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         ev.Kind,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", AuditQueueName, false, false, pub); err != nil {
        log.Warn("rabbitmq: publish failed", "kind", ev.Kind, "err", err)
        p.closeLocked()
        return err
    }
    return nil
}

// Close releases the broker connection. A later Publish redials.
func (p *AMQPPublisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.closeLocked()
    return nil
}

func (p *AMQPPublisher) closeLocked() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.ch, p.conn = nil, nil
}

var (
    ErrDispatcherFull   = errors.New("audit dispatcher queue is full")
    ErrDispatcherClosed = errors.New("audit dispatcher is closed")
)

const dispatchTimeout = 5 * time.Second

// Dispatcher feeds events to a Publisher from a single worker so the
// request that produced them never waits on the broker. At most buffer
// events are pending; Publish fails fast with ErrDispatcherFull beyond that.
type Dispatcher struct {
    next   Publisher
    events chan AuditEvent
    done   chan struct{}

    mu     sync.RWMutex
    closed bool
}

// NewDispatcher starts the worker. Stop it with Close.
func NewDispatcher(next Publisher, buffer int) *Dispatcher {
    if buffer < 1 {
        buffer = 1
    }
    d := &Dispatcher{
        next:   next,
        events: make(chan AuditEvent, buffer),
        done:   make(chan struct{}),
    }
    go d.run()
    return d
}

// Publish enqueues ev without blocking.
func (d *Dispatcher) Publish(_ context.Context, ev AuditEvent) error {
    d.mu.RLock()
    defer d.mu.RUnlock()
    if d.closed {
        return ErrDispatcherClosed
    }
    select {
    case d.events <- ev:
        return nil
    default:
        return ErrDispatcherFull
    }
}

func (d *Dispatcher) run() {
    defer close(d.done)
    for ev := range d.events {
        ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
        if err := d.next.Publish(ctx, ev); err != nil {
            log.Error("audit event not published", "kind", ev.Kind, "subject_id", ev.SubjectID, "err", err)
        }
        cancel()
    }
    if c, ok := d.next.(interface{ Close() error }); ok {
        _ = c.Close()
    }
}

// Close stops accepting events and waits until every pending one has been
// handed to the publisher, or until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
    d.mu.Lock()
    if !d.closed {
        d.closed = true
        close(d.events)
    }
    d.mu.Unlock()

    select {
    case <-d.done:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}
