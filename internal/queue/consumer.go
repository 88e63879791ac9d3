package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/charmbracelet/log"
    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sethvargo/go-retry"
)

// AuditLog appends one line per audit event to a file.
type AuditLog struct {
    mu   sync.Mutex
    path string
}

func NewAuditLog(path string) *AuditLog { return &AuditLog{path: path} }

// Append writes ev as a single human-readable line.
func (a *AuditLog) Append(ev AuditEvent) error {
    a.mu.Lock()
    defer a.mu.Unlock()

    if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
        return fmt.Errorf("mkdir audit dir: %w", err)
    }
    f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open audit log: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write audit log: %w", err)
    }
    return nil
}

// FormatLine renders ev as
// "[occurred_at] kind | actor_id=1 | subject_id=2 | k=v ...\n".
// Attributes are sorted by key.
func FormatLine(ev AuditEvent) string {
    var b strings.Builder
    fmt.Fprintf(&b, "[%s] %s | actor_id=%d | subject_id=%d", ev.OccurredAt, ev.Kind, ev.ActorID, ev.SubjectID)
    keys := make([]string, 0, len(ev.Attributes))
    for k := range ev.Attributes {
        keys = append(keys, k)
    }
    sort.Strings(keys)
    for _, k := range keys {
        fmt.Fprintf(&b, " | %s=%q", k, ev.Attributes[k])
    }
    b.WriteByte('\n')
    return b.String()
}

// Consumer drains the audit queue into an AuditLog.
type Consumer struct {
    url string
    out *AuditLog
}

func NewConsumer(url string, out *AuditLog) *Consumer {
    return &Consumer{url: url, out: out}
}

// Run connects, consumes and reconnects with exponential backoff (1s
// doubling, capped at 30s) until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := retry.WithCappedDuration(30*time.Second, retry.NewExponential(time.Second))
    err := retry.Do(ctx, backoff, func(ctx context.Context) error {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            log.Warn("audit-consumer: failed to dial broker", "err", err)
            return retry.RetryableError(err)
        }
        defer func() { _ = conn.Close() }()

        if err := c.consume(ctx, conn); err != nil {
            log.Warn("audit-consumer: consume loop ended; reconnecting", "err", err)
            return retry.RetryableError(err)
        }
        return nil
    })
    if errors.Is(err, context.Canceled) || ctx.Err() != nil {
        return nil
    }
    return err
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Warn("audit-consumer: set QoS failed", "err", err)
    }
    if _, err := ch.QueueDeclare(AuditQueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(AuditQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }
    log.Info("audit-consumer: consuming", "queue", AuditQueueName)

    for {
        select {
        case <-ctx.Done():
            return nil
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.handle(d.Body); err != nil {
                log.Error("audit-consumer: handle message failed", "err", err)
                _ = d.Nack(false, false) // do not requeue a poison message
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func (c *Consumer) handle(body []byte) error {
    var ev AuditEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    return c.out.Append(ev)
}
