package queue

import (
    "context"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

// recorder collects published events. Until release is closed every
// Publish blocks, which keeps the dispatcher worker busy.
type recorder struct {
    release chan struct{}

    mu     sync.Mutex
    events []AuditEvent
    closed bool
}

func (r *recorder) Publish(_ context.Context, ev AuditEvent) error {
    <-r.release
    r.mu.Lock()
    defer r.mu.Unlock()
    r.events = append(r.events, ev)
    return nil
}

func (r *recorder) Close() error {
    r.mu.Lock()
    defer r.mu.Unlock()
    r.closed = true
    return nil
}

func TestNewPublisherWithoutURLIsNoop(t *testing.T) {
    _, ok := NewPublisher("").(NoopPublisher)
    assert.True(t, ok)
}

func TestDispatcherCloseDrainsPendingEvents(t *testing.T) {
    rec := &recorder{release: make(chan struct{})}
    close(rec.release)
    d := NewDispatcher(rec, 8)

    for i := uint64(1); i <= 5; i++ {
        require.NoError(t, d.Publish(context.Background(), NewAuditEvent(KindRunCreated, 1, i, nil)))
    }
    require.NoError(t, d.Close(context.Background()))

    require.Len(t, rec.events, 5)
    for i, ev := range rec.events {
        assert.Equal(t, uint64(i+1), ev.SubjectID)
    }
    assert.True(t, rec.closed)
    assert.ErrorIs(t, d.Publish(context.Background(), NewAuditEvent(KindRunCreated, 1, 6, nil)), ErrDispatcherClosed)
}

func TestDispatcherRejectsWhenBufferFull(t *testing.T) {
    rec := &recorder{release: make(chan struct{})}
    d := NewDispatcher(rec, 1)
    ctx := context.Background()

    // The worker takes the first event and blocks on it; the second fills
    // the buffer.
    require.NoError(t, d.Publish(ctx, NewAuditEvent(KindRunCreated, 1, 1, nil)))
    require.Eventually(t, func() bool { return len(d.events) == 0 }, time.Second, time.Millisecond)
    require.NoError(t, d.Publish(ctx, NewAuditEvent(KindRunCreated, 1, 2, nil)))
    assert.ErrorIs(t, d.Publish(ctx, NewAuditEvent(KindRunCreated, 1, 3, nil)), ErrDispatcherFull)

    close(rec.release)
    require.NoError(t, d.Close(ctx))
    assert.Len(t, rec.events, 2)
}

func TestDispatcherCloseHonoursDeadline(t *testing.T) {
    rec := &recorder{release: make(chan struct{})}
    d := NewDispatcher(rec, 4)
    require.NoError(t, d.Publish(context.Background(), NewAuditEvent(KindRunCreated, 1, 1, nil)))

    ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
    defer cancel()
    assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)

    close(rec.release)
    require.NoError(t, d.Close(context.Background()))
}
