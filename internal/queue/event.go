// Package queue defines the audit events exchanged over the message broker,
// the publisher used by handlers and the consumer that writes them to disk.
package queue

import "time"

// AuditQueueName is the durable queue carrying audit events.
const AuditQueueName = "runly.audit"

// Audit event kinds.
const (
    KindRunCreated     = "run.created"
    KindRunDeleted     = "run.deleted"
    KindUserRegistered = "user.registered"
    KindUserDeleted    = "user.deleted"
    KindRatingCreated  = "rating.created"
    KindRatingDeleted  = "rating.deleted"
)

// AuditEvent is published after a state change has been committed. It
// carries enough for downstream consumers to log or alert without
// querying the primary database.
type AuditEvent struct {
    Kind       string            `json:"kind"`
    ActorID    uint64            `json:"actor_id"`
    SubjectID  uint64            `json:"subject_id"`
    Attributes map[string]string `json:"attributes,omitempty"`
    OccurredAt string            `json:"occurred_at"`
}

// NewAuditEvent stamps an event with the current UTC time.
func NewAuditEvent(kind string, actorID, subjectID uint64, attrs map[string]string) AuditEvent {
    return AuditEvent{
        Kind:       kind,
        ActorID:    actorID,
        SubjectID:  subjectID,
        Attributes: attrs,
        OccurredAt: time.Now().UTC().Format(time.RFC3339),
    }
}
