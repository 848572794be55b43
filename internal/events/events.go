// Package events carries domain events out of the service layer.
package events

import (
	"context"
	"sync"
	"time"
)

const (
	TaskCreated          = "task.created"
	TaskCompleted        = "task.completed"
	TaskBlocked          = "task.blocked"
	TaskUnblocked        = "task.unblocked"
	TaskAssigned         = "task.assigned"
	TaskCancelled        = "task.cancelled"
	TaskDeleted          = "task.deleted"
	InstancesGenerated   = "task.instances_generated"
	CertificateIssued    = "certificate.issued"
	CertificateRevoked   = "certificate.revoked"
	CertificatesExpired  = "certificate.expired"
	TrainingMatrixLoaded = "training.matrix_loaded"
)

// Event is a notification that something changed. Delivery is best effort.
type Event struct {
	Type       string         `json:"type"`
	EntityID   string         `json:"entity_id"`
	Actor      string         `json:"actor,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types lists the recorded event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
