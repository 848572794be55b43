package service

import (
	"context"
	"log/slog"

	"github.com/alexanderramin/complytrack/internal/events"
	"github.com/alexanderramin/complytrack/internal/scheduler"
	"github.com/google/uuid"
)

// Option configures a service.
type Option func(*settings)

type settings struct {
	clock          Clock
	publisher      events.Publisher
	observers      []UseCaseObserver
	logger         *slog.Logger
	maxOccurrences int
	newID          func() string
}

func WithClock(c Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithPublisher sets where domain events go once their transaction commits.
func WithPublisher(p events.Publisher) Option {
	return func(s *settings) { s.publisher = p }
}

func WithObserver(o UseCaseObserver) Option {
	return func(s *settings) { s.observers = append(s.observers, o) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithMaxOccurrences caps how many instances one recurring template may
// expand into.
func WithMaxOccurrences(n int) Option {
	return func(s *settings) { s.maxOccurrences = n }
}

func newSettings(opts []Option) settings {
	s := settings{
		clock:          SystemClock{},
		publisher:      events.Noop{},
		logger:         slog.New(slog.DiscardHandler),
		maxOccurrences: scheduler.DefaultMaxOccurrences,
		newID:          func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.publisher == nil {
		s.publisher = events.Noop{}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// publish sends events after a successful commit. Delivery failures are
// logged and never fail the use case.
func (s *settings) publish(ctx context.Context, evts ...events.Event) {
	for _, e := range evts {
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.logger.WarnContext(ctx, "event publish failed",
				"event", e.Type, "entity_id", e.EntityID, "error", err)
		}
	}
}

func (s *settings) event(typ, entityID, actor string, data map[string]any) events.Event {
	return events.Event{
		Type:       typ,
		EntityID:   entityID,
		Actor:      actor,
		OccurredAt: s.clock.Now(),
		Data:       data,
	}
}
