package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/complytrack/internal/domain"
)

// DefaultMaxOccurrences caps a single generation run.
const DefaultMaxOccurrences = 1000

var (
	// ErrOpenEndedRecurrence is returned for a series without an end date.
	// Open-ended series are never expanded.
	ErrOpenEndedRecurrence = fmt.Errorf("%w: recurrence has no end date", domain.ErrValidation)

	ErrTooManyOccurrences = errors.New("recurrence exceeds the occurrence limit")
)

type Occurrence struct {
	Start time.Time
	Due   time.Time
}

type RecurrenceRule struct {
	Pattern  domain.RecurrencePattern
	Interval int
	Start    time.Time
	End      *time.Time
}

// RuleForTask builds the recurrence rule of a recurring template task. The
// series is anchored on the start date, falling back to the due date when
// no start was given.
func RuleForTask(t *domain.Task) RecurrenceRule {
	anchor := t.StartDate
	if anchor.IsZero() {
		anchor = t.DueDate
	}
	return RecurrenceRule{
		Pattern:  t.RecurrencePattern,
		Interval: t.RecurrenceInterval,
		Start:    anchor,
		End:      t.RecurrenceEndDate,
	}
}

func (r RecurrenceRule) Validate() error {
	if !domain.ValidRecurrencePatterns[string(r.Pattern)] {
		return fmt.Errorf("%w: unknown recurrence pattern %q", domain.ErrValidation, r.Pattern)
	}
	if r.Interval < 1 {
		return fmt.Errorf("%w: recurrence interval must be at least 1, got %d", domain.ErrValidation, r.Interval)
	}
	if r.Start.IsZero() {
		return fmt.Errorf("%w: recurrence start date is required", domain.ErrValidation)
	}
	if r.End == nil {
		return ErrOpenEndedRecurrence
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: recurrence end %s is before start %s",
			domain.ErrValidation, r.End.Format(time.DateOnly), r.Start.Format(time.DateOnly))
	}
	return nil
}

// GenerateOccurrences expands rule into consecutive (start, due) windows.
// Each window is one interval long and starts where the previous one ended.
// A window is emitted only while its due date does not pass the end date.
//
// Positions are computed from the series start (start + k*interval) rather
// than by chaining, so month-end anchors do not drift after a short month.
// maxOccurrences <= 0 means DefaultMaxOccurrences.
func GenerateOccurrences(rule RecurrenceRule, maxOccurrences int) ([]Occurrence, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}

	var out []Occurrence
	for k := 0; ; k++ {
		start, err := Advance(rule.Start, rule.Pattern, k*rule.Interval)
		if err != nil {
			return nil, err
		}
		due, err := Advance(rule.Start, rule.Pattern, (k+1)*rule.Interval)
		if err != nil {
			return nil, err
		}
		if due.After(*rule.End) {
			break
		}
		if len(out) == maxOccurrences {
			return nil, fmt.Errorf("%w: more than %d occurrences between %s and %s",
				ErrTooManyOccurrences, maxOccurrences,
				rule.Start.Format(time.DateOnly), rule.End.Format(time.DateOnly))
		}
		out = append(out, Occurrence{Start: start, Due: due})
	}
	return out, nil
}
