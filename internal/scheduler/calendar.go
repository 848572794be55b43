package scheduler

import (
	"fmt"
	"time"

	"github.com/alexanderramin/complytrack/internal/domain"
)

// AddMonthsClamped adds months to t keeping the day of month when the target
// month has it, and clamping to the month's last day otherwise
// (Jan 31 + 1 month = Feb 28 or Feb 29). Time of day and location are kept.
func AddMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + months
	year := y + floorDiv(total, 12)
	month := time.Month(total - floorDiv(total, 12)*12 + 1)

	if last := daysIn(year, month, t.Location()); d > last {
		d = last
	}
	return time.Date(year, month, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Advance moves t forward by steps units of pattern.
func Advance(t time.Time, pattern domain.RecurrencePattern, steps int) (time.Time, error) {
	switch pattern {
	case domain.RecurDaily:
		return t.AddDate(0, 0, steps), nil
	case domain.RecurWeekly:
		return t.AddDate(0, 0, 7*steps), nil
	case domain.RecurMonthly:
		return AddMonthsClamped(t, steps), nil
	case domain.RecurYearly:
		return AddMonthsClamped(t, 12*steps), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown recurrence pattern %q", domain.ErrValidation, pattern)
	}
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
