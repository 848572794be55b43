package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestAddMonthsClamped(t *testing.T) {
	cases := []struct {
		name   string
		in     time.Time
		months int
		want   time.Time
	}{
		{"same day", date(2024, 1, 15), 1, date(2024, 2, 15)},
		{"leap february", date(2024, 1, 31), 1, date(2024, 2, 29)},
		{"common february", date(2023, 1, 31), 1, date(2023, 2, 28)},
		{"thirty day month", date(2024, 3, 31), 1, date(2024, 4, 30)},
		{"year rollover", date(2024, 12, 15), 1, date(2025, 1, 15)},
		{"leap day plus year", date(2024, 2, 29), 12, date(2025, 2, 28)},
		{"backwards", date(2024, 3, 31), -1, date(2024, 2, 29)},
		{"backwards over year", date(2024, 1, 15), -1, date(2023, 12, 15)},
		{"zero", date(2024, 5, 31), 0, date(2024, 5, 31)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AddMonthsClamped(tc.in, tc.months))
		})
	}
}

func TestAddMonthsClamped_KeepsTimeOfDay(t *testing.T) {
	in := time.Date(2024, 1, 31, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 29, 9, 30, 0, 0, time.UTC), AddMonthsClamped(in, 1))
}

func TestAdvance_UnknownPattern(t *testing.T) {
	_, err := Advance(date(2024, 1, 1), domain.RecurrencePattern("hourly"), 1)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestGenerateOccurrences_MonthlyScenario(t *testing.T) {
	occ, err := GenerateOccurrences(RecurrenceRule{
		Pattern:  domain.RecurMonthly,
		Interval: 1,
		Start:    date(2024, 1, 15),
		End:      ptr(date(2024, 4, 15)),
	}, 0)
	require.NoError(t, err)

	want := []Occurrence{
		{Start: date(2024, 1, 15), Due: date(2024, 2, 15)},
		{Start: date(2024, 2, 15), Due: date(2024, 3, 15)},
		{Start: date(2024, 3, 15), Due: date(2024, 4, 15)},
	}
	assert.Equal(t, want, occ)
}

func TestGenerateOccurrences_MonthEndAnchorDoesNotDrift(t *testing.T) {
	occ, err := GenerateOccurrences(RecurrenceRule{
		Pattern:  domain.RecurMonthly,
		Interval: 1,
		Start:    date(2024, 1, 31),
		End:      ptr(date(2024, 5, 31)),
	}, 0)
	require.NoError(t, err)
	require.Len(t, occ, 4)

	assert.Equal(t, date(2024, 2, 29), occ[0].Due)
	assert.Equal(t, date(2024, 3, 31), occ[1].Due, "returns to the 31st after February")
	assert.Equal(t, date(2024, 4, 30), occ[2].Due)
	assert.Equal(t, date(2024, 5, 31), occ[3].Due)
}

func TestGenerateOccurrences_YearlyLeapAnchor(t *testing.T) {
	occ, err := GenerateOccurrences(RecurrenceRule{
		Pattern:  domain.RecurYearly,
		Interval: 2,
		Start:    date(2024, 2, 29),
		End:      ptr(date(2030, 3, 1)),
	}, 0)
	require.NoError(t, err)
	require.Len(t, occ, 3)
	assert.Equal(t, date(2026, 2, 28), occ[0].Due)
	assert.Equal(t, date(2028, 2, 29), occ[1].Due)
	assert.Equal(t, date(2030, 2, 28), occ[2].Due)
}

func TestGenerateOccurrences_EndEqualsStart(t *testing.T) {
	occ, err := GenerateOccurrences(RecurrenceRule{
		Pattern:  domain.RecurWeekly,
		Interval: 1,
		Start:    date(2024, 1, 1),
		End:      ptr(date(2024, 1, 1)),
	}, 0)
	require.NoError(t, err)
	assert.Empty(t, occ)
}

func TestGenerateOccurrences_Validation(t *testing.T) {
	start := date(2024, 1, 1)
	end := date(2024, 6, 1)

	cases := []struct {
		name string
		rule RecurrenceRule
	}{
		{"open ended", RecurrenceRule{Pattern: domain.RecurDaily, Interval: 1, Start: start}},
		{"zero interval", RecurrenceRule{Pattern: domain.RecurDaily, Interval: 0, Start: start, End: &end}},
		{"negative interval", RecurrenceRule{Pattern: domain.RecurDaily, Interval: -2, Start: start, End: &end}},
		{"unknown pattern", RecurrenceRule{Pattern: "fortnightly", Interval: 1, Start: start, End: &end}},
		{"missing start", RecurrenceRule{Pattern: domain.RecurDaily, Interval: 1, End: &end}},
		{"end before start", RecurrenceRule{Pattern: domain.RecurDaily, Interval: 1, Start: end, End: &start}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			occ, err := GenerateOccurrences(tc.rule, 0)
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Nil(t, occ)
		})
	}
}

func TestGenerateOccurrences_OpenEndedIsDistinct(t *testing.T) {
	_, err := GenerateOccurrences(RecurrenceRule{
		Pattern: domain.RecurMonthly, Interval: 1, Start: date(2024, 1, 1),
	}, 0)
	require.ErrorIs(t, err, ErrOpenEndedRecurrence)
}

func TestGenerateOccurrences_Cap(t *testing.T) {
	start := date(2024, 1, 1)

	occ, err := GenerateOccurrences(RecurrenceRule{
		Pattern: domain.RecurDaily, Interval: 1, Start: start, End: ptr(start.AddDate(0, 0, 10)),
	}, 10)
	require.NoError(t, err)
	assert.Len(t, occ, 10, "exactly at the cap is allowed")

	_, err = GenerateOccurrences(RecurrenceRule{
		Pattern: domain.RecurDaily, Interval: 1, Start: start, End: ptr(start.AddDate(6, 0, 0)),
	}, 10)
	require.ErrorIs(t, err, ErrTooManyOccurrences)
}

func TestRuleForTask_FallsBackToDueDate(t *testing.T) {
	end := date(2024, 12, 31)
	task := &domain.Task{
		DueDate:            date(2024, 3, 1),
		RecurrencePattern:  domain.RecurMonthly,
		RecurrenceInterval: 3,
		RecurrenceEndDate:  &end,
	}
	rule := RuleForTask(task)
	assert.Equal(t, date(2024, 3, 1), rule.Start)
	assert.Equal(t, 3, rule.Interval)
	assert.Equal(t, &end, rule.End)
}

// TestGenerateOccurrences_Invariants property-tests ordering, the end
// boundary, contiguity, and the day-arithmetic count for fixed-length patterns.
func TestGenerateOccurrences_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	patterns := []domain.RecurrencePattern{
		domain.RecurDaily, domain.RecurWeekly, domain.RecurMonthly, domain.RecurYearly,
	}

	for trial := 0; trial < 300; trial++ {
		pattern := patterns[rng.Intn(len(patterns))]
		interval := rng.Intn(4) + 1
		start := date(2024, 1, 1).AddDate(0, 0, rng.Intn(366))
		spanDays := rng.Intn(800)
		end := start.AddDate(0, 0, spanDays)

		occ, err := GenerateOccurrences(RecurrenceRule{
			Pattern: pattern, Interval: interval, Start: start, End: &end,
		}, 0)
		require.NoError(t, err, "trial %d", trial)

		for i, o := range occ {
			assert.True(t, o.Start.Before(o.Due), "trial %d: start before due", trial)
			assert.False(t, o.Due.After(end), "trial %d: due %s past end %s", trial, o.Due, end)
			assert.False(t, o.Start.After(end), "trial %d: start past end", trial)
			if i > 0 {
				assert.True(t, occ[i-1].Due.Before(o.Due), "trial %d: due dates strictly increase", trial)
				assert.Equal(t, occ[i-1].Due, o.Start, "trial %d: windows are contiguous", trial)
			}
		}
		if len(occ) > 0 {
			assert.Equal(t, start, occ[0].Start)
		}

		switch pattern {
		case domain.RecurDaily:
			assert.Len(t, occ, spanDays/interval, "trial %d daily count", trial)
		case domain.RecurWeekly:
			assert.Len(t, occ, spanDays/(7*interval), "trial %d weekly count", trial)
		}
	}
}
