package service

import (
	"math"
	"time"

	"github.com/alexanderramin/complytrack/internal/domain"
)

// TaskAnalytics summarises a set of tasks. Rates are percentages rounded to
// one decimal. Cancelled tasks count towards the totals but not towards
// completion rate or average progress.
type TaskAnalytics struct {
	Total      int
	ByStatus   map[domain.TaskStatus]int
	ByPriority map[domain.Priority]int
	ByType     map[domain.TaskType]int

	Overdue         int
	CompletionRate  float64
	AverageProgress float64
	OnTimeRate      float64

	EstimatedHours float64
	ActualHours    float64

	GeneratedAt time.Time
}

func computeTaskAnalytics(tasks []*domain.Task, now time.Time) *TaskAnalytics {
	a := &TaskAnalytics{
		Total:       len(tasks),
		ByStatus:    make(map[domain.TaskStatus]int),
		ByPriority:  make(map[domain.Priority]int),
		ByType:      make(map[domain.TaskType]int),
		GeneratedAt: now,
	}

	var active, completed, onTime, progressSum int
	for _, t := range tasks {
		a.ByStatus[t.Status]++
		a.ByPriority[t.Priority]++
		a.ByType[t.Type]++
		a.EstimatedHours += t.EstimatedHours
		a.ActualHours += t.ActualHours
		if t.IsOverdue(now) {
			a.Overdue++
		}
		if t.Status == domain.TaskCancelled {
			continue
		}
		active++
		progressSum += t.Progress
		if t.Status == domain.TaskCompleted {
			completed++
			if t.CompletedAt != nil && !t.CompletedAt.After(t.DueDate) {
				onTime++
			}
		}
	}

	a.CompletionRate = percent(completed, active)
	a.OnTimeRate = percent(onTime, completed)
	if active > 0 {
		a.AverageProgress = round1(float64(progressSum) / float64(active))
	}
	return a
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round1(100 * float64(part) / float64(whole))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
