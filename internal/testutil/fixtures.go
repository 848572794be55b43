package testutil

import (
	"time"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/google/uuid"
)

// FixtureTime anchors every fixture date. Tests run their fixed clocks at
// the same instant, so fixture dates never drift with the wall clock.
var FixtureTime = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func now() time.Time {
	return FixtureTime
}

// Task options
type TaskOption func(*domain.Task)

func WithStatus(s domain.TaskStatus) TaskOption {
	return func(t *domain.Task) {
		t.Status = s
	}
}

func WithProgress(p int) TaskOption {
	return func(t *domain.Task) {
		t.Progress = p
	}
}

func WithPriority(p domain.Priority) TaskOption {
	return func(t *domain.Task) {
		t.Priority = p
	}
}

func WithType(tt domain.TaskType) TaskOption {
	return func(t *domain.Task) {
		t.Type = tt
	}
}

func WithFactory(id string) TaskOption {
	return func(t *domain.Task) {
		t.FactoryID = id
	}
}

func WithStartDate(d time.Time) TaskOption {
	return func(t *domain.Task) {
		t.StartDate = d
	}
}

func WithDueDate(d time.Time) TaskOption {
	return func(t *domain.Task) {
		t.DueDate = d
	}
}

func WithAssignees(ids ...string) TaskOption {
	return func(t *domain.Task) {
		t.Assignees = ids
		if len(ids) == 1 {
			owner := ids[0]
			t.Assignee = &owner
		} else {
			t.Assignee = nil
		}
	}
}

func WithEstimatedHours(h float64) TaskOption {
	return func(t *domain.Task) {
		t.EstimatedHours = h
	}
}

func WithActualHours(h float64) TaskOption {
	return func(t *domain.Task) {
		t.ActualHours = h
	}
}

func WithCompletedAt(d time.Time) TaskOption {
	return func(t *domain.Task) {
		t.CompletedAt = &d
	}
}

func WithRecurrence(pattern domain.RecurrencePattern, interval int, end *time.Time) TaskOption {
	return func(t *domain.Task) {
		t.IsRecurring = true
		t.RecurrencePattern = pattern
		t.RecurrenceInterval = interval
		t.RecurrenceEndDate = end
	}
}

func WithParentTask(id string) TaskOption {
	return func(t *domain.Task) {
		t.ParentTaskID = &id
	}
}

// WithOpenBlocker attaches an unresolved blocker and marks the task blocked.
func WithOpenBlocker(description string) TaskOption {
	return func(t *domain.Task) {
		t.Blockers = append(t.Blockers, domain.Blocker{
			ID:          uuid.New().String(),
			TaskID:      t.ID,
			Description: description,
			ReportedBy:  "tester",
			ReportedAt:  t.CreatedAt,
		})
		t.Status = domain.TaskBlocked
	}
}

func NewTestTask(title string, opts ...TaskOption) *domain.Task {
	n := now()
	t := &domain.Task{
		ID:        uuid.New().String(),
		FactoryID: "factory-1",
		Title:     title,
		Type:      domain.TaskMaintenance,
		Priority:  domain.PriorityMedium,
		Status:    domain.TaskPending,
		StartDate: n.AddDate(0, 0, -1),
		DueDate:   n.AddDate(0, 0, 14),
		CreatedBy: "tester",
		CreatedAt: n,
		UpdatedAt: n,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Training options
type TrainingOption func(*domain.Training)

func WithValidity(v domain.ValidityPeriod) TrainingOption {
	return func(t *domain.Training) {
		t.ValidityPeriod = v
	}
}

func WithPassingScore(s int) TrainingOption {
	return func(t *domain.Training) {
		t.PassingScore = s
	}
}

func NewTestTraining(id, name string, opts ...TrainingOption) *domain.Training {
	n := now()
	t := &domain.Training{
		ID:             id,
		Name:           name,
		ValidityPeriod: domain.Validity1Year,
		PassingScore:   70,
		CreatedAt:      n,
		UpdatedAt:      n,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewTestMatrixEntry requires the given trainings of role in department.
func NewTestMatrixEntry(role, department string, trainingIDs ...string) *domain.MatrixEntry {
	n := now()
	e := &domain.MatrixEntry{
		ID:         uuid.New().String(),
		Role:       role,
		Department: department,
		CreatedAt:  n,
		UpdatedAt:  n,
	}
	for _, id := range trainingIDs {
		e.RequiredTrainings = append(e.RequiredTrainings, domain.RequiredTraining{
			TrainingID:   id,
			TrainingName: "Training " + id,
		})
	}
	return e
}

// Certificate options
type CertificateOption func(*domain.Certificate)

func WithCertificateStatus(s domain.CertificateStatus) CertificateOption {
	return func(c *domain.Certificate) {
		c.Status = s
	}
}

func WithExpiresAt(d time.Time) CertificateOption {
	return func(c *domain.Certificate) {
		c.ExpiresAt = &d
	}
}

func WithNoExpiry() CertificateOption {
	return func(c *domain.Certificate) {
		c.ExpiresAt = nil
	}
}

func NewTestCertificate(userID, trainingID string, opts ...CertificateOption) *domain.Certificate {
	n := now()
	id := uuid.New().String()
	exp := n.AddDate(1, 0, 0)
	c := &domain.Certificate{
		ID:                id,
		UserID:            userID,
		TrainingID:        trainingID,
		CertificateNumber: "CERT-" + n.Format("20060102") + "-" + id[:8],
		Status:            domain.CertificateActive,
		IssuedBy:          "tester",
		IssuedAt:          n,
		ExpiresAt:         &exp,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
