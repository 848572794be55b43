package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type Task struct {
	ID          string
	FactoryID   string   `validate:"required"`
	Title       string   `validate:"required,max=200"`
	Description string
	Type        TaskType `validate:"oneof=cap_action audit_prep permit_renewal training maintenance"`
	Priority    Priority `validate:"oneof=low medium high critical"`
	Status      TaskStatus

	// Assignment. Assignee is set only when exactly one owner is assigned.
	Assignee  *string
	Assignees []string

	StartDate      time.Time
	DueDate        time.Time
	EstimatedHours float64 `validate:"gte=0"`
	ActualHours    float64 `validate:"gte=0"`
	Progress       int     `validate:"min=0,max=100"`
	CompletedAt    *time.Time

	// Loose references to other compliance entities. Not enforced.
	CAPID      string
	StandardID string
	PermitID   string
	AuditID    string
	DocumentID string

	// Recurrence
	IsRecurring        bool
	RecurrencePattern  RecurrencePattern `validate:"omitempty,oneof=daily weekly monthly yearly"`
	RecurrenceInterval int               `validate:"gte=0"`
	RecurrenceEndDate  *time.Time
	ParentTaskID       *string

	Dependencies []string
	Blockers     []Blocker
	Comments     []Comment

	CreatedBy string
	Revision  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Blocker struct {
	ID          string
	TaskID      string
	Description string
	ReportedBy  string
	ReportedAt  time.Time
	Resolved    bool
	ResolvedBy  string
	ResolvedAt  *time.Time
	Resolution  string
}

type Comment struct {
	ID        string
	TaskID    string
	Author    string
	Text      string
	CreatedAt time.Time
}

// HasUnresolvedBlockers reports whether any blocker is still open.
func (t *Task) HasUnresolvedBlockers() bool {
	for _, b := range t.Blockers {
		if !b.Resolved {
			return true
		}
	}
	return false
}

// IsOverdue reports whether the task is past due and still actionable.
func (t *Task) IsOverdue(now time.Time) bool {
	return !t.Status.IsTerminal() && t.DueDate.Before(now)
}

// NormalizeDates moves the schedule to UTC, the zone dates are stored in.
// Month clamping depends on the zone, so recurrence must be computed on the
// same calendar at creation and at regeneration.
func (t *Task) NormalizeDates() {
	t.StartDate = t.StartDate.UTC()
	t.DueDate = t.DueDate.UTC()
	if t.RecurrenceEndDate != nil {
		end := t.RecurrenceEndDate.UTC()
		t.RecurrenceEndDate = &end
	}
}

// ValidateSchedule checks date ordering and recurrence settings that struct
// tags cannot express.
func (t *Task) ValidateSchedule() error {
	if t.DueDate.IsZero() {
		return fmt.Errorf("%w: due date is required", ErrValidation)
	}
	if !t.StartDate.IsZero() && t.DueDate.Before(t.StartDate) {
		return fmt.Errorf("%w: due date %s is before start date %s",
			ErrValidation, t.DueDate.Format(time.DateOnly), t.StartDate.Format(time.DateOnly))
	}
	if !t.IsRecurring {
		return nil
	}
	if t.RecurrencePattern == "" {
		return fmt.Errorf("%w: recurring task needs a recurrence pattern", ErrValidation)
	}
	if t.RecurrenceInterval < 1 {
		return fmt.Errorf("%w: recurrence interval must be at least 1, got %d", ErrValidation, t.RecurrenceInterval)
	}
	return nil
}

// ApplyProgress records a progress value and derives the resulting status.
// Reaching 100 completes the task. Any positive value moves a non-blocked
// task to in_progress. Setting 0 leaves the status alone.
func (t *Task) ApplyProgress(progress int, now time.Time) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: progress %d outside 0-100", ErrValidation, progress)
	}
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: cannot update progress of %s task", ErrInvalidTransition, t.Status)
	}
	if progress >= 100 && t.HasUnresolvedBlockers() {
		return fmt.Errorf("%w: resolve open blockers before completing", ErrInvalidTransition)
	}

	t.Progress = progress
	switch {
	case progress >= 100:
		t.Status = TaskCompleted
		t.CompletedAt = &now
	case progress > 0 && t.Status != TaskBlocked:
		t.Status = TaskInProgress
	}
	t.UpdatedAt = now
	return nil
}

// AddHours adds worked hours to ActualHours.
func (t *Task) AddHours(hours float64, now time.Time) error {
	if hours < 0 {
		return fmt.Errorf("%w: hours must not be negative, got %g", ErrValidation, hours)
	}
	t.ActualHours += hours
	t.UpdatedAt = now
	return nil
}

// AddBlocker records an impediment and forces the task into blocked,
// whatever its progress.
func (t *Task) AddBlocker(b Blocker, now time.Time) error {
	if strings.TrimSpace(b.Description) == "" {
		return fmt.Errorf("%w: blocker description is required", ErrValidation)
	}
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: cannot block %s task", ErrInvalidTransition, t.Status)
	}
	b.TaskID = t.ID
	b.Resolved = false
	b.ResolvedAt = nil
	if b.ReportedAt.IsZero() {
		b.ReportedAt = now
	}
	t.Blockers = append(t.Blockers, b)
	t.Status = TaskBlocked
	t.UpdatedAt = now
	return nil
}

// ResolveBlocker closes a blocker. Once every blocker is resolved the task
// returns to pending, even when progress is above zero.
func (t *Task) ResolveBlocker(blockerID, resolver, resolution string, now time.Time) error {
	idx := slices.IndexFunc(t.Blockers, func(b Blocker) bool { return b.ID == blockerID })
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrBlockerNotFound, blockerID)
	}
	b := &t.Blockers[idx]
	if b.Resolved {
		return fmt.Errorf("%w: blocker %s already resolved", ErrInvalidTransition, blockerID)
	}
	b.Resolved = true
	b.ResolvedBy = resolver
	b.ResolvedAt = &now
	b.Resolution = resolution

	if !t.HasUnresolvedBlockers() && t.Status == TaskBlocked {
		t.Status = TaskPending
	}
	t.UpdatedAt = now
	return nil
}

// AddComment appends to the comment log. It never touches status.
func (t *Task) AddComment(c Comment, now time.Time) error {
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("%w: comment text is required", ErrValidation)
	}
	c.TaskID = t.ID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	t.Comments = append(t.Comments, c)
	t.UpdatedAt = now
	return nil
}

// AddDependency records that the task should wait for dependsOn. It is
// advisory only. Returns false when the dependency already existed.
func (t *Task) AddDependency(dependsOn string, now time.Time) (bool, error) {
	if dependsOn == t.ID {
		return false, ErrSelfDependency
	}
	if slices.Contains(t.Dependencies, dependsOn) {
		return false, nil
	}
	t.Dependencies = append(t.Dependencies, dependsOn)
	t.UpdatedAt = now
	return true, nil
}

// Assign replaces the assignee list. The single-owner field is only set
// when exactly one assignee is given.
func (t *Task) Assign(assignees []string, now time.Time) error {
	if len(assignees) == 0 {
		return fmt.Errorf("%w: at least one assignee is required", ErrValidation)
	}
	t.Assignees = slices.Clone(assignees)
	if len(assignees) == 1 {
		owner := assignees[0]
		t.Assignee = &owner
	} else {
		t.Assignee = nil
	}
	t.UpdatedAt = now
	return nil
}

// IsAssignedTo reports whether user appears as owner or in the assignee list.
func (t *Task) IsAssignedTo(user string) bool {
	if t.Assignee != nil && *t.Assignee == user {
		return true
	}
	return slices.Contains(t.Assignees, user)
}

// Cancel moves a task to the cancelled terminal status.
func (t *Task) Cancel(now time.Time) error {
	if t.Status == TaskCompleted {
		return fmt.Errorf("%w: completed task cannot be cancelled", ErrInvalidTransition)
	}
	if t.Status == TaskCancelled {
		return nil
	}
	t.Status = TaskCancelled
	t.UpdatedAt = now
	return nil
}

// NewInstance copies the template fields into a fresh pending task for one
// occurrence of the series.
func (t *Task) NewInstance(id string, start, due, now time.Time) *Task {
	parent := t.ID
	inst := &Task{
		ID:             id,
		FactoryID:      t.FactoryID,
		Title:          t.Title,
		Description:    t.Description,
		Type:           t.Type,
		Priority:       t.Priority,
		Status:         TaskPending,
		Assignees:      slices.Clone(t.Assignees),
		StartDate:      start,
		DueDate:        due,
		EstimatedHours: t.EstimatedHours,
		CAPID:          t.CAPID,
		StandardID:     t.StandardID,
		PermitID:       t.PermitID,
		AuditID:        t.AuditID,
		DocumentID:     t.DocumentID,
		ParentTaskID:   &parent,
		CreatedBy:      t.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if t.Assignee != nil {
		owner := *t.Assignee
		inst.Assignee = &owner
	}
	return inst
}
