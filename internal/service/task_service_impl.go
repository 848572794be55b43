package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/alexanderramin/complytrack/internal/db"
	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/alexanderramin/complytrack/internal/events"
	"github.com/alexanderramin/complytrack/internal/repository"
	"github.com/alexanderramin/complytrack/internal/scheduler"
)

type taskService struct {
	settings
	tasks    repository.TaskRepo
	uow      db.UnitOfWork
	observer UseCaseObserver
}

func NewTaskService(tasks repository.TaskRepo, uow db.UnitOfWork, opts ...Option) TaskService {
	s := newSettings(opts)
	return &taskService{
		settings: s,
		tasks:    tasks,
		uow:      uow,
		observer: useCaseObserverOrNoop(s.observers),
	}
}

func (s *taskService) CreateTask(ctx context.Context, actor string, t *domain.Task) (_ *CreateTaskResult, err error) {
	fields := map[string]any{"actor": actor}
	defer observe(ctx, s.observer, "create_task", fields)(&err)

	now := s.clock.Now()
	if t.ID == "" {
		t.ID = s.newID()
	}
	t.NormalizeDates()
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	t.Status = domain.TaskPending
	t.Progress = 0
	t.CompletedAt = nil
	t.Blockers = nil
	t.CreatedBy = actor
	t.CreatedAt = now
	t.UpdatedAt = now
	if len(t.Assignees) == 0 && t.Assignee != nil {
		t.Assignees = []string{*t.Assignee}
	}
	if len(t.Assignees) > 0 {
		if err := t.Assign(t.Assignees, now); err != nil {
			return nil, err
		}
	}
	for i := range t.Comments {
		if t.Comments[i].ID == "" {
			t.Comments[i].ID = s.newID()
		}
		if t.Comments[i].CreatedAt.IsZero() {
			t.Comments[i].CreatedAt = now
		}
	}
	fields["task_id"] = t.ID

	if err := validateStruct(t); err != nil {
		return nil, err
	}
	if err := t.ValidateSchedule(); err != nil {
		return nil, err
	}
	if slices.Contains(t.Dependencies, t.ID) {
		return nil, domain.ErrSelfDependency
	}

	result := &CreateTaskResult{Task: t}
	if t.IsRecurring {
		occurrences, err := scheduler.GenerateOccurrences(scheduler.RuleForTask(t), s.maxOccurrences)
		if err != nil {
			return nil, err
		}
		for _, occ := range occurrences {
			result.Instances = append(result.Instances, t.NewInstance(s.newID(), occ.Start, occ.Due, now))
		}
	}

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txTasks := repository.NewSQLiteTaskRepo(tx)
		for _, dep := range t.Dependencies {
			if _, err := txTasks.GetByID(ctx, dep); err != nil {
				return fmt.Errorf("dependency: %w", err)
			}
		}
		if err := txTasks.Create(ctx, t); err != nil {
			return err
		}
		for _, inst := range result.Instances {
			if err := txTasks.Create(ctx, inst); err != nil {
				return fmt.Errorf("creating instance due %s: %w", inst.DueDate.Format(time.DateOnly), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields["instances"] = len(result.Instances)

	s.publish(ctx, s.event(events.TaskCreated, t.ID, actor, map[string]any{
		"factory_id": t.FactoryID, "type": string(t.Type), "due_date": t.DueDate,
	}))
	if len(result.Instances) > 0 {
		s.publish(ctx, s.event(events.InstancesGenerated, t.ID, actor, map[string]any{"count": len(result.Instances)}))
	}
	return result, nil
}

func (s *taskService) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

func (s *taskService) ListTasks(ctx context.Context, filter repository.TaskFilter, opts repository.ListOptions) ([]*domain.Task, error) {
	return s.tasks.List(ctx, filter, opts)
}

func (s *taskService) UpdateTaskProgress(ctx context.Context, actor, id string, update ProgressUpdate) (_ *domain.Task, err error) {
	fields := map[string]any{"actor": actor, "task_id": id, "progress": update.Progress}
	defer observe(ctx, s.observer, "update_task_progress", fields)(&err)

	var before domain.TaskStatus
	t, err := s.mutate(ctx, id, func(t *domain.Task, now time.Time) error {
		before = t.Status
		if err := t.ApplyProgress(update.Progress, now); err != nil {
			return err
		}
		if update.Hours != nil {
			if err := t.AddHours(*update.Hours, now); err != nil {
				return err
			}
		}
		if strings.TrimSpace(update.Comment) != "" {
			return t.AddComment(domain.Comment{ID: s.newID(), Author: actor, Text: update.Comment}, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields["status"] = string(t.Status)

	if before != domain.TaskCompleted && t.Status == domain.TaskCompleted {
		s.publish(ctx, s.event(events.TaskCompleted, t.ID, actor, map[string]any{"actual_hours": t.ActualHours}))
	}
	return t, nil
}

func (s *taskService) AddComment(ctx context.Context, actor, id, text string) (_ *domain.Comment, err error) {
	fields := map[string]any{"actor": actor, "task_id": id}
	defer observe(ctx, s.observer, "add_comment", fields)(&err)

	t, err := s.mutate(ctx, id, func(t *domain.Task, now time.Time) error {
		return t.AddComment(domain.Comment{ID: s.newID(), Author: actor, Text: text}, now)
	})
	if err != nil {
		return nil, err
	}
	c := t.Comments[len(t.Comments)-1]
	return &c, nil
}

// BulkAssignTasks assigns every task in ids in one transaction. Any failure,
// including an unknown id, leaves all tasks untouched.
func (s *taskService) BulkAssignTasks(ctx context.Context, actor string, ids, assignees []string, opts BulkAssignOptions) (_ []*domain.Task, err error) {
	fields := map[string]any{"actor": actor, "tasks": len(ids), "assignees": len(assignees)}
	defer observe(ctx, s.observer, "bulk_assign_tasks", fields)(&err)

	ids = dedupe(ids)
	assignees = dedupe(assignees)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no tasks to assign", domain.ErrValidation)
	}
	if len(assignees) == 0 {
		return nil, fmt.Errorf("%w: at least one assignee is required", domain.ErrValidation)
	}
	if opts.Priority != "" && !domain.ValidPriorities[string(opts.Priority)] {
		return nil, fmt.Errorf("%w: invalid priority %q", domain.ErrValidation, opts.Priority)
	}

	now := s.clock.Now()
	updated := make([]*domain.Task, 0, len(ids))
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txTasks := repository.NewSQLiteTaskRepo(tx)
		for _, id := range ids {
			t, err := txTasks.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if err := t.Assign(assignees, now); err != nil {
				return err
			}
			if opts.DueDate != nil {
				t.DueDate = opts.DueDate.UTC()
				if err := t.ValidateSchedule(); err != nil {
					return fmt.Errorf("task %s: %w", id, err)
				}
			}
			if opts.Priority != "" {
				t.Priority = opts.Priority
			}
			if err := txTasks.Update(ctx, t); err != nil {
				return err
			}
			updated = append(updated, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, t := range updated {
		s.publish(ctx, s.event(events.TaskAssigned, t.ID, actor, map[string]any{"assignees": t.Assignees}))
	}
	return updated, nil
}

func (s *taskService) AddTaskDependency(ctx context.Context, actor, id, dependsOn string) (_ *domain.Task, err error) {
	fields := map[string]any{"actor": actor, "task_id": id, "depends_on": dependsOn}
	defer observe(ctx, s.observer, "add_task_dependency", fields)(&err)

	if id == dependsOn {
		return nil, domain.ErrSelfDependency
	}

	var task *domain.Task
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txTasks := repository.NewSQLiteTaskRepo(tx)
		if _, err := txTasks.GetByID(ctx, dependsOn); err != nil {
			return err
		}
		t, err := txTasks.GetByID(ctx, id)
		if err != nil {
			return err
		}
		added, err := t.AddDependency(dependsOn, s.clock.Now())
		if err != nil {
			return err
		}
		fields["added"] = added
		task = t
		if !added {
			return nil
		}
		return txTasks.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListDependencyStatus reports the current status of each dependency. It is
// informational; nothing is enforced from it.
func (s *taskService) ListDependencyStatus(ctx context.Context, id string) ([]DependencyStatus, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(t.Dependencies) == 0 {
		return []DependencyStatus{}, nil
	}
	deps, err := s.tasks.List(ctx, repository.TaskFilter{IDs: t.Dependencies}, repository.ListOptions{})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Task, len(deps))
	for _, d := range deps {
		byID[d.ID] = d
	}

	out := make([]DependencyStatus, 0, len(t.Dependencies))
	for _, depID := range t.Dependencies {
		d, ok := byID[depID]
		if !ok {
			out = append(out, DependencyStatus{TaskID: depID, Missing: true})
			continue
		}
		out = append(out, DependencyStatus{TaskID: d.ID, Title: d.Title, Status: d.Status})
	}
	return out, nil
}

func (s *taskService) AddTaskBlocker(ctx context.Context, actor, id, description string) (_ *domain.Blocker, err error) {
	fields := map[string]any{"actor": actor, "task_id": id}
	defer observe(ctx, s.observer, "add_task_blocker", fields)(&err)

	t, err := s.mutate(ctx, id, func(t *domain.Task, now time.Time) error {
		return t.AddBlocker(domain.Blocker{ID: s.newID(), Description: description, ReportedBy: actor}, now)
	})
	if err != nil {
		return nil, err
	}
	b := t.Blockers[len(t.Blockers)-1]
	fields["blocker_id"] = b.ID

	s.publish(ctx, s.event(events.TaskBlocked, t.ID, actor, map[string]any{
		"blocker_id": b.ID, "description": b.Description, "progress": t.Progress,
	}))
	return &b, nil
}

func (s *taskService) ResolveTaskBlocker(ctx context.Context, actor, id, blockerID, resolution string) (_ *domain.Task, err error) {
	fields := map[string]any{"actor": actor, "task_id": id, "blocker_id": blockerID}
	defer observe(ctx, s.observer, "resolve_task_blocker", fields)(&err)

	var before domain.TaskStatus
	t, err := s.mutate(ctx, id, func(t *domain.Task, now time.Time) error {
		before = t.Status
		return t.ResolveBlocker(blockerID, actor, resolution, now)
	})
	if err != nil {
		return nil, err
	}
	fields["status"] = string(t.Status)

	if before == domain.TaskBlocked && t.Status != domain.TaskBlocked {
		s.publish(ctx, s.event(events.TaskUnblocked, t.ID, actor, map[string]any{"status": string(t.Status)}))
	}
	return t, nil
}

func (s *taskService) CancelTask(ctx context.Context, actor, id string) (_ *domain.Task, err error) {
	fields := map[string]any{"actor": actor, "task_id": id}
	defer observe(ctx, s.observer, "cancel_task", fields)(&err)

	t, err := s.mutate(ctx, id, func(t *domain.Task, now time.Time) error {
		return t.Cancel(now)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, s.event(events.TaskCancelled, t.ID, actor, nil))
	return t, nil
}

// DeleteTask removes a task physically. Instances generated from it are
// kept and still reference it by ParentTaskID.
func (s *taskService) DeleteTask(ctx context.Context, actor, id string) (err error) {
	fields := map[string]any{"actor": actor, "task_id": id}
	defer observe(ctx, s.observer, "delete_task", fields)(&err)

	if err := s.tasks.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, s.event(events.TaskDeleted, id, actor, nil))
	return nil
}

// GenerateRecurringInstances expands a recurring template again and creates
// the instances whose due date is not already covered by an existing child.
func (s *taskService) GenerateRecurringInstances(ctx context.Context, actor, templateID string) (_ []*domain.Task, err error) {
	fields := map[string]any{"actor": actor, "task_id": templateID}
	defer observe(ctx, s.observer, "generate_recurring_instances", fields)(&err)

	now := s.clock.Now()
	var created []*domain.Task
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txTasks := repository.NewSQLiteTaskRepo(tx)
		tmpl, err := txTasks.GetByID(ctx, templateID)
		if err != nil {
			return err
		}
		if !tmpl.IsRecurring {
			return fmt.Errorf("%w: task %s is not recurring", domain.ErrValidation, templateID)
		}
		if tmpl.ParentTaskID != nil {
			return fmt.Errorf("%w: task %s is an instance of %s", domain.ErrValidation, templateID, *tmpl.ParentTaskID)
		}

		occurrences, err := scheduler.GenerateOccurrences(scheduler.RuleForTask(tmpl), s.maxOccurrences)
		if err != nil {
			return err
		}
		existing, err := txTasks.List(ctx, repository.TaskFilter{ParentTaskID: templateID}, repository.ListOptions{})
		if err != nil {
			return err
		}
		covered := make(map[int64]bool, len(existing))
		for _, e := range existing {
			covered[e.DueDate.Unix()] = true
		}

		for _, occ := range occurrences {
			if covered[occ.Due.Unix()] {
				continue
			}
			inst := tmpl.NewInstance(s.newID(), occ.Start, occ.Due, now)
			if err := txTasks.Create(ctx, inst); err != nil {
				return fmt.Errorf("creating instance due %s: %w", occ.Due.Format(time.DateOnly), err)
			}
			created = append(created, inst)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields["created"] = len(created)

	if len(created) > 0 {
		s.publish(ctx, s.event(events.InstancesGenerated, templateID, actor, map[string]any{"count": len(created)}))
	}
	return created, nil
}

// GetOverdueTasks lists open tasks due before now. A zero now means the
// service clock.
func (s *taskService) GetOverdueTasks(ctx context.Context, now time.Time) ([]*domain.Task, error) {
	if now.IsZero() {
		now = s.clock.Now()
	}
	return s.tasks.ListOverdue(ctx, now)
}

func (s *taskService) GetTaskAnalytics(ctx context.Context, filter repository.TaskFilter) (_ *TaskAnalytics, err error) {
	fields := map[string]any{}
	defer observe(ctx, s.observer, "get_task_analytics", fields)(&err)

	tasks, err := s.tasks.List(ctx, filter, repository.ListOptions{})
	if err != nil {
		return nil, err
	}
	fields["tasks"] = len(tasks)
	return computeTaskAnalytics(tasks, s.clock.Now()), nil
}

// mutate loads a task, applies fn and writes it back in one transaction.
// A concurrent writer surfaces as repository.ErrConflict.
func (s *taskService) mutate(ctx context.Context, id string, fn func(t *domain.Task, now time.Time) error) (*domain.Task, error) {
	var task *domain.Task
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txTasks := repository.NewSQLiteTaskRepo(tx)
		t, err := txTasks.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(t, s.clock.Now()); err != nil {
			return err
		}
		if err := txTasks.Update(ctx, t); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// IsNotFound reports whether err means a referenced row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
