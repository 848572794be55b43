package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/complytrack/internal/db"
	"github.com/alexanderramin/complytrack/internal/domain"
)

// taskColumns is the canonical SELECT column list for tasks.
const taskColumns = `id, factory_id, title, description, type, priority, status,
		assignee, assignees, start_date, due_date, estimated_hours, actual_hours,
		progress, completed_at, cap_id, standard_id, permit_id, audit_id, document_id,
		is_recurring, recurrence_pattern, recurrence_interval, recurrence_end_date,
		parent_task_id, created_by, revision, created_at, updated_at`

const priorityRankSQL = `CASE priority
		WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// SQLiteTaskRepo implements TaskRepo. A task row is stored together with
// its dependency, blocker and comment rows.
type SQLiteTaskRepo struct {
	db db.DBTX
}

// NewSQLiteTaskRepo creates a new SQLiteTaskRepo.
func NewSQLiteTaskRepo(db db.DBTX) *SQLiteTaskRepo {
	return &SQLiteTaskRepo{db: db}
}

func (r *SQLiteTaskRepo) Create(ctx context.Context, t *domain.Task) error {
	assignees, err := encodeStringList(t.Assignees)
	if err != nil {
		return err
	}
	t.Revision = 1

	query := `INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		t.ID,
		t.FactoryID,
		t.Title,
		t.Description,
		string(t.Type),
		string(t.Priority),
		string(t.Status),
		nullableStringToValue(t.Assignee),
		assignees,
		zeroableTimeToString(t.StartDate),
		timeToString(t.DueDate),
		t.EstimatedHours,
		t.ActualHours,
		t.Progress,
		nullableTimeToString(t.CompletedAt),
		t.CAPID,
		t.StandardID,
		t.PermitID,
		t.AuditID,
		t.DocumentID,
		boolToInt(t.IsRecurring),
		string(t.RecurrencePattern),
		t.RecurrenceInterval,
		nullableTimeToString(t.RecurrenceEndDate),
		nullableStringToValue(t.ParentTaskID),
		t.CreatedBy,
		t.Revision,
		timeToString(t.CreatedAt),
		timeToString(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return r.writeChildren(ctx, t)
}

func (r *SQLiteTaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`
	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}
	if err := r.loadChildren(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *SQLiteTaskRepo) List(ctx context.Context, filter TaskFilter, opts ListOptions) ([]*domain.Task, error) {
	var where []string
	var args []any

	if filter.FactoryID != "" {
		where = append(where, "factory_id = ?")
		args = append(args, filter.FactoryID)
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, string(filter.Priority))
	}
	if filter.Assignee != "" {
		where = append(where, `(assignee = ? OR EXISTS (SELECT 1 FROM json_each(tasks.assignees) WHERE value = ?))`)
		args = append(args, filter.Assignee, filter.Assignee)
	}
	if filter.DueFrom != nil {
		where = append(where, "due_date >= ?")
		args = append(args, timeToString(*filter.DueFrom))
	}
	if filter.DueTo != nil {
		where = append(where, "due_date <= ?")
		args = append(args, timeToString(*filter.DueTo))
	}
	if filter.ParentTaskID != "" {
		where = append(where, "parent_task_id = ?")
		args = append(args, filter.ParentTaskID)
	}
	if len(filter.IDs) > 0 {
		where = append(where, "id IN ("+placeholders(len(filter.IDs))+")")
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + orderClause(opts)
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	return r.queryTasks(ctx, query, args...)
}

func (r *SQLiteTaskRepo) ListOverdue(ctx context.Context, now time.Time) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE status NOT IN ('completed', 'cancelled') AND due_date < ?
		ORDER BY due_date, id`
	return r.queryTasks(ctx, query, timeToString(now))
}

func (r *SQLiteTaskRepo) Update(ctx context.Context, t *domain.Task) error {
	assignees, err := encodeStringList(t.Assignees)
	if err != nil {
		return err
	}

	query := `UPDATE tasks SET factory_id = ?, title = ?, description = ?, type = ?, priority = ?,
		status = ?, assignee = ?, assignees = ?, start_date = ?, due_date = ?,
		estimated_hours = ?, actual_hours = ?, progress = ?, completed_at = ?,
		cap_id = ?, standard_id = ?, permit_id = ?, audit_id = ?, document_id = ?,
		is_recurring = ?, recurrence_pattern = ?, recurrence_interval = ?, recurrence_end_date = ?,
		parent_task_id = ?, updated_at = ?, revision = revision + 1
		WHERE id = ? AND revision = ?`
	res, err := r.db.ExecContext(ctx, query,
		t.FactoryID,
		t.Title,
		t.Description,
		string(t.Type),
		string(t.Priority),
		string(t.Status),
		nullableStringToValue(t.Assignee),
		assignees,
		zeroableTimeToString(t.StartDate),
		timeToString(t.DueDate),
		t.EstimatedHours,
		t.ActualHours,
		t.Progress,
		nullableTimeToString(t.CompletedAt),
		t.CAPID,
		t.StandardID,
		t.PermitID,
		t.AuditID,
		t.DocumentID,
		boolToInt(t.IsRecurring),
		string(t.RecurrencePattern),
		t.RecurrenceInterval,
		nullableTimeToString(t.RecurrenceEndDate),
		nullableStringToValue(t.ParentTaskID),
		timeToString(t.UpdatedAt),
		t.ID,
		t.Revision,
	)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	if n == 0 {
		var one int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, t.ID).Scan(&one)
		if err == sql.ErrNoRows {
			return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("checking task: %w", err)
		}
		return fmt.Errorf("task %s changed since revision %d: %w", t.ID, t.Revision, ErrConflict)
	}
	t.Revision++

	return r.writeChildren(ctx, t)
}

// Delete removes the task and its dependent rows. Instances generated from
// it keep their parent_task_id.
func (r *SQLiteTaskRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

func orderClause(opts ListOptions) string {
	col := "due_date"
	switch opts.OrderBy {
	case OrderByCreatedAt:
		col = "created_at"
	case OrderByPriority:
		col = priorityRankSQL
	}
	dir := "ASC"
	if opts.Descending {
		dir = "DESC"
	}
	return col + " " + dir + ", id ASC"
}

// queryTasks runs a task SELECT and loads children once the result set is
// closed, so it never holds two cursors on one connection.
func (r *SQLiteTaskRepo) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	rows.Close()

	for _, t := range tasks {
		if err := r.loadChildren(ctx, t); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var typeStr, priorityStr, statusStr, patternStr, assigneesStr string
	var assignee, parentID, startDate, completedAt, recurrenceEnd sql.NullString
	var dueDate, createdAt, updatedAt string
	var recurringInt int

	err := row.Scan(
		&t.ID, &t.FactoryID, &t.Title, &t.Description, &typeStr, &priorityStr, &statusStr,
		&assignee, &assigneesStr, &startDate, &dueDate, &t.EstimatedHours, &t.ActualHours,
		&t.Progress, &completedAt, &t.CAPID, &t.StandardID, &t.PermitID, &t.AuditID, &t.DocumentID,
		&recurringInt, &patternStr, &t.RecurrenceInterval, &recurrenceEnd,
		&parentID, &t.CreatedBy, &t.Revision, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Type = domain.TaskType(typeStr)
	t.Priority = domain.Priority(priorityStr)
	t.Status = domain.TaskStatus(statusStr)
	t.RecurrencePattern = domain.RecurrencePattern(patternStr)
	t.IsRecurring = intToBool(recurringInt)
	t.Assignee = parseNullableString(assignee)
	t.ParentTaskID = parseNullableString(parentID)
	t.CompletedAt = parseNullableTime(completedAt)
	t.RecurrenceEndDate = parseNullableTime(recurrenceEnd)
	if start := parseNullableTime(startDate); start != nil {
		t.StartDate = *start
	}

	if t.Assignees, err = decodeStringList(assigneesStr); err != nil {
		return nil, err
	}
	if t.DueDate, err = parseTime(dueDate, "due_date"); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *SQLiteTaskRepo) loadChildren(ctx context.Context, t *domain.Task) error {
	deps, err := r.loadDependencies(ctx, t.ID)
	if err != nil {
		return err
	}
	t.Dependencies = deps

	if t.Blockers, err = r.loadBlockers(ctx, t.ID); err != nil {
		return err
	}
	if t.Comments, err = r.loadComments(ctx, t.ID); err != nil {
		return err
	}
	return nil
}

func (r *SQLiteTaskRepo) loadDependencies(ctx context.Context, taskID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT depends_on_task_id FROM task_dependencies WHERE task_id = ? ORDER BY created_at, depends_on_task_id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("listing dependencies: %w", err)
	}
	defer rows.Close()

	var deps []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning dependency: %w", err)
		}
		deps = append(deps, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dependencies: %w", err)
	}
	return deps, nil
}

func (r *SQLiteTaskRepo) loadBlockers(ctx context.Context, taskID string) ([]domain.Blocker, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, task_id, description, reported_by, reported_at,
			resolved, resolved_by, resolved_at, resolution
		FROM task_blockers WHERE task_id = ? ORDER BY position, reported_at`, taskID)
	if err != nil {
		return nil, fmt.Errorf("listing blockers: %w", err)
	}
	defer rows.Close()

	var blockers []domain.Blocker
	for rows.Next() {
		var b domain.Blocker
		var reportedAt string
		var resolvedInt int
		var resolvedAt sql.NullString
		if err := rows.Scan(&b.ID, &b.TaskID, &b.Description, &b.ReportedBy, &reportedAt,
			&resolvedInt, &b.ResolvedBy, &resolvedAt, &b.Resolution); err != nil {
			return nil, fmt.Errorf("scanning blocker: %w", err)
		}
		if b.ReportedAt, err = parseTime(reportedAt, "reported_at"); err != nil {
			return nil, err
		}
		b.Resolved = intToBool(resolvedInt)
		b.ResolvedAt = parseNullableTime(resolvedAt)
		blockers = append(blockers, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating blockers: %w", err)
	}
	return blockers, nil
}

func (r *SQLiteTaskRepo) loadComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, task_id, author, text, created_at
		FROM task_comments WHERE task_id = ? ORDER BY position, created_at`, taskID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Author, &c.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		if c.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating comments: %w", err)
	}
	return comments, nil
}

// writeChildren persists dependencies, blockers and comments. Dependencies
// and comments are append-only; blockers are upserted so resolutions stick.
func (r *SQLiteTaskRepo) writeChildren(ctx context.Context, t *domain.Task) error {
	for _, dep := range t.Dependencies {
		_, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO task_dependencies
			(task_id, depends_on_task_id, created_at) VALUES (?, ?, ?)`,
			t.ID, dep, timeToString(t.UpdatedAt))
		if err != nil {
			return fmt.Errorf("inserting dependency %s: %w", dep, err)
		}
	}

	for i, b := range t.Blockers {
		_, err := r.db.ExecContext(ctx, `INSERT INTO task_blockers
			(id, task_id, position, description, reported_by, reported_at,
			 resolved, resolved_by, resolved_at, resolution)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				description = excluded.description,
				resolved = excluded.resolved,
				resolved_by = excluded.resolved_by,
				resolved_at = excluded.resolved_at,
				resolution = excluded.resolution`,
			b.ID, t.ID, i, b.Description, b.ReportedBy, timeToString(b.ReportedAt),
			boolToInt(b.Resolved), b.ResolvedBy, nullableTimeToString(b.ResolvedAt), b.Resolution)
		if err != nil {
			return fmt.Errorf("writing blocker %s: %w", b.ID, err)
		}
	}

	for i, c := range t.Comments {
		_, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO task_comments
			(id, task_id, position, author, text, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, t.ID, i, c.Author, c.Text, timeToString(c.CreatedAt))
		if err != nil {
			return fmt.Errorf("inserting comment %s: %w", c.ID, err)
		}
	}
	return nil
}
