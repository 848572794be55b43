package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// Tolerate "duplicate column name" errors from ALTER TABLE
			// since the migration system re-runs all statements.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id                  TEXT PRIMARY KEY,
		factory_id          TEXT NOT NULL,
		title               TEXT NOT NULL,
		description         TEXT NOT NULL DEFAULT '',
		type                TEXT NOT NULL
		                    CHECK(type IN ('cap_action','audit_prep','permit_renewal','training','maintenance')),
		priority            TEXT NOT NULL DEFAULT 'medium'
		                    CHECK(priority IN ('low','medium','high','critical')),
		status              TEXT NOT NULL DEFAULT 'pending'
		                    CHECK(status IN ('pending','in_progress','blocked','completed','cancelled')),
		assignee            TEXT,
		assignees           TEXT NOT NULL DEFAULT '[]',
		start_date          TEXT,
		due_date            TEXT NOT NULL,
		estimated_hours     REAL NOT NULL DEFAULT 0,
		actual_hours        REAL NOT NULL DEFAULT 0,
		progress            INTEGER NOT NULL DEFAULT 0 CHECK(progress BETWEEN 0 AND 100),
		completed_at        TEXT,
		cap_id              TEXT NOT NULL DEFAULT '',
		standard_id         TEXT NOT NULL DEFAULT '',
		permit_id           TEXT NOT NULL DEFAULT '',
		audit_id            TEXT NOT NULL DEFAULT '',
		document_id         TEXT NOT NULL DEFAULT '',
		is_recurring        INTEGER NOT NULL DEFAULT 0,
		recurrence_pattern  TEXT NOT NULL DEFAULT '',
		recurrence_interval INTEGER NOT NULL DEFAULT 0,
		recurrence_end_date TEXT,
		parent_task_id      TEXT,
		created_by          TEXT NOT NULL DEFAULT '',
		created_at          TEXT NOT NULL,
		updated_at          TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tasks_factory ON tasks(factory_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_date)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_task_id)`,

	`CREATE TABLE IF NOT EXISTS task_dependencies (
		task_id            TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		depends_on_task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		created_at         TEXT NOT NULL,
		PRIMARY KEY (task_id, depends_on_task_id),
		CHECK(task_id != depends_on_task_id)
	)`,

	`CREATE TABLE IF NOT EXISTS task_blockers (
		id          TEXT PRIMARY KEY,
		task_id     TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL DEFAULT 0,
		description TEXT NOT NULL,
		reported_by TEXT NOT NULL DEFAULT '',
		reported_at TEXT NOT NULL,
		resolved    INTEGER NOT NULL DEFAULT 0,
		resolved_by TEXT NOT NULL DEFAULT '',
		resolved_at TEXT,
		resolution  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_task_blockers_task ON task_blockers(task_id)`,

	`CREATE TABLE IF NOT EXISTS task_comments (
		id         TEXT PRIMARY KEY,
		task_id    TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		position   INTEGER NOT NULL DEFAULT 0,
		author     TEXT NOT NULL DEFAULT '',
		text       TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_task_comments_task ON task_comments(task_id)`,

	`CREATE TABLE IF NOT EXISTS trainings (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		validity_period TEXT NOT NULL DEFAULT '1_year'
		                CHECK(validity_period IN ('6_months','1_year','2_years','3_years','never')),
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS training_matrix (
		id              TEXT PRIMARY KEY,
		role            TEXT NOT NULL,
		department      TEXT NOT NULL,
		frequency       TEXT NOT NULL DEFAULT '',
		validity_period TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_training_matrix_role ON training_matrix(role)`,

	`CREATE TABLE IF NOT EXISTS training_matrix_requirements (
		matrix_id     TEXT NOT NULL REFERENCES training_matrix(id) ON DELETE CASCADE,
		position      INTEGER NOT NULL,
		training_id   TEXT NOT NULL,
		training_name TEXT NOT NULL DEFAULT '',
		required_by   TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (matrix_id, position)
	)`,

	`CREATE TABLE IF NOT EXISTS certificates (
		id                 TEXT PRIMARY KEY,
		user_id            TEXT NOT NULL,
		training_id        TEXT NOT NULL,
		certificate_number TEXT NOT NULL UNIQUE,
		status             TEXT NOT NULL DEFAULT 'active'
		                   CHECK(status IN ('active','revoked','expired')),
		score              INTEGER,
		issued_by          TEXT NOT NULL DEFAULT '',
		issued_at          TEXT NOT NULL,
		expires_at         TEXT,
		revoked_at         TEXT,
		revoke_reason      TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_certificates_user ON certificates(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_certificates_status_expiry ON certificates(status, expires_at)`,

	// Optimistic concurrency for task writes.
	`ALTER TABLE tasks ADD COLUMN revision INTEGER NOT NULL DEFAULT 0`,

	`ALTER TABLE trainings ADD COLUMN passing_score INTEGER NOT NULL DEFAULT 0
		CHECK(passing_score BETWEEN 0 AND 100)`,
}
