package repository

import (
	"context"
	"fmt"

	"github.com/alexanderramin/complytrack/internal/db"
	"github.com/alexanderramin/complytrack/internal/domain"
)

const matrixColumns = `id, role, department, frequency, validity_period, created_at, updated_at`

// SQLiteMatrixRepo stores training matrix entries and their ordered
// required trainings.
type SQLiteMatrixRepo struct {
	db db.DBTX
}

func NewSQLiteMatrixRepo(db db.DBTX) *SQLiteMatrixRepo {
	return &SQLiteMatrixRepo{db: db}
}

// Upsert writes the entry and replaces its requirement list.
func (r *SQLiteMatrixRepo) Upsert(ctx context.Context, e *domain.MatrixEntry) error {
	query := `INSERT INTO training_matrix (` + matrixColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			role = excluded.role,
			department = excluded.department,
			frequency = excluded.frequency,
			validity_period = excluded.validity_period,
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.Role, e.Department, e.Frequency, string(e.ValidityPeriod),
		timeToString(e.CreatedAt), timeToString(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upserting matrix entry: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM training_matrix_requirements WHERE matrix_id = ?`, e.ID); err != nil {
		return fmt.Errorf("clearing matrix requirements: %w", err)
	}
	for i, rt := range e.RequiredTrainings {
		_, err := r.db.ExecContext(ctx, `INSERT INTO training_matrix_requirements
			(matrix_id, position, training_id, training_name, required_by) VALUES (?, ?, ?, ?, ?)`,
			e.ID, i, rt.TrainingID, rt.TrainingName, rt.RequiredBy)
		if err != nil {
			return fmt.Errorf("inserting matrix requirement %s: %w", rt.TrainingID, err)
		}
	}
	return nil
}

func (r *SQLiteMatrixRepo) GetByID(ctx context.Context, id string) (*domain.MatrixEntry, error) {
	entries, err := r.query(ctx, `SELECT `+matrixColumns+` FROM training_matrix WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("matrix entry %s: %w", id, ErrNotFound)
	}
	return &entries[0], nil
}

func (r *SQLiteMatrixRepo) List(ctx context.Context) ([]domain.MatrixEntry, error) {
	return r.query(ctx, `SELECT `+matrixColumns+` FROM training_matrix ORDER BY role, department, created_at, id`)
}

// ListForRole returns entries for role scoped to department or to every
// department.
func (r *SQLiteMatrixRepo) ListForRole(ctx context.Context, role, department string) ([]domain.MatrixEntry, error) {
	return r.query(ctx, `SELECT `+matrixColumns+` FROM training_matrix
		WHERE role = ? AND (department = ? OR department = ?)
		ORDER BY created_at, id`, role, department, domain.AllDepartments)
}

func (r *SQLiteMatrixRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM training_matrix WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting matrix entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("matrix entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteMatrixRepo) query(ctx context.Context, query string, args ...any) ([]domain.MatrixEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing matrix entries: %w", err)
	}
	var entries []domain.MatrixEntry
	for rows.Next() {
		var e domain.MatrixEntry
		var validity, createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.Role, &e.Department, &e.Frequency, &validity, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning matrix entry: %w", err)
		}
		e.ValidityPeriod = domain.ValidityPeriod(validity)
		if e.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
			rows.Close()
			return nil, err
		}
		if e.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
			rows.Close()
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating matrix entries: %w", err)
	}
	rows.Close()

	for i := range entries {
		reqs, err := r.loadRequirements(ctx, entries[i].ID)
		if err != nil {
			return nil, err
		}
		entries[i].RequiredTrainings = reqs
	}
	return entries, nil
}

func (r *SQLiteMatrixRepo) loadRequirements(ctx context.Context, matrixID string) ([]domain.RequiredTraining, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT training_id, training_name, required_by
		FROM training_matrix_requirements WHERE matrix_id = ? ORDER BY position`, matrixID)
	if err != nil {
		return nil, fmt.Errorf("listing matrix requirements: %w", err)
	}
	defer rows.Close()

	var reqs []domain.RequiredTraining
	for rows.Next() {
		var rt domain.RequiredTraining
		if err := rows.Scan(&rt.TrainingID, &rt.TrainingName, &rt.RequiredBy); err != nil {
			return nil, fmt.Errorf("scanning matrix requirement: %w", err)
		}
		reqs = append(reqs, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matrix requirements: %w", err)
	}
	return reqs, nil
}
