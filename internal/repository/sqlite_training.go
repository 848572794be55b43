package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexanderramin/complytrack/internal/db"
	"github.com/alexanderramin/complytrack/internal/domain"
)

const trainingColumns = `id, name, validity_period, passing_score, created_at, updated_at`

// SQLiteTrainingRepo implements TrainingRepo using a SQLite database.
type SQLiteTrainingRepo struct {
	db db.DBTX
}

func NewSQLiteTrainingRepo(db db.DBTX) *SQLiteTrainingRepo {
	return &SQLiteTrainingRepo{db: db}
}

// Upsert inserts the training or updates name, validity and passing score.
// created_at is kept from the first insert.
func (r *SQLiteTrainingRepo) Upsert(ctx context.Context, t *domain.Training) error {
	query := `INSERT INTO trainings (` + trainingColumns + `) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			validity_period = excluded.validity_period,
			passing_score = excluded.passing_score,
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Name, string(t.ValidityPeriod), t.PassingScore,
		timeToString(t.CreatedAt), timeToString(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upserting training: %w", err)
	}
	return nil
}

func (r *SQLiteTrainingRepo) GetByID(ctx context.Context, id string) (*domain.Training, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+trainingColumns+` FROM trainings WHERE id = ?`, id)
	t, err := scanTraining(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("training %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("scanning training: %w", err)
	}
	return t, nil
}

func (r *SQLiteTrainingRepo) List(ctx context.Context) ([]*domain.Training, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+trainingColumns+` FROM trainings ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("listing trainings: %w", err)
	}
	defer rows.Close()

	var trainings []*domain.Training
	for rows.Next() {
		t, err := scanTraining(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning training row: %w", err)
		}
		trainings = append(trainings, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trainings: %w", err)
	}
	return trainings, nil
}

func (r *SQLiteTrainingRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trainings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting training: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("training %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanTraining(row rowScanner) (*domain.Training, error) {
	var t domain.Training
	var validity, createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.Name, &validity, &t.PassingScore, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.ValidityPeriod = domain.ValidityPeriod(validity)

	var err error
	if t.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &t, nil
}
