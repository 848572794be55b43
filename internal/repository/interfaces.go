package repository

import (
	"context"
	"time"

	"github.com/alexanderramin/complytrack/internal/domain"
)

// TaskFilter narrows task queries. Zero-valued fields do not filter.
type TaskFilter struct {
	FactoryID    string
	Statuses     []domain.TaskStatus
	Type         domain.TaskType
	Priority     domain.Priority
	Assignee     string // matches the single owner or any entry of the assignee list
	DueFrom      *time.Time
	DueTo        *time.Time
	ParentTaskID string
	IDs          []string
}

type TaskOrder string

const (
	OrderByDueDate   TaskOrder = "due_date"
	OrderByCreatedAt TaskOrder = "created_at"
	OrderByPriority  TaskOrder = "priority"
)

type ListOptions struct {
	OrderBy    TaskOrder
	Descending bool
	Limit      int
}

type TaskRepo interface {
	Create(ctx context.Context, t *domain.Task) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter, opts ListOptions) ([]*domain.Task, error)
	ListOverdue(ctx context.Context, now time.Time) ([]*domain.Task, error)
	// Update writes t if nobody else changed it since it was read, and
	// returns ErrConflict otherwise.
	Update(ctx context.Context, t *domain.Task) error
	Delete(ctx context.Context, id string) error
}

type TrainingRepo interface {
	Upsert(ctx context.Context, t *domain.Training) error
	GetByID(ctx context.Context, id string) (*domain.Training, error)
	List(ctx context.Context) ([]*domain.Training, error)
	Delete(ctx context.Context, id string) error
}

type MatrixRepo interface {
	Upsert(ctx context.Context, e *domain.MatrixEntry) error
	GetByID(ctx context.Context, id string) (*domain.MatrixEntry, error)
	List(ctx context.Context) ([]domain.MatrixEntry, error)
	ListForRole(ctx context.Context, role, department string) ([]domain.MatrixEntry, error)
	Delete(ctx context.Context, id string) error
}

type CertificateFilter struct {
	UserID     string
	TrainingID string
	Status     domain.CertificateStatus
}

type CertificateRepo interface {
	Create(ctx context.Context, c *domain.Certificate) error
	GetByID(ctx context.Context, id string) (*domain.Certificate, error)
	GetByNumber(ctx context.Context, number string) (*domain.Certificate, error)
	List(ctx context.Context, filter CertificateFilter) ([]domain.Certificate, error)
	// ListExpired returns active certificates whose expiry is at or before now.
	ListExpired(ctx context.Context, now time.Time) ([]domain.Certificate, error)
	Update(ctx context.Context, c *domain.Certificate) error
}
