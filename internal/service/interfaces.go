package service

import (
	"context"
	"time"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/alexanderramin/complytrack/internal/importer"
	"github.com/alexanderramin/complytrack/internal/repository"
)

type TaskService interface {
	CreateTask(ctx context.Context, actor string, t *domain.Task) (*CreateTaskResult, error)
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	ListTasks(ctx context.Context, filter repository.TaskFilter, opts repository.ListOptions) ([]*domain.Task, error)
	UpdateTaskProgress(ctx context.Context, actor, id string, update ProgressUpdate) (*domain.Task, error)
	AddComment(ctx context.Context, actor, id, text string) (*domain.Comment, error)
	BulkAssignTasks(ctx context.Context, actor string, ids, assignees []string, opts BulkAssignOptions) ([]*domain.Task, error)
	AddTaskDependency(ctx context.Context, actor, id, dependsOn string) (*domain.Task, error)
	ListDependencyStatus(ctx context.Context, id string) ([]DependencyStatus, error)
	AddTaskBlocker(ctx context.Context, actor, id, description string) (*domain.Blocker, error)
	ResolveTaskBlocker(ctx context.Context, actor, id, blockerID, resolution string) (*domain.Task, error)
	CancelTask(ctx context.Context, actor, id string) (*domain.Task, error)
	DeleteTask(ctx context.Context, actor, id string) error
	GenerateRecurringInstances(ctx context.Context, actor, templateID string) ([]*domain.Task, error)
	GetOverdueTasks(ctx context.Context, now time.Time) ([]*domain.Task, error)
	GetTaskAnalytics(ctx context.Context, filter repository.TaskFilter) (*TaskAnalytics, error)
}

type TrainingService interface {
	UpsertTraining(ctx context.Context, actor string, t *domain.Training) error
	GetTraining(ctx context.Context, id string) (*domain.Training, error)
	ListTrainings(ctx context.Context) ([]*domain.Training, error)
	AddMatrixEntry(ctx context.Context, actor string, e *domain.MatrixEntry) error
	ListMatrix(ctx context.Context) ([]domain.MatrixEntry, error)
	DeleteMatrixEntry(ctx context.Context, actor, id string) error
	ImportMatrix(ctx context.Context, actor string, f *importer.MatrixFile, opts ImportOptions) (*ImportResult, error)
	CheckTrainingCompliance(ctx context.Context, userID, role, department string) (*domain.ComplianceRecord, error)
	DepartmentComplianceReport(ctx context.Context, workers []domain.Worker) (*ComplianceReport, error)
}

type CertificateService interface {
	IssueCertificate(ctx context.Context, actor string, req IssueRequest) (*domain.Certificate, error)
	CompleteTraining(ctx context.Context, actor string, attempt Attempt) (*domain.Certificate, error)
	RevokeCertificate(ctx context.Context, actor, id, reason string) (*domain.Certificate, error)
	GetCertificate(ctx context.Context, idOrNumber string) (*domain.Certificate, error)
	ListCertificates(ctx context.Context, filter repository.CertificateFilter) ([]domain.Certificate, error)
	ExpireCertificates(ctx context.Context, now time.Time) (int, error)
}

// CreateTaskResult holds the created task and, for a recurring template,
// the instances generated alongside it.
type CreateTaskResult struct {
	Task      *domain.Task
	Instances []*domain.Task
}

// ProgressUpdate is one progress report. Hours, when set, are added to the
// task's actual hours. A non-empty Comment is appended to the log.
type ProgressUpdate struct {
	Progress int
	Hours    *float64
	Comment  string
}

// BulkAssignOptions optionally reschedules or reprioritises every task in a
// bulk assignment.
type BulkAssignOptions struct {
	DueDate  *time.Time
	Priority domain.Priority
}

// DependencyStatus pairs a dependency with its current status. Missing is
// set when the referenced task was deleted.
type DependencyStatus struct {
	TaskID  string
	Title   string
	Status  domain.TaskStatus
	Missing bool
}

// ImportOptions controls a matrix import. With Replace set, matrix entries
// absent from the file are deleted.
type ImportOptions struct {
	Replace bool
}

// ImportResult holds the outcome of a matrix import.
type ImportResult struct {
	TrainingCount int
	EntryCount    int
	RemovedCount  int
	Workers       []domain.Worker
}

// ComplianceReport is the per-worker compliance of a group plus its average.
type ComplianceReport struct {
	Records      []domain.ComplianceRecord
	AverageScore int
	Compliant    int
	GeneratedAt  time.Time
}

// IssueRequest issues a certificate directly. An empty ValidityPeriod takes
// the catalog training's period.
type IssueRequest struct {
	TrainingID     string                `validate:"required"`
	UserID         string                `validate:"required"`
	ValidityPeriod domain.ValidityPeriod `validate:"omitempty,oneof=6_months 1_year 2_years 3_years never"`
	Score          *int                  `validate:"omitempty,gte=0,lte=100"`
}

// Attempt is a scored training attempt.
type Attempt struct {
	TrainingID string `validate:"required"`
	UserID     string `validate:"required"`
	Score      int    `validate:"gte=0,lte=100"`
}
