package service

import (
	"context"
	"fmt"
	"math"

	"github.com/alexanderramin/complytrack/internal/db"
	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/alexanderramin/complytrack/internal/events"
	"github.com/alexanderramin/complytrack/internal/importer"
	"github.com/alexanderramin/complytrack/internal/repository"
	"github.com/alexanderramin/complytrack/internal/scheduler"
)

type trainingService struct {
	settings
	trainings repository.TrainingRepo
	matrix    repository.MatrixRepo
	certs     repository.CertificateRepo
	uow       db.UnitOfWork
	observer  UseCaseObserver
}

func NewTrainingService(
	trainings repository.TrainingRepo,
	matrix repository.MatrixRepo,
	certs repository.CertificateRepo,
	uow db.UnitOfWork,
	opts ...Option,
) TrainingService {
	s := newSettings(opts)
	return &trainingService{
		settings:  s,
		trainings: trainings,
		matrix:    matrix,
		certs:     certs,
		uow:       uow,
		observer:  useCaseObserverOrNoop(s.observers),
	}
}

func (s *trainingService) UpsertTraining(ctx context.Context, actor string, t *domain.Training) (err error) {
	fields := map[string]any{"actor": actor, "training_id": t.ID}
	defer observe(ctx, s.observer, "upsert_training", fields)(&err)

	if t.ValidityPeriod == "" {
		t.ValidityPeriod = domain.Validity1Year
	}
	if err := validateStruct(t); err != nil {
		return err
	}
	now := s.clock.Now()
	if existing, err := s.trainings.GetByID(ctx, t.ID); err == nil {
		t.CreatedAt = existing.CreatedAt
	} else if !IsNotFound(err) {
		return err
	} else {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	return s.trainings.Upsert(ctx, t)
}

func (s *trainingService) GetTraining(ctx context.Context, id string) (*domain.Training, error) {
	return s.trainings.GetByID(ctx, id)
}

func (s *trainingService) ListTrainings(ctx context.Context) ([]*domain.Training, error) {
	return s.trainings.List(ctx)
}

func (s *trainingService) AddMatrixEntry(ctx context.Context, actor string, e *domain.MatrixEntry) (err error) {
	fields := map[string]any{"actor": actor, "role": e.Role, "department": e.Department}
	defer observe(ctx, s.observer, "add_matrix_entry", fields)(&err)

	now := s.clock.Now()
	if e.ID == "" {
		e.ID = s.newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	fields["entry_id"] = e.ID
	if err := validateStruct(e); err != nil {
		return err
	}
	return s.matrix.Upsert(ctx, e)
}

func (s *trainingService) ListMatrix(ctx context.Context) ([]domain.MatrixEntry, error) {
	return s.matrix.List(ctx)
}

func (s *trainingService) DeleteMatrixEntry(ctx context.Context, actor, id string) (err error) {
	fields := map[string]any{"actor": actor, "entry_id": id}
	defer observe(ctx, s.observer, "delete_matrix_entry", fields)(&err)

	return s.matrix.Delete(ctx, id)
}

// ImportMatrix validates f and writes its trainings and entries in one
// transaction.
func (s *trainingService) ImportMatrix(ctx context.Context, actor string, f *importer.MatrixFile, opts ImportOptions) (_ *ImportResult, err error) {
	fields := map[string]any{"actor": actor, "replace": opts.Replace}
	defer observe(ctx, s.observer, "import_matrix", fields)(&err)

	if errs := importer.ValidateMatrixFile(f); len(errs) > 0 {
		return nil, formatValidationErrors(errs)
	}
	gen, err := importer.Convert(f, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("converting matrix file: %w", err)
	}

	result := &ImportResult{
		TrainingCount: len(gen.Trainings),
		EntryCount:    len(gen.Entries),
		Workers:       gen.Workers,
	}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txTrainings := repository.NewSQLiteTrainingRepo(tx)
		txMatrix := repository.NewSQLiteMatrixRepo(tx)

		for _, t := range gen.Trainings {
			if existing, err := txTrainings.GetByID(ctx, t.ID); err == nil {
				t.CreatedAt = existing.CreatedAt
			}
			if err := txTrainings.Upsert(ctx, t); err != nil {
				return fmt.Errorf("training %s: %w", t.ID, err)
			}
		}

		keep := make(map[string]bool, len(gen.Entries))
		for _, e := range gen.Entries {
			keep[e.ID] = true
			if existing, err := txMatrix.GetByID(ctx, e.ID); err == nil {
				e.CreatedAt = existing.CreatedAt
			}
			if err := txMatrix.Upsert(ctx, e); err != nil {
				return fmt.Errorf("matrix entry %s/%s: %w", e.Role, e.Department, err)
			}
		}

		if !opts.Replace {
			return nil
		}
		current, err := txMatrix.List(ctx)
		if err != nil {
			return err
		}
		for _, e := range current {
			if keep[e.ID] {
				continue
			}
			if err := txMatrix.Delete(ctx, e.ID); err != nil {
				return err
			}
			result.RemovedCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields["trainings"] = result.TrainingCount
	fields["entries"] = result.EntryCount
	fields["removed"] = result.RemovedCount

	s.publish(ctx, s.event(events.TrainingMatrixLoaded, "", actor, map[string]any{
		"trainings": result.TrainingCount, "entries": result.EntryCount, "removed": result.RemovedCount,
	}))
	return result, nil
}

// CheckTrainingCompliance scores one worker against the current matrix and
// their certificates. The record is computed on every call.
func (s *trainingService) CheckTrainingCompliance(ctx context.Context, userID, role, department string) (_ *domain.ComplianceRecord, err error) {
	fields := map[string]any{"user_id": userID, "role": role, "department": department}
	defer observe(ctx, s.observer, "check_training_compliance", fields)(&err)

	if err := validateStruct(domain.Worker{UserID: userID, Role: role, Department: department}); err != nil {
		return nil, err
	}
	matrix, err := s.matrix.ListForRole(ctx, role, department)
	if err != nil {
		return nil, err
	}
	certs, err := s.certs.List(ctx, repository.CertificateFilter{UserID: userID})
	if err != nil {
		return nil, err
	}

	record := scheduler.ScoreCompliance(scheduler.ComplianceInput{
		UserID:       userID,
		Role:         role,
		Department:   department,
		Matrix:       matrix,
		Certificates: certs,
		Now:          s.clock.Now(),
	})
	fields["score"] = record.ComplianceScore
	return &record, nil
}

// DepartmentComplianceReport scores each worker. The matrix is read once.
func (s *trainingService) DepartmentComplianceReport(ctx context.Context, workers []domain.Worker) (_ *ComplianceReport, err error) {
	fields := map[string]any{"workers": len(workers)}
	defer observe(ctx, s.observer, "department_compliance_report", fields)(&err)

	now := s.clock.Now()
	matrix, err := s.matrix.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &ComplianceReport{Records: make([]domain.ComplianceRecord, 0, len(workers)), GeneratedAt: now}
	sum := 0
	for i, w := range workers {
		if err := validateStruct(w); err != nil {
			return nil, fmt.Errorf("worker %d (%s): %w", i+1, w.UserID, err)
		}
		certs, err := s.certs.List(ctx, repository.CertificateFilter{UserID: w.UserID})
		if err != nil {
			return nil, err
		}
		record := scheduler.ScoreCompliance(scheduler.ComplianceInput{
			UserID:       w.UserID,
			Role:         w.Role,
			Department:   w.Department,
			Matrix:       matrix,
			Certificates: certs,
			Now:          now,
		})
		sum += record.ComplianceScore
		if record.IsCompliant() {
			report.Compliant++
		}
		report.Records = append(report.Records, record)
	}
	if len(workers) > 0 {
		report.AverageScore = int(math.Round(float64(sum) / float64(len(workers))))
	}
	fields["average_score"] = report.AverageScore
	return report, nil
}
