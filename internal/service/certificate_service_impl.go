package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/complytrack/internal/db"
	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/alexanderramin/complytrack/internal/events"
	"github.com/alexanderramin/complytrack/internal/repository"
	"github.com/alexanderramin/complytrack/internal/scheduler"
)

// ErrAttemptFailed is returned when a training attempt scores below the
// training's passing score. No certificate is issued.
var ErrAttemptFailed = errors.New("training attempt below passing score")

type certificateService struct {
	settings
	certs    repository.CertificateRepo
	uow      db.UnitOfWork
	observer UseCaseObserver
}

func NewCertificateService(certs repository.CertificateRepo, uow db.UnitOfWork, opts ...Option) CertificateService {
	s := newSettings(opts)
	return &certificateService{
		settings: s,
		certs:    certs,
		uow:      uow,
		observer: useCaseObserverOrNoop(s.observers),
	}
}

// IssueCertificate issues a certificate whose expiry is fixed now from the
// validity period. The training does not have to be in the catalog when a
// period is given explicitly.
func (s *certificateService) IssueCertificate(ctx context.Context, actor string, req IssueRequest) (_ *domain.Certificate, err error) {
	fields := map[string]any{"actor": actor, "user_id": req.UserID, "training_id": req.TrainingID}
	defer observe(ctx, s.observer, "issue_certificate", fields)(&err)

	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var cert *domain.Certificate
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		period := req.ValidityPeriod
		training, err := repository.NewSQLiteTrainingRepo(tx).GetByID(ctx, req.TrainingID)
		switch {
		case err == nil:
			if period == "" {
				period = training.ValidityPeriod
			}
		case IsNotFound(err):
			if period == "" {
				return fmt.Errorf("%w: training %s is not in the catalog, a validity period is required",
					domain.ErrValidation, req.TrainingID)
			}
		default:
			return err
		}

		c, err := s.newCertificate(actor, req.UserID, req.TrainingID, period, req.Score)
		if err != nil {
			return err
		}
		if err := repository.NewSQLiteCertificateRepo(tx).Create(ctx, c); err != nil {
			return err
		}
		cert = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields["certificate_number"] = cert.CertificateNumber

	s.publishIssued(ctx, actor, cert)
	return cert, nil
}

// CompleteTraining records a scored attempt against a catalog training and
// issues a certificate when the score reaches the passing score.
func (s *certificateService) CompleteTraining(ctx context.Context, actor string, attempt Attempt) (_ *domain.Certificate, err error) {
	fields := map[string]any{"actor": actor, "user_id": attempt.UserID, "training_id": attempt.TrainingID, "score": attempt.Score}
	defer observe(ctx, s.observer, "complete_training", fields)(&err)

	if err := validateStruct(attempt); err != nil {
		return nil, err
	}

	var cert *domain.Certificate
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		training, err := repository.NewSQLiteTrainingRepo(tx).GetByID(ctx, attempt.TrainingID)
		if err != nil {
			return err
		}
		if attempt.Score < training.PassingScore {
			return fmt.Errorf("%w: scored %d, %s requires %d",
				ErrAttemptFailed, attempt.Score, training.Name, training.PassingScore)
		}
		score := attempt.Score
		c, err := s.newCertificate(actor, attempt.UserID, training.ID, training.ValidityPeriod, &score)
		if err != nil {
			return err
		}
		if err := repository.NewSQLiteCertificateRepo(tx).Create(ctx, c); err != nil {
			return err
		}
		cert = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields["certificate_number"] = cert.CertificateNumber

	s.publishIssued(ctx, actor, cert)
	return cert, nil
}

func (s *certificateService) RevokeCertificate(ctx context.Context, actor, id, reason string) (_ *domain.Certificate, err error) {
	fields := map[string]any{"actor": actor, "certificate": id}
	defer observe(ctx, s.observer, "revoke_certificate", fields)(&err)

	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: a revocation reason is required", domain.ErrValidation)
	}

	var cert *domain.Certificate
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txCerts := repository.NewSQLiteCertificateRepo(tx)
		c, err := lookupCertificate(ctx, txCerts, id)
		if err != nil {
			return err
		}
		if err := c.Revoke(reason, s.clock.Now()); err != nil {
			return err
		}
		if err := txCerts.Update(ctx, c); err != nil {
			return err
		}
		cert = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, s.event(events.CertificateRevoked, cert.ID, actor, map[string]any{
		"certificate_number": cert.CertificateNumber, "user_id": cert.UserID, "reason": reason,
	}))
	return cert, nil
}

// GetCertificate accepts either a certificate id or its CERT- number.
func (s *certificateService) GetCertificate(ctx context.Context, idOrNumber string) (*domain.Certificate, error) {
	return lookupCertificate(ctx, s.certs, idOrNumber)
}

func (s *certificateService) ListCertificates(ctx context.Context, filter repository.CertificateFilter) ([]domain.Certificate, error) {
	return s.certs.List(ctx, filter)
}

// ExpireCertificates moves every active certificate whose expiry is at or
// before now to expired and returns how many changed. A zero now means the
// service clock.
func (s *certificateService) ExpireCertificates(ctx context.Context, now time.Time) (_ int, err error) {
	fields := map[string]any{}
	defer observe(ctx, s.observer, "expire_certificates", fields)(&err)

	if now.IsZero() {
		now = s.clock.Now()
	}

	var expired []string
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txCerts := repository.NewSQLiteCertificateRepo(tx)
		due, err := txCerts.ListExpired(ctx, now)
		if err != nil {
			return err
		}
		for i := range due {
			c := &due[i]
			if err := c.Expire(now); err != nil {
				return err
			}
			if err := txCerts.Update(ctx, c); err != nil {
				return err
			}
			expired = append(expired, c.CertificateNumber)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	fields["expired"] = len(expired)

	if len(expired) > 0 {
		s.publish(ctx, s.event(events.CertificatesExpired, "", "", map[string]any{
			"count": len(expired), "certificate_numbers": expired,
		}))
	}
	return len(expired), nil
}

func (s *certificateService) newCertificate(actor, userID, trainingID string, period domain.ValidityPeriod, score *int) (*domain.Certificate, error) {
	now := s.clock.Now()
	expires, err := scheduler.ExpiryFor(period, now)
	if err != nil {
		return nil, err
	}
	return &domain.Certificate{
		ID:                s.newID(),
		UserID:            userID,
		TrainingID:        trainingID,
		CertificateNumber: scheduler.NewCertificateNumber(now),
		Status:            domain.CertificateActive,
		Score:             score,
		IssuedBy:          actor,
		IssuedAt:          now,
		ExpiresAt:         expires,
	}, nil
}

func (s *certificateService) publishIssued(ctx context.Context, actor string, c *domain.Certificate) {
	data := map[string]any{
		"certificate_number": c.CertificateNumber,
		"user_id":            c.UserID,
		"training_id":        c.TrainingID,
	}
	if c.ExpiresAt != nil {
		data["expires_at"] = *c.ExpiresAt
	}
	s.publish(ctx, s.event(events.CertificateIssued, c.ID, actor, data))
}

func lookupCertificate(ctx context.Context, certs repository.CertificateRepo, idOrNumber string) (*domain.Certificate, error) {
	if strings.HasPrefix(idOrNumber, "CERT-") {
		return certs.GetByNumber(ctx, idOrNumber)
	}
	return certs.GetByID(ctx, idOrNumber)
}
