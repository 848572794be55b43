package scheduler

import (
	"math"
	"time"

	"github.com/alexanderramin/complytrack/internal/domain"
)

type ComplianceInput struct {
	UserID       string
	Role         string
	Department   string
	Matrix       []domain.MatrixEntry
	Certificates []domain.Certificate
	Now          time.Time
}

// RequiredFor returns the trainings the matrix requires of role in
// department, in matrix order. A training required by several entries is
// listed once.
func RequiredFor(matrix []domain.MatrixEntry, role, department string) []domain.RequiredTraining {
	seen := make(map[string]bool)
	var required []domain.RequiredTraining
	for i := range matrix {
		if !matrix[i].Matches(role, department) {
			continue
		}
		for _, rt := range matrix[i].RequiredTrainings {
			if seen[rt.TrainingID] {
				continue
			}
			seen[rt.TrainingID] = true
			required = append(required, rt)
		}
	}
	return required
}

// ScoreCompliance derives a compliance record for one worker. It is a pure
// function of its input.
//
// A requirement is met by any certificate for the training that is active
// and not yet expired at Now. The validity period is fixed when a
// certificate is issued and is not re-checked against the matrix here.
func ScoreCompliance(in ComplianceInput) domain.ComplianceRecord {
	record := domain.ComplianceRecord{
		UserID:             in.UserID,
		Role:               in.Role,
		Department:         in.Department,
		CompletedTrainings: []domain.CompletedTraining{},
		MissingTrainings:   []domain.RequiredTraining{},
	}

	required := RequiredFor(in.Matrix, in.Role, in.Department)
	if len(required) == 0 {
		record.ComplianceScore = 100
		return record
	}

	best := bestValidCertificates(in.Certificates, in.UserID, in.Now)
	for _, rt := range required {
		cert, ok := best[rt.TrainingID]
		if !ok {
			record.MissingTrainings = append(record.MissingTrainings, rt)
			continue
		}
		record.CompletedTrainings = append(record.CompletedTrainings, domain.CompletedTraining{
			RequiredTraining:  rt,
			CertificateID:     cert.ID,
			CertificateNumber: cert.CertificateNumber,
			ExpiresAt:         cert.ExpiresAt,
		})
	}

	record.ComplianceScore = Score(len(record.CompletedTrainings), len(required))
	return record
}

// Score is round(100 * completed / total), or 100 when nothing is required.
func Score(completed, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(completed) * 100 / float64(total)))
}

// bestValidCertificates picks, per training, the valid certificate that
// stays valid longest. Never-expiring certificates win; ties go to the most
// recently issued.
func bestValidCertificates(certs []domain.Certificate, userID string, now time.Time) map[string]domain.Certificate {
	best := make(map[string]domain.Certificate)
	for _, c := range certs {
		if userID != "" && c.UserID != userID {
			continue
		}
		if !c.IsValidAt(now) {
			continue
		}
		cur, ok := best[c.TrainingID]
		if !ok || outlasts(c, cur) {
			best[c.TrainingID] = c
		}
	}
	return best
}

func outlasts(a, b domain.Certificate) bool {
	switch {
	case a.ExpiresAt == nil && b.ExpiresAt != nil:
		return true
	case a.ExpiresAt != nil && b.ExpiresAt == nil:
		return false
	case a.ExpiresAt != nil && !a.ExpiresAt.Equal(*b.ExpiresAt):
		return a.ExpiresAt.After(*b.ExpiresAt)
	default:
		return a.IssuedAt.After(b.IssuedAt)
	}
}
