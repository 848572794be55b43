package importer

import (
	"fmt"
	"time"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/google/uuid"
)

// GeneratedMatrix holds the domain objects produced from a matrix file.
type GeneratedMatrix struct {
	Trainings []*domain.Training
	Entries   []*domain.MatrixEntry
	Workers   []domain.Worker
}

// Convert transforms a validated MatrixFile into domain objects ready for
// persistence. Call ValidateMatrixFile first; Convert assumes the file is valid.
//
// Entry ids are derived from the entry's ref, or from role, department and
// position when no ref is given, so importing the same file twice updates
// the same rows.
func Convert(f *MatrixFile, now time.Time) (*GeneratedMatrix, error) {
	gen := &GeneratedMatrix{}

	names := make(map[string]string, len(f.Trainings))
	for _, t := range f.Trainings {
		passing := 0
		if t.PassingScore != nil {
			passing = *t.PassingScore
		}
		names[t.ID] = t.Name
		gen.Trainings = append(gen.Trainings, &domain.Training{
			ID:             t.ID,
			Name:           t.Name,
			ValidityPeriod: domain.ValidityPeriod(t.ValidityPeriod),
			PassingScore:   passing,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	for i, e := range f.Matrix {
		if len(e.Trainings) == 0 {
			return nil, fmt.Errorf("matrix[%d]: no trainings", i)
		}
		required := make([]domain.RequiredTraining, 0, len(e.Trainings))
		for _, rt := range e.Trainings {
			required = append(required, domain.RequiredTraining{
				TrainingID:   rt.ID,
				TrainingName: names[rt.ID],
				RequiredBy:   rt.RequiredBy,
			})
		}
		gen.Entries = append(gen.Entries, &domain.MatrixEntry{
			ID:                EntryID(e, i),
			Role:              e.Role,
			Department:        e.Department,
			RequiredTrainings: required,
			Frequency:         e.Frequency,
			ValidityPeriod:    domain.ValidityPeriod(e.ValidityPeriod),
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	for _, w := range f.Workers {
		gen.Workers = append(gen.Workers, domain.Worker{
			UserID:     w.UserID,
			Name:       w.Name,
			Role:       w.Role,
			Department: w.Department,
		})
	}
	return gen, nil
}

// EntryID returns the stable id for the entry at position idx.
func EntryID(e EntryImport, idx int) string {
	key := fmt.Sprintf("complytrack:matrix:%s|%s|%d", e.Role, e.Department, idx)
	if e.Ref != "" {
		key = "complytrack:matrix-ref:" + e.Ref
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}
