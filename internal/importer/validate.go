package importer

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/complytrack/internal/domain"
)

// ValidateMatrixFile checks the matrix file for errors before conversion.
// Returns a slice of all validation errors found.
func ValidateMatrixFile(f *MatrixFile) []error {
	var errs []error

	trainingIDs := make(map[string]bool)
	errs = append(errs, validateTrainings(f.Trainings, trainingIDs)...)
	errs = append(errs, validateEntries(f.Matrix)...)
	errs = append(errs, validateWorkers(f.Workers)...)

	if len(f.Trainings) == 0 && len(f.Matrix) == 0 {
		errs = append(errs, fmt.Errorf("file defines neither trainings nor matrix entries"))
	}
	return errs
}

func validateTrainings(trainings []TrainingImport, ids map[string]bool) []error {
	var errs []error
	for i, t := range trainings {
		prefix := fmt.Sprintf("trainings[%d]", i)
		if t.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
		} else if ids[t.ID] {
			errs = append(errs, fmt.Errorf("%s.id %q is duplicated", prefix, t.ID))
		} else {
			ids[t.ID] = true
		}
		if strings.TrimSpace(t.Name) == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if !domain.ValidValidityPeriods[t.ValidityPeriod] {
			errs = append(errs, fmt.Errorf("%s.validity_period %q is invalid (expected 6_months, 1_year, 2_years, 3_years or never)", prefix, t.ValidityPeriod))
		}
		if t.PassingScore != nil && (*t.PassingScore < 0 || *t.PassingScore > 100) {
			errs = append(errs, fmt.Errorf("%s.passing_score %d must be between 0 and 100", prefix, *t.PassingScore))
		}
	}
	return errs
}

func validateEntries(entries []EntryImport) []error {
	var errs []error
	refs := make(map[string]bool)
	for i, e := range entries {
		prefix := fmt.Sprintf("matrix[%d]", i)
		if e.Ref != "" {
			if refs[e.Ref] {
				errs = append(errs, fmt.Errorf("%s.ref %q is duplicated", prefix, e.Ref))
			}
			refs[e.Ref] = true
		}
		if strings.TrimSpace(e.Role) == "" {
			errs = append(errs, fmt.Errorf("%s.role is required", prefix))
		}
		if strings.TrimSpace(e.Department) == "" {
			errs = append(errs, fmt.Errorf("%s.department is required (use %q for every department)", prefix, domain.AllDepartments))
		}
		if e.ValidityPeriod != "" && !domain.ValidValidityPeriods[e.ValidityPeriod] {
			errs = append(errs, fmt.Errorf("%s.validity_period %q is invalid", prefix, e.ValidityPeriod))
		}
		if len(e.Trainings) == 0 {
			errs = append(errs, fmt.Errorf("%s requires at least one training", prefix))
		}
		seen := make(map[string]bool)
		for j, rt := range e.Trainings {
			if rt.ID == "" {
				errs = append(errs, fmt.Errorf("%s.trainings[%d].id is required", prefix, j))
				continue
			}
			if seen[rt.ID] {
				errs = append(errs, fmt.Errorf("%s.trainings[%d].id %q is listed twice", prefix, j, rt.ID))
			}
			seen[rt.ID] = true
		}
	}
	return errs
}

func validateWorkers(workers []WorkerImport) []error {
	var errs []error
	ids := make(map[string]bool)
	for i, w := range workers {
		prefix := fmt.Sprintf("workers[%d]", i)
		if w.UserID == "" {
			errs = append(errs, fmt.Errorf("%s.user_id is required", prefix))
		} else if ids[w.UserID] {
			errs = append(errs, fmt.Errorf("%s.user_id %q is duplicated", prefix, w.UserID))
		} else {
			ids[w.UserID] = true
		}
		if w.Role == "" {
			errs = append(errs, fmt.Errorf("%s.role is required", prefix))
		}
		if w.Department == "" {
			errs = append(errs, fmt.Errorf("%s.department is required", prefix))
		}
	}
	return errs
}
