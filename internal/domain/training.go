package domain

import "time"

// Training is a catalog entry that certificates are issued against.
type Training struct {
	ID             string         `validate:"required"`
	Name           string         `validate:"required"`
	ValidityPeriod ValidityPeriod `validate:"oneof=6_months 1_year 2_years 3_years never"`
	PassingScore   int            `validate:"min=0,max=100"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type RequiredTraining struct {
	TrainingID   string `validate:"required"`
	TrainingName string
	RequiredBy   string // free-form deadline label, e.g. "onboarding" or "30_days"
}

// MatrixEntry maps a role in a department (or every department) to the
// trainings that role must hold.
type MatrixEntry struct {
	ID                string             `validate:"required"`
	Role              string             `validate:"required"`
	Department        string             `validate:"required"`
	RequiredTrainings []RequiredTraining `validate:"required,min=1,dive"`
	Frequency         string
	ValidityPeriod    ValidityPeriod `validate:"omitempty,oneof=6_months 1_year 2_years 3_years never"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Matches reports whether the entry applies to role in department.
func (e *MatrixEntry) Matches(role, department string) bool {
	if e.Role != role {
		return false
	}
	return e.Department == AllDepartments || e.Department == department
}

// Worker identifies a person for compliance reporting.
type Worker struct {
	UserID     string `yaml:"user_id" validate:"required"`
	Name       string `yaml:"name"`
	Role       string `yaml:"role" validate:"required"`
	Department string `yaml:"department" validate:"required"`
}

type CompletedTraining struct {
	RequiredTraining
	CertificateID     string
	CertificateNumber string
	ExpiresAt         *time.Time
}

// ComplianceRecord is derived on demand from the matrix and certificates.
// It is never stored.
type ComplianceRecord struct {
	UserID             string
	Role               string
	Department         string
	CompletedTrainings []CompletedTraining
	MissingTrainings   []RequiredTraining
	ComplianceScore    int
}

// IsCompliant reports whether nothing required is missing.
func (r *ComplianceRecord) IsCompliant() bool {
	return len(r.MissingTrainings) == 0
}
