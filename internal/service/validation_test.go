package service

import (
	"testing"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnakeCase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"UserID", "user_id"},
		{"TrainingID", "training_id"},
		{"EstimatedHours", "estimated_hours"},
		{"Score", "score"},
		{"CAPID", "capid"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, snakeCase(tt.in), tt.in)
	}
}

func TestValidateStruct_FieldNames(t *testing.T) {
	err := validateStruct(Attempt{TrainingID: "T1", Score: 101})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "user_id is required")
	assert.Contains(t, err.Error(), "score must be at most 100")

	err = validateStruct(domain.Worker{UserID: "ana"})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "role is required")
	assert.Contains(t, err.Error(), "department is required")
}

func TestValidateStruct_IssueRequest(t *testing.T) {
	score := 90
	assert.NoError(t, validateStruct(IssueRequest{TrainingID: "T1", UserID: "u1"}))
	assert.NoError(t, validateStruct(IssueRequest{TrainingID: "T1", UserID: "u1",
		ValidityPeriod: domain.ValidityNever, Score: &score}))

	err := validateStruct(IssueRequest{TrainingID: "T1", UserID: "u1", ValidityPeriod: "forever"})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), `validity_period "forever" must be one of`)

	score = -1
	err = validateStruct(IssueRequest{TrainingID: "T1", UserID: "u1", Score: &score})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "score must be at least 0")
}
