package repository

import (
	"context"
	"testing"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/alexanderramin/complytrack/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainingRepo_UpsertAndList(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteTrainingRepo(database)
	ctx := context.Background()

	forklift := testutil.NewTestTraining("T1", "Forklift safety", testutil.WithValidity(domain.Validity2Years))
	hazmat := testutil.NewTestTraining("T2", "Hazmat handling", testutil.WithPassingScore(85))
	require.NoError(t, repo.Upsert(ctx, forklift))
	require.NoError(t, repo.Upsert(ctx, hazmat))

	got, err := repo.GetByID(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "Forklift safety", got.Name)
	assert.Equal(t, domain.Validity2Years, got.ValidityPeriod)

	forklift.Name = "Forklift operation"
	forklift.PassingScore = 90
	require.NoError(t, repo.Upsert(ctx, forklift))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Forklift operation", all[0].Name)
	assert.Equal(t, 90, all[0].PassingScore)
	assert.Equal(t, 85, all[1].PassingScore)

	require.NoError(t, repo.Delete(ctx, "T2"))
	_, err = repo.GetByID(ctx, "T2")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "T2"), ErrNotFound)
}

func TestMatrixRepo_UpsertReplacesRequirements(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteMatrixRepo(database)
	ctx := context.Background()

	entry := testutil.NewTestMatrixEntry("operator", "welding", "T1", "T2")
	require.NoError(t, repo.Upsert(ctx, entry))

	got, err := repo.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, got.RequiredTrainings, 2)
	assert.Equal(t, "T1", got.RequiredTrainings[0].TrainingID)
	assert.Equal(t, "T2", got.RequiredTrainings[1].TrainingID)

	entry.RequiredTrainings = []domain.RequiredTraining{{TrainingID: "T3", RequiredBy: "onboarding"}}
	require.NoError(t, repo.Upsert(ctx, entry))

	got, err = repo.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, got.RequiredTrainings, 1)
	assert.Equal(t, "T3", got.RequiredTrainings[0].TrainingID)
	assert.Equal(t, "onboarding", got.RequiredTrainings[0].RequiredBy)
}

func TestMatrixRepo_ListForRoleIncludesWildcard(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteMatrixRepo(database)
	ctx := context.Background()

	scoped := testutil.NewTestMatrixEntry("operator", "welding", "T1")
	wildcard := testutil.NewTestMatrixEntry("operator", domain.AllDepartments, "T2")
	otherDept := testutil.NewTestMatrixEntry("operator", "paint", "T3")
	otherRole := testutil.NewTestMatrixEntry("supervisor", "welding", "T4")
	for _, e := range []*domain.MatrixEntry{scoped, wildcard, otherDept, otherRole} {
		require.NoError(t, repo.Upsert(ctx, e))
	}

	got, err := repo.ListForRole(ctx, "operator", "welding")
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, e := range got {
		ids[e.ID] = true
	}
	assert.Len(t, got, 2)
	assert.True(t, ids[scoped.ID])
	assert.True(t, ids[wildcard.ID])

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	require.NoError(t, repo.Delete(ctx, scoped.ID))
	_, err = repo.GetByID(ctx, scoped.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
