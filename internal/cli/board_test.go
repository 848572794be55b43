package cli

import (
	"context"
	"testing"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/alexanderramin/complytrack/internal/repository"
	"github.com/alexanderramin/complytrack/internal/service"
	"github.com/alexanderramin/complytrack/internal/teatest"
	"github.com/alexanderramin/complytrack/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoardDriver(t *testing.T, app *App) (*teatest.Driver, *boardModel) {
	t.Helper()
	m := newBoardModel(app, repository.TaskFilter{})
	d := teatest.New(t, m, teatest.WithSize(160, 40))
	return d, d.Model.(*boardModel)
}

func TestBoard_GroupsTasksByStatus(t *testing.T) {
	app := testApp(t)
	seedTask(t, app, "Grease conveyor")
	blocked := seedTask(t, app, "Renew permit")
	_, err := app.Tasks.AddTaskBlocker(context.Background(), "ana", blocked.ID, "inspector away")
	require.NoError(t, err)

	d, m := newBoardDriver(t, app)

	assert.False(t, m.loading)
	assert.Len(t, m.columns[domain.TaskPending], 1)
	assert.Len(t, m.columns[domain.TaskBlocked], 1)
	d.RequireView("Grease conveyor", "Renew permit", "Pending (1)", "Blocked (1)")
}

func TestBoard_NavigationWraps(t *testing.T) {
	app := testApp(t)
	seedTask(t, app, "Only task")

	d, m := newBoardDriver(t, app)

	d.Press("left")
	assert.Equal(t, len(boardColumns)-1, m.col)
	d.Press("right")
	assert.Equal(t, 0, m.col)
	d.Press("l")
	assert.Equal(t, 1, m.col)
	assert.Nil(t, m.selected(), "in progress column is empty")
}

func TestBoard_AdvanceMovesTaskAcrossColumns(t *testing.T) {
	app := testApp(t)
	task := seedTask(t, app, "Calibrate gauges")

	d, m := newBoardDriver(t, app)
	require.Equal(t, task.ID, m.selected().ID)

	d.Press("p")
	assert.Len(t, m.columns[domain.TaskPending], 0)
	require.Len(t, m.columns[domain.TaskInProgress], 1)
	d.RequireView("Calibrate gauges → 25%")

	d.Press("right")
	for range 3 {
		d.Press("p")
	}
	assert.Len(t, m.columns[domain.TaskCompleted], 1)

	got, err := app.Tasks.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, got.Status)
}

func TestBoard_AdvanceBlockedTaskReportsError(t *testing.T) {
	app := testApp(t)
	task := seedTask(t, app, "Blocked job", testutil.WithPriority(domain.PriorityHigh))
	_, err := app.Tasks.AddTaskBlocker(context.Background(), "ana", task.ID, "parts missing")
	require.NoError(t, err)
	_, err = app.Tasks.UpdateTaskProgress(context.Background(), "ana", task.ID, service.ProgressUpdate{Progress: 75})
	require.NoError(t, err)

	d, m := newBoardDriver(t, app)
	d.Press("right")
	d.Press("right")
	require.NotNil(t, m.selected())

	d.Press("p")
	assert.Contains(t, m.status, "resolve open blockers")
	assert.Len(t, m.columns[domain.TaskBlocked], 1)
}

func TestBoard_DetailAndQuit(t *testing.T) {
	app := testApp(t)
	seedTask(t, app, "Audit binder")

	d, _ := newBoardDriver(t, app)
	d.Press("enter")
	d.RequireView("Factory", "factory-1")

	d.Press("q")
	assert.True(t, d.Quitting)
}

func TestBoardCmd_NeedsTerminal(t *testing.T) {
	app := testApp(t)

	_, err := executeCmd(t, app, "task", "board")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interactive terminal")
}
