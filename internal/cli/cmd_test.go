package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexanderramin/complytrack/internal/config"
	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/alexanderramin/complytrack/internal/repository"
	"github.com/alexanderramin/complytrack/internal/service"
	"github.com/alexanderramin/complytrack/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cliNow = testutil.FixtureTime

// testApp wires a full App backed by an in-memory DB for CLI integration tests.
func testApp(t *testing.T) *App {
	t.Helper()
	database := testutil.NewTestDB(t)
	uow := testutil.NewTestUoW(database)
	clock := testutil.NewFixedClock(cliNow)

	taskRepo := repository.NewSQLiteTaskRepo(database)
	trainingRepo := repository.NewSQLiteTrainingRepo(database)
	matrixRepo := repository.NewSQLiteMatrixRepo(database)
	certRepo := repository.NewSQLiteCertificateRepo(database)

	return &App{
		Tasks:        service.NewTaskService(taskRepo, uow, service.WithClock(clock)),
		Trainings:    service.NewTrainingService(trainingRepo, matrixRepo, certRepo, uow, service.WithClock(clock)),
		Certificates: service.NewCertificateService(certRepo, uow, service.WithClock(clock)),
		Config:       config.DefaultConfig(),
		Clock:        clock,
		Registry:     prometheus.NewRegistry(),
	}
}

// executeCmd runs a cobra command and captures stdout/stderr.
func executeCmd(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(app)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// seedTask creates a task through the service and returns it. Dates default
// to a window around cliNow.
func seedTask(t *testing.T, app *App, title string, opts ...testutil.TaskOption) *domain.Task {
	t.Helper()
	opts = append([]testutil.TaskOption{
		testutil.WithStartDate(cliNow.AddDate(0, 0, -30)),
		testutil.WithDueDate(cliNow.AddDate(0, 0, 14)),
	}, opts...)
	task := testutil.NewTestTask(title, opts...)
	_, err := app.Tasks.CreateTask(context.Background(), "seed", task)
	require.NoError(t, err)
	return task
}

func allTasks(t *testing.T, app *App) []*domain.Task {
	t.Helper()
	tasks, err := app.Tasks.ListTasks(context.Background(), repository.TaskFilter{}, repository.ListOptions{})
	require.NoError(t, err)
	return tasks
}

// --- Root command ---

func TestRootCmd_NoArgs_ShowsHelp(t *testing.T) {
	app := testApp(t)

	output, err := executeCmd(t, app)
	require.NoError(t, err)
	assert.Contains(t, output, "complytrack")
	assert.Contains(t, output, "task")
	assert.Contains(t, output, "cert")
}

func TestRootCmd_ActorDefaultsToConfig(t *testing.T) {
	app := testApp(t)

	_, err := executeCmd(t, app, "task", "add", "--factory", "F1", "--title", "Replace filters",
		"--type", "maintenance", "--due", "2025-07-01")
	require.NoError(t, err)

	tasks := allTasks(t, app)
	require.Len(t, tasks, 1)
	assert.Equal(t, "system", tasks[0].CreatedBy)
}

func TestApp_ActorWithoutConfig(t *testing.T) {
	app := &App{}
	assert.Equal(t, "system", app.Actor())

	app.Config = &config.Config{Actor: "qa-lead"}
	assert.Equal(t, "qa-lead", app.Actor())

	app.actor = "ana"
	assert.Equal(t, "ana", app.Actor())
}

func TestBoard_AdvanceWithoutRootCmd(t *testing.T) {
	app := testApp(t)
	app.Config = nil
	task := seedTask(t, app, "Sweep loading bay")

	d, m := newBoardDriver(t, app)
	require.Equal(t, task.ID, m.selected().ID)
	d.Press("p")

	got, err := app.Tasks.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.Progress)
}

// --- task add ---

func TestTaskAdd_CreatesTask(t *testing.T) {
	app := testApp(t)

	output, err := executeCmd(t, app, "--as", "lead", "task", "add",
		"--factory", "F1", "--title", "Renew boiler permit", "--type", "permit_renewal",
		"--priority", "high", "--due", "2025-07-01", "--assign", "ana", "--permit", "P-7")
	require.NoError(t, err)
	assert.Contains(t, output, "Created task Renew boiler permit")

	tasks := allTasks(t, app)
	require.Len(t, tasks, 1)
	got := tasks[0]
	assert.Equal(t, "lead", got.CreatedBy)
	assert.Equal(t, domain.PriorityHigh, got.Priority)
	assert.Equal(t, domain.TaskPending, got.Status)
	assert.Equal(t, "P-7", got.PermitID)
	require.NotNil(t, got.Assignee)
	assert.Equal(t, "ana", *got.Assignee)
	assert.True(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC).Equal(got.StartDate), "start defaults to today")
}

func TestTaskAdd_MissingRequiredFlag(t *testing.T) {
	app := testApp(t)

	_, err := executeCmd(t, app, "task", "add", "--factory", "F1", "--title", "No due date", "--type", "training")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"due"`)
}

func TestTaskAdd_RejectsUnknownEnum(t *testing.T) {
	app := testApp(t)

	_, err := executeCmd(t, app, "task", "add", "--factory", "F1", "--title", "X",
		"--type", "maintenance", "--priority", "urgent", "--due", "2025-07-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be one of critical, high, low, medium")
}

func TestTaskAdd_RejectsBadDate(t *testing.T) {
	app := testApp(t)

	_, err := executeCmd(t, app, "task", "add", "--factory", "F1", "--title", "X",
		"--type", "maintenance", "--due", "01/07/2025")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use YYYY-MM-DD")
}

func TestTaskAdd_RecurringTemplateGeneratesInstances(t *testing.T) {
	app := testApp(t)

	output, err := executeCmd(t, app, "task", "add", "--factory", "F1", "--title", "Monthly extinguisher check",
		"--type", "maintenance", "--start", "2024-01-15", "--due", "2024-02-15",
		"--recur", "monthly", "--until", "2024-04-15")
	require.NoError(t, err)
	assert.Contains(t, output, "Generated 3 instances due 2024-02-15 to 2024-04-15")
	assert.Len(t, allTasks(t, app), 4)
}

func TestTaskAdd_OpenEndedRecurrenceFails(t *testing.T) {
	app := testApp(t)

	_, err := executeCmd(t, app, "task", "add", "--factory", "F1", "--title", "Weekly walk",
		"--type", "maintenance", "--due", "2025-06-22", "--recur", "weekly")
	require.Error(t, err)
	assert.Empty(t, allTasks(t, app))
}

func TestTaskAdd_InteractiveNeedsTerminal(t *testing.T) {
	app := testApp(t)
	app.IsInteractive = func() bool { return false }

	_, err := executeCmd(t, app, "task", "add", "-i")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interactive terminal")
}

// --- task list / show ---

func TestTaskList_FiltersAndEmpty(t *testing.T) {
	app := testApp(t)

	output, err := executeCmd(t, app, "task", "list")
	require.NoError(t, err)
	assert.Contains(t, output, "No tasks found.")

	seedTask(t, app, "Audit binder", testutil.WithType(domain.TaskAuditPrep), testutil.WithFactory("F1"))
	seedTask(t, app, "Grease conveyor", testutil.WithType(domain.TaskMaintenance), testutil.WithFactory("F2"))

	output, err = executeCmd(t, app, "task", "list", "--factory", "F1")
	require.NoError(t, err)
	assert.Contains(t, output, "Audit binder")
	assert.NotContains(t, output, "Grease conveyor")

	output, err = executeCmd(t, app, "task", "list", "--type", "maintenance", "--sort", "priority", "--desc")
	require.NoError(t, err)
	assert.Contains(t, output, "Grease conveyor")
	assert.NotContains(t, output, "Audit binder")
}

func TestTaskList_InvalidStatusAndSort(t *testing.T) {
	app := testApp(t)

	_, err := executeCmd(t, app, "task", "list", "--status", "done")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid status "done"`)

	_, err = executeCmd(t, app, "task", "list", "--sort", "title")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sort")
}

func TestTaskList_WritesXLSX(t *testing.T) {
	app := testApp(t)
	seedTask(t, app, "Audit binder")
	path := filepath.Join(t.TempDir(), "tasks.xlsx")

	output, err := executeCmd(t, app, "task", "list", "--xlsx", path)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote 1 tasks to")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestTaskShow_ByPrefix(t *testing.T) {
	app := testApp(t)
	task := seedTask(t, app, "Calibrate gauges", testutil.WithPriority(domain.PriorityCritical))

	output, err := executeCmd(t, app, "task", "show", task.ID[:8])
	require.NoError(t, err)
	assert.Contains(t, output, "Calibrate gauges")
	assert.Contains(t, output, "CRITICAL")
	assert.Contains(t, output, task.ID)
}

func TestTaskShow_NotFound(t *testing.T) {
	app := testApp(t)

	_, err := executeCmd(t, app, "task", "show", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `task not found: "nope"`)
}

// --- task lifecycle ---

func TestTaskProgress_CompletesAt100(t *testing.T) {
	app := testApp(t)
	task := seedTask(t, app, "Replace filters")

	output, err := executeCmd(t, app, "task", "progress", task.ID, "--set", "40", "--hours", "1.5", "-m", "half way")
	require.NoError(t, err)
	assert.Contains(t, output, "In Progress")

	_, err = executeCmd(t, app, "task", "progress", task.ID, "--set", "100")
	require.NoError(t, err)

	got, err := app.Tasks.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.InDelta(t, 1.5, got.ActualHours, 0.001)
	require.NotNil(t, got.CompletedAt)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "half way", got.Comments[0].Text)
}

func TestTaskProgress_OutOfRange(t *testing.T) {
	app := testApp(t)
	task := seedTask(t, app, "Replace filters")

	_, err := executeCmd(t, app, "task", "progress", task.ID, "--set", "120")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTaskBlockUnblock(t *testing.T) {
	app := testApp(t)
	task := seedTask(t, app, "Permit renewal")
	_, err := executeCmd(t, app, "task", "progress", task.ID, "--set", "40")
	require.NoError(t, err)

	output, err := executeCmd(t, app, "task", "block", task.ID, "--reason", "waiting on inspector")
	require.NoError(t, err)
	assert.Contains(t, output, "Blocked")

	blocked, err := app.Tasks.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskBlocked, blocked.Status)
	require.Len(t, blocked.Blockers, 1)

	output, err = executeCmd(t, app, "task", "unblock", task.ID, blocked.Blockers[0].ID[:6], "--resolution", "inspected")
	require.NoError(t, err)
	assert.Contains(t, output, "Pending")

	got, err := app.Tasks.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPending, got.Status)
	assert.Equal(t, 40, got.Progress)

	_, err = executeCmd(t, app, "task", "unblock", task.ID, blocked.Blockers[0].ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no open blocker")
}

func TestTaskComment(t *testing.T) {
	app := testApp(t)
	task := seedTask(t, app, "Audit binder")

	_, err := executeCmd(t, app, "--as", "ana", "task", "comment", task.ID, "binder is in room 3")
	require.NoError(t, err)

	output, err := executeCmd(t, app, "task", "show", task.ID)
	require.NoError(t, err)
	assert.Contains(t, output, "binder is in room 3")
	assert.Contains(t, output, "ana")
}

func TestTaskAssign_Bulk(t *testing.T) {
	app := testApp(t)
	a := seedTask(t, app, "Task A")
	b := seedTask(t, app, "Task B")

	output, err := executeCmd(t, app, "task", "assign", a.ID, b.ID, "--to", "ana,ben", "--priority", "high")
	require.NoError(t, err)
	assert.Contains(t, output, "Assigned Task A")
	assert.Contains(t, output, "ana, ben")

	for _, id := range []string{a.ID, b.ID} {
		got, err := app.Tasks.GetTask(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, []string{"ana", "ben"}, got.Assignees)
		assert.Nil(t, got.Assignee)
		assert.Equal(t, domain.PriorityHigh, got.Priority)
	}
}

func TestTaskDependAndDeps(t *testing.T) {
	app := testApp(t)
	first := seedTask(t, app, "Calibrate gauges")
	second := seedTask(t, app, "Sign off audit")

	output, err := executeCmd(t, app, "task", "deps", second.ID)
	require.NoError(t, err)
	assert.Contains(t, output, "No dependencies.")

	_, err = executeCmd(t, app, "task", "depend", second.ID, "--on", first.ID)
	require.NoError(t, err)

	output, err = executeCmd(t, app, "task", "deps", second.ID)
	require.NoError(t, err)
	assert.Contains(t, output, "Calibrate gauges")

	_, err = executeCmd(t, app, "task", "depend", second.ID, "--on", second.ID)
	require.Error(t, err)
}

func TestTaskCancelAndRemove(t *testing.T) {
	app := testApp(t)
	task := seedTask(t, app, "Obsolete check")

	output, err := executeCmd(t, app, "task", "cancel", task.ID)
	require.NoError(t, err)
	assert.Contains(t, output, "Cancelled Obsolete check")

	_, err = executeCmd(t, app, "task", "progress", task.ID, "--set", "10")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = executeCmd(t, app, "task", "rm", task.ID)
	require.NoError(t, err)
	assert.Empty(t, allTasks(t, app))
}

func TestTaskRecur_FillsMissingInstances(t *testing.T) {
	app := testApp(t)
	_, err := executeCmd(t, app, "task", "add", "--factory", "F1", "--title", "Weekly walk",
		"--type", "maintenance", "--start", "2025-06-02", "--due", "2025-06-09",
		"--recur", "weekly", "--until", "2025-06-30")
	require.NoError(t, err)

	tmpl, err := app.Tasks.ListTasks(context.Background(), repository.TaskFilter{}, repository.ListOptions{})
	require.NoError(t, err)
	var templateID string
	for _, task := range tmpl {
		if task.IsRecurring {
			templateID = task.ID
		}
	}
	require.NotEmpty(t, templateID)

	output, err := executeCmd(t, app, "task", "recur", templateID)
	require.NoError(t, err)
	assert.Contains(t, output, "All instances already exist.")

	output, err = executeCmd(t, app, "task", "list", "--template", templateID)
	require.NoError(t, err)
	assert.Contains(t, output, "2025-06-30")
}

func TestTaskOverdueAndStats(t *testing.T) {
	app := testApp(t)

	output, err := executeCmd(t, app, "task", "overdue")
	require.NoError(t, err)
	assert.Contains(t, output, "Nothing overdue.")

	seedTask(t, app, "Late report", testutil.WithDueDate(cliNow.AddDate(0, 0, -3)))
	seedTask(t, app, "Future report", testutil.WithDueDate(cliNow.AddDate(0, 0, 10)))

	output, err = executeCmd(t, app, "task", "overdue")
	require.NoError(t, err)
	assert.Contains(t, output, "Late report")
	assert.NotContains(t, output, "Future report")

	path := filepath.Join(t.TempDir(), "stats.xlsx")
	output, err = executeCmd(t, app, "task", "stats", "--xlsx", path)
	require.NoError(t, err)
	assert.Contains(t, output, "TASK ANALYTICS")
	assert.Contains(t, output, "Wrote 2 tasks")
	assert.FileExists(t, path)
}

// --- training, matrix, compliance ---

const cliMatrix = `
trainings:
  - id: T1
    name: Forklift safety
    validity_period: 1_year
    passing_score: 80
  - id: T2
    name: Fire warden
    validity_period: never
matrix:
  - role: operator
    department: welding
    trainings:
      - id: T1
      - id: T2
        required_by: onboarding
workers:
  - user_id: ana
    name: Ana Silva
    role: operator
    department: welding
  - user_id: ben
    role: operator
    department: welding
`

func writeMatrixFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "matrix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cliMatrix), 0o644))
	return path
}

func TestTrainingAddListShow(t *testing.T) {
	app := testApp(t)

	_, err := executeCmd(t, app, "training", "add", "--id", "T9", "--name", "Lockout tagout",
		"--validity", "2_years", "--passing-score", "70")
	require.NoError(t, err)

	output, err := executeCmd(t, app, "training", "list")
	require.NoError(t, err)
	assert.Contains(t, output, "Lockout tagout")
	assert.Contains(t, output, "2 years")

	output, err = executeCmd(t, app, "training", "show", "T9")
	require.NoError(t, err)
	assert.Contains(t, output, "70")

	_, err = executeCmd(t, app, "training", "show", "T404")
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMatrixImportListRemove(t *testing.T) {
	app := testApp(t)
	path := writeMatrixFile(t)

	output, err := executeCmd(t, app, "matrix", "import", path, "--replace")
	require.NoError(t, err)
	assert.Contains(t, output, "Imported 2 trainings and 1 matrix entries, removed 0")

	output, err = executeCmd(t, app, "matrix", "list")
	require.NoError(t, err)
	assert.Contains(t, output, "operator")
	assert.Contains(t, output, "T1, T2")

	_, err = executeCmd(t, app, "matrix", "add", "--id", "extra", "--role", "lead", "--trainings", "T1:30_days")
	require.NoError(t, err)

	entries, err := app.Trainings.ListMatrix(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	_, err = executeCmd(t, app, "matrix", "rm", "extra")
	require.NoError(t, err)
	entries, err = app.Trainings.ListMatrix(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestComplianceCheckAndReport(t *testing.T) {
	app := testApp(t)
	path := writeMatrixFile(t)
	_, err := executeCmd(t, app, "matrix", "import", path)
	require.NoError(t, err)

	_, err = executeCmd(t, app, "cert", "complete", "--user", "ana", "--training", "T1", "--score", "85")
	require.NoError(t, err)

	output, err := executeCmd(t, app, "compliance", "check", "--user", "ana", "--role", "operator", "--department", "welding")
	require.NoError(t, err)
	assert.Contains(t, output, "not compliant")
	assert.Contains(t, output, "50%")
	assert.Contains(t, output, "onboarding")

	xlsx := filepath.Join(t.TempDir(), "report.xlsx")
	output, err = executeCmd(t, app, "compliance", "report", "--from", path, "--worker", "cy:operator:welding", "--xlsx", xlsx)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote 3 records")
	assert.Contains(t, output, "0/3")
	assert.FileExists(t, xlsx)

	_, err = executeCmd(t, app, "compliance", "report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no workers")

	_, err = executeCmd(t, app, "compliance", "report", "--worker", "bad-spec")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user:role:department")
}

// --- certificates ---

func TestCertLifecycle(t *testing.T) {
	app := testApp(t)
	_, err := executeCmd(t, app, "training", "add", "--id", "T1", "--name", "Forklift safety",
		"--validity", "6_months", "--passing-score", "80")
	require.NoError(t, err)

	_, err = executeCmd(t, app, "cert", "complete", "--user", "ana", "--training", "T1", "--score", "60")
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrAttemptFailed)

	output, err := executeCmd(t, app, "--as", "trainer", "cert", "issue", "--user", "ana", "--training", "T1")
	require.NoError(t, err)
	assert.Contains(t, output, "Issued CERT-20250615-")

	certs, err := app.Certificates.ListCertificates(context.Background(), repository.CertificateFilter{UserID: "ana"})
	require.NoError(t, err)
	require.Len(t, certs, 1)
	number := certs[0].CertificateNumber

	output, err = executeCmd(t, app, "cert", "show", number)
	require.NoError(t, err)
	assert.Contains(t, output, "trainer")
	assert.Contains(t, output, "2025-12-15")

	_, err = executeCmd(t, app, "cert", "revoke", number)
	require.Error(t, err, "reason is required")

	output, err = executeCmd(t, app, "cert", "revoke", number, "--reason", "exam irregularity")
	require.NoError(t, err)
	assert.Contains(t, output, "Revoked "+number)

	output, err = executeCmd(t, app, "cert", "list", "--status", "revoked")
	require.NoError(t, err)
	assert.Contains(t, output, number)

	output, err = executeCmd(t, app, "cert", "list", "--status", "active")
	require.NoError(t, err)
	assert.Contains(t, output, "No certificates found.")
}

func TestCertIssue_UnknownTrainingNeedsValidity(t *testing.T) {
	app := testApp(t)

	_, err := executeCmd(t, app, "cert", "issue", "--user", "ana", "--training", "EXT-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = executeCmd(t, app, "cert", "issue", "--user", "ana", "--training", "EXT-1", "--validity", "1_year", "--score", "90")
	require.NoError(t, err)
}

func TestCertExpireAndJobsOnce(t *testing.T) {
	app := testApp(t)
	_, err := executeCmd(t, app, "cert", "issue", "--user", "ana", "--training", "EXT-1", "--validity", "6_months")
	require.NoError(t, err)
	seedTask(t, app, "Late report", testutil.WithDueDate(cliNow.AddDate(0, 0, -1)))

	app.Clock.(*testutil.FixedClock).Advance(200 * 24 * time.Hour)

	output, err := executeCmd(t, app, "jobs", "run", "--once")
	require.NoError(t, err)
	assert.Contains(t, output, "Expired 1 certificate(s); 1 task(s) overdue")

	output, err = executeCmd(t, app, "cert", "expire")
	require.NoError(t, err)
	assert.Contains(t, output, "Expired 0 certificate(s)")
}

func TestJobsRun_InvalidScheduleFails(t *testing.T) {
	app := testApp(t)
	root := NewRootCmd(app)
	app.Config.Jobs.OverdueScan = "every tuesday"

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"jobs", "run"})
	err := root.Execute()
	require.Error(t, err)
}
