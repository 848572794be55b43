package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/alexanderramin/complytrack/internal/repository"
	"github.com/alexanderramin/complytrack/internal/service"
	"github.com/alexanderramin/complytrack/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jobsNow = testutil.FixtureTime

type stubExpirer struct {
	calls atomic.Int32
	n     int
	err   error
	seen  time.Time
}

func (s *stubExpirer) ExpireCertificates(_ context.Context, now time.Time) (int, error) {
	s.calls.Add(1)
	s.seen = now
	return s.n, s.err
}

type stubOverdue struct {
	tasks []*domain.Task
	err   error
}

func (s *stubOverdue) GetOverdueTasks(context.Context, time.Time) ([]*domain.Task, error) {
	return s.tasks, s.err
}

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func quietLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestRunOnce_RealServices(t *testing.T) {
	database := testutil.NewTestDB(t)
	uow := testutil.NewTestUoW(database)
	clock := testutil.NewFixedClock(jobsNow)
	ctx := context.Background()

	certRepo := repository.NewSQLiteCertificateRepo(database)
	require.NoError(t, certRepo.Create(ctx, testutil.NewTestCertificate("u1", "T1",
		testutil.WithExpiresAt(jobsNow.AddDate(0, 0, -1)))))
	require.NoError(t, certRepo.Create(ctx, testutil.NewTestCertificate("u2", "T1",
		testutil.WithExpiresAt(jobsNow.AddDate(0, 1, 0)))))

	taskRepo := repository.NewSQLiteTaskRepo(database)
	start := jobsNow.AddDate(0, 0, -10)
	require.NoError(t, taskRepo.Create(ctx, testutil.NewTestTask("late audit",
		testutil.WithStartDate(start), testutil.WithDueDate(jobsNow.AddDate(0, 0, -2)))))
	require.NoError(t, taskRepo.Create(ctx, testutil.NewTestTask("finished audit",
		testutil.WithStartDate(start), testutil.WithDueDate(jobsNow.AddDate(0, 0, -2)),
		testutil.WithStatus(domain.TaskCompleted), testutil.WithProgress(100),
		testutil.WithCompletedAt(jobsNow.AddDate(0, 0, -3)))))
	require.NoError(t, taskRepo.Create(ctx, testutil.NewTestTask("future audit",
		testutil.WithStartDate(start), testutil.WithDueDate(jobsNow.AddDate(0, 0, 5)))))

	opts := []service.Option{service.WithClock(clock)}
	metrics := newTestMetrics(t)
	runner := NewRunner(
		service.NewCertificateService(certRepo, uow, opts...),
		service.NewTaskService(taskRepo, uow, opts...),
		RunnerConfig{Metrics: metrics, Logger: quietLogger(), Clock: clock},
	)

	require.NoError(t, runner.RunOnce(ctx))

	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.CertificatesExpired))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.OverdueTasks))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.Runs.WithLabelValues(JobCertificateExpiry, "success")))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.Runs.WithLabelValues(JobOverdueScan, "success")))

	expired, err := certRepo.List(ctx, repository.CertificateFilter{Status: domain.CertificateExpired})
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "u1", expired[0].UserID)

	require.NoError(t, runner.RunOnce(ctx))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.CertificatesExpired), "second sweep finds nothing new")
}

func TestRunOnce_JoinsErrors(t *testing.T) {
	metrics := newTestMetrics(t)
	expirer := &stubExpirer{err: errors.New("store offline")}
	overdue := &stubOverdue{tasks: []*domain.Task{{ID: "t1"}, {ID: "t2"}}}
	runner := NewRunner(expirer, overdue, RunnerConfig{Metrics: metrics, Logger: quietLogger(),
		Clock: testutil.NewFixedClock(jobsNow)})

	err := runner.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store offline")
	assert.Equal(t, jobsNow, expirer.seen)

	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.Runs.WithLabelValues(JobCertificateExpiry, "error")))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.Runs.WithLabelValues(JobOverdueScan, "success")))
	assert.Equal(t, 2.0, promtest.ToFloat64(metrics.OverdueTasks), "one failing job does not stop the others")
}

func TestRunner_WithoutMetrics(t *testing.T) {
	runner := NewRunner(&stubExpirer{n: 3}, &stubOverdue{}, RunnerConfig{Logger: quietLogger()})

	n, err := runner.SweepExpiredCertificates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	tasks, err := runner.ScanOverdueTasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestSchedule(t *testing.T) {
	runner := NewRunner(&stubExpirer{}, &stubOverdue{}, RunnerConfig{Logger: quietLogger()})

	require.NoError(t, runner.Schedule(DefaultSchedules()))
	assert.Len(t, runner.Scheduled(), 2)

	require.NoError(t, runner.Schedule(Schedules{CertificateExpiry: "@daily"}))
	scheduled := runner.Scheduled()
	assert.Len(t, scheduled, 1, "an empty spec disables the job")
	assert.Contains(t, scheduled, JobCertificateExpiry)

	err := runner.Schedule(Schedules{CertificateExpiry: "@daily", OverdueScan: "every tuesday"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobOverdueScan)
	assert.Len(t, runner.Scheduled(), 1, "a bad spec leaves the old schedule alone")
}

func TestRunner_StartRunsScheduledJobs(t *testing.T) {
	expirer := &stubExpirer{}
	runner := NewRunner(expirer, &stubOverdue{}, RunnerConfig{Logger: quietLogger()})
	require.NoError(t, runner.Schedule(Schedules{CertificateExpiry: "@every 1s"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner.Start(ctx)
	defer runner.Stop()

	require.Eventually(t, func() bool { return expirer.calls.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
}
