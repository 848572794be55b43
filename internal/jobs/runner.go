// Package jobs runs the periodic maintenance work of a deployment: the
// certificate expiry sweep, the overdue task scan and the matrix file reload.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/robfig/cron/v3"
)

const (
	JobCertificateExpiry = "certificate_expiry"
	JobOverdueScan       = "overdue_scan"
)

// Schedules holds the cron specs of the periodic jobs. An empty spec
// disables the job.
type Schedules struct {
	CertificateExpiry string `yaml:"certificate_expiry"`
	OverdueScan       string `yaml:"overdue_scan"`
}

func DefaultSchedules() Schedules {
	return Schedules{
		CertificateExpiry: "@hourly",
		OverdueScan:       "*/15 * * * *",
	}
}

// CertificateExpirer is the part of the certificate service the sweep needs.
type CertificateExpirer interface {
	ExpireCertificates(ctx context.Context, now time.Time) (int, error)
}

// OverdueLister is the part of the task service the overdue scan needs.
type OverdueLister interface {
	GetOverdueTasks(ctx context.Context, now time.Time) ([]*domain.Task, error)
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC().Truncate(time.Second) }

// Runner schedules the maintenance jobs on a cron scheduler. Runs of the
// same job never overlap.
type Runner struct {
	certs   CertificateExpirer
	tasks   OverdueLister
	metrics *Metrics
	logger  *slog.Logger
	clock   Clock

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	entries map[string]cron.EntryID
}

// RunnerConfig carries the optional collaborators of a Runner.
type RunnerConfig struct {
	Metrics *Metrics
	Logger  *slog.Logger
	Clock   Clock
}

func NewRunner(certs CertificateExpirer, tasks OverdueLister, cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}
	cl := cronLogger{logger: logger}
	return &Runner{
		certs:   certs,
		tasks:   tasks,
		metrics: cfg.Metrics,
		logger:  logger,
		clock:   clock,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
	}
}

// Schedule registers the jobs with their specs, replacing any earlier
// registration. An invalid spec leaves the previous schedule in place.
func (r *Runner) Schedule(s Schedules) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{JobCertificateExpiry, s.CertificateExpiry, r.expiryJob},
		{JobOverdueScan, s.OverdueScan, r.overdueJob},
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := parser.Parse(j.spec); err != nil {
			return fmt.Errorf("schedule %s %q: %w", j.name, j.spec, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range jobs {
		if id, ok := r.entries[j.name]; ok {
			r.cron.Remove(id)
			delete(r.entries, j.name)
		}
		if j.spec == "" {
			continue
		}
		run := j.run
		id, err := r.cron.AddFunc(j.spec, func() {
			_ = run(r.context())
		})
		if err != nil {
			return fmt.Errorf("schedule %s: %w", j.name, err)
		}
		r.entries[j.name] = id
		r.logger.Info("job scheduled", "job", j.name, "spec", j.spec)
	}
	return nil
}

// Scheduled lists the names of the registered jobs with their next run.
func (r *Runner) Scheduled() map[string]time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]time.Time, len(r.entries))
	for name, id := range r.entries {
		out[name] = r.cron.Entry(id).Next
	}
	return out
}

// Start begins running the scheduled jobs in the background. Jobs run with
// ctx until Stop is called.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()
	r.cron.Start()
	r.logger.Info("job runner started", "jobs", len(r.entries))
}

// Stop halts the scheduler and waits for running jobs to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("job runner stopped")
}

// RunOnce runs every job immediately, in order, and returns the joined
// errors.
func (r *Runner) RunOnce(ctx context.Context) error {
	return errors.Join(r.expiryJob(ctx), r.overdueJob(ctx))
}

// SweepExpiredCertificates expires every active certificate past its
// expiry and returns the count.
func (r *Runner) SweepExpiredCertificates(ctx context.Context) (int, error) {
	n, err := r.certs.ExpireCertificates(ctx, r.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("expiring certificates: %w", err)
	}
	if r.metrics != nil {
		r.metrics.CertificatesExpired.Add(float64(n))
	}
	return n, nil
}

// ScanOverdueTasks returns the tasks past their due date that are neither
// completed nor cancelled.
func (r *Runner) ScanOverdueTasks(ctx context.Context) ([]*domain.Task, error) {
	overdue, err := r.tasks.GetOverdueTasks(ctx, r.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("scanning overdue tasks: %w", err)
	}
	if r.metrics != nil {
		r.metrics.OverdueTasks.Set(float64(len(overdue)))
	}
	return overdue, nil
}

func (r *Runner) expiryJob(ctx context.Context) error {
	return r.track(ctx, JobCertificateExpiry, func() error {
		n, err := r.SweepExpiredCertificates(ctx)
		if err != nil {
			return err
		}
		r.logger.InfoContext(ctx, "certificates expired", "count", n)
		return nil
	})
}

func (r *Runner) overdueJob(ctx context.Context) error {
	return r.track(ctx, JobOverdueScan, func() error {
		overdue, err := r.ScanOverdueTasks(ctx)
		if err != nil {
			return err
		}
		for _, t := range overdue {
			r.logger.DebugContext(ctx, "task overdue",
				"task_id", t.ID, "title", t.Title, "due_date", t.DueDate, "status", t.Status)
		}
		r.logger.InfoContext(ctx, "overdue scan finished", "overdue", len(overdue))
		return nil
	})
}

func (r *Runner) track(ctx context.Context, job string, fn func() error) error {
	start := time.Now()
	err := fn()
	outcome := "success"
	if err != nil {
		outcome = "error"
		r.logger.ErrorContext(ctx, "job failed", "job", job, "error", err)
	}
	if r.metrics != nil {
		r.metrics.Runs.WithLabelValues(job, outcome).Inc()
		r.metrics.Duration.WithLabelValues(job).Observe(time.Since(start).Seconds())
	}
	return err
}

func (r *Runner) context() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx
}

// cronLogger routes the scheduler's own logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
