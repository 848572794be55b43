package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alexanderramin/complytrack/internal/config"
	"github.com/alexanderramin/complytrack/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// App holds references to all service interfaces used by CLI commands.
type App struct {
	Tasks        service.TaskService
	Trainings    service.TrainingService
	Certificates service.CertificateService

	Config *config.Config
	Clock  service.Clock
	Logger *slog.Logger

	// Registry receives the job metrics and backs the /metrics endpoint of
	// "jobs run". Nil disables metrics.
	Registry *prometheus.Registry

	// IsInteractive reports whether stdin is a terminal. Forms and the
	// board refuse to start without one.
	IsInteractive func() bool

	actor string
}

// NewRootCmd creates the top-level "complytrack" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	if app.Config == nil {
		app.Config = config.DefaultConfig()
	}
	if app.Clock == nil {
		app.Clock = service.SystemClock{}
	}
	if app.Logger == nil {
		app.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}

	root := &cobra.Command{
		Use:           "complytrack",
		Short:         "Compliance task scheduling and training certification",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&app.actor, "as", app.Config.Actor, "Acting user id recorded on every change")

	root.AddCommand(
		newTaskCmd(app),
		newTrainingCmd(app),
		newMatrixCmd(app),
		newComplianceCmd(app),
		newCertCmd(app),
		newJobsCmd(app),
	)

	return root
}

// defaultActor is used when neither --as nor a config actor is set.
const defaultActor = "system"

// Actor is the user id changes are attributed to.
func (a *App) Actor() string {
	switch {
	case a.actor != "":
		return a.actor
	case a.Config != nil && a.Config.Actor != "":
		return a.Config.Actor
	default:
		return defaultActor
	}
}

func (a *App) now() time.Time {
	return a.Clock.Now()
}

func (a *App) interactive() bool {
	return a.IsInteractive != nil && a.IsInteractive()
}

func requireTerminal(app *App, what string) error {
	if !app.interactive() {
		return fmt.Errorf("%s needs an interactive terminal", what)
	}
	return nil
}
