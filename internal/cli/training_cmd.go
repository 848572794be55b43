package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/alexanderramin/complytrack/internal/cli/formatter"
	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/alexanderramin/complytrack/internal/export"
	"github.com/alexanderramin/complytrack/internal/importer"
	"github.com/alexanderramin/complytrack/internal/service"
	"github.com/spf13/cobra"
)

func newTrainingCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "training",
		Short: "Manage the training catalog",
	}

	cmd.AddCommand(
		newTrainingAddCmd(app),
		newTrainingListCmd(app),
		newTrainingShowCmd(app),
	)

	return cmd
}

func newTrainingAddCmd(app *App) *cobra.Command {
	var id, name string
	var validity domain.ValidityPeriod
	var passing int

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or update a catalog training",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := &domain.Training{ID: id, Name: name, ValidityPeriod: validity, PassingScore: passing}
			if err := app.Trainings.UpsertTraining(cmd.Context(), app.Actor(), t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved training %s [%s]\n", t.Name, t.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Training ID")
	cmd.Flags().StringVar(&name, "name", "", "Training name")
	validityFlag(cmd.Flags(), &validity, "validity", "Certificate validity (6_months, 1_year, 2_years, 3_years, never)")
	cmd.Flags().IntVar(&passing, "passing-score", 0, "Minimum attempt score that earns a certificate")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newTrainingListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog trainings",
		RunE: func(cmd *cobra.Command, args []string) error {
			trainings, err := app.Trainings.ListTrainings(cmd.Context())
			if err != nil {
				return err
			}
			if len(trainings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No trainings found.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatTrainingList(trainings))
			return nil
		},
	}
}

func newTrainingShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a training",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := app.Trainings.GetTraining(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("training %q: %w", args[0], err)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatTrainingList([]*domain.Training{t}))
			return nil
		},
	}
}

func newMatrixCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Manage the role/department training matrix",
	}

	cmd.AddCommand(
		newMatrixAddCmd(app),
		newMatrixListCmd(app),
		newMatrixRemoveCmd(app),
		newMatrixImportCmd(app),
	)

	return cmd
}

func newMatrixAddCmd(app *App) *cobra.Command {
	var id, role, department, frequency string
	var trainings []string
	var validity domain.ValidityPeriod

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Require trainings for a role in a department",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := &domain.MatrixEntry{
				ID:             id,
				Role:           role,
				Department:     department,
				Frequency:      frequency,
				ValidityPeriod: validity,
			}
			for _, spec := range trainings {
				e.RequiredTrainings = append(e.RequiredTrainings, parseRequirement(spec))
			}
			if err := app.Trainings.AddMatrixEntry(cmd.Context(), app.Actor(), e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved matrix entry %s: %s in %s requires %d training(s)\n",
				shortID(e.ID), e.Role, e.Department, len(e.RequiredTrainings))
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Entry ID; reuse one to replace that entry")
	cmd.Flags().StringVar(&role, "role", "", "Role")
	cmd.Flags().StringVar(&department, "department", domain.AllDepartments, "Department, or \"all\"")
	cmd.Flags().StringSliceVar(&trainings, "trainings", nil, "Required training IDs, optionally ID:deadline")
	cmd.Flags().StringVar(&frequency, "frequency", "", "Retraining frequency label")
	validityFlag(cmd.Flags(), &validity, "validity", "Validity label for the entry")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("trainings")

	return cmd
}

// parseRequirement reads "ID" or "ID:deadline".
func parseRequirement(spec string) domain.RequiredTraining {
	id, by, _ := strings.Cut(strings.TrimSpace(spec), ":")
	return domain.RequiredTraining{TrainingID: id, RequiredBy: by}
}

func newMatrixListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List matrix entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := app.Trainings.ListMatrix(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "The training matrix is empty.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatMatrix(entries))
			return nil
		},
	}
}

func newMatrixRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a matrix entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Trainings.DeleteMatrixEntry(cmd.Context(), app.Actor(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted matrix entry %s\n", args[0])
			return nil
		},
	}
}

func newMatrixImportCmd(app *App) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import trainings and matrix entries from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := importer.LoadMatrixFile(args[0])
			if err != nil {
				return err
			}
			res, err := app.Trainings.ImportMatrix(cmd.Context(), app.Actor(), f, service.ImportOptions{Replace: replace})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d trainings and %d matrix entries", res.TrainingCount, res.EntryCount)
			if replace {
				fmt.Fprintf(cmd.OutOrStdout(), ", removed %d", res.RemovedCount)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "Delete matrix entries missing from the file")

	return cmd
}

func newComplianceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compliance",
		Short: "Check training compliance",
	}

	cmd.AddCommand(
		newComplianceCheckCmd(app),
		newComplianceReportCmd(app),
	)

	return cmd
}

func newComplianceCheckCmd(app *App) *cobra.Command {
	var user, role, department string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show one worker's compliance record",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.Trainings.CheckTrainingCompliance(cmd.Context(), user, role, department)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatComplianceRecord(rec))
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User ID")
	cmd.Flags().StringVar(&role, "role", "", "Role")
	cmd.Flags().StringVar(&department, "department", "", "Department")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("department")

	return cmd
}

func newComplianceReportCmd(app *App) *cobra.Command {
	var matrixFile, xlsxPath, department string
	var workerSpecs []string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report compliance for a group of workers",
		Long: "Workers come from the workers section of a matrix file (--from) or\n" +
			"from --worker user:role:department flags.",
		RunE: func(cmd *cobra.Command, args []string) error {
			workers, err := collectWorkers(matrixFile, workerSpecs)
			if err != nil {
				return err
			}
			if department != "" {
				workers = filterDepartment(workers, department)
			}
			if len(workers) == 0 {
				return fmt.Errorf("no workers to report on: use --from or --worker")
			}

			report, err := app.Trainings.DepartmentComplianceReport(cmd.Context(), workers)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if xlsxPath != "" {
				names := make(map[string]string, len(workers))
				for _, w := range workers {
					if w.Name != "" {
						names[w.UserID] = w.Name
					}
				}
				if err := writeFile(xlsxPath, func(w io.Writer) error {
					return export.WriteComplianceReport(w, report, names)
				}); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %d records to %s\n", len(report.Records), xlsxPath)
			}
			fmt.Fprint(out, formatter.FormatComplianceReport(report))
			return nil
		},
	}

	cmd.Flags().StringVar(&matrixFile, "from", "", "Matrix YAML file with a workers section")
	cmd.Flags().StringSliceVar(&workerSpecs, "worker", nil, "Worker as user:role:department")
	cmd.Flags().StringVar(&department, "department", "", "Only workers of this department")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write the report to this .xlsx file")

	return cmd
}

func collectWorkers(matrixFile string, specs []string) ([]domain.Worker, error) {
	var workers []domain.Worker
	if matrixFile != "" {
		f, err := importer.LoadMatrixFile(matrixFile)
		if err != nil {
			return nil, err
		}
		for _, w := range f.Workers {
			workers = append(workers, domain.Worker{
				UserID: w.UserID, Name: w.Name, Role: w.Role, Department: w.Department,
			})
		}
	}
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) != 3 || parts[0] == "" {
			return nil, fmt.Errorf("invalid worker %q: use user:role:department", spec)
		}
		workers = append(workers, domain.Worker{UserID: parts[0], Role: parts[1], Department: parts[2]})
	}
	return workers, nil
}

func filterDepartment(workers []domain.Worker, department string) []domain.Worker {
	out := workers[:0]
	for _, w := range workers {
		if w.Department == department {
			out = append(out, w)
		}
	}
	return out
}
