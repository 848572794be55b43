package cli

import (
	"fmt"
	"io"

	"github.com/alexanderramin/complytrack/internal/cli/formatter"
	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/alexanderramin/complytrack/internal/export"
	"github.com/alexanderramin/complytrack/internal/repository"
	"github.com/alexanderramin/complytrack/internal/service"
	"github.com/spf13/cobra"
)

func newCertCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cert",
		Aliases: []string{"certificate"},
		Short:   "Issue and manage training certificates",
	}

	cmd.AddCommand(
		newCertIssueCmd(app),
		newCertCompleteCmd(app),
		newCertRevokeCmd(app),
		newCertListCmd(app),
		newCertShowCmd(app),
		newCertExpireCmd(app),
	)

	return cmd
}

func newCertIssueCmd(app *App) *cobra.Command {
	var user, training string
	var validity domain.ValidityPeriod
	var score int

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a certificate directly",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := service.IssueRequest{TrainingID: training, UserID: user, ValidityPeriod: validity}
			if cmd.Flags().Changed("score") {
				req.Score = &score
			}
			c, err := app.Certificates.IssueCertificate(cmd.Context(), app.Actor(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Issued %s\n", c.CertificateNumber)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User ID")
	cmd.Flags().StringVar(&training, "training", "", "Training ID")
	validityFlag(cmd.Flags(), &validity, "validity", "Validity period; defaults to the catalog training's")
	cmd.Flags().IntVar(&score, "score", 0, "Score to record")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("training")

	return cmd
}

func newCertCompleteCmd(app *App) *cobra.Command {
	var user, training string
	var score int

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Record a scored training attempt; a pass issues a certificate",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.Certificates.CompleteTraining(cmd.Context(), app.Actor(),
				service.Attempt{TrainingID: training, UserID: user, Score: score})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Passed; issued %s\n", c.CertificateNumber)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User ID")
	cmd.Flags().StringVar(&training, "training", "", "Training ID")
	cmd.Flags().IntVar(&score, "score", 0, "Attempt score (0-100)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("training")
	_ = cmd.MarkFlagRequired("score")

	return cmd
}

func newCertRevokeCmd(app *App) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "revoke ID|NUMBER",
		Short: "Revoke a certificate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.Certificates.RevokeCertificate(cmd.Context(), app.Actor(), args[0], reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s\n", c.CertificateNumber)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the certificate is revoked")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func newCertListCmd(app *App) *cobra.Command {
	var filter repository.CertificateFilter
	var xlsxPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List certificates",
		RunE: func(cmd *cobra.Command, args []string) error {
			certs, err := app.Certificates.ListCertificates(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if xlsxPath != "" {
				if err := writeFile(xlsxPath, func(w io.Writer) error {
					return export.WriteCertificates(w, certs)
				}); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %d certificates to %s\n", len(certs), xlsxPath)
			}
			if len(certs) == 0 {
				fmt.Fprintln(out, "No certificates found.")
				return nil
			}
			fmt.Fprint(out, formatter.FormatCertificateList(certs, app.now()))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.UserID, "user", "", "Only certificates of this user")
	cmd.Flags().StringVar(&filter.TrainingID, "training", "", "Only certificates of this training")
	certStatusFlag(cmd.Flags(), &filter.Status, "status", "Only this status (active, revoked, expired)")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write the list to this .xlsx file")

	return cmd
}

func newCertShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID|NUMBER",
		Short: "Show a certificate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.Certificates.GetCertificate(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("certificate %q: %w", args[0], err)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatCertificate(c, app.now()))
			return nil
		},
	}
}

func newCertExpireCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Mark every certificate past its expiry as expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := app.Certificates.ExpireCertificates(cmd.Context(), app.now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expired %d certificate(s)\n", n)
			return nil
		},
	}
}
