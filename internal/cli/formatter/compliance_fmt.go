package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/alexanderramin/complytrack/internal/service"
)

func FormatTrainingList(trainings []*domain.Training) string {
	rows := make([][]string, 0, len(trainings))
	for _, t := range trainings {
		rows = append(rows, []string{
			t.ID, t.Name, validityLabel(t.ValidityPeriod), fmt.Sprintf("%d", t.PassingScore),
		})
	}
	return RenderTable([]string{"ID", "NAME", "VALID FOR", "PASS"}, rows)
}

func validityLabel(v domain.ValidityPeriod) string {
	switch v {
	case domain.Validity6Months:
		return "6 months"
	case domain.Validity1Year:
		return "1 year"
	case domain.Validity2Years:
		return "2 years"
	case domain.Validity3Years:
		return "3 years"
	case domain.ValidityNever:
		return "no expiry"
	default:
		return orDash(string(v))
	}
}

// FormatMatrix renders matrix entries, one row per entry.
func FormatMatrix(entries []domain.MatrixEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		ids := make([]string, 0, len(e.RequiredTrainings))
		for _, r := range e.RequiredTrainings {
			ids = append(ids, r.TrainingID)
		}
		dept := e.Department
		if dept == domain.AllDepartments {
			dept = StylePurple.Render("all")
		}
		rows = append(rows, []string{TruncID(e.ID), e.Role, dept, strings.Join(ids, ", "), orDash(e.Frequency)})
	}
	return RenderTable([]string{"ID", "ROLE", "DEPARTMENT", "TRAININGS", "FREQUENCY"}, rows)
}

// FormatComplianceRecord renders one worker's compliance with the completed
// and missing trainings.
func FormatComplianceRecord(r *domain.ComplianceRecord) string {
	var b strings.Builder
	verdict := StyleGreen.Render("✔ compliant")
	if !r.IsCompliant() {
		verdict = StyleRed.Render("✖ not compliant")
	}
	fmt.Fprintf(&b, "%s  %s %s  %s  %s\n", Bold(r.UserID), r.Role, Dim("in"), r.Department, verdict)
	fmt.Fprintf(&b, "%s %s\n", Dim("Score"), Score(r.ComplianceScore))

	if len(r.CompletedTrainings) > 0 {
		b.WriteString("\n" + Header("Completed") + "\n")
		rows := make([][]string, 0, len(r.CompletedTrainings))
		for _, c := range r.CompletedTrainings {
			expires := "never"
			if c.ExpiresAt != nil {
				expires = c.ExpiresAt.Format(time.DateOnly)
			}
			rows = append(rows, []string{StyleGreen.Render("✔ ") + c.TrainingID, orDash(c.TrainingName), c.CertificateNumber, expires})
		}
		b.WriteString(RenderTable([]string{"TRAINING", "NAME", "CERTIFICATE", "EXPIRES"}, rows))
	}
	if len(r.MissingTrainings) > 0 {
		b.WriteString("\n" + Header("Missing") + "\n")
		rows := make([][]string, 0, len(r.MissingTrainings))
		for _, m := range r.MissingTrainings {
			rows = append(rows, []string{StyleRed.Render("✖ ") + m.TrainingID, orDash(m.TrainingName), orDash(m.RequiredBy)})
		}
		b.WriteString(RenderTable([]string{"TRAINING", "NAME", "REQUIRED BY"}, rows))
	}
	return b.String()
}

// FormatComplianceReport renders one row per worker and the group average.
func FormatComplianceReport(report *service.ComplianceReport) string {
	rows := make([][]string, 0, len(report.Records))
	for _, r := range report.Records {
		missing := make([]string, 0, len(r.MissingTrainings))
		for _, m := range r.MissingTrainings {
			missing = append(missing, m.TrainingID)
		}
		rows = append(rows, []string{
			r.UserID, r.Role, r.Department, Score(r.ComplianceScore), orDash(strings.Join(missing, ", ")),
		})
	}
	var b strings.Builder
	b.WriteString(RenderTable([]string{"USER", "ROLE", "DEPARTMENT", "SCORE", "MISSING"}, rows))
	fmt.Fprintf(&b, "\n%s %s   %s %d/%d\n",
		Dim("Average"), Score(report.AverageScore), Dim("Compliant"), report.Compliant, len(report.Records))
	return b.String()
}

func FormatCertificateList(certs []domain.Certificate, now time.Time) string {
	rows := make([][]string, 0, len(certs))
	for _, c := range certs {
		rows = append(rows, []string{
			c.CertificateNumber, c.UserID, c.TrainingID, CertificateStatusPill(c.Status), expiry(c, now),
		})
	}
	return RenderTable([]string{"NUMBER", "USER", "TRAINING", "STATUS", "EXPIRES"}, rows)
}

func FormatCertificate(c *domain.Certificate, now time.Time) string {
	pairs := [][2]string{
		{"Number", Bold(c.CertificateNumber)},
		{"Status", CertificateStatusPill(c.Status)},
		{"User", c.UserID},
		{"Training", c.TrainingID},
		{"Issued", c.IssuedAt.Format(time.DateOnly) + Dim(" by "+c.IssuedBy)},
		{"Expires", expiry(*c, now)},
	}
	if c.Score != nil {
		pairs = append(pairs, [2]string{"Score", fmt.Sprintf("%d", *c.Score)})
	}
	if c.RevokedAt != nil {
		pairs = append(pairs, [2]string{"Revoked", c.RevokedAt.Format(time.DateOnly) + " " + Dim(c.RevokeReason)})
	}
	pairs = append(pairs, [2]string{"ID", Dim(c.ID)})
	return KeyValues(pairs)
}

func expiry(c domain.Certificate, now time.Time) string {
	if c.ExpiresAt == nil {
		return StyleGreen.Render("never")
	}
	return DueDate(*c.ExpiresAt, now, c.Status != domain.CertificateActive)
}
