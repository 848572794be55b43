// Package export writes task lists and compliance reports as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/alexanderramin/complytrack/internal/service"
	"github.com/xuri/excelize/v2"
)

const (
	SheetTasks      = "Tasks"
	SheetSummary    = "Summary"
	SheetCompliance = "Compliance"
	SheetMissing    = "Missing"
	SheetCerts      = "Certificates"

	dateLayout = "2006-01-02"
	defaultCol = 16
)

var taskHeaders = []string{
	"ID", "Title", "Type", "Priority", "Status", "Progress", "Assignees",
	"Start", "Due", "Completed", "Estimated h", "Actual h", "Overdue", "Parent", "Open blockers",
}

// WriteTasks writes tasks to one sheet, one row per task. When analytics is
// non-nil a summary sheet is added.
func WriteTasks(w io.Writer, tasks []*domain.Task, analytics *service.TaskAnalytics, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetTasks); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := writeHeader(f, SheetTasks, taskHeaders); err != nil {
		return err
	}
	for i, t := range tasks {
		row := []any{
			t.ID,
			t.Title,
			string(t.Type),
			string(t.Priority),
			string(t.Status),
			t.Progress,
			strings.Join(t.Assignees, ", "),
			formatDate(t.StartDate),
			formatDate(t.DueDate),
			formatDatePtr(t.CompletedAt),
			t.EstimatedHours,
			t.ActualHours,
			yesNo(t.IsOverdue(now)),
			deref(t.ParentTaskID),
			openBlockers(t),
		}
		if err := writeRow(f, SheetTasks, i+2, row); err != nil {
			return err
		}
	}
	if err := f.AutoFilter(SheetTasks, fmt.Sprintf("A1:%s1", lastColumn(len(taskHeaders))), nil); err != nil {
		return fmt.Errorf("adding filter: %w", err)
	}

	if analytics != nil {
		if err := writeAnalytics(f, analytics); err != nil {
			return err
		}
	}
	return writeTo(f, w)
}

func writeAnalytics(f *excelize.File, a *service.TaskAnalytics) error {
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	rows := [][]any{
		{"Metric", "Value"},
		{"Total", a.Total},
		{"Overdue", a.Overdue},
		{"Completion rate %", a.CompletionRate},
		{"Average progress %", a.AverageProgress},
		{"On-time rate %", a.OnTimeRate},
		{"Estimated hours", a.EstimatedHours},
		{"Actual hours", a.ActualHours},
		{"Generated", a.GeneratedAt.Format(time.RFC3339)},
	}
	for _, status := range sortedKeys(a.ByStatus) {
		rows = append(rows, []any{"Status " + status, a.ByStatus[domain.TaskStatus(status)]})
	}
	for _, p := range sortedKeys(a.ByPriority) {
		rows = append(rows, []any{"Priority " + p, a.ByPriority[domain.Priority(p)]})
	}
	for _, typ := range sortedKeys(a.ByType) {
		rows = append(rows, []any{"Type " + typ, a.ByType[domain.TaskType(typ)]})
	}
	for i, row := range rows {
		if err := writeRow(f, SheetSummary, i+1, row); err != nil {
			return err
		}
	}
	return styleHeader(f, SheetSummary)
}

var complianceHeaders = []string{
	"User", "Name", "Role", "Department", "Score", "Compliant", "Completed", "Missing",
}

var missingHeaders = []string{"User", "Role", "Department", "Training", "Training name", "Required by"}

// WriteComplianceReport writes one row per worker plus a sheet listing every
// missing training. names maps user ids to display names and may be nil.
func WriteComplianceReport(w io.Writer, report *service.ComplianceReport, names map[string]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetCompliance); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := writeHeader(f, SheetCompliance, complianceHeaders); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetMissing); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	if err := writeHeader(f, SheetMissing, missingHeaders); err != nil {
		return err
	}

	missingRow := 2
	for i, r := range report.Records {
		completed := make([]string, 0, len(r.CompletedTrainings))
		for _, c := range r.CompletedTrainings {
			completed = append(completed, c.TrainingID)
		}
		missing := make([]string, 0, len(r.MissingTrainings))
		for _, m := range r.MissingTrainings {
			missing = append(missing, m.TrainingID)
			if err := writeRow(f, SheetMissing, missingRow, []any{
				r.UserID, r.Role, r.Department, m.TrainingID, m.TrainingName, m.RequiredBy,
			}); err != nil {
				return err
			}
			missingRow++
		}
		row := []any{
			r.UserID,
			names[r.UserID],
			r.Role,
			r.Department,
			r.ComplianceScore,
			yesNo(r.IsCompliant()),
			strings.Join(completed, ", "),
			strings.Join(missing, ", "),
		}
		if err := writeRow(f, SheetCompliance, i+2, row); err != nil {
			return err
		}
	}

	footer := len(report.Records) + 3
	if err := writeRow(f, SheetCompliance, footer, []any{"Average", "", "", "", report.AverageScore}); err != nil {
		return err
	}
	if err := writeRow(f, SheetCompliance, footer+1, []any{
		"Compliant", "", "", "", fmt.Sprintf("%d/%d", report.Compliant, len(report.Records)),
	}); err != nil {
		return err
	}
	if err := writeRow(f, SheetCompliance, footer+2, []any{
		"Generated", "", "", "", report.GeneratedAt.Format(time.RFC3339),
	}); err != nil {
		return err
	}
	return writeTo(f, w)
}

var certHeaders = []string{"Number", "User", "Training", "Status", "Score", "Issued", "Expires", "Issued by", "Revoked reason"}

// WriteCertificates writes one row per certificate.
func WriteCertificates(w io.Writer, certs []domain.Certificate) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetCerts); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := writeHeader(f, SheetCerts, certHeaders); err != nil {
		return err
	}
	for i, c := range certs {
		var score any = ""
		if c.Score != nil {
			score = *c.Score
		}
		expires := "never"
		if c.ExpiresAt != nil {
			expires = formatDate(*c.ExpiresAt)
		}
		row := []any{
			c.CertificateNumber, c.UserID, c.TrainingID, string(c.Status), score,
			formatDate(c.IssuedAt), expires, c.IssuedBy, c.RevokeReason,
		}
		if err := writeRow(f, SheetCerts, i+2, row); err != nil {
			return err
		}
	}
	return writeTo(f, w)
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := writeRow(f, sheet, 1, row); err != nil {
		return err
	}
	last := lastColumn(len(headers))
	if err := f.SetColWidth(sheet, "A", last, defaultCol); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing header: %w", err)
	}
	return styleHeader(f, sheet)
}

func styleHeader(f *excelize.File, sheet string) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6E6FA"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, style); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func writeTo(f *excelize.File, w io.Writer) error {
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func lastColumn(n int) string {
	name, err := excelize.ColumnNumberToName(n)
	if err != nil {
		return "A"
	}
	return name
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func openBlockers(t *domain.Task) int {
	n := 0
	for _, b := range t.Blockers {
		if !b.Resolved {
			n++
		}
	}
	return n
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func sortedKeys[K ~string, V any](m map[K]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}
