package formatter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/alexanderramin/complytrack/internal/service"
)

// FormatTaskList renders tasks as a table ordered as given.
func FormatTaskList(tasks []*domain.Task, now time.Time) string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			TruncID(t.ID),
			Truncate(t.Title, 40),
			TaskStatusPill(t.Status),
			PriorityBadge(t.Priority),
			DueDate(t.DueDate, now, t.Status.IsTerminal()),
			RenderProgress(t.Progress, 10),
			orDash(Assignees(t)),
		})
	}
	return RenderTable([]string{"ID", "TITLE", "STATUS", "PRIORITY", "DUE", "PROGRESS", "ASSIGNED"}, rows)
}

// Assignees lists a task's owners, or "" when unassigned.
func Assignees(t *domain.Task) string {
	if len(t.Assignees) > 0 {
		return strings.Join(t.Assignees, ", ")
	}
	if t.Assignee != nil {
		return *t.Assignee
	}
	return ""
}

// FormatTaskDetail renders one task with its blockers, dependencies and
// comment log.
func FormatTaskDetail(t *domain.Task, deps []service.DependencyStatus, now time.Time) string {
	var b strings.Builder

	b.WriteString(Bold(t.Title) + "  " + TaskStatusPill(t.Status) + "\n")
	b.WriteString(Dim(t.ID) + "\n\n")
	if t.Description != "" {
		b.WriteString(t.Description + "\n\n")
	}

	pairs := [][2]string{
		{"Factory", t.FactoryID},
		{"Type", string(t.Type)},
		{"Priority", PriorityBadge(t.Priority)},
		{"Start", t.StartDate.Format(time.DateOnly)},
		{"Due", DueDate(t.DueDate, now, t.Status.IsTerminal())},
		{"Progress", RenderProgress(t.Progress, 20)},
		{"Hours", fmt.Sprintf("%s of %s estimated", Hours(t.ActualHours), Hours(t.EstimatedHours))},
		{"Assigned", orDash(Assignees(t))},
	}
	if t.CompletedAt != nil {
		pairs = append(pairs, [2]string{"Completed", t.CompletedAt.Format(time.DateOnly)})
	}
	if t.IsRecurring {
		rule := fmt.Sprintf("every %d %s", max(t.RecurrenceInterval, 1), t.RecurrencePattern)
		if t.RecurrenceEndDate != nil {
			rule += " until " + t.RecurrenceEndDate.Format(time.DateOnly)
		}
		pairs = append(pairs, [2]string{"Recurs", rule})
	}
	if t.ParentTaskID != nil {
		pairs = append(pairs, [2]string{"Template", *t.ParentTaskID})
	}
	for _, ref := range []struct{ label, id string }{
		{"CAP", t.CAPID}, {"Standard", t.StandardID}, {"Permit", t.PermitID},
		{"Audit", t.AuditID}, {"Document", t.DocumentID},
	} {
		if ref.id != "" {
			pairs = append(pairs, [2]string{ref.label, ref.id})
		}
	}
	b.WriteString(KeyValues(pairs))

	if len(t.Blockers) > 0 {
		b.WriteString("\n" + Header("Blockers") + "\n")
		for _, bl := range t.Blockers {
			if bl.Resolved {
				line := fmt.Sprintf("✔ %s  %s", Truncate(bl.ID, 8), bl.Description)
				if bl.Resolution != "" {
					line += " → " + bl.Resolution
				}
				b.WriteString(Dim(line) + "\n")
				continue
			}
			b.WriteString(StyleRed.Render("■ ") + Dim(Truncate(bl.ID, 8)) + "  " + bl.Description +
				Dim(fmt.Sprintf("  (%s, %s)", bl.ReportedBy, RelativeDateFrom(bl.ReportedAt, now))) + "\n")
		}
	}

	if len(deps) > 0 {
		b.WriteString("\n" + Header("Depends on") + "\n")
		b.WriteString(formatDependencies(deps))
	}

	if len(t.Comments) > 0 {
		b.WriteString("\n" + Header("Comments") + "\n")
		for _, c := range t.Comments {
			b.WriteString(Dim(c.CreatedAt.Format("2006-01-02 15:04")+" "+c.Author) + "  " + c.Text + "\n")
		}
	}
	return b.String()
}

// FormatDependencyStatus renders the advisory dependency list of a task.
func FormatDependencyStatus(deps []service.DependencyStatus) string {
	if len(deps) == 0 {
		return Dim("No dependencies.") + "\n"
	}
	return formatDependencies(deps)
}

func formatDependencies(deps []service.DependencyStatus) string {
	var b strings.Builder
	for _, d := range deps {
		if d.Missing {
			b.WriteString(StyleYellow.Render("? ") + Dim(d.TaskID+" (deleted)") + "\n")
			continue
		}
		b.WriteString(TaskStatusPill(d.Status) + "  " + d.Title + "  " + TruncID(d.TaskID) + "\n")
	}
	return b.String()
}

// FormatAnalytics renders task analytics as a summary box plus breakdowns.
func FormatAnalytics(a *service.TaskAnalytics) string {
	summary := KeyValues([][2]string{
		{"Tasks", fmt.Sprintf("%d", a.Total)},
		{"Overdue", overdueCount(a.Overdue)},
		{"Completion", fmt.Sprintf("%.1f%%", a.CompletionRate)},
		{"On time", fmt.Sprintf("%.1f%%", a.OnTimeRate)},
		{"Avg progress", RenderProgress(int(a.AverageProgress), 20)},
		{"Hours", fmt.Sprintf("%s actual / %s estimated", Hours(a.ActualHours), Hours(a.EstimatedHours))},
	})

	var b strings.Builder
	b.WriteString(RenderBox("Task analytics", strings.TrimRight(summary, "\n")) + "\n")

	rows := [][]string{}
	for _, s := range sortedCounts(a.ByStatus) {
		rows = append(rows, []string{"status", TaskStatusPill(domain.TaskStatus(s.key)), fmt.Sprintf("%d", s.n)})
	}
	for _, p := range sortedCounts(a.ByPriority) {
		rows = append(rows, []string{"priority", PriorityBadge(domain.Priority(p.key)), fmt.Sprintf("%d", p.n)})
	}
	for _, t := range sortedCounts(a.ByType) {
		rows = append(rows, []string{"type", t.key, fmt.Sprintf("%d", t.n)})
	}
	if len(rows) > 0 {
		b.WriteString("\n" + RenderTable([]string{"GROUP", "VALUE", "COUNT"}, rows))
	}
	return b.String()
}

func overdueCount(n int) string {
	s := fmt.Sprintf("%d", n)
	if n > 0 {
		return StyleRed.Render(s)
	}
	return StyleGreen.Render(s)
}

type keyCount struct {
	key string
	n   int
}

func sortedCounts[K ~string](m map[K]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, n := range m {
		out = append(out, keyCount{string(k), n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].key < out[j].key
	})
	return out
}
