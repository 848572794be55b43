package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/complytrack/internal/cli/formatter"
	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// complyHuhTheme returns a huh theme matching the formatter palette.
func complyHuhTheme() *huh.Theme {
	t := huh.ThemeBase()

	// Focused state: orange accent
	t.Focused.Title = lipgloss.NewStyle().Foreground(formatter.ColorHeader).Bold(true)
	t.Focused.SelectSelector = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(formatter.ColorGreen)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.FocusedButton = lipgloss.NewStyle().Foreground(formatter.ColorFg).Background(formatter.ColorHeader).Padding(0, 1)
	t.Focused.BlurredButton = lipgloss.NewStyle().Foreground(formatter.ColorDim).Padding(0, 1)
	t.Focused.TextInput.Cursor = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.TextInput.Placeholder = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Focused.Description = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	// Blurred state: dimmed
	t.Blurred.Title = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.SelectSelector = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.SelectedOption = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.UnselectedOption = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	return t
}

// taskFormValues holds the raw strings edited by the task form.
type taskFormValues struct {
	factory, title, description string
	taskType, priority          string
	start, due                  string
	estimate, assignees         string
	pattern, every, until       string
}

func formValuesFrom(in *taskInput, today time.Time) *taskFormValues {
	v := &taskFormValues{
		factory:     in.factory,
		title:       in.title,
		description: in.description,
		taskType:    string(in.taskType),
		priority:    string(in.priority),
		start:       today.Format(time.DateOnly),
		assignees:   strings.Join(in.assignees, ", "),
		pattern:     string(in.pattern),
		every:       strconv.Itoa(max(in.every, 1)),
	}
	if v.taskType == "" {
		v.taskType = string(domain.TaskMaintenance)
	}
	if v.priority == "" {
		v.priority = string(domain.PriorityMedium)
	}
	if in.start != nil {
		v.start = in.start.Format(time.DateOnly)
	}
	if in.due != nil {
		v.due = in.due.Format(time.DateOnly)
	}
	if in.until != nil {
		v.until = in.until.Format(time.DateOnly)
	}
	if in.estimate > 0 {
		v.estimate = strconv.FormatFloat(in.estimate, 'f', -1, 64)
	}
	return v
}

func newTaskForm(v *taskFormValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Factory").Value(&v.factory).Validate(validateRequired("factory")),
			huh.NewInput().Title("Title").Value(&v.title).Validate(validateRequired("title")),
			huh.NewText().Title("Description").Value(&v.description),
			huh.NewSelect[string]().Title("Type").Value(&v.taskType).Options(
				huh.NewOption("CAP action", string(domain.TaskCAPAction)),
				huh.NewOption("Audit preparation", string(domain.TaskAuditPrep)),
				huh.NewOption("Permit renewal", string(domain.TaskPermitRenewal)),
				huh.NewOption("Training", string(domain.TaskTraining)),
				huh.NewOption("Maintenance", string(domain.TaskMaintenance)),
			),
			huh.NewSelect[string]().Title("Priority").Value(&v.priority).Options(
				huh.NewOption("Low", string(domain.PriorityLow)),
				huh.NewOption("Medium", string(domain.PriorityMedium)),
				huh.NewOption("High", string(domain.PriorityHigh)),
				huh.NewOption("Critical", string(domain.PriorityCritical)),
			),
		),
		huh.NewGroup(
			huh.NewInput().Title("Start Date (YYYY-MM-DD)").Value(&v.start).Validate(validateRequiredDate),
			huh.NewInput().Title("Due Date (YYYY-MM-DD)").Placeholder("2025-06-30").Value(&v.due).Validate(validateRequiredDate),
			huh.NewInput().Title("Estimated Hours").Placeholder("8").Value(&v.estimate).Validate(validateNonNegativeFloat),
			huh.NewInput().Title("Assignees").Description("Comma separated user IDs").Value(&v.assignees),
		),
		huh.NewGroup(
			huh.NewSelect[string]().Title("Repeat").Value(&v.pattern).Options(
				huh.NewOption("Does not repeat", ""),
				huh.NewOption("Daily", string(domain.RecurDaily)),
				huh.NewOption("Weekly", string(domain.RecurWeekly)),
				huh.NewOption("Monthly", string(domain.RecurMonthly)),
				huh.NewOption("Yearly", string(domain.RecurYearly)),
			),
			huh.NewInput().Title("Every").Placeholder("1").Value(&v.every).Validate(validatePositiveInt),
			huh.NewInput().Title("Until (YYYY-MM-DD, blank for none)").Value(&v.until).Validate(validateOptionalDate),
		),
	).WithTheme(complyHuhTheme()).WithShowHelp(false)
}

// apply copies validated form values back into in.
func (v *taskFormValues) apply(in *taskInput) error {
	start, err := parseDate(v.start)
	if err != nil {
		return err
	}
	due, err := parseDate(v.due)
	if err != nil {
		return err
	}
	in.factory = strings.TrimSpace(v.factory)
	in.title = strings.TrimSpace(v.title)
	in.description = strings.TrimSpace(v.description)
	in.taskType = domain.TaskType(v.taskType)
	in.priority = domain.Priority(v.priority)
	in.start, in.due = &start, &due

	in.estimate = 0
	if s := strings.TrimSpace(v.estimate); s != "" {
		if in.estimate, err = strconv.ParseFloat(s, 64); err != nil {
			return fmt.Errorf("invalid estimate %q", s)
		}
	}

	in.assignees = nil
	for _, a := range strings.Split(v.assignees, ",") {
		if a = strings.TrimSpace(a); a != "" {
			in.assignees = append(in.assignees, a)
		}
	}

	in.pattern = domain.RecurrencePattern(v.pattern)
	in.every = 1
	if s := strings.TrimSpace(v.every); s != "" {
		if in.every, err = strconv.Atoi(s); err != nil {
			return fmt.Errorf("invalid interval %q", s)
		}
	}
	in.until = nil
	if s := strings.TrimSpace(v.until); s != "" {
		until, err := parseDate(s)
		if err != nil {
			return err
		}
		in.until = &until
	}
	return nil
}

func runTaskForm(in *taskInput, today time.Time) error {
	v := formValuesFrom(in, today)
	if err := newTaskForm(v).Run(); err != nil {
		return err
	}
	return v.apply(in)
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateRequiredDate(s string) error {
	if s == "" {
		return fmt.Errorf("date is required")
	}
	return validateOptionalDate(s)
}

// validateOptionalDate accepts empty or a YYYY-MM-DD date.
func validateOptionalDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return fmt.Errorf("use YYYY-MM-DD format")
	}
	return nil
}

// validatePositiveInt accepts empty or an integer above zero.
func validatePositiveInt(s string) error {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}

func validateNonNegativeFloat(s string) error {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return fmt.Errorf("enter a number of hours")
	}
	return nil
}
