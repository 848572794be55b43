package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/alexanderramin/complytrack/internal/cli/formatter"
	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/alexanderramin/complytrack/internal/export"
	"github.com/alexanderramin/complytrack/internal/repository"
	"github.com/alexanderramin/complytrack/internal/service"
	"github.com/spf13/cobra"
)

func newTaskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage compliance tasks",
	}

	cmd.AddCommand(
		newTaskAddCmd(app),
		newTaskListCmd(app),
		newTaskShowCmd(app),
		newTaskProgressCmd(app),
		newTaskCommentCmd(app),
		newTaskAssignCmd(app),
		newTaskDependCmd(app),
		newTaskDepsCmd(app),
		newTaskBlockCmd(app),
		newTaskUnblockCmd(app),
		newTaskCancelCmd(app),
		newTaskRemoveCmd(app),
		newTaskRecurCmd(app),
		newTaskOverdueCmd(app),
		newTaskStatsCmd(app),
		newTaskBoardCmd(app),
	)

	return cmd
}

// taskInput collects the flags of "task add".
type taskInput struct {
	factory, title, description string
	taskType                    domain.TaskType
	priority                    domain.Priority
	start, due, until           *time.Time
	estimate                    float64
	assignees, dependsOn        []string
	pattern                     domain.RecurrencePattern
	every                       int
	capID, standardID, permitID string
	auditID, documentID         string
}

func (in *taskInput) toTask(today time.Time) *domain.Task {
	t := &domain.Task{
		FactoryID:      in.factory,
		Title:          in.title,
		Description:    in.description,
		Type:           in.taskType,
		Priority:       in.priority,
		StartDate:      today,
		EstimatedHours: in.estimate,
		Assignees:      in.assignees,
		Dependencies:   in.dependsOn,
		CAPID:          in.capID,
		StandardID:     in.standardID,
		PermitID:       in.permitID,
		AuditID:        in.auditID,
		DocumentID:     in.documentID,
	}
	if in.start != nil {
		t.StartDate = *in.start
	}
	if in.due != nil {
		t.DueDate = *in.due
	}
	if in.pattern != "" {
		t.IsRecurring = true
		t.RecurrencePattern = in.pattern
		t.RecurrenceInterval = in.every
		t.RecurrenceEndDate = in.until
	}
	return t
}

func newTaskAddCmd(app *App) *cobra.Command {
	in := &taskInput{}
	var interactive bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task, or a recurring template with its instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			today := app.now().Truncate(24 * time.Hour)

			if interactive {
				if err := requireTerminal(app, "interactive task entry"); err != nil {
					return err
				}
				if err := runTaskForm(in, today); err != nil {
					return err
				}
			} else {
				for _, name := range []string{"factory", "title", "type", "due"} {
					if !cmd.Flags().Changed(name) {
						return fmt.Errorf("required flag \"%s\" not set", name)
					}
				}
			}

			deps, err := resolveTaskIDs(ctx, app, in.dependsOn)
			if err != nil {
				return err
			}
			in.dependsOn = deps

			res, err := app.Tasks.CreateTask(ctx, app.Actor(), in.toTask(today))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created task %s [%s]\n", res.Task.Title, shortID(res.Task.ID))
			if len(res.Instances) > 0 {
				first, last := res.Instances[0], res.Instances[len(res.Instances)-1]
				fmt.Fprintf(out, "Generated %d instances due %s to %s\n", len(res.Instances),
					first.DueDate.Format(time.DateOnly), last.DueDate.Format(time.DateOnly))
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&in.factory, "factory", "", "Factory ID")
	fs.StringVar(&in.title, "title", "", "Task title")
	fs.StringVar(&in.description, "description", "", "Task description")
	taskTypeFlag(fs, &in.taskType, "type", "Task type (cap_action, audit_prep, permit_renewal, training, maintenance)")
	priorityFlag(fs, &in.priority, "priority", "Priority (low, medium, high, critical)")
	dateFlag(fs, &in.start, "start", "Start date, defaults to today")
	dateFlag(fs, &in.due, "due", "Due date")
	fs.Float64Var(&in.estimate, "estimate", 0, "Estimated hours")
	fs.StringSliceVar(&in.assignees, "assign", nil, "Assignee user IDs")
	fs.StringSliceVar(&in.dependsOn, "depends-on", nil, "IDs of tasks this one depends on")
	patternFlag(fs, &in.pattern, "recur", "Make a recurring template (daily, weekly, monthly, yearly)")
	fs.IntVar(&in.every, "every", 1, "Recurrence interval")
	dateFlag(fs, &in.until, "until", "Recurrence end date")
	fs.StringVar(&in.capID, "cap", "", "Related CAP ID")
	fs.StringVar(&in.standardID, "standard", "", "Related standard ID")
	fs.StringVar(&in.permitID, "permit", "", "Related permit ID")
	fs.StringVar(&in.auditID, "audit", "", "Related audit ID")
	fs.StringVar(&in.documentID, "document", "", "Related document ID")
	fs.BoolVarP(&interactive, "interactive", "i", false, "Fill in the task with a form")

	return cmd
}

// taskListFlags are the filters shared by "task list" and "task stats".
type taskListFlags struct {
	factory   string
	statuses  []string
	taskType  domain.TaskType
	priority  domain.Priority
	assignee  string
	dueFrom   *time.Time
	dueTo     *time.Time
	template  string
	sortBy    string
	desc      bool
	limit     int
	xlsxPath  string
	withOrder bool
}

func (f *taskListFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.factory, "factory", "", "Only tasks of this factory")
	fs.StringSliceVar(&f.statuses, "status", nil, "Only these statuses")
	taskTypeFlag(fs, &f.taskType, "type", "Only this task type")
	priorityFlag(fs, &f.priority, "priority", "Only this priority")
	fs.StringVar(&f.assignee, "assignee", "", "Only tasks assigned to this user")
	dateFlag(fs, &f.dueFrom, "due-from", "Due on or after")
	dateFlag(fs, &f.dueTo, "due-to", "Due on or before")
	fs.StringVar(&f.template, "template", "", "Only instances of this recurring template")
	fs.StringVar(&f.xlsxPath, "xlsx", "", "Also write the result to this .xlsx file")
	if f.withOrder {
		fs.StringVar(&f.sortBy, "sort", "due", "Sort by due, created or priority")
		fs.BoolVar(&f.desc, "desc", false, "Sort descending")
		fs.IntVar(&f.limit, "limit", 0, "Maximum number of tasks")
	}
}

func (f *taskListFlags) filter(cmd *cobra.Command, app *App) (repository.TaskFilter, error) {
	statuses, err := parseStatuses(f.statuses)
	if err != nil {
		return repository.TaskFilter{}, err
	}
	filter := repository.TaskFilter{
		FactoryID: f.factory,
		Statuses:  statuses,
		Type:      f.taskType,
		Priority:  f.priority,
		Assignee:  f.assignee,
		DueFrom:   f.dueFrom,
		DueTo:     f.dueTo,
	}
	if f.template != "" {
		id, err := resolveTaskID(cmd.Context(), app, f.template)
		if err != nil {
			return repository.TaskFilter{}, err
		}
		filter.ParentTaskID = id
	}
	return filter, nil
}

func (f *taskListFlags) options() (repository.ListOptions, error) {
	opts := repository.ListOptions{Descending: f.desc, Limit: f.limit}
	switch f.sortBy {
	case "", "due":
		opts.OrderBy = repository.OrderByDueDate
	case "created":
		opts.OrderBy = repository.OrderByCreatedAt
	case "priority":
		opts.OrderBy = repository.OrderByPriority
	default:
		return opts, fmt.Errorf("invalid sort %q: use due, created or priority", f.sortBy)
	}
	if f.limit < 0 {
		return opts, fmt.Errorf("limit must not be negative")
	}
	return opts, nil
}

func newTaskListCmd(app *App) *cobra.Command {
	flags := &taskListFlags{withOrder: true}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.filter(cmd, app)
			if err != nil {
				return err
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}
			tasks, err := app.Tasks.ListTasks(cmd.Context(), filter, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flags.xlsxPath != "" {
				now := app.now()
				if err := writeFile(flags.xlsxPath, func(w io.Writer) error {
					return export.WriteTasks(w, tasks, nil, now)
				}); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %d tasks to %s\n", len(tasks), flags.xlsxPath)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks found.")
				return nil
			}
			fmt.Fprint(out, formatter.FormatTaskList(tasks, app.now()))
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}

func newTaskShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a task with its blockers, dependencies and comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveTaskID(ctx, app, args[0])
			if err != nil {
				return err
			}
			t, err := app.Tasks.GetTask(ctx, id)
			if err != nil {
				return err
			}
			deps, err := app.Tasks.ListDependencyStatus(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatTaskDetail(t, deps, app.now()))
			return nil
		},
	}
}

func newTaskProgressCmd(app *App) *cobra.Command {
	var progress int
	var hours float64
	var comment string

	cmd := &cobra.Command{
		Use:   "progress ID",
		Short: "Report progress; 100 completes the task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveTaskID(ctx, app, args[0])
			if err != nil {
				return err
			}
			update := service.ProgressUpdate{Progress: progress, Comment: comment}
			if cmd.Flags().Changed("hours") {
				update.Hours = &hours
			}
			t, err := app.Tasks.UpdateTaskProgress(ctx, app.Actor(), id, update)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n",
				t.Title, formatter.TaskStatusPill(t.Status), formatter.RenderProgress(t.Progress, 20))
			return nil
		},
	}

	cmd.Flags().IntVar(&progress, "set", 0, "Progress percentage (0-100)")
	cmd.Flags().Float64Var(&hours, "hours", 0, "Hours worked, added to actual hours")
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "Comment to log with the update")
	_ = cmd.MarkFlagRequired("set")

	return cmd
}

func newTaskCommentCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "comment ID TEXT",
		Short: "Append a comment to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveTaskID(ctx, app, args[0])
			if err != nil {
				return err
			}
			if _, err := app.Tasks.AddComment(ctx, app.Actor(), id, args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Comment added.")
			return nil
		},
	}
}

func newTaskAssignCmd(app *App) *cobra.Command {
	var to []string
	var due *time.Time
	var priority domain.Priority

	cmd := &cobra.Command{
		Use:   "assign ID...",
		Short: "Assign one or more tasks in a single transaction",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ids, err := resolveTaskIDs(ctx, app, args)
			if err != nil {
				return err
			}
			tasks, err := app.Tasks.BulkAssignTasks(ctx, app.Actor(), ids, to,
				service.BulkAssignOptions{DueDate: due, Priority: priority})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range tasks {
				fmt.Fprintf(out, "Assigned %s [%s] to %s\n", t.Title, shortID(t.ID), formatter.Assignees(t))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&to, "to", nil, "Assignee user IDs")
	dateFlag(cmd.Flags(), &due, "due", "New due date for every task")
	priorityFlag(cmd.Flags(), &priority, "priority", "New priority for every task")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func newTaskDependCmd(app *App) *cobra.Command {
	var on string

	cmd := &cobra.Command{
		Use:   "depend ID",
		Short: "Record that a task depends on another",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveTaskID(ctx, app, args[0])
			if err != nil {
				return err
			}
			depID, err := resolveTaskID(ctx, app, on)
			if err != nil {
				return err
			}
			t, err := app.Tasks.AddTaskDependency(ctx, app.Actor(), id, depID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now depends on %d task(s)\n", t.Title, len(t.Dependencies))
			return nil
		},
	}

	cmd.Flags().StringVar(&on, "on", "", "ID of the task depended on")
	_ = cmd.MarkFlagRequired("on")

	return cmd
}

func newTaskDepsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "deps ID",
		Short: "Show the status of a task's dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveTaskID(ctx, app, args[0])
			if err != nil {
				return err
			}
			deps, err := app.Tasks.ListDependencyStatus(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatDependencyStatus(deps))
			return nil
		},
	}
}

func newTaskBlockCmd(app *App) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "block ID",
		Short: "Report a blocker; the task becomes blocked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveTaskID(ctx, app, args[0])
			if err != nil {
				return err
			}
			b, err := app.Tasks.AddTaskBlocker(ctx, app.Actor(), id, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Blocked [%s] with blocker %s\n", shortID(id), shortID(b.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "What is blocking the task")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func newTaskUnblockCmd(app *App) *cobra.Command {
	var resolution string

	cmd := &cobra.Command{
		Use:   "unblock ID BLOCKER",
		Short: "Resolve a blocker; with none left the task returns to pending",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveTaskID(ctx, app, args[0])
			if err != nil {
				return err
			}
			t, err := app.Tasks.GetTask(ctx, id)
			if err != nil {
				return err
			}
			blockerID, err := resolveBlockerID(t, args[1])
			if err != nil {
				return err
			}
			t, err = app.Tasks.ResolveTaskBlocker(ctx, app.Actor(), id, blockerID, resolution)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resolved blocker; %s is %s\n", t.Title, formatter.TaskStatusPill(t.Status))
			return nil
		},
	}

	cmd.Flags().StringVar(&resolution, "resolution", "", "How the blocker was resolved")

	return cmd
}

func newTaskCancelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveTaskID(ctx, app, args[0])
			if err != nil {
				return err
			}
			t, err := app.Tasks.CancelTask(ctx, app.Actor(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s [%s]\n", t.Title, shortID(t.ID))
			return nil
		},
	}
}

func newTaskRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a task with its blockers and comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveTaskID(ctx, app, args[0])
			if err != nil {
				return err
			}
			if err := app.Tasks.DeleteTask(ctx, app.Actor(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", shortID(id))
			return nil
		},
	}
}

func newTaskRecurCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "recur TEMPLATE_ID",
		Short: "Generate the missing instances of a recurring template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveTaskID(ctx, app, args[0])
			if err != nil {
				return err
			}
			created, err := app.Tasks.GenerateRecurringInstances(ctx, app.Actor(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(created) == 0 {
				fmt.Fprintln(out, "All instances already exist.")
				return nil
			}
			fmt.Fprintf(out, "Generated %d instances\n", len(created))
			fmt.Fprint(out, formatter.FormatTaskList(created, app.now()))
			return nil
		},
	}
}

func newTaskOverdueCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "List actionable tasks past their due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := app.now()
			tasks, err := app.Tasks.GetOverdueTasks(cmd.Context(), now)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, formatter.StyleGreen.Render("Nothing overdue."))
				return nil
			}
			fmt.Fprint(out, formatter.FormatTaskList(tasks, now))
			return nil
		},
	}
}

func newTaskStatsCmd(app *App) *cobra.Command {
	flags := &taskListFlags{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show task analytics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			filter, err := flags.filter(cmd, app)
			if err != nil {
				return err
			}
			analytics, err := app.Tasks.GetTaskAnalytics(ctx, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flags.xlsxPath != "" {
				tasks, err := app.Tasks.ListTasks(ctx, filter, repository.ListOptions{OrderBy: repository.OrderByDueDate})
				if err != nil {
					return err
				}
				if err := writeFile(flags.xlsxPath, func(w io.Writer) error {
					return export.WriteTasks(w, tasks, analytics, analytics.GeneratedAt)
				}); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %d tasks to %s\n", len(tasks), flags.xlsxPath)
			}
			fmt.Fprintln(out, formatter.FormatAnalytics(analytics))
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
