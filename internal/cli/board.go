package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexanderramin/complytrack/internal/cli/formatter"
	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/alexanderramin/complytrack/internal/repository"
	"github.com/alexanderramin/complytrack/internal/service"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// boardColumns are the statuses shown on the board, left to right.
var boardColumns = []domain.TaskStatus{
	domain.TaskPending,
	domain.TaskInProgress,
	domain.TaskBlocked,
	domain.TaskCompleted,
}

// progressStep is how far "p" advances the selected task.
const progressStep = 25

type boardKeyMap struct {
	Left, Right, Up, Down key.Binding
	Detail, Advance       key.Binding
	Refresh, Quit         key.Binding
}

func (k boardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Up, k.Detail, k.Advance, k.Refresh, k.Quit}
}

func (k boardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Left, k.Right, k.Up, k.Down}, {k.Detail, k.Advance, k.Refresh, k.Quit}}
}

func newBoardKeyMap() boardKeyMap {
	return boardKeyMap{
		Left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/→", "column")),
		Right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next column")),
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/↓", "select")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "next task")),
		Detail:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Advance: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", fmt.Sprintf("+%d%% progress", progressStep))),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
}

// boardLoadedMsg carries a fresh task snapshot.
type boardLoadedMsg struct {
	tasks []*domain.Task
	err   error
}

// progressSavedMsg reports the outcome of an advance.
type progressSavedMsg struct {
	task *domain.Task
	err  error
}

// boardModel is a kanban view of tasks grouped by status.
type boardModel struct {
	app    *App
	filter repository.TaskFilter
	keys   boardKeyMap
	help   help.Model

	columns map[domain.TaskStatus][]*domain.Task
	col     int
	cursor  []int

	detail  bool
	loading bool
	status  string
	err     error
	width   int
}

func newBoardModel(app *App, filter repository.TaskFilter) *boardModel {
	return &boardModel{
		app:     app,
		filter:  filter,
		keys:    newBoardKeyMap(),
		help:    help.New(),
		columns: make(map[domain.TaskStatus][]*domain.Task),
		cursor:  make([]int, len(boardColumns)),
		loading: true,
		width:   120,
	}
}

func (m *boardModel) Init() tea.Cmd {
	return m.load()
}

func (m *boardModel) load() tea.Cmd {
	app, filter := m.app, m.filter
	return func() tea.Msg {
		tasks, err := app.Tasks.ListTasks(context.Background(), filter,
			repository.ListOptions{OrderBy: repository.OrderByDueDate})
		return boardLoadedMsg{tasks: tasks, err: err}
	}
}

func (m *boardModel) advance(t *domain.Task) tea.Cmd {
	app := m.app
	next := min(t.Progress+progressStep, 100)
	return func() tea.Msg {
		updated, err := app.Tasks.UpdateTaskProgress(context.Background(), app.Actor(), t.ID,
			service.ProgressUpdate{Progress: next})
		return progressSavedMsg{task: updated, err: err}
	}
}

func (m *boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case boardLoadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.group(msg.tasks)
		}
		return m, nil

	case progressSavedMsg:
		if msg.err != nil {
			m.status = formatter.StyleRed.Render(msg.err.Error())
			return m, nil
		}
		m.status = fmt.Sprintf("%s → %d%%", msg.task.Title, msg.task.Progress)
		return m, m.load()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Left):
			m.col = (m.col + len(boardColumns) - 1) % len(boardColumns)
		case key.Matches(msg, m.keys.Right):
			m.col = (m.col + 1) % len(boardColumns)
		case key.Matches(msg, m.keys.Up):
			if m.cursor[m.col] > 0 {
				m.cursor[m.col]--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor[m.col] < len(m.current())-1 {
				m.cursor[m.col]++
			}
		case key.Matches(msg, m.keys.Detail):
			m.detail = !m.detail
		case key.Matches(msg, m.keys.Refresh):
			m.loading = true
			return m, m.load()
		case key.Matches(msg, m.keys.Advance):
			if t := m.selected(); t != nil {
				return m, m.advance(t)
			}
		}
	}
	return m, nil
}

func (m *boardModel) group(tasks []*domain.Task) {
	m.columns = make(map[domain.TaskStatus][]*domain.Task, len(boardColumns))
	for _, t := range tasks {
		m.columns[t.Status] = append(m.columns[t.Status], t)
	}
	for i, s := range boardColumns {
		m.cursor[i] = max(min(m.cursor[i], len(m.columns[s])-1), 0)
	}
}

func (m *boardModel) current() []*domain.Task {
	return m.columns[boardColumns[m.col]]
}

func (m *boardModel) selected() *domain.Task {
	tasks := m.current()
	if len(tasks) == 0 {
		return nil
	}
	return tasks[m.cursor[m.col]]
}

func (m *boardModel) View() string {
	if m.err != nil {
		return formatter.StyleRed.Render("Error: "+m.err.Error()) + "\n"
	}
	if m.loading {
		return formatter.Dim("Loading tasks...") + "\n"
	}

	now := m.app.now()
	colWidth := max(m.width/len(boardColumns)-2, 20)
	cols := make([]string, len(boardColumns))
	for i, s := range boardColumns {
		tasks := m.columns[s]
		var b strings.Builder
		b.WriteString(formatter.TaskStatusPill(s) + formatter.Dim(fmt.Sprintf(" (%d)", len(tasks))) + "\n\n")
		for j, t := range tasks {
			line := formatter.Truncate(t.Title, colWidth-4)
			if t.IsOverdue(now) {
				line = formatter.StyleRed.Render(line)
			}
			if i == m.col && j == m.cursor[i] {
				line = formatter.StyleHeader.Render("▸ ") + line
			} else {
				line = "  " + line
			}
			b.WriteString(line + "\n")
		}
		style := lipgloss.NewStyle().Width(colWidth).Padding(0, 1)
		if i == m.col {
			style = style.Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(formatter.ColorHeader)
		}
		cols[i] = style.Render(b.String())
	}

	var out strings.Builder
	out.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...) + "\n")
	if t := m.selected(); t != nil && m.detail {
		out.WriteString("\n" + formatter.FormatTaskDetail(t, nil, now))
	}
	if m.status != "" {
		out.WriteString("\n" + m.status + "\n")
	}
	out.WriteString("\n" + m.help.View(m.keys) + "\n")
	return out.String()
}

func newTaskBoardCmd(app *App) *cobra.Command {
	var factory, assignee string

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Open an interactive board of tasks by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTerminal(app, "the board"); err != nil {
				return err
			}
			m := newBoardModel(app, repository.TaskFilter{FactoryID: factory, Assignee: assignee})
			_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}

	cmd.Flags().StringVar(&factory, "factory", "", "Only tasks of this factory")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Only tasks assigned to this user")

	return cmd
}
