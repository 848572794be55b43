package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/alexanderramin/complytrack/internal/repository"
	"github.com/alexanderramin/complytrack/internal/service"
)

// resolveTaskID accepts a full task ID or a unique prefix of one, as shown
// in list output.
func resolveTaskID(ctx context.Context, app *App, input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("task ID is required")
	}

	if t, err := app.Tasks.GetTask(ctx, input); err == nil {
		return t.ID, nil
	} else if !service.IsNotFound(err) {
		return "", err
	}

	tasks, err := app.Tasks.ListTasks(ctx, repository.TaskFilter{}, repository.ListOptions{})
	if err != nil {
		return "", err
	}
	var matches []string
	for _, t := range tasks {
		if strings.HasPrefix(t.ID, input) {
			matches = append(matches, t.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("task not found: %q", input)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("task ID prefix %q is ambiguous (%d matches)", input, len(matches))
	}
}

func resolveTaskIDs(ctx context.Context, app *App, inputs []string) ([]string, error) {
	ids := make([]string, 0, len(inputs))
	for _, in := range inputs {
		id, err := resolveTaskID(ctx, app, in)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// resolveBlockerID matches input against the open blockers of t by ID or
// ID prefix.
func resolveBlockerID(t *domain.Task, input string) (string, error) {
	var matches []string
	for _, b := range t.Blockers {
		if b.Resolved {
			continue
		}
		if b.ID == input {
			return b.ID, nil
		}
		if strings.HasPrefix(b.ID, input) {
			matches = append(matches, b.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no open blocker %q on task %s", input, t.ID)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("blocker ID prefix %q is ambiguous (%d matches)", input, len(matches))
	}
}
