package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg     = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// TaskStatusPill returns a colored indicator such as "● In Progress".
func TaskStatusPill(s domain.TaskStatus) string {
	switch s {
	case domain.TaskPending:
		return StyleBlue.Render("○ Pending")
	case domain.TaskInProgress:
		return StyleGreen.Render("● In Progress")
	case domain.TaskBlocked:
		return StyleRed.Render("■ Blocked")
	case domain.TaskCompleted:
		return StyleDim.Render("✔ Completed")
	case domain.TaskCancelled:
		return StyleDim.Render("✖ Cancelled")
	default:
		return StyleDim.Render(string(s))
	}
}

// PriorityBadge colors a priority by urgency.
func PriorityBadge(p domain.Priority) string {
	label := strings.ToUpper(string(p))
	switch p {
	case domain.PriorityCritical:
		return StyleRed.Bold(true).Render("▲ " + label)
	case domain.PriorityHigh:
		return StyleRed.Render(label)
	case domain.PriorityMedium:
		return StyleYellow.Render(label)
	case domain.PriorityLow:
		return StyleDim.Render(label)
	default:
		return StyleDim.Render("--")
	}
}

func CertificateStatusPill(s domain.CertificateStatus) string {
	switch s {
	case domain.CertificateActive:
		return StyleGreen.Render("● Active")
	case domain.CertificateExpired:
		return StyleYellow.Render("○ Expired")
	case domain.CertificateRevoked:
		return StyleRed.Render("✖ Revoked")
	default:
		return StyleDim.Render(string(s))
	}
}

// ScoreColor returns green for full compliance, yellow from 50 and red below.
func ScoreColor(score int) lipgloss.Style {
	switch {
	case score >= 100:
		return StyleGreen
	case score >= 50:
		return StyleYellow
	default:
		return StyleRed
	}
}

// Score renders a compliance score such as "50%".
func Score(score int) string {
	return ScoreColor(score).Render(fmt.Sprintf("%d%%", score))
}

// Header renders a section header with the orange header style and an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", len([]rune(upper)))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

func Dim(text string) string {
	return StyleDim.Render(text)
}

func Bold(text string) string {
	return StyleBold.Render(text)
}
