// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/attendance-engine/internal/model"
)

// Palette.
var (
	PrimaryColor = lipgloss.Color("#6C8EBF") // slate blue
	SuccessColor = lipgloss.Color("#4ECDC4") // teal
	WarningColor = lipgloss.Color("#FFE66D") // amber
	ErrorColor   = lipgloss.Color("#FF6B6B") // red
	InfoColor    = lipgloss.Color("#95E1D3") // light teal
	SubtleColor  = lipgloss.Color("#666666") // gray
	BorderColor  = lipgloss.Color("#333333")

	// OvertimeColor marks credited hours beyond the shift.
	OvertimeColor = lipgloss.Color("#C39BD3")
)

// Text styles.
var (
	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor).MarginBottom(1)
	SuccessStyle  = lipgloss.NewStyle().Foreground(SuccessColor)
	WarningStyle  = lipgloss.NewStyle().Foreground(WarningColor)
	ErrorStyle    = lipgloss.NewStyle().Foreground(ErrorColor)
	InfoStyle     = lipgloss.NewStyle().Foreground(InfoColor)
	SubtleStyle   = lipgloss.NewStyle().Foreground(SubtleColor)
	BoldStyle     = lipgloss.NewStyle().Bold(true)
	OvertimeStyle = lipgloss.NewStyle().Foreground(OvertimeColor).Bold(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(1, 2)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(BorderColor)

	TableCellStyle = lipgloss.NewStyle().PaddingRight(2)
)

// Icons.
const (
	SuccessIcon    = "✓"
	ErrorIcon      = "✗"
	WarningIcon    = "⚠️"
	InfoIcon       = "ℹ️"
	ClockIcon      = "🕘"
	PendingIcon    = "⏳"
	IncompleteIcon = "…"
)

// approvalBadges renders each overtime approval state in the session table.
var approvalBadges = map[model.OvertimeApprovalState]string{
	model.OvertimePendingApproval: WarningStyle.Render(PendingIcon + " pending"),
	model.OvertimeAutoApproved:    SuccessStyle.Render(SuccessIcon + " auto"),
	model.OvertimeNone:            SubtleStyle.Render("none"),
}

// arrivalStyles highlights arrivals that break the grace period.
var arrivalStyles = map[model.ArrivalStatus]lipgloss.Style{
	model.ArrivalLate:  WarningStyle,
	model.ArrivalGrace: SubtleStyle,
}

// departureStyles highlights departures that need attention.
var departureStyles = map[model.DepartureStatus]lipgloss.Style{
	model.DepartureEarly:      WarningStyle,
	model.DepartureIncomplete: ErrorStyle,
}

// ApprovalBadge renders an overtime approval state.
func ApprovalBadge(state model.OvertimeApprovalState) string {
	if badge, ok := approvalBadges[state]; ok {
		return badge
	}
	return SubtleStyle.Render(string(state))
}

func styleArrival(status model.ArrivalStatus, text string) string {
	if style, ok := arrivalStyles[status]; ok {
		return style.Render(text)
	}
	return text
}

func styleDeparture(status model.DepartureStatus, text string) string {
	if style, ok := departureStyles[status]; ok {
		return style.Render(text)
	}
	return text
}

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a title with the clock icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(ClockIcon + " " + title)
}

// RenderBox renders content in a bordered box under a title.
func RenderBox(title, content string) string {
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.UnsetMargins().Render(title),
		content,
	))
}
