// Package console renders the interactive parts of the login flow: the wait
// countdown, the PIN prompt and short status lines.
package console

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.Color("#06C755") // LINE green
	colorSuccess = lipgloss.Color("#22C55E")
	colorWarning = lipgloss.Color("#EAB308")
	colorError   = lipgloss.Color("#EF4444")
	colorInfo    = lipgloss.Color("#3B82F6")
	colorMuted   = lipgloss.Color("#6B7280")
	colorText    = lipgloss.Color("#CDD6F4")
	colorBorder  = lipgloss.Color("#45475A")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorInfo).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	pinStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 3)
)

// Title renders a section heading.
func Title(s string) string { return titleStyle.Render(s) }

// KeyValue renders "label: value".
func KeyValue(label string, value any) string {
	return labelStyle.Render(label+":") + " " + valueStyle.Render(fmt.Sprint(value))
}

// Muted renders secondary text.
func Muted(s string) string { return mutedStyle.Render(s) }

// Success renders a positive status line.
func Success(s string) string { return successStyle.Render("✓ " + s) }

// Warning renders a cautionary status line.
func Warning(s string) string { return warningStyle.Render("! " + s) }

// Failure renders an error status line.
func Failure(s string) string { return errorStyle.Render("✗ " + s) }

// PIN renders the confirmation code the user types into the LINE app.
func PIN(code string) string {
	return lipgloss.JoinVertical(lipgloss.Center,
		labelStyle.Render("Enter this PIN in LINE"),
		pinStyle.Render(code),
	)
}
