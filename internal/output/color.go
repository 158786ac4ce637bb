// Package output provides styled terminal rendering helpers for refscan.
package output

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color constants for consistent styling across the CLI.
var (
	// ColorPrimary is used for headers and emphasis.
	ColorPrimary = lipgloss.Color("#64b5f6")

	// ColorSuccess is used for relocation candidates and improvements.
	ColorSuccess = lipgloss.Color("#66bb6a")

	// ColorError is used for regressions and failures.
	ColorError = lipgloss.Color("#ef5350")

	// ColorWarning is used for caution indicators.
	ColorWarning = lipgloss.Color("#fff59d")

	// ColorMuted is used for secondary text and borders.
	ColorMuted = lipgloss.Color("#888888")
)

// Styles provides reusable lipgloss styles.
var (
	// StyleHeader is used for section headers.
	StyleHeader lipgloss.Style

	// StyleSuccess is used for positive values and the candidate marker.
	StyleSuccess lipgloss.Style

	// StyleError is used for negative values.
	StyleError lipgloss.Style

	// StyleWarning is used for cautionary values.
	StyleWarning lipgloss.Style

	// StyleMuted is used for de-emphasized text.
	StyleMuted lipgloss.Style

	// StyleBold is used for emphasized text.
	StyleBold lipgloss.Style

	// StyleLabel is used for summary labels.
	StyleLabel lipgloss.Style

	// StyleValue is used for summary values.
	StyleValue lipgloss.Style
)

func init() {
	setStyles(false)
}

// noColor tracks whether color output is disabled.
var noColor bool

func setStyles(plain bool) {
	if plain {
		p := lipgloss.NewStyle()
		StyleHeader = p
		StyleSuccess = p
		StyleError = p
		StyleWarning = p
		StyleMuted = p
		StyleBold = p
		StyleLabel = p.Width(24)
		StyleValue = p.Width(12)
		return
	}
	StyleHeader = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleMuted = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleBold = lipgloss.NewStyle().Bold(true)
	StyleLabel = lipgloss.NewStyle().Width(24)
	StyleValue = lipgloss.NewStyle().Bold(true).Width(12)
}

// SetNoColor disables or enables color output globally.
// When disabled, all package-level styles are reassigned to unstyled renderers.
func SetNoColor(disabled bool) {
	noColor = disabled
	setStyles(disabled)
}

// IsNoColor returns whether color output is currently disabled.
func IsNoColor() bool {
	return noColor
}

// StdoutIsTerminal reports whether stdout is attached to a terminal.
func StdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
