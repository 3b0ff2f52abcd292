// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Color palette shared by all CLI output, tuned for dark terminals.
const (
	// ColorPrimary is used for titles and headers.
	ColorPrimary = lipgloss.Color("#7C3AED")
	// ColorMuted is used for secondary text.
	ColorMuted = lipgloss.Color("#6B7280")
	// ColorSuccess is used for successful outcomes.
	ColorSuccess = lipgloss.Color("#10B981")
	// ColorError is used for failures.
	ColorError = lipgloss.Color("#EF4444")
	// ColorWarning is used for degradations.
	ColorWarning = lipgloss.Color("#F59E0B")
	// ColorHighlight is used for paths, specifiers and commands.
	ColorHighlight = lipgloss.Color("#3B82F6")
)

var (
	// TitleStyle is for section titles.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	// SubtitleStyle is for secondary text.
	SubtitleStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	// SuccessStyle is for success markers.
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	// ErrorStyle is for error headers.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorError)
	// WarningStyle is for warnings.
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	// PathStyle is for module paths and specifiers.
	PathStyle = lipgloss.NewStyle().Foreground(ColorHighlight)

	// elementStyle renders element names in result trees.
	elementStyle = lipgloss.NewStyle().Foreground(ColorPrimary)
	// propStyle renders element props in result trees.
	propStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	// snippetStyle frames transpiled source around a failing line.
	snippetStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1)
	// tableHeaderStyle renders diagnostics table headers.
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Padding(0, 1)
	// tableCellStyle renders diagnostics table cells.
	tableCellStyle = lipgloss.NewStyle().Padding(0, 1)
)
