package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Color palette, shared with the exported map styles
	colorPrimary   = lipgloss.Color("#1F75C4") // Zone outline blue
	colorHighlight = lipgloss.Color("#2E7D32") // Matched zone green
	colorDanger    = lipgloss.Color("#FF6B6B")
	colorWarning   = lipgloss.Color("#FFD93D")
	colorSuccess   = lipgloss.Color("#4CAF50")
	colorMuted     = lipgloss.Color("#6C757D")
	colorBorder    = lipgloss.Color("#81C6E8")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Bold(true)

	// Input box, thicker when focused
	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1).
			Width(64)

	activeInputBoxStyle = inputBoxStyle.
				BorderForeground(colorPrimary)

	activeModeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorPrimary).
			Padding(0, 1)

	modeStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorDanger).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(1, 0)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true).
				MarginTop(1)
)
