package ui

import "github.com/charmbracelet/lipgloss"

// Theme is the palette and the styles derived from it.
type Theme struct {
	root        lipgloss.Style
	panel       lipgloss.Style
	panelFocus  lipgloss.Style
	inputPanel  lipgloss.Style
	inputFocus  lipgloss.Style
	logPanel    lipgloss.Style
	logFocus    lipgloss.Style
	panelTitle  lipgloss.Style
	helpText    lipgloss.Style
	status      lipgloss.Style
	okStatus    lipgloss.Style
	busyStatus  lipgloss.Style
	errorStatus lipgloss.Style
	banner      lipgloss.Style
	body        lipgloss.Style
	modal       lipgloss.Style
	modalTitle  lipgloss.Style
	warning     lipgloss.Style
	prompt      lipgloss.Style
	unsafe      lipgloss.Style
	roles       map[string]lipgloss.Style
	severities  map[string]lipgloss.Style
}

var (
	pink    = lipgloss.Color("#ff71ce")
	blue    = lipgloss.Color("#01cdfe")
	mint    = lipgloss.Color("#05ffa1")
	gold    = lipgloss.Color("#ffd166")
	bg      = lipgloss.Color("#120924")
	panelBg = lipgloss.Color("#1b0f35")
	fg      = lipgloss.Color("#f3f3ff")
	muted   = lipgloss.Color("#9ca3d8")
	dim     = lipgloss.Color("#4b3f72")
)

// NewTheme returns the default neon theme.
func NewTheme() Theme {
	panel := lipgloss.NewStyle().
		Background(panelBg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1)

	return Theme{
		root:        lipgloss.NewStyle().Background(bg).Foreground(fg),
		panel:       panel,
		panelFocus:  panel.BorderForeground(blue),
		inputPanel:  panel,
		inputFocus:  panel.BorderForeground(mint),
		logPanel:    panel,
		logFocus:    panel.BorderForeground(pink),
		panelTitle:  lipgloss.NewStyle().Foreground(mint).Bold(true),
		helpText:    lipgloss.NewStyle().Foreground(muted),
		status:      lipgloss.NewStyle().Foreground(muted),
		okStatus:    lipgloss.NewStyle().Foreground(mint).Bold(true),
		busyStatus:  lipgloss.NewStyle().Foreground(gold).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		banner:      lipgloss.NewStyle().Foreground(pink).Bold(true),
		body:        lipgloss.NewStyle().Foreground(fg),
		modal: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(gold).
			Padding(0, 2),
		modalTitle: lipgloss.NewStyle().Foreground(gold).Bold(true),
		warning:    lipgloss.NewStyle().Foreground(pink).Bold(true),
		prompt: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#22062f")).
			Background(mint).
			Bold(true).
			Padding(0, 1),
		unsafe: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#22062f")).
			Background(pink).
			Bold(true).
			Padding(0, 1),
		roles: map[string]lipgloss.Style{
			"user":      lipgloss.NewStyle().Foreground(mint).Bold(true),
			"assistant": lipgloss.NewStyle().Foreground(blue).Bold(true),
			"system":    lipgloss.NewStyle().Foreground(gold).Bold(true),
			"tool":      lipgloss.NewStyle().Foreground(pink).Bold(true),
		},
		severities: map[string]lipgloss.Style{
			"error": lipgloss.NewStyle().Foreground(pink),
			"warn":  lipgloss.NewStyle().Foreground(gold),
			"info":  lipgloss.NewStyle().Foreground(fg),
			"debug": lipgloss.NewStyle().Foreground(muted),
		},
	}
}
