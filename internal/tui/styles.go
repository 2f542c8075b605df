package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorRed    = lipgloss.Color("#FF5F5F")
	colorGreen  = lipgloss.Color("#5FD75F")
	colorYellow = lipgloss.Color("#FFD75F")
	colorCyan   = lipgloss.Color("#5FD7FF")
	colorGray   = lipgloss.Color("#808080")
	colorDim    = lipgloss.Color("#4E4E4E")
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	recordingStyle = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	idleStyle      = lipgloss.NewStyle().Foreground(colorGray)
	dimStyle       = lipgloss.NewStyle().Foreground(colorGray)
	finalStyle     = lipgloss.NewStyle()
	interimStyle   = lipgloss.NewStyle().Foreground(colorYellow)
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	okStyle        = lipgloss.NewStyle().Foreground(colorGreen)
	barStyle       = lipgloss.NewStyle().Foreground(colorGreen)
	barHotStyle    = lipgloss.NewStyle().Foreground(colorYellow)
	barEmptyStyle  = lipgloss.NewStyle().Foreground(colorDim)
	dividerStyle   = lipgloss.NewStyle().Foreground(colorDim)
	transcriptBox  = lipgloss.NewStyle().Padding(0, 1)
)
