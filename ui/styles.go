package ui

import "github.com/charmbracelet/lipgloss"

var (
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	fuchsia   = lipgloss.Color("#EE6FF8")
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(fuchsia).
			Padding(0, 1).
			Render

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(fuchsia).
			Padding(1, 3).
			Align(lipgloss.Center)

	cardNameStyle = lipgloss.NewStyle().Bold(true).Render

	subtleStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Render

	runningStyle = lipgloss.NewStyle().
			Foreground(mintGreen).
			Background(darkGreen).
			Padding(0, 1).
			Render

	stoppedStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Background(statusBarBg).
			Padding(0, 1).
			Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	errorStyle = lipgloss.NewStyle().
			Foreground(red).
			Render

	helpStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Render
)
