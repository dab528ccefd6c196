// Package ui holds the thin terminal status line the demo host binary
// (cmd/looperd) renders: transport state, active track, and metronome beat.
// Spec §1 places waveform/fader widget rendering out of scope for the core;
// this package is intentionally limited to that status line and carries
// over only the teacher's styling primitives, not its mixer channel strip
// or device-picker widgets.
package ui

import "github.com/charmbracelet/lipgloss"

// Color palette, carried over from the teacher's mixer theme.
var (
	ColorPrimary    = lipgloss.Color("#7C3AED")
	ColorSecondary  = lipgloss.Color("#10B981")
	ColorAccent     = lipgloss.Color("#F59E0B")
	ColorMuted      = lipgloss.Color("#EF4444")
	ColorSolo       = lipgloss.Color("#3B82F6")
	ColorBackground = lipgloss.Color("#1F2937")
	ColorSurface    = lipgloss.Color("#374151")
	ColorText       = lipgloss.Color("#F9FAFB")
	ColorTextDim    = lipgloss.Color("#9CA3AF")
)

var (
	BaseStyle = lipgloss.NewStyle().
			Background(ColorBackground).
			Foreground(ColorText)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Padding(0, 1).
			MarginBottom(1)

	StateStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	RecordingStyle = StateStyle.Foreground(ColorBackground).Background(ColorMuted)
	PlayingStyle   = StateStyle.Foreground(ColorBackground).Background(ColorSecondary)
	IdleStyle      = StateStyle.Foreground(ColorTextDim)

	TrackStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorSurface).
			Padding(0, 1)

	ActiveTrackStyle = TrackStyle.BorderForeground(ColorPrimary)

	BeatStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	FreezeStyle = lipgloss.NewStyle().Foreground(ColorSolo).Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim).
			MarginTop(1)
)
