package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus is the state of one line in a step list.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
)

const (
	StepMarkerComplete = "✓"
	StepMarkerRunning  = "●"
	StepMarkerPending  = "·"
)

// Step is one line of a step list, such as a SIM connection event.
type Step struct {
	Name    string
	Status  StepStatus
	Message string
}

// RenderSteps renders steps one per line with a status marker.
func RenderSteps(steps []Step) string {
	lines := make([]string, 0, len(steps))
	for _, s := range steps {
		var marker string
		var style lipgloss.Style
		switch s.Status {
		case StepComplete:
			marker, style = StepMarkerComplete, lipgloss.NewStyle().Foreground(SuccessColor)
		case StepRunning:
			marker, style = StepMarkerRunning, lipgloss.NewStyle().Foreground(WarningColor)
		case StepFailed:
			marker, style = FailureMarker, lipgloss.NewStyle().Foreground(ErrorColor)
		default:
			marker, style = StepMarkerPending, MutedStyle
		}
		line := style.Render(fmt.Sprintf("  %s %s", marker, s.Name))
		if s.Message != "" {
			line += " " + MutedStyle.Italic(true).Render("("+s.Message+")")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Gauge renders a static bar for a fraction between 0 and 1, used for
// battery charge and storage usage.
func Gauge(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(min(max(width, 10), 50)),
	)
	return bar.ViewAs(fraction)
}
