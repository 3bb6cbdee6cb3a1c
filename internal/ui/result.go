package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/brck/brckctl/internal/brckapi"
)

// ResultType indicates success, failure or warning.
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Result is a result box.
type Result struct {
	Type    ResultType
	Title   string
	Details []Detail
	// Message is the error line of a failure.
	Message string
	// Notes are plain lines shown above the troubleshooting tips.
	Notes           []string
	Troubleshooting []string
	Width           int
}

// NewSuccessResult creates a success box.
func NewSuccessResult(title string, details ...Detail) *Result {
	return &Result{Type: ResultSuccess, Title: title, Details: details, Width: GetTerminalWidth()}
}

// NewWarningResult creates a warning box.
func NewWarningResult(title string, details ...Detail) *Result {
	return &Result{Type: ResultWarning, Title: title, Details: details, Width: GetTerminalWidth()}
}

// NewFailureResult creates a failure box from err. API errors show their
// short message, per-field messages and the troubleshooting hint.
func NewFailureResult(title string, err error) *Result {
	r := &Result{Type: ResultFailure, Title: title, Width: GetTerminalWidth()}
	if err == nil {
		return r
	}
	r.Message = brckapi.GetShortErrorMessage(err)
	var apiErr *brckapi.Error
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		r.Message = apiErr.Message
		fields := apiErr.Fields
		for _, key := range sortedKeys(fields) {
			r.Details = append(r.Details, Detail{Key: key, Value: fields[key]})
		}
	}
	r.Notes, r.Troubleshooting = splitHint(brckapi.GetTroubleshootingHint(err))
	return r
}

// splitHint separates a brckapi hint into its leading notes and its bullet
// points.
func splitHint(hint string) (notes, tips []string) {
	for _, line := range strings.Split(hint, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "" || trimmed == "Troubleshooting:":
		case strings.HasPrefix(trimmed, "•"):
			tips = append(tips, strings.TrimSpace(strings.TrimPrefix(trimmed, "•")))
		default:
			notes = append(notes, trimmed)
		}
	}
	return notes, tips
}

// AddDetail appends a detail line.
func (r *Result) AddDetail(key, value string) *Result {
	r.Details = append(r.Details, Detail{Key: key, Value: value})
	return r
}

// Render returns the styled box.
func (r *Result) Render() string {
	width := clampWidth(r.Width)

	var (
		title  string
		border lipgloss.Color
	)
	switch r.Type {
	case ResultFailure:
		title = ErrorTitleStyle.Render(fmt.Sprintf("   %s  FAILED  ─  %s", FailureMarker, r.Title))
		border = ErrorColor
	case ResultWarning:
		title = WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, r.Title))
		border = WarningColor
	default:
		title = SuccessTitleStyle.Render(fmt.Sprintf("   %s  SUCCESS  ─  %s", SuccessMarker, r.Title))
		border = SuccessColor
	}

	lines := []string{"", title, ""}
	if r.Message != "" {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Message), "")
	}
	if len(r.Details) > 0 {
		lines = append(lines, renderDetails(r.Details, "   "), "")
	}
	for _, note := range r.Notes {
		lines = append(lines, MutedStyle.Render("   "+note))
	}
	if len(r.Notes) > 0 {
		lines = append(lines, "")
	}
	if len(r.Troubleshooting) > 0 {
		lines = append(lines, r.renderTroubleshooting(width), "")
	}

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(border).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))
}

func (r *Result) renderTroubleshooting(width int) string {
	lines := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
	for _, tip := range r.Troubleshooting {
		lines = append(lines, MutedStyle.Render("  • "+tip))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(max(width-12, 40)).
		Padding(0, 1).
		MarginLeft(3).
		Render(strings.Join(lines, "\n"))
}

func (r *Result) String() string {
	return r.Render()
}
