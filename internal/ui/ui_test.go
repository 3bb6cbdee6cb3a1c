package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/brck/brckctl/internal/brckapi"
)

func TestFailureResultFromAPIError(t *testing.T) {
	err := brckapi.NewValidationError("Validation failed", map[string]string{
		"ipaddr":  "invalid format",
		"netmask": "required",
	})

	r := NewFailureResult("Configure failed", err)
	if r.Message != "Validation failed" {
		t.Errorf("Message = %q, want %q", r.Message, "Validation failed")
	}
	if len(r.Details) != 2 || r.Details[0].Key != "ipaddr" || r.Details[1].Key != "netmask" {
		t.Errorf("Details = %v, want ipaddr then netmask", r.Details)
	}

	out := r.Render()
	for _, want := range []string{"FAILED", "Configure failed", "Validation failed", "invalid format"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q", want)
		}
	}
}

func TestFailureResultTroubleshooting(t *testing.T) {
	err := brckapi.ClassifyNetworkError(errors.New("dial tcp: lookup local.brck.com: no such host"))

	r := NewFailureResult("Status failed", err)
	if len(r.Troubleshooting) == 0 {
		t.Fatal("Troubleshooting is empty, want tips")
	}
	for _, tip := range r.Troubleshooting {
		if strings.HasPrefix(tip, "•") {
			t.Errorf("tip %q still carries its bullet", tip)
		}
	}
	if len(r.Notes) == 0 || r.Notes[0] != "The SupaBRCK could not be reached." {
		t.Errorf("Notes = %v", r.Notes)
	}
}

func TestSplitHint(t *testing.T) {
	notes, tips := splitHint("First.\nTroubleshooting:\n  • one\n  • two")
	if len(notes) != 1 || notes[0] != "First." {
		t.Errorf("notes = %v, want [First.]", notes)
	}
	if len(tips) != 2 || tips[0] != "one" || tips[1] != "two" {
		t.Errorf("tips = %v, want [one two]", tips)
	}
}

func TestPrinterKeepsDetailOrder(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf).SetWidth(80)

	p.PrintSuccess("Connected", Detail{Key: "Slot", Value: "SIM2"}, Detail{Key: "APN", Value: "safaricom"})

	out := buf.String()
	slot := strings.Index(out, "SIM2")
	apn := strings.Index(out, "safaricom")
	if slot < 0 || apn < 0 || slot > apn {
		t.Errorf("detail order wrong in %q", out)
	}
}

func TestPrompter(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("\nbob\ns3cret\nyes\nn\n"), &out)

	if got, err := p.Line("Login", "admin"); err != nil || got != "admin" {
		t.Errorf("Line() = %q, %v, want default admin", got, err)
	}
	if got, err := p.Line("Login", "admin"); err != nil || got != "bob" {
		t.Errorf("Line() = %q, %v, want bob", got, err)
	}
	if got, err := p.Secret("Password"); err != nil || got != "s3cret" {
		t.Errorf("Secret() = %q, %v, want s3cret", got, err)
	}
	if err := p.Confirm("Reconfigure Wi-Fi"); err != nil {
		t.Errorf("Confirm(yes) error = %v", err)
	}
	if err := p.Confirm("Reconfigure Wi-Fi"); !errors.Is(err, ErrCancelled) {
		t.Errorf("Confirm(n) error = %v, want ErrCancelled", err)
	}
}

func TestRenderSteps(t *testing.T) {
	out := RenderSteps([]Step{
		{Name: "REQUIRES_PIN", Status: StepRunning, Message: "PIN required"},
		{Name: "PIN_OK", Status: StepComplete},
	})
	if !strings.Contains(out, StepMarkerRunning+" REQUIRES_PIN") || !strings.Contains(out, "(PIN required)") {
		t.Errorf("RenderSteps() = %q", out)
	}
}

func TestGauge(t *testing.T) {
	if Gauge(-1, 20) != Gauge(0, 20) {
		t.Error("Gauge() does not clamp below 0")
	}
	if Gauge(0.5, 20) == Gauge(1, 20) {
		t.Error("Gauge(0.5) renders the same as Gauge(1)")
	}
}
