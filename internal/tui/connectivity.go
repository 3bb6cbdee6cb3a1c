package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brck/brckctl/internal/brckapi"
	"github.com/brck/brckctl/internal/workflow"
)

// engineMsg is sent when an engine reports a state change.
type engineMsg struct {
	kind brckapi.Interface
}

// writeDoneMsg reports the end of an engine write. The result is already in
// the engine state; err is only used for the status line.
type writeDoneMsg struct {
	kind brckapi.Interface
	err  error
}

var cardColors = map[workflow.CardKind]lipgloss.Color{
	workflow.CardNoMedia:    SubtleColor,
	workflow.CardAvailable:  TextColor,
	workflow.CardLocked:     WarningColor,
	workflow.CardConnecting: WarningColor,
	workflow.CardConnected:  SecondaryColor,
	workflow.CardError:      ErrorColor,
}

// connectivityModel is the view of one interface kind. All state lives in
// the engine; the model holds only the cursor and the dialog inputs.
type connectivityModel struct {
	engine *workflow.Engine
	cursor int

	// form mirrors the open dialog. promptForm answers a PIN, PUK or APN
	// request that arrives during a SIM connect.
	form       form
	formFor    workflow.Dialog
	promptForm form
	promptFor  workflow.Prompt
	keys       slotKeyMap
	formKeys   formKeyMap
}

func newConnectivityModel(e *workflow.Engine) *connectivityModel {
	return &connectivityModel{engine: e, keys: newSlotKeys(), formKeys: newFormKeys()}
}

// editing reports whether a text input has focus.
func (m *connectivityModel) editing() bool {
	s := m.engine.Snapshot()
	if s.Dialog == workflow.DialogNone {
		return false
	}
	return !m.form.empty() || m.prompted(s) != workflow.PromptNone
}

// prompted returns the request the open dialog answers inline. The unlock
// dialog already carries PIN and PUK fields, so only an APN is asked there.
func (m *connectivityModel) prompted(s workflow.Snapshot) workflow.Prompt {
	switch {
	case s.Prompt == workflow.PromptAPN && (s.Dialog == workflow.DialogConnect || s.Dialog == workflow.DialogUnlock):
		return s.Prompt
	case s.Dialog == workflow.DialogConnect && (s.Prompt == workflow.PromptPIN || s.Prompt == workflow.PromptPUK):
		return s.Prompt
	}
	return workflow.PromptNone
}

func (m *connectivityModel) selected(s workflow.Snapshot) (brckapi.Slot, bool) {
	if m.cursor < 0 || m.cursor >= len(s.Slots) {
		return brckapi.Slot{}, false
	}
	return s.Slots[m.cursor], true
}

// sync rebuilds the dialog inputs when the engine's dialog changed under us,
// for example after a configure write closed it.
func (m *connectivityModel) sync() {
	s := m.engine.Snapshot()
	if s.Dialog != m.formFor {
		m.openForm(s)
	}
	if p := m.prompted(s); p != m.promptFor || (p != workflow.PromptNone && m.promptForm.empty()) {
		slot, _ := s.Slot(s.SelectedID)
		m.promptFor = p
		m.promptForm = promptForm(p, slot)
	}
	if m.cursor >= len(s.Slots) {
		m.cursor = max(len(s.Slots)-1, 0)
	}
}

func (m *connectivityModel) openForm(s workflow.Snapshot) {
	m.formFor = s.Dialog
	var defs []fieldDef
	for _, spec := range workflow.FieldsFor(s.Kind, s.Dialog) {
		defs = append(defs, fieldDef{
			name:   spec.Name,
			label:  fieldLabel(spec.Name),
			value:  s.Fields[spec.Name].Value,
			secret: isSecret(spec.Name),
		})
	}
	m.form = newForm(defs...)
}

func promptForm(p workflow.Prompt, slot brckapi.Slot) form {
	switch p {
	case workflow.PromptPUK:
		return newForm(
			fieldDef{name: "puk", label: "PUK", secret: true},
			fieldDef{name: "pin", label: "New PIN", secret: true},
		)
	case workflow.PromptPIN:
		return newForm(fieldDef{name: "pin", label: "PIN", secret: true})
	case workflow.PromptAPN:
		var apn brckapi.APNSettings
		if nw := slot.SIMInfo().Network; nw != nil {
			apn = *nw
		}
		return newForm(
			fieldDef{name: "apn", label: fieldLabel("apn"), value: apn.APN},
			fieldDef{name: "apn_user", label: fieldLabel("apn_user"), value: apn.Username},
			fieldDef{name: "apn_password", label: fieldLabel("apn_password"), secret: true},
		)
	}
	return form{}
}

func (m *connectivityModel) update(ctx context.Context, msg tea.KeyMsg) tea.Cmd {
	s := m.engine.Snapshot()

	if s.Dialog != workflow.DialogNone {
		return m.updateDialog(ctx, s, msg)
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(s.Slots)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Configure):
		if slot, ok := m.selected(s); ok {
			if err := m.engine.SelectForConfigure(slot.ID); err != nil {
				return statusCmd(err)
			}
			m.sync()
		}
	case key.Matches(msg, m.keys.Connect):
		if slot, ok := m.selected(s); ok {
			if _, err := m.engine.SelectForConnect(slot.ID); err != nil {
				return statusCmd(err)
			}
			m.sync()
		}
	case key.Matches(msg, m.keys.Back):
		m.engine.Dismiss()
	}
	return nil
}

func (m *connectivityModel) updateDialog(ctx context.Context, s workflow.Snapshot, msg tea.KeyMsg) tea.Cmd {
	prompt := m.prompted(s)
	if prompt != m.promptFor {
		m.sync()
	}
	active := &m.form
	if prompt != workflow.PromptNone {
		active = &m.promptForm
	}

	switch {
	case key.Matches(msg, m.formKeys.Cancel):
		if s.Phase == workflow.PhaseError {
			m.engine.Dismiss()
			return nil
		}
		if err := m.engine.Close(); err != nil {
			return statusCmd(err)
		}
		m.sync()
		return nil
	case key.Matches(msg, m.formKeys.Next) && !active.empty():
		active.move(1)
		return nil
	case key.Matches(msg, m.formKeys.Prev) && !active.empty():
		active.move(-1)
		return nil
	case key.Matches(msg, m.formKeys.Submit):
		if s.Phase.Busy() {
			return nil
		}
		switch prompt {
		case workflow.PromptPIN, workflow.PromptPUK:
			pin, puk := m.promptForm.value("pin"), m.promptForm.value("puk")
			m.promptForm = form{}
			return m.write(s.Kind, func() error { return m.engine.SubmitPIN(ctx, pin, puk) })
		case workflow.PromptAPN:
			f := m.promptForm
			m.promptForm = form{}
			return m.write(s.Kind, func() error {
				return m.engine.SubmitAPN(ctx, f.value("apn"), f.value("apn_user"), f.value("apn_password"))
			})
		}
		return m.write(s.Kind, func() error { return m.engine.Submit(ctx) })
	}

	name, cmd := active.update(msg)
	if name != "" && active == &m.form {
		if err := m.engine.SetField(name, m.form.value(name)); err != nil {
			return tea.Batch(cmd, statusCmd(err))
		}
	}
	return cmd
}

func (m *connectivityModel) write(kind brckapi.Interface, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return writeDoneMsg{kind: kind, err: fn()}
	}
}

func (m *connectivityModel) view(width int, spinner string) string {
	s := m.engine.Snapshot()
	cards := workflow.Project(s)

	var b strings.Builder
	b.WriteString(RenderTitle(s.Kind.Label()))
	b.WriteString("\n")

	switch {
	case !s.Loaded && s.PollError == nil:
		b.WriteString(spinner + " Loading connections...\n")
	case len(cards) == 0:
		b.WriteString(SubtitleStyle.Render("No slots reported."))
		b.WriteString("\n")
	}
	if s.PollError != nil {
		b.WriteString(WarnStyle.Render("Refresh failed: " + brckapi.GetShortErrorMessage(s.PollError)))
		b.WriteString("\n")
	}

	cardWidth := min(CalculateBoxWidth(width)-2, 60)
	for i, c := range cards {
		b.WriteString(renderCard(c, i == m.cursor && s.Dialog == workflow.DialogNone, cardWidth))
		b.WriteString("\n")
	}

	if s.Dialog != workflow.DialogNone {
		b.WriteString("\n")
		b.WriteString(m.renderDialog(s, spinner))
	} else if s.LastError != nil {
		b.WriteString("\n")
		b.WriteString(renderFailure(s.LastError))
	}
	return b.String()
}

func renderCard(c workflow.Card, selected bool, width int) string {
	status := lipgloss.NewStyle().Foreground(cardColors[c.Kind]).Render(c.Status)
	lines := []string{lipgloss.NewStyle().Bold(true).Render(c.Title) + "  " + status}
	for _, l := range c.Lines {
		lines = append(lines, SubtitleStyle.Render(l))
	}
	if len(c.Actions) > 0 {
		names := make([]string, len(c.Actions))
		for i, a := range c.Actions {
			names[i] = string(a)
		}
		lines = append(lines, SubtitleStyle.Render("["+strings.Join(names, "] [")+"]"))
	}
	style := CardStyle
	if selected {
		style = SelectedCardStyle
	}
	return style.Width(width).Render(strings.Join(lines, "\n"))
}

func (m *connectivityModel) renderDialog(s workflow.Snapshot, spinner string) string {
	slot, _ := s.Slot(s.SelectedID)
	name := slot.Name
	if name == "" {
		name = s.SelectedID
	}

	var b strings.Builder
	switch s.Dialog {
	case workflow.DialogConfigure:
		b.WriteString(fmt.Sprintf("Configure %s\n\n", name))
	case workflow.DialogUnlock:
		b.WriteString(fmt.Sprintf("Unlock %s\n\n", name))
	case workflow.DialogConnect:
		b.WriteString(fmt.Sprintf("Connect %s\n\n", name))
	}

	var fieldErrs map[string]string
	if s.LastError != nil {
		fieldErrs = s.LastError.Fields
	}
	if !m.form.empty() {
		b.WriteString(m.form.view(fieldErrs))
	}

	if len(s.EventLog) > 0 {
		b.WriteString("\n")
		for _, ev := range s.EventLog {
			marker := OKStyle.Render("✓")
			if workflow.IsFailureEvent(ev.Event) {
				marker = lipgloss.NewStyle().Foreground(ErrorColor).Render("✗")
			}
			b.WriteString(fmt.Sprintf("  %s %s\n", marker, ev.Description))
		}
	}
	if p := m.prompted(s); p != workflow.PromptNone {
		b.WriteString("\n" + WarnStyle.Render("The SIM needs "+promptWord(p)) + "\n")
		b.WriteString(m.promptForm.view(fieldErrs))
	}

	b.WriteString("\n")
	switch {
	case s.Phase.Busy():
		b.WriteString(spinner + " " + busyLabel(s.Phase))
	case s.LastError != nil:
		b.WriteString(renderFailure(s.LastError))
	case s.FlowDone:
		b.WriteString(OKStyle.Render("Connection established"))
	case s.Dialog == workflow.DialogConnect && len(s.EventLog) == 0:
		b.WriteString(SubtitleStyle.Render("Press enter to connect."))
	}
	return InfoBoxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderFailure(f *workflow.Failure) string {
	lines := []string{f.Message}
	lines = append(lines, f.Details...)
	return ErrorBoxStyle.Render(strings.Join(lines, "\n"))
}

func busyLabel(p workflow.Phase) string {
	if p == workflow.PhaseConnecting {
		return "Connecting..."
	}
	return "Saving..."
}

func promptWord(p workflow.Prompt) string {
	switch p {
	case workflow.PromptPUK:
		return "its PUK"
	case workflow.PromptAPN:
		return "an APN"
	}
	return "its PIN"
}

var fieldLabels = map[string]string{
	"apn":          "APN",
	"apn_user":     "APN user",
	"apn_password": "APN password",
	"pin":          "PIN",
	"puk":          "PUK",
	"dhcp_enabled": "DHCP",
	"ipaddr":       "IP address",
	"netmask":      "Netmask",
	"gateway":      "Gateway",
	"dns":          "DNS",
	"mode":         "Mode",
	"ssid":         "SSID",
	"encryption":   "Encryption",
	"key":          "Key",
	"channel":      "Channel",
	"hidden":       "Hidden",
	"hwmode":       "Radio",
}

func fieldLabel(name string) string {
	if l, ok := fieldLabels[name]; ok {
		return l
	}
	return name
}

func isSecret(name string) bool {
	switch name {
	case "apn_password", "pin", "puk", "key":
		return true
	}
	return false
}

// statusMsg puts a line in the footer.
type statusMsg struct {
	text string
}

func statusCmd(err error) tea.Cmd {
	if err == nil {
		return nil
	}
	text := err.Error()
	var apiErr *brckapi.Error
	if errors.As(err, &apiErr) {
		text = brckapi.GetShortErrorMessage(err)
	}
	return func() tea.Msg { return statusMsg{text: text} }
}
