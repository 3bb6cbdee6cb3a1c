package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// fieldDef describes one input of a form.
type fieldDef struct {
	name   string
	label  string
	value  string
	secret bool
}

type formField struct {
	name  string
	label string
	input textinput.Model
}

// form is a vertical list of text inputs with one focused at a time.
type form struct {
	fields []formField
	focus  int
}

func newForm(defs ...fieldDef) form {
	f := form{}
	for _, d := range defs {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 128
		in.Width = 32
		in.SetValue(d.value)
		if d.secret {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		f.fields = append(f.fields, formField{name: d.name, label: d.label, input: in})
	}
	if len(f.fields) > 0 {
		f.fields[0].input.Focus()
	}
	return f
}

func (f form) empty() bool { return len(f.fields) == 0 }

func (f *form) move(delta int) {
	if f.empty() {
		return
	}
	f.fields[f.focus].input.Blur()
	f.focus = (f.focus + delta + len(f.fields)) % len(f.fields)
	f.fields[f.focus].input.Focus()
}

// update feeds msg to the focused input. It returns the field name when the
// value changed.
func (f *form) update(msg tea.Msg) (string, tea.Cmd) {
	if f.empty() {
		return "", nil
	}
	field := &f.fields[f.focus]
	before := field.input.Value()
	var cmd tea.Cmd
	field.input, cmd = field.input.Update(msg)
	if field.input.Value() != before {
		return field.name, cmd
	}
	return "", cmd
}

func (f form) value(name string) string {
	for _, fld := range f.fields {
		if fld.name == name {
			return fld.input.Value()
		}
	}
	return ""
}

func (f form) view(errs map[string]string) string {
	var b strings.Builder
	for i, fld := range f.fields {
		marker := "  "
		if i == f.focus {
			marker = "› "
		}
		b.WriteString(marker + LabelStyle.Render(fld.label) + fld.input.View())
		if msg := errs[fld.name]; msg != "" {
			b.WriteString("  " + FieldErrorStyle.Render(msg))
		}
		b.WriteString("\n")
	}
	return b.String()
}
