package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/brck/brckctl/internal/auth"
)

// authDoneMsg reports the end of a login or password change.
type authDoneMsg struct {
	err error
}

// authModel is the login or change-password form.
type authModel struct {
	changePassword bool
	form           form
	keys           formKeyMap
}

func newLoginModel(defaultLogin string) authModel {
	m := authModel{
		form: newForm(
			fieldDef{name: "login", label: "Login", value: defaultLogin},
			fieldDef{name: "password", label: "Password", secret: true},
		),
		keys: newFormKeys(),
	}
	if defaultLogin != "" {
		m.form.move(1)
	}
	return m
}

func newPasswordModel() authModel {
	return authModel{
		changePassword: true,
		form: newForm(
			fieldDef{name: "current_password", label: "Current", secret: true},
			fieldDef{name: "password", label: "New password", secret: true},
			fieldDef{name: "password_confirmation", label: "Confirm", secret: true},
		),
		keys: newFormKeys(),
	}
}

func (m authModel) update(ctx context.Context, gate *auth.Gate, msg tea.KeyMsg) (authModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Next):
		m.form.move(1)
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		m.form.move(-1)
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		if gate.Working() {
			return m, nil
		}
		if m.form.focus < len(m.form.fields)-1 {
			m.form.move(1)
			return m, nil
		}
		return m, m.submit(ctx, gate)
	}
	_, cmd := m.form.update(msg)
	return m, cmd
}

func (m authModel) submit(ctx context.Context, gate *auth.Gate) tea.Cmd {
	f := m.form
	if m.changePassword {
		return func() tea.Msg {
			return authDoneMsg{err: gate.ChangePassword(ctx,
				f.value("current_password"), f.value("password"), f.value("password_confirmation"))}
		}
	}
	return func() tea.Msg {
		return authDoneMsg{err: gate.Login(ctx, f.value("login"), f.value("password"))}
	}
}

func (m authModel) view(gate *auth.Gate, spinner string) string {
	var b strings.Builder
	if m.changePassword {
		b.WriteString(RenderTitle("Change password"))
		b.WriteString("\n")
		if gate.RequiresPasswordChange() {
			b.WriteString(WarnStyle.Render("The appliance still uses its factory password. Set a new one to continue."))
			b.WriteString("\n\n")
		}
	} else {
		b.WriteString(RenderTitle("Log in to your SupaBRCK"))
		b.WriteString("\n")
	}

	var fieldErrs map[string]string
	if ae := gate.LastError(); ae != nil {
		fieldErrs = ae.Fields
	}
	b.WriteString(m.form.view(fieldErrs))
	b.WriteString("\n")

	switch {
	case gate.Working():
		b.WriteString(spinner + " Working...")
	case gate.LastError() != nil:
		b.WriteString(ErrorBoxStyle.Render(gate.LastError().Message))
	}
	return b.String()
}
