package brckapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Credentials is the /auth request body.
type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// PasswordChange is the /auth/password request body.
type PasswordChange struct {
	CurrentPassword      string `json:"current_password"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// Ping checks that the appliance API answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, call{method: http.MethodGet, path: "/ping", timeout: c.ReadTimeout})
}

// Authenticate exchanges credentials for a token. It does not touch the
// session store; the auth gate decides what to keep.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (*AuthResult, error) {
	var res AuthResult
	err := c.do(ctx, call{
		method:  http.MethodPost,
		path:    "/auth",
		body:    creds,
		out:     &res,
		timeout: c.ReadTimeout,
	})
	if err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, NewParseError("authentication reply carried no token", nil)
	}
	return &res, nil
}

// ChangePassword replaces the login password.
func (c *Client) ChangePassword(ctx context.Context, change PasswordChange) error {
	return c.Do(ctx, http.MethodPatch, "/auth/password", change, nil)
}

// DeviceMode reports whether the appliance is in retail mode.
func (c *Client) DeviceMode(ctx context.Context) (*DeviceMode, error) {
	var m DeviceMode
	if err := c.do(ctx, call{method: http.MethodGet, path: "/device-mode", out: &m, timeout: c.ReadTimeout}); err != nil {
		return nil, err
	}
	return &m, nil
}

// System returns battery, storage and uplink status.
func (c *Client) System(ctx context.Context) (*SystemStatus, error) {
	var s SystemStatus
	if err := c.Do(ctx, http.MethodGet, "/system", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Software returns OS, firmware and package versions.
func (c *Client) Software(ctx context.Context) (*SoftwareState, error) {
	var s SoftwareState
	if err := c.Do(ctx, http.MethodGet, "/system/software", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Diagnostics returns temperatures and wireless clients.
func (c *Client) Diagnostics(ctx context.Context) (*Diagnostics, error) {
	var d Diagnostics
	if err := c.Do(ctx, http.MethodGet, "/system/diagnostics", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Power returns the SOC power configuration.
func (c *Client) Power(ctx context.Context) (*PowerConfig, error) {
	var p PowerConfig
	if err := c.Do(ctx, http.MethodGet, "/power", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ConfigurePower applies a power payload built by the caller. Only the keys
// present in fields are sent.
func (c *Client) ConfigurePower(ctx context.Context, fields map[string]any) error {
	return c.Do(ctx, http.MethodPatch, "/power", map[string]any{"power": fields}, nil)
}

// Storage returns disk usage and the FTP account state.
func (c *Client) Storage(ctx context.Context) (*StorageState, error) {
	var s StorageState
	if err := c.Do(ctx, http.MethodGet, "/ftp", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ConfigureFTP sets the FTP login and password.
func (c *Client) ConfigureFTP(ctx context.Context, creds Credentials) error {
	return c.Do(ctx, http.MethodPost, "/ftp", creds, nil)
}

// Connections lists the slots of one interface family.
func (c *Client) Connections(ctx context.Context, kind Interface) ([]Slot, error) {
	path := fmt.Sprintf("/networks/%s/", kind)
	raw, err := c.DoRaw(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	slots, err := DecodeSlots(kind, raw)
	if err != nil {
		return nil, NewParseError(fmt.Sprintf("unexpected %s slot list", kind), err)
	}
	return slots, nil
}

// ConfigureConnection patches one slot. The reply may be the updated slot or
// the whole family list; both decode to a slice. An empty reply yields nil.
func (c *Client) ConfigureConnection(ctx context.Context, kind Interface, id string, configuration map[string]any) ([]Slot, error) {
	if configuration == nil {
		configuration = map[string]any{}
	}
	path := fmt.Sprintf("/networks/%s/%s", kind, url.PathEscape(id))
	raw, err := c.DoRaw(ctx, http.MethodPatch, path, map[string]any{"configuration": configuration})
	if err != nil {
		return nil, err
	}
	if !isSlotPayload(raw) {
		return nil, nil
	}
	slots, err := DecodeSlots(kind, raw)
	if err != nil {
		return nil, NewParseError(fmt.Sprintf("unexpected %s configuration reply", kind), err)
	}
	return slots, nil
}

// isSlotPayload tells a slot reply from a bare acknowledgement such as "OK".
func isSlotPayload(raw []byte) bool {
	var probe any
	if json.Unmarshal(raw, &probe) != nil {
		return false
	}
	switch v := probe.(type) {
	case []any:
		return true
	case map[string]any:
		_, ok := v["id"]
		return ok
	}
	return false
}
