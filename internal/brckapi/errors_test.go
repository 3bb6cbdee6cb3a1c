package brckapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
	"testing"
)

type timeoutError struct{}

func (e *timeoutError) Error() string   { return "timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

func TestClassifyNetworkError(t *testing.T) {
	wrap := func(inner error) error {
		return &url.Error{Op: "Get", URL: "http://local.brck.com/api/v1/ping", Err: inner}
	}

	tests := []struct {
		name    string
		err     error
		subtype NetworkErrorSubtype
	}{
		{"timeout", wrap(&net.OpError{Op: "dial", Net: "tcp", Err: &timeoutError{}}), NetworkErrorTimeout},
		{"deadline", fmt.Errorf("read: %w", context.DeadlineExceeded), NetworkErrorTimeout},
		{"refused", wrap(&net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}), NetworkErrorConnectionRefused},
		{"dns", wrap(&net.DNSError{Err: "no such host", Name: "local.brck.com"}), NetworkErrorDNS},
		{"host unreachable", wrap(&net.OpError{Op: "dial", Net: "tcp", Err: syscall.EHOSTUNREACH}), NetworkErrorHostUnreachable},
		{"net unreachable", wrap(&net.OpError{Op: "dial", Net: "tcp", Err: syscall.ENETUNREACH}), NetworkErrorNetworkUnreachable},
		{"general", errors.New("connection reset"), NetworkErrorGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyNetworkError(tt.err)
			if got == nil {
				t.Fatal("ClassifyNetworkError() = nil")
			}
			if got.Kind != KindUnreachable {
				t.Errorf("Kind = %v, want %v", got.Kind, KindUnreachable)
			}
			if got.NetworkSubtype != tt.subtype {
				t.Errorf("NetworkSubtype = %v, want %v", got.NetworkSubtype, tt.subtype)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error should wrap the original")
			}
		})
	}
}

func TestClassifyNetworkErrorIgnoresCancel(t *testing.T) {
	if got := ClassifyNetworkError(context.Canceled); got != nil {
		t.Errorf("ClassifyNetworkError(Canceled) = %v, want nil", got)
	}
	if got := ClassifyNetworkError(nil); got != nil {
		t.Errorf("ClassifyNetworkError(nil) = %v, want nil", got)
	}
}

func TestNewStatusError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantKind    ErrorKind
		wantMessage string
		wantFields  map[string]string
		wantDetails []string
	}{
		{
			name:        "unauthorized",
			status:      401,
			body:        `{"message":"Unauthorized","errors":["Unauthorized access."]}`,
			wantKind:    KindSession,
			wantMessage: "Unauthorized",
			wantDetails: []string{"Unauthorized access."},
		},
		{
			name:        "field map",
			status:      422,
			body:        `{"message":"Invalid","errors":{"ssid":"ssid required","mode":"must be one of ap,sta"}}`,
			wantKind:    KindValidation,
			wantMessage: "Invalid",
			wantFields:  map[string]string{"ssid": "ssid required", "mode": "must be one of ap,sta"},
		},
		{
			name:        "bare field map",
			status:      422,
			body:        `{"errors":{"login":"Failed to set up user"}}`,
			wantKind:    KindValidation,
			wantMessage: "Unprocessable Entity",
			wantFields:  map[string]string{"login": "Failed to set up user"},
		},
		{
			name:        "server error without body",
			status:      500,
			body:        ``,
			wantKind:    KindOperational,
			wantMessage: "Internal Server Error",
		},
		{
			name:        "not found with list",
			status:      404,
			body:        `{"message":"Error","errors":[{"network":"not found"}]}`,
			wantKind:    KindOperational,
			wantMessage: "Error",
			wantDetails: []string{"map[network:not found]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newStatusError(tt.status, []byte(tt.body))
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMessage)
			}
			if len(got.Fields) != len(tt.wantFields) {
				t.Fatalf("Fields = %v, want %v", got.Fields, tt.wantFields)
			}
			for k, v := range tt.wantFields {
				if got.Fields[k] != v {
					t.Errorf("Fields[%s] = %q, want %q", k, got.Fields[k], v)
				}
			}
			if strings.Join(got.Details, "|") != strings.Join(tt.wantDetails, "|") {
				t.Errorf("Details = %v, want %v", got.Details, tt.wantDetails)
			}
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	verr := NewValidationError("Invalid", map[string]string{"apn": "apn required"})
	wrapped := fmt.Errorf("configure SIM1: %w", verr)

	if !IsValidation(wrapped) {
		t.Error("IsValidation() should see through wrapping")
	}
	if IsOperational(wrapped) || IsSession(wrapped) || IsUnreachable(wrapped) || IsParse(wrapped) {
		t.Error("validation error matched another kind")
	}
	if FieldErrors(wrapped)["apn"] != "apn required" {
		t.Errorf("FieldErrors() = %v", FieldErrors(wrapped))
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain errors should be KindUnknown")
	}
	if !strings.Contains(verr.Error(), "apn: apn required") {
		t.Errorf("Error() = %q, should list fields", verr.Error())
	}
}

func TestGetShortErrorMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&Error{Kind: KindSession}, "Session expired - please log in again"},
		{&Error{Kind: KindUnreachable, NetworkSubtype: NetworkErrorTimeout}, "Appliance not responding (timeout)"},
		{&Error{Kind: KindUnreachable, NetworkSubtype: NetworkErrorDNS}, "Cannot resolve appliance hostname"},
		{&Error{Kind: KindOperational, StatusCode: 500, Message: "Internal Server Error"}, "Appliance error (HTTP 500)"},
		{NewOperationalError("could not connect using SIM 1"), "could not connect using SIM 1"},
		{NewValidationError("Invalid", map[string]string{"ssid": "ssid required"}), "Invalid: ssid: ssid required"},
		{errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		if got := GetShortErrorMessage(tt.err); got != tt.want {
			t.Errorf("GetShortErrorMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestGetTroubleshootingHint(t *testing.T) {
	hint := GetTroubleshootingHint(&Error{Kind: KindUnreachable, NetworkSubtype: NetworkErrorDNS})
	if !strings.Contains(hint, "brckctl scan") {
		t.Errorf("DNS hint should suggest scan, got %q", hint)
	}

	hint = GetTroubleshootingHint(&Error{Kind: KindSession})
	if !strings.Contains(hint, "brckctl login") {
		t.Errorf("session hint should suggest login, got %q", hint)
	}

	if GetTroubleshootingHint(errors.New("x")) == "" {
		t.Error("hint for unknown errors should not be empty")
	}
}
