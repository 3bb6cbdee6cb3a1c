package brckapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"syscall"
)

// ErrorKind is the category of a failed appliance call.
type ErrorKind int

const (
	// KindUnknown is an error the client could not classify.
	KindUnknown ErrorKind = iota
	// KindSession means the appliance rejected the token (HTTP 401).
	KindSession
	// KindUnreachable means no usable response arrived (refused, timeout, DNS).
	KindUnreachable
	// KindValidation means the appliance rejected the payload (HTTP 422).
	KindValidation
	// KindOperational covers any other non-2xx response and failed
	// operations the appliance reported as successful requests.
	KindOperational
	// KindParse means a 2xx body could not be decoded.
	KindParse
)

// NetworkErrorSubtype refines KindUnreachable.
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindSession:
		return "Session Error"
	case KindUnreachable:
		return "Appliance Unreachable"
	case KindValidation:
		return "Validation Error"
	case KindOperational:
		return "Operation Failed"
	case KindParse:
		return "Parse Error"
	case KindUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is returned by every Client call that fails.
type Error struct {
	Kind       ErrorKind
	Message    string            // Server message or a client summary
	StatusCode int               // HTTP status, 0 for transport failures
	Fields     map[string]string // Per-field messages from a 422 body or local validation
	Details    []string          // List-shaped "errors" from the body
	Method     string
	Path       string

	NetworkSubtype NetworkErrorSubtype
	Err            error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		msg = fmt.Sprintf("%s (%s)", msg, e.FieldSummary())
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// FieldSummary renders Fields as "key: message" pairs in key order.
func (e *Error) FieldSummary() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return strings.Join(parts, ", ")
}

// ClassifyNetworkError turns a transport failure into a KindUnreachable error.
// Context cancellation is not classified and yields nil.
func ClassifyNetworkError(err error) *Error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}

	e := &Error{
		Kind:           KindUnreachable,
		Message:        "Network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
	}

	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		e.Message = "Request timed out"
		e.NetworkSubtype = NetworkErrorTimeout
		return e
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		e.Message = fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name)
		e.NetworkSubtype = NetworkErrorDNS
		return e
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			e.Message = "Appliance refused connection"
			e.NetworkSubtype = NetworkErrorConnectionRefused
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			e.Message = "Host unreachable"
			e.NetworkSubtype = NetworkErrorHostUnreachable
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			e.Message = "Network unreachable"
			e.NetworkSubtype = NetworkErrorNetworkUnreachable
		}
		return e
	}

	return e
}

// errorBody is the {message, errors} envelope the appliance uses for failures.
type errorBody struct {
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
}

// newStatusError builds an Error from a non-2xx response.
func newStatusError(status int, body []byte) *Error {
	e := &Error{StatusCode: status}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindSession
	case status == http.StatusUnprocessableEntity:
		e.Kind = KindValidation
	default:
		e.Kind = KindOperational
	}

	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		e.Message = eb.Message
		e.Fields, e.Details = decodeErrorList(eb.Errors)
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
		if e.Message == "" {
			e.Message = fmt.Sprintf("HTTP %d", status)
		}
	}
	return e
}

// decodeErrorList accepts the "errors" member as a field map or a list.
// Non-string values are stringified.
func decodeErrorList(raw json.RawMessage) (map[string]string, []string) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var m map[string]any
	if json.Unmarshal(raw, &m) == nil {
		if len(m) == 0 {
			return nil, nil
		}
		fields := make(map[string]string, len(m))
		for k, v := range m {
			fields[k] = stringify(v)
		}
		return fields, nil
	}

	var list []any
	if json.Unmarshal(raw, &list) == nil {
		details := make([]string, 0, len(list))
		for _, v := range list {
			details = append(details, stringify(v))
		}
		return nil, details
	}

	var s string
	if json.Unmarshal(raw, &s) == nil && s != "" {
		return nil, []string{s}
	}
	return nil, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, stringify(p))
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(t)
	}
}

// NewValidationError creates a validation error from per-field messages,
// shaped like a 422 reply so callers handle both the same way.
func NewValidationError(message string, fields map[string]string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: message,
		Fields:  fields,
	}
}

// NewOperationalError creates an operational error
func NewOperationalError(message string) *Error {
	return &Error{
		Kind:    KindOperational,
		Message: message,
	}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *Error {
	return &Error{
		Kind:    KindParse,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsSession checks if an error is a session (401) error
func IsSession(err error) bool { return KindOf(err) == KindSession }

// IsUnreachable checks if an error is a transport failure
func IsUnreachable(err error) bool { return KindOf(err) == KindUnreachable }

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsOperational checks if an error is an operational error
func IsOperational(err error) bool { return KindOf(err) == KindOperational }

// IsParse checks if an error is a parse error
func IsParse(err error) bool { return KindOf(err) == KindParse }

// FieldErrors returns the per-field messages carried by err, if any.
func FieldErrors(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "An unexpected error occurred. Please try again."
	}

	switch e.Kind {
	case KindSession:
		return strings.Join([]string{
			"Your session has ended.",
			"Troubleshooting:",
			"  • Log in again with: brckctl login",
			"  • Sessions expire after an hour of inactivity",
		}, "\n")

	case KindUnreachable:
		hint := []string{"The SupaBRCK could not be reached."}

		switch e.NetworkSubtype {
		case NetworkErrorTimeout:
			hint = append(hint, "Troubleshooting:",
				"  • Check that the SupaBRCK is powered on",
				"  • Network reconfiguration can take up to a minute, try again shortly",
				"  • Try increasing the timeout with --timeout")
		case NetworkErrorDNS:
			hint = append(hint, "Troubleshooting:",
				"  • local.brck.com only resolves on the SupaBRCK network",
				"  • Use the appliance IP address with --url",
				"  • Find the appliance with: brckctl scan")
		case NetworkErrorConnectionRefused:
			hint = append(hint, "Troubleshooting:",
				"  • The API service may still be starting, wait and retry",
				"  • Verify the URL and port with --url")
		case NetworkErrorHostUnreachable, NetworkErrorNetworkUnreachable:
			hint = append(hint, "Troubleshooting:",
				"  • Connect to the SupaBRCK Wi-Fi or Ethernet network",
				"  • Check your network adapter settings")
		default:
			hint = append(hint, "Troubleshooting:",
				"  • Check your network connection",
				"  • Verify the SupaBRCK is powered on")
		}
		return strings.Join(hint, "\n")

	case KindValidation:
		return "The appliance rejected some values. Check the field messages for details."

	case KindOperational:
		if e.StatusCode >= 500 {
			return strings.Join([]string{
				fmt.Sprintf("The appliance returned an error (HTTP %d).", e.StatusCode),
				"Troubleshooting:",
				"  • Try again in a moment",
				"  • Reboot the SupaBRCK if the problem persists",
			}, "\n")
		}
		return "The operation did not complete. Check the message for details."

	case KindParse:
		return strings.Join([]string{
			"Failed to parse the appliance's response.",
			"This may indicate a firmware version this client does not support.",
		}, "\n")

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	switch e.Kind {
	case KindSession:
		return "Session expired - please log in again"
	case KindUnreachable:
		switch e.NetworkSubtype {
		case NetworkErrorTimeout:
			return "Appliance not responding (timeout)"
		case NetworkErrorConnectionRefused:
			return "Appliance refused connection"
		case NetworkErrorDNS:
			return "Cannot resolve appliance hostname"
		case NetworkErrorHostUnreachable:
			return "Appliance unreachable - check network connection"
		case NetworkErrorNetworkUnreachable:
			return "Network unreachable - check your connection"
		default:
			return "Network error - check connection"
		}
	case KindValidation:
		if len(e.Fields) > 0 {
			return fmt.Sprintf("%s: %s", e.Message, e.FieldSummary())
		}
		return e.Message
	case KindOperational:
		if e.StatusCode > 0 && e.Message == http.StatusText(e.StatusCode) {
			return fmt.Sprintf("Appliance error (HTTP %d)", e.StatusCode)
		}
		return e.Message
	case KindParse:
		return "Failed to parse appliance response"
	default:
		return e.Message
	}
}
