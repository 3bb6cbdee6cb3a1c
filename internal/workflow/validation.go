package workflow

import (
	"fmt"
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/brck/brckctl/internal/brckapi"
)

// FieldError is a validation failure on one form field. Messages use the
// same wording as the appliance's 422 bodies.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func required(field string) *FieldError {
	return &FieldError{Field: field, Message: field + " required"}
}

func oneOf(field string, options []string) *FieldError {
	return &FieldError{Field: field, Message: "must be one of " + strings.Join(options, ",")}
}

func invalidFormat(field string) *FieldError {
	return &FieldError{Field: field, Message: "invalid format"}
}

var (
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
	clockPattern  = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	hostPattern   = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9.-]*[A-Za-z0-9])?$`)
)

// ValidateIPv4 checks a dotted-quad IPv4 address.
func ValidateIPv4(field, value string) error {
	ip := net.ParseIP(value)
	if ip == nil || ip.To4() == nil || strings.Count(value, ".") != 3 {
		return invalidFormat(field)
	}
	return nil
}

// ValidateDNSList checks a comma separated list of resolver hosts or IPs.
func ValidateDNSList(field, value string) error {
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return invalidFormat(field)
		}
		if net.ParseIP(part) == nil && !hostPattern.MatchString(part) {
			return invalidFormat(field)
		}
	}
	return nil
}

// ValidateWiFiChannel accepts "auto" or 1-196.
func ValidateWiFiChannel(value string) error {
	if value == brckapi.WiFiChannelAuto {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 || n > brckapi.WiFiMaxChannel {
		return invalidFormat("channel")
	}
	return nil
}

// ValidateWiFi checks a Wi-Fi configuration. Optional fields are only checked
// when present in values.
func ValidateWiFi(values map[string]string) []error {
	var errs []error

	mode := values["mode"]
	switch {
	case mode == "":
		errs = append(errs, required("mode"))
	case !brckapi.Contains(brckapi.WiFiModes, mode):
		errs = append(errs, oneOf("mode", brckapi.WiFiModes))
	}

	ssid := values["ssid"]
	switch {
	case ssid == "":
		errs = append(errs, required("ssid"))
	case len(ssid) > brckapi.WiFiMaxSSIDLength:
		errs = append(errs, &FieldError{Field: "ssid", Message: fmt.Sprintf("must be at most %d bytes", brckapi.WiFiMaxSSIDLength)})
	}

	enc := values["encryption"]
	if enc == "" {
		enc = brckapi.WiFiEncryptionNone
	}
	if !brckapi.Contains(brckapi.WiFiEncryptions, enc) {
		errs = append(errs, oneOf("encryption", brckapi.WiFiEncryptions))
	} else if key, ok := values["key"]; enc != brckapi.WiFiEncryptionNone {
		switch {
		case !ok || key == "":
			errs = append(errs, required("key"))
		case (enc == "psk" || enc == "psk2") && (len(key) < brckapi.WiFiMinPSKLength || len(key) > brckapi.WiFiMaxPSKLength):
			errs = append(errs, &FieldError{Field: "key", Message: fmt.Sprintf("must be between %d and %d characters", brckapi.WiFiMinPSKLength, brckapi.WiFiMaxPSKLength)})
		}
	}

	if ch, ok := values["channel"]; ok && ch != "" {
		if err := ValidateWiFiChannel(ch); err != nil {
			errs = append(errs, err)
		}
	}
	hidden := []string{brckapi.WiFiHiddenFalse, brckapi.WiFiHiddenTrue}
	if h, ok := values["hidden"]; ok && h != "" && !brckapi.Contains(hidden, h) {
		errs = append(errs, oneOf("hidden", hidden))
	}
	if hw, ok := values["hwmode"]; ok && hw != "" && !brckapi.Contains(brckapi.WiFiHWModes, hw) {
		errs = append(errs, oneOf("hwmode", brckapi.WiFiHWModes))
	}

	return errs
}

// ValidateEthernet checks an Ethernet configuration. Addresses are only
// required when DHCP is off.
func ValidateEthernet(values map[string]string) []error {
	var errs []error

	dhcp, err := strconv.ParseBool(values["dhcp_enabled"])
	if err != nil {
		return append(errs, oneOf("dhcp_enabled", []string{"true", "false"}))
	}
	if dhcp {
		return nil
	}

	for _, field := range []string{"ipaddr", "netmask"} {
		if values[field] == "" {
			errs = append(errs, required(field))
		} else if err := ValidateIPv4(field, values[field]); err != nil {
			errs = append(errs, err)
		}
	}
	if gw := values["gateway"]; gw != "" {
		if err := ValidateIPv4("gateway", gw); err != nil {
			errs = append(errs, err)
		}
	}
	if dns := values["dns"]; dns != "" {
		if err := ValidateDNSList("dns", dns); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// ValidateAPN checks the APN form. edited lists the fields the user touched.
func ValidateAPN(values map[string]string, edited map[string]bool) []error {
	if (edited["apn"] || edited["apn_user"] || edited["apn_password"]) && values["apn"] == "" {
		return []error{required("apn")}
	}
	return nil
}

// ValidateUnlock checks the PIN/PUK pair. At least one must be supplied.
func ValidateUnlock(pin, puk string) []error {
	var errs []error
	if pin == "" && puk == "" {
		return []error{required("pin")}
	}
	if pin != "" && (!digitsPattern.MatchString(pin) || len(pin) < 4 || len(pin) > 8) {
		errs = append(errs, &FieldError{Field: "pin", Message: "must be 4 to 8 digits"})
	}
	if puk != "" && (!digitsPattern.MatchString(puk) || len(puk) != 8) {
		errs = append(errs, &FieldError{Field: "puk", Message: "must be 8 digits"})
	}
	return errs
}

// ValidatePower checks a power configuration. Empty fields are left unchanged
// on the appliance and are not checked.
func ValidatePower(values map[string]string) []error {
	var errs []error

	if mode := values["mode"]; mode != "" && !brckapi.Contains(brckapi.PowerModes, mode) {
		errs = append(errs, oneOf("mode", brckapi.PowerModes))
	}

	socs := map[string]int{}
	for _, field := range []string{"soc_on", "soc_off"} {
		v := values[field]
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			errs = append(errs, &FieldError{Field: field, Message: "must be between 0 and 100"})
			continue
		}
		socs[field] = n
	}
	on, okOn := socs["soc_on"]
	off, okOff := socs["soc_off"]
	if okOn && okOff && off >= on {
		errs = append(errs, &FieldError{Field: "soc_off", Message: "must be less than soc_on"})
	}

	for _, field := range []string{"on_time", "off_time"} {
		if v := values[field]; v != "" && !clockPattern.MatchString(v) {
			errs = append(errs, invalidFormat(field))
		}
	}

	if v := values["delay_off_minutes"]; v != "" {
		if n, err := strconv.Atoi(v); err != nil || n < 0 {
			errs = append(errs, &FieldError{Field: "delay_off_minutes", Message: "must be 0 or more"})
		}
	}
	return errs
}

// ValidatePasswordChange checks the change-password form.
func ValidatePasswordChange(current, password, confirmation string) []error {
	var errs []error
	if current == "" {
		errs = append(errs, required("current_password"))
	}
	if password == "" {
		errs = append(errs, required("password"))
	}
	if confirmation == "" {
		errs = append(errs, required("password_confirmation"))
	}
	if len(errs) == 0 && password != confirmation {
		errs = append(errs,
			&FieldError{Field: "password", Message: "must be the same as: password_confirmation"},
			&FieldError{Field: "password_confirmation", Message: "must be the same as: password"})
	}
	return errs
}

// ValidateFTP checks the FTP credential form.
func ValidateFTP(login, password string) []error {
	var errs []error
	if login == "" {
		errs = append(errs, required("login"))
	}
	if password == "" {
		errs = append(errs, required("password"))
	}
	return errs
}

// FieldMap folds validation errors into the field->message shape of a 422
// body. Errors that are not tied to a field land under "form".
func FieldMap(errs []error) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	out := make(map[string]string, len(errs))
	for _, err := range errs {
		if fe, ok := err.(*FieldError); ok {
			if _, dup := out[fe.Field]; !dup {
				out[fe.Field] = fe.Message
			}
			continue
		}
		out["form"] = err.Error()
	}
	return out
}

// ValidationError wraps local validation failures as a gateway-style
// validation error, or returns nil when errs is empty.
func ValidationError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return brckapi.NewValidationError("Validation failed", FieldMap(errs))
}

// FormatValidationErrors formats validation errors for terminal output.
func FormatValidationErrors(errs []error) string {
	if len(errs) == 0 {
		return "No validation errors"
	}

	lines := make([]string, 0, len(errs))
	for _, err := range errs {
		lines = append(lines, err.Error())
	}
	sort.Strings(lines)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Validation failed with %d error(s):\n", len(errs)))
	for i, line := range lines {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, line))
	}
	return sb.String()
}
