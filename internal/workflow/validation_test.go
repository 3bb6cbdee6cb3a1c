package workflow

import (
	"strings"
	"testing"

	"github.com/brck/brckctl/internal/brckapi"
)

func TestValidateWiFi(t *testing.T) {
	base := func() map[string]string {
		return map[string]string{"mode": "sta", "ssid": "home", "encryption": "psk2", "key": "password1"}
	}

	tests := []struct {
		name      string
		edit      func(map[string]string)
		wantField string
	}{
		{"valid", func(map[string]string) {}, ""},
		{"open network needs no key", func(v map[string]string) { v["encryption"] = "none"; delete(v, "key") }, ""},
		{"missing mode", func(v map[string]string) { v["mode"] = "" }, "mode"},
		{"bad mode", func(v map[string]string) { v["mode"] = "mesh" }, "mode"},
		{"missing ssid", func(v map[string]string) { v["ssid"] = "" }, "ssid"},
		{"ssid too long", func(v map[string]string) { v["ssid"] = strings.Repeat("x", 33) }, "ssid"},
		{"bad encryption", func(v map[string]string) { v["encryption"] = "wpa3" }, "encryption"},
		{"psk key too short", func(v map[string]string) { v["key"] = "1234567" }, "key"},
		{"psk key too long", func(v map[string]string) { v["key"] = strings.Repeat("k", 64) }, "key"},
		{"wep key any length", func(v map[string]string) { v["encryption"] = "wep"; v["key"] = "abc" }, ""},
		{"channel auto", func(v map[string]string) { v["channel"] = "auto" }, ""},
		{"channel 196", func(v map[string]string) { v["channel"] = "196" }, ""},
		{"channel 0", func(v map[string]string) { v["channel"] = "0" }, "channel"},
		{"channel text", func(v map[string]string) { v["channel"] = "six" }, "channel"},
		{"hidden 2", func(v map[string]string) { v["hidden"] = "2" }, "hidden"},
		{"hwmode 11n", func(v map[string]string) { v["hwmode"] = "11n" }, "hwmode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := base()
			tt.edit(v)
			got := FieldMap(ValidateWiFi(v))
			if tt.wantField == "" {
				if len(got) != 0 {
					t.Errorf("ValidateWiFi() = %v, want no errors", got)
				}
				return
			}
			if got[tt.wantField] == "" {
				t.Errorf("ValidateWiFi() = %v, want an error on %s", got, tt.wantField)
			}
		})
	}
}

func TestValidateEthernet(t *testing.T) {
	tests := []struct {
		name      string
		values    map[string]string
		wantField string
	}{
		{"dhcp", map[string]string{"dhcp_enabled": "true"}, ""},
		{"static", map[string]string{"dhcp_enabled": "false", "ipaddr": "10.0.0.2", "netmask": "255.0.0.0", "gateway": "10.0.0.1", "dns": "1.1.1.1,8.8.8.8"}, ""},
		{"bad dhcp flag", map[string]string{"dhcp_enabled": "maybe"}, "dhcp_enabled"},
		{"ipv6 address", map[string]string{"dhcp_enabled": "false", "ipaddr": "fe80::1", "netmask": "255.0.0.0"}, "ipaddr"},
		{"short address", map[string]string{"dhcp_enabled": "false", "ipaddr": "10.0.2", "netmask": "255.0.0.0"}, "ipaddr"},
		{"bad gateway", map[string]string{"dhcp_enabled": "false", "ipaddr": "10.0.0.2", "netmask": "255.0.0.0", "gateway": "router"}, "gateway"},
		{"empty dns entry", map[string]string{"dhcp_enabled": "false", "ipaddr": "10.0.0.2", "netmask": "255.0.0.0", "dns": "1.1.1.1,,"}, "dns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FieldMap(ValidateEthernet(tt.values))
			if tt.wantField == "" && len(got) != 0 {
				t.Errorf("ValidateEthernet() = %v, want no errors", got)
			}
			if tt.wantField != "" && got[tt.wantField] == "" {
				t.Errorf("ValidateEthernet() = %v, want an error on %s", got, tt.wantField)
			}
		})
	}
}

func TestValidateUnlock(t *testing.T) {
	tests := []struct {
		pin, puk string
		wantErr  bool
	}{
		{"1234", "", false},
		{"12345678", "", false},
		{"", "12345678", false},
		{"123", "", true},
		{"123456789", "", true},
		{"12a4", "", true},
		{"", "1234567", true},
		{"", "", true},
	}

	for _, tt := range tests {
		errs := ValidateUnlock(tt.pin, tt.puk)
		if (len(errs) > 0) != tt.wantErr {
			t.Errorf("ValidateUnlock(%q, %q) = %v, wantErr %v", tt.pin, tt.puk, errs, tt.wantErr)
		}
	}
}

func TestValidateAPN(t *testing.T) {
	if errs := ValidateAPN(map[string]string{"apn": ""}, nil); len(errs) != 0 {
		t.Errorf("untouched form errors = %v, want none", errs)
	}
	errs := ValidateAPN(map[string]string{"apn": "", "apn_user": "bob"}, map[string]bool{"apn_user": true})
	if FieldMap(errs)["apn"] != "apn required" {
		t.Errorf("errors = %v, want apn required", errs)
	}
}

func TestValidatePower(t *testing.T) {
	tests := []struct {
		name      string
		values    map[string]string
		wantField string
	}{
		{"empty leaves everything", map[string]string{}, ""},
		{"timed", map[string]string{"mode": brckapi.PowerModeTimed, "on_time": "06:00", "off_time": "23:59"}, ""},
		{"bad mode", map[string]string{"mode": "TURBO"}, "mode"},
		{"soc over 100", map[string]string{"soc_on": "101"}, "soc_on"},
		{"soc order", map[string]string{"soc_on": "20", "soc_off": "20"}, "soc_off"},
		{"bad clock", map[string]string{"on_time": "24:00"}, "on_time"},
		{"negative delay", map[string]string{"delay_off_minutes": "-1"}, "delay_off_minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FieldMap(ValidatePower(tt.values))
			if tt.wantField == "" && len(got) != 0 {
				t.Errorf("ValidatePower() = %v, want no errors", got)
			}
			if tt.wantField != "" && got[tt.wantField] == "" {
				t.Errorf("ValidatePower() = %v, want an error on %s", got, tt.wantField)
			}
		})
	}
}

func TestValidatePasswordChange(t *testing.T) {
	if errs := ValidatePasswordChange("old", "new-pass", "new-pass"); len(errs) != 0 {
		t.Errorf("matching passwords errors = %v, want none", errs)
	}
	got := FieldMap(ValidatePasswordChange("old", "new-pass", "other"))
	if got["password_confirmation"] != "must be the same as: password" {
		t.Errorf("mismatch errors = %v", got)
	}
	if got := FieldMap(ValidatePasswordChange("", "", "")); len(got) != 3 {
		t.Errorf("empty form errors = %v, want 3", got)
	}
}

func TestValidateFTP(t *testing.T) {
	got := FieldMap(ValidateFTP("", ""))
	if got["login"] != "login required" || got["password"] != "password required" {
		t.Errorf("ValidateFTP() = %v", got)
	}
}

func TestFormatValidationErrors(t *testing.T) {
	if got := FormatValidationErrors(nil); got != "No validation errors" {
		t.Errorf("FormatValidationErrors(nil) = %q", got)
	}
	got := FormatValidationErrors(ValidateFTP("", ""))
	if !strings.Contains(got, "2 error(s)") || !strings.Contains(got, "login: login required") {
		t.Errorf("FormatValidationErrors() = %q", got)
	}
}

func TestValidationErrorIsGatewayShaped(t *testing.T) {
	if ValidationError(nil) != nil {
		t.Error("ValidationError(nil) != nil")
	}
	err := ValidationError(ValidateFTP("", "x"))
	if !brckapi.IsValidation(err) {
		t.Fatalf("ValidationError() = %v, want a validation error", err)
	}
	if brckapi.FieldErrors(err)["login"] != "login required" {
		t.Errorf("FieldErrors() = %v", brckapi.FieldErrors(err))
	}
}
