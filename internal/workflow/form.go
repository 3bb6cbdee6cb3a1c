package workflow

import (
	"strconv"
	"strings"

	"github.com/brck/brckctl/internal/brckapi"
)

// Policy decides whether a form field ends up in a configuration payload.
type Policy int

const (
	// Always sends the seeded or edited value.
	Always Policy = iota
	// OmitUnlessEdited sends the field only if the user touched it. An edited
	// empty value is sent as "" and clears the setting.
	OmitUnlessEdited
	// OmitWhenEmpty sends the field only when it has a value.
	OmitWhenEmpty
)

func (p Policy) String() string {
	switch p {
	case Always:
		return "always"
	case OmitUnlessEdited:
		return "omit-unless-edited"
	case OmitWhenEmpty:
		return "omit-when-empty"
	default:
		return "unknown"
	}
}

// Field is one form input.
type Field struct {
	Value  string
	Edited bool
}

// FieldSpec names a form field, its payload key and its policy.
type FieldSpec struct {
	Name   string
	Key    string
	Policy Policy
}

// include reports whether f is sent under the field's policy.
func (s FieldSpec) include(f Field) bool {
	switch s.Policy {
	case Always:
		return true
	case OmitUnlessEdited:
		return f.Edited
	case OmitWhenEmpty:
		return f.Value != ""
	}
	return false
}

// Form field tables. Field names are what the user types against with SetField.
var (
	APNFields = []FieldSpec{
		{Name: "apn", Key: "apn", Policy: OmitUnlessEdited},
		{Name: "apn_user", Key: "username", Policy: OmitUnlessEdited},
		{Name: "apn_password", Key: "password", Policy: OmitUnlessEdited},
	}

	UnlockFields = []FieldSpec{
		{Name: "pin", Key: "pin", Policy: OmitWhenEmpty},
		{Name: "puk", Key: "puk", Policy: OmitWhenEmpty},
	}

	EthernetFields = []FieldSpec{
		{Name: "dhcp_enabled", Key: "dhcp_enabled", Policy: Always},
		{Name: "ipaddr", Key: "ipaddr", Policy: Always},
		{Name: "netmask", Key: "netmask", Policy: Always},
		{Name: "gateway", Key: "gateway", Policy: OmitUnlessEdited},
		{Name: "dns", Key: "dns", Policy: OmitUnlessEdited},
	}

	WiFiFields = []FieldSpec{
		{Name: "mode", Key: "mode", Policy: Always},
		{Name: "ssid", Key: "ssid", Policy: Always},
		{Name: "encryption", Key: "encryption", Policy: Always},
		{Name: "key", Key: "key", Policy: OmitUnlessEdited},
		{Name: "channel", Key: "channel", Policy: OmitUnlessEdited},
		{Name: "hidden", Key: "hidden", Policy: OmitUnlessEdited},
		{Name: "hwmode", Key: "hwmode", Policy: OmitUnlessEdited},
	}

	PowerFields = []FieldSpec{
		{Name: "mode", Key: "mode", Policy: OmitWhenEmpty},
		{Name: "soc_on", Key: "soc_on", Policy: OmitWhenEmpty},
		{Name: "soc_off", Key: "soc_off", Policy: OmitWhenEmpty},
		{Name: "on_time", Key: "on_time", Policy: OmitWhenEmpty},
		{Name: "off_time", Key: "off_time", Policy: OmitWhenEmpty},
		{Name: "delay_off_minutes", Key: "delay_off_minutes", Policy: OmitWhenEmpty},
	}
)

// powerInts are sent as JSON numbers.
var powerInts = map[string]bool{"soc_on": true, "soc_off": true, "delay_off_minutes": true}

// FieldsFor returns the field table for a dialog on an interface.
func FieldsFor(kind brckapi.Interface, dialog Dialog) []FieldSpec {
	switch {
	case dialog == DialogUnlock && kind == brckapi.SIM:
		return UnlockFields
	case dialog != DialogConfigure:
		return nil
	case kind == brckapi.SIM:
		return APNFields
	case kind == brckapi.Ethernet:
		return EthernetFields
	case kind == brckapi.WiFi:
		return WiFiFields
	}
	return nil
}

func lookup(specs []FieldSpec, name string) (FieldSpec, bool) {
	for _, s := range specs {
		if s.Name == name {
			return s, true
		}
	}
	return FieldSpec{}, false
}

// values flattens fields to name->value for validation.
func values(fields map[string]Field) map[string]string {
	out := make(map[string]string, len(fields))
	for name, f := range fields {
		out[name] = f.Value
	}
	return out
}

func edited(fields map[string]Field) map[string]bool {
	out := make(map[string]bool, len(fields))
	for name, f := range fields {
		out[name] = f.Edited
	}
	return out
}

// collect applies specs to fields and returns the included key/value pairs.
func collect(specs []FieldSpec, fields map[string]Field) map[string]any {
	out := make(map[string]any)
	for _, s := range specs {
		f := fields[s.Name]
		if s.include(f) {
			out[s.Key] = f.Value
		}
	}
	return out
}

// SeedFields fills a configure form from a slot's current info. Seeded
// fields are not marked edited.
func SeedFields(slot brckapi.Slot) map[string]Field {
	fields := make(map[string]Field)
	set := func(name, value string) { fields[name] = Field{Value: value} }

	switch info := slot.Info.(type) {
	case *brckapi.SIMInfo:
		var apn brckapi.APNSettings
		if info.Network != nil {
			apn = *info.Network
		}
		set("apn", apn.APN)
		set("apn_user", apn.Username)
		set("apn_password", "")

	case *brckapi.EthernetInfo:
		set("dhcp_enabled", strconv.FormatBool(info.DHCPEnabled))
		set("ipaddr", info.Network.IPAddr)
		set("netmask", info.Network.Netmask)
		set("gateway", info.Network.Gateway)
		set("dns", info.Network.DNS)

	case *brckapi.WiFiInfo:
		mode, ssid := info.Mode, info.SSID
		if mode == brckapi.WiFiNotConfigured {
			mode = ""
		}
		if ssid == brckapi.WiFiNotConfigured {
			ssid = ""
		}
		enc := info.Encryption
		if enc == "" {
			enc = brckapi.DefaultWiFiEncryption
		}
		set("mode", mode)
		set("ssid", ssid)
		set("encryption", enc)
		set("key", info.Key)
		set("channel", info.Channel.String())
		set("hidden", info.Hidden.String())
		set("hwmode", info.HWMode)
	}
	return fields
}

// BuildConfigurePayload builds the configuration body for a configure dialog
// and validates it locally.
func BuildConfigurePayload(kind brckapi.Interface, fields map[string]Field) (map[string]any, []error) {
	switch kind {
	case brckapi.SIM:
		if errs := ValidateAPN(values(fields), edited(fields)); len(errs) > 0 {
			return nil, errs
		}
		return map[string]any{"network": collect(APNFields, fields)}, nil

	case brckapi.Ethernet:
		if errs := ValidateEthernet(values(fields)); len(errs) > 0 {
			return nil, errs
		}
		dhcp, _ := strconv.ParseBool(fields["dhcp_enabled"].Value)
		payload := map[string]any{"dhcp_enabled": dhcp}
		if !dhcp {
			payload["network"] = collect(EthernetFields[1:], fields)
		}
		return payload, nil

	case brckapi.WiFi:
		// Validation sees only what will be sent, so an untouched key does
		// not trip the key rules.
		payload := collect(WiFiFields, fields)
		v := make(map[string]string, len(payload))
		for k, val := range payload {
			v[k] = val.(string)
		}
		if _, ok := v["key"]; !ok && fields["key"].Value != "" {
			v["key"] = fields["key"].Value
		}
		if errs := ValidateWiFi(v); len(errs) > 0 {
			return nil, errs
		}
		return payload, nil
	}
	return nil, []error{&FieldError{Field: "form", Message: "unsupported interface " + string(kind)}}
}

// BuildUnlockPayload builds the PIN/PUK body. Empty values are omitted.
func BuildUnlockPayload(pin, puk string) (map[string]any, []error) {
	pin, puk = strings.TrimSpace(pin), strings.TrimSpace(puk)
	if errs := ValidateUnlock(pin, puk); len(errs) > 0 {
		return nil, errs
	}
	return collect(UnlockFields, map[string]Field{
		"pin": {Value: pin, Edited: true},
		"puk": {Value: puk, Edited: true},
	}), nil
}

// BuildAPNPayload builds the body answering an APN prompt. The APN is always
// sent; user and password only when given.
func BuildAPNPayload(apn, user, password string) (map[string]any, []error) {
	fields := map[string]Field{
		"apn":          {Value: strings.TrimSpace(apn), Edited: true},
		"apn_user":     {Value: user, Edited: user != ""},
		"apn_password": {Value: password, Edited: password != ""},
	}
	if errs := ValidateAPN(values(fields), edited(fields)); len(errs) > 0 {
		return nil, errs
	}
	return map[string]any{"network": collect(APNFields, fields)}, nil
}

// BuildConnectPayload re-applies a slot's current configuration. SIM slots
// send an empty body, which activates the SIM.
func BuildConnectPayload(slot brckapi.Slot) map[string]any {
	switch info := slot.Info.(type) {
	case *brckapi.EthernetInfo:
		payload := map[string]any{"dhcp_enabled": info.DHCPEnabled}
		if !info.DHCPEnabled {
			nw := map[string]any{"ipaddr": info.Network.IPAddr, "netmask": info.Network.Netmask}
			if info.Network.Gateway != "" {
				nw["gateway"] = info.Network.Gateway
			}
			if info.Network.DNS != "" {
				nw["dns"] = info.Network.DNS
			}
			payload["network"] = nw
		}
		return payload

	case *brckapi.WiFiInfo:
		payload := map[string]any{}
		for key, v := range map[string]string{
			"mode":       info.Mode,
			"ssid":       info.SSID,
			"encryption": info.Encryption,
			"key":        info.Key,
			"channel":    info.Channel.String(),
			"hidden":     info.Hidden.String(),
			"hwmode":     info.HWMode,
		} {
			if v != "" {
				payload[key] = v
			}
		}
		return payload
	}
	return map[string]any{}
}

// BuildPowerPayload builds the /power body from flag or form values. Empty
// values are omitted and numeric fields are sent as integers.
func BuildPowerPayload(in map[string]string) (map[string]any, []error) {
	trimmed := make(map[string]string, len(in))
	fields := make(map[string]Field, len(in))
	for k, v := range in {
		trimmed[k] = strings.TrimSpace(v)
		fields[k] = Field{Value: trimmed[k], Edited: true}
	}
	if errs := ValidatePower(trimmed); len(errs) > 0 {
		return nil, errs
	}

	out := collect(PowerFields, fields)
	for k, v := range out {
		if powerInts[k] {
			n, _ := strconv.Atoi(v.(string))
			out[k] = n
		}
	}
	return out, nil
}
