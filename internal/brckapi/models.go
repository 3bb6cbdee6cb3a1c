package brckapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Interface identifies a connectivity interface family.
type Interface string

const (
	SIM      Interface = "sim"
	Ethernet Interface = "ethernet"
	WiFi     Interface = "wifi"
)

// Interfaces lists every family in display order.
var Interfaces = []Interface{SIM, Ethernet, WiFi}

// ParseInterface accepts the CLI spelling of an interface family.
func ParseInterface(s string) (Interface, error) {
	switch strings.ToLower(s) {
	case "sim", "cellular", "3g", "4g":
		return SIM, nil
	case "ethernet", "lan", "eth":
		return Ethernet, nil
	case "wifi", "wi-fi", "wireless", "wlan":
		return WiFi, nil
	}
	return "", fmt.Errorf("unknown interface %q (want sim, ethernet or wifi)", s)
}

// Label returns the display name of the family.
func (i Interface) Label() string {
	switch i {
	case SIM:
		return "SIM"
	case Ethernet:
		return "Ethernet"
	case WiFi:
		return "Wi-Fi"
	}
	return string(i)
}

// FlexString decodes JSON strings, numbers and booleans as text. The
// appliance reports identifiers such as IMEI and cell id either way.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FlexString(strconv.FormatBool(b))
		return nil
	}
	return fmt.Errorf("cannot decode %s as text", data)
}

func (f FlexString) String() string { return string(f) }

// Slot is one connection slot: a SIM tray, an Ethernet port or a radio.
type Slot struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Index     *int   `json:"index,omitempty"`
	Available bool   `json:"available"`
	Connected bool   `json:"connected"`
	Info      Info   `json:"info"`
}

// Info is the interface-specific part of a Slot. It is one of *SIMInfo,
// *EthernetInfo or *WiFiInfo.
type Info interface {
	Interface() Interface
	clone() Info
}

// SIMInfo describes a SIM slot.
type SIMInfo struct {
	PinLocked     bool         `json:"pin_locked"`
	PukLocked     bool         `json:"puk_locked"`
	APNConfigured bool         `json:"apn_configured"`
	Network       *APNSettings `json:"network,omitempty"`
	NetworkInfo   NetworkInfo  `json:"network_info"`
}

// APNSettings is the configured APN. The password is write-only.
type APNSettings struct {
	APN      string `json:"apn"`
	Username string `json:"username"`
}

// NetworkInfo is the cellular registration reported for a SIM.
type NetworkInfo struct {
	SignalStrength FlexString `json:"signal_strength,omitempty"`
	Operator       string     `json:"operator,omitempty"`
	NetType        FlexString `json:"net_type,omitempty"`
	NetworkType    FlexString `json:"network_type,omitempty"`
	IMEI           FlexString `json:"imei,omitempty"`
	IMSI           FlexString `json:"imsi,omitempty"`
	MCC            FlexString `json:"mcc,omitempty"`
	MNC            FlexString `json:"mnc,omitempty"`
	CellID         FlexString `json:"cell_id,omitempty"`
	LAC            FlexString `json:"lac,omitempty"`
}

// Type returns the radio access type, whichever key the firmware used.
func (n NetworkInfo) Type() string {
	if n.NetType != "" {
		return string(n.NetType)
	}
	return string(n.NetworkType)
}

func (*SIMInfo) Interface() Interface { return SIM }

func (s *SIMInfo) clone() Info {
	c := *s
	if s.Network != nil {
		n := *s.Network
		c.Network = &n
	}
	return &c
}

// Locked reports whether the SIM needs a PIN or PUK before it can connect.
func (s *SIMInfo) Locked() bool { return s.PinLocked || s.PukLocked }

// EthernetInfo describes an Ethernet port.
type EthernetInfo struct {
	DHCPEnabled bool            `json:"dhcp_enabled"`
	Network     EthernetNetwork `json:"network"`
}

// EthernetNetwork is the IPv4 configuration of a port.
type EthernetNetwork struct {
	IPAddr  string `json:"ipaddr,omitempty"`
	Netmask string `json:"netmask,omitempty"`
	Gateway string `json:"gateway,omitempty"`
	DNS     string `json:"dns,omitempty"`
}

func (*EthernetInfo) Interface() Interface { return Ethernet }

func (e *EthernetInfo) clone() Info {
	c := *e
	return &c
}

// Wi-Fi modes and encryption schemes accepted by the appliance.
const (
	WiFiModeAP            = "ap"
	WiFiModeSTA           = "sta"
	WiFiNotConfigured     = "NOT_CONFIGURED"
	WiFiEncryptionNone    = "none"
	WiFiChannelAuto       = "auto"
	WiFiHiddenFalse       = "0"
	WiFiHiddenTrue        = "1"
	WiFiMaxChannel        = 196
	WiFiMaxSSIDLength     = 32
	WiFiMinPSKLength      = 8
	WiFiMaxPSKLength      = 63
	DefaultWiFiEncryption = "psk2"
)

// WiFiModes, WiFiEncryptions and WiFiHWModes enumerate the accepted values.
var (
	WiFiModes       = []string{WiFiModeAP, WiFiModeSTA}
	WiFiEncryptions = []string{"none", "psk", "psk2", "wep", "wpa"}
	WiFiHWModes     = []string{"11a", "11b", "11g"}
)

// WiFiInfo describes the bridge radio.
type WiFiInfo struct {
	Mode       string     `json:"mode,omitempty"`
	Encryption string     `json:"encryption,omitempty"`
	SSID       string     `json:"ssid,omitempty"`
	Key        string     `json:"key,omitempty"`
	Channel    FlexString `json:"channel,omitempty"`
	Hidden     FlexString `json:"hidden,omitempty"`
	HWMode     string     `json:"hwmode,omitempty"`
}

func (*WiFiInfo) Interface() Interface { return WiFi }

func (w *WiFiInfo) clone() Info {
	c := *w
	return &c
}

// Configured reports whether the radio has a usable mode and SSID.
func (w *WiFiInfo) Configured() bool {
	return w.Mode != "" && w.Mode != WiFiNotConfigured &&
		w.SSID != "" && w.SSID != WiFiNotConfigured
}

// Clone returns a deep copy of the slot.
func (s Slot) Clone() Slot {
	if s.Index != nil {
		i := *s.Index
		s.Index = &i
	}
	if s.Info != nil {
		s.Info = s.Info.clone()
	}
	return s
}

// SIMInfo returns the SIM details, or an empty value for other slots.
func (s Slot) SIMInfo() *SIMInfo {
	if i, ok := s.Info.(*SIMInfo); ok {
		return i
	}
	return &SIMInfo{}
}

// EthernetInfo returns the Ethernet details, or an empty value.
func (s Slot) EthernetInfo() *EthernetInfo {
	if i, ok := s.Info.(*EthernetInfo); ok {
		return i
	}
	return &EthernetInfo{}
}

// WiFiInfo returns the Wi-Fi details, or an empty value.
func (s Slot) WiFiInfo() *WiFiInfo {
	if i, ok := s.Info.(*WiFiInfo); ok {
		return i
	}
	return &WiFiInfo{}
}

type rawSlot struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Index     *int            `json:"index"`
	Available bool            `json:"available"`
	Connected bool            `json:"connected"`
	Info      json.RawMessage `json:"info"`
}

func newInfo(kind Interface) (Info, error) {
	switch kind {
	case SIM:
		return &SIMInfo{}, nil
	case Ethernet:
		return &EthernetInfo{}, nil
	case WiFi:
		return &WiFiInfo{}, nil
	}
	return nil, fmt.Errorf("unknown interface %q", kind)
}

func (r rawSlot) decode(kind Interface) (Slot, error) {
	info, err := newInfo(kind)
	if err != nil {
		return Slot{}, err
	}
	if len(r.Info) > 0 && string(r.Info) != "null" {
		if err := json.Unmarshal(r.Info, info); err != nil {
			return Slot{}, fmt.Errorf("slot %s: %w", r.ID, err)
		}
	}
	return Slot{
		ID:        r.ID,
		Name:      r.Name,
		Index:     r.Index,
		Available: r.Available,
		Connected: r.Connected,
		Info:      info,
	}, nil
}

// DecodeSlots decodes a slot list, or a single slot object, for kind.
// Slots carrying an index are ordered by it; the rest keep server order.
func DecodeSlots(kind Interface, data []byte) ([]Slot, error) {
	data = bytes.TrimSpace(data)
	var raws []rawSlot
	if len(data) > 0 && data[0] == '{' {
		var one rawSlot
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, err
		}
		raws = []rawSlot{one}
	} else if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}

	slots := make([]Slot, 0, len(raws))
	for _, r := range raws {
		if r.ID == "" {
			return nil, fmt.Errorf("slot without id in %s list", kind)
		}
		s, err := r.decode(kind)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	SortSlots(slots)
	return slots, nil
}

// SortSlots orders slots by their explicit index. Slots without an index
// keep their relative order after indexed ones.
func SortSlots(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i].Index, slots[j].Index
		switch {
		case a != nil && b != nil:
			return *a < *b
		case a != nil:
			return true
		default:
			return false
		}
	})
}

// SystemStatus is the /system payload and the "system" push event.
type SystemStatus struct {
	Storage StorageUsage  `json:"storage"`
	Battery BatteryStatus `json:"battery"`
	Network SystemNetwork `json:"network"`
}

// StorageUsage is disk usage in bytes.
type StorageUsage struct {
	TotalSpace     int64 `json:"total_space"`
	UsedSpace      int64 `json:"used_space"`
	AvailableSpace int64 `json:"available_space"`
}

// UsedPercent returns used space as a percentage. Zero total yields zero.
func (s StorageUsage) UsedPercent() float64 {
	if s.TotalSpace <= 0 {
		return 0
	}
	return float64(s.UsedSpace) / float64(s.TotalSpace) * 100
}

// BatteryStatus carries the charge level.
type BatteryStatus struct {
	BatteryLevel FlexString `json:"battery_level"`
	State        string     `json:"state,omitempty"`
}

// SystemNetwork is the uplink summary.
type SystemNetwork struct {
	ConnectedClients int           `json:"connected_clients"`
	Connection       UplinkSummary `json:"connection"`
}

// UplinkSummary describes the active WAN connection.
type UplinkSummary struct {
	ConnectionType string     `json:"connection_type"`
	UpSpeed        FlexString `json:"up_speed"`
	DownSpeed      FlexString `json:"down_speed"`
}

// SoftwareState is the /system/software payload.
type SoftwareState struct {
	OS       string    `json:"os"`
	Firmware string    `json:"firmware"`
	Packages []Package `json:"packages"`
}

// Package is one installed software package.
type Package struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Installed bool   `json:"installed"`
}

// TemperatureUnknown is reported for sensors that could not be read.
const TemperatureUnknown = "UNKNOWN"

// Temperature is a sensor reading in Celsius, or unknown.
type Temperature struct {
	Celsius float64
	Known   bool
}

func (t *Temperature) UnmarshalJSON(data []byte) error {
	var f FlexString
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	if f == "" || strings.EqualFold(string(f), TemperatureUnknown) {
		*t = Temperature{}
		return nil
	}
	v, err := strconv.ParseFloat(string(f), 64)
	if err != nil {
		*t = Temperature{}
		return nil
	}
	*t = Temperature{Celsius: v, Known: true}
	return nil
}

func (t Temperature) MarshalJSON() ([]byte, error) {
	if !t.Known {
		return json.Marshal(TemperatureUnknown)
	}
	return json.Marshal(t.Celsius)
}

// Format renders the reading in Celsius or Fahrenheit with two decimals.
func (t Temperature) Format(fahrenheit bool) string {
	if !t.Known {
		return TemperatureUnknown
	}
	if fahrenheit {
		return fmt.Sprintf("%.2f°F", t.Celsius*1.8+32)
	}
	return fmt.Sprintf("%.2f°C", t.Celsius)
}

// Sensor groups readings from one component.
type Sensor struct {
	Temperature []Temperature `json:"temperature"`
}

// Diagnostics is the /system/diagnostics payload and "diagnostics" push event.
type Diagnostics struct {
	CPU     Sensor           `json:"cpu"`
	Modem   Sensor           `json:"modem"`
	Battery Sensor           `json:"battery"`
	Clients []WirelessClient `json:"clients"`
}

// WirelessClient is one station associated with the appliance's access point.
type WirelessClient struct {
	Name          string     `json:"name"`
	IP            string     `json:"ip"`
	Signal        FlexString `json:"signal"`
	ConnectedTime int64      `json:"connected_time"`
	RxBytes       int64      `json:"rx_bytes"`
	TxBytes       int64      `json:"tx_bytes"`
}

// Power modes understood by the SOC controller.
const (
	PowerModeNormal   = "NORMAL"
	PowerModeTimed    = "TIMED"
	PowerModeAlwaysOn = "ALWAYS_ON"
	PowerModeVehicle  = "VEHICLE"
	PowerModeManual   = "MANUAL"
)

// PowerModes lists the modes in display order.
var PowerModes = []string{PowerModeNormal, PowerModeTimed, PowerModeAlwaysOn, PowerModeVehicle, PowerModeManual}

// PowerModeDescriptions explains when to pick each mode.
var PowerModeDescriptions = map[string]string{
	PowerModeNormal:   "When configuring a SupaBRCK that you will manually turn ON/OFF",
	PowerModeTimed:    "When configuring a SupaBRCK that is automatically turned ON/OFF at specific times using the device timer settings",
	PowerModeAlwaysOn: "When configuring a SupaBRCK that will need to be ON all the time",
	PowerModeVehicle:  "When configuring a SupaBRCK that you will manually charge just like you charge a phone",
	PowerModeManual:   "When you want to be able to manually configure all power settings",
}

// Which field groups apply to which modes.
var (
	SOCModes   = []string{PowerModeManual, PowerModeNormal, PowerModeTimed}
	TimeModes  = []string{PowerModeTimed, PowerModeVehicle, PowerModeManual}
	DelayModes = []string{PowerModeManual, PowerModeVehicle}
)

// PowerConfig is the /power payload. Numeric fields tolerate strings.
type PowerConfig struct {
	Mode            string     `json:"mode"`
	SOCOn           FlexString `json:"soc_on,omitempty"`
	SOCOff          FlexString `json:"soc_off,omitempty"`
	OnTime          string     `json:"on_time,omitempty"`
	OffTime         string     `json:"off_time,omitempty"`
	DelayOffMinutes FlexString `json:"delay_off_minutes,omitempty"`
	Configured      bool       `json:"configured"`
}

// StorageState is the /ftp payload.
type StorageState struct {
	Storage StorageUsage `json:"storage"`
	FTP     FTPState     `json:"ftp"`
}

// FTPState reports the FTP account, if any.
type FTPState struct {
	Configured bool   `json:"configured"`
	Login      string `json:"login,omitempty"`
}

// DeviceMode is the /device-mode payload.
type DeviceMode struct {
	Mode      string `json:"mode"`
	Connected bool   `json:"connected"`
	SetupLink string `json:"setup_link,omitempty"`
}

// Retail reports whether the appliance runs in retail mode.
func (d DeviceMode) Retail() bool { return strings.EqualFold(d.Mode, "RETAIL") }

// AuthResult is the /auth reply.
type AuthResult struct {
	Token           string `json:"token"`
	PasswordChanged *bool  `json:"password_changed,omitempty"`
}

// Contains reports whether list holds v.
func Contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
