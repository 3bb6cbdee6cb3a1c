package brckapi

import (
	"strings"
	"testing"
)

func TestHumanBytes(t *testing.T) {
	tests := map[int64]string{
		0:             "0 B",
		1023:          "1023 B",
		1024:          "1.0 KiB",
		1536:          "1.5 KiB",
		5 << 30:       "5.0 GiB",
		3 * (1 << 40): "3.0 TiB",
	}
	for in, want := range tests {
		if got := HumanBytes(in); got != want {
			t.Errorf("HumanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestHumanDuration(t *testing.T) {
	tests := map[int64]string{
		42:     "42s",
		300:    "5m",
		3900:   "1h 5m",
		190000: "2d 4h",
	}
	for in, want := range tests {
		if got := HumanDuration(in); got != want {
			t.Errorf("HumanDuration(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestPowerFormatShowsModeGroups(t *testing.T) {
	p := &PowerConfig{Mode: PowerModeVehicle, SOCOn: "20", OnTime: "06:00", OffTime: "20:00", DelayOffMinutes: "15"}
	out := p.FormatDetailed()

	if strings.Contains(out, "Power on at") {
		t.Error("VEHICLE mode should not show SOC fields")
	}
	for _, want := range []string{"On time:     06:00", "Delay off:   15 min", PowerModeDescriptions[PowerModeVehicle]} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatDetailed() missing %q:\n%s", want, out)
		}
	}
}

func TestSlotStatus(t *testing.T) {
	tests := []struct {
		slot Slot
		want string
	}{
		{Slot{Available: false, Info: &SIMInfo{}}, "no media"},
		{Slot{Available: true, Connected: true, Info: &SIMInfo{}}, "connected"},
		{Slot{Available: true, Info: &SIMInfo{PinLocked: true}}, "PIN locked"},
		{Slot{Available: true, Info: &SIMInfo{PinLocked: true, PukLocked: true}}, "PUK locked"},
		{Slot{Available: true, Info: &WiFiInfo{}}, "available"},
	}
	for _, tt := range tests {
		if got := tt.slot.Status(); got != tt.want {
			t.Errorf("Status() = %q, want %q", got, tt.want)
		}
	}
}

func TestFormatSlotsDetailed(t *testing.T) {
	slots := []Slot{
		{ID: "ETHERNET1", Name: "ETHERNET 1", Available: true, Info: &EthernetInfo{DHCPEnabled: true, Network: EthernetNetwork{IPAddr: "192.168.1.20"}}},
		{ID: "SIM1", Name: "SIM 1", Available: false, Info: &SIMInfo{}},
	}
	out := FormatSlotsDetailed(slots)

	for _, want := range []string{"=== ETHERNET 1 (ETHERNET1) ===", "Addressing: DHCP", "IP:         192.168.1.20", "Status:     no media"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatSlotsDetailed() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Operator") {
		t.Error("unavailable SIM should not print network details")
	}
}

func TestDiagnosticsFormatNoClients(t *testing.T) {
	d := &Diagnostics{}
	if out := d.FormatDetailed(false); !strings.Contains(out, "No clients connected") {
		t.Errorf("FormatDetailed() = %q", out)
	}
}
