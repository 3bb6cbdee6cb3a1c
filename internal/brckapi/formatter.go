package brckapi

import (
	"fmt"
	"strings"
	"time"
)

// HumanBytes renders a byte count with binary units.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// HumanDuration renders a connection age in seconds as "3h 12m".
func HumanDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", seconds)
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd %dh", int(d.Hours())/24, int(d.Hours())%24)
	}
}

// Summary returns a one-line summary of the system status
func (s *SystemStatus) Summary() string {
	conn := s.Network.Connection.ConnectionType
	if conn == "" {
		conn = "offline"
	}
	return fmt.Sprintf("Battery %s%% | %s | %d clients | storage %.0f%% used",
		valueOr(s.Battery.BatteryLevel.String(), "?"), conn, s.Network.ConnectedClients, s.Storage.UsedPercent())
}

// FormatDetailed returns the system status with one section per subsystem
func (s *SystemStatus) FormatDetailed() string {
	var b strings.Builder

	b.WriteString("=== Battery ===\n")
	b.WriteString(fmt.Sprintf("Level:      %s%%\n", valueOr(s.Battery.BatteryLevel.String(), "?")))
	if s.Battery.State != "" {
		b.WriteString(fmt.Sprintf("State:      %s\n", s.Battery.State))
	}
	b.WriteString("\n")

	b.WriteString("=== Uplink ===\n")
	b.WriteString(fmt.Sprintf("Connection: %s\n", valueOr(s.Network.Connection.ConnectionType, "none")))
	b.WriteString(fmt.Sprintf("Up:         %s\n", valueOr(s.Network.Connection.UpSpeed.String(), "-")))
	b.WriteString(fmt.Sprintf("Down:       %s\n", valueOr(s.Network.Connection.DownSpeed.String(), "-")))
	b.WriteString(fmt.Sprintf("Clients:    %d\n", s.Network.ConnectedClients))
	b.WriteString("\n")

	b.WriteString(s.Storage.Format())
	return b.String()
}

// Format returns a storage usage section
func (s StorageUsage) Format() string {
	var b strings.Builder
	b.WriteString("=== Storage ===\n")
	b.WriteString(fmt.Sprintf("Total:      %s\n", HumanBytes(s.TotalSpace)))
	b.WriteString(fmt.Sprintf("Used:       %s (%.2f%%)\n", HumanBytes(s.UsedSpace), s.UsedPercent()))
	b.WriteString(fmt.Sprintf("Available:  %s\n", HumanBytes(s.AvailableSpace)))
	return b.String()
}

// FormatDetailed returns the software inventory
func (s *SoftwareState) FormatDetailed() string {
	var b strings.Builder

	b.WriteString("=== Software ===\n")
	b.WriteString(fmt.Sprintf("OS:       %s\n", valueOr(s.OS, "unknown")))
	b.WriteString(fmt.Sprintf("Firmware: %s\n", valueOr(s.Firmware, "unknown")))
	b.WriteString("\n=== Packages ===\n")
	if len(s.Packages) == 0 {
		b.WriteString("(none reported)\n")
	}
	for _, p := range s.Packages {
		version := p.Version
		if !p.Installed {
			version = "not installed"
		}
		b.WriteString(fmt.Sprintf("%-24s %s\n", p.Name, version))
	}
	return b.String()
}

// FormatDetailed returns temperatures and the wireless client table.
func (d *Diagnostics) FormatDetailed(fahrenheit bool) string {
	var b strings.Builder

	b.WriteString("=== Temperature ===\n")
	b.WriteString(fmt.Sprintf("CPU:     %s\n", formatTemperatures(d.CPU.Temperature, fahrenheit)))
	b.WriteString(fmt.Sprintf("Modem:   %s\n", formatTemperatures(d.Modem.Temperature, fahrenheit)))
	b.WriteString(fmt.Sprintf("Battery: %s\n", formatTemperatures(d.Battery.Temperature, fahrenheit)))
	b.WriteString("\n=== Wireless Clients ===\n")

	if len(d.Clients) == 0 {
		b.WriteString("No clients connected\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("%-20s %-15s %-8s %-8s %-10s %-10s\n", "NAME", "IP", "SIGNAL", "UPTIME", "TX", "RX"))
	for _, c := range d.Clients {
		b.WriteString(fmt.Sprintf("%-20s %-15s %-8s %-8s %-10s %-10s\n",
			valueOr(c.Name, "-"), c.IP, c.Signal, HumanDuration(c.ConnectedTime),
			HumanBytes(c.TxBytes), HumanBytes(c.RxBytes)))
	}
	return b.String()
}

func formatTemperatures(ts []Temperature, fahrenheit bool) string {
	if len(ts) == 0 {
		return TemperatureUnknown
	}
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.Format(fahrenheit)
	}
	return strings.Join(parts, " ")
}

// FormatDetailed returns the power configuration, showing only the field
// groups that apply to the mode.
func (p *PowerConfig) FormatDetailed() string {
	var b strings.Builder

	b.WriteString("=== Power ===\n")
	b.WriteString(fmt.Sprintf("Mode:        %s\n", valueOr(p.Mode, "not configured")))
	if desc, ok := PowerModeDescriptions[p.Mode]; ok {
		b.WriteString(fmt.Sprintf("             %s\n", desc))
	}
	if Contains(SOCModes, p.Mode) {
		b.WriteString(fmt.Sprintf("Power on at:  %s%% charge\n", valueOr(p.SOCOn.String(), "-")))
		b.WriteString(fmt.Sprintf("Power off at: %s%% charge\n", valueOr(p.SOCOff.String(), "-")))
	}
	if Contains(TimeModes, p.Mode) {
		b.WriteString(fmt.Sprintf("On time:     %s\n", valueOr(p.OnTime, "-")))
		b.WriteString(fmt.Sprintf("Off time:    %s\n", valueOr(p.OffTime, "-")))
	}
	if Contains(DelayModes, p.Mode) {
		b.WriteString(fmt.Sprintf("Delay off:   %s min\n", valueOr(p.DelayOffMinutes.String(), "-")))
	}
	return b.String()
}

// FormatDetailed returns storage usage and FTP state.
func (s *StorageState) FormatDetailed() string {
	var b strings.Builder
	b.WriteString(s.Storage.Format())
	b.WriteString("\n=== FTP ===\n")
	if s.FTP.Configured {
		b.WriteString(fmt.Sprintf("Login:      %s\n", valueOr(s.FTP.Login, "(set)")))
	} else {
		b.WriteString("Not configured\n")
	}
	return b.String()
}

// Status returns a short state word for a slot.
func (s Slot) Status() string {
	switch {
	case !s.Available:
		return "no media"
	case s.Connected:
		return "connected"
	}
	if sim, ok := s.Info.(*SIMInfo); ok {
		switch {
		case sim.PukLocked:
			return "PUK locked"
		case sim.PinLocked:
			return "PIN locked"
		}
	}
	return "available"
}

// FormatSlotsCompact returns one line per slot.
func FormatSlotsCompact(slots []Slot) string {
	var b strings.Builder
	for _, s := range slots {
		b.WriteString(fmt.Sprintf("%-10s %-14s %-11s %s\n", s.ID, s.Name, s.Status(), slotDetail(s)))
	}
	return b.String()
}

// FormatSlotsDetailed returns one section per slot.
func FormatSlotsDetailed(slots []Slot) string {
	var b strings.Builder
	for i, s := range slots {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("=== %s (%s) ===\n", valueOr(s.Name, s.ID), s.ID))
		b.WriteString(fmt.Sprintf("Status:     %s\n", s.Status()))
		if !s.Available {
			continue
		}
		switch info := s.Info.(type) {
		case *SIMInfo:
			n := info.NetworkInfo
			b.WriteString(fmt.Sprintf("APN:        %s\n", apnLabel(info)))
			b.WriteString(fmt.Sprintf("Operator:   %s\n", valueOr(n.Operator, "-")))
			b.WriteString(fmt.Sprintf("Network:    %s\n", valueOr(n.Type(), "-")))
			b.WriteString(fmt.Sprintf("Signal:     %s\n", valueOr(n.SignalStrength.String(), "-")))
			b.WriteString(fmt.Sprintf("IMEI:       %s\n", valueOr(n.IMEI.String(), "-")))
			if n.IMSI != "" {
				b.WriteString(fmt.Sprintf("IMSI:       %s\n", n.IMSI))
			}
			if n.MCC != "" || n.MNC != "" {
				b.WriteString(fmt.Sprintf("MCC/MNC:    %s/%s\n", n.MCC, n.MNC))
			}
			if n.CellID != "" || n.LAC != "" {
				b.WriteString(fmt.Sprintf("Cell/LAC:   %s/%s\n", n.CellID, n.LAC))
			}
		case *EthernetInfo:
			if info.DHCPEnabled {
				b.WriteString("Addressing: DHCP\n")
			} else {
				b.WriteString("Addressing: static\n")
			}
			b.WriteString(fmt.Sprintf("IP:         %s\n", valueOr(info.Network.IPAddr, "-")))
			b.WriteString(fmt.Sprintf("Netmask:    %s\n", valueOr(info.Network.Netmask, "-")))
			b.WriteString(fmt.Sprintf("Gateway:    %s\n", valueOr(info.Network.Gateway, "-")))
			b.WriteString(fmt.Sprintf("DNS:        %s\n", valueOr(info.Network.DNS, "-")))
		case *WiFiInfo:
			b.WriteString(fmt.Sprintf("Mode:       %s\n", valueOr(info.Mode, "-")))
			b.WriteString(fmt.Sprintf("SSID:       %s\n", valueOr(info.SSID, "-")))
			b.WriteString(fmt.Sprintf("Encryption: %s\n", valueOr(info.Encryption, "-")))
			b.WriteString(fmt.Sprintf("Channel:    %s\n", valueOr(info.Channel.String(), WiFiChannelAuto)))
			b.WriteString(fmt.Sprintf("Band:       %s\n", valueOr(info.HWMode, "-")))
			b.WriteString(fmt.Sprintf("Hidden:     %v\n", info.Hidden == WiFiHiddenTrue))
		}
	}
	return b.String()
}

func slotDetail(s Slot) string {
	if !s.Available {
		return ""
	}
	switch info := s.Info.(type) {
	case *SIMInfo:
		return fmt.Sprintf("%s %s", valueOr(info.NetworkInfo.Operator, "-"), info.NetworkInfo.Type())
	case *EthernetInfo:
		if info.DHCPEnabled {
			return "dhcp " + info.Network.IPAddr
		}
		return "static " + info.Network.IPAddr
	case *WiFiInfo:
		return fmt.Sprintf("%s %s", valueOr(info.Mode, "-"), info.SSID)
	}
	return ""
}

func apnLabel(info *SIMInfo) string {
	if info.Network != nil && info.Network.APN != "" {
		return info.Network.APN
	}
	if info.APNConfigured {
		return "(configured)"
	}
	return "not configured"
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
