package workflow

import (
	"fmt"

	"github.com/brck/brckctl/internal/brckapi"
)

// CardKind is how a slot is drawn.
type CardKind string

const (
	CardNoMedia    CardKind = "no-media"
	CardAvailable  CardKind = "available"
	CardLocked     CardKind = "locked"
	CardConnecting CardKind = "connecting"
	CardConnected  CardKind = "connected"
	CardError      CardKind = "error"
)

// Action is a button offered on a card.
type Action string

const (
	ActionConfigure Action = "configure"
	ActionConnect   Action = "connect"
	ActionUnlock    Action = "unlock"
)

// Card is the display projection of one slot.
type Card struct {
	SlotID  string
	Title   string
	Kind    CardKind
	Status  string
	Lines   []string
	Actions []Action
}

// Project turns a snapshot into cards, one per slot in slot order. It reads
// nothing but s, so equal snapshots give equal cards.
func Project(s Snapshot) []Card {
	cards := make([]Card, 0, len(s.Slots))
	for _, slot := range s.Slots {
		cards = append(cards, project(s, slot))
	}
	return cards
}

func project(s Snapshot, slot brckapi.Slot) Card {
	c := Card{SlotID: slot.ID, Title: slot.Name}
	if c.Title == "" {
		c.Title = slot.ID
	}
	selected := slot.ID == s.SelectedID

	switch {
	case !slot.Available:
		c.Kind = CardNoMedia
		c.Status = "No media"
		if s.Kind == brckapi.SIM {
			c.Status = "Not inserted"
		}
		return c

	case selected && s.Phase.Busy():
		c.Kind = CardConnecting
		c.Status = "Connecting..."
		if s.Phase == PhaseWorking {
			c.Status = "Saving..."
		}
		if n := len(s.EventLog); n > 0 {
			c.Lines = []string{s.EventLog[n-1].Description}
		}
		return c

	case selected && s.Phase == PhaseError && s.LastError != nil:
		c.Kind = CardError
		c.Status = "Failed"
		c.Lines = append([]string{s.LastError.Message}, s.LastError.Details...)
		c.Actions = retryActions(s)
		return c
	}

	c.Lines = details(slot)
	switch {
	case slot.Connected:
		c.Kind = CardConnected
		c.Status = "Connected"
		c.Actions = []Action{ActionConfigure}
	case slot.SIMInfo().Locked():
		c.Kind = CardLocked
		c.Status = "PIN locked"
		if slot.SIMInfo().PukLocked {
			c.Status = "PUK locked"
		}
		c.Actions = []Action{ActionUnlock}
	default:
		c.Kind = CardAvailable
		c.Status = "Not connected"
		c.Actions = availableActions(slot)
	}
	return c
}

func retryActions(s Snapshot) []Action {
	switch s.Dialog {
	case DialogConfigure:
		return []Action{ActionConfigure}
	case DialogUnlock:
		return []Action{ActionUnlock}
	default:
		return []Action{ActionConnect}
	}
}

func availableActions(slot brckapi.Slot) []Action {
	switch info := slot.Info.(type) {
	case *brckapi.SIMInfo:
		if !info.APNConfigured {
			return []Action{ActionConfigure}
		}
	case *brckapi.WiFiInfo:
		if !info.Configured() {
			return []Action{ActionConfigure}
		}
	}
	return []Action{ActionConnect, ActionConfigure}
}

func details(slot brckapi.Slot) []string {
	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", label, value))
		}
	}

	switch info := slot.Info.(type) {
	case *brckapi.SIMInfo:
		add("Operator", info.NetworkInfo.Operator)
		add("Network", info.NetworkInfo.Type())
		add("Signal", info.NetworkInfo.SignalStrength.String())
		if info.Network != nil {
			add("APN", info.Network.APN)
		}
	case *brckapi.EthernetInfo:
		if info.DHCPEnabled {
			lines = append(lines, "Addressing: DHCP")
		} else {
			lines = append(lines, "Addressing: static")
		}
		add("IP", info.Network.IPAddr)
		add("Netmask", info.Network.Netmask)
		add("Gateway", info.Network.Gateway)
		add("DNS", info.Network.DNS)
	case *brckapi.WiFiInfo:
		if !info.Configured() {
			return []string{"Not configured"}
		}
		add("Mode", info.Mode)
		add("SSID", info.SSID)
		add("Security", info.Encryption)
	}
	return lines
}
