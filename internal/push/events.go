package push

// SIM connection event names sent on the sim-connectivity channel.
const (
	NoModem          = "NO_MODEM"
	Disable3GMonitor = "DISABLE_3G_MONITOR"
	StopWAN          = "STOP_WAN"
	SelectingSIM     = "SELECTING_SIM"
	CheckSIM         = "CHECK_SIM"
	SIMDetected      = "SIM_DETECTED"
	CheckPIN         = "CHECK_PIN"
	CheckReady       = "CHECK_READY"
	RequiresPIN      = "REQUIRES_PIN"
	RequiresPUK      = "REQUIRES_PUK"
	RequiresAPN      = "REQUIRES_APN"
	SetPIN           = "SET_PIN"
	SetPUK           = "SET_PUK"
	PINRejected      = "PIN_REJECTED"
	PUKRejected      = "PUK_REJECTED"
	PINOK            = "PIN_OK"
	PUKOK            = "PUK_OK"
	DisablePIN       = "DISABLE_PIN"
	DeletePIN        = "DELETE_PIN"
	DeletePUK        = "DELETE_PUK"
	PINNotRequired   = "PIN_NOT_REQUIRED"
	SIMReady         = "SIM_READY"
	SIMNotReady      = "SIM_NOT_READY"
	ActiveSIMReset   = "ACTIVE_SIM_RESET"
	CheckCarrier     = "CHECK_CARRIER"
	WaitCarrier      = "WAIT_CARRIER"
	NoCarrier        = "NO_CARRIER"
	CarrierDetected  = "CARRIER_DETECTED"
	RestartModem     = "RESTART_MODEM"
	StartWAN         = "START_WAN"
	WaitConnection   = "WAIT_CONNECTION"
	Connected        = "CONNECTED"
	NoConnection     = "NO_CONNECTION"
	Enable3GMonitor  = "ENABLE_3G_MONITOR"
)

var descriptions = map[string]string{
	NoModem:          "No modem detected",
	Disable3GMonitor: "Disabling 3G monitor temporarily",
	StopWAN:          "Bringing down WAN interface",
	SelectingSIM:     "Selecting SIM",
	CheckSIM:         "Checking SIM",
	SIMDetected:      "SIM detected",
	CheckPIN:         "Checking if PIN is required",
	CheckReady:       "Checking if the SIM is ready",
	RequiresPIN:      "This SIM requires a PIN to connect",
	RequiresPUK:      "This SIM is blocked.",
	RequiresAPN:      "This SIM requires an APN to connect",
	SetPIN:           "Setting PIN",
	SetPUK:           "Setting PUK",
	PINRejected:      "PIN rejected",
	PUKRejected:      "PUK rejected",
	PINOK:            "PIN accepted",
	PUKOK:            "PUK accepted",
	DisablePIN:       "Disabling the PIN lock",
	DeletePIN:        "Deleting saved PIN",
	DeletePUK:        "Deleting saved PUK",
	PINNotRequired:   "PIN not required",
	SIMReady:         "SIM is ready",
	SIMNotReady:      "SIM not ready - giving up",
	ActiveSIMReset:   "Restoring previous active SIM configuration",
	CheckCarrier:     "Checking Carrier",
	WaitCarrier:      "Waiting for carrier detection",
	NoCarrier:        "No carrier detected - giving up",
	CarrierDetected:  "Carrier detected",
	RestartModem:     "Restarting the modem",
	StartWAN:         "Bringing up WAN interface",
	WaitConnection:   "Waiting for connection (60s)",
	Connected:        "Connected!",
	NoConnection:     "No connection",
	Enable3GMonitor:  "Restarting 3G monitor",
}

// Describe returns the human description of a SIM connection event, or the
// event name itself when it is not known.
func Describe(event string) string {
	if d, ok := descriptions[event]; ok {
		return d
	}
	return event
}
