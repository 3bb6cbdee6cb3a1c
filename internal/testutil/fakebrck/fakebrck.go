// Package fakebrck runs an in-process SupaBRCK appliance for tests.
//
// It serves the REST API under /api/v1 and the push channels at the server
// root, keeps slot, power and FTP state in memory, and lets tests inject
// failures, hold requests in flight and emit push events.
package fakebrck

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/brck/brckctl/internal/brckapi"
)

const (
	// DefaultLogin and DefaultPassword are the factory credentials.
	DefaultLogin    = "admin"
	DefaultPassword = "admin"

	// PIN and PUK unlock a locked SIM.
	PIN = "1234"
	PUK = "12345678"

	authHeader = "X-Auth-Token-Key"
)

// Appliance is a fake appliance. All methods are safe for concurrent use.
type Appliance struct {
	server *httptest.Server
	router *mux.Router

	mu              sync.Mutex
	login           string
	hash            []byte
	passwordChanged bool
	tokens          map[string]bool
	deviceMode      brckapi.DeviceMode
	system          brckapi.SystemStatus
	software        brckapi.SoftwareState
	diagnostics     brckapi.Diagnostics
	power           map[string]any
	storage         brckapi.StorageUsage
	ftpLogin        string
	slots           map[brckapi.Interface][]brckapi.Slot
	counts          map[string]int
	bodies          map[string][]map[string]any
	failures        map[string][]Failure
	holds           map[string][]*Hold
	configureHook   func(kind brckapi.Interface, id string, cfg map[string]any) (int, any)
	switchDelay     time.Duration
	stopped         bool

	hub      *hub
	stop     chan struct{}
	stopOnce sync.Once
	switches sync.WaitGroup
}

// Failure is a canned reply for one request.
type Failure struct {
	Status int
	Body   any
}

// Option configures a new Appliance.
type Option func(*Appliance)

// WithCredentials sets the login, password and whether the factory password
// was already changed.
func WithCredentials(login, password string, changed bool) Option {
	return func(a *Appliance) {
		a.setPassword(login, password)
		a.passwordChanged = changed
	}
}

// WithSIMSwitchDelay sets how long after a SIM configuration reply the
// appliance starts switching SIMs.
func WithSIMSwitchDelay(d time.Duration) Option {
	return func(a *Appliance) { a.switchDelay = d }
}

// Start runs a fake appliance until the test ends.
func Start(t testing.TB, opts ...Option) *Appliance {
	t.Helper()

	a := &Appliance{
		tokens:   make(map[string]bool),
		counts:   make(map[string]int),
		bodies:   make(map[string][]map[string]any),
		failures: make(map[string][]Failure),
		holds:    make(map[string][]*Hold),
		hub:      newHub(),
		stop:     make(chan struct{}),

		switchDelay: 20 * time.Millisecond,
	}
	a.setPassword(DefaultLogin, DefaultPassword)
	a.passwordChanged = true
	a.seed()
	for _, opt := range opts {
		opt(a)
	}

	a.router = a.routes()
	a.server = httptest.NewServer(a.router)
	t.Cleanup(a.Close)
	return a
}

// URL returns the REST base, e.g. http://127.0.0.1:1234/api/v1.
func (a *Appliance) URL() string {
	return a.server.URL + "/api/v1"
}

// PushURL returns the push base, e.g. ws://127.0.0.1:1234.
func (a *Appliance) PushURL() string {
	return "ws" + strings.TrimPrefix(a.server.URL, "http")
}

// Close stops the server; later calls see a transport failure.
func (a *Appliance) Close() {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		a.stopped = true
		a.mu.Unlock()
		close(a.stop)
		a.switches.Wait()

		a.releaseAll()
		a.hub.closeAll()
		a.server.Close()
	})
}

func (a *Appliance) setPassword(login, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	a.login = login
	a.hash = hash
}

func intPtr(i int) *int { return &i }

func (a *Appliance) seed() {
	a.deviceMode = brckapi.DeviceMode{Mode: "NORMAL", Connected: true, SetupLink: "https://cloud.brck.com/setup"}
	a.system = brckapi.SystemStatus{
		Storage: brckapi.StorageUsage{TotalSpace: 32 << 30, UsedSpace: 8 << 30, AvailableSpace: 24 << 30},
		Battery: brckapi.BatteryStatus{BatteryLevel: "87", State: "CHARGING"},
		Network: brckapi.SystemNetwork{
			ConnectedClients: 2,
			Connection:       brckapi.UplinkSummary{ConnectionType: "SIM", UpSpeed: "1.2 Mbps", DownSpeed: "7.5 Mbps"},
		},
	}
	a.storage = a.system.Storage
	a.software = brckapi.SoftwareState{
		OS:       "OpenWrt 15.05",
		Firmware: "1.0.3",
		Packages: []brckapi.Package{
			{Name: "brck-local-api", Version: "0.9.1", Installed: true},
			{Name: "moja", Version: "", Installed: false},
		},
	}
	a.diagnostics = brckapi.Diagnostics{
		CPU:     brckapi.Sensor{Temperature: []brckapi.Temperature{{Celsius: 52.5, Known: true}}},
		Modem:   brckapi.Sensor{Temperature: []brckapi.Temperature{{}}},
		Battery: brckapi.Sensor{Temperature: []brckapi.Temperature{{Celsius: 31, Known: true}}},
		Clients: []brckapi.WirelessClient{
			{Name: "phone", IP: "192.168.88.20", Signal: "-61", ConnectedTime: 3600, RxBytes: 2 << 20, TxBytes: 5 << 20},
		},
	}
	a.power = map[string]any{
		"mode":              brckapi.PowerModeNormal,
		"soc_on":            15,
		"soc_off":           5,
		"on_time":           "06:00",
		"off_time":          "20:01",
		"delay_off_minutes": 0,
		"configured":        true,
	}
	a.slots = map[brckapi.Interface][]brckapi.Slot{
		brckapi.SIM: {
			{ID: "SIM1", Name: "SIM 1", Index: intPtr(0), Available: true, Connected: true, Info: &brckapi.SIMInfo{
				APNConfigured: true,
				Network:       &brckapi.APNSettings{APN: "safaricom", Username: "bob"},
				NetworkInfo:   brckapi.NetworkInfo{Operator: "Safaricom", NetworkType: "3G", IMEI: "350089999084990", SignalStrength: "18"},
			}},
			{ID: "SIM2", Name: "SIM 2", Index: intPtr(1), Available: true, Info: &brckapi.SIMInfo{}},
			{ID: "SIM3", Name: "SIM 3", Index: intPtr(2), Available: false, Info: &brckapi.SIMInfo{}},
		},
		brckapi.Ethernet: {
			{ID: "ETHERNET1", Name: "ETHERNET 1", Index: intPtr(0), Available: true, Connected: true, Info: &brckapi.EthernetInfo{
				DHCPEnabled: true,
				Network:     brckapi.EthernetNetwork{IPAddr: "192.168.1.50", Netmask: "255.255.255.0"},
			}},
		},
		brckapi.WiFi: {
			{ID: "WIFI1", Name: "Wireless 1", Index: intPtr(0), Available: true, Info: &brckapi.WiFiInfo{
				Mode: brckapi.WiFiNotConfigured, SSID: brckapi.WiFiNotConfigured, Encryption: "none",
				Channel: "auto", Hidden: "0", HWMode: "11g",
			}},
		},
	}
}

func (a *Appliance) routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(a.intercept)

	api.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, http.StatusOK, "pong") }).Methods("GET")
	api.HandleFunc("/auth", a.handleAuth).Methods("POST")
	api.HandleFunc("/auth/password", a.authed(a.handleChangePassword)).Methods("PATCH")
	api.HandleFunc("/device-mode", a.handleDeviceMode).Methods("GET")
	api.HandleFunc("/system", a.authed(a.handleSystem)).Methods("GET")
	api.HandleFunc("/system/software", a.authed(a.handleSoftware)).Methods("GET")
	api.HandleFunc("/system/diagnostics", a.authed(a.handleDiagnostics)).Methods("GET")
	api.HandleFunc("/power", a.authed(a.handlePower)).Methods("GET")
	api.HandleFunc("/power", a.authed(a.handleConfigurePower)).Methods("PATCH")
	api.HandleFunc("/ftp", a.authed(a.handleStorage)).Methods("GET")
	api.HandleFunc("/ftp", a.authed(a.handleConfigureFTP)).Methods("POST")
	api.HandleFunc("/networks/{kind}/", a.authed(a.handleConnections)).Methods("GET")
	api.HandleFunc("/networks/{kind}/{id}", a.authed(a.handleConfigure)).Methods("PATCH")

	r.HandleFunc("/{channel}", a.handlePush).Methods("GET")
	return r
}

// key names a route for counters, failures and holds, e.g. "PATCH /networks/sim/SIM1".
func key(method, path string) string {
	return method + " " + path
}

// intercept counts requests, records bodies, then applies holds and failures.
func (a *Appliance) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		k := key(r.Method, strings.TrimPrefix(r.URL.Path, "/api/v1"))

		var body map[string]any
		if r.Body != nil {
			data, _ := io.ReadAll(r.Body)
			_ = r.Body.Close()
			if len(data) > 0 {
				_ = json.Unmarshal(data, &body)
			}
			r.Body = io.NopCloser(strings.NewReader(string(data)))
		}

		a.mu.Lock()
		a.counts[k]++
		if body != nil {
			a.bodies[k] = append(a.bodies[k], body)
		}
		var hold *Hold
		if hs := a.holds[k]; len(hs) > 0 {
			hold, a.holds[k] = hs[0], hs[1:]
		}
		a.mu.Unlock()

		if hold != nil {
			close(hold.arrived)
			select {
			case <-hold.release:
			case <-r.Context().Done():
				return
			}
		}

		a.mu.Lock()
		var fail *Failure
		if fs := a.failures[k]; len(fs) > 0 {
			f := fs[0]
			fail, a.failures[k] = &f, fs[1:]
		}
		a.mu.Unlock()

		if fail != nil {
			writeJSON(w, fail.Status, fail.Body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Appliance) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(authHeader)
		a.mu.Lock()
		ok := token != "" && a.tokens[token]
		a.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"message": "Unauthorized",
				"errors":  []string{"Unauthorized access."},
			})
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func validationError(fields map[string]string) map[string]any {
	return map[string]any{"message": "Validation failed", "errors": fields}
}

func (a *Appliance) handleAuth(w http.ResponseWriter, r *http.Request) {
	var creds brckapi.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Bad request"})
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if creds.Login != a.login || bcrypt.CompareHashAndPassword(a.hash, []byte(creds.Password)) != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "Invalid credentials"})
		return
	}
	token := uuid.NewString()
	a.tokens[token] = true
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "password_changed": a.passwordChanged})
}

func (a *Appliance) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req brckapi.PasswordChange
	_ = json.NewDecoder(r.Body).Decode(&req)

	a.mu.Lock()
	defer a.mu.Unlock()
	errs := map[string]string{}
	if bcrypt.CompareHashAndPassword(a.hash, []byte(req.CurrentPassword)) != nil {
		errs["current_password"] = "incorrect password"
	}
	if req.Password == "" {
		errs["password"] = "password required"
	} else if req.Password != req.PasswordConfirmation {
		errs["password"] = "must be the same as: password_confirmation"
		errs["password_confirmation"] = "must be the same as: password"
	} else if req.Password == req.CurrentPassword {
		errs["password"] = "must not be equal to: current_password"
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, validationError(errs))
		return
	}
	a.setPassword(a.login, req.Password)
	a.passwordChanged = true
	writeJSON(w, http.StatusOK, "OK")
}

func (a *Appliance) handleDeviceMode(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	writeJSON(w, http.StatusOK, a.deviceMode)
}

func (a *Appliance) handleSystem(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	writeJSON(w, http.StatusOK, a.system)
}

func (a *Appliance) handleSoftware(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	writeJSON(w, http.StatusOK, a.software)
}

func (a *Appliance) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	writeJSON(w, http.StatusOK, a.diagnostics)
}

func (a *Appliance) handlePower(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	writeJSON(w, http.StatusOK, a.power)
}

func (a *Appliance) handleConfigurePower(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Power map[string]any `json:"power"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if mode, ok := req.Power["mode"].(string); ok && !brckapi.Contains(brckapi.PowerModes, mode) {
		writeJSON(w, http.StatusUnprocessableEntity, validationError(map[string]string{
			"mode": "must be one of " + strings.Join(brckapi.PowerModes, ","),
		}))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for k, v := range req.Power {
		a.power[k] = v
	}
	a.power["configured"] = true
	writeJSON(w, http.StatusOK, a.power)
}

func (a *Appliance) handleStorage(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	writeJSON(w, http.StatusOK, brckapi.StorageState{
		Storage: a.storage,
		FTP:     brckapi.FTPState{Configured: a.ftpLogin != "", Login: a.ftpLogin},
	})
}

func (a *Appliance) handleConfigureFTP(w http.ResponseWriter, r *http.Request) {
	var creds brckapi.Credentials
	_ = json.NewDecoder(r.Body).Decode(&creds)

	errs := map[string]string{}
	if creds.Login == "" {
		errs["login"] = "login required"
	}
	if creds.Password == "" {
		errs["password"] = "password required"
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(errs) == 0 && a.ftpLogin != "" && a.ftpLogin != creds.Login {
		errs["login"] = "FTP user has already been set up"
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, validationError(errs))
		return
	}
	a.ftpLogin = creds.Login
	writeJSON(w, http.StatusOK, "OK")
}

func (a *Appliance) handleConnections(w http.ResponseWriter, r *http.Request) {
	kind := brckapi.Interface(mux.Vars(r)["kind"])
	a.mu.Lock()
	defer a.mu.Unlock()
	slots, ok := a.slots[kind]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Error", "errors": []any{map[string]string{"network": "not found"}}})
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (a *Appliance) handleConfigure(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, id := brckapi.Interface(vars["kind"]), vars["id"]

	var req struct {
		Configuration map[string]any `json:"configuration"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Configuration == nil {
		req.Configuration = map[string]any{}
	}

	a.mu.Lock()
	hook := a.configureHook
	a.mu.Unlock()
	if hook != nil {
		status, body := hook(kind, id, req.Configuration)
		writeJSON(w, status, body)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	slots := a.slots[kind]
	idx := -1
	for i := range slots {
		if slots[i].ID == id {
			idx = i
		}
	}
	if idx < 0 || !slots[idx].Available {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "Device not found"})
		return
	}

	if errs := apply(&slots[idx], req.Configuration); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, validationError(errs))
		return
	}
	if kind == brckapi.SIM && !a.stopped {
		a.switches.Add(1)
		go a.switchSIM(id)
	}
	writeJSON(w, http.StatusOK, slots)
}

// switchSIM activates SIM id after the configuration reply has gone out and
// reports each step on the sim-connectivity channel. It stops at the first
// step that needs a PIN, PUK or APN.
func (a *Appliance) switchSIM(id string) {
	defer a.switches.Done()

	select {
	case <-a.stop:
		return
	case <-time.After(a.switchDelay):
	}

	events := []string{"DISABLE_3G_MONITOR", "STOP_WAN", "SELECTING_SIM", "CHECK_SIM"}
	a.mu.Lock()
	slots := a.slots[brckapi.SIM]
	idx := -1
	for i := range slots {
		if slots[i].ID == id {
			idx = i
		}
	}
	var info *brckapi.SIMInfo
	if idx >= 0 {
		info, _ = slots[idx].Info.(*brckapi.SIMInfo)
	}
	switch {
	case info == nil:
		events = append(events, "NO_MODEM")
	case info.PukLocked:
		events = append(events, "SIM_DETECTED", "CHECK_PIN", "REQUIRES_PUK")
	case info.PinLocked:
		events = append(events, "SIM_DETECTED", "CHECK_PIN", "REQUIRES_PIN")
	case !info.APNConfigured:
		events = append(events, "SIM_DETECTED", "CHECK_PIN", "PIN_NOT_REQUIRED", "SIM_READY", "REQUIRES_APN")
	default:
		for i := range slots {
			slots[i].Connected = i == idx
		}
		events = append(events, "SIM_DETECTED", "CHECK_PIN", "PIN_NOT_REQUIRED", "SIM_READY",
			"CHECK_CARRIER", "WAIT_CARRIER", "CARRIER_DETECTED", "START_WAN", "WAIT_CONNECTION",
			"CONNECTED", "ENABLE_3G_MONITOR")
	}
	a.mu.Unlock()

	for _, ev := range events {
		select {
		case <-a.stop:
			return
		default:
		}
		_ = a.Emit("sim-connectivity", "conn_event", map[string]string{"event": ev})
	}
}

// apply mutates slot the way the appliance would after a configuration call.
func apply(slot *brckapi.Slot, cfg map[string]any) map[string]string {
	str := func(k string) string {
		if v, ok := cfg[k]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return ""
	}

	switch info := slot.Info.(type) {
	case *brckapi.SIMInfo:
		if pin := str("pin"); pin != "" {
			if pin != PIN {
				return map[string]string{"pin": "PIN rejected"}
			}
			info.PinLocked = false
		}
		if puk := str("puk"); puk != "" {
			if puk != PUK {
				return map[string]string{"puk": "PUK rejected"}
			}
			info.PukLocked = false
			info.PinLocked = false
		}
		if nw, ok := cfg["network"].(map[string]any); ok {
			if info.Network == nil {
				info.Network = &brckapi.APNSettings{}
			}
			if v, ok := nw["apn"]; ok {
				info.Network.APN = fmt.Sprint(v)
			}
			if v, ok := nw["username"]; ok {
				info.Network.Username = fmt.Sprint(v)
			}
			info.APNConfigured = info.Network.APN != ""
		}

	case *brckapi.EthernetInfo:
		dhcp, ok := cfg["dhcp_enabled"].(bool)
		if !ok {
			return map[string]string{"dhcp_enabled": "must be one of True,False"}
		}
		info.DHCPEnabled = dhcp
		if dhcp {
			info.Network.Gateway, info.Network.DNS = "", ""
		} else if nw, ok := cfg["network"].(map[string]any); ok {
			for k, dst := range map[string]*string{
				"ipaddr":  &info.Network.IPAddr,
				"netmask": &info.Network.Netmask,
				"gateway": &info.Network.Gateway,
				"dns":     &info.Network.DNS,
			} {
				if v, ok := nw[k]; ok {
					*dst = fmt.Sprint(v)
				}
			}
		}
		slot.Connected = true

	case *brckapi.WiFiInfo:
		if str("mode") == "" || str("ssid") == "" {
			return map[string]string{"ssid": "ssid required"}
		}
		info.Mode, info.SSID = str("mode"), str("ssid")
		if v := str("encryption"); v != "" {
			info.Encryption = v
		}
		if _, ok := cfg["key"]; ok {
			info.Key = str("key")
		}
		if v := str("channel"); v != "" {
			info.Channel = brckapi.FlexString(v)
		}
		if v := str("hidden"); v != "" {
			info.Hidden = brckapi.FlexString(v)
		}
		if v := str("hwmode"); v != "" {
			info.HWMode = v
		}
		slot.Connected = info.Mode == brckapi.WiFiModeSTA
	}
	return nil
}
