package brckapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brck/brckctl/internal/session"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *session.MemoryStore) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := session.NewMemoryStore()
	return NewClient(server.URL+"/api/v1/", store), store
}

func TestNewClient(t *testing.T) {
	c := NewClient("", nil)
	if c.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %s, want %s", c.BaseURL, DefaultBaseURL)
	}
	if c.ReadTimeout != DefaultReadTimeout || c.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("timeouts = %v/%v", c.ReadTimeout, c.WriteTimeout)
	}
	if c.Session() == nil {
		t.Error("Session() should default to a memory store")
	}

	c.SetTimeouts(3*time.Second, 0)
	if c.ReadTimeout != 3*time.Second || c.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("SetTimeouts() = %v/%v", c.ReadTimeout, c.WriteTimeout)
	}
}

func TestDoAttachesToken(t *testing.T) {
	var gotToken, gotPath string
	c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get(AuthHeader)
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, `{"storage":{"total_space":100,"used_space":40},"battery":{"battery_level":87},"network":{"connected_clients":3,"connection":{"connection_type":"WAN"}}}`)
	})
	_ = store.Save(session.State{Token: "secret-token"})

	sys, err := c.System(context.Background())
	if err != nil {
		t.Fatalf("System() error = %v", err)
	}
	if gotToken != "secret-token" {
		t.Errorf("%s = %q, want secret-token", AuthHeader, gotToken)
	}
	if gotPath != "/api/v1/system" {
		t.Errorf("path = %s, want /api/v1/system", gotPath)
	}
	if sys.Battery.BatteryLevel != "87" || sys.Network.ConnectedClients != 3 {
		t.Errorf("System() = %+v", sys)
	}
}

func TestPingIsUnauthenticated(t *testing.T) {
	var gotToken string
	c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get(AuthHeader)
		_, _ = io.WriteString(w, `"pong"`)
	})
	_ = store.Save(session.State{Token: "t"})

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if gotToken != "" {
		t.Errorf("Ping() sent token %q", gotToken)
	}
}

func TestUnauthorizedClearsSessionOnce(t *testing.T) {
	c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Unauthorized","errors":["Unauthorized access."]}`)
	})
	_ = store.Save(session.State{Token: "stale"})

	var fired int32
	c.OnSessionExpired(func() { atomic.AddInt32(&fired, 1) })

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.System(context.Background())
			if !IsSession(err) {
				t.Errorf("System() error = %v, want session error", err)
			}
		}()
	}
	wg.Wait()

	if _, ok := store.Load(); ok {
		t.Error("session should be cleared after 401")
	}
	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Errorf("OnSessionExpired fired %d times, want 1", n)
	}
}

func TestValidationError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"message":"Error","errors":{"ssid":"ssid required"}}`)
	})

	_, err := c.ConfigureConnection(context.Background(), WiFi, "WIFI1", map[string]any{"mode": "ap"})
	if !IsValidation(err) {
		t.Fatalf("error = %v, want validation", err)
	}
	if FieldErrors(err)["ssid"] != "ssid required" {
		t.Errorf("FieldErrors() = %v", FieldErrors(err))
	}
	var apiErr *Error
	if e, ok := err.(*Error); ok {
		apiErr = e
	}
	if apiErr == nil || apiErr.Method != http.MethodPatch || apiErr.Path != "/networks/wifi/WIFI1" {
		t.Errorf("error context = %+v", apiErr)
	}
}

func TestServerErrorIsNotRetried(t *testing.T) {
	var hits int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Power(context.Background())
	if !IsOperational(err) {
		t.Fatalf("error = %v, want operational", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestUnreachableFiresHook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient(url, session.NewMemoryStore())
	var got error
	c.OnUnreachable(func(err error) { got = err })

	err := c.Ping(context.Background())
	if !IsUnreachable(err) {
		t.Fatalf("Ping() error = %v, want unreachable", err)
	}
	if got == nil {
		t.Error("OnUnreachable was not called")
	}
}

func TestReadTimeout(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)
	c.SetTimeouts(50*time.Millisecond, time.Minute)

	start := time.Now()
	_, err := c.Software(context.Background())
	if !IsUnreachable(err) {
		t.Fatalf("Software() error = %v, want unreachable", err)
	}
	if e := err.(*Error); e.NetworkSubtype != NetworkErrorTimeout {
		t.Errorf("NetworkSubtype = %v, want timeout", e.NetworkSubtype)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("read timeout not applied, took %v", elapsed)
	}
}

func TestCanceledContextDoesNotFireHook(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	fired := false
	c.OnUnreachable(func(error) { fired = true })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Ping(ctx); err == nil {
		t.Fatal("Ping() with canceled context should fail")
	}
	if fired {
		t.Error("cancellation must not be reported as unreachable")
	}
}

func TestParseError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"os": 12`)
	})
	if _, err := c.Software(context.Background()); !IsParse(err) {
		t.Errorf("Software() error = %v, want parse error", err)
	}
}

func TestAuthenticate(t *testing.T) {
	var body Credentials
	c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/auth" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{"token":"new-token","password_changed":false}`)
	})

	res, err := c.Authenticate(context.Background(), Credentials{Login: "admin", Password: "pw"})
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if res.Token != "new-token" || res.PasswordChanged == nil || *res.PasswordChanged {
		t.Errorf("Authenticate() = %+v", res)
	}
	if body.Login != "admin" || body.Password != "pw" {
		t.Errorf("request body = %+v", body)
	}
	if _, ok := store.Load(); ok {
		t.Error("Authenticate() must not write the session store")
	}
}

func TestConfigureConnectionReplies(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantIDs []string
	}{
		{"list", `[{"id":"SIM1","available":true,"info":{}},{"id":"SIM2","available":false,"info":{}}]`, []string{"SIM1", "SIM2"}},
		{"single", `{"id":"SIM2","available":true,"connected":true,"info":{}}`, []string{"SIM2"}},
		{"ack", `"OK"`, nil},
		{"empty", ``, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent map[string]any
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewDecoder(r.Body).Decode(&sent)
				_, _ = io.WriteString(w, tt.reply)
			})

			slots, err := c.ConfigureConnection(context.Background(), SIM, "SIM2", nil)
			if err != nil {
				t.Fatalf("ConfigureConnection() error = %v", err)
			}
			if len(slots) != len(tt.wantIDs) {
				t.Fatalf("got %d slots, want %d", len(slots), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if slots[i].ID != id {
					t.Errorf("slots[%d] = %s, want %s", i, slots[i].ID, id)
				}
			}
			cfg, ok := sent["configuration"].(map[string]any)
			if !ok || len(cfg) != 0 {
				t.Errorf("sent = %v, want empty configuration object", sent)
			}
		})
	}
}

func TestConfigurePowerEnvelope(t *testing.T) {
	var sent map[string]map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&sent)
	})

	if err := c.ConfigurePower(context.Background(), map[string]any{"mode": "NORMAL", "soc_on": 20}); err != nil {
		t.Fatalf("ConfigurePower() error = %v", err)
	}
	if sent["power"]["mode"] != "NORMAL" || sent["power"]["soc_on"] != float64(20) {
		t.Errorf("sent = %v", sent)
	}
}
