package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name       string
		entry      *zeroconf.ServiceEntry
		wantNil    bool
		wantSerial string
		wantIP     string
		wantPort   int
	}{
		{
			name: "supabrck with IPv4",
			entry: &zeroconf.ServiceEntry{
				HostName: "supabrck-0A1B2C.local.",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.88.1")},
				Text:     []string{"path=/"},
			},
			wantSerial: "0a1b2c",
			wantIP:     "192.168.88.1",
			wantPort:   80,
		},
		{
			name: "bare brck hostname",
			entry: &zeroconf.ServiceEntry{
				HostName: "brck.local",
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantSerial: "",
			wantIP:     "10.0.0.5",
			wantPort:   DefaultPort,
		},
		{
			name: "custom port",
			entry: &zeroconf.ServiceEntry{
				HostName: "brck_77.local.",
				Port:     8080,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.100")},
			},
			wantSerial: "77",
			wantIP:     "192.168.1.100",
			wantPort:   8080,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				HostName: "supabrck-1.local.",
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
			},
			wantSerial: "1",
			wantIP:     "fe80::1",
			wantPort:   DefaultPort,
		},
		{
			name: "prefers IPv4",
			entry: &zeroconf.ServiceEntry{
				HostName: "supabrck-2.local.",
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.50")},
				AddrIPv6: []net.IP{net.ParseIP("fe80::2")},
			},
			wantSerial: "2",
			wantIP:     "192.168.1.50",
			wantPort:   DefaultPort,
		},
		{
			name: "printer",
			entry: &zeroconf.ServiceEntry{
				HostName: "office-printer.local.",
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")},
			},
			wantNil: true,
		},
		{
			name:    "empty hostname",
			entry:   &zeroconf.ServiceEntry{AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")}},
			wantNil: true,
		},
		{
			name:    "no address",
			entry:   &zeroconf.ServiceEntry{HostName: "supabrck-3.local."},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if a != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", a)
				}
				return
			}
			if a == nil {
				t.Fatal("parseServiceEntry() = nil, want appliance")
			}
			if a.Serial != tt.wantSerial {
				t.Errorf("Serial = %v, want %v", a.Serial, tt.wantSerial)
			}
			if a.IP != tt.wantIP {
				t.Errorf("IP = %v, want %v", a.IP, tt.wantIP)
			}
			if a.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", a.Port, tt.wantPort)
			}
			if a.Hostname != tt.entry.HostName {
				t.Errorf("Hostname = %v, want %v", a.Hostname, tt.entry.HostName)
			}
		})
	}
}

func TestParseServiceEntry_Metadata(t *testing.T) {
	a := parseServiceEntry(&zeroconf.ServiceEntry{
		HostName: "supabrck-0a1b2c.local.",
		AddrIPv4: []net.IP{net.ParseIP("192.168.88.1")},
		Text:     []string{"path=/", "api=/api/v1", "flag"},
	})
	if a == nil {
		t.Fatal("parseServiceEntry() = nil, want appliance")
	}

	want := map[string]string{"path": "/", "api": "/api/v1", "flag": ""}
	if len(a.Metadata) != len(want) {
		t.Errorf("Metadata has %d entries, want %d", len(a.Metadata), len(want))
	}
	for k, v := range want {
		if got, ok := a.Metadata[k]; !ok || got != v {
			t.Errorf("Metadata[%q] = %q, want %q", k, got, v)
		}
	}
}

// fakeBrowser replays entries the way zeroconf does: asynchronously, until
// ctx ends.
type fakeBrowser struct {
	entries []*zeroconf.ServiceEntry
	err     error
}

func (f *fakeBrowser) Browse(ctx context.Context, service, domain string, out chan<- *zeroconf.ServiceEntry) error {
	if f.err != nil {
		return f.err
	}
	go func() {
		for _, e := range f.entries {
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func scannerWith(b Browser, timeout time.Duration) *Scanner {
	return &Scanner{
		Timeout:    timeout,
		NewBrowser: func() (Browser, error) { return b, nil },
	}
}

func TestScan(t *testing.T) {
	b := &fakeBrowser{entries: []*zeroconf.ServiceEntry{
		{HostName: "supabrck-b.local.", AddrIPv4: []net.IP{net.ParseIP("192.168.88.2")}},
		{HostName: "nas.local.", AddrIPv4: []net.IP{net.ParseIP("192.168.88.9")}},
		{HostName: "supabrck-a.local.", AddrIPv4: []net.IP{net.ParseIP("192.168.88.1")}},
		{HostName: "supabrck-b.local.", AddrIPv4: []net.IP{net.ParseIP("192.168.88.3")}},
	}}

	found, err := scannerWith(b, 100*time.Millisecond).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("Scan() found %d appliances, want 2", len(found))
	}
	if found[0].Hostname != "supabrck-a.local." || found[1].Hostname != "supabrck-b.local." {
		t.Errorf("Scan() order = %v, %v", found[0].Hostname, found[1].Hostname)
	}
	if found[1].IP != "192.168.88.3" {
		t.Errorf("duplicate hostname kept IP %v, want the latest", found[1].IP)
	}
}

func TestFind(t *testing.T) {
	b := &fakeBrowser{entries: []*zeroconf.ServiceEntry{
		{HostName: "nas.local.", AddrIPv4: []net.IP{net.ParseIP("192.168.88.9")}},
		{HostName: "supabrck-a.local.", AddrIPv4: []net.IP{net.ParseIP("192.168.88.1")}},
	}}

	start := time.Now()
	a, err := scannerWith(b, 5*time.Second).Find(context.Background())
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if a.APIURL() != "http://192.168.88.1/api/v1" {
		t.Errorf("APIURL() = %v", a.APIURL())
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Find() waited for the full timeout")
	}
}

func TestFindNothing(t *testing.T) {
	_, err := scannerWith(&fakeBrowser{}, 20*time.Millisecond).Find(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Find() error = %v, want ErrNotFound", err)
	}
}

func TestBrowseError(t *testing.T) {
	_, err := scannerWith(&fakeBrowser{err: errors.New("no multicast")}, time.Second).Scan(context.Background())
	if err == nil {
		t.Error("Scan() error = nil, want browse error")
	}
}

func TestNewScanner(t *testing.T) {
	if s := NewScanner(); s.Timeout != DefaultScanTimeout {
		t.Errorf("Timeout = %v, want %v", s.Timeout, DefaultScanTimeout)
	}
}
