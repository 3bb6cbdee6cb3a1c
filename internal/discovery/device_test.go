package discovery

import "testing"

func TestAppliance_String(t *testing.T) {
	a := &Appliance{Hostname: "supabrck-0a1b2c.local.", IP: "192.168.88.1", Port: 80}

	want := "BRCK supabrck-0a1b2c.local. at 192.168.88.1:80"
	if got := a.String(); got != want {
		t.Errorf("Appliance.String() = %v, want %v", got, want)
	}
}

func TestAppliance_APIURL(t *testing.T) {
	tests := []struct {
		name     string
		app      *Appliance
		expected string
	}{
		{
			name:     "default port",
			app:      &Appliance{IP: "192.168.88.1", Port: 80},
			expected: "http://192.168.88.1/api/v1",
		},
		{
			name:     "custom port",
			app:      &Appliance{IP: "10.0.0.5", Port: 8080},
			expected: "http://10.0.0.5:8080/api/v1",
		},
		{
			name:     "ipv6",
			app:      &Appliance{IP: "fe80::1", Port: 80},
			expected: "http://[fe80::1]/api/v1",
		},
		{
			name:     "api path from TXT record",
			app:      &Appliance{IP: "192.168.88.1", Port: 80, Metadata: map[string]string{"api": "/api/v2"}},
			expected: "http://192.168.88.1/api/v2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.app.APIURL(); got != tt.expected {
				t.Errorf("Appliance.APIURL() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAppliance_GetMetadata(t *testing.T) {
	a := &Appliance{}
	if got := a.GetMetadata("path"); got != "" {
		t.Errorf("GetMetadata() on nil map = %q, want empty", got)
	}
	a.Metadata = map[string]string{"path": "/"}
	if got := a.GetMetadata("path"); got != "/" {
		t.Errorf("GetMetadata(path) = %q, want /", got)
	}
}
