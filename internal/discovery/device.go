package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// APIPath is where the REST API lives on an appliance.
const APIPath = "/api/v1"

// Appliance is a BRCK found on the network.
type Appliance struct {
	// Serial is the suffix after the brck prefix, e.g. "0a1b2c". It may be
	// empty for an appliance advertising a bare "brck.local".
	Serial string

	// Hostname is the mDNS hostname, e.g. "supabrck-0a1b2c.local."
	Hostname string

	IP   string
	Port int

	// Metadata holds the TXT records.
	Metadata map[string]string

	DiscoveredAt time.Time
}

// String returns a one-line description.
func (a *Appliance) String() string {
	return fmt.Sprintf("BRCK %s at %s", a.Hostname, net.JoinHostPort(a.IP, strconv.Itoa(a.Port)))
}

// BaseURL returns the appliance's HTTP root.
func (a *Appliance) BaseURL() string {
	host := net.JoinHostPort(a.IP, strconv.Itoa(a.Port))
	if a.Port == DefaultPort {
		host = a.IP
		if ip := net.ParseIP(a.IP); ip != nil && ip.To4() == nil {
			host = "[" + a.IP + "]"
		}
	}
	return "http://" + host
}

// APIURL returns the REST base URL. An "api" TXT record overrides APIPath.
func (a *Appliance) APIURL() string {
	path := a.GetMetadata("api")
	if path == "" {
		path = APIPath
	}
	return a.BaseURL() + path
}

// GetMetadata returns a TXT value or "".
func (a *Appliance) GetMetadata(key string) string {
	if a.Metadata == nil {
		return ""
	}
	return a.Metadata[key]
}
