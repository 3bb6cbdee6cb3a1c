package config

import (
	"net/url"
	"strings"
	"time"
)

// Defaults for a factory appliance reached through its local hostname.
const (
	DefaultURL             = "http://local.brck.com/api/v1"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultPollInterval    = 10 * time.Second
	DefaultDiscoverTimeout = 5
	DefaultLogin           = "admin"
)

// Settings represents the entire user configuration file.
type Settings struct {
	Version     int                   `yaml:"version"`
	Appliance   *Appliance            `yaml:"appliance"`
	Preferences *Preferences          `yaml:"preferences,omitempty"`
	Known       map[string]*KnownHost `yaml:"known,omitempty"` // Keyed by mDNS hostname
}

// Appliance holds how to reach the appliance API.
type Appliance struct {
	URL          string        `yaml:"url"`                // REST base, e.g. http://local.brck.com/api/v1
	PushURL      string        `yaml:"push_url,omitempty"` // Push base; derived from URL when empty
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	AutoDiscover    bool          `yaml:"auto_discover"`    // Fall back to mDNS when the URL does not answer
	DiscoverTimeout int           `yaml:"discover_timeout"` // mDNS timeout in seconds
	DefaultLogin    string        `yaml:"default_login,omitempty"`
}

// KnownHost records an appliance found by discovery.
type KnownHost struct {
	Nickname string    `yaml:"nickname,omitempty"`
	URL      string    `yaml:"url"`
	LastSeen time.Time `yaml:"last_seen,omitempty"`
}

// NewSettings creates Settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Version: 1,
		Appliance: &Appliance{
			URL:          DefaultURL,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
		},
		Preferences: &Preferences{
			PollInterval:    DefaultPollInterval,
			AutoDiscover:    true,
			DiscoverTimeout: DefaultDiscoverTimeout,
			DefaultLogin:    DefaultLogin,
		},
		Known: make(map[string]*KnownHost),
	}
}

// fillDefaults replaces zero values left by a partial file.
func (s *Settings) fillDefaults() {
	def := NewSettings()
	if s.Appliance == nil {
		s.Appliance = def.Appliance
	}
	if s.Appliance.URL == "" {
		s.Appliance.URL = DefaultURL
	}
	if s.Appliance.ReadTimeout <= 0 {
		s.Appliance.ReadTimeout = DefaultReadTimeout
	}
	if s.Appliance.WriteTimeout <= 0 {
		s.Appliance.WriteTimeout = DefaultWriteTimeout
	}
	if s.Preferences == nil {
		s.Preferences = def.Preferences
	}
	if s.Preferences.PollInterval <= 0 {
		s.Preferences.PollInterval = DefaultPollInterval
	}
	if s.Preferences.DiscoverTimeout <= 0 {
		s.Preferences.DiscoverTimeout = DefaultDiscoverTimeout
	}
	if s.Known == nil {
		s.Known = make(map[string]*KnownHost)
	}
}

// PushBaseURL returns the push endpoint base. Without an explicit push URL it
// is the REST base with a ws scheme and the API path stripped.
func (a *Appliance) PushBaseURL() string {
	if a.PushURL != "" {
		return strings.TrimRight(a.PushURL, "/")
	}
	u, err := url.Parse(a.URL)
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = ""
	u.RawQuery = ""
	return u.String()
}

// RememberHost records a discovered appliance.
func (s *Settings) RememberHost(hostname, baseURL string, seen time.Time) *KnownHost {
	if s.Known == nil {
		s.Known = make(map[string]*KnownHost)
	}
	h, ok := s.Known[hostname]
	if !ok {
		h = &KnownHost{}
		s.Known[hostname] = h
	}
	h.URL = baseURL
	h.LastSeen = seen
	return h
}

// Host returns the record for hostname, or nil.
func (s *Settings) Host(hostname string) *KnownHost {
	return s.Known[hostname]
}
