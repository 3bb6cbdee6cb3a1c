package discovery

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/brck/brckctl/internal/logging"
)

const (
	// ServiceType is the service BRCK appliances advertise their web API under.
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain.
	ServiceDomain = "local."

	DefaultScanTimeout = 5 * time.Second

	DefaultPort = 80
)

// ErrNotFound is returned by Find when no appliance answered in time.
var ErrNotFound = errors.New("no BRCK appliance found on the local network")

// hostPattern matches appliance hostnames such as "supabrck-0a1b2c.local."
// and "brck.local".
var hostPattern = regexp.MustCompile(`(?i)^(?:supa)?brck(?:[-_]([0-9a-z]+))?\.local\.?$`)

// Browser is the part of zeroconf.Resolver the scanner uses.
type Browser interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// Scanner browses mDNS for appliances.
type Scanner struct {
	Timeout time.Duration

	// NewBrowser creates the resolver. Nil uses zeroconf.NewResolver.
	NewBrowser func() (Browser, error)
}

// NewScanner creates a scanner with the default timeout.
func NewScanner() *Scanner {
	return &Scanner{Timeout: DefaultScanTimeout}
}

func (s *Scanner) browser() (Browser, error) {
	if s.NewBrowser != nil {
		return s.NewBrowser()
	}
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Scan browses until the timeout or ctx ends and returns every appliance
// seen, deduplicated by hostname and sorted.
func (s *Scanner) Scan(ctx context.Context) ([]*Appliance, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		mu    sync.Mutex
		found = make(map[string]*Appliance)
	)
	err := s.browse(ctx, func(a *Appliance) bool {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := found[a.Hostname]; !ok {
			logging.Debug("Discovered appliance", zap.String("hostname", a.Hostname), zap.String("ip", a.IP))
		}
		found[a.Hostname] = a
		return false
	})
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	list := make([]*Appliance, 0, len(found))
	for _, a := range found {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Hostname < list[j].Hostname })
	return list, nil
}

// Find returns the first appliance to answer, or ErrNotFound.
func (s *Scanner) Find(ctx context.Context) (*Appliance, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	result := make(chan *Appliance, 1)
	err := s.browse(ctx, func(a *Appliance) bool {
		select {
		case result <- a:
		default:
		}
		cancel()
		return true
	})
	if err != nil {
		return nil, err
	}
	select {
	case a := <-result:
		return a, nil
	default:
		return nil, ErrNotFound
	}
}

// browse runs one browse session, handing each appliance to fn until fn
// returns true or ctx ends. It returns once the entry reader has finished.
func (s *Scanner) browse(ctx context.Context, fn func(*Appliance) bool) error {
	b, err := s.browser()
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	go func() {
		defer close(done)
		stopped := false
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if stopped {
					continue
				}
				if a := parseServiceEntry(entry); a != nil {
					stopped = fn(a)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := b.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	<-ctx.Done()
	<-done
	return nil
}

// parseServiceEntry converts a service entry to an Appliance. It returns nil
// for anything that is not a BRCK.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Appliance {
	if entry == nil || entry.HostName == "" {
		return nil
	}
	m := hostPattern.FindStringSubmatch(entry.HostName)
	if m == nil {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string, len(entry.Text))
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	return &Appliance{
		Serial:       strings.ToLower(m[1]),
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
