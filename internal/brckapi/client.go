package brckapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brck/brckctl/internal/logging"
	"github.com/brck/brckctl/internal/session"
	"github.com/brck/brckctl/internal/version"
)

const (
	// AuthHeader carries the session token on every authenticated call.
	AuthHeader = "X-Auth-Token-Key"

	// DefaultBaseURL is where a factory appliance serves its API.
	DefaultBaseURL = "http://local.brck.com/api/v1"

	// DefaultReadTimeout bounds status reads.
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout bounds configuration calls. Interface
	// reconfiguration on the appliance can take tens of seconds.
	DefaultWriteTimeout = 30 * time.Second

	// maxBodySize caps how much of a response is read.
	maxBodySize = 4 << 20
)

// Client talks to the appliance REST API.
//
// A Client never retries. A 401 clears the session store and fires the
// session-expired hook once per session. A transport failure fires the
// unreachable hook. Every other failure is returned to the caller as *Error.
type Client struct {
	// BaseURL is the API root, e.g. "http://local.brck.com/api/v1"
	BaseURL string

	// HTTPClient is the underlying HTTP client. Per-call deadlines come from
	// ReadTimeout and WriteTimeout, not HTTPClient.Timeout.
	HTTPClient *http.Client

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	store session.Store

	hookMu           sync.RWMutex
	onSessionExpired func()
	onUnreachable    func(error)
}

// NewClient creates a client for baseURL using store for the token.
func NewClient(baseURL string, store session.Store) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if store == nil {
		store = session.NewMemoryStore()
	}
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		HTTPClient:   &http.Client{},
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		store:        store,
	}
}

// SetTimeouts sets the read and write deadlines. Zero keeps the current value.
func (c *Client) SetTimeouts(read, write time.Duration) {
	if read > 0 {
		c.ReadTimeout = read
	}
	if write > 0 {
		c.WriteTimeout = write
	}
}

// Session returns the store the client reads its token from.
func (c *Client) Session() session.Store {
	return c.store
}

// OnSessionExpired registers fn to run after a 401 cleared a live session.
func (c *Client) OnSessionExpired(fn func()) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onSessionExpired = fn
}

// OnUnreachable registers fn to run after a transport failure.
func (c *Client) OnUnreachable(fn func(error)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onUnreachable = fn
}

// call describes one request.
type call struct {
	method  string
	path    string
	body    any
	out     any
	auth    bool
	timeout time.Duration
}

// Do performs an authenticated JSON call. GET uses the read timeout, every
// other method the write timeout. out may be nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	timeout := c.WriteTimeout
	if method == http.MethodGet || method == http.MethodHead {
		timeout = c.ReadTimeout
	}
	return c.do(ctx, call{method: method, path: path, body: body, out: out, auth: true, timeout: timeout})
}

// DoRaw is Do returning the undecoded 2xx body.
func (c *Client) DoRaw(ctx context.Context, method, path string, body any) ([]byte, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, method, path, body, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, cl call) error {
	if cl.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cl.timeout)
		defer cancel()
	}

	var reader io.Reader
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s body: %w", cl.method, cl.path, err)
		}
		reader = bytes.NewReader(data)
	}

	url := c.BaseURL + cl.path
	req, err := http.NewRequestWithContext(ctx, cl.method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", cl.method, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	authenticated := false
	if cl.auth {
		if st, ok := c.store.Load(); ok {
			req.Header.Set(AuthHeader, st.Token)
			authenticated = true
		}
	}

	logging.LogHTTPRequest(cl.method, url, authenticated)
	start := time.Now()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return c.transportFailure(cl, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return c.transportFailure(cl, err)
	}
	logging.LogHTTPResponse(cl.method, url, resp.StatusCode, time.Since(start), data)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newStatusError(resp.StatusCode, data)
		apiErr.Method, apiErr.Path = cl.method, cl.path
		if apiErr.Kind == KindSession {
			c.sessionExpired()
		}
		return apiErr
	}

	if cl.out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if raw, ok := cl.out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, cl.out); err != nil {
		pe := NewParseError(fmt.Sprintf("unexpected response from %s %s", cl.method, cl.path), err)
		pe.Method, pe.Path, pe.StatusCode = cl.method, cl.path, resp.StatusCode
		return pe
	}
	return nil
}

func (c *Client) transportFailure(cl call, err error) error {
	classified := ClassifyNetworkError(err)
	if classified == nil {
		return err
	}
	classified.Method, classified.Path = cl.method, cl.path

	logging.Warn("Appliance unreachable",
		zap.String("method", cl.method),
		zap.String("path", cl.path),
		zap.Error(err),
	)

	c.hookMu.RLock()
	fn := c.onUnreachable
	c.hookMu.RUnlock()
	if fn != nil {
		fn(classified)
	}
	return classified
}

// sessionExpired clears the store and fires the hook only when this 401
// ended a live session, so a burst of 401s triggers one redirect.
func (c *Client) sessionExpired() {
	had, err := c.store.Clear()
	if err != nil {
		logging.Warn("Failed to clear session", zap.Error(err))
	}
	if !had {
		return
	}
	logging.Info("Session expired, token cleared")

	c.hookMu.RLock()
	fn := c.onSessionExpired
	c.hookMu.RUnlock()
	if fn != nil {
		fn()
	}
}
