// Package session holds the appliance session: the auth token and whether
// the appliance still demands a password change.
//
// Two stores are provided. MemoryStore keeps state for the life of the
// process. FileStore persists it as YAML in the brckctl config directory so
// consecutive CLI invocations share one login.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/brck/brckctl/internal/config"
)

const sessionFile = "session.yaml"

// State is one authenticated session.
type State struct {
	Token string `yaml:"token"`
	// PasswordChanged is nil when the appliance did not say.
	PasswordChanged *bool `yaml:"password_changed,omitempty"`
}

// MustChangePassword reports whether the appliance wants a new password
// before anything else.
func (s State) MustChangePassword() bool {
	return s.PasswordChanged != nil && !*s.PasswordChanged
}

// Store is the session store shared by the API client and the auth gate.
type Store interface {
	// Load returns the current state and whether a token is present.
	Load() (State, bool)
	// Save replaces the current state.
	Save(State) error
	// SetPasswordChanged records the outcome of a password change.
	SetPasswordChanged(bool) error
	// Clear removes the session and reports whether there was one.
	Clear() (bool, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.state.Token != ""
}

func (m *MemoryStore) Save(s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	return nil
}

func (m *MemoryStore) SetPasswordChanged(changed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.PasswordChanged = &changed
	return nil
}

func (m *MemoryStore) Clear() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	had := m.state.Token != ""
	m.state = State{}
	return had, nil
}

// FileStore persists the session as YAML. The file is written with 0600
// permissions through an atomic rename.
type FileStore struct {
	mu   sync.Mutex
	path string
	mem  MemoryStore
}

// OpenFileStore opens the store at path, reading any existing session.
func OpenFileStore(path string) (*FileStore, error) {
	f := &FileStore{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	f.mem.state = s
	return f, nil
}

// OpenDefault opens session.yaml in the brckctl config directory.
func OpenDefault() (*FileStore, error) {
	dir, err := config.EnsureConfigDir()
	if err != nil {
		return nil, err
	}
	return OpenFileStore(filepath.Join(dir, sessionFile))
}

// Path returns the backing file.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load() (State, bool) {
	return f.mem.Load()
}

func (f *FileStore) Save(s State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.mem.Save(s)
	return f.flush()
}

func (f *FileStore) SetPasswordChanged(changed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.mem.SetPasswordChanged(changed)
	return f.flush()
}

func (f *FileStore) Clear() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	had, _ := f.mem.Clear()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return had, fmt.Errorf("failed to remove session file: %w", err)
	}
	return had, nil
}

func (f *FileStore) flush() error {
	s, _ := f.mem.Load()
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return config.WriteFileAtomic(f.path, data)
}
