// Package authstore persists per-session OAuth credential bundles.
//
// A session key is an opaque identifier minted after a successful OAuth
// callback and carried by the browser as a cookie. The store maps session
// keys to credential bundles and is rewritten in full on every save.
package authstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Credentials is the OAuth credential bundle stored for one session.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenURI     string    `json:"token_uri"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	Scopes       []string  `json:"scopes"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Token converts the bundle into an oauth2.Token for use with a TokenSource.
func (c *Credentials) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       c.Expiry,
	}
}

// Store is the credential store injected into the gateways.
// Reads happen on every authenticated request; writes happen only during the
// OAuth callback flow and token refresh, so implementations must be safe
// under concurrent reads.
type Store interface {
	// Get returns the credentials for the session key, or false when the
	// session is unknown. An unknown session is unauthenticated, not an error.
	Get(key string) (*Credentials, bool)

	// Set associates credentials with a session key.
	Set(key string, creds *Credentials)

	// Save writes a full snapshot of the store to durable storage.
	Save() error

	// Load replaces the in-memory state with the persisted snapshot.
	// A missing snapshot yields an empty store.
	Load() error
}

// FileStore keeps the session map in memory and snapshots it to a single
// JSON file. Snapshot writes go through a temp file and an atomic rename so
// concurrent loaders never observe a partially written file.
type FileStore struct {
	mu    sync.RWMutex
	path  string
	creds map[string]*Credentials
}

// NewFileStore creates a FileStore backed by the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:  path,
		creds: make(map[string]*Credentials),
	}
}

// Get returns the credentials for a session key.
func (s *FileStore) Get(key string) (*Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.creds[key]
	if !ok {
		return nil, false
	}
	// Copy so callers can't mutate the stored bundle without Set.
	cp := *c
	return &cp, true
}

// Set associates credentials with a session key.
func (s *FileStore) Set(key string, creds *Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *creds
	s.creds[key] = &cp
}

// Len returns the number of stored sessions.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}

// Save snapshots the whole map to disk.
func (s *FileStore) Save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.creds, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal credential store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}

	return nil
}

// Load reads the snapshot from disk. A missing file starts an empty store.
func (s *FileStore) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.mu.Lock()
			s.creds = make(map[string]*Credentials)
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("read credential store: %w", err)
	}

	creds := make(map[string]*Credentials)
	if err := json.Unmarshal(data, &creds); err != nil {
		return fmt.Errorf("decode credential store: %w", err)
	}

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
	return nil
}
