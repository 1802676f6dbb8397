// Package google handles the Google OAuth2 web flow and builds authenticated
// HTTP clients from stored per-session credential bundles.
package google

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested during login. Gmail read/send/modify plus calendar
// listing and event management.
var Scopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/calendar.calendarlist.readonly",
	"https://www.googleapis.com/auth/calendar.events",
}

// Config holds the OAuth client settings for the web flow.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// OAuthConfig returns the oauth2 configuration for the web flow.
func (c Config) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  c.RedirectURL,
		Scopes:       Scopes,
	}
}

// stateTTL bounds how long an authorization URL stays redeemable.
const stateTTL = 5 * time.Minute

// Flow drives the authorization-code flow with CSRF state tracking.
type Flow struct {
	cfg *oauth2.Config

	mu     sync.Mutex
	states map[string]time.Time
}

// NewFlow creates a Flow for the given OAuth client settings.
func NewFlow(cfg Config) *Flow {
	return &Flow{
		cfg:    cfg.OAuthConfig(),
		states: make(map[string]time.Time),
	}
}

// AuthURL generates the authorization URL with a fresh random state.
// Offline access with forced consent so a refresh token is always issued.
func (f *Flow) AuthURL() (string, error) {
	state, err := f.generateState()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}

	return f.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

func (f *Flow) generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.URLEncoding.EncodeToString(b)

	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	f.states[state] = now.Add(stateTTL)

	for s, exp := range f.states {
		if exp.Before(now) {
			delete(f.states, s)
		}
	}

	return state, nil
}

// ValidateState consumes a state value. Each state is redeemable once.
func (f *Flow) ValidateState(state string) bool {
	if state == "" {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	expiry, exists := f.states[state]
	if !exists {
		return false
	}
	delete(f.states, state)

	return !time.Now().After(expiry)
}

// OAuthConfig exposes the underlying oauth2 config for the exchange step.
func (f *Flow) OAuthConfig() *oauth2.Config {
	return f.cfg
}
