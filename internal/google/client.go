package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/mailmate/mailmate/internal/apierr"
	"github.com/mailmate/mailmate/internal/authstore"
	"github.com/mailmate/mailmate/internal/logging"
)

// HTTPClient returns an OAuth-authenticated HTTP client for the session key.
// The token source refreshes expired access tokens automatically; refreshed
// tokens are written back through the store so the snapshot stays current.
//
// A session key with no stored bundle yields apierr.ErrUnauthorized.
func HTTPClient(ctx context.Context, store authstore.Store, sessionKey string) (*http.Client, error) {
	creds, ok := store.Get(sessionKey)
	if !ok {
		return nil, fmt.Errorf("session %s: %w",
			logging.AnonymizeSession(sessionKey), apierr.ErrUnauthorized)
	}

	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: creds.TokenURI},
		Scopes:       creds.Scopes,
	}

	base := cfg.TokenSource(ctx, creds.Token())
	ts := &persistingTokenSource{
		base:       base,
		store:      store,
		sessionKey: sessionKey,
		creds:      creds,
		last:       creds.AccessToken,
	}

	client := oauth2.NewClient(ctx, ts)

	// Force HTTP/1.1 by disabling HTTP/2
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			ForceAttemptHTTP2: false,
		}
	}

	return client, nil
}

// persistingTokenSource writes refreshed tokens back to the credential store
// so the on-disk snapshot survives restarts.
type persistingTokenSource struct {
	base       oauth2.TokenSource
	store      authstore.Store
	sessionKey string
	creds      *authstore.Credentials
	last       string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		p.creds.AccessToken = tok.AccessToken
		if tok.RefreshToken != "" {
			p.creds.RefreshToken = tok.RefreshToken
		}
		p.creds.Expiry = tok.Expiry
		p.store.Set(p.sessionKey, p.creds)
		if err := p.store.Save(); err != nil {
			slog.Warn("failed to persist refreshed token",
				logging.SessionHash(p.sessionKey), logging.Err(err))
		}
	}

	return tok, nil
}
