package oauth

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusAwaitingCode    Status = "awaiting_code"
	StatusAuthenticated   Status = "authenticated"
)

// State is the per-session authorization state. It is owned by a session and
// persisted with it.
type State struct {
	Status     Status        `json:"status"`
	OAuthState string        `json:"oauth_state,omitempty"`
	Verifier   string        `json:"verifier,omitempty"`
	AuthURL    string        `json:"auth_url,omitempty"`
	Token      *oauth2.Token `json:"token,omitempty"`
}

func (s *State) CurrentStatus() Status {
	if s == nil || s.Status == "" {
		return StatusUnauthenticated
	}
	return s.Status
}

// Credential is the opaque bearer handed to the backup adapter.
type Credential struct {
	source oauth2.TokenSource
}

// HTTPClient returns a client that authorizes every request with the credential.
func (c Credential) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, c.source)
}

func (c Credential) Token() (*oauth2.Token, error) {
	return c.source.Token()
}

// StaticCredential wraps a fixed token.
func StaticCredential(token *oauth2.Token) Credential {
	return Credential{source: oauth2.StaticTokenSource(token)}
}

// persistingSource writes refreshed tokens back into the session state.
type persistingSource struct {
	mu    sync.Mutex
	base  oauth2.TokenSource
	state *State
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	token, err := p.base.Token()
	if err != nil {
		return nil, &refreshError{err: err}
	}
	if p.state.Token == nil || p.state.Token.AccessToken != token.AccessToken {
		p.state.Token = token
	}
	return token, nil
}

type refreshError struct {
	err error
}

func (e *refreshError) Error() string { return "oauth token refresh: " + e.err.Error() }

func (e *refreshError) Unwrap() []error { return []error{ErrTokenRefresh, e.err} }
