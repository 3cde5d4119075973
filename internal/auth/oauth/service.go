package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/smallbiznis/macrolog/internal/config"
	obsmetrics "github.com/smallbiznis/macrolog/internal/observability/metrics"
	obstracing "github.com/smallbiznis/macrolog/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	defaultTokenSize = 32
)

type Service interface {
	// Credential returns the cached credential, or a *PendingError carrying the
	// consent URL when the session has not authorized yet.
	Credential(ctx context.Context, st *State) (Credential, error)
	Exchange(ctx context.Context, st *State, code, returnedState string) error
	// Reset drops any token and returns the state to unauthenticated.
	Reset(st *State)
}

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	oauthCfg   *oauth2.Config
	httpClient *http.Client
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) Service {
	return newService(buildConfig(p.Cfg.OAuth), obstracing.WrapHTTPClient(http.DefaultClient), p.Log, p.ObsMetrics)
}

func newService(cfg *oauth2.Config, client *http.Client, log *zap.Logger, m *obsmetrics.Metrics) *service {
	return &service{
		oauthCfg:   cfg,
		httpClient: client,
		log:        log.Named("oauth.service"),
		obsMetrics: m,
	}
}

func buildConfig(cfg config.OAuthConfig) *oauth2.Config {
	endpoint := google.Endpoint
	if strings.TrimSpace(cfg.AuthURL) != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if strings.TrimSpace(cfg.TokenURL) != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
	}
}

func (s *service) Credential(ctx context.Context, st *State) (Credential, error) {
	if st == nil {
		return Credential{}, ErrNotConfigured
	}

	switch st.CurrentStatus() {
	case StatusAuthenticated:
		if st.Token != nil {
			base := s.oauthCfg.TokenSource(s.clientContext(ctx), st.Token)
			return Credential{source: &persistingSource{base: base, state: st}}, nil
		}
		s.Reset(st)
	case StatusAwaitingCode:
		if st.AuthURL != "" {
			return Credential{}, &PendingError{URL: st.AuthURL}
		}
	}

	authURL, err := s.begin(st)
	if err != nil {
		return Credential{}, err
	}
	return Credential{}, &PendingError{URL: authURL}
}

func (s *service) begin(st *State) (string, error) {
	if strings.TrimSpace(s.oauthCfg.ClientID) == "" {
		return "", ErrNotConfigured
	}

	state, err := randomToken(defaultTokenSize)
	if err != nil {
		return "", err
	}
	verifier := oauth2.GenerateVerifier()

	authURL := s.oauthCfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
		oauth2.S256ChallengeOption(verifier),
	)

	st.Status = StatusAwaitingCode
	st.OAuthState = state
	st.Verifier = verifier
	st.AuthURL = authURL
	st.Token = nil
	return authURL, nil
}

func (s *service) Exchange(ctx context.Context, st *State, code, returnedState string) error {
	if st == nil {
		return ErrNotConfigured
	}
	if st.CurrentStatus() != StatusAwaitingCode {
		return fmt.Errorf("%w: no authorization in progress", ErrAuthorizationFailure)
	}

	code = strings.TrimSpace(code)
	if code == "" {
		s.obsMetrics.RecordAuthExchange(ctx, "rejected")
		return fmt.Errorf("%w: missing authorization code", ErrAuthorizationFailure)
	}
	if returnedState != st.OAuthState {
		s.obsMetrics.RecordAuthExchange(ctx, "rejected")
		return fmt.Errorf("%w: state mismatch", ErrAuthorizationFailure)
	}

	token, err := s.oauthCfg.Exchange(s.clientContext(ctx), code, oauth2.VerifierOption(st.Verifier))
	if err != nil {
		s.obsMetrics.RecordAuthExchange(ctx, "failed")
		s.log.Warn("authorization code exchange failed", zap.Error(err))
		return fmt.Errorf("%w: %s", ErrAuthorizationFailure, providerMessage(err))
	}

	st.Status = StatusAuthenticated
	st.Token = token
	st.OAuthState = ""
	st.Verifier = ""
	st.AuthURL = ""
	s.obsMetrics.RecordAuthExchange(ctx, "ok")
	return nil
}

func (s *service) Reset(st *State) {
	if st == nil {
		return
	}
	*st = State{Status: StatusUnauthenticated}
}

func (s *service) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

func providerMessage(err error) string {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		if retrieve.ErrorDescription != "" {
			return retrieve.ErrorDescription
		}
		if retrieve.ErrorCode != "" {
			return retrieve.ErrorCode
		}
	}
	return err.Error()
}

func randomToken(size int) (string, error) {
	if size <= 0 {
		size = defaultTokenSize
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
