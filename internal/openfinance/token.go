package openfinance

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/contas-dev/contas/internal/config"
)

// expirySkew is subtracted from the bank's expires_in so a token is never
// used right at its deadline.
const expirySkew = 60 * time.Second

// TokenManager returns a valid bearer token for API calls: a statically
// configured token while it remains unexpired, otherwise a cached token
// from a client-credentials exchange against the bank's STS.
type TokenManager struct {
	cfg          config.OpenFinanceConfig
	httpClient   *http.Client
	exchange     *clientcredentials.Config
	staticExpiry time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time

	now func() time.Time
}

// NewTokenManager builds a TokenManager. The HTTP client carries the mTLS
// certificate when one is configured.
func NewTokenManager(cfg config.OpenFinanceConfig, httpClient *http.Client) (*TokenManager, error) {
	staticExpiry, err := cfg.StaticExpiry()
	if err != nil {
		return nil, err
	}

	exchange := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       strings.Fields(cfg.Scope),
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	if cfg.ConsentID != "" {
		exchange.EndpointParams = url.Values{"consent_id": {cfg.ConsentID}}
	}

	return &TokenManager{
		cfg:          cfg,
		httpClient:   httpClient,
		exchange:     exchange,
		staticExpiry: staticExpiry,
		now:          time.Now,
	}, nil
}

// Token returns a valid access token. Refreshes are serialized: when two
// operations need a token at once, the second waits and reuses the token
// the first one fetched.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	if m.cfg.StaticAccessToken != "" {
		if !m.staticExpiry.IsZero() && !m.now().Before(m.staticExpiry) {
			return "", &AuthError{Detail: "static access token expired; update static_access_token in the configuration"}
		}
		return m.cfg.StaticAccessToken, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Before(m.expiry) {
		return m.token, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	tok, err := m.exchange.Token(ctx)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return "", &AuthError{
				Status: rerr.Response.StatusCode,
				Detail: strings.TrimSpace(string(rerr.Body)),
			}
		}
		return "", &AuthError{Detail: err.Error()}
	}
	if tok.AccessToken == "" {
		return "", &AuthError{Detail: "token response carried no access_token"}
	}

	m.token = tok.AccessToken
	m.expiry = tok.Expiry.Add(-expirySkew)
	if tok.Expiry.IsZero() {
		// No expires_in in the response; refetch on next call.
		m.expiry = m.now()
	}
	return m.token, nil
}
