package openfinance

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/contas-dev/contas/internal/config"
	"github.com/contas-dev/contas/internal/model"
)

const defaultPageSize = "200"

// Account describes a consented account as returned by the accounts
// endpoint.
type Account struct {
	AccountID   string `json:"accountId"`
	Number      string `json:"number"`
	CheckDigit  string `json:"checkDigit"`
	BranchCode  string `json:"branchCode"`
	CompeCode   string `json:"compeCode"`
	AccountType string `json:"accountType"`
}

// Client issues requests to the bank's Open Finance endpoints over mTLS.
type Client struct {
	cfg    config.OpenFinanceConfig
	tokens *TokenManager
	http   *http.Client
	log    zerolog.Logger
}

// New validates the configuration and builds a Client. Missing required
// configuration or unreadable certificate files fail here, before any
// network call.
func New(cfg config.OpenFinanceConfig, log zerolog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	httpClient, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	tokens, err := NewTokenManager(cfg, httpClient)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, tokens: tokens, http: httpClient, log: log}, nil
}

// newHTTPClient builds the HTTP client, loading the mTLS client
// certificate when configured.
func newHTTPClient(cfg config.OpenFinanceConfig) (*http.Client, error) {
	client := &http.Client{Timeout: cfg.Timeout()}
	if cfg.Certificate == "" {
		return client, nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.Certificate, cfg.CertificateKey)
	if err != nil {
		return nil, &config.ConfigError{
			Field:  "open_finance.certificate",
			Reason: fmt.Sprintf("loading client certificate: %v", err),
		}
	}
	client.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
	}
	return client, nil
}

// envelope is the common Open Finance response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// ListAccounts returns the accounts visible under the current consent.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	params := url.Values{"page-size": {defaultPageSize}}
	env, err := c.get(ctx, c.resolveURL(c.cfg.AccountsEndpoint), params)
	if err != nil {
		return nil, err
	}

	raw, err := unwrapList(env.Data, "accounts")
	if err != nil {
		return nil, &APIError{URL: c.cfg.AccountsEndpoint, Detail: "unexpected accounts payload shape"}
	}
	var accounts []Account
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, &APIError{URL: c.cfg.AccountsEndpoint, Detail: fmt.Sprintf("decoding accounts: %v", err)}
	}
	return accounts, nil
}

// TransactionPager walks the paginated transactions listing lazily. Each
// Next call fetches one page; a fresh pager restarts from the beginning.
type TransactionPager struct {
	client  *Client
	nextURL string
	params  url.Values
	done    bool
}

// Transactions prepares a pager over an account's transactions within the
// booking-date range. The consent is checked before any request is made;
// an unauthorized consent yields a ConsentError immediately.
func (c *Client) Transactions(consent model.Consent, accountID string, from, to time.Time) (*TransactionPager, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account id is required")
	}
	if !consent.Authorized(model.RequiredTransactionPermissions...) {
		return nil, &ConsentError{ConsentID: consent.ID, Detail: ConsentRemediation}
	}

	endpoint := strings.ReplaceAll(c.cfg.TransactionsEndpoint, "{account_id}", accountID)
	params := url.Values{"page-size": {defaultPageSize}}
	if !from.IsZero() {
		params.Set("fromBookingDate", from.Format("2006-01-02"))
	}
	if !to.IsZero() {
		params.Set("toBookingDate", to.Format("2006-01-02"))
	}

	return &TransactionPager{
		client:  c,
		nextURL: c.resolveURL(endpoint),
		params:  params,
	}, nil
}

// Next returns the next page of raw transactions, or (nil, nil) once the
// listing is exhausted.
func (p *TransactionPager) Next(ctx context.Context) ([]model.RawTransaction, error) {
	if p.done {
		return nil, nil
	}

	env, err := p.client.get(ctx, p.nextURL, p.params)
	if err != nil {
		return nil, err
	}

	raw, err := unwrapList(env.Data, "transactions", "items")
	if err != nil {
		return nil, &APIError{URL: p.nextURL, Detail: "unexpected transactions payload shape"}
	}
	var page []model.RawTransaction
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, &APIError{URL: p.nextURL, Detail: fmt.Sprintf("decoding transactions: %v", err)}
	}

	if env.Links.Next != "" {
		p.nextURL = env.Links.Next
		p.params = nil // the next link embeds its own query
	} else {
		p.done = true
	}
	return page, nil
}

// Collect drains the pager.
func (p *TransactionPager) Collect(ctx context.Context) ([]model.RawTransaction, error) {
	var all []model.RawTransaction
	for {
		page, err := p.Next(ctx)
		if err != nil {
			return nil, err
		}
		if page == nil {
			return all, nil
		}
		all = append(all, page...)
	}
}

// consentData is the consent resource shape used by create and read.
type consentData struct {
	ConsentID          string   `json:"consentId"`
	Status             string   `json:"status"`
	Permissions        []string `json:"permissions"`
	ExpirationDateTime string   `json:"expirationDateTime"`
}

// CreateConsent registers a new consent with the given permissions (the
// default transaction-read set when empty). The returned consent starts
// in AWAITING_AUTHORISATION until the account holder approves it.
func (c *Client) CreateConsent(ctx context.Context, permissions []string, expiration time.Time) (model.Consent, error) {
	if len(permissions) == 0 {
		permissions = []string{
			model.PermAccountsRead,
			"ACCOUNTS_BALANCES_READ",
			model.PermAccountsTransactionsRead,
			"ACCOUNTS_STATEMENTS_READ",
		}
	}
	data := map[string]any{"permissions": permissions}
	if !expiration.IsZero() {
		data["expirationDateTime"] = expiration.UTC().Format(time.RFC3339)
	}
	body := map[string]any{"data": data}

	env, err := c.do(ctx, http.MethodPost, c.resolveURL(c.cfg.ConsentsEndpoint), nil, body)
	if err != nil {
		return model.Consent{}, err
	}
	return decodeConsent(env.Data, c.cfg.ConsentsEndpoint)
}

// GetConsent reads back a consent's current status and permissions.
func (c *Client) GetConsent(ctx context.Context, consentID string) (model.Consent, error) {
	u := c.resolveURL(strings.TrimRight(c.cfg.ConsentsEndpoint, "/") + "/" + url.PathEscape(consentID))
	env, err := c.get(ctx, u, nil)
	if err != nil {
		return model.Consent{}, err
	}
	return decodeConsent(env.Data, u)
}

func decodeConsent(data json.RawMessage, where string) (model.Consent, error) {
	var cd consentData
	if err := json.Unmarshal(data, &cd); err != nil {
		return model.Consent{}, &APIError{URL: where, Detail: fmt.Sprintf("decoding consent: %v", err)}
	}
	if cd.ConsentID == "" {
		return model.Consent{}, &APIError{URL: where, Detail: "consent response carried no consentId"}
	}
	consent := model.Consent{
		ID:          cd.ConsentID,
		Status:      model.ConsentStatus(cd.Status),
		Permissions: cd.Permissions,
	}
	if cd.ExpirationDateTime != "" {
		if t, err := time.Parse(time.RFC3339, cd.ExpirationDateTime); err == nil {
			consent.ExpiresAt = t
		}
	}
	return consent, nil
}

func (c *Client) get(ctx context.Context, rawURL string, params url.Values) (*envelope, error) {
	return c.do(ctx, http.MethodGet, rawURL, params, nil)
}

// do issues one request with bearer auth and the per-call headers the
// standard requires, and maps failures onto the error taxonomy.
func (c *Client) do(ctx context.Context, method, rawURL string, params url.Values, body any) (*envelope, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	if len(params) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, &APIError{URL: rawURL, Detail: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-fapi-interaction-id", uuid.NewString())
	req.Header.Set("x-correlation-id", uuid.NewString())
	if c.cfg.APIKey != "" {
		req.Header.Set("x-itau-apikey", c.cfg.APIKey)
	}
	for k, v := range c.cfg.AdditionalHeaders {
		req.Header.Set(k, v)
	}

	c.log.Debug().Str("method", method).Str("url", rawURL).Msg("open finance request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{URL: rawURL, Detail: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &APIError{URL: rawURL, Detail: fmt.Sprintf("reading response: %v", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthError{Status: resp.StatusCode, Detail: bodyExcerpt(payload)}
	case resp.StatusCode == http.StatusForbidden:
		return nil, &ConsentError{ConsentID: c.cfg.ConsentID, Detail: ConsentRemediation}
	case resp.StatusCode >= 400:
		return nil, &APIError{Status: resp.StatusCode, URL: rawURL, Detail: bodyExcerpt(payload)}
	}

	var env envelope
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, &APIError{Status: resp.StatusCode, URL: rawURL, Detail: fmt.Sprintf("decoding response: %v", err)}
		}
	}
	return &env, nil
}

// resolveURL joins a path with the base URL; absolute URLs pass through.
func (c *Client) resolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// unwrapList extracts a JSON array from data, which may be the array
// itself or an object holding it under one of the given keys.
func unwrapList(data json.RawMessage, keys ...string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("[]"), nil
	}
	if trimmed[0] == '[' {
		return trimmed, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if v, ok := obj[k]; ok && len(bytes.TrimSpace(v)) > 0 && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return v, nil
		}
	}
	return nil, fmt.Errorf("no list under keys %v", keys)
}

func bodyExcerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
