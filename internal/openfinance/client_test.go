package openfinance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contas-dev/contas/internal/config"
	"github.com/contas-dev/contas/internal/model"
)

func testConfig(baseURL string) config.OpenFinanceConfig {
	return config.OpenFinanceConfig{
		StaticAccessToken:    "tok-test",
		ConsentID:            "consent-1",
		BaseURL:              baseURL,
		AccountsEndpoint:     "/accounts/v1/accounts",
		TransactionsEndpoint: "/accounts/v1/accounts/{account_id}/transactions",
		ConsentsEndpoint:     "/consents/v1/consents",
		AdditionalHeaders:    map[string]string{"x-custom": "yes"},
		APIKey:               "apikey-1",
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(testConfig(srv.URL), zerolog.Nop())
	require.NoError(t, err)
	return c, srv
}

func authorizedConsent() model.Consent {
	return model.Consent{
		ID:     "consent-1",
		Status: model.ConsentAuthorised,
		Permissions: []string{
			model.PermAccountsRead,
			model.PermAccountsTransactionsRead,
		},
	}
}

func TestNew_MissingBaseURL(t *testing.T) {
	cfg := testConfig("")
	_, err := New(cfg, zerolog.Nop())
	require.Error(t, err)
	var cerr *config.ConfigError
	assert.ErrorAs(t, err, &cerr)
}

func TestNew_UnreadableCertificate(t *testing.T) {
	cfg := testConfig("https://example.invalid")
	cfg.Certificate = "/nonexistent/client.pem"
	cfg.CertificateKey = "/nonexistent/client.key"
	_, err := New(cfg, zerolog.Nop())
	require.Error(t, err)
	var cerr *config.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "open_finance.certificate", cerr.Field)
}

func TestListAccounts(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-test", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("x-fapi-interaction-id"))
		assert.NotEmpty(t, r.Header.Get("x-correlation-id"))
		assert.Equal(t, "apikey-1", r.Header.Get("x-itau-apikey"))
		assert.Equal(t, "yes", r.Header.Get("x-custom"))
		assert.Equal(t, "200", r.URL.Query().Get("page-size"))
		fmt.Fprint(w, `{"data":{"accounts":[
			{"accountId":"acc-1","number":"12345","accountType":"CONTA_DEPOSITO_A_VISTA"},
			{"accountId":"acc-2","number":"67890"}
		]}}`)
	}))

	accounts, err := c.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "acc-1", accounts[0].AccountID)
	assert.Equal(t, "CONTA_DEPOSITO_A_VISTA", accounts[0].AccountType)
}

func TestListAccounts_PlainArray(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":[{"accountId":"acc-1"}]}`)
	}))

	accounts, err := c.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
}

func TestListAccounts_Unauthorized(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))

	_, err := c.ListAccounts(context.Background())
	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, http.StatusUnauthorized, aerr.Status)
}

func TestListAccounts_ServerError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := c.ListAccounts(context.Background())
	var apierr *APIError
	require.ErrorAs(t, err, &apierr)
	assert.Equal(t, http.StatusInternalServerError, apierr.Status)
}

func TestTransactions_ConsentGate(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request should be made for an unauthorized consent")
	}))

	rejected := authorizedConsent()
	rejected.Status = model.ConsentRejected
	_, err := c.Transactions(rejected, "acc-1", time.Time{}, time.Time{})
	var cerr *ConsentError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Detail, "AUTHORISED")
}

func TestTransactions_MissingPermission(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request should be made")
	}))

	consent := authorizedConsent()
	consent.Permissions = []string{model.PermAccountsRead} // missing transactions read
	_, err := c.Transactions(consent, "acc-1", time.Time{}, time.Time{})
	var cerr *ConsentError
	assert.ErrorAs(t, err, &cerr)
}

func TestTransactions_Forbidden(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))

	pager, err := c.Transactions(authorizedConsent(), "acc-1", time.Time{}, time.Time{})
	require.NoError(t, err)
	_, err = pager.Next(context.Background())
	var cerr *ConsentError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Detail, "consent")
}

func TestTransactions_Pagination(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/v1/accounts/acc-1/transactions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("fromBookingDate"))
		assert.Equal(t, "2024-01-31", r.URL.Query().Get("toBookingDate"))
		fmt.Fprintf(w, `{"data":{"transactions":[{"transactionId":"t1","bookingDate":"2024-01-05"}]},
			"links":{"next":"%s/page2"}}`, srvURL)
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"transactions":[{"transactionId":"t2","bookingDate":"2024-01-07"}]}}`)
	})

	c, srv := newTestClient(t, mux)
	srvURL = srv.URL

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	pager, err := c.Transactions(authorizedConsent(), "acc-1", from, to)
	require.NoError(t, err)

	all, err := pager.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "t1", all[0].ExternalID())
	assert.Equal(t, "t2", all[1].ExternalID())

	// Exhausted pager keeps returning nil.
	page, err := pager.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, page)

	// A fresh pager restarts from the first page.
	pager, err = c.Transactions(authorizedConsent(), "acc-1", from, to)
	require.NoError(t, err)
	again, err := pager.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, again, 2)
}

func TestCreateAndGetConsent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /consents/v1/consents", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"consentId":"consent-9","status":"AWAITING_AUTHORISATION",
			"permissions":["ACCOUNTS_READ","ACCOUNTS_TRANSACTIONS_READ"]}}`)
	})
	mux.HandleFunc("GET /consents/v1/consents/consent-9", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"consentId":"consent-9","status":"AUTHORISED",
			"permissions":["ACCOUNTS_READ","ACCOUNTS_TRANSACTIONS_READ"],
			"expirationDateTime":"2030-01-01T00:00:00Z"}}`)
	})

	c, _ := newTestClient(t, mux)

	created, err := c.CreateConsent(context.Background(), nil, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "consent-9", created.ID)
	assert.Equal(t, model.ConsentAwaitingAuthorisation, created.Status)
	assert.False(t, created.Authorized(model.RequiredTransactionPermissions...))

	fetched, err := c.GetConsent(context.Background(), "consent-9")
	require.NoError(t, err)
	assert.Equal(t, model.ConsentAuthorised, fetched.Status)
	assert.True(t, fetched.Authorized(model.RequiredTransactionPermissions...))
	assert.Equal(t, 2030, fetched.ExpiresAt.Year())
}
