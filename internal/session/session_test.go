package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contas-dev/contas/internal/config"
	"github.com/contas-dev/contas/internal/importlog"
	"github.com/contas-dev/contas/internal/ledger"
	"github.com/contas-dev/contas/internal/openfinance"
	"github.com/contas-dev/contas/internal/period"
)

const statementCSV = `data,descricao,valor
05/01/2024,Supermercado,-120.50
07/01/2024,Salário,5000.00
`

func newSession(t *testing.T) (*Session, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default(dir)
	store, err := ledger.Open(cfg.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.SeedCategories())
	return New(cfg, store, zerolog.Nop()), dir
}

func TestImportFile(t *testing.T) {
	s, dir := newSession(t)

	res := s.ImportFile("extrato.csv", strings.NewReader(statementCSV), "corrente", "")
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 0, res.Duplicates)

	txns, err := s.Store().ListTransactions(period.Period{Year: 2024, Month: time.January})
	require.NoError(t, err)
	assert.Len(t, txns, 2)

	entries, err := importlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "file", entries[0].Source)
	assert.Equal(t, "extrato.csv", entries[0].Origin)
	assert.Equal(t, 2, entries[0].Imported)
	assert.Empty(t, entries[0].Error)
}

func TestImportFile_SecondRunIsAllDuplicates(t *testing.T) {
	s, _ := newSession(t)

	res := s.ImportFile("extrato.csv", strings.NewReader(statementCSV), "corrente", "")
	require.NoError(t, res.Err)

	res = s.ImportFile("extrato.csv", strings.NewReader(statementCSV), "corrente", "")
	require.NoError(t, res.Err)
	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, 2, res.Duplicates)
}

func TestImportFile_UnknownLayout(t *testing.T) {
	s, dir := newSession(t)

	res := s.ImportFile("extrato.csv", strings.NewReader(statementCSV), "corrente", "no-such-layout")
	require.Error(t, res.Err)
	assert.Zero(t, res.Imported)

	// Failed runs land in the import log too.
	entries, err := importlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Error, "no-such-layout")
}

func TestImportFile_UnknownExtension(t *testing.T) {
	s, _ := newSession(t)
	res := s.ImportFile("extrato.pdf", strings.NewReader("x"), "corrente", "")
	require.Error(t, res.Err)
}

func TestImportAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/consents/v1/consents/"):
			fmt.Fprint(w, `{"data":{"consentId":"consent-1","status":"AUTHORISED",
				"permissions":["ACCOUNTS_READ","ACCOUNTS_TRANSACTIONS_READ"]}}`)
		case strings.Contains(r.URL.Path, "/transactions"):
			fmt.Fprint(w, `{"data":{"transactions":[
				{"transactionId":"t-1","bookingDate":"2024-01-05","remittanceInformation":"PIX Mercado",
				 "amount":{"amount":"120.50","currency":"BRL"},"creditDebitType":"DEBITO"},
				{"transactionId":"t-2","bookingDate":"2024-01-07","remittanceInformation":"TED Salario",
				 "amount":{"amount":"5000.00","currency":"BRL"},"creditDebitType":"CREDITO"}
			]}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s, dir := newSession(t)
	s.cfg.OpenFinance = config.OpenFinanceConfig{
		StaticAccessToken:    "tok-test",
		ConsentID:            "consent-1",
		BaseURL:              srv.URL,
		AccountsEndpoint:     "/accounts/v1/accounts",
		TransactionsEndpoint: "/accounts/v1/accounts/{account_id}/transactions",
		ConsentsEndpoint:     "/consents/v1/consents",
	}

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	res := s.ImportAccount(context.Background(), "acc-1", from, to)
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Imported)

	txns, err := s.Store().ListTransactions(period.Period{Year: 2024, Month: time.January})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "-120.50", txns[0].Amount.StringFixed(2))
	assert.Equal(t, "t-1", txns[0].ExternalID)

	entries, err := importlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "api", entries[0].Source)
}

func TestImportAccount_ConsentNotAuthorised(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"consentId":"consent-1","status":"AWAITING_AUTHORISATION",
			"permissions":["ACCOUNTS_READ","ACCOUNTS_TRANSACTIONS_READ"]}}`)
	}))
	defer srv.Close()

	s, _ := newSession(t)
	s.cfg.OpenFinance = config.OpenFinanceConfig{
		StaticAccessToken:    "tok-test",
		ConsentID:            "consent-1",
		BaseURL:              srv.URL,
		AccountsEndpoint:     "/accounts/v1/accounts",
		TransactionsEndpoint: "/accounts/v1/accounts/{account_id}/transactions",
		ConsentsEndpoint:     "/consents/v1/consents",
	}

	res := s.ImportAccount(context.Background(), "acc-1", time.Time{}, time.Time{})
	require.Error(t, res.Err)
	var cerr *openfinance.ConsentError
	assert.ErrorAs(t, res.Err, &cerr)
}

func TestImportAccount_MissingConfig(t *testing.T) {
	s, _ := newSession(t)
	s.cfg.OpenFinance = config.OpenFinanceConfig{}

	res := s.ImportAccount(context.Background(), "acc-1", time.Time{}, time.Time{})
	require.Error(t, res.Err)
	var cfgErr *config.ConfigError
	assert.ErrorAs(t, res.Err, &cfgErr)
}

func TestNew_DataDirFromDatabasePath(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default(dir)
	store, err := ledger.Open(cfg.Database.Path)
	require.NoError(t, err)
	defer store.Close()

	s := New(cfg, store, zerolog.Nop())
	assert.Equal(t, filepath.Dir(cfg.Database.Path), s.dataDir)
}
