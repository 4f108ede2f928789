package ledger

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contas-dev/contas/internal/model"
	"github.com/contas-dev/contas/internal/period"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "contas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.SeedCategories())
	return s
}

func txn(date string, desc string, amount string) model.Transaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	a, err := decimal.NewFromString(amount)
	if err != nil {
		panic(err)
	}
	return model.Transaction{
		Date:        d,
		Description: desc,
		Amount:      a,
		Account:     "corrente",
		Source:      model.SourceFile,
	}
}

func jan2024() period.Period {
	return period.Period{Year: 2024, Month: time.January}
}

func TestAppendAndSummarize(t *testing.T) {
	s := newStore(t)

	inserted, dups, err := s.AppendTransactions([]model.Transaction{
		txn("2024-01-05", "Supermercado", "-120.50"),
		txn("2024-01-07", "Salário", "5000.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 0, dups)

	txns, err := s.ListTransactions(jan2024())
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "Supermercado", txns[0].Description)

	summary, err := s.Summarize(jan2024())
	require.NoError(t, err)
	assert.Equal(t, "4879.50", summary.Net.StringFixed(2))
}

func TestAppend_DuplicateStatement(t *testing.T) {
	s := newStore(t)

	batch := []model.Transaction{
		txn("2024-01-05", "Supermercado", "-120.50"),
		txn("2024-01-07", "Salário", "5000.00"),
	}
	_, _, err := s.AppendTransactions(batch)
	require.NoError(t, err)

	// Re-importing the same statement adds nothing.
	inserted, dups, err := s.AppendTransactions(batch)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 2, dups)

	txns, err := s.ListTransactions(jan2024())
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestAppend_LegitimateRepeatsWithinStatement(t *testing.T) {
	s := newStore(t)

	// Two identical purchases on the same day are both real.
	batch := []model.Transaction{
		txn("2024-01-05", "Padaria", "-7.50"),
		txn("2024-01-05", "Padaria", "-7.50"),
	}
	inserted, dups, err := s.AppendTransactions(batch)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 0, dups)

	// But re-importing them still dedups.
	inserted, dups, err = s.AppendTransactions(batch)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 2, dups)
}

func TestSetCategory(t *testing.T) {
	s := newStore(t)
	_, _, err := s.AppendTransactions([]model.Transaction{txn("2024-01-05", "Mercado", "-50.00")})
	require.NoError(t, err)

	txns, err := s.ListTransactions(jan2024())
	require.NoError(t, err)
	require.Len(t, txns, 1)

	cats, err := s.Categories()
	require.NoError(t, err)
	require.NotEmpty(t, cats)

	require.NoError(t, s.SetCategory(txns[0].ID, cats[0].ID))

	txns, err = s.ListTransactions(jan2024())
	require.NoError(t, err)
	assert.Equal(t, cats[0].ID, txns[0].CategoryID)

	// Unknown references are rejected.
	assert.Error(t, s.SetCategory(txns[0].ID, 9999))
	assert.Error(t, s.SetCategory(9999, cats[0].ID))

	// Clearing works.
	require.NoError(t, s.SetCategory(txns[0].ID, 0))
}

func TestSummarize_NeutralExcludedFromNet(t *testing.T) {
	s := newStore(t)
	_, _, err := s.AppendTransactions([]model.Transaction{
		txn("2024-01-05", "Mercado", "-100.00"),
		txn("2024-01-06", "Transferencia poupança", "-500.00"),
	})
	require.NoError(t, err)

	transfers, err := s.CategoryByName("Transferências", model.KindNeutral)
	require.NoError(t, err)

	txns, err := s.ListTransactions(jan2024())
	require.NoError(t, err)
	require.NoError(t, s.SetCategory(txns[1].ID, transfers))

	summary, err := s.Summarize(jan2024())
	require.NoError(t, err)
	assert.Equal(t, "-100.00", summary.Net.StringFixed(2))

	// The transfer still shows up in its category bucket.
	var found bool
	for _, ct := range summary.ByCategory {
		if ct.CategoryID == transfers {
			found = true
			assert.Equal(t, "-500.00", ct.Total.StringFixed(2))
		}
	}
	assert.True(t, found)
}

func TestProvisions_CRUD(t *testing.T) {
	s := newStore(t)

	due := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	id, err := s.AddProvision(model.Provision{
		Period:      "2024-01",
		Description: "IPTU",
		Amount:      decimal.RequireFromString("-320.00"),
		DueDate:     due,
	})
	require.NoError(t, err)

	provisions, err := s.ListProvisions("2024-01")
	require.NoError(t, err)
	require.Len(t, provisions, 1)
	assert.Equal(t, "IPTU", provisions[0].Description)

	provisions[0].Amount = decimal.RequireFromString("-350.00")
	require.NoError(t, s.UpdateProvision(provisions[0]))

	summary, err := s.Summarize(jan2024())
	require.NoError(t, err)
	assert.Equal(t, "-350.00", summary.Provisioned.StringFixed(2))

	require.NoError(t, s.DeleteProvision(id))
	provisions, err = s.ListProvisions("2024-01")
	require.NoError(t, err)
	assert.Empty(t, provisions)

	assert.Error(t, s.DeleteProvision(id))
}

func TestBackup_RoundTrip(t *testing.T) {
	s := newStore(t)
	_, _, err := s.AppendTransactions([]model.Transaction{
		txn("2024-01-05", "Mercado", "-120.50"),
		txn("2024-01-07", "Salário", "5000.00"),
	})
	require.NoError(t, err)

	cats, err := s.Categories()
	require.NoError(t, err)
	txns, err := s.ListTransactions(jan2024())
	require.NoError(t, err)
	require.NoError(t, s.SetCategory(txns[0].ID, cats[0].ID))

	var buf bytes.Buffer
	require.NoError(t, s.ExportCSV(&buf))

	restored := newStore(t)
	n, err := restored.ImportCSV(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := restored.ListTransactions(jan2024())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "-120.50", got[0].Amount.StringFixed(2))
	assert.NotZero(t, got[0].CategoryID)

	// Restoring again over an intact database adds nothing.
	n, err = restored.ImportCSV(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCheck_CleanLedger(t *testing.T) {
	s := newStore(t)
	_, _, err := s.AppendTransactions([]model.Transaction{
		txn("2024-01-05", "Mercado", "-120.50"),
	})
	require.NoError(t, err)

	errs, err := s.Check()
	require.NoError(t, err)
	assert.Empty(t, errs)
}
