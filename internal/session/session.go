// Package session orchestrates import runs against a single configuration
// and ledger. All state lives on the Session value; there are no package
// globals, so tests and servers can run sessions side by side.
package session

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/contas-dev/contas/internal/config"
	"github.com/contas-dev/contas/internal/importer"
	"github.com/contas-dev/contas/internal/importlog"
	"github.com/contas-dev/contas/internal/ledger"
	"github.com/contas-dev/contas/internal/openfinance"
)

// Result is the outcome of one import run. Err carries any failure that
// aborted the run; the counts reflect what happened before the failure.
type Result struct {
	Imported    int
	Skipped     int
	Duplicates  int
	ParseErrors int
	Err         error
}

// Session ties together config, ledger store, statement registry and the
// Open Finance client for a sequence of operations.
type Session struct {
	cfg      *config.Config
	store    *ledger.Store
	registry *importer.Registry
	client   *openfinance.Client
	log      zerolog.Logger
	dataDir  string
	now      func() time.Time
}

// New builds a session over an open store. The Open Finance client is
// constructed lazily on first use so file imports never require bank
// credentials.
func New(cfg *config.Config, store *ledger.Store, log zerolog.Logger) *Session {
	return &Session{
		cfg:      cfg,
		store:    store,
		registry: importer.DefaultRegistry(cfg.Layouts...),
		log:      log,
		dataDir:  filepath.Dir(cfg.Database.Path),
		now:      time.Now,
	}
}

// Store exposes the underlying ledger for queries.
func (s *Session) Store() *ledger.Store { return s.store }

// Config exposes the loaded configuration.
func (s *Session) Config() *config.Config { return s.cfg }

// LayoutNames lists the statement layouts this session can import.
func (s *Session) LayoutNames() []string { return s.registry.LayoutNames() }

func (s *Session) ensureClient() (*openfinance.Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	c, err := openfinance.New(s.cfg.OpenFinance, s.log)
	if err != nil {
		return nil, err
	}
	s.client = c
	return c, nil
}

// Accounts lists the accounts visible through the configured consent.
func (s *Session) Accounts(ctx context.Context) ([]openfinance.Account, error) {
	c, err := s.ensureClient()
	if err != nil {
		return nil, err
	}
	return c.ListAccounts(ctx)
}

// ImportFile runs one statement file through read, normalize and append.
// format names a registered layout; "" means the generic layout.
func (s *Session) ImportFile(name string, r io.Reader, account, format string) Result {
	res := s.importFile(name, r, account, format)
	s.record("file", name, res)
	return res
}

func (s *Session) importFile(name string, r io.Reader, account, format string) Result {
	reader, err := s.registry.ReaderFor(name)
	if err != nil {
		return Result{Err: err}
	}
	if format == "" {
		format = "generic"
	}
	layout, ok := s.registry.Layout(format)
	if !ok {
		return Result{Err: fmt.Errorf("unknown statement layout %q", format)}
	}

	grid, err := reader.Read(r)
	if err != nil {
		return Result{Err: fmt.Errorf("reading %s: %w", name, err)}
	}

	txns, report := importer.Normalize(grid, layout, account)
	inserted, dups, err := s.store.AppendTransactions(txns)
	if err != nil {
		return Result{Err: fmt.Errorf("storing transactions: %w", err)}
	}

	s.log.Info().
		Str("file", name).
		Str("layout", format).
		Int("imported", inserted).
		Int("skipped", report.Skipped).
		Int("duplicates", dups).
		Int("parse_errors", report.ParseErrors).
		Msg("statement imported")
	return Result{
		Imported:    inserted,
		Skipped:     report.Skipped,
		Duplicates:  dups,
		ParseErrors: report.ParseErrors,
	}
}

// ImportAccount pulls an account's transactions from the Open Finance API
// for a date range and appends them to the ledger. The configured consent
// is checked before any data call.
func (s *Session) ImportAccount(ctx context.Context, accountID string, from, to time.Time) Result {
	res := s.importAccount(ctx, accountID, from, to)
	s.record("api", accountID, res)
	return res
}

func (s *Session) importAccount(ctx context.Context, accountID string, from, to time.Time) Result {
	c, err := s.ensureClient()
	if err != nil {
		return Result{Err: err}
	}

	consent, err := c.GetConsent(ctx, s.cfg.OpenFinance.ConsentID)
	if err != nil {
		return Result{Err: err}
	}

	pager, err := c.Transactions(consent, accountID, from, to)
	if err != nil {
		return Result{Err: err}
	}
	raws, err := pager.Collect(ctx)
	if err != nil {
		return Result{Err: err}
	}

	txns, report := importer.FromAPI(raws, accountID)
	inserted, dups, err := s.store.AppendTransactions(txns)
	if err != nil {
		return Result{Err: fmt.Errorf("storing transactions: %w", err)}
	}

	s.log.Info().
		Str("account", accountID).
		Int("imported", inserted).
		Int("skipped", report.Skipped).
		Int("duplicates", dups).
		Int("parse_errors", report.ParseErrors).
		Msg("account imported")
	return Result{
		Imported:    inserted,
		Skipped:     report.Skipped,
		Duplicates:  dups,
		ParseErrors: report.ParseErrors,
	}
}

func (s *Session) record(source, origin string, res Result) {
	entry := importlog.Entry{
		Timestamp:  s.now().UTC(),
		Source:     source,
		Origin:     origin,
		Imported:   res.Imported,
		Skipped:    res.Skipped,
		Duplicates: res.Duplicates,
	}
	if res.Err != nil {
		entry.Error = res.Err.Error()
	}
	if err := importlog.Append(s.dataDir, []importlog.Entry{entry}); err != nil {
		s.log.Warn().Err(err).Msg("appending import log")
	}
}
