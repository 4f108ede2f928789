package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/contas-dev/contas/internal/model"
	"github.com/contas-dev/contas/internal/period"
)

const dateFormat = "2006-01-02"

// Store persists the ledger in a SQLite file. Imported transactions are
// append-only: the category is the only mutable field and no delete is
// exposed.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating ledger db: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			period TEXT NOT NULL,
			description TEXT NOT NULL,
			desc_norm TEXT NOT NULL,
			amount TEXT NOT NULL,
			account TEXT NOT NULL,
			source TEXT NOT NULL,
			category_id INTEGER NOT NULL DEFAULT 0,
			external_id TEXT NOT NULL DEFAULT '',
			import_seq INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_period ON transactions(period)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_dedup
			ON transactions(account, date, amount, desc_norm)`,
		`CREATE TABLE IF NOT EXISTS provisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			period TEXT NOT NULL,
			description TEXT NOT NULL,
			amount TEXT NOT NULL,
			due_date TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendTransactions inserts transactions, skipping rows already present.
// A row is a duplicate when a stored row shares its (account, date,
// amount, normalized description) key and occurrence sequence, so
// re-importing the same statement adds nothing while identical legitimate
// rows within one statement all land. Atomic: either the whole batch is
// applied or none of it.
func (s *Store) AppendTransactions(txns []model.Transaction) (inserted, duplicates int, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("beginning append: %w", err)
	}
	defer tx.Rollback()

	occurrences := make(map[model.DedupKey]int)
	for _, t := range txns {
		base := t.Key(0)
		occurrences[base]++
		key := t.Key(occurrences[base])

		var existing int
		err := tx.QueryRow(
			`SELECT COUNT(*) FROM transactions
			  WHERE account = ? AND date = ? AND amount = ? AND desc_norm = ? AND import_seq = ?`,
			key.Account, key.Date, key.Amount, key.Description, key.Seq,
		).Scan(&existing)
		if err != nil {
			return 0, 0, fmt.Errorf("checking duplicates: %w", err)
		}
		if existing > 0 {
			duplicates++
			continue
		}

		_, err = tx.Exec(
			`INSERT INTO transactions
			   (date, period, description, desc_norm, amount, account, source, category_id, external_id, import_seq)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Date.Format(dateFormat),
			period.Of(t.Date).String(),
			t.Description,
			model.NormalizeDesc(t.Description),
			t.Amount.StringFixed(2),
			t.Account,
			string(t.Source),
			t.CategoryID,
			t.ExternalID,
			key.Seq,
		)
		if err != nil {
			return 0, 0, fmt.Errorf("inserting transaction: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("committing append: %w", err)
	}
	return inserted, duplicates, nil
}

// SetCategory reclassifies a transaction. 0 clears the category.
func (s *Store) SetCategory(txID, categoryID int64) error {
	if categoryID != 0 {
		var n int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM categories WHERE id = ?`, categoryID).Scan(&n); err != nil {
			return fmt.Errorf("checking category: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("unknown category %d", categoryID)
		}
	}
	res, err := s.db.Exec(`UPDATE transactions SET category_id = ? WHERE id = ?`, categoryID, txID)
	if err != nil {
		return fmt.Errorf("updating category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown transaction %d", txID)
	}
	return nil
}

// ListTransactions returns a period's transactions ordered by date then
// insertion order.
func (s *Store) ListTransactions(p period.Period) ([]model.Transaction, error) {
	rows, err := s.db.Query(
		`SELECT id, date, description, desc_norm, amount, account, source, category_id, external_id
		   FROM transactions WHERE period = ? ORDER BY date, id`,
		p.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func scanTransaction(rows *sql.Rows) (model.Transaction, error) {
	var t model.Transaction
	var date, amount, source string
	if err := rows.Scan(&t.ID, &date, &t.Description, &t.NormalizedDesc, &amount,
		&t.Account, &source, &t.CategoryID, &t.ExternalID); err != nil {
		return model.Transaction{}, fmt.Errorf("scanning transaction: %w", err)
	}
	parsed, err := time.Parse(dateFormat, date)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing stored date %q: %w", date, err)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing stored amount %q: %w", amount, err)
	}
	t.Date = parsed
	t.Amount = amt
	t.Source = model.Source(source)
	return t, nil
}
