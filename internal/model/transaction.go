package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies where a transaction was imported from.
type Source string

const (
	SourceFile Source = "file"
	SourceAPI  Source = "api"
)

// Transaction represents an imported statement row. Imported transactions
// are immutable except for CategoryID, which the user may change at any time.
type Transaction struct {
	ID             int64
	Date           time.Time
	Description    string
	NormalizedDesc string
	Amount         decimal.Decimal // negative = expense, positive = income
	Account        string
	Source         Source
	CategoryID     int64  // 0 = unclassified
	ExternalID     string // bank transaction id, API imports only
}

// NormalizeDesc collapses a description for duplicate comparison:
// lowercase, trimmed, interior whitespace squeezed to single spaces.
func NormalizeDesc(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// DedupKey identifies a transaction for duplicate detection. Seq
// disambiguates legitimate repeats within the same statement (two
// identical purchases on the same day).
type DedupKey struct {
	Account     string
	Date        string // 2006-01-02
	Amount      string // fixed 2 decimals
	Description string // normalized
	Seq         int
}

// Key returns the dedup key for a transaction with the given occurrence
// sequence.
func (t Transaction) Key(seq int) DedupKey {
	return DedupKey{
		Account:     t.Account,
		Date:        t.Date.Format("2006-01-02"),
		Amount:      t.Amount.StringFixed(2),
		Description: NormalizeDesc(t.Description),
		Seq:         seq,
	}
}
