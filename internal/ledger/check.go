package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contas-dev/contas/internal/period"
)

func parseStoredDate(s string) (time.Time, error) {
	return time.Parse(dateFormat, s)
}

// CheckError describes a single integrity violation in the stored ledger.
type CheckError struct {
	Rule          int
	TransactionID int64
	Description   string
}

func (e CheckError) Error() string {
	return fmt.Sprintf("rule %d [tx %d]: %s", e.Rule, e.TransactionID, e.Description)
}

// Check enforces 3 invariants over the whole ledger:
//  1. Amounts carry at most 2 decimal places.
//  2. Category references point at existing categories (0 = none).
//  3. The stored period column matches the transaction date.
func (s *Store) Check() ([]CheckError, error) {
	cats, err := s.Categories()
	if err != nil {
		return nil, err
	}
	known := make(map[int64]bool, len(cats))
	for _, c := range cats {
		known[c.ID] = true
	}

	rows, err := s.db.Query(`SELECT id, date, period, amount, category_id FROM transactions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}
	defer rows.Close()

	hundred := decimal.NewFromInt(100)
	var errs []CheckError
	for rows.Next() {
		var id, categoryID int64
		var date, periodCol, amountStr string
		if err := rows.Scan(&id, &date, &periodCol, &amountStr, &categoryID); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			errs = append(errs, CheckError{Rule: 1, TransactionID: id,
				Description: fmt.Sprintf("unparsable amount %q", amountStr)})
		} else if !amount.Mul(hundred).Equal(amount.Mul(hundred).Floor()) {
			errs = append(errs, CheckError{Rule: 1, TransactionID: id,
				Description: fmt.Sprintf("amount %s has more than 2 decimal places", amount)})
		}

		if categoryID != 0 && !known[categoryID] {
			errs = append(errs, CheckError{Rule: 2, TransactionID: id,
				Description: fmt.Sprintf("unknown category %d", categoryID)})
		}

		if parsed, err := parseStoredDate(date); err != nil {
			errs = append(errs, CheckError{Rule: 3, TransactionID: id,
				Description: fmt.Sprintf("unparsable date %q", date)})
		} else if period.Of(parsed).String() != periodCol {
			errs = append(errs, CheckError{Rule: 3, TransactionID: id,
				Description: fmt.Sprintf("period %s does not match date %s", periodCol, date)})
		}
	}
	return errs, rows.Err()
}
