package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contas-dev/contas/internal/model"
)

// AddProvision records a manually entered expected expense.
func (s *Store) AddProvision(p model.Provision) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO provisions (period, description, amount, due_date) VALUES (?, ?, ?, ?)`,
		p.Period, p.Description, p.Amount.StringFixed(2), p.DueDate.Format(dateFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("adding provision: %w", err)
	}
	return res.LastInsertId()
}

// UpdateProvision rewrites a provision in place.
func (s *Store) UpdateProvision(p model.Provision) error {
	res, err := s.db.Exec(
		`UPDATE provisions SET period = ?, description = ?, amount = ?, due_date = ? WHERE id = ?`,
		p.Period, p.Description, p.Amount.StringFixed(2), p.DueDate.Format(dateFormat), p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating provision: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown provision %d", p.ID)
	}
	return nil
}

// DeleteProvision removes a provision. Unlike imported transactions,
// provisions are user-owned and freely deletable.
func (s *Store) DeleteProvision(id int64) error {
	res, err := s.db.Exec(`DELETE FROM provisions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting provision: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown provision %d", id)
	}
	return nil
}

// ListProvisions returns a period's provisions ordered by due date.
func (s *Store) ListProvisions(periodStr string) ([]model.Provision, error) {
	rows, err := s.db.Query(
		`SELECT id, period, description, amount, due_date FROM provisions
		  WHERE period = ? ORDER BY due_date, id`,
		periodStr,
	)
	if err != nil {
		return nil, fmt.Errorf("listing provisions: %w", err)
	}
	defer rows.Close()

	var provisions []model.Provision
	for rows.Next() {
		var p model.Provision
		var amount, due string
		if err := rows.Scan(&p.ID, &p.Period, &p.Description, &amount, &due); err != nil {
			return nil, fmt.Errorf("scanning provision: %w", err)
		}
		p.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parsing stored amount %q: %w", amount, err)
		}
		p.DueDate, err = time.Parse(dateFormat, due)
		if err != nil {
			return nil, fmt.Errorf("parsing stored due date %q: %w", due, err)
		}
		provisions = append(provisions, p)
	}
	return provisions, rows.Err()
}
