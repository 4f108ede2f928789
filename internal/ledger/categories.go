package ledger

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/contas-dev/contas/internal/model"
)

// defaultCategories seeds a fresh ledger. "Transferências" is neutral so
// moves between the user's own accounts never count as income or expense.
var defaultCategories = []model.Category{
	{Name: "Moradia", Kind: model.KindFixed},
	{Name: "Alimentação", Kind: model.KindVariable},
	{Name: "Transporte", Kind: model.KindVariable},
	{Name: "Saúde", Kind: model.KindFixed},
	{Name: "Lazer", Kind: model.KindVariable},
	{Name: "Renda", Kind: model.KindIncome},
	{Name: "Transferências", Kind: model.KindNeutral},
}

// SeedCategories inserts the default categories, ignoring ones already
// present.
func (s *Store) SeedCategories() error {
	for _, c := range defaultCategories {
		if _, err := s.db.Exec(
			`INSERT OR IGNORE INTO categories (name, kind) VALUES (?, ?)`,
			c.Name, string(c.Kind),
		); err != nil {
			return fmt.Errorf("seeding category %s: %w", c.Name, err)
		}
	}
	return nil
}

// AddCategory creates a category and returns its id.
func (s *Store) AddCategory(name string, kind model.CategoryKind) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO categories (name, kind) VALUES (?, ?)`, name, string(kind))
	if err != nil {
		return 0, fmt.Errorf("adding category: %w", err)
	}
	return res.LastInsertId()
}

// Categories returns all categories ordered by name.
func (s *Store) Categories() ([]model.Category, error) {
	rows, err := s.db.Query(`SELECT id, name, kind FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		var c model.Category
		var kind string
		if err := rows.Scan(&c.ID, &c.Name, &kind); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		c.Kind = model.CategoryKind(kind)
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// CategoryByName returns a category id, creating the category when absent.
func (s *Store) CategoryByName(name string, kind model.CategoryKind) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("looking up category: %w", err)
	}
	return s.AddCategory(name, kind)
}
