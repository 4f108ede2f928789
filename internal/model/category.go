package model

// CategoryKind classifies categories for reporting.
type CategoryKind string

const (
	KindFixed    CategoryKind = "fixed"
	KindVariable CategoryKind = "variable"
	KindIncome   CategoryKind = "income"
	KindNeutral  CategoryKind = "neutral" // transfers between own accounts
)

// Category is a user-defined classification for transactions.
type Category struct {
	ID   int64
	Name string
	Kind CategoryKind
}
