package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provision is a manually entered expected expense for a period. Unlike
// imported transactions, provisions are fully editable and deletable.
type Provision struct {
	ID          int64
	Period      string // "YYYY-MM"
	Description string
	Amount      decimal.Decimal
	DueDate     time.Time
}
