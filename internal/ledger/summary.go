package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/contas-dev/contas/internal/model"
	"github.com/contas-dev/contas/internal/period"
)

// CategoryTotal is one aggregation bucket in a period summary.
type CategoryTotal struct {
	CategoryID int64
	Name       string // "" = unclassified
	Kind       model.CategoryKind
	Total      decimal.Decimal
}

// Summary aggregates a period.
type Summary struct {
	Period      string
	ByCategory  []CategoryTotal
	Net         decimal.Decimal // all transactions except neutral categories
	Provisioned decimal.Decimal // manual provisions for the period
}

// Summarize aggregates transaction amounts by category for a period, plus
// the period's net total and provisioned amount. Transfers (neutral
// categories) stay out of the net.
func (s *Store) Summarize(p period.Period) (Summary, error) {
	txns, err := s.ListTransactions(p)
	if err != nil {
		return Summary{}, err
	}
	cats, err := s.Categories()
	if err != nil {
		return Summary{}, err
	}
	byID := make(map[int64]model.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}

	totals := make(map[int64]decimal.Decimal)
	var order []int64
	net := decimal.Zero
	for _, t := range txns {
		if _, seen := totals[t.CategoryID]; !seen {
			order = append(order, t.CategoryID)
		}
		totals[t.CategoryID] = totals[t.CategoryID].Add(t.Amount)
		if byID[t.CategoryID].Kind != model.KindNeutral {
			net = net.Add(t.Amount)
		}
	}

	summary := Summary{Period: p.String(), Net: net, Provisioned: decimal.Zero}
	for _, id := range order {
		ct := CategoryTotal{CategoryID: id, Total: totals[id]}
		if c, ok := byID[id]; ok {
			ct.Name = c.Name
			ct.Kind = c.Kind
		}
		summary.ByCategory = append(summary.ByCategory, ct)
	}

	provisions, err := s.ListProvisions(p.String())
	if err != nil {
		return Summary{}, err
	}
	for _, prov := range provisions {
		summary.Provisioned = summary.Provisioned.Add(prov.Amount)
	}
	return summary, nil
}
