package importer

import (
	"strings"

	"github.com/contas-dev/contas/internal/model"
)

// Report counts what happened to each input row. Rows never disappear
// silently: every row is imported, skipped or counted as a parse error.
type Report struct {
	Total       int
	Imported    int
	Skipped     int // balance lines and other skip-prefix rows
	ParseErrors int // rows missing a parsable date or amount
}

// Normalize maps a raw statement grid onto transactions using a layout.
// Deterministic: the same grid always yields the same sequence.
func Normalize(grid [][]string, layout Layout, account string) ([]model.Transaction, Report) {
	var txns []model.Transaction
	var rep Report

	maxCol := layout.DateColumn
	if layout.DescColumn > maxCol {
		maxCol = layout.DescColumn
	}
	if layout.AmountColumn > maxCol {
		maxCol = layout.AmountColumn
	}

	for i, row := range grid {
		if i < layout.HeaderRows {
			continue
		}
		rep.Total++

		if len(row) <= maxCol {
			if isBlank(row) {
				rep.Total--
				continue
			}
			rep.ParseErrors++
			continue
		}

		desc := strings.TrimSpace(row[layout.DescColumn])
		if hasSkipPrefix(desc, layout.SkipPrefixes) {
			rep.Skipped++
			continue
		}

		date, err := ParseDate(row[layout.DateColumn], layout.DateFormats)
		if err != nil {
			rep.ParseErrors++
			continue
		}
		amount, err := ParseMoney(row[layout.AmountColumn])
		if err != nil {
			rep.ParseErrors++
			continue
		}
		if layout.InvertSign {
			amount = amount.Neg()
		}

		txns = append(txns, model.Transaction{
			Date:           date,
			Description:    desc,
			NormalizedDesc: model.NormalizeDesc(desc),
			Amount:         amount,
			Account:        account,
			Source:         model.SourceFile,
		})
		rep.Imported++
	}
	return txns, rep
}

// FromAPI normalizes Open Finance transaction payloads with the same
// reporting semantics as file imports. The creditDebitType hint wins over
// the amount's own sign.
func FromAPI(raws []model.RawTransaction, account string) ([]model.Transaction, Report) {
	var txns []model.Transaction
	var rep Report

	for _, raw := range raws {
		rep.Total++

		date, err := ParseDate(raw.BestDate(), nil)
		if err != nil {
			rep.ParseErrors++
			continue
		}
		amount, err := ParseMoney(raw.AmountString())
		if err != nil {
			rep.ParseErrors++
			continue
		}
		switch raw.SignHint() {
		case -1:
			amount = amount.Abs().Neg()
		case 1:
			amount = amount.Abs()
		}

		desc := raw.BestDescription()
		txns = append(txns, model.Transaction{
			Date:           date,
			Description:    desc,
			NormalizedDesc: model.NormalizeDesc(desc),
			Amount:         amount,
			Account:        account,
			Source:         model.SourceAPI,
			ExternalID:     raw.ExternalID(),
		})
		rep.Imported++
	}
	return txns, rep
}

func hasSkipPrefix(desc string, prefixes []string) bool {
	upper := strings.ToUpper(desc)
	for _, p := range prefixes {
		if strings.HasPrefix(upper, strings.ToUpper(p)) {
			return true
		}
	}
	return false
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
