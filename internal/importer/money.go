package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultDateFormats are tried in order when a layout does not override
// them. Brazilian exports use day-first dates.
var DefaultDateFormats = []string{
	"02/01/2006",
	"2006-01-02",
	"02-01-2006",
	time.RFC3339,
}

// ParseMoney parses a statement amount. Handles Brazilian formatting
// ("1.234,56", "R$ 120,50", trailing minus "123,45-") as well as plain
// decimal values.
func ParseMoney(s string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' || r == ',' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	// Brazilian convention: dot as thousands separator, comma as decimal.
	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}
	if strings.HasSuffix(cleaned, "-") {
		cleaned = "-" + strings.TrimSuffix(cleaned, "-")
	}
	switch cleaned {
	case "", "-", ".":
		return decimal.Decimal{}, fmt.Errorf("no amount in %q", s)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}

// ParseDate parses a statement date, trying each format in order.
func ParseDate(s string, formats []string) (time.Time, error) {
	if len(formats) == 0 {
		formats = DefaultDateFormats
	}
	trimmed := strings.TrimSpace(s)
	for _, f := range formats {
		if t, err := time.Parse(f, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q", s)
}
