package model

import (
	"encoding/json"
	"strings"
)

// RawTransaction is a transaction payload as returned by the Open Finance
// transactions endpoint. Banks disagree on field names and on whether the
// amount is a scalar or an object, so every accessor falls back across the
// known variants.
type RawTransaction struct {
	TransactionID   string          `json:"transactionId"`
	AltID           string          `json:"id"`
	BookingDate     string          `json:"bookingDate"`
	TransactionDate string          `json:"transactionDate"`
	ValueDateTime   string          `json:"valueDateTime"`
	EffectiveDate   string          `json:"effectiveDate"`
	Date            string          `json:"date"`
	Description     string          `json:"description"`
	Remittance      string          `json:"remittanceInformation"`
	TransactionName string          `json:"transactionName"`
	TransactionType string          `json:"transactionType"`
	AdditionalInfo  string          `json:"additionalInfo"`
	Type            string          `json:"type"`
	CreditDebitType string          `json:"creditDebitType"`
	Amount          json.RawMessage `json:"amount"`
}

// amountObject is the nested form: {"amount": "123.45", "currency": "BRL"}.
type amountObject struct {
	Amount   json.RawMessage `json:"amount"`
	Currency string          `json:"currency"`
}

// ExternalID returns the bank's transaction identifier, if any.
func (r RawTransaction) ExternalID() string {
	if r.TransactionID != "" {
		return r.TransactionID
	}
	return r.AltID
}

// BestDate returns the first populated date field, in the bank's priority
// order.
func (r RawTransaction) BestDate() string {
	for _, v := range []string{r.BookingDate, r.TransactionDate, r.ValueDateTime, r.EffectiveDate, r.Date} {
		if v != "" {
			return v
		}
	}
	return ""
}

// BestDescription returns the first populated description-like field.
func (r RawTransaction) BestDescription() string {
	for _, v := range []string{r.Description, r.Remittance, r.TransactionName, r.TransactionType, r.AdditionalInfo, r.Type} {
		if v != "" {
			return v
		}
	}
	return ""
}

// AmountString returns the raw amount as a string, unwrapping the nested
// object form when present. Empty string when absent.
func (r RawTransaction) AmountString() string {
	if len(r.Amount) == 0 {
		return ""
	}
	var obj amountObject
	if err := json.Unmarshal(r.Amount, &obj); err == nil && len(obj.Amount) > 0 {
		return rawScalar(obj.Amount)
	}
	return rawScalar(r.Amount)
}

// SignHint reports the direction the payload declares: -1 debit, +1 credit,
// 0 when the payload carries no hint (amount sign is taken as-is).
func (r RawTransaction) SignHint() int {
	hint := strings.ToLower(r.CreditDebitType)
	if hint == "" {
		hint = strings.ToLower(r.Type)
	}
	switch {
	case strings.Contains(hint, "debit"), strings.Contains(hint, "debito"):
		return -1
	case strings.Contains(hint, "credit"), strings.Contains(hint, "credito"):
		return 1
	}
	return 0
}

func rawScalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
