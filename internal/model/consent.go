package model

import "time"

// ConsentStatus is the authorization state of an Open Finance consent.
type ConsentStatus string

const (
	ConsentAwaitingAuthorisation ConsentStatus = "AWAITING_AUTHORISATION"
	ConsentAuthorised            ConsentStatus = "AUTHORISED"
	ConsentRejected              ConsentStatus = "REJECTED"
	ConsentExpired               ConsentStatus = "EXPIRED"
)

// Permissions required before transaction reads are allowed.
const (
	PermAccountsRead             = "ACCOUNTS_READ"
	PermAccountsTransactionsRead = "ACCOUNTS_TRANSACTIONS_READ"
)

// RequiredTransactionPermissions is the minimum permission set for
// fetching account transactions.
var RequiredTransactionPermissions = []string{
	PermAccountsRead,
	PermAccountsTransactionsRead,
}

// Consent records an Open Finance consent and its authorization status.
// A consent is authorized by the account holder outside this application.
type Consent struct {
	ID          string
	Status      ConsentStatus
	Permissions []string
	ExpiresAt   time.Time // zero = no expiry communicated
}

// Authorized reports whether the consent allows calls needing the given
// permissions: status must be AUTHORISED, the consent must not be past its
// expiry, and the permission set must cover every required permission.
func (c Consent) Authorized(required ...string) bool {
	if c.Status != ConsentAuthorised {
		return false
	}
	if !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt) {
		return false
	}
	have := make(map[string]bool, len(c.Permissions))
	for _, p := range c.Permissions {
		have[p] = true
	}
	for _, p := range required {
		if !have[p] {
			return false
		}
	}
	return true
}
