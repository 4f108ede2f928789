package openfinance

import "fmt"

// ConsentRemediation is the user-facing guidance attached to consent
// failures. There is no automatic retry; the account holder has to act.
const ConsentRemediation = "the bank refused access for this consent: " +
	"check that the consent is AUTHORISED, that it covers account and " +
	"transaction reads, and that the token was issued for the same consent id"

// AuthError reports a failed token exchange or a 401 from the bank. The
// user should re-check credentials or refresh the static token.
type AuthError struct {
	Status int
	Detail string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("authentication failed (%d): %s", e.Status, e.Detail)
	}
	return "authentication failed: " + e.Detail
}

// ConsentError reports a consent that is not authorized for the requested
// operation, either detected locally or via a 403 from the bank.
type ConsentError struct {
	ConsentID string
	Detail    string
}

func (e *ConsentError) Error() string {
	if e.ConsentID != "" {
		return fmt.Sprintf("consent %s: %s", e.ConsentID, e.Detail)
	}
	return "consent: " + e.Detail
}

// APIError reports any other non-2xx response or transport failure.
type APIError struct {
	Status int // 0 = transport failure, no response
	URL    string
	Detail string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("calling %s: %s", e.URL, e.Detail)
	}
	return fmt.Sprintf("%s returned %d: %s", e.URL, e.Status, e.Detail)
}
