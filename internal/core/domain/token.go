package domain

import "time"

// PaymentToken is the decoded form of a scannable payment URI. It is created
// transiently for display or transmission and never persisted as-is; once
// scanned it is converted into a PaymentEntry, carrying Reference over for
// idempotency.
type PaymentToken struct {
	PayeeID   string `json:"payee_id"`
	PayeeName string `json:"payee_name,omitempty"`
	Amount    int64  `json:"amount"` // In minor units (paise)
	Note      string `json:"note,omitempty"`
	Reference string `json:"reference"`
	Currency  string `json:"currency"`
	Expiry    int64  `json:"expiry,omitempty"` // Epoch milliseconds; 0 = no freshness guarantee
}

// Fresh reports whether the token is still valid at the given instant.
// A token without an expiry carries no freshness guarantee and is treated
// as already expired.
func (t *PaymentToken) Fresh(now time.Time) bool {
	if t.Expiry == 0 {
		return false
	}
	return now.UnixMilli() <= t.Expiry
}
