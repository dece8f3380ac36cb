package domain

// EntryStatus represents the lifecycle state of a queued payment.
type EntryStatus string

const (
	EntryStatusPending    EntryStatus = "PENDING"
	EntryStatusProcessing EntryStatus = "PROCESSING"
	EntryStatusCompleted  EntryStatus = "COMPLETED"
	EntryStatusFailed     EntryStatus = "FAILED"
)

// PaymentEntry is one queued payment intent awaiting or having undergone
// synchronization with the remote ledger.
type PaymentEntry struct {
	ID             string      `json:"id"`
	Amount         int64       `json:"amount"` // In minor units (paise)
	CounterpartyID string      `json:"counterparty_id"`
	Note           string      `json:"note,omitempty"`
	Reference      string      `json:"reference,omitempty"`
	Status         EntryStatus `json:"status"`
	Synced         bool        `json:"synced"`
	CreatedAt      int64       `json:"created_at"` // Epoch milliseconds
	RemoteTxID     string      `json:"remote_tx_id,omitempty"`
	ProcessedAt    *int64      `json:"processed_at,omitempty"`
	FailureReason  string      `json:"failure_reason,omitempty"`
}

// IsTerminal returns true if the entry is in a final state.
func (e *PaymentEntry) IsTerminal() bool {
	return e.Status == EntryStatusCompleted || e.Status == EntryStatusFailed
}

// CanTransition reports whether moving from the entry's current status to
// next is a legal lifecycle step. Completed is reachable only through
// processing; a failed entry may re-enter pending for retry.
func (e *PaymentEntry) CanTransition(next EntryStatus) bool {
	switch e.Status {
	case EntryStatusPending:
		return next == EntryStatusProcessing
	case EntryStatusProcessing:
		return next == EntryStatusCompleted || next == EntryStatusFailed || next == EntryStatusPending
	case EntryStatusFailed:
		return next == EntryStatusPending
	default:
		return false
	}
}
