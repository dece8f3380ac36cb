package ports

import (
	"context"
	"time"

	"rupeeverse-engine/internal/core/domain"
)

// Sealer wraps serialized payloads in the integrity envelope.
type Sealer interface {
	// Seal stamps the current time and signs (payload, timestamp).
	Seal(payload []byte) (*domain.SecureRecord, error)
	// Open recomputes the signature and returns the payload only if it
	// matches; a mismatch yields nil, identical to "no record exists".
	Open(record *domain.SecureRecord) []byte
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// Ack is the remote ledger's acknowledgement of a submitted payment.
type Ack struct {
	RemoteTxID string
	AcceptedAt time.Time
}

// Transport submits one payment to the remote ledger. Implementations must
// honour ctx cancellation and deadlines; the entry's Reference doubles as
// the idempotency key so a retried submission is deduplicated server-side.
type Transport interface {
	Submit(ctx context.Context, entry *domain.PaymentEntry) (*Ack, error)
}

// ConnectivitySource is the platform-level connectivity signal: an
// immediate probe plus a raw change stream that may flap.
type ConnectivitySource interface {
	Online() bool
	Changes() <-chan bool
}

// ConnectivityEvent is one debounced online/offline transition.
type ConnectivityEvent struct {
	Online bool
	At     time.Time
}

// ConnectivityMonitor tracks online/offline transitions and exposes a
// debounced event stream. Subscribe returns a receive channel plus a
// cancel func that must be called to release the subscription.
type ConnectivityMonitor interface {
	IsOnline() bool
	Subscribe() (<-chan ConnectivityEvent, func())
	Close()
}

// SyncSummary reports the outcome of one sync pass for UI display.
type SyncSummary struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// SyncEngine drains pending entries in creation order, submitting each to
// the Transport. At most one pass runs at a time; an overlapping SyncOnce
// is a no-op. The batch halts on the first hard failure so a later payment
// is never attempted ahead of an earlier one that failed.
type SyncEngine interface {
	SyncOnce(ctx context.Context, retryFailed bool) (*SyncSummary, error)
}

// QueueStatus is the read-only snapshot exposed to the UI badge.
type QueueStatus struct {
	QueueLength  int  `json:"queue_length"`
	PendingCount int  `json:"pending_count"`
	IsOnline     bool `json:"is_online"`
}

// CreateEntryRequest holds validated input for queueing a payment.
type CreateEntryRequest struct {
	Amount         int64
	CounterpartyID string
	Note           string
	Reference      string // Optional; carried over from a scanned token
}

// QueueService is the facade consumed by the UI layer.
type QueueService interface {
	CreateEntry(ctx context.Context, req CreateEntryRequest) (*domain.PaymentEntry, error)
	ListEntries(ctx context.Context) ([]domain.PaymentEntry, error)
	GetStatus(ctx context.Context) QueueStatus
	ForceSync(ctx context.Context) (*SyncSummary, error)
	SubscribeStatus() (<-chan QueueStatus, func())
	Close()
}

// TokenRequest holds input for encoding a payment token.
type TokenRequest struct {
	Amount    int64
	PayeeID   string
	PayeeName string
	Note      string
	Reference string // Generated when empty
	Currency  string
	TTL       time.Duration // Zero means the codec default
}

// TokenCodec encodes and decodes the scannable payment URI. Pure; no I/O.
type TokenCodec interface {
	Encode(req TokenRequest) (string, *domain.PaymentToken, error)
	Decode(token string) (*domain.PaymentToken, error)
}
