package ports

import (
	"context"

	"rupeeverse-engine/internal/core/domain"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks rupeeverse-engine/internal/core/ports SlotStore,QueueStore,Transport,ConnectivityMonitor,SyncEngine,QueueService

// QueueSlot is the name of the persisted slot holding the payment queue.
const QueueSlot = "offline_payment_queue"

// SlotStore is the persistence medium consumed by the queue store: a
// byte-string read/write primitive over a single named slot. Get returns
// nil, nil when the slot does not exist.
type SlotStore interface {
	Get(ctx context.Context, slot string) ([]byte, error)
	Set(ctx context.Context, slot string, data []byte) error
	Delete(ctx context.Context, slot string) error
}

// QueueStore is the single source of truth for pending payments. All
// mutations pass through its critical section; entries are returned in
// insertion order and corrupt envelopes are dropped from results.
type QueueStore interface {
	ListAll(ctx context.Context) ([]domain.PaymentEntry, error)
	Append(ctx context.Context, req AppendRequest) (*domain.PaymentEntry, error)
	UpdateStatus(ctx context.Context, id string, req StatusUpdate) (*domain.PaymentEntry, error)
	Remove(ctx context.Context, id string) error
	// RecoverStale demotes entries left in PROCESSING by a crash back to
	// PENDING so they are retried on the next pass.
	RecoverStale(ctx context.Context) (int, error)
}

// AppendRequest holds the caller-supplied fields of a new queue entry.
// ID, CreatedAt, Status and Synced are assigned by the store.
type AppendRequest struct {
	Amount         int64
	CounterpartyID string
	Note           string
	Reference      string
}

// StatusUpdate holds the mutable fields rewritten by UpdateStatus.
type StatusUpdate struct {
	Status        domain.EntryStatus
	Synced        bool
	RemoteTxID    string
	FailureReason string
}
