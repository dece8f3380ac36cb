package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"rupeeverse-engine/internal/core/domain"
	"rupeeverse-engine/internal/core/ports"
	"rupeeverse-engine/pkg/apperror"
	"rupeeverse-engine/pkg/metrics"

	"github.com/rs/zerolog"
)

// DurableQueueStore implements ports.QueueStore over a single named slot of
// the SlotStore, with every persisted list wrapped in the integrity
// envelope. It is the single source of truth for what is pending; all
// mutations run inside one mutex so a concurrent create and sync pass can
// never interleave a read-modify-write.
type DurableQueueStore struct {
	mu     sync.Mutex
	slots  ports.SlotStore
	sealer ports.Sealer
	slot   string
	now    func() time.Time
	m      *metrics.Metrics
	log    zerolog.Logger
}

// NewDurableQueueStore creates a queue store persisting to the named slot.
func NewDurableQueueStore(
	slots ports.SlotStore,
	sealer ports.Sealer,
	m *metrics.Metrics,
	log zerolog.Logger,
) *DurableQueueStore {
	return &DurableQueueStore{
		slots:  slots,
		sealer: sealer,
		slot:   ports.QueueSlot,
		now:    time.Now,
		m:      m,
		log:    log,
	}
}

// WithClock overrides the id/createdAt clock, for tests.
func (s *DurableQueueStore) WithClock(now func() time.Time) *DurableQueueStore {
	s.now = now
	return s
}

// ListAll returns entries in insertion order. A corrupt envelope yields an
// empty list: the record is dropped silently from results, logged and
// counted, never surfaced as an error.
func (s *DurableQueueStore) ListAll(ctx context.Context) ([]domain.PaymentEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Append assigns id, createdAt, pending status and an idempotency
// reference when the caller supplied none, then re-seals and persists the
// full list. The previously persisted list stays authoritative when the
// write fails.
func (s *DurableQueueStore) Append(ctx context.Context, req ports.AppendRequest) (*domain.PaymentEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	reference := req.Reference
	if reference == "" {
		reference, err = generateReference()
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("generating reference: %w", err))
		}
	}

	now := s.now()
	suffix, err := generateReference()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generating id: %w", err))
	}

	entry := domain.PaymentEntry{
		ID:             fmt.Sprintf("%d-%s", now.UnixMilli(), suffix),
		Amount:         req.Amount,
		CounterpartyID: req.CounterpartyID,
		Note:           req.Note,
		Reference:      reference,
		Status:         domain.EntryStatusPending,
		Synced:         false,
		CreatedAt:      now.UnixMilli(),
	}

	entries = append(entries, entry)
	if err := s.persist(ctx, entries); err != nil {
		return nil, err
	}

	s.m.QueueDepth.Set(float64(countPending(entries)))
	s.log.Info().
		Str("entry_id", entry.ID).
		Int64("amount", entry.Amount).
		Str("counterparty", entry.CounterpartyID).
		Msg("entry appended to offline queue")

	return &entry, nil
}

// UpdateStatus replaces the matching entry's mutable fields and
// re-persists the whole list re-sealed. Illegal lifecycle transitions are
// rejected before anything is written.
func (s *DurableQueueStore) UpdateStatus(ctx context.Context, id string, upd ports.StatusUpdate) (*domain.PaymentEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range entries {
		if entries[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, apperror.ErrEntryNotFound(id)
	}

	entry := &entries[idx]
	if entry.Status != upd.Status && !entry.CanTransition(upd.Status) {
		return nil, apperror.ErrInvalidTransition(string(entry.Status), string(upd.Status))
	}
	if upd.Synced && upd.Status != domain.EntryStatusCompleted {
		return nil, apperror.ErrInvalidTransition(string(entry.Status), string(upd.Status))
	}

	entry.Status = upd.Status
	entry.Synced = upd.Synced
	if upd.RemoteTxID != "" {
		entry.RemoteTxID = upd.RemoteTxID
	}
	entry.FailureReason = upd.FailureReason
	if entry.IsTerminal() {
		processedAt := s.now().UnixMilli()
		entry.ProcessedAt = &processedAt
	}

	if err := s.persist(ctx, entries); err != nil {
		return nil, err
	}

	s.m.QueueDepth.Set(float64(countPending(entries)))
	updated := *entry
	return &updated, nil
}

// Remove prunes an entry from the persisted list. Intended for completed
// entries whose remote acknowledgement is durable; pruning is a caller
// policy, never automatic.
func (s *DurableQueueStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return err
	}

	kept := entries[:0]
	found := false
	for _, e := range entries {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return apperror.ErrEntryNotFound(id)
	}

	return s.persist(ctx, kept)
}

// RecoverStale demotes entries left in PROCESSING by a crash back to
// PENDING. Safe to retry: the reference idempotency key protects against a
// duplicate remote effect if the crashed submission actually landed.
func (s *DurableQueueStore) RecoverStale(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return 0, err
	}

	demoted := 0
	for i := range entries {
		if entries[i].Status == domain.EntryStatusProcessing {
			entries[i].Status = domain.EntryStatusPending
			demoted++
		}
	}
	if demoted == 0 {
		return 0, nil
	}

	if err := s.persist(ctx, entries); err != nil {
		return 0, err
	}

	s.log.Info().Int("count", demoted).Msg("demoted stale processing entries to pending")
	return demoted, nil
}

// load reads and verifies the persisted list. Callers must hold s.mu.
func (s *DurableQueueStore) load(ctx context.Context) ([]domain.PaymentEntry, error) {
	raw, err := s.slots.Get(ctx, s.slot)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("reading slot %s: %w", s.slot, err))
	}
	if raw == nil {
		return nil, nil
	}

	var record domain.SecureRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		// Undecodable bytes get the same treatment as a bad signature.
		s.m.CorruptRecords.Inc()
		s.log.Warn().Err(err).Msg("persisted queue record is not a valid envelope, dropping")
		return nil, nil
	}

	payload := s.sealer.Open(&record)
	if payload == nil {
		return nil, nil
	}

	var entries []domain.PaymentEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		s.m.CorruptRecords.Inc()
		s.log.Warn().Err(err).Msg("verified payload does not decode to entries, dropping")
		return nil, nil
	}
	return entries, nil
}

// persist re-seals and writes the full list. Callers must hold s.mu.
func (s *DurableQueueStore) persist(ctx context.Context, entries []domain.PaymentEntry) error {
	if entries == nil {
		entries = []domain.PaymentEntry{}
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("marshaling entries: %w", err))
	}

	record, err := s.sealer.Seal(payload)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("sealing entries: %w", err))
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("marshaling envelope: %w", err))
	}

	if err := s.slots.Set(ctx, s.slot, raw); err != nil {
		s.m.PersistFailures.Inc()
		return apperror.ErrPersistence(fmt.Errorf("writing slot %s: %w", s.slot, err))
	}
	return nil
}

func countPending(entries []domain.PaymentEntry) int {
	n := 0
	for _, e := range entries {
		if e.Status == domain.EntryStatusPending || e.Status == domain.EntryStatusProcessing {
			n++
		}
	}
	return n
}

// generateReference returns 8 hex characters from crypto/rand.
func generateReference() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
