package service

import (
	"context"
	"sync/atomic"
	"time"

	"rupeeverse-engine/internal/core/domain"
	"rupeeverse-engine/internal/core/ports"
	"rupeeverse-engine/pkg/metrics"

	"github.com/rs/zerolog"
)

// SyncEngineImpl implements ports.SyncEngine. One pass drains pending
// entries in creation order, submitting each to the Transport with the
// entry's reference as the idempotency key. The batch halts on the first
// failure: a later payment must never land ahead of an earlier one the
// remote ledger has not accepted.
type SyncEngineImpl struct {
	store         ports.QueueStore
	transport     ports.Transport
	monitor       ports.ConnectivityMonitor
	submitTimeout time.Duration
	inFlight      atomic.Bool
	m             *metrics.Metrics
	log           zerolog.Logger
}

// NewSyncEngine creates a sync engine. submitTimeout bounds each
// individual Transport submission.
func NewSyncEngine(
	store ports.QueueStore,
	transport ports.Transport,
	monitor ports.ConnectivityMonitor,
	submitTimeout time.Duration,
	m *metrics.Metrics,
	log zerolog.Logger,
) *SyncEngineImpl {
	return &SyncEngineImpl{
		store:         store,
		transport:     transport,
		monitor:       monitor,
		submitTimeout: submitTimeout,
		m:             m,
		log:           log,
	}
}

// SyncOnce runs at most one concurrent pass: an overlapping call is a
// no-op returning immediately, which keeps a reconnect event and a
// periodic tick firing together from double-submitting the same entry.
// Offline, it returns without any Transport calls. With retryFailed set,
// previously failed entries re-enter pending ahead of their attempt.
func (s *SyncEngineImpl) SyncOnce(ctx context.Context, retryFailed bool) (*ports.SyncSummary, error) {
	summary := &ports.SyncSummary{}

	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Debug().Msg("sync already in flight, skipping pass")
		return summary, nil
	}
	defer s.inFlight.Store(false)

	if !s.monitor.IsOnline() {
		return summary, nil
	}

	entries, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var batch []domain.PaymentEntry
	for _, e := range entries {
		switch e.Status {
		case domain.EntryStatusPending:
			batch = append(batch, e)
		case domain.EntryStatusFailed:
			if retryFailed {
				batch = append(batch, e)
			}
		}
	}
	if len(batch) == 0 {
		return summary, nil
	}

	s.log.Info().Int("batch_size", len(batch)).Msg("starting sync pass")

	halted := false
	for i := range batch {
		entry := &batch[i]

		if halted || ctx.Err() != nil || !s.monitor.IsOnline() {
			summary.Skipped++
			continue
		}

		if entry.Status == domain.EntryStatusFailed {
			if _, err := s.store.UpdateStatus(ctx, entry.ID, ports.StatusUpdate{
				Status: domain.EntryStatusPending,
			}); err != nil {
				s.log.Error().Err(err).Str("entry_id", entry.ID).Msg("failed to re-enter failed entry")
				summary.Skipped++
				halted = true
				continue
			}
		}

		// Persisting PROCESSING first leaves visible evidence of partial
		// progress if the process dies mid-submission.
		if _, err := s.store.UpdateStatus(ctx, entry.ID, ports.StatusUpdate{
			Status: domain.EntryStatusProcessing,
		}); err != nil {
			s.log.Error().Err(err).Str("entry_id", entry.ID).Msg("failed to mark entry processing")
			summary.Skipped++
			halted = true
			continue
		}

		ack, err := s.submit(ctx, entry)
		if err != nil {
			// A dropped connection mid-call is indistinguishable from a
			// rejection; the reference idempotency key makes the retried
			// submission safe either way.
			s.m.SubmitsTotal.WithLabelValues("failure").Inc()
			s.log.Warn().Err(err).Str("entry_id", entry.ID).Str("reference", entry.Reference).Msg("submission failed, halting batch")

			if _, uerr := s.store.UpdateStatus(ctx, entry.ID, ports.StatusUpdate{
				Status:        domain.EntryStatusFailed,
				FailureReason: err.Error(),
			}); uerr != nil {
				s.log.Error().Err(uerr).Str("entry_id", entry.ID).Msg("failed to record failure status")
			}

			summary.Failed++
			halted = true
			continue
		}

		if _, err := s.store.UpdateStatus(ctx, entry.ID, ports.StatusUpdate{
			Status:     domain.EntryStatusCompleted,
			Synced:     true,
			RemoteTxID: ack.RemoteTxID,
		}); err != nil {
			s.log.Error().Err(err).Str("entry_id", entry.ID).Msg("failed to record completion")
			summary.Skipped++
			halted = true
			continue
		}

		s.m.SubmitsTotal.WithLabelValues("success").Inc()
		summary.Completed++
		s.log.Info().
			Str("entry_id", entry.ID).
			Str("remote_tx_id", ack.RemoteTxID).
			Msg("entry synchronized")
	}

	outcome := "clean"
	if summary.Failed > 0 {
		outcome = "halted"
	}
	s.m.SyncPasses.WithLabelValues(outcome).Inc()

	s.log.Info().
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Msg("sync pass finished")

	return summary, nil
}

// submit bounds a single Transport call by the configured timeout.
func (s *SyncEngineImpl) submit(ctx context.Context, entry *domain.PaymentEntry) (*ports.Ack, error) {
	subCtx := ctx
	if s.submitTimeout > 0 {
		var cancel context.CancelFunc
		subCtx, cancel = context.WithTimeout(ctx, s.submitTimeout)
		defer cancel()
	}
	return s.transport.Submit(subCtx, entry)
}
