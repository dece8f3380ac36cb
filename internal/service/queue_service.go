package service

import (
	"context"
	"sync"
	"time"

	"rupeeverse-engine/internal/core/domain"
	"rupeeverse-engine/internal/core/ports"
	"rupeeverse-engine/pkg/apperror"

	"github.com/rs/zerolog"
)

// QueueFacade implements ports.QueueService, the surface the UI consumes.
// It validates input, delegates persistence to the queue store, and owns
// the sync triggers: opportunistic after create, on reconnect, and a
// periodic safety-net tick while online.
type QueueFacade struct {
	store   ports.QueueStore
	engine  ports.SyncEngine
	monitor ports.ConnectivityMonitor
	log     zerolog.Logger

	mu     sync.Mutex
	subs   map[int]chan ports.QueueStatus
	nextID int
	closed bool

	done   chan struct{}
	wg     sync.WaitGroup
	syncWG sync.WaitGroup
}

// NewQueueFacade creates the facade and starts its trigger loop. interval
// is the periodic safety-net sync cadence.
func NewQueueFacade(
	store ports.QueueStore,
	engine ports.SyncEngine,
	monitor ports.ConnectivityMonitor,
	interval time.Duration,
	log zerolog.Logger,
) *QueueFacade {
	f := &QueueFacade{
		store:   store,
		engine:  engine,
		monitor: monitor,
		log:     log,
		subs:    make(map[int]chan ports.QueueStatus),
		done:    make(chan struct{}),
	}

	f.wg.Add(1)
	go f.run(interval)
	return f
}

// CreateEntry validates and queues a payment. When online, a sync pass is
// kicked off in the background; callers never block on synchronization.
func (f *QueueFacade) CreateEntry(ctx context.Context, req ports.CreateEntryRequest) (*domain.PaymentEntry, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.CounterpartyID == "" {
		return nil, apperror.ErrEmptyCounterparty()
	}

	entry, err := f.store.Append(ctx, ports.AppendRequest{
		Amount:         req.Amount,
		CounterpartyID: req.CounterpartyID,
		Note:           req.Note,
		Reference:      req.Reference,
	})
	if err != nil {
		return nil, err
	}

	f.publishStatus(ctx)

	if f.monitor.IsOnline() {
		f.triggerSync()
	}

	return entry, nil
}

// ListEntries returns all entries, including completed history, in
// creation order.
func (f *QueueFacade) ListEntries(ctx context.Context) ([]domain.PaymentEntry, error) {
	return f.store.ListAll(ctx)
}

// GetStatus returns the read-only snapshot driving the pending-count badge.
func (f *QueueFacade) GetStatus(ctx context.Context) ports.QueueStatus {
	status := ports.QueueStatus{IsOnline: f.monitor.IsOnline()}

	entries, err := f.store.ListAll(ctx)
	if err != nil {
		f.log.Error().Err(err).Msg("status snapshot could not read the store")
		return status
	}

	status.QueueLength = len(entries)
	for _, e := range entries {
		if e.Status == domain.EntryStatusPending || e.Status == domain.EntryStatusProcessing {
			status.PendingCount++
		}
	}
	return status
}

// ForceSync is the explicit user-triggered retry. It fails fast when
// offline and re-enters previously failed entries into the batch.
func (f *QueueFacade) ForceSync(ctx context.Context) (*ports.SyncSummary, error) {
	if !f.monitor.IsOnline() {
		return nil, apperror.ErrOffline()
	}

	summary, err := f.engine.SyncOnce(ctx, true)
	if err != nil {
		return nil, err
	}

	f.publishStatus(ctx)
	return summary, nil
}

// SubscribeStatus registers a listener for status-changed notifications.
// The returned cancel func releases the subscription.
func (f *QueueFacade) SubscribeStatus() (<-chan ports.QueueStatus, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan ports.QueueStatus, 4)
	f.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if sub, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Close stops the trigger loop, waits for any in-flight background sync,
// and closes all status subscriptions.
func (f *QueueFacade) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.mu.Unlock()

	close(f.done)
	f.wg.Wait()
	f.syncWG.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}

// run consumes reconnect notifications and the periodic ticker. Both
// triggers funnel into the engine, whose reentrant guard collapses
// overlapping passes into one.
func (f *QueueFacade) run(interval time.Duration) {
	defer f.wg.Done()

	events, unsubscribe := f.monitor.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Online {
				f.log.Info().Msg("reconnected, draining offline queue")
				f.runSync()
			}

		case <-ticker.C:
			if f.monitor.IsOnline() {
				f.runSync()
			}
		}
	}
}

// triggerSync runs one background pass, fire-and-forget.
func (f *QueueFacade) triggerSync() {
	f.syncWG.Add(1)
	go func() {
		defer f.syncWG.Done()
		f.runSync()
	}()
}

func (f *QueueFacade) runSync() {
	ctx := context.Background()
	if _, err := f.engine.SyncOnce(ctx, false); err != nil {
		f.log.Error().Err(err).Msg("background sync pass failed")
		return
	}
	f.publishStatus(ctx)
}

// publishStatus pushes a fresh snapshot to all subscribers without
// blocking on slow consumers. The sends happen under the mutex: cancel
// closes channels under the same mutex, so a send can never hit a closed
// channel.
func (f *QueueFacade) publishStatus(ctx context.Context) {
	status := f.GetStatus(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		select {
		case ch <- status:
		default:
		}
	}
}
