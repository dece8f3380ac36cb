package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rupeeverse-engine/internal/core/domain"
	"rupeeverse-engine/internal/core/ports"
	"rupeeverse-engine/internal/core/ports/mocks"
	"rupeeverse-engine/pkg/apperror"
	"rupeeverse-engine/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// memSlotStore is a trivial in-memory ports.SlotStore for store tests.
type memSlotStore struct {
	mu    sync.Mutex
	slots map[string][]byte
}

func newMemSlotStore() *memSlotStore {
	return &memSlotStore{slots: make(map[string][]byte)}
}

func (s *memSlotStore) Get(_ context.Context, slot string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.slots[slot]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (s *memSlotStore) Set(_ context.Context, slot string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot] = append([]byte(nil), data...)
	return nil
}

func (s *memSlotStore) Delete(_ context.Context, slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, slot)
	return nil
}

func newTestQueueStore(t *testing.T) (*DurableQueueStore, *memSlotStore, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewNop()
	sealer, err := NewEnvelopeService("store-test-secret", NewHMACSignatureService(), m, zerolog.Nop())
	require.NoError(t, err)
	slots := newMemSlotStore()
	return NewDurableQueueStore(slots, sealer, m, zerolog.Nop()), slots, m
}

func TestDurableQueueStore_EmptySlot(t *testing.T) {
	store, _, _ := newTestQueueStore(t)

	entries, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDurableQueueStore_AppendAssignsFields(t *testing.T) {
	store, _, _ := newTestQueueStore(t)
	fixed := time.UnixMilli(1756430000000)
	store.WithClock(func() time.Time { return fixed })

	entry, err := store.Append(context.Background(), ports.AppendRequest{
		Amount:         50000,
		CounterpartyID: "alice@rupeeverse",
		Note:           "rent",
	})
	require.NoError(t, err)

	assert.Regexp(t, `^1756430000000-[0-9a-f]{8}$`, entry.ID)
	assert.Regexp(t, `^[0-9a-f]{8}$`, entry.Reference)
	assert.Equal(t, domain.EntryStatusPending, entry.Status)
	assert.False(t, entry.Synced)
	assert.Equal(t, fixed.UnixMilli(), entry.CreatedAt)
}

func TestDurableQueueStore_AppendPreservesOrder(t *testing.T) {
	store, _, _ := newTestQueueStore(t)
	ctx := context.Background()

	a, err := store.Append(ctx, ports.AppendRequest{Amount: 1, CounterpartyID: "a"})
	require.NoError(t, err)
	b, err := store.Append(ctx, ports.AppendRequest{Amount: 2, CounterpartyID: "b"})
	require.NoError(t, err)
	c, err := store.Append(ctx, ports.AppendRequest{Amount: 3, CounterpartyID: "c"})
	require.NoError(t, err)

	entries, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{entries[0].ID, entries[1].ID, entries[2].ID})

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, b.ID, c.ID)
}

func TestDurableQueueStore_AppendKeepsSuppliedReference(t *testing.T) {
	store, _, _ := newTestQueueStore(t)

	entry, err := store.Append(context.Background(), ports.AppendRequest{
		Amount:         100,
		CounterpartyID: "x",
		Reference:      "cafe0123",
	})
	require.NoError(t, err)
	assert.Equal(t, "cafe0123", entry.Reference)
}

func TestDurableQueueStore_SurvivesReload(t *testing.T) {
	m := metrics.NewNop()
	sealer, err := NewEnvelopeService("store-test-secret", NewHMACSignatureService(), m, zerolog.Nop())
	require.NoError(t, err)
	slots := newMemSlotStore()
	ctx := context.Background()

	first := NewDurableQueueStore(slots, sealer, m, zerolog.Nop())
	entry, err := first.Append(ctx, ports.AppendRequest{Amount: 100, CounterpartyID: "x"})
	require.NoError(t, err)

	// A second store over the same slot sees the persisted entry.
	second := NewDurableQueueStore(slots, sealer, m, zerolog.Nop())
	entries, err := second.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
}

func TestDurableQueueStore_CorruptSlotYieldsEmpty(t *testing.T) {
	store, slots, m := newTestQueueStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, ports.AppendRequest{Amount: 100, CounterpartyID: "x"})
	require.NoError(t, err)

	// Tamper with the persisted bytes.
	raw, err := slots.Get(ctx, ports.QueueSlot)
	require.NoError(t, err)
	raw[len(raw)/2] ^= 0xff
	require.NoError(t, slots.Set(ctx, ports.QueueSlot, raw))

	entries, err := store.ListAll(ctx)
	require.NoError(t, err, "corruption must not surface as an error")
	assert.Empty(t, entries)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.CorruptRecords), float64(1))
}

func TestDurableQueueStore_CorruptSlotRecoversOnNextAppend(t *testing.T) {
	store, slots, _ := newTestQueueStore(t)
	ctx := context.Background()

	require.NoError(t, slots.Set(ctx, ports.QueueSlot, []byte("not an envelope")))

	entry, err := store.Append(ctx, ports.AppendRequest{Amount: 100, CounterpartyID: "x"})
	require.NoError(t, err)

	entries, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
}

func TestDurableQueueStore_UpdateStatus_Lifecycle(t *testing.T) {
	store, _, _ := newTestQueueStore(t)
	ctx := context.Background()

	entry, err := store.Append(ctx, ports.AppendRequest{Amount: 100, CounterpartyID: "x"})
	require.NoError(t, err)

	updated, err := store.UpdateStatus(ctx, entry.ID, ports.StatusUpdate{Status: domain.EntryStatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusProcessing, updated.Status)
	assert.Nil(t, updated.ProcessedAt)

	updated, err = store.UpdateStatus(ctx, entry.ID, ports.StatusUpdate{
		Status:     domain.EntryStatusCompleted,
		Synced:     true,
		RemoteTxID: "rtx-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusCompleted, updated.Status)
	assert.True(t, updated.Synced)
	assert.Equal(t, "rtx-1", updated.RemoteTxID)
	require.NotNil(t, updated.ProcessedAt)
}

func TestDurableQueueStore_UpdateStatus_IllegalTransition(t *testing.T) {
	store, _, _ := newTestQueueStore(t)
	ctx := context.Background()

	entry, err := store.Append(ctx, ports.AppendRequest{Amount: 100, CounterpartyID: "x"})
	require.NoError(t, err)

	// Pending cannot jump straight to completed.
	_, err = store.UpdateStatus(ctx, entry.ID, ports.StatusUpdate{Status: domain.EntryStatusCompleted})
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "QUE_004", appErr.Code)

	// Synced is only legal together with completed.
	_, err = store.UpdateStatus(ctx, entry.ID, ports.StatusUpdate{Status: domain.EntryStatusProcessing, Synced: true})
	assert.Error(t, err)
}

func TestDurableQueueStore_UpdateStatus_NotFound(t *testing.T) {
	store, _, _ := newTestQueueStore(t)

	_, err := store.UpdateStatus(context.Background(), "missing", ports.StatusUpdate{Status: domain.EntryStatusProcessing})
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "QUE_003", appErr.Code)
}

func TestDurableQueueStore_Remove(t *testing.T) {
	store, _, _ := newTestQueueStore(t)
	ctx := context.Background()

	a, err := store.Append(ctx, ports.AppendRequest{Amount: 1, CounterpartyID: "a"})
	require.NoError(t, err)
	b, err := store.Append(ctx, ports.AppendRequest{Amount: 2, CounterpartyID: "b"})
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, a.ID))

	entries, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, b.ID, entries[0].ID)

	assert.Error(t, store.Remove(ctx, a.ID))
}

func TestDurableQueueStore_RecoverStale(t *testing.T) {
	store, _, _ := newTestQueueStore(t)
	ctx := context.Background()

	a, err := store.Append(ctx, ports.AppendRequest{Amount: 1, CounterpartyID: "a"})
	require.NoError(t, err)
	b, err := store.Append(ctx, ports.AppendRequest{Amount: 2, CounterpartyID: "b"})
	require.NoError(t, err)

	_, err = store.UpdateStatus(ctx, a.ID, ports.StatusUpdate{Status: domain.EntryStatusProcessing})
	require.NoError(t, err)

	demoted, err := store.RecoverStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, demoted)

	entries, err := store.ListAll(ctx)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, domain.EntryStatusPending, e.Status)
	}
	_ = b

	// Nothing left to demote.
	demoted, err = store.RecoverStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, demoted)
}

func TestDurableQueueStore_PersistFailureKeepsOldList(t *testing.T) {
	ctrl := gomock.NewController(t)
	slots := mocks.NewMockSlotStore(ctrl)
	m := metrics.NewNop()
	sealer, err := NewEnvelopeService("store-test-secret", NewHMACSignatureService(), m, zerolog.Nop())
	require.NoError(t, err)
	store := NewDurableQueueStore(slots, sealer, m, zerolog.Nop())

	slots.EXPECT().Get(gomock.Any(), ports.QueueSlot).Return(nil, nil)
	slots.EXPECT().Set(gomock.Any(), ports.QueueSlot, gomock.Any()).Return(errors.New("disk full"))

	_, err = store.Append(context.Background(), ports.AppendRequest{Amount: 100, CounterpartyID: "x"})
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "STO_001", appErr.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PersistFailures))
}
