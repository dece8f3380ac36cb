package service

import (
	"testing"
	"time"

	"rupeeverse-engine/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSealer(t *testing.T) (*EnvelopeService, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewNop()
	svc, err := NewEnvelopeService("test-master-secret", NewHMACSignatureService(), m, zerolog.Nop())
	require.NoError(t, err)
	return svc, m
}

func TestEnvelopeService_RequiresSecret(t *testing.T) {
	_, err := NewEnvelopeService("", NewHMACSignatureService(), metrics.NewNop(), zerolog.Nop())
	assert.Error(t, err)
}

func TestEnvelopeService_SealOpen_RoundTrip(t *testing.T) {
	svc, _ := newTestSealer(t)
	payload := []byte(`[{"id":"1-aa","amount":100}]`)

	record, err := svc.Seal(payload)
	require.NoError(t, err)
	assert.Equal(t, payload, []byte(record.Payload))
	assert.NotEmpty(t, record.Signature)
	assert.NotZero(t, record.Timestamp)

	opened := svc.Open(record)
	assert.Equal(t, payload, opened)
}

func TestEnvelopeService_Seal_EmptyPayload(t *testing.T) {
	svc, _ := newTestSealer(t)
	_, err := svc.Seal(nil)
	assert.Error(t, err)
}

func TestEnvelopeService_Open_TamperedPayload(t *testing.T) {
	svc, m := newTestSealer(t)

	record, err := svc.Seal([]byte(`{"amount":100}`))
	require.NoError(t, err)

	// Flip one byte in the payload.
	record.Payload[10] = '9'

	assert.Nil(t, svc.Open(record))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CorruptRecords))
}

func TestEnvelopeService_Open_TamperedTimestamp(t *testing.T) {
	svc, _ := newTestSealer(t)

	record, err := svc.Seal([]byte(`{"amount":100}`))
	require.NoError(t, err)
	record.Timestamp++

	assert.Nil(t, svc.Open(record))
}

func TestEnvelopeService_Open_NilRecord(t *testing.T) {
	svc, _ := newTestSealer(t)
	assert.Nil(t, svc.Open(nil))
}

func TestEnvelopeService_Open_WrongKey(t *testing.T) {
	sealer, _ := newTestSealer(t)

	record, err := sealer.Seal([]byte(`{"amount":100}`))
	require.NoError(t, err)

	other, err := NewEnvelopeService("different-secret", NewHMACSignatureService(), metrics.NewNop(), zerolog.Nop())
	require.NoError(t, err)

	assert.Nil(t, other.Open(record))
}

func TestEnvelopeService_SealStampsClock(t *testing.T) {
	svc, _ := newTestSealer(t)
	fixed := time.UnixMilli(1756430000000)
	svc.WithClock(func() time.Time { return fixed })

	record, err := svc.Seal([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, fixed.UnixMilli(), record.Timestamp)
}
