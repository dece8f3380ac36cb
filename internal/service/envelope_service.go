package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"time"

	"rupeeverse-engine/internal/core/domain"
	"rupeeverse-engine/internal/core/ports"
	"rupeeverse-engine/pkg/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/hkdf"
)

const (
	envelopeKeyInfo = "envelope-signing-v1"
	envelopeSalt    = "rupeeverse-offline-queue"
)

// EnvelopeService implements ports.Sealer. Every persisted payload is
// wrapped in a SecureRecord whose signature authenticates the payload and
// its seal timestamp. The signing key is derived once at construction and
// read-only afterwards; it never appears in the stored record.
type EnvelopeService struct {
	key string
	sig ports.SignatureService
	now func() time.Time
	m   *metrics.Metrics
	log zerolog.Logger
}

// NewEnvelopeService derives the signing key from masterSecret using
// HKDF-SHA256 and returns a ready sealer.
func NewEnvelopeService(
	masterSecret string,
	sig ports.SignatureService,
	m *metrics.Metrics,
	log zerolog.Logger,
) (*EnvelopeService, error) {
	if masterSecret == "" {
		return nil, fmt.Errorf("envelope master secret must be configured")
	}

	kdf := hkdf.New(sha256.New, []byte(masterSecret), []byte(envelopeSalt), []byte(envelopeKeyInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving envelope key: %w", err)
	}

	return &EnvelopeService{
		key: hex.EncodeToString(key),
		sig: sig,
		now: time.Now,
		m:   m,
		log: log,
	}, nil
}

// WithClock overrides the seal timestamp source, for tests.
func (s *EnvelopeService) WithClock(now func() time.Time) *EnvelopeService {
	s.now = now
	return s
}

// Seal stamps the current time and signs (payload, timestamp).
func (s *EnvelopeService) Seal(payload []byte) (*domain.SecureRecord, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("sealing empty payload")
	}

	ts := s.now().UnixMilli()
	return &domain.SecureRecord{
		Payload:   append([]byte(nil), payload...),
		Timestamp: ts,
		Signature: s.sig.Sign(s.key, canonicalEnvelope(payload, ts)),
	}, nil
}

// Open recomputes the signature and returns the payload only on a match.
// A mismatch is treated identically to "no record exists": the caller gets
// nil and the corruption counter ticks so operators can spot persistent
// tampering without end-user errors.
func (s *EnvelopeService) Open(record *domain.SecureRecord) []byte {
	if record == nil || len(record.Payload) == 0 {
		return nil
	}

	if !s.sig.Verify(s.key, canonicalEnvelope(record.Payload, record.Timestamp), record.Signature) {
		s.m.CorruptRecords.Inc()
		s.log.Warn().
			Int64("sealed_at", record.Timestamp).
			Msg("envelope signature mismatch, dropping record")
		return nil
	}

	return record.Payload
}

// canonicalEnvelope binds the payload bytes to the seal timestamp so a
// replayed payload with a forged timestamp fails verification.
func canonicalEnvelope(payload []byte, timestamp int64) string {
	return string(payload) + "|" + strconv.FormatInt(timestamp, 10)
}
