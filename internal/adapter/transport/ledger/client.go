// Package ledger implements ports.Transport against the remote ledger's
// HTTP API with signed requests.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"rupeeverse-engine/internal/core/domain"
	"rupeeverse-engine/internal/core/ports"
	"rupeeverse-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const submitPath = "/api/v1/transfers"

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client submits queued payments to the remote ledger. Every request is
// HMAC-signed over METHOD|PATH|TIMESTAMP|NONCE|BODY and carries the
// entry's reference in the Idempotency-Key header, so an at-least-once
// replay is deduplicated server-side.
type Client struct {
	baseURL    string
	accessKey  string
	secretKey  string
	httpClient HTTPClient
	sig        ports.SignatureService
	now        func() time.Time
	log        zerolog.Logger
}

// NewClient creates a ledger client.
func NewClient(
	baseURL string,
	accessKey string,
	secretKey string,
	httpClient HTTPClient,
	sig ports.SignatureService,
	log zerolog.Logger,
) *Client {
	return &Client{
		baseURL:    baseURL,
		accessKey:  accessKey,
		secretKey:  secretKey,
		httpClient: httpClient,
		sig:        sig,
		now:        time.Now,
		log:        log,
	}
}

// WithClock overrides the signing timestamp source, for tests.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

type submitRequest struct {
	Reference      string `json:"reference"`
	Amount         int64  `json:"amount"`
	CounterpartyID string `json:"counterparty_id"`
	Note           string `json:"note,omitempty"`
	CreatedAt      int64  `json:"created_at"`
}

type submitResponse struct {
	TransactionID string `json:"transaction_id"`
}

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// Submit sends one payment. A timeout maps to NET_003, an unreachable
// ledger to NET_004, a non-2xx reply to NET_002; the engine treats all
// three as the batch-halting failure.
func (c *Client) Submit(ctx context.Context, entry *domain.PaymentEntry) (*ports.Ack, error) {
	body, err := json.Marshal(submitRequest{
		Reference:      entry.Reference,
		Amount:         entry.Amount,
		CounterpartyID: entry.CounterpartyID,
		Note:           entry.Note,
		CreatedAt:      entry.CreatedAt,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal submit request: %w", err))
	}

	timestamp := c.now().Unix()
	nonce := uuid.NewString()
	canonical := c.sig.BuildCanonicalString(http.MethodPost, submitPath, timestamp, nonce, string(body))
	signature := c.sig.Sign(c.secretKey, canonical)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+submitPath, bytes.NewReader(body))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("build submit request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Access-Key", c.accessKey)
	req.Header.Set("X-Signature", signature)
	req.Header.Set("X-Timestamp", fmt.Sprintf("%d", timestamp))
	req.Header.Set("X-Nonce", nonce)
	req.Header.Set("Idempotency-Key", entry.Reference)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperror.ErrSubmitTimeout(err)
		}
		return nil, apperror.ErrLedgerUnreachable(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperror.ErrLedgerUnreachable(fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ledgerErr errorResponse
		if json.Unmarshal(raw, &ledgerErr) == nil && ledgerErr.ErrorCode != "" {
			return nil, apperror.ErrLedgerRejected(fmt.Errorf("status %d: [%s] %s", resp.StatusCode, ledgerErr.ErrorCode, ledgerErr.Message))
		}
		return nil, apperror.ErrLedgerRejected(fmt.Errorf("status %d", resp.StatusCode))
	}

	var ack submitResponse
	if err := json.Unmarshal(raw, &ack); err != nil {
		return nil, apperror.ErrLedgerRejected(fmt.Errorf("undecodable acknowledgement: %w", err))
	}
	if ack.TransactionID == "" {
		return nil, apperror.ErrLedgerRejected(fmt.Errorf("acknowledgement missing transaction id"))
	}

	c.log.Debug().
		Str("reference", entry.Reference).
		Str("remote_tx_id", ack.TransactionID).
		Msg("ledger accepted payment")

	return &ports.Ack{RemoteTxID: ack.TransactionID, AcceptedAt: c.now()}, nil
}
