package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rupeeverse-engine/internal/core/domain"
	"rupeeverse-engine/internal/core/ports"
	"rupeeverse-engine/internal/core/ports/mocks"
	"rupeeverse-engine/internal/service"
	"rupeeverse-engine/pkg/apperror"
	"rupeeverse-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, queueSvc ports.QueueService) *gin.Engine {
	t.Helper()
	return SetupRouter(RouterDeps{
		QueueSvc:   queueSvc,
		TokenCodec: service.NewUPITokenCodec(),
		Logger:     zerolog.Nop(),
	})
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreatePayment_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	queueSvc := mocks.NewMockQueueService(ctrl)

	queueSvc.EXPECT().
		CreateEntry(gomock.Any(), ports.CreateEntryRequest{
			Amount:         25000,
			CounterpartyID: "bob@rupeeverse",
			Note:           "dinner",
		}).
		Return(&domain.PaymentEntry{
			ID:             "1756430000000-cafe0123",
			Amount:         25000,
			CounterpartyID: "bob@rupeeverse",
			Note:           "dinner",
			Reference:      "cafe0123",
			Status:         domain.EntryStatusPending,
			CreatedAt:      1756430000000,
		}, nil)

	r := newRouter(t, queueSvc)
	w := doJSON(t, r, http.MethodPost, "/api/v1/payments", gin.H{
		"amount":          25000,
		"counterparty_id": "bob@rupeeverse",
		"note":            "dinner",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decodeEnvelope(t, w)
	data := resp["data"].(map[string]any)
	assert.Equal(t, "1756430000000-cafe0123", data["id"])
	assert.Equal(t, "PENDING", data["status"])
}

func TestCreatePayment_ValidationFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	queueSvc := mocks.NewMockQueueService(ctrl)

	r := newRouter(t, queueSvc)
	w := doJSON(t, r, http.MethodPost, "/api/v1/payments", gin.H{
		"amount": -5,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeEnvelope(t, w)
	assert.Equal(t, "QUE_001", resp["error_code"])
}

func TestCreatePayment_ServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	queueSvc := mocks.NewMockQueueService(ctrl)

	queueSvc.EXPECT().
		CreateEntry(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrInvalidAmount())

	r := newRouter(t, queueSvc)
	w := doJSON(t, r, http.MethodPost, "/api/v1/payments", gin.H{
		"amount":          1,
		"counterparty_id": "bob@rupeeverse",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "QUE_001")
}

func TestListPayments(t *testing.T) {
	ctrl := gomock.NewController(t)
	queueSvc := mocks.NewMockQueueService(ctrl)

	queueSvc.EXPECT().ListEntries(gomock.Any()).Return([]domain.PaymentEntry{
		{ID: "a", Amount: 100, CounterpartyID: "x", Status: domain.EntryStatusPending},
		{ID: "b", Amount: 200, CounterpartyID: "y", Status: domain.EntryStatusCompleted, Synced: true},
	}, nil)

	r := newRouter(t, queueSvc)
	w := doJSON(t, r, http.MethodGet, "/api/v1/payments", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(2), data["total"])
}

func TestGetQueueStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	queueSvc := mocks.NewMockQueueService(ctrl)

	queueSvc.EXPECT().GetStatus(gomock.Any()).Return(ports.QueueStatus{
		QueueLength:  3,
		PendingCount: 2,
		IsOnline:     true,
	})

	r := newRouter(t, queueSvc)
	w := doJSON(t, r, http.MethodGet, "/api/v1/queue/status", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(3), data["queue_length"])
	assert.Equal(t, float64(2), data["pending_count"])
	assert.Equal(t, true, data["is_online"])
}

func TestForceSync_Accepted(t *testing.T) {
	ctrl := gomock.NewController(t)
	queueSvc := mocks.NewMockQueueService(ctrl)

	queueSvc.EXPECT().ForceSync(gomock.Any()).Return(&ports.SyncSummary{Completed: 2, Failed: 1, Skipped: 1}, nil)

	r := newRouter(t, queueSvc)
	w := doJSON(t, r, http.MethodPost, "/api/v1/queue/sync", nil)

	assert.Equal(t, http.StatusAccepted, w.Code)
	resp := decodeEnvelope(t, w)
	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(2), data["completed"])
	assert.Equal(t, float64(1), data["failed"])
	assert.Equal(t, float64(1), data["skipped"])
}

func TestForceSync_Offline(t *testing.T) {
	ctrl := gomock.NewController(t)
	queueSvc := mocks.NewMockQueueService(ctrl)

	queueSvc.EXPECT().ForceSync(gomock.Any()).Return(nil, apperror.ErrOffline())

	r := newRouter(t, queueSvc)
	w := doJSON(t, r, http.MethodPost, "/api/v1/queue/sync", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "NET_001")
}

func TestEncodeDecodeToken_RoundTrip(t *testing.T) {
	ctrl := gomock.NewController(t)
	queueSvc := mocks.NewMockQueueService(ctrl)

	r := newRouter(t, queueSvc)
	w := doJSON(t, r, http.MethodPost, "/api/v1/tokens/encode", gin.H{
		"amount":     50000,
		"payee_id":   "alice@rupeeverse",
		"payee_name": "Alice",
		"note":       "rent",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeEnvelope(t, w)
	data := resp["data"].(map[string]any)
	uri := data["token"].(string)
	assert.Contains(t, uri, "upi://pay?")

	w = doJSON(t, r, http.MethodPost, "/api/v1/tokens/decode", gin.H{"token": uri})
	require.Equal(t, http.StatusOK, w.Code)

	resp = decodeEnvelope(t, w)
	decoded := resp["data"].(map[string]any)
	assert.Equal(t, float64(50000), decoded["amount"])
	assert.Equal(t, "alice@rupeeverse", decoded["payee_id"])
	assert.Equal(t, true, decoded["fresh"])
}

func TestDecodeToken_Malformed(t *testing.T) {
	ctrl := gomock.NewController(t)
	queueSvc := mocks.NewMockQueueService(ctrl)

	r := newRouter(t, queueSvc)
	w := doJSON(t, r, http.MethodPost, "/api/v1/tokens/decode", gin.H{"token": "https://example.com/pay"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "TOK_001")
}

func TestHealthCheck_AllHealthy(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(healthChecker{name: "file", err: nil})(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(healthChecker{name: "redis", err: errors.New("connection refused")})(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

type healthChecker struct {
	name string
	err  error
}

func (h healthChecker) Ping(context.Context) error { return h.err }
func (h healthChecker) Name() string               { return h.name }

func TestTokenHandler_ExpiredTokenStillDecodes(t *testing.T) {
	codec := service.NewUPITokenCodec()
	h := NewTokenHandler(codec)
	h.now = func() time.Time { return time.Now().Add(24 * time.Hour) }

	uri, _, err := codec.Encode(ports.TokenRequest{Amount: 100, PayeeID: "alice@rupeeverse"})
	require.NoError(t, err)

	raw, _ := json.Marshal(gin.H{"token": uri})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/tokens/decode", bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")

	h.DecodeToken(c)

	require.Equal(t, http.StatusOK, w.Code)
	var resp response.SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	decoded := resp.Data.(map[string]any)
	assert.Equal(t, false, decoded["fresh"])
}
