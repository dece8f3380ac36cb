package handler

import (
	"net/http"

	"rupeeverse-engine/internal/adapter/http/dto"
	"rupeeverse-engine/internal/core/domain"
	"rupeeverse-engine/internal/core/ports"
	"rupeeverse-engine/pkg/apperror"
	"rupeeverse-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// QueueHandler handles payment queue endpoints.
type QueueHandler struct {
	queueSvc ports.QueueService
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(queueSvc ports.QueueService) *QueueHandler {
	return &QueueHandler{queueSvc: queueSvc}
}

// CreatePayment handles POST /api/v1/payments.
func (h *QueueHandler) CreatePayment(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	entry, err := h.queueSvc.CreateEntry(c.Request.Context(), ports.CreateEntryRequest{
		Amount:         req.Amount,
		CounterpartyID: req.CounterpartyID,
		Note:           req.Note,
		Reference:      req.Reference,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toEntryResponse(entry))
}

// ListPayments handles GET /api/v1/payments.
func (h *QueueHandler) ListPayments(c *gin.Context) {
	entries, err := h.queueSvc.ListEntries(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.PaymentEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toEntryResponse(&entries[i]))
	}
	response.OK(c, dto.PaymentListResponse{Items: items, Total: len(items)})
}

// GetQueueStatus handles GET /api/v1/queue/status.
func (h *QueueHandler) GetQueueStatus(c *gin.Context) {
	response.OK(c, h.queueSvc.GetStatus(c.Request.Context()))
}

// ForceSync handles POST /api/v1/queue/sync.
func (h *QueueHandler) ForceSync(c *gin.Context) {
	summary, err := h.queueSvc.ForceSync(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, summary)
}

// HealthCheck handles GET /health, verifying every backing dependency.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}

// toEntryResponse converts domain.PaymentEntry to DTO.
func toEntryResponse(e *domain.PaymentEntry) dto.PaymentEntryResponse {
	return dto.PaymentEntryResponse{
		ID:             e.ID,
		Amount:         e.Amount,
		CounterpartyID: e.CounterpartyID,
		Note:           e.Note,
		Reference:      e.Reference,
		Status:         string(e.Status),
		Synced:         e.Synced,
		CreatedAt:      e.CreatedAt,
		RemoteTxID:     e.RemoteTxID,
		ProcessedAt:    e.ProcessedAt,
		FailureReason:  e.FailureReason,
	}
}
