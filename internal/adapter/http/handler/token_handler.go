package handler

import (
	"time"

	"rupeeverse-engine/internal/adapter/http/dto"
	"rupeeverse-engine/internal/core/domain"
	"rupeeverse-engine/internal/core/ports"
	"rupeeverse-engine/pkg/apperror"
	"rupeeverse-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// TokenHandler handles payment token encode/decode endpoints.
type TokenHandler struct {
	codec ports.TokenCodec
	now   func() time.Time
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(codec ports.TokenCodec) *TokenHandler {
	return &TokenHandler{codec: codec, now: time.Now}
}

// EncodeToken handles POST /api/v1/tokens/encode.
func (h *TokenHandler) EncodeToken(c *gin.Context) {
	var req dto.EncodeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	uri, token, err := h.codec.Encode(ports.TokenRequest{
		Amount:    req.Amount,
		PayeeID:   req.PayeeID,
		PayeeName: req.PayeeName,
		Note:      req.Note,
		Currency:  req.Currency,
		TTL:       time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.EncodeTokenResponse{
		Token:   uri,
		Decoded: toTokenResponse(token, h.now()),
	})
}

// DecodeToken handles POST /api/v1/tokens/decode. An expired token is
// still decoded; the caller decides via the fresh flag whether to warn.
func (h *TokenHandler) DecodeToken(c *gin.Context) {
	var req dto.DecodeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	token, err := h.codec.Decode(req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTokenResponse(token, h.now()))
}

func toTokenResponse(t *domain.PaymentToken, now time.Time) dto.TokenResponse {
	return dto.TokenResponse{
		PayeeID:   t.PayeeID,
		PayeeName: t.PayeeName,
		Amount:    t.Amount,
		Note:      t.Note,
		Reference: t.Reference,
		Currency:  t.Currency,
		Expiry:    t.Expiry,
		Fresh:     t.Fresh(now),
	}
}
