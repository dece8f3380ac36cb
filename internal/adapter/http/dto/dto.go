package dto

// CreatePaymentRequest is the request body for queueing a payment.
type CreatePaymentRequest struct {
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	CounterpartyID string `json:"counterparty_id" binding:"required,max=100"`
	Note           string `json:"note,omitempty" binding:"max=255"`
	Reference      string `json:"reference,omitempty" binding:"max=32"`
}

// PaymentEntryResponse is the response body for a queued payment.
type PaymentEntryResponse struct {
	ID             string `json:"id"`
	Amount         int64  `json:"amount"`
	CounterpartyID string `json:"counterparty_id"`
	Note           string `json:"note,omitempty"`
	Reference      string `json:"reference,omitempty"`
	Status         string `json:"status"`
	Synced         bool   `json:"synced"`
	CreatedAt      int64  `json:"created_at"`
	RemoteTxID     string `json:"remote_tx_id,omitempty"`
	ProcessedAt    *int64 `json:"processed_at,omitempty"`
	FailureReason  string `json:"failure_reason,omitempty"`
}

// PaymentListResponse wraps the full queue listing.
type PaymentListResponse struct {
	Items []PaymentEntryResponse `json:"items"`
	Total int                    `json:"total"`
}

// EncodeTokenRequest is the request body for generating a payment token.
type EncodeTokenRequest struct {
	Amount     int64  `json:"amount" binding:"required,gt=0"`
	PayeeID    string `json:"payee_id" binding:"required,max=100"`
	PayeeName  string `json:"payee_name,omitempty" binding:"max=100"`
	Note       string `json:"note,omitempty" binding:"max=255"`
	Currency   string `json:"currency,omitempty" binding:"omitempty,len=3"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty" binding:"omitempty,gt=0"`
}

// EncodeTokenResponse carries the encoded URI plus its decoded fields.
type EncodeTokenResponse struct {
	Token   string        `json:"token"`
	Decoded TokenResponse `json:"decoded"`
}

// DecodeTokenRequest is the request body for decoding a scanned token.
type DecodeTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// TokenResponse is the decoded form of a payment token.
type TokenResponse struct {
	PayeeID   string `json:"payee_id"`
	PayeeName string `json:"payee_name,omitempty"`
	Amount    int64  `json:"amount"`
	Note      string `json:"note,omitempty"`
	Reference string `json:"reference"`
	Currency  string `json:"currency"`
	Expiry    int64  `json:"expiry,omitempty"`
	Fresh     bool   `json:"fresh"`
}
