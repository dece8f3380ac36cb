package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rupeeverse-engine/internal/core/domain"
	"rupeeverse-engine/internal/core/ports"
	"rupeeverse-engine/pkg/apperror"
)

const (
	tokenScheme     = "upi://pay"
	defaultTokenTTL = 15 * time.Minute
	defaultCurrency = "INR"
	referenceLen    = 8
)

// UPITokenCodec implements ports.TokenCodec. It serializes a payment
// intent as a compact UPI-style URI so a pending payment can be handed
// from one device to another without a network round trip:
//
//	upi://pay?pa=<payee-id>&pn=<payee-name>&am=<amount>&tn=<note>&tr=<reference>&cu=<currency>&exp=<epoch-ms>
//
// Pure and deterministic given its clock and random source.
type UPITokenCodec struct {
	now  func() time.Time
	rand io.Reader
}

// NewUPITokenCodec creates a codec backed by the system clock and
// crypto/rand.
func NewUPITokenCodec() *UPITokenCodec {
	return &UPITokenCodec{now: time.Now, rand: rand.Reader}
}

// WithClock overrides the expiry clock, for tests.
func (c *UPITokenCodec) WithClock(now func() time.Time) *UPITokenCodec {
	c.now = now
	return c
}

// WithRand overrides the reference random source, for tests.
func (c *UPITokenCodec) WithRand(r io.Reader) *UPITokenCodec {
	c.rand = r
	return c
}

// Encode serializes req into the token URI. A reference is generated when
// none is supplied; expiry defaults to now + 15 minutes.
func (c *UPITokenCodec) Encode(req ports.TokenRequest) (string, *domain.PaymentToken, error) {
	if req.Amount <= 0 {
		return "", nil, apperror.ErrInvalidAmount()
	}
	if req.PayeeID == "" {
		return "", nil, apperror.Validation("Payee is required")
	}

	reference := req.Reference
	if reference == "" {
		var err error
		reference, err = c.generateReference()
		if err != nil {
			return "", nil, apperror.InternalError(fmt.Errorf("generating reference: %w", err))
		}
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	token := &domain.PaymentToken{
		PayeeID:   req.PayeeID,
		PayeeName: req.PayeeName,
		Amount:    req.Amount,
		Note:      req.Note,
		Reference: reference,
		Currency:  currency,
		Expiry:    c.now().Add(ttl).UnixMilli(),
	}

	var b strings.Builder
	b.WriteString(tokenScheme)
	b.WriteString("?pa=")
	b.WriteString(url.QueryEscape(token.PayeeID))
	if token.PayeeName != "" {
		b.WriteString("&pn=")
		b.WriteString(url.QueryEscape(token.PayeeName))
	}
	b.WriteString("&am=")
	b.WriteString(strconv.FormatInt(token.Amount, 10))
	if token.Note != "" {
		b.WriteString("&tn=")
		b.WriteString(url.QueryEscape(token.Note))
	}
	b.WriteString("&tr=")
	b.WriteString(url.QueryEscape(token.Reference))
	b.WriteString("&cu=")
	b.WriteString(url.QueryEscape(token.Currency))
	b.WriteString("&exp=")
	b.WriteString(strconv.FormatInt(token.Expiry, 10))

	return b.String(), token, nil
}

// Decode parses a token URI back into its fields. Failures are typed
// TOK_001 errors, never panics: absent scheme, missing payee, and a
// missing or non-positive amount all reject the token. A token without
// exp decodes structurally but carries no freshness guarantee.
func (c *UPITokenCodec) Decode(token string) (*domain.PaymentToken, error) {
	rest, ok := strings.CutPrefix(token, tokenScheme)
	if !ok {
		return nil, apperror.ErrTokenMalformed("missing scheme")
	}
	rest = strings.TrimPrefix(rest, "?")

	params, err := url.ParseQuery(rest)
	if err != nil {
		return nil, apperror.ErrTokenMalformed("invalid query encoding")
	}

	payeeID := params.Get("pa")
	if payeeID == "" {
		return nil, apperror.ErrTokenMalformed("missing payee")
	}

	amountStr := params.Get("am")
	if amountStr == "" {
		return nil, apperror.ErrTokenMalformed("missing amount")
	}
	amount, err := strconv.ParseInt(amountStr, 10, 64)
	if err != nil {
		return nil, apperror.ErrTokenMalformed("unparsable amount")
	}
	if amount <= 0 {
		return nil, apperror.ErrTokenMalformed("non-positive amount")
	}

	reference := params.Get("tr")
	if reference != "" && !validReference(reference) {
		return nil, apperror.ErrTokenMalformed("invalid reference")
	}

	var expiry int64
	if expStr := params.Get("exp"); expStr != "" {
		expiry, err = strconv.ParseInt(expStr, 10, 64)
		if err != nil {
			return nil, apperror.ErrTokenMalformed("unparsable expiry")
		}
	}

	currency := params.Get("cu")
	if currency == "" {
		currency = defaultCurrency
	}

	return &domain.PaymentToken{
		PayeeID:   payeeID,
		PayeeName: params.Get("pn"),
		Amount:    amount,
		Note:      params.Get("tn"),
		Reference: reference,
		Currency:  currency,
		Expiry:    expiry,
	}, nil
}

// generateReference returns 8 hex characters from the random source.
func (c *UPITokenCodec) generateReference() (string, error) {
	buf := make([]byte, referenceLen/2)
	if _, err := io.ReadFull(c.rand, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// validReference accepts exactly 8 case-insensitive hex characters.
func validReference(ref string) bool {
	if len(ref) != referenceLen {
		return false
	}
	for _, r := range ref {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
