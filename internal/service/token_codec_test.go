package service

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"rupeeverse-engine/internal/core/ports"
	"rupeeverse-engine/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUPITokenCodec_Encode_Deterministic(t *testing.T) {
	fixed := time.UnixMilli(1756430000000)
	codec := NewUPITokenCodec().
		WithClock(func() time.Time { return fixed }).
		WithRand(bytes.NewReader([]byte{0xca, 0xfe, 0x01, 0x23}))

	uri, token, err := codec.Encode(ports.TokenRequest{
		Amount:    50000,
		PayeeID:   "alice@rupeeverse",
		PayeeName: "Alice",
		Note:      "rent share",
	})
	require.NoError(t, err)

	expExpiry := fixed.Add(15 * time.Minute).UnixMilli()
	assert.Equal(t,
		"upi://pay?pa=alice%40rupeeverse&pn=Alice&am=50000&tn=rent+share&tr=cafe0123&cu=INR&exp="+
			"1756430900000",
		uri)
	assert.Equal(t, "cafe0123", token.Reference)
	assert.Equal(t, expExpiry, token.Expiry)
	assert.Equal(t, "INR", token.Currency)
}

func TestUPITokenCodec_RoundTrip(t *testing.T) {
	codec := NewUPITokenCodec()

	uri, encoded, err := codec.Encode(ports.TokenRequest{
		Amount:    125075,
		PayeeID:   "bob@rupeeverse",
		PayeeName: "Bob K",
		Note:      "split: dinner & cab",
		Currency:  "INR",
		TTL:       time.Hour,
	})
	require.NoError(t, err)

	decoded, err := codec.Decode(uri)
	require.NoError(t, err)
	assert.Equal(t, encoded, decoded)
}

func TestUPITokenCodec_Encode_Validation(t *testing.T) {
	codec := NewUPITokenCodec()

	_, _, err := codec.Encode(ports.TokenRequest{Amount: 0, PayeeID: "x@y"})
	assert.Error(t, err)

	_, _, err = codec.Encode(ports.TokenRequest{Amount: -1, PayeeID: "x@y"})
	assert.Error(t, err)

	_, _, err = codec.Encode(ports.TokenRequest{Amount: 100})
	assert.Error(t, err)
}

func TestUPITokenCodec_Encode_KeepsSuppliedReference(t *testing.T) {
	codec := NewUPITokenCodec()

	_, token, err := codec.Encode(ports.TokenRequest{
		Amount:    100,
		PayeeID:   "x@y",
		Reference: "0011aabb",
	})
	require.NoError(t, err)
	assert.Equal(t, "0011aabb", token.Reference)
}

func TestUPITokenCodec_Decode_Errors(t *testing.T) {
	codec := NewUPITokenCodec()

	tests := []struct {
		name   string
		token  string
		reason string
	}{
		{"wrong scheme", "https://pay?pa=x&am=100", "missing scheme"},
		{"missing payee", "upi://pay?am=100", "missing payee"},
		{"missing amount", "upi://pay?pa=x@y", "missing amount"},
		{"unparsable amount", "upi://pay?pa=x@y&am=ten", "unparsable amount"},
		{"zero amount", "upi://pay?pa=x@y&am=0", "non-positive amount"},
		{"negative amount", "upi://pay?pa=x@y&am=-5", "non-positive amount"},
		{"bad reference", "upi://pay?pa=x@y&am=100&tr=zzzz", "invalid reference"},
		{"bad expiry", "upi://pay?pa=x@y&am=100&exp=soon", "unparsable expiry"},
		{"bad query encoding", "upi://pay?pa=%zz&am=100", "invalid query encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(tt.token)
			require.Error(t, err)

			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "TOK_001", appErr.Code)
			assert.Contains(t, appErr.Message, tt.reason)
		})
	}
}

func TestUPITokenCodec_Decode_DefaultsCurrency(t *testing.T) {
	codec := NewUPITokenCodec()

	token, err := codec.Decode("upi://pay?pa=x@y&am=100")
	require.NoError(t, err)
	assert.Equal(t, "INR", token.Currency)
	assert.Zero(t, token.Expiry)
}

func TestUPITokenCodec_DecodedToken_Freshness(t *testing.T) {
	now := time.UnixMilli(1756430000000)

	codec := NewUPITokenCodec().WithClock(func() time.Time { return now })
	uri, _, err := codec.Encode(ports.TokenRequest{Amount: 100, PayeeID: "x@y", TTL: time.Minute})
	require.NoError(t, err)

	token, err := codec.Decode(uri)
	require.NoError(t, err)

	assert.True(t, token.Fresh(now))
	assert.True(t, token.Fresh(now.Add(time.Minute)))
	assert.False(t, token.Fresh(now.Add(time.Minute+time.Millisecond)))

	// No exp parameter means no freshness guarantee.
	bare, err := codec.Decode("upi://pay?pa=x@y&am=100")
	require.NoError(t, err)
	assert.False(t, bare.Fresh(now))
}

func TestUPITokenCodec_GeneratedReferenceIsHex(t *testing.T) {
	codec := NewUPITokenCodec()

	_, token, err := codec.Encode(ports.TokenRequest{Amount: 100, PayeeID: "x@y"})
	require.NoError(t, err)

	assert.Len(t, token.Reference, 8)
	assert.True(t, validReference(token.Reference))
	assert.Equal(t, strings.ToLower(token.Reference), token.Reference)
}
