package domain

import "encoding/json"

// SecureRecord is the integrity envelope wrapped around every persisted
// payload. Signature authenticates (Payload, Timestamp); a record whose
// recomputed signature disagrees is corrupt and must be treated as absent,
// never repaired.
type SecureRecord struct {
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"` // Epoch milliseconds at seal time
	Signature string          `json:"signature"` // Lowercase hex HMAC-SHA256
}
