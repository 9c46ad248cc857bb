// Package canonical builds the byte-exact payload that receipt signatures
// cover. Any verifier that reproduces these bytes can check a signature
// without talking to the service.
package canonical

import (
	"bytes"
	"encoding/json"
	"time"
)

// TimestampLayout renders UTC instants with millisecond precision and a Z suffix.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Payload is the signed portion of a receipt. Field order is part of the
// format and must not change.
type Payload struct {
	ReceiptID     string `json:"receipt_id"`
	HashAlgorithm string `json:"hash_algorithm"`
	HashValue     string `json:"hash_value"`
	CreatedAt     string `json:"created_at"`
	Visibility    string `json:"visibility"`
}

// Build assembles a payload from receipt fields.
func Build(receiptID, hashAlgorithm, hashValue string, createdAt time.Time, visibility string) Payload {
	return Payload{
		ReceiptID:     receiptID,
		HashAlgorithm: hashAlgorithm,
		HashValue:     hashValue,
		CreatedAt:     FormatTimestamp(createdAt),
		Visibility:    visibility,
	}
}

// FormatTimestamp converts t to UTC and truncates it to the millisecond.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Millisecond).Format(TimestampLayout)
}

// ParseTimestamp is the inverse of FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// Bytes returns the compact JSON encoding with keys in declaration order and
// no HTML escaping.
func (p Payload) Bytes() []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a struct of strings cannot fail.
	_ = enc.Encode(p)
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

// String returns Bytes as a string.
func (p Payload) String() string {
	return string(p.Bytes())
}
