package canonical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytes_ExactFormat(t *testing.T) {
	createdAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := Build(
		"11111111-1111-1111-1111-111111111111",
		"sha256",
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		createdAt,
		"public",
	)

	expected := `{"receipt_id":"11111111-1111-1111-1111-111111111111","hash_algorithm":"sha256",` +
		`"hash_value":"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",` +
		`"created_at":"2025-01-01T00:00:00.000Z","visibility":"public"}`
	assert.Equal(t, expected, string(p.Bytes()))
}

func TestBytes_Deterministic(t *testing.T) {
	createdAt := time.Date(2024, 6, 30, 23, 59, 59, 123_456_789, time.UTC)
	a := Build("id", "sha512", "ab", createdAt, "unlisted").Bytes()
	b := Build("id", "sha512", "ab", createdAt, "unlisted").Bytes()
	assert.Equal(t, a, b)
}

func TestBytes_NoHTMLEscaping(t *testing.T) {
	p := Payload{ReceiptID: "<a&b>"}
	assert.Contains(t, p.String(), `"receipt_id":"<a&b>"`)
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"utc whole second", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "2025-01-01T00:00:00.000Z"},
		{"truncates sub-millisecond", time.Date(2025, 3, 4, 5, 6, 7, 891_999_999, time.UTC), "2025-03-04T05:06:07.891Z"},
		{"converts offset to utc", time.Date(2025, 1, 1, 2, 0, 0, 0, time.FixedZone("CET", 2*3600)), "2025-01-01T00:00:00.000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimestamp(tt.in))
		})
	}
}

func TestParseTimestamp_RoundTrip(t *testing.T) {
	in := time.Date(2025, 3, 4, 5, 6, 7, 891_000_000, time.UTC)
	out, err := ParseTimestamp(FormatTimestamp(in))
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
}
