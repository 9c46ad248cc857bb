package dto

import (
	"strings"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := CreateReceiptRequest{
		HashAlgorithm: " sha256 ",
		HashValue:     "  abcdef  ",
		Visibility:    " public",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "sha256", req.HashAlgorithm)
	assert.Equal(t, "abcdef", req.HashValue)
	assert.Equal(t, "public", req.Visibility)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := CreateDisputeRequest{
		ReceiptID: "6f1c2f9e-0000-4000-8000-000000000001",
		Reason:    "copied <script>alert('x')</script> here",
	}
	SanitizeStruct(&req)

	assert.Contains(t, req.Reason, "&lt;script&gt;")
	assert.NotContains(t, req.Reason, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	details := "  <b>posted</b> on a forum  "
	req := CreateDisputeRequest{Reason: "abc", Details: &details}
	SanitizeStruct(&req)

	assert.Equal(t, "&lt;b&gt;posted&lt;/b&gt; on a forum", *req.Details)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := CreateDisputeRequest{Reason: "abc", Details: nil}
	SanitizeStruct(&req)
	assert.Nil(t, req.Details)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestHexString(t *testing.T) {
	valid := []string{"00", "abcdef0123456789", "ABCDEF", strings.Repeat("a", 128)}
	for _, tc := range valid {
		assert.True(t, hexStringRe.MatchString(tc), "expected valid: %s", tc)
	}

	invalid := []string{"", "xyz", "ab cd", "0x12", "ab\n"}
	for _, tc := range invalid {
		assert.False(t, hexStringRe.MatchString(tc), "expected invalid: %q", tc)
	}
}

func TestCreateDisputeRequest_Binding(t *testing.T) {
	base := func() CreateDisputeRequest {
		return CreateDisputeRequest{
			ReceiptID:    "6f1c2f9e-0000-4000-8000-000000000001",
			Reason:       "This is my artwork",
			ContactEmail: "owner@example.com",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*CreateDisputeRequest)
		wantErr bool
	}{
		{"valid minimal", func(*CreateDisputeRequest) {}, false},
		{"valid evidence", func(r *CreateDisputeRequest) { r.EvidenceURLs = []string{"https://example.com/a.png"} }, false},
		{"reason too short", func(r *CreateDisputeRequest) { r.Reason = "ab" }, true},
		{"reason too long", func(r *CreateDisputeRequest) { r.Reason = strings.Repeat("a", 201) }, true},
		{"bad email", func(r *CreateDisputeRequest) { r.ContactEmail = "not-an-email" }, true},
		{"bad receipt id", func(r *CreateDisputeRequest) { r.ReceiptID = "123" }, true},
		{"non-http evidence", func(r *CreateDisputeRequest) { r.EvidenceURLs = []string{"ftp://example.com/a"} }, true},
		{"empty evidence entry", func(r *CreateDisputeRequest) { r.EvidenceURLs = []string{""} }, true},
		{"too much evidence", func(r *CreateDisputeRequest) {
			r.EvidenceURLs = make([]string, 11)
			for i := range r.EvidenceURLs {
				r.EvidenceURLs[i] = "https://example.com/x"
			}
		}, true},
		{"details too long", func(r *CreateDisputeRequest) {
			d := strings.Repeat("d", 2001)
			r.Details = &d
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base()
			tt.mutate(&req)
			err := binding.Validator.ValidateStruct(&req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateReceiptRequest_Binding(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateReceiptRequest
		wantErr bool
	}{
		{"sha256", CreateReceiptRequest{HashAlgorithm: "sha256", HashValue: strings.Repeat("a", 64)}, false},
		{"private", CreateReceiptRequest{HashAlgorithm: "sha512", HashValue: strings.Repeat("a", 128), Visibility: "private"}, false},
		{"unknown algorithm", CreateReceiptRequest{HashAlgorithm: "md5", HashValue: "aa"}, true},
		{"non-hex", CreateReceiptRequest{HashAlgorithm: "sha256", HashValue: strings.Repeat("g", 64)}, true},
		{"bad visibility", CreateReceiptRequest{HashAlgorithm: "sha256", HashValue: "aa", Visibility: "secret"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
