package domain

import (
	"fmt"
	"strings"
	"time"

	"ergoveritas/pkg/canonical"

	"github.com/google/uuid"
)

// SignatureAlgorithm is the only signing scheme receipts are issued with.
const SignatureAlgorithm = "Ed25519"

// HashAlgorithm identifies the digest a client used on its content.
type HashAlgorithm string

const (
	HashAlgorithmSHA256 HashAlgorithm = "sha256"
	HashAlgorithmSHA512 HashAlgorithm = "sha512"
)

// HexLength returns the exact hex length of a digest, or 0 for unknown algorithms.
func (a HashAlgorithm) HexLength() int {
	switch a {
	case HashAlgorithmSHA256:
		return 64
	case HashAlgorithmSHA512:
		return 128
	default:
		return 0
	}
}

func (a HashAlgorithm) IsValid() bool {
	return a.HexLength() > 0
}

// ParseHash validates a client-supplied digest. Hex is accepted in either
// case and returned lowercased; its length must match the algorithm exactly.
func ParseHash(alg, value string) (HashAlgorithm, string, error) {
	a := HashAlgorithm(alg)
	if !a.IsValid() {
		return "", "", fmt.Errorf("hash_algorithm must be one of sha256, sha512")
	}
	if value == "" || strings.Trim(value, "0123456789abcdefABCDEF") != "" {
		return "", "", fmt.Errorf("hash_value must be hex")
	}
	if len(value) != a.HexLength() {
		return "", "", fmt.Errorf("hash_value must be %d hex chars for %s", a.HexLength(), a)
	}
	return a, strings.ToLower(value), nil
}

// ParseVisibility defaults an empty value to public.
func ParseVisibility(v string) (Visibility, error) {
	if v == "" {
		return VisibilityPublic, nil
	}
	vis := Visibility(v)
	if !vis.IsValid() {
		return "", fmt.Errorf("visibility must be one of public, private, unlisted")
	}
	return vis, nil
}

// Visibility controls downstream display only; it is signed but not enforced here.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
)

func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityUnlisted:
		return true
	}
	return false
}

// AnchorStatus tracks a receipt's progress towards batch inclusion.
type AnchorStatus string

const (
	AnchorStatusNone     AnchorStatus = "none"
	AnchorStatusQueued   AnchorStatus = "queued"
	AnchorStatusBuilt    AnchorStatus = "built"
	AnchorStatusAnchored AnchorStatus = "anchored"
	AnchorStatusFailed   AnchorStatus = "failed"
)

// QueueableAnchorStatuses are the states a receipt may be queued from.
// Built and anchored receipts already belong to a batch.
var QueueableAnchorStatuses = []AnchorStatus{
	AnchorStatusNone,
	AnchorStatusQueued,
	AnchorStatusFailed,
}

// CanQueue reports whether a receipt in status s may be (re)queued.
func (s AnchorStatus) CanQueue() bool {
	for _, q := range QueueableAnchorStatuses {
		if s == q {
			return true
		}
	}
	return false
}

// CanQueue reports whether r may be (re)queued. A receipt that was ever
// committed to a batch keeps its anchor_batch_id and stays out of new
// batches, even after the anchoring step marks it failed.
func (r *Receipt) CanQueue() bool {
	return r.AnchorBatchID == nil && r.AnchorStatus.CanQueue()
}

// Receipt is a signed proof that a hash was presented at CreatedAt.
// Everything except the anchor fields is immutable after creation.
type Receipt struct {
	ID            uuid.UUID     `json:"id"`
	HashAlgorithm HashAlgorithm `json:"hash_algorithm"`
	HashValue     string        `json:"hash_value"`
	Visibility    Visibility    `json:"visibility"`
	CreatedAt     time.Time     `json:"created_at"`
	SignatureB64  string        `json:"signature"`
	KID           string        `json:"kid"`
	AnchorStatus  AnchorStatus  `json:"anchor_status"`
	AnchorBatchID *uuid.UUID    `json:"anchor_batch_id"`
}

// Payload rebuilds the canonical payload the signature covers.
func (r *Receipt) Payload() canonical.Payload {
	return canonical.Build(
		r.ID.String(),
		string(r.HashAlgorithm),
		r.HashValue,
		r.CreatedAt,
		string(r.Visibility),
	)
}

// Bundle returns the full verification bundle including anchor fields.
func (r *Receipt) Bundle() *ReceiptBundle {
	return &ReceiptBundle{
		Payload:       r.Payload(),
		Signature:     r.SignatureB64,
		KID:           r.KID,
		Alg:           SignatureAlgorithm,
		AnchorStatus:  r.AnchorStatus,
		AnchorBatchID: r.AnchorBatchID,
	}
}

// SignedBundle returns only the immutable, signed portion of the receipt.
func (r *Receipt) SignedBundle() *SignedReceipt {
	return &SignedReceipt{
		Payload:   r.Payload(),
		Signature: r.SignatureB64,
		KID:       r.KID,
		Alg:       SignatureAlgorithm,
	}
}

// ReceiptBundle is what create and fetch return.
type ReceiptBundle struct {
	Payload       canonical.Payload `json:"payload"`
	Signature     string            `json:"signature"`
	KID           string            `json:"kid"`
	Alg           string            `json:"alg"`
	AnchorStatus  AnchorStatus      `json:"anchor_status"`
	AnchorBatchID *uuid.UUID        `json:"anchor_batch_id"`
}

// SignedReceipt is the anchor-independent view used by verify-by-hash.
type SignedReceipt struct {
	Payload   canonical.Payload `json:"payload"`
	Signature string            `json:"signature"`
	KID       string            `json:"kid"`
	Alg       string            `json:"alg"`
}
