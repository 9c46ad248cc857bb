package ports

import (
	"context"
	"time"

	"ergoveritas/internal/core/domain"
	"ergoveritas/pkg/merkle"

	"github.com/google/uuid"
)

// --- Infrastructure Ports ---

// Signer signs canonical receipt payloads with the service's Ed25519 key.
type Signer interface {
	KeyID() (string, error)
	Sign(payload []byte) (string, error)
	Verify(payload []byte, signatureB64 string) (bool, error)
	PublicKeyInfo() (*PublicKeyInfo, error)
}

// PublicKeyInfo is what third parties need to verify receipts.
type PublicKeyInfo struct {
	KID             string `json:"kid"`
	Alg             string `json:"alg"`
	PublicKeyDERB64 string `json:"public_key_der_b64"`
	PublicKeyRawB64 string `json:"public_key_raw_b64"`
}

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification of
// outbound anchor notifications.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildDeliveryString(timestamp int64, body string) string
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
	Role    string
}

// VerifyCache caches immutable verify-by-hash results (fast path).
type VerifyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// BuildLock serializes batch builds across instances.
type BuildLock interface {
	// Acquire returns a token when the lock was taken, or ok=false if held elsewhere.
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, name string, token string) error
}

// --- Service Ports (Business Logic) ---

// ReceiptService issues receipts and manages their anchor status.
type ReceiptService interface {
	Create(ctx context.Context, req CreateReceiptRequest) (*domain.ReceiptBundle, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.ReceiptBundle, error)
	QueueForAnchoring(ctx context.Context, id uuid.UUID) (*QueueResult, error)
}

// CreateReceiptRequest holds input for receipt creation.
type CreateReceiptRequest struct {
	HashAlgorithm string
	HashValue     string
	Visibility    string // empty means public
}

// QueueResult is returned after queuing a receipt.
type QueueResult struct {
	ReceiptID    uuid.UUID           `json:"receipt_id"`
	AnchorStatus domain.AnchorStatus `json:"anchor_status"`
}

// BatchService builds Merkle batches from queued receipts.
type BatchService interface {
	Build(ctx context.Context) (*BuildResult, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Batch, error)
	ReceiptProof(ctx context.Context, receiptID uuid.UUID) (*InclusionProof, error)
}

// BuildResult summarizes a freshly built batch.
type BuildResult struct {
	BatchID      uuid.UUID          `json:"batch_id"`
	MerkleRoot   string             `json:"merkle_root"`
	ReceiptCount int                `json:"receipt_count"`
	Status       domain.BatchStatus `json:"status"`
}

// InclusionProof lets a third party recompute a batch root from one receipt.
type InclusionProof struct {
	ReceiptID  uuid.UUID `json:"receipt_id"`
	BatchID    uuid.UUID `json:"batch_id"`
	MerkleRoot string    `json:"merkle_root"`
	Leaf       string    `json:"leaf"`
	Index      int       `json:"index"`
	Path       []string  `json:"path"`
}

// NewInclusionProof renders digests as hex.
func NewInclusionProof(receiptID, batchID uuid.UUID, root, leaf merkle.Digest, index int, path []merkle.Digest) *InclusionProof {
	hexPath := make([]string, len(path))
	for i, d := range path {
		hexPath[i] = d.String()
	}
	return &InclusionProof{
		ReceiptID:  receiptID,
		BatchID:    batchID,
		MerkleRoot: root.String(),
		Leaf:       leaf.String(),
		Index:      index,
		Path:       hexPath,
	}
}

// VerifyService answers read-only verification queries.
type VerifyService interface {
	ByID(ctx context.Context, id uuid.UUID) (*domain.ReceiptBundle, error)
	ByHash(ctx context.Context, alg string, hashValue string) (*VerifyResult, error)
}

// VerifyResult is the verify-by-hash response.
type VerifyResult struct {
	Exists  bool                  `json:"exists"`
	Receipt *domain.SignedReceipt `json:"receipt,omitempty"`
}

// DisputeService handles dispute intake and admin review.
type DisputeService interface {
	Create(ctx context.Context, req CreateDisputeRequest) (*domain.Dispute, error)
	List(ctx context.Context) ([]domain.Dispute, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DisputeStatus) (*domain.Dispute, error)
}

// CreateDisputeRequest holds validated dispute input.
type CreateDisputeRequest struct {
	ReceiptID    uuid.UUID
	Reason       string
	Details      *string
	ContactEmail string
	EvidenceURLs []string
	WantsIDV     bool
}

// AdminService authenticates the operator and serves admin listings.
type AdminService interface {
	Login(ctx context.Context, password string) (string, time.Time, error) // token, expiry, error
	ListReceipts(ctx context.Context) ([]domain.Receipt, error)
	ListBatches(ctx context.Context) ([]domain.Batch, error)
}

// AuditService records admin actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// AnchorNotifier hands built batches to the external anchoring endpoint.
type AnchorNotifier interface {
	NotifyBatchBuilt(ctx context.Context, batch *domain.Batch) error
}
