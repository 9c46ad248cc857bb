package ports

import (
	"context"

	"ergoveritas/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReceiptRepository defines persistence operations for receipts.
// Methods accepting pgx.Tx run inside the batch build transaction.
type ReceiptRepository interface {
	// Create inserts a receipt. Returns domain.ErrDuplicateReceipt when the
	// (hash_algorithm, hash_value) pair is already taken.
	Create(ctx context.Context, receipt *domain.Receipt) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Receipt, error)
	GetByHash(ctx context.Context, alg domain.HashAlgorithm, hashValue string) (*domain.Receipt, error)
	// MarkQueued sets anchor_status to queued if the current status allows it.
	// Returns false when no row was updated.
	MarkQueued(ctx context.Context, id uuid.UUID) (bool, error)
	// ListQueuedForUpdate locks up to limit queued receipts, oldest first.
	ListQueuedForUpdate(ctx context.Context, tx pgx.Tx, limit int) ([]domain.Receipt, error)
	// MarkBuilt moves queued receipts to built under batchID and returns the affected row count.
	MarkBuilt(ctx context.Context, tx pgx.Tx, batchID uuid.UUID, ids []uuid.UUID) (int64, error)
	// ListByBatch returns the receipts committed by batchID in no particular order.
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.Receipt, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Receipt, error)
}

// BatchRepository defines persistence operations for anchoring batches.
type BatchRepository interface {
	Create(ctx context.Context, tx pgx.Tx, batch *domain.Batch) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Batch, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Batch, error)
}

// DisputeRepository defines persistence operations for disputes.
// ContactEmailEnc is persisted; ContactEmail is never written.
type DisputeRepository interface {
	Create(ctx context.Context, dispute *domain.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Dispute, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DisputeStatus) (bool, error)
}

// AuditRepository persists admin audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// AnchorDeliveryRepository records batch notification attempts.
type AnchorDeliveryRepository interface {
	Create(ctx context.Context, delivery *domain.AnchorDelivery) error
	Update(ctx context.Context, delivery *domain.AnchorDelivery) error
	GetByBatchID(ctx context.Context, batchID uuid.UUID) ([]domain.AnchorDelivery, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
