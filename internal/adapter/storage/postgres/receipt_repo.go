package postgres

import (
	"context"
	"errors"
	"fmt"

	"ergoveritas/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const receiptColumns = `id, hash_algorithm, hash_value, visibility, created_at, signature_b64, kid, anchor_status, anchor_batch_id`

// ReceiptRepo implements ports.ReceiptRepository.
type ReceiptRepo struct {
	pool Pool
}

// NewReceiptRepo creates a new ReceiptRepo.
func NewReceiptRepo(pool Pool) *ReceiptRepo {
	return &ReceiptRepo{pool: pool}
}

// Create inserts a new receipt. The unique index on
// (hash_algorithm, hash_value) is the single source of truth for duplicates.
func (r *ReceiptRepo) Create(ctx context.Context, rc *domain.Receipt) error {
	query := `INSERT INTO receipts (` + receiptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		rc.ID, rc.HashAlgorithm, rc.HashValue, rc.Visibility, rc.CreatedAt,
		rc.SignatureB64, rc.KID, rc.AnchorStatus, rc.AnchorBatchID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateReceipt
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

// GetByID fetches a receipt by its UUID.
func (r *ReceiptRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE id = $1`
	return r.scanReceipt(r.pool.QueryRow(ctx, query, id))
}

// GetByHash fetches a receipt by its digest.
func (r *ReceiptRepo) GetByHash(ctx context.Context, alg domain.HashAlgorithm, hashValue string) (*domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE hash_algorithm = $1 AND hash_value = $2`
	return r.scanReceipt(r.pool.QueryRow(ctx, query, alg, hashValue))
}

// MarkQueued moves a receipt to queued when its current status permits and
// it has never been committed to a batch.
func (r *ReceiptRepo) MarkQueued(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE receipts SET anchor_status = $1
		WHERE id = $2 AND anchor_status = ANY($3) AND anchor_batch_id IS NULL`

	allowed := make([]string, len(domain.QueueableAnchorStatuses))
	for i, s := range domain.QueueableAnchorStatuses {
		allowed[i] = string(s)
	}

	tag, err := r.pool.Exec(ctx, query, domain.AnchorStatusQueued, id, allowed)
	if err != nil {
		return false, fmt.Errorf("mark receipt queued: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListQueuedForUpdate row-locks up to limit queued receipts in leaf order.
// Rows locked by a concurrent build are skipped rather than waited on.
func (r *ReceiptRepo) ListQueuedForUpdate(ctx context.Context, tx pgx.Tx, limit int) ([]domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts
		WHERE anchor_status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, domain.AnchorStatusQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("select queued receipts: %w", err)
	}
	return collectReceipts(rows)
}

// MarkBuilt assigns queued receipts to a batch.
func (r *ReceiptRepo) MarkBuilt(ctx context.Context, tx pgx.Tx, batchID uuid.UUID, ids []uuid.UUID) (int64, error) {
	query := `UPDATE receipts SET anchor_status = $1, anchor_batch_id = $2
		WHERE id = ANY($3) AND anchor_status = $4`

	tag, err := tx.Exec(ctx, query, domain.AnchorStatusBuilt, batchID, ids, domain.AnchorStatusQueued)
	if err != nil {
		return 0, fmt.Errorf("mark receipts built: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListByBatch returns every receipt committed by a batch.
func (r *ReceiptRepo) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE anchor_batch_id = $1`

	rows, err := r.pool.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch receipts: %w", err)
	}
	return collectReceipts(rows)
}

// ListRecent returns the newest receipts first.
func (r *ReceiptRepo) ListRecent(ctx context.Context, limit int) ([]domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return collectReceipts(rows)
}

func (r *ReceiptRepo) scanReceipt(row pgx.Row) (*domain.Receipt, error) {
	rc := &domain.Receipt{}
	err := row.Scan(
		&rc.ID, &rc.HashAlgorithm, &rc.HashValue, &rc.Visibility, &rc.CreatedAt,
		&rc.SignatureB64, &rc.KID, &rc.AnchorStatus, &rc.AnchorBatchID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan receipt: %w", err)
	}
	rc.CreatedAt = rc.CreatedAt.UTC()
	return rc, nil
}

func collectReceipts(rows pgx.Rows) ([]domain.Receipt, error) {
	defer rows.Close()

	var receipts []domain.Receipt
	for rows.Next() {
		var rc domain.Receipt
		if err := rows.Scan(
			&rc.ID, &rc.HashAlgorithm, &rc.HashValue, &rc.Visibility, &rc.CreatedAt,
			&rc.SignatureB64, &rc.KID, &rc.AnchorStatus, &rc.AnchorBatchID,
		); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		rc.CreatedAt = rc.CreatedAt.UTC()
		receipts = append(receipts, rc)
	}
	return receipts, rows.Err()
}
