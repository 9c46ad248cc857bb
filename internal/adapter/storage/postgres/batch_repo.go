package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ergoveritas/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BatchRepo implements ports.BatchRepository.
type BatchRepo struct {
	pool Pool
}

// NewBatchRepo creates a new BatchRepo.
func NewBatchRepo(pool Pool) *BatchRepo {
	return &BatchRepo{pool: pool}
}

// Create inserts a batch within the build transaction. Receipt ids are
// stored as a JSON array in leaf order.
func (r *BatchRepo) Create(ctx context.Context, tx pgx.Tx, b *domain.Batch) error {
	ids, err := json.Marshal(b.ReceiptIDs)
	if err != nil {
		return fmt.Errorf("marshal receipt ids: %w", err)
	}

	query := `INSERT INTO batches (id, merkle_root, status, receipt_ids, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := tx.Exec(ctx, query, b.ID, b.MerkleRoot, b.Status, ids, b.CreatedAt); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// GetByID fetches a batch by its UUID.
func (r *BatchRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	query := `SELECT id, merkle_root, status, receipt_ids, created_at FROM batches WHERE id = $1`

	b := &domain.Batch{}
	var ids []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(&b.ID, &b.MerkleRoot, &b.Status, &ids, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get batch by id: %w", err)
	}
	if err := json.Unmarshal(ids, &b.ReceiptIDs); err != nil {
		return nil, fmt.Errorf("decode receipt ids of batch %s: %w", id, err)
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}

// ListRecent returns the newest batches first.
func (r *BatchRepo) ListRecent(ctx context.Context, limit int) ([]domain.Batch, error) {
	query := `SELECT id, merkle_root, status, receipt_ids, created_at
		FROM batches ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []domain.Batch
	for rows.Next() {
		var b domain.Batch
		var ids []byte
		if err := rows.Scan(&b.ID, &b.MerkleRoot, &b.Status, &ids, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		if err := json.Unmarshal(ids, &b.ReceiptIDs); err != nil {
			return nil, fmt.Errorf("decode receipt ids of batch %s: %w", b.ID, err)
		}
		b.CreatedAt = b.CreatedAt.UTC()
		batches = append(batches, b)
	}
	return batches, rows.Err()
}
