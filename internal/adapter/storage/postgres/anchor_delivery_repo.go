package postgres

import (
	"context"
	"fmt"

	"ergoveritas/internal/core/domain"

	"github.com/google/uuid"
)

// AnchorDeliveryRepo implements ports.AnchorDeliveryRepository.
type AnchorDeliveryRepo struct {
	pool Pool
}

// NewAnchorDeliveryRepo creates a PostgreSQL-backed AnchorDeliveryRepository.
func NewAnchorDeliveryRepo(pool Pool) *AnchorDeliveryRepo {
	return &AnchorDeliveryRepo{pool: pool}
}

func (r *AnchorDeliveryRepo) Create(ctx context.Context, d *domain.AnchorDelivery) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO anchor_deliveries
		(id, batch_id, target_url, payload, http_status, attempt, status, next_retry_at, last_error, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		d.ID, d.BatchID, d.TargetURL, d.Payload, d.HTTPStatus, d.Attempt,
		string(d.Status), d.NextRetryAt, d.LastError, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert anchor delivery: %w", err)
	}
	return nil
}

func (r *AnchorDeliveryRepo) Update(ctx context.Context, d *domain.AnchorDelivery) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE anchor_deliveries
		 SET http_status=$1, attempt=$2, status=$3, next_retry_at=$4, last_error=$5, updated_at=$6
		 WHERE id=$7`,
		d.HTTPStatus, d.Attempt, string(d.Status),
		d.NextRetryAt, d.LastError, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update anchor delivery: %w", err)
	}
	return nil
}

func (r *AnchorDeliveryRepo) GetByBatchID(ctx context.Context, batchID uuid.UUID) ([]domain.AnchorDelivery, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, batch_id, target_url, payload,
		http_status, attempt, status, next_retry_at, last_error,
		created_at, updated_at
		 FROM anchor_deliveries
		 WHERE batch_id=$1
		 ORDER BY created_at DESC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list anchor deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []domain.AnchorDelivery
	for rows.Next() {
		var d domain.AnchorDelivery
		var status string
		if err := rows.Scan(
			&d.ID, &d.BatchID, &d.TargetURL, &d.Payload,
			&d.HTTPStatus, &d.Attempt, &status, &d.NextRetryAt, &d.LastError,
			&d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan anchor delivery: %w", err)
		}
		d.Status = domain.DeliveryStatus(status)
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}
