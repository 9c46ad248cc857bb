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

const disputeColumns = `id, receipt_id, reason, details, contact_email_enc, evidence_urls, wants_idv, status, created_at`

// DisputeRepo implements ports.DisputeRepository.
type DisputeRepo struct {
	pool Pool
}

// NewDisputeRepo creates a new DisputeRepo.
func NewDisputeRepo(pool Pool) *DisputeRepo {
	return &DisputeRepo{pool: pool}
}

// Create inserts a dispute. Only the encrypted contact email is stored.
func (r *DisputeRepo) Create(ctx context.Context, d *domain.Dispute) error {
	evidence, err := json.Marshal(d.EvidenceURLs)
	if err != nil {
		return fmt.Errorf("marshal evidence urls: %w", err)
	}

	query := `INSERT INTO disputes (` + disputeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.pool.Exec(ctx, query,
		d.ID, d.ReceiptID, d.Reason, d.Details, d.ContactEmailEnc,
		evidence, d.WantsIDVerification, d.Status, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dispute: %w", err)
	}
	return nil
}

// GetByID fetches a dispute by its UUID.
func (r *DisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`

	d, err := scanDispute(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get dispute by id: %w", err)
	}
	return d, nil
}

// ListRecent returns the newest disputes first.
func (r *DisputeRepo) ListRecent(ctx context.Context, limit int) ([]domain.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list disputes: %w", err)
	}
	defer rows.Close()

	var disputes []domain.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dispute: %w", err)
		}
		disputes = append(disputes, *d)
	}
	return disputes, rows.Err()
}

// UpdateStatus sets a dispute's status. Returns false when the id is unknown.
func (r *DisputeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DisputeStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE disputes SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return false, fmt.Errorf("update dispute status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanDispute(row pgx.Row) (*domain.Dispute, error) {
	d := &domain.Dispute{}
	var evidence []byte
	if err := row.Scan(
		&d.ID, &d.ReceiptID, &d.Reason, &d.Details, &d.ContactEmailEnc,
		&evidence, &d.WantsIDVerification, &d.Status, &d.CreatedAt,
	); err != nil {
		return nil, err
	}
	d.EvidenceURLs = []string{}
	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &d.EvidenceURLs); err != nil {
			return nil, fmt.Errorf("decode evidence urls: %w", err)
		}
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return d, nil
}
