package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ergoveritas/internal/core/domain"
	"ergoveritas/internal/core/ports"
	"ergoveritas/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReceiptServiceImpl implements ports.ReceiptService.
type ReceiptServiceImpl struct {
	receiptRepo ports.ReceiptRepository
	signer      ports.Signer
	log         zerolog.Logger
	now         func() time.Time
}

// NewReceiptService creates a new ReceiptServiceImpl.
func NewReceiptService(receiptRepo ports.ReceiptRepository, signer ports.Signer, log zerolog.Logger) *ReceiptServiceImpl {
	return &ReceiptServiceImpl{
		receiptRepo: receiptRepo,
		signer:      signer,
		log:         log,
		now:         time.Now,
	}
}

// Create validates, signs and stores a new receipt. Uniqueness per
// (hash_algorithm, hash_value) is enforced by the store, not by a prior read.
func (s *ReceiptServiceImpl) Create(ctx context.Context, req ports.CreateReceiptRequest) (*domain.ReceiptBundle, error) {
	alg, value, err := domain.ParseHash(req.HashAlgorithm, req.HashValue)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	visibility, err := domain.ParseVisibility(req.Visibility)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}

	kid, err := s.signer.KeyID()
	if err != nil {
		return nil, err
	}

	receipt := &domain.Receipt{
		ID:            uuid.New(),
		HashAlgorithm: alg,
		HashValue:     value,
		Visibility:    visibility,
		// Stored at the precision the canonical timestamp carries.
		CreatedAt:    s.now().UTC().Truncate(time.Millisecond),
		KID:          kid,
		AnchorStatus: domain.AnchorStatusNone,
	}

	signature, err := s.signer.Sign(receipt.Payload().Bytes())
	if err != nil {
		return nil, err
	}
	receipt.SignatureB64 = signature

	if err := s.receiptRepo.Create(ctx, receipt); err != nil {
		if errors.Is(err, domain.ErrDuplicateReceipt) {
			return nil, s.duplicateError(ctx, alg, value)
		}
		return nil, apperror.InternalError(fmt.Errorf("create receipt: %w", err))
	}

	s.log.Info().
		Str("receipt_id", receipt.ID.String()).
		Str("hash_algorithm", string(alg)).
		Str("kid", kid).
		Msg("receipt issued")

	return receipt.Bundle(), nil
}

func (s *ReceiptServiceImpl) duplicateError(ctx context.Context, alg domain.HashAlgorithm, value string) error {
	existing, err := s.receiptRepo.GetByHash(ctx, alg, value)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lookup existing receipt: %w", err))
	}
	if existing == nil {
		// The conflicting row vanished between insert and lookup; receipts are never deleted.
		return apperror.InternalError(fmt.Errorf("duplicate receipt for %s:%s not found on lookup", alg, value))
	}
	return apperror.ErrDuplicateReceipt(existing.ID.String())
}

// Get returns the verification bundle for a receipt id.
func (s *ReceiptServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.ReceiptBundle, error) {
	receipt, err := s.receiptRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get receipt: %w", err))
	}
	if receipt == nil {
		return nil, apperror.ErrNotFound("Receipt")
	}
	return receipt.Bundle(), nil
}

// QueueForAnchoring moves a receipt to queued. Queuing an already queued
// receipt is a no-op and failed receipts may be retried; receipts that are
// already part of a batch are rejected.
func (s *ReceiptServiceImpl) QueueForAnchoring(ctx context.Context, id uuid.UUID) (*ports.QueueResult, error) {
	updated, err := s.receiptRepo.MarkQueued(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("queue receipt: %w", err))
	}

	if !updated {
		receipt, err := s.receiptRepo.GetByID(ctx, id)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get receipt: %w", err))
		}
		if receipt == nil {
			return nil, apperror.ErrNotFound("Receipt")
		}
		return nil, apperror.ErrInvalidAnchorTransition(string(receipt.AnchorStatus))
	}

	s.log.Info().Str("receipt_id", id.String()).Msg("receipt queued for anchoring")

	return &ports.QueueResult{
		ReceiptID:    id,
		AnchorStatus: domain.AnchorStatusQueued,
	}, nil
}
