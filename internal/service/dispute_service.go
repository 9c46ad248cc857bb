package service

import (
	"context"
	"fmt"
	"time"

	"ergoveritas/internal/core/domain"
	"ergoveritas/internal/core/ports"
	"ergoveritas/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultListLimit caps admin listings.
const DefaultListLimit = 200

// DisputeServiceImpl implements ports.DisputeService.
type DisputeServiceImpl struct {
	disputeRepo ports.DisputeRepository
	receiptRepo ports.ReceiptRepository
	encSvc      ports.EncryptionService
	listLimit   int
	log         zerolog.Logger
	now         func() time.Time
}

// NewDisputeService creates a new DisputeServiceImpl.
func NewDisputeService(
	disputeRepo ports.DisputeRepository,
	receiptRepo ports.ReceiptRepository,
	encSvc ports.EncryptionService,
	listLimit int,
	log zerolog.Logger,
) *DisputeServiceImpl {
	if listLimit <= 0 {
		listLimit = DefaultListLimit
	}
	return &DisputeServiceImpl{
		disputeRepo: disputeRepo,
		receiptRepo: receiptRepo,
		encSvc:      encSvc,
		listLimit:   listLimit,
		log:         log,
		now:         time.Now,
	}
}

// Create files a dispute against an existing receipt. The contact email is
// encrypted before it reaches the store.
func (s *DisputeServiceImpl) Create(ctx context.Context, req ports.CreateDisputeRequest) (*domain.Dispute, error) {
	receipt, err := s.receiptRepo.GetByID(ctx, req.ReceiptID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get receipt: %w", err))
	}
	if receipt == nil {
		return nil, apperror.ErrNotFound("Receipt")
	}

	emailEnc, err := s.encSvc.Encrypt(req.ContactEmail)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}

	evidence := req.EvidenceURLs
	if evidence == nil {
		evidence = []string{}
	}

	dispute := &domain.Dispute{
		ID:                  uuid.New(),
		ReceiptID:           req.ReceiptID,
		Reason:              req.Reason,
		Details:             req.Details,
		ContactEmail:        req.ContactEmail,
		ContactEmailEnc:     emailEnc,
		EvidenceURLs:        evidence,
		WantsIDVerification: req.WantsIDV,
		Status:              domain.DisputeStatusNew,
		CreatedAt:           s.now().UTC(),
	}

	if err := s.disputeRepo.Create(ctx, dispute); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create dispute: %w", err))
	}

	s.log.Info().
		Str("dispute_id", dispute.ID.String()).
		Str("receipt_id", dispute.ReceiptID.String()).
		Msg("dispute filed")

	return dispute, nil
}

// List returns the newest disputes with contact emails decrypted.
func (s *DisputeServiceImpl) List(ctx context.Context) ([]domain.Dispute, error) {
	disputes, err := s.disputeRepo.ListRecent(ctx, s.listLimit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list disputes: %w", err))
	}
	for i := range disputes {
		if err := s.decryptEmail(&disputes[i]); err != nil {
			return nil, err
		}
	}
	return disputes, nil
}

// UpdateStatus sets a dispute's review status.
func (s *DisputeServiceImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DisputeStatus) (*domain.Dispute, error) {
	if !status.IsValid() {
		return nil, apperror.Validation("status must be one of new, reviewing, sent_to_arbitrator, closed")
	}

	updated, err := s.disputeRepo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update dispute status: %w", err))
	}
	if !updated {
		return nil, apperror.ErrNotFound("Dispute")
	}

	dispute, err := s.disputeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get dispute: %w", err))
	}
	if dispute == nil {
		return nil, apperror.ErrNotFound("Dispute")
	}
	if err := s.decryptEmail(dispute); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("dispute_id", id.String()).
		Str("status", string(status)).
		Msg("dispute status updated")

	return dispute, nil
}

func (s *DisputeServiceImpl) decryptEmail(d *domain.Dispute) error {
	if d.ContactEmailEnc == "" {
		return nil
	}
	email, err := s.encSvc.Decrypt(d.ContactEmailEnc)
	if err != nil {
		return apperror.ErrEncryptionFailure(fmt.Errorf("decrypt contact email for dispute %s: %w", d.ID, err))
	}
	d.ContactEmail = email
	return nil
}
