package service

import (
	"context"
	"fmt"
	"time"

	"ergoveritas/internal/core/domain"
	"ergoveritas/internal/core/ports"
	"ergoveritas/pkg/apperror"

	"github.com/rs/zerolog"
)

// AdminSubject is the JWT subject issued to the operator.
const AdminSubject = "admin"

// AdminServiceImpl implements ports.AdminService.
type AdminServiceImpl struct {
	receiptRepo  ports.ReceiptRepository
	batchRepo    ports.BatchRepository
	hashSvc      ports.HashService
	tokenSvc     ports.TokenService
	passwordHash string
	listLimit    int
	log          zerolog.Logger
}

// NewAdminService creates a new AdminServiceImpl. An empty passwordHash
// disables admin login.
func NewAdminService(
	receiptRepo ports.ReceiptRepository,
	batchRepo ports.BatchRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	passwordHash string,
	listLimit int,
	log zerolog.Logger,
) *AdminServiceImpl {
	if listLimit <= 0 {
		listLimit = DefaultListLimit
	}
	return &AdminServiceImpl{
		receiptRepo:  receiptRepo,
		batchRepo:    batchRepo,
		hashSvc:      hashSvc,
		tokenSvc:     tokenSvc,
		passwordHash: passwordHash,
		listLimit:    listLimit,
		log:          log,
	}
}

// Login verifies the operator password and returns a JWT.
func (s *AdminServiceImpl) Login(_ context.Context, password string) (string, time.Time, error) {
	if s.passwordHash == "" {
		return "", time.Time{}, apperror.ErrAdminDisabled()
	}

	valid, err := s.hashSvc.Verify(password, s.passwordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify admin password: %w", err))
	}
	if !valid {
		s.log.Warn().Msg("admin login rejected")
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(AdminSubject)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}

// ListReceipts returns the newest receipts.
func (s *AdminServiceImpl) ListReceipts(ctx context.Context) ([]domain.Receipt, error) {
	receipts, err := s.receiptRepo.ListRecent(ctx, s.listLimit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list receipts: %w", err))
	}
	return receipts, nil
}

// ListBatches returns the newest batches.
func (s *AdminServiceImpl) ListBatches(ctx context.Context) ([]domain.Batch, error) {
	batches, err := s.batchRepo.ListRecent(ctx, s.listLimit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list batches: %w", err))
	}
	return batches, nil
}
