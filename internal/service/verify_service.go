package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ergoveritas/internal/core/domain"
	"ergoveritas/internal/core/ports"
	"ergoveritas/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// verifyCacheTTL bounds how long a positive by-hash lookup is served from cache.
const verifyCacheTTL = 24 * time.Hour

// VerifyServiceImpl implements ports.VerifyService.
type VerifyServiceImpl struct {
	receiptRepo ports.ReceiptRepository
	cache       ports.VerifyCache
	log         zerolog.Logger
}

// NewVerifyService creates a new VerifyServiceImpl. cache may be nil.
func NewVerifyService(receiptRepo ports.ReceiptRepository, cache ports.VerifyCache, log zerolog.Logger) *VerifyServiceImpl {
	return &VerifyServiceImpl{
		receiptRepo: receiptRepo,
		cache:       cache,
		log:         log,
	}
}

// ByID returns the verification bundle for a receipt id.
func (s *VerifyServiceImpl) ByID(ctx context.Context, id uuid.UUID) (*domain.ReceiptBundle, error) {
	receipt, err := s.receiptRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get receipt: %w", err))
	}
	if receipt == nil {
		return nil, apperror.ErrNotFound("Receipt")
	}
	return receipt.Bundle(), nil
}

// ByHash reports whether a receipt exists for the digest. Only hits are
// cached; the signed bundle never changes once issued.
func (s *VerifyServiceImpl) ByHash(ctx context.Context, alg string, hashValue string) (*ports.VerifyResult, error) {
	a, value, err := domain.ParseHash(alg, hashValue)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	key := string(a) + ":" + value

	if cached := s.fromCache(ctx, key); cached != nil {
		return &ports.VerifyResult{Exists: true, Receipt: cached}, nil
	}

	receipt, err := s.receiptRepo.GetByHash(ctx, a, value)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get receipt by hash: %w", err))
	}
	if receipt == nil {
		return &ports.VerifyResult{Exists: false}, nil
	}

	signed := receipt.SignedBundle()
	s.toCache(ctx, key, signed)

	return &ports.VerifyResult{Exists: true, Receipt: signed}, nil
}

func (s *VerifyServiceImpl) fromCache(ctx context.Context, key string) *domain.SignedReceipt {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("verify cache read failed")
		return nil
	}
	if raw == nil {
		return nil
	}
	var signed domain.SignedReceipt
	if err := json.Unmarshal(raw, &signed); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("verify cache entry corrupt")
		return nil
	}
	return &signed
}

func (s *VerifyServiceImpl) toCache(ctx context.Context, key string, signed *domain.SignedReceipt) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(signed)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, verifyCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("verify cache write failed")
	}
}
