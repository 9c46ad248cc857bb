package service

import (
	"context"
	"fmt"
	"time"

	"ergoveritas/internal/core/domain"
	"ergoveritas/internal/core/ports"
	"ergoveritas/pkg/apperror"
	"ergoveritas/pkg/merkle"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const buildLockName = "anchor:build"

// DefaultBatchCap bounds the number of receipts committed by one batch.
const DefaultBatchCap = 1000

// BatchServiceImpl implements ports.BatchService.
type BatchServiceImpl struct {
	receiptRepo ports.ReceiptRepository
	batchRepo   ports.BatchRepository
	transactor  ports.DBTransactor
	lock        ports.BuildLock
	notifier    ports.AnchorNotifier
	batchCap    int
	lockTTL     time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

// BatchServiceOptions tunes batch construction.
type BatchServiceOptions struct {
	BatchCap int
	LockTTL  time.Duration
}

// NewBatchService creates a new BatchServiceImpl. lock and notifier may be nil.
func NewBatchService(
	receiptRepo ports.ReceiptRepository,
	batchRepo ports.BatchRepository,
	transactor ports.DBTransactor,
	lock ports.BuildLock,
	notifier ports.AnchorNotifier,
	opts BatchServiceOptions,
	log zerolog.Logger,
) *BatchServiceImpl {
	if opts.BatchCap <= 0 {
		opts.BatchCap = DefaultBatchCap
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Minute
	}
	return &BatchServiceImpl{
		receiptRepo: receiptRepo,
		batchRepo:   batchRepo,
		transactor:  transactor,
		lock:        lock,
		notifier:    notifier,
		batchCap:    opts.BatchCap,
		lockTTL:     opts.LockTTL,
		log:         log,
		now:         time.Now,
	}
}

// Build commits the oldest queued receipts to a new Merkle batch. Selecting
// the receipts, inserting the batch and marking the receipts built happen in
// one transaction; either all of it is visible or none of it is.
func (s *BatchServiceImpl) Build(ctx context.Context) (*ports.BuildResult, error) {
	release, err := s.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	receipts, err := s.receiptRepo.ListQueuedForUpdate(ctx, dbTx, s.batchCap)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("select queued receipts: %w", err))
	}
	if len(receipts) == 0 {
		return nil, apperror.ErrNothingQueued()
	}

	leaves := make([]merkle.Digest, len(receipts))
	ids := make([]uuid.UUID, len(receipts))
	for i := range receipts {
		leaves[i] = merkle.Leaf(string(receipts[i].HashAlgorithm), receipts[i].HashValue)
		ids[i] = receipts[i].ID
	}

	root, err := merkle.Root(leaves)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("merkle root: %w", err))
	}

	batch := &domain.Batch{
		ID:         uuid.New(),
		MerkleRoot: root.String(),
		Status:     domain.BatchStatusBuilt,
		ReceiptIDs: ids,
		CreatedAt:  s.now().UTC(),
	}

	if err := s.batchRepo.Create(ctx, dbTx, batch); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create batch: %w", err))
	}

	marked, err := s.receiptRepo.MarkBuilt(ctx, dbTx, batch.ID, ids)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark receipts built: %w", err))
	}
	if marked != int64(len(ids)) {
		return nil, apperror.InternalError(fmt.Errorf("marked %d of %d receipts built", marked, len(ids)))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("batch_id", batch.ID.String()).
		Str("merkle_root", batch.MerkleRoot).
		Int("receipt_count", len(ids)).
		Msg("batch built")

	// Post-process: hand off to the external anchoring step (best-effort)
	if s.notifier != nil {
		if err := s.notifier.NotifyBatchBuilt(ctx, batch); err != nil {
			s.log.Warn().Err(err).Str("batch_id", batch.ID.String()).Msg("failed to notify anchoring endpoint")
		}
	}

	return &ports.BuildResult{
		BatchID:      batch.ID,
		MerkleRoot:   batch.MerkleRoot,
		ReceiptCount: len(ids),
		Status:       batch.Status,
	}, nil
}

// acquireLock takes the cross-instance build lock. A lock backend failure
// is logged and the build proceeds under row locks alone.
func (s *BatchServiceImpl) acquireLock(ctx context.Context) (func(), error) {
	noop := func() {}
	if s.lock == nil {
		return noop, nil
	}

	token, ok, err := s.lock.Acquire(ctx, buildLockName, s.lockTTL)
	if err != nil {
		s.log.Warn().Err(err).Msg("build lock unavailable, relying on row locks")
		return noop, nil
	}
	if !ok {
		return nil, apperror.ErrBuildInProgress()
	}

	return func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), buildLockName, token); err != nil {
			s.log.Warn().Err(err).Msg("failed to release build lock")
		}
	}, nil
}

// Get returns a batch with its ordered receipt ids.
func (s *BatchServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	batch, err := s.batchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get batch: %w", err))
	}
	if batch == nil {
		return nil, apperror.ErrNotFound("Batch")
	}
	return batch, nil
}

// ReceiptProof returns the Merkle inclusion proof of a built receipt.
func (s *BatchServiceImpl) ReceiptProof(ctx context.Context, receiptID uuid.UUID) (*ports.InclusionProof, error) {
	receipt, err := s.receiptRepo.GetByID(ctx, receiptID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get receipt: %w", err))
	}
	if receipt == nil {
		return nil, apperror.ErrNotFound("Receipt")
	}
	if receipt.AnchorBatchID == nil {
		return nil, apperror.ErrNotFound("Batch for receipt")
	}

	batch, err := s.Get(ctx, *receipt.AnchorBatchID)
	if err != nil {
		return nil, err
	}

	members, err := s.receiptRepo.ListByBatch(ctx, batch.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list batch receipts: %w", err))
	}
	byID := make(map[uuid.UUID]*domain.Receipt, len(members))
	for i := range members {
		byID[members[i].ID] = &members[i]
	}

	leaves := make([]merkle.Digest, len(batch.ReceiptIDs))
	for i, id := range batch.ReceiptIDs {
		r, ok := byID[id]
		if !ok {
			return nil, apperror.InternalError(fmt.Errorf("batch %s references missing receipt %s", batch.ID, id))
		}
		leaves[i] = merkle.Leaf(string(r.HashAlgorithm), r.HashValue)
	}

	index := batch.IndexOf(receiptID)
	if index < 0 {
		return nil, apperror.InternalError(fmt.Errorf("receipt %s not listed in batch %s", receiptID, batch.ID))
	}

	path, err := merkle.Proof(leaves, index)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("merkle proof: %w", err))
	}
	root, err := merkle.Root(leaves)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("merkle root: %w", err))
	}
	if root.String() != batch.MerkleRoot {
		return nil, apperror.InternalError(fmt.Errorf("batch %s root mismatch: stored %s, recomputed %s", batch.ID, batch.MerkleRoot, root))
	}

	return ports.NewInclusionProof(receiptID, batch.ID, root, leaves[index], index, path), nil
}
