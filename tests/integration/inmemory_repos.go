package integration

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"ergoveritas/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// memStore backs every in-memory repository. Writes made through a memTx are
// staged and only become visible on Commit, and at most one transaction is
// open at a time, which stands in for the row locks the SQL store takes.
type memStore struct {
	mu         sync.RWMutex
	receipts   map[uuid.UUID]domain.Receipt
	batches    map[uuid.UUID]domain.Batch
	disputes   map[uuid.UUID]domain.Dispute
	audits     []domain.AuditLog
	deliveries map[uuid.UUID]domain.AnchorDelivery

	txMu sync.Mutex

	failMarkBuilt atomic.Bool
}

var errInjected = errors.New("injected storage failure")

func newMemStore() *memStore {
	return &memStore{
		receipts:   make(map[uuid.UUID]domain.Receipt),
		batches:    make(map[uuid.UUID]domain.Batch),
		disputes:   make(map[uuid.UUID]domain.Dispute),
		deliveries: make(map[uuid.UUID]domain.AnchorDelivery),
	}
}

// setAnchorStatus changes a receipt's status the way the external anchoring
// step would, leaving its batch id untouched.
func (s *memStore) setAnchorStatus(id uuid.UUID, status domain.AnchorStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.receipts[id]
	r.AnchorStatus = status
	s.receipts[id] = r
}

// --- In-Memory Transactor ---

type memTransactor struct {
	store *memStore
}

func (t *memTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.store.txMu.Lock()
	return &memTx{store: t.store}, nil
}

// memTx implements the pgx.Tx methods the services call.
type memTx struct {
	pgx.Tx
	store   *memStore
	batches []domain.Batch
	built   map[uuid.UUID]uuid.UUID // receipt -> batch
	done    bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.store.mu.Lock()
	for _, b := range t.batches {
		t.store.batches[b.ID] = b
	}
	for receiptID, batchID := range t.built {
		r := t.store.receipts[receiptID]
		id := batchID
		r.AnchorStatus = domain.AnchorStatusBuilt
		r.AnchorBatchID = &id
		t.store.receipts[receiptID] = r
	}
	t.store.mu.Unlock()
	t.finish()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *memTx) finish() {
	t.done = true
	t.store.txMu.Unlock()
}

// --- In-Memory Receipt Repo ---

type memReceiptRepo struct {
	store *memStore
}

func (r *memReceiptRepo) Create(ctx context.Context, receipt *domain.Receipt) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.receipts {
		if existing.HashAlgorithm == receipt.HashAlgorithm && existing.HashValue == receipt.HashValue {
			return domain.ErrDuplicateReceipt
		}
	}
	r.store.receipts[receipt.ID] = *receipt
	return nil
}

func (r *memReceiptRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Receipt, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	receipt, ok := r.store.receipts[id]
	if !ok {
		return nil, nil
	}
	return &receipt, nil
}

func (r *memReceiptRepo) GetByHash(ctx context.Context, alg domain.HashAlgorithm, hashValue string) (*domain.Receipt, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, receipt := range r.store.receipts {
		if receipt.HashAlgorithm == alg && receipt.HashValue == hashValue {
			return &receipt, nil
		}
	}
	return nil, nil
}

func (r *memReceiptRepo) MarkQueued(ctx context.Context, id uuid.UUID) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	receipt, ok := r.store.receipts[id]
	if !ok || !receipt.CanQueue() {
		return false, nil
	}
	receipt.AnchorStatus = domain.AnchorStatusQueued
	r.store.receipts[id] = receipt
	return true, nil
}

func (r *memReceiptRepo) ListQueuedForUpdate(ctx context.Context, tx pgx.Tx, limit int) ([]domain.Receipt, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var queued []domain.Receipt
	for _, receipt := range r.store.receipts {
		if receipt.AnchorStatus == domain.AnchorStatusQueued {
			queued = append(queued, receipt)
		}
	}
	sort.Slice(queued, func(i, j int) bool {
		if queued[i].CreatedAt.Equal(queued[j].CreatedAt) {
			return queued[i].ID.String() < queued[j].ID.String()
		}
		return queued[i].CreatedAt.Before(queued[j].CreatedAt)
	})
	if len(queued) > limit {
		queued = queued[:limit]
	}
	return queued, nil
}

func (r *memReceiptRepo) MarkBuilt(ctx context.Context, tx pgx.Tx, batchID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if r.store.failMarkBuilt.Load() {
		return 0, errInjected
	}
	mtx := tx.(*memTx)
	if mtx.built == nil {
		mtx.built = make(map[uuid.UUID]uuid.UUID)
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var n int64
	for _, id := range ids {
		if receipt, ok := r.store.receipts[id]; ok && receipt.AnchorStatus == domain.AnchorStatusQueued {
			mtx.built[id] = batchID
			n++
		}
	}
	return n, nil
}

func (r *memReceiptRepo) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.Receipt, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []domain.Receipt
	for _, receipt := range r.store.receipts {
		if receipt.AnchorBatchID != nil && *receipt.AnchorBatchID == batchID {
			out = append(out, receipt)
		}
	}
	return out, nil
}

func (r *memReceiptRepo) ListRecent(ctx context.Context, limit int) ([]domain.Receipt, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.Receipt, 0, len(r.store.receipts))
	for _, receipt := range r.store.receipts {
		out = append(out, receipt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- In-Memory Batch Repo ---

type memBatchRepo struct {
	store *memStore
}

func (r *memBatchRepo) Create(ctx context.Context, tx pgx.Tx, batch *domain.Batch) error {
	mtx := tx.(*memTx)
	mtx.batches = append(mtx.batches, *batch)
	return nil
}

func (r *memBatchRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	b, ok := r.store.batches[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *memBatchRepo) ListRecent(ctx context.Context, limit int) ([]domain.Batch, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.Batch, 0, len(r.store.batches))
	for _, b := range r.store.batches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- In-Memory Dispute Repo ---

type memDisputeRepo struct {
	store *memStore
}

func (r *memDisputeRepo) Create(ctx context.Context, d *domain.Dispute) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored := *d
	stored.ContactEmail = ""
	r.store.disputes[d.ID] = stored
	return nil
}

func (r *memDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	d, ok := r.store.disputes[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r *memDisputeRepo) ListRecent(ctx context.Context, limit int) ([]domain.Dispute, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.Dispute, 0, len(r.store.disputes))
	for _, d := range r.store.disputes {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memDisputeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DisputeStatus) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	d, ok := r.store.disputes[id]
	if !ok {
		return false, nil
	}
	d.Status = status
	r.store.disputes[id] = d
	return true, nil
}

// --- In-Memory Audit Repo ---

type memAuditRepo struct {
	store *memStore
}

func (r *memAuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.audits = append(r.store.audits, *log)
	return nil
}

// --- In-Memory Anchor Delivery Repo ---

type memDeliveryRepo struct {
	store *memStore
}

func (r *memDeliveryRepo) Create(ctx context.Context, d *domain.AnchorDelivery) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.deliveries[d.ID] = *d
	return nil
}

func (r *memDeliveryRepo) Update(ctx context.Context, d *domain.AnchorDelivery) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.deliveries[d.ID] = *d
	return nil
}

func (r *memDeliveryRepo) GetByBatchID(ctx context.Context, batchID uuid.UUID) ([]domain.AnchorDelivery, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []domain.AnchorDelivery
	for _, d := range r.store.deliveries {
		if d.BatchID == batchID {
			out = append(out, d)
		}
	}
	return out, nil
}
