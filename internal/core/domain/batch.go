package domain

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus is the external anchoring state of a batch.
// Only built is set by this service.
type BatchStatus string

const (
	BatchStatusBuilt     BatchStatus = "built"
	BatchStatusSubmitted BatchStatus = "submitted"
	BatchStatusConfirmed BatchStatus = "confirmed"
)

// Batch commits an ordered set of receipts to a Merkle root.
// ReceiptIDs order is the leaf order.
type Batch struct {
	ID         uuid.UUID   `json:"batch_id"`
	MerkleRoot string      `json:"merkle_root"`
	Status     BatchStatus `json:"status"`
	ReceiptIDs []uuid.UUID `json:"receipt_ids"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ReceiptCount returns the number of receipts committed by the batch.
func (b *Batch) ReceiptCount() int {
	return len(b.ReceiptIDs)
}

// IndexOf returns the leaf position of receiptID, or -1.
func (b *Batch) IndexOf(receiptID uuid.UUID) int {
	for i, id := range b.ReceiptIDs {
		if id == receiptID {
			return i
		}
	}
	return -1
}
