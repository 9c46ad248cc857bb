package domain

import (
	"time"

	"github.com/google/uuid"
)

// DisputeStatus is only advanced by an administrator.
type DisputeStatus string

const (
	DisputeStatusNew              DisputeStatus = "new"
	DisputeStatusReviewing        DisputeStatus = "reviewing"
	DisputeStatusSentToArbitrator DisputeStatus = "sent_to_arbitrator"
	DisputeStatusClosed           DisputeStatus = "closed"
)

func (s DisputeStatus) IsValid() bool {
	switch s {
	case DisputeStatusNew, DisputeStatusReviewing, DisputeStatusSentToArbitrator, DisputeStatusClosed:
		return true
	}
	return false
}

// Dispute is a claim raised against exactly one receipt.
type Dispute struct {
	ID                  uuid.UUID     `json:"id"`
	ReceiptID           uuid.UUID     `json:"receipt_id"`
	Reason              string        `json:"reason"`
	Details             *string       `json:"details,omitempty"`
	ContactEmail        string        `json:"contact_email"`
	ContactEmailEnc     string        `json:"-"` // AES-256-GCM at rest
	EvidenceURLs        []string      `json:"evidence_urls"`
	WantsIDVerification bool          `json:"wants_idv"`
	Status              DisputeStatus `json:"status"`
	CreatedAt           time.Time     `json:"created_at"`
}
