package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus represents the state of a batch notification.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
	DeliveryStatusFailed    DeliveryStatus = "FAILED"
)

// AnchorDelivery records the hand-off of a built batch to the external
// anchoring endpoint, one row per batch updated on every attempt.
type AnchorDelivery struct {
	ID          uuid.UUID      `json:"id"`
	BatchID     uuid.UUID      `json:"batch_id"`
	TargetURL   string         `json:"target_url"`
	Payload     string         `json:"payload"` // JSON string
	HTTPStatus  *int           `json:"http_status"`
	Attempt     int            `json:"attempt"`
	Status      DeliveryStatus `json:"status"`
	NextRetryAt *time.Time     `json:"next_retry_at"`
	LastError   *string        `json:"last_error"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
