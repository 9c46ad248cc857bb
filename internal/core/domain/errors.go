package domain

import "errors"

// Sentinel errors returned by repositories.
var (
	// ErrDuplicateReceipt is returned when (hash_algorithm, hash_value) already exists.
	ErrDuplicateReceipt = errors.New("receipt already exists for this hash")
	// ErrReceiptNotQueueable is returned when a receipt's anchor status forbids queuing.
	ErrReceiptNotQueueable = errors.New("receipt cannot be queued from its current anchor status")
)
