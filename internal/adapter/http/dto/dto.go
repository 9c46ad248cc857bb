package dto

// CreateReceiptRequest is the request body for receipt issuance. Exact
// digest length is checked against the algorithm by the receipt service.
type CreateReceiptRequest struct {
	HashAlgorithm string `json:"hash_algorithm" binding:"required,oneof=sha256 sha512"`
	HashValue     string `json:"hash_value" binding:"required,max=128,hexstr"`
	Visibility    string `json:"visibility" binding:"omitempty,oneof=public private unlisted"`
}

// QueueAnchorRequest is the request body for POST /anchor/queue.
type QueueAnchorRequest struct {
	ReceiptID string `json:"receipt_id" binding:"required,max=64"`
}

// VerifyQuery holds the query string of GET /verify.
type VerifyQuery struct {
	HashAlgorithm string `form:"hash_algorithm" binding:"required,oneof=sha256 sha512"`
	HashValue     string `form:"hash_value" binding:"required,max=128,hexstr"`
}

// CreateDisputeRequest is the request body for dispute intake.
type CreateDisputeRequest struct {
	ReceiptID    string   `json:"receipt_id" binding:"required,uuid"`
	Reason       string   `json:"reason" binding:"required,min=3,max=200"`
	Details      *string  `json:"details,omitempty" binding:"omitempty,max=2000"`
	ContactEmail string   `json:"contact_email" binding:"required,email,max=254"`
	EvidenceURLs []string `json:"evidence_urls,omitempty" binding:"omitempty,max=10,dive,required,max=2048,safe_url"`
	WantsIDV     bool     `json:"wants_idv"`
}

// DisputeCreatedResponse is returned after a dispute is filed.
type DisputeCreatedResponse struct {
	ID        string `json:"id"`
	ReceiptID string `json:"receipt_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// UpdateDisputeRequest is the request body for PATCH /admin/disputes/:id.
type UpdateDisputeRequest struct {
	Status string `json:"status" binding:"required,oneof=new reviewing sent_to_arbitrator closed"`
}

// DisputeStatusResponse is returned after a status change.
type DisputeStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// AdminLoginRequest is the request body for operator login.
type AdminLoginRequest struct {
	Password string `json:"password" binding:"required,max=256"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}
