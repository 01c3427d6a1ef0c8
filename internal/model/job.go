package model

import "time"

// JobStatus is the lifecycle state of a PurchaseJob. Once Completed or
// Failed, a job never transitions again.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// PurchaseJob lives only in the coordination store (purchase_job:<jobId>,
// TTL 3600s). It mirrors the state of one admitted purchase intent.
type PurchaseJob struct {
	JobID       string    `json:"jobId"`
	UserID      string    `json:"userId"`
	SaleID      string    `json:"saleId"`
	Status      JobStatus `json:"status"`
	Success     bool      `json:"success,omitempty"`
	OrderID     string    `json:"orderId,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
	PurchasedAt time.Time `json:"purchasedAt,omitempty"`

	// ReservedPending is internal worker bookkeeping, not part of the
	// public job snapshot API: true between a successful reserve() and
	// the following confirm() or release(). A worker resuming a stalled
	// job checks this to release a stock unit a dead predecessor never
	// gave back (spec.md §8 S4: "specify release-on-expiry").
	ReservedPending bool `json:"reservedPending,omitempty"`
}

// UserPurchaseState lives only in the coordination store
// (purchase_status:<userId>, TTL 1800s). It mirrors the most recent job for
// a user and is the target of the admission gateway's dedup check.
type UserPurchaseState struct {
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
	Success bool      `json:"success,omitempty"`
	OrderID string    `json:"orderId,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Updated time.Time `json:"updated"`
}

// PurchaseJobPayload is the serialized body of a queued job, exactly
// {userId, saleId, enqueuedAt} per spec.md §4.E.
type PurchaseJobPayload struct {
	JobID      string    `json:"jobId"`
	UserID     string    `json:"userId"`
	SaleID     string    `json:"saleId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}
