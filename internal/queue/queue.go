// Package queue defines the Job Queue trait (spec.md §4.E, §9): a small
// interface any backing implementation can satisfy, so the coordination
// store's own queue is the default and only concrete implementation while
// leaving room for a managed-queue or stream-bus swap later.
package queue

import (
	"context"
	"time"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
)

// Priority is one of three FIFO lanes a job can be enqueued onto.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Job is the queue's own view of a unit of work: the payload plus the
// retry bookkeeping the queue itself owns (attempts, priority, lease). It
// is distinct from model.PurchaseJob, which is the business-facing state
// the Admission Gateway and Worker Pool maintain in the coordination store.
type Job struct {
	ID          string
	Payload     model.PurchaseJobPayload
	Priority    Priority
	Status      model.JobStatus
	Attempts    int
	MaxAttempts int
	LastError   string
	EnqueuedAt  time.Time
}

// Stats is the snapshot GET /queue/stats returns.
type Stats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// Handler runs the business logic for one job. A returned error is
// classified by the queue via apperr.IsBusiness: business errors fail the
// job immediately with no retry; anything else is treated as transient and
// retried per the queue's backoff schedule up to MaxAttempts.
type Handler func(ctx context.Context, job *Job) error

// JobQueue is the trait spec.md §9 calls for: addJob, process, getJob,
// getJobStatus, getStats, close. The coordination-store-backed
// implementation under queue/redis is the only one this repository ships.
type JobQueue interface {
	// AddJob enqueues payload at the given priority and returns the
	// created job with its generated id.
	AddJob(ctx context.Context, payload model.PurchaseJobPayload, priority Priority) (*Job, error)

	// Process runs concurrency worker goroutines pulling jobs and
	// invoking handler until ctx is cancelled. It blocks until all
	// workers have exited.
	Process(ctx context.Context, concurrency int, handler Handler) error

	// GetJob returns the current queue-side record for jobID.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// GetJobStatus is a narrower, cheaper read than GetJob.
	GetJobStatus(ctx context.Context, jobID string) (model.JobStatus, error)

	// GetStats returns aggregate counts across all priority lanes.
	GetStats(ctx context.Context) (Stats, error)

	// Close releases any resources Process holds and stops accepting
	// new work.
	Close(ctx context.Context) error
}
