// Package redis implements queue.JobQueue on top of Redis lists and
// JSON-encoded string keys: three priority lanes, a processing lane for
// leased jobs, a job:<id> record per job, and a per-job lease key that backs
// stalled-job recovery (spec.md §4.E).
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/queue"
	"github.com/fairyhunter13/flashsale-purchase-processor/pkg/idgen"
)

const (
	keyProcessing     = "queue:processing"
	keyCompletedCount = "queue:stats:completed"
	keyFailedCount    = "queue:stats:failed"
	leaseTTL          = 30 * time.Second
	reapInterval      = 5 * time.Second
)

func laneKey(p queue.Priority) string { return "queue:" + string(p) }
func jobKey(id string) string         { return "job:" + id }
func leaseKey(id string) string       { return "job_lease:" + id }

// lanes is consulted in priority order for both BRPOP and the reaper scan.
var lanes = []queue.Priority{queue.PriorityHigh, queue.PriorityNormal, queue.PriorityLow}

// Options configures retry and retention behavior (spec.md §4.E defaults:
// attempts=3, backoff=exponential(baseDelay=2s), removeOnComplete=100,
// removeOnFail=50). RemoveOnComplete and RemoveOnFail act as switches: any
// value above zero deletes a job's record as soon as it completes or fails
// terminally; the value is not a count of records kept.
type Options struct {
	Attempts         int
	BaseBackoff      time.Duration
	RemoveOnComplete int
	RemoveOnFail     int
}

// DefaultOptions returns spec.md's stated defaults.
func DefaultOptions() Options {
	return Options{
		Attempts:         3,
		BaseBackoff:      2 * time.Second,
		RemoveOnComplete: 100,
		RemoveOnFail:     50,
	}
}

// Queue is the Redis-backed queue.JobQueue implementation.
type Queue struct {
	client   *redis.Client
	opts     Options
	closed   atomic.Bool
	wg       sync.WaitGroup
	reapCtx  context.Context
	reapStop context.CancelFunc
}

// New creates a Queue and starts its background stalled-job reaper.
func New(client *redis.Client, opts Options) *Queue {
	reapCtx, cancel := context.WithCancel(context.Background())
	q := &Queue{client: client, opts: opts, reapCtx: reapCtx, reapStop: cancel}
	q.wg.Add(1)
	go q.reapLoop()
	return q
}

type jobRecord struct {
	ID          string                   `json:"id"`
	Payload     model.PurchaseJobPayload `json:"payload"`
	Priority    queue.Priority           `json:"priority"`
	Status      model.JobStatus          `json:"status"`
	Attempts    int                      `json:"attempts"`
	MaxAttempts int                      `json:"maxAttempts"`
	LastError   string                   `json:"lastError,omitempty"`
	EnqueuedAt  time.Time                `json:"enqueuedAt"`
}

func (r *jobRecord) toJob() *queue.Job {
	return &queue.Job{
		ID:          r.ID,
		Payload:     r.Payload,
		Priority:    r.Priority,
		Status:      r.Status,
		Attempts:    r.Attempts,
		MaxAttempts: r.MaxAttempts,
		LastError:   r.LastError,
		EnqueuedAt:  r.EnqueuedAt,
	}
}

// AddJob enqueues payload at the given priority.
func (q *Queue) AddJob(ctx context.Context, payload model.PurchaseJobPayload, priority queue.Priority) (*queue.Job, error) {
	if q.closed.Load() {
		return nil, fmt.Errorf("queue closed")
	}
	id := idgen.NewJobID()
	rec := jobRecord{
		ID:          id,
		Payload:     payload,
		Priority:    priority,
		Status:      model.JobStatusQueued,
		MaxAttempts: q.opts.Attempts,
		EnqueuedAt:  time.Now(),
	}
	if err := q.save(ctx, &rec); err != nil {
		return nil, err
	}
	if err := q.client.LPush(ctx, laneKey(priority), id).Err(); err != nil {
		return nil, fmt.Errorf("enqueue job %s: %w", id, err)
	}
	return rec.toJob(), nil
}

// Process runs concurrency workers until ctx is cancelled.
func (q *Queue) Process(ctx context.Context, concurrency int, handler queue.Handler) error {
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			q.workerLoop(ctx, workerID, handler)
		}(i)
	}
	wg.Wait()
	return nil
}

func (q *Queue) workerLoop(ctx context.Context, workerID int, handler queue.Handler) {
	laneNames := make([]string, len(lanes))
	for i, l := range lanes {
		laneNames[i] = laneKey(l)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := q.client.BRPop(ctx, 2*time.Second, laneNames...).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			log.Error().Err(err).Int("worker", workerID).Msg("queue: dequeue failed")
			continue
		}
		// result[0] is the lane key, result[1] is the job id.
		jobID := result[1]
		q.lease(ctx, jobID)
		q.runJob(ctx, jobID, handler)
	}
}

func (q *Queue) lease(ctx context.Context, jobID string) {
	q.client.LPush(ctx, keyProcessing, jobID)
	q.client.Set(ctx, leaseKey(jobID), "1", leaseTTL)
}

func (q *Queue) unlease(ctx context.Context, jobID string) {
	q.client.LRem(ctx, keyProcessing, 1, jobID)
	q.client.Del(ctx, leaseKey(jobID))
}

func (q *Queue) runJob(ctx context.Context, jobID string, handler queue.Handler) {
	defer q.unlease(ctx, jobID)

	rec, err := q.load(ctx, jobID)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("queue: load leased job failed")
		return
	}

	rec.Status = model.JobStatusProcessing
	if err := q.save(ctx, rec); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("queue: mark processing failed")
	}

	jobErr := handler(ctx, rec.toJob())
	if jobErr == nil {
		q.complete(ctx, rec)
		return
	}
	q.fail(ctx, rec, jobErr)
}

func (q *Queue) complete(ctx context.Context, rec *jobRecord) {
	rec.Status = model.JobStatusCompleted
	if err := q.save(ctx, rec); err != nil {
		log.Error().Err(err).Str("job_id", rec.ID).Msg("queue: mark completed failed")
	}
	q.client.Incr(ctx, keyCompletedCount)
	if q.opts.RemoveOnComplete > 0 {
		q.client.Del(ctx, jobKey(rec.ID))
	}
}

func (q *Queue) fail(ctx context.Context, rec *jobRecord, jobErr error) {
	rec.LastError = jobErr.Error()

	if apperr.IsBusiness(jobErr) {
		q.terminalFail(ctx, rec)
		return
	}

	rec.Attempts++
	if rec.Attempts >= rec.MaxAttempts {
		rec.LastError = apperr.Code(apperr.ErrMaxAttempts)
		q.terminalFail(ctx, rec)
		return
	}

	if err := q.save(ctx, rec); err != nil {
		log.Error().Err(err).Str("job_id", rec.ID).Msg("queue: save retry state failed")
	}

	delay := backoffDelay(q.opts.BaseBackoff, rec.Attempts)
	log.Warn().Str("job_id", rec.ID).Int("attempt", rec.Attempts).Dur("delay", delay).Err(jobErr).Msg("queue: retrying job")
	time.AfterFunc(delay, func() {
		requeueCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := q.client.LPush(requeueCtx, laneKey(rec.Priority), rec.ID).Err(); err != nil {
			log.Error().Err(err).Str("job_id", rec.ID).Msg("queue: requeue after backoff failed")
		}
	})
}

func (q *Queue) terminalFail(ctx context.Context, rec *jobRecord) {
	rec.Status = model.JobStatusFailed
	if err := q.save(ctx, rec); err != nil {
		log.Error().Err(err).Str("job_id", rec.ID).Msg("queue: mark failed failed")
	}
	q.client.Incr(ctx, keyFailedCount)
	if q.opts.RemoveOnFail > 0 {
		q.client.Del(ctx, jobKey(rec.ID))
	}
}

// backoffDelay returns the exponential(baseDelay) wait before retry
// attempt n, grounded on cenkalti/backoff's ExponentialBackOff shape.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0.25
	b.Reset()
	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

// reapLoop recovers jobs whose lease expired without the worker finishing
// (crash or lease overrun), per spec.md §4.E visibility semantics.
func (q *Queue) reapLoop() {
	defer q.wg.Done()
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-q.reapCtx.Done():
			return
		case <-ticker.C:
			q.reapOnce(q.reapCtx)
		}
	}
}

func (q *Queue) reapOnce(ctx context.Context) {
	ids, err := q.client.LRange(ctx, keyProcessing, 0, -1).Result()
	if err != nil {
		log.Error().Err(err).Msg("queue: reap scan failed")
		return
	}
	for _, id := range ids {
		exists, err := q.client.Exists(ctx, leaseKey(id)).Result()
		if err != nil {
			continue
		}
		if exists == 1 {
			continue
		}
		rec, err := q.load(ctx, id)
		if err != nil {
			q.client.LRem(ctx, keyProcessing, 1, id)
			continue
		}
		q.client.LRem(ctx, keyProcessing, 1, id)
		log.Warn().Str("job_id", id).Msg("queue: recovering stalled job")
		if rec.Attempts >= rec.MaxAttempts {
			rec.LastError = apperr.Code(apperr.ErrMaxAttempts)
			q.terminalFail(ctx, rec)
			continue
		}
		rec.Status = model.JobStatusQueued
		if err := q.save(ctx, rec); err != nil {
			log.Error().Err(err).Str("job_id", id).Msg("queue: save stalled job failed")
		}
		q.client.LPush(ctx, laneKey(rec.Priority), id)
	}
}

// GetJob returns the current record for jobID.
func (q *Queue) GetJob(ctx context.Context, jobID string) (*queue.Job, error) {
	rec, err := q.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return rec.toJob(), nil
}

// GetJobStatus is a narrower read than GetJob.
func (q *Queue) GetJobStatus(ctx context.Context, jobID string) (model.JobStatus, error) {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

// GetStats returns aggregate counts across all lanes.
func (q *Queue) GetStats(ctx context.Context) (queue.Stats, error) {
	var stats queue.Stats
	for _, l := range lanes {
		n, err := q.client.LLen(ctx, laneKey(l)).Result()
		if err != nil {
			return queue.Stats{}, fmt.Errorf("queue stats: lane %s: %w", l, err)
		}
		stats.Waiting += int(n)
	}
	active, err := q.client.LLen(ctx, keyProcessing).Result()
	if err != nil {
		return queue.Stats{}, fmt.Errorf("queue stats: processing: %w", err)
	}
	stats.Active = int(active)

	completed, err := q.client.Get(ctx, keyCompletedCount).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return queue.Stats{}, fmt.Errorf("queue stats: completed: %w", err)
	}
	stats.Completed = completed

	failed, err := q.client.Get(ctx, keyFailedCount).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return queue.Stats{}, fmt.Errorf("queue stats: failed: %w", err)
	}
	stats.Failed = failed

	stats.Total = stats.Waiting + stats.Active + stats.Completed + stats.Failed
	return stats, nil
}

// Close stops accepting new jobs and stops the reaper. In-flight workers
// started via Process exit on their own once ctx is cancelled by the
// caller; Close does not forcibly interrupt them.
func (q *Queue) Close(ctx context.Context) error {
	if q.closed.CompareAndSwap(false, true) {
		q.reapStop()
	}
	return nil
}

func (q *Queue) save(ctx context.Context, rec *jobRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", rec.ID, err)
	}
	if err := q.client.Set(ctx, jobKey(rec.ID), data, 2*time.Hour).Err(); err != nil {
		return fmt.Errorf("save job %s: %w", rec.ID, err)
	}
	return nil
}

func (q *Queue) load(ctx context.Context, jobID string) (*jobRecord, error) {
	raw, err := q.client.Get(ctx, jobKey(jobID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	var rec jobRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", jobID, err)
	}
	return &rec, nil
}
