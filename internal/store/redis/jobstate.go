package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
)

const (
	purchaseJobTTL    = time.Hour
	purchaseStatusTTL = 30 * time.Minute
)

// admitScript performs the Admission Gateway's critical section atomically:
// it only (re)writes userPurchaseState[userId] and purchaseJob[jobId] if no
// blocking state exists for the user yet — "blocking" meaning queued,
// processing, or completed (spec.md §4.F step 1); a prior failed attempt
// does not block a retry. The guard and the write run as a single Lua
// round trip since they must be indivisible (spec.md §4.F step 4).
var admitScript = redis.NewScript(`
	local existing = redis.call('GET', KEYS[1])
	if existing then
		local status = string.match(existing, '"status":"([^"]+)"')
		if status == 'queued' or status == 'processing' or status == 'completed' then
			return existing
		end
	end
	redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[2])
	redis.call('SET', KEYS[2], ARGV[3], 'EX', ARGV[4])
	return false
`)

// JobStateStore is the Coordination Store's job/user-state half: it owns
// purchase_job:<jobId> and purchase_status:<userId>.
type JobStateStore struct {
	client *redis.Client
}

// NewJobStateStore creates a JobStateStore.
func NewJobStateStore(client *redis.Client) *JobStateStore {
	return &JobStateStore{client: client}
}

// AdmitIfAbsent writes job and state for userID only if the user has no
// queued, processing, or completed purchase state, atomically; a failed
// state is overwritten. If a blocking state existed, it is returned
// unmodified so the gateway can classify DUPLICATE_IN_FLIGHT vs
// ALREADY_PURCHASED.
func (s *JobStateStore) AdmitIfAbsent(ctx context.Context, userID string, job *model.PurchaseJob, state *model.UserPurchaseState) (admitted bool, existing *model.UserPurchaseState, err error) {
	jobData, err := json.Marshal(job)
	if err != nil {
		return false, nil, fmt.Errorf("marshal purchase job: %w", err)
	}
	stateData, err := json.Marshal(state)
	if err != nil {
		return false, nil, fmt.Errorf("marshal purchase state: %w", err)
	}

	result, err := admitScript.Run(ctx, s.client,
		[]string{purchaseStatusKey(userID), purchaseJobKey(job.JobID)},
		stateData, int(purchaseStatusTTL.Seconds()),
		jobData, int(purchaseJobTTL.Seconds()),
	).Result()
	if err != nil {
		return false, nil, fmt.Errorf("admit job for user %s: %w", userID, err)
	}

	existingRaw, ok := result.(string)
	if !ok || existingRaw == "" {
		return true, nil, nil
	}

	var prior model.UserPurchaseState
	if err := json.Unmarshal([]byte(existingRaw), &prior); err != nil {
		return false, nil, fmt.Errorf("unmarshal existing purchase state: %w", err)
	}
	return false, &prior, nil
}

// GetUserState reads purchase_status:<userId>. Returns apperr.ErrNotFound on
// a cache miss, which the Status Service treats as "no purchase in flight".
func (s *JobStateStore) GetUserState(ctx context.Context, userID string) (*model.UserPurchaseState, error) {
	raw, err := s.client.Get(ctx, purchaseStatusKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("get purchase state for %s: %w", userID, err)
	}
	var state model.UserPurchaseState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("unmarshal purchase state for %s: %w", userID, err)
	}
	return &state, nil
}

// GetJob reads purchase_job:<jobId>. Returns apperr.ErrNotFound on a miss.
func (s *JobStateStore) GetJob(ctx context.Context, jobID string) (*model.PurchaseJob, error) {
	raw, err := s.client.Get(ctx, purchaseJobKey(jobID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("get purchase job %s: %w", jobID, err)
	}
	var job model.PurchaseJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("unmarshal purchase job %s: %w", jobID, err)
	}
	return &job, nil
}

// SetJob overwrites purchase_job:<jobId>, refreshing its TTL. Used by the
// worker pool to move a job through processing -> completed|failed.
func (s *JobStateStore) SetJob(ctx context.Context, job *model.PurchaseJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal purchase job %s: %w", job.JobID, err)
	}
	if err := s.client.Set(ctx, purchaseJobKey(job.JobID), data, purchaseJobTTL).Err(); err != nil {
		return fmt.Errorf("set purchase job %s: %w", job.JobID, err)
	}
	return nil
}

// SetUserState overwrites purchase_status:<userId>, refreshing its TTL.
func (s *JobStateStore) SetUserState(ctx context.Context, userID string, state *model.UserPurchaseState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal purchase state for %s: %w", userID, err)
	}
	if err := s.client.Set(ctx, purchaseStatusKey(userID), data, purchaseStatusTTL).Err(); err != nil {
		return fmt.Errorf("set purchase state for %s: %w", userID, err)
	}
	return nil
}
