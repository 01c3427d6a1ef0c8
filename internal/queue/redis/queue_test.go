package redis

import (
	"testing"
	"time"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/queue"
)

func TestLaneKey(t *testing.T) {
	if got, want := laneKey(queue.PriorityHigh), "queue:high"; got != want {
		t.Errorf("laneKey = %q, want %q", got, want)
	}
}

func TestJobKeyAndLeaseKey(t *testing.T) {
	if got, want := jobKey("job-1"), "job:job-1"; got != want {
		t.Errorf("jobKey = %q, want %q", got, want)
	}
	if got, want := leaseKey("job-1"), "job_lease:job-1"; got != want {
		t.Errorf("leaseKey = %q, want %q", got, want)
	}
}

func TestBackoffDelayIncreasesWithAttempt(t *testing.T) {
	base := 2 * time.Second
	first := backoffDelay(base, 1)
	second := backoffDelay(base, 2)

	if first <= 0 {
		t.Fatalf("expected positive delay, got %v", first)
	}
	if second <= first {
		t.Errorf("expected delay to grow with attempt count: attempt1=%v attempt2=%v", first, second)
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", opts.Attempts)
	}
	if opts.BaseBackoff != 2*time.Second {
		t.Errorf("BaseBackoff = %v, want 2s", opts.BaseBackoff)
	}
	if opts.RemoveOnComplete != 100 {
		t.Errorf("RemoveOnComplete = %d, want 100", opts.RemoveOnComplete)
	}
	if opts.RemoveOnFail != 50 {
		t.Errorf("RemoveOnFail = %d, want 50", opts.RemoveOnFail)
	}
}
