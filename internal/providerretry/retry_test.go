package providerretry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/providererr"
)

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffMultiplier: 2.0}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	p := Policy{InitialBackoff: 10 * time.Millisecond, MaxBackoff: 30 * time.Millisecond, BackoffMultiplier: 2.0}
	if got := p.Backoff(1); got != 10*time.Millisecond {
		t.Errorf("Backoff(1) = %v, want 10ms", got)
	}
	if got := p.Backoff(2); got != 20*time.Millisecond {
		t.Errorf("Backoff(2) = %v, want 20ms", got)
	}
	if got := p.Backoff(3); got != 30*time.Millisecond {
		t.Errorf("Backoff(3) = %v, want 30ms (capped)", got)
	}
}

func TestPolicyNormalizedFillsZeroValues(t *testing.T) {
	p := Policy{}.normalized()
	if p.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", p.MaxAttempts)
	}
	if p.InitialBackoff != 200*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 200ms", p.InitialBackoff)
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fidprovider.Anthropic, fastPolicy(), nil, func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("Do = (%q, %v), want (ok, nil)", v, err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesRetryableErrorThenSucceeds(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fidprovider.OpenAI, fastPolicy(), nil, func(ctx context.Context, attempt int) (int, error) {
		calls++
		if attempt < 2 {
			return 0, providererr.RateLimited("slow down")
		}
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("Do = (%d, %v), want (42, nil)", v, err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fidprovider.Ollama, fastPolicy(), nil, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, providererr.Timeout("still waiting")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 (MaxAttempts)", calls)
	}
}

func TestDoDoesNotRetryNonRetryableError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fidprovider.OpenCodeZen, fastPolicy(), nil, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, providererr.Authentication("bad api key")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry for a non-retryable error)", calls)
	}
}

func TestDoWrapsNonProviderErrorAsTransport(t *testing.T) {
	_, err := Do(context.Background(), fidprovider.Anthropic, Policy{MaxAttempts: 1}, nil, func(ctx context.Context, attempt int) (int, error) {
		return 0, errors.New("unexpected panic recovered as error")
	})
	var perr *providererr.Error
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *providererr.Error", err)
	}
	if perr.Kind != providererr.KindTransport {
		t.Errorf("Kind = %s, want %s", perr.Kind, providererr.KindTransport)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, fidprovider.Anthropic, fastPolicy(), nil, func(ctx context.Context, attempt int) (int, error) {
		t.Fatal("op should not run against an already-cancelled context")
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

type hookRecorder struct {
	mu       sync.Mutex
	attempts []int
	retries  []int
	succeeded bool
	failed    bool
}

func (h *hookRecorder) OnAttemptStart(provider fidprovider.ProviderID, attempt int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts = append(h.attempts, attempt)
}
func (h *hookRecorder) OnRetryScheduled(provider fidprovider.ProviderID, attempt int, delay time.Duration, err *providererr.Error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retries = append(h.retries, attempt)
}
func (h *hookRecorder) OnSuccess(provider fidprovider.ProviderID, attempts int, elapsed time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.succeeded = true
}
func (h *hookRecorder) OnFailure(provider fidprovider.ProviderID, attempts int, elapsed time.Duration, err *providererr.Error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = true
}

func TestDoFiresHooksAtAttemptBoundaries(t *testing.T) {
	rec := &hookRecorder{}
	calls := 0
	_, err := Do(context.Background(), fidprovider.Anthropic, fastPolicy(), rec, func(ctx context.Context, attempt int) (int, error) {
		calls++
		if attempt < 2 {
			return 0, providererr.Unavailable("warming up")
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(rec.attempts) != 2 {
		t.Fatalf("attempts recorded = %v, want 2 entries", rec.attempts)
	}
	if len(rec.retries) != 1 {
		t.Fatalf("retries recorded = %v, want 1 entry", rec.retries)
	}
	if !rec.succeeded || rec.failed {
		t.Fatalf("succeeded=%v failed=%v, want succeeded only", rec.succeeded, rec.failed)
	}
}
