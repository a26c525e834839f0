package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/airenamer/internal/ai"
	mpkg "github.com/local/airenamer/internal/metrics"
)

// Reason classifies why a retry budget was exhausted.
type Reason string

const (
	ReasonNetwork Reason = "network"
	ReasonOther   Reason = "other"
)

// ExhaustedError is returned when all attempts failed. The Reason reflects
// the class of the final failure so callers can choose a meaningful fallback.
type ExhaustedError struct {
	Reason   Reason
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("exhausted after %d attempts (%s): %v", e.Attempts, e.Reason, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Policy retries a fallible operation with failure-class-dependent backoff.
// Network-class failures back off exponentially; other failures linearly,
// since logical failures rarely self-heal and are worth a prompt re-try.
type Policy struct {
	maxAttempts int
	baseDelay   time.Duration

	// sleep is swappable in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a retry policy with the given attempt budget and base delay.
func New(maxAttempts int, baseDelay time.Duration) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Policy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		sleep:       sleepCtx,
	}
}

// Do runs op until it succeeds or the attempt budget is spent. On exhaustion
// it returns an *ExhaustedError carrying the class of the last failure.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		network := IsNetworkClass(err)
		delay := p.Delay(attempt, network)

		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", p.maxAttempts).
			Bool("network_class", network).
			Dur("delay", delay).
			Msg("operation failed, will retry")

		if attempt == p.maxAttempts-1 {
			break
		}
		mpkg.IncRetry()
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}

	reason := ReasonOther
	if IsNetworkClass(lastErr) {
		reason = ReasonNetwork
	}
	return &ExhaustedError{Reason: reason, Attempts: p.maxAttempts, Last: lastErr}
}

// Delay computes the backoff before the retry that follows the given
// zero-based attempt: base*2^attempt for network failures, base*(attempt+1)
// otherwise.
func (p *Policy) Delay(attempt int, network bool) time.Duration {
	if network {
		return p.baseDelay * time.Duration(1<<uint(attempt))
	}
	return p.baseDelay * time.Duration(attempt+1)
}

// IsNetworkClass reports whether the error is a timeout or connection-level
// failure that benefits from a longer cooldown.
func IsNetworkClass(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if ai.IsRateLimited(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// 5xx from a provider behaves like a transient outage
	var httpErr *ai.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 500 && httpErr.StatusCode < 600 {
			return true
		}
		return false
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "eof") {
		return true
	}

	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
