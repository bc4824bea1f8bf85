package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/llmgateway/agentflow/router"
	"github.com/llmgateway/agentflow/types"
)

// Policy configures backoff and per-candidate attempt limits.
type Policy struct {
	MaxAttemptsPerCandidate int // default 3
	BaseDelay               time.Duration
	MaxDelay                time.Duration
}

// DefaultPolicy is 3 attempts per candidate with base x 2^attempt
// backoff capped at MaxDelay.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttemptsPerCandidate: 3,
		BaseDelay:               250 * time.Millisecond,
		MaxDelay:                10 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttemptsPerCandidate <= 0 {
		p.MaxAttemptsPerCandidate = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 250 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 10 * time.Second
	}
	return p
}

// delayFor computes base * 2^attempt + jitter, capped at MaxDelay. attempt
// is zero-based (the first retry is attempt=0).
func (p Policy) delayFor(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		if retryAfter > p.MaxDelay {
			return p.MaxDelay
		}
		return retryAfter
	}
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	d += rand.Float64() * float64(p.BaseDelay) // jitter, up to one more base delay
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Driver walks an ordered candidate chain, applying backoff within a
// candidate and advancing to the next candidate on fatal-for-model errors
// or retry exhaustion. It never retries once a stream has started
// delivering chunks to the caller — that would splice two voices into one
// response.
type Driver struct {
	Policy Policy
	Logger *zap.Logger
}

// New returns a Driver with the given policy (zero value normalizes to
// DefaultPolicy's numbers) and logger (nil becomes a no-op logger).
func New(policy Policy, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{Policy: policy.normalized(), Logger: logger}
}

// CallFunc issues one non-streaming attempt against candidate and returns
// a normalized response or a mapped *types.Error.
type CallFunc func(ctx context.Context, candidate router.Candidate) (*types.Response, error)

// StreamFunc issues one streaming attempt against candidate. A non-nil
// error means the stream never started — no chunk will ever arrive.
type StreamFunc func(ctx context.Context, candidate router.Candidate) (<-chan types.StreamChunk, error)

// Outcome carries the attempt bookkeeping the dispatcher needs beyond the
// bare response: which candidate ultimately served the call and the
// accumulated latency across every attempt in the walk (including failed
// ones on earlier candidates).
type Outcome struct {
	Response   *types.Response
	Candidate  router.Candidate
	LatencyMS  int64
	Attempts   int
}

// Walk attempts each candidate in chain in order via call, applying
// backoff between retries of the same candidate up to
// Policy.MaxAttemptsPerCandidate attempts, and advancing to the next
// candidate on a fatal-for-model classification or retry exhaustion. It
// stops immediately on a fatal-for-request classification or context
// cancellation.
func (d *Driver) Walk(ctx context.Context, chain []router.Candidate, call CallFunc) (*Outcome, error) {
	if len(chain) == 0 {
		return nil, types.NewError(types.ErrNoEligibleModel, "retry: empty candidate chain")
	}

	start := time.Now()
	var lastErr error

	for _, candidate := range chain {
		resp, attempts, err := d.walkOne(ctx, candidate, func(ctx context.Context) (*types.Response, error) {
			return call(ctx, candidate)
		})
		if err == nil {
			return &Outcome{
				Response:  resp,
				Candidate: candidate,
				LatencyMS: time.Since(start).Milliseconds(),
				Attempts:  attempts,
			}, nil
		}

		lastErr = err
		class := Classify(err)
		if class == ClassFatalForRequest {
			return nil, err
		}
		// ClassFatalForModel or retry exhaustion on this candidate: advance.
		d.Logger.Debug("retry: advancing to next candidate",
			zap.String("provider_id", candidate.ProviderID),
			zap.String("model_id", candidate.ModelID),
			zap.Error(err))
	}

	return nil, fmt.Errorf("retry: all %d candidate(s) exhausted, last error: %w", len(chain), lastErr)
}

// walkOne retries a single candidate up to MaxAttemptsPerCandidate times,
// sleeping between attempts per Policy, and returns as soon as the
// classification is no longer Retryable (success, fatal-for-model, or
// fatal-for-request).
func (d *Driver) walkOne(ctx context.Context, candidate router.Candidate, attempt func(context.Context) (*types.Response, error)) (*types.Response, int, error) {
	var lastErr error

	for i := 0; i < d.Policy.MaxAttemptsPerCandidate; i++ {
		if i > 0 {
			retryAfter := retryAfterOf(lastErr)
			delay := d.Policy.delayFor(i-1, retryAfter)
			select {
			case <-ctx.Done():
				return nil, i, types.NewError(types.ErrCancelled, "retry: cancelled during backoff").WithCause(ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, err := attempt(ctx)
		if err == nil {
			return resp, i + 1, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, i + 1, types.NewError(types.ErrCancelled, "retry: context cancelled").WithCause(ctx.Err())
		}

		if Classify(err) != ClassRetryable {
			return nil, i + 1, err
		}
	}

	return nil, d.Policy.MaxAttemptsPerCandidate, lastErr
}

// retryAfterOf extracts a vendor-supplied rate-limit delay, if the
// error carries one. The vendor's requested delay takes precedence over
// a computed backoff so backpressure is honored rather than guessed at.
func retryAfterOf(err error) time.Duration {
	if e, ok := err.(*types.Error); ok {
		return e.RetryAfter
	}
	return 0
}

// StreamWalk attempts each candidate in chain in order via stream,
// forwarding chunks from the first candidate that successfully starts a
// stream. Once a chunk has been forwarded to the caller, no further
// fallback occurs — a mid-stream failure surfaces as a terminal chunk
// with FinishReason "error" rather than silently retrying to a different
// model.
func (d *Driver) StreamWalk(ctx context.Context, chain []router.Candidate, stream StreamFunc) (<-chan types.StreamChunk, router.Candidate, error) {
	if len(chain) == 0 {
		return nil, router.Candidate{}, types.NewError(types.ErrNoEligibleModel, "retry: empty candidate chain")
	}

	var lastErr error
	for _, candidate := range chain {
		src, startErr := d.streamOne(ctx, candidate, stream)
		if startErr == nil {
			return src, candidate, nil
		}
		lastErr = startErr
		if Classify(startErr) == ClassFatalForRequest {
			return nil, router.Candidate{}, startErr
		}
		d.Logger.Debug("retry: stream start failed, advancing candidate",
			zap.String("provider_id", candidate.ProviderID),
			zap.String("model_id", candidate.ModelID),
			zap.Error(startErr))
	}

	return nil, router.Candidate{}, fmt.Errorf("retry: all %d candidate(s) failed to start a stream, last error: %w", len(chain), lastErr)
}

// streamOne retries starting the stream (not its contents) up to
// MaxAttemptsPerCandidate times; once a stream has yielded its first
// value it is returned immediately and never retried again.
func (d *Driver) streamOne(ctx context.Context, candidate router.Candidate, stream StreamFunc) (<-chan types.StreamChunk, error) {
	var lastErr error

	for i := 0; i < d.Policy.MaxAttemptsPerCandidate; i++ {
		if i > 0 {
			delay := d.Policy.delayFor(i-1, retryAfterOf(lastErr))
			select {
			case <-ctx.Done():
				return nil, types.NewError(types.ErrCancelled, "retry: cancelled during backoff").WithCause(ctx.Err())
			case <-time.After(delay):
			}
		}

		ch, err := stream(ctx, candidate)
		if err == nil {
			return ch, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, types.NewError(types.ErrCancelled, "retry: context cancelled").WithCause(ctx.Err())
		}
		if Classify(err) != ClassRetryable {
			return nil, err
		}
	}

	return nil, lastErr
}
