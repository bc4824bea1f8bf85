package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmgateway/agentflow/router"
	"github.com/llmgateway/agentflow/types"
)

func fastPolicy() Policy {
	return Policy{MaxAttemptsPerCandidate: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func chain(n int) []router.Candidate {
	out := make([]router.Candidate, n)
	for i := range out {
		out[i] = router.Candidate{ProviderID: "prov", ModelID: "model"}
	}
	return out
}

func TestWalk_SucceedsFirstCandidate(t *testing.T) {
	d := New(fastPolicy(), nil)
	calls := 0
	out, err := d.Walk(context.Background(), chain(2), func(ctx context.Context, c router.Candidate) (*types.Response, error) {
		calls++
		return &types.Response{Content: "ok"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Response.Content)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, out.Attempts)
}

func TestWalk_RetriesThenAdvancesOnFatalForModel(t *testing.T) {
	d := New(fastPolicy(), nil)
	calls := 0
	out, err := d.Walk(context.Background(), chain(2), func(ctx context.Context, c router.Candidate) (*types.Response, error) {
		calls++
		switch calls {
		case 1:
			// first candidate: rate-limited once, then auth fails outright
			return nil, types.NewError(types.ErrRateLimited, "slow down")
		case 2:
			return nil, types.NewError(types.ErrAuthMissing, "no key").WithRetryable(false)
		}
		return &types.Response{Content: "second"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "second", out.Response.Content)
	assert.Equal(t, 3, calls)
}

func TestWalk_RetriesRetryableBeforeAdvancing(t *testing.T) {
	d := New(fastPolicy(), nil)
	calls := 0
	out, err := d.Walk(context.Background(), chain(1), func(ctx context.Context, c router.Candidate) (*types.Response, error) {
		calls++
		if calls < 3 {
			return nil, types.NewError(types.ErrRateLimited, "slow down")
		}
		return &types.Response{Content: "eventually"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "eventually", out.Response.Content)
	assert.Equal(t, 3, calls)
}

func TestWalk_FatalForRequestStopsImmediately(t *testing.T) {
	d := New(fastPolicy(), nil)
	calls := 0
	_, err := d.Walk(context.Background(), chain(3), func(ctx context.Context, c router.Candidate) (*types.Response, error) {
		calls++
		return nil, types.NewError(types.ErrInvalidRequest, "malformed")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	var e *types.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, types.ErrInvalidRequest, e.Code)
}

func TestWalk_AllCandidatesExhausted(t *testing.T) {
	d := New(fastPolicy(), nil)
	_, err := d.Walk(context.Background(), chain(2), func(ctx context.Context, c router.Candidate) (*types.Response, error) {
		return nil, types.NewError(types.ErrModelNotFound, "nope")
	})
	require.Error(t, err)
}

func TestWalk_EmptyChain(t *testing.T) {
	d := New(fastPolicy(), nil)
	_, err := d.Walk(context.Background(), nil, func(ctx context.Context, c router.Candidate) (*types.Response, error) {
		return nil, nil
	})
	require.Error(t, err)
}

func TestWalk_CancellationDuringBackoffStopsRetrying(t *testing.T) {
	d := New(Policy{MaxAttemptsPerCandidate: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := d.Walk(ctx, chain(1), func(ctx context.Context, c router.Candidate) (*types.Response, error) {
		calls++
		return nil, types.NewError(types.ErrRateLimited, "again")
	})
	require.Error(t, err)
	// Only the first attempt (no pre-delay) should have run before cancellation
	// interrupts the backoff sleep ahead of a second attempt.
	assert.LessOrEqual(t, calls, 2)
}

func TestStreamWalk_FallsBackBeforeFirstChunk(t *testing.T) {
	d := New(fastPolicy(), nil)
	attempts := 0
	stream, cand, err := d.StreamWalk(context.Background(), chain(2), func(ctx context.Context, c router.Candidate) (<-chan types.StreamChunk, error) {
		attempts++
		if attempts == 1 {
			return nil, types.NewError(types.ErrUpstreamError, "start failed")
		}
		ch := make(chan types.StreamChunk, 1)
		ch <- types.StreamChunk{DeltaContent: "hi", FinishReason: "stop"}
		close(ch)
		return ch, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	chunk := <-stream
	assert.Equal(t, "hi", chunk.DeltaContent)
	_ = cand
}

func TestStreamWalk_FatalStartErrorStopsImmediately(t *testing.T) {
	d := New(fastPolicy(), nil)
	attempts := 0
	_, _, err := d.StreamWalk(context.Background(), chain(3), func(ctx context.Context, c router.Candidate) (<-chan types.StreamChunk, error) {
		attempts++
		return nil, types.NewError(types.ErrInvalidRequest, "bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestClassify_UnknownErrorIsFatalForRequest(t *testing.T) {
	assert.Equal(t, ClassFatalForRequest, Classify(assertError{}))
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestDelayHonorsVendorRetryAfter(t *testing.T) {
	p := fastPolicy()
	assert.Equal(t, 2*time.Millisecond, p.delayFor(0, 2*time.Millisecond))
	assert.Equal(t, p.MaxDelay, p.delayFor(0, time.Minute), "vendor delay is still capped at MaxDelay")
}

func TestRetryAfterOfReadsTypedError(t *testing.T) {
	err := types.NewError(types.ErrRateLimited, "slow down").WithRetryAfter(3 * time.Second)
	assert.Equal(t, 3*time.Second, retryAfterOf(err))
	assert.Equal(t, time.Duration(0), retryAfterOf(assertError{}))
}
