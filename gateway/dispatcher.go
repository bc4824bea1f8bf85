package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/llmgateway/agentflow/budget"
	"github.com/llmgateway/agentflow/catalog"
	"github.com/llmgateway/agentflow/cost"
	"github.com/llmgateway/agentflow/internal/metrics"
	"github.com/llmgateway/agentflow/providers"
	"github.com/llmgateway/agentflow/respcache"
	"github.com/llmgateway/agentflow/retry"
	"github.com/llmgateway/agentflow/router"
	"github.com/llmgateway/agentflow/tokenizer"
	"github.com/llmgateway/agentflow/types"
)

// Options configures a Dispatcher. Every field has a usable zero value
// except Catalog, Providers, and Router, which the caller must supply —
// there is no sensible default model catalog or provider set.
type Options struct {
	Catalog     *catalog.Catalog
	Router      *router.Router
	Retry       *retry.Driver
	Cache       *respcache.Cache
	Sessions    *budget.Registry
	Providers   *providers.Registry
	Tokenizer   types.Tokenizer
	Logger      *zap.Logger
	Metrics     *metrics.Collector // optional

	// DefaultStrategy/DefaultConstraints seed every Dispatch call that
	// doesn't pass its own via DispatchOptions.
	DefaultStrategy    router.Strategy
	DefaultConstraints router.Constraints
}

// Dispatcher is the gateway's sole public entry point: validate -> route
// -> cache-lookup (keyed on the chain head) -> budget-check -> call (with
// retry) -> record -> cache-store -> return. It owns no I/O itself — every
// suspension point lives in a Provider, the cache's short internal lock,
// or the retry driver's backoff sleep.
type Dispatcher struct {
	catalog   *catalog.Catalog
	router    *router.Router
	retry     *retry.Driver
	cache     *respcache.Cache
	sessions  *budget.Registry
	providers *providers.Registry
	tokenizer types.Tokenizer
	logger    *zap.Logger
	metrics   *metrics.Collector

	defaultStrategy    router.Strategy
	defaultConstraints router.Constraints
}

// New wires a Dispatcher from opts. Panics on a nil Catalog, Router, or
// Providers registry — those have no meaningful zero value and dispatch
// cannot proceed without them.
func New(opts Options) *Dispatcher {
	if opts.Catalog == nil || opts.Router == nil || opts.Providers == nil {
		panic("gateway: Catalog, Router, and Providers are required")
	}
	if opts.Retry == nil {
		opts.Retry = retry.New(retry.DefaultPolicy(), opts.Logger)
	}
	if opts.Cache == nil {
		opts.Cache = respcache.New(10_000, time.Hour)
	}
	if opts.Sessions == nil {
		opts.Sessions = budget.NewRegistry()
	}
	if opts.Tokenizer == nil {
		opts.Tokenizer = tokenizer.NewByFamily()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DefaultStrategy == "" {
		opts.DefaultStrategy = router.StrategyHybrid
	}

	return &Dispatcher{
		catalog:            opts.Catalog,
		router:             opts.Router,
		retry:              opts.Retry,
		cache:              opts.Cache,
		sessions:           opts.Sessions,
		providers:          opts.Providers,
		tokenizer:          opts.Tokenizer,
		logger:             opts.Logger.With(zap.String("component", "gateway")),
		metrics:            opts.Metrics,
		defaultStrategy:    opts.DefaultStrategy,
		defaultConstraints: opts.DefaultConstraints,
	}
}

// DispatchOptions overrides a single call's routing strategy and
// constraints; the zero value uses the Dispatcher's configured defaults.
type DispatchOptions struct {
	Strategy    router.Strategy
	Constraints router.Constraints
}

func (d *Dispatcher) resolveOptions(opts []DispatchOptions) DispatchOptions {
	if len(opts) == 0 {
		return DispatchOptions{Strategy: d.defaultStrategy, Constraints: d.defaultConstraints}
	}
	o := opts[0]
	if o.Strategy == "" {
		o.Strategy = d.defaultStrategy
	}
	return o
}

// Dispatch is the non-streaming caller-facing entry point.
func (d *Dispatcher) Dispatch(ctx context.Context, req *types.Request, opts ...DispatchOptions) (*types.Response, error) {
	start := time.Now()
	o := d.resolveOptions(opts)

	if err := d.validate(req); err != nil {
		return nil, err
	}

	chain, err := d.router.Route(req, o.Strategy, o.Constraints)
	if err != nil {
		return nil, err
	}

	cacheKey := respcache.Key(chain[0].ProviderID, chain[0].ModelID, req)
	if req.CachePolicy != types.CachePolicyBypass && !req.StreamFlag {
		if cached, _, ok := d.cache.Get(cacheKey); ok {
			d.recordMetric(func() { d.metrics.RecordCacheHit("response") })
			cached.CostUSD = 0
			cached.LatencyMS = time.Since(start).Milliseconds()
			// The breakdown pointer is shared with the stored entry;
			// copy before tagging so concurrent hits never write to it.
			breakdown := types.CostBreakdown{}
			if cached.CostBreakdown != nil {
				breakdown = *cached.CostBreakdown
			}
			breakdown.FromCache = true
			cached.CostBreakdown = &breakdown
			return &cached, nil
		}
		d.recordMetric(func() { d.metrics.RecordCacheMiss("response") })
	}

	sess := d.sessionFor(req.SessionID)
	minPlausible := d.minPlausibleCost(req, chain[0])
	if sess != nil {
		if gateErr := (&budget.Gate{Registry: d.sessions}).PreflightCheck(sess, minPlausible); gateErr != nil {
			d.recordMetric(func() { d.metrics.RecordBudgetThrottled(sess.ID) })
			return nil, gateErr
		}
	}

	outcome, callErr := d.retry.Walk(ctx, chain, func(ctx context.Context, c router.Candidate) (*types.Response, error) {
		return d.callOne(ctx, c, req)
	})

	if callErr != nil {
		d.appendSession(sess, router.Candidate{}, 0, classifyFinish(callErr), time.Since(start).Milliseconds())
		return nil, callErr
	}

	resp := outcome.Response
	resp.LatencyMS = outcome.LatencyMS
	d.appendSession(sess, outcome.Candidate, resp.CostUSD, resp.FinishReason, outcome.LatencyMS)

	if respcache.Eligible(req, *resp) {
		d.cache.Put(cacheKey, *resp)
	}

	d.recordMetric(func() {
		d.metrics.RecordLLMRequest(resp.ProviderID, resp.ModelIDActual, resp.FinishReason,
			time.Duration(resp.LatencyMS)*time.Millisecond, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.CostUSD)
	})

	return resp, nil
}

// DispatchStream is the streaming counterpart to Dispatch. The
// returned channel's first item is produced by the first
// candidate in the chain that successfully starts a stream; once a
// chunk has been forwarded no fallback to a different model occurs.
func (d *Dispatcher) DispatchStream(ctx context.Context, req *types.Request, opts ...DispatchOptions) (<-chan types.StreamChunk, error) {
	o := d.resolveOptions(opts)

	reqCopy := *req
	reqCopy.StreamFlag = true
	if err := d.validate(&reqCopy); err != nil {
		return nil, err
	}

	chain, err := d.router.Route(&reqCopy, o.Strategy, o.Constraints)
	if err != nil {
		return nil, err
	}

	sess := d.sessionFor(req.SessionID)
	minPlausible := d.minPlausibleCost(&reqCopy, chain[0])
	if sess != nil {
		if gateErr := (&budget.Gate{Registry: d.sessions}).PreflightCheck(sess, minPlausible); gateErr != nil {
			d.recordMetric(func() { d.metrics.RecordBudgetThrottled(sess.ID) })
			return nil, gateErr
		}
	}

	start := time.Now()
	src, candidate, err := d.retry.StreamWalk(ctx, chain, func(ctx context.Context, c router.Candidate) (<-chan types.StreamChunk, error) {
		p, err := d.providers.MustGet(c.ProviderID)
		if err != nil {
			return nil, types.NewError(types.ErrModelNotFound, err.Error())
		}
		return p.Stream(ctx, c.ModelID, &reqCopy)
	})
	if err != nil {
		d.appendSession(sess, router.Candidate{}, 0, "error", time.Since(start).Milliseconds())
		return nil, err
	}

	entry, _ := d.catalog.Lookup(candidate.ProviderID, candidate.ModelID)
	out := make(chan types.StreamChunk)
	go func() {
		defer close(out)
		for chunk := range src {
			select {
			case out <- chunk:
			case <-ctx.Done():
				d.appendSession(sess, candidate, 0, "cancelled", time.Since(start).Milliseconds())
				return
			}
			if chunk.FinishReason != "" {
				var costUSD float64
				if chunk.AccumulatedUsage != nil && entry != nil {
					if c, _, err := cost.Calculate(*chunk.AccumulatedUsage, entry); err == nil {
						costUSD = c
					}
				}
				d.appendSession(sess, candidate, costUSD, chunk.FinishReason, time.Since(start).Milliseconds())
				return
			}
		}
		// The source closed without a final chunk: still record the call.
		finish := "error"
		if ctx.Err() != nil {
			finish = "cancelled"
		}
		d.appendSession(sess, candidate, 0, finish, time.Since(start).Milliseconds())
	}()
	return out, nil
}

// AsyncResult carries the outcome of a DispatchAsync call.
type AsyncResult struct {
	Response *types.Response
	Err      error
}

// DispatchAsync is the non-blocking counterpart to Dispatch, completing
// the dispatcher's async/sync dual shape alongside DispatchStream. It
// runs the call through an errgroup.WithContext derived from ctx, so a
// caller racing dispatch against its own timeout (ctx with a deadline)
// gets a single joint cancellation point.
func (d *Dispatcher) DispatchAsync(ctx context.Context, req *types.Request, opts ...DispatchOptions) <-chan AsyncResult {
	out := make(chan AsyncResult, 1)
	g, gctx := errgroup.WithContext(ctx)
	var result AsyncResult

	g.Go(func() error {
		resp, err := d.Dispatch(gctx, req, opts...)
		result = AsyncResult{Response: resp, Err: err}
		return err
	})

	go func() {
		_ = g.Wait()
		out <- result
		close(out)
	}()

	return out
}

// SessionSummary returns the aggregate view of one session's spend.
func (d *Dispatcher) SessionSummary(sessionID string) (budget.Summary, bool) {
	sess, ok := d.sessions.Get(sessionID)
	if !ok {
		return budget.Summary{}, false
	}
	return sess.Summary(), true
}

// CacheStats returns the response cache's statistics snapshot.
func (d *Dispatcher) CacheStats() respcache.Stats {
	return d.cache.Stats()
}

// CacheClear empties the response cache.
func (d *Dispatcher) CacheClear() {
	d.cache.Clear()
}

func (d *Dispatcher) validate(req *types.Request) error {
	if len(req.Messages) == 0 {
		return types.NewError(types.ErrInvalidRequest, "request must contain at least one message")
	}
	if req.ModelID == "" {
		return nil
	}
	entry, err := d.catalog.LookupModel(req.ModelID)
	if err != nil {
		return err
	}
	violations, _ := d.catalog.ValidateRequest(req, entry.ProviderID, catalog.ProviderMaxTemperature(entry.ProviderID))
	if len(violations) > 0 {
		return types.NewError(types.ErrInvalidRequest, violations[0].Field+": "+violations[0].Message)
	}
	return nil
}

func (d *Dispatcher) callOne(ctx context.Context, c router.Candidate, req *types.Request) (*types.Response, error) {
	p, err := d.providers.MustGet(c.ProviderID)
	if err != nil {
		return nil, types.NewError(types.ErrModelNotFound, err.Error())
	}
	resp, err := p.Complete(ctx, c.ModelID, req)
	if err != nil {
		return nil, err
	}

	entry := c.Entry
	if entry == nil {
		entry, _ = d.catalog.Lookup(c.ProviderID, c.ModelID)
	}
	costUSD, breakdown, err := cost.Calculate(resp.Usage, entry)
	if err != nil {
		return nil, err
	}
	resp.CostUSD = costUSD
	resp.CostBreakdown = breakdown
	resp.ProviderID = c.ProviderID
	if resp.ModelIDActual == "" {
		resp.ModelIDActual = c.ModelID
	}
	return resp, nil
}

func (d *Dispatcher) minPlausibleCost(req *types.Request, c router.Candidate) float64 {
	entry := c.Entry
	if entry == nil {
		entry, _ = d.catalog.Lookup(c.ProviderID, c.ModelID)
	}
	promptEstimate := d.tokenizer.CountMessagesTokens(req.Messages) + d.tokenizer.EstimateToolTokens(req.ToolSpec)
	return cost.EstimateMinPlausible(promptEstimate, entry)
}

func (d *Dispatcher) sessionFor(sessionID string) *budget.Session {
	if sessionID == "" {
		return nil
	}
	return d.sessions.GetOrCreate(sessionID)
}

// appendSession appends exactly one call record per dispatch, successful
// or not — failed dispatches append with zero cost, so the session log
// is a complete account of every attempt, not just the billable ones.
func (d *Dispatcher) appendSession(sess *budget.Session, c router.Candidate, costUSD float64, finishReason string, latencyMS int64) {
	if sess == nil {
		return
	}
	crossed := sess.Append(budget.CallRecord{
		ProviderID:   c.ProviderID,
		ModelID:      c.ModelID,
		CostUSD:      costUSD,
		FinishReason: finishReason,
		Timestamp:    time.Now(),
	})
	if crossed {
		d.logger.Warn("session crossed alert threshold", zap.String("session_id", sess.ID), zap.Float64("total_cost", sess.TotalCost()))
	}
}

func (d *Dispatcher) recordMetric(f func()) {
	if d.metrics == nil {
		return
	}
	f()
}

// classifyFinish derives the finish_reason recorded for a dispatch that
// failed outright (no Response was ever produced): "cancelled" for
// caller/context cancellation, "error" otherwise.
func classifyFinish(err error) string {
	if e, ok := err.(*types.Error); ok && (e.Code == types.ErrCancelled || e.Code == types.ErrTimeout) {
		return "cancelled"
	}
	return "error"
}
