// Package gateway assembles the catalog, router, retry driver, response
// cache, budget gate, and cost accountant into the Dispatcher: the sole
// public entry point of the request core.
//
// The Dispatcher is pure composition — a struct holding pointers to
// each constituent manager, wired in a New constructor and instrumented
// through go.uber.org/zap and internal/metrics.Collector. Every step
// that can fail does so with a closed-taxonomy *types.Error, and every
// dispatched call (success, failure, or cancellation) appends exactly
// one record to its session.
package gateway
