// Package retry walks an ordered candidate chain produced by the router,
// attempting each (provider, model) pair in turn and applying exponential
// backoff with jitter between retries of the same candidate.
//
// Errors are classified three ways (Retryable / FatalForModel /
// FatalForRequest): retryable errors sleep and retry the same
// candidate, fatal-for-model errors advance the chain, and
// fatal-for-request errors stop the walk outright. Streams are never
// retried once the first chunk has been handed to the caller.
package retry
