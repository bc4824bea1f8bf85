package retry

import "github.com/llmgateway/agentflow/types"

// Class decides whether the driver sleeps and retries the same
// candidate, gives up on the candidate and advances the chain, or stops
// walking the chain entirely.
type Class int

const (
	// ClassRetryable means: sleep and retry the same candidate.
	ClassRetryable Class = iota
	// ClassFatalForModel means: skip straight to the next candidate.
	ClassFatalForModel
	// ClassFatalForRequest means: stop the walk, surface the error.
	ClassFatalForRequest
)

func (c Class) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassFatalForModel:
		return "fatal_for_model"
	case ClassFatalForRequest:
		return "fatal_for_request"
	default:
		return "unknown"
	}
}

// Classify maps a closed-taxonomy *types.Error to its retry class. Any
// error that doesn't carry the taxonomy (a bug elsewhere mapping a raw
// error instead of a *types.Error) is treated as fatal-for-request —
// the driver never silently swallows an error it can't classify.
func Classify(err error) Class {
	e, ok := err.(*types.Error)
	if !ok {
		return ClassFatalForRequest
	}

	switch e.Code {
	case types.ErrRateLimited, types.ErrTransientNetwork, types.ErrUpstreamError,
		types.ErrServiceUnavailable, types.ErrModelOverloaded, types.ErrUpstreamTimeout:
		return ClassRetryable

	case types.ErrModelNotFound, types.ErrAuthMissing, types.ErrAuthentication,
		types.ErrUnauthorized, types.ErrForbidden, types.ErrContextOverflow,
		types.ErrCapabilityMismatch, types.ErrQuotaExceeded, types.ErrProviderUnavailable:
		return ClassFatalForModel

	case types.ErrInvalidRequest, types.ErrBudgetExhausted, types.ErrCancelled,
		types.ErrTimeout, types.ErrProviderProtocol, types.ErrCatalogIncomplete,
		types.ErrNoEligibleModel:
		return ClassFatalForRequest

	default:
		return ClassFatalForRequest
	}
}
