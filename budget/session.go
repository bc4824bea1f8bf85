// Package budget enforces per-session budget limits: a pre-flight check
// before dispatch and a post-flight append-and-alert after every call,
// successful or not.
//
// Cost accumulates in a fixed-point atomic counter (micro-dollars)
// behind a per-session lock, and the alert threshold fires exactly once
// per session, on the append that crosses it.
package budget

import (
	"sync"
	"sync/atomic"
	"time"
)

// costScale converts a float64 dollar amount to the fixed-point int64
// (micro-dollars) that Session's atomic cost counter holds, avoiding
// float math on the hot path.
const costScale = 1_000_000

// CallRecord is one append-only entry in a session's call history.
type CallRecord struct {
	ProviderID   string
	ModelID      string
	CostUSD      float64
	FinishReason string
	Timestamp    time.Time
}

// Session accumulates cost and enforces a budget for one caller-defined
// namespace. Calls are append-only; aggregates update atomically with
// each append.
type Session struct {
	ID             string
	BudgetLimit    float64 // 0 means unlimited
	AlertThreshold float64 // fraction of BudgetLimit, e.g. 0.8

	mu          sync.Mutex
	calls       []CallRecord
	totalMicros int64 // atomic, total_cost * costScale
	perProvider map[string]float64
	perModel    map[string]float64
	alerted     bool
}

// NewSession creates a session with the given budget limit (0 =
// unlimited) and alert threshold (0 disables alerting).
func NewSession(id string, budgetLimit, alertThreshold float64) *Session {
	return &Session{
		ID:             id,
		BudgetLimit:    budgetLimit,
		AlertThreshold: alertThreshold,
		perProvider:    make(map[string]float64),
		perModel:       make(map[string]float64),
	}
}

// TotalCost returns the session's running total cost.
func (s *Session) TotalCost() float64 {
	return float64(atomic.LoadInt64(&s.totalMicros)) / costScale
}

// Append records one completed (or failed, or cancelled) call and
// returns true if this append just crossed AlertThreshold*BudgetLimit
// for the first time.
func (s *Session) Append(rec CallRecord) (alertCrossed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, rec)
	atomic.AddInt64(&s.totalMicros, int64(rec.CostUSD*costScale+0.5))
	s.perProvider[rec.ProviderID] += rec.CostUSD
	s.perModel[rec.ModelID] += rec.CostUSD

	if s.BudgetLimit > 0 && s.AlertThreshold > 0 && !s.alerted {
		if s.TotalCost() >= s.AlertThreshold*s.BudgetLimit {
			s.alerted = true
			return true
		}
	}
	return false
}

// Summary is the caller-facing aggregate view of one session.
type Summary struct {
	TotalCost   float64
	PerProvider map[string]float64
	PerModel    map[string]float64
	Calls       []CallRecord
}

// Summary returns a point-in-time snapshot of the session's aggregates.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	perProvider := make(map[string]float64, len(s.perProvider))
	for k, v := range s.perProvider {
		perProvider[k] = v
	}
	perModel := make(map[string]float64, len(s.perModel))
	for k, v := range s.perModel {
		perModel[k] = v
	}
	calls := make([]CallRecord, len(s.calls))
	copy(calls, s.calls)

	return Summary{
		TotalCost:   s.TotalCost(),
		PerProvider: perProvider,
		PerModel:    perModel,
		Calls:       calls,
	}
}

// Registry is the process-wide collaborator holding one Session per
// session_id, created on first use. Zero value is usable.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// DefaultBudgetLimit/DefaultAlertThreshold seed new sessions created
	// implicitly via GetOrCreate when the caller never configured one.
	DefaultBudgetLimit    float64
	DefaultAlertThreshold float64
}

// NewRegistry returns an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for id, creating it with the
// registry's defaults if this is the first reference.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	s = NewSession(id, r.DefaultBudgetLimit, r.DefaultAlertThreshold)
	r.sessions[id] = s
	return s
}

// Get returns the session for id if it already exists.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Shutdown clears all sessions, closing out the registry's lifecycle;
// tests construct their own Registry rather than sharing a global.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*Session)
}
