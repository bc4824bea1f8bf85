package budget

import "github.com/llmgateway/agentflow/types"

// Gate is the pre-flight half of the budget component: it rejects
// dispatch before any vendor call is made when even the cheapest
// plausible outcome would push the session over its limit.
type Gate struct {
	Registry *Registry
}

// NewGate wires a Gate to registry.
func NewGate(registry *Registry) *Gate {
	return &Gate{Registry: registry}
}

// PreflightCheck returns a BudgetExhausted error if sess has a nonzero
// limit and its current total plus minPlausibleCost would exceed it.
// Sessions with BudgetLimit == 0 are unlimited and always pass.
func (g *Gate) PreflightCheck(sess *Session, minPlausibleCost float64) error {
	if sess == nil || sess.BudgetLimit <= 0 {
		return nil
	}
	if sess.TotalCost()+minPlausibleCost > sess.BudgetLimit {
		return types.NewError(types.ErrBudgetExhausted, "session budget would be exceeded by this call").
			WithRetryable(false)
	}
	return nil
}
