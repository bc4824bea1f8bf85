// Package router scores candidate models under a strategy and a set of
// constraints, producing an ordered (provider, model) candidate chain
// for the retry driver to walk.
//
// Selection is a pure function of the catalog snapshot: filtering
// first (constraints, context fit, deprecation, provider exclusion),
// then a per-strategy ordering over what survives, then truncation to
// the configured chain length.
package router

import (
	"sort"
	"strings"

	"github.com/llmgateway/agentflow/catalog"
	"github.com/llmgateway/agentflow/tokenizer"
	"github.com/llmgateway/agentflow/types"
)

// Strategy names one of the four routing strategies.
type Strategy string

const (
	StrategyCost    Strategy = "cost"
	StrategyQuality Strategy = "quality"
	StrategyLatency Strategy = "latency"
	StrategyHybrid  Strategy = "hybrid"
)

// Constraints narrows the catalog-wide candidate set before scoring.
type Constraints struct {
	MaxPricePerMTok      *float64
	MaxLatencyClass      catalog.LatencyClass
	MinContextWindow     int
	RequiredCapabilities []string // "vision", "tools", "reasoning", "prompt_cache"
	PreferredProviders   []string
	ExcludedProviders    []string
	AllowDeprecated      bool
}

// Candidate is one entry of the ordered chain the router returns.
type Candidate struct {
	ProviderID string
	ModelID    string
	Entry      *catalog.Entry
}

// DefaultChainLength bounds how many candidates a chain carries.
const DefaultChainLength = 3

// Router selects candidate chains against a catalog snapshot.
type Router struct {
	Catalog     *catalog.Catalog
	ChainLength int
	Tokenizer   types.Tokenizer
}

// New returns a Router reading from cat, with the default chain length
// and a tokenizer.ByFamily tokenizer. Route counts prompts through its
// model-agnostic methods, which use the character-based estimate for
// every model; tiktoken counts come only from ByFamily.CountForModel.
func New(cat *catalog.Catalog) *Router {
	return &Router{
		Catalog:     cat,
		ChainLength: DefaultChainLength,
		Tokenizer:   tokenizer.NewByFamily(),
	}
}

// Route produces the ordered candidate chain for req under strategy and
// constraints. A request naming a model_id pins that model as the chain
// head (the request's own field outranks any strategy preference);
// strategy-ordered candidates fill the remaining fallback slots. With
// no model_id the whole chain is strategy-ordered. Returns
// NoEligibleModel when the request pins nothing and filtering empties
// the set.
func (r *Router) Route(req *types.Request, strategy Strategy, constraints Constraints) ([]Candidate, error) {
	var pinned *Candidate
	if req.ModelID != "" {
		entry, err := r.Catalog.LookupModel(req.ModelID)
		if err != nil {
			return nil, err
		}
		pinned = &Candidate{ProviderID: entry.ProviderID, ModelID: entry.ModelID, Entry: entry}
	}

	entries := r.Catalog.List("")
	estimatedPrompt := r.Tokenizer.CountMessagesTokens(req.Messages) + r.Tokenizer.EstimateToolTokens(req.ToolSpec)
	maxOutput := req.MaxOutputTokens
	if maxOutput <= 0 {
		maxOutput = defaultMaxOutputTokens
	}
	needVision, needTools := impliedCapabilities(req)

	candidates := make([]Candidate, 0, len(entries))
	for i := range entries {
		e := entries[i]
		if pinned != nil && e.ProviderID == pinned.ProviderID && e.ModelID == pinned.ModelID {
			continue
		}
		if !satisfiesConstraints(e, constraints) {
			continue
		}
		if needVision && !e.Capabilities.Vision {
			continue
		}
		if needTools && !e.Capabilities.Tools {
			continue
		}
		if e.ContextWindow < estimatedPrompt+maxOutput {
			continue
		}
		if e.Deprecated && !constraints.AllowDeprecated {
			continue
		}
		candidates = append(candidates, Candidate{ProviderID: e.ProviderID, ModelID: e.ModelID, Entry: e})
	}
	candidates = applyProviderPreference(candidates, constraints)

	if pinned == nil && len(candidates) == 0 {
		return nil, types.NewError(types.ErrNoEligibleModel, "no catalog entry satisfies constraints and context requirements")
	}

	switch strategy {
	case StrategyCost:
		sortByCost(candidates)
	case StrategyQuality:
		sortByQuality(candidates)
	case StrategyLatency:
		sortByLatency(candidates)
	case StrategyHybrid:
		c := ComplexityScore(req)
		sortByHybrid(candidates, c)
	default:
		sortByCost(candidates)
	}

	k := r.ChainLength
	if k <= 0 {
		k = DefaultChainLength
	}
	if pinned != nil {
		chain := make([]Candidate, 0, k)
		chain = append(chain, *pinned)
		for _, c := range candidates {
			if len(chain) >= k {
				break
			}
			chain = append(chain, c)
		}
		return chain, nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k], nil
}

// impliedCapabilities derives capability requirements from the request
// itself: image content needs vision, a tool_spec needs tool calling.
// Fallback candidates must satisfy these the same way the validated
// head model does — a chain that degrades a vision request to a
// text-only model would fail on dispatch, not route around it.
func impliedCapabilities(req *types.Request) (needVision, needTools bool) {
	for _, m := range req.Messages {
		if len(m.Images) > 0 {
			needVision = true
			break
		}
	}
	return needVision, len(req.ToolSpec) > 0
}

const defaultMaxOutputTokens = 1024

func satisfiesConstraints(e *catalog.Entry, c Constraints) bool {
	if c.MaxPricePerMTok != nil {
		avg := (e.InputPricePerMTok + e.OutputPricePerMTok) / 2
		if avg > *c.MaxPricePerMTok {
			return false
		}
	}
	if c.MaxLatencyClass != "" && e.LatencyClass.Rank() > c.MaxLatencyClass.Rank() {
		return false
	}
	if c.MinContextWindow > 0 && e.ContextWindow < c.MinContextWindow {
		return false
	}
	for _, cap := range c.RequiredCapabilities {
		if !hasCapability(e, cap) {
			return false
		}
	}
	for _, excluded := range c.ExcludedProviders {
		if strings.EqualFold(excluded, e.ProviderID) {
			return false
		}
	}
	return true
}

func hasCapability(e *catalog.Entry, name string) bool {
	switch name {
	case "vision":
		return e.Capabilities.Vision
	case "tools":
		return e.Capabilities.Tools
	case "reasoning":
		return e.Capabilities.Reasoning
	case "prompt_cache":
		return e.Capabilities.PromptCache
	default:
		return false
	}
}

// applyProviderPreference moves preferred-provider candidates to the
// front, preserving each group's relative order. It never drops a
// candidate outright — preference is advisory, exclusion (handled in
// satisfiesConstraints) is absolute.
func applyProviderPreference(candidates []Candidate, c Constraints) []Candidate {
	if len(c.PreferredProviders) == 0 {
		return candidates
	}
	preferredSet := make(map[string]bool, len(c.PreferredProviders))
	for _, p := range c.PreferredProviders {
		preferredSet[strings.ToLower(p)] = true
	}
	var preferred, rest []Candidate
	for _, cand := range candidates {
		if preferredSet[strings.ToLower(cand.ProviderID)] {
			preferred = append(preferred, cand)
		} else {
			rest = append(rest, cand)
		}
	}
	return append(preferred, rest...)
}

func avgPrice(e *catalog.Entry) float64 {
	return (e.InputPricePerMTok + e.OutputPricePerMTok) / 2
}

func sortByCost(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		pi, pj := avgPrice(c[i].Entry), avgPrice(c[j].Entry)
		if pi != pj {
			return pi < pj
		}
		return c[i].Entry.QualityScore > c[j].Entry.QualityScore
	})
}

func sortByQuality(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		qi, qj := c[i].Entry.QualityScore, c[j].Entry.QualityScore
		if qi != qj {
			return qi > qj
		}
		return avgPrice(c[i].Entry) < avgPrice(c[j].Entry)
	})
}

func sortByLatency(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		ri, rj := c[i].Entry.LatencyClass.Rank(), c[j].Entry.LatencyClass.Rank()
		if ri != rj {
			return ri < rj
		}
		return avgPrice(c[i].Entry) < avgPrice(c[j].Entry)
	})
}

// hybridWeights returns (wq, wc, wl) for complexity c, linearly
// interpolated between the C<=0.3 and C>=0.6 anchor points.
func hybridWeights(c float64) (wq, wc, wl float64) {
	switch {
	case c <= 0.3:
		return 0.1, 0.6, 0.3
	case c >= 0.6:
		return 0.6, 0.3, 0.1
	default:
		t := (c - 0.3) / 0.3
		return 0.1 + t*0.5, 0.6 - t*0.3, 0.3 - t*0.2
	}
}

func sortByHybrid(c []Candidate, complexity float64) {
	wq, wc, wl := hybridWeights(complexity)

	maxPrice, maxLatencyRank := 0.0, 0
	for _, cand := range c {
		if p := avgPrice(cand.Entry); p > maxPrice {
			maxPrice = p
		}
		if rank := cand.Entry.LatencyClass.Rank(); rank > maxLatencyRank {
			maxLatencyRank = rank
		}
	}
	if maxPrice == 0 {
		maxPrice = 1
	}
	if maxLatencyRank == 0 {
		maxLatencyRank = 1
	}

	utility := func(cand Candidate) float64 {
		priceNorm := avgPrice(cand.Entry) / maxPrice
		latencyNorm := float64(cand.Entry.LatencyClass.Rank()) / float64(maxLatencyRank)
		u := wq*cand.Entry.QualityScore - wc*priceNorm - wl*latencyNorm
		if cand.Entry.Deprecated {
			u -= 0.1
		}
		return u
	}

	sort.SliceStable(c, func(i, j int) bool {
		ui, uj := utility(c[i]), utility(c[j])
		if ui != uj {
			return ui > uj
		}
		return avgPrice(c[i].Entry) < avgPrice(c[j].Entry)
	})
}
