// Package cost computes per-call cost from usage and catalog pricing;
// per-session aggregation lives in package budget. It is a pure function of
// (Usage, catalog.Entry): it never performs I/O and never mutates its
// inputs.
//
// Prices are per million tokens in the catalog; the final figure is
// rounded to the nearest $0.000001, and every addend is recorded as a
// CostBreakdown term for later auditing.
package cost

import (
	"fmt"

	"github.com/llmgateway/agentflow/catalog"
	"github.com/llmgateway/agentflow/types"
)

// Calculate computes cost_usd and its itemized breakdown for one call:
//
//	cost = prompt_tokens_billed * input_price
//	     + completion_tokens * output_price
//	     + cache_write_tokens * cache_write_price
//	     + cache_read_tokens * cache_read_price
//
// where prompt_tokens_billed = prompt_tokens - cache_read_tokens -
// cached_prompt_tokens. A missing price field required by a non-zero
// term is a catalog error, not a silent zero.
func Calculate(u types.Usage, e *catalog.Entry) (float64, *types.CostBreakdown, error) {
	if e == nil {
		return 0, nil, types.NewError(types.ErrCatalogIncomplete, "cost: nil catalog entry")
	}

	billedPrompt := u.PromptTokens - u.CacheReadTokens - u.CachedPromptTokens
	if billedPrompt < 0 {
		billedPrompt = 0
	}

	breakdown := &types.CostBreakdown{}

	addTerm := func(name string, tokens int, price *float64) error {
		if tokens <= 0 {
			return nil
		}
		if price == nil {
			return types.NewError(types.ErrCatalogIncomplete,
				fmt.Sprintf("cost: %s/%s missing price for non-zero %s tokens", e.ProviderID, e.ModelID, name))
		}
		amount := types.RoundCost(float64(tokens) * (*price) / 1_000_000)
		breakdown.Terms = append(breakdown.Terms, types.CostTerm{
			Name: name, Tokens: tokens, PricePerMT: *price, AmountUSD: amount,
		})
		return nil
	}

	inputPrice := e.InputPricePerMTok
	outputPrice := e.OutputPricePerMTok

	if err := addTerm("prompt_tokens_billed", billedPrompt, &inputPrice); err != nil {
		return 0, nil, err
	}
	if err := addTerm("completion_tokens", u.CompletionTokens, &outputPrice); err != nil {
		return 0, nil, err
	}
	if err := addTerm("cache_write_tokens", u.CacheWriteTokens, e.CacheWritePrice); err != nil {
		return 0, nil, err
	}
	if err := addTerm("cache_read_tokens", u.CacheReadTokens, e.CacheReadPrice); err != nil {
		return 0, nil, err
	}

	return breakdown.Sum(), breakdown, nil
}

// EstimateMinPlausible computes the budget gate's conservative
// pre-flight estimate: prompt_tokens_estimated * input_price only,
// ignoring completion/cache terms since they can't be known before the
// call runs.
func EstimateMinPlausible(promptTokensEstimated int, e *catalog.Entry) float64 {
	if e == nil || promptTokensEstimated <= 0 {
		return 0
	}
	return types.RoundCost(float64(promptTokensEstimated) * e.InputPricePerMTok / 1_000_000)
}
