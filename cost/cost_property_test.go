package cost

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/llmgateway/agentflow/catalog"
	"github.com/llmgateway/agentflow/types"
)

// TestCalculateCostNonNegativeAndSumsTerms: for any usage and any
// fully-priced catalog entry, cost_usd is never negative and always
// equals the sum of its own cost_breakdown terms.
func TestCalculateCostNonNegativeAndSumsTerms(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		writePrice := rapid.Float64Range(0, 50).Draw(t, "cacheWritePrice")
		readPrice := rapid.Float64Range(0, 50).Draw(t, "cacheReadPrice")
		e := &catalog.Entry{
			ProviderID:         "vendor",
			ModelID:            "model",
			InputPricePerMTok:  rapid.Float64Range(0, 50).Draw(t, "inputPrice"),
			OutputPricePerMTok: rapid.Float64Range(0, 50).Draw(t, "outputPrice"),
			CacheWritePrice:    &writePrice,
			CacheReadPrice:     &readPrice,
		}

		prompt := rapid.IntRange(0, 200_000).Draw(t, "promptTokens")
		cacheRead := rapid.IntRange(0, prompt).Draw(t, "cacheReadTokens")
		u := types.Usage{
			PromptTokens:     prompt,
			CompletionTokens: rapid.IntRange(0, 200_000).Draw(t, "completionTokens"),
			CacheReadTokens:  cacheRead,
			CacheWriteTokens: rapid.IntRange(0, 200_000).Draw(t, "cacheWriteTokens"),
		}

		c, breakdown, err := Calculate(u, e)
		if err != nil {
			t.Fatalf("Calculate returned an error for a fully-priced entry: %v", err)
		}
		if c < 0 {
			t.Fatalf("cost_usd went negative: %v", c)
		}
		if c != breakdown.Sum() {
			t.Fatalf("cost_usd %v != sum of its own breakdown terms %v", c, breakdown.Sum())
		}
	})
}

// TestCalculateMissingPriceIsCatalogIncomplete checks the "a
// missing price field is a catalog error, not a zero" rule across
// randomly generated non-zero cache-token usages against an entry with
// no cache prices set.
func TestCalculateMissingPriceIsCatalogIncomplete(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := &catalog.Entry{
			ProviderID: "vendor", ModelID: "model",
			InputPricePerMTok: 1, OutputPricePerMTok: 2,
		}
		u := types.Usage{
			PromptTokens:     rapid.IntRange(1, 1000).Draw(t, "promptTokens"),
			CacheWriteTokens: rapid.IntRange(1, 1000).Draw(t, "cacheWriteTokens"),
		}
		_, _, err := Calculate(u, e)
		if err == nil {
			t.Fatal("expected CatalogIncomplete for a cache-write usage against an entry with no cache_write_price")
		}
		if types.GetErrorCode(err) != types.ErrCatalogIncomplete {
			t.Fatalf("expected ErrCatalogIncomplete, got %v", err)
		}
	})
}
