package catalog

// Category is a coarse model family tag carried for display/filtering
// purposes (e.g. "chat", "reasoning", "vision").
type Category string

// LatencyClass buckets models by typical response latency. Ordered
// ultra < fast < standard < slow for the Latency/Hybrid routing
// strategies.
type LatencyClass string

const (
	LatencyUltra     LatencyClass = "ultra"
	LatencyFast      LatencyClass = "fast"
	LatencyStandard  LatencyClass = "standard"
	LatencySlow      LatencyClass = "slow"
)

// latencyRank gives LatencyClass a total order for comparisons.
var latencyRank = map[LatencyClass]int{
	LatencyUltra:    0,
	LatencyFast:     1,
	LatencyStandard: 2,
	LatencySlow:     3,
}

// Rank returns this class's position in ultra < fast < standard < slow.
// Unknown classes rank last (worst).
func (c LatencyClass) Rank() int {
	if r, ok := latencyRank[c]; ok {
		return r
	}
	return len(latencyRank)
}

// Capabilities flags what a model can do, consulted by catalog
// validation and by the router's constraint filtering.
type Capabilities struct {
	Vision       bool `json:"vision,omitempty"`
	Tools        bool `json:"tools,omitempty"`
	Reasoning    bool `json:"reasoning,omitempty"`
	PromptCache  bool `json:"prompt_cache,omitempty"`
}

// Entry is the catalog record for one (provider_id, model_id) pair: the
// single source of truth for pricing, context window, capability, and
// deprecation data consumed by the router, cost accountant, and
// validator.
type Entry struct {
	ProviderID         string        `json:"-"`
	ModelID            string        `json:"-"`
	DisplayName        string        `json:"display_name"`
	Category           Category      `json:"category,omitempty"`
	ContextWindow      int           `json:"context_window"`
	OutputCeiling      int           `json:"output_ceiling,omitempty"`
	InputPricePerMTok  float64       `json:"input_price_per_mtok"`
	OutputPricePerMTok float64       `json:"output_price_per_mtok"`
	CacheWritePrice    *float64      `json:"cache_write_price,omitempty"`
	CacheReadPrice     *float64      `json:"cache_read_price,omitempty"`
	Capabilities       Capabilities  `json:"capabilities"`
	QualityScore       float64       `json:"quality_score"`
	LatencyClass       LatencyClass  `json:"latency_class,omitempty"`
	FixedTemperature   *float32      `json:"fixed_temperature,omitempty"`
	Deprecated         bool          `json:"deprecated,omitempty"`
	DeprecatedDate     string        `json:"deprecated_date,omitempty"`
	ReplacementModelID string        `json:"replacement_model_id,omitempty"`
}

// Key identifies an entry uniquely within the catalog.
type Key struct {
	ProviderID string
	ModelID    string
}
