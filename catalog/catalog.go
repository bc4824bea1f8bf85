// Package catalog loads, validates, and serves the model metadata that
// the router, cost accountant, and request validator treat as the
// single source of truth: pricing, context windows, capabilities, and
// deprecation per (provider_id, model_id).
//
// Loading is thread-safe and fail-closed: a single lock guards wholesale
// replacement of the in-memory table; readers take a snapshot reference
// and never block writers or each other. A load failure leaves the
// previous snapshot in effect.
package catalog

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/llmgateway/agentflow/types"
)

// Document is the on-disk shape of the catalog file:
// `{version, updated, providers: {<provider_id>: {<model_id>: Entry}}}`.
type Document struct {
	Version   string                        `json:"version"`
	Updated   string                        `json:"updated"`
	Providers map[string]map[string]*Entry `json:"providers"`
}

// snapshot is the immutable in-memory table swapped atomically on reload.
type snapshot struct {
	byKey map[Key]*Entry
	all   []*Entry
}

// LoadError reports why a catalog document failed validation; the
// previous snapshot (if any) remains in effect when this is returned.
type LoadError struct {
	Violations []string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("catalog: %d validation violation(s), e.g. %q", len(e.Violations), e.Violations[0])
}

// Catalog is the process-wide model registry singleton. Zero value is
// usable but empty; call Load to populate it.
type Catalog struct {
	mu       sync.Mutex // guards wholesale replacement only
	snapshot atomic.Pointer[snapshot]

	// OnLoadError is invoked (if set) with the operator-facing message
	// when a reload fails validation and the previous snapshot is kept.
	OnLoadError func(err error)
}

// New returns an empty Catalog. Call Load (or a Source's watch loop) to
// populate it before dispatching requests.
func New() *Catalog {
	c := &Catalog{}
	c.snapshot.Store(&snapshot{byKey: map[Key]*Entry{}})
	return c
}

// Load validates doc and, if valid, atomically replaces the in-memory
// table. On validation failure the previous snapshot is retained and a
// *LoadError describing every violation is returned.
func (c *Catalog) Load(doc *Document) error {
	violations := validateDocument(doc)
	if len(violations) > 0 {
		err := &LoadError{Violations: violations}
		if c.OnLoadError != nil {
			c.OnLoadError(err)
		}
		return err
	}

	next := &snapshot{byKey: make(map[Key]*Entry)}
	for providerID, models := range doc.Providers {
		for modelID, e := range models {
			entryCopy := *e
			entryCopy.ProviderID = providerID
			entryCopy.ModelID = modelID
			next.byKey[Key{ProviderID: providerID, ModelID: modelID}] = &entryCopy
			next.all = append(next.all, &entryCopy)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.Store(next)
	return nil
}

func validateDocument(doc *Document) []string {
	var violations []string
	if doc == nil {
		return []string{"document is nil"}
	}
	for providerID, models := range doc.Providers {
		for modelID, e := range models {
			prefix := fmt.Sprintf("%s/%s", providerID, modelID)
			if e == nil {
				violations = append(violations, prefix+": nil entry")
				continue
			}
			if e.ContextWindow <= 0 {
				violations = append(violations, prefix+": context_window must be > 0")
			}
			if e.InputPricePerMTok < 0 {
				violations = append(violations, prefix+": input_price_per_mtok must be >= 0")
			}
			if e.OutputPricePerMTok < 0 {
				violations = append(violations, prefix+": output_price_per_mtok must be >= 0")
			}
			if e.CacheWritePrice != nil && *e.CacheWritePrice < 0 {
				violations = append(violations, prefix+": cache_write_price must be >= 0")
			}
			if e.CacheReadPrice != nil && *e.CacheReadPrice < 0 {
				violations = append(violations, prefix+": cache_read_price must be >= 0")
			}
			if e.QualityScore < 0 || e.QualityScore > 1 {
				violations = append(violations, prefix+": quality_score must be in [0,1]")
			}
		}
	}
	return violations
}

// Lookup returns the entry for (providerID, modelID), or ErrModelNotFound.
func (c *Catalog) Lookup(providerID, modelID string) (*Entry, error) {
	snap := c.snapshot.Load()
	if e, ok := snap.byKey[Key{ProviderID: providerID, ModelID: modelID}]; ok {
		return e, nil
	}
	return nil, types.NewError(types.ErrModelNotFound, fmt.Sprintf("model %s/%s not found in catalog", providerID, modelID))
}

// LookupModel finds an entry by model_id alone, scanning every provider.
// Used when the caller supplies only a model_id and the provider is
// implied by the router's candidate selection. Returns ErrModelNotFound
// if no provider carries that model.
func (c *Catalog) LookupModel(modelID string) (*Entry, error) {
	snap := c.snapshot.Load()
	for _, e := range snap.all {
		if e.ModelID == modelID {
			return e, nil
		}
	}
	return nil, types.NewError(types.ErrModelNotFound, fmt.Sprintf("model %s not found in catalog", modelID))
}

// List returns every entry, optionally filtered to one provider.
func (c *Catalog) List(providerID string) []*Entry {
	snap := c.snapshot.Load()
	if providerID == "" {
		out := make([]*Entry, len(snap.all))
		copy(out, snap.all)
		return out
	}
	var out []*Entry
	for _, e := range snap.all {
		if e.ProviderID == providerID {
			out = append(out, e)
		}
	}
	return out
}

// IsDeprecated reports whether modelID (any provider) is flagged
// deprecated, and its suggested replacement if one is recorded.
func (c *Catalog) IsDeprecated(modelID string) (bool, string) {
	e, err := c.LookupModel(modelID)
	if err != nil {
		return false, ""
	}
	return e.Deprecated, e.ReplacementModelID
}

// Violation describes one rule broken by a Request against an Entry.
type Violation struct {
	Field   string
	Message string
}

// ValidateRequest checks req against the catalog entry it targets:
// existence, vision/tools capability requirements, temperature band,
// and max_output_tokens ceiling. providerMax is the provider's
// temperature ceiling (2.0 for most, 1.0 for Anthropic); reasoning
// models force 1.0 regardless and ignore the field.
func (c *Catalog) ValidateRequest(req *types.Request, providerID string, providerMax float32) ([]Violation, *Entry) {
	entry, err := c.Lookup(providerID, req.ModelID)
	if err != nil {
		entry, err = c.LookupModel(req.ModelID)
	}
	if err != nil {
		return []Violation{{Field: "model_id", Message: "model not found in catalog"}}, nil
	}

	var violations []Violation

	if entry.Capabilities.Reasoning {
		// Reasoning models force temperature=1.0 and ignore the field;
		// no violation is possible here.
	} else if req.Temperature < 0 || req.Temperature > providerMax {
		violations = append(violations, Violation{
			Field:   "temperature",
			Message: fmt.Sprintf("temperature %.2f outside [0, %.2f]", req.Temperature, providerMax),
		})
	}

	if req.MaxOutputTokens > 0 && entry.OutputCeiling > 0 && req.MaxOutputTokens > entry.OutputCeiling {
		violations = append(violations, Violation{
			Field:   "max_output_tokens",
			Message: fmt.Sprintf("max_output_tokens %d exceeds ceiling %d", req.MaxOutputTokens, entry.OutputCeiling),
		})
	}

	requiresVision := false
	for _, m := range req.Messages {
		if len(m.Images) > 0 {
			requiresVision = true
			break
		}
	}
	if requiresVision && !entry.Capabilities.Vision {
		violations = append(violations, Violation{Field: "messages", Message: "request contains images but model lacks vision capability"})
	}
	if len(req.ToolSpec) > 0 && !entry.Capabilities.Tools {
		violations = append(violations, Violation{Field: "tool_spec", Message: "request specifies tools but model lacks tool capability"})
	}

	return violations, entry
}
