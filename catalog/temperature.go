package catalog

import "strings"

// defaultProviderMaxTemperature holds the provider-family temperature
// ceilings: 2.0 for most vendors, 1.0 for Anthropic. Reasoning models
// override this and force 1.0 regardless (handled separately in
// ValidateRequest via Capabilities.Reasoning).
var defaultProviderMaxTemperature = map[string]float32{
	"anthropic": 1.0,
}

// ProviderMaxTemperature returns the sampling-temperature ceiling for
// providerID. Unknown providers default to 2.0, the band every vendor
// except Anthropic uses.
func ProviderMaxTemperature(providerID string) float32 {
	if max, ok := defaultProviderMaxTemperature[strings.ToLower(providerID)]; ok {
		return max
	}
	return 2.0
}
