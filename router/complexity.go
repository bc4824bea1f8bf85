package router

import (
	"regexp"
	"strings"

	"github.com/llmgateway/agentflow/types"
)

// Complexity score constants. Fixed design constants, never tuned per
// deployment.
const (
	keywordRef      = 3.0
	lengthRef       = 2000.0
	turnRef         = 6.0
	symbolDensityTh = 0.02
	mathDensityTh   = 0.01
)

var reasoningKeywords = []string{
	"analyze", "prove", "derive", "explain", "design", "why", "compare",
	"evaluate", "optimize", "architecture", "algorithm", "trade-off",
}

var technicalSymbolPattern = regexp.MustCompile("[{}()\\[\\]<>=+\\-*/%&|^~]")
var mathPattern = regexp.MustCompile(`[0-9]+\s*[+\-*/=]\s*[0-9]+|\\[a-zA-Z]+|[∑∫∏√πθ]`)
var codeFencePattern = regexp.MustCompile("```")

// ComplexityScore estimates the reasoning load of a request on [0,1],
// feeding the Hybrid strategy's weight interpolation.
func ComplexityScore(req *types.Request) float64 {
	text := joinContent(req.Messages)
	lower := strings.ToLower(text)

	keywordCount := 0
	for _, kw := range reasoningKeywords {
		keywordCount += strings.Count(lower, kw)
	}
	keywordTerm := 0.40 * clamp01(float64(keywordCount)/keywordRef)

	lengthTerm := 0.20 * clamp01(float64(len([]rune(text)))/lengthRef)

	symbolDensity := float64(len(technicalSymbolPattern.FindAllString(text, -1))) / maxFloat(1, float64(len(text)))
	technicalTerm := 0.0
	if codeFencePattern.MatchString(text) || symbolDensity > symbolDensityTh {
		technicalTerm = 0.20
	}

	turnTerm := 0.10 * clamp01(float64(len(req.Messages))/turnRef)

	mathMatches := mathPattern.FindAllString(text, -1)
	mathDensity := float64(len(mathMatches)) / maxFloat(1, float64(len(text)))
	mathTerm := 0.0
	if mathDensity > mathDensityTh {
		mathTerm = 0.10
	}

	return clamp01(keywordTerm + lengthTerm + technicalTerm + turnTerm + mathTerm)
}

func joinContent(messages []types.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Content)
		sb.WriteString(" ")
	}
	return sb.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
