package quality

import (
	"regexp"
	"strings"
	"unicode"
)

// AssessWeights controls the blend of content sub-scores. Bounded
// sub-scores plus weights summing to 1.0 keep Assess in [0,1].
type AssessWeights struct {
	Depth        float64
	Relevance    float64
	Citations    float64
	Balance      float64
	Completeness float64
}

func DefaultAssessWeights() AssessWeights {
	return AssessWeights{
		Depth:        0.25,
		Relevance:    0.25,
		Citations:    0.15,
		Balance:      0.15,
		Completeness: 0.20,
	}
}

// Validator scores response content. Assess is deterministic: no clock,
// no randomness, no shared state.
type Validator struct {
	weights AssessWeights
}

func NewValidator(weights AssessWeights) *Validator {
	return &Validator{weights: weights}
}

var citationPattern = regexp.MustCompile(`(?i)(\[\d+\]|\baccording to\b|\bsource[s]?:\s|\breported by\b|\bdata from\b|\bper the\b|https?://)`)

var loadedLanguage = []string{
	"disaster", "catastrophic", "outrageous", "shameful", "disgrace",
	"corrupt thugs", "traitor", "evil", "pathetic", "idiotic",
	"always fails", "never delivers", "total failure",
}

var hedgedLanguage = []string{
	"however", "on the other hand", "although", "while", "some argue",
	"critics", "supporters", "alternatively", "it depends", "nuance",
}

var domainTerms = []string{
	"ward", "election", "campaign", "voter", "constituency", "coalition",
	"turnout", "incumbent", "opposition", "polling", "alliance",
	"candidate", "party", "governance", "civic", "sentiment",
	"demographic", "electorate", "manifesto",
}

// Assess combines the weighted sub-scores for one response. A blank
// response scores zero.
func (v *Validator) Assess(query, response, analysisDepth string) float64 {
	response = strings.TrimSpace(response)
	if response == "" {
		return 0
	}

	lower := strings.ToLower(response)
	words := fields(lower)

	score := v.weights.Depth*depthScore(response, words) +
		v.weights.Relevance*relevanceScore(words) +
		v.weights.Citations*citationScore(response) +
		v.weights.Balance*balanceScore(lower) +
		v.weights.Completeness*completenessScore(words, analysisDepth)
	return clamp01(score)
}

// depthScore rewards structured, multi-paragraph prose over one-liners.
func depthScore(response string, words []string) float64 {
	wordScore := clamp01(float64(len(words)) / 300)

	structure := 0.0
	if strings.Count(response, "\n\n") >= 1 {
		structure += 0.3
	}
	if strings.Contains(response, "- ") || strings.Contains(response, "1.") {
		structure += 0.2
	}
	sentences := strings.Count(response, ". ") + strings.Count(response, ".\n") + 1
	if sentences >= 5 {
		structure += 0.2
	}
	return clamp01(0.5*wordScore + structure)
}

func relevanceScore(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	vocab := make(map[string]struct{}, len(domainTerms))
	for _, t := range domainTerms {
		vocab[t] = struct{}{}
	}
	hits := 0
	for _, w := range words {
		if _, ok := vocab[w]; ok {
			hits++
		}
	}
	return clamp01(float64(hits) * 10 / float64(len(words)))
}

func citationScore(response string) float64 {
	matches := citationPattern.FindAllString(response, 4)
	return clamp01(float64(len(matches)) / 2)
}

// balanceScore starts neutral-high and penalises one-sided emotionally
// loaded language; hedged phrasing earns a small credit.
func balanceScore(lower string) float64 {
	score := 0.8
	for _, phrase := range loadedLanguage {
		if strings.Contains(lower, phrase) {
			score -= 0.2
		}
	}
	for _, phrase := range hedgedLanguage {
		if strings.Contains(lower, phrase) {
			score += 0.05
		}
	}
	return clamp01(score)
}

// completenessScore compares delivered length against the length the
// requested depth implies.
func completenessScore(words []string, analysisDepth string) float64 {
	expected := 150
	switch analysisDepth {
	case "quick":
		expected = 60
	case "deep":
		expected = 400
	}
	return clamp01(float64(len(words)) / float64(expected))
}

func fields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
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
