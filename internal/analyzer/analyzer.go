package analyzer

import (
	"strings"
	"unicode"
)

// Tier buckets a query by how much reasoning it demands.
type Tier string

const (
	TierSimple   Tier = "simple"
	TierModerate Tier = "moderate"
	TierComplex  Tier = "complex"
	TierUrgent   Tier = "urgent"
)

// Profile is the immutable classification of one query. Built once per
// request and consumed by the routing policy and cost estimation.
type Profile struct {
	Tier                  Tier
	ComplexityScore       float64
	UrgencyScore          float64
	DomainRelevance       float64
	NeedsFreshData        bool
	EstimatedInputTokens  int
	EstimatedOutputTokens int
}

// Input carries the request options the analyzer cares about.
type Input struct {
	AnalysisDepth string // "quick", "standard", "deep"
	Priority      string // "urgent", "high", "normal", "low"
}

// Weights controls how each complexity signal contributes to the final
// score. All four sub-scores are bounded to [0,1] before weighting, so
// a weight set summing to 1.0 keeps the total in [0,1].
type Weights struct {
	Length           float64
	AnalyticalVerbs  float64
	MultiPerspective float64
	DepthRequest     float64
}

func DefaultWeights() Weights {
	return Weights{
		Length:           0.30,
		AnalyticalVerbs:  0.30,
		MultiPerspective: 0.20,
		DepthRequest:     0.20,
	}
}

const (
	// Complexity thresholds between tiers.
	moderateThreshold = 0.30
	complexThreshold  = 0.60
	// Urgency at or above this overrides the computed tier.
	urgentThreshold = 0.70
	// Word count at which the length sub-score saturates.
	lengthSaturationWords = 120
	// Rough tokens-per-word for English prose.
	tokensPerWord = 1.35
	// Fixed prompt overhead added to the input estimate.
	promptOverheadTokens = 600
)

var analyticalVerbs = []string{
	"analyze", "analyse", "compare", "contrast", "evaluate", "assess",
	"explain", "predict", "forecast", "recommend", "strategize",
	"synthesize", "critique", "examine", "investigate",
}

var multiPerspectiveMarkers = []string{
	"pros and cons", "perspectives", "both sides", "trade-off",
	"tradeoff", "stakeholder", "viewpoints", "for and against",
	"implications", "opposing",
}

var urgencyKeywords = []string{
	"urgent", "urgently", "breaking", "immediately", "right now",
	"asap", "crisis", "emergency", "time-sensitive",
}

var freshDataKeywords = []string{
	"latest", "today", "breaking", "current", "currently", "recent",
	"recently", "this week", "right now", "yesterday", "ongoing",
}

var domainVocabulary = []string{
	"ward", "election", "campaign", "voter", "voters", "constituency",
	"coalition", "turnout", "manifesto", "incumbent", "opposition",
	"polling", "booth", "alliance", "candidate", "party", "electorate",
	"governance", "civic", "municipal", "corporator", "mla", "mp",
	"sentiment", "swing", "demographic",
}

// Analyzer classifies queries. Pure: no I/O, no clock, no shared state,
// so identical inputs always produce identical profiles.
type Analyzer struct {
	weights Weights
}

func New(weights Weights) *Analyzer {
	return &Analyzer{weights: weights}
}

// Analyze derives the query profile. An empty query yields the simple
// tier with zero scores; arbitrarily long queries saturate the linear
// signals rather than failing.
func (a *Analyzer) Analyze(query string, in Input) Profile {
	query = strings.TrimSpace(query)
	if query == "" {
		return Profile{Tier: TierSimple}
	}

	lower := strings.ToLower(query)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})

	complexity := a.complexityScore(lower, words, in)
	urgency := urgencyScore(lower, in)
	relevance := domainRelevance(words)
	fresh := containsAny(lower, freshDataKeywords)

	tier := tierFor(complexity)
	if urgency >= urgentThreshold {
		tier = TierUrgent
	}

	inTokens := int(float64(len(words))*tokensPerWord) + promptOverheadTokens
	outTokens := estimateOutputTokens(complexity, in.AnalysisDepth)

	return Profile{
		Tier:                  tier,
		ComplexityScore:       complexity,
		UrgencyScore:          urgency,
		DomainRelevance:       relevance,
		NeedsFreshData:        fresh,
		EstimatedInputTokens:  inTokens,
		EstimatedOutputTokens: outTokens,
	}
}

func (a *Analyzer) complexityScore(lower string, words []string, in Input) float64 {
	lengthScore := clamp01(float64(len(words)) / lengthSaturationWords)

	verbHits := countMatches(lower, analyticalVerbs)
	verbScore := clamp01(float64(verbHits) / 2)

	perspectiveHits := countMatches(lower, multiPerspectiveMarkers)
	perspectiveScore := clamp01(float64(perspectiveHits) / 2)

	var depthScore float64
	switch in.AnalysisDepth {
	case "deep":
		depthScore = 1.0
	case "standard", "":
		depthScore = 0.5
	case "quick":
		depthScore = 0.0
	default:
		depthScore = 0.5
	}

	total := a.weights.Length*lengthScore +
		a.weights.AnalyticalVerbs*verbScore +
		a.weights.MultiPerspective*perspectiveScore +
		a.weights.DepthRequest*depthScore
	return clamp01(total)
}

func urgencyScore(lower string, in Input) float64 {
	score := 0.0
	if containsAny(lower, urgencyKeywords) {
		score += 0.6
	}
	switch in.Priority {
	case "urgent":
		score += 0.8
	case "high":
		score += 0.4
	}
	// A fresh-data ask alone hints at time pressure, not an emergency.
	if containsAny(lower, freshDataKeywords) {
		score += 0.2
	}
	return clamp01(score)
}

func domainRelevance(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	vocab := make(map[string]struct{}, len(domainVocabulary))
	for _, term := range domainVocabulary {
		vocab[term] = struct{}{}
	}
	hits := 0
	for _, w := range words {
		if _, ok := vocab[w]; ok {
			hits++
		}
	}
	// Scaled so a handful of domain terms in a short query counts as
	// highly relevant.
	return clamp01(float64(hits) * 4 / float64(len(words)))
}

func estimateOutputTokens(complexity float64, depth string) int {
	base := 768
	switch depth {
	case "quick":
		base = 256
	case "deep":
		base = 1536
	}
	return base + int(complexity*float64(base))
}

func tierFor(complexity float64) Tier {
	switch {
	case complexity < moderateThreshold:
		return TierSimple
	case complexity < complexThreshold:
		return TierModerate
	default:
		return TierComplex
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func countMatches(s string, needles []string) int {
	n := 0
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			n++
		}
	}
	return n
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
