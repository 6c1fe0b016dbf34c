package quality

import (
	"strings"
	"sync"
	"unicode"

	"github.com/ashish-admin/stratech-orchestrator/internal/analyzer"
)

// Confidence is the per-request confidence verdict.
type Confidence struct {
	Overall            float64            `json:"overall_confidence"`
	ModelAgreement     float64            `json:"model_agreement,omitempty"`
	ConsensusAvailable bool               `json:"consensus_available"`
	Breakdown          map[string]float64 `json:"breakdown"`
}

// MaxConsensusDelta bounds how far a consensus call may move the
// overall confidence in either direction.
const MaxConsensusDelta = 0.1

// consensusFloor triggers a consensus call when base confidence falls
// below it.
const consensusFloor = 0.7

// highRelevance marks a profile as squarely in-domain.
const highRelevance = 0.6

// History is a rolling per-provider success tracker shared across
// requests. Seeded from persisted execution records at startup and
// updated live by the engine.
type History struct {
	mu        sync.Mutex
	attempts  map[string]int
	successes map[string]int
}

func NewHistory() *History {
	return &History{
		attempts:  make(map[string]int),
		successes: make(map[string]int),
	}
}

// Seed installs prior success rates, each weighted as ten observations
// so live traffic can shift them without whiplash.
func (h *History) Seed(rates map[string]float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for provider, rate := range rates {
		h.attempts[provider] = 10
		h.successes[provider] = int(rate*10 + 0.5)
	}
}

func (h *History) Record(provider string, success bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts[provider]++
	if success {
		h.successes[provider]++
	}
}

// SuccessRate returns the provider's observed rate; unknown providers
// get a neutral 0.8 prior.
func (h *History) SuccessRate(provider string) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.attempts[provider]
	if n == 0 {
		return 0.8
	}
	return float64(h.successes[provider]) / float64(n)
}

// EvaluateConfidence blends the response quality score, the provider's
// rolling success rate, and an error penalty into the base confidence.
func (v *Validator) EvaluateConfidence(qualityScore float64, providerRate float64, hadError bool) Confidence {
	errorPenalty := 0.0
	if hadError {
		errorPenalty = 0.2
	}
	overall := clamp01(0.6*qualityScore + 0.4*providerRate - errorPenalty)
	return Confidence{
		Overall: overall,
		Breakdown: map[string]float64{
			"quality":          qualityScore,
			"provider_history": providerRate,
			"error_penalty":    errorPenalty,
		},
	}
}

// ShouldConsensus decides whether a second provider should be queried
// to measure agreement.
func ShouldConsensus(profile analyzer.Profile, baseConfidence float64) bool {
	if profile.Tier == analyzer.TierComplex && profile.DomainRelevance >= highRelevance {
		return true
	}
	if baseConfidence < consensusFloor {
		return true
	}
	if profile.Tier == analyzer.TierUrgent && profile.DomainRelevance >= highRelevance {
		return true
	}
	return false
}

// ApplyConsensus folds a measured agreement into the confidence,
// bounded to MaxConsensusDelta either way. Content is never touched:
// consensus is informational only.
func ApplyConsensus(base Confidence, agreement float64) Confidence {
	delta := (agreement - 0.5) * 2 * MaxConsensusDelta
	if delta > MaxConsensusDelta {
		delta = MaxConsensusDelta
	}
	if delta < -MaxConsensusDelta {
		delta = -MaxConsensusDelta
	}
	out := base
	out.Overall = clamp01(base.Overall + delta)
	out.ModelAgreement = agreement
	out.ConsensusAvailable = true
	out.Breakdown = make(map[string]float64, len(base.Breakdown)+1)
	for k, v := range base.Breakdown {
		out.Breakdown[k] = v
	}
	out.Breakdown["model_agreement"] = agreement
	return out
}

// Agreement measures lexical and entity overlap between two responses,
// normalised to [0,1]. Deterministic and symmetric.
func Agreement(a, b string) float64 {
	wordsA := contentWords(a)
	wordsB := contentWords(b)
	lexical := jaccard(wordsA, wordsB)

	entsA := entities(a)
	entsB := entities(b)
	if len(entsA) == 0 && len(entsB) == 0 {
		return lexical
	}
	entity := jaccard(entsA, entsB)
	return clamp01(0.6*lexical + 0.4*entity)
}

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "in": {},
	"to": {}, "is": {}, "are": {}, "was": {}, "were": {}, "for": {},
	"on": {}, "with": {}, "that": {}, "this": {}, "as": {}, "by": {},
	"it": {}, "be": {}, "has": {}, "have": {}, "at": {}, "from": {},
}

func contentWords(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range fields(strings.ToLower(s)) {
		if len(w) < 3 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// entities approximates named entities as capitalised mid-sentence
// tokens.
func entities(s string) map[string]struct{} {
	out := make(map[string]struct{})
	tokens := strings.Fields(s)
	for i, tok := range tokens {
		trimmed := strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if trimmed == "" {
			continue
		}
		first := []rune(trimmed)[0]
		if !unicode.IsUpper(first) {
			continue
		}
		if i == 0 || strings.HasSuffix(tokens[i-1], ".") {
			continue // sentence-initial capitalisation is not a signal
		}
		out[strings.ToLower(trimmed)] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
