package routing

import (
	"sort"

	"github.com/ashish-admin/stratech-orchestrator/internal/analyzer"
)

// Capability describes one provider's standing in routing decisions.
// Scores are configuration, not measurements; they encode operator
// judgement about each provider.
type Capability struct {
	Name              string
	CostEffectiveness float64 // higher is cheaper per unit of quality
	Quality           float64
	Speed             float64
	LiveRetrieval     bool // provider can ground answers in live data
}

// Policy maps a query profile to an ordered fallback chain. Pure: the
// output depends only on the profile and the configured capability
// table. Circuit-breaker availability is applied downstream by the
// engine, never here.
type Policy struct {
	caps []Capability
	// Domain relevance at or above this counts as "highly relevant".
	relevanceFloor float64
}

func NewPolicy(caps []Capability) *Policy {
	return &Policy{caps: caps, relevanceFloor: 0.6}
}

// Route returns the preference-ordered, deduplicated provider chain for
// the profile. Empty only when no providers are configured.
func (p *Policy) Route(profile analyzer.Profile) []string {
	if len(p.caps) == 0 {
		return nil
	}

	ordered := make([]Capability, len(p.caps))
	copy(ordered, p.caps)

	switch {
	case profile.Tier == analyzer.TierUrgent:
		sortBy(ordered, func(c Capability) float64 { return c.Speed })
		if profile.NeedsFreshData {
			promoteLiveRetrieval(ordered)
		}
	case profile.Tier == analyzer.TierComplex && profile.DomainRelevance >= p.relevanceFloor:
		sortBy(ordered, func(c Capability) float64 { return c.Quality })
	default:
		sortBy(ordered, func(c Capability) float64 { return c.CostEffectiveness })
	}

	return dedupe(ordered)
}

// ConsensusCandidates orders providers for the secondary agreement
// call: cheapest-leaning first, skipping the primary.
func (p *Policy) ConsensusCandidates(primary string) []string {
	ordered := make([]Capability, len(p.caps))
	copy(ordered, p.caps)
	sortBy(ordered, func(c Capability) float64 { return c.CostEffectiveness })

	var names []string
	for _, c := range ordered {
		if c.Name != primary {
			names = append(names, c.Name)
		}
	}
	return names
}

// sortBy orders descending by key, stable so the configured order
// breaks ties deterministically.
func sortBy(caps []Capability, key func(Capability) float64) {
	sort.SliceStable(caps, func(i, j int) bool {
		return key(caps[i]) > key(caps[j])
	})
}

func promoteLiveRetrieval(caps []Capability) {
	for i, c := range caps {
		if c.LiveRetrieval {
			copy(caps[1:i+1], caps[:i])
			caps[0] = c
			return
		}
	}
}

func dedupe(caps []Capability) []string {
	seen := make(map[string]struct{}, len(caps))
	names := make([]string, 0, len(caps))
	for _, c := range caps {
		if _, ok := seen[c.Name]; ok {
			continue
		}
		seen[c.Name] = struct{}{}
		names = append(names, c.Name)
	}
	return names
}
