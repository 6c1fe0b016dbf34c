package routing

import (
	"reflect"
	"testing"

	"github.com/ashish-admin/stratech-orchestrator/internal/analyzer"
)

func testCaps() []Capability {
	return []Capability{
		{Name: "claude", CostEffectiveness: 0.5, Quality: 0.95, Speed: 0.5},
		{Name: "openai", CostEffectiveness: 0.8, Quality: 0.8, Speed: 0.7},
		{Name: "gemini", CostEffectiveness: 0.9, Quality: 0.7, Speed: 0.9, LiveRetrieval: true},
	}
}

func TestRoute_DefaultCostEffectiveness(t *testing.T) {
	p := NewPolicy(testCaps())

	chain := p.Route(analyzer.Profile{Tier: analyzer.TierModerate})
	want := []string{"gemini", "openai", "claude"}
	if !reflect.DeepEqual(chain, want) {
		t.Errorf("Expected %v, got %v", want, chain)
	}
}

func TestRoute_UrgentPrefersSpeed(t *testing.T) {
	p := NewPolicy(testCaps())

	chain := p.Route(analyzer.Profile{Tier: analyzer.TierUrgent})
	if chain[0] != "gemini" {
		t.Errorf("Expected fastest provider first, got %v", chain)
	}
}

func TestRoute_UrgentFreshDataPutsLiveRetrievalFirst(t *testing.T) {
	caps := []Capability{
		{Name: "fast-no-live", Speed: 0.95},
		{Name: "live", Speed: 0.4, LiveRetrieval: true},
	}
	p := NewPolicy(caps)

	chain := p.Route(analyzer.Profile{Tier: analyzer.TierUrgent, NeedsFreshData: true})
	want := []string{"live", "fast-no-live"}
	if !reflect.DeepEqual(chain, want) {
		t.Errorf("Expected %v, got %v", want, chain)
	}
}

func TestRoute_ComplexRelevantPrefersQuality(t *testing.T) {
	p := NewPolicy(testCaps())

	chain := p.Route(analyzer.Profile{Tier: analyzer.TierComplex, DomainRelevance: 0.9})
	if chain[0] != "claude" {
		t.Errorf("Expected highest-quality provider first, got %v", chain)
	}
}

func TestRoute_ComplexLowRelevanceFallsBackToCost(t *testing.T) {
	p := NewPolicy(testCaps())

	chain := p.Route(analyzer.Profile{Tier: analyzer.TierComplex, DomainRelevance: 0.1})
	if chain[0] != "gemini" {
		t.Errorf("Expected cost-effective provider first for low relevance, got %v", chain)
	}
}

func TestRoute_PureFunctionOfProfile(t *testing.T) {
	p := NewPolicy(testCaps())
	profile := analyzer.Profile{Tier: analyzer.TierComplex, DomainRelevance: 0.8}

	first := p.Route(profile)
	second := p.Route(profile)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Route must be pure: %v != %v", first, second)
	}
}

func TestRoute_Deduplicates(t *testing.T) {
	caps := append(testCaps(), Capability{Name: "gemini", CostEffectiveness: 0.1})
	p := NewPolicy(caps)

	chain := p.Route(analyzer.Profile{Tier: analyzer.TierSimple})
	seen := make(map[string]int)
	for _, name := range chain {
		seen[name]++
	}
	if seen["gemini"] != 1 {
		t.Errorf("Expected gemini exactly once, chain %v", chain)
	}
}

func TestRoute_NoProvidersConfigured(t *testing.T) {
	p := NewPolicy(nil)

	if chain := p.Route(analyzer.Profile{}); len(chain) != 0 {
		t.Errorf("Expected empty chain without providers, got %v", chain)
	}
}

func TestConsensusCandidates_SkipsPrimary(t *testing.T) {
	p := NewPolicy(testCaps())

	for _, name := range p.ConsensusCandidates("gemini") {
		if name == "gemini" {
			t.Fatal("Consensus candidates must not include the primary provider")
		}
	}
	if got := p.ConsensusCandidates("gemini"); got[0] != "openai" {
		t.Errorf("Expected cheapest non-primary first, got %v", got)
	}
}
