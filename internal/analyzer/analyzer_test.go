package analyzer

import (
	"strings"
	"testing"
)

func TestAnalyze_EmptyQuery(t *testing.T) {
	a := New(DefaultWeights())

	p := a.Analyze("", Input{})
	if p.Tier != TierSimple {
		t.Errorf("Expected simple tier for empty query, got %s", p.Tier)
	}
	if p.ComplexityScore != 0 {
		t.Errorf("Expected zero complexity for empty query, got %f", p.ComplexityScore)
	}

	p = a.Analyze("   ", Input{})
	if p.Tier != TierSimple {
		t.Errorf("Expected simple tier for whitespace query, got %s", p.Tier)
	}
}

func TestAnalyze_UrgentPriorityOverridesTier(t *testing.T) {
	a := New(DefaultWeights())

	p := a.Analyze("What are the latest developments in Ward X?", Input{Priority: "urgent"})
	if p.Tier != TierUrgent {
		t.Errorf("Expected urgent tier, got %s", p.Tier)
	}
	if !p.NeedsFreshData {
		t.Error("Expected needsFreshData for a 'latest developments' query")
	}
}

func TestAnalyze_ComplexQuery(t *testing.T) {
	a := New(DefaultWeights())

	query := "Analyze and compare the turnout trends across all wards, evaluate " +
		"the opposition coalition strategy from multiple perspectives, and assess " +
		"the trade-offs for our campaign messaging."
	p := a.Analyze(query, Input{AnalysisDepth: "deep"})

	if p.Tier != TierComplex {
		t.Errorf("Expected complex tier, got %s (score %f)", p.Tier, p.ComplexityScore)
	}
	if p.DomainRelevance <= 0 {
		t.Error("Expected positive domain relevance for an election query")
	}
}

func TestAnalyze_SimpleQuery(t *testing.T) {
	a := New(DefaultWeights())

	p := a.Analyze("Who won?", Input{AnalysisDepth: "quick"})
	if p.Tier != TierSimple {
		t.Errorf("Expected simple tier, got %s (score %f)", p.Tier, p.ComplexityScore)
	}
}

func TestAnalyze_VeryLongQuerySaturates(t *testing.T) {
	a := New(DefaultWeights())

	query := strings.Repeat("analyze the ward election turnout data ", 5000)
	p := a.Analyze(query, Input{AnalysisDepth: "deep"})

	if p.ComplexityScore > 1.0 {
		t.Errorf("Complexity must saturate at 1.0, got %f", p.ComplexityScore)
	}
	if p.DomainRelevance > 1.0 {
		t.Errorf("Domain relevance must cap at 1.0, got %f", p.DomainRelevance)
	}
	if p.EstimatedInputTokens <= 0 {
		t.Error("Expected a positive token estimate for a long query")
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := New(DefaultWeights())
	query := "Evaluate the incumbent's polling position in the northern wards today."
	in := Input{AnalysisDepth: "standard", Priority: "normal"}

	p1 := a.Analyze(query, in)
	p2 := a.Analyze(query, in)
	if p1 != p2 {
		t.Errorf("Analyze must be deterministic: %+v != %+v", p1, p2)
	}
}

func TestAnalyze_FreshDataKeywords(t *testing.T) {
	a := New(DefaultWeights())

	cases := []struct {
		query string
		fresh bool
	}{
		{"What happened today in the council?", true},
		{"Summarize the breaking situation", true},
		{"Describe the ward's historical voting pattern", false},
	}
	for _, tc := range cases {
		p := a.Analyze(tc.query, Input{})
		if p.NeedsFreshData != tc.fresh {
			t.Errorf("query %q: expected fresh=%v, got %v", tc.query, tc.fresh, p.NeedsFreshData)
		}
	}
}

func TestAnalyze_DepthRaisesComplexity(t *testing.T) {
	a := New(DefaultWeights())
	query := "Assess the alliance prospects for the coming election."

	quick := a.Analyze(query, Input{AnalysisDepth: "quick"})
	deep := a.Analyze(query, Input{AnalysisDepth: "deep"})

	if deep.ComplexityScore <= quick.ComplexityScore {
		t.Errorf("deep (%f) should score above quick (%f)", deep.ComplexityScore, quick.ComplexityScore)
	}
	if deep.EstimatedOutputTokens <= quick.EstimatedOutputTokens {
		t.Error("deep analysis should estimate more output tokens than quick")
	}
}
