package provider

import (
	"context"
	"sort"
)

// Request is the uniform invocation payload handed to every gateway.
// The orchestration engine builds one per attempt; gateways never see
// routing or budget state.
type Request struct {
	Query        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	RequestID    string
}

// Result is what a gateway returns on a successful invocation.
type Result struct {
	ID           string
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	Provider     string
}

// Gateway is the uniform capability for one named AI provider. Deadline
// bounding is the caller's responsibility via ctx.
type Gateway interface {
	Invoke(ctx context.Context, req *Request) (*Result, error)
	Name() string
	CostPerInputToken() float64 // USD per 1 token
	CostPerOutputToken() float64
}

// Registry maps provider names to gateway instances. Built once at
// startup; read-only afterwards, so safe for concurrent use.
type Registry map[string]Gateway

func NewRegistry(gateways ...Gateway) Registry {
	r := make(Registry, len(gateways))
	for _, g := range gateways {
		r[g.Name()] = g
	}
	return r
}

func (r Registry) Get(name string) (Gateway, bool) {
	g, ok := r[name]
	return g, ok
}

func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EstimateCost projects the USD cost of a call against one gateway given
// estimated token counts.
func EstimateCost(g Gateway, inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*g.CostPerInputToken() + float64(outputTokens)*g.CostPerOutputToken()
}
