package provider

import (
	"context"
	"reflect"
	"testing"
)

type staticGateway struct {
	name    string
	inCost  float64
	outCost float64
}

func (g *staticGateway) Invoke(ctx context.Context, req *Request) (*Result, error) {
	return &Result{Content: "ok", Provider: g.name}, nil
}
func (g *staticGateway) Name() string                { return g.name }
func (g *staticGateway) CostPerInputToken() float64  { return g.inCost }
func (g *staticGateway) CostPerOutputToken() float64 { return g.outCost }

func TestRegistry_GetAndNames(t *testing.T) {
	r := NewRegistry(
		&staticGateway{name: "openai"},
		&staticGateway{name: "claude"},
	)

	if _, ok := r.Get("openai"); !ok {
		t.Fatal("Expected openai to be registered")
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatal("Unregistered providers must not resolve")
	}

	want := []string{"claude", "openai"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected sorted names %v, got %v", want, got)
	}
}

func TestEstimateCost(t *testing.T) {
	g := &staticGateway{inCost: 0.000001, outCost: 0.000002}

	got := EstimateCost(g, 1000, 500)
	want := 0.001 + 0.001
	if got != want {
		t.Errorf("Expected %f, got %f", want, got)
	}
}
