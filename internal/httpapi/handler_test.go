package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/ashish-admin/stratech-orchestrator/internal/analyzer"
	"github.com/ashish-admin/stratech-orchestrator/internal/breaker"
	"github.com/ashish-admin/stratech-orchestrator/internal/budget"
	"github.com/ashish-admin/stratech-orchestrator/internal/engine"
	"github.com/ashish-admin/stratech-orchestrator/internal/provider"
	"github.com/ashish-admin/stratech-orchestrator/internal/quality"
	"github.com/ashish-admin/stratech-orchestrator/internal/routing"
)

type okGateway struct{}

func (okGateway) Invoke(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	return &provider.Result{
		Content:      "ward analysis content",
		InputTokens:  100,
		OutputTokens: 200,
		Provider:     "mock",
	}, nil
}
func (okGateway) Name() string                { return "mock" }
func (okGateway) CostPerInputToken() float64  { return 0.000001 }
func (okGateway) CostPerOutputToken() float64 { return 0.000002 }

func newTestHandler(budgetUSD float64) *Handler {
	ledger := budget.NewLedger(budget.Config{TotalBudgetUSD: budgetUSD}, nil, zerolog.Nop())
	eng := engine.New(
		engine.DefaultConfig(),
		analyzer.New(analyzer.DefaultWeights()),
		routing.NewPolicy([]routing.Capability{{Name: "mock", CostEffectiveness: 1, Quality: 1, Speed: 1}}),
		breaker.NewRegistry([]string{"mock"}, breaker.DefaultConfig(), zerolog.Nop()),
		ledger,
		provider.NewRegistry(okGateway{}),
		quality.NewValidator(quality.DefaultAssessWeights()),
		quality.NewHistory(),
		nil,
		otel.Tracer("test"),
		zerolog.Nop(),
	)
	// nil limiter: rate limiting is exercised against a live Redis, not here.
	return NewHandler(eng, ledger, nil, zerolog.Nop())
}

func TestHandleAnalysis_OK(t *testing.T) {
	h := newTestHandler(100)

	body := `{"query":"What is the sentiment in Ward 12?","analysis_depth":"quick"}`
	req := httptest.NewRequest("POST", "/v1/analysis", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.HandleAnalysis(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res engine.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if res.Content != "ward analysis content" {
		t.Errorf("Unexpected content: %q", res.Content)
	}
	if res.ProviderUsed != "mock" {
		t.Errorf("Unexpected provider: %q", res.ProviderUsed)
	}
}

func TestHandleAnalysis_MissingQuery(t *testing.T) {
	h := newTestHandler(100)

	req := httptest.NewRequest("POST", "/v1/analysis", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	h.HandleAnalysis(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing query, got %d", w.Code)
	}
}

func TestHandleAnalysis_InvalidBody(t *testing.T) {
	h := newTestHandler(100)

	req := httptest.NewRequest("POST", "/v1/analysis", strings.NewReader("not json"))
	w := httptest.NewRecorder()

	h.HandleAnalysis(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid body, got %d", w.Code)
	}
}

func TestHandleAnalysis_BudgetExceededStatusCode(t *testing.T) {
	h := newTestHandler(100)
	h.ledger.RecordSpend(context.Background(), 96, "mock", "primary")

	body := `{"query":"What is the sentiment in Ward 12?"}`
	req := httptest.NewRequest("POST", "/v1/analysis", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.HandleAnalysis(w, req)
	if w.Code != http.StatusPaymentRequired {
		t.Errorf("Expected 402 when the budget gate refuses, got %d", w.Code)
	}
}

func TestHandleBudgetStatus(t *testing.T) {
	h := newTestHandler(100)

	req := httptest.NewRequest("GET", "/v1/budget", nil)
	w := httptest.NewRecorder()

	h.HandleBudgetStatus(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var snap budget.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Invalid snapshot JSON: %v", err)
	}
	if snap.TotalBudgetUSD != 100 {
		t.Errorf("Expected total budget 100, got %f", snap.TotalBudgetUSD)
	}
}
