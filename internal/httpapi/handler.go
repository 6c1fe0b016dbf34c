package httpapi

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ashish-admin/stratech-orchestrator/internal/budget"
	"github.com/ashish-admin/stratech-orchestrator/internal/engine"
	"github.com/ashish-admin/stratech-orchestrator/pkg/ratelimit"
)

// Handler is the thin HTTP boundary over the orchestration core. All
// orchestration decisions live in the engine; this layer only decodes,
// rate-limits, and encodes.
type Handler struct {
	engine  *engine.Engine
	ledger  *budget.Ledger
	limiter *ratelimit.Limiter
	logger  zerolog.Logger
}

func NewHandler(eng *engine.Engine, ledger *budget.Ledger, limiter *ratelimit.Limiter, logger zerolog.Logger) *Handler {
	return &Handler{
		engine:  eng,
		ledger:  ledger,
		limiter: limiter,
		logger:  logger,
	}
}

type analysisRequest struct {
	Query               string  `json:"query"`
	WardContext         string  `json:"ward_context,omitempty"`
	RegionContext       string  `json:"region_context,omitempty"`
	AnalysisDepth       string  `json:"analysis_depth,omitempty"`
	StrategicContext    string  `json:"strategic_context,omitempty"`
	Priority            string  `json:"priority,omitempty"`
	EnableConsensus     bool    `json:"enable_consensus,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
}

func (h *Handler) HandleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	if h.limiter != nil {
		caller := callerKey(r)
		allowed, err := h.limiter.Allow(r.Context(), caller, estimateRequestTokens(req.Query))
		if err != nil || !allowed {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":       "rate limit exceeded",
				"retry_after": "60s",
			})
			return
		}
	}

	result, err := h.engine.Generate(r.Context(), req.Query, engine.Options{
		WardContext:         req.WardContext,
		RegionContext:       req.RegionContext,
		AnalysisDepth:       req.AnalysisDepth,
		StrategicContext:    req.StrategicContext,
		Priority:            req.Priority,
		EnableConsensus:     req.EnableConsensus,
		ConfidenceThreshold: req.ConfidenceThreshold,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("orchestration fault")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if result.Status == engine.StatusBudgetExceeded {
		status = http.StatusPaymentRequired
	}
	writeJSON(w, status, result)
}

func (h *Handler) HandleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.GetStatus(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func callerKey(r *http.Request) string {
	if caller := r.Header.Get("X-Caller-ID"); caller != "" {
		return caller
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// estimateRequestTokens is a coarse pre-admission guess; the engine
// does the precise estimation after analysis.
func estimateRequestTokens(query string) int {
	tokens := len(query) / 4
	if tokens < 100 {
		tokens = 100
	}
	return tokens
}
