package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashish-admin/stratech-orchestrator/internal/analyzer"
	"github.com/ashish-admin/stratech-orchestrator/internal/audit"
	"github.com/ashish-admin/stratech-orchestrator/internal/breaker"
	"github.com/ashish-admin/stratech-orchestrator/internal/budget"
	"github.com/ashish-admin/stratech-orchestrator/internal/provider"
	"github.com/ashish-admin/stratech-orchestrator/internal/quality"
	"github.com/ashish-admin/stratech-orchestrator/internal/routing"
)

// Status is the outcome class of one Generate call. Budget and
// availability outcomes are results, not errors: the caller always
// receives a well-formed result object.
type Status string

const (
	StatusOK                      Status = "ok"
	StatusBudgetExceeded          Status = "budget_exceeded"
	StatusAllProvidersUnavailable Status = "all_providers_unavailable"
	StatusFallback                Status = "fallback"
)

// Options are the caller-supplied knobs for one request.
type Options struct {
	WardContext         string
	RegionContext       string
	AnalysisDepth       string // "quick", "standard", "deep"
	StrategicContext    string // "defensive", "neutral", "offensive"
	Priority            string // "urgent", "high", "normal", "low"
	EnableConsensus     bool
	ConfidenceThreshold float64
}

// TokenUsage splits token spend by direction.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Result is what the caller receives for every request, including the
// degraded paths.
type Result struct {
	RequestID    string             `json:"request_id"`
	Status       Status             `json:"status"`
	Content      string             `json:"content"`
	ProviderUsed string             `json:"provider_used,omitempty"`
	Tokens       TokenUsage         `json:"tokens_used"`
	CostUSD      float64            `json:"cost_usd"`
	LatencyMs    int64              `json:"latency_ms"`
	QualityScore float64            `json:"quality_score"`
	Confidence   quality.Confidence `json:"confidence_metrics"`
	ErrorDetail  string             `json:"error_detail,omitempty"`
	Profile      analyzer.Profile   `json:"-"`
}

// Config tunes per-attempt deadlines and degraded-path scoring.
type Config struct {
	// Ceiling for any single provider attempt.
	MaxAttemptTimeout time.Duration
	// Attempt timeout for urgent-tier requests.
	UrgentAttemptTimeout time.Duration
	// Deadline for the optional consensus call.
	ConsensusTimeout time.Duration
	// Output token cap for the consensus call; it only needs enough
	// text to measure agreement.
	ConsensusMaxTokens int
	// Fixed confidence attached to fallback responses.
	FallbackConfidence float64
}

func DefaultConfig() Config {
	return Config{
		MaxAttemptTimeout:    45 * time.Second,
		UrgentAttemptTimeout: 15 * time.Second,
		ConsensusTimeout:     20 * time.Second,
		ConsensusMaxTokens:   512,
		FallbackConfidence:   0.2,
	}
}

// Engine coordinates one request end to end: analyze, admit, route,
// fall back sequentially across providers, score, and account. All
// collaborators are injected; the engine holds no mutable state of its
// own, so one instance serves every concurrent request.
type Engine struct {
	cfg       Config
	analyzer  *analyzer.Analyzer
	policy    *routing.Policy
	breakers  *breaker.Registry
	ledger    *budget.Ledger
	gateways  provider.Registry
	validator *quality.Validator
	history   *quality.History
	sink      audit.Sink
	tracer    trace.Tracer
	logger    zerolog.Logger
}

func New(
	cfg Config,
	an *analyzer.Analyzer,
	policy *routing.Policy,
	breakers *breaker.Registry,
	ledger *budget.Ledger,
	gateways provider.Registry,
	validator *quality.Validator,
	history *quality.History,
	sink audit.Sink,
	tracer trace.Tracer,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		cfg:       cfg,
		analyzer:  an,
		policy:    policy,
		breakers:  breakers,
		ledger:    ledger,
		gateways:  gateways,
		validator: validator,
		history:   history,
		sink:      sink,
		tracer:    tracer,
		logger:    logger,
	}
}

// Generate runs the full orchestration for one query. The returned
// error is reserved for configuration faults (no providers registered);
// every runtime condition, including exhausted budgets and dead
// providers, comes back as a Result status.
func (e *Engine) Generate(ctx context.Context, query string, opts Options) (res *Result, err error) {
	requestID := uuid.New().String()

	// Last line of defense: a programming fault anywhere below becomes a
	// degraded result with errorDetail, never a raw panic to the caller.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Str("request_id", requestID).Msg("orchestration fault")
			res = e.fallbackResult(requestID, analyzer.Profile{}, opts, StatusFallback,
				fmt.Sprintf("internal fault: %v", r))
			err = nil
		}
	}()

	ctx, span := e.tracer.Start(ctx, "engine.generate")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", requestID))

	profile := e.analyzer.Analyze(query, analyzer.Input{
		AnalysisDepth: opts.AnalysisDepth,
		Priority:      opts.Priority,
	})
	span.SetAttributes(
		attribute.String("tier", string(profile.Tier)),
		attribute.Float64("complexity", profile.ComplexityScore),
	)

	chain := e.policy.Route(profile)
	if len(chain) == 0 {
		return nil, errors.New("no providers configured")
	}

	// Admission gate: estimated against the most-preferred provider's
	// rates. Rejected requests never touch a provider.
	estimated := e.estimateCost(chain[0], profile)
	if !e.ledger.CanAfford(ctx, estimated, chain[0]) {
		e.logger.Warn().
			Str("request_id", requestID).
			Float64("estimated_cost_usd", estimated).
			Msg("request rejected by budget gate")
		e.ledger.RecordFailure(ctx)
		return e.budgetExceededResult(requestID, profile), nil
	}

	available := make([]string, 0, len(chain))
	for _, name := range chain {
		if e.breakers.IsAvailable(name) {
			available = append(available, name)
		}
	}
	if len(available) == 0 {
		// The preference order exists; every candidate is circuit-open.
		e.ledger.RecordFailure(ctx)
		res := e.fallbackResult(requestID, profile, opts, StatusAllProvidersUnavailable,
			"all providers circuit-open")
		e.append(ctx, &audit.Record{
			RequestID:   requestID,
			Operation:   "primary",
			Status:      audit.StatusFallback,
			ErrorDetail: "all providers circuit-open",
		})
		return res, nil
	}

	res = e.runChain(ctx, requestID, query, profile, opts, available)
	return res, nil
}

// runChain attempts each available provider in order; first success
// wins. Remaining attempts are abandoned when the caller's deadline
// expires.
func (e *Engine) runChain(ctx context.Context, requestID, query string, profile analyzer.Profile, opts Options, chain []string) *Result {
	var lastDetail string

	for _, name := range chain {
		if ctx.Err() != nil {
			lastDetail = fmt.Sprintf("caller deadline expired: %v", ctx.Err())
			break
		}

		gw, ok := e.gateways.Get(name)
		if !ok {
			continue
		}

		res, rec, err := e.attempt(ctx, requestID, query, profile, opts, gw, "primary")
		e.append(ctx, rec)

		if err != nil {
			e.breakers.RecordFailure(name)
			e.history.Record(name, false)
			lastDetail = rec.ErrorDetail
			e.logger.Warn().
				Str("request_id", requestID).
				Str("provider", name).
				Str("status", string(rec.Status)).
				Msg("provider attempt failed, falling through")
			continue
		}

		e.breakers.RecordSuccess(name)
		e.history.Record(name, true)
		e.ledger.RecordSpend(ctx, res.CostUSD, name, "primary")

		e.finishSuccess(ctx, requestID, query, profile, opts, res)
		return res
	}

	// Chain exhausted.
	e.ledger.RecordFailure(ctx)
	out := e.fallbackResult(requestID, profile, opts, StatusFallback, lastDetail)
	e.append(ctx, &audit.Record{
		RequestID:   requestID,
		Operation:   "primary",
		Status:      audit.StatusFallback,
		ErrorDetail: lastDetail,
	})
	return out
}

// attempt invokes one gateway under a bounded deadline and builds both
// the provisional result and the audit record for the call.
func (e *Engine) attempt(ctx context.Context, requestID, query string, profile analyzer.Profile, opts Options, gw provider.Gateway, operation string) (*Result, *audit.Record, error) {
	timeout := e.attemptTimeout(profile)
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := e.tracer.Start(attemptCtx, "engine.attempt")
	defer span.End()
	span.SetAttributes(attribute.String("provider", gw.Name()))

	start := time.Now()
	pres, err := gw.Invoke(ctx, &provider.Request{
		Query:        query,
		SystemPrompt: systemPrompt(opts),
		MaxTokens:    profile.EstimatedOutputTokens,
		Temperature:  0.4,
		RequestID:    requestID,
	})
	latency := time.Since(start).Milliseconds()

	rec := &audit.Record{
		RequestID: requestID,
		Provider:  gw.Name(),
		Operation: operation,
		LatencyMs: latency,
	}

	if err != nil {
		rec.Status = audit.StatusError
		if errors.Is(err, context.DeadlineExceeded) {
			rec.Status = audit.StatusTimeout
		}
		rec.ErrorDetail = err.Error()
		return nil, rec, err
	}

	cost := provider.EstimateCost(gw, pres.InputTokens, pres.OutputTokens)
	score := e.assess(query, pres.Content, opts)

	rec.Status = audit.StatusSuccess
	rec.TokensUsed = pres.InputTokens + pres.OutputTokens
	rec.CostUSD = cost
	rec.QualityScore = score

	span.SetAttributes(
		attribute.Float64("cost_usd", cost),
		attribute.Int64("latency_ms", latency),
	)

	return &Result{
		RequestID:    requestID,
		Status:       StatusOK,
		Content:      pres.Content,
		ProviderUsed: gw.Name(),
		Tokens:       TokenUsage{Input: pres.InputTokens, Output: pres.OutputTokens},
		CostUSD:      cost,
		LatencyMs:    latency,
		QualityScore: score,
		Profile:      profile,
	}, rec, nil
}

// finishSuccess computes confidence and, when warranted, runs the
// consensus call. Consensus runs after the primary completes, never
// concurrently, so spend accounting stays predictable.
func (e *Engine) finishSuccess(ctx context.Context, requestID, query string, profile analyzer.Profile, opts Options, res *Result) {
	res.Confidence = e.validator.EvaluateConfidence(
		res.QualityScore,
		e.history.SuccessRate(res.ProviderUsed),
		false,
	)

	if !opts.EnableConsensus {
		return
	}
	belowCallerThreshold := opts.ConfidenceThreshold > 0 && res.Confidence.Overall < opts.ConfidenceThreshold
	if !belowCallerThreshold && !quality.ShouldConsensus(profile, res.Confidence.Overall) {
		return
	}
	agreement, ok := e.consensusAgreement(ctx, requestID, query, profile, opts, res)
	if ok {
		res.Confidence = quality.ApplyConsensus(res.Confidence, agreement)
	}
}

// consensusAgreement issues one bounded call to a second provider
// purely to measure agreement with the primary content.
func (e *Engine) consensusAgreement(ctx context.Context, requestID, query string, profile analyzer.Profile, opts Options, primary *Result) (float64, bool) {
	for _, name := range e.policy.ConsensusCandidates(primary.ProviderUsed) {
		if !e.breakers.IsAvailable(name) {
			continue
		}
		gw, ok := e.gateways.Get(name)
		if !ok {
			continue
		}

		estimated := e.estimateCost(name, profile)
		if !e.ledger.CanAfford(ctx, estimated, name) {
			return 0, false
		}

		callCtx, cancel := context.WithTimeout(ctx, e.cfg.ConsensusTimeout)
		start := time.Now()
		pres, err := gw.Invoke(callCtx, &provider.Request{
			Query:        query,
			SystemPrompt: systemPrompt(opts),
			MaxTokens:    e.cfg.ConsensusMaxTokens,
			Temperature:  0.4,
			RequestID:    requestID,
		})
		cancel()
		latency := time.Since(start).Milliseconds()

		rec := &audit.Record{
			RequestID: requestID,
			Provider:  name,
			Operation: "consensus",
			LatencyMs: latency,
		}
		if err != nil {
			e.breakers.RecordFailure(name)
			e.history.Record(name, false)
			rec.Status = audit.StatusError
			if errors.Is(err, context.DeadlineExceeded) {
				rec.Status = audit.StatusTimeout
			}
			rec.ErrorDetail = err.Error()
			e.append(ctx, rec)
			continue
		}

		e.breakers.RecordSuccess(name)
		e.history.Record(name, true)

		cost := provider.EstimateCost(gw, pres.InputTokens, pres.OutputTokens)
		e.ledger.RecordSpend(ctx, cost, name, "consensus")
		primary.CostUSD += cost
		primary.Tokens.Input += pres.InputTokens
		primary.Tokens.Output += pres.OutputTokens

		agreement := quality.Agreement(primary.Content, pres.Content)
		rec.Status = audit.StatusSuccess
		rec.TokensUsed = pres.InputTokens + pres.OutputTokens
		rec.CostUSD = cost
		e.append(ctx, rec)
		return agreement, true
	}
	return 0, false
}

// assess never lets a scoring fault break the request: panics degrade
// to a neutral mid-range score.
func (e *Engine) assess(query, content string, opts Options) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Msg("quality assessment fault, using neutral score")
			score = 0.5
		}
	}()
	return e.validator.Assess(query, content, opts.AnalysisDepth)
}

func (e *Engine) attemptTimeout(profile analyzer.Profile) time.Duration {
	if profile.Tier == analyzer.TierUrgent {
		return e.cfg.UrgentAttemptTimeout
	}
	return e.cfg.MaxAttemptTimeout
}

func (e *Engine) estimateCost(providerName string, profile analyzer.Profile) float64 {
	gw, ok := e.gateways.Get(providerName)
	if !ok {
		return 0
	}
	return provider.EstimateCost(gw, profile.EstimatedInputTokens, profile.EstimatedOutputTokens)
}

func (e *Engine) budgetExceededResult(requestID string, profile analyzer.Profile) *Result {
	return &Result{
		RequestID: requestID,
		Status:    StatusBudgetExceeded,
		Content: "Analysis is temporarily paused because the AI budget for the " +
			"current period has been reached. Cached reports remain available; " +
			"full analysis resumes when the budget period rolls over.",
		QualityScore: 0,
		Confidence:   quality.Confidence{Overall: 0},
		ErrorDetail:  "budget exceeded",
		Profile:      profile,
	}
}

func (e *Engine) fallbackResult(requestID string, profile analyzer.Profile, opts Options, status Status, detail string) *Result {
	scope := "the requested area"
	if opts.WardContext != "" {
		scope = opts.WardContext
	} else if opts.RegionContext != "" {
		scope = opts.RegionContext
	}
	return &Result{
		RequestID: requestID,
		Status:    status,
		Content: fmt.Sprintf("AI analysis for %s is temporarily degraded: no "+
			"provider could complete the request. This is a reduced-service "+
			"response; retry shortly for a full analysis.", scope),
		QualityScore: 0,
		Confidence:   quality.Confidence{Overall: e.cfg.FallbackConfidence},
		ErrorDetail:  detail,
		Profile:      profile,
	}
}

func (e *Engine) append(ctx context.Context, rec *audit.Record) {
	if e.sink == nil || rec == nil {
		return
	}
	if err := e.sink.Append(ctx, rec); err != nil {
		e.logger.Error().Err(err).Str("request_id", rec.RequestID).Msg("failed to append execution record")
	}
}

func systemPrompt(opts Options) string {
	prompt := "You are a political intelligence analyst. Ground every claim in the provided context and stay neutral in tone."
	if opts.WardContext != "" {
		prompt += " Focus on ward: " + opts.WardContext + "."
	}
	if opts.RegionContext != "" {
		prompt += " Region: " + opts.RegionContext + "."
	}
	switch opts.StrategicContext {
	case "defensive":
		prompt += " Frame findings around risk mitigation."
	case "offensive":
		prompt += " Frame findings around opportunities."
	}
	return prompt
}
