package budget

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status is the usage tier of the active period.
type Status string

const (
	StatusNormal   Status = "normal"   // < 70% spent
	StatusWarning  Status = "warning"  // 70-85%
	StatusCritical Status = "critical" // 85-95%
	StatusExceeded Status = "exceeded" // >= 95%: admission closed
)

// Period is one budget window's mutable accounting record. All access
// goes through the ledger mutex.
type Period struct {
	Start                time.Time
	End                  time.Time
	TotalBudgetUSD       float64
	CurrentSpendUSD      float64
	SpendByProvider      map[string]float64
	SpendByOperation     map[string]float64
	RequestCount         int
	SuccessCount         int
	FailureCount         int
	CircuitBreakerActive bool
}

// Snapshot is the read-only view returned by GetStatus.
type Snapshot struct {
	PeriodStart     time.Time          `json:"period_start"`
	PeriodEnd       time.Time          `json:"period_end"`
	TotalBudgetUSD  float64            `json:"total_budget_usd"`
	CurrentSpendUSD float64            `json:"current_spend_usd"`
	UsagePercent    float64            `json:"usage_percent"`
	Status          Status             `json:"status"`
	SpendByProvider map[string]float64 `json:"spend_by_provider"`
	RequestCount    int                `json:"request_count"`
	SuccessCount    int                `json:"success_count"`
	FailureCount    int                `json:"failure_count"`
}

// PeriodStore durably persists period snapshots. Load returning
// (nil, nil) means no record covers now and a fresh period starts.
type PeriodStore interface {
	Load(ctx context.Context, now time.Time) (*Period, error)
	Save(ctx context.Context, p *Period) error
}

// Config is the ledger's tunable policy.
type Config struct {
	TotalBudgetUSD float64
	// Fraction of the budget at which admission closes. Default 0.95.
	HardCeilingPct float64
	// Optional soft share of the budget per provider, as a fraction.
	ProviderAllocations map[string]float64
	// Slack allowed over a provider's soft allocation. Default 0.05.
	AllocationBuffer float64
	// Minimum gap between repeated alerts for the same tier.
	AlertCooldown time.Duration
}

func (c *Config) applyDefaults() {
	if c.HardCeilingPct == 0 {
		c.HardCeilingPct = 0.95
	}
	if c.AllocationBuffer == 0 {
		c.AllocationBuffer = 0.05
	}
	if c.AlertCooldown == 0 {
		c.AlertCooldown = 15 * time.Minute
	}
}

// Ledger tracks spend against rolling monthly periods and gates
// admission. One instance is shared by every in-flight request; a
// single mutex guards each read-modify-write. The check made by
// CanAfford and the later RecordSpend are deliberately not one
// transaction: a slight overshoot under heavy concurrency is preferred
// over serialising all requests across provider calls.
type Ledger struct {
	mu        sync.Mutex
	cfg       Config
	store     PeriodStore // may be nil
	period    *Period
	loaded    bool
	lastAlert map[Status]time.Time
	logger    zerolog.Logger
	now       func() time.Time
}

func NewLedger(cfg Config, store PeriodStore, logger zerolog.Logger) *Ledger {
	cfg.applyDefaults()
	return &Ledger{
		cfg:       cfg,
		store:     store,
		lastAlert: make(map[Status]time.Time),
		logger:    logger,
		now:       time.Now,
	}
}

// CanAfford reports whether a request projected to cost estimatedCost
// may proceed. Fails closed: if current spend cannot be determined the
// request is rejected rather than spending unmetered. An empty provider
// skips the per-provider allocation check.
func (l *Ledger) CanAfford(ctx context.Context, estimatedCost float64, providerName string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.activePeriod(ctx)
	if err != nil {
		l.logger.Error().Err(err).Msg("budget state unavailable, refusing admission")
		return false
	}
	if p.TotalBudgetUSD <= 0 {
		return false
	}
	if p.CircuitBreakerActive {
		return false
	}

	projected := p.CurrentSpendUSD + estimatedCost
	if projected/p.TotalBudgetUSD >= l.cfg.HardCeilingPct {
		return false
	}

	if providerName != "" {
		if share, ok := l.cfg.ProviderAllocations[providerName]; ok {
			limit := share * p.TotalBudgetUSD * (1 + l.cfg.AllocationBuffer)
			if p.SpendByProvider[providerName]+estimatedCost > limit {
				return false
			}
		}
	}
	return true
}

// RecordSpend books a successful provider call: spend, per-provider and
// per-operation breakdowns, counters, tier recompute, alerting, and the
// period circuit breaker once the hard ceiling is crossed.
func (l *Ledger) RecordSpend(ctx context.Context, costUSD float64, providerName, operation string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.activePeriod(ctx)
	if err != nil {
		l.logger.Error().Err(err).Float64("cost_usd", costUSD).Msg("budget state unavailable, spend not recorded")
		return
	}

	p.CurrentSpendUSD += costUSD
	p.SpendByProvider[providerName] += costUSD
	p.SpendByOperation[operation] += costUSD
	p.RequestCount++
	p.SuccessCount++

	usage := p.CurrentSpendUSD / p.TotalBudgetUSD
	if usage >= l.cfg.HardCeilingPct {
		p.CircuitBreakerActive = true
	}
	l.maybeAlert(statusFor(usage), usage)
	l.persist(ctx, p)
}

// RecordFailure counts a request whose provider attempts all failed.
// No spend is booked; failed calls cost nothing.
func (l *Ledger) RecordFailure(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.activePeriod(ctx)
	if err != nil {
		return
	}
	p.RequestCount++
	p.FailureCount++
	l.persist(ctx, p)
}

// GetStatus returns a point-in-time view of the active period.
func (l *Ledger) GetStatus(ctx context.Context) Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.activePeriod(ctx)
	if err != nil {
		return Snapshot{Status: StatusExceeded}
	}

	usage := 0.0
	if p.TotalBudgetUSD > 0 {
		usage = p.CurrentSpendUSD / p.TotalBudgetUSD
	}
	byProvider := make(map[string]float64, len(p.SpendByProvider))
	for k, v := range p.SpendByProvider {
		byProvider[k] = v
	}
	return Snapshot{
		PeriodStart:     p.Start,
		PeriodEnd:       p.End,
		TotalBudgetUSD:  p.TotalBudgetUSD,
		CurrentSpendUSD: p.CurrentSpendUSD,
		UsagePercent:    usage * 100,
		Status:          statusFor(usage),
		SpendByProvider: byProvider,
		RequestCount:    p.RequestCount,
		SuccessCount:    p.SuccessCount,
		FailureCount:    p.FailureCount,
	}
}

// ResetCircuitBreaker clears the hard stop inside the current period.
// Intended for operator use after a budget raise.
func (l *Ledger) ResetCircuitBreaker() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.period != nil {
		l.period.CircuitBreakerActive = false
	}
}

// activePeriod returns the period covering now, loading from the store
// on first use and rolling over at period boundaries. Callers hold the
// mutex.
func (l *Ledger) activePeriod(ctx context.Context) (*Period, error) {
	now := l.now()

	if !l.loaded && l.store != nil {
		p, err := l.store.Load(ctx, now)
		if err != nil {
			return nil, err
		}
		if p != nil {
			l.period = p
		}
	}
	l.loaded = true

	if l.period == nil || !now.Before(l.period.End) {
		l.period = l.newPeriod(now)
	}
	return l.period, nil
}

func (l *Ledger) newPeriod(now time.Time) *Period {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return &Period{
		Start:            start,
		End:              start.AddDate(0, 1, 0),
		TotalBudgetUSD:   l.cfg.TotalBudgetUSD,
		SpendByProvider:  make(map[string]float64),
		SpendByOperation: make(map[string]float64),
	}
}

// maybeAlert raises one alert per tier crossing, suppressed within the
// cooldown so a burst of requests does not produce an alert storm.
// Callers hold the mutex.
func (l *Ledger) maybeAlert(status Status, usage float64) {
	if status == StatusNormal {
		return
	}
	now := l.now()
	if last, ok := l.lastAlert[status]; ok && now.Sub(last) < l.cfg.AlertCooldown {
		return
	}
	l.lastAlert[status] = now
	l.logger.Warn().
		Str("budget_status", string(status)).
		Float64("usage_percent", usage*100).
		Msg("budget threshold crossed")
}

func (l *Ledger) persist(ctx context.Context, p *Period) {
	if l.store == nil {
		return
	}
	if err := l.store.Save(ctx, p); err != nil {
		l.logger.Error().Err(err).Msg("failed to persist budget period")
	}
}

func statusFor(usage float64) Status {
	switch {
	case usage >= 0.95:
		return StatusExceeded
	case usage >= 0.85:
		return StatusCritical
	case usage >= 0.70:
		return StatusWarning
	default:
		return StatusNormal
	}
}
