package audit

import (
	"context"
	"time"
)

// RecordStatus classifies the outcome of one provider attempt.
type RecordStatus string

const (
	StatusSuccess  RecordStatus = "success"
	StatusError    RecordStatus = "error"
	StatusTimeout  RecordStatus = "timeout"
	StatusFallback RecordStatus = "fallback" // synthetic record: no provider answered
)

// Record is the append-only audit entry for one attempted provider
// call. Written once, never mutated.
type Record struct {
	ID           string
	RequestID    string
	Provider     string
	Operation    string // "primary" or "consensus"
	TokensUsed   int
	CostUSD      float64
	LatencyMs    int64
	QualityScore float64
	Status       RecordStatus
	ErrorDetail  string
	CreatedAt    time.Time
}

// Sink durably appends execution records and answers the historical
// queries the confidence scorer needs.
type Sink interface {
	Append(ctx context.Context, rec *Record) error
	// ProviderSuccessRates returns, per provider, the fraction of
	// records since the cutoff with status success.
	ProviderSuccessRates(ctx context.Context, since time.Time) (map[string]float64, error)
}
