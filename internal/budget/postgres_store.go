package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore persists one row per budget period, keyed by period
// start. Breakdown maps travel as JSONB.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) PeriodStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context, now time.Time) (*Period, error) {
	query := `
		SELECT period_start, period_end, total_budget_usd, current_spend_usd,
		       spend_by_provider, spend_by_operation,
		       request_count, success_count, failure_count, circuit_breaker_active
		FROM budget_periods
		WHERE period_start <= $1 AND period_end > $1
		ORDER BY period_start DESC
		LIMIT 1
	`
	var (
		p           Period
		byProvider  []byte
		byOperation []byte
	)
	err := s.db.QueryRow(ctx, query, now).Scan(
		&p.Start, &p.End, &p.TotalBudgetUSD, &p.CurrentSpendUSD,
		&byProvider, &byOperation,
		&p.RequestCount, &p.SuccessCount, &p.FailureCount, &p.CircuitBreakerActive,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load budget period: %w", err)
	}

	p.SpendByProvider = make(map[string]float64)
	p.SpendByOperation = make(map[string]float64)
	if err := json.Unmarshal(byProvider, &p.SpendByProvider); err != nil {
		return nil, fmt.Errorf("failed to decode provider breakdown: %w", err)
	}
	if err := json.Unmarshal(byOperation, &p.SpendByOperation); err != nil {
		return nil, fmt.Errorf("failed to decode operation breakdown: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) Save(ctx context.Context, p *Period) error {
	byProvider, err := json.Marshal(p.SpendByProvider)
	if err != nil {
		return fmt.Errorf("failed to encode provider breakdown: %w", err)
	}
	byOperation, err := json.Marshal(p.SpendByOperation)
	if err != nil {
		return fmt.Errorf("failed to encode operation breakdown: %w", err)
	}

	query := `
		INSERT INTO budget_periods (
			period_start, period_end, total_budget_usd, current_spend_usd,
			spend_by_provider, spend_by_operation,
			request_count, success_count, failure_count, circuit_breaker_active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (period_start) DO UPDATE SET
			current_spend_usd = EXCLUDED.current_spend_usd,
			spend_by_provider = EXCLUDED.spend_by_provider,
			spend_by_operation = EXCLUDED.spend_by_operation,
			request_count = EXCLUDED.request_count,
			success_count = EXCLUDED.success_count,
			failure_count = EXCLUDED.failure_count,
			circuit_breaker_active = EXCLUDED.circuit_breaker_active
	`
	_, err = s.db.Exec(ctx, query,
		p.Start, p.End, p.TotalBudgetUSD, p.CurrentSpendUSD,
		byProvider, byOperation,
		p.RequestCount, p.SuccessCount, p.FailureCount, p.CircuitBreakerActive,
	)
	if err != nil {
		return fmt.Errorf("failed to save budget period: %w", err)
	}
	return nil
}
