package audit

import (
	"context"
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

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) Sink {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO execution_records (
			request_id, provider, operation, tokens_used, cost_usd,
			latency_ms, quality_score, status, error_detail
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err := s.db.QueryRow(ctx, query,
		rec.RequestID, rec.Provider, rec.Operation, rec.TokensUsed, rec.CostUSD,
		rec.LatencyMs, rec.QualityScore, rec.Status, rec.ErrorDetail,
	).Scan(&rec.ID, &rec.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to append execution record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ProviderSuccessRates(ctx context.Context, since time.Time) (map[string]float64, error) {
	query := `
		SELECT provider,
		       AVG(CASE WHEN status = 'success' THEN 1.0 ELSE 0.0 END)
		FROM execution_records
		WHERE created_at >= $1 AND provider <> ''
		GROUP BY provider
	`
	rows, err := s.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query success rates: %w", err)
	}
	defer rows.Close()

	rates := make(map[string]float64)
	for rows.Next() {
		var provider string
		var rate float64
		if err := rows.Scan(&provider, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan success rate: %w", err)
		}
		rates[provider] = rate
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating success rates: %w", err)
	}
	return rates, nil
}
