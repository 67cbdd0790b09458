package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgx-contrib/pgxtrace"

	"github.com/mpapenbr/portion-tracker-go/log"
)

type PoolConfigOption func(cfg *pgxpool.Config)

// WithTracer logs every statement on debug level
func WithTracer(logger *log.Logger) PoolConfigOption {
	return func(cfg *pgxpool.Config) {
		addTracer(cfg, &queryTracer{log: logger})
	}
}

// WithTelemetry creates otel spans for statements
func WithTelemetry() PoolConfigOption {
	return func(cfg *pgxpool.Config) {
		addTracer(cfg, otelpgx.NewTracer())
	}
}

func addTracer(cfg *pgxpool.Config, t pgx.QueryTracer) {
	switch existing := cfg.ConnConfig.Tracer.(type) {
	case nil:
		cfg.ConnConfig.Tracer = pgxtrace.CompositeQueryTracer{t}
	case pgxtrace.CompositeQueryTracer:
		cfg.ConnConfig.Tracer = append(existing, t)
	default:
		cfg.ConnConfig.Tracer = pgxtrace.CompositeQueryTracer{existing, t}
	}
}

func WithMaxConns(n int32) PoolConfigOption {
	return func(cfg *pgxpool.Config) {
		cfg.MaxConns = n
	}
}

// InitWithURL creates a connection pool and verifies it with a ping.
//
//nolint:whitespace // can't make both editor and linter happy
func InitWithURL(
	ctx context.Context,
	url string,
	opts ...PoolConfigOption,
) (*pgxpool.Pool, error) {
	dbConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	for _, opt := range opts {
		opt(dbConfig)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create the database pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to get a valid database connection: %w", err)
	}
	return pool, nil
}

type queryTracer struct {
	log *log.Logger
}

type traceStartKey struct{}

//nolint:whitespace // can't make both editor and linter happy
func (tracer *queryTracer) TraceQueryStart(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceQueryStartData,
) context.Context {
	tracer.log.Debug("Executing", log.String("sql", data.SQL), log.Any("args", data.Args))
	return context.WithValue(ctx, traceStartKey{}, time.Now())
}

//nolint:whitespace // can't make both editor and linter happy
func (tracer *queryTracer) TraceQueryEnd(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceQueryEndData,
) {
	fields := []log.Field{log.String("tag", data.CommandTag.String())}
	if start, ok := ctx.Value(traceStartKey{}).(time.Time); ok {
		fields = append(fields, log.Duration("took", time.Since(start)))
	}
	if data.Err != nil {
		tracer.log.Warn("Query failed", append(fields, log.ErrorField(data.Err))...)
		return
	}
	tracer.log.Debug("Executed", fields...)
}
