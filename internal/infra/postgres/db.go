// Package postgres implements the account and transaction stores on a
// PostgreSQL database via pgx. All calls go through a shared circuit
// breaker so a failing database trips fast instead of stacking timeouts.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"

	"github.com/ledgerline/importd/internal/domain"
	"github.com/ledgerline/importd/internal/infra/resilience"
)

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

// Connect opens a connection pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return pool, nil
}

// DB bundles the pool with the shared circuit breaker.
type DB struct {
	pool    *pgxpool.Pool
	breaker *gobreaker.CircuitBreaker
}

// NewDB wraps an existing pool.
func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{
		pool:    pool,
		breaker: resilience.NewCircuitBreaker("postgres"),
	}
}

// Close releases the underlying pool.
func (db *DB) Close() {
	db.pool.Close()
}

// execute runs fn through the circuit breaker and translates breaker and
// driver errors into domain errors.
func (db *DB) execute(fn func() (any, error)) (any, error) {
	result, err := db.breaker.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.ErrCircuitOpen{Service: "postgres"}
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, &domain.ErrDuplicate{Key: pgErr.ConstraintName}
		}
		return nil, err
	}
	return result, nil
}
