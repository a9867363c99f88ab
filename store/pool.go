// Package store is the transactional relational store for the
// sales-sync engine: connection pooling, schema bootstrap,
// transactions, and typed error classification on top of pgx.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgx connection pool with the operations the sync
// pipeline needs: Exec, Transact, HealthCheck, and Pool for direct
// queries. There is no separate batch method; statements that must
// commit together run inside Transact.
type Store struct {
	pool            *pgxpool.Pool
	acquireTimeout  time.Duration
}

// Config configures pool sizing and acquisition behavior.
type Config struct {
	DatabaseURL    string
	MaxConns       int
	AcquireTimeout time.Duration
}

// Open establishes the connection pool and verifies connectivity.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse DATABASE_URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.AcquireTimeout > 0 {
		poolCfg.HealthCheckPeriod = cfg.AcquireTimeout * 6
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", classify(err))
	}

	timeout := cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	s := &Store{pool: pool, acquireTimeout: timeout}
	if err := s.HealthCheck(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// HealthCheck verifies the pool can reach the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("store: health check: %w", classify(err))
	}
	return nil
}

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// calling code can run inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Pool exposes the underlying querier for packages that need direct
// access (task claim, batch upserts).
func (s *Store) Pool() Querier { return s.pool }

// Exec runs a single statement outside an explicit transaction.
func (s *Store) Exec(ctx context.Context, sql string, args ...interface{}) error {
	_, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return classify(err)
	}
	return nil
}

// Transact runs fn inside a single transaction, committing on success
// and rolling back on any error (including a panic, which is re-raised
// after rollback).
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, q Querier) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// classify maps pgx/pgconn errors onto the store's error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503", "23514": // unique_violation, fk_violation, check_violation
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrIO, err)
}
