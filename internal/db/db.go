package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/susu3304/bidgame/internal/guess"
)

// DB is a PostgreSQL-backed guess.Store.
type DB struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// RunMigrations creates the tables if they do not exist yet.
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rounds (
			id BIGINT PRIMARY KEY,
			owner TEXT NOT NULL,
			stake BIGINT NOT NULL CHECK (stake > 0),
			created_at TIMESTAMPTZ NOT NULL,
			participant_limit INTEGER NOT NULL DEFAULT 0,
			joiners INTEGER NOT NULL DEFAULT 0,
			settled BOOLEAN NOT NULL DEFAULT FALSE,
			target_number INTEGER NOT NULL DEFAULT 0,
			pool BIGINT NOT NULL,
			paid BIGINT NOT NULL DEFAULT 0,
			winner_count INTEGER NOT NULL DEFAULT 0,
			CHECK (paid <= pool)
		);
		CREATE INDEX IF NOT EXISTS idx_rounds_created_at ON rounds(created_at);

		CREATE TABLE IF NOT EXISTS bids (
			seq BIGSERIAL UNIQUE,
			round_id BIGINT NOT NULL REFERENCES rounds(id),
			bidder TEXT NOT NULL,
			guess INTEGER NOT NULL CHECK (guess BETWEEN 0 AND 100),
			is_participant BOOLEAN NOT NULL DEFAULT TRUE,
			is_winner BOOLEAN NOT NULL DEFAULT FALSE,
			claimed BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (round_id, bidder)
		);
		CREATE INDEX IF NOT EXISTS idx_bids_bidder ON bids(bidder);

		CREATE TABLE IF NOT EXISTS wallets (
			address TEXT PRIMARY KEY,
			balance BIGINT NOT NULL CHECK (balance >= 0)
		);

		CREATE TABLE IF NOT EXISTS events (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			round_id BIGINT NOT NULL,
			bidder TEXT NOT NULL DEFAULT '',
			guess INTEGER NOT NULL DEFAULT 0,
			at TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

// maxTxAttempts bounds how often a transaction is rerun after a
// serialization failure.
const maxTxAttempts = 3

// Update runs fn in a serializable transaction, rerunning it when a
// concurrent writer forces a serialization failure.
func (db *DB) Update(ctx context.Context, fn func(guess.Tx) error) error {
	return retrySerializable(ctx, func() error {
		return db.inTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
	})
}

func retrySerializable(ctx context.Context, run func() error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = run()
		if !isSerializationFailure(err) {
			return err
		}
		log.Printf("db: serialization failure (attempt %d/%d): %v", attempt, maxTxAttempts, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(5+rand.Intn(20)) * time.Millisecond):
		}
	}
	return err
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure, deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func (db *DB) View(ctx context.Context, fn func(guess.Tx) error) error {
	return db.inTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

func (db *DB) inTx(ctx context.Context, opts pgx.TxOptions, fn func(guess.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx, writable: opts.AccessMode != pgx.ReadOnly}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Truncate empties every table. Used by tests.
func (db *DB) Truncate(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `TRUNCATE bids, rounds, wallets, events RESTART IDENTITY`)
	return err
}
