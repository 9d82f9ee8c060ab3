// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

// Package store persists moments, media units, and agent responses in an
// embedded DuckDB database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/framesight/internal/config"
	"github.com/tomtom215/framesight/internal/logging"
	"github.com/tomtom215/framesight/internal/metrics"
)

// Store wraps the DuckDB connection and the pipeline's queries.
type Store struct {
	conn *sql.DB
}

// New opens (or creates) the database at cfg.Path and applies the schema.
func New(cfg config.DatabaseConfig) (*Store, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "512MB"
	}

	connStr := fmt.Sprintf(
		"%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, threads, maxMemory,
	)
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// DuckDB is an in-process engine; a small pool avoids write contention.
	conn.SetMaxOpenConns(threads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)

	s := &Store{conn: conn}
	if err := s.initSchema(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", threads).Msg("Database opened")
	return s, nil
}

// NewMemory opens an in-memory database. Intended for tests.
func NewMemory() (*Store, error) {
	conn, err := sql.Open("duckdb", ":memory:?autoinstall_known_extensions=false&autoload_known_extensions=false")
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	// In-memory databases are per-connection; the pool must not grow.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.initSchema(); err != nil {
		closeQuietly(conn)
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS moments (
			id UUID PRIMARY KEY,
			media_id VARCHAR NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			peak_deviation DOUBLE NOT NULL,
			type VARCHAR NOT NULL,
			title VARCHAR,
			description VARCHAR,
			clip_path VARCHAR,
			thumbnail_path VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS media_units (
			id UUID PRIMARY KEY,
			media_id VARCHAR NOT NULL,
			at_time TIMESTAMPTZ NOT NULL,
			description VARCHAR,
			embedding BLOB,
			path VARCHAR NOT NULL,
			type VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS agent_responses (
			id UUID PRIMARY KEY,
			media_unit_id UUID NOT NULL,
			agent VARCHAR NOT NULL,
			response VARCHAR NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_moments_media_id ON moments (media_id, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_media_units_media_id ON media_units (media_id, at_time)`,
	}

	for _, stmt := range stmts {
		if _, err := s.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// observe records query duration and, on failure, the error counter.
func observe(operation, table string, start time.Time, err error) {
	metrics.DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Warn().Err(err).Msg("Database close failed")
	}
}
