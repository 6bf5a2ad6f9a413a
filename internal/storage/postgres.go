package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/firewatch/internal/models"
)

// PostgresRecorder stores analysis history in PostgreSQL with pgvector
type PostgresRecorder struct {
	pool *pgxpool.Pool

	mu        sync.Mutex
	sourceIDs map[string]int
}

// NewPostgresRecorder connects to dsn and makes sure the schema exists
func NewPostgresRecorder(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	// Connect to PostgreSQL
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := InitSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresRecorder{
		pool:      pool,
		sourceIDs: make(map[string]int),
	}, nil
}

// Close closes the database connection
func (s *PostgresRecorder) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// sourceID gets an existing source entry or creates a new one
func (s *PostgresRecorder) sourceID(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.sourceIDs[name]; ok {
		return id, nil
	}

	// Check if source exists
	var id int
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM sources WHERE name = $1",
		name).Scan(&id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("error checking for existing source: %w", err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		// Source doesn't exist, create it
		err = s.pool.QueryRow(ctx,
			`INSERT INTO sources (name, created_at) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`,
			name, time.Now()).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("failed to create source entry: %w", err)
		}
	}

	s.sourceIDs[name] = id
	return id, nil
}

// Record stores the sample and its analysis in one transaction
func (s *PostgresRecorder) Record(ctx context.Context, record models.AnalysisRecord) error {
	sourceID, err := s.sourceID(ctx, record.Source)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	// First, store the sample information
	var sampleID int
	err = tx.QueryRow(ctx,
		`INSERT INTO samples
		(source_id, sample_uuid, frame_seq, frame_path, sampled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		sourceID, record.SampleID, int64(record.FrameSeq), record.Frame, record.SampledAt, time.Now()).Scan(&sampleID)
	if err != nil {
		return fmt.Errorf("failed to store sample information: %w", err)
	}

	var embedding *pgvector.Vector
	if len(record.Signature) == SignatureDims {
		v := pgvector.NewVector(record.Signature)
		embedding = &v
	}

	// Store the analysis result with its frame signature
	_, err = tx.Exec(ctx,
		`INSERT INTO analyses
		(sample_id, detected, subject, body, raw, dispatched, error, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sampleID, record.Detected, record.Subject, record.Body, record.Raw,
		record.Dispatched, record.Err, embedding, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store analysis: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit analysis: %w", err)
	}
	return nil
}

// Flush implements the Recorder interface - no-op for Postgres as we save immediately
func (s *PostgresRecorder) Flush() error {
	return nil
}

// SimilarDetections finds past detections whose frames look like signature
func (s *PostgresRecorder) SimilarDetections(ctx context.Context, signature []float32, limit int) ([]models.SimilarDetection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sm.sample_uuid, sm.sampled_at, a.subject,
		1 - (a.embedding <=> $1) AS similarity
		FROM analyses a
		JOIN samples sm ON a.sample_id = sm.id
		WHERE a.detected AND a.embedding IS NOT NULL
		ORDER BY a.embedding <=> $1
		LIMIT $2`,
		pgvector.NewVector(signature), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar detections: %w", err)
	}
	defer rows.Close()

	// Process results
	var results []models.SimilarDetection
	for rows.Next() {
		var result models.SimilarDetection
		if err := rows.Scan(&result.SampleID, &result.SampledAt,
			&result.Subject, &result.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan similar detections: %w", err)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// InitSchema creates the database schema if it doesn't exist
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	// Create vector extension if it doesn't exist
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	// Create tables
	_, err := pool.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS sources (
            id SERIAL PRIMARY KEY,
            name VARCHAR(1024) NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE(name)
        );

        CREATE TABLE IF NOT EXISTS samples (
            id SERIAL PRIMARY KEY,
            source_id INTEGER REFERENCES sources(id) ON DELETE CASCADE,
            sample_uuid TEXT NOT NULL UNIQUE,
            frame_seq BIGINT NOT NULL,
            frame_path VARCHAR(1024) NOT NULL,
            sampled_at TIMESTAMPTZ NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        );

        CREATE TABLE IF NOT EXISTS analyses (
            id SERIAL PRIMARY KEY,
            sample_id INTEGER REFERENCES samples(id) ON DELETE CASCADE,
            detected BOOLEAN NOT NULL,
            subject TEXT NOT NULL DEFAULT '',
            body TEXT NOT NULL DEFAULT '',
            raw TEXT NOT NULL DEFAULT '',
            dispatched BOOLEAN NOT NULL DEFAULT FALSE,
            error TEXT NOT NULL DEFAULT '',
            embedding vector(%d),
            created_at TIMESTAMPTZ NOT NULL
        );
    `, SignatureDims))
	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	// Create indexes
	_, err = pool.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS idx_samples_source_id ON samples(source_id);
        CREATE INDEX IF NOT EXISTS idx_analyses_sample_id ON analyses(sample_id);
        CREATE INDEX IF NOT EXISTS idx_analyses_detected ON analyses(detected);
    `)
	if err != nil {
		return fmt.Errorf("failed to create database indexes: %w", err)
	}

	return nil
}
