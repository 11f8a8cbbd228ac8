package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS scoring_rubrics (
	rubric_id  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	version    TEXT NOT NULL UNIQUE,
	document   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the rubric table when it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const rubricColumns = `rubric_id, version, document, created_at`

func (s *PostgresStore) PutRubric(ctx context.Context, version string, document []byte) (*RubricRecord, error) {
	rec := &RubricRecord{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO scoring_rubrics (version, document)
		VALUES ($1, $2)
		ON CONFLICT (version) DO UPDATE SET document = EXCLUDED.document, created_at = now()
		RETURNING `+rubricColumns,
		version, string(document),
	).Scan(&rec.ID, &rec.Version, &rec.Document, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("put rubric %s: %w", version, err)
	}
	return rec, nil
}

func (s *PostgresStore) GetRubric(ctx context.Context, version string) (*RubricRecord, error) {
	var row pgx.Row
	if version == "" {
		row = s.pool.QueryRow(ctx, `
			SELECT `+rubricColumns+` FROM scoring_rubrics
			ORDER BY created_at DESC LIMIT 1`)
	} else {
		row = s.pool.QueryRow(ctx, `
			SELECT `+rubricColumns+` FROM scoring_rubrics
			WHERE version = $1`, version)
	}

	rec := &RubricRecord{}
	err := row.Scan(&rec.ID, &rec.Version, &rec.Document, &rec.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PostgresStore) ListRubrics(ctx context.Context, limit int) ([]*RubricRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+rubricColumns+` FROM scoring_rubrics
		ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RubricRecord
	for rows.Next() {
		rec := &RubricRecord{}
		if err := rows.Scan(&rec.ID, &rec.Version, &rec.Document, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
