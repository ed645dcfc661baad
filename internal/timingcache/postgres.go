package timingcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eliasvob/readsync/pkg/timing"
)

// Compile-time assertion that PGStore satisfies Store.
var _ Store = (*PGStore)(nil)

// schema creates the single cache table. The (owner_id, text_hash) primary
// key makes Put an idempotent upsert.
const schema = `
CREATE TABLE IF NOT EXISTS timing_sets (
	owner_id   TEXT        NOT NULL,
	text_hash  TEXT        NOT NULL,
	payload    JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (owner_id, text_hash)
)`

// PGStore is a PostgreSQL-backed Store for multi-process deployments where
// cached timings must survive restarts and be shared across instances.
// All operations are safe for concurrent use.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects to the database at dsn, ensures the cache table
// exists, and returns a ready PGStore. The caller must call Close when the
// store is no longer needed.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("timingcache: parse dsn: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("timingcache: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("timingcache: migrate: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *PGStore) Close() {
	s.pool.Close()
}

// Ping reports whether the database is reachable. Used by readiness checks.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Get implements Store. A failing backend is logged and degraded to a miss;
// plain row absence stays quiet.
func (s *PGStore) Get(ctx context.Context, key Key) (*timing.Set, bool) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM timing_sets WHERE owner_id = $1 AND text_hash = $2`,
		key.OwnerID, key.TextHash,
	).Scan(&payload)
	if err != nil {
		if !isAbsence(err) {
			slog.Warn("timing cache query failed, treating as miss",
				"owner_id", key.OwnerID, "text_hash", key.TextHash, "error", err)
		}
		return nil, false
	}

	var set timing.Set
	if err := json.Unmarshal(payload, &set); err != nil {
		slog.Warn("timing cache row corrupted, treating as miss",
			"owner_id", key.OwnerID, "text_hash", key.TextHash, "error", err)
		return nil, false
	}
	return &set, true
}

// isAbsence reports whether a query error means the row simply does not
// exist, as opposed to the backend failing.
func isAbsence(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Put implements Store.
func (s *PGStore) Put(ctx context.Context, key Key, set *timing.Set) error {
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("timingcache: marshal: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO timing_sets (owner_id, text_hash, payload, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (owner_id, text_hash) DO UPDATE
		 SET payload = EXCLUDED.payload, updated_at = now()`,
		key.OwnerID, key.TextHash, payload,
	)
	if err != nil {
		return fmt.Errorf("timingcache: upsert: %w", err)
	}
	return nil
}
