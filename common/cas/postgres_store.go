package cas

import (
	"context"
	"fmt"
	"time"

	"github.com/lyzr/flowr/common/db"
)

// PostgresStore is the optional durable sink for job traces, used when a
// run's traces need to survive past the coordinator process (e.g. a
// separate debugging session inspecting a run after the fact). Most
// invocations run with RedisStore alone; bootstrap.Setup uses PostgresStore
// only under WithTracePostgres with a connected database.
type PostgresStore struct {
	db *db.DB
}

// NewPostgresStore wraps an already-connected pool. The caller is
// expected to have created the cas_blob table (cas_id text primary key,
// media_type text, size_bytes bigint, content bytea, created_at
// timestamptz) as part of its own migration set.
func NewPostgresStore(pool *db.DB) *PostgresStore {
	return &PostgresStore{db: pool}
}

func (s *PostgresStore) Put(ctx context.Context, data []byte, mediaType string) (string, error) {
	casID := HashOf(data)
	_, err := s.db.Exec(ctx,
		`INSERT INTO cas_blob (cas_id, media_type, size_bytes, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (cas_id) DO NOTHING`,
		casID, mediaType, len(data), data, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("cas: postgres put: %w", err)
	}
	return casID, nil
}

func (s *PostgresStore) Get(ctx context.Context, casID string) ([]byte, error) {
	row := s.db.QueryRow(ctx, `SELECT content FROM cas_blob WHERE cas_id = $1`, casID)
	var content []byte
	if err := row.Scan(&content); err != nil {
		return nil, fmt.Errorf("cas: postgres get %s: %w", casID, err)
	}
	return content, nil
}
