// Package cas implements a content-addressed store for one run's job
// traces: the inputs and result each dispatched job carried, keyed by
// their SHA256 hash so the debugger's Inspect commands can fetch a job's
// full payload after the fact without the coordinator holding every
// value in memory for the run's lifetime. This is scoped to a single
// run (not cross-run artifact persistence, which is out of scope).
package cas

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// Blob is one content-addressed entry, stored either inline (Redis) or
// as a row (Postgres).
type Blob struct {
	CasID     string    `db:"cas_id" json:"cas_id"`
	MediaType string    `db:"media_type" json:"media_type"`
	SizeBytes int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Content   []byte    `db:"content" json:"content,omitempty"`
}

// Media types for the two kinds of payload the debugger stores.
const (
	MediaTypeJobInputs = "application/json;type=job_inputs"
	MediaTypeJobResult = "application/json;type=job_result"
)

// Store is the content-addressed storage interface. Put is expected to
// be idempotent: storing the same bytes twice returns the same CasID.
type Store interface {
	Put(ctx context.Context, data []byte, mediaType string) (casID string, err error)
	Get(ctx context.Context, casID string) ([]byte, error)
}

// PutJSON marshals v and stores it, a convenience wrapper used by the
// coordinator to trace a job's inputs/result without hand-marshaling at
// every call site.
func PutJSON(ctx context.Context, s Store, v interface{}, mediaType string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("cas: marshal: %w", err)
	}
	return s.Put(ctx, data, mediaType)
}

// HashOf returns the CasID that Put would assign to data, without
// storing it — used by callers that want to check presence first.
func HashOf(data []byte) string {
	return fmt.Sprintf("sha256:%x", sha256.Sum256(data))
}
