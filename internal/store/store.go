package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RubricRecord is one published rubric document. Documents are stored as
// JSON regardless of the format they were authored in.
type RubricRecord struct {
	ID        uuid.UUID       `json:"rubric_id"`
	Version   string          `json:"version"`
	Document  json.RawMessage `json:"document"`
	CreatedAt time.Time       `json:"created_at"`
}

type Store interface {
	// PutRubric publishes a document under a version. Publishing an
	// existing version replaces its document.
	PutRubric(ctx context.Context, version string, document []byte) (*RubricRecord, error)

	// GetRubric returns the given version, or the most recently published
	// one when version is empty. It returns nil, nil when nothing matches.
	GetRubric(ctx context.Context, version string) (*RubricRecord, error)

	ListRubrics(ctx context.Context, limit int) ([]*RubricRecord, error)

	Close() error
}
