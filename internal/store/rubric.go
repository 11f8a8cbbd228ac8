package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/MikeSquared-Agency/Bursary/internal/rubric"
)

// ErrNoRubric is returned when the store holds no matching rubric.
var ErrNoRubric = errors.New("no rubric published")

// LoadRubric fetches a published rubric and validates it. An empty version
// selects the latest one.
func LoadRubric(ctx context.Context, s Store, version string) (*rubric.Rubric, error) {
	rec, err := s.GetRubric(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("get rubric: %w", err)
	}
	if rec == nil {
		if version == "" {
			return nil, ErrNoRubric
		}
		return nil, fmt.Errorf("%w: version %q", ErrNoRubric, version)
	}
	r, err := rubric.Parse(rec.Document, rubric.FormatJSON)
	if err != nil {
		return nil, err
	}
	if r.Version() != rec.Version {
		return nil, fmt.Errorf("rubric stored as %q declares version %q", rec.Version, r.Version())
	}
	return r, nil
}

// PublishRubric validates a document and stores it under its own version.
func PublishRubric(ctx context.Context, s Store, data []byte, format rubric.Format) (*RubricRecord, error) {
	doc, err := rubric.ToJSON(data, format)
	if err != nil {
		return nil, err
	}
	r, err := rubric.Parse(doc, rubric.FormatJSON)
	if err != nil {
		return nil, err
	}
	return s.PutRubric(ctx, r.Version(), doc)
}
