package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/moment/internal/db"
	"github.com/hpungsan/moment/internal/post"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID             string
	IncludeDeleted bool
	IncludeImage   *bool // default: true (nil means default)
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	post.Post           // embedded (copy, not pointer)
	ImageBytes int      `json:"image_bytes"`
	Overlays   []string `json:"overlays,omitempty"`
}

// Fetch retrieves a post by ID.
func Fetch(ctx context.Context, database *sql.DB, input FetchInput) (*FetchOutput, error) {
	id, err := ValidateID(input.ID)
	if err != nil {
		return nil, err
	}

	p, err := db.GetByID(ctx, database, id, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	output := &FetchOutput{
		Post:       *p,
		ImageBytes: len(p.Image),
		Overlays:   p.Overlays(),
	}
	if input.IncludeImage != nil && !*input.IncludeImage {
		output.Image = nil
	}
	return output, nil
}
