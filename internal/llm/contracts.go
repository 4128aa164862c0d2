package llm

import (
	"context"

	"github.com/joseph-ayodele/cardscan/internal/entity"
)

// Extractor is the contract the pipeline depends on: one network attempt per image,
// returning parsed and normalized candidates or a typed failure.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) ([]entity.Candidate, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, image []byte, mimeType string) ([]entity.Candidate, error)

func (f ExtractorFunc) Extract(ctx context.Context, image []byte, mimeType string) ([]entity.Candidate, error) {
	return f(ctx, image, mimeType)
}
