package suggest

import (
	"context"

	"readlog/pkg/domain"
)

// DefaultLimit caps how many suggestions one lookup returns.
const DefaultLimit = 5

// Lookup searches remote book metadata by free text. Implementations must
// return promptly with ctx.Err() once ctx is cancelled.
type Lookup interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Suggestion, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, query string, limit int) ([]domain.Suggestion, error)

func (f LookupFunc) Search(ctx context.Context, query string, limit int) ([]domain.Suggestion, error) {
	return f(ctx, query, limit)
}
