package suggest

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"readlog/pkg/domain"
)

// Cached remembers successful lookups so retyping a query is free.
type Cached struct {
	next  Lookup
	cache *lru.Cache[string, []domain.Suggestion]
}

// NewCached wraps next with an LRU of the given size.
func NewCached(next Lookup, size int) (*Cached, error) {
	c, err := lru.New[string, []domain.Suggestion](size)
	if err != nil {
		return nil, fmt.Errorf("init suggestion cache: %w", err)
	}
	return &Cached{next: next, cache: c}, nil
}

func (c *Cached) Search(ctx context.Context, query string, limit int) ([]domain.Suggestion, error) {
	key := fmt.Sprintf("%d|%s", limit, strings.ToLower(strings.TrimSpace(query)))
	if items, ok := c.cache.Get(key); ok {
		return cloneSuggestions(items), nil
	}
	items, err := c.next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, cloneSuggestions(items))
	return items, nil
}

func cloneSuggestions(in []domain.Suggestion) []domain.Suggestion {
	out := make([]domain.Suggestion, len(in))
	copy(out, in)
	return out
}
