package suggest

import (
	"context"
	"errors"
	"testing"

	"readlog/pkg/domain"
)

func TestCachedReusesSuccessfulLookups(t *testing.T) {
	lookup := &fakeLookup{}
	c, err := NewCached(lookup, 8)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	ctx := context.Background()
	for _, q := range []string{"Dune", " dune ", "DUNE"} {
		items, err := c.Search(ctx, q, 5)
		if err != nil {
			t.Fatalf("search %q: %v", q, err)
		}
		if len(items) != 1 {
			t.Fatalf("unexpected items %+v", items)
		}
	}
	if calls := lookup.calls(); len(calls) != 1 {
		t.Fatalf("expected one upstream lookup, got %v", calls)
	}
	if _, err := c.Search(ctx, "dune", 3); err != nil {
		t.Fatalf("search: %v", err)
	}
	if calls := lookup.calls(); len(calls) != 2 {
		t.Fatalf("different limit should miss the cache, got %v", calls)
	}
}

func TestCachedSkipsFailures(t *testing.T) {
	fail := true
	lookup := &fakeLookup{
		search: func(context.Context, string) ([]domain.Suggestion, error) {
			if fail {
				return nil, errors.New("boom")
			}
			return []domain.Suggestion{{Title: "ok"}}, nil
		},
	}
	c, err := NewCached(lookup, 8)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	if _, err := c.Search(context.Background(), "dune", 5); err == nil {
		t.Fatal("expected failure")
	}
	fail = false
	items, err := c.Search(context.Background(), "dune", 5)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected retry to reach upstream, got %v %v", items, err)
	}
}

func TestNewCachedRejectsBadSize(t *testing.T) {
	if _, err := NewCached(&fakeLookup{}, 0); err == nil {
		t.Fatal("expected error for zero size")
	}
}
