// Package query derives the visible, ordered subset of the reading list.
// Everything here is pure: the same inputs always yield the same output and
// the caller's slice is never reordered.
package query

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"readlog/pkg/domain"
)

// Normalize lowercases s and strips diacritics, so "García" becomes "garcia".
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// Matches reports whether b passes both the text and the status filter.
func Matches(b domain.Book, f domain.Filter) bool {
	return matchesText(b, Normalize(f.Query)) && matchesStatus(b, f.Status)
}

func matchesText(b domain.Book, normalizedQuery string) bool {
	if normalizedQuery == "" {
		return true
	}
	return strings.Contains(Normalize(b.Title), normalizedQuery) ||
		strings.Contains(Normalize(b.Author), normalizedQuery)
}

func matchesStatus(b domain.Book, status string) bool {
	return status == "" || status == domain.StatusAll || string(b.Status) == status
}

// Engine sorts with the collation rules of one language.
type Engine struct {
	lang language.Tag
}

// NewEngine returns an engine collating with lang.
func NewEngine(lang language.Tag) *Engine {
	return &Engine{lang: lang}
}

// DefaultEngine collates with Spanish rules, the language of the reading list UI.
var DefaultEngine = NewEngine(language.Spanish)

// Visible filters with the default engine. See Engine.Visible.
func Visible(all []domain.Book, f domain.Filter, spec domain.SortSpec) []domain.Book {
	return DefaultEngine.Visible(all, f, spec)
}

// Visible returns the books matching f ordered by spec. Title and author
// compare their normalized forms under the engine's collation; status
// compares rank. Equal keys fall back to ascending id so the order is fully
// determined.
func (e *Engine) Visible(all []domain.Book, f domain.Filter, spec domain.SortSpec) []domain.Book {
	q := Normalize(f.Query)
	out := make([]domain.Book, 0, len(all))
	for _, b := range all {
		if matchesText(b, q) && matchesStatus(b, f.Status) {
			out = append(out, b)
		}
	}

	// Collators keep scratch buffers and are not safe for concurrent use.
	col := collate.New(e.lang)
	key := sortKey(spec.Field)
	sign := 1
	if spec.Direction == domain.SortDesc {
		sign = -1
	}
	slices.SortFunc(out, func(a, b domain.Book) int {
		var c int
		if spec.Field == domain.SortByStatus {
			c = a.Status.Rank() - b.Status.Rank()
		} else {
			c = col.CompareString(Normalize(key(a)), Normalize(key(b)))
		}
		if c != 0 {
			return sign * c
		}
		return a.ID - b.ID
	})
	return out
}

func sortKey(field domain.SortField) func(domain.Book) string {
	if field == domain.SortByAuthor {
		return func(b domain.Book) string { return b.Author }
	}
	return func(b domain.Book) string { return b.Title }
}

// Stats counts books per status.
type Stats struct {
	Total    int `json:"total"`
	ToRead   int `json:"toread"`
	Reading  int `json:"reading"`
	Finished int `json:"finished"`
}

// Count tallies all books by status.
func Count(all []domain.Book) Stats {
	var s Stats
	for _, b := range all {
		s.Total++
		switch b.Status {
		case domain.StatusReading:
			s.Reading++
		case domain.StatusFinished:
			s.Finished++
		default:
			s.ToRead++
		}
	}
	return s
}
