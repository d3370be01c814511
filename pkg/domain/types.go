package domain

import (
	"fmt"
	"strings"
)

// BookStatus is where a book sits in the reading cycle.
type BookStatus string

const (
	StatusToRead   BookStatus = "toread"
	StatusReading  BookStatus = "reading"
	StatusFinished BookStatus = "finished"
)

// StatusAll is the status filter value that matches every record.
const StatusAll = "all"

// Statuses lists the reading statuses in cycle order.
var Statuses = []BookStatus{StatusToRead, StatusReading, StatusFinished}

// Valid reports whether s is one of the known statuses.
func (s BookStatus) Valid() bool {
	switch s {
	case StatusToRead, StatusReading, StatusFinished:
		return true
	}
	return false
}

// Next returns the status that follows s in the reading cycle
// toread -> reading -> finished -> toread. Unknown statuses restart the cycle.
func (s BookStatus) Next() BookStatus {
	switch s {
	case StatusToRead:
		return StatusReading
	case StatusReading:
		return StatusFinished
	default:
		return StatusToRead
	}
}

// Rank orders statuses for sorting: toread < reading < finished.
func (s BookStatus) Rank() int {
	switch s {
	case StatusReading:
		return 1
	case StatusFinished:
		return 2
	default:
		return 0
	}
}

// Label is the user-facing name of the status.
func (s BookStatus) Label() string {
	switch s {
	case StatusReading:
		return "Leyendo"
	case StatusFinished:
		return "Terminado"
	default:
		return "Por leer"
	}
}

// ParseStatus maps raw input to a status.
func ParseStatus(raw string) (BookStatus, bool) {
	s := BookStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", false
	}
	return s, true
}

// Book is one reading-list entry.
type Book struct {
	ID     int        `json:"id" yaml:"id"`
	Title  string     `json:"title" yaml:"title"`
	Author string     `json:"author" yaml:"author"`
	Status BookStatus `json:"status" yaml:"status"`
	Cover  string     `json:"cover" yaml:"cover"`
}

// PlaceholderCover is shown for books without a usable cover image.
const PlaceholderCover = "https://placehold.co/120x180?text=ReadLog"

// CoverURL returns the cover or the placeholder when empty.
func (b Book) CoverURL() string {
	if strings.TrimSpace(b.Cover) == "" {
		return PlaceholderCover
	}
	return b.Cover
}

// BookPatch carries a partial edit. Nil fields are left unchanged.
type BookPatch struct {
	Title  *string     `json:"title,omitempty"`
	Author *string     `json:"author,omitempty"`
	Status *BookStatus `json:"status,omitempty"`
	Cover  *string     `json:"cover,omitempty"`
}

// Filter selects the visible subset of the library.
type Filter struct {
	Query  string `json:"query"`
	Status string `json:"status"`
}

// DefaultFilter matches every book.
func DefaultFilter() Filter {
	return Filter{Status: StatusAll}
}

// SortField names the book attribute the list is ordered by.
type SortField string

const (
	SortByTitle  SortField = "title"
	SortByAuthor SortField = "author"
	SortByStatus SortField = "status"
)

// SortDirection is ascending or descending order.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortSpec orders the visible books. It serializes as "field-direction".
type SortSpec struct {
	Field     SortField     `json:"field"`
	Direction SortDirection `json:"direction"`
}

// DefaultSort is used when no valid preference is stored.
func DefaultSort() SortSpec {
	return SortSpec{Field: SortByTitle, Direction: SortAsc}
}

func (s SortSpec) String() string {
	return fmt.Sprintf("%s-%s", s.Field, s.Direction)
}

// ParseSortSpec parses "field-direction", e.g. "author-desc".
func ParseSortSpec(raw string) (SortSpec, error) {
	field, dir, ok := strings.Cut(strings.ToLower(strings.TrimSpace(raw)), "-")
	if !ok {
		return SortSpec{}, fmt.Errorf("invalid sort %q", raw)
	}
	spec := SortSpec{Field: SortField(field), Direction: SortDirection(dir)}
	switch spec.Field {
	case SortByTitle, SortByAuthor, SortByStatus:
	default:
		return SortSpec{}, fmt.Errorf("invalid sort field %q", field)
	}
	switch spec.Direction {
	case SortAsc, SortDesc:
	default:
		return SortSpec{}, fmt.Errorf("invalid sort direction %q", dir)
	}
	return spec, nil
}

// Settings is the persisted user preference blob.
type Settings struct {
	Sort string `json:"sort"`
}

// SortSpec returns the parsed sort preference, falling back to the default.
func (s Settings) SortSpec() SortSpec {
	spec, err := ParseSortSpec(s.Sort)
	if err != nil {
		return DefaultSort()
	}
	return spec
}

// Suggestion is an autocomplete candidate from the metadata search.
type Suggestion struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Cover  string `json:"cover"`
}
