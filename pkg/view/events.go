package view

import (
	"encoding/json"
	"errors"
	"fmt"

	"readlog/pkg/domain"
)

var (
	ErrUnknownEvent = errors.New("unknown event type")
	ErrInvalidEvent = errors.New("invalid event")
)

// Event is a user interaction routed through Synchronizer.Dispatch.
type Event interface {
	EventType() string
}

type SearchChanged struct {
	Text string `json:"text"`
}

type StatusFilterChanged struct {
	Status string `json:"status"`
}

type SortChanged struct {
	Sort string `json:"sort"`
}

type AddSubmitted struct {
	Title  string            `json:"title"`
	Author string            `json:"author"`
	Status domain.BookStatus `json:"status"`
	Cover  string            `json:"cover"`
}

type DeleteClicked struct {
	ID int `json:"id"`
}

type StatusCycleClicked struct {
	ID int `json:"id"`
}

type EditSubmitted struct {
	ID    int              `json:"id"`
	Patch domain.BookPatch `json:"patch"`
}

type ClearConfirmed struct{}

type ReseedConfirmed struct{}

// TitleInputChanged feeds the add form title into the suggestion session.
type TitleInputChanged struct {
	Text string `json:"text"`
}

// Navigation directions for SuggestionNavigated.
const (
	NavigateUp   = "up"
	NavigateDown = "down"
)

type SuggestionNavigated struct {
	Direction string `json:"direction"`
}

// SuggestionSelected picks Item, or the active suggestion when Item is nil.
type SuggestionSelected struct {
	Item *domain.Suggestion `json:"item,omitempty"`
}

type SuggestionDismissed struct{}

func (SearchChanged) EventType() string       { return "search-changed" }
func (StatusFilterChanged) EventType() string { return "status-filter-changed" }
func (SortChanged) EventType() string         { return "sort-changed" }
func (AddSubmitted) EventType() string        { return "add-submitted" }
func (DeleteClicked) EventType() string       { return "delete-clicked" }
func (StatusCycleClicked) EventType() string  { return "status-cycle-clicked" }
func (EditSubmitted) EventType() string       { return "edit-submitted" }
func (ClearConfirmed) EventType() string      { return "clear-confirmed" }
func (ReseedConfirmed) EventType() string     { return "reseed-confirmed" }
func (TitleInputChanged) EventType() string   { return "title-input-changed" }
func (SuggestionNavigated) EventType() string { return "suggestion-navigated" }
func (SuggestionSelected) EventType() string  { return "suggestion-selected" }
func (SuggestionDismissed) EventType() string { return "suggestion-dismissed" }

var eventFactories = map[string]func() Event{
	"search-changed":        func() Event { return &SearchChanged{} },
	"status-filter-changed": func() Event { return &StatusFilterChanged{} },
	"sort-changed":          func() Event { return &SortChanged{} },
	"add-submitted":         func() Event { return &AddSubmitted{} },
	"delete-clicked":        func() Event { return &DeleteClicked{} },
	"status-cycle-clicked":  func() Event { return &StatusCycleClicked{} },
	"edit-submitted":        func() Event { return &EditSubmitted{} },
	"clear-confirmed":       func() Event { return &ClearConfirmed{} },
	"reseed-confirmed":      func() Event { return &ReseedConfirmed{} },
	"title-input-changed":   func() Event { return &TitleInputChanged{} },
	"suggestion-navigated":  func() Event { return &SuggestionNavigated{} },
	"suggestion-selected":   func() Event { return &SuggestionSelected{} },
	"suggestion-dismissed":  func() Event { return &SuggestionDismissed{} },
}

// DecodeEvent decodes a {"type": "...", ...} envelope. The returned event is
// a value, not a pointer.
func DecodeEvent(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	factory, ok := eventFactories[envelope.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, envelope.Type)
	}
	ev := factory()
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return deref(ev), nil
}

func deref(ev Event) Event {
	switch e := ev.(type) {
	case *SearchChanged:
		return *e
	case *StatusFilterChanged:
		return *e
	case *SortChanged:
		return *e
	case *AddSubmitted:
		return *e
	case *DeleteClicked:
		return *e
	case *StatusCycleClicked:
		return *e
	case *EditSubmitted:
		return *e
	case *ClearConfirmed:
		return *e
	case *ReseedConfirmed:
		return *e
	case *TitleInputChanged:
		return *e
	case *SuggestionNavigated:
		return *e
	case *SuggestionSelected:
		return *e
	case *SuggestionDismissed:
		return *e
	}
	return ev
}
