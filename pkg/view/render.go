package view

import (
	"sync"

	"github.com/google/uuid"

	"readlog/pkg/domain"
	"readlog/pkg/query"
)

// Card describes one book in the list.
type Card struct {
	ID          int               `json:"id"`
	Title       string            `json:"title"`
	Author      string            `json:"author"`
	Status      domain.BookStatus `json:"status"`
	StatusLabel string            `json:"statusLabel"`
	NextStatus  domain.BookStatus `json:"nextStatus"`
	Cover       string            `json:"cover"`
	CoverAlt    string            `json:"coverAlt"`
}

// ListView is the full visible list. It is always rebuilt from scratch.
type ListView struct {
	Cards        []Card        `json:"cards"`
	Empty        bool          `json:"empty"`
	EmptyMessage string        `json:"emptyMessage,omitempty"`
	Filter       domain.Filter `json:"filter"`
	Sort         string        `json:"sort"`
	Stats        query.Stats   `json:"stats"`
}

// SuggestionPanel describes the autocomplete dropdown.
type SuggestionPanel struct {
	Visible     bool                `json:"visible"`
	Loading     bool                `json:"loading"`
	Items       []domain.Suggestion `json:"items"`
	ActiveIndex int                 `json:"activeIndex"`
}

// FormView is the add form draft plus the last inline validation message.
type FormView struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	Cover      string `json:"cover"`
	Error      string `json:"error,omitempty"`
	ErrorField string `json:"errorField,omitempty"`
	EditID     int    `json:"editId,omitempty"`
}

// Announcement is the live-region text. Seq changes on every write so
// repeated identical messages are still observable.
type Announcement struct {
	Text string `json:"text"`
	Seq  uint64 `json:"seq"`
}

// Frame is everything a presentation layer needs to draw the app.
type Frame struct {
	List         ListView        `json:"list"`
	Suggestions  SuggestionPanel `json:"suggestions"`
	Form         FormView        `json:"form"`
	Announcement Announcement    `json:"announcement"`
}

// Renderer receives render descriptions. The list and the suggestion panel
// are rendered independently.
type Renderer interface {
	RenderList(ListView)
	RenderSuggestions(SuggestionPanel)
	RenderForm(FormView)
	RenderAnnouncement(Announcement)
}

// Snapshot keeps the latest frame and fans every change out to subscribers.
// Slow subscribers miss intermediate frames rather than blocking rendering.
type Snapshot struct {
	mu    sync.RWMutex
	frame Frame
	subs  map[string]chan Frame
}

// NewSnapshot returns an empty snapshot renderer.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		frame: Frame{Suggestions: SuggestionPanel{ActiveIndex: -1}},
		subs:  make(map[string]chan Frame),
	}
}

// Frame returns the latest rendered frame.
func (s *Snapshot) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Subscribe registers a listener. The current frame is delivered first.
func (s *Snapshot) Subscribe() (string, <-chan Frame) {
	id := uuid.NewString()
	ch := make(chan Frame, 8)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[id] = ch
	ch <- s.frame
	return id, ch
}

// Unsubscribe drops a listener and closes its channel.
func (s *Snapshot) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Snapshot) RenderList(v ListView) {
	s.update(func(f *Frame) { f.List = v })
}

func (s *Snapshot) RenderSuggestions(p SuggestionPanel) {
	s.update(func(f *Frame) { f.Suggestions = p })
}

func (s *Snapshot) RenderForm(v FormView) {
	s.update(func(f *Frame) { f.Form = v })
}

func (s *Snapshot) RenderAnnouncement(a Announcement) {
	s.update(func(f *Frame) { f.Announcement = a })
}

func (s *Snapshot) update(apply func(*Frame)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	apply(&s.frame)
	for _, ch := range s.subs {
		select {
		case ch <- s.frame:
		default:
		}
	}
}
