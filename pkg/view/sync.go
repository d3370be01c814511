// Package view keeps the rendered reading list consistent with the library,
// the active filter and sort, and the autocomplete session. All user events go
// through Synchronizer.Dispatch, which serializes them.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"readlog/pkg/domain"
	"readlog/pkg/library"
	"readlog/pkg/query"
	"readlog/pkg/suggest"
)

// EmptyMessage is shown when no book passes the current filter.
const EmptyMessage = "No hay libros que coincidan con tu búsqueda."

// Config wires a Synchronizer.
type Config struct {
	Library  *library.Library
	Engine   *query.Engine
	Renderer Renderer
	// Announcer receives every announcement in addition to the live region.
	Announcer Announcer
	// Lookup enables autocomplete. Nil disables it.
	Lookup  suggest.Lookup
	Suggest suggest.Config
}

// Synchronizer is the single place that turns events into state changes and
// state changes into render descriptions.
type Synchronizer struct {
	lib      *library.Library
	engine   *query.Engine
	renderer Renderer
	live     *LiveRegion
	announce Announcer
	session  *suggest.Session

	mu          sync.Mutex
	filter      domain.Filter
	sort        domain.SortSpec
	suggestions []domain.Suggestion
	panelOpen   bool
	loading     bool
	active      int
	form        FormView
}

// New builds a synchronizer. Call Start before dispatching events.
func New(cfg Config) (*Synchronizer, error) {
	if cfg.Library == nil {
		return nil, errors.New("library required")
	}
	s := &Synchronizer{
		lib:      cfg.Library,
		engine:   cfg.Engine,
		renderer: cfg.Renderer,
		filter:   domain.DefaultFilter(),
		sort:     domain.DefaultSort(),
		active:   -1,
	}
	if s.engine == nil {
		s.engine = query.DefaultEngine
	}
	s.live = NewLiveRegion(func(a Announcement) {
		if s.renderer != nil {
			s.renderer.RenderAnnouncement(a)
		}
	})
	s.announce = MultiAnnouncer{s.live, cfg.Announcer}
	if cfg.Lookup != nil {
		s.session = suggest.NewSession(cfg.Lookup, cfg.Suggest, s.onSuggestion)
	}
	return s, nil
}

// Start loads the library and the stored sort preference and renders
// everything once.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lib.Load(ctx); err != nil {
		return fmt.Errorf("load library: %w", err)
	}
	settings, err := s.lib.LoadSettings(ctx)
	if err != nil {
		slog.Warn("settings unavailable, using defaults", "err", err)
	}
	s.sort = settings.SortSpec()
	s.renderListLocked()
	s.renderSuggestionsLocked()
	s.renderFormLocked()
	return nil
}

// Close stops the suggestion session.
func (s *Synchronizer) Close() {
	if s.session != nil {
		s.session.Close()
	}
}

// Frame computes the current render description without rendering.
func (s *Synchronizer) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Frame{
		List:         s.listLocked(),
		Suggestions:  s.panelLocked(),
		Form:         s.form,
		Announcement: s.live.Current(),
	}
}

// Dispatch applies one event. Validation failures are rendered inline in the
// form and also returned.
func (s *Synchronizer) Dispatch(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := ev.(type) {
	case SearchChanged:
		s.filter.Query = e.Text
		s.renderListLocked()

	case StatusFilterChanged:
		if e.Status != domain.StatusAll {
			if _, ok := domain.ParseStatus(e.Status); !ok {
				return fmt.Errorf("%w: status %q", ErrInvalidEvent, e.Status)
			}
		}
		s.filter.Status = e.Status
		s.renderListLocked()

	case SortChanged:
		spec, err := domain.ParseSortSpec(e.Sort)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		s.sort = spec
		s.renderListLocked()
		if err := s.lib.SaveSort(ctx, spec); err != nil {
			return err
		}

	case AddSubmitted:
		book, err := s.lib.Add(ctx, e.Title, e.Author, e.Status, e.Cover)
		if err != nil {
			if !s.formErrorLocked(err, 0) {
				s.renderListLocked()
			}
			return err
		}
		s.form = FormView{}
		if s.session != nil {
			s.session.Dismiss()
		}
		s.closePanelLocked()
		s.renderListLocked()
		s.renderFormLocked()
		s.announce.Announce(fmt.Sprintf("«%s» añadido a tu lista.", book.Title))

	case DeleteClicked:
		book, found := s.lib.Get(e.ID)
		removed, err := s.lib.Remove(ctx, e.ID)
		s.renderListLocked()
		if err != nil {
			return err
		}
		if removed && found {
			s.announce.Announce(fmt.Sprintf("«%s» eliminado.", book.Title))
		}

	case StatusCycleClicked:
		next, ok, err := s.lib.CycleStatus(ctx, e.ID)
		if !ok {
			return library.ErrNotFound
		}
		s.renderListLocked()
		if err != nil {
			return err
		}
		book, _ := s.lib.Get(e.ID)
		s.announce.Announce(fmt.Sprintf("«%s» ahora está: %s.", book.Title, next.Label()))

	case EditSubmitted:
		book, err := s.lib.Update(ctx, e.ID, e.Patch)
		if err != nil {
			if !s.formErrorLocked(err, e.ID) {
				s.renderListLocked()
			}
			return err
		}
		if s.form.EditID == e.ID {
			s.form.Error, s.form.ErrorField, s.form.EditID = "", "", 0
			s.renderFormLocked()
		}
		s.renderListLocked()
		s.announce.Announce(fmt.Sprintf("«%s» actualizado.", book.Title))

	case ClearConfirmed:
		err := s.lib.Clear(ctx)
		s.renderListLocked()
		if err != nil {
			return err
		}
		s.announce.Announce("Lista vaciada.")

	case ReseedConfirmed:
		err := s.lib.Reseed(ctx)
		s.renderListLocked()
		if err != nil {
			return err
		}
		s.announce.Announce("Lista restaurada con los libros de ejemplo.")

	case TitleInputChanged:
		s.form.Title = e.Text
		s.renderFormLocked()
		if s.session != nil {
			s.session.Input(e.Text)
		}

	case SuggestionNavigated:
		n := len(s.suggestions)
		if !s.panelOpen || n == 0 {
			return nil
		}
		switch e.Direction {
		case NavigateDown:
			s.active = min(s.active+1, n-1)
		case NavigateUp:
			if s.active < 0 {
				s.active = n - 1
			} else {
				s.active = max(s.active-1, 0)
			}
		default:
			return fmt.Errorf("%w: direction %q", ErrInvalidEvent, e.Direction)
		}
		s.renderSuggestionsLocked()

	case SuggestionSelected:
		var item domain.Suggestion
		switch {
		case e.Item != nil:
			item = *e.Item
		case s.panelOpen && s.active >= 0 && s.active < len(s.suggestions):
			item = s.suggestions[s.active]
		default:
			return nil
		}
		if s.session != nil {
			item = s.session.Select(item)
		}
		s.form.Title = item.Title
		s.form.Author = item.Author
		s.form.Cover = item.Cover
		s.closePanelLocked()
		s.renderFormLocked()

	case SuggestionDismissed:
		if s.session != nil {
			s.session.Dismiss()
		}
		s.closePanelLocked()

	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
	return nil
}

// formErrorLocked shows a validation error inline. It reports whether err
// was a validation error.
func (s *Synchronizer) formErrorLocked(err error, editID int) bool {
	var verr *library.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	s.form.Error = verr.Message
	s.form.ErrorField = verr.Field
	s.form.EditID = editID
	s.renderFormLocked()
	return true
}

// onSuggestion runs on the session's delivery goroutine. A Dispatch may have
// ended the session while u waited for s.mu, so lookup state is applied only
// while its sequence is still current.
func (s *Synchronizer) onSuggestion(u suggest.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch u.State {
	case suggest.Debouncing:
		return
	case suggest.Fetching:
		if !s.session.Current(u.Seq) {
			return
		}
		s.loading = true
	case suggest.Resolved:
		if !s.session.Current(u.Seq) {
			return
		}
		s.suggestions = append([]domain.Suggestion(nil), u.Items...)
		s.panelOpen = len(s.suggestions) > 0
		s.loading = false
		s.active = -1
	default:
		s.suggestions = nil
		s.panelOpen = false
		s.loading = false
		s.active = -1
	}
	s.renderSuggestionsLocked()
}

func (s *Synchronizer) closePanelLocked() {
	s.suggestions = nil
	s.panelOpen = false
	s.loading = false
	s.active = -1
	s.renderSuggestionsLocked()
}

func (s *Synchronizer) listLocked() ListView {
	all := s.lib.Books()
	visible := s.engine.Visible(all, s.filter, s.sort)
	cards := make([]Card, 0, len(visible))
	for _, b := range visible {
		cards = append(cards, Card{
			ID:          b.ID,
			Title:       b.Title,
			Author:      b.Author,
			Status:      b.Status,
			StatusLabel: b.Status.Label(),
			NextStatus:  b.Status.Next(),
			Cover:       b.CoverURL(),
			CoverAlt:    "Portada de " + b.Title,
		})
	}
	v := ListView{
		Cards:  cards,
		Empty:  len(cards) == 0,
		Filter: s.filter,
		Sort:   s.sort.String(),
		Stats:  query.Count(all),
	}
	if v.Empty {
		v.EmptyMessage = EmptyMessage
	}
	return v
}

func (s *Synchronizer) panelLocked() SuggestionPanel {
	items := make([]domain.Suggestion, len(s.suggestions))
	copy(items, s.suggestions)
	return SuggestionPanel{
		Visible:     s.panelOpen,
		Loading:     s.loading,
		Items:       items,
		ActiveIndex: s.active,
	}
}

func (s *Synchronizer) renderListLocked() {
	if s.renderer != nil {
		s.renderer.RenderList(s.listLocked())
	}
}

func (s *Synchronizer) renderSuggestionsLocked() {
	if s.renderer != nil {
		s.renderer.RenderSuggestions(s.panelLocked())
	}
}

func (s *Synchronizer) renderFormLocked() {
	if s.renderer != nil {
		s.renderer.RenderForm(s.form)
	}
}
