package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"readlog/pkg/domain"
	"readlog/pkg/library"
	"readlog/pkg/store"
	"readlog/pkg/suggest"
)

type recorder struct {
	mu     sync.Mutex
	lists  []ListView
	panels []SuggestionPanel
	forms  []FormView
	notes  []Announcement
}

func (r *recorder) RenderList(v ListView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists = append(r.lists, v)
}

func (r *recorder) RenderSuggestions(p SuggestionPanel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panels = append(r.panels, p)
}

func (r *recorder) RenderForm(v FormView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms = append(r.forms, v)
}

func (r *recorder) RenderAnnouncement(a Announcement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, a)
}

func (r *recorder) lastList() ListView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lists[len(r.lists)-1]
}

func (r *recorder) listCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lists)
}

func cardIDs(v ListView) []int {
	ids := make([]int, 0, len(v.Cards))
	for _, c := range v.Cards {
		ids = append(ids, c.ID)
	}
	return ids
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func newSync(t *testing.T, kv store.Store, lookup suggest.Lookup) (*Synchronizer, *recorder) {
	t.Helper()
	rec := &recorder{}
	s, err := New(Config{
		Library:  library.New(kv),
		Renderer: rec,
		Lookup:   lookup,
		Suggest:  suggest.Config{Debounce: 5 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("new synchronizer: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s, rec
}

func TestStartRendersSeededList(t *testing.T) {
	_, rec := newSync(t, store.NewMemoryStore(), nil)
	v := rec.lastList()
	if got := cardIDs(v); !equalInts(got, []int{1, 3, 2}) {
		t.Fatalf("initial order = %v, want [1 3 2]", got)
	}
	if v.Sort != "title-asc" || v.Stats.Total != 3 || v.Empty {
		t.Fatalf("unexpected list header %+v", v)
	}
	card := v.Cards[0]
	if card.StatusLabel != "Terminado" || card.NextStatus != domain.StatusToRead || card.CoverAlt != "Portada de 1984" {
		t.Fatalf("unexpected card %+v", card)
	}
}

func TestSearchAndEmptyState(t *testing.T) {
	s, rec := newSync(t, store.NewMemoryStore(), nil)
	ctx := context.Background()
	if err := s.Dispatch(ctx, AddSubmitted{Title: "Cien años de soledad", Author: "Gabriel García Márquez"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Dispatch(ctx, SearchChanged{Text: "garcia"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	v := rec.lastList()
	if len(v.Cards) != 1 || v.Cards[0].ID != 4 {
		t.Fatalf("expected only the new book, got %v", cardIDs(v))
	}
	if v.Cards[0].Cover != domain.PlaceholderCover {
		t.Fatalf("missing cover should use placeholder, got %q", v.Cards[0].Cover)
	}

	if err := s.Dispatch(ctx, SearchChanged{Text: "zzz"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	v = rec.lastList()
	if !v.Empty || v.EmptyMessage != EmptyMessage || len(v.Cards) != 0 {
		t.Fatalf("expected empty state, got %+v", v)
	}
	if v.Stats.Total != 4 {
		t.Fatalf("stats should count the whole library, got %+v", v.Stats)
	}
}

func TestStatusFilterAndSortArePersisted(t *testing.T) {
	kv := store.NewMemoryStore()
	s, rec := newSync(t, kv, nil)
	ctx := context.Background()

	if err := s.Dispatch(ctx, StatusFilterChanged{Status: "reading"}); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if got := cardIDs(rec.lastList()); !equalInts(got, []int{2}) {
		t.Fatalf("reading filter = %v", got)
	}
	if err := s.Dispatch(ctx, StatusFilterChanged{Status: "bogus"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if err := s.Dispatch(ctx, StatusFilterChanged{Status: domain.StatusAll}); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if err := s.Dispatch(ctx, SortChanged{Sort: "status-asc"}); err != nil {
		t.Fatalf("sort: %v", err)
	}
	if got := cardIDs(rec.lastList()); !equalInts(got, []int{3, 2, 1}) {
		t.Fatalf("status order = %v", got)
	}

	settings, err := library.New(kv).LoadSettings(ctx)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if settings.Sort != "status-asc" {
		t.Fatalf("persisted sort = %q", settings.Sort)
	}

	_, rec2 := newSync(t, kv, nil)
	if rec2.lastList().Sort != "status-asc" {
		t.Fatalf("restart should restore sort, got %q", rec2.lastList().Sort)
	}
}

func TestAddValidationRendersInlineError(t *testing.T) {
	kv := store.NewMemoryStore()
	s, rec := newSync(t, kv, nil)
	before := rec.listCount()

	err := s.Dispatch(context.Background(), AddSubmitted{Title: "  ", Author: "Someone"})
	if !errors.Is(err, library.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	f := s.Frame()
	if f.Form.Error != "title required" || f.Form.ErrorField != "title" {
		t.Fatalf("unexpected form %+v", f.Form)
	}
	if rec.listCount() != before {
		t.Fatal("list should not re-render on validation failure")
	}
	if len(f.List.Cards) != 3 {
		t.Fatalf("nothing should be added, got %d cards", len(f.List.Cards))
	}
}

func TestMutationsAnnounce(t *testing.T) {
	s, rec := newSync(t, store.NewMemoryStore(), nil)
	ctx := context.Background()

	if err := s.Dispatch(ctx, StatusCycleClicked{ID: 3}); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if got := s.Frame().Announcement.Text; got != "«El nombre de la rosa» ahora está: Leyendo." {
		t.Fatalf("announcement = %q", got)
	}
	if err := s.Dispatch(ctx, DeleteClicked{ID: 1}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := cardIDs(rec.lastList()); !equalInts(got, []int{3, 2}) {
		t.Fatalf("after delete = %v", got)
	}
	if err := s.Dispatch(ctx, StatusCycleClicked{ID: 99}); !errors.Is(err, library.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Dispatch(ctx, ClearConfirmed{}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !rec.lastList().Empty {
		t.Fatal("expected empty list after clear")
	}
	if err := s.Dispatch(ctx, ReseedConfirmed{}); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if got := cardIDs(rec.lastList()); !equalInts(got, []int{1, 3, 2}) {
		t.Fatalf("after reseed = %v", got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	// Every announcement is preceded by an empty write.
	if len(rec.notes) != 8 {
		t.Fatalf("expected 8 live region writes, got %d", len(rec.notes))
	}
	for i, n := range rec.notes {
		if n.Seq != uint64(i+1) {
			t.Fatalf("write %d has seq %d", i, n.Seq)
		}
		if (i%2 == 0) != (n.Text == "") {
			t.Fatalf("write %d = %q, expected alternating clear/text", i, n.Text)
		}
	}
}

func TestEditSubmitted(t *testing.T) {
	s, rec := newSync(t, store.NewMemoryStore(), nil)
	ctx := context.Background()
	title := "Nineteen Eighty-Four"
	if err := s.Dispatch(ctx, EditSubmitted{ID: 1, Patch: domain.BookPatch{Title: &title}}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got := cardIDs(rec.lastList()); !equalInts(got, []int{3, 1, 2}) {
		t.Fatalf("order after rename = %v", got)
	}
	empty := ""
	err := s.Dispatch(ctx, EditSubmitted{ID: 1, Patch: domain.BookPatch{Author: &empty}})
	if !errors.Is(err, library.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f := s.Frame().Form; f.EditID != 1 || f.ErrorField != "author" {
		t.Fatalf("unexpected inline edit error %+v", f)
	}
	if err := s.Dispatch(ctx, EditSubmitted{ID: 42, Patch: domain.BookPatch{Title: &title}}); !errors.Is(err, library.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type staticLookup []domain.Suggestion

func (l staticLookup) Search(context.Context, string, int) ([]domain.Suggestion, error) {
	return l, nil
}

func waitPanel(t *testing.T, s *Synchronizer, visible bool) SuggestionPanel {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p := s.Frame().Suggestions; p.Visible == visible && !p.Loading {
			return p
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("suggestion panel never became visible=%v", visible)
	return SuggestionPanel{}
}

func TestSuggestionNavigationAndSelection(t *testing.T) {
	lookup := staticLookup{
		{Title: "Dune", Author: "Frank Herbert", Cover: "https://covers.example/1.jpg"},
		{Title: "Dune Messiah", Author: "Frank Herbert"},
		{Title: "Children of Dune", Author: "Frank Herbert"},
	}
	s, _ := newSync(t, store.NewMemoryStore(), lookup)
	ctx := context.Background()

	if err := s.Dispatch(ctx, TitleInputChanged{Text: "dune"}); err != nil {
		t.Fatalf("input: %v", err)
	}
	p := waitPanel(t, s, true)
	if len(p.Items) != 3 || p.ActiveIndex != -1 {
		t.Fatalf("unexpected panel %+v", p)
	}

	steps := []struct {
		dir  string
		want int
	}{
		{NavigateUp, 2},
		{NavigateDown, 2},
		{NavigateUp, 1},
		{NavigateUp, 0},
		{NavigateUp, 0},
		{NavigateDown, 1},
	}
	for _, st := range steps {
		if err := s.Dispatch(ctx, SuggestionNavigated{Direction: st.dir}); err != nil {
			t.Fatalf("navigate: %v", err)
		}
		if got := s.Frame().Suggestions.ActiveIndex; got != st.want {
			t.Fatalf("after %s active = %d, want %d", st.dir, got, st.want)
		}
	}

	if err := s.Dispatch(ctx, SuggestionSelected{}); err != nil {
		t.Fatalf("select: %v", err)
	}
	f := s.Frame()
	if f.Form.Title != "Dune Messiah" || f.Form.Author != "Frank Herbert" {
		t.Fatalf("selection should fill the form, got %+v", f.Form)
	}
	if f.Suggestions.Visible || f.Suggestions.ActiveIndex != -1 {
		t.Fatalf("panel should be closed, got %+v", f.Suggestions)
	}
	waitPanel(t, s, false)
}

func TestSuggestionDismissAndShortInput(t *testing.T) {
	s, _ := newSync(t, store.NewMemoryStore(), staticLookup{{Title: "Dune"}})
	ctx := context.Background()

	if err := s.Dispatch(ctx, TitleInputChanged{Text: "dune"}); err != nil {
		t.Fatalf("input: %v", err)
	}
	waitPanel(t, s, true)
	if err := s.Dispatch(ctx, SuggestionDismissed{}); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if s.Frame().Suggestions.Visible {
		t.Fatal("panel should be hidden after dismiss")
	}
	if err := s.Dispatch(ctx, TitleInputChanged{Text: "du"}); err != nil {
		t.Fatalf("input: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if p := s.Frame().Suggestions; p.Visible || len(p.Items) != 0 {
		t.Fatalf("short input should keep the panel empty, got %+v", p)
	}
	if got := s.Frame().Form.Title; got != "du" {
		t.Fatalf("form title = %q", got)
	}
}

func TestUnknownEventRejected(t *testing.T) {
	s, _ := newSync(t, store.NewMemoryStore(), nil)
	if err := s.Dispatch(context.Background(), &SearchChanged{Text: "x"}); !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent for pointer event, got %v", err)
	}
}

// gatedLookup answers only after release is closed, or when ctx ends.
type gatedLookup struct {
	release chan struct{}
	items   []domain.Suggestion
}

func (l *gatedLookup) Search(ctx context.Context, _ string, _ int) ([]domain.Suggestion, error) {
	select {
	case <-l.release:
		return l.items, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func waitInFlight(t *testing.T, s *Synchronizer) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !s.session.InFlight() {
		if time.Now().After(deadline) {
			t.Fatal("lookup never started")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestAddEndsSuggestionSession(t *testing.T) {
	lookup := &gatedLookup{release: make(chan struct{}), items: []domain.Suggestion{{Title: "Dune", Author: "Frank Herbert"}}}
	s, _ := newSync(t, store.NewMemoryStore(), lookup)
	ctx := context.Background()

	if err := s.Dispatch(ctx, TitleInputChanged{Text: "Dune"}); err != nil {
		t.Fatalf("input: %v", err)
	}
	waitInFlight(t, s)
	if err := s.Dispatch(ctx, AddSubmitted{Title: "Dune", Author: "Frank Herbert"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if s.session.InFlight() {
		t.Fatal("add should cancel the pending lookup")
	}
	close(lookup.release)
	time.Sleep(40 * time.Millisecond)

	f := s.Frame()
	if f.Suggestions.Visible || len(f.Suggestions.Items) != 0 || f.Suggestions.Loading {
		t.Fatalf("panel reopened after the form was submitted: %+v", f.Suggestions)
	}
	if f.Form.Title != "" {
		t.Fatalf("form should be reset, got %+v", f.Form)
	}
}

func TestDismissDropsResultWaitingToApply(t *testing.T) {
	lookup := &gatedLookup{release: make(chan struct{}), items: []domain.Suggestion{{Title: "Dune"}}}
	s, rec := newSync(t, store.NewMemoryStore(), lookup)
	ctx := context.Background()

	if err := s.Dispatch(ctx, TitleInputChanged{Text: "dune"}); err != nil {
		t.Fatalf("input: %v", err)
	}
	waitInFlight(t, s)

	// Hold the lock as a concurrent Dispatch would while the lookup settles.
	s.mu.Lock()
	close(lookup.release)
	deadline := time.Now().Add(2 * time.Second)
	for s.session.State() != suggest.Resolved {
		if time.Now().After(deadline) {
			s.mu.Unlock()
			t.Fatal("lookup never resolved")
		}
		time.Sleep(2 * time.Millisecond)
	}
	s.session.Dismiss()
	s.closePanelLocked()
	rec.mu.Lock()
	mark := len(rec.panels)
	rec.mu.Unlock()
	s.mu.Unlock()

	time.Sleep(40 * time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, p := range rec.panels[mark:] {
		if p.Visible || len(p.Items) != 0 {
			t.Fatalf("render %d after dismiss showed suggestions: %+v", i, p)
		}
	}
	if p := rec.panels[len(rec.panels)-1]; p.Visible {
		t.Fatalf("panel should stay closed, got %+v", p)
	}
}
