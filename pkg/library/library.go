package library

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"readlog/pkg/domain"
	"readlog/pkg/store"
)

// Library owns the authoritative list of books. Every mutation writes the
// whole list back to the key-value store before returning.
type Library struct {
	mu    sync.RWMutex
	kv    store.Store
	books []domain.Book
}

// New returns an empty library backed by kv. Call Load before use.
func New(kv store.Store) *Library {
	return &Library{kv: kv, books: []domain.Book{}}
}

// Load reads the persisted list. A missing, undecodable or non-array payload
// is replaced by the seed set, which is persisted once.
func (l *Library) Load(ctx context.Context) ([]domain.Book, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := l.kv.Get(ctx, store.BooksKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("read books: %w", err)
	}
	if err == nil {
		books, decodeErr := decodeBooks(raw)
		if decodeErr == nil {
			l.books = books
			return cloneBooks(l.books), nil
		}
		slog.Warn("stored books unreadable, reseeding", "err", decodeErr)
	}

	l.books = SeedBooks()
	if err := l.persistLocked(ctx); err != nil {
		return nil, err
	}
	return cloneBooks(l.books), nil
}

func decodeBooks(raw []byte) ([]domain.Book, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("books payload is not an array")
	}
	var books []domain.Book
	if err := json.Unmarshal(trimmed, &books); err != nil {
		return nil, fmt.Errorf("decode books: %w", err)
	}
	seen := make(map[int]struct{}, len(books))
	for _, b := range books {
		if b.ID <= 0 {
			return nil, fmt.Errorf("invalid book id %d", b.ID)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("duplicate book id %d", b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	if books == nil {
		books = []domain.Book{}
	}
	return books, nil
}

// Books returns a copy of the current list in storage order.
func (l *Library) Books() []domain.Book {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneBooks(l.books)
}

// Get returns the book with id.
func (l *Library) Get(id int) (domain.Book, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := l.indexOf(id); i >= 0 {
		return l.books[i], true
	}
	return domain.Book{}, false
}

// Add validates and appends a new book with the next free id.
// An unknown status defaults to toread.
func (l *Library) Add(ctx context.Context, title, author string, status domain.BookStatus, cover string) (domain.Book, error) {
	title = cleanText(title)
	author = cleanText(author)
	if title == "" {
		return domain.Book{}, requiredError("title")
	}
	if author == "" {
		return domain.Book{}, requiredError("author")
	}
	if !status.Valid() {
		status = domain.StatusToRead
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	book := domain.Book{
		ID:     l.nextIDLocked(),
		Title:  title,
		Author: author,
		Status: status,
		Cover:  cleanCover(cover),
	}
	l.books = append(l.books, book)
	if err := l.persistLocked(ctx); err != nil {
		return book, err
	}
	return book, nil
}

// Remove deletes the book with id if present. The list is persisted either way.
func (l *Library) Remove(ctx context.Context, id int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := false
	if i := l.indexOf(id); i >= 0 {
		l.books = append(l.books[:i], l.books[i+1:]...)
		removed = true
	}
	return removed, l.persistLocked(ctx)
}

// CycleStatus advances the book's status one step around the cycle.
// It reports false when no book has id.
func (l *Library) CycleStatus(ctx context.Context, id int) (domain.BookStatus, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexOf(id)
	if i < 0 {
		return "", false, nil
	}
	next := l.books[i].Status.Next()
	l.books[i].Status = next
	return next, true, l.persistLocked(ctx)
}

// Update applies a partial edit. Nothing changes unless every provided
// field is valid.
func (l *Library) Update(ctx context.Context, id int, patch domain.BookPatch) (domain.Book, error) {
	var title, author, cover string
	if patch.Title != nil {
		if title = cleanText(*patch.Title); title == "" {
			return domain.Book{}, requiredError("title")
		}
	}
	if patch.Author != nil {
		if author = cleanText(*patch.Author); author == "" {
			return domain.Book{}, requiredError("author")
		}
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return domain.Book{}, &ValidationError{Field: "status", Message: "invalid status"}
	}
	if patch.Cover != nil {
		cover = cleanCover(*patch.Cover)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexOf(id)
	if i < 0 {
		return domain.Book{}, ErrNotFound
	}
	b := &l.books[i]
	if patch.Title != nil {
		b.Title = title
	}
	if patch.Author != nil {
		b.Author = author
	}
	if patch.Status != nil {
		b.Status = *patch.Status
	}
	if patch.Cover != nil {
		b.Cover = cover
	}
	return *b, l.persistLocked(ctx)
}

// Clear removes every book. The sort preference is left alone.
func (l *Library) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.books = []domain.Book{}
	return l.persistLocked(ctx)
}

// Reseed replaces the list with the built-in seed set.
func (l *Library) Reseed(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.books = SeedBooks()
	return l.persistLocked(ctx)
}

func (l *Library) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(l.books)
	if err != nil {
		return fmt.Errorf("marshal books: %w", err)
	}
	if err := l.kv.Set(ctx, store.BooksKey, data); err != nil {
		return fmt.Errorf("persist books: %w", err)
	}
	return nil
}

func (l *Library) nextIDLocked() int {
	maxID := 0
	for _, b := range l.books {
		if b.ID > maxID {
			maxID = b.ID
		}
	}
	return maxID + 1
}

func (l *Library) indexOf(id int) int {
	for i, b := range l.books {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func cloneBooks(in []domain.Book) []domain.Book {
	out := make([]domain.Book, len(in))
	copy(out, in)
	return out
}
