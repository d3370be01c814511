package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/language"

	"readlog/pkg/domain"
	"readlog/pkg/library"
	"readlog/pkg/notify"
	"readlog/pkg/query"
	"readlog/pkg/store"
	"readlog/pkg/suggest"
	"readlog/pkg/view"
)

// ErrSuggestionsDisabled is returned by Suggest when no lookup is configured.
var ErrSuggestionsDisabled = errors.New("suggestions disabled")

// Config holds app-level settings.
type Config struct {
	Store    store.Config
	Language language.Tag

	SuggestEnabled   bool
	SuggestBaseURL   string
	SuggestCoversURL string
	SuggestTimeout   time.Duration
	SuggestDebounce  time.Duration
	SuggestMinChars  int
	SuggestLimit     int
	SuggestCacheSize int

	AMQPURL                string
	AMQPExchange           string
	AnnounceStream         string
	AnnounceStreamAddr     string
	AnnounceStreamPassword string

	// KV and Lookup replace the configured backends when set.
	KV     store.Store
	Lookup suggest.Lookup
}

// App wires the reading list core: storage, the view synchronizer, the
// suggestion lookup and the announcement sinks.
type App struct {
	kv       store.Store
	lib      *library.Library
	engine   *query.Engine
	lookup   suggest.Lookup
	limit    int
	notifier *notify.Notifier
	stream   *notify.StreamSink
	snapshot *view.Snapshot
	sync     *view.Synchronizer
}

// New constructs the app and renders the initial frame.
func New(ctx context.Context, cfg Config) (*App, error) {
	kv := cfg.KV
	if kv == nil {
		var err error
		kv, err = store.Open(ctx, cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}
	a := &App{
		kv:       kv,
		lib:      library.New(kv),
		engine:   query.NewEngine(cfg.Language),
		limit:    cfg.SuggestLimit,
		snapshot: view.NewSnapshot(),
	}
	if a.limit <= 0 {
		a.limit = suggest.DefaultLimit
	}

	a.lookup = cfg.Lookup
	if a.lookup == nil && cfg.SuggestEnabled {
		var lookup suggest.Lookup = suggest.NewOpenLibrary(cfg.SuggestBaseURL, cfg.SuggestCoversURL, cfg.SuggestTimeout)
		if cfg.SuggestCacheSize > 0 {
			cached, err := suggest.NewCached(lookup, cfg.SuggestCacheSize)
			if err != nil {
				_ = kv.Close()
				return nil, err
			}
			lookup = cached
		}
		a.lookup = lookup
	}

	var sinks []notify.Sink
	if cfg.AMQPURL != "" {
		sink, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			slog.Warn("amqp announcements disabled", "err", err)
		} else {
			sinks = append(sinks, sink)
		}
	}
	if cfg.AnnounceStream != "" {
		sink, err := notify.NewStreamSink(notify.StreamConfig{
			Addr:     cfg.AnnounceStreamAddr,
			Password: cfg.AnnounceStreamPassword,
			Stream:   cfg.AnnounceStream,
		})
		if err != nil {
			slog.Warn("announcement stream disabled", "err", err)
		} else {
			a.stream = sink
			sinks = append(sinks, sink)
		}
	}
	var announcer view.Announcer
	if len(sinks) > 0 {
		a.notifier = notify.New(0, sinks...)
		announcer = a.notifier
	}

	sync, err := view.New(view.Config{
		Library:   a.lib,
		Engine:    a.engine,
		Renderer:  a.snapshot,
		Announcer: announcer,
		Lookup:    a.lookup,
		Suggest: suggest.Config{
			Debounce: cfg.SuggestDebounce,
			MinChars: cfg.SuggestMinChars,
			Limit:    a.limit,
		},
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.sync = sync
	if err := sync.Start(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Frame returns the current render description.
func (a *App) Frame() view.Frame {
	return a.sync.Frame()
}

// Dispatch applies a user event and returns the resulting frame.
func (a *App) Dispatch(ctx context.Context, ev view.Event) (view.Frame, error) {
	err := a.sync.Dispatch(ctx, ev)
	return a.sync.Frame(), err
}

// Subscribe streams frames as they are rendered.
func (a *App) Subscribe() (string, <-chan view.Frame) {
	return a.snapshot.Subscribe()
}

func (a *App) Unsubscribe(id string) {
	a.snapshot.Unsubscribe(id)
}

// List computes a filtered, sorted view of the library without touching the
// interactive filter state.
func (a *App) List(filter domain.Filter, sort domain.SortSpec) ([]domain.Book, query.Stats) {
	all := a.lib.Books()
	return a.engine.Visible(all, filter, sort), query.Count(all)
}

// Book returns one book by id.
func (a *App) Book(id int) (domain.Book, bool) {
	return a.lib.Get(id)
}

// Suggest runs a single lookup outside the debounced session.
func (a *App) Suggest(ctx context.Context, q string) ([]domain.Suggestion, error) {
	if a.lookup == nil {
		return nil, ErrSuggestionsDisabled
	}
	items, err := a.lookup.Search(ctx, q, a.limit)
	if err != nil {
		return nil, err
	}
	if len(items) > a.limit {
		items = items[:a.limit]
	}
	return items, nil
}

// RecentAnnouncements reads back the announcement stream, newest first.
// It reports false when no stream is configured.
func (a *App) RecentAnnouncements(ctx context.Context, limit int64) ([]notify.Message, bool, error) {
	if a.stream == nil {
		return nil, false, nil
	}
	msgs, err := a.stream.Recent(ctx, limit)
	return msgs, true, err
}

// Close flushes announcements and releases storage.
func (a *App) Close() {
	if a.sync != nil {
		a.sync.Close()
	}
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			slog.Warn("close announcement sinks", "err", err)
		}
	}
	if err := a.kv.Close(); err != nil {
		slog.Warn("close store", "err", err)
	}
}
