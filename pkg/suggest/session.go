package suggest

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"readlog/pkg/domain"
)

// State is the lifecycle position of an autocomplete session.
type State int

const (
	Idle State = iota
	Debouncing
	Fetching
	Resolved
	Cancelled
	Failed
)

func (s State) String() string {
	switch s {
	case Debouncing:
		return "debouncing"
	case Fetching:
		return "fetching"
	case Resolved:
		return "resolved"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Update is delivered to the session listener on every visible transition.
// Cancellations are silent and produce no update. Seq is the session sequence
// the update was produced under; see Session.Current.
type Update struct {
	State State
	Query string
	Items []domain.Suggestion
	Seq   uint64
}

// opens reports whether applying u would show lookup state rather than clear it.
func (u Update) opens() bool {
	return u.State == Fetching || u.State == Resolved
}

// Config tunes the debounce gate.
type Config struct {
	Debounce time.Duration
	MinChars int
	Limit    int
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = 300 * time.Millisecond
	}
	if c.MinChars <= 0 {
		c.MinChars = 3
	}
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	return c
}

// Session debounces keystrokes into lookups and keeps at most one lookup in
// flight. Every input, selection or dismissal bumps a sequence number; a
// lookup whose sequence is no longer current is cancelled and its result
// dropped, so a slow stale response can never overwrite a fresh one.
//
// Updates are queued under the session lock and handed to the listener by a
// single delivery goroutine, preserving transition order without holding the
// lock while the listener runs.
type Session struct {
	lookup   Lookup
	cfg      Config
	listener func(Update)

	base context.Context
	stop context.CancelFunc

	mu         sync.Mutex
	state      State
	query      string
	seq        uint64
	timer      *time.Timer
	cancel     context.CancelFunc
	closed     bool
	pending    []Update
	delivering bool
}

// NewSession starts an idle session. listener may be nil.
func NewSession(lookup Lookup, cfg Config, listener func(Update)) *Session {
	base, stop := context.WithCancel(context.Background())
	return &Session{
		lookup:   lookup,
		cfg:      cfg.withDefaults(),
		listener: listener,
		base:     base,
		stop:     stop,
	}
}

// Input reacts to a change of the title field.
func (s *Session) Input(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.resetLocked()
	q := strings.TrimSpace(text)
	if utf8.RuneCountInString(q) < s.cfg.MinChars {
		s.state = Idle
		s.query = ""
		s.enqueueLocked(Update{State: Idle})
		return
	}
	s.state = Debouncing
	s.query = q
	seq := s.seq
	s.timer = time.AfterFunc(s.cfg.Debounce, func() { s.fire(seq) })
	s.enqueueLocked(Update{State: Debouncing, Query: q})
}

// Select ends the session after the user picked a suggestion.
func (s *Session) Select(item domain.Suggestion) domain.Suggestion {
	s.end()
	return item
}

// Dismiss hides the suggestions and ends the session.
func (s *Session) Dismiss() {
	s.end()
}

// Close stops the session for good. Pending lookups are cancelled.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.resetLocked()
	s.closed = true
	s.state = Idle
	s.stop()
}

// State returns the current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current reports whether seq is still the live sequence. Listeners that apply
// updates under their own lock should check it there: the session may move on
// between delivery and application.
func (s *Session) Current(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seq == s.seq
}

// InFlight reports whether a lookup is currently outstanding.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.resetLocked()
	s.state = Idle
	s.query = ""
	s.enqueueLocked(Update{State: Idle})
}

// resetLocked invalidates the pending timer and the in-flight lookup.
func (s *Session) resetLocked() {
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		if s.state == Fetching {
			s.state = Cancelled
		}
	}
}

func (s *Session) fire(seq uint64) {
	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	s.state = Fetching
	q := s.query
	s.enqueueLocked(Update{State: Fetching, Query: q})
	s.mu.Unlock()

	items, err := s.lookup.Search(ctx, q, s.cfg.Limit)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return
	}
	s.cancel = nil
	if err != nil {
		slog.Debug("suggestion lookup failed", "query", q, "err", err)
		s.state = Failed
		s.enqueueLocked(Update{State: Failed, Query: q})
		return
	}
	if len(items) > s.cfg.Limit {
		items = items[:s.cfg.Limit]
	}
	s.state = Resolved
	s.enqueueLocked(Update{State: Resolved, Query: q, Items: items})
}

func (s *Session) enqueueLocked(u Update) {
	if s.listener == nil {
		return
	}
	u.Seq = s.seq
	s.pending = append(s.pending, u)
	if !s.delivering {
		s.delivering = true
		go s.deliver()
	}
}

func (s *Session) deliver() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.delivering = false
			s.mu.Unlock()
			return
		}
		u := s.pending[0]
		s.pending = s.pending[1:]
		stale := u.opens() && u.Seq != s.seq
		s.mu.Unlock()
		if stale {
			continue
		}
		s.listener(u)
	}
}
