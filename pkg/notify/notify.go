// Package notify publishes user-facing announcements to external channels.
// Publishing happens on a background goroutine so announcing never blocks the
// caller; failures are logged and otherwise ignored.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Message is one published announcement.
type Message struct {
	Text string    `json:"text"`
	Seq  uint64    `json:"seq"`
	At   time.Time `json:"at"`
}

// Sink receives published messages.
type Sink interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

const publishTimeout = 5 * time.Second

// Notifier queues announcements and fans them out to every sink.
type Notifier struct {
	sinks []Sink
	queue chan Message
	done  chan struct{}
	now   func() time.Time

	mu     sync.Mutex
	seq    uint64
	closed bool
}

// New starts a notifier. buffer bounds the number of queued messages; when it
// is full new messages are dropped.
func New(buffer int, sinks ...Sink) *Notifier {
	if buffer <= 0 {
		buffer = 64
	}
	n := &Notifier{
		sinks: sinks,
		queue: make(chan Message, buffer),
		done:  make(chan struct{}),
		now:   time.Now,
	}
	go n.run()
	return n
}

// Announce queues text for publishing. Empty text is ignored.
func (n *Notifier) Announce(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.seq++
	msg := Message{Text: text, Seq: n.seq, At: n.now().UTC()}
	select {
	case n.queue <- msg:
	default:
		slog.Warn("announcement dropped, queue full", "seq", msg.Seq)
	}
}

// Close publishes what is already queued and closes the sinks.
func (n *Notifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	<-n.done
	var errs []error
	for _, s := range n.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) run() {
	defer close(n.done)
	for msg := range n.queue {
		for _, s := range n.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			if err := s.Publish(ctx, msg); err != nil {
				slog.Error("publish announcement failed", "seq", msg.Seq, "err", err)
			}
			cancel()
		}
	}
}
