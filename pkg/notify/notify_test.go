package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type memorySink struct {
	mu     sync.Mutex
	msgs   []Message
	fail   bool
	closed bool
}

func (s *memorySink) Publish(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("broker down")
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestNotifierDeliversInOrder(t *testing.T) {
	good := &memorySink{}
	bad := &memorySink{fail: true}
	n := New(8, bad, good)
	n.Announce("uno")
	n.Announce("   ")
	n.Announce("dos")
	if err := n.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	n.Announce("after close")

	if len(good.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %+v", good.msgs)
	}
	if good.msgs[0].Text != "uno" || good.msgs[0].Seq != 1 || good.msgs[1].Text != "dos" || good.msgs[1].Seq != 2 {
		t.Fatalf("unexpected messages %+v", good.msgs)
	}
	if !good.closed || !bad.closed {
		t.Fatal("sinks should be closed")
	}
	if err := n.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestPublishingEncodesJSON(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	pub, err := publishing(Message{Text: "«Dune» añadido a tu lista.", Seq: 7, At: at})
	if err != nil {
		t.Fatalf("publishing: %v", err)
	}
	if pub.ContentType != "application/json" || pub.MessageId == "" || !pub.Timestamp.Equal(at) {
		t.Fatalf("unexpected headers %+v", pub)
	}
	var body map[string]any
	if err := json.Unmarshal(pub.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["text"] != "«Dune» añadido a tu lista." || body["seq"] != float64(7) || body["at"] != "2024-05-01T10:00:00Z" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestDialAMQPRequiresURL(t *testing.T) {
	if _, err := DialAMQP(" ", ""); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestStreamSinkPublishAndRecent(t *testing.T) {
	srv := miniredis.RunT(t)
	sink, err := NewStreamSink(StreamConfig{Addr: srv.Addr(), Stream: "test:announcements"})
	if err != nil {
		t.Fatalf("new stream sink: %v", err)
	}
	defer sink.Close()

	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, text := range []string{"uno", "dos", "tres"} {
		if err := sink.Publish(ctx, Message{Text: text, Seq: uint64(i + 1), At: at}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	recent, err := sink.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Text != "tres" || recent[0].Seq != 3 || recent[1].Text != "dos" {
		t.Fatalf("unexpected recent %+v", recent)
	}
	if !recent[0].At.Equal(at) {
		t.Fatalf("timestamp lost: %v", recent[0].At)
	}
}

func TestNewStreamSinkRequiresAddr(t *testing.T) {
	if _, err := NewStreamSink(StreamConfig{}); err == nil {
		t.Fatal("expected error for empty addr")
	}
}
