package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream announcements are appended to.
const DefaultStream = "readlog:announcements"

// StreamConfig configures a StreamSink.
type StreamConfig struct {
	Addr     string
	Password string
	Stream   string
	MaxLen   int64
}

// StreamSink appends announcements to a capped Redis stream so late readers
// can replay recent history.
type StreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamSink(cfg StreamConfig) (*StreamSink, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = DefaultStream
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &StreamSink{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream: stream,
		maxLen: maxLen,
	}, nil
}

func (s *StreamSink) Publish(ctx context.Context, msg Message) error {
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"text": msg.Text,
			"seq":  strconv.FormatUint(msg.Seq, 10),
			"at":   msg.At.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
}

// Recent returns up to limit messages, newest first.
func (s *StreamSink) Recent(ctx context.Context, limit int64) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	entries, err := s.client.XRevRangeN(ctx, s.stream, "+", "-", limit).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(entries))
	for _, e := range entries {
		msg, err := decodeMessage(e.Values)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.ID, err)
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *StreamSink) Close() error {
	return s.client.Close()
}

func decodeMessage(values map[string]any) (Message, error) {
	msg := Message{Text: toString(values["text"])}
	if raw := toString(values["seq"]); raw != "" {
		seq, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Message{}, err
		}
		msg.Seq = seq
	}
	if raw := toString(values["at"]); raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Message{}, err
		}
		msg.At = at
	}
	return msg, nil
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
