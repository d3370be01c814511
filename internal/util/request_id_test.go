package util

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWithRequestIDChoosesID(t *testing.T) {
	long := strings.Repeat("a", maxRequestIDLen+1)
	cases := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "reuses caller id", incoming: "req-incoming-123", keep: true},
		{name: "trims caller id", incoming: "  req-padded  ", keep: true},
		{name: "generates when missing", incoming: ""},
		{name: "generates when blank", incoming: "   "},
		{name: "replaces oversized id", incoming: long},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromRequest(r)
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/view", nil)
			if tc.incoming != "" {
				req.Header.Set(RequestIDHeader, tc.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			echoed := rec.Header().Get(RequestIDHeader)
			if echoed == "" || echoed != seen {
				t.Fatalf("header %q and context %q should match", echoed, seen)
			}
			if tc.keep && echoed != strings.TrimSpace(tc.incoming) {
				t.Fatalf("expected caller id %q, got %q", strings.TrimSpace(tc.incoming), echoed)
			}
			if !tc.keep && (echoed == strings.TrimSpace(tc.incoming) || len(echoed) > maxRequestIDLen) {
				t.Fatalf("expected a generated id, got %q", echoed)
			}
		})
	}
}

func TestWithRequestIDStoresTaggedLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil)).With("service", "readlog")

	handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		LoggerFromContext(r.Context()).Info("event applied")
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/events", nil)
	req = req.WithContext(ContextWithLogger(req.Context(), base))
	req.Header.Set(RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["request_id"] != "req-42" || entry["service"] != "readlog" || entry["msg"] != "event applied" {
		t.Fatalf("unexpected log entry %v", entry)
	}
}

func TestRequestIDOutsideRequest(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
	if got := RequestIDFromRequest(nil); got != "" {
		t.Fatalf("expected empty id for nil request, got %q", got)
	}
}

func TestWithCORSExposesRequestID(t *testing.T) {
	handler := WithCORS("https://app.example", WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	req := httptest.NewRequest(http.MethodGet, "/api/view", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, RequestIDHeader) {
		t.Fatalf("Expose-Headers %q should list %s", got, RequestIDHeader)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, RequestIDHeader) {
		t.Fatalf("Allow-Headers %q should list %s", got, RequestIDHeader)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected request id on a cross-origin response")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("unexpected origin %q", got)
	}
}
