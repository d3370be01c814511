package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"readlog/internal/util"
	"readlog/pkg/domain"
	"readlog/pkg/library"
	"readlog/pkg/query"
	"readlog/pkg/suggest"
	"readlog/pkg/view"
	"readlog/services/readlog/internal/app"
)

const maxEventBytes = 64 << 10

// RateLimiter gates requests per client key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	RetryAfter() time.Duration
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	CORSOrigin     string
	TrustedProxies *util.TrustedProxies
	// Heartbeat is the comment interval on idle event streams.
	Heartbeat time.Duration
	// Nil limiters leave the route unlimited.
	EventLimiter   RateLimiter
	SuggestLimiter RateLimiter
}

// Server exposes the reading list over JSON and Server-Sent Events.
type Server struct {
	app        *app.App
	mux        *http.ServeMux
	corsOrigin string
	trusted    *util.TrustedProxies
	heartbeat  time.Duration

	eventLimiter   RateLimiter
	suggestLimiter RateLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	heartbeat := cfg.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	s := &Server{
		app:        cfg.App,
		mux:        http.NewServeMux(),
		corsOrigin: cfg.CORSOrigin,
		trusted:    cfg.TrustedProxies,
		heartbeat:  heartbeat,

		eventLimiter:   cfg.EventLimiter,
		suggestLimiter: cfg.SuggestLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("readlog", s.trusted, util.WithSecurityHeaders(util.WithCORS(s.corsOrigin, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/view", s.handleView)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/stream", s.handleStream)

	// read-only queries that leave the interactive state alone
	s.mux.HandleFunc("/api/books", s.handleBooks)
	s.mux.HandleFunc("/api/books/", s.handleBookByID)
	s.mux.HandleFunc("/api/suggestions", s.handleSuggestions)
	s.mux.HandleFunc("/api/announcements", s.handleAnnouncements)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Frame())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.eventLimiter) {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body) > maxEventBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "event too large")
		return
	}
	ev, err := view.DecodeEvent(body)
	if err != nil {
		writeAppError(w, err)
		return
	}
	frame, err := s.app.Dispatch(r.Context(), ev)
	if err != nil {
		util.LoggerFromContext(r.Context()).Debug("event rejected", "type", ev.EventType(), "err", err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	id, frames := s.app.Subscribe()
	defer s.app.Unsubscribe(id)
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		case frame, ok := <-frames:
			if !ok {
				return
			}
			data, err := json.Marshal(frame)
			if err != nil {
				util.LoggerFromContext(r.Context()).Error("encode frame", "err", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: frame\ndata: %s\n\n", data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

type bookListResponse struct {
	Books []domain.Book `json:"books"`
	Stats query.Stats   `json:"stats"`
	Sort  string        `json:"sort"`
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	filter := domain.Filter{Query: q.Get("q"), Status: domain.StatusAll}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" && raw != domain.StatusAll {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = string(status)
	}
	sort := domain.DefaultSort()
	if raw := strings.TrimSpace(q.Get("sort")); raw != "" {
		parsed, err := domain.ParseSortSpec(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid sort")
			return
		}
		sort = parsed
	}
	books, stats := s.app.List(filter, sort)
	writeJSON(w, http.StatusOK, bookListResponse{Books: books, Stats: stats, Sort: sort.String()})
}

func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/api/books/"))
	if err != nil || id <= 0 {
		notFound(w, "book not found")
		return
	}
	book, ok := s.app.Book(id)
	if !ok {
		notFound(w, "book not found")
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query required")
		return
	}
	if !s.allowRate(w, r, s.suggestLimiter) {
		return
	}
	items, err := s.app.Suggest(r.Context(), q)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleAnnouncements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit := int64(10)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	msgs, ok, err := s.app.RecentAnnouncements(r.Context(), limit)
	if !ok {
		notFound(w, "announcement stream not configured")
		return
	}
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("read announcements", "err", err)
		writeError(w, http.StatusBadGateway, "announcement stream unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"announcements": msgs})
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter RateLimiter) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trusted)
	ok, err := limiter.Allow(r.Context(), key)
	if err != nil {
		util.LoggerFromContext(r.Context()).Warn("rate limiter unavailable", "err", err)
	}
	if ok {
		return true
	}
	retry := int(limiter.RetryAfter().Round(time.Second) / time.Second)
	w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
	writeError(w, http.StatusTooManyRequests, "too many requests")
	return false
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeForReadlog(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get(util.RequestIDHeader)),
	})
}

// writeAppError maps core errors onto HTTP responses.
func writeAppError(w http.ResponseWriter, err error) {
	resp := errorResponse{
		Error:     err.Error(),
		RequestID: strings.TrimSpace(w.Header().Get(util.RequestIDHeader)),
	}
	status := http.StatusInternalServerError
	var verr *library.ValidationError
	var apiErr *suggest.APIError
	switch {
	case errors.As(err, &verr):
		status, resp.Code, resp.Field = http.StatusBadRequest, "READLOG_VALIDATION_FAILED", verr.Field
	case errors.Is(err, view.ErrUnknownEvent):
		status, resp.Code = http.StatusBadRequest, "READLOG_UNKNOWN_EVENT"
	case errors.Is(err, view.ErrInvalidEvent):
		status, resp.Code = http.StatusBadRequest, "READLOG_INVALID_EVENT"
	case errors.Is(err, library.ErrNotFound):
		status, resp.Code = http.StatusNotFound, "READLOG_BOOK_NOT_FOUND"
	case errors.Is(err, app.ErrSuggestionsDisabled):
		status, resp.Code = http.StatusServiceUnavailable, "READLOG_SUGGESTIONS_DISABLED"
	case errors.As(err, &apiErr):
		status, resp.Code = http.StatusBadGateway, "READLOG_SUGGEST_UPSTREAM"
	default:
		resp.Error = "internal error"
		resp.Code = "SYSTEM_INTERNAL_ERROR"
	}
	writeJSON(w, status, resp)
}

func errorCodeForReadlog(status int, msg string) string {
	switch strings.ToLower(strings.TrimSpace(msg)) {
	case "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case "book not found":
		return "READLOG_BOOK_NOT_FOUND"
	case "invalid status":
		return "READLOG_INVALID_STATUS"
	case "invalid sort":
		return "READLOG_INVALID_SORT"
	case "query required":
		return "READLOG_QUERY_REQUIRED"
	case "event too large":
		return "READLOG_EVENT_TOO_LARGE"
	case "too many requests":
		return "SYSTEM_RATE_LIMITED"
	}
	switch {
	case status == http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case status >= http.StatusInternalServerError:
		return "SYSTEM_INTERNAL_ERROR"
	default:
		return "SYSTEM_BAD_REQUEST"
	}
}
