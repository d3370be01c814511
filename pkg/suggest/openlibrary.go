package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"readlog/pkg/domain"
)

const (
	DefaultBaseURL   = "https://openlibrary.org"
	DefaultCoversURL = "https://covers.openlibrary.org"
)

// OpenLibrary searches the Open Library catalogue over HTTP.
type OpenLibrary struct {
	baseURL    string
	coversURL  string
	httpClient *http.Client
}

// APIError represents a non-success search response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewOpenLibrary constructs a search client. Empty URLs use the public service.
func NewOpenLibrary(baseURL, coversURL string, timeout time.Duration) *OpenLibrary {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(coversURL) == "" {
		coversURL = DefaultCoversURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OpenLibrary{
		baseURL:    strings.TrimRight(baseURL, "/"),
		coversURL:  strings.TrimRight(coversURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type searchResponse struct {
	Docs []struct {
		Title      string   `json:"title"`
		AuthorName []string `json:"author_name"`
		CoverI     int64    `json:"cover_i"`
	} `json:"docs"`
}

// Search queries titles matching query and maps at most limit documents.
func (c *OpenLibrary) Search(ctx context.Context, query string, limit int) ([]domain.Suggestion, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	params := url.Values{}
	params.Set("title", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fields", "title,author_name,cover_i")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Message: "search failed: " + resp.Status}
	}
	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	out := make([]domain.Suggestion, 0, min(limit, len(body.Docs)))
	for _, doc := range body.Docs {
		if len(out) == limit {
			break
		}
		s := domain.Suggestion{Title: doc.Title}
		if len(doc.AuthorName) > 0 {
			s.Author = doc.AuthorName[0]
		}
		if doc.CoverI > 0 {
			s.Cover = fmt.Sprintf("%s/b/id/%d-M.jpg", c.coversURL, doc.CoverI)
		}
		out = append(out, s)
	}
	return out, nil
}
