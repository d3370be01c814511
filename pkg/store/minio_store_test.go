package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
)

func TestObjectName(t *testing.T) {
	cases := map[string]string{
		BooksKey:    BooksKey + ".json",
		SettingsKey: SettingsKey + ".json",
		"a/b":       "a/b.json",
	}
	for key, want := range cases {
		if got := objectName(key); got != want {
			t.Fatalf("objectName(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestReadObjectErr(t *testing.T) {
	missing := minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	if err := readObjectErr(missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("NoSuchKey should map to ErrNotFound, got %v", err)
	}

	for _, cause := range []error{
		minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden},
		minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound},
		io.ErrUnexpectedEOF,
	} {
		err := readObjectErr(cause)
		if errors.Is(err, ErrNotFound) {
			t.Fatalf("%v should not map to ErrNotFound", cause)
		}
		if !errors.Is(err, cause) {
			t.Fatalf("expected %v to stay wrapped, got %v", cause, err)
		}
	}
}

// fakeBucket answers the handful of S3 calls MinioStore makes.
type fakeBucket struct {
	name string

	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, ok := r.URL.Query()["location"]; ok {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/"></LocationConstraint>`)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != f.name {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
		return
	}
	if key == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		// Plain HTTP uploads arrive aws-chunked, so the raw body is kept as is.
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}

func TestMinioStoreMissingObject(t *testing.T) {
	bucket := &fakeBucket{name: "readlog", objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(bucket)
	defer srv.Close()

	s, err := NewMinioStore(strings.TrimPrefix(srv.URL, "http://"), "access", "secret", "readlog", false)
	if err != nil {
		t.Fatalf("new minio store: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.Get(ctx, BooksKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing object, got %v", err)
	}
}

func TestMinioStoreWritesJSONObject(t *testing.T) {
	bucket := &fakeBucket{name: "readlog", objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(bucket)
	defer srv.Close()

	s, err := NewMinioStore(strings.TrimPrefix(srv.URL, "http://"), "access", "secret", "readlog", false)
	if err != nil {
		t.Fatalf("new minio store: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Set(ctx, SettingsKey, []byte(`{"sort":"title-asc"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}

	bucket.mu.Lock()
	_, stored := bucket.objects[objectName(SettingsKey)]
	contentType := bucket.types[objectName(SettingsKey)]
	bucket.mu.Unlock()
	if !stored {
		t.Fatalf("expected object %q in bucket", objectName(SettingsKey))
	}
	if contentType != "application/json" {
		t.Fatalf("content type = %q, want application/json", contentType)
	}
}
