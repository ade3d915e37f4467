package s3

import (
	"bytes"
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

	appconfig "github.com/ai-navigator/navigator/internal/config"
	"github.com/ai-navigator/navigator/internal/storage"
)

// 1x1 transparent PNG
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// ---------------------------------------------------------------------------
// New(): constructor validation (no AWS connection required)
// ---------------------------------------------------------------------------

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  appconfig.S3StorageConfig
	}{
		{"missing bucket", appconfig.S3StorageConfig{Region: "us-east-1"}},
		{"missing region", appconfig.S3StorageConfig{Bucket: "logos"}},
		{"static without keys", appconfig.S3StorageConfig{Bucket: "logos", Region: "us-east-1", AuthMethod: "static"}},
		{"unsupported auth", appconfig.S3StorageConfig{Bucket: "logos", Region: "us-east-1", AuthMethod: "kerberos"}},
		{"oidc without role", appconfig.S3StorageConfig{Bucket: "logos", Region: "us-east-1", AuthMethod: "oidc", WebIdentityTokenFile: "/tmp/token"}},
		{"oidc without token file", appconfig.S3StorageConfig{Bucket: "logos", Region: "us-east-1", AuthMethod: "oidc", RoleARN: "arn:aws:iam::123:role/x"}},
		{"assume_role without role", appconfig.S3StorageConfig{Bucket: "logos", Region: "us-east-1", AuthMethod: "assume_role"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(&tt.cfg); err == nil {
				t.Error("New() = nil error, want error")
			}
		})
	}
}

func TestNew_AssumeRole_WithExternalID(t *testing.T) {
	s, err := New(&appconfig.S3StorageConfig{
		Bucket:     "logos",
		Region:     "us-east-1",
		AuthMethod: "assume_role",
		RoleARN:    "arn:aws:iam::123456789012:role/logos",
		ExternalID: "navigator",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if s == nil {
		t.Error("New() returned nil storage")
	}
}

// ---------------------------------------------------------------------------
// Mock S3-compatible HTTP server for operations tests
// ---------------------------------------------------------------------------

type s3MockStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	meta    map[string]map[string]string
	fail    bool // answer every request with 500
}

func (ms *s3MockStore) setFail() {
	ms.mu.Lock()
	ms.fail = true
	ms.mu.Unlock()
}

// newS3TestStorage creates an S3Storage backed by a path-style mock server
// that understands PUT, GET, HEAD and DELETE on single objects.
func newS3TestStorage(t *testing.T) (*S3Storage, *s3MockStore) {
	t.Helper()

	ms := &s3MockStore{
		objects: map[string][]byte{},
		types:   map[string]string{},
		meta:    map[string]map[string]string{},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ms.mu.Lock()
		defer ms.mu.Unlock()

		if ms.fail {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `<?xml version="1.0"?><Error><Code>InternalError</Code><Message>boom</Message></Error>`)
			return
		}

		// /test-bucket/key/path
		key := strings.TrimPrefix(r.URL.Path, "/test-bucket/")

		switch r.Method {
		case http.MethodPut:
			data, _ := io.ReadAll(r.Body)
			meta := map[string]string{}
			for hk, hv := range r.Header {
				lk := strings.ToLower(hk)
				if strings.HasPrefix(lk, "x-amz-meta-") && len(hv) > 0 {
					meta[strings.TrimPrefix(lk, "x-amz-meta-")] = hv[0]
				}
			}
			ms.objects[key] = data
			ms.types[key] = r.Header.Get("Content-Type")
			ms.meta[key] = meta
			w.Header().Set("ETag", `"test-etag"`)
			w.WriteHeader(http.StatusOK)

		case http.MethodGet:
			data, ok := ms.objects[key]
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)

		case http.MethodHead:
			data, ok := ms.objects[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
			w.WriteHeader(http.StatusOK)

		case http.MethodDelete:
			delete(ms.objects, key)
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)

	s, err := New(&appconfig.S3StorageConfig{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		AuthMethod:      "static",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
		Endpoint:        srv.URL,
	})
	if err != nil {
		t.Fatalf("New() for mock S3: %v", err)
	}

	return s, ms
}

// ---------------------------------------------------------------------------
// Upload
// ---------------------------------------------------------------------------

func TestS3_Upload(t *testing.T) {
	s, ms := newS3TestStorage(t)

	result, err := s.Upload(context.Background(), "logos/chatgpt.png", bytes.NewReader(pngPixel), int64(len(pngPixel)))
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if result.Path != "logos/chatgpt.png" {
		t.Errorf("Path = %q", result.Path)
	}
	if result.Size != int64(len(pngPixel)) {
		t.Errorf("Size = %d, want %d", result.Size, len(pngPixel))
	}
	if len(result.Checksum) != 64 {
		t.Errorf("Checksum length = %d, want 64", len(result.Checksum))
	}
	if result.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want image/png", result.ContentType)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.types["logos/chatgpt.png"] != "image/png" {
		t.Errorf("stored Content-Type = %q", ms.types["logos/chatgpt.png"])
	}
	if ms.meta["logos/chatgpt.png"]["sha256"] != result.Checksum {
		t.Error("sha256 metadata does not match checksum")
	}
}

func TestS3_Upload_ServerError(t *testing.T) {
	s, ms := newS3TestStorage(t)
	ms.setFail()

	if _, err := s.Upload(context.Background(), "x.png", bytes.NewReader(pngPixel), 0); err == nil {
		t.Error("Upload() = nil error, want error")
	}
}

// ---------------------------------------------------------------------------
// Download / Exists / Delete
// ---------------------------------------------------------------------------

func TestS3_Download(t *testing.T) {
	s, _ := newS3TestStorage(t)
	ctx := context.Background()

	if _, err := s.Upload(ctx, "a.png", bytes.NewReader(pngPixel), 0); err != nil {
		t.Fatal(err)
	}

	rc, err := s.Download(ctx, "a.png")
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	defer rc.Close()

	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, pngPixel) {
		t.Error("downloaded bytes differ from uploaded bytes")
	}
}

func TestS3_Download_NotFound(t *testing.T) {
	s, _ := newS3TestStorage(t)

	_, err := s.Download(context.Background(), "missing.png")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Download() error = %v, want ErrNotFound", err)
	}
}

func TestS3_Exists(t *testing.T) {
	s, _ := newS3TestStorage(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "a.png")
	if err != nil || ok {
		t.Fatalf("Exists() before upload = %v, %v", ok, err)
	}

	_, _ = s.Upload(ctx, "a.png", bytes.NewReader(pngPixel), 0)

	ok, err = s.Exists(ctx, "a.png")
	if err != nil || !ok {
		t.Errorf("Exists() after upload = %v, %v", ok, err)
	}
}

func TestS3_Exists_ServerError(t *testing.T) {
	s, ms := newS3TestStorage(t)
	ms.setFail()

	if _, err := s.Exists(context.Background(), "a.png"); err == nil {
		t.Error("Exists() = nil error on 500, want error")
	}
}

func TestS3_Delete(t *testing.T) {
	s, ms := newS3TestStorage(t)
	ctx := context.Background()

	_, _ = s.Upload(ctx, "a.png", bytes.NewReader(pngPixel), 0)
	if err := s.Delete(ctx, "a.png"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	ms.mu.Lock()
	_, still := ms.objects["a.png"]
	ms.mu.Unlock()
	if still {
		t.Error("object still present after Delete()")
	}
}

// ---------------------------------------------------------------------------
// GetURL
// ---------------------------------------------------------------------------

func TestS3_GetURL(t *testing.T) {
	s, _ := newS3TestStorage(t)
	ctx := context.Background()

	_, _ = s.Upload(ctx, "logos/a.png", bytes.NewReader(pngPixel), 0)

	url, err := s.GetURL(ctx, "logos/a.png", 15*time.Minute)
	if err != nil {
		t.Fatalf("GetURL() error: %v", err)
	}
	if !strings.Contains(url, "/test-bucket/logos/a.png") {
		t.Errorf("GetURL() = %q, want object path", url)
	}
	if !strings.Contains(url, "X-Amz-Expires=900") {
		t.Errorf("GetURL() = %q, want 900s expiry", url)
	}
}

func TestS3_GetURL_NotFound(t *testing.T) {
	s, _ := newS3TestStorage(t)

	_, err := s.GetURL(context.Background(), "missing.png", time.Minute)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetURL() error = %v, want ErrNotFound", err)
	}
}
