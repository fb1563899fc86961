package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/nuance-dev/convierto-sub000/internal/backend"
	"github.com/nuance-dev/convierto-sub000/internal/cache"
	"github.com/nuance-dev/convierto-sub000/internal/converter"
	"github.com/nuance-dev/convierto-sub000/internal/engine"
	"github.com/nuance-dev/convierto-sub000/internal/format"
	"github.com/nuance-dev/convierto-sub000/internal/resource"
	"github.com/nuance-dev/convierto-sub000/internal/startup"
)

// stubBackend writes fixed output for every operation, with an optional
// per-call delay.
type stubBackend struct {
	delay time.Duration
}

func (s *stubBackend) wait(ctx context.Context) error {
	if s.delay == 0 {
		return nil
	}
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *stubBackend) Probe(ctx context.Context, path string) (*backend.MediaInfo, error) {
	return &backend.MediaInfo{Duration: 10, HasAudio: true, Pages: 1}, nil
}

func (s *stubBackend) Reencode(ctx context.Context, input, output string, target format.Descriptor, opts backend.Options) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return os.WriteFile(output, []byte("converted"), 0o644)
}

func (s *stubBackend) Rasterize(ctx context.Context, doc, outDir string, dpi int) ([]string, error) {
	page := filepath.Join(outDir, "page-001.png")
	return []string{page}, os.WriteFile(page, []byte("page"), 0o644)
}

func (s *stubBackend) SampleAudio(ctx context.Context, input string, maxSamples int) ([]float64, error) {
	return make([]float64, 16), nil
}

func (s *stubBackend) RenderFrames(ctx context.Context, frames []string, frameSeconds float64, output string, target format.Descriptor, opts backend.Options) error {
	return os.WriteFile(output, []byte("video"), 0o644)
}

func (s *stubBackend) ExtractFrame(ctx context.Context, video string, atSeconds float64, output string) error {
	return os.WriteFile(output, []byte("frame"), 0o644)
}

func (s *stubBackend) ExtractAudio(ctx context.Context, video, output string, target format.Descriptor, opts backend.Options) error {
	return os.WriteFile(output, []byte("audio"), 0o644)
}

func newTestRouter(t *testing.T, sb *stubBackend) *mux.Router {
	t.Helper()

	pool := resource.NewPool(func() (uint64, error) { return 64 << 30, nil })
	cm, err := cache.New(t.TempDir(), cache.DefaultRetention, pool.IsFileActive)
	if err != nil {
		t.Fatalf("cache.New failed: %v", err)
	}

	cfg := engine.DefaultConfig()
	cfg.RetryBase = time.Millisecond
	coord := engine.New(cfg, pool, cm, converter.NewFactory(sb))

	h := New(coord, &startup.Config{CacheDir: t.TempDir(), MetricsEnabled: false})
	r := mux.NewRouter()
	h.Register(r)
	return r
}

// multipartUpload builds a multipart body with a file and target field.
func multipartUpload(t *testing.T, filename, target, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteField("target", target); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func submit(t *testing.T, router *mux.Router, filename, target string) string {
	t.Helper()

	body, contentType := multipartUpload(t, filename, target, "source bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Bad response JSON: %v", err)
	}
	if resp["id"] == "" {
		t.Fatal("Expected a task id")
	}
	return resp["id"]
}

func pollStatus(t *testing.T, router *mux.Router, id string) TaskStatus {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for {
		req := httptest.NewRequest(http.MethodGet, "/api/convert/"+id, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Status poll returned %d", rec.Code)
		}

		var status TaskStatus
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			t.Fatalf("Bad status JSON: %v", err)
		}
		// A terminal stage is observable just before the outcome is
		// recorded; wait for both.
		if status.Stage == string(engine.StageCompleted) && status.SuggestedName != "" {
			return status
		}
		if status.Stage == string(engine.StageFailed) && status.Error != "" {
			return status
		}
		if time.Now().After(deadline) {
			t.Fatalf("Task %s did not finish, last stage %s", id, status.Stage)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSubmitPollDownload(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	id := submit(t, router, "photo.jpg", "png")
	status := pollStatus(t, router, id)

	if status.Stage != string(engine.StageCompleted) {
		t.Fatalf("Expected completed, got %s (%s)", status.Stage, status.Error)
	}
	if status.Progress != 1.0 {
		t.Errorf("Expected progress 1.0, got %f", status.Progress)
	}
	if status.SuggestedName != "photo.png" {
		t.Errorf("Expected suggested name photo.png, got %s", status.SuggestedName)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/convert/"+id+"/download", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Download returned %d", rec.Code)
	}
	if rec.Body.String() != "converted" {
		t.Errorf("Unexpected artifact body %q", rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="photo.png"` {
		t.Errorf("Unexpected Content-Disposition %q", cd)
	}
}

func TestSubmitRejectsUnknownTarget(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	body, contentType := multipartUpload(t, "photo.jpg", "xyz", "source bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown target, got %d", rec.Code)
	}
}

func TestSubmitRejectsMissingFile(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("target", "png")
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/convert", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing file, got %d", rec.Code)
	}
}

func TestIncompatiblePairReportedThroughStatus(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	id := submit(t, router, "report.pdf", "mp3")
	status := pollStatus(t, router, id)

	if status.Stage != string(engine.StageFailed) {
		t.Fatalf("Expected failed stage, got %s", status.Stage)
	}
	if status.Error == "" {
		t.Error("Expected an error description")
	}
}

func TestGetUnknownTask(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	req := httptest.NewRequest(http.MethodGet, "/api/convert/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestDownloadWhileRunning(t *testing.T) {
	router := newTestRouter(t, &stubBackend{delay: 300 * time.Millisecond})

	id := submit(t, router, "photo.jpg", "png")

	req := httptest.NewRequest(http.MethodGet, "/api/convert/"+id+"/download", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 while running, got %d", rec.Code)
	}

	pollStatus(t, router, id)
}

func TestListFormats(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	req := httptest.NewRequest(http.MethodGet, "/api/formats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var formats []FormatInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &formats); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if len(formats) == 0 {
		t.Fatal("Expected at least one format")
	}

	found := false
	for _, f := range formats {
		if f.Ext == "png" && f.Category == "image" {
			found = true
		}
	}
	if !found {
		t.Error("Expected png/image in the format list")
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	for _, path := range []string{"/health", "/healthz", "/livez", "/readyz", "/version"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Errorf("%s returned %d", path, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("%s returned Content-Type %s", path, ct)
			}
		})
	}
}
