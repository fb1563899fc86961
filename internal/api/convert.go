package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/nuance-dev/convierto-sub000/internal/engine"
	"github.com/nuance-dev/convierto-sub000/internal/format"
	"github.com/nuance-dev/convierto-sub000/internal/logging"
)

// maxUploadBytes bounds the multipart form size held in memory plus disk.
const maxUploadBytes = 4 << 30

// SubmitConversion accepts a multipart upload and starts a conversion.
// The response carries the task id for status polling; the conversion
// itself runs in the background.
func (h *Handlers) SubmitConversion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSONError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	target := r.FormValue("target")
	if !format.IsSupported(target) {
		writeJSONError(w, fmt.Sprintf("unsupported target format %q", target), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	source, err := format.Parse(header.Filename)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := uuid.NewString()
	staged := filepath.Join(h.uploadDir, "upload-"+id+"."+source.Ext)
	if err := stageUpload(staged, file); err != nil {
		logging.Error("failed to stage upload %s: %v", header.Filename, err)
		writeJSONError(w, "could not store upload", http.StatusInternalServerError)
		return
	}

	t := &task{id: id, createdAt: time.Now(), tracker: engine.NewTracker()}
	h.tasks.add(t)

	// The request context ends with this response; the conversion runs on
	// its own context.
	go func() {
		defer os.Remove(staged)
		defer t.tracker.Close()

		result, err := h.coord.ConvertTracked(context.Background(), staged, target, t.tracker)
		if err != nil {
			logging.Error("conversion %s (%s -> %s) failed: %v", id, source.Ext, target, err)
		}
		t.complete(result, err)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{
		"id":     id,
		"status": "/api/convert/" + id,
	})
}

// stageUpload copies the uploaded content to its staging path.
func stageUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}

// GetConversion returns the current stage and progress of a task.
func (h *Handlers) GetConversion(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tasks.get(mux.Vars(r)["id"])
	if !ok {
		writeJSONError(w, "unknown task", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, t.status())
}

// DownloadResult serves the converted artifact. Multi-page outputs are a
// directory; the page query parameter selects one page, and without it the
// page list is returned as JSON.
func (h *Handlers) DownloadResult(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tasks.get(mux.Vars(r)["id"])
	if !ok {
		writeJSONError(w, "unknown task", http.StatusNotFound)
		return
	}

	result, convErr, done := t.outcome()
	if !done {
		writeJSONError(w, "conversion still running", http.StatusConflict)
		return
	}
	if convErr != nil {
		writeJSONError(w, convErr.Error(), http.StatusUnprocessableEntity)
		return
	}

	info, err := os.Stat(result.OutputPath)
	if err != nil {
		writeJSONError(w, "artifact no longer available", http.StatusGone)
		return
	}

	if !info.IsDir() {
		serveFile(w, r, result.OutputPath, result.SuggestedName)
		return
	}

	pages, err := listPages(result.OutputPath)
	if err != nil {
		writeJSONError(w, "artifact no longer available", http.StatusGone)
		return
	}

	pageParam := r.URL.Query().Get("page")
	if pageParam == "" {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, map[string]interface{}{
			"name":  result.SuggestedName,
			"pages": len(pages),
		})
		return
	}

	n, err := strconv.Atoi(pageParam)
	if err != nil || n < 1 || n > len(pages) {
		writeJSONError(w, fmt.Sprintf("page out of range 1..%d", len(pages)), http.StatusBadRequest)
		return
	}
	serveFile(w, r, pages[n-1], filepath.Base(pages[n-1]))
}

// listPages returns the page files of a multi-page output in order.
func listPages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var pages []string
	for _, e := range entries {
		if !e.IsDir() {
			pages = append(pages, filepath.Join(dir, e.Name()))
		}
	}
	// Page names are zero-padded, lexical order is page order.
	sort.Strings(pages)
	return pages, nil
}

func serveFile(w http.ResponseWriter, r *http.Request, path, name string) {
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

// FormatInfo is the JSON shape of one supported format.
type FormatInfo struct {
	Ext      string `json:"ext"`
	MIME     string `json:"mime"`
	Category string `json:"category"`
}

// ListFormats returns every supported format.
func (h *Handlers) ListFormats(w http.ResponseWriter, _ *http.Request) {
	descriptors := format.Supported()
	out := make([]FormatInfo, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, FormatInfo{Ext: d.Ext, MIME: d.MIME, Category: string(d.Category)})
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, out)
}
