package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/lectureqa/backend/internal/logger"
	"github.com/lectureqa/backend/internal/storage"
)

// MediaLocator resolves a job ID to its processed media file on disk.
type MediaLocator interface {
	MediaPath(jobID string) (string, error)
}

// Handler serves processed lecture media with HTTP Range support so video
// players can seek. Local files are served directly; when a storage mirror
// is configured it acts as a fallback for media evicted from the data dir.
type Handler struct {
	locator MediaLocator
	mirror  *storage.Client // may be nil
	log     *logger.Logger
}

// NewHandler creates a new media streaming handler. mirror may be nil when
// no object storage is configured.
func NewHandler(locator MediaLocator, mirror *storage.Client) *Handler {
	return &Handler{
		locator: locator,
		mirror:  mirror,
		log:     logger.WithComponent("stream"),
	}
}

// rangeSpec represents a parsed HTTP Range header.
type rangeSpec struct {
	start int64
	end   int64
}

// parseRange parses an HTTP Range header value.
// Supports formats: "bytes=0-499", "bytes=500-", "bytes=-500"
func parseRange(rangeHeader string, totalSize int64) (*rangeSpec, error) {
	if rangeHeader == "" {
		return nil, nil
	}

	if !strings.HasPrefix(rangeHeader, "bytes=") {
		return nil, errors.New("invalid range unit")
	}

	rangeSpec := &rangeSpec{}
	spec := strings.TrimPrefix(rangeHeader, "bytes=")

	// Handle multiple ranges (not supported - just use first one)
	if strings.Contains(spec, ",") {
		spec = strings.Split(spec, ",")[0]
	}

	// Parse range format: start-end, start-, -suffix
	re := regexp.MustCompile(`^(\d*)-(\d*)$`)
	matches := re.FindStringSubmatch(strings.TrimSpace(spec))
	if matches == nil {
		return nil, errors.New("invalid range format")
	}

	startStr, endStr := matches[1], matches[2]

	switch {
	case startStr == "" && endStr == "":
		return nil, errors.New("invalid range: both start and end are empty")

	case startStr == "":
		// Suffix range: -500 means last 500 bytes
		suffix, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid suffix length: %w", err)
		}
		rangeSpec.start = totalSize - suffix
		if rangeSpec.start < 0 {
			rangeSpec.start = 0
		}
		rangeSpec.end = totalSize - 1

	case endStr == "":
		// Open-ended range: 500- means from byte 500 to end
		start, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid start position: %w", err)
		}
		rangeSpec.start = start
		rangeSpec.end = totalSize - 1

	default:
		// Explicit range: 0-499
		start, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid start position: %w", err)
		}
		end, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid end position: %w", err)
		}
		rangeSpec.start = start
		rangeSpec.end = end
	}

	// Validate range
	if rangeSpec.start < 0 || rangeSpec.start >= totalSize {
		return nil, errors.New("range start out of bounds")
	}
	if rangeSpec.end >= totalSize {
		rangeSpec.end = totalSize - 1
	}
	if rangeSpec.start > rangeSpec.end {
		return nil, errors.New("invalid range: start > end")
	}

	return rangeSpec, nil
}

// Serve handles GET /api/v1/videos/{job_id}/media.
// Supports HTTP Range requests for seeking in video players.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID := r.PathValue("job_id")
	if jobID == "" {
		writeJSONError(w, http.StatusBadRequest, "job_id is required")
		return
	}

	path, err := h.locator.MediaPath(jobID)
	if err == nil {
		h.serveLocal(w, r, jobID, path)
		return
	}

	if h.mirror != nil && h.serveMirror(ctx, w, r, jobID) {
		return
	}

	writeJSONError(w, http.StatusNotFound, "media not available for this job")
}

// serveLocal serves a media file straight from the data directory.
// http.ServeContent handles Range, If-Modified-Since and content type.
func (h *Handler) serveLocal(w http.ResponseWriter, r *http.Request, jobID, path string) {
	f, err := os.Open(path)
	if err != nil {
		h.log.Error(r.Context(), "failed to open media file", err, map[string]interface{}{"job_id": jobID, "path": path})
		writeJSONError(w, http.StatusNotFound, "media not available for this job")
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to read media file")
		return
	}

	w.Header().Set("Content-Type", storage.ContentTypeFor(path))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, filepath.Base(path), stat.ModTime(), f)
}

// serveMirror streams media from the object storage mirror. Returns false
// when the mirror has no object for this job so the caller can 404.
func (h *Handler) serveMirror(ctx context.Context, w http.ResponseWriter, r *http.Request, jobID string) bool {
	key, info := h.findMirrorObject(ctx, jobID)
	if key == "" {
		return false
	}

	totalSize := info.Size
	contentType := info.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentTypeFor(key)
	}

	rangeHeader := r.Header.Get("Range")
	spec, err := parseRange(rangeHeader, totalSize)
	if err != nil {
		h.log.Warn(ctx, "invalid range header", map[string]interface{}{"range": rangeHeader, "job_id": jobID})
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", totalSize))
		writeJSONError(w, http.StatusRequestedRangeNotSatisfiable, "invalid range")
		return true
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "public, max-age=86400")

	if spec != nil {
		contentLength := spec.end - spec.start + 1
		w.Header().Set("Content-Length", strconv.FormatInt(contentLength, 10))
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", spec.start, spec.end, totalSize))
		w.WriteHeader(http.StatusPartialContent)

		reader, err := h.mirror.GetObjectRange(ctx, key, spec.start, spec.end)
		if err != nil {
			h.log.Error(ctx, "failed to read object range", err, map[string]interface{}{"key": key})
			return true // Headers already sent
		}
		defer reader.Close()

		if _, err := io.Copy(w, reader); err != nil {
			h.log.Error(ctx, "failed to stream range", err, map[string]interface{}{"key": key})
		}
		return true
	}

	w.Header().Set("Content-Length", strconv.FormatInt(totalSize, 10))
	w.WriteHeader(http.StatusOK)

	reader, _, err := h.mirror.GetObject(ctx, key)
	if err != nil {
		h.log.Error(ctx, "failed to read object", err, map[string]interface{}{"key": key})
		return true // Headers already sent
	}
	defer reader.Close()

	if _, err := io.Copy(w, reader); err != nil {
		h.log.Error(ctx, "failed to stream object", err, map[string]interface{}{"key": key})
	}
	return true
}

// findMirrorObject probes the mirror for the job's media under the common
// container extensions.
func (h *Handler) findMirrorObject(ctx context.Context, jobID string) (string, *storage.ObjectInfo) {
	for _, ext := range []string{".mp4", ".webm", ".mkv", ".m4a", ".mp3"} {
		key := storage.MediaKey(jobID, ext)
		info, err := h.mirror.StatObject(ctx, key)
		if err == nil {
			return key, info
		}
	}
	return "", nil
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
