package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fvitu/offliner/internal/models"
	"github.com/fvitu/offliner/internal/progress"
	"github.com/fvitu/offliner/internal/quota"
	"github.com/fvitu/offliner/internal/shared"
)

// streamPollInterval is how often the SSE handler re-reads the Progress
// Store while a job is in flight.
const streamPollInterval = 300 * time.Millisecond

// errorResponse is the JSON shape of every non-2xx response, per spec.md §6.
type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	var violation quota.Violation
	if errors.As(err, &violation) {
		resp.Reason = string(violation.Reason)
	}
	writeJSON(w, status, resp)
}

// handleDownload implements POST /download (spec.md §6).
func (s *Handlers) handleDownload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	req, err := parseDownloadRequest(
		r.FormValue("inputURL"),
		r.FormValue("is_playlist_mode"),
		r.FormValue("selected_urls"),
		r.FormValue("user_config"),
		r.FormValue("item_configs"),
		s.clientIdentity(r),
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	requestID, err := s.Jobs.Enqueue(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrQuotaExceeded):
			writeError(w, http.StatusTooManyRequests, err)
		case errors.Is(err, shared.ErrEmptyInput), errors.Is(err, shared.ErrInvalidInput), errors.Is(err, models.ErrInvalidModel):
			writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, shared.ErrBrokerUnavailable):
			writeError(w, http.StatusServiceUnavailable, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"request_id": requestID})
}

// handleStreamProgress implements GET /stream_progress/{request_id} as
// Server-Sent Events, per spec.md §6. It polls the Progress Store and
// forwards every record until the record is terminal; on client disconnect
// it requests cancellation (spec.md §5).
func (s *Handlers) handleStreamProgress(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "request_id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.Cancel != nil {
				_ = s.Cancel.RequestCancel(context.Background(), requestID)
			}
			return
		case <-ticker.C:
			rec, err := s.Jobs.Observe(ctx, requestID)
			if err != nil {
				rec = progress.NotFound()
			}

			payload, _ := json.Marshal(rec)
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()

			if rec.Complete {
				return
			}
		}
	}
}

// handleDownloadFile implements GET /download_file/{request_id}, per
// spec.md §6: streams the artifact, then destroys it and schedules
// Progress Record removal once the response stream closes.
func (s *Handlers) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "request_id")

	path, err := s.Artifacts.ArtifactPath(r.Context(), requestID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=\""+filepath.Base(path)+"\"")
	http.ServeFile(w, r, path)

	s.Artifacts.Cleanup(r.Context(), requestID)
}

// clientIdentity derives the opaque per-client token used only for quota
// accounting (spec.md §3). Real identity/session handling lives in the
// out-of-scope HTTP surface this package stands in for; here it falls back
// to the remote address when no explicit header is set.
func (s *Handlers) clientIdentity(r *http.Request) string {
	if v := r.Header.Get("X-Client-Identity"); v != "" {
		return v
	}
	return r.RemoteAddr
}
