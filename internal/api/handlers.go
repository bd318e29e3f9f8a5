package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"vidrelay/internal/ledger"
	"vidrelay/internal/models"
	"vidrelay/internal/storage"
	"vidrelay/internal/store"
	"vidrelay/internal/telemetry"
)

type uploadResponse struct {
	Success bool            `json:"success"`
	Files   []storage.Image `json:"files"`
}

// handleUpload streams the multipart body so oversized files never sit in
// memory beyond the ceiling. Non-image and oversized parts are skipped
// without an error.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form data")
		return
	}

	files := []storage.Image{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed multipart body")
			return
		}
		contentType := part.Header.Get("Content-Type")
		if part.FormName() != "files" || part.FileName() == "" || !strings.HasPrefix(contentType, "image/") {
			_ = part.Close()
			continue
		}

		img, err := s.images.Save(r.Context(), part.FileName(), contentType, part)
		_ = part.Close()
		if errors.Is(err, storage.ErrTooLarge) {
			s.log.Debug().Str("filename", part.FileName()).Msg("upload over size limit skipped")
			continue
		}
		if err != nil {
			s.log.Error().Err(err).Str("filename", part.FileName()).Msg("store upload")
			writeError(w, http.StatusInternalServerError, "failed to store upload")
			return
		}
		telemetry.UploadsAccepted.Inc()
		files = append(files, img)
	}

	writeJSON(w, http.StatusOK, uploadResponse{Success: true, Files: files})
}

type generateResponse struct {
	Success   bool     `json:"success"`
	SessionID string   `json:"session_id"`
	TaskIDs   []string `json:"task_ids"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req := models.NewGenerationRequest()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	switch {
	case strings.TrimSpace(req.APIURL) == "":
		writeError(w, http.StatusBadRequest, "api_url is required")
		return
	case strings.TrimSpace(req.APIKey) == "":
		writeError(w, http.StatusBadRequest, "api_key is required")
		return
	case req.VideosPerImage < 0:
		writeError(w, http.StatusBadRequest, "videos_per_image must not be negative")
		return
	case req.VideosPerImage > models.MaxJobsPerRequest || req.JobCount() > models.MaxJobsPerRequest:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("a request may create at most %d jobs", models.MaxJobsPerRequest))
		return
	}

	sub := s.dispatcher.Dispatch(req, clientIP(r))
	writeJSON(w, http.StatusOK, generateResponse{Success: true, SessionID: sub.SessionID, TaskIDs: sub.TaskIDs})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleTaskHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "transition history is not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	rows, err := s.history.History(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("task_id", id).Msg("load history")
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task_id": id, "transitions": rows})
}

type systemStats struct {
	TotalUsers       int `json:"total_users"`
	TotalTasks       int `json:"total_tasks"`
	ActiveWebsockets int `json:"active_websockets"`
	TotalAPIKeys     int `json:"total_api_keys"`
}

type statsResponse struct {
	Users   []ledger.Session  `json:"users"`
	APIKeys []ledger.KeyUsage `json:"api_keys"`
	System  systemStats       `json:"system"`
}

func (s *Server) handleAdminStats(w http.ResponseWriter, _ *http.Request) {
	if s.janitor != nil {
		s.janitor.Sweep()
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Users:   s.ledger.Sessions(),
		APIKeys: s.ledger.Keys(),
		System: systemStats{
			TotalUsers:       s.ledger.SessionCount(),
			TotalTasks:       s.jobs.Len(),
			ActiveWebsockets: s.hub.Active(),
			TotalAPIKeys:     s.ledger.KeyCount(),
		},
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	telemetry.PushConnections.Inc()
	defer telemetry.PushConnections.Dec()
	s.hub.ServeWS(w, r, chi.URLParam(r, "sessionID"), s.cfg.WSWriteTimeout)
}

// clientIP relies on middleware.RealIP having rewritten RemoteAddr from the
// forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return "unknown"
	}
	return host
}
