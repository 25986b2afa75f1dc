package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/extraction-service/internal/model"
)

type startRequest struct {
	URL          string `json:"url"`
	Requirements string `json:"requirements"`
}

type startResponse struct {
	SessionID    string `json:"session_id"`
	Status       string `json:"status"`
	WebsocketURL string `json:"websocket_url"`
}

// normalizeURL defaults bare hostnames to https.
func normalizeURL(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}

func (s *Server) startExtraction(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	req.Requirements = strings.TrimSpace(req.Requirements)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if req.Requirements == "" {
		writeError(w, http.StatusBadRequest, "requirements is required")
		return
	}

	sess, ctx := s.store.Create(normalizeURL(req.URL), req.Requirements)
	s.runner.Start(ctx, sess.ID)

	writeJSON(w, http.StatusAccepted, startResponse{
		SessionID:    sess.ID,
		Status:       "started",
		WebsocketURL: fmt.Sprintf("/api/v1/ws/extraction/%s", sess.ID),
	})
}

// statusDTO is the polling view of a session.
type statusDTO struct {
	SessionID       string        `json:"session_id"`
	URL             string        `json:"url"`
	Status          string        `json:"status"`
	OverallProgress float64       `json:"overall_progress"`
	Stages          []model.Stage `json:"stages"`
	Result          *model.Result `json:"result,omitempty"`
	Error           string        `json:"error,omitempty"`
}

func toStatusDTO(sess *model.Session) statusDTO {
	return statusDTO{
		SessionID:       sess.ID,
		URL:             sess.URL,
		Status:          string(sess.Status),
		OverallProgress: sess.OverallProgress(),
		Stages:          sess.Stages,
		Result:          sess.Result,
		Error:           sess.Error,
	}
}

func (s *Server) extractionStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toStatusDTO(sess))
}

func (s *Server) extractionPreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	if !sess.Status.Terminal() {
		writeError(w, http.StatusConflict, "extraction not completed")
		return
	}
	limit := s.cfg.PreviewLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	headers := []string{}
	rows := []map[string]any{}
	total := 0
	if sess.Result != nil {
		headers = sess.Result.Headers
		total = sess.Result.Records
		rows = sess.Result.Data
		if len(rows) > limit {
			rows = rows[:limit]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"headers":       headers,
		"rows":          rows,
		"total_records": total,
	})
}

func (s *Server) extractionDownload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	if !sess.Status.Terminal() {
		writeError(w, http.StatusConflict, "extraction not completed")
		return
	}
	if sess.Result == nil {
		writeError(w, http.StatusNotFound, "no extraction result")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="extraction_%s.csv"`, sess.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sess.Result.CSV))
}

func (s *Server) deleteExtraction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	s.mgr.Detach(id, false)
	if !s.store.Delete(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*model.Session, bool) {
	id := chi.URLParam(r, "session_id")
	sess, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return nil, false
	}
	return sess, true
}
