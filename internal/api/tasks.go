package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/extraction-service/internal/model"
)

// The task endpoints are the polling facade over the same pipeline: no
// websocket, clients poll status or subscribe to the SSE stream, and the
// job is retained after completion until explicitly deleted.

type taskDTO struct {
	TaskID    string        `json:"task_id"`
	Status    string        `json:"status"`
	Progress  float64       `json:"progress"`
	Message   string        `json:"message"`
	Stages    []model.Stage `json:"stages"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func toTaskDTO(sess *model.Session) taskDTO {
	return taskDTO{
		TaskID:    sess.ID,
		Status:    string(sess.Status),
		Progress:  sess.OverallProgress(),
		Message:   currentActivity(sess),
		Stages:    sess.Stages,
		Error:     sess.Error,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}
}

// currentActivity is the detail of the furthest stage that has started.
func currentActivity(sess *model.Session) string {
	msg := "Waiting to start..."
	for _, st := range sess.Stages {
		if st.Status != model.StagePending {
			msg = st.Details
		}
	}
	return msg
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
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

	writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id":    sess.ID,
		"status":     string(sess.Status),
		"message":    currentActivity(sess),
		"created_at": sess.CreatedAt,
	})
}

func (s *Server) taskStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupTask(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(sess))
}

// taskStream emits the task state as server-sent events whenever progress
// moves, closing after the terminal state is delivered.
func (s *Server) taskStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	sess, ok := s.lookupTask(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	emit := func(sess *model.Session) {
		payload, err := json.Marshal(toTaskDTO(sess))
		if err != nil {
			zap.L().Error("marshal task event failed", zap.Error(err))
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	emit(sess)
	if sess.Status.Terminal() {
		return
	}
	lastProgress := sess.OverallProgress()
	lastStatus := sess.Status

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		cur, err := s.store.Get(sess.ID)
		if err != nil {
			// Deleted mid-stream; nothing more will ever arrive.
			return
		}
		progress := cur.OverallProgress()
		if progress != lastProgress || cur.Status != lastStatus {
			emit(cur)
			lastProgress = progress
			lastStatus = cur.Status
		}
		if cur.Status.Terminal() {
			return
		}
	}
}

// taskResultDTO carries the full integrated record set. The websocket
// push deliberately omits Headers/Data, but the pull model has no other
// channel for the records, so they travel on this response.
type taskResultDTO struct {
	Format      string           `json:"format"`
	Size        string           `json:"size"`
	Records     int              `json:"records"`
	Fields      int              `json:"fields"`
	DownloadURL string           `json:"download_url"`
	Headers     []string         `json:"headers"`
	Data        []map[string]any `json:"data"`
}

func toTaskResultDTO(res *model.Result) taskResultDTO {
	return taskResultDTO{
		Format:      res.Format,
		Size:        res.Size,
		Records:     res.Records,
		Fields:      res.Fields,
		DownloadURL: res.DownloadURL,
		Headers:     res.Headers,
		Data:        res.Data,
	}
}

func (s *Server) taskResult(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupTask(w, r)
	if !ok {
		return
	}
	if !sess.Status.Terminal() {
		writeError(w, http.StatusConflict, "task not completed")
		return
	}
	if sess.Status == model.SessionFailed {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": string(sess.Status),
			"error":  sess.Error,
		})
		return
	}
	if sess.Result == nil {
		writeError(w, http.StatusNotFound, "no result available")
		return
	}
	writeJSON(w, http.StatusOK, toTaskResultDTO(sess.Result))
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	if !s.store.Delete(id) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) lookupTask(w http.ResponseWriter, r *http.Request) (*model.Session, bool) {
	id := chi.URLParam(r, "task_id")
	sess, err := s.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return nil, false
	}
	return sess, true
}
