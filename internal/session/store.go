// Package session holds the process-wide table of in-flight extraction
// jobs. Job state lives only for the lifetime of the process; there is
// deliberately no durable backing store.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/extraction-service/internal/model"
)

// statusRank orders session statuses so transitions can only move forward.
var statusRank = map[model.SessionStatus]int{
	model.SessionInitializing: 0,
	model.SessionDiscovery:    1,
	model.SessionExtraction:   2,
	model.SessionIntegration:  3,
	model.SessionCompleted:    4,
	model.SessionFailed:       4,
}

var stageRank = map[model.StageStatus]int{
	model.StagePending:    0,
	model.StageInProgress: 1,
	model.StageCompleted:  2,
}

type record struct {
	sess   *model.Session
	cancel context.CancelFunc
}

// Store is the only place session state is mutated. Every operation runs
// under one mutex so concurrent stage updates from parallel work units
// cannot interleave partial writes. Mutating operations on an unknown id
// are warn-logged no-ops: a session may be deleted concurrently with an
// in-flight update, and the policy is that stale updates are dropped.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*record
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*record)}
}

// Create registers a new session and returns its snapshot together with
// a context that is canceled when the session is deleted. In-flight work
// polls that context to observe teardown.
func (s *Store) Create(url, requirements string) (*model.Session, context.Context) {
	now := time.Now().UTC()
	sess := &model.Session{
		ID:           uuid.NewString(),
		URL:          url,
		Requirements: requirements,
		Status:       model.SessionInitializing,
		Stages:       model.NewStages(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.sessions[sess.ID] = &record{sess: sess, cancel: cancel}
	s.mu.Unlock()

	zap.L().Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("url", url),
	)
	return sess.Clone(), ctx
}

// Get returns a deep snapshot of the session, or model.ErrNotFound.
func (s *Store) Get(id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return rec.sess.Clone(), nil
}

// SetStatus advances the session-level status. Backward transitions and
// writes to terminal sessions are dropped.
func (s *Store) SetStatus(id string, status model.SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		zap.L().Warn("status update for unknown session", zap.String("session_id", id))
		return
	}
	if rec.sess.Status.Terminal() {
		zap.L().Warn("status update on terminal session dropped",
			zap.String("session_id", id),
			zap.String("status", string(status)),
		)
		return
	}
	if statusRank[status] < statusRank[rec.sess.Status] {
		return
	}
	rec.sess.Status = status
	rec.sess.UpdatedAt = time.Now().UTC()
}

// UpdateStage mutates one stage record. Stage status only ever advances
// pending -> in-progress -> completed; regressions and writes to terminal
// sessions are dropped. Returns a session snapshot and whether the write
// was applied, so callers can emit the updated state.
func (s *Store) UpdateStage(id string, idx int, status model.StageStatus, progress int, details string) (*model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		zap.L().Warn("stage update for unknown session",
			zap.String("session_id", id),
			zap.Int("stage", idx),
		)
		return nil, false
	}
	sess := rec.sess
	if sess.Status.Terminal() {
		zap.L().Warn("stage update on terminal session dropped",
			zap.String("session_id", id),
			zap.Int("stage", idx),
		)
		return nil, false
	}
	if idx < 0 || idx >= len(sess.Stages) {
		zap.L().Warn("stage index out of range",
			zap.String("session_id", id),
			zap.Int("stage", idx),
		)
		return nil, false
	}
	stage := &sess.Stages[idx]
	if stageRank[status] < stageRank[stage.Status] {
		return nil, false
	}
	if status == stage.Status && status == model.StageInProgress && progress < stage.Progress {
		// Late progress reports from slower workers must not move the bar back.
		progress = stage.Progress
	}
	if idx > 0 && status != model.StagePending && sess.Stages[idx-1].Status != model.StageCompleted {
		zap.L().Warn("stage update out of order dropped",
			zap.String("session_id", id),
			zap.Int("stage", idx),
		)
		return nil, false
	}
	stage.Status = status
	stage.Progress = progress
	stage.Details = details
	sess.UpdatedAt = time.Now().UTC()
	return sess.Clone(), true
}

// SetResult attaches the final artifact. The result is immutable once
// set; a second write is dropped.
func (s *Store) SetResult(id string, res *model.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		zap.L().Warn("result for unknown session", zap.String("session_id", id))
		return
	}
	if rec.sess.Result != nil {
		zap.L().Warn("duplicate result dropped", zap.String("session_id", id))
		return
	}
	rec.sess.Result = res
	rec.sess.UpdatedAt = time.Now().UTC()
}

// SetError records a fatal orchestration error and moves the session to
// failed. No further mutation is possible afterwards.
func (s *Store) SetError(id string, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		zap.L().Warn("error for unknown session", zap.String("session_id", id))
		return
	}
	if rec.sess.Status.Terminal() {
		return
	}
	rec.sess.Status = model.SessionFailed
	rec.sess.Error = msg
	rec.sess.UpdatedAt = time.Now().UTC()
}

// Delete removes the session and cancels its context so in-flight work
// observes teardown. Reports whether the session existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	rec, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	rec.cancel()
	zap.L().Info("session deleted", zap.String("session_id", id))
	return true
}

// Len reports the number of in-flight sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
