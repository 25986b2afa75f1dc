package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/extraction-service/internal/model"
)

func TestCreate_AndGet(t *testing.T) {
	s := NewStore()
	sess, ctx := s.Create("https://example.com", "product names")
	require.NotEmpty(t, sess.ID)
	require.NoError(t, ctx.Err())

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got.URL)
	assert.Equal(t, model.SessionInitializing, got.Status)
	assert.Len(t, got.Stages, model.NumStages)
}

func TestGet_Unknown(t *testing.T) {
	s := NewStore()
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestGet_ReturnsSnapshot(t *testing.T) {
	s := NewStore()
	sess, _ := s.Create("https://example.com", "req")

	snap, err := s.Get(sess.ID)
	require.NoError(t, err)
	snap.Stages[0].Status = model.StageCompleted

	again, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StagePending, again.Stages[0].Status)
}

func TestUpdateStage_Advances(t *testing.T) {
	s := NewStore()
	sess, _ := s.Create("https://example.com", "req")

	snap, ok := s.UpdateStage(sess.ID, 0, model.StageInProgress, 10, "working")
	require.True(t, ok)
	assert.Equal(t, model.StageInProgress, snap.Stages[0].Status)
	assert.Equal(t, 10, snap.Stages[0].Progress)
	assert.Equal(t, "working", snap.Stages[0].Details)
}

func TestUpdateStage_UnknownSessionDropped(t *testing.T) {
	s := NewStore()
	_, ok := s.UpdateStage("gone", 0, model.StageInProgress, 10, "stale")
	assert.False(t, ok)
}

func TestUpdateStage_NoStatusRegression(t *testing.T) {
	s := NewStore()
	sess, _ := s.Create("https://example.com", "req")

	_, ok := s.UpdateStage(sess.ID, 0, model.StageCompleted, 100, "done")
	require.True(t, ok)

	_, ok = s.UpdateStage(sess.ID, 0, model.StageInProgress, 50, "late")
	assert.False(t, ok)

	got, _ := s.Get(sess.ID)
	assert.Equal(t, model.StageCompleted, got.Stages[0].Status)
	assert.Equal(t, 100, got.Stages[0].Progress)
}

func TestUpdateStage_ProgressNeverMovesBack(t *testing.T) {
	s := NewStore()
	sess, _ := s.Create("https://example.com", "req")

	_, ok := s.UpdateStage(sess.ID, 0, model.StageInProgress, 60, "")
	require.True(t, ok)

	// A slower worker reports an older completion count.
	snap, ok := s.UpdateStage(sess.ID, 0, model.StageInProgress, 40, "late report")
	require.True(t, ok)
	assert.Equal(t, 60, snap.Stages[0].Progress)
	assert.Equal(t, "late report", snap.Stages[0].Details)
}

func TestUpdateStage_OutOfOrderDropped(t *testing.T) {
	s := NewStore()
	sess, _ := s.Create("https://example.com", "req")

	// Stage 1 cannot start before stage 0 completes.
	_, ok := s.UpdateStage(sess.ID, 1, model.StageInProgress, 0, "")
	assert.False(t, ok)
}

func TestUpdateStage_TerminalSessionImmutable(t *testing.T) {
	s := NewStore()
	sess, _ := s.Create("https://example.com", "req")
	s.SetError(sess.ID, "boom")

	_, ok := s.UpdateStage(sess.ID, 0, model.StageInProgress, 10, "")
	assert.False(t, ok)

	s.SetStatus(sess.ID, model.SessionExtraction)
	got, _ := s.Get(sess.ID)
	assert.Equal(t, model.SessionFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestSetStatus_NoBackwardTransition(t *testing.T) {
	s := NewStore()
	sess, _ := s.Create("https://example.com", "req")

	s.SetStatus(sess.ID, model.SessionExtraction)
	s.SetStatus(sess.ID, model.SessionDiscovery)

	got, _ := s.Get(sess.ID)
	assert.Equal(t, model.SessionExtraction, got.Status)
}

func TestSetResult_DuplicateDropped(t *testing.T) {
	s := NewStore()
	sess, _ := s.Create("https://example.com", "req")

	s.SetResult(sess.ID, &model.Result{Records: 1})
	s.SetResult(sess.ID, &model.Result{Records: 2})

	got, _ := s.Get(sess.ID)
	require.NotNil(t, got.Result)
	assert.Equal(t, 1, got.Result.Records)
}

func TestDelete_CancelsContext(t *testing.T) {
	s := NewStore()
	sess, ctx := s.Create("https://example.com", "req")

	require.True(t, s.Delete(sess.ID))
	assert.Error(t, ctx.Err())

	_, err := s.Get(sess.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.False(t, s.Delete(sess.ID))
}

func TestLen(t *testing.T) {
	s := NewStore()
	assert.Equal(t, 0, s.Len())
	sess, _ := s.Create("https://example.com", "req")
	assert.Equal(t, 1, s.Len())
	s.Delete(sess.ID)
	assert.Equal(t, 0, s.Len())
}
