package model

import "time"

// SessionStatus is the lifecycle state of an extraction session.
type SessionStatus string

const (
	SessionInitializing SessionStatus = "initializing"
	SessionDiscovery    SessionStatus = "discovery"
	SessionExtraction   SessionStatus = "extraction"
	SessionIntegration  SessionStatus = "integration"
	SessionCompleted    SessionStatus = "completed"
	SessionFailed       SessionStatus = "failed"
)

// Terminal reports whether no further session or stage mutation is permitted.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// StageStatus is the lifecycle state of a single pipeline stage.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in-progress"
	StageCompleted  StageStatus = "completed"
)

// Stage indices into Session.Stages.
const (
	StageDiscovery   = 0
	StageExtraction  = 1
	StageIntegration = 2

	NumStages = 3
)

// Stage tracks one phase of the extraction pipeline.
type Stage struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Status      StageStatus `json:"status"`
	Progress    int         `json:"progress"`
	Details     string      `json:"details"`
}

// NewStages returns the fixed three-stage record seeded in pending state.
func NewStages() []Stage {
	return []Stage{
		{
			Name:        "Page Discovery",
			Description: "Analyzing website structure and discovering pages",
			Status:      StagePending,
			Details:     "Waiting to start...",
		},
		{
			Name:        "Content Extraction",
			Description: "Extracting relevant data based on requirements",
			Status:      StagePending,
			Details:     "Waiting to start...",
		},
		{
			Name:        "Result Integration",
			Description: "Processing and formatting extracted data",
			Status:      StagePending,
			Details:     "Waiting to start...",
		},
	}
}

// Session is one end-to-end extraction job and its evolving state.
// It is owned by the session store; callers only ever see snapshots.
type Session struct {
	ID           string        `json:"session_id"`
	URL          string        `json:"url"`
	Requirements string        `json:"requirements"`
	Status       SessionStatus `json:"status"`
	Stages       []Stage       `json:"stages"`
	Result       *Result       `json:"result,omitempty"`
	Error        string        `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// OverallProgress derives the 0-100 session progress from stage state.
// It is recomputed on every read so it can never drift from the stages.
func (s *Session) OverallProgress() float64 {
	var completed, current int
	for _, st := range s.Stages {
		switch st.Status {
		case StageCompleted:
			completed++
		case StageInProgress:
			current = st.Progress
		}
	}
	return float64(completed*100+current) / float64(NumStages)
}

// Clone returns a deep copy safe to hand outside the store's lock.
func (s *Session) Clone() *Session {
	dup := *s
	dup.Stages = make([]Stage, len(s.Stages))
	copy(dup.Stages, s.Stages)
	if s.Result != nil {
		dup.Result = s.Result.Clone()
	}
	return &dup
}

// WorkUnit is one discoverable target to be processed during extraction.
type WorkUnit struct {
	URL string `json:"url"`
}
