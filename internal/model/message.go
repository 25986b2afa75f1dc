package model

// Websocket message types exchanged on the progress connection.
const (
	MsgStageUpdate         = "stage_update"
	MsgExtractionCompleted = "extraction_completed"
	MsgExtractionError     = "extraction_error"
	MsgPing                = "ping"
	MsgHeartbeat           = "heartbeat"
	MsgPong                = "pong"
	MsgError               = "error"
)

// StageUpdateMessage is pushed on every stage transition or progress tick.
type StageUpdateMessage struct {
	Type            string  `json:"type"`
	StageIndex      int     `json:"stage_index"`
	Stage           Stage   `json:"stage"`
	OverallProgress float64 `json:"overall_progress"`
}

// CompletedMessage is pushed once when the pipeline reaches completed.
type CompletedMessage struct {
	Type   string  `json:"type"`
	Result *Result `json:"result"`
}

// ErrorMessage is pushed when the pipeline fails, and as the reply to
// malformed client frames.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ClientMessage is the envelope for frames received from the client.
type ClientMessage struct {
	Type string `json:"type"`
}
