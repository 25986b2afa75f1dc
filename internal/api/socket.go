package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sells-group/extraction-service/internal/model"
)

// closeSessionNotFound is the close code sent when a client attaches to
// an unknown session id.
const closeSessionNotFound = 4004

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type pongMessage struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// progressSocket upgrades the request and binds the connection to its
// session. The connection then carries pipeline pushes outbound and
// heartbeat frames inbound; when it drops, the session is torn down.
func (s *Server) progressSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if _, err := s.store.Get(id); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeSessionNotFound, "Session not found"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	s.mgr.Attach(id, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			zap.L().Info("progress connection closed",
				zap.String("session_id", id),
				zap.Error(err),
			)
			s.mgr.Detach(id, true)
			return
		}

		var msg model.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Malformed frames get an error reply but keep the connection.
			s.mgr.Send(id, model.ErrorMessage{
				Type:    model.MsgError,
				Message: "invalid message format",
			})
			continue
		}
		switch msg.Type {
		case model.MsgPing:
			s.mgr.Touch(id)
			s.mgr.Send(id, pongMessage{
				Type:      model.MsgPong,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
		case model.MsgPong, model.MsgHeartbeat:
			s.mgr.Touch(id)
		default:
			zap.L().Warn("ignoring unknown client message",
				zap.String("session_id", id),
				zap.String("type", msg.Type),
			)
		}
	}
}
