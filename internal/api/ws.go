package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// transferPoll is how often a progress stream checks for new lines.
var transferPoll = 200 * time.Millisecond

// StreamTransfer streams upload progress lines over WebSocket.
func (s *Server) StreamTransfer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t := s.Transfers.Get(id)
	if t == nil {
		http.Error(w, "transfer not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	offset := 0
	ticker := time.NewTicker(transferPoll)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			lines := t.LogsSince(offset)
			for _, line := range lines {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
					return
				}
				offset++
			}
			// Close once the transfer is over and everything was sent
			if done, status := t.Finished(); done && len(lines) == 0 {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, status))
				return
			}
		}
	}
}
