package server

import (
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
)

// eventBuffer is the per-connection event queue. A client that cannot
// drain this many events starts losing them.
const eventBuffer = 64

// handleEvents streams hub events to a websocket client as JSON text
// messages until the client goes away or the daemon closes the hub.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Error("server: websocket accept failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "unexpected close")
	}()

	sub := s.daemon.Hub().Subscribe(eventBuffer)
	defer sub.Cancel()

	// Clients never send anything meaningful; CloseRead surfaces their
	// disconnect as context cancellation.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}
