package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The ledger is open to any submitter; the stream follows suit.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamBlocks upgrades the connection and pushes each committed block to the
// client as JSON. Strictly server-to-client notification of local commits.
func (h *handler) streamBlocks(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}

	blocks, cancel := h.app.Chain.Subscribe()
	defer cancel()
	defer conn.Close()

	// Drain client frames so we notice the connection closing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case b, ok := <-blocks:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(b); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
