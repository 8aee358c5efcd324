package web

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	socketBufferSize  = 1024
	messageBufferSize = 10
	writeWait         = 2 * time.Second
)

var upgrader = &websocket.Upgrader{ReadBufferSize: socketBufferSize, WriteBufferSize: socketBufferSize}

// ServeHTTP upgrades the request to a websocket and streams telemetry as
// JSON text frames until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade: %v", err)
		return
	}
	defer socket.Close()

	id, ch := h.Subscribe(messageBufferSize)
	defer h.Unsubscribe(id)
	log.Printf("web: telemetry client %s joined", r.RemoteAddr)
	defer log.Printf("web: telemetry client %s left", r.RemoteAddr)

	// Clients never send anything we use; reading detects the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := socket.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case t, ok := <-ch:
			if !ok {
				return
			}
			_ = socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := socket.WriteJSON(t); err != nil {
				return
			}
		}
	}
}
