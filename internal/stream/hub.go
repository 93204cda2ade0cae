package stream

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/EILE23/BusTrackr/internal/broadcast"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub bridges the in-process broadcast bus onto websocket clients. Each
// connection holds its own bus subscription; a client that falls behind
// drops snapshots instead of stalling the sync pipeline.
type Hub struct {
	bus    *broadcast.Bus
	logger *log.Logger
}

// NewHub constructs a hub over the given bus.
func NewHub(bus *broadcast.Bus, logger *log.Logger) (*Hub, error) {
	if bus == nil {
		return nil, errors.New("stream: nil bus")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{bus: bus, logger: logger}, nil
}

// ServeLive upgrades the request and streams broadcast messages until the
// client disconnects. The optional ?topic= query narrows the subscription
// to one topic prefix, e.g. bustrackr/positions/472.
func (h *Hub) ServeLive(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("topic")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("stream: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Read pump: detect client disconnect.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch, unsubscribe := h.bus.Subscribe(prefix, 32)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Printf("stream: write failed: %v", err)
				return
			}
		}
	}
}
