package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nongjianweihao/share-car/internal/state"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Event is one message pushed over /api/events.
type Event struct {
	Type  string      `json:"type"`
	State state.State `json:"state"`
}

// EventsHandler streams store snapshots to websocket clients. Each client
// gets the current state on connect and then every change. A slow client
// only ever receives the latest snapshot.
type EventsHandler struct {
	store    *state.Store
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewEventsHandler(store *state.Store, log zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		store: store,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    1024,
			WriteBufferSize:   4096,
			EnableCompression: true,
			CheckOrigin:       func(*http.Request) bool { return true },
		},
	}
}

// Stream GET /api/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates := make(chan state.State, 1)
	push := func(st state.State) {
		select {
		case updates <- st:
		default:
			// replace the pending snapshot with the newer one
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- st:
			default:
			}
		}
	}
	unsubscribe := h.store.Subscribe(push)
	defer unsubscribe()
	push(h.store.State())

	closed := make(chan struct{})
	go h.readLoop(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case st := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(Event{Type: "state", State: st}); err != nil {
				h.log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so control messages are processed, and
// closes done when the peer goes away.
func (h *EventsHandler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
