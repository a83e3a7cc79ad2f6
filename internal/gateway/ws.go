package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v5"

	"github.com/offchainlabs/lottery-enclave/internal/store"
)

// wsMessage is the envelope sent to every connected client after the
// initial snapshot.
type wsMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp int64       `json:"timestamp"`
}

// wsHub serialises every store change onto one queue and fans it out to
// every connected socket from a single broadcaster goroutine: payload
// construction is cheap and serialised, while each message is written to
// all sockets in parallel, so a slow or failing socket does not hold up
// delivery of that message to the others.
type wsHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	queue   chan wsMessage
}

func newWSHub() *wsHub {
	return &wsHub{
		clients: make(map[*websocket.Conn]bool),
		queue:   make(chan wsMessage, 256),
	}
}

func (h *wsHub) enqueue(eventType string, payload interface{}) {
	select {
	case h.queue <- wsMessage{Type: eventType, Payload: payload, Timestamp: time.Now().Unix()}:
	default:
		// Queue full: drop rather than block the listener goroutine that
		// fed this event in.
	}
}

func (h *wsHub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

func (h *wsHub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg := <-h.queue:
			h.broadcast(msg)
		}
	}
}

func (h *wsHub) broadcast(msg wsMessage) {
	enc, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(conn *websocket.Conn) {
			defer wg.Done()
			if err := conn.WriteMessage(websocket.TextMessage, enc); err != nil {
				conn.Close()
				h.mu.Lock()
				delete(h.clients, conn)
				h.mu.Unlock()
			}
		}(conn)
	}
	wg.Wait()
}

func (h *wsHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(h.clients, conn)
	}
}

// handleWebSocket upgrades the connection, sends the bootstrap snapshot,
// and registers the socket with the broadcast hub. The server never expects
// client input beyond keep-alives, so the read loop exists only to detect
// disconnects.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	snapshot := s.buildSnapshot()
	enc, err := json.Marshal(wsMessage{Type: "snapshot", Payload: snapshot, Timestamp: time.Now().Unix()})
	if err == nil {
		if writeErr := conn.WriteMessage(websocket.TextMessage, enc); writeErr != nil {
			conn.Close()
			return nil
		}
	}

	s.wsHub.register(conn)

	go func() {
		defer func() {
			s.wsHub.mu.Lock()
			delete(s.wsHub.clients, conn)
			s.wsHub.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	return nil
}

type snapshotPayload struct {
	Round        *store.RoundPayload        `json:"round"`
	Participants *store.ParticipantsPayload `json:"participants"`
	History      []store.RoundSnapshot      `json:"history"`
	LiveFeed     []store.LiveFeedItem       `json:"live_feed"`
	Config       *store.ConfigPayload       `json:"config"`
	Operator     map[string]interface{}     `json:"operator"`
}

func (s *Server) buildSnapshot() snapshotPayload {
	history := s.st.History().Rounds
	if len(history) > 10 {
		history = history[:10]
	}
	feed := s.st.LiveFeed()
	if len(feed) > 20 {
		feed = feed[:20]
	}
	return snapshotPayload{
		Round:        s.st.CurrentRound(),
		Participants: s.st.Participants(),
		History:      history,
		LiveFeed:     feed,
		Config:       s.st.Config(),
		Operator:     s.operator.Status(),
	}
}
