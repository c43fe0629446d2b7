package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fluxorio/playground/pkg/core"
	"github.com/fluxorio/playground/pkg/core/failfast"
	"github.com/fluxorio/playground/pkg/sink"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// StateStream pushes state updates to websocket clients. A client may
// restrict the stream to one task with ?task=<id>. Each connection has a
// bounded queue; updates for a client that falls behind are dropped and
// the client should refetch /api/states.
type StateStream struct {
	bus       *sink.Bus
	states    StateSource
	upgrader  websocket.Upgrader
	queueSize int
	logger    *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	closed  bool
}

// NewStateStream subscribes clients to bus. When states is set each
// client first receives the current snapshot.
func NewStateStream(bus *sink.Bus, states StateSource, logger *slog.Logger) *StateStream {
	failfast.NotNil(bus, "bus")
	if logger == nil {
		logger = core.NopLogger()
	}
	return &StateStream{
		bus:    bus,
		states: states,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		queueSize: 64,
		logger:    logger,
		clients:   make(map[*websocket.Conn]struct{}),
	}
}

func (s *StateStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var filter sink.TaskID
	if q := r.URL.Query().Get("task"); q != "" {
		id, err := sink.ParseTaskID(q)
		if err != nil {
			http.Error(w, "unknown task", http.StatusBadRequest)
			return
		}
		filter = id
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	if !s.add(conn) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	queue := make(chan sink.Update, s.queueSize)
	unsubscribe := s.bus.Subscribe(filter, func(u sink.Update) {
		select {
		case queue <- u:
		default:
			s.logger.Debug("websocket client behind, update dropped", "task", string(u.Task), "seq", u.Seq)
		}
	})

	done := make(chan struct{})
	go s.readLoop(conn, done)
	s.writeLoop(conn, filter, queue, done)

	unsubscribe()
	s.remove(conn)
}

// readLoop discards client messages and handles pongs until the
// connection fails.
func (s *StateStream) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

func (s *StateStream) writeLoop(conn *websocket.Conn, filter sink.TaskID, queue <-chan sink.Update, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if s.states != nil {
		snap := s.states.Snapshot()
		for _, id := range sink.TaskIDs {
			u, ok := snap[id]
			if !ok || (filter != "" && id != filter) {
				continue
			}
			if err := s.write(conn, u); err != nil {
				return
			}
		}
	}

	for {
		select {
		case u := <-queue:
			if err := s.write(conn, u); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *StateStream) write(conn *websocket.Conn, u sink.Update) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(u); err != nil {
		s.logger.Debug("websocket write failed", "error", err)
		return err
	}
	return nil
}

func (s *StateStream) add(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[conn] = struct{}{}
	return true
}

func (s *StateStream) remove(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

// Clients returns the number of connected clients.
func (s *StateStream) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every client and refuses new ones.
func (s *StateStream) Close() {
	s.mu.Lock()
	s.closed = true
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = c.Close()
	}
}
