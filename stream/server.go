// Package stream publishes engine snapshots to websocket clients and feeds
// client commands back into the engine's command queue.
package stream

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/crowd/components"
	"github.com/pthm-cable/crowd/sim"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// inbound is a client command message.
type inbound struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	ID   int32   `json:"id"`
}

// Server broadcasts the engine's published snapshots to connected clients
// at a fixed interval.
type Server struct {
	engine   *sim.Engine
	interval time.Duration

	clients   map[*client]struct{}
	clientsMu sync.Mutex

	lastFrame uint64
}

// NewServer creates a stream server over engine. interval is the broadcast
// period; frames published faster than that are skipped.
func NewServer(engine *sim.Engine, interval time.Duration) *Server {
	return &Server{
		engine:   engine,
		interval: interval,
		clients:  make(map[*client]struct{}),
	}
}

// Handler returns the HTTP handler exposing the websocket endpoint at /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Run broadcasts snapshots until ctx is done.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcast()
		}
	}
}

func (s *Server) broadcast() {
	// Published snapshots are immutable, so the pointer can be held across
	// the slow JSON writes without copying.
	snap := s.engine.Latest()
	if snap.Frame == s.lastFrame {
		return
	}
	s.lastFrame = snap.Frame

	s.clientsMu.Lock()
	list := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		list = append(list, c)
	}
	s.clientsMu.Unlock()

	for _, c := range list {
		if err := c.send(snap); err != nil {
			slog.Warn("client send failed", "error", err)
			s.drop(c)
		}
	}
}

func (s *Server) drop(c *client) {
	s.clientsMu.Lock()
	delete(s.clients, c)
	s.clientsMu.Unlock()
	c.conn.Close()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn}
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()
	slog.Info("client connected", "remote", conn.RemoteAddr())

	_ = c.send(map[string]any{
		"type":     "hello",
		"capacity": s.engine.Store().Capacity(),
	})

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "spawn":
			s.engine.QueueCreate(components.Position{X: float32(msg.X), Y: float32(msg.Y)})
		case "destroy":
			s.engine.QueueDestroy(msg.ID)
		default:
			slog.Debug("unknown client message", "type", msg.Type)
		}
	}

	s.drop(c)
	slog.Info("client disconnected", "remote", conn.RemoteAddr())
}
