package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/san-kum/gravsim/internal/gravity"
	"github.com/san-kum/gravsim/internal/logging"
)

const (
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans installed snapshots out to websocket subscribers. A subscriber
// that falls sendBuffer frames behind is dropped rather than allowed to stall
// the simulation.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	log         *logging.Logger
}

func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		log:         log,
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Publish encodes s once and queues it for every subscriber without blocking.
func (h *Hub) Publish(s gravity.State) {
	data, err := json.Marshal(s)
	if err != nil {
		h.log.Error(context.Background(), "encode snapshot for stream", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		select {
		case sub.send <- data:
		default:
			h.removeLocked(sub)
			h.log.Warn(context.Background(), "dropping slow stream subscriber")
		}
	}
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub] = struct{}{}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *subscriber) {
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.send)
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		h.removeLocked(sub)
	}
}

// serve upgrades the request, sends the current snapshot and then every
// published one until the peer goes away. attach must call its argument with
// the current snapshot while blocking installs, so the subscriber is
// registered before the next Publish.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request, attach func(func(gravity.State))) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", "error", err.Error())
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	attach(func(initial gravity.State) {
		if data, err := json.Marshal(initial); err == nil {
			sub.send <- data
		} else {
			h.log.Error(r.Context(), "encode initial snapshot", err)
		}
		h.add(sub)
	})
	h.log.Info(r.Context(), "stream subscriber connected", "subscribers", h.Len())

	go sub.writePump()
	sub.readPump()

	h.remove(sub)
	h.log.Info(r.Context(), "stream subscriber disconnected", "subscribers", h.Len())
}

// readPump discards client messages and returns once the connection fails.
func (s *subscriber) readPump() {
	defer s.conn.Close()
	s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
