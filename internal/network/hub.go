// Package network streams published frames to remote viewers over
// websockets.
package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/snapshot"
)

// Message is what clients receive: a frame, or a final "stopped" notice.
type Message struct {
	Type  string          `json:"type"`
	Frame *snapshot.Frame `json:"frame,omitempty"`
}

// Hub keeps the connected clients and fans frames out to them. A client
// that falls behind only ever sees the newest frame.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	logger     *log.Logger
	upgrader   websocket.Upgrader
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1 << 16,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("websocket hub shutting down")
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("viewer connected", "remote", c.conn.RemoteAddr(), "clients", n)
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.Info("viewer disconnected", "remote", c.conn.RemoteAddr())
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				c.offer(msg)
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast hands msg to the run loop. It gives up when ctx ends or the
// hub has stopped.
func (h *Hub) Broadcast(ctx context.Context, msg []byte) error {
	select {
	case h.broadcast <- msg:
		return nil
	case <-h.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume forwards every frame it observes until the publisher stops,
// then tells clients the run is over.
func (h *Hub) Consume(ctx context.Context, pub *snapshot.Publisher) error {
	var gen uint64
	for {
		f, err := pub.Next(ctx, gen)
		switch {
		case errors.Is(err, dynamo.ErrStopped), errors.Is(err, dynamo.ErrNoSnapshot):
			msg, _ := json.Marshal(Message{Type: "stopped"})
			_ = h.Broadcast(ctx, msg)
			return nil
		case err != nil:
			return nil
		}
		gen = f.Generation
		msg, err := json.Marshal(Message{Type: "frame", Frame: f})
		if err != nil {
			return err
		}
		if err := h.Broadcast(ctx, msg); err != nil {
			return nil
		}
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection", "err", err)
		return
	}
	c := newClient(h, conn)
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}
