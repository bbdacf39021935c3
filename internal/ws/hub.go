// Package ws fans the latest roster view out to websocket clients.
package ws

import (
	"net/http"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub keeps the most recent message and replays it to every client that
// connects, then forwards each later broadcast.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once

	mu     sync.RWMutex
	latest []byte

	logger log.Logger
}

func NewHub(logger log.Logger) *Hub {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *Hub) Latest() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return nil
	}
	return append([]byte(nil), h.latest...)
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			if latest := h.Latest(); latest != nil {
				h.deliver(client, latest)
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case message := <-h.broadcast:
			h.mu.Lock()
			h.latest = message
			h.mu.Unlock()

			for client := range h.clients {
				h.deliver(client, message)
			}

		case <-h.stop:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

// deliver drops a client whose send buffer is full.
func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.send <- message:
	default:
		level.Warn(h.logger).Log("msg", "dropping slow websocket client", "remote", client.conn.RemoteAddr())
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Broadcast queues message for every connected client. It returns without
// sending once the hub is stopped.
func (h *Hub) Broadcast(message []byte) {
	msgCopy := append([]byte(nil), message...)
	select {
	case h.broadcast <- msgCopy:
	case <-h.stop:
	}
}

func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		level.Warn(h.logger).Log("msg", "websocket upgrade failed", "err", err)
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 16)}

	select {
	case h.register <- client:
	case <-h.stop:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
