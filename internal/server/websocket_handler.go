// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paper-reader/internal/events"
	"github.com/paper-reader/internal/logger"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	clientBuffer = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The UI is served from the same origin or a local dev server
		return true
	},
}

type statusClient struct {
	conn *websocket.Conn
	send chan []byte
}

// StatusHub pushes paper status events to WebSocket clients.
type StatusHub struct {
	broadcaster *events.Broadcaster
	feed        chan events.Event
	clients     map[*statusClient]struct{}
	clientsMu   sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewStatusHub subscribes to b and starts the fan-out loop.
func NewStatusHub(b *events.Broadcaster) *StatusHub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &StatusHub{
		broadcaster: b,
		feed:        make(chan events.Event, 128),
		clients:     make(map[*statusClient]struct{}),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	b.Subscribe(h.feed)
	go h.run()
	return h
}

func (h *StatusHub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			return
		case ev, ok := <-h.feed:
			if !ok {
				return
			}
			msg, err := json.Marshal(ev)
			if err != nil {
				logger.Warnf("StatusHub: failed to encode event: %v", err)
				continue
			}
			h.fanOut(msg)
		}
	}
}

// fanOut queues msg for every client, dropping it for clients that are behind.
func (h *StatusHub) fanOut(msg []byte) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			logger.Debugf("StatusHub: client %s is slow, dropping event", c.conn.RemoteAddr())
		}
	}
}

// Clients returns the number of connected clients.
func (h *StatusHub) Clients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *StatusHub) add(c *statusClient) {
	h.clientsMu.Lock()
	h.clients[c] = struct{}{}
	h.clientsMu.Unlock()
}

func (h *StatusHub) remove(c *statusClient) {
	h.clientsMu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.clientsMu.Unlock()
}

// HandleWebSocket handles GET /ws/status
func (h *StatusHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("StatusHub: failed to upgrade connection: %v", err)
		return
	}

	c := &statusClient{conn: conn, send: make(chan []byte, clientBuffer)}
	h.add(c)
	logger.Printf("StatusHub: client connected: %s", conn.RemoteAddr())

	go h.writeLoop(c)

	defer func() {
		h.remove(c)
		conn.Close()
		logger.Printf("StatusHub: client disconnected: %s", conn.RemoteAddr())
	}()

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(pongWait))

	// Clients only listen; reads keep the deadline and close handling alive.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnf("StatusHub: read error from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// writeLoop is the only writer on c.conn.
func (h *StatusHub) writeLoop(c *statusClient) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.conn.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debugf("StatusHub: ping to %s failed: %v", c.conn.RemoteAddr(), err)
				c.conn.Close()
				return
			}
		}
	}
}

// Stop unsubscribes from the broadcaster and disconnects every client.
func (h *StatusHub) Stop() {
	h.cancel()
	h.broadcaster.Unsubscribe(h.feed)
	<-h.done

	h.clientsMu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.clientsMu.Unlock()
	logger.Printf("StatusHub: stopped")
}
