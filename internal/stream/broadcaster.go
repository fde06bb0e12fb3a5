// Package stream pushes evaluation results to websocket subscribers as they
// are produced, for dashboards and downstream consumers.
package stream

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/stakecraft/internal/metrics"
	"github.com/yourusername/stakecraft/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	sendBufferSize = 16
)

// Broadcaster fans evaluation results out to connected websocket clients. A
// slow client is disconnected rather than allowed to block the others.
type Broadcaster struct {
	upgrader websocket.Upgrader
	logger   *logrus.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewBroadcaster creates a decision stream broadcaster
func NewBroadcaster(logger *logrus.Logger) *Broadcaster {
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the subscriber
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}

	b.mu.Lock()
	b.clients[c] = struct{}{}
	count := len(b.clients)
	b.mu.Unlock()
	metrics.StreamSubscribers.Set(float64(count))

	b.logger.WithField("subscribers", count).Debug("Stream subscriber connected")

	go b.writePump(c)
	go b.readPump(c)
}

// Broadcast sends an evaluation result to every connected subscriber
func (b *Broadcaster) Broadcast(result *models.EvaluationResult) {
	payload := []byte(result.ToJSON())

	b.mu.RLock()
	defer b.mu.RUnlock()

	for c := range b.clients {
		select {
		case c.send <- payload:
		default:
			// Buffer full, drop the client on its own goroutine
			go b.drop(c)
		}
	}
}

// Subscribers returns the current subscriber count
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every subscriber
func (b *Broadcaster) Close() {
	b.mu.Lock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	for _, c := range clients {
		b.drop(c)
	}
}

func (b *Broadcaster) drop(c *client) {
	b.mu.Lock()
	_, present := b.clients[c]
	if present {
		delete(b.clients, c)
		close(c.send)
	}
	count := len(b.clients)
	b.mu.Unlock()

	if present {
		c.conn.Close()
		metrics.StreamSubscribers.Set(float64(count))
		b.logger.WithField("subscribers", count).Debug("Stream subscriber disconnected")
	}
}

func (b *Broadcaster) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				b.drop(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				b.drop(c)
				return
			}
		}
	}
}

// readPump drains and discards inbound frames so pings and close frames are
// processed.
func (b *Broadcaster) readPump(c *client) {
	defer b.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
