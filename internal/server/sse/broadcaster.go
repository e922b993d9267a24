// Package sse streams committed activity entries to their users over
// Server-Sent Events.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/promptvault/internal/metrics"
	"github.com/thebtf/promptvault/pkg/models"
)

const (
	// WriteTimeout bounds a single write to a client connection.
	WriteTimeout = 2 * time.Second

	// HeartbeatInterval is how often idle streams get a comment line.
	HeartbeatInterval = 25 * time.Second

	// QueueSize is how many undelivered messages a client may hold before
	// it is dropped as too slow.
	QueueSize = 64
)

// Client represents one connected stream of a user. Messages reach the
// connection only through its queue, drained by the stream's own handler.
type Client struct {
	Writer  http.ResponseWriter
	Flusher http.Flusher
	Done    chan struct{}
	ID      string
	UserID  string

	queue chan string
}

// write sends one message, giving up after WriteTimeout where the
// connection supports deadlines.
func (c *Client) write(message string) error {
	rc := http.NewResponseController(c.Writer)
	_ = rc.SetWriteDeadline(time.Now().Add(WriteTimeout))
	if _, err := c.Writer.Write([]byte(message)); err != nil {
		return err
	}
	c.Flusher.Flush()
	return nil
}

// Broadcaster fans activity entries out to the streams of the acting user.
// It implements activity.Publisher; Publish never waits on a connection.
type Broadcaster struct {
	clients map[string]*Client
	mu      sync.RWMutex
	nextID  int
}

// NewBroadcaster creates a new SSE broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]*Client),
	}
}

// AddClient registers a stream for userID.
func (b *Broadcaster) AddClient(w http.ResponseWriter, userID string) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	b.mu.Lock()
	b.nextID++
	id := fmt.Sprintf("client-%d", b.nextID)
	client := &Client{
		ID:      id,
		UserID:  userID,
		Writer:  w,
		Flusher: flusher,
		Done:    make(chan struct{}),
		queue:   make(chan string, QueueSize),
	}
	b.clients[id] = client
	clientCount := len(b.clients)
	b.mu.Unlock()

	metrics.SSEClientConnected()
	log.Debug().
		Str("clientId", id).
		Str("user_id", userID).
		Int("totalClients", clientCount).
		Msg("SSE client connected")

	return client, nil
}

// RemoveClient removes a client connection.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.removeClientByID(client.ID)
}

// removeClientByID removes a client by ID. Removing twice is a no-op.
func (b *Broadcaster) removeClientByID(id string) {
	b.mu.Lock()
	client, exists := b.clients[id]
	if exists {
		delete(b.clients, id)
	}
	clientCount := len(b.clients)
	b.mu.Unlock()

	if !exists {
		return
	}
	close(client.Done)
	metrics.SSEClientDisconnected()

	log.Debug().
		Str("clientId", id).
		Int("totalClients", clientCount).
		Msg("SSE client disconnected")
}

// Publish queues an entry for every stream of the user who performed it.
func (b *Broadcaster) Publish(entry *models.ActivityLog) {
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE data")
		return
	}
	b.send(entry.UserID, fmt.Sprintf("event: activity\ndata: %s\n\n", data))
}

// send queues message for userID's clients and drops those whose queue is
// full.
func (b *Broadcaster) send(userID, message string) {
	var slow []string

	b.mu.RLock()
	for id, client := range b.clients {
		if client.UserID != userID {
			continue
		}
		select {
		case client.queue <- message:
		default:
			slow = append(slow, id)
		}
	}
	b.mu.RUnlock()

	for _, id := range slow {
		log.Warn().Str("clientId", id).Int("queue", QueueSize).Msg("SSE client too slow, dropping")
		b.removeClientByID(id)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// ServeUser streams userID's activity until the request ends, a write fails
// or the client is dropped.
func (b *Broadcaster) ServeUser(w http.ResponseWriter, r *http.Request, userID string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client, err := b.AddClient(w, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.RemoveClient(client)

	if err := client.write(fmt.Sprintf("event: connected\ndata: {\"client_id\":%q}\n\n", client.ID)); err != nil {
		return
	}

	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.Done:
			return
		case msg := <-client.queue:
			if err := client.write(msg); err != nil {
				log.Debug().Str("clientId", client.ID).Err(err).Msg("SSE write failed, closing stream")
				return
			}
		case <-ticker.C:
			if err := client.write(": ping\n\n"); err != nil {
				return
			}
		}
	}
}
