package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/impostorgame/internal/model"
)

// Buffer size for outgoing messages per client
const sendBufferSize = 256

// Client is one open event stream
type Client struct {
	userID      model.UserID
	send        chan Envelope
	connectedAt time.Time

	mu     sync.Mutex
	closed bool
}

// NewClient creates a client for the given user
func NewClient(userID model.UserID) *Client {
	return &Client{
		userID:      userID,
		send:        make(chan Envelope, sendBufferSize),
		connectedAt: time.Now(),
	}
}

// Messages returns the channel of events queued for the client. It is closed when the hub drops the client.
func (c *Client) Messages() <-chan Envelope {
	return c.send
}

// offer queues an envelope without blocking. Returns false if the buffer is full or the client is closed.
func (c *Client) offer(envelope Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- envelope:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// delivery is an envelope addressed to a whole game, or to one user when userID is set
type delivery struct {
	userID   model.UserID
	envelope Envelope
}

// Hub manages the clients of a single game
type Hub struct {
	gameID  model.GameID
	clients map[*Client]bool
	mu      sync.RWMutex
	logger  *slog.Logger

	deliveries chan delivery
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a new Hub for a game
func NewHub(gameID model.GameID, logger *slog.Logger) *Hub {
	return &Hub{
		gameID:     gameID,
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("game_id", string(gameID))),
		deliveries: make(chan delivery, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's delivery loop
func (h *Hub) Run() {
	h.logger.Debug("hub started")
	for {
		select {
		case d := <-h.deliveries:
			h.deliver(d)

		case <-h.done:
			h.mu.Lock()
			clientCount := len(h.clients)
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("hub stopped", slog.Int("disconnected_clients", clientCount))
			return
		}
	}
}

func (h *Hub) deliver(d delivery) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent, dropped := 0, 0
	for client := range h.clients {
		if d.userID != "" && client.userID != d.userID {
			continue
		}
		if client.offer(d.envelope) {
			sent++
		} else {
			dropped++
			h.logger.Warn("message dropped - client buffer full",
				slog.String("user_id", string(client.userID)),
				slog.String("event", string(d.envelope.Event)))
		}
	}
	if dropped > 0 {
		h.logger.Warn("delivery partial failure",
			slog.Int("sent", sent),
			slog.Int("dropped", dropped))
	}
}

// Register adds a client and returns the number of connections its user now has
func (h *Hub) Register(client *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.done:
		client.close()
		return 0
	default:
	}

	h.clients[client] = true
	h.logger.Info("client registered",
		slog.String("user_id", string(client.userID)),
		slog.Int("total_clients", len(h.clients)))
	return h.countLocked(client.userID)
}

// Unregister removes a client and returns the number of connections its user still has
func (h *Hub) Unregister(client *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.close()
		h.logger.Info("client unregistered",
			slog.String("user_id", string(client.userID)),
			slog.Duration("connection_duration", time.Since(client.connectedAt)),
			slog.Int("total_clients", len(h.clients)))
	}
	return h.countLocked(client.userID)
}

func (h *Hub) countLocked(userID model.UserID) int {
	n := 0
	for client := range h.clients {
		if client.userID == userID {
			n++
		}
	}
	return n
}

// Broadcast queues an envelope for every client
func (h *Hub) Broadcast(envelope Envelope) {
	h.enqueue(delivery{envelope: envelope})
}

// SendTo queues an envelope for the given user's clients only
func (h *Hub) SendTo(userID model.UserID, envelope Envelope) {
	h.enqueue(delivery{userID: userID, envelope: envelope})
}

func (h *Hub) enqueue(d delivery) {
	select {
	case h.deliveries <- d:
	default:
		h.logger.Warn("delivery dropped - hub buffer full", slog.String("event", string(d.envelope.Event)))
	}
}

// Close shuts down the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubManager manages hubs for all games
type HubManager struct {
	hubs   map[model.GameID]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHubManager creates a new HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[model.GameID]*Hub),
		logger: logger.With(slog.String("component", "realtime")),
	}
}

// GetOrCreateHub returns the hub for a game, creating one if it doesn't exist
func (m *HubManager) GetOrCreateHub(gameID model.GameID) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[gameID]; ok {
		return hub
	}

	hub := NewHub(gameID, m.logger)
	m.hubs[gameID] = hub
	go hub.Run()
	return hub
}

// GetHub returns the hub for a game, or nil if it doesn't exist
func (m *HubManager) GetHub(gameID model.GameID) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[gameID]
}

// RemoveHub removes and closes a hub
func (m *HubManager) RemoveHub(gameID model.GameID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[gameID]; ok {
		hub.Close()
		delete(m.hubs, gameID)
		m.logger.Info("hub removed", slog.String("game_id", string(gameID)))
	}
}

// CleanupEmptyHubs removes hubs with no clients and returns how many were removed
func (m *HubManager) CleanupEmptyHubs() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, hub := range m.hubs {
		if hub.ClientCount() == 0 {
			hub.Close()
			delete(m.hubs, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("empty hubs cleaned up", slog.Int("removed", removed))
	}
	return removed
}

// CloseAll closes every hub, disconnecting all clients
func (m *HubManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, hub := range m.hubs {
		hub.Close()
		delete(m.hubs, id)
	}
}

// Len returns the number of hubs
func (m *HubManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hubs)
}
