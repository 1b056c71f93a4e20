package chat

import (
	"log/slog"
	"sync"
)

// Registry is the set of open connections. It owns nothing but the ability
// to enqueue frames on them; identity and auth live elsewhere (or nowhere).
type Registry struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "registry"),
	}
}

func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	r.clients[c] = struct{}{}
	total := len(r.clients)
	r.mu.Unlock()
	r.logger.Info("Client registered", "conn_id", c.id, "total_clients", total)
}

// Unregister removes c and closes its send queue. It reports whether c was
// still registered, so double unregistration is harmless.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	_, ok := r.clients[c]
	delete(r.clients, c)
	total := len(r.clients)
	r.mu.Unlock()

	c.close()
	if ok {
		r.logger.Info("Client unregistered", "conn_id", c.id, "total_clients", total)
	}
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// All returns a snapshot of the open connections.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

// Broadcast enqueues payload on every open connection and returns how many
// accepted it. A connection whose queue is full is dropped; the rest still
// receive the frame.
func (r *Registry) Broadcast(payload []byte) int {
	delivered := 0
	for _, c := range r.All() {
		if err := c.enqueue(payload); err != nil {
			r.logger.Warn("Dropping slow client", "conn_id", c.id, "error", err)
			r.Unregister(c)
			continue
		}
		delivered++
	}
	return delivered
}

// CloseAll unregisters every connection; their write pumps then send a close frame.
func (r *Registry) CloseAll() {
	clients := r.All()
	for _, c := range clients {
		r.Unregister(c)
	}
	r.logger.Info("Closed all client connections", "count", len(clients))
}
