package websocket

import (
	"context"
	"errors"
	"log"
	"sync"
)

var ErrHubClosed = errors.New("hub is shut down")

// Authorizer decides whether a player may subscribe to a match.
type Authorizer interface {
	AuthorizeSubscriber(ctx context.Context, matchID, playerID string) error
}

// Hub maps match ids to their live connections.
type Hub struct {
	Rooms  map[string]*Room
	mu     sync.Mutex
	auth   Authorizer
	closed bool
}

func NewHub(auth Authorizer) *Hub {
	return &Hub{
		Rooms: make(map[string]*Room),
		auth:  auth,
	}
}

// Register admits c to its match room after the authorizer accepts it.
func (h *Hub) Register(ctx context.Context, c *Client) error {
	if h.auth != nil {
		if err := h.auth.AuthorizeSubscriber(ctx, c.MatchID, c.ID); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}
	room, exists := h.Rooms[c.MatchID]
	if !exists {
		room = NewRoom(c.MatchID)
		h.Rooms[c.MatchID] = room
	}
	room.AddClient(c)
	c.hub = h

	log.Printf("Client %s joined match %s (total clients: %d)", c.ID, c.MatchID, len(room.Clients))
	return nil
}

// Unregister removes c and closes its send channel. It is safe to call more
// than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.removeLocked(c) {
		log.Printf("Client %s left match %s", c.ID, c.MatchID)
	}
}

func (h *Hub) removeLocked(c *Client) bool {
	room, ok := h.Rooms[c.MatchID]
	if !ok || !room.RemoveClient(c) {
		return false
	}
	close(c.Send)
	if len(room.Clients) == 0 {
		delete(h.Rooms, c.MatchID)
	}
	return true
}

// Broadcast queues message for every client of matchID and returns how many
// received it. Clients that cannot keep up are dropped.
func (h *Hub) Broadcast(matchID string, message []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.Rooms[matchID]
	if !ok {
		return 0
	}
	total := len(room.Clients)
	dropped := room.Broadcast(message)
	for _, c := range dropped {
		h.removeLocked(c)
		log.Printf("Dropped slow client %s from match %s", c.ID, matchID)
	}
	return total - len(dropped)
}

// CloseMatch disconnects every client of matchID.
func (h *Hub) CloseMatch(matchID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.Rooms[matchID]
	if !ok {
		return 0
	}
	n := 0
	for c := range room.Clients {
		if h.removeLocked(c) {
			n++
		}
	}
	if n > 0 {
		log.Printf("Closed %d connections of match %s", n, matchID)
	}
	return n
}

func (h *Hub) Count(matchID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.Rooms[matchID]; ok {
		return len(room.Clients)
	}
	return 0
}

// Shutdown disconnects everyone and refuses further registrations.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, room := range h.Rooms {
		for c := range room.Clients {
			h.removeLocked(c)
		}
	}
	log.Println("Websocket hub shut down")
}
