package websocket

// Room is the set of connections subscribed to one match. It is only touched
// while the owning Hub's lock is held.
type Room struct {
	ID      string
	Clients map[*Client]struct{}
}

func NewRoom(id string) *Room {
	return &Room{
		ID:      id,
		Clients: make(map[*Client]struct{}),
	}
}

func (r *Room) AddClient(c *Client) {
	r.Clients[c] = struct{}{}
}

func (r *Room) RemoveClient(c *Client) bool {
	if _, ok := r.Clients[c]; !ok {
		return false
	}
	delete(r.Clients, c)
	return true
}

// Broadcast queues message on every client without blocking and returns the
// clients whose send buffer was full.
func (r *Room) Broadcast(message []byte) []*Client {
	var dropped []*Client
	for client := range r.Clients {
		select {
		case client.Send <- message:
		default:
			dropped = append(dropped, client)
		}
	}
	return dropped
}
