package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Snapshots queued per client before it counts as too slow.
	sendBufferSize = 16
)

// Client is one streaming subscriber: a player watching a match.
type Client struct {
	ID      string
	MatchID string
	Conn    *websocket.Conn
	Send    chan []byte
	hub     *Hub
}

func NewClient(id, matchID string, conn *websocket.Conn) *Client {
	return &Client{
		ID:      id,
		MatchID: matchID,
		Conn:    conn,
		Send:    make(chan []byte, sendBufferSize),
	}
}

// ReadPump drains the connection until it fails, then unregisters the client.
// Clients only send keepalive traffic, so message bodies are discarded.
func (c *Client) ReadPump() {
	defer func() {
		if c.hub != nil {
			c.hub.Unregister(c)
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Read error for client %s in match %s: %v", c.ID, c.MatchID, err)
			}
			return
		}
		// Any traffic proves the peer is alive.
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// WritePump delivers queued snapshots. Every write has a deadline, so a stuck
// peer only ever blocks its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub dropped this client.
				c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("Write error for client %s in match %s: %v", c.ID, c.MatchID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy belongs to the deployment proxy.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}
