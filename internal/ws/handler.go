package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/krishanu7/rps-backend/internal/auth"
	wsPkg "github.com/krishanu7/rps-backend/pkg/websocket"
)

// Close reasons are limited to 123 bytes by the protocol.
const maxCloseReason = 123

type Notifier interface {
	Notify(matchID string)
}

type Handler struct {
	Hub      *wsPkg.Hub
	notifier Notifier
	issuer   *auth.Issuer
}

func NewHandler(hub *wsPkg.Hub, notifier Notifier, issuer *auth.Issuer) *Handler {
	return &Handler{
		Hub:      hub,
		notifier: notifier,
		issuer:   issuer,
	}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws/{id}", h.ServeWS)
	r.HandleFunc("/ws/{id}/{player_id}", h.ServeWS)
}

// ServeWS upgrades the request and subscribes the player to match updates.
// Refused players get a policy violation close frame instead of a stream.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	matchID := vars["id"]
	playerID, authErr := h.issuer.PlayerFromRequest(r, matchID, vars["player_id"])

	conn, err := wsPkg.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade failed: %v", err)
		return
	}

	if authErr != nil {
		refuse(conn, authErr.Error())
		return
	}
	if playerID == "" {
		refuse(conn, "missing player id")
		return
	}

	client := wsPkg.NewClient(playerID, matchID, conn)
	if err := h.Hub.Register(r.Context(), client); err != nil {
		log.Printf("Refused subscription of player %s to match %s: %v", playerID, matchID, err)
		refuse(conn, err.Error())
		return
	}

	go client.WritePump()
	go client.ReadPump()

	// Send the current state to the new subscriber.
	if h.notifier != nil {
		h.notifier.Notify(matchID)
	}
}

func refuse(conn *websocket.Conn, reason string) {
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		log.Printf("Failed to send close frame: %v", err)
	}
	conn.Close()
}
