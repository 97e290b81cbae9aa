package match

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/krishanu7/rps-backend/internal/auth"
)

type Handler struct {
	service *Service
	issuer  *auth.Issuer
}

// NewHandler builds the REST handler. A nil issuer disables player tokens.
func NewHandler(s *Service, issuer *auth.Issuer) *Handler {
	return &Handler{
		service: s,
		issuer:  issuer,
	}
}

type CreateMatchRequest struct {
	PlayerName string `json:"player_name"`
}

type JoinMatchRequest struct {
	PlayerName string `json:"player_name"`
}

type PlayerRequest struct {
	PlayerID string `json:"player_id"`
}

type MoveRequest struct {
	PlayerID string `json:"player_id"`
	Move     string `json:"move"`
}

type SeatResponse struct {
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
	Role     string `json:"role"`
	Token    string `json:"token,omitempty"`
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/matches", h.CreateMatch).Methods(http.MethodPost)
	api.HandleFunc("/matches/{id}", h.GetState).Methods(http.MethodGet)
	api.HandleFunc("/matches/{id}/join", h.JoinMatch).Methods(http.MethodPost)
	api.HandleFunc("/matches/{id}/ready", h.SetReady).Methods(http.MethodPost)
	api.HandleFunc("/matches/{id}/move", h.SubmitMove).Methods(http.MethodPost)
	api.HandleFunc("/matches/{id}/close", h.CloseMatch).Methods(http.MethodPost)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError hides storage faults behind a generic message.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", r.Method, r.URL.Path, err)
		respondError(w, status, "internal server error")
		return
	}
	respondError(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) seat(matchID, playerID, role string) (SeatResponse, error) {
	resp := SeatResponse{MatchID: matchID, PlayerID: playerID, Role: role}
	if h.issuer == nil {
		return resp, nil
	}
	token, err := h.issuer.Issue(matchID, playerID, role)
	if err != nil {
		return resp, err
	}
	resp.Token = token
	return resp, nil
}

// player resolves the acting player from a token or the request body.
func (h *Handler) player(w http.ResponseWriter, r *http.Request, matchID, bodyID string) (string, bool) {
	playerID, err := h.issuer.PlayerFromRequest(r, matchID, bodyID)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return "", false
	}
	if playerID == "" {
		respondError(w, http.StatusBadRequest, "player_id is required")
		return "", false
	}
	return playerID, true
}

func (h *Handler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req CreateMatchRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.service.CreateMatch(r.Context(), req.PlayerName)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	resp, err := h.seat(res.MatchID, res.PlayerID, res.Role)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

func (h *Handler) JoinMatch(w http.ResponseWriter, r *http.Request) {
	var req JoinMatchRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.service.JoinMatch(r.Context(), mux.Vars(r)["id"], req.PlayerName)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	resp, err := h.seat(res.MatchID, res.PlayerID, res.Role)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) SetReady(w http.ResponseWriter, r *http.Request) {
	h.playerAction(w, r, h.service.SetReady)
}

func (h *Handler) CloseMatch(w http.ResponseWriter, r *http.Request) {
	h.playerAction(w, r, h.service.CloseMatch)
}

func (h *Handler) playerAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, matchID, playerID string) (Snapshot, error)) {
	var req PlayerRequest
	if !decode(w, r, &req) {
		return
	}
	matchID := mux.Vars(r)["id"]
	playerID, ok := h.player(w, r, matchID, req.PlayerID)
	if !ok {
		return
	}

	snap, err := action(r.Context(), matchID, playerID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *Handler) SubmitMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decode(w, r, &req) {
		return
	}
	matchID := mux.Vars(r)["id"]
	playerID, ok := h.player(w, r, matchID, req.PlayerID)
	if !ok {
		return
	}

	snap, err := h.service.SubmitMove(r.Context(), matchID, playerID, req.Move)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.GetState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}
