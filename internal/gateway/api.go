package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/fastbreakhq/fastbreak/internal/models"
	"github.com/fastbreakhq/fastbreak/internal/questions"
	"github.com/fastbreakhq/fastbreak/internal/room"
)

const qrSize = 256

// API serves the lobby HTTP surface: room lifecycle, join QR codes, the
// daily challenge and websocket upgrades.
type API struct {
	resolver  *room.Resolver
	generator *questions.BankGenerator
	manager   *ConnectionManager

	// joinBaseURL is the public URL prefix encoded into join QR codes,
	// e.g. "https://fastbreak.example.com/join".
	joinBaseURL string
}

// NewAPI wires the lobby API.
func NewAPI(resolver *room.Resolver, generator *questions.BankGenerator, manager *ConnectionManager, joinBaseURL string) *API {
	return &API{
		resolver:    resolver,
		generator:   generator,
		manager:     manager,
		joinBaseURL: strings.TrimRight(joinBaseURL, "/"),
	}
}

// Routes builds the router.
func (a *API) Routes() *httprouter.Router {
	mux := httprouter.New()

	mux.POST("/api/rooms", a.handleCreateRoom)
	mux.GET("/api/rooms/:code", a.handleGetRoom)
	mux.POST("/api/rooms/:code/join", a.handleJoinRoom)
	mux.POST("/api/rooms/:code/leave", a.handleLeaveRoom)
	mux.GET("/api/rooms/:code/qr", a.handleRoomQR)
	mux.GET("/api/daily", a.handleDaily)
	mux.GET("/health", a.handleHealth)

	if a.manager != nil {
		mux.GET("/ws/rooms/:code", a.handleRoomSocket)
	}
	return mux
}

type createRoomRequest struct {
	HostName      string `json:"host_name"`
	GameType      string `json:"game_type,omitempty"`
	QuestionCount int    `json:"question_count,omitempty"`
	TimerSeconds  int    `json:"timer_seconds,omitempty"`
	MaxPlayers    int    `json:"max_players,omitempty"`
}

type joinRoomRequest struct {
	PlayerName string `json:"player_name"`
}

type leaveRoomRequest struct {
	PlayerID uuid.UUID `json:"player_id"`
}

// roomResponse is the client view of a room plus the caller's identity
// when the call minted one.
type roomResponse struct {
	Room     *models.Room `json:"room"`
	PlayerID uuid.UUID    `json:"player_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) handleCreateRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.HostName) == "" {
		writeError(w, http.StatusBadRequest, "host_name is required")
		return
	}

	hostID := uuid.New()
	rm, err := a.resolver.CreateRoom(r.Context(), hostID, strings.TrimSpace(req.HostName), room.CreateRoomOptions{
		GameType:      models.GameType(req.GameType),
		QuestionCount: req.QuestionCount,
		TimerSeconds:  req.TimerSeconds,
		MaxPlayers:    req.MaxPlayers,
	})
	if err != nil {
		writeResolverError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, roomResponse{Room: rm, PlayerID: hostID})
}

func (a *API) handleGetRoom(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	rm, err := a.resolver.GetByCode(r.Context(), normalizeCode(p.ByName("code")))
	if err != nil {
		writeResolverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{Room: rm})
}

func (a *API) handleJoinRoom(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.PlayerName) == "" {
		writeError(w, http.StatusBadRequest, "player_name is required")
		return
	}

	playerID := uuid.New()
	rm, err := a.resolver.Join(r.Context(), normalizeCode(p.ByName("code")), playerID, strings.TrimSpace(req.PlayerName))
	if err != nil {
		writeResolverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{Room: rm, PlayerID: playerID})
}

func (a *API) handleLeaveRoom(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var req leaveRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "player_id is required")
		return
	}

	rm, err := a.resolver.GetByCode(r.Context(), normalizeCode(p.ByName("code")))
	if err != nil {
		writeResolverError(w, err)
		return
	}
	if err := a.resolver.Leave(r.Context(), rm.ID, req.PlayerID); err != nil {
		writeResolverError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRoomQR generates a PNG QR code for the room's join URL.
func (a *API) handleRoomQR(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	code := normalizeCode(p.ByName("code"))
	if _, err := a.resolver.GetByCode(r.Context(), code); err != nil {
		writeResolverError(w, err)
		return
	}

	png, err := qrcode.Encode(fmt.Sprintf("%s/%s", a.joinBaseURL, code), qrcode.Medium, qrSize)
	if err != nil {
		log.Error().Err(err).Str("room_code", code).Msg("qr encoding failed")
		writeError(w, http.StatusInternalServerError, "failed to generate qr code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		log.Error().Err(err).Str("room_code", code).Msg("failed to write qr response")
	}
}

type dailyResponse struct {
	Date     string  `json:"date"`
	Name     string  `json:"name"`
	Team     string  `json:"team"`
	Position string  `json:"position"`
	Points   float64 `json:"pts"`
	Rebounds float64 `json:"reb"`
	Assists  float64 `json:"ast"`
}

// handleDaily serves the date-keyed challenge subject. Every caller gets
// the same subject for a given UTC day.
func (a *API) handleDaily(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	now := time.Now().UTC()
	subject := a.generator.Daily(now)
	writeJSON(w, http.StatusOK, dailyResponse{
		Date:     now.Format("2006-01-02"),
		Name:     subject.Name,
		Team:     subject.Team,
		Position: subject.Position,
		Points:   subject.Points,
		Rebounds: subject.Rebounds,
		Assists:  subject.Assists,
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	total := 0
	if a.manager != nil {
		total, _ = a.manager.ConnectionCounts()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": total,
	})
}

func (a *API) handleRoomSocket(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	code := normalizeCode(p.ByName("code"))
	if _, err := a.resolver.GetByCode(r.Context(), code); err != nil {
		writeResolverError(w, err)
		return
	}
	if err := a.manager.UpgradeConnection(w, r, code); err != nil {
		// Upgrade already wrote the HTTP failure response.
		log.Error().Err(err).Str("room_code", code).Msg("websocket upgrade failed")
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// writeResolverError maps resolver sentinels to HTTP statuses.
func writeResolverError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "room not found")
	case errors.Is(err, room.ErrRoomFull):
		writeError(w, http.StatusConflict, "room is full")
	case errors.Is(err, room.ErrGameStarted):
		writeError(w, http.StatusConflict, "game already started")
	case errors.Is(err, room.ErrNotInRoom):
		writeError(w, http.StatusConflict, "player is not in the room")
	case errors.Is(err, room.ErrNotLeader), errors.Is(err, room.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, room.ErrVersionConflict):
		writeError(w, http.StatusConflict, "concurrent update, retry")
	default:
		log.Error().Err(err).Msg("unhandled api error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
