package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastbreakhq/fastbreak/internal/models"
	"github.com/fastbreakhq/fastbreak/internal/questions"
	"github.com/fastbreakhq/fastbreak/internal/room"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	resolver := room.NewResolver(room.NewMemoryStore())
	return NewAPI(resolver, questions.NewBankGenerator(nil, 1), nil, "https://fastbreak.test/join")
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createRoom(t *testing.T, router http.Handler, body createRoomRequest) roomResponse {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/rooms", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp roomResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestCreateRoom(t *testing.T) {
	router := newTestAPI(t).Routes()

	resp := createRoom(t, router, createRoomRequest{HostName: "alice"})
	require.NotNil(t, resp.Room)
	assert.Len(t, resp.Room.Code, 6)
	assert.Equal(t, models.RoomStatusWaiting, resp.Room.Status)
	assert.Equal(t, resp.PlayerID, resp.Room.HostID)
	require.Len(t, resp.Room.Players, 1)
	assert.Equal(t, "alice", resp.Room.Players[0].Name)
}

func TestCreateRoomRequiresHostName(t *testing.T) {
	router := newTestAPI(t).Routes()
	rec := doJSON(t, router, http.MethodPost, "/api/rooms", createRoomRequest{HostName: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinRoom(t *testing.T) {
	router := newTestAPI(t).Routes()
	created := createRoom(t, router, createRoomRequest{HostName: "alice", MaxPlayers: 2})

	rec := doJSON(t, router, http.MethodPost, "/api/rooms/"+created.Room.Code+"/join", joinRoomRequest{PlayerName: "bob"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp roomResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Room.Players, 2)
	assert.Equal(t, resp.PlayerID, resp.Room.GuestID)

	// Lower-case codes are accepted.
	rec = doJSON(t, router, http.MethodGet, "/api/rooms/"+strings.ToLower(created.Room.Code), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJoinFullRoomConflicts(t *testing.T) {
	router := newTestAPI(t).Routes()
	created := createRoom(t, router, createRoomRequest{HostName: "alice", MaxPlayers: 2})

	rec := doJSON(t, router, http.MethodPost, "/api/rooms/"+created.Room.Code+"/join", joinRoomRequest{PlayerName: "bob"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/rooms/"+created.Room.Code+"/join", joinRoomRequest{PlayerName: "carol"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "room is full", resp.Error)
}

func TestGetUnknownRoom(t *testing.T) {
	router := newTestAPI(t).Routes()
	rec := doJSON(t, router, http.MethodGet, "/api/rooms/ZZZZZZ", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaveRoom(t *testing.T) {
	router := newTestAPI(t).Routes()
	created := createRoom(t, router, createRoomRequest{HostName: "alice"})

	rec := doJSON(t, router, http.MethodPost, "/api/rooms/"+created.Room.Code+"/join", joinRoomRequest{PlayerName: "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	var joined roomResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&joined))

	rec = doJSON(t, router, http.MethodPost, "/api/rooms/"+created.Room.Code+"/leave", leaveRoomRequest{PlayerID: joined.PlayerID})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/rooms/"+created.Room.Code, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var after roomResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&after))
	assert.Len(t, after.Room.Players, 1)
}

func TestLeaveRequiresPlayerID(t *testing.T) {
	router := newTestAPI(t).Routes()
	created := createRoom(t, router, createRoomRequest{HostName: "alice"})

	rec := doJSON(t, router, http.MethodPost, "/api/rooms/"+created.Room.Code+"/leave", leaveRoomRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Leaving a room you are not in is idempotent.
	rec = doJSON(t, router, http.MethodPost, "/api/rooms/"+created.Room.Code+"/leave", leaveRoomRequest{PlayerID: uuid.New()})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRoomQR(t *testing.T) {
	router := newTestAPI(t).Routes()
	created := createRoom(t, router, createRoomRequest{HostName: "alice"})

	rec := doJSON(t, router, http.MethodGet, "/api/rooms/"+created.Room.Code+"/qr", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())

	rec = doJSON(t, router, http.MethodGet, "/api/rooms/ZZZZZZ/qr", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDaily(t *testing.T) {
	router := newTestAPI(t).Routes()

	first := doJSON(t, router, http.MethodGet, "/api/daily", nil)
	require.Equal(t, http.StatusOK, first.Code)
	var a, b dailyResponse
	require.NoError(t, json.NewDecoder(first.Body).Decode(&a))
	assert.NotEmpty(t, a.Name)

	second := doJSON(t, router, http.MethodGet, "/api/daily", nil)
	require.NoError(t, json.NewDecoder(second.Body).Decode(&b))
	assert.Equal(t, a, b, "same day, same subject")
}

func TestHealth(t *testing.T) {
	router := newTestAPI(t).Routes()
	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
