package main

import (
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testAdminPassword = "hunter22"

type wireEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d"`
}

// startTestServer runs a hub and the HTTP routes behind httptest and
// returns the server plus its websocket URL.
func startTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.AdminPasswordHash = string(hash)
	cfg.JWTSecret = "integration-secret"
	cfg.PublicURL = "http://play.test"

	logger := zerolog.Nop()
	hub := NewHub(cfg, nil, logger)
	go hub.Run()

	srv := httptest.NewServer(SetupRoutes(cfg, hub, NewAuth(cfg, nil, logger), nil, logger))
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEnv(t *testing.T, conn *websocket.Conn, typ string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(Envelope{T: typ, Data: data}))
}

// readUntil skips binary frames and text messages of other types
func readUntil(t *testing.T, conn *websocket.Conn, typ string) wireEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		msgType, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		if msgType != websocket.TextMessage {
			continue
		}
		var env wireEnvelope
		require.NoError(t, json.Unmarshal(raw, &env))
		if env.T == typ {
			return env
		}
	}
}

func login(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/admin/login", "application/json",
		strings.NewReader(`{"password":"`+testAdminPassword+`"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func adminGet(t *testing.T, srv *httptest.Server, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestWebSocketJoinFlow(t *testing.T) {
	_, wsURL := startTestServer(t)

	c1 := dialWS(t, wsURL)
	sendEnv(t, c1, MsgJoinGame, JoinGameMsg{Passcode: "ABC123"})
	var info PlayerInfoMsg
	require.NoError(t, json.Unmarshal(readUntil(t, c1, MsgPlayerInfo).D, &info))
	assert.Equal(t, 1, info.PlayerNumber)
	assert.Equal(t, "ABC123", info.RoomID)
	assert.Equal(t, WorldWidth, info.GameWorldWidth)

	c2 := dialWS(t, wsURL)
	sendEnv(t, c2, MsgJoinGame, JoinGameMsg{Passcode: "ABC123"})
	require.NoError(t, json.Unmarshal(readUntil(t, c2, MsgPlayerInfo).D, &info))
	assert.Equal(t, 2, info.PlayerNumber)

	readUntil(t, c1, MsgPreGame)
	readUntil(t, c2, MsgPreGame)

	c3 := dialWS(t, wsURL)
	sendEnv(t, c3, MsgJoinGame, JoinGameMsg{Passcode: "ABC123"})
	readUntil(t, c3, MsgGameFull)

	// Closing one seat tears the room down for the other.
	c2.Close()
	readUntil(t, c1, MsgPlayerDisconnected)
}

func TestHealthz(t *testing.T) {
	srv, _ := startTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
	assert.EqualValues(t, 0, body["rooms"])
}

func TestInviteEndpoint(t *testing.T) {
	srv, _ := startTestServer(t)

	resp, err := http.Get(srv.URL + "/invite/ABC123.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, inviteQRSize, img.Bounds().Dx())

	bad, err := http.Get(srv.URL + "/invite/nope.png")
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	missing, err := http.Get(srv.URL + "/invite/ABC123.gif")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestAdminLogin(t *testing.T) {
	srv, _ := startTestServer(t)

	resp, err := http.Post(srv.URL+"/api/admin/login", "application/json", strings.NewReader(`{"password":"wrong"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.NotEmpty(t, login(t, srv))
}

func TestAdminRooms(t *testing.T) {
	srv, wsURL := startTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, adminGet(t, srv, "/api/rooms", "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, adminGet(t, srv, "/api/rooms", "garbage").StatusCode)

	c1 := dialWS(t, wsURL)
	sendEnv(t, c1, MsgJoinGame, JoinGameMsg{Passcode: "ROOM42"})
	readUntil(t, c1, MsgPlayerInfo)

	resp := adminGet(t, srv, "/api/rooms", login(t, srv))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rooms []RoomInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, "ROOM42", rooms[0].ID)
	assert.True(t, rooms[0].Passcode)
	assert.Equal(t, 1, rooms[0].Players)
}

func TestLedgerRoutesWithoutDB(t *testing.T) {
	srv, _ := startTestServer(t)
	token := login(t, srv)

	assert.Equal(t, http.StatusServiceUnavailable, adminGet(t, srv, "/api/matches", token).StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, adminGet(t, srv, "/api/events", token).StatusCode)
}
