package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tecu23/arena-server/pkg/config"
	"github.com/tecu23/arena-server/pkg/messages"
)

func newTestApp(t *testing.T, keys ...string) (*application, *httptest.Server) {
	t.Helper()

	cfg := &config.Config{
		Port:             "0",
		APIKeys:          keys,
		SessionRetention: time.Minute,
		AIMinDelay:       time.Millisecond,
		AIMaxDelay:       2 * time.Millisecond,
	}
	app, err := newApplication(cfg, zap.NewNop())
	require.NoError(t, err)

	srv := httptest.NewServer(app.routes())
	t.Cleanup(func() {
		srv.Close()
		app.Shutdown()
	})
	return app, srv
}

func TestHealth(t *testing.T) {
	_, srv := newTestApp(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
}

func TestCreateGame_RequiresKey(t *testing.T) {
	_, srv := newTestApp(t, "secret")

	resp, err := http.Post(srv.URL+"/api/games", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/games", strings.NewReader(`{"timeControl":{"initialMs":180000,"incrementMs":2000}}`))
	require.NoError(t, err)
	req.Header.Set("X-Api-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created createGameResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	_, err = uuid.Parse(created.GameID)
	assert.NoError(t, err)
	assert.Equal(t, "/game/"+created.GameID, created.URL)
	assert.Equal(t, "3+2", created.TimeControl)
	assert.Equal(t, "waiting", created.Status)

	resp, err = http.Get(srv.URL + "/api/games/" + created.GameID)
	require.NoError(t, err)
	defer resp.Body.Close()

	var got gameResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.NotNil(t, got.Clock)
	assert.Equal(t, "3:00", got.Clock.White)
	assert.Equal(t, "3:00", got.Clock.Black)
}

func TestCreateGame_RejectsBadBody(t *testing.T) {
	_, srv := newTestApp(t)

	resp, err := http.Post(srv.URL+"/api/games", "application/json", strings.NewReader(`{"color":"white"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateGame_RejectsInvalidTimeControl(t *testing.T) {
	_, srv := newTestApp(t)

	for _, body := range []string{
		`{"timeControl":{"initialMs":0,"incrementMs":2000}}`,
		`{"timeControl":{"initialMs":-1,"incrementMs":0}}`,
	} {
		resp, err := http.Post(srv.URL+"/api/games", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestGetGame(t *testing.T) {
	_, srv := newTestApp(t)

	resp, err := http.Get(srv.URL + "/api/games/not-a-uuid")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/games/" + uuid.NewString())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/games", "application/json", nil)
	require.NoError(t, err)
	var created createGameResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/games/" + created.GameID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got gameResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, created.GameID, got.ID)
	assert.Equal(t, "waiting", got.Status)
	assert.Equal(t, "human", got.Type)
	assert.Nil(t, got.Clock)
}

func TestActiveGamesAndWebSocket(t *testing.T) {
	_, srv := newTestApp(t)
	gameID := uuid.NewString()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	join := func(playerID string) *websocket.Conn {
		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { ws.Close() })

		payload, _ := json.Marshal(map[string]string{"gameId": gameID, "playerId": playerID})
		require.NoError(t, ws.WriteJSON(messages.InboundMessage{Type: messages.TypeJoin, Payload: payload}))

		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		for {
			var f messages.OutboundMessage
			require.NoError(t, ws.ReadJSON(&f))
			if f.Event == messages.EventGameJoined {
				return ws
			}
		}
	}
	join("alice")
	join("bob")

	assert.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/api/games/status/active")
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		var list gameListResponse
		if json.NewDecoder(resp.Body).Decode(&list) != nil {
			return false
		}
		return len(list.Games) == 1 && list.Games[0].ID == gameID && list.Games[0].Status == "active"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv := newTestApp(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "arena_live_sessions 0")
}

func TestCheckOrigin(t *testing.T) {
	app := &application{Config: &config.Config{FrontendOrigin: "https://play.example"}}

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, app.checkOrigin(r))

	r.Header.Set("Origin", "https://play.example")
	assert.True(t, app.checkOrigin(r))

	app.Config.FrontendOrigin = ""
	assert.True(t, app.checkOrigin(r))
}
