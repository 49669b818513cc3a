package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equation-game-server/config"
	"equation-game-server/game"
	"equation-game-server/matcherrors"
	"equation-game-server/special"
	"equation-game-server/storage"
)

type stubValidator struct{}

func (stubValidator) Validate(token string) (jwt.MapClaims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return jwt.MapClaims{"sub": "user-1", "name": "Ada Lovelace"}, nil
}

type stubHistory struct {
	records map[string][]storage.GameRecord
	err     error
}

func (s *stubHistory) ListByUserID(_ context.Context, userID string) ([]storage.GameRecord, error) {
	return s.records[userID], s.err
}

func (s *stubHistory) RecordGame(context.Context, *game.Snapshot) error { return nil }

func (s *stubHistory) Close() {}

func newTestServer(t *testing.T, history storage.HistoryStore) *httptest.Server {
	t.Helper()
	cfg := config.Defaults()
	reg := special.NewRegistry()
	special.RegisterAll(reg)
	svc := game.NewService(storage.NewMemoryStore(), cfg, reg, game.NewLockedRand(7))
	srv := httptest.NewServer(NewHandler(cfg, svc, history, stubValidator{}).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any, token string) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e.Code
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, body := do(t, srv, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, _ := do(t, srv, http.MethodOptions, "/api/games", nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestGameLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := do(t, srv, http.MethodPost, "/api/games", map[string]string{"name": "Ada"}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created joinedResponse
	require.NoError(t, json.Unmarshal(body, &created))
	base := "/api/games/" + created.GameID

	resp, body = do(t, srv, http.MethodPost, base+"/players", map[string]string{"name": "Bob"}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var joined joinedResponse
	require.NoError(t, json.Unmarshal(body, &joined))

	resp, body = do(t, srv, http.MethodPost, base+"/players", map[string]string{"name": "Bob"}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, matcherrors.CodeConflict, errorCode(t, body))

	resp, _ = do(t, srv, http.MethodPost, base+"/mode", map[string]string{"playerId": created.PlayerID, "mode": "pro"}, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, srv, http.MethodPost, base+"/start", map[string]string{"playerId": joined.PlayerID}, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, matcherrors.CodeForbidden, errorCode(t, body))

	resp, body = do(t, srv, http.MethodPost, base+"/start", map[string]string{"playerId": created.PlayerID}, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode, string(body))

	resp, _ = do(t, srv, http.MethodPost, base+"/start", map[string]string{"playerId": created.PlayerID}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = do(t, srv, http.MethodGet, base+"?playerId="+created.PlayerID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state game.GameStateMsg
	require.NoError(t, json.Unmarshal(body, &state))
	assert.Equal(t, game.PhasePlayerTurn, state.State)
	assert.Equal(t, "pro", string(state.Mode))
	assert.Equal(t, created.PlayerID, state.YouID)
	assert.NotEmpty(t, state.Hand)
	assert.Len(t, state.Players, 2)

	resp, body = do(t, srv, http.MethodPost, base+"/next-round", nil, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "round still running")
	assert.Equal(t, matcherrors.CodeConflict, errorCode(t, body))

	// Everybody passes: the round ends without winners.
	for i := 0; i < 2; i++ {
		resp, body = do(t, srv, http.MethodGet, base, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(body, &state))
		resp, body = do(t, srv, http.MethodPost, base+"/actions",
			map[string]string{"playerId": state.CurrentPlayerID, "action": "pass"}, "")
		require.Equal(t, http.StatusNoContent, resp.StatusCode, string(body))
	}
	_, body = do(t, srv, http.MethodGet, base, nil, "")
	require.NoError(t, json.Unmarshal(body, &state))
	assert.Equal(t, game.PhaseRoundOver, state.State)
	assert.Empty(t, state.RoundWinnerIDs)
	assert.Empty(t, state.Hand, "spectator view has no hand")
}

func TestGetGame_SeatOfAccountNeedsItsToken(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := do(t, srv, http.MethodPost, "/api/games", map[string]string{"name": "Ada"}, "good")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created joinedResponse
	require.NoError(t, json.Unmarshal(body, &created))
	path := "/api/games/" + created.GameID + "?playerId=" + created.PlayerID

	resp, body = do(t, srv, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, matcherrors.CodeForbidden, errorCode(t, body))

	resp, _ = do(t, srv, http.MethodGet, path, nil, "bad")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = do(t, srv, http.MethodGet, path, nil, "good")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var state game.GameStateMsg
	require.NoError(t, json.Unmarshal(body, &state))
	assert.Equal(t, created.PlayerID, state.YouID)

	resp, _ = do(t, srv, http.MethodGet, "/api/games/"+created.GameID, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "public view needs no token")
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := do(t, srv, http.MethodGet, "/api/games/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, matcherrors.CodeNotFound, errorCode(t, body))

	resp, body = do(t, srv, http.MethodPost, "/api/games", map[string]string{"name": "   "}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, matcherrors.CodeInvalid, errorCode(t, body))

	resp, body = do(t, srv, http.MethodPost, "/api/games", "{not json", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, matcherrors.CodeInvalid, errorCode(t, body))

	_, body = do(t, srv, http.MethodPost, "/api/games", map[string]string{"name": "Ada"}, "")
	var created joinedResponse
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body = do(t, srv, http.MethodPost, "/api/games/"+created.GameID+"/actions",
		map[string]string{"playerId": created.PlayerID, "action": "dance"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, matcherrors.CodeInvalid, errorCode(t, body))

	resp, _ = do(t, srv, http.MethodPost, "/api/games/"+created.GameID+"/start",
		map[string]string{"playerId": created.PlayerID}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "one player is not enough")

	resp, _ = do(t, srv, http.MethodPost, "/api/games/"+created.GameID+"/rematch", nil, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "no rematch before game over")
}

func TestListHistory(t *testing.T) {
	pos := 0
	history := &stubHistory{records: map[string][]storage.GameRecord{
		"user-1": {{GameID: "g1", Mode: "easy", Rounds: 5, YourIndex: &pos}},
	}}
	srv := newTestServer(t, history)

	resp, _ := do(t, srv, http.MethodGet, "/api/history", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/api/history", nil, "bad")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := do(t, srv, http.MethodGet, "/api/history", nil, "good")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []storage.GameRecord
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "g1", list[0].GameID)

	history.err = errors.New("db down")
	resp, _ = do(t, srv, http.MethodGet, "/api/history", nil, "good")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestListHistory_NoStore(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, body := do(t, srv, http.MethodGet, "/api/history", nil, "good")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}
