package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/bidgame/internal/config"
	"github.com/susu3304/bidgame/internal/guess"
)

type testServer struct {
	api     *API
	handler http.Handler
	clock   *clock.Mock
}

func newTestServer(t *testing.T, faucet int64) *testServer {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, err := guess.NewService(guess.NewMemoryStore(), guess.WithClock(mock), guess.WithDraw(guess.FixedDraw(42)))
	require.NoError(t, err)

	cfg := &config.Config{JWTSecret: "test-secret", StakeDecimals: 2, FaucetAmount: faucet}
	a := New(cfg, svc)
	return &testServer{api: a, handler: a.Handler(), clock: mock}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := s.api.issueToken(userID, userID)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, "POST", "/api/games", "", `{"guess": 1, "stake": "1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, "POST", "/api/games", "garbage", `{"guess": 1, "stake": "1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other := &API{jwtSecret: []byte("other-secret")}
	forged, err := other.issueToken("alice", "alice")
	require.NoError(t, err)
	w = s.do(t, "GET", "/api/me/wallet", forged, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFaucetDisabled(t *testing.T) {
	s := newTestServer(t, 0)
	w := s.do(t, "POST", "/api/me/wallet/deposit", s.token(t, "alice"), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoginRequiresOAuthConfig(t *testing.T) {
	s := newTestServer(t, 0)
	w := s.do(t, "GET", "/api/auth/login", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGameLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, 1000)
	alice, bob, carol := s.token(t, "alice"), s.token(t, "bob"), s.token(t, "carol")

	for _, tok := range []string{alice, bob} {
		w := s.do(t, "POST", "/api/me/wallet/deposit", tok, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := s.do(t, "POST", "/api/games", alice, `{"guess": 40, "stake": "1.00"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created roundView
	decode(t, w, &created)
	assert.Equal(t, guess.RoundID(0), created.ID)
	assert.Equal(t, int64(100), created.Stake)
	assert.Equal(t, "1.00", created.StakeDisplay)

	w = s.do(t, "POST", "/api/games", alice, `{"guess": 102, "stake": "1.00"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, "POST", "/api/games", alice, `{"guess": 5, "stake": "1.001"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, "POST", "/api/games", alice, `{"stake": "1.00"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, "POST", "/api/games", alice, `{"guess": 5, "stake": "0"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), guess.ErrInvalidStake.Error())

	w = s.do(t, "POST", "/api/games/0/join", bob, `{"guess": 45, "stake": "0.50"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, "POST", "/api/games/0/join", bob, `{"guess": 45, "stake": "1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, "POST", "/api/games/0/join", alice, `{"guess": 45, "stake": "1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = s.do(t, "POST", "/api/games/7/join", carol, `{"guess": 45, "stake": "1"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, "GET", "/api/public/games", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var open []roundView
	decode(t, w, &open)
	require.Len(t, open, 1)
	assert.Equal(t, "2.00", open[0].PoolDisplay)
	assert.Equal(t, 2, open[0].Participants)

	w = s.do(t, "PUT", "/api/games/0/limit", bob, `{"limit": 2}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, "PUT", "/api/games/0/limit", alice, `{"limit": 2}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, "POST", "/api/games/0/finish", bob, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	s.clock.Add(guess.DefaultFinalizeWindow)
	w = s.do(t, "POST", "/api/games/0/finish", carol, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, "POST", "/api/games/0/finish", bob, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var finished map[string]int
	decode(t, w, &finished)
	assert.Equal(t, 42, finished["target_number"])

	w = s.do(t, "POST", "/api/games/0/claim", bob, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, "POST", "/api/games/0/claim", alice, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var claimed map[string]interface{}
	decode(t, w, &claimed)
	assert.Equal(t, float64(200), claimed["share"])
	assert.Equal(t, "2.00", claimed["share_display"])
	w = s.do(t, "POST", "/api/games/0/claim", alice, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, "GET", "/api/me/wallet", alice, "")
	var wallet map[string]interface{}
	decode(t, w, &wallet)
	assert.Equal(t, float64(1100), wallet["balance"])
	assert.Equal(t, "11.00", wallet["balance_display"])

	w = s.do(t, "GET", "/api/me/games", alice, "")
	require.Equal(t, http.StatusOK, w.Code)
	var mine []userRoundView
	decode(t, w, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, guess.StatusClosed, mine[0].Status)
	assert.Equal(t, "closed", mine[0].StatusName)
	assert.True(t, mine[0].Winner)

	w = s.do(t, "GET", "/api/public/games/0", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Game roundView `json:"game"`
		Bids []bidView `json:"bids"`
	}
	decode(t, w, &detail)
	require.Len(t, detail.Bids, 2)
	assert.Equal(t, guess.Address("alice"), detail.Bids[0].Bidder)
	assert.True(t, detail.Bids[0].Winner)
	require.NotNil(t, detail.Game.TargetNumber)
	assert.Equal(t, 42, *detail.Game.TargetNumber)

	w = s.do(t, "GET", "/api/public/events?after=1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var events []guess.Event
	decode(t, w, &events)
	require.Len(t, events, 2)
	assert.Equal(t, guess.EventParticipantJoined, events[0].Type)
	assert.Equal(t, guess.EventGameFinished, events[1].Type)

	w = s.do(t, "GET", "/api/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "guess.claim.ok")
}

func TestPublicGameErrors(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, "GET", "/api/public/games/99", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, "GET", "/api/public/games/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, "GET", "/api/public/events?after=x", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, "GET", "/api/public/random?caller=alice", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var random map[string]int
	decode(t, w, &random)
	assert.Equal(t, 42, random["random"])
}
