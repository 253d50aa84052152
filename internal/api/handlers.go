package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	metrics "github.com/rcrowley/go-metrics"

	"github.com/susu3304/bidgame/internal/guess"
	"github.com/susu3304/bidgame/internal/money"
)

type roundView struct {
	guess.RoundSummary
	StakeDisplay string `json:"stake_display"`
	PoolDisplay  string `json:"pool_display"`
}

type userRoundView struct {
	guess.UserRound
	StatusName   string `json:"status_name"`
	StakeDisplay string `json:"stake_display"`
	PoolDisplay  string `json:"pool_display"`
}

type bidView struct {
	Bidder  guess.Address `json:"bidder"`
	Guess   int           `json:"guess"`
	Winner  bool          `json:"winner"`
	Claimed bool          `json:"claimed"`
}

type stakeRequest struct {
	Guess *int   `json:"guess"`
	Stake string `json:"stake"`
}

func (a *API) format(units int64) string {
	return money.Format(units, a.config.StakeDecimals)
}

func (a *API) roundView(s guess.RoundSummary) roundView {
	return roundView{RoundSummary: s, StakeDisplay: a.format(s.Stake), PoolDisplay: a.format(s.Pool)}
}

func roundIDVar(r *http.Request) (guess.RoundID, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return guess.RoundID(id), true
}

func (a *API) decodeStake(w http.ResponseWriter, r *http.Request) (int, int64, bool) {
	var req stakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Guess == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return 0, 0, false
	}
	stake, err := money.Parse(req.Stake, a.config.StakeDecimals)
	if errors.Is(err, money.ErrNotPositive) {
		return *req.Guess, 0, true
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return *req.Guess, stake, true
}

// Public handlers
func (a *API) handleActualGames(w http.ResponseWriter, r *http.Request) {
	games, err := a.svc.ActualGames(r.Context())
	if err != nil {
		writeServiceError(w, "actual games", err)
		return
	}
	out := make([]roundView, 0, len(games))
	for _, g := range games {
		out = append(out, a.roundView(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id, ok := roundIDVar(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	round, err := a.svc.Round(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get game", err)
		return
	}
	bids, err := a.svc.Bids(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get game bids", err)
		return
	}
	views := make([]bidView, 0, len(bids))
	for _, b := range bids {
		views = append(views, bidView{Bidder: b.Bidder, Guess: b.Guess, Winner: b.IsWinner, Claimed: b.Claimed})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"game": a.roundView(round),
		"bids": views,
	})
}

func (a *API) handleRandom(w http.ResponseWriter, r *http.Request) {
	caller := guess.Address(r.URL.Query().Get("caller"))
	n, err := a.svc.GenerateRandom(r.Context(), caller)
	if err != nil {
		writeServiceError(w, "random", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"random": n})
}

func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	after, err := strconv.ParseUint(q.Get("after"), 10, 64)
	if q.Get("after") != "" && err != nil {
		writeError(w, http.StatusBadRequest, "invalid after")
		return
	}
	limit, err := strconv.Atoi(q.Get("limit"))
	if q.Get("limit") != "" && err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	events, err := a.svc.Events(r.Context(), after, limit)
	if err != nil {
		writeServiceError(w, "events", err)
		return
	}
	if events == nil {
		events = []guess.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	metrics.WriteJSONOnce(a.svc.Metrics().Registry(), w)
}

// Protected handlers
func (a *API) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	g, stake, ok := a.decodeStake(w, r)
	if !ok {
		return
	}
	id, err := a.svc.CreateGame(r.Context(), callerFrom(r), g, stake)
	if err != nil {
		writeServiceError(w, "create game", err)
		return
	}
	round, err := a.svc.Round(r.Context(), id)
	if err != nil {
		writeServiceError(w, "create game", err)
		return
	}
	writeJSON(w, http.StatusCreated, a.roundView(round))
}

func (a *API) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	id, ok := roundIDVar(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	g, stake, ok := a.decodeStake(w, r)
	if !ok {
		return
	}
	if err := a.svc.JoinGame(r.Context(), callerFrom(r), id, g, stake); err != nil {
		writeServiceError(w, "join game", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "joined"})
}

func (a *API) handleLimitParticipants(w http.ResponseWriter, r *http.Request) {
	id, ok := roundIDVar(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		Limit int `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.svc.LimitParticipants(r.Context(), callerFrom(r), id, req.Limit); err != nil {
		writeServiceError(w, "limit participants", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"limit": req.Limit})
}

func (a *API) handleFinishGame(w http.ResponseWriter, r *http.Request) {
	id, ok := roundIDVar(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	target, err := a.svc.FinishGame(r.Context(), callerFrom(r), id)
	if err != nil {
		writeServiceError(w, "finish game", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"target_number": target})
}

func (a *API) handleClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := roundIDVar(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	share, err := a.svc.Claim(r.Context(), callerFrom(r), id)
	if err != nil {
		writeServiceError(w, "claim", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"share":         share,
		"share_display": a.format(share),
	})
}

func (a *API) handleUserGames(w http.ResponseWriter, r *http.Request) {
	games, err := a.svc.UserGames(r.Context(), callerFrom(r))
	if err != nil {
		writeServiceError(w, "user games", err)
		return
	}
	out := make([]userRoundView, 0, len(games))
	for _, g := range games {
		out = append(out, userRoundView{
			UserRound:    g,
			StatusName:   g.Status.String(),
			StakeDisplay: a.format(g.Stake),
			PoolDisplay:  a.format(g.Pool),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) writeBalance(w http.ResponseWriter, balance int64) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance":         balance,
		"balance_display": a.format(balance),
	})
}

func (a *API) handleWallet(w http.ResponseWriter, r *http.Request) {
	balance, err := a.svc.Balance(r.Context(), callerFrom(r))
	if err != nil {
		writeServiceError(w, "wallet", err)
		return
	}
	a.writeBalance(w, balance)
}

func (a *API) handleDeposit(w http.ResponseWriter, r *http.Request) {
	if a.config.FaucetAmount <= 0 {
		writeError(w, http.StatusForbidden, "faucet is disabled")
		return
	}
	balance, err := a.svc.Deposit(r.Context(), callerFrom(r), a.config.FaucetAmount)
	if err != nil {
		writeServiceError(w, "deposit", err)
		return
	}
	a.writeBalance(w, balance)
}
