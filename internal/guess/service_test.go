package guess_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/bidgame/internal/guess"
)

const (
	stake    = int64(100)
	alice    = guess.Address("alice")
	bob      = guess.Address("bob")
	carol    = guess.Address("carol")
	dave     = guess.Address("dave")
	outsider = guess.Address("outsider")
)

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu     sync.Mutex
	events []guess.Event
}

func (r *recordingSink) Publish(e guess.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type fixture struct {
	svc   *guess.Service
	clock *clock.Mock
	sink  *recordingSink
	reg   metrics.Registry
}

func newFixture(t *testing.T, draw guess.RandomDraw, funded ...guess.Address) *fixture {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(start)
	sink := &recordingSink{}
	reg := metrics.NewRegistry()
	svc, err := guess.NewService(guess.NewMemoryStore(),
		guess.WithClock(mock),
		guess.WithDraw(draw),
		guess.WithEventSink(sink),
		guess.WithMetricsRegistry(reg),
	)
	require.NoError(t, err)
	for _, addr := range funded {
		_, err := svc.Deposit(context.Background(), addr, 10*stake)
		require.NoError(t, err)
	}
	return &fixture{svc: svc, clock: mock, sink: sink, reg: reg}
}

func (f *fixture) balance(t *testing.T, addr guess.Address) int64 {
	t.Helper()
	bal, err := f.svc.Balance(context.Background(), addr)
	require.NoError(t, err)
	return bal
}

func TestNewServiceRejectsInvertedWindows(t *testing.T) {
	_, err := guess.NewService(guess.NewMemoryStore(), guess.WithWindows(guess.Windows{Join: time.Minute, Finalize: time.Minute}))
	assert.Error(t, err)
}

func TestCreateGameValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, guess.FixedDraw(50), alice)

	_, err := f.svc.CreateGame(ctx, alice, 102, stake)
	assert.ErrorIs(t, err, guess.ErrInvalidGuess)

	_, err = f.svc.CreateGame(ctx, alice, -1, stake)
	assert.ErrorIs(t, err, guess.ErrInvalidGuess)

	_, err = f.svc.CreateGame(ctx, alice, 12, 0)
	assert.ErrorIs(t, err, guess.ErrInvalidStake)

	_, err = f.svc.CreateGame(ctx, "", 12, stake)
	assert.ErrorIs(t, err, guess.ErrAnonymousCaller)

	_, err = f.svc.CreateGame(ctx, outsider, 12, stake)
	assert.ErrorIs(t, err, guess.ErrInsufficientFunds)

	games, err := f.svc.ActualGames(ctx)
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestCreateGameAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, guess.FixedDraw(50), alice, bob)

	id0, err := f.svc.CreateGame(ctx, alice, 10, stake)
	require.NoError(t, err)
	id1, err := f.svc.CreateGame(ctx, bob, 20, 2*stake)
	require.NoError(t, err)

	assert.Equal(t, guess.RoundID(0), id0)
	assert.Equal(t, guess.RoundID(1), id1)
	assert.Equal(t, 9*stake, f.balance(t, alice))
	assert.Equal(t, 8*stake, f.balance(t, bob))

	games, err := f.svc.ActualGames(ctx)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, stake, games[0].Stake)
	assert.Equal(t, alice, games[0].Owner)
	assert.Equal(t, start.Add(guess.DefaultJoinWindow), games[0].JoinDeadline)
	assert.Nil(t, games[0].TargetNumber)

	require.Len(t, f.sink.events, 2)
	assert.Equal(t, guess.EventRoundCreated, f.sink.events[0].Type)
	assert.Equal(t, 10, f.sink.events[0].Guess)
	assert.Less(t, f.sink.events[0].Seq, f.sink.events[1].Seq)
}

func TestOwnerOnlyRoundReturnsStake(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, guess.FixedDraw(90), alice)

	id, err := f.svc.CreateGame(ctx, alice, 10, stake)
	require.NoError(t, err)

	f.clock.Add(guess.DefaultFinalizeWindow)
	target, err := f.svc.FinishGame(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, 90, target)

	share, err := f.svc.Claim(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, stake, share)
	assert.Equal(t, 10*stake, f.balance(t, alice))
}

func TestExactMatchJoinerTakesPool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, guess.FixedDraw(70), alice, bob, carol)

	id, err := f.svc.CreateGame(ctx, alice, 10, stake)
	require.NoError(t, err)
	f.clock.Add(time.Minute)
	require.NoError(t, f.svc.JoinGame(ctx, bob, id, 70, stake))
	require.NoError(t, f.svc.JoinGame(ctx, carol, id, 40, stake))

	round, err := f.svc.Round(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3*stake, round.Pool)
	assert.Equal(t, 3, round.Participants)

	f.clock.Add(10 * time.Minute)
	_, err = f.svc.FinishGame(ctx, carol, id)
	require.NoError(t, err)

	share, err := f.svc.Claim(ctx, bob, id)
	require.NoError(t, err)
	assert.Equal(t, 3*stake, share)
	assert.Equal(t, 12*stake, f.balance(t, bob))

	_, err = f.svc.Claim(ctx, bob, id)
	assert.ErrorIs(t, err, guess.ErrAlreadyClaimed)
	_, err = f.svc.Claim(ctx, alice, id)
	assert.ErrorIs(t, err, guess.ErrNotAWinner)
	_, err = f.svc.Claim(ctx, outsider, id)
	assert.ErrorIs(t, err, guess.ErrNotAWinner)

	assert.Equal(t, 12*stake, f.balance(t, bob))
}

func TestTiedWinnersSplitPool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, guess.FixedDraw(55), alice)

	id, err := f.svc.CreateGame(ctx, alice, 0, stake)
	require.NoError(t, err)

	joiners := []struct {
		addr  guess.Address
		guess int
	}{
		{"j1", 10}, {"j2", 20}, {"j3", 30}, {"j4", 40}, {"j5", 50}, {"j6", 60}, {"j7", 61},
	}
	for _, j := range joiners {
		_, err := f.svc.Deposit(ctx, j.addr, stake)
		require.NoError(t, err)
		require.NoError(t, f.svc.JoinGame(ctx, j.addr, id, j.guess, stake))
	}

	f.clock.Add(guess.DefaultFinalizeWindow)
	_, err = f.svc.FinishGame(ctx, alice, id)
	require.NoError(t, err)

	round, err := f.svc.Round(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, round.WinnerCount)
	assert.Equal(t, 8*stake, round.Pool)

	for _, addr := range []guess.Address{"j5", "j6"} {
		share, err := f.svc.Claim(ctx, addr, id)
		require.NoError(t, err)
		assert.Equal(t, 4*stake, share)
	}
	_, err = f.svc.Claim(ctx, "j7", id)
	assert.ErrorIs(t, err, guess.ErrNotAWinner)
}

func TestIndivisiblePoolLeavesRemainderInEscrow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, guess.FixedDraw(50), alice, bob, carol, dave)

	id, err := f.svc.CreateGame(ctx, alice, 45, 10)
	require.NoError(t, err)
	require.NoError(t, f.svc.JoinGame(ctx, bob, id, 55, 10))
	require.NoError(t, f.svc.JoinGame(ctx, carol, id, 45, 10))
	require.NoError(t, f.svc.JoinGame(ctx, dave, id, 90, 10))

	f.clock.Add(guess.DefaultFinalizeWindow)
	_, err = f.svc.FinishGame(ctx, dave, id)
	require.NoError(t, err)

	var paid int64
	for _, addr := range []guess.Address{alice, bob, carol} {
		share, err := f.svc.Claim(ctx, addr, id)
		require.NoError(t, err)
		assert.Equal(t, int64(13), share)
		paid += share
	}

	round, err := f.svc.Round(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, paid, round.Paid)
	assert.LessOrEqual(t, round.Paid, round.Pool)
	assert.Less(t, round.Pool-round.Paid, int64(round.WinnerCount))
}

func TestJoinWindowBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, guess.FixedDraw(50), alice, bob, carol)

	id, err := f.svc.CreateGame(ctx, alice, 10, stake)
	require.NoError(t, err)

	f.clock.Add(guess.DefaultJoinWindow - time.Nanosecond)
	require.NoError(t, f.svc.JoinGame(ctx, bob, id, 20, stake))

	f.clock.Add(time.Nanosecond)
	err = f.svc.JoinGame(ctx, carol, id, 30, stake)
	assert.ErrorIs(t, err, guess.ErrJoinWindowClosed)
	assert.Equal(t, 10*stake, f.balance(t, carol))

	err = f.svc.LimitParticipants(ctx, alice, id, 5)
	assert.ErrorIs(t, err, guess.ErrJoinWindowClosed)

	games, err := f.svc.ActualGames(ctx)
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestFinishWindowBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, guess.FixedDraw(50), alice, bob)

	id, err := f.svc.CreateGame(ctx, alice, 10, stake)
	require.NoError(t, err)
	require.NoError(t, f.svc.JoinGame(ctx, bob, id, 20, stake))

	f.clock.Add(guess.DefaultFinalizeWindow - time.Second)
	_, err = f.svc.FinishGame(ctx, bob, id)
	assert.ErrorIs(t, err, guess.ErrFinalizeTooEarly)

	_, err = f.svc.Claim(ctx, bob, id)
	assert.ErrorIs(t, err, guess.ErrNotSettled)

	f.clock.Add(time.Second)
	_, err = f.svc.FinishGame(ctx, outsider, id)
	assert.ErrorIs(t, err, guess.ErrNotAParticipant)

	_, err = f.svc.FinishGame(ctx, bob, id)
	require.NoError(t, err)

	_, err = f.svc.FinishGame(ctx, alice, id)
	assert.ErrorIs(t, err, guess.ErrAlreadySettled)

	finished := 0
	for _, e := range f.sink.events {
		if e.Type == guess.EventGameFinished {
			finished++
			assert.Equal(t, 50, e.Guess)
		}
	}
	assert.Equal(t, 1, finished)
}

func TestJoinGameRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, guess.FixedDraw(50), alice, bob, carol)

	id, err := f.svc.CreateGame(ctx, alice, 10, stake)
	require.NoError(t, err)

	tests := []struct {
		name   string
		caller guess.Address
		id     guess.RoundID
		guess  int
		stake  int64
		want   error
	}{
		{"unknown round", bob, 42, 20, stake, guess.ErrRoundNotFound},
		{"owner", alice, id, 20, stake, guess.ErrDuplicateOwnerJoin},
		{"stake too low", bob, id, 20, stake - 1, guess.ErrStakeMismatch},
		{"stake too high", bob, id, 20, stake + 1, guess.ErrStakeMismatch},
		{"guess out of range", bob, id, 101, stake, guess.ErrInvalidGuess},
		{"no funds", outsider, id, 20, stake, guess.ErrInsufficientFunds},
		{"anonymous", "", id, 20, stake, guess.ErrAnonymousCaller},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.JoinGame(ctx, tt.caller, tt.id, tt.guess, tt.stake)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	require.NoError(t, f.svc.JoinGame(ctx, bob, id, 20, stake))
	err = f.svc.JoinGame(ctx, bob, id, 30, stake)
	assert.ErrorIs(t, err, guess.ErrAlreadyJoined)

	round, err := f.svc.Round(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2*stake, round.Pool)
	assert.Equal(t, 2, round.Participants)
	assert.Equal(t, 9*stake, f.balance(t, bob))
}

func TestLimitParticipants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, guess.FixedDraw(50), alice, bob, carol, dave)

	id, err := f.svc.CreateGame(ctx, alice, 10, stake)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.LimitParticipants(ctx, bob, id, 2), guess.ErrNotOwner)
	assert.ErrorIs(t, f.svc.LimitParticipants(ctx, alice, 7, 2), guess.ErrRoundNotFound)
	assert.ErrorIs(t, f.svc.LimitParticipants(ctx, alice, id, -1), guess.ErrInvalidLimit)

	require.NoError(t, f.svc.LimitParticipants(ctx, alice, id, 2))
	require.NoError(t, f.svc.JoinGame(ctx, bob, id, 20, stake))
	err = f.svc.JoinGame(ctx, carol, id, 30, stake)
	assert.ErrorIs(t, err, guess.ErrParticipantLimitReached)

	require.NoError(t, f.svc.LimitParticipants(ctx, alice, id, 0))
	require.NoError(t, f.svc.JoinGame(ctx, carol, id, 30, stake))

	err = f.svc.LimitParticipants(ctx, alice, id, 2)
	assert.ErrorIs(t, err, guess.ErrLimitBelowCurrent)
	require.NoError(t, f.svc.LimitParticipants(ctx, alice, id, 3))

	err = f.svc.JoinGame(ctx, dave, id, 40, stake)
	assert.ErrorIs(t, err, guess.ErrParticipantLimitReached)

	round, err := f.svc.Round(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, round.ParticipantLimit)
}

func TestUserGamesStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, guess.FixedDraw(20), alice, bob)

	id, err := f.svc.CreateGame(ctx, alice, 10, stake)
	require.NoError(t, err)
	require.NoError(t, f.svc.JoinGame(ctx, bob, id, 20, stake))

	status := func(addr guess.Address) guess.Status {
		t.Helper()
		games, err := f.svc.UserGames(ctx, addr)
		require.NoError(t, err)
		require.Len(t, games, 1)
		return games[0].Status
	}

	assert.Equal(t, guess.StatusInProgress, status(alice))

	f.clock.Add(guess.DefaultJoinWindow)
	assert.Equal(t, guess.StatusReadyToFinalize, status(alice))

	f.clock.Add(guess.DefaultFinalizeWindow)
	_, err = f.svc.FinishGame(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, guess.StatusFinalizedUnclaimed, status(bob))
	assert.Equal(t, guess.StatusClosed, status(alice))

	_, err = f.svc.Claim(ctx, bob, id)
	require.NoError(t, err)
	assert.Equal(t, guess.StatusClosed, status(bob))

	games, err := f.svc.UserGames(ctx, outsider)
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestGenerateRandomPreviewsFinish(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, guess.KeccakDraw{}, alice)

	id, err := f.svc.CreateGame(ctx, alice, 10, stake)
	require.NoError(t, err)
	f.clock.Add(guess.DefaultFinalizeWindow)

	preview, err := f.svc.GenerateRandom(ctx, alice)
	require.NoError(t, err)
	again, err := f.svc.GenerateRandom(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, preview, again)

	target, err := f.svc.FinishGame(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, preview, target)
}

func TestMetricsCountOutcomes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, guess.FixedDraw(50), alice, bob)

	id, err := f.svc.CreateGame(ctx, alice, 50, stake)
	require.NoError(t, err)
	_ = f.svc.JoinGame(ctx, alice, id, 20, stake)
	require.NoError(t, f.svc.JoinGame(ctx, bob, id, 20, stake))
	f.clock.Add(guess.DefaultFinalizeWindow)
	_, err = f.svc.FinishGame(ctx, bob, id)
	require.NoError(t, err)
	_, err = f.svc.Claim(ctx, alice, id)
	require.NoError(t, err)

	counter := func(name string) int64 {
		return metrics.GetOrRegisterCounter(name, f.reg).Count()
	}
	assert.Equal(t, int64(1), counter("guess.create.ok"))
	assert.Equal(t, int64(1), counter("guess.join.ok"))
	assert.Equal(t, int64(1), counter("guess.join.rejected"))
	assert.Equal(t, int64(1), counter("guess.claim.ok"))
	assert.Equal(t, 2*stake, counter("guess.escrow.in"))
	assert.Equal(t, 2*stake, counter("guess.escrow.out"))
	assert.Equal(t, int64(0), metrics.GetOrRegisterGauge("guess.escrow.held", f.reg).Value())
}

func TestAnonymousCallerCountsAsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, guess.FixedDraw(50), alice)

	id, err := f.svc.CreateGame(ctx, alice, 50, stake)
	require.NoError(t, err)

	_, err = f.svc.CreateGame(ctx, "", 10, stake)
	assert.ErrorIs(t, err, guess.ErrAnonymousCaller)
	err = f.svc.JoinGame(ctx, "", id, 10, stake)
	assert.ErrorIs(t, err, guess.ErrAnonymousCaller)

	counter := func(name string) int64 {
		return metrics.GetOrRegisterCounter(name, f.reg).Count()
	}
	assert.Equal(t, int64(1), counter("guess.create.rejected"))
	assert.Equal(t, int64(1), counter("guess.join.rejected"))
}
