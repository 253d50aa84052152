// Package guesstest holds the behaviour every guess.Store backend must share.
package guesstest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/bidgame/internal/guess"
)

// NewStore returns an empty store. It is called once per subtest.
type NewStore func(t *testing.T) guess.Store

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Run executes the store contract against newStore.
func Run(t *testing.T, newStore NewStore) {
	t.Run("Rounds", func(t *testing.T) { testRounds(t, newStore(t)) })
	t.Run("Bids", func(t *testing.T) { testBids(t, newStore(t)) })
	t.Run("Wallets", func(t *testing.T) { testWallets(t, newStore(t)) })
	t.Run("Events", func(t *testing.T) { testEvents(t, newStore(t)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("Lifecycle", func(t *testing.T) { testLifecycle(t, newStore(t)) })
	t.Run("TimeGates", func(t *testing.T) { testTimeGates(t, newStore(t)) })
}

func seedRound(ctx context.Context, tx guess.Tx, owner guess.Address, createdAt time.Time) (guess.RoundID, error) {
	id, err := tx.NextRoundID(ctx)
	if err != nil {
		return 0, err
	}
	r := guess.Round{ID: id, Owner: owner, Stake: 10, CreatedAt: createdAt, Pool: 10}
	if err := tx.InsertRound(ctx, r); err != nil {
		return 0, err
	}
	return id, tx.InsertBid(ctx, guess.Bid{RoundID: id, Bidder: owner, Guess: 1, IsParticipant: true})
}

func testRounds(t *testing.T, store guess.Store) {
	ctx := context.Background()

	err := store.Update(ctx, func(tx guess.Tx) error {
		for i := 0; i < 3; i++ {
			id, err := seedRound(ctx, tx, "owner", base.Add(time.Duration(i)*time.Minute))
			if err != nil {
				return err
			}
			if id != guess.RoundID(i) {
				return errors.New("round ids must start at 0 and be sequential")
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = store.Update(ctx, func(tx guess.Tx) error {
		r, err := tx.Round(ctx, 1)
		if err != nil {
			return err
		}
		r.Settled = true
		r.TargetNumber = 33
		r.WinnerCount = 1
		r.Joiners = 2
		r.Pool = 30
		r.Paid = 10
		r.ParticipantLimit = 5
		return tx.UpdateRound(ctx, r)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx guess.Tx) error {
		r, err := tx.Round(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, guess.Address("owner"), r.Owner)
		assert.True(t, r.Settled)
		assert.Equal(t, 33, r.TargetNumber)
		assert.Equal(t, 1, r.WinnerCount)
		assert.Equal(t, 2, r.Joiners)
		assert.Equal(t, int64(30), r.Pool)
		assert.Equal(t, int64(10), r.Paid)
		assert.Equal(t, 5, r.ParticipantLimit)
		assert.True(t, base.Add(time.Minute).Equal(r.CreatedAt))

		_, err = tx.Round(ctx, 3)
		assert.ErrorIs(t, err, guess.ErrRoundNotFound)

		next, err := tx.NextRoundID(ctx)
		require.NoError(t, err)
		assert.Equal(t, guess.RoundID(3), next)

		recent, err := tx.RoundsCreatedAfter(ctx, base)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, guess.RoundID(1), recent[0].ID)
		assert.Equal(t, guess.RoundID(2), recent[1].ID)

		open, err := tx.UnsettledRounds(ctx)
		require.NoError(t, err)
		require.Len(t, open, 2)
		assert.Equal(t, guess.RoundID(0), open[0].ID)
		assert.Equal(t, guess.RoundID(2), open[1].ID)
		return nil
	})
	require.NoError(t, err)
}

func testBids(t *testing.T, store guess.Store) {
	ctx := context.Background()

	err := store.Update(ctx, func(tx guess.Tx) error {
		for _, owner := range []guess.Address{"a", "b"} {
			if _, err := seedRound(ctx, tx, owner, base); err != nil {
				return err
			}
		}
		for _, b := range []guess.Bid{
			{RoundID: 0, Bidder: "c", Guess: 40, IsParticipant: true},
			{RoundID: 0, Bidder: "b", Guess: 60, IsParticipant: true},
			{RoundID: 1, Bidder: "c", Guess: 70, IsParticipant: true},
		} {
			if err := tx.InsertBid(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = store.Update(ctx, func(tx guess.Tx) error {
		return tx.InsertBid(ctx, guess.Bid{RoundID: 0, Bidder: "c", Guess: 1, IsParticipant: true})
	})
	assert.ErrorIs(t, err, guess.ErrAlreadyJoined)

	err = store.Update(ctx, func(tx guess.Tx) error {
		b, err := tx.Bid(ctx, 0, "b")
		if err != nil {
			return err
		}
		b.IsWinner = true
		b.Claimed = true
		return tx.UpdateBid(ctx, b)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx guess.Tx) error {
		bids, err := tx.Bids(ctx, 0)
		require.NoError(t, err)
		require.Len(t, bids, 3)
		assert.Equal(t, guess.Address("a"), bids[0].Bidder)
		assert.Equal(t, guess.Address("c"), bids[1].Bidder)
		assert.Equal(t, guess.Address("b"), bids[2].Bidder)
		assert.True(t, bids[2].IsWinner)
		assert.True(t, bids[2].Claimed)
		assert.Equal(t, 60, bids[2].Guess)

		_, err = tx.Bid(ctx, 1, "a")
		assert.ErrorIs(t, err, guess.ErrBidNotFound)

		mine, err := tx.BidsByBidder(ctx, "c")
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, guess.RoundID(0), mine[0].RoundID)
		assert.Equal(t, 40, mine[0].Guess)
		assert.Equal(t, guess.RoundID(1), mine[1].RoundID)

		none, err := tx.BidsByBidder(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
		return nil
	})
	require.NoError(t, err)
}

func testWallets(t *testing.T, store guess.Store) {
	ctx := context.Background()

	err := store.Update(ctx, func(tx guess.Tx) error {
		if err := tx.AddBalance(ctx, "w", 50); err != nil {
			return err
		}
		return tx.AddBalance(ctx, "w", -20)
	})
	require.NoError(t, err)

	err = store.Update(ctx, func(tx guess.Tx) error {
		return tx.AddBalance(ctx, "w", -31)
	})
	assert.ErrorIs(t, err, guess.ErrInsufficientFunds)

	err = store.Update(ctx, func(tx guess.Tx) error {
		return tx.AddBalance(ctx, "empty", -1)
	})
	assert.ErrorIs(t, err, guess.ErrInsufficientFunds)

	err = store.View(ctx, func(tx guess.Tx) error {
		bal, err := tx.Balance(ctx, "w")
		require.NoError(t, err)
		assert.Equal(t, int64(30), bal)

		bal, err = tx.Balance(ctx, "empty")
		require.NoError(t, err)
		assert.Zero(t, bal)
		return nil
	})
	require.NoError(t, err)
}

func testEvents(t *testing.T, store guess.Store) {
	ctx := context.Background()

	var appended []guess.Event
	err := store.Update(ctx, func(tx guess.Tx) error {
		last, err := tx.LastEventSeq(ctx)
		if err != nil {
			return err
		}
		if last != 0 {
			return errors.New("empty log must report sequence 0")
		}
		for i, typ := range []guess.EventType{guess.EventRoundCreated, guess.EventParticipantJoined, guess.EventGameFinished} {
			e, err := tx.AppendEvent(ctx, guess.Event{
				ID: uuid.New(), Type: typ, RoundID: 0, Bidder: "a", Guess: i, At: base,
			})
			if err != nil {
				return err
			}
			appended = append(appended, e)
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, appended, 3)
	assert.Less(t, appended[0].Seq, appended[1].Seq)
	assert.Less(t, appended[1].Seq, appended[2].Seq)

	err = store.View(ctx, func(tx guess.Tx) error {
		last, err := tx.LastEventSeq(ctx)
		require.NoError(t, err)
		assert.Equal(t, appended[2].Seq, last)

		rest, err := tx.Events(ctx, appended[0].Seq, 10)
		require.NoError(t, err)
		require.Len(t, rest, 2)
		assert.Equal(t, appended[1].ID, rest[0].ID)
		assert.Equal(t, guess.EventParticipantJoined, rest[0].Type)
		assert.Equal(t, guess.Address("a"), rest[0].Bidder)
		assert.Equal(t, 1, rest[0].Guess)

		limited, err := tx.Events(ctx, 0, 1)
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, appended[0].Seq, limited[0].Seq)
		return nil
	})
	require.NoError(t, err)
}

func testRollback(t *testing.T, store guess.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, store.Update(ctx, func(tx guess.Tx) error {
		return tx.AddBalance(ctx, "a", 100)
	}))

	err := store.Update(ctx, func(tx guess.Tx) error {
		if _, err := seedRound(ctx, tx, "a", base); err != nil {
			return err
		}
		if err := tx.AddBalance(ctx, "a", -10); err != nil {
			return err
		}
		if _, err := tx.AppendEvent(ctx, guess.Event{ID: uuid.New(), Type: guess.EventRoundCreated, At: base}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = store.View(ctx, func(tx guess.Tx) error {
		_, err := tx.Round(ctx, 0)
		assert.ErrorIs(t, err, guess.ErrRoundNotFound)

		bids, err := tx.BidsByBidder(ctx, "a")
		require.NoError(t, err)
		assert.Empty(t, bids)

		bal, err := tx.Balance(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, int64(100), bal)

		events, err := tx.Events(ctx, 0, 10)
		require.NoError(t, err)
		assert.Empty(t, events)

		next, err := tx.NextRoundID(ctx)
		require.NoError(t, err)
		assert.Equal(t, guess.RoundID(0), next)
		return nil
	})
	require.NoError(t, err)
}

// testLifecycle drives a full round through the service on top of the store.
func testLifecycle(t *testing.T, store guess.Store) {
	ctx := context.Background()
	svc, err := guess.NewService(store, guess.WithDraw(guess.FixedDraw(64)),
		guess.WithWindows(guess.Windows{Join: 250 * time.Millisecond, Finalize: 500 * time.Millisecond}))
	require.NoError(t, err)

	for _, addr := range []guess.Address{"host", "p1", "p2"} {
		_, err := svc.Deposit(ctx, addr, 1000)
		require.NoError(t, err)
	}

	id, err := svc.CreateGame(ctx, "host", 10, 100)
	require.NoError(t, err)
	require.NoError(t, svc.JoinGame(ctx, "p1", id, 64, 100))
	// p2 joins with a wrong stake and must leave no trace.
	assert.ErrorIs(t, svc.JoinGame(ctx, "p2", id, 60, 99), guess.ErrStakeMismatch)

	time.Sleep(600 * time.Millisecond)
	_, err = svc.FinishGame(ctx, "host", id)
	require.NoError(t, err)

	share, err := svc.Claim(ctx, "p1", id)
	require.NoError(t, err)
	assert.Equal(t, int64(200), share)

	_, err = svc.Claim(ctx, "p1", id)
	assert.ErrorIs(t, err, guess.ErrAlreadyClaimed)

	bal, err := svc.Balance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1100), bal)
	bal, err = svc.Balance(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal)

	games, err := svc.UserGames(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, guess.StatusClosed, games[0].Status)
	require.NotNil(t, games[0].TargetNumber)
	assert.Equal(t, 64, *games[0].TargetNumber)
}

// testTimeGates drives the service with a clock finer than any store keeps,
// so the gates must agree with the CreatedAt read back from the store.
func testTimeGates(t *testing.T, store guess.Store) {
	ctx := context.Background()
	mock := clock.NewMock()
	mock.Set(base.Add(900 * time.Microsecond))
	svc, err := guess.NewService(store, guess.WithClock(mock), guess.WithDraw(guess.FixedDraw(40)))
	require.NoError(t, err)

	for _, addr := range []guess.Address{"alice", "bob", "carol"} {
		_, err := svc.Deposit(ctx, addr, 100)
		require.NoError(t, err)
	}
	id, err := svc.CreateGame(ctx, "alice", 10, 10)
	require.NoError(t, err)

	round, err := svc.Round(ctx, id)
	require.NoError(t, err)
	assert.True(t, base.Equal(round.CreatedAt), "created at %s", round.CreatedAt)
	w := svc.Windows()
	assert.True(t, round.CreatedAt.Add(w.Join).Equal(round.JoinDeadline))

	mock.Set(round.JoinDeadline.Add(-100 * time.Microsecond))
	require.NoError(t, svc.JoinGame(ctx, "bob", id, 50, 10))

	mock.Set(round.JoinDeadline)
	assert.ErrorIs(t, svc.JoinGame(ctx, "carol", id, 60, 10), guess.ErrJoinWindowClosed)

	mock.Set(round.FinalizeAt.Add(-100 * time.Microsecond))
	_, err = svc.FinishGame(ctx, "bob", id)
	assert.ErrorIs(t, err, guess.ErrFinalizeTooEarly)

	mock.Set(round.FinalizeAt)
	target, err := svc.FinishGame(ctx, "bob", id)
	require.NoError(t, err)
	assert.Equal(t, 40, target)

	paid, err := svc.Claim(ctx, "bob", id)
	require.NoError(t, err)
	assert.Equal(t, int64(20), paid)
}
