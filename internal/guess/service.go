package guess

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	metrics "github.com/rcrowley/go-metrics"
)

// Service runs the round lifecycle: registry, settlement, claims and views.
// Mutating operations are serialised and each runs in one store transaction.
type Service struct {
	mu      sync.Mutex
	store   Store
	clock   clock.Clock
	windows Windows
	draw    RandomDraw
	sink    EventSink
	metrics *Metrics
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithWindows(w Windows) Option {
	return func(s *Service) { s.windows = w }
}

func WithDraw(d RandomDraw) Option {
	return func(s *Service) { s.draw = d }
}

func WithEventSink(sink EventSink) Option {
	return func(s *Service) { s.sink = sink }
}

func WithMetricsRegistry(r metrics.Registry) Option {
	return func(s *Service) { s.metrics = NewMetrics(r) }
}

func NewService(store Store, opts ...Option) (*Service, error) {
	s := &Service{
		store:   store,
		clock:   clock.New(),
		windows: DefaultWindows(),
		draw:    KeccakDraw{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.windows.Validate(); err != nil {
		return nil, err
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s, nil
}

// storePrecision is the coarsest timestamp resolution among the backends.
const storePrecision = time.Millisecond

// now is the clock reading at the resolution every store can round-trip, so
// time gates agree with the CreatedAt the store hands back.
func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(storePrecision)
}

func (s *Service) Windows() Windows {
	return s.windows
}

func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// SetEventSink replaces the sink. Front-ends that are built after the
// service (the bot) register themselves here.
func (s *Service) SetEventSink(sink EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

func (s *Service) update(ctx context.Context, op string, fn func(Tx) error) error {
	err := s.store.Update(ctx, fn)
	s.metrics.observe(op, err)
	return err
}

func (s *Service) publish(events []Event) {
	if s.sink == nil {
		return
	}
	for _, e := range events {
		s.sink.Publish(e)
	}
}

func newEvent(t EventType, id RoundID, bidder Address, guess int) Event {
	return Event{ID: uuid.New(), Type: t, RoundID: id, Bidder: bidder, Guess: guess}
}

// CreateGame opens a round owned by caller and escrows its stake.
func (s *Service) CreateGame(ctx context.Context, caller Address, guess int, stake int64) (RoundID, error) {
	if caller == "" {
		s.metrics.observe("create", ErrAnonymousCaller)
		return 0, ErrAnonymousCaller
	}
	if stake <= 0 {
		s.metrics.observe("create", ErrInvalidStake)
		return 0, ErrInvalidStake
	}
	if !ValidGuess(guess) {
		s.metrics.observe("create", ErrInvalidGuess)
		return 0, ErrInvalidGuess
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var id RoundID
	var events []Event
	err := s.update(ctx, "create", func(tx Tx) error {
		var err error
		if id, err = tx.NextRoundID(ctx); err != nil {
			return fmt.Errorf("next round id: %w", err)
		}
		if err := tx.AddBalance(ctx, caller, -stake); err != nil {
			return err
		}
		round := Round{
			ID:        id,
			Owner:     caller,
			Stake:     stake,
			CreatedAt: now,
			Pool:      stake,
		}
		if err := tx.InsertRound(ctx, round); err != nil {
			return fmt.Errorf("insert round: %w", err)
		}
		bid := Bid{RoundID: id, Bidder: caller, Guess: guess, IsParticipant: true}
		if err := tx.InsertBid(ctx, bid); err != nil {
			return fmt.Errorf("insert owner bid: %w", err)
		}
		e := newEvent(EventRoundCreated, id, caller, guess)
		e.At = now
		e, err = tx.AppendEvent(ctx, e)
		if err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		events = []Event{e}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.metrics.deposit(stake)
	s.publish(events)
	return id, nil
}

// JoinGame adds caller to an open round with a matching stake.
func (s *Service) JoinGame(ctx context.Context, caller Address, id RoundID, guess int, stake int64) error {
	if caller == "" {
		s.metrics.observe("join", ErrAnonymousCaller)
		return ErrAnonymousCaller
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var events []Event
	err := s.update(ctx, "join", func(tx Tx) error {
		round, err := tx.Round(ctx, id)
		if err != nil {
			return err
		}
		if !s.windows.JoinOpen(round.CreatedAt, now) {
			return ErrJoinWindowClosed
		}
		if caller == round.Owner {
			return ErrDuplicateOwnerJoin
		}
		if _, err := tx.Bid(ctx, id, caller); err == nil {
			return ErrAlreadyJoined
		} else if !errors.Is(err, ErrBidNotFound) {
			return err
		}
		if stake != round.Stake {
			return ErrStakeMismatch
		}
		if round.ParticipantLimit > 0 && round.Bidders() >= round.ParticipantLimit {
			return ErrParticipantLimitReached
		}
		if !ValidGuess(guess) {
			return ErrInvalidGuess
		}
		if err := tx.AddBalance(ctx, caller, -stake); err != nil {
			return err
		}
		if err := tx.InsertBid(ctx, Bid{RoundID: id, Bidder: caller, Guess: guess, IsParticipant: true}); err != nil {
			return err
		}
		round.Pool += stake
		round.Joiners++
		if err := tx.UpdateRound(ctx, round); err != nil {
			return fmt.Errorf("update round: %w", err)
		}
		e := newEvent(EventParticipantJoined, id, caller, guess)
		e.At = now
		e, err = tx.AppendEvent(ctx, e)
		if err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		events = []Event{e}
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.deposit(stake)
	s.publish(events)
	return nil
}

// LimitParticipants caps the number of bidders, owner included. Zero lifts the cap.
func (s *Service) LimitParticipants(ctx context.Context, caller Address, id RoundID, limit int) error {
	if limit < 0 {
		return ErrInvalidLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	return s.update(ctx, "limit", func(tx Tx) error {
		round, err := tx.Round(ctx, id)
		if err != nil {
			return err
		}
		if caller != round.Owner {
			return ErrNotOwner
		}
		if !s.windows.JoinOpen(round.CreatedAt, now) {
			return ErrJoinWindowClosed
		}
		if limit > 0 && limit < round.Bidders() {
			return ErrLimitBelowCurrent
		}
		round.ParticipantLimit = limit
		return tx.UpdateRound(ctx, round)
	})
}

// FinishGame draws the target and marks the closest bidders as winners.
// No funds move until the winners claim.
func (s *Service) FinishGame(ctx context.Context, caller Address, id RoundID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var target int
	var events []Event
	err := s.update(ctx, "finish", func(tx Tx) error {
		round, err := tx.Round(ctx, id)
		if err != nil {
			return err
		}
		if round.Settled {
			return ErrAlreadySettled
		}
		if !s.windows.FinalizeEligible(round.CreatedAt, now) {
			return ErrFinalizeTooEarly
		}
		if _, err := tx.Bid(ctx, id, caller); errors.Is(err, ErrBidNotFound) {
			return ErrNotAParticipant
		} else if err != nil {
			return err
		}

		seq, err := tx.LastEventSeq(ctx)
		if err != nil {
			return fmt.Errorf("last event seq: %w", err)
		}
		target = s.draw.Draw(Entropy{Timestamp: now.Unix(), Sequence: seq, Caller: caller})
		if !ValidGuess(target) {
			return fmt.Errorf("draw returned %d outside [%d, %d]", target, MinGuess, MaxGuess)
		}

		bids, err := tx.Bids(ctx, id)
		if err != nil {
			return fmt.Errorf("list bids: %w", err)
		}
		winners := SelectWinners(bids, target)
		for _, i := range winners {
			bids[i].IsWinner = true
			if err := tx.UpdateBid(ctx, bids[i]); err != nil {
				return fmt.Errorf("mark winner: %w", err)
			}
		}

		round.Settled = true
		round.TargetNumber = target
		round.WinnerCount = len(winners)
		if err := tx.UpdateRound(ctx, round); err != nil {
			return fmt.Errorf("update round: %w", err)
		}
		e := newEvent(EventGameFinished, id, "", target)
		e.At = now
		e, err = tx.AppendEvent(ctx, e)
		if err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		events = []Event{e}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.publish(events)
	return target, nil
}

// Claim pays caller's share of a settled round exactly once.
func (s *Service) Claim(ctx context.Context, caller Address, id RoundID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var share int64
	err := s.update(ctx, "claim", func(tx Tx) error {
		round, err := tx.Round(ctx, id)
		if err != nil {
			return err
		}
		if !round.Settled {
			return ErrNotSettled
		}
		bid, err := tx.Bid(ctx, id, caller)
		if errors.Is(err, ErrBidNotFound) {
			return ErrNotAWinner
		} else if err != nil {
			return err
		}
		if !bid.IsWinner {
			return ErrNotAWinner
		}
		if bid.Claimed {
			return ErrAlreadyClaimed
		}

		share = Share(round.Pool, round.WinnerCount)
		if round.Paid+share > round.Pool {
			return fmt.Errorf("round %d: payout %d exceeds escrow %d", id, share, round.Escrow())
		}
		bid.Claimed = true
		if err := tx.UpdateBid(ctx, bid); err != nil {
			return fmt.Errorf("mark claimed: %w", err)
		}
		round.Paid += share
		if err := tx.UpdateRound(ctx, round); err != nil {
			return fmt.Errorf("update round: %w", err)
		}
		return tx.AddBalance(ctx, caller, share)
	})
	if err != nil {
		return 0, err
	}
	s.metrics.payout(share)
	return share, nil
}

// GenerateRandom previews the draw FinishGame would make right now for
// caller. It has no side effects.
func (s *Service) GenerateRandom(ctx context.Context, caller Address) (int, error) {
	var seq uint64
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		seq, err = tx.LastEventSeq(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	return s.draw.Draw(Entropy{Timestamp: s.now().Unix(), Sequence: seq, Caller: caller}), nil
}

// Deposit credits a wallet.
func (s *Service) Deposit(ctx context.Context, addr Address, amount int64) (int64, error) {
	if addr == "" {
		return 0, ErrAnonymousCaller
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var balance int64
	err := s.update(ctx, "deposit", func(tx Tx) error {
		if err := tx.AddBalance(ctx, addr, amount); err != nil {
			return err
		}
		var err error
		balance, err = tx.Balance(ctx, addr)
		return err
	})
	return balance, err
}
