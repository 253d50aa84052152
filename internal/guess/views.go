package guess

import (
	"context"
)

// ActualGames lists rounds whose join window is still open, oldest first.
func (s *Service) ActualGames(ctx context.Context) ([]RoundSummary, error) {
	now := s.now()
	var out []RoundSummary
	err := s.store.View(ctx, func(tx Tx) error {
		rounds, err := tx.RoundsCreatedAfter(ctx, now.Add(-s.windows.Join))
		if err != nil {
			return err
		}
		for _, r := range rounds {
			if s.windows.JoinOpen(r.CreatedAt, now) {
				out = append(out, summarize(r, s.windows))
			}
		}
		return nil
	})
	return out, err
}

// UnsettledRounds lists every round still waiting for FinishGame.
func (s *Service) UnsettledRounds(ctx context.Context) ([]RoundSummary, error) {
	var out []RoundSummary
	err := s.store.View(ctx, func(tx Tx) error {
		rounds, err := tx.UnsettledRounds(ctx)
		if err != nil {
			return err
		}
		for _, r := range rounds {
			out = append(out, summarize(r, s.windows))
		}
		return nil
	})
	return out, err
}

// UserGames lists every round addr bid in with its derived status.
func (s *Service) UserGames(ctx context.Context, addr Address) ([]UserRound, error) {
	now := s.now()
	var out []UserRound
	err := s.store.View(ctx, func(tx Tx) error {
		bids, err := tx.BidsByBidder(ctx, addr)
		if err != nil {
			return err
		}
		for _, b := range bids {
			r, err := tx.Round(ctx, b.RoundID)
			if err != nil {
				return err
			}
			out = append(out, UserRound{
				RoundSummary: summarize(r, s.windows),
				Guess:        b.Guess,
				Winner:       b.IsWinner,
				Claimed:      b.Claimed,
				Status:       s.windows.UserStatus(r, b, now),
			})
		}
		return nil
	})
	return out, err
}

func (s *Service) Round(ctx context.Context, id RoundID) (RoundSummary, error) {
	var out RoundSummary
	err := s.store.View(ctx, func(tx Tx) error {
		r, err := tx.Round(ctx, id)
		if err != nil {
			return err
		}
		out = summarize(r, s.windows)
		return nil
	})
	return out, err
}

// Bids lists a round's bids, owner first. Guesses are public.
func (s *Service) Bids(ctx context.Context, id RoundID) ([]Bid, error) {
	var out []Bid
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		out, err = tx.Bids(ctx, id)
		return err
	})
	return out, err
}

func (s *Service) Balance(ctx context.Context, addr Address) (int64, error) {
	var out int64
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		out, err = tx.Balance(ctx, addr)
		return err
	})
	return out, err
}

// Events lists up to limit events after the given sequence.
func (s *Service) Events(ctx context.Context, after uint64, limit int) ([]Event, error) {
	var out []Event
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		out, err = tx.Events(ctx, after, limit)
		return err
	})
	return out, err
}
