package guess

import (
	"context"
	"time"
)

// DefaultEventPage applies when Events is called with a non-positive limit.
const DefaultEventPage = 100

// Store persists rounds, bids, wallets and the event log.
type Store interface {
	// Update runs fn in a read-write transaction. If fn returns an error,
	// none of its writes are kept.
	Update(ctx context.Context, fn func(Tx) error) error
	// View runs fn in a transaction that must not write.
	View(ctx context.Context, fn func(Tx) error) error
}

// Tx is the data access surface available inside a transaction.
type Tx interface {
	// NextRoundID returns the id the next inserted round must use.
	NextRoundID(ctx context.Context) (RoundID, error)
	InsertRound(ctx context.Context, r Round) error
	// Round returns ErrRoundNotFound for unknown ids.
	Round(ctx context.Context, id RoundID) (Round, error)
	UpdateRound(ctx context.Context, r Round) error
	// RoundsCreatedAfter lists rounds with CreatedAt strictly after t, by id.
	RoundsCreatedAfter(ctx context.Context, t time.Time) ([]Round, error)
	// UnsettledRounds lists rounds not yet settled, by id.
	UnsettledRounds(ctx context.Context) ([]Round, error)

	// InsertBid returns ErrAlreadyJoined if the bidder already has a bid in the round.
	InsertBid(ctx context.Context, b Bid) error
	// Bid returns ErrBidNotFound if the address has no bid in the round.
	Bid(ctx context.Context, id RoundID, bidder Address) (Bid, error)
	UpdateBid(ctx context.Context, b Bid) error
	// Bids lists a round's bids in insertion order, owner first.
	Bids(ctx context.Context, id RoundID) ([]Bid, error)
	// BidsByBidder lists every bid of an address ordered by round id.
	BidsByBidder(ctx context.Context, bidder Address) ([]Bid, error)

	// Balance is 0 for unknown addresses.
	Balance(ctx context.Context, addr Address) (int64, error)
	// AddBalance applies delta and returns ErrInsufficientFunds if the
	// result would be negative.
	AddBalance(ctx context.Context, addr Address, delta int64) error

	// AppendEvent assigns the next sequence number and stores the event.
	AppendEvent(ctx context.Context, e Event) (Event, error)
	// LastEventSeq is 0 when the log is empty.
	LastEventSeq(ctx context.Context) (uint64, error)
	// Events lists up to limit events with Seq > after, in order.
	Events(ctx context.Context, after uint64, limit int) ([]Event, error)
}
