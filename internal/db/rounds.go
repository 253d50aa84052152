package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/susu3304/bidgame/internal/guess"
)

type pgTx struct {
	tx       pgx.Tx
	writable bool
}

const roundColumns = `id, owner, stake, created_at, participant_limit, joiners, settled,
	target_number, pool, paid, winner_count`

func scanRound(row pgx.Row) (guess.Round, error) {
	var r guess.Round
	var id int64
	var owner string
	err := row.Scan(&id, &owner, &r.Stake, &r.CreatedAt, &r.ParticipantLimit, &r.Joiners, &r.Settled,
		&r.TargetNumber, &r.Pool, &r.Paid, &r.WinnerCount)
	r.ID = guess.RoundID(id)
	r.Owner = guess.Address(owner)
	return r, err
}

func collectRounds(rows pgx.Rows) ([]guess.Round, error) {
	defer rows.Close()
	var out []guess.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *pgTx) NextRoundID(ctx context.Context) (guess.RoundID, error) {
	var next int64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(MAX(id) + 1, 0) FROM rounds`).Scan(&next)
	return guess.RoundID(next), err
}

func (t *pgTx) InsertRound(ctx context.Context, r guess.Round) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO rounds (`+roundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, int64(r.ID), string(r.Owner), r.Stake, r.CreatedAt, r.ParticipantLimit, r.Joiners, r.Settled,
		r.TargetNumber, r.Pool, r.Paid, r.WinnerCount)
	return err
}

// Round locks the row in read-write transactions.
func (t *pgTx) Round(ctx context.Context, id guess.RoundID) (guess.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE id = $1`
	if t.writable {
		query += ` FOR UPDATE`
	}
	r, err := scanRound(t.tx.QueryRow(ctx, query, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return guess.Round{}, guess.ErrRoundNotFound
	}
	return r, err
}

func (t *pgTx) UpdateRound(ctx context.Context, r guess.Round) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE rounds
		SET participant_limit = $2, joiners = $3, settled = $4, target_number = $5,
		    pool = $6, paid = $7, winner_count = $8
		WHERE id = $1
	`, int64(r.ID), r.ParticipantLimit, r.Joiners, r.Settled, r.TargetNumber, r.Pool, r.Paid, r.WinnerCount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return guess.ErrRoundNotFound
	}
	return nil
}

func (t *pgTx) RoundsCreatedAfter(ctx context.Context, after time.Time) ([]guess.Round, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+roundColumns+` FROM rounds WHERE created_at > $1 ORDER BY id`, after)
	if err != nil {
		return nil, err
	}
	return collectRounds(rows)
}

func (t *pgTx) UnsettledRounds(ctx context.Context) ([]guess.Round, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+roundColumns+` FROM rounds WHERE NOT settled ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectRounds(rows)
}

const bidColumns = `round_id, bidder, guess, is_participant, is_winner, claimed`

func scanBid(row pgx.Row) (guess.Bid, error) {
	var b guess.Bid
	var id int64
	var bidder string
	err := row.Scan(&id, &bidder, &b.Guess, &b.IsParticipant, &b.IsWinner, &b.Claimed)
	b.RoundID = guess.RoundID(id)
	b.Bidder = guess.Address(bidder)
	return b, err
}

func collectBids(rows pgx.Rows) ([]guess.Bid, error) {
	defer rows.Close()
	var out []guess.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertBid(ctx context.Context, b guess.Bid) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bids (`+bidColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, int64(b.RoundID), string(b.Bidder), b.Guess, b.IsParticipant, b.IsWinner, b.Claimed)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return guess.ErrAlreadyJoined
			case "23503":
				return guess.ErrRoundNotFound
			}
		}
		return err
	}
	return nil
}

func (t *pgTx) Bid(ctx context.Context, id guess.RoundID, bidder guess.Address) (guess.Bid, error) {
	b, err := scanBid(t.tx.QueryRow(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE round_id = $1 AND bidder = $2`, int64(id), string(bidder)))
	if errors.Is(err, pgx.ErrNoRows) {
		return guess.Bid{}, guess.ErrBidNotFound
	}
	return b, err
}

func (t *pgTx) UpdateBid(ctx context.Context, b guess.Bid) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bids SET is_participant = $3, is_winner = $4, claimed = $5
		WHERE round_id = $1 AND bidder = $2
	`, int64(b.RoundID), string(b.Bidder), b.IsParticipant, b.IsWinner, b.Claimed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return guess.ErrBidNotFound
	}
	return nil
}

func (t *pgTx) Bids(ctx context.Context, id guess.RoundID) ([]guess.Bid, error) {
	if _, err := t.Round(ctx, id); err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, `SELECT `+bidColumns+` FROM bids WHERE round_id = $1 ORDER BY seq`, int64(id))
	if err != nil {
		return nil, err
	}
	return collectBids(rows)
}

func (t *pgTx) BidsByBidder(ctx context.Context, bidder guess.Address) ([]guess.Bid, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+bidColumns+` FROM bids WHERE bidder = $1 ORDER BY round_id`, string(bidder))
	if err != nil {
		return nil, err
	}
	return collectBids(rows)
}

func (t *pgTx) Balance(ctx context.Context, addr guess.Address) (int64, error) {
	var balance int64
	err := t.tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE address = $1`, string(addr)).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

func (t *pgTx) AddBalance(ctx context.Context, addr guess.Address, delta int64) error {
	var balance int64
	err := t.tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE address = $1 FOR UPDATE`, string(addr)).Scan(&balance)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if balance+delta < 0 {
		return guess.ErrInsufficientFunds
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO wallets (address, balance) VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET balance = EXCLUDED.balance
	`, string(addr), balance+delta)
	return err
}

const eventColumns = `seq, id, type, round_id, bidder, guess, at`

func (t *pgTx) AppendEvent(ctx context.Context, e guess.Event) (guess.Event, error) {
	var seq int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO events (id, type, round_id, bidder, guess, at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`, e.ID.String(), string(e.Type), int64(e.RoundID), string(e.Bidder), e.Guess, e.At).Scan(&seq)
	if err != nil {
		return guess.Event{}, err
	}
	e.Seq = uint64(seq)
	return e, nil
}

func (t *pgTx) LastEventSeq(ctx context.Context) (uint64, error) {
	var seq int64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&seq)
	return uint64(seq), err
}

func (t *pgTx) Events(ctx context.Context, after uint64, limit int) ([]guess.Event, error) {
	if limit <= 0 {
		limit = guess.DefaultEventPage
	}
	rows, err := t.tx.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE seq > $1 ORDER BY seq LIMIT $2`,
		int64(after), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []guess.Event
	for rows.Next() {
		var e guess.Event
		var seq, roundID int64
		var id, typ, bidder string
		if err := rows.Scan(&seq, &id, &typ, &roundID, &bidder, &e.Guess, &e.At); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", seq, err)
		}
		e.ID = parsed
		e.Seq = uint64(seq)
		e.Type = guess.EventType(typ)
		e.RoundID = guess.RoundID(roundID)
		e.Bidder = guess.Address(bidder)
		out = append(out, e)
	}
	return out, rows.Err()
}
