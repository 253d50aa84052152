package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/susu3304/bidgame/internal/guess"
)

var errReadOnly = errors.New("sqlite: write in read-only transaction")

type sqlTx struct {
	tx       *sql.Tx
	readOnly bool
}

func (t *sqlTx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if t.readOnly {
		return nil, errReadOnly
	}
	return t.tx.ExecContext(ctx, query, args...)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr *msqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY
}

const roundColumns = `id, owner, stake, created_at, participant_limit, joiners, settled,
	target_number, pool, paid, winner_count`

type scanner interface {
	Scan(dest ...any) error
}

func scanRound(row scanner) (guess.Round, error) {
	var r guess.Round
	var id, createdAt int64
	var owner string
	err := row.Scan(&id, &owner, &r.Stake, &createdAt, &r.ParticipantLimit, &r.Joiners, &r.Settled,
		&r.TargetNumber, &r.Pool, &r.Paid, &r.WinnerCount)
	r.ID = guess.RoundID(id)
	r.Owner = guess.Address(owner)
	r.CreatedAt = fromMillis(createdAt)
	return r, err
}

func (t *sqlTx) queryRounds(ctx context.Context, query string, args ...any) ([]guess.Round, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
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

func (t *sqlTx) NextRoundID(ctx context.Context) (guess.RoundID, error) {
	var next int64
	err := t.tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id) + 1, 0) FROM rounds`).Scan(&next)
	return guess.RoundID(next), err
}

func (t *sqlTx) InsertRound(ctx context.Context, r guess.Round) error {
	_, err := t.exec(ctx, `INSERT INTO rounds (`+roundColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(r.ID), string(r.Owner), r.Stake, toMillis(r.CreatedAt), r.ParticipantLimit, r.Joiners, r.Settled,
		r.TargetNumber, r.Pool, r.Paid, r.WinnerCount)
	return err
}

func (t *sqlTx) Round(ctx context.Context, id guess.RoundID) (guess.Round, error) {
	r, err := scanRound(t.tx.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id = ?`, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return guess.Round{}, guess.ErrRoundNotFound
	}
	return r, err
}

func (t *sqlTx) UpdateRound(ctx context.Context, r guess.Round) error {
	res, err := t.exec(ctx, `
		UPDATE rounds
		SET participant_limit = ?, joiners = ?, settled = ?, target_number = ?, pool = ?, paid = ?, winner_count = ?
		WHERE id = ?
	`, r.ParticipantLimit, r.Joiners, r.Settled, r.TargetNumber, r.Pool, r.Paid, r.WinnerCount, int64(r.ID))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return guess.ErrRoundNotFound
	}
	return nil
}

func (t *sqlTx) RoundsCreatedAfter(ctx context.Context, after time.Time) ([]guess.Round, error) {
	return t.queryRounds(ctx, `SELECT `+roundColumns+` FROM rounds WHERE created_at > ? ORDER BY id`, toMillis(after))
}

func (t *sqlTx) UnsettledRounds(ctx context.Context) ([]guess.Round, error) {
	return t.queryRounds(ctx, `SELECT `+roundColumns+` FROM rounds WHERE settled = 0 ORDER BY id`)
}

const bidColumns = `round_id, bidder, guess, is_participant, is_winner, claimed`

func scanBid(row scanner) (guess.Bid, error) {
	var b guess.Bid
	var id int64
	var bidder string
	err := row.Scan(&id, &bidder, &b.Guess, &b.IsParticipant, &b.IsWinner, &b.Claimed)
	b.RoundID = guess.RoundID(id)
	b.Bidder = guess.Address(bidder)
	return b, err
}

func (t *sqlTx) queryBids(ctx context.Context, query string, args ...any) ([]guess.Bid, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
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

func (t *sqlTx) InsertBid(ctx context.Context, b guess.Bid) error {
	_, err := t.exec(ctx, `INSERT INTO bids (`+bidColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		int64(b.RoundID), string(b.Bidder), b.Guess, b.IsParticipant, b.IsWinner, b.Claimed)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return guess.ErrAlreadyJoined
	case isForeignKeyViolation(err):
		return guess.ErrRoundNotFound
	default:
		return err
	}
}

func (t *sqlTx) Bid(ctx context.Context, id guess.RoundID, bidder guess.Address) (guess.Bid, error) {
	b, err := scanBid(t.tx.QueryRowContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE round_id = ? AND bidder = ?`, int64(id), string(bidder)))
	if errors.Is(err, sql.ErrNoRows) {
		return guess.Bid{}, guess.ErrBidNotFound
	}
	return b, err
}

func (t *sqlTx) UpdateBid(ctx context.Context, b guess.Bid) error {
	res, err := t.exec(ctx, `
		UPDATE bids SET is_participant = ?, is_winner = ?, claimed = ?
		WHERE round_id = ? AND bidder = ?
	`, b.IsParticipant, b.IsWinner, b.Claimed, int64(b.RoundID), string(b.Bidder))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return guess.ErrBidNotFound
	}
	return nil
}

func (t *sqlTx) Bids(ctx context.Context, id guess.RoundID) ([]guess.Bid, error) {
	if _, err := t.Round(ctx, id); err != nil {
		return nil, err
	}
	return t.queryBids(ctx, `SELECT `+bidColumns+` FROM bids WHERE round_id = ? ORDER BY seq`, int64(id))
}

func (t *sqlTx) BidsByBidder(ctx context.Context, bidder guess.Address) ([]guess.Bid, error) {
	return t.queryBids(ctx, `SELECT `+bidColumns+` FROM bids WHERE bidder = ? ORDER BY round_id`, string(bidder))
}

func (t *sqlTx) Balance(ctx context.Context, addr guess.Address) (int64, error) {
	var balance int64
	err := t.tx.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE address = ?`, string(addr)).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

func (t *sqlTx) AddBalance(ctx context.Context, addr guess.Address, delta int64) error {
	balance, err := t.Balance(ctx, addr)
	if err != nil {
		return err
	}
	if balance+delta < 0 {
		return guess.ErrInsufficientFunds
	}
	_, err = t.exec(ctx, `
		INSERT INTO wallets (address, balance) VALUES (?, ?)
		ON CONFLICT (address) DO UPDATE SET balance = excluded.balance
	`, string(addr), balance+delta)
	return err
}

func (t *sqlTx) AppendEvent(ctx context.Context, e guess.Event) (guess.Event, error) {
	res, err := t.exec(ctx, `INSERT INTO events (id, type, round_id, bidder, guess, at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID.String(), string(e.Type), int64(e.RoundID), string(e.Bidder), e.Guess, toMillis(e.At))
	if err != nil {
		return guess.Event{}, err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return guess.Event{}, err
	}
	e.Seq = uint64(seq)
	return e, nil
}

func (t *sqlTx) LastEventSeq(ctx context.Context) (uint64, error) {
	var seq int64
	err := t.tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&seq)
	return uint64(seq), err
}

func (t *sqlTx) Events(ctx context.Context, after uint64, limit int) ([]guess.Event, error) {
	if limit <= 0 {
		limit = guess.DefaultEventPage
	}
	rows, err := t.tx.QueryContext(ctx,
		`SELECT seq, id, type, round_id, bidder, guess, at FROM events WHERE seq > ? ORDER BY seq LIMIT ?`,
		int64(after), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []guess.Event
	for rows.Next() {
		var e guess.Event
		var seq, roundID, at int64
		var id, typ, bidder string
		if err := rows.Scan(&seq, &id, &typ, &roundID, &bidder, &e.Guess, &at); err != nil {
			return nil, err
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("event %d: %w", seq, err)
		}
		e.Seq = uint64(seq)
		e.Type = guess.EventType(typ)
		e.RoundID = guess.RoundID(roundID)
		e.Bidder = guess.Address(bidder)
		e.At = fromMillis(at)
		out = append(out, e)
	}
	return out, rows.Err()
}
