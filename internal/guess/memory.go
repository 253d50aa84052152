package guess

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

type bidKey struct {
	round  RoundID
	bidder Address
}

// MemoryStore keeps everything in process memory. Rounds are indexed by id,
// bids by (round, bidder). Writes made inside Update are buffered and only
// applied when the callback succeeds.
type MemoryStore struct {
	mu       sync.RWMutex
	rounds   []Round
	bids     map[bidKey]Bid
	order    map[RoundID][]Address
	byBidder map[Address][]RoundID
	wallets  map[Address]int64
	events   []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bids:     make(map[bidKey]Bid),
		order:    make(map[RoundID][]Address),
		byBidder: make(map[Address][]RoundID),
		wallets:  make(map[Address]int64),
	}
}

func (s *MemoryStore) Update(ctx context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newMemTx(s, true)
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(newMemTx(s, false))
}

var errReadOnly = errors.New("memory store: write in read-only transaction")

type memTx struct {
	s        *MemoryStore
	writable bool

	rounds    map[RoundID]Round
	newRounds int
	bids      map[bidKey]Bid
	newBids   []bidKey
	wallets   map[Address]int64
	events    []Event
}

func newMemTx(s *MemoryStore, writable bool) *memTx {
	return &memTx{
		s:        s,
		writable: writable,
		rounds:   make(map[RoundID]Round),
		bids:     make(map[bidKey]Bid),
		wallets:  make(map[Address]int64),
	}
}

func (tx *memTx) commit() {
	s := tx.s
	for i := 0; i < tx.newRounds; i++ {
		s.rounds = append(s.rounds, Round{})
	}
	for id, r := range tx.rounds {
		s.rounds[id] = r
	}
	for _, k := range tx.newBids {
		s.order[k.round] = append(s.order[k.round], k.bidder)
		s.byBidder[k.bidder] = append(s.byBidder[k.bidder], k.round)
	}
	for k, b := range tx.bids {
		s.bids[k] = b
	}
	for addr, bal := range tx.wallets {
		s.wallets[addr] = bal
	}
	s.events = append(s.events, tx.events...)
}

func (tx *memTx) NextRoundID(ctx context.Context) (RoundID, error) {
	return RoundID(len(tx.s.rounds) + tx.newRounds), nil
}

func (tx *memTx) InsertRound(ctx context.Context, r Round) error {
	if !tx.writable {
		return errReadOnly
	}
	next, _ := tx.NextRoundID(ctx)
	if r.ID != next {
		return errors.New("memory store: round ids must be sequential")
	}
	tx.rounds[r.ID] = r
	tx.newRounds++
	return nil
}

func (tx *memTx) Round(ctx context.Context, id RoundID) (Round, error) {
	if r, ok := tx.rounds[id]; ok {
		return r, nil
	}
	if id < 0 || int(id) >= len(tx.s.rounds) {
		return Round{}, ErrRoundNotFound
	}
	return tx.s.rounds[id], nil
}

func (tx *memTx) UpdateRound(ctx context.Context, r Round) error {
	if !tx.writable {
		return errReadOnly
	}
	if _, err := tx.Round(ctx, r.ID); err != nil {
		return err
	}
	tx.rounds[r.ID] = r
	return nil
}

func (tx *memTx) allRounds() []Round {
	total := len(tx.s.rounds) + tx.newRounds
	out := make([]Round, 0, total)
	for id := 0; id < total; id++ {
		r, _ := tx.Round(context.Background(), RoundID(id))
		out = append(out, r)
	}
	return out
}

func (tx *memTx) RoundsCreatedAfter(ctx context.Context, t time.Time) ([]Round, error) {
	var out []Round
	for _, r := range tx.allRounds() {
		if r.CreatedAt.After(t) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (tx *memTx) UnsettledRounds(ctx context.Context) ([]Round, error) {
	var out []Round
	for _, r := range tx.allRounds() {
		if !r.Settled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (tx *memTx) InsertBid(ctx context.Context, b Bid) error {
	if !tx.writable {
		return errReadOnly
	}
	if _, err := tx.Round(ctx, b.RoundID); err != nil {
		return err
	}
	if _, err := tx.Bid(ctx, b.RoundID, b.Bidder); err == nil {
		return ErrAlreadyJoined
	}
	k := bidKey{b.RoundID, b.Bidder}
	tx.bids[k] = b
	tx.newBids = append(tx.newBids, k)
	return nil
}

func (tx *memTx) Bid(ctx context.Context, id RoundID, bidder Address) (Bid, error) {
	k := bidKey{id, bidder}
	if b, ok := tx.bids[k]; ok {
		return b, nil
	}
	if b, ok := tx.s.bids[k]; ok {
		return b, nil
	}
	return Bid{}, ErrBidNotFound
}

func (tx *memTx) UpdateBid(ctx context.Context, b Bid) error {
	if !tx.writable {
		return errReadOnly
	}
	if _, err := tx.Bid(ctx, b.RoundID, b.Bidder); err != nil {
		return err
	}
	tx.bids[bidKey{b.RoundID, b.Bidder}] = b
	return nil
}

func (tx *memTx) Bids(ctx context.Context, id RoundID) ([]Bid, error) {
	if _, err := tx.Round(ctx, id); err != nil {
		return nil, err
	}
	addrs := append([]Address(nil), tx.s.order[id]...)
	for _, k := range tx.newBids {
		if k.round == id {
			addrs = append(addrs, k.bidder)
		}
	}
	out := make([]Bid, 0, len(addrs))
	for _, a := range addrs {
		b, err := tx.Bid(ctx, id, a)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (tx *memTx) BidsByBidder(ctx context.Context, bidder Address) ([]Bid, error) {
	ids := append([]RoundID(nil), tx.s.byBidder[bidder]...)
	for _, k := range tx.newBids {
		if k.bidder == bidder {
			ids = append(ids, k.round)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Bid, 0, len(ids))
	for _, id := range ids {
		b, err := tx.Bid(ctx, id, bidder)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (tx *memTx) Balance(ctx context.Context, addr Address) (int64, error) {
	if bal, ok := tx.wallets[addr]; ok {
		return bal, nil
	}
	return tx.s.wallets[addr], nil
}

func (tx *memTx) AddBalance(ctx context.Context, addr Address, delta int64) error {
	if !tx.writable {
		return errReadOnly
	}
	bal, _ := tx.Balance(ctx, addr)
	if bal+delta < 0 {
		return ErrInsufficientFunds
	}
	tx.wallets[addr] = bal + delta
	return nil
}

func (tx *memTx) LastEventSeq(ctx context.Context) (uint64, error) {
	if n := len(tx.events); n > 0 {
		return tx.events[n-1].Seq, nil
	}
	if n := len(tx.s.events); n > 0 {
		return tx.s.events[n-1].Seq, nil
	}
	return 0, nil
}

func (tx *memTx) AppendEvent(ctx context.Context, e Event) (Event, error) {
	if !tx.writable {
		return Event{}, errReadOnly
	}
	last, _ := tx.LastEventSeq(ctx)
	e.Seq = last + 1
	tx.events = append(tx.events, e)
	return e, nil
}

func (tx *memTx) Events(ctx context.Context, after uint64, limit int) ([]Event, error) {
	all := append(append([]Event(nil), tx.s.events...), tx.events...)
	i := sort.Search(len(all), func(i int) bool { return all[i].Seq > after })
	all = all[i:]
	if limit <= 0 {
		limit = DefaultEventPage
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
