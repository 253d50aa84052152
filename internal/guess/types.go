package guess

import (
	"time"

	"github.com/google/uuid"
)

// Guesses and drawn targets live in [MinGuess, MaxGuess].
const (
	MinGuess = 0
	MaxGuess = 100
)

// Address identifies a bidder. Front-ends use the Discord user id.
type Address string

// RoundID is assigned sequentially starting at 0.
type RoundID int64

// Round is one auction. Pool only grows; claimed shares accumulate in Paid.
type Round struct {
	ID               RoundID
	Owner            Address
	Stake            int64
	CreatedAt        time.Time
	ParticipantLimit int
	Joiners          int
	Settled          bool
	TargetNumber     int
	Pool             int64
	Paid             int64
	WinnerCount      int
}

// Bidders counts the owner plus every joiner.
func (r Round) Bidders() int {
	return r.Joiners + 1
}

// Escrow is what the round still holds.
func (r Round) Escrow() int64 {
	return r.Pool - r.Paid
}

type Bid struct {
	RoundID       RoundID
	Bidder        Address
	Guess         int
	IsParticipant bool
	IsWinner      bool
	Claimed       bool
}

type EventType string

const (
	EventRoundCreated      EventType = "RoundCreated"
	EventParticipantJoined EventType = "ParticipantJoined"
	EventGameFinished      EventType = "GameFinished"
)

// Event is an append-only notification. Seq is assigned by the store.
// For GameFinished, Guess carries the drawn target.
type Event struct {
	ID      uuid.UUID `json:"id"`
	Seq     uint64    `json:"seq"`
	Type    EventType `json:"type"`
	RoundID RoundID   `json:"round_id"`
	Bidder  Address   `json:"bidder,omitempty"`
	Guess   int       `json:"guess"`
	At      time.Time `json:"at"`
}

// EventSink receives events after the transaction that produced them commits.
type EventSink interface {
	Publish(Event)
}

type RoundSummary struct {
	ID               RoundID   `json:"id"`
	Owner            Address   `json:"owner"`
	Stake            int64     `json:"stake"`
	Pool             int64     `json:"pool"`
	Paid             int64     `json:"paid"`
	Participants     int       `json:"participants"`
	ParticipantLimit int       `json:"participant_limit"`
	CreatedAt        time.Time `json:"created_at"`
	JoinDeadline     time.Time `json:"join_deadline"`
	FinalizeAt       time.Time `json:"finalize_at"`
	Settled          bool      `json:"settled"`
	TargetNumber     *int      `json:"target_number,omitempty"`
	WinnerCount      int       `json:"winner_count"`
}

type UserRound struct {
	RoundSummary
	Guess   int    `json:"guess"`
	Winner  bool   `json:"winner"`
	Claimed bool   `json:"claimed"`
	Status  Status `json:"status"`
}

func summarize(r Round, w Windows) RoundSummary {
	s := RoundSummary{
		ID:               r.ID,
		Owner:            r.Owner,
		Stake:            r.Stake,
		Pool:             r.Pool,
		Paid:             r.Paid,
		Participants:     r.Bidders(),
		ParticipantLimit: r.ParticipantLimit,
		CreatedAt:        r.CreatedAt,
		JoinDeadline:     r.CreatedAt.Add(w.Join),
		FinalizeAt:       r.CreatedAt.Add(w.Finalize),
		Settled:          r.Settled,
		WinnerCount:      r.WinnerCount,
	}
	if r.Settled {
		target := r.TargetNumber
		s.TargetNumber = &target
	}
	return s
}
