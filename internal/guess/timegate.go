package guess

import (
	"fmt"
	"time"
)

const (
	DefaultJoinWindow     = 5 * time.Minute
	DefaultFinalizeWindow = 10 * time.Minute
)

// Windows are measured from a round's creation time.
type Windows struct {
	Join     time.Duration
	Finalize time.Duration
}

func DefaultWindows() Windows {
	return Windows{Join: DefaultJoinWindow, Finalize: DefaultFinalizeWindow}
}

func (w Windows) Validate() error {
	if w.Join <= 0 {
		return fmt.Errorf("join window must be positive, got %s", w.Join)
	}
	if w.Finalize <= w.Join {
		return fmt.Errorf("finalize window (%s) must be longer than join window (%s)", w.Finalize, w.Join)
	}
	return nil
}

// JoinOpen holds strictly before createdAt + Join.
func (w Windows) JoinOpen(createdAt, now time.Time) bool {
	return now.Before(createdAt.Add(w.Join))
}

// FinalizeEligible holds from createdAt + Finalize onwards.
func (w Windows) FinalizeEligible(createdAt, now time.Time) bool {
	return !now.Before(createdAt.Add(w.Finalize))
}

// Status is the per-user view of a round.
type Status int

const (
	StatusInProgress         Status = 0
	StatusFinalizedUnclaimed Status = 1
	StatusReadyToFinalize    Status = 2
	StatusClosed             Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusFinalizedUnclaimed:
		return "finalized_unclaimed"
	case StatusReadyToFinalize:
		return "ready_to_finalize"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// UserStatus derives the status of round r for the owner of bid b.
func (w Windows) UserStatus(r Round, b Bid, now time.Time) Status {
	if !r.Settled {
		if w.JoinOpen(r.CreatedAt, now) {
			return StatusInProgress
		}
		return StatusReadyToFinalize
	}
	if b.IsWinner && !b.Claimed {
		return StatusFinalizedUnclaimed
	}
	return StatusClosed
}
