package guess

import "errors"

var (
	ErrAnonymousCaller         = errors.New("caller address is required")
	ErrInvalidStake            = errors.New("free games are not supported")
	ErrInvalidGuess            = errors.New("choose a number between 0 and 100")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrRoundNotFound           = errors.New("round not found")
	ErrBidNotFound             = errors.New("bid not found")
	ErrJoinWindowClosed        = errors.New("the game is finished")
	ErrDuplicateOwnerJoin      = errors.New("owner is already in participants list")
	ErrAlreadyJoined           = errors.New("already joined this game")
	ErrStakeMismatch           = errors.New("stake must equal the game stake")
	ErrParticipantLimitReached = errors.New("participants limit has been reached")
	ErrNotOwner                = errors.New("only the game owner can limit the number of participants")
	ErrLimitBelowCurrent       = errors.New("game already has more participants than the limit")
	ErrAlreadySettled          = errors.New("the game is finished already")
	ErrFinalizeTooEarly        = errors.New("a game can be finished only after the finalize window")
	ErrNotAParticipant         = errors.New("only participants can finish a game")
	ErrNotSettled              = errors.New("the game is not finished yet")
	ErrNotAWinner              = errors.New("not a winner of the game")
	ErrAlreadyClaimed          = errors.New("prize is claimed already")
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrInvalidLimit            = errors.New("limit must not be negative")
)
