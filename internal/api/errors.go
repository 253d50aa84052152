package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/susu3304/bidgame/internal/guess"
	"github.com/susu3304/bidgame/internal/money"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, guess.ErrRoundNotFound), errors.Is(err, guess.ErrBidNotFound):
		return http.StatusNotFound
	case errors.Is(err, guess.ErrNotOwner),
		errors.Is(err, guess.ErrNotAParticipant),
		errors.Is(err, guess.ErrNotAWinner):
		return http.StatusForbidden
	case errors.Is(err, guess.ErrJoinWindowClosed),
		errors.Is(err, guess.ErrDuplicateOwnerJoin),
		errors.Is(err, guess.ErrAlreadyJoined),
		errors.Is(err, guess.ErrParticipantLimitReached),
		errors.Is(err, guess.ErrLimitBelowCurrent),
		errors.Is(err, guess.ErrAlreadySettled),
		errors.Is(err, guess.ErrFinalizeTooEarly),
		errors.Is(err, guess.ErrNotSettled),
		errors.Is(err, guess.ErrAlreadyClaimed),
		errors.Is(err, guess.ErrInsufficientFunds):
		return http.StatusConflict
	case errors.Is(err, guess.ErrInvalidStake),
		errors.Is(err, guess.ErrInvalidGuess),
		errors.Is(err, guess.ErrStakeMismatch),
		errors.Is(err, guess.ErrInvalidAmount),
		errors.Is(err, guess.ErrInvalidLimit),
		errors.Is(err, guess.ErrAnonymousCaller),
		errors.Is(err, money.ErrNotPositive),
		errors.Is(err, money.ErrTooPrecise),
		errors.Is(err, money.ErrOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError maps core errors to HTTP statuses. Unknown errors are
// logged and hidden from the client.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("api: %s: %v", op, err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
