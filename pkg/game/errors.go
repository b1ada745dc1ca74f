package game

import (
	"errors"
	"fmt"

	"github.com/tecu23/arena-server/pkg/chess"
	"github.com/tecu23/arena-server/pkg/messages"
)

// Error kinds. Every error returned by a session wraps exactly one of these.
var (
	ErrProtocol     = messages.ErrInvalidPayload
	ErrUnauthorized = errors.New("not authorized")
	ErrIllegalMove  = chess.ErrIllegalMove
	ErrGameNotFound = errors.New("game not found")
)

// Specific rejections.
var (
	ErrNotYourTurn        = fmt.Errorf("%w: not your turn", ErrUnauthorized)
	ErrGameNotActive      = fmt.Errorf("%w: game is not active", ErrUnauthorized)
	ErrNotSeated          = fmt.Errorf("%w: you are not playing in this game", ErrUnauthorized)
	ErrSpectatorWrite     = fmt.Errorf("%w: spectators cannot do that", ErrUnauthorized)
	ErrNotInRoom          = fmt.Errorf("%w: you have not joined this game", ErrUnauthorized)
	ErrReservedIdentity   = fmt.Errorf("%w: player id is reserved", ErrUnauthorized)
	ErrNoDrawOffer        = fmt.Errorf("%w: no draw offer is pending", ErrUnauthorized)
	ErrDrawAlreadyOffered = fmt.Errorf("%w: a draw offer is already pending", ErrUnauthorized)
	ErrOwnDrawOffer       = fmt.Errorf("%w: cannot answer your own draw offer", ErrUnauthorized)
	ErrNotAIGame          = fmt.Errorf("%w: not a game against the computer", ErrUnauthorized)
)

// Kind returns a short label for the error's kind, used in error frames and
// metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrIllegalMove):
		return "illegal_move"
	case errors.Is(err, ErrGameNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "internal"
	}
}
