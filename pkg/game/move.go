package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tecu23/arena-server/pkg/chess"
	"github.com/tecu23/arena-server/pkg/events"
	"github.com/tecu23/arena-server/pkg/messages"
)

// MoveResult reports an accepted move.
type MoveResult struct {
	Move   chess.AppliedMove
	Status Status
	Turn   chess.Color
	Result string
}

// SubmitMove validates turn ownership, delegates legality to the board and,
// on success, applies the move and broadcasts it to the room. Rejections
// leave the session untouched and are only reported through the returned
// error.
func (s *Session) SubmitMove(playerID string, req chess.MoveRequest) (MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return MoveResult{}, ErrGameNotActive
	}
	seat, err := s.requireSeat(playerID)
	if err != nil {
		return MoveResult{}, err
	}
	if seat.Color != s.turn {
		return MoveResult{}, ErrNotYourTurn
	}
	// The flag timer may not have taken the lock yet
	if s.clock != nil && s.clock.Expired(seat.Color) {
		s.flagFall(seat.Color)
		return MoveResult{}, ErrGameNotActive
	}

	applied, err := s.board.Apply(req)
	if err != nil {
		return MoveResult{}, fmt.Errorf("%w: %s", ErrIllegalMove, req.UCI())
	}

	s.moves = append(s.moves, applied)
	s.pendingDraw = nil
	s.turn = s.board.Turn()
	if s.clock != nil {
		s.clock.Switch()
	}

	status, winner, reason, message := s.evaluate(seat.Color)
	result := ""
	if status.Terminal() {
		result = resultFor(winner)
	}

	s.broadcast(messages.EventMoveMade, messages.MoveMadePayload{
		Move:     applied,
		FEN:      s.board.FEN(),
		PGN:      s.board.PGN(),
		GameOver: status.Terminal(),
		Result:   result,
		Status:   string(status),
		Turn:     string(s.turn),
		Clock:    s.clockReading(),
	})

	s.logger.Debug("move applied",
		zap.String("player_id", playerID),
		zap.String("move", applied.UCI),
		zap.String("turn", string(s.turn)),
	)
	s.publish(events.EventMoveApplied, applied)

	if status.Terminal() {
		s.finish(status, winner, reason, message)
	} else if next := s.seat(s.turn); s.Type == TypeAI && next != nil && next.IsAI {
		s.publish(events.EventAITurn, nil)
	}

	return MoveResult{Move: applied, Status: s.status, Turn: s.turn, Result: s.result}, nil
}

// evaluate derives the status after a move by mover, checking terminal
// predicates in priority order. Caller holds the mutex.
func (s *Session) evaluate(mover chess.Color) (status Status, winner chess.Color, reason, message string) {
	term := s.board.Terminal()

	switch {
	case term.Checkmate:
		return StatusCheckmate, mover, "checkmate", "Checkmate! " + titleName(mover) + " wins"
	case term.Stalemate:
		return StatusStalemate, "", "stalemate", "Draw by stalemate"
	case term.Threefold:
		return StatusDraw, "", "threefold repetition", "Draw by threefold repetition"
	case term.InsufficientMaterial:
		return StatusDraw, "", "insufficient material", "Draw by insufficient material"
	case term.FiftyMove:
		return StatusDraw, "", "fifty-move rule", "Draw by the fifty-move rule"
	}

	return s.status, "", "", ""
}

func resultFor(winner chess.Color) string {
	switch winner {
	case chess.White:
		return ResultWhiteWins
	case chess.Black:
		return ResultBlackWins
	}
	return ResultDraw
}

// AITurn is what the computer needs to choose a move.
type AITurn struct {
	PlayerID string
	Color    chess.Color
	Level    int
	FEN      string
	Legal    []chess.MoveRequest
}

// PendingAITurn returns the computer's view of the position when it is an
// AI game, still active, with the computer on move.
func (s *Session) PendingAITurn() (AITurn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Type != TypeAI || s.status != StatusActive {
		return AITurn{}, false
	}
	seat := s.seat(s.turn)
	if seat == nil || !seat.IsAI {
		return AITurn{}, false
	}

	return AITurn{
		PlayerID: seat.PlayerID,
		Color:    seat.Color,
		Level:    s.AILevel,
		FEN:      s.board.FEN(),
		Legal:    s.board.LegalMoves(),
	}, true
}
