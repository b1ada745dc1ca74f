// Package chess defines the game entities and the rule engine adapter
// used by game sessions.
package chess

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// ErrIllegalMove is returned by Board.Apply when the rule engine rejects a move.
var ErrIllegalMove = errors.New("illegal move")

// MoveRequest is a move as submitted by a player, in coordinate form.
type MoveRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// UCI returns the move in UCI notation, e.g. "e7e8q".
func (m MoveRequest) UCI() string {
	return strings.ToLower(m.From + m.To + m.Promotion)
}

// ParseUCI splits a UCI move string into a MoveRequest.
func ParseUCI(uci string) (MoveRequest, error) {
	uci = strings.ToLower(strings.TrimSpace(uci))
	if len(uci) != 4 && len(uci) != 5 {
		return MoveRequest{}, fmt.Errorf("malformed uci move %q", uci)
	}
	return MoveRequest{From: uci[0:2], To: uci[2:4], Promotion: uci[4:]}, nil
}

// AppliedMove is an accepted move as recorded in a session's move log.
type AppliedMove struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	UCI       string `json:"uci"`
	SAN       string `json:"san"`
	Color     Color  `json:"color"`
}

// Terminal holds the terminal-condition flags reported for a position.
type Terminal struct {
	Checkmate            bool
	Stalemate            bool
	Threefold            bool
	InsufficientMaterial bool
	FiftyMove            bool
}

// Over reports whether any terminal condition holds.
func (t Terminal) Over() bool {
	return t.Checkmate || t.Stalemate || t.Threefold || t.InsufficientMaterial || t.FiftyMove
}

// Board is the authoritative position of a single game together with the
// history needed for repetition detection.
type Board interface {
	FEN() string
	PGN() string
	Turn() Color
	Apply(req MoveRequest) (AppliedMove, error)
	LegalMoves() []MoveRequest
	Terminal() Terminal
}

// Rules creates boards. It is the rule engine capability sessions delegate to.
type Rules interface {
	NewBoard() Board
}

// StandardRules implements Rules with corentings/chess.
type StandardRules struct{}

// NewBoard returns a board at the standard starting position.
func (StandardRules) NewBoard() Board {
	return &standardBoard{game: nchess.NewGame()}
}

// NewBoardFromFEN returns a board starting from the given FEN.
func (StandardRules) NewBoardFromFEN(fen string) (Board, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return &standardBoard{game: nchess.NewGame(opt)}, nil
}

type standardBoard struct {
	game *nchess.Game
}

func (b *standardBoard) FEN() string {
	return b.game.FEN()
}

func (b *standardBoard) PGN() string {
	return b.game.String()
}

func (b *standardBoard) Turn() Color {
	if b.game.Position().Turn() == nchess.Black {
		return Black
	}
	return White
}

func (b *standardBoard) LegalMoves() []MoveRequest {
	valid := b.game.ValidMoves()
	moves := make([]MoveRequest, 0, len(valid))
	for _, mv := range valid {
		req, err := ParseUCI(mv.String())
		if err != nil {
			continue
		}
		moves = append(moves, req)
	}
	return moves
}

func (b *standardBoard) Apply(req MoveRequest) (AppliedMove, error) {
	if b.game.Outcome() != nchess.NoOutcome {
		return AppliedMove{}, fmt.Errorf("%w: game already decided", ErrIllegalMove)
	}

	uci := req.UCI()
	legal := false
	for _, mv := range b.game.ValidMoves() {
		if mv.String() == uci {
			legal = true
			break
		}
	}
	if !legal {
		return AppliedMove{}, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}

	mover := b.Turn()
	before := b.game.Position()
	decoded, err := nchess.UCINotation{}.Decode(before, uci)
	if err != nil {
		return AppliedMove{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	// The game only accepts algebraic input
	san := nchess.AlgebraicNotation{}.Encode(before, decoded)
	if err := b.game.PushMove(san, nil); err != nil {
		return AppliedMove{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	return AppliedMove{
		From:      strings.ToLower(req.From),
		To:        strings.ToLower(req.To),
		Promotion: strings.ToLower(req.Promotion),
		UCI:       uci,
		SAN:       san,
		Color:     mover,
	}, nil
}

func (b *standardBoard) Terminal() Terminal {
	var t Terminal

	switch b.game.Method() {
	case nchess.Checkmate:
		t.Checkmate = true
	case nchess.Stalemate:
		t.Stalemate = true
	case nchess.InsufficientMaterial:
		t.InsufficientMaterial = true
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		t.Threefold = true
	case nchess.FiftyMoveRule, nchess.SeventyFiveMoveRule:
		t.FiftyMove = true
	}

	// Threefold and fifty-move draws are only claimable in the library; the
	// server applies them automatically.
	for _, m := range b.game.EligibleDraws() {
		switch m {
		case nchess.ThreefoldRepetition:
			t.Threefold = true
		case nchess.FiftyMoveRule:
			t.FiftyMove = true
		}
	}

	return t
}
