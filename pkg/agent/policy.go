package agent

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/tecu23/arena-server/pkg/chess"
	"github.com/tecu23/arena-server/pkg/engine"
	"github.com/tecu23/arena-server/pkg/game"
)

// ErrNoLegalMoves is returned when a policy is asked to move in a finished
// position.
var ErrNoLegalMoves = errors.New("no legal moves")

// Policy picks the computer's move. The turn carries the difficulty level;
// a policy is free to ignore it.
type Policy interface {
	Choose(ctx context.Context, turn game.AITurn) (chess.MoveRequest, error)
}

// RandomPolicy picks uniformly among the legal moves.
type RandomPolicy struct{}

// Choose implements Policy.
func (RandomPolicy) Choose(_ context.Context, turn game.AITurn) (chess.MoveRequest, error) {
	if len(turn.Legal) == 0 {
		return chess.MoveRequest{}, ErrNoLegalMoves
	}
	return turn.Legal[rand.IntN(len(turn.Legal))], nil
}

// BestMover is the part of the engine pool the engine policy needs.
type BestMover interface {
	BestMove(ctx context.Context, fen string, opts engine.SearchOptions) (string, error)
}

// EnginePolicy asks a UCI engine for its move and falls back to another
// policy when the engine fails or answers with something illegal.
type EnginePolicy struct {
	engine   BestMover
	moveTime time.Duration
	fallback Policy
	logger   *zap.Logger
}

// NewEnginePolicy creates an engine-backed policy. moveTime is the search
// time at the highest level.
func NewEnginePolicy(eng BestMover, moveTime time.Duration, logger *zap.Logger) *EnginePolicy {
	return &EnginePolicy{
		engine:   eng,
		moveTime: moveTime,
		fallback: RandomPolicy{},
		logger:   logger,
	}
}

// Choose implements Policy.
func (p *EnginePolicy) Choose(ctx context.Context, turn game.AITurn) (chess.MoveRequest, error) {
	uci, err := p.engine.BestMove(ctx, turn.FEN, SearchOptions(turn.Level, p.moveTime))
	if err != nil {
		p.logger.Warn("engine search failed, falling back", zap.Error(err))
		return p.fallback.Choose(ctx, turn)
	}

	req, err := chess.ParseUCI(uci)
	if err == nil {
		for _, legal := range turn.Legal {
			if legal == req {
				return req, nil
			}
		}
	}

	p.logger.Warn("engine returned an unusable move, falling back", zap.String("move", uci))
	return p.fallback.Choose(ctx, turn)
}

// SearchOptions maps a 1-10 difficulty onto the engine's 0-20 skill scale and
// a proportional share of the maximum search time.
func SearchOptions(level int, maxMoveTime time.Duration) engine.SearchOptions {
	level = min(max(level, 1), 10)

	moveTime := maxMoveTime * time.Duration(level) / 10
	if moveTime < 50*time.Millisecond {
		moveTime = 50 * time.Millisecond
	}

	return engine.SearchOptions{
		SkillLevel: (level - 1) * 20 / 9,
		MoveTime:   moveTime,
	}
}
