// Package agent plays the computer's side of AI games.
package agent

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tecu23/arena-server/pkg/game"
)

// Sessions looks up live sessions.
type Sessions interface {
	Get(id string) (*game.Session, error)
}

// Config bounds the thinking delay and the time a policy may take.
type Config struct {
	MinDelay      time.Duration
	MaxDelay      time.Duration
	ChooseTimeout time.Duration
}

// Agent schedules one deferred move per game and submits it through the
// same path as human moves.
type Agent struct {
	sessions Sessions
	policy   Policy
	cfg      Config

	pending map[string]*time.Timer
	mu      sync.Mutex

	logger *zap.Logger
}

// New creates an agent.
func New(sessions Sessions, policy Policy, cfg Config, logger *zap.Logger) *Agent {
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	if cfg.ChooseTimeout <= 0 {
		cfg.ChooseTimeout = 10 * time.Second
	}
	return &Agent{
		sessions: sessions,
		policy:   policy,
		cfg:      cfg,
		pending:  make(map[string]*time.Timer),
		logger:   logger,
	}
}

// Schedule arranges for the computer to move in gameID after the thinking
// delay. A game has at most one pending task; scheduling again is a no-op.
func (a *Agent) Schedule(gameID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.pending[gameID]; ok {
		return
	}

	a.pending[gameID] = time.AfterFunc(a.delay(), func() {
		a.mu.Lock()
		delete(a.pending, gameID)
		a.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ChooseTimeout)
		defer cancel()

		if err := a.Act(ctx, gameID); err != nil {
			a.logger.Warn("computer move failed", zap.String("game_id", gameID), zap.Error(err))
		}
	})
}

// Cancel drops the pending task for gameID, if any.
func (a *Agent) Cancel(gameID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if t, ok := a.pending[gameID]; ok {
		t.Stop()
		delete(a.pending, gameID)
	}
}

// Pending reports whether a move is scheduled for gameID.
func (a *Agent) Pending(gameID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.pending[gameID]
	return ok
}

// Stop cancels every pending task.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, t := range a.pending {
		t.Stop()
		delete(a.pending, id)
	}
}

// Act plays one computer move in gameID if the game still wants one. The
// preconditions are checked against the current state, so a stale call does
// nothing.
func (a *Agent) Act(ctx context.Context, gameID string) error {
	session, err := a.sessions.Get(gameID)
	if err != nil {
		if errors.Is(err, game.ErrGameNotFound) {
			return nil
		}
		return err
	}

	turn, ok := session.PendingAITurn()
	if !ok {
		return nil
	}

	req, err := a.policy.Choose(ctx, turn)
	if err != nil {
		return err
	}

	res, err := session.SubmitMove(turn.PlayerID, req)
	if err != nil {
		// The game moved on while the policy was thinking
		if errors.Is(err, game.ErrUnauthorized) {
			return nil
		}
		return err
	}

	a.logger.Debug("computer moved",
		zap.String("game_id", gameID),
		zap.String("move", res.Move.UCI),
		zap.Int("level", turn.Level),
	)
	return nil
}

func (a *Agent) delay() time.Duration {
	spread := a.cfg.MaxDelay - a.cfg.MinDelay
	if spread <= 0 {
		return a.cfg.MinDelay
	}
	return a.cfg.MinDelay + rand.N(spread+1)
}
