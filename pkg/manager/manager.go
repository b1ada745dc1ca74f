// Package manager routes validated requests to game sessions and owns the
// lifecycle around them: lazy creation, the computer opponent, eviction and
// metrics.
package manager

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tecu23/arena-server/pkg/agent"
	"github.com/tecu23/arena-server/pkg/chess"
	"github.com/tecu23/arena-server/pkg/events"
	"github.com/tecu23/arena-server/pkg/game"
	"github.com/tecu23/arena-server/pkg/messages"
	"github.com/tecu23/arena-server/pkg/metrics"
	"github.com/tecu23/arena-server/pkg/repository"
)

// Options configures the manager's timers.
type Options struct {
	Retention    time.Duration // how long a finished game stays reachable
	AbandonAfter time.Duration // 0 disables abandonment
}

// Binding is the identity a connection holds in a game after joining.
type Binding struct {
	GameID   string
	PlayerID string
	Role     game.Role
	Color    chess.Color
}

// Manager is the operation router between the gateway and the sessions.
type Manager struct {
	repo      *repository.InMemoryRepository
	rules     chess.Rules
	notifier  game.Notifier
	agent     *agent.Agent
	publisher *events.Publisher
	metrics   *metrics.Metrics
	opts      Options
	logger    *zap.Logger
}

// NewManager creates a new manager and subscribes it to session events.
func NewManager(
	repo *repository.InMemoryRepository,
	rules chess.Rules,
	notifier game.Notifier,
	policy agent.Policy,
	agentCfg agent.Config,
	publisher *events.Publisher,
	m *metrics.Metrics,
	opts Options,
	logger *zap.Logger,
) *Manager {
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}

	manager := &Manager{
		repo:      repo,
		rules:     rules,
		notifier:  notifier,
		agent:     agent.New(repo, policy, agentCfg, logger.Named("agent")),
		publisher: publisher,
		metrics:   m,
		opts:      opts,
		logger:    logger,
	}

	m.TrackSessions(repo.Count)

	// Set up event handlers
	manager.setupEventHandlers()

	return manager
}

// setupEventHandlers wires session and connection events to the manager
func (m *Manager) setupEventHandlers() {
	m.publisher.Subscribe(events.EventGameStarted, func(events.Event) {
		m.metrics.GameStarted()
	})

	m.publisher.Subscribe(events.EventMoveApplied, func(events.Event) {
		m.metrics.MoveApplied()
	})

	m.publisher.Subscribe(events.EventAITurn, func(event events.Event) {
		m.agent.Schedule(event.GameID)
	})

	// Finished games stay around for late readers, then get evicted
	m.publisher.Subscribe(events.EventGameOver, func(event events.Event) {
		payload, ok := event.Payload.(events.GameOverPayload)
		if !ok {
			m.logger.Error("Invalid game over payload type")
			return
		}

		m.agent.Cancel(event.GameID)
		m.metrics.GameFinished(payload.Status)
		m.repo.ScheduleEviction(event.GameID, m.opts.Retention)
	})

	m.publisher.Subscribe(events.EventConnectionClosed, func(event events.Event) {
		payload, ok := event.Payload.(events.ConnectionClosedPayload)
		if !ok {
			m.logger.Error("Invalid connection closed payload type")
			return
		}
		m.Disconnect(event.GameID, payload.ConnID)
	})
}

// CreateParams configures a game created over REST.
type CreateParams struct {
	TimeControl chess.TimeControl
}

// CreateGame registers a new, empty human game and returns its id.
func (m *Manager) CreateGame(params CreateParams) (string, error) {
	id := uuid.NewString()
	s := m.newSession(id, game.TypeHuman, 0, params.TimeControl)
	if err := m.repo.Add(s); err != nil {
		return "", err
	}
	m.created(s)
	return id, nil
}

// Join seats connID in the game named by the payload, creating the game if
// it does not exist yet.
func (m *Manager) Join(connID string, p messages.JoinPayload) (Binding, error) {
	playerID := p.PlayerID
	if playerID == "" {
		playerID = uuid.NewString()
	}

	var tc chess.TimeControl
	if p.TimeControl != nil {
		tc = *p.TimeControl
	}

	s, created := m.repo.GetOrCreate(p.GameID, func() *game.Session {
		return m.newSession(p.GameID, game.TypeHuman, 0, tc)
	})
	if created {
		m.created(s)
	}

	res, err := s.Join(connID, playerID, p.PlayerName)
	if err != nil {
		return Binding{}, err
	}

	m.logger.Info("participant joined",
		zap.String("game_id", p.GameID),
		zap.String("player_id", playerID),
		zap.String("role", string(res.Role)),
		zap.Bool("reconnected", res.Reconnected),
	)
	return Binding{GameID: p.GameID, PlayerID: playerID, Role: res.Role, Color: res.Color}, nil
}

// CreateAIGame starts a game against the computer with the caller as white.
func (m *Manager) CreateAIGame(connID string, p messages.CreateAIGamePayload) (Binding, error) {
	playerID := p.PlayerID
	if playerID == "" {
		playerID = uuid.NewString()
	}

	var tc chess.TimeControl
	if p.TimeControl != nil {
		tc = *p.TimeControl
	}

	id := uuid.NewString()
	s := m.newSession(id, game.TypeAI, p.AILevel, tc)
	if err := m.repo.Add(s); err != nil {
		return Binding{}, err
	}
	m.created(s)

	aiName := fmt.Sprintf("Computer (Level %d)", p.AILevel)
	if err := s.JoinAI(connID, playerID, p.PlayerName, "ai-"+uuid.NewString(), aiName); err != nil {
		m.repo.Remove(id)
		return Binding{}, err
	}

	m.logger.Info("ai game created",
		zap.String("game_id", id),
		zap.String("player_id", playerID),
		zap.Int("ai_level", p.AILevel),
	)
	return Binding{GameID: id, PlayerID: playerID, Role: game.RolePlayer, Color: chess.White}, nil
}

// Move submits a move for playerID.
func (m *Manager) Move(gameID, playerID string, req chess.MoveRequest) (game.MoveResult, error) {
	s, err := m.repo.Get(gameID)
	if err != nil {
		return game.MoveResult{}, err
	}
	return s.SubmitMove(playerID, req)
}

// Resign concedes the game for playerID.
func (m *Manager) Resign(gameID, playerID string) error {
	s, err := m.repo.Get(gameID)
	if err != nil {
		return err
	}
	return s.Resign(playerID)
}

// OfferDraw proposes a draw on behalf of playerID.
func (m *Manager) OfferDraw(gameID, playerID string) error {
	s, err := m.repo.Get(gameID)
	if err != nil {
		return err
	}
	return s.OfferDraw(playerID)
}

// RespondToDraw answers the pending draw offer.
func (m *Manager) RespondToDraw(gameID, playerID string, accepted bool) error {
	s, err := m.repo.Get(gameID)
	if err != nil {
		return err
	}
	return s.RespondToDraw(playerID, accepted)
}

// SendMessage posts a chat line.
func (m *Manager) SendMessage(gameID, playerID, text string) error {
	s, err := m.repo.Get(gameID)
	if err != nil {
		return err
	}
	_, err = s.SendMessage(playerID, text)
	return err
}

// RequestAIMove schedules the computer's move when it is on turn. Asking
// while it is not is harmless.
func (m *Manager) RequestAIMove(gameID string) error {
	s, err := m.repo.Get(gameID)
	if err != nil {
		return err
	}
	if s.Type != game.TypeAI {
		return game.ErrNotAIGame
	}
	if _, ok := s.PendingAITurn(); ok {
		m.agent.Schedule(gameID)
	}
	return nil
}

// Disconnect unbinds connID from the game. Unknown games are ignored.
func (m *Manager) Disconnect(gameID, connID string) {
	s, err := m.repo.Get(gameID)
	if err != nil {
		return
	}
	s.Disconnect(connID)
}

// Game returns the session for gameID.
func (m *Manager) Game(gameID string) (*game.Session, error) {
	return m.repo.Get(gameID)
}

// OpenGames lists the games waiting for an opponent or in play.
func (m *Manager) OpenGames() []*game.Session {
	return m.repo.ListOpen()
}

// Shutdown stops pending computer moves and every session timer.
func (m *Manager) Shutdown() {
	m.agent.Stop()
	m.repo.Close()
	m.logger.Info("manager shut down")
}

func (m *Manager) newSession(id string, t game.Type, level int, tc chess.TimeControl) *game.Session {
	return game.NewSession(game.CreateParams{
		ID:           id,
		Type:         t,
		AILevel:      level,
		TimeControl:  tc,
		Board:        m.rules.NewBoard(),
		AbandonAfter: m.opts.AbandonAfter,
	}, m.notifier, m.publisher, m.logger)
}

func (m *Manager) created(s *game.Session) {
	m.metrics.GameCreated(string(s.Type))
	m.publisher.Publish(events.Event{
		Type:   events.EventGameCreated,
		GameID: s.ID,
		Payload: events.GameCreatedPayload{
			Type:        string(s.Type),
			TimeControl: s.TimeControl.String(),
		},
	})
	m.logger.Info("created new game session", zap.String("game_id", s.ID))
}
