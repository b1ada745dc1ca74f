// Package game holds the authoritative per-game state machine: seats,
// spectators, the board, move and chat logs, draw offers and terminal status.
package game

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tecu23/arena-server/pkg/chess"
	"github.com/tecu23/arena-server/pkg/events"
	"github.com/tecu23/arena-server/pkg/messages"
)

// Status is the lifecycle state of a session.
type Status string

// Possible session statuses. Everything after StatusActive is terminal.
const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCheckmate Status = "checkmate"
	StatusStalemate Status = "stalemate"
	StatusDraw      Status = "draw"
	StatusResigned  Status = "resigned"
	StatusTimeout   Status = "timeout"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether no further moves are accepted in this status.
func (s Status) Terminal() bool {
	return s != StatusWaiting && s != StatusActive
}

// Type distinguishes human-vs-human rooms from games against the computer.
type Type string

// Session types
const (
	TypeHuman Type = "human"
	TypeAI    Type = "ai"
)

// Result tokens
const (
	ResultWhiteWins = "1-0"
	ResultBlackWins = "0-1"
	ResultDraw      = "1/2-1/2"
)

const maxChatEntries = 500

// Seat is one of the two playing slots.
type Seat struct {
	PlayerID string
	Name     string
	Color    chess.Color
	ConnID   string // empty while disconnected
	IsAI     bool
}

func (s *Seat) info() messages.PlayerInfo {
	return messages.PlayerInfo{ID: s.PlayerID, Name: s.Name, Color: string(s.Color), IsAI: s.IsAI}
}

func (s *Seat) ref() messages.PlayerRef {
	return messages.PlayerRef{ID: s.PlayerID, Name: s.Name}
}

// Spectator is a read-only room member.
type Spectator struct {
	PlayerID string
	Name     string
	ConnID   string
}

// DrawOffer is a pending draw proposal.
type DrawOffer struct {
	Color chess.Color
	At    time.Time
}

// Notifier delivers outbound frames to a single connection. Implementations
// must not block.
type Notifier interface {
	Send(connID string, msg messages.OutboundMessage)
}

// CreateParams configures a new session.
type CreateParams struct {
	ID           string
	Type         Type
	AILevel      int
	TimeControl  chess.TimeControl
	Board        chess.Board
	AbandonAfter time.Duration
}

// Session is the authoritative state of one game. All exported methods are
// serialized by the session mutex.
type Session struct {
	ID          string
	Type        Type
	AILevel     int
	TimeControl chess.TimeControl
	CreatedAt   time.Time

	seats       [2]*Seat
	spectators  []*Spectator
	board       chess.Board
	moves       []chess.AppliedMove
	chat        []messages.ChatEntry
	status      Status
	turn        chess.Color
	result      string
	reason      string
	pendingDraw *DrawOffer

	clock        *chess.Clock
	abandonAfter time.Duration
	abandon      [2]*time.Timer

	notifier  Notifier
	publisher *events.Publisher
	logger    *zap.Logger

	mu sync.Mutex
}

// NewSession creates a session in the waiting state.
func NewSession(
	params CreateParams,
	notifier Notifier,
	publisher *events.Publisher,
	logger *zap.Logger,
) *Session {
	if params.Type == "" {
		params.Type = TypeHuman
	}

	s := &Session{
		ID:          params.ID,
		Type:        params.Type,
		AILevel:     params.AILevel,
		TimeControl: params.TimeControl,
		CreatedAt:   time.Now().UTC(),

		board:  params.Board,
		status: StatusWaiting,
		turn:   params.Board.Turn(),

		abandonAfter: params.AbandonAfter,

		notifier:  notifier,
		publisher: publisher,
		logger:    logger.With(zap.String("game_id", params.ID)),
	}

	if params.TimeControl.Enabled() {
		s.clock = chess.NewClock(params.TimeControl, s.onFlag)
	}

	return s
}

// Summary is the static view served over REST.
type Summary struct {
	ID          string
	Type        Type
	Status      Status
	White       string
	Black       string
	Moves       int
	CreatedAt   time.Time
	TimeControl chess.TimeControl
	Clock       *chess.ClockReading // nil without a time control
}

// Summary returns metadata about the session without the live position.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		ID:          s.ID,
		Type:        s.Type,
		Status:      s.status,
		Moves:       len(s.moves),
		CreatedAt:   s.CreatedAt,
		TimeControl: s.TimeControl,
		Clock:       s.clockReading(),
	}
	if seat := s.seats[0]; seat != nil {
		sum.White = seat.Name
	}
	if seat := s.seats[1]; seat != nil {
		sum.Black = seat.Name
	}
	return sum
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Turn returns the side to move.
func (s *Session) Turn() chess.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// MoveCount returns the number of applied moves.
func (s *Session) MoveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.moves)
}

// PendingDraw returns a copy of the pending draw offer, if any.
func (s *Session) PendingDraw() *DrawOffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingDraw == nil {
		return nil
	}
	offer := *s.pendingDraw
	return &offer
}

// Close stops the session's timers. It is called on eviction.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimers()
}

func (s *Session) seat(color chess.Color) *Seat {
	if color == chess.Black {
		return s.seats[1]
	}
	return s.seats[0]
}

func (s *Session) setSeat(seat *Seat) {
	if seat.Color == chess.Black {
		s.seats[1] = seat
		return
	}
	s.seats[0] = seat
}

func (s *Session) seatOf(playerID string) *Seat {
	for _, seat := range s.seats {
		if seat != nil && seat.PlayerID == playerID {
			return seat
		}
	}
	return nil
}

func (s *Session) spectatorOf(playerID string) *Spectator {
	for _, sp := range s.spectators {
		if sp.PlayerID == playerID {
			return sp
		}
	}
	return nil
}

// requireSeat resolves a writer to its seat, distinguishing spectators and
// strangers.
func (s *Session) requireSeat(playerID string) (*Seat, error) {
	if seat := s.seatOf(playerID); seat != nil {
		return seat, nil
	}
	if s.spectatorOf(playerID) != nil {
		return nil, ErrSpectatorWrite
	}
	return nil, ErrNotInRoom
}

func (s *Session) unicast(connID, event string, payload interface{}) {
	if connID == "" || s.notifier == nil {
		return
	}
	s.notifier.Send(connID, messages.OutboundMessage{Event: event, Payload: payload})
}

// broadcast delivers to every connected seat and spectator.
func (s *Session) broadcast(event string, payload interface{}) {
	s.broadcastExcept("", event, payload)
}

func (s *Session) broadcastExcept(skipConnID, event string, payload interface{}) {
	for _, connID := range s.roomConnIDs() {
		if connID != skipConnID {
			s.unicast(connID, event, payload)
		}
	}
}

func (s *Session) roomConnIDs() []string {
	ids := make([]string, 0, 2+len(s.spectators))
	for _, seat := range s.seats {
		if seat != nil && seat.ConnID != "" {
			ids = append(ids, seat.ConnID)
		}
	}
	for _, sp := range s.spectators {
		if sp.ConnID != "" {
			ids = append(ids, sp.ConnID)
		}
	}
	return ids
}

func (s *Session) publish(eventType events.EventType, payload interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(events.Event{Type: eventType, GameID: s.ID, Payload: payload})
}

// activate performs the single waiting → active transition.
func (s *Session) activate() bool {
	if s.status != StatusWaiting {
		return false
	}
	s.status = StatusActive
	if s.clock != nil {
		s.clock.Start(s.turn)
	}
	s.publish(events.EventGameStarted, nil)
	s.logger.Info("game started")
	return true
}

// finish moves the session into a terminal status. It returns false, and
// emits nothing, when the session is already terminal.
func (s *Session) finish(status Status, winner chess.Color, reason, message string) bool {
	if s.status.Terminal() {
		return false
	}

	result := resultFor(winner)
	s.status = status
	s.result = result
	s.reason = reason
	s.pendingDraw = nil
	s.stopTimers()

	s.broadcast(messages.EventGameOver, messages.GameOverPayload{
		Result:  result,
		Status:  string(status),
		Winner:  string(winner),
		Reason:  reason,
		Message: message,
	})

	s.publish(events.EventGameOver, events.GameOverPayload{
		Status: string(status),
		Result: result,
		Reason: reason,
	})

	s.logger.Info("game over",
		zap.String("status", string(status)),
		zap.String("result", result),
		zap.String("reason", reason),
	)
	return true
}

func (s *Session) stopTimers() {
	if s.clock != nil {
		s.clock.Stop()
	}
	for i, t := range s.abandon {
		if t != nil {
			t.Stop()
			s.abandon[i] = nil
		}
	}
}

// onFlag is invoked by the clock when the given side runs out of time.
func (s *Session) onFlag(color chess.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive || s.turn != color || !s.clock.Expired(color) {
		return
	}

	s.flagFall(color)
}

// flagFall ends the game on time against color. Caller holds the mutex.
func (s *Session) flagFall(color chess.Color) {
	s.finish(StatusTimeout, color.Opp(), "timeout", titleName(color)+" ran out of time")
}

func (s *Session) clockReading() *chess.ClockReading {
	if s.clock == nil {
		return nil
	}
	r := s.clock.Reading()
	return &r
}

// snapshot builds the full state view sent on join and reconnection.
func (s *Session) snapshot(playerID string) messages.GameJoinedPayload {
	moves := make([]chess.AppliedMove, len(s.moves))
	copy(moves, s.moves)
	chat := make([]messages.ChatEntry, len(s.chat))
	copy(chat, s.chat)

	return messages.GameJoinedPayload{
		GameID:   s.ID,
		PlayerID: playerID,
		GameType: string(s.Type),
		AILevel:  s.AILevel,
		Status:   string(s.status),
		Turn:     string(s.turn),
		FEN:      s.board.FEN(),
		PGN:      s.board.PGN(),
		Moves:    moves,
		Chat:     chat,
		Clock:    s.clockReading(),
	}
}

func (s *Session) players() []messages.PlayerInfo {
	var out []messages.PlayerInfo
	for _, seat := range s.seats {
		if seat != nil {
			out = append(out, seat.info())
		}
	}
	return out
}

func titleName(c chess.Color) string {
	if c == chess.Black {
		return "Black"
	}
	return "White"
}
