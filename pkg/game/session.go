package game

import (
	"time"

	"go.uber.org/zap"

	"github.com/tecu23/arena-server/pkg/chess"
	"github.com/tecu23/arena-server/pkg/messages"
)

// Role is what a participant became after joining.
type Role string

// Participant roles
const (
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// JoinResult describes the outcome of a join.
type JoinResult struct {
	Role        Role
	Color       chess.Color
	Reconnected bool
}

// Join applies the join policy for an identified participant: a known seat
// is rebound, otherwise a free seat is taken, otherwise the participant
// becomes a spectator. Repeating a join never duplicates a seat or spectator.
func (s *Session) Join(connID, playerID, name string) (JoinResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seat := s.seatOf(playerID); seat != nil {
		if seat.IsAI {
			return JoinResult{}, ErrReservedIdentity
		}
		s.reconnectSeat(seat, connID)
		return JoinResult{Role: RolePlayer, Color: seat.Color, Reconnected: true}, nil
	}

	if sp := s.spectatorOf(playerID); sp != nil {
		sp.ConnID = connID
		payload := s.snapshot(playerID)
		payload.IsSpectator = true
		payload.Reconnected = true
		payload.Players = s.players()
		s.unicast(connID, messages.EventGameJoined, payload)
		return JoinResult{Role: RoleSpectator, Reconnected: true}, nil
	}

	if s.status == StatusWaiting {
		for _, color := range []chess.Color{chess.White, chess.Black} {
			if s.seat(color) == nil {
				s.takeSeat(&Seat{PlayerID: playerID, Name: name, Color: color, ConnID: connID})
				return JoinResult{Role: RolePlayer, Color: color}, nil
			}
		}
	}

	s.addSpectator(&Spectator{PlayerID: playerID, Name: name, ConnID: connID})
	return JoinResult{Role: RoleSpectator}, nil
}

// JoinAI seats a human as white against the computer as black and starts
// the game at once.
func (s *Session) JoinAI(connID, playerID, name, aiPlayerID, aiName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Type != TypeAI {
		return ErrNotAIGame
	}
	if s.status != StatusWaiting {
		return ErrGameNotActive
	}

	human := &Seat{PlayerID: playerID, Name: name, Color: chess.White, ConnID: connID}
	computer := &Seat{PlayerID: aiPlayerID, Name: aiName, Color: chess.Black, IsAI: true}
	s.setSeat(human)
	s.setSeat(computer)
	s.activate()

	payload := s.snapshot(playerID)
	payload.Color = string(human.Color)
	opponent := computer.info()
	payload.Opponent = &opponent
	s.unicast(connID, messages.EventGameJoined, payload)
	return nil
}

func (s *Session) takeSeat(seat *Seat) {
	s.setSeat(seat)

	var opponent *Seat
	if seat.Color == chess.Black {
		opponent = s.seat(chess.White)
		s.activate()
	}

	payload := s.snapshot(seat.PlayerID)
	payload.Color = string(seat.Color)
	if opponent != nil {
		info := opponent.info()
		payload.Opponent = &info
	}
	s.unicast(seat.ConnID, messages.EventGameJoined, payload)

	if opponent != nil {
		s.unicast(opponent.ConnID, messages.EventGameStarted, messages.GameStartedPayload{
			Opponent: seat.info(),
			Status:   string(s.status),
		})
	}

	s.logger.Info("player seated",
		zap.String("player_id", seat.PlayerID),
		zap.String("color", seat.Color.Name()),
	)
}

func (s *Session) addSpectator(sp *Spectator) {
	s.spectators = append(s.spectators, sp)

	payload := s.snapshot(sp.PlayerID)
	payload.IsSpectator = true
	payload.Players = s.players()
	s.unicast(sp.ConnID, messages.EventGameJoined, payload)

	s.broadcast(messages.EventSpectatorJoined, messages.SpectatorJoinedPayload{
		Name:  sp.Name,
		Count: len(s.spectators),
	})
}

// reconnectSeat rebinds a returning seat occupant and sends them the full
// state. Caller holds the mutex.
func (s *Session) reconnectSeat(seat *Seat, connID string) {
	seat.ConnID = connID
	if t := s.abandon[seatIndex(seat.Color)]; t != nil {
		t.Stop()
		s.abandon[seatIndex(seat.Color)] = nil
	}

	payload := s.snapshot(seat.PlayerID)
	payload.Color = string(seat.Color)
	payload.Reconnected = true
	if opp := s.seat(seat.Color.Opp()); opp != nil {
		info := opp.info()
		payload.Opponent = &info
	}
	s.unicast(connID, messages.EventGameJoined, payload)

	if opp := s.seat(seat.Color.Opp()); opp != nil && !opp.IsAI {
		s.unicast(opp.ConnID, messages.EventOpponentReconnected, messages.OpponentReconnectedPayload{
			Name: seat.Name,
		})
	}

	s.logger.Info("player reconnected", zap.String("player_id", seat.PlayerID))
}

// Disconnect unbinds the participant currently attached to connID and tells
// the rest of the room. The seat itself is kept for reconnection. It reports
// whether connID belonged to this room.
func (s *Session) Disconnect(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if connID == "" {
		return false
	}

	for _, seat := range s.seats {
		if seat == nil || seat.ConnID != connID {
			continue
		}
		seat.ConnID = ""
		s.broadcast(messages.EventPlayerDisconnected, messages.PlayerDisconnectedPayload{
			PlayerID: seat.PlayerID,
			Name:     seat.Name,
		})
		s.armAbandon(seat)
		s.logger.Info("player disconnected", zap.String("player_id", seat.PlayerID))
		return true
	}

	for _, sp := range s.spectators {
		if sp.ConnID != connID {
			continue
		}
		sp.ConnID = ""
		s.broadcast(messages.EventPlayerDisconnected, messages.PlayerDisconnectedPayload{
			PlayerID: sp.PlayerID,
			Name:     sp.Name,
		})
		return true
	}

	return false
}

// armAbandon starts the grace timer after which a disconnected seat loses.
// Caller holds the mutex.
func (s *Session) armAbandon(seat *Seat) {
	if s.abandonAfter <= 0 || s.status != StatusActive || seat.IsAI {
		return
	}

	idx := seatIndex(seat.Color)
	if s.abandon[idx] != nil {
		s.abandon[idx].Stop()
	}

	color := seat.Color
	s.abandon[idx] = time.AfterFunc(s.abandonAfter, func() {
		s.checkAbandoned(color)
	})
}

func (s *Session) checkAbandoned(color chess.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seat := s.seat(color)
	if s.status != StatusActive || seat == nil || seat.ConnID != "" {
		return
	}

	s.finish(StatusAbandoned, color.Opp(), "abandonment", seat.Name+" abandoned the game")
}

func seatIndex(c chess.Color) int {
	if c == chess.Black {
		return 1
	}
	return 0
}
