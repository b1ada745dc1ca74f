package game

import (
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/tecu23/arena-server/pkg/messages"
)

// Resign ends the game in favor of the other color.
func (s *Session) Resign(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return ErrGameNotActive
	}
	seat, err := s.requireSeat(playerID)
	if err != nil {
		return err
	}

	s.finish(StatusResigned, seat.Color.Opp(), "resignation", seat.Name+" resigned")
	return nil
}

// OfferDraw records a draw offer and tells the opponent. The computer
// declines every offer immediately.
func (s *Session) OfferDraw(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return ErrGameNotActive
	}
	seat, err := s.requireSeat(playerID)
	if err != nil {
		return err
	}
	if s.pendingDraw != nil {
		return ErrDrawAlreadyOffered
	}

	opponent := s.seat(seat.Color.Opp())
	if opponent.IsAI {
		s.unicast(seat.ConnID, messages.EventDrawDeclined, messages.DrawDeclinedPayload{By: opponent.ref()})
		return nil
	}

	s.pendingDraw = &DrawOffer{Color: seat.Color, At: time.Now().UTC()}
	s.unicast(opponent.ConnID, messages.EventDrawOffered, messages.DrawOfferedPayload{From: seat.ref()})

	s.logger.Debug("draw offered", zap.String("player_id", playerID))
	return nil
}

// RespondToDraw answers the pending offer. Only the non-offering seat may
// answer.
func (s *Session) RespondToDraw(playerID string, accepted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return ErrGameNotActive
	}
	seat, err := s.requireSeat(playerID)
	if err != nil {
		return err
	}
	if s.pendingDraw == nil {
		return ErrNoDrawOffer
	}
	if s.pendingDraw.Color == seat.Color {
		return ErrOwnDrawOffer
	}

	offeror := s.seat(s.pendingDraw.Color)
	s.pendingDraw = nil

	if accepted {
		s.finish(StatusDraw, "", "agreement", "Game ended by agreement")
		return nil
	}

	s.unicast(offeror.ConnID, messages.EventDrawDeclined, messages.DrawDeclinedPayload{By: seat.ref()})
	return nil
}

// SendMessage appends a chat line from any room member and broadcasts it.
func (s *Session) SendMessage(playerID, text string) (messages.ChatEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var name string
	if seat := s.seatOf(playerID); seat != nil && !seat.IsAI {
		name = seat.Name
	} else if sp := s.spectatorOf(playerID); sp != nil {
		name = sp.Name
	} else {
		return messages.ChatEntry{}, ErrNotInRoom
	}

	now := time.Now().UTC()
	entry := messages.ChatEntry{
		ID:         ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		PlayerID:   playerID,
		PlayerName: name,
		Text:       text,
		Timestamp:  now,
	}

	s.chat = append(s.chat, entry)
	if len(s.chat) > maxChatEntries {
		s.chat = s.chat[len(s.chat)-maxChatEntries:]
	}

	s.broadcast(messages.EventMessageReceived, entry)
	return entry, nil
}
