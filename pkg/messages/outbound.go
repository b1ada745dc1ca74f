package messages

import (
	"time"

	"github.com/tecu23/arena-server/pkg/chess"
)

// Outbound event names
const (
	EventConnected           = "connected"
	EventGameJoined          = "gameJoined"
	EventGameStarted         = "gameStarted"
	EventMoveMade            = "moveMade"
	EventGameOver            = "gameOver"
	EventDrawOffered         = "drawOffered"
	EventDrawDeclined        = "drawDeclined"
	EventPlayerDisconnected  = "playerDisconnected"
	EventOpponentReconnected = "opponentReconnected"
	EventSpectatorJoined     = "spectatorJoined"
	EventMessageReceived     = "messageReceived"
	EventError               = "error"
)

// OutboundMessage is how we wrap responses before sending
// them to the client
type OutboundMessage struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// ConnectedPayload is the first frame every connection receives.
type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// PlayerInfo describes a seated player.
type PlayerInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	IsAI  bool   `json:"isAi,omitempty"`
}

// PlayerRef names a participant in draw notifications.
type PlayerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChatEntry is one line of the room chat.
type ChatEntry struct {
	ID         string    `json:"id"`
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// GameJoinedPayload is the snapshot a participant receives on join or
// reconnection.
type GameJoinedPayload struct {
	GameID      string              `json:"gameId"`
	PlayerID    string              `json:"playerId"`
	Color       string              `json:"color,omitempty"`
	IsSpectator bool                `json:"isSpectator,omitempty"`
	Reconnected bool                `json:"reconnected,omitempty"`
	GameType    string              `json:"gameType"`
	AILevel     int                 `json:"aiLevel,omitempty"`
	Status      string              `json:"status"`
	Turn        string              `json:"turn"`
	FEN         string              `json:"fen"`
	PGN         string              `json:"pgn"`
	Opponent    *PlayerInfo         `json:"opponent"`
	Players     []PlayerInfo        `json:"players,omitempty"`
	Moves       []chess.AppliedMove `json:"moves"`
	Chat        []ChatEntry         `json:"chat"`
	Clock       *chess.ClockReading `json:"clock,omitempty"`
}

// GameStartedPayload tells the first occupant who their opponent is.
type GameStartedPayload struct {
	Opponent PlayerInfo `json:"opponent"`
	Status   string     `json:"status"`
}

// MoveMadePayload is broadcast after every accepted move.
type MoveMadePayload struct {
	Move     chess.AppliedMove   `json:"move"`
	FEN      string              `json:"fen"`
	PGN      string              `json:"pgn"`
	GameOver bool                `json:"gameOver"`
	Result   string              `json:"result,omitempty"`
	Status   string              `json:"status"`
	Turn     string              `json:"turn"`
	Clock    *chess.ClockReading `json:"clock,omitempty"`
}

// GameOverPayload is broadcast exactly once per game.
type GameOverPayload struct {
	Result  string `json:"result"`
	Status  string `json:"status"`
	Winner  string `json:"winner,omitempty"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// DrawOfferedPayload is sent to the opponent of the offering player.
type DrawOfferedPayload struct {
	From PlayerRef `json:"from"`
}

// DrawDeclinedPayload is sent to the player whose offer was declined.
type DrawDeclinedPayload struct {
	By PlayerRef `json:"by"`
}

// PlayerDisconnectedPayload is sent to the rest of the room.
type PlayerDisconnectedPayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

// OpponentReconnectedPayload is sent to the other seat on reconnection.
type OpponentReconnectedPayload struct {
	Name string `json:"name"`
}

// SpectatorJoinedPayload is broadcast when a spectator enters the room.
type SpectatorJoinedPayload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ErrorPayload is sent to the originator of a rejected request only.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
