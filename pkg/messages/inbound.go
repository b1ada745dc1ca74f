// Package messages defines the websocket wire format.
package messages

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tecu23/arena-server/pkg/chess"
)

// ErrInvalidPayload is wrapped by every decoding or validation failure.
var ErrInvalidPayload = errors.New("invalid payload")

// Inbound message types
const (
	TypeJoin          = "join"
	TypeMove          = "move"
	TypeResign        = "resign"
	TypeOfferDraw     = "offerDraw"
	TypeRespondToDraw = "respondToDraw"
	TypeSendMessage   = "sendMessage"
	TypeCreateAIGame  = "createAIGame"
	TypeRequestAIMove = "requestAIMove"
)

// Limits applied to client supplied text.
const (
	MaxNameLength    = 40
	MaxMessageLength = 500
	MaxPlayerIDLen   = 64
	DefaultAILevel   = 3
	MinAILevel       = 1
	MaxAILevel       = 10
)

var (
	squarePattern   = regexp.MustCompile(`^[a-h][1-8]$`)
	playerIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// InboundMessage is the generic wrapper for messages coming from the client.
// The "type" field tells us the action; "payload" is the data we parse further.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Validator is implemented by every inbound payload.
type Validator interface {
	Validate() error
}

// Decode strictly unmarshals raw into v and validates it.
func Decode(raw json.RawMessage, v Validator) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%w: missing payload", ErrInvalidPayload)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return v.Validate()
}

// GameRef is embedded in every payload that targets an existing game.
type GameRef struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId,omitempty"`
}

// Validate checks the game and optional player identifiers.
func (r *GameRef) Validate() error {
	if err := validateGameID(r.GameID); err != nil {
		return err
	}
	return validatePlayerID(r.PlayerID)
}

// JoinPayload represents the payload for joining (or creating) a game
type JoinPayload struct {
	GameID      string             `json:"gameId"`
	PlayerName  string             `json:"playerName"`
	PlayerID    string             `json:"playerId,omitempty"`
	TimeControl *chess.TimeControl `json:"timeControl,omitempty"`
}

// Validate normalizes the display name and checks identifiers.
func (p *JoinPayload) Validate() error {
	if err := validateGameID(p.GameID); err != nil {
		return err
	}
	if err := validatePlayerID(p.PlayerID); err != nil {
		return err
	}
	name, err := normalizeName(p.PlayerName, "Guest")
	if err != nil {
		return err
	}
	p.PlayerName = name
	return validateTimeControl(p.TimeControl)
}

// MovePayload represents the payload for making a move during a game
type MovePayload struct {
	GameRef
	Move chess.MoveRequest `json:"move"`
}

// Validate checks the coordinates and the promotion piece.
func (p *MovePayload) Validate() error {
	if err := p.GameRef.Validate(); err != nil {
		return err
	}

	p.Move.From = strings.ToLower(p.Move.From)
	p.Move.To = strings.ToLower(p.Move.To)
	p.Move.Promotion = strings.ToLower(p.Move.Promotion)

	if !squarePattern.MatchString(p.Move.From) || !squarePattern.MatchString(p.Move.To) {
		return fmt.Errorf("%w: move squares must look like e2", ErrInvalidPayload)
	}
	switch p.Move.Promotion {
	case "", "q", "r", "b", "n":
	default:
		return fmt.Errorf("%w: promotion must be one of q, r, b, n", ErrInvalidPayload)
	}
	return nil
}

// GameActionPayload is used by resign and offerDraw.
type GameActionPayload struct {
	GameRef
}

// DrawResponsePayload answers a pending draw offer.
type DrawResponsePayload struct {
	GameRef
	Accepted *bool `json:"accepted"`
}

// Validate requires an explicit answer.
func (p *DrawResponsePayload) Validate() error {
	if err := p.GameRef.Validate(); err != nil {
		return err
	}
	if p.Accepted == nil {
		return fmt.Errorf("%w: accepted is required", ErrInvalidPayload)
	}
	return nil
}

// ChatPayload carries a chat line.
type ChatPayload struct {
	GameRef
	Text string `json:"text"`
}

// Validate trims the text and enforces the length limit.
func (p *ChatPayload) Validate() error {
	if err := p.GameRef.Validate(); err != nil {
		return err
	}
	p.Text = strings.TrimSpace(p.Text)
	if p.Text == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidPayload)
	}
	if utf8.RuneCountInString(p.Text) > MaxMessageLength {
		return fmt.Errorf("%w: text exceeds %d characters", ErrInvalidPayload, MaxMessageLength)
	}
	return nil
}

// CreateAIGamePayload starts a game against the computer.
type CreateAIGamePayload struct {
	PlayerName  string             `json:"playerName"`
	PlayerID    string             `json:"playerId,omitempty"`
	AILevel     int                `json:"aiLevel,omitempty"`
	TimeControl *chess.TimeControl `json:"timeControl,omitempty"`
}

// Validate applies defaults and checks the level range.
func (p *CreateAIGamePayload) Validate() error {
	if err := validatePlayerID(p.PlayerID); err != nil {
		return err
	}
	name, err := normalizeName(p.PlayerName, "Guest")
	if err != nil {
		return err
	}
	p.PlayerName = name

	if p.AILevel == 0 {
		p.AILevel = DefaultAILevel
	}
	if p.AILevel < MinAILevel || p.AILevel > MaxAILevel {
		return fmt.Errorf("%w: aiLevel must be between %d and %d", ErrInvalidPayload, MinAILevel, MaxAILevel)
	}
	return validateTimeControl(p.TimeControl)
}

// RequestAIMovePayload asks the server to let the computer move.
type RequestAIMovePayload struct {
	GameID string `json:"gameId"`
}

// Validate checks the game identifier.
func (p *RequestAIMovePayload) Validate() error {
	return validateGameID(p.GameID)
}

func validateGameID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: gameId is required", ErrInvalidPayload)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: gameId must be a uuid", ErrInvalidPayload)
	}
	return nil
}

func validatePlayerID(id string) error {
	if id == "" {
		return nil
	}
	if len(id) > MaxPlayerIDLen || !playerIDPattern.MatchString(id) {
		return fmt.Errorf("%w: malformed playerId", ErrInvalidPayload)
	}
	return nil
}

func normalizeName(name, fallback string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback, nil
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("%w: playerName exceeds %d characters", ErrInvalidPayload, MaxNameLength)
	}
	return name, nil
}

func validateTimeControl(tc *chess.TimeControl) error {
	if tc == nil {
		return nil
	}
	if err := tc.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
