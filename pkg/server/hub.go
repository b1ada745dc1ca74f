// Package server is the websocket gateway: it owns client connections,
// decodes inbound frames, resolves who is speaking and routes requests to
// the game manager.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tecu23/arena-server/pkg/chess"
	"github.com/tecu23/arena-server/pkg/events"
	"github.com/tecu23/arena-server/pkg/game"
	"github.com/tecu23/arena-server/pkg/manager"
	"github.com/tecu23/arena-server/pkg/messages"
	"github.com/tecu23/arena-server/pkg/metrics"
)

// Router is the set of game operations the hub dispatches to.
type Router interface {
	Join(connID string, p messages.JoinPayload) (manager.Binding, error)
	CreateAIGame(connID string, p messages.CreateAIGamePayload) (manager.Binding, error)
	Move(gameID, playerID string, req chess.MoveRequest) (game.MoveResult, error)
	Resign(gameID, playerID string) error
	OfferDraw(gameID, playerID string) error
	RespondToDraw(gameID, playerID string, accepted bool) error
	SendMessage(gameID, playerID, text string) error
	RequestAIMove(gameID string) error
	Disconnect(gameID, connID string)
}

// Hub keeps track of all active connections and routes their messages to
// the game manager. It implements game.Notifier.
type Hub struct {
	mu          sync.RWMutex // Mutex to protect direct access to the connections map.
	connections map[string]*Connection
	presence    *Presence

	router    Router
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewHub creates a new hub. The router is attached separately because the
// manager needs the hub as its notifier.
func NewHub(publisher *events.Publisher, m *metrics.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		presence:    NewPresence(),
		publisher:   publisher,
		metrics:     m,
		logger:      logger,
	}
}

// SetRouter attaches the operation router.
func (h *Hub) SetRouter(r Router) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.router = r
}

// Register adds a connection and greets it with its id.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	h.connections[conn.ID] = conn
	count := len(h.connections)
	h.mu.Unlock()

	h.metrics.ConnectionOpened()
	h.logger.Debug("connection registered",
		zap.String("connection_id", conn.ID),
		zap.Int("connections", count),
	)

	conn.SendJSON(messages.OutboundMessage{
		Event:   messages.EventConnected,
		Payload: messages.ConnectedPayload{ConnectionID: conn.ID},
	})
}

// Serve registers an upgraded websocket and starts its pumps. It returns
// immediately.
func (h *Hub) Serve(ws *websocket.Conn) *Connection {
	conn := NewConnection(ws, h, h.logger)
	h.Register(conn)

	go conn.WritePump()
	go conn.ReadPump()
	return conn
}

// Unregister removes a connection. If it was bound to a game, the rest of
// the room is told through a connection-closed event.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	_, ok := h.connections[conn.ID]
	delete(h.connections, conn.ID)
	h.mu.Unlock()

	if !ok {
		return
	}
	conn.close()
	h.metrics.ConnectionClosed()

	if b, bound := h.presence.Remove(conn.ID); bound {
		h.publisher.Publish(events.Event{
			Type:    events.EventConnectionClosed,
			GameID:  b.GameID,
			Payload: events.ConnectionClosedPayload{ConnID: conn.ID, PlayerID: b.PlayerID},
		})
	}

	h.logger.Debug("connection unregistered", zap.String("connection_id", conn.ID))
}

// Send implements game.Notifier. It never blocks.
func (h *Hub) Send(connID string, msg messages.OutboundMessage) {
	h.mu.RLock()
	conn, ok := h.connections[connID]
	h.mu.RUnlock()

	if ok {
		conn.SendJSON(msg)
	}
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Shutdown closes every connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	h.logger.Info("hub shut down", zap.Int("connections", len(conns)))
}

// HandleMessage decodes one inbound frame and dispatches it. Every failure,
// including a panic, becomes an error frame for the sender only.
func (h *Hub) HandleMessage(conn *Connection, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic while handling message",
				zap.String("connection_id", conn.ID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			h.sendError(conn, fmt.Errorf("unexpected failure: %v", r))
		}
	}()

	var inbound messages.InboundMessage
	if err := json.Unmarshal(raw, &inbound); err != nil {
		h.sendError(conn, fmt.Errorf("%w: malformed frame", messages.ErrInvalidPayload))
		return
	}

	if err := h.dispatch(conn, inbound); err != nil {
		h.sendError(conn, err)
	}
}

func (h *Hub) dispatch(conn *Connection, msg messages.InboundMessage) error {
	h.mu.RLock()
	router := h.router
	h.mu.RUnlock()
	if router == nil {
		return errors.New("server is not ready")
	}

	switch msg.Type {
	case messages.TypeJoin:
		var p messages.JoinPayload
		if err := messages.Decode(msg.Payload, &p); err != nil {
			return err
		}
		b, err := router.Join(conn.ID, p)
		if err != nil {
			return err
		}
		h.bind(router, conn, b)

	case messages.TypeCreateAIGame:
		var p messages.CreateAIGamePayload
		if err := messages.Decode(msg.Payload, &p); err != nil {
			return err
		}
		b, err := router.CreateAIGame(conn.ID, p)
		if err != nil {
			return err
		}
		h.bind(router, conn, b)

	case messages.TypeMove:
		var p messages.MovePayload
		if err := messages.Decode(msg.Payload, &p); err != nil {
			return err
		}
		playerID, err := h.presence.Resolve(conn.ID, p.GameID, p.PlayerID)
		if err != nil {
			return err
		}
		_, err = router.Move(p.GameID, playerID, p.Move)
		return err

	case messages.TypeResign, messages.TypeOfferDraw:
		var p messages.GameActionPayload
		if err := messages.Decode(msg.Payload, &p); err != nil {
			return err
		}
		playerID, err := h.presence.Resolve(conn.ID, p.GameID, p.PlayerID)
		if err != nil {
			return err
		}
		if msg.Type == messages.TypeResign {
			return router.Resign(p.GameID, playerID)
		}
		return router.OfferDraw(p.GameID, playerID)

	case messages.TypeRespondToDraw:
		var p messages.DrawResponsePayload
		if err := messages.Decode(msg.Payload, &p); err != nil {
			return err
		}
		playerID, err := h.presence.Resolve(conn.ID, p.GameID, p.PlayerID)
		if err != nil {
			return err
		}
		return router.RespondToDraw(p.GameID, playerID, *p.Accepted)

	case messages.TypeSendMessage:
		var p messages.ChatPayload
		if err := messages.Decode(msg.Payload, &p); err != nil {
			return err
		}
		playerID, err := h.presence.Resolve(conn.ID, p.GameID, p.PlayerID)
		if err != nil {
			return err
		}
		return router.SendMessage(p.GameID, playerID, p.Text)

	case messages.TypeRequestAIMove:
		var p messages.RequestAIMovePayload
		if err := messages.Decode(msg.Payload, &p); err != nil {
			return err
		}
		if _, err := h.presence.Resolve(conn.ID, p.GameID, ""); err != nil {
			return err
		}
		return router.RequestAIMove(p.GameID)

	default:
		return fmt.Errorf("%w: unknown message type %q", messages.ErrInvalidPayload, msg.Type)
	}

	return nil
}

// bind records the identity a connection joined with, leaving any game it
// was in before.
func (h *Hub) bind(router Router, conn *Connection, b manager.Binding) {
	prev, had := h.presence.Bind(conn.ID, Binding{GameID: b.GameID, PlayerID: b.PlayerID})
	if had && prev.GameID != b.GameID {
		router.Disconnect(prev.GameID, conn.ID)
	}
}

func (h *Hub) sendError(conn *Connection, err error) {
	kind := game.Kind(err)
	h.metrics.Rejected(kind)

	message := err.Error()
	if kind == "internal" {
		h.logger.Error("request failed", zap.String("connection_id", conn.ID), zap.Error(err))
		message = "internal server error"
	} else {
		h.logger.Debug("request rejected",
			zap.String("connection_id", conn.ID),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}

	conn.SendJSON(messages.OutboundMessage{
		Event:   messages.EventError,
		Payload: messages.ErrorPayload{Message: message, Code: kind},
	})
}
