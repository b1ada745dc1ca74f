// Package events provides an in-process publisher for session lifecycle events.
package events

import "sync"

// EventType represents the type of event
type EventType string

// Define event types
const (
	EventGameCreated      EventType = "GAME_CREATED"
	EventGameStarted      EventType = "GAME_STARTED"
	EventMoveApplied      EventType = "MOVE_APPLIED"
	EventAITurn           EventType = "AI_TURN"
	EventGameOver         EventType = "GAME_OVER"
	EventConnectionClosed EventType = "CONNECTION_CLOSED"
)

// all is the pseudo type handlers use to receive every event.
const all EventType = "*"

// Event represents an event in the system
type Event struct {
	Type    EventType
	GameID  string // Optional, can be empty for non-game events
	Payload interface{}
}

// GameCreatedPayload is published with EventGameCreated.
type GameCreatedPayload struct {
	Type        string
	TimeControl string
}

// GameOverPayload is published with EventGameOver.
type GameOverPayload struct {
	Status string
	Result string
	Reason string
}

// ConnectionClosedPayload is published with EventConnectionClosed for a
// connection that was bound to a game.
type ConnectionClosedPayload struct {
	ConnID   string
	PlayerID string
}

// Handler is a function that processes events
type Handler func(event Event)

// Publisher is the central event publisher
type Publisher struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Handler
	wg          sync.WaitGroup
}

// NewPublisher creates a new event publisher
func NewPublisher() *Publisher {
	return &Publisher{
		subscribers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for a specific event type
func (p *Publisher) Subscribe(eventType EventType, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.subscribers[eventType] = append(p.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (p *Publisher) SubscribeAll(handler Handler) {
	p.Subscribe(all, handler)
}

// Publish broadcasts an event to all subscribers including "all events"
// handlers. Handlers run concurrently and must not assume ordering.
func (p *Publisher) Publish(event Event) {
	p.mu.RLock()
	handlers := append([]Handler(nil), p.subscribers[event.Type]...)
	handlers = append(handlers, p.subscribers[all]...)
	p.mu.RUnlock()

	for _, handler := range handlers {
		p.wg.Add(1)
		go func(h Handler) {
			defer p.wg.Done()
			h(event)
		}(handler)
	}
}

// Wait blocks until every handler started so far has returned.
func (p *Publisher) Wait() {
	p.wg.Wait()
}
