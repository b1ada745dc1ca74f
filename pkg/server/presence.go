package server

import (
	"sync"

	"github.com/tecu23/arena-server/pkg/game"
)

// Binding ties a connection to the identity it joined a game with.
type Binding struct {
	GameID   string
	PlayerID string
}

// Presence tracks which game and player each connection speaks for. A
// connection is bound to at most one game at a time.
type Presence struct {
	mu       sync.RWMutex
	bindings map[string]Binding
}

// NewPresence creates an empty presence registry
func NewPresence() *Presence {
	return &Presence{bindings: make(map[string]Binding)}
}

// Bind records connID as speaking for b. Any other connection that held the
// same identity loses it. The connection's previous binding is returned.
func (p *Presence) Bind(connID string, b Binding) (Binding, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, other := range p.bindings {
		if id != connID && other == b {
			delete(p.bindings, id)
		}
	}

	prev, had := p.bindings[connID]
	p.bindings[connID] = b
	return prev, had
}

// Lookup returns the binding of connID.
func (p *Presence) Lookup(connID string) (Binding, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.bindings[connID]
	return b, ok
}

// Remove forgets connID and returns what it was bound to.
func (p *Presence) Remove(connID string) (Binding, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.bindings[connID]
	delete(p.bindings, connID)
	return b, ok
}

// Resolve returns the player connID writes as in gameID. A claimed player
// id must match the bound one.
func (p *Presence) Resolve(connID, gameID, claimed string) (string, error) {
	b, ok := p.Lookup(connID)
	if !ok || b.GameID != gameID {
		return "", game.ErrNotInRoom
	}
	if claimed != "" && claimed != b.PlayerID {
		return "", game.ErrNotSeated
	}
	return b.PlayerID, nil
}

// Len returns the number of bound connections.
func (p *Presence) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.bindings)
}
