package engine

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrPoolClosed is returned once the pool has been shut down.
var ErrPoolClosed = errors.New("engine pool closed")

// Pool manages multiple chess engines
type Pool struct {
	engines    map[string]*UCIEngine
	available  chan string // IDs of available engines
	maxEngines int         // Maximum number of engine to create
	enginePath string      // Path to the engine executable
	closed     bool
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewEnginePool creates a new engine pool
func NewEnginePool(enginePath string, maxEngines int, logger *zap.Logger) *Pool {
	if maxEngines < 1 {
		maxEngines = 1
	}
	return &Pool{
		engines:    make(map[string]*UCIEngine),
		available:  make(chan string, maxEngines),
		maxEngines: maxEngines,
		enginePath: enginePath,
		logger:     logger,
	}
}

// Initialize creates the initial pool of engines
func (p *Pool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < p.maxEngines; i++ {
		engine, err := NewUCIEngine(ctx, p.enginePath, p.logger)
		if err != nil {
			return err
		}

		p.engines[engine.ID.String()] = engine
		p.available <- engine.ID.String()
	}

	p.logger.Info("Engine pool initialized", zap.Int("count", len(p.engines)))
	return nil
}

// GetEngine retrieves an available engine from the pool, waiting until one is
// free or ctx is done.
func (p *Pool) GetEngine(ctx context.Context) (*UCIEngine, error) {
	select {
	case engineID, ok := <-p.available:
		if !ok {
			return nil, ErrPoolClosed
		}

		p.mu.RLock()
		engine, exists := p.engines[engineID]
		p.mu.RUnlock()

		if !exists {
			return nil, errors.New("invalid engine ID from pool")
		}

		p.logger.Debug("Engine retrieved from pool", zap.String("engine_id", engineID))
		return engine, nil

	case <-ctx.Done():
		return nil, errors.New("no engines available in the pool")
	}
}

// ReturnEngine returns an engine to the pool
func (p *Pool) ReturnEngine(engineID string) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, exists := p.engines[engineID]; !exists || p.closed {
		return
	}

	// Non-blocking send to available channel
	select {
	case p.available <- engineID:
		p.logger.Debug("Engine returned to pool", zap.String("engine_id", engineID))
	default:
		p.logger.Warn("Failed to return engine to pool, channel full",
			zap.String("engine_id", engineID))
	}
}

// BestMove borrows an engine for one search.
func (p *Pool) BestMove(ctx context.Context, fen string, opts SearchOptions) (string, error) {
	engine, err := p.GetEngine(ctx)
	if err != nil {
		return "", err
	}
	defer p.ReturnEngine(engine.ID.String())

	return engine.BestMove(ctx, fen, opts)
}

// Shutdown closes all engines in the pool
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	for id, engine := range p.engines {
		if err := engine.Close(); err != nil {
			p.logger.Error("Error closing engine",
				zap.String("engine_id", id),
				zap.Error(err))
		}
	}

	close(p.available)
	p.engines = make(map[string]*UCIEngine)

	p.logger.Info("Engine pool shut down")
}
