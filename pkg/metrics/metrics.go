// Package metrics exposes Prometheus collectors for games, moves and
// connections.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "arena"

// Metrics groups the server's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	GamesCreated  *prometheus.CounterVec
	GamesFinished *prometheus.CounterVec
	ActiveGames   prometheus.Gauge
	MovesApplied  prometheus.Counter
	Connections   prometheus.Gauge
	Rejections    *prometheus.CounterVec

	reg prometheus.Registerer
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GamesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_created_total",
			Help:      "Games created, by game type.",
		}, []string{"type"}),
		GamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Games that reached a terminal status, by status.",
		}, []string{"status"}),
		ActiveGames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_games",
			Help:      "Games currently in play.",
		}),
		MovesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_applied_total",
			Help:      "Moves accepted by the rule engine.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open websocket connections.",
		}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_requests_total",
			Help:      "Inbound requests answered with an error, by error kind.",
		}, []string{"kind"}),
		reg: reg,
	}

	reg.MustRegister(
		m.GamesCreated,
		m.GamesFinished,
		m.ActiveGames,
		m.MovesApplied,
		m.Connections,
		m.Rejections,
	)
	return m
}

// GameCreated counts a new game of the given type.
func (m *Metrics) GameCreated(gameType string) {
	if m == nil {
		return
	}
	m.GamesCreated.WithLabelValues(gameType).Inc()
}

// GameStarted marks a game as in play.
func (m *Metrics) GameStarted() {
	if m == nil {
		return
	}
	m.ActiveGames.Inc()
}

// GameFinished counts a terminal status and takes the game out of play.
func (m *Metrics) GameFinished(status string) {
	if m == nil {
		return
	}
	m.GamesFinished.WithLabelValues(status).Inc()
	m.ActiveGames.Dec()
}

// MoveApplied counts an accepted move.
func (m *Metrics) MoveApplied() {
	if m == nil {
		return
	}
	m.MovesApplied.Inc()
}

// ConnectionOpened tracks a new websocket connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

// ConnectionClosed tracks a closed websocket connection.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}

// Rejected counts a request answered with an error of the given kind.
func (m *Metrics) Rejected(kind string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(kind).Inc()
}

// TrackSessions exposes the number of sessions held in memory, waiting,
// active or finished but not yet evicted, as read from count at scrape time.
func (m *Metrics) TrackSessions(count func() int) {
	if m == nil || m.reg == nil {
		return
	}
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_sessions",
		Help:      "Sessions held in memory, including finished ones awaiting eviction.",
	}, func() float64 {
		return float64(count())
	}))
}
