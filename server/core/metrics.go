package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics with bounded cardinality (no per-player labels)
type Metrics struct {
	TickDuration prometheus.Histogram
	Players      prometheus.Gauge
	Lasers       prometheus.Gauge
	Rejections   *prometheus.CounterVec
	Kills        prometheus.Counter
	Rounds       prometheus.Counter
	Sessions     prometheus.Counter
	DroppedInput prometheus.Counter
}

// NewMetrics registers the server metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "galaxia_tick_duration_seconds",
			Help:    "Time spent in one simulation tick",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
		}),
		Players: f.NewGauge(prometheus.GaugeOpts{
			Name: "galaxia_players",
			Help: "Approved players in the current session",
		}),
		Lasers: f.NewGauge(prometheus.GaugeOpts{
			Name: "galaxia_lasers",
			Help: "Live lasers in the current session",
		}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "galaxia_join_rejected_total",
			Help: "Join requests rejected during approval",
		}, []string{"reason"}),
		Kills: f.NewCounter(prometheus.CounterOpts{
			Name: "galaxia_kills_total",
			Help: "Players killed",
		}),
		Rounds: f.NewCounter(prometheus.CounterOpts{
			Name: "galaxia_rounds_started_total",
			Help: "Rounds started",
		}),
		Sessions: f.NewCounter(prometheus.CounterOpts{
			Name: "galaxia_sessions_ended_total",
			Help: "Sessions torn down after the host left",
		}),
		DroppedInput: f.NewCounter(prometheus.CounterOpts{
			Name: "galaxia_input_dropped_total",
			Help: "Client requests dropped by rate limiting or a full queue",
		}),
	}
}
