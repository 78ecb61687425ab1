package generate

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Generation outcomes used as metric labels
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeSuperseded = "superseded"
	OutcomeInvalid    = "invalid"
)

// Fetch sources used as metric labels
const (
	SourceAvatar   = "avatar"
	SourceIdentity = "identity"
	SourceStats    = "stats"
)

// Metrics holds Prometheus metrics for card generation
type Metrics struct {
	registry *prometheus.Registry

	generations     *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	fetchErrors     *prometheus.CounterVec
	highVolumeCards prometheus.Counter
	lastVolume      prometheus.Gauge
}

// NewMetrics creates the generation metrics on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "peercard_generations_total",
				Help: "Total number of card generations by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "peercard_generation_duration_seconds",
				Help:    "Card generation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		fetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "peercard_fetch_errors_total",
				Help: "Total number of failed external lookups",
			},
			[]string{"source"},
		),
		highVolumeCards: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "peercard_high_volume_cards_total",
				Help: "Number of cards built with the high-volume variant",
			},
		),
		lastVolume: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "peercard_last_volume_usd",
				Help: "Volume of the most recently generated card",
			},
		),
	}

	m.registry.MustRegister(
		m.generations,
		m.duration,
		m.fetchErrors,
		m.highVolumeCards,
		m.lastVolume,
	)

	return m
}

// Registry exposes the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics in the node exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func (m *Metrics) observe(outcome string, seconds float64) {
	m.generations.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(seconds)
}

func (m *Metrics) fetchFailed(source string) {
	m.fetchErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) cardBuilt(volume decimal.Decimal, highVolume bool) {
	v, _ := volume.Float64()
	m.lastVolume.Set(v)
	if highVolume {
		m.highVolumeCards.Inc()
	}
}
