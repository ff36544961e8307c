package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hkco-server/internal/modules/telemetry/types"
)

const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Telemetry exposes the current reading and report counters to Prometheus.
type Telemetry struct {
	registry *prometheus.Registry

	mu       sync.Mutex
	last     time.Time
	location string
	observed bool

	temperature *prometheus.GaugeVec
	humidity    *prometheus.GaugeVec
	observedAt  prometheus.Gauge
	reports     *prometheus.CounterVec
}

func NewTelemetry() *Telemetry {
	m := &Telemetry{
		registry: prometheus.NewRegistry(),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hkco_storage_temperature_celsius",
			Help: "Last reported storage temperature (units: degrees Celsius)",
		}, []string{"location"}),
		humidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hkco_storage_humidity_percent",
			Help: "Last reported storage humidity (units: % of relative humidity)",
		}, []string{"location"}),
		observedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hkco_storage_reading_timestamp_seconds",
			Help: "Unix time at which the current reading was accepted",
		}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hkco_telemetry_reports_total",
			Help: "Reports received, by transport and outcome",
		}, []string{"source", "outcome"}),
	}

	m.registry.MustRegister(
		m.temperature,
		m.humidity,
		m.observedAt,
		m.reports,
		collectors.NewGoCollector(),
		collectors.NewBuildInfoCollector(),
	)
	return m
}

// ObserveReading replaces the exported reading. Only one location series is kept
// because the store only ever holds one reading. Readings older than the last
// observed one are ignored, since concurrent reports may arrive out of order.
func (m *Telemetry) ObserveReading(r types.Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ObservedAt.Before(m.last) {
		return
	}
	m.last = r.ObservedAt
	m.temperature.WithLabelValues(r.Location).Set(r.Temperature)
	m.humidity.WithLabelValues(r.Location).Set(r.Humidity)
	// Drop the old series only after the new one exists so scrapes never see a gap.
	if m.observed && m.location != r.Location {
		m.temperature.DeleteLabelValues(m.location)
		m.humidity.DeleteLabelValues(m.location)
	}
	m.location = r.Location
	m.observed = true
	m.observedAt.Set(float64(r.ObservedAt.UnixNano()) / 1e9)
}

func (m *Telemetry) CountReport(source types.Source, outcome string) {
	m.reports.WithLabelValues(string(source), outcome).Inc()
}

func (m *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
