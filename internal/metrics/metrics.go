package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the integration's prometheus collectors
type Metrics struct {
	gatherer prometheus.Gatherer

	classificationsTotal *prometheus.CounterVec
	groupUpdatesTotal    *prometheus.CounterVec
	cmdbRequestDuration  prometheus.Histogram
}

// NewMetrics creates and registers collectors on reg. A nil registry gets a private one.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		gatherer: reg,
		classificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicenow_classifications_total",
				Help: "Node classification requests by result (classified, empty, invalid, error)",
			},
			[]string{"result"},
		),
		groupUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicenow_group_updates_total",
				Help: "Environment rule updates by result (updated, skipped, failed)",
			},
			[]string{"result"},
		),
		cmdbRequestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "servicenow_cmdb_request_duration_seconds",
				Help:    "Latency of ServiceNow table API requests",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	collectors := []prometheus.Collector{
		m.classificationsTotal,
		m.groupUpdatesTotal,
		m.cmdbRequestDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) IncClassifications(result string) {
	m.classificationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncGroupUpdates(result string) {
	m.groupUpdatesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCMDBRequest(d time.Duration) {
	m.cmdbRequestDuration.Observe(d.Seconds())
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
