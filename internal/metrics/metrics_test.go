package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	assert.NoError(t, err)
	assert.NotNil(t, m)

	// registering twice on the same registry must fail
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestNewMetricsNilRegistry(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)
	m.IncGroupUpdates("updated")
}

func TestMetricsIncrementCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.IncClassifications("classified")
	m.IncClassifications("classified")
	m.IncClassifications("empty")
	m.IncGroupUpdates("updated")
	m.IncGroupUpdates("skipped")
	m.IncGroupUpdates("failed")
	m.ObserveCMDBRequest(120 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.classificationsTotal.WithLabelValues("classified")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.classificationsTotal.WithLabelValues("empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.groupUpdatesTotal.WithLabelValues("failed")))
}

func TestWriteTextfile(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	m.IncGroupUpdates("updated")

	path := filepath.Join(t.TempDir(), "servicenow.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `servicenow_group_updates_total{result="updated"} 1`)
}
