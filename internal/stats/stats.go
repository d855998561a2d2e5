package stats

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// RunStats tracks the outcome of one environment rule run
type RunStats struct {
	StartTime time.Time
	Requested uint64
	Updated   uint64
	Skipped   uint64
	Failed    uint64
}

// NewRunStats creates a new stats collector
func NewRunStats() *RunStats {
	return &RunStats{
		StartTime: time.Now(),
	}
}

func (s *RunStats) SetRequested(n int) {
	atomic.StoreUint64(&s.Requested, uint64(n))
}

func (s *RunStats) IncUpdated() {
	atomic.AddUint64(&s.Updated, 1)
}

func (s *RunStats) IncSkipped() {
	atomic.AddUint64(&s.Skipped, 1)
}

func (s *RunStats) IncFailed() {
	atomic.AddUint64(&s.Failed, 1)
}

// GetStats returns current statistics
func (s *RunStats) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"duration":  time.Since(s.StartTime).String(),
		"requested": atomic.LoadUint64(&s.Requested),
		"updated":   atomic.LoadUint64(&s.Updated),
		"skipped":   atomic.LoadUint64(&s.Skipped),
		"failed":    atomic.LoadUint64(&s.Failed),
	}
}

// GetStatsJSON returns stats as JSON
func (s *RunStats) GetStatsJSON() ([]byte, error) {
	return json.Marshal(s.GetStats())
}
