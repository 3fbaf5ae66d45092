// Package metrics records channel counters in an embedded time-series store.
// All functions are no-ops until InitMetrics succeeds.
package metrics

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
)

var (
	mu      sync.RWMutex
	storage tstorage.Storage
)

// InitMetrics opens the time-series store under {workdir}/data/metrics.
func InitMetrics(workdir string) error {
	st, err := tstorage.NewStorage(
		tstorage.WithDataPath(filepath.Join(workdir, "data", "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithPartitionDuration(time.Hour),
		tstorage.WithRetention(30*24*time.Hour),
	)
	if err != nil {
		return err
	}
	mu.Lock()
	old := storage
	storage = st
	mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Close flushes and closes the store.
func Close() error {
	mu.Lock()
	st := storage
	storage = nil
	mu.Unlock()
	if st == nil {
		return nil
	}
	return st.Close()
}

// Incr adds one occurrence of the named counter at the current time.
func Incr(name string) {
	Add(name, 1)
}

// Add records value for the named counter at the current time.
func Add(name string, value float64) {
	mu.RLock()
	st := storage
	mu.RUnlock()
	if st == nil {
		return
	}
	_ = st.InsertRows([]tstorage.Row{{
		Metric:    name,
		DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: value},
	}})
}

// SetGauge records an absolute value; gauges and counters share storage.
func SetGauge(name string, value int64) {
	Add(name, float64(value))
}

// Sum returns the sum of all points recorded for name within [since, now].
func Sum(name string, since time.Time) float64 {
	mu.RLock()
	st := storage
	mu.RUnlock()
	if st == nil {
		return 0
	}
	points, err := st.Select(name, nil, since.Unix(), time.Now().Unix()+1)
	if err != nil {
		// tstorage.ErrNoDataPoints when nothing was recorded in the window
		return 0
	}
	var total float64
	for _, p := range points {
		total += p.Value
	}
	return total
}
