package mirror

import (
	"sync/atomic"
	"time"
)

// Metrics tracks mirroring counters
type Metrics struct {
	filesSynced   int64
	filesFailed   int64
	filesCreated  int64
	filesUpdated  int64
	treeRuns      int64
	remoteCalls   int64
	remoteErrors  int64
	remoteLatency int64 // Total latency in nanoseconds
}

// MetricsSnapshot is the JSON view of Metrics.
type MetricsSnapshot struct {
	FilesSynced        int64   `json:"files_synced"`
	FilesFailed        int64   `json:"files_failed"`
	FilesCreated       int64   `json:"files_created"`
	FilesUpdated       int64   `json:"files_updated"`
	TreeRuns           int64   `json:"tree_runs"`
	RemoteCalls        int64   `json:"remote_calls"`
	RemoteErrors       int64   `json:"remote_errors"`
	AvgRemoteLatencyMs float64 `json:"avg_remote_latency_ms"`
	RemoteErrorRate    float64 `json:"remote_error_rate"`
}

var globalMetrics = &Metrics{}

// GetMetrics returns the current metrics snapshot
func GetMetrics() MetricsSnapshot {
	m := Metrics{
		filesSynced:   atomic.LoadInt64(&globalMetrics.filesSynced),
		filesFailed:   atomic.LoadInt64(&globalMetrics.filesFailed),
		filesCreated:  atomic.LoadInt64(&globalMetrics.filesCreated),
		filesUpdated:  atomic.LoadInt64(&globalMetrics.filesUpdated),
		treeRuns:      atomic.LoadInt64(&globalMetrics.treeRuns),
		remoteCalls:   atomic.LoadInt64(&globalMetrics.remoteCalls),
		remoteErrors:  atomic.LoadInt64(&globalMetrics.remoteErrors),
		remoteLatency: atomic.LoadInt64(&globalMetrics.remoteLatency),
	}
	return MetricsSnapshot{
		FilesSynced:        m.filesSynced,
		FilesFailed:        m.filesFailed,
		FilesCreated:       m.filesCreated,
		FilesUpdated:       m.filesUpdated,
		TreeRuns:           m.treeRuns,
		RemoteCalls:        m.remoteCalls,
		RemoteErrors:       m.remoteErrors,
		AvgRemoteLatencyMs: m.AverageRemoteLatency(),
		RemoteErrorRate:    m.RemoteErrorRate(),
	}
}

// ResetMetrics resets all metrics (useful for testing)
func ResetMetrics() {
	atomic.StoreInt64(&globalMetrics.filesSynced, 0)
	atomic.StoreInt64(&globalMetrics.filesFailed, 0)
	atomic.StoreInt64(&globalMetrics.filesCreated, 0)
	atomic.StoreInt64(&globalMetrics.filesUpdated, 0)
	atomic.StoreInt64(&globalMetrics.treeRuns, 0)
	atomic.StoreInt64(&globalMetrics.remoteCalls, 0)
	atomic.StoreInt64(&globalMetrics.remoteErrors, 0)
	atomic.StoreInt64(&globalMetrics.remoteLatency, 0)
}

func recordRemoteCall(duration time.Duration, err error) {
	atomic.AddInt64(&globalMetrics.remoteCalls, 1)
	atomic.AddInt64(&globalMetrics.remoteLatency, duration.Nanoseconds())
	if err != nil {
		atomic.AddInt64(&globalMetrics.remoteErrors, 1)
	}
}

func recordFileSync(res *Result, err error) {
	if err != nil {
		atomic.AddInt64(&globalMetrics.filesFailed, 1)
		return
	}
	atomic.AddInt64(&globalMetrics.filesSynced, 1)
	if res != nil && res.Created {
		atomic.AddInt64(&globalMetrics.filesCreated, 1)
	} else {
		atomic.AddInt64(&globalMetrics.filesUpdated, 1)
	}
}

func recordTreeRun() {
	atomic.AddInt64(&globalMetrics.treeRuns, 1)
}

// AverageRemoteLatency returns the average latency in milliseconds
func (m Metrics) AverageRemoteLatency() float64 {
	if m.remoteCalls == 0 {
		return 0
	}
	avgNs := float64(m.remoteLatency) / float64(m.remoteCalls)
	return avgNs / 1e6
}

// RemoteErrorRate returns the error rate as a percentage
func (m Metrics) RemoteErrorRate() float64 {
	if m.remoteCalls == 0 {
		return 0
	}
	return float64(m.remoteErrors) / float64(m.remoteCalls) * 100
}
