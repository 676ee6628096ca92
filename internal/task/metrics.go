package task

import (
	"sync"
	"time"
)

// Stats accumulates execution counters for one task type. Counters only
// grow; rates are derived on demand.
type Stats struct {
	Runs          int64         // Completed Run calls, success or failure
	Successes     int64         // Runs that returned a result
	Failures      int64         // Runs that exhausted their retry budget
	Attempts      int64         // Individual attempts across all runs
	Errors        int64         // Attempts that failed with a non-timeout error
	Timeouts      int64         // Attempts that hit the adaptive timeout
	TotalDuration time.Duration // Sum of successful attempt durations
}

// AvgDuration returns the mean duration of successful attempts.
func (s Stats) AvgDuration() time.Duration {
	if s.Successes == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Successes)
}

// ErrorRate returns the fraction of attempts that failed with an error.
func (s Stats) ErrorRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Attempts)
}

// TimeoutRate returns the fraction of attempts that timed out.
func (s Stats) TimeoutRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Timeouts) / float64(s.Attempts)
}

// Metrics tracks per-type execution stats. Safe for concurrent use;
// readers get copies.
type Metrics struct {
	mu      sync.Mutex
	perType map[Type]*Stats
}

// NewMetrics creates an empty Metrics registry.
func NewMetrics() *Metrics {
	return &Metrics{perType: make(map[Type]*Stats)}
}

// statsFor returns the mutable stats for a type. Caller holds the mutex.
func (m *Metrics) statsFor(t Type) *Stats {
	s, ok := m.perType[t]
	if !ok {
		s = &Stats{}
		m.perType[t] = s
	}
	return s
}

// RecordSuccess records a run that succeeded on its final attempt.
func (m *Metrics) RecordSuccess(t Type, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.statsFor(t)
	s.Runs++
	s.Successes++
	s.Attempts++
	s.TotalDuration += duration
}

// RecordFailure records a run that exhausted its retry budget.
func (m *Metrics) RecordFailure(t Type) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.statsFor(t)
	s.Runs++
	s.Failures++
}

// RecordError records one attempt failing with a non-timeout error.
func (m *Metrics) RecordError(t Type) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.statsFor(t)
	s.Attempts++
	s.Errors++
}

// RecordTimeout records one attempt hitting its timeout.
func (m *Metrics) RecordTimeout(t Type) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.statsFor(t)
	s.Attempts++
	s.Timeouts++
}

// Stats returns a copy of the stats for a type.
func (m *Metrics) Stats(t Type) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.perType[t]; ok {
		return *s
	}
	return Stats{}
}

// All returns a copy of the stats for every recorded type.
func (m *Metrics) All() map[Type]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Type]Stats, len(m.perType))
	for t, s := range m.perType {
		out[t] = *s
	}
	return out
}

// BatchStats accumulates counters for one batchable task type.
type BatchStats struct {
	BatchCount   int64         // Flushed windows
	SuccessCount int64         // Windows whose batched call succeeded
	FailureCount int64         // Windows that fell back to per-item runs
	ItemCount    int64         // Items across all flushed windows
	TotalTime    time.Duration // Wall time spent in batched calls
}

// AvgBatchSize returns the mean number of items per flushed window.
func (s BatchStats) AvgBatchSize() float64 {
	if s.BatchCount == 0 {
		return 0
	}
	return float64(s.ItemCount) / float64(s.BatchCount)
}

// BatchMetrics tracks per-type batch stats. Safe for concurrent use.
type BatchMetrics struct {
	mu      sync.Mutex
	perType map[Type]*BatchStats
}

// NewBatchMetrics creates an empty BatchMetrics registry.
func NewBatchMetrics() *BatchMetrics {
	return &BatchMetrics{perType: make(map[Type]*BatchStats)}
}

// RecordFlush records one flushed window.
func (m *BatchMetrics) RecordFlush(t Type, items int, elapsed time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.perType[t]
	if !ok {
		s = &BatchStats{}
		m.perType[t] = s
	}
	s.BatchCount++
	s.ItemCount += int64(items)
	s.TotalTime += elapsed
	if success {
		s.SuccessCount++
	} else {
		s.FailureCount++
	}
}

// Stats returns a copy of the batch stats for a type.
func (m *BatchMetrics) Stats(t Type) BatchStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.perType[t]; ok {
		return *s
	}
	return BatchStats{}
}
