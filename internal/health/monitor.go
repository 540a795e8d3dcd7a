// Package health keeps a running estimate of API latency and derives an
// adaptive request timeout from it.
package health

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/existflow/keepsession/internal/kv"
	"github.com/existflow/keepsession/internal/logger"
	"github.com/existflow/keepsession/internal/metrics"
)

// Score is a coarse classification of recent latency
type Score string

const (
	Good     Score = "good"
	Slow     Score = "slow"
	Critical Score = "critical"
)

const (
	// DefaultAverage seeds the moving average before any sample exists.
	DefaultAverage = 2000 * time.Millisecond
	// SampleWeight is the weight of the newest sample in the average.
	SampleWeight = 0.3

	slowThreshold     = 5000 * time.Millisecond
	criticalThreshold = 10000 * time.Millisecond

	slowTimeout     = 25 * time.Second
	criticalTimeout = 45 * time.Second
)

// Record is the persisted health estimate
type Record struct {
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	LastCheckedAt     int64   `json:"last_checked_at"` // unix millis
	HealthScore       Score   `json:"health_score"`
}

// Classify maps an average response time onto a Score. Both ends of the
// slow band are inclusive.
func Classify(avg time.Duration) Score {
	switch {
	case avg < slowThreshold:
		return Good
	case avg <= criticalThreshold:
		return Slow
	default:
		return Critical
	}
}

// Monitor tracks the moving average. The record is re-read from and
// re-written to the store on every sample, so it never expires.
type Monitor struct {
	mu      sync.Mutex
	kv      kv.Store
	now     func() time.Time
	metrics *metrics.Metrics
	log     *logger.Logger
}

// Option configures a Monitor
type Option func(*Monitor)

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithMetrics publishes the average to m
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

// New creates a monitor over kv
func New(store kv.Store, opts ...Option) *Monitor {
	m := &Monitor{
		kv:  store,
		now: time.Now,
		log: logger.Component("health"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecordSample folds one response time into the average and persists it.
func (m *Monitor) RecordSample(d time.Duration) Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := DefaultAverage.Seconds() * 1000
	if rec, ok := m.load(); ok {
		prev = rec.AvgResponseTimeMs
	}
	sample := float64(d) / float64(time.Millisecond)
	avg := prev*(1-SampleWeight) + sample*SampleWeight

	rec := Record{
		AvgResponseTimeMs: avg,
		LastCheckedAt:     m.now().UnixMilli(),
		HealthScore:       Classify(msDuration(avg)),
	}
	m.save(rec)
	m.metrics.SetHealthAverage(avg)

	if rec.HealthScore != Good {
		m.log.Debug("Server responding slowly",
			logger.F("avg_ms", int64(avg)), logger.F("score", rec.HealthScore))
	}
	return rec
}

// Current returns the stored record, or a default "good" record.
func (m *Monitor) Current() Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.load(); ok {
		return rec
	}
	return Record{
		AvgResponseTimeMs: DefaultAverage.Seconds() * 1000,
		HealthScore:       Good,
	}
}

// AdaptiveTimeout stretches base when the server has recently been slow.
func (m *Monitor) AdaptiveTimeout(base time.Duration) time.Duration {
	switch m.Current().HealthScore {
	case Critical:
		return max(base, criticalTimeout)
	case Slow:
		return max(base, slowTimeout)
	default:
		return base
	}
}

func (m *Monitor) load() (Record, bool) {
	raw, ok, err := m.kv.Get(kv.KeyServerHealth)
	if err != nil {
		m.log.Warn("Failed to read health record", logger.F("error", err))
		return Record{}, false
	}
	if !ok {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		m.log.Warn("Malformed health record", logger.F("error", err))
		return Record{}, false
	}
	// The score is always derived, never trusted from storage.
	rec.HealthScore = Classify(msDuration(rec.AvgResponseTimeMs))
	return rec, true
}

func (m *Monitor) save(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := m.kv.Set(kv.KeyServerHealth, string(data)); err != nil {
		m.log.Warn("Failed to persist health record", logger.F("error", err))
	}
}

func msDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
