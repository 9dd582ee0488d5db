// Package perf implements a performance monitor: a bounded ring buffer of
// PerfSample plus cumulative totals, rolling averages, and an append-only
// JSON export.
package perf

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Sample is one PerfSample row. Timestamp is supplied by the caller (the
// package never calls time.Now() itself so tests stay deterministic).
type Sample struct {
	Timestamp  time.Time
	RTF        float64
	LatencyMS  int64
	CacheHit   bool
	Voice      string
	TextLength int
	Format     string
	Speed      float64
}

// defaultCapacity is the ring buffer's default capacity.
const defaultCapacity = 1000

// Monitor is a lock-protected ring buffer of recent samples plus running
// totals. A short critical-section mutex is sufficient here; the hot path
// only appends one struct per request.
type Monitor struct {
	mu       sync.Mutex
	buf      []Sample
	next     int
	full     bool
	capacity int

	totalRequests int64
	totalHits     int64
	sumRTF        float64
	sumLatencyMS  int64

	perVoice map[string]*voiceTotals
}

type voiceTotals struct {
	requests int64
	sumRTF   float64
	sumLat   int64
}

// New builds a Monitor with the given ring-buffer capacity (defaultCapacity
// when n <= 0).
func New(n int) *Monitor {
	if n <= 0 {
		n = defaultCapacity
	}

	return &Monitor{
		buf:      make([]Sample, n),
		capacity: n,
		perVoice: make(map[string]*voiceTotals),
	}
}

// Record appends a sample, overwriting the oldest entry once the buffer is
// full.
func (m *Monitor) Record(s Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buf[m.next] = s
	m.next = (m.next + 1) % m.capacity

	if m.next == 0 {
		m.full = true
	}

	m.totalRequests++
	if s.CacheHit {
		m.totalHits++
	}

	m.sumRTF += s.RTF
	m.sumLatencyMS += s.LatencyMS

	vt, ok := m.perVoice[s.Voice]
	if !ok {
		vt = &voiceTotals{}
		m.perVoice[s.Voice] = vt
	}

	vt.requests++
	vt.sumRTF += s.RTF
	vt.sumLat += s.LatencyMS
}

// Totals summarizes the cumulative and rolling state of the monitor.
type Totals struct {
	TotalRequests  int64              `json:"total_requests"`
	CacheHitRate   float64            `json:"cache_hit_rate_percent"`
	AvgRTF         float64            `json:"avg_rtf"`
	AvgLatencyMS   float64            `json:"avg_latency_ms"`
	PerVoice       map[string]float64 `json:"per_voice_avg_rtf"`
	BufferedCount  int                `json:"buffered_sample_count"`
}

// Snapshot computes the current Totals under lock.
func (m *Monitor) Snapshot() Totals {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := Totals{
		TotalRequests: m.totalRequests,
		PerVoice:      make(map[string]float64, len(m.perVoice)),
	}

	if m.totalRequests > 0 {
		t.CacheHitRate = 100 * float64(m.totalHits) / float64(m.totalRequests)
		t.AvgRTF = m.sumRTF / float64(m.totalRequests)
		t.AvgLatencyMS = float64(m.sumLatencyMS) / float64(m.totalRequests)
	}

	for voice, vt := range m.perVoice {
		if vt.requests > 0 {
			t.PerVoice[voice] = vt.sumRTF / float64(vt.requests)
		}
	}

	if m.full {
		t.BufferedCount = m.capacity
	} else {
		t.BufferedCount = m.next
	}

	return t
}

// Recent returns up to n of the most recently recorded samples, oldest
// first. n <= 0 returns every buffered sample.
func (m *Monitor) Recent(n int) []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ordered []Sample
	if m.full {
		ordered = append(ordered, m.buf[m.next:]...)
		ordered = append(ordered, m.buf[:m.next]...)
	} else {
		ordered = append(ordered, m.buf[:m.next]...)
	}

	if n > 0 && n < len(ordered) {
		ordered = ordered[len(ordered)-n:]
	}

	return ordered
}

// RTFTrend averages RTF over samples newer than window, relative to the
// supplied "now" (caller-supplied so tests stay deterministic).
func (m *Monitor) RTFTrend(now time.Time, window time.Duration) float64 {
	samples := m.Recent(0)

	var sum float64

	var count int

	cutoff := now.Add(-window)
	for _, s := range samples {
		if s.Timestamp.After(cutoff) {
			sum += s.RTF
			count++
		}
	}

	if count == 0 {
		return 0
	}

	return sum / float64(count)
}

// ExportJSON appends the current Totals as one JSON line to path, creating
// it if necessary.
func (m *Monitor) ExportJSON(path string) error {
	snap := m.Snapshot()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)

	return enc.Encode(snap)
}
