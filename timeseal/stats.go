package timeseal

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Stats tracks traffic counters and heartbeat timing for one connection.
type Stats struct {
	mu sync.Mutex

	bytesIn    int64
	bytesOut   int64
	linesOut   int64
	heartbeats int64
	acks       int64

	lastHeartbeat time.Time

	// HDR histogram of the gap between heartbeats, in milliseconds.
	// Range: 1 millisecond to 1 hour, 3 significant figures.
	intervals *hdrhistogram.Histogram
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	BytesIn    int64
	BytesOut   int64
	LinesOut   int64
	Heartbeats int64
	Acks       int64

	LastHeartbeat time.Time

	IntervalP50 time.Duration
	IntervalP99 time.Duration
	IntervalMax time.Duration
	Intervals   int64
}

func newStats() *Stats {
	return &Stats{
		intervals: hdrhistogram.New(1, int64(time.Hour/time.Millisecond), 3),
	}
}

func (s *Stats) recordIn(n int) {
	atomic.AddInt64(&s.bytesIn, int64(n))
}

func (s *Stats) recordOut(n int, ack bool) {
	atomic.AddInt64(&s.bytesOut, int64(n))
	if ack {
		atomic.AddInt64(&s.acks, 1)
	} else {
		atomic.AddInt64(&s.linesOut, 1)
	}
}

// recordHeartbeats notes n markers decoded at t.
func (s *Stats) recordHeartbeats(n int, t time.Time) {
	if n <= 0 {
		return
	}
	atomic.AddInt64(&s.heartbeats, int64(n))

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastHeartbeat.IsZero() {
		gap := t.Sub(s.lastHeartbeat).Milliseconds()
		if gap < 1 {
			gap = 1
		}
		s.intervals.RecordValue(gap)
	}
	s.lastHeartbeat = t
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		BytesIn:    atomic.LoadInt64(&s.bytesIn),
		BytesOut:   atomic.LoadInt64(&s.bytesOut),
		LinesOut:   atomic.LoadInt64(&s.linesOut),
		Heartbeats: atomic.LoadInt64(&s.heartbeats),
		Acks:       atomic.LoadInt64(&s.acks),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snap.LastHeartbeat = s.lastHeartbeat
	snap.Intervals = s.intervals.TotalCount()
	if snap.Intervals > 0 {
		snap.IntervalP50 = time.Duration(s.intervals.ValueAtQuantile(50)) * time.Millisecond
		snap.IntervalP99 = time.Duration(s.intervals.ValueAtQuantile(99)) * time.Millisecond
		snap.IntervalMax = time.Duration(s.intervals.Max()) * time.Millisecond
	}
	return snap
}
