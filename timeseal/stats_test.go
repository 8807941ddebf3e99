package timeseal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsCounters(t *testing.T) {
	s := newStats()
	s.recordIn(100)
	s.recordIn(20)
	s.recordOut(30, false)
	s.recordOut(15, true)
	s.recordOut(15, true)

	snap := s.Snapshot()
	assert.Equal(t, int64(120), snap.BytesIn)
	assert.Equal(t, int64(60), snap.BytesOut)
	assert.Equal(t, int64(1), snap.LinesOut)
	assert.Equal(t, int64(2), snap.Acks)
	assert.Zero(t, snap.Heartbeats)
	assert.Zero(t, snap.Intervals)
	assert.True(t, snap.LastHeartbeat.IsZero())
}

func TestStatsHeartbeatIntervals(t *testing.T) {
	s := newStats()
	t0 := time.Unix(1_700_000_000, 0)

	s.recordHeartbeats(1, t0)
	s.recordHeartbeats(2, t0.Add(10*time.Second))
	s.recordHeartbeats(1, t0.Add(20*time.Second))
	s.recordHeartbeats(0, t0.Add(time.Hour))

	snap := s.Snapshot()
	assert.Equal(t, int64(4), snap.Heartbeats)
	assert.Equal(t, int64(2), snap.Intervals, "one interval per batch after the first")
	assert.Equal(t, t0.Add(20*time.Second), snap.LastHeartbeat)
	assert.InDelta(t, float64(10*time.Second), float64(snap.IntervalP50), float64(50*time.Millisecond))
	assert.InDelta(t, float64(10*time.Second), float64(snap.IntervalMax), float64(50*time.Millisecond))
}

func TestStatsSameInstantHeartbeats(t *testing.T) {
	s := newStats()
	t0 := time.Unix(1_700_000_000, 0)

	s.recordHeartbeats(1, t0)
	s.recordHeartbeats(1, t0)

	snap := s.Snapshot()
	assert.Equal(t, int64(1), snap.Intervals)
	assert.Equal(t, time.Millisecond, snap.IntervalMax)
}
