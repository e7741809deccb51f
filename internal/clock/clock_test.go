package clock

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeQueue struct{ serial int }

func (f *fakeQueue) Serial() int { return f.serial }

func TestClockAdvancesWithWallTime(t *testing.T) {
	c := New(nil)
	c.Set(10.0, 0)
	time.Sleep(20 * time.Millisecond)
	require.Greater(t, c.Get(), 10.0)
}

func TestClockPausedDoesNotAdvance(t *testing.T) {
	c := New(nil)
	c.Set(5.0, 0)
	c.SetPaused(true)
	v1 := c.Get()
	time.Sleep(20 * time.Millisecond)
	v2 := c.Get()
	require.Equal(t, v1, v2)
}

func TestClockStaleAfterFlushIsNaN(t *testing.T) {
	q := &fakeQueue{serial: 0}
	c := New(q)
	c.Set(1.0, 0)
	require.False(t, math.IsNaN(c.Get()))

	q.serial = 1 // flush happened behind the clock's back
	require.True(t, math.IsNaN(c.Get()))
}

func TestClockSpeedScalesAdvancement(t *testing.T) {
	c := New(nil)
	c.Set(0, 0)
	c.SetSpeed(2.0)
	time.Sleep(50 * time.Millisecond)
	v := c.Get()
	require.Greater(t, v, 0.09) // ~2x real time elapsed
}

func TestSyncToSlaveWithinThresholdEases(t *testing.T) {
	master := New(nil)
	slave := New(nil)
	master.Set(10.0, 0)
	slave.Set(11.0, 3)

	SyncToSlave(master, slave)
	require.InDelta(t, 11.0, master.Get(), 0.05)
	require.Equal(t, 3, master.Serial())
}

func TestSyncToSlaveIgnoresNaNSlave(t *testing.T) {
	master := New(nil)
	slaveQueue := &fakeQueue{serial: 0}
	slave := New(slaveQueue)
	master.Set(10.0, 0)
	slave.Set(1.0, 0)
	slaveQueue.serial = 1 // slave now reports NaN

	SyncToSlave(master, slave)
	require.InDelta(t, 10.0, master.Get(), 0.05)
}
