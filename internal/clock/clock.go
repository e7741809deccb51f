// Package clock implements the three logical clocks (audio, video,
// external) ffplay uses for A/V synchronization, and the master-clock
// selection and slave-correction logic built on top of them.
package clock

import (
	"math"
	"sync"
	"time"
)

// NoSyncThreshold is the maximum drift, in seconds, that SyncToSlave
// leaves alone; beyond it the master clock jumps to the slave's value.
const NoSyncThreshold = 10.0

// SerialSource reports the serial of the queue a clock is associated
// with, so a clock can recognize when its last-set value has gone stale
// because of an intervening flush.
type SerialSource interface {
	Serial() int
}

// Clock is a single logical timeline. pts plus the wall-clock elapsed
// since it was last set (scaled by speed) gives the current time; a
// clock whose last Set serial differs from its queue's serial reports
// NaN, matching ffplay's get_clock() behaviour for a stale clock. A
// clock with no backing queue is never stale: before its first Set it
// runs from zero, starting at New.
type Clock struct {
	mu sync.Mutex

	pts       float64
	ptsDrift  float64
	lastSet   time.Time
	serial    int
	paused    bool
	speed     float64
	queue     SerialSource
}

// New returns a clock at time zero, running at normal speed, optionally
// tied to queue for staleness detection (nil is valid for a clock with
// no backing queue, e.g. the external clock).
func New(queue SerialSource) *Clock {
	return &Clock{
		speed:   1.0,
		serial:  -1,
		lastSet: time.Now(),
		queue:   queue,
	}
}

// Get returns the clock's current value in seconds (the frozen value
// while paused), or NaN if the clock has a backing queue whose current
// serial differs from the serial of the last SetAt (never set, or a
// flush happened since).
func (c *Clock) Get() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked()
}

func (c *Clock) getLocked() float64 {
	if c.queue != nil && c.serial != c.queue.Serial() {
		return math.NaN()
	}
	if c.paused {
		return c.pts
	}
	elapsed := time.Since(c.lastSet).Seconds()
	return c.ptsDrift + c.pts + elapsed*c.speed
}

// SetAt sets the clock's value as of the given wall-clock time, tagging
// it with serial so later staleness checks can detect an intervening
// flush.
func (c *Clock) SetAt(pts float64, serial int, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pts = pts
	c.ptsDrift = 0
	c.lastSet = at
	c.serial = serial
}

// Set is SetAt using the current wall-clock time.
func (c *Clock) Set(pts float64, serial int) {
	c.SetAt(pts, serial, time.Now())
}

// SetSpeed rescales how fast the clock advances relative to wall-clock
// time, resetting its reference point so the change takes effect from
// now rather than retroactively.
func (c *Clock) SetSpeed(speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	cur := c.getLocked()
	c.pts = cur
	c.lastSet = now
	c.speed = speed
}

// Speed returns the clock's current playback speed multiplier.
func (c *Clock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Serial returns the serial this clock was last Set with.
func (c *Clock) Serial() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serial
}

// SetPaused freezes or resumes the clock's advancement. While paused,
// Get returns the frozen value instead of advancing with wall time.
func (c *Clock) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if paused == c.paused {
		return
	}
	if paused {
		c.pts = c.getLocked()
	} else {
		c.lastSet = time.Now()
	}
	c.paused = paused
}

// Paused reports whether the clock is currently frozen.
func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// SyncToSlave sets master to slave's value (and serial) when master is
// NaN or the two differ by more than NoSyncThreshold; otherwise, or when
// slave is NaN, master is left unchanged. Mirrors ffplay's
// sync_clock_to_slave.
func SyncToSlave(master, slave *Clock) {
	masterVal := master.Get()
	slaveVal := slave.Get()
	if !math.IsNaN(slaveVal) && (math.IsNaN(masterVal) || math.Abs(masterVal-slaveVal) > NoSyncThreshold) {
		master.Set(slaveVal, slave.Serial())
	}
}
