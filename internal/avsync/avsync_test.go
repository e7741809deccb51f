package avsync

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soffio/myplayer/internal/clock"
	"github.com/soffio/myplayer/internal/queue"
)

func newTestClocks(syncType SyncType) *Clocks {
	c := &Clocks{
		Audio:    clock.New(nil),
		Video:    clock.New(nil),
		External: clock.New(nil),
		SyncType: syncType,
		hasAudio: true,
		hasVideo: true,
	}
	return c
}

func TestComputeTargetDelayNoopWhenVideoIsMaster(t *testing.T) {
	clocks := newTestClocks(SyncVideoMaster)
	v := NewVideoSync(clocks, 10.0)
	require.Equal(t, 0.033, v.ComputeTargetDelay(0.033))
}

func TestComputeTargetDelaySpeedsUpWhenVideoIsBehind(t *testing.T) {
	clocks := newTestClocks(SyncAudioMaster)
	clocks.Audio.Set(5.0, 0)
	clocks.Video.Set(4.8, 0) // video lags master by 0.2s, beyond threshold

	v := NewVideoSync(clocks, 10.0)
	delay := v.ComputeTargetDelay(0.04)
	require.Less(t, delay, 0.04)
}

func TestComputeTargetDelayIgnoresHugeDiscontinuity(t *testing.T) {
	clocks := newTestClocks(SyncAudioMaster)
	clocks.Audio.Set(100.0, 0)
	clocks.Video.Set(1.0, 0) // diff exceeds maxFrameDuration: treated as a seek, not drift

	v := NewVideoSync(clocks, 5.0)
	require.Equal(t, 0.04, v.ComputeTargetDelay(0.04))
}

func TestFrameDurationFallsBackAcrossFlush(t *testing.T) {
	v := NewVideoSync(newTestClocks(SyncAudioMaster), 10.0)
	vp := &queue.Frame{PTS: 1.0, Duration: 0.04, Serial: 1}
	nextvp := &queue.Frame{PTS: 1.04, Serial: 2}
	require.Equal(t, 0.04, v.FrameDuration(vp, nextvp))
}

func TestCheckExternalClockSpeedSlowsDownWhenStarved(t *testing.T) {
	clocks := newTestClocks(SyncExternalClock)
	v := NewVideoSync(clocks, 10.0)

	vq := queue.NewPacketQueue()
	vq.Start()
	aq := queue.NewPacketQueue()
	aq.Start()
	aq.Put(queue.Packet{}) // only one packet queued: starved

	v.CheckExternalClockSpeed(vq, aq, true, true)
	require.Less(t, clocks.External.Speed(), 1.0)
}

func TestWantedSampleCountHoldsSteadyWithinThreshold(t *testing.T) {
	clocks := newTestClocks(SyncVideoMaster)
	clocks.Video.Set(0, 0)
	a := NewAudioSync(clocks, 44100)
	a.SetBufferThreshold(4096, 44100*4)

	got := a.WantedSampleCount(1024, 0.0001)
	require.Equal(t, 1024, got)
}

func TestWantedSampleCountClampsToPercentMax(t *testing.T) {
	clocks := newTestClocks(SyncVideoMaster)
	clocks.Video.Set(0, 0)
	a := NewAudioSync(clocks, 44100)
	a.SetBufferThreshold(1, 44100*4) // tiny threshold so any drift is actionable
	a.diffAvgCount = AudioDiffAvgNB  // skip the warm-up window

	got := a.WantedSampleCount(1000, 10.0) // huge reported drift
	require.LessOrEqual(t, got, 1000*(100+SampleCorrectionPercentMax)/100)
	require.GreaterOrEqual(t, got, 1000*(100-SampleCorrectionPercentMax)/100)
}

func TestStretchChangesSampleCount(t *testing.T) {
	pcm := make([]byte, 10*4) // 10 stereo samples, 2 bytes/sample
	out := Stretch(pcm, 2, 2, 20)
	require.Equal(t, 20*4, len(out))
}

func TestSyncTypeDefaultsToAudioWhenPresent(t *testing.T) {
	clocks := NewClocks(nil, nil, true, true)
	require.Equal(t, SyncAudioMaster, clocks.SyncType)
	require.Same(t, clocks.Audio, clocks.Master())
}

func TestSyncTypeDefaultsToVideoWithoutAudio(t *testing.T) {
	clocks := NewClocks(nil, nil, false, true)
	require.Equal(t, SyncVideoMaster, clocks.SyncType)
	require.Same(t, clocks.Video, clocks.Master())
}

func TestMasterFallsBackToExternalWhenPreferredStreamAbsent(t *testing.T) {
	// An audio-only source with AVSyncType forced to SyncVideoMaster must
	// not hand back a video clock that will never advance.
	clocks := NewClocks(nil, nil, true, false)
	clocks.SyncType = SyncVideoMaster
	require.Same(t, clocks.External, clocks.Master())
}

func TestNaNMasterDoesNotPanic(t *testing.T) {
	clocks := newTestClocks(SyncAudioMaster)
	clocks.Audio = clock.New(queue.NewPacketQueue()) // never Set: stale against the queue's serial, so Get is NaN
	v := NewVideoSync(clocks, 10.0)
	delay := v.ComputeTargetDelay(0.04)
	require.False(t, math.IsNaN(delay))
}
