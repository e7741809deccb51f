// Package avsync implements ffplay's three-clock audio/video
// synchronization algorithms: master-clock selection, the video refresh
// pacing loop (compute_target_delay, check_external_clock_speed) and the
// audio sample-count stretching loop (synchronize_audio).
package avsync

import "github.com/soffio/myplayer/internal/clock"

// SyncType selects which of the three clocks other streams slave to.
type SyncType int

const (
	SyncAudioMaster SyncType = iota
	SyncVideoMaster
	SyncExternalClock
)

// Clocks bundles the three logical clocks a VideoState owns together
// with the currently selected master. AudioSync and VideoSync both read
// SyncType through this shared struct so a change to SyncType takes
// effect for both immediately.
type Clocks struct {
	Audio    *clock.Clock
	Video    *clock.Clock
	External *clock.Clock
	SyncType SyncType

	hasAudio bool
	hasVideo bool
}

// NewClocks wires the three clocks together. hasAudio/hasVideo pick the
// sync default the same way ffplay does: prefer audio master when audio
// is present, otherwise video master, matching stream_component_open's
// av_sync_type fallback. They are also retained so Master can fall back
// to the external clock if SyncType is later overridden to name a stream
// the source doesn't actually have.
func NewClocks(audioSerial, videoSerial clock.SerialSource, hasAudio, hasVideo bool) *Clocks {
	c := &Clocks{
		Audio:    clock.New(audioSerial),
		Video:    clock.New(videoSerial),
		External: clock.New(nil),
		hasAudio: hasAudio,
		hasVideo: hasVideo,
	}
	if hasAudio {
		c.SyncType = SyncAudioMaster
	} else {
		c.SyncType = SyncVideoMaster
	}
	return c
}

// Master returns the clock currently selected to drive playback pacing.
// A SyncType naming a stream the source doesn't have (an audio-only
// source with SyncType forced to SyncVideoMaster, say) falls back to the
// external clock rather than returning a clock that never advances.
func (c *Clocks) Master() *clock.Clock {
	switch {
	case c.SyncType == SyncVideoMaster && c.hasVideo:
		return c.Video
	case c.SyncType == SyncAudioMaster && c.hasAudio:
		return c.Audio
	default:
		return c.External
	}
}
