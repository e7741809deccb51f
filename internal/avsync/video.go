package avsync

import (
	"math"

	"github.com/soffio/myplayer/internal/queue"
)

// Tunables lifted from ffplay's constant block, preserved exactly so the
// pacing feel matches.
const (
	AVSyncThresholdMin      = 0.04
	AVSyncThresholdMax      = 0.1
	AVSyncFramedupThreshold = 0.1
	RefreshRate             = 0.01

	ExternalClockMinFrames = 2
	ExternalClockMaxFrames = 10
	ExternalClockSpeedMin  = 0.900
	ExternalClockSpeedMax  = 1.010
	ExternalClockSpeedStep = 0.001
)

// VideoSync paces video frame presentation against the master clock,
// dropping late frames when the video stream is not itself the master.
type VideoSync struct {
	clocks           *Clocks
	maxFrameDuration float64
	AllowFrameDrop   bool

	frameTimer    float64
	droppedFrames uint64
}

// NewVideoSync builds a pacer. maxFrameDuration bounds how large a gap
// between consecutive PTS values is still treated as continuous motion
// rather than a discontinuity (ffplay's is->max_frame_duration, derived
// from whether the input format uses non-monotonic timestamps).
func NewVideoSync(clocks *Clocks, maxFrameDuration float64) *VideoSync {
	return &VideoSync{clocks: clocks, maxFrameDuration: maxFrameDuration, AllowFrameDrop: true}
}

// DroppedFrames returns the number of frames dropped to catch up with
// the master clock since creation.
func (v *VideoSync) DroppedFrames() uint64 { return v.droppedFrames }

// FrameDuration returns how long vp should remain on screen given the
// next queued frame nextvp (or vp's own Duration if they don't share a
// flush serial, meaning nextvp is not really "next").
func (v *VideoSync) FrameDuration(vp, nextvp *queue.Frame) float64 {
	if vp.Serial != nextvp.Serial {
		return vp.Duration
	}
	d := nextvp.PTS - vp.PTS
	if math.IsNaN(d) || d <= 0 || d > v.maxFrameDuration {
		return vp.Duration
	}
	return d
}

// ComputeTargetDelay adjusts a nominal inter-frame delay to pull the
// video clock toward the master clock, matching ffplay's
// compute_target_delay.
func (v *VideoSync) ComputeTargetDelay(delay float64) float64 {
	if v.clocks.SyncType == SyncVideoMaster {
		return delay
	}

	diff := v.clocks.Video.Get() - v.clocks.Master().Get()
	syncThreshold := math.Max(AVSyncThresholdMin, math.Min(AVSyncThresholdMax, delay))

	if !math.IsNaN(diff) && math.Abs(diff) < v.maxFrameDuration {
		switch {
		case diff <= -syncThreshold:
			delay = math.Max(0, delay+diff)
		case diff >= syncThreshold && delay > AVSyncFramedupThreshold:
			delay += diff
		case diff >= syncThreshold:
			delay *= 2
		}
	}
	return delay
}

// ShouldDropFrame decides whether vp, due at frameTimerDue, should be
// skipped without display because nextDue has already passed. It is the
// generalized form of ffplay's late-frame-drop check inside
// video_refresh, separated out so VideoSync stays free of wall-clock
// reads (the caller supplies "now").
func (v *VideoSync) ShouldDropFrame(now, frameTimerDue, nextDuration float64) bool {
	if !v.AllowFrameDrop || v.clocks.SyncType == SyncVideoMaster {
		return false
	}
	if now < frameTimerDue+nextDuration {
		return false
	}
	v.droppedFrames++
	return true
}

// CheckExternalClockSpeed nudges the external clock's speed toward
// normal when both packet queues are well stocked, and away from
// normal when either is starved, mirroring ffplay's
// check_external_clock_speed with its && / || grouping made explicit to
// avoid the precedence ambiguity the original C++ had.
func (v *VideoSync) CheckExternalClockSpeed(videoQueue, audioQueue *queue.PacketQueue, hasVideo, hasAudio bool) {
	ext := v.clocks.External

	videoStarved := hasVideo && videoQueue.NbPackets() <= ExternalClockMinFrames
	audioStarved := hasAudio && audioQueue.NbPackets() <= ExternalClockMinFrames
	if videoStarved || audioStarved {
		ext.SetSpeed(math.Max(ExternalClockSpeedMin, ext.Speed()-ExternalClockSpeedStep))
		return
	}

	videoPlentiful := !hasVideo || videoQueue.NbPackets() > ExternalClockMaxFrames
	audioPlentiful := !hasAudio || audioQueue.NbPackets() > ExternalClockMaxFrames
	if videoPlentiful && audioPlentiful {
		ext.SetSpeed(math.Min(ExternalClockSpeedMax, ext.Speed()+ExternalClockSpeedStep))
		return
	}

	speed := ext.Speed()
	if speed != 1.0 {
		ext.SetSpeed(speed + ExternalClockSpeedStep*(1.0-speed)/math.Abs(1.0-speed))
	}
}

// FrameTimer and SetFrameTimer expose the pacer's running wall-clock
// baseline so the presenter's refresh loop can persist it across ticks
// without VideoSync depending on a concrete clock source for "now".
func (v *VideoSync) FrameTimer() float64 { return v.frameTimer }

func (v *VideoSync) SetFrameTimer(t float64) { v.frameTimer = t }
