package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/soffio/myplayer/internal/avsync"
)

// Logger is the minimal structured-ish logging seam the pipeline writes
// through; any type with a Printf method (including the standard
// library's *log.Logger) satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// FrameDropMode controls whether late video frames are dropped to catch
// up with the master clock, mirroring ffplay's -framedrop flag, which
// takes -1 (auto), 0 (off) or 1 (on); FrameDropAuto is the zero value so
// an unset Options field reproduces ffplay's default instead of
// silently forcing frame drop off.
type FrameDropMode int8

const (
	// FrameDropAuto drops late frames only when video isn't itself the
	// master clock, exactly like ffplay's default (-framedrop -1).
	FrameDropAuto FrameDropMode = iota
	FrameDropOff
	FrameDropOn
)

// Options is the pipeline's immutable configuration record, replacing
// ffplay's global VideoState option fields (derived from argv) with a
// single value built once at construction time.
type Options struct {
	// HasAudio/HasSubtitles opt in to decoding the matching stream when
	// the source reports one. Leaving HasAudio false mutes a source even
	// if it carries an audio track.
	HasAudio     bool
	HasSubtitles bool

	Loop           bool
	InfiniteBuffer bool

	// AVSyncType picks which clock the other two slave to. Left nil, it
	// resolves to audio-master when the pipeline has an audio stream and
	// video-master otherwise, exactly like ffplay's av_sync_type
	// fallback; a pointer is used instead of relying on the zero value
	// of avsync.SyncType because that zero value (SyncAudioMaster) is
	// itself a meaningful choice and can't double as "unset".
	AVSyncType *avsync.SyncType

	// FrameDrop overrides when VideoSync drops late video frames; see
	// FrameDropMode.
	FrameDrop FrameDropMode

	// AutoExit closes the pipeline itself once its workers have stopped
	// without a failure and EventCompleted has been emitted: when the
	// Duration window is reached, or when the context given to Start is
	// cancelled. Reaching the end of the source does not stop the
	// workers (the reader keeps waiting for a seek there), so it neither
	// emits EventCompleted nor triggers AutoExit. Left false, the
	// pipeline stays open after EventCompleted until the host calls
	// Close.
	AutoExit bool

	// StartTime seeks to this position, in seconds, before the reader
	// starts pulling packets, matching ffplay's -ss.
	StartTime float64

	// Duration stops playback this many seconds after StartTime instead
	// of running to the source's natural end, matching ffplay's -t. Zero
	// means play to the end. The limit is checked by the video refresh
	// loop, so it has no effect on a pipeline without a video stream.
	Duration float64

	// AudioHWBufferBytes sizes AudioSync's drift-correction threshold;
	// zero disables sample-count correction (every frame plays at its
	// natural length).
	AudioHWBufferBytes int

	Logger            Logger
	MetricsRegisterer prometheus.Registerer
}

func (o Options) logger() Logger {
	if o.Logger == nil {
		return nopLogger{}
	}
	return o.Logger
}
