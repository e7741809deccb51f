// Package engine assembles the packet queues, decode workers, clocks and
// reader into one running pipeline. A single VideoState type covers
// video-only, audio-only and video-with-audio sources; its behavior is
// parameterized by Options and by which streams the attached
// codec.Source reports, rather than requiring a different concrete type
// per combination of streams.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soffio/myplayer/internal/avsync"
	"github.com/soffio/myplayer/internal/codec"
	"github.com/soffio/myplayer/internal/decode"
	"github.com/soffio/myplayer/internal/errs"
	"github.com/soffio/myplayer/internal/metrics"
	"github.com/soffio/myplayer/internal/present"
	"github.com/soffio/myplayer/internal/queue"
	"github.com/soffio/myplayer/internal/source"
)

// Queue depths lifted from ffplay's VIDEO_PICTURE_QUEUE_SIZE,
// SAMPLE_QUEUE_SIZE and SUBPICTURE_QUEUE_SIZE.
const (
	videoFrameQueueSize = 3
	audioFrameQueueSize = 9
	subFrameQueueSize   = 16

	maxVideoFrameDuration = 10.0 // seconds; beyond this a PTS gap is a discontinuity, not playback
)

// VideoState is the pipeline's aggregate root: it owns every queue,
// decoder, clock and worker goroutine for one opened source.
type VideoState struct {
	opts Options
	src  codec.Source

	videoPackets, audioPackets, subPackets *queue.PacketQueue
	videoFrames, audioFrames, subFrames    *queue.FrameQueue

	videoDec codec.VideoDecoder
	audioDec codec.AudioDecoder
	subDec   codec.SubtitleDecoder

	videoWorker *decode.Worker
	audioWorker *decode.Worker
	subWorker   *decode.Worker

	clocks    *avsync.Clocks
	videoSync *avsync.VideoSync
	audioSync *avsync.AudioSync

	reader    *source.Reader
	presenter *present.Presenter
	metrics   *metrics.Metrics

	mu    sync.Mutex
	state State

	cancel context.CancelFunc
	eg     *errgroup.Group

	onEvent EventFunc
}

// NewVideoState probes src's streams and wires up every queue, decoder
// and clock the pipeline needs, without starting any worker goroutines
// yet (call Start for that). It returns an *errs.Error with
// errs.KindStreamInfo if src reports no usable video or audio stream.
func NewVideoState(src codec.Source, opts Options, onEvent EventFunc) (*VideoState, error) {
	hasVideo, hasAudio, hasSub := false, false, false
	for _, s := range src.Streams() {
		switch s.Kind {
		case codec.StreamVideo:
			hasVideo = true
		case codec.StreamAudio:
			hasAudio = true
		case codec.StreamSubtitle:
			hasSub = true
		}
	}
	hasAudio = hasAudio && opts.HasAudio
	hasSub = hasSub && opts.HasSubtitles

	if !hasVideo && !hasAudio {
		return nil, errs.New(errs.KindStreamInfo, "NewVideoState", fmt.Errorf("source has neither video nor audio stream"))
	}

	vs := &VideoState{opts: opts, src: src, state: StateIdle, onEvent: onEvent}
	vs.metrics = metrics.New(opts.MetricsRegisterer)
	vs.presenter = present.NewPresenter()

	if hasVideo {
		vs.videoPackets = queue.NewPacketQueue()
		vs.videoFrames = queue.NewFrameQueue(vs.videoPackets, videoFrameQueueSize, true)
		vs.videoDec = src.VideoDecoder()
	}
	if hasAudio {
		vs.audioPackets = queue.NewPacketQueue()
		vs.audioFrames = queue.NewFrameQueue(vs.audioPackets, audioFrameQueueSize, false)
		vs.audioDec = src.AudioDecoder()
	}
	if hasSub {
		vs.subPackets = queue.NewPacketQueue()
		vs.subFrames = queue.NewFrameQueue(vs.subPackets, subFrameQueueSize, true)
		vs.subDec = src.SubtitleDecoder()
	}

	vs.clocks = avsync.NewClocks(queueOrNil(vs.audioPackets), queueOrNil(vs.videoPackets), hasAudio, hasVideo)
	if opts.AVSyncType != nil {
		vs.clocks.SyncType = *opts.AVSyncType
	}
	vs.videoSync = avsync.NewVideoSync(vs.clocks, maxVideoFrameDuration)
	switch opts.FrameDrop {
	case FrameDropOff:
		vs.videoSync.AllowFrameDrop = false
	case FrameDropOn:
		vs.videoSync.AllowFrameDrop = true
	default: // FrameDropAuto: drop only when video isn't itself the master
		vs.videoSync.AllowFrameDrop = vs.clocks.SyncType != avsync.SyncVideoMaster
	}

	var audioSampleRate int
	for _, s := range src.Streams() {
		if s.Kind == codec.StreamAudio {
			audioSampleRate = s.SampleRate
		}
	}
	if hasAudio && opts.AudioHWBufferBytes > 0 {
		vs.audioSync = avsync.NewAudioSync(vs.clocks, audioSampleRate)
		vs.audioSync.SetBufferThreshold(opts.AudioHWBufferBytes, float64(audioSampleRate*4))
	}

	targets := source.Targets{Video: vs.videoPackets, Audio: vs.audioPackets, Subtitle: vs.subPackets}
	infiniteBuffer := opts.InfiniteBuffer || src.IsRealtime()
	vs.reader = source.NewReader(src, targets, source.Options{InfiniteBuffer: infiniteBuffer, Loop: opts.Loop})

	return vs, nil
}

// queueOrNil adapts a possibly-nil *queue.PacketQueue to the
// clock.SerialSource interface, which must itself stay nil (not a
// non-nil interface wrapping a nil pointer) when there's no queue.
func queueOrNil(q *queue.PacketQueue) interface {
	Serial() int
} {
	if q == nil {
		return nil
	}
	return q
}

// Start launches the reader and decode worker goroutines under an
// errgroup tied to ctx, plus the video refresh loop. It moves the state
// machine from Idle to Preparing while it starts the queues and workers,
// and to Playing as soon as they are launched; it does not wait for a
// first packet or frame.
func (vs *VideoState) Start(ctx context.Context) error {
	vs.mu.Lock()
	if vs.state != StateIdle {
		vs.mu.Unlock()
		return errs.New(errs.KindAborted, "Start", fmt.Errorf("pipeline already started"))
	}
	vs.state = StatePreparing
	vs.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	vs.cancel = cancel
	eg, egCtx := errgroup.WithContext(runCtx)
	vs.eg = eg

	if vs.videoPackets != nil {
		vs.videoPackets.Start()
	}
	if vs.audioPackets != nil {
		vs.audioPackets.Start()
	}
	if vs.subPackets != nil {
		vs.subPackets.Start()
	}

	if vs.opts.StartTime > 0 {
		vs.reader.Seek(vs.opts.StartTime)
	}
	eg.Go(func() error { return vs.reader.Run(egCtx) })

	if vs.videoDec != nil {
		vs.videoWorker = decode.NewWorker(queue.FrameVideo, vs.videoPackets, vs.videoFrames, vs.videoDec)
		w := vs.videoWorker
		eg.Go(func() error { return runDecodeWorker(w, vs.metrics, "video") })
	}
	if vs.audioDec != nil {
		vs.audioWorker = decode.NewWorker(queue.FrameAudio, vs.audioPackets, vs.audioFrames, vs.audioDec)
		w := vs.audioWorker
		eg.Go(func() error { return runDecodeWorker(w, vs.metrics, "audio") })
	}
	if vs.subDec != nil {
		vs.subWorker = decode.NewWorker(queue.FrameSubtitle, vs.subPackets, vs.subFrames, vs.subDec)
		w := vs.subWorker
		eg.Go(func() error { return runDecodeWorker(w, vs.metrics, "subtitle") })
	}

	eg.Go(func() error { return vs.refreshLoop(egCtx) })

	vs.mu.Lock()
	vs.state = StatePlaying
	vs.mu.Unlock()
	vs.opts.logger().Printf("myplayer: pipeline started")
	vs.emit(Event{Kind: EventPrepared})

	go func() {
		err := eg.Wait()
		vs.mu.Lock()
		wasClosing := vs.state == StateClosing
		vs.mu.Unlock()
		if err != nil && err != context.Canceled && !wasClosing {
			vs.emit(Event{Kind: EventError, Err: err})
		} else if !wasClosing {
			vs.emit(Event{Kind: EventCompleted})
			if vs.opts.AutoExit {
				go vs.Close()
			}
		}
	}()

	return nil
}

func runDecodeWorker(w *decode.Worker, m *metrics.Metrics, stream string) error {
	err := w.Run()
	if err == decode.ErrAborted {
		return nil
	}
	if err != nil {
		m.IncDecodeErrors(stream)
	}
	return err
}

func (vs *VideoState) emit(e Event) {
	if vs.onEvent != nil {
		vs.onEvent(e)
	}
}

// refreshLoop pulls decoded video frames, paces them against the master
// clock, uploads them to the presenter, and advances subtitle overlay
// state. It generalizes ffplay's video_refresh/video_refresh_timer pair
// into a single blocking loop.
func (vs *VideoState) refreshLoop(ctx context.Context) error {
	if vs.videoFrames == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if vs.durationLimitReached() {
			vs.cancel()
			return nil
		}

		remaining := vs.refreshOnce()
		if remaining <= 0 {
			remaining = avsync.RefreshRate
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(remaining * float64(time.Second))):
		}
	}
}

// refreshOnce runs one iteration of the display loop, returning how long
// the caller should wait before calling it again.
func (vs *VideoState) refreshOnce() float64 {
	vs.videoSync.CheckExternalClockSpeed(vs.videoPackets, vs.audioPackets, vs.videoDec != nil, vs.audioDec != nil)

	if vs.subFrames != nil {
		for vs.subFrames.NbRemaining() > 0 {
			sf := vs.subFrames.Peek()
			if sf.Serial != vs.subPackets.Serial() {
				vs.subFrames.Next()
				continue
			}
			vs.presenter.UploadSubtitle(sf)
			vs.subFrames.Next()
			break
		}
	}

	if vs.videoFrames.NbRemaining() == 0 {
		return avsync.RefreshRate
	}

	last := vs.videoFrames.PeekLast()
	vp := vs.videoFrames.Peek()
	if vp.Serial != vs.videoPackets.Serial() {
		vs.videoFrames.Next()
		return 0
	}

	if last.Serial != vp.Serial {
		vs.videoSync.SetFrameTimer(nowSeconds())
	}

	if vs.paused() {
		return avsync.RefreshRate
	}

	lastDuration := vs.videoSync.FrameDuration(last, vp)
	delay := vs.videoSync.ComputeTargetDelay(lastDuration)

	now := nowSeconds()
	due := vs.videoSync.FrameTimer() + delay
	if now < due {
		return minFloat(due-now, avsync.RefreshRate)
	}
	vs.videoSync.SetFrameTimer(due)
	if delay > 0 && now-due > avsync.AVSyncThresholdMax {
		vs.videoSync.SetFrameTimer(now)
	}

	if vs.videoFrames.NbRemaining() > 1 {
		next := vs.videoFrames.PeekNext()
		nextDuration := vs.videoSync.FrameDuration(vp, next)
		if vs.videoSync.ShouldDropFrame(now, vs.videoSync.FrameTimer(), nextDuration) {
			vs.videoFrames.Next()
			vs.metrics.IncFramesDropped()
			return 0
		}
	}

	vs.videoFrames.Next()
	if err := vs.presenter.Upload(vp); err == nil {
		vs.clocks.Video.Set(vp.PTS, vp.Serial)
	}
	return avsync.RefreshRate
}

// durationLimitReached reports whether Options.Duration has been
// configured and playback has reached the end of that window, matching
// ffplay's -t/-ss combination of stopping play early rather than running
// to the source's natural end.
func (vs *VideoState) durationLimitReached() bool {
	if vs.opts.Duration <= 0 {
		return false
	}
	return vs.Position() >= vs.opts.StartTime+vs.opts.Duration
}

func (vs *VideoState) paused() bool {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.state == StatePaused
}

// Play resumes playback, unpausing every clock.
func (vs *VideoState) Play() {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.state != StatePaused {
		return
	}
	vs.state = StatePlaying
	vs.setClocksPaused(false)
}

// Pause freezes every clock so the audio sink and refresh loop stop
// advancing playback position.
func (vs *VideoState) Pause() {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.state != StatePlaying {
		return
	}
	vs.state = StatePaused
	vs.setClocksPaused(true)
}

func (vs *VideoState) setClocksPaused(paused bool) {
	vs.clocks.Audio.SetPaused(paused)
	vs.clocks.Video.SetPaused(paused)
	vs.clocks.External.SetPaused(paused)
}

// Seek requests a jump to seconds, flushing every queue once the reader
// processes it. It is idempotent with respect to pause state: playback
// remains paused/playing across the seek exactly as it was before.
func (vs *VideoState) Seek(seconds float64) {
	vs.reader.Seek(seconds)
	vs.emit(Event{Kind: EventSeekDone})
}

// Position returns the master clock's current playback position.
func (vs *VideoState) Position() float64 { return vs.clocks.Master().Get() }

// Duration returns the source's total duration, or 0 for live sources.
func (vs *VideoState) Duration() float64 { return vs.src.Duration() }

// State returns the pipeline's current playback state.
func (vs *VideoState) State() State {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.state
}

// Presenter returns the video surface/subtitle overlay owner so the host
// application can Draw it into its own render loop.
func (vs *VideoState) Presenter() *present.Presenter { return vs.presenter }

// Metrics exposes the pipeline's counters for host applications that
// want to read them directly instead of scraping Prometheus.
func (vs *VideoState) Metrics() *metrics.Metrics { return vs.metrics }

// HasAudio reports whether this pipeline decodes an audio stream.
func (vs *VideoState) HasAudio() bool { return vs.audioDec != nil }

// AudioSink returns an io.Reader-compatible pull source for the audio
// stream, or nil if this pipeline has no audio. It is a standalone type
// so sinks besides ebiten's audio.Player can also consume it.
func (vs *VideoState) AudioSink() *AudioSink {
	if vs.audioDec == nil {
		return nil
	}
	return &AudioSink{vs: vs}
}

// Close stops every worker goroutine, waits for them to exit, and
// releases the underlying source. It is safe to call once; a second call
// is a no-op.
func (vs *VideoState) Close() error {
	vs.mu.Lock()
	if vs.state == StateClosing || vs.state == StateIdle {
		vs.mu.Unlock()
		return nil
	}
	vs.state = StateClosing
	vs.mu.Unlock()

	if vs.cancel != nil {
		vs.cancel()
	}
	for _, q := range []*queue.PacketQueue{vs.videoPackets, vs.audioPackets, vs.subPackets} {
		if q != nil {
			q.Abort()
		}
	}
	if vs.videoFrames != nil {
		vs.videoFrames.Signal()
	}
	if vs.audioFrames != nil {
		vs.audioFrames.Signal()
	}
	if vs.subFrames != nil {
		vs.subFrames.Signal()
	}

	if vs.eg != nil {
		_ = vs.eg.Wait()
	}

	if vs.videoDec != nil {
		_ = vs.videoDec.Close()
	}
	if vs.audioDec != nil {
		_ = vs.audioDec.Close()
	}
	if vs.subDec != nil {
		_ = vs.subDec.Close()
	}
	return vs.src.Close()
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
