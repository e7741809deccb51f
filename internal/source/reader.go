// Package source runs the demuxer worker: it pulls packets from a
// codec.Source and fans them out to per-stream packet queues, applying
// backpressure, loop-at-EOF, and the seek protocol.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/soffio/myplayer/internal/codec"
	"github.com/soffio/myplayer/internal/queue"
)

// Backpressure tunables, carried over from ffplay's MAX_QUEUE_SIZE and
// MIN_FRAMES constants.
const (
	MaxQueueSize = 15 * 1024 * 1024
	MinFrames    = 25

	starvedPollInterval = 10 * time.Millisecond
	eofPollInterval     = 10 * time.Millisecond
)

// Options configures a Reader's behavior beyond simply draining the
// source, mirroring ffplay's command-line-derived VideoState flags as an
// explicit, immutable record instead of global option state.
type Options struct {
	InfiniteBuffer bool // disable backpressure (e.g. for low-latency live glass-to-glass tuning)
	Loop           bool // rewind to the start on EOF instead of finishing
}

// Targets names the packet queue each stream kind feeds, nil for any
// kind the source doesn't have.
type Targets struct {
	Video    *queue.PacketQueue
	Audio    *queue.PacketQueue
	Subtitle *queue.PacketQueue
}

func (t Targets) queueFor(kind codec.StreamKind) *queue.PacketQueue {
	switch kind {
	case codec.StreamAudio:
		return t.Audio
	case codec.StreamSubtitle:
		return t.Subtitle
	default:
		return t.Video
	}
}

func (t Targets) all() []*queue.PacketQueue {
	var qs []*queue.PacketQueue
	for _, q := range []*queue.PacketQueue{t.Video, t.Audio, t.Subtitle} {
		if q != nil {
			qs = append(qs, q)
		}
	}
	return qs
}

// SeekRequest asks the reader to jump to Seconds on its next iteration.
type SeekRequest struct {
	Seconds float64
}

// Reader owns the single goroutine allowed to call codec.Source methods,
// matching ffplay's single read_thread design.
type Reader struct {
	src     codec.Source
	targets Targets
	opts    Options

	seekCh chan SeekRequest
}

// NewReader builds a reader over src, fanning packets out to targets
// according to opts.
func NewReader(src codec.Source, targets Targets, opts Options) *Reader {
	return &Reader{
		src:     src,
		targets: targets,
		opts:    opts,
		seekCh:  make(chan SeekRequest, 1),
	}
}

// Seek enqueues a seek request, replacing any not yet processed. It never
// blocks the caller.
func (r *Reader) Seek(seconds float64) {
	select {
	case <-r.seekCh:
	default:
	}
	r.seekCh <- SeekRequest{Seconds: seconds}
}

// Run drains the source until ctx is cancelled, returning ctx.Err() on
// graceful shutdown or the first unrecoverable demux error otherwise. On
// return it aborts every target queue so downstream decoders unblock.
func (r *Reader) Run(ctx context.Context) error {
	defer func() {
		for _, q := range r.targets.all() {
			q.Abort()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-r.seekCh:
			if err := r.doSeek(req); err != nil {
				return fmt.Errorf("source: seek: %w", err)
			}
			continue
		default:
		}

		if !r.opts.InfiniteBuffer && r.backpressured() {
			time.Sleep(starvedPollInterval)
			continue
		}

		pkt, ok, err := r.src.ReadPacket()
		if err != nil {
			return fmt.Errorf("source: read packet: %w", err)
		}
		if !ok {
			if handled, err := r.handleEOF(ctx); handled {
				if err != nil {
					return err
				}
				continue
			}
			return ctx.Err()
		}

		q := r.targets.queueFor(pkt.Kind)
		if q == nil {
			continue
		}
		q.Put(queue.Packet{
			Kind:        queue.PacketData,
			Data:        pkt.Data,
			StreamIndex: pkt.StreamIndex,
			PTS:         pkt.PTS,
			DTS:         pkt.DTS,
			Duration:    pkt.Duration,
		})
	}
}

// doSeek rewinds the source and flushes every target queue so decoders
// discard anything still in flight from before the seek, using the
// flush-serial protocol PacketQueue.Flush implements.
func (r *Reader) doSeek(req SeekRequest) error {
	if err := r.src.Rewind(req.Seconds); err != nil {
		return err
	}
	for _, q := range r.targets.all() {
		q.Flush()
	}
	return nil
}

// handleEOF implements loop-at-end for seekable sources by rewinding the
// source to the start without flushing the queues, so packets still
// queued from the finished pass are played before the next pass.
// Otherwise it pushes a null packet per queue and waits up to
// eofPollInterval for a seek request or shutdown; if neither arrives it
// returns so Run reads again, which at end of input repeats this step.
// The bool return is false once the reader should exit Run entirely.
func (r *Reader) handleEOF(ctx context.Context) (bool, error) {
	if r.opts.Loop && !r.src.IsRealtime() {
		if err := r.src.Rewind(0); err != nil {
			return true, fmt.Errorf("source: loop rewind: %w", err)
		}
		return true, nil
	}

	for _, q := range r.targets.all() {
		q.PutNull(0)
	}

	select {
	case <-ctx.Done():
		return false, nil
	case req := <-r.seekCh:
		if err := r.doSeek(req); err != nil {
			return true, fmt.Errorf("source: seek: %w", err)
		}
		return true, nil
	case <-time.After(eofPollInterval):
		return true, nil
	}
}

// backpressured reports whether the reader should pause demuxing because
// queued data already covers enough playback time, mirroring ffplay's
// read_thread buffering guard (simplified: it checks packet counts, not
// the additional per-stream duration-covered heuristic ffplay layers on
// top when queue durations are known).
func (r *Reader) backpressured() bool {
	var total int64
	for _, q := range r.targets.all() {
		total += q.Size()
	}
	if total > MaxQueueSize {
		return true
	}

	for _, q := range r.targets.all() {
		if q.NbPackets() <= MinFrames {
			return false
		}
	}
	return true
}
