// Package decode runs one decoder loop per elementary stream, pulling
// packets from a queue.PacketQueue, decoding them through a codec.Source's
// decoder, and pushing the result into a queue.FrameQueue, discarding
// anything that straddles a flush.
package decode

import (
	"errors"
	"sync/atomic"

	"github.com/soffio/myplayer/internal/codec"
	"github.com/soffio/myplayer/internal/queue"
)

// ErrAborted is returned by Run when the worker stopped because its
// packet or frame queue was aborted, not because the stream ended.
var ErrAborted = errors.New("decode: aborted")

// frameDecoder is the common shape of codec.VideoDecoder, AudioDecoder
// and SubtitleDecoder, letting Worker stay generic over stream kind.
type frameDecoder interface {
	Decode(p codec.RawPacket) (codec.RawFrame, bool, error)
	Flush()
	Close() error
}

// Worker drains one PacketQueue through one decoder into one FrameQueue.
// One Worker exists per elementary stream (video, audio, subtitle).
type Worker struct {
	kind    queue.FrameKind
	packets *queue.PacketQueue
	frames  *queue.FrameQueue
	dec     frameDecoder

	lastSerial int
	finished   atomic.Bool
}

// NewWorker builds a decode worker. dec must be a codec.VideoDecoder,
// AudioDecoder or SubtitleDecoder matching kind.
func NewWorker(kind queue.FrameKind, packets *queue.PacketQueue, frames *queue.FrameQueue, dec frameDecoder) *Worker {
	return &Worker{kind: kind, packets: packets, frames: frames, dec: dec, lastSerial: -1}
}

// Finished reports whether the worker has observed end-of-stream for the
// current serial (reset implicitly whenever a flush bumps the serial).
func (w *Worker) Finished() bool { return w.finished.Load() }

// Run pulls packets until the queue is aborted, decoding and forwarding
// each into the frame queue. It returns ErrAborted on graceful shutdown
// and any decode error verbatim otherwise.
func (w *Worker) Run() error {
	for {
		pkt, ok := w.packets.Get(true)
		if !ok {
			return ErrAborted
		}

		if pkt.Serial != w.lastSerial {
			// The first packet only adopts the queue's serial; flushing
			// then would discard the frame the source stashed for it.
			if w.lastSerial != -1 {
				w.dec.Flush()
			}
			w.lastSerial = pkt.Serial
			w.finished.Store(false)
			w.frames.SetEOF(false)
		}

		if pkt.Kind == queue.PacketNull {
			w.finished.Store(true)
			w.frames.SetEOF(true)
			continue
		}

		raw, got, err := w.dec.Decode(toRawPacket(pkt, w.kind))
		if err != nil {
			return err
		}
		if !got {
			continue
		}

		// A flush may have landed between Get and Decode; a frame built
		// from a now-stale packet must not reach the presenter.
		if pkt.Serial != w.packets.Serial() {
			continue
		}

		slot := w.frames.PeekWritable()
		if slot == nil {
			return ErrAborted
		}
		*slot = toQueueFrame(raw, pkt.Serial)
		w.frames.Push()
	}
}

func toRawPacket(p queue.Packet, kind queue.FrameKind) codec.RawPacket {
	return codec.RawPacket{
		StreamIndex: p.StreamIndex,
		Kind:        streamKindOf(kind),
		Data:        p.Data,
		PTS:         p.PTS,
		DTS:         p.DTS,
		Duration:    p.Duration,
	}
}

func streamKindOf(k queue.FrameKind) codec.StreamKind {
	switch k {
	case queue.FrameAudio:
		return codec.StreamAudio
	case queue.FrameSubtitle:
		return codec.StreamSubtitle
	default:
		return codec.StreamVideo
	}
}

func toQueueFrame(raw codec.RawFrame, serial int) queue.Frame {
	f := queue.Frame{
		RGBA:       raw.RGBA,
		PCM:        raw.PCM,
		Width:      raw.Width,
		Height:     raw.Height,
		SampleRate: raw.SampleRate,
		Channels:   raw.Channels,
		PTS:        raw.PTS,
		Duration:   raw.Duration,
		Serial:     serial,
	}
	switch raw.Kind {
	case codec.StreamAudio:
		f.Kind = queue.FrameAudio
	case codec.StreamSubtitle:
		f.Kind = queue.FrameSubtitle
		f.Sub = queue.Subtitle{Text: raw.SubText, Start: raw.SubStart, End: raw.SubEnd}
	default:
		f.Kind = queue.FrameVideo
	}
	return f
}
