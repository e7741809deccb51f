package decode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/soffio/myplayer/internal/codec"
	"github.com/soffio/myplayer/internal/queue"
)

func TestWorkerForwardsDecodedFrames(t *testing.T) {
	src := codec.NewMemSource(nil, []codec.ScriptedUnit{
		{Packet: codec.RawPacket{Kind: codec.StreamVideo, PTS: 0.0}, Frame: codec.RawFrame{Kind: codec.StreamVideo, PTS: 0.0, RGBA: []byte{1}}},
		{Packet: codec.RawPacket{Kind: codec.StreamVideo, PTS: 0.04}, Frame: codec.RawFrame{Kind: codec.StreamVideo, PTS: 0.04, RGBA: []byte{2}}},
	}, 1.0)

	packets := queue.NewPacketQueue()
	packets.Start()
	frames := queue.NewFrameQueue(packets, 4, true)

	w := NewWorker(queue.FrameVideo, packets, frames, codec.NewMemVideoDecoder(src))

	go func() {
		p0, _, _ := src.ReadPacket()
		packets.Put(queue.Packet{Kind: queue.PacketData, PTS: p0.PTS})
		// MemSource holds one pending frame per kind, so p0's frame must
		// be queued before reading p1 replaces it.
		for frames.NbRemaining() == 0 {
			time.Sleep(time.Millisecond)
		}
		p1, _, _ := src.ReadPacket()
		packets.Put(queue.Packet{Kind: queue.PacketData, PTS: p1.PTS})
		time.Sleep(20 * time.Millisecond)
		packets.Abort()
		frames.Signal()
	}()

	err := w.Run()
	require.ErrorIs(t, err, ErrAborted)
	require.Equal(t, 2, frames.NbRemaining())
}

// slowDecoder delays Decode so a concurrent Flush can land between a
// packet being popped and its frame being forwarded, exercising the
// worker's post-decode staleness check.
type slowDecoder struct {
	inner interface {
		Decode(p codec.RawPacket) (codec.RawFrame, bool, error)
		Flush()
		Close() error
	}
	delay   time.Duration
	started chan struct{}
}

func (d *slowDecoder) Decode(p codec.RawPacket) (codec.RawFrame, bool, error) {
	close(d.started)
	time.Sleep(d.delay)
	return d.inner.Decode(p)
}
func (d *slowDecoder) Flush()       { d.inner.Flush() }
func (d *slowDecoder) Close() error { return d.inner.Close() }

func TestWorkerDiscardsFramesFromStalePacket(t *testing.T) {
	src := codec.NewMemSource(nil, []codec.ScriptedUnit{
		{Packet: codec.RawPacket{Kind: codec.StreamAudio, PTS: 0.0}, Frame: codec.RawFrame{Kind: codec.StreamAudio, PTS: 0.0}},
	}, 1.0)

	packets := queue.NewPacketQueue()
	packets.Start()
	frames := queue.NewFrameQueue(packets, 4, false)
	slow := &slowDecoder{inner: codec.NewMemAudioDecoder(src), delay: 30 * time.Millisecond, started: make(chan struct{})}
	w := NewWorker(queue.FrameAudio, packets, frames, slow)

	p, _, _ := src.ReadPacket()
	packets.Put(queue.Packet{Kind: queue.PacketData, PTS: p.PTS})

	go func() {
		<-slow.started
		packets.Flush() // bumps serial while Decode is still in flight
		time.Sleep(50 * time.Millisecond)
		packets.Abort()
		frames.Signal()
	}()

	err := w.Run()
	require.ErrorIs(t, err, ErrAborted)
	require.Equal(t, 0, frames.NbRemaining())
}

func TestWorkerTracksEndOfStream(t *testing.T) {
	src := codec.NewMemSource(nil, nil, 0)
	packets := queue.NewPacketQueue()
	packets.Start()
	frames := queue.NewFrameQueue(packets, 2, false)
	w := NewWorker(queue.FrameVideo, packets, frames, codec.NewMemVideoDecoder(src))

	packets.PutNull(0)
	go func() {
		time.Sleep(10 * time.Millisecond)
		packets.Abort()
		frames.Signal()
	}()
	_ = w.Run()
	require.True(t, w.Finished())
}
