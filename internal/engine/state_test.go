package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/soffio/myplayer/internal/codec"
)

func newTestSource() *codec.MemSource {
	streams := []codec.StreamInfo{
		{Kind: codec.StreamVideo, Index: 0, Width: 4, Height: 4},
		{Kind: codec.StreamAudio, Index: 1, SampleRate: 44100},
	}
	rgba := make([]byte, 4*4*4)
	pcm := make([]byte, 1024*2*2)
	units := []codec.ScriptedUnit{
		{Packet: codec.RawPacket{Kind: codec.StreamVideo, StreamIndex: 0, PTS: 0.00}, Frame: codec.RawFrame{Kind: codec.StreamVideo, Width: 4, Height: 4, RGBA: rgba, PTS: 0.00, Duration: 0.04}},
		{Packet: codec.RawPacket{Kind: codec.StreamAudio, StreamIndex: 1, PTS: 0.00}, Frame: codec.RawFrame{Kind: codec.StreamAudio, SampleRate: 44100, Channels: 2, PCM: pcm, PTS: 0.00}},
		{Packet: codec.RawPacket{Kind: codec.StreamVideo, StreamIndex: 0, PTS: 0.04}, Frame: codec.RawFrame{Kind: codec.StreamVideo, Width: 4, Height: 4, RGBA: rgba, PTS: 0.04, Duration: 0.04}},
		{Packet: codec.RawPacket{Kind: codec.StreamAudio, StreamIndex: 1, PTS: 0.02}, Frame: codec.RawFrame{Kind: codec.StreamAudio, SampleRate: 44100, Channels: 2, PCM: pcm, PTS: 0.02}},
	}
	return codec.NewMemSource(streams, units, 1.0)
}

func TestVideoStateStartPresentsFrames(t *testing.T) {
	src := newTestSource()
	vs, err := NewVideoState(src, Options{HasAudio: true}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, vs.Start(ctx))

	require.Eventually(t, func() bool { return vs.Presenter().Surface() != nil }, time.Second, time.Millisecond)
	require.Equal(t, StatePlaying, vs.State())
	require.NoError(t, vs.Close())
}

func TestVideoStatePauseFreezesClock(t *testing.T) {
	src := newTestSource()
	vs, err := NewVideoState(src, Options{HasAudio: true}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, vs.Start(ctx))
	require.Eventually(t, func() bool { return vs.Presenter().Surface() != nil }, time.Second, time.Millisecond)

	// Position follows the audio master clock, which only the audio sink
	// sets; pull some audio so the clock has a value to freeze.
	n, err := vs.AudioSink().Read(make([]byte, 256))
	require.NoError(t, err)
	require.Positive(t, n)

	vs.Pause()
	require.Equal(t, StatePaused, vs.State())
	pos1 := vs.Position()
	time.Sleep(20 * time.Millisecond)
	pos2 := vs.Position()
	require.Equal(t, pos1, pos2)

	vs.Play()
	require.Equal(t, StatePlaying, vs.State())
	require.NoError(t, vs.Close())
}

func TestVideoStateAudioSinkServesPCM(t *testing.T) {
	src := newTestSource()
	vs, err := NewVideoState(src, Options{HasAudio: true}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, vs.Start(ctx))

	sink := vs.AudioSink()
	require.NotNil(t, sink)

	buf := make([]byte, 256)
	require.Eventually(t, func() bool {
		n, err := sink.Read(buf)
		return n > 0 && err == nil
	}, time.Second, time.Millisecond)

	require.NoError(t, vs.Close())
}

func TestVideoStateRejectsSourceWithNoUsableStream(t *testing.T) {
	src := codec.NewMemSource(nil, nil, 0)
	_, err := NewVideoState(src, Options{}, nil)
	require.Error(t, err)
}

func TestVideoStateUploadsSubtitleCues(t *testing.T) {
	streams := []codec.StreamInfo{
		{Kind: codec.StreamVideo, Index: 0, Width: 4, Height: 4},
		{Kind: codec.StreamSubtitle, Index: 1},
	}
	rgba := make([]byte, 4*4*4)
	units := []codec.ScriptedUnit{
		{Packet: codec.RawPacket{Kind: codec.StreamSubtitle, StreamIndex: 1, PTS: 0.00}, Frame: codec.RawFrame{Kind: codec.StreamSubtitle, SubText: "hello", SubStart: 0.00, SubEnd: 10.0}},
		{Packet: codec.RawPacket{Kind: codec.StreamVideo, StreamIndex: 0, PTS: 0.00}, Frame: codec.RawFrame{Kind: codec.StreamVideo, Width: 4, Height: 4, RGBA: rgba, PTS: 0.00, Duration: 0.04}},
		{Packet: codec.RawPacket{Kind: codec.StreamVideo, StreamIndex: 0, PTS: 0.04}, Frame: codec.RawFrame{Kind: codec.StreamVideo, Width: 4, Height: 4, RGBA: rgba, PTS: 0.04, Duration: 0.04}},
	}
	src := codec.NewMemSource(streams, units, 1.0)

	vs, err := NewVideoState(src, Options{HasSubtitles: true}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, vs.Start(ctx))

	require.Eventually(t, func() bool {
		return vs.Presenter().Subtitle(0) == "hello"
	}, time.Second, time.Millisecond)

	require.NoError(t, vs.Close())
}

func TestVideoStateSeekReachesReader(t *testing.T) {
	src := newTestSource()
	vs, err := NewVideoState(src, Options{HasAudio: true}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, vs.Start(ctx))
	require.Eventually(t, func() bool { return vs.Presenter().Surface() != nil }, time.Second, time.Millisecond)

	before := vs.videoPackets.Serial()
	vs.Seek(0)
	require.Eventually(t, func() bool { return vs.videoPackets.Serial() > before }, time.Second, time.Millisecond)
	require.NoError(t, vs.Close())
}
