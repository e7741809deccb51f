package codec

import (
	"fmt"
	"strings"

	"github.com/erparts/reisen"
)

// realtimeSchemes mirrors the prefixes ffplay treats as non-seekable,
// network-backed inputs (rtsp/rtmp/udp/srt and similar), used to decide
// whether the reader should apply live backpressure and reject Seek.
var realtimeSchemes = []string{"rtsp://", "rtmp://", "rtmps://", "udp://", "srt://", "rtp://"}

// reisenSource adapts github.com/erparts/reisen's cgo/FFmpeg bindings to
// the Source interface. reisen couples demuxing and decoding through the
// per-stream ReadVideoFrame/ReadAudioFrame calls rather than exposing a
// bare decode(packet) primitive, so ReadPacket drives the matching
// stream's decode call eagerly and caches the resulting frame for the
// paired VideoDecoder/AudioDecoder to hand back on its next Decode call.
type reisenSource struct {
	media *reisen.Media
	path  string

	videoStream *reisen.VideoStream
	audioStream *reisen.AudioStream

	streams []StreamInfo

	pendingVideo *RawFrame
	pendingAudio *RawFrame

	realtime bool
}

// OpenReisen opens path (a file path or network URL) and prepares its
// video and audio streams for decoding. Subtitle streams are not exposed
// by reisen and are never reported.
func OpenReisen(path string) (Source, error) {
	realtime := isRealtimeURL(path)
	if realtime {
		if err := reisen.NetworkInitialize(); err != nil {
			return nil, fmt.Errorf("codec: network init: %w", err)
		}
	}

	media, err := reisen.NewMedia(path)
	if err != nil {
		return nil, fmt.Errorf("codec: open %q: %w", path, err)
	}
	if err := media.OpenDecode(); err != nil {
		return nil, fmt.Errorf("codec: open decode %q: %w", path, err)
	}

	src := &reisenSource{media: media, path: path, realtime: realtime}

	for _, s := range media.VideoStreams() {
		if err := s.Open(); err != nil {
			continue
		}
		src.videoStream = s
		src.streams = append(src.streams, StreamInfo{
			Kind:      StreamVideo,
			Index:     s.Index(),
			Width:     s.Width(),
			Height:    s.Height(),
			FrameRate: s.FrameRate(),
		})
		break
	}
	for _, s := range media.AudioStreams() {
		if err := s.Open(); err != nil {
			continue
		}
		src.audioStream = s
		src.streams = append(src.streams, StreamInfo{
			Kind:       StreamAudio,
			Index:      s.Index(),
			SampleRate: s.SampleRate(),
		})
		break
	}

	return src, nil
}

func isRealtimeURL(path string) bool {
	lower := strings.ToLower(path)
	for _, scheme := range realtimeSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

func (s *reisenSource) Streams() []StreamInfo { return s.streams }

func (s *reisenSource) VideoDecoder() VideoDecoder {
	if s.videoStream == nil {
		return nil
	}
	return &reisenVideoDecoder{src: s}
}

func (s *reisenSource) AudioDecoder() AudioDecoder {
	if s.audioStream == nil {
		return nil
	}
	return &reisenAudioDecoder{src: s}
}

func (s *reisenSource) SubtitleDecoder() SubtitleDecoder { return nil }

func (s *reisenSource) Duration() float64 {
	return s.media.Duration().Seconds()
}

func (s *reisenSource) IsRealtime() bool { return s.realtime }

// ReadPacket pulls the next demuxed packet and, if it belongs to a stream
// this source opened, eagerly decodes it and stashes the resulting frame
// so the paired decoder's next Decode call can hand it back.
func (s *reisenSource) ReadPacket() (RawPacket, bool, error) {
	for {
		packet, ok, err := s.media.ReadPacket()
		if err != nil {
			return RawPacket{}, false, fmt.Errorf("codec: read packet: %w", err)
		}
		if !ok {
			return RawPacket{}, false, nil
		}

		switch {
		case s.videoStream != nil && packet.Type() == reisen.StreamVideo && packet.StreamIndex() == s.videoStream.Index():
			frame, got, err := s.videoStream.ReadVideoFrame()
			if err != nil {
				return RawPacket{}, false, fmt.Errorf("codec: decode video: %w", err)
			}
			if !got || frame == nil {
				continue
			}
			pts, _ := frame.PresentationOffset()
			s.pendingVideo = &RawFrame{
				Kind:   StreamVideo,
				RGBA:   frame.Data(),
				Width:  s.videoStream.Width(),
				Height: s.videoStream.Height(),
				PTS:    pts.Seconds(),
			}
			return RawPacket{StreamIndex: s.videoStream.Index(), Kind: StreamVideo, PTS: pts.Seconds()}, true, nil

		case s.audioStream != nil && packet.Type() == reisen.StreamAudio && packet.StreamIndex() == s.audioStream.Index():
			frame, got, err := s.audioStream.ReadAudioFrame()
			if err != nil {
				return RawPacket{}, false, fmt.Errorf("codec: decode audio: %w", err)
			}
			if !got || frame == nil {
				continue
			}
			pts, _ := frame.PresentationOffset()
			s.pendingAudio = &RawFrame{
				Kind:       StreamAudio,
				PCM:        frame.Data(),
				SampleRate: s.audioStream.SampleRate(),
				PTS:        pts.Seconds(),
			}
			return RawPacket{StreamIndex: s.audioStream.Index(), Kind: StreamAudio, PTS: pts.Seconds()}, true, nil

		default:
			continue
		}
	}
}

func (s *reisenSource) Rewind(toSeconds float64) error {
	if s.realtime {
		return fmt.Errorf("codec: cannot seek a realtime source")
	}
	if err := s.media.Rewind(secondsToDuration(toSeconds)); err != nil {
		return fmt.Errorf("codec: rewind: %w", err)
	}
	return nil
}

func (s *reisenSource) Close() error {
	if s.videoStream != nil {
		_ = s.videoStream.Close()
	}
	if s.audioStream != nil {
		_ = s.audioStream.Close()
	}
	_ = s.media.CloseDecode()
	s.media.Close()
	if s.realtime {
		reisen.NetworkDeinitialize()
	}
	return nil
}

// reisenVideoDecoder and reisenAudioDecoder adapt the pending frames
// reisenSource stashed during ReadPacket to the VideoDecoder/AudioDecoder
// interfaces the rest of the pipeline expects.

type reisenVideoDecoder struct{ src *reisenSource }

func (d *reisenVideoDecoder) Decode(RawPacket) (RawFrame, bool, error) {
	if d.src.pendingVideo == nil {
		return RawFrame{}, false, nil
	}
	f := *d.src.pendingVideo
	d.src.pendingVideo = nil
	return f, true, nil
}

func (d *reisenVideoDecoder) Flush()       { d.src.pendingVideo = nil }
func (d *reisenVideoDecoder) Close() error { return nil }

type reisenAudioDecoder struct{ src *reisenSource }

func (d *reisenAudioDecoder) Decode(RawPacket) (RawFrame, bool, error) {
	if d.src.pendingAudio == nil {
		return RawFrame{}, false, nil
	}
	f := *d.src.pendingAudio
	d.src.pendingAudio = nil
	return f, true, nil
}

func (d *reisenAudioDecoder) Flush()       { d.src.pendingAudio = nil }
func (d *reisenAudioDecoder) Close() error { return nil }

// reisen exposes no subtitle demux/decode API, so SubtitleDecoder always
// returns nil; callers treat a nil SubtitleDecoder as "no subtitle
// stream" exactly as they would for a source with no subtitle track.
