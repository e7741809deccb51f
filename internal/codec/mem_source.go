package codec

import "fmt"

// ScriptedUnit is one programmed packet+frame pair used to drive a
// MemSource. Real sources never expose an already-decoded frame this
// early, but pairing them up front keeps the test double trivial while
// still exercising the full packet-queue -> decoder -> frame-queue path.
type ScriptedUnit struct {
	Packet RawPacket
	Frame  RawFrame
}

// MemSource is a deterministic, in-process Source used by package tests
// that would otherwise require a real media file or network stream. It
// supports subtitle streams, which no reisen-backed Source can, so it is
// also what exercises internal/decode's subtitle path end to end.
type MemSource struct {
	streams  []StreamInfo
	units    []ScriptedUnit
	pos      int
	duration float64
	realtime bool

	pending map[StreamKind]*RawFrame
}

// NewMemSource builds a Source that replays units in order, reporting the
// given streams and duration.
func NewMemSource(streams []StreamInfo, units []ScriptedUnit, duration float64) *MemSource {
	return &MemSource{
		streams:  streams,
		units:    units,
		duration: duration,
		pending:  make(map[StreamKind]*RawFrame),
	}
}

// SetRealtime marks the source as non-seekable, exercising the reader's
// live-input code path in tests.
func (m *MemSource) SetRealtime(v bool) *MemSource {
	m.realtime = v
	return m
}

func (m *MemSource) Streams() []StreamInfo { return m.streams }
func (m *MemSource) Duration() float64     { return m.duration }
func (m *MemSource) IsRealtime() bool      { return m.realtime }

func (m *MemSource) hasKind(kind StreamKind) bool {
	for _, s := range m.streams {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

func (m *MemSource) VideoDecoder() VideoDecoder {
	if !m.hasKind(StreamVideo) {
		return nil
	}
	return NewMemVideoDecoder(m)
}

func (m *MemSource) AudioDecoder() AudioDecoder {
	if !m.hasKind(StreamAudio) {
		return nil
	}
	return NewMemAudioDecoder(m)
}

func (m *MemSource) SubtitleDecoder() SubtitleDecoder {
	if !m.hasKind(StreamSubtitle) {
		return nil
	}
	return NewMemSubtitleDecoder(m)
}

func (m *MemSource) ReadPacket() (RawPacket, bool, error) {
	if m.pos >= len(m.units) {
		return RawPacket{}, false, nil
	}
	u := m.units[m.pos]
	m.pos++
	frame := u.Frame
	m.pending[u.Packet.Kind] = &frame
	return u.Packet, true, nil
}

func (m *MemSource) Rewind(toSeconds float64) error {
	if m.realtime {
		return fmt.Errorf("codec: cannot seek a realtime source")
	}
	for i, u := range m.units {
		if u.Packet.PTS >= toSeconds {
			m.pos = i
			return nil
		}
	}
	m.pos = len(m.units)
	return nil
}

func (m *MemSource) Close() error { return nil }

type memDecoder struct {
	src  *MemSource
	kind StreamKind
}

// NewMemVideoDecoder, NewMemAudioDecoder and NewMemSubtitleDecoder return
// decoders that simply hand back the frame paired with the most recently
// read packet of the matching kind.
func NewMemVideoDecoder(src *MemSource) VideoDecoder       { return &memDecoder{src: src, kind: StreamVideo} }
func NewMemAudioDecoder(src *MemSource) AudioDecoder       { return &memDecoder{src: src, kind: StreamAudio} }
func NewMemSubtitleDecoder(src *MemSource) SubtitleDecoder { return &memDecoder{src: src, kind: StreamSubtitle} }

func (d *memDecoder) Decode(RawPacket) (RawFrame, bool, error) {
	f := d.src.pending[d.kind]
	if f == nil {
		return RawFrame{}, false, nil
	}
	d.src.pending[d.kind] = nil
	return *f, true, nil
}

func (d *memDecoder) Flush()       { d.src.pending[d.kind] = nil }
func (d *memDecoder) Close() error { return nil }
