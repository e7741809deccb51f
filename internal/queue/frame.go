package queue

import "sync"

// FrameKind identifies which stream a decoded frame belongs to.
type FrameKind int

const (
	FrameVideo FrameKind = iota
	FrameAudio
	FrameSubtitle
)

// Subtitle carries the minimal decoded representation of a subtitle cue;
// reisen does not expose subtitle decoding, so the field is populated only
// by the in-memory test source and any future subtitle-capable codec.Source.
type Subtitle struct {
	Text  string
	Start float64
	End   float64
}

// Frame is one slot of a FrameQueue ring buffer. Width/Height/SampleRate
// are meaningful only for their respective Kind.
type Frame struct {
	Kind FrameKind

	RGBA []byte // FrameVideo: packed RGBA pixels
	PCM  []byte // FrameAudio: interleaved samples in the sink's native format

	Sub Subtitle

	Width, Height int
	SampleRate    int
	Channels      int

	PTS      float64
	Duration float64
	Serial   int

	Uploaded bool // video only: true once handed to the presenter's surface
}

// FrameQueue is a bounded SPSC ring buffer between one decoder and its
// consumer (AudioSync, VideoSync or the subtitle overlay). It mirrors
// ffplay's Frame/FrameQueue struct: writable slots are claimed with
// PeekWritable/Push, and readable slots are retired with Next, keeping the
// most recently shown frame (keepLast) visible at index 0 until the
// consumer explicitly advances past it.
type FrameQueue struct {
	mu   sync.Mutex
	cond *sync.Cond

	items    []Frame
	size     int
	maxSize  int
	keepLast bool

	rindex      int
	rindexShown int
	windex      int
	eof         bool

	packets *PacketQueue // for serial/abort coordination with the producer
}

// NewFrameQueue allocates a queue with room for maxSize frames. keepLast
// mirrors ffplay's "keep last shown frame" behaviour, used by the video
// and subtitle queues but not the audio queue.
func NewFrameQueue(packets *PacketQueue, maxSize int, keepLast bool) *FrameQueue {
	f := &FrameQueue{
		items:   make([]Frame, maxSize),
		maxSize: maxSize,
		keepLast: keepLast,
		packets: packets,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Signal wakes any goroutine blocked on PeekWritable or PeekReadable,
// used on shutdown to release a decoder or consumer stuck waiting.
func (f *FrameQueue) Signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cond.Broadcast()
}

// PeekWritable blocks until a slot is free for the decoder to fill, then
// returns a pointer into the ring buffer. It returns nil if the queue's
// backing packet queue was aborted while waiting.
func (f *FrameQueue) PeekWritable() *Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.size >= f.maxSize && !f.packets.IsAborted() {
		f.cond.Wait()
	}
	if f.packets.IsAborted() {
		return nil
	}
	return &f.items[f.windex]
}

// Push commits the slot most recently returned by PeekWritable, making it
// visible to readers.
func (f *FrameQueue) Push() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windex = (f.windex + 1) % f.maxSize
	f.size++
	f.cond.Signal()
}

// PeekReadable blocks until at least one displayable frame is available
// (accounting for the possibly-still-shown previous frame), returning nil
// if the packet queue was aborted or SetEOF(true) was called while no
// frame was queued.
func (f *FrameQueue) PeekReadable() *Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.size-f.rindexShown <= 0 && !f.packets.IsAborted() && !f.eof {
		f.cond.Wait()
	}
	if f.size-f.rindexShown <= 0 {
		return nil
	}
	return &f.items[(f.rindex+f.rindexShown)%f.maxSize]
}

// SetEOF marks (or clears) the queue as having nothing more to produce
// for the decoder's current serial, waking any goroutine blocked in
// PeekReadable so it can observe the drained queue instead of waiting
// forever for a frame that will never arrive. A decode worker clears it
// again after a flush resets the serial.
func (f *FrameQueue) SetEOF(eof bool) {
	f.mu.Lock()
	f.eof = eof
	f.mu.Unlock()
	f.cond.Broadcast()
}

// Peek returns the next frame to display without blocking or validating
// availability; callers must first establish via PeekReadable/NbRemaining
// that a frame exists.
func (f *FrameQueue) Peek() *Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &f.items[(f.rindex+f.rindexShown)%f.maxSize]
}

// PeekNext returns the frame after the one Peek would return, used by
// VideoSync's duration-to-next-frame calculation.
func (f *FrameQueue) PeekNext() *Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &f.items[(f.rindex+f.rindexShown+1)%f.maxSize]
}

// PeekLast returns the most recently shown frame, valid only when
// keepLast is true and at least one frame has been shown.
func (f *FrameQueue) PeekLast() *Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &f.items[f.rindex]
}

// Next retires the current readable frame, advancing the ring and waking
// any decoder blocked in PeekWritable.
func (f *FrameQueue) Next() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keepLast && f.rindexShown == 0 {
		f.rindexShown = 1
		f.mu.Unlock()
		f.cond.Signal()
		f.mu.Lock()
		return
	}
	f.rindex = (f.rindex + 1) % f.maxSize
	f.size--
	f.cond.Signal()
}

// NbRemaining returns how many frames are queued for display, excluding a
// held-over last-shown frame.
func (f *FrameQueue) NbRemaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size - f.rindexShown
}

// WriteIndexSerial returns the serial of the frame most recently pushed
// by the producer.
func (f *FrameQueue) WriteIndexSerial() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.windex - 1
	if idx < 0 {
		idx = f.maxSize - 1
	}
	return f.items[idx].Serial
}
