package engine

import (
	"io"
	"sync"

	"github.com/soffio/myplayer/internal/avsync"
)

// bytesPerSample matches reisen's PCM output format (16-bit signed,
// little-endian), fed straight into ebiten's L16 audio context.
const bytesPerSample = 2

// AudioSink adapts VideoState's audio frame queue to io.Reader, the pull
// model ebiten's audio.Player (and any other byte-stream sink) consumes.
// It pulls already-decoded frames off audioFrames and applies AudioSync's
// sample-count correction before handing bytes back, rather than
// decoding inline on each Read call.
type AudioSink struct {
	vs *VideoState

	mu       sync.Mutex
	leftover []byte
}

// Read fills buffer with PCM audio, decoding and stretching further
// frames as needed. It returns io.EOF once the audio frame queue reports
// no more frames (end of stream or shutdown); with Options.Loop set it
// also asks the reader to seek back to the start before returning. While
// looping a seekable source the reader rewinds at end of input itself,
// so the stream keeps producing bytes and that point is not reached.
func (a *AudioSink) Read(buffer []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var served int
	if len(a.leftover) > 0 {
		n := copy(buffer, a.leftover)
		a.leftover = a.leftover[n:]
		served += n
		buffer = buffer[n:]
	}

	for len(buffer) > 0 {
		pcm, done, err := a.vs.nextAudioPCM()
		if err != nil {
			return served, err
		}
		if done {
			if a.vs.opts.Loop {
				a.vs.reader.Seek(0)
				return served, io.EOF
			}
			return served, io.EOF
		}
		if len(pcm) == 0 {
			continue
		}

		n := copy(buffer, pcm)
		served += n
		buffer = buffer[n:]
		if n < len(pcm) {
			a.leftover = append(a.leftover[:0], pcm[n:]...)
		}
	}
	return served, nil
}

// nextAudioPCM pulls the next audio frame, applying AudioSync's
// wanted-sample-count correction, and advances the audio clock to the
// frame's PTS exactly as ffplay's audio_decode_frame does after
// resampling. It blocks on audioFrames.PeekReadable rather than polling,
// so the caller sleeps until the decode worker actually has something for
// it instead of spinning. done is true once the audio stream has been
// fully drained (PutNull observed and no more frames queued) or the
// pipeline is shutting down.
func (vs *VideoState) nextAudioPCM() (pcm []byte, done bool, err error) {
	f := vs.audioFrames.PeekReadable()
	if f == nil {
		return nil, true, nil
	}

	if f.Serial != vs.audioPackets.Serial() {
		vs.audioFrames.Next()
		return nil, false, nil
	}

	channels := f.Channels
	if channels == 0 {
		channels = 2
	}
	nbSamples := len(f.PCM) / (channels * bytesPerSample)
	wanted := nbSamples
	if vs.audioSync != nil && nbSamples > 0 {
		wanted = vs.audioSync.WantedSampleCount(nbSamples, f.PTS)
	}

	out := f.PCM
	if wanted != nbSamples && nbSamples > 0 {
		out = avsync.Stretch(f.PCM, channels, bytesPerSample, wanted)
	}

	vs.clocks.Audio.Set(f.PTS, f.Serial)
	vs.audioFrames.Next()
	return out, false, nil
}
