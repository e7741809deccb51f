package avsync

import (
	"math"

	"github.com/soffio/myplayer/internal/clock"
)

// AudioDiffAvgNB and the EMA coefficient derived from it control how many
// consecutive measurements synchronize_audio averages before it trusts
// the estimate enough to act on it, exactly as ffplay's audio_diff_avg_nb.
const (
	AudioDiffAvgNB             = 20
	SampleCorrectionPercentMax = 10
)

var audioDiffAvgCoef = math.Exp(math.Log(0.01) / AudioDiffAvgNB)

// AudioSync decides, once per decoded audio frame, how many samples the
// sink should actually be fed so the audio clock eases back toward the
// master clock instead of free-running. It never touches the master
// clock itself - VideoState.SyncType might not even be audio-master - it
// only ever nudges the audio stream's own pace.
type AudioSync struct {
	clocks *Clocks

	sampleRate int
	threshold  float64

	diffCum      float64
	diffAvgCount int
}

// NewAudioSync builds an audio pacer for a stream at sampleRate. The
// caller should call SetBufferThreshold once the audio sink's buffer
// size is known, mirroring ffplay deriving audio_diff_threshold from
// audio_hw_buf_size after opening the device.
func NewAudioSync(clocks *Clocks, sampleRate int) *AudioSync {
	return &AudioSync{clocks: clocks, sampleRate: sampleRate}
}

// SetBufferThreshold sets the minimum averaged drift, in seconds, worth
// correcting for: hwBufBytes / bytesPerSecond of the sink's format.
func (a *AudioSync) SetBufferThreshold(hwBufBytes int, bytesPerSecond float64) {
	if bytesPerSecond <= 0 {
		return
	}
	a.threshold = float64(hwBufBytes) / bytesPerSecond
}

// WantedSampleCount returns how many samples the current audio frame
// should be stretched or compressed to, given it naturally holds
// nbSamples and the stream's clock currently reads audioClockVal.
// Mirrors ffplay's synchronize_audio.
func (a *AudioSync) WantedSampleCount(nbSamples int, audioClockVal float64) int {
	if a.clocks.SyncType == SyncAudioMaster {
		return nbSamples
	}

	diff := audioClockVal - a.clocks.Master().Get()
	if math.IsNaN(diff) || math.Abs(diff) >= clock.NoSyncThreshold {
		a.diffAvgCount = 0
		a.diffCum = 0
		return nbSamples
	}

	a.diffCum = diff + audioDiffAvgCoef*a.diffCum
	if a.diffAvgCount < AudioDiffAvgNB {
		a.diffAvgCount++
		return nbSamples
	}

	avgDiff := a.diffCum * (1.0 - audioDiffAvgCoef)
	if math.Abs(avgDiff) < a.threshold {
		return nbSamples
	}

	wanted := nbSamples + int(diff*float64(a.sampleRate))
	minSamples := nbSamples * (100 - SampleCorrectionPercentMax) / 100
	maxSamples := nbSamples * (100 + SampleCorrectionPercentMax) / 100
	if wanted < minSamples {
		wanted = minSamples
	} else if wanted > maxSamples {
		wanted = maxSamples
	}
	return wanted
}

// Stretch resamples pcm (interleaved samples of the given width in
// bytes per sample per channel) from its natural sample count to
// wantedSamples using linear interpolation across channel frames. It is
// a simplified stand-in for libswresample's compensation path: ffplay
// delegates this to FFmpeg's resampler, but reisen/ebiten's pull model
// gives this package raw PCM directly, so the pipeline does its own
// stretch instead of pulling in a second resampling dependency for a
// single call site.
func Stretch(pcm []byte, channels, bytesPerSample, wantedSamples int) []byte {
	frameSize := channels * bytesPerSample
	if frameSize == 0 {
		return pcm
	}
	nbSamples := len(pcm) / frameSize
	if nbSamples == 0 || wantedSamples == nbSamples {
		return pcm
	}

	out := make([]byte, wantedSamples*frameSize)
	for i := 0; i < wantedSamples; i++ {
		srcIdx := i * (nbSamples - 1) / maxInt(wantedSamples-1, 1)
		copy(out[i*frameSize:(i+1)*frameSize], pcm[srcIdx*frameSize:(srcIdx+1)*frameSize])
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
