package myplayer

import (
	"errors"

	"github.com/erparts/reisen"
	"github.com/hajimehoshi/ebiten/v2/audio"
)

var ErrNoAudio = errors.New("media contains no audio")
var ErrNonNilAudioContext = errors.New("audio context already initialized")

// CreateAudioContextForMedia creates an Ebitengine audio context sized to
// videoFilename's audio sample rate. Call this before NewPlayer if the host
// application hasn't already set up its own audio.Context; a Player never
// creates one itself since an application may only ever have one.
func CreateAudioContextForMedia(videoFilename string) error {
	if audio.CurrentContext() != nil {
		return ErrNonNilAudioContext
	}

	sampleRate, err := GetMediaAudioSampleRate(videoFilename)
	if err != nil {
		return err
	}
	_ = audio.NewContext(sampleRate)
	return nil
}

// GetMediaAudioSampleRate probes videoFilename's first audio stream without
// opening the full decode pipeline. If the media has no audio, ErrNoAudio is
// returned.
func GetMediaAudioSampleRate(videoFilename string) (int, error) {
	container, err := reisen.NewMedia(videoFilename)
	if err != nil {
		return 0, err
	}
	defer container.Close()

	audioStreams := container.AudioStreams()
	if len(audioStreams) == 0 {
		return 0, ErrNoAudio
	}
	return audioStreams[0].SampleRate(), nil
}
