package myplayer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/soffio/myplayer/internal/avsync"
)

// optionsFile is the on-disk shape LoadOptions decodes, kept separate
// from Options because Options carries a Logger and a
// prometheus.Registerer that have no sensible YAML representation.
type optionsFile struct {
	HasAudio       *bool   `yaml:"has_audio"`
	HasSubtitles   *bool   `yaml:"has_subtitles"`
	Loop           bool    `yaml:"loop"`
	InfiniteBuffer bool    `yaml:"infinite_buffer"`
	AVSyncType     string  `yaml:"av_sync_type,omitempty"` // "audio", "video" or "external"
	FrameDrop      string  `yaml:"framedrop,omitempty"`    // "auto", "off" or "on"
	AutoExit       bool    `yaml:"autoexit,omitempty"`
	StartTime      float64 `yaml:"start_time,omitempty"`
	Duration       float64 `yaml:"duration,omitempty"`

	AudioHWBufferBytes int `yaml:"audio_hw_buffer_bytes,omitempty"`
}

// LoadOptions reads a YAML file of player defaults and returns the
// Options it describes, for hosts that want to store player settings on
// disk instead of building a struct literal. It is optional sugar over
// Options{}; nothing else in this package requires it.
func LoadOptions(path string) (Options, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("myplayer: load options: %w", err)
	}

	var f optionsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Options{}, fmt.Errorf("myplayer: load options: %w", err)
	}

	opts := Options{
		HasAudio:           true,
		HasSubtitles:       true,
		Loop:               f.Loop,
		InfiniteBuffer:     f.InfiniteBuffer,
		AutoExit:           f.AutoExit,
		StartTime:          f.StartTime,
		Duration:           f.Duration,
		AudioHWBufferBytes: f.AudioHWBufferBytes,
	}
	if f.HasAudio != nil {
		opts.HasAudio = *f.HasAudio
	}
	if f.HasSubtitles != nil {
		opts.HasSubtitles = *f.HasSubtitles
	}

	if syncType, ok, err := parseSyncType(f.AVSyncType); err != nil {
		return Options{}, err
	} else if ok {
		opts.AVSyncType = &syncType
	}

	frameDrop, err := parseFrameDrop(f.FrameDrop)
	if err != nil {
		return Options{}, err
	}
	opts.FrameDrop = frameDrop

	return opts, nil
}

func parseSyncType(s string) (avsync.SyncType, bool, error) {
	switch s {
	case "":
		return 0, false, nil
	case "audio":
		return avsync.SyncAudioMaster, true, nil
	case "video":
		return avsync.SyncVideoMaster, true, nil
	case "external":
		return avsync.SyncExternalClock, true, nil
	default:
		return 0, false, fmt.Errorf("myplayer: load options: unknown av_sync_type %q", s)
	}
}

func parseFrameDrop(s string) (FrameDropMode, error) {
	switch s {
	case "", "auto":
		return FrameDropAuto, nil
	case "off":
		return FrameDropOff, nil
	case "on":
		return FrameDropOn, nil
	default:
		return FrameDropAuto, fmt.Errorf("myplayer: load options: unknown framedrop %q", s)
	}
}
