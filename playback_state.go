package myplayer

import "github.com/soffio/myplayer/internal/engine"

// PlaybackState is the five states a reader/decoder/presenter pipeline
// passes through: Idle before anything is opened, Preparing while
// streams are probed and workers are spinning up, Playing, Paused, and
// Closing once shutdown has begun.
type PlaybackState = engine.State

const (
	Idle      = engine.StateIdle
	Preparing = engine.StatePreparing
	Playing   = engine.StatePlaying
	Paused    = engine.StatePaused
	Closing   = engine.StateClosing
)
