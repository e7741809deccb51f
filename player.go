// Package myplayer is an embedded media player core built on
// github.com/erparts/reisen for FFmpeg-backed decoding and Ebitengine
// for video presentation and audio playback.
//
// Player is a thin facade over internal/engine.VideoState, which owns
// the actual producer/consumer pipeline: a reader goroutine, one decode
// goroutine per elementary stream, and a video refresh goroutine, all
// synchronized through three logical clocks the way ffplay's VideoState
// is.
package myplayer

import (
	"context"
	"errors"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/soffio/myplayer/internal/codec"
	"github.com/soffio/myplayer/internal/engine"
	"github.com/soffio/myplayer/internal/errs"
)

// playerAudioBufferSize: 200ms is comfortable on desktop targets without
// adding noticeable audio lag.
const playerAudioBufferSize = 200 * time.Millisecond

var (
	ErrNoStream        = errors.New("myplayer: source has no usable video or audio stream")
	ErrNilAudioContext = errors.New("myplayer: source has audio but audio.Context is not initialized")
	ErrNoDataSource    = errors.New("myplayer: Prepare called before SetDataSource")
)

// Options configures a Player; see engine.Options for field documentation.
type Options = engine.Options

// FrameDropMode and its values are re-exported from internal/engine so
// callers configuring Options.FrameDrop don't need to import an
// internal package.
type FrameDropMode = engine.FrameDropMode

const (
	FrameDropAuto = engine.FrameDropAuto
	FrameDropOff  = engine.FrameDropOff
	FrameDropOn   = engine.FrameDropOn
)

// Player is a video (and, when present, audio) player built around one
// opened codec.Source. It wraps a single engine.VideoState whose
// behavior adapts to whatever streams the attached source actually has,
// rather than requiring a different construction path per combination
// of available streams.
type Player struct {
	path string
	opts Options

	vs          *engine.VideoState
	cancel      context.CancelFunc
	audioPlayer *audio.Player
	surface     *ebiten.Image
}

// NewPlayer opens videoFilename (a file path or, for reisen-supported
// protocols, a network URL) and immediately starts the pipeline,
// decoding audio if the source has an audio stream.
func NewPlayer(videoFilename string) (*Player, error) {
	p := NewUnpreparedPlayer()
	if err := p.SetDataSource(videoFilename); err != nil {
		return nil, err
	}
	if err := p.Prepare(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewPlayerWithoutAudio is like NewPlayer but never decodes audio, even
// if the source has an audio stream.
func NewPlayerWithoutAudio(videoFilename string) (*Player, error) {
	p := NewUnpreparedPlayer()
	p.opts.HasAudio = false
	if err := p.SetDataSource(videoFilename); err != nil {
		return nil, err
	}
	if err := p.Prepare(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewUnpreparedPlayer returns a Player in the Idle state with no source
// attached, for callers that want the two-phase SetDataSource/Prepare
// flow instead of NewPlayer's one-shot construction.
func NewUnpreparedPlayer() *Player {
	return &Player{opts: Options{HasAudio: true, HasSubtitles: true}}
}

// SetDataSource records the path or URL Prepare will open. It returns an
// error if called after the player has already been prepared.
func (p *Player) SetDataSource(videoFilename string) error {
	if p.vs != nil {
		return errors.New("myplayer: SetDataSource called after Prepare")
	}
	p.path = videoFilename
	return nil
}

// Prepare opens the data source set by SetDataSource and starts the
// pipeline. The two-phase SetDataSource/Prepare split follows the
// Android MediaPlayer convention the original player this module
// descends from used.
func (p *Player) Prepare() error {
	if p.path == "" {
		return ErrNoDataSource
	}
	src, err := codec.OpenReisen(p.path)
	if err != nil {
		return errs.New(errs.KindInputOpen, "Prepare", err)
	}
	return p.prepareWithSource(src)
}

// NewPlayerWithSource builds and starts a Player over an already-open
// codec.Source, bypassing reisen entirely. This is the seam tests and
// alternative demux backends use.
func NewPlayerWithSource(src codec.Source, opts Options) (*Player, error) {
	p := &Player{opts: opts}
	if err := p.prepareWithSource(src); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Player) prepareWithSource(src codec.Source) error {
	if p.opts.Logger == nil {
		p.opts.Logger = pkgLogger
	}
	vs, err := engine.NewVideoState(src, p.opts, nil)
	if err != nil {
		return err
	}
	p.vs = vs

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	if err := vs.Start(ctx); err != nil {
		cancel()
		return err
	}

	if vs.HasAudio() {
		if err := p.setupAudioPlayer(); err != nil {
			pkgLogger.Printf("myplayer: audio playback disabled: %v", err)
		}
	}
	return nil
}

func (p *Player) setupAudioPlayer() error {
	actx := audio.CurrentContext()
	if actx == nil {
		return ErrNilAudioContext
	}
	sink := p.vs.AudioSink()
	if sink == nil {
		return nil
	}
	player, err := actx.NewPlayer(sink)
	if err != nil {
		return err
	}
	player.SetBufferSize(playerAudioBufferSize)
	player.Play()
	p.audioPlayer = player
	return nil
}

// CurrentFrame returns the most recently presented video frame, or nil
// before the first frame has been decoded. The returned image is owned
// by the player and its contents are overwritten in place on each new
// frame; do not retain it past the next render.
func (p *Player) CurrentFrame() *ebiten.Image {
	return p.vs.Presenter().Surface()
}

// Resolution returns the width and height of the current video surface,
// or (0, 0) before the first frame has been decoded.
func (p *Player) Resolution() (int, int) {
	bounds := p.vs.Presenter().Bounds()
	return bounds.X, bounds.Y
}

// SetSurface stores viewport so Draw can be called without an explicit
// target on every call, mirroring Android MediaPlayer's setSurface/draw
// split. Passing nil clears it.
func (p *Player) SetSurface(viewport *ebiten.Image) { p.surface = viewport }

// Draw projects the current video frame into viewport, or into the
// surface set by SetSurface if viewport is nil. It is a no-op before the
// first frame has been decoded.
func (p *Player) Draw(viewport *ebiten.Image) {
	if viewport == nil {
		viewport = p.surface
	}
	if viewport == nil {
		return
	}
	p.vs.Presenter().Draw(viewport)
}

// Subtitle returns the subtitle cue active at the player's current
// position, or "" if none.
func (p *Player) Subtitle() string {
	return p.vs.Presenter().Subtitle(p.vs.Position())
}

// State returns the player's current playback state.
func (p *Player) State() PlaybackState { return p.vs.State() }

// Play resumes playback. If the player is already playing, this has no
// effect.
func (p *Player) Play() error {
	p.vs.Play()
	if p.audioPlayer != nil {
		p.audioPlayer.Play()
	}
	return nil
}

// Pause freezes playback. If the player is already paused, this has no
// effect.
func (p *Player) Pause() error {
	p.vs.Pause()
	if p.audioPlayer != nil {
		p.audioPlayer.Pause()
	}
	return nil
}

// Seek requests a jump to position, relative to the start of the media.
// The jump is asynchronous; Position reflects it once the reader
// processes the request.
func (p *Player) Seek(position time.Duration) error {
	p.vs.Seek(position.Seconds())
	return nil
}

// Position returns the player's current playback position.
func (p *Player) Position() time.Duration {
	return time.Duration(p.vs.Position() * float64(time.Second))
}

// Duration returns the media's total duration, or 0 for live sources.
func (p *Player) Duration() time.Duration {
	return time.Duration(p.vs.Duration() * float64(time.Second))
}

// GetDuration is an alias for Duration matching the Android MediaPlayer
// naming the original player this module descends from used.
func (p *Player) GetDuration() (time.Duration, error) { return p.Duration(), nil }

// HasAudio reports whether this player decodes an audio stream.
func (p *Player) HasAudio() bool { return p.vs.HasAudio() }

// Close stops the pipeline and releases the underlying source and audio
// player. The Player is unusable afterwards.
func (p *Player) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	if p.audioPlayer != nil {
		_ = p.audioPlayer.Close()
	}
	return p.vs.Close()
}
