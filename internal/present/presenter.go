// Package present turns decoded video frames into an ebiten surface and
// projects that surface into a viewport. Presenter is a stateful type
// that owns the upload step rather than exposing bare Draw/CalcProjection
// helpers, so the pipeline can upload frames without reaching into the
// host application's render loop.
package present

import (
	"fmt"
	"image"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/soffio/myplayer/internal/queue"
)

// Presenter owns the video surface the pipeline uploads decoded RGBA
// frames into, and the most recent subtitle cue to overlay alongside it.
type Presenter struct {
	mu      sync.Mutex
	surface *ebiten.Image
	width   int
	height  int

	subtitle     string
	subtitleEnd  float64
}

// NewPresenter returns an empty presenter; its surface is allocated
// lazily by the first Upload call once frame dimensions are known.
func NewPresenter() *Presenter {
	return &Presenter{}
}

// Upload writes a decoded video frame's RGBA pixels into the presenter's
// surface, (re)allocating it if the frame's dimensions changed (e.g.
// after a mid-stream resolution change or the first frame after Seek).
func (p *Presenter) Upload(f *queue.Frame) error {
	if f.Kind != queue.FrameVideo {
		return fmt.Errorf("present: frame is not video")
	}
	if len(f.RGBA) != f.Width*f.Height*4 {
		return fmt.Errorf("present: frame %dx%d has %d bytes, want %d", f.Width, f.Height, len(f.RGBA), f.Width*f.Height*4)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.surface == nil || p.width != f.Width || p.height != f.Height {
		p.surface = ebiten.NewImage(f.Width, f.Height)
		p.width, p.height = f.Width, f.Height
	}
	p.surface.WritePixels(f.RGBA)
	f.Uploaded = true
	return nil
}

// UploadSubtitle replaces the overlay text shown alongside the video
// surface until the cue's end time.
func (p *Presenter) UploadSubtitle(f *queue.Frame) {
	if f.Kind != queue.FrameSubtitle {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subtitle = f.Sub.Text
	p.subtitleEnd = f.Sub.End
}

// Subtitle returns the overlay text still active at playback position
// pts, or "" if the last cue has expired.
func (p *Presenter) Subtitle(pts float64) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pts > p.subtitleEnd {
		return ""
	}
	return p.subtitle
}

// Surface returns the current video surface, or nil before the first
// frame has been uploaded.
func (p *Presenter) Surface() *ebiten.Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.surface
}

// Bounds returns the current surface's pixel dimensions.
func (p *Presenter) Bounds() image.Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return image.Pt(p.width, p.height)
}

// Draw projects the presenter's current surface into viewport, scaling
// to fill it while preserving aspect ratio. It is a no-op before the
// first frame has been uploaded.
func (p *Presenter) Draw(viewport *ebiten.Image) {
	surface := p.Surface()
	if surface == nil {
		return
	}
	geom, filter := CalcProjection(viewport, surface)
	var opts ebiten.DrawImageOptions
	opts.GeoM = geom
	opts.Filter = filter
	viewport.DrawImage(surface, &opts)
}

// CalcProjection returns the GeoM and recommended ebiten.Filter needed to
// project frame into viewport, scaling to fill it while preserving
// aspect ratio and centering any leftover space.
func CalcProjection(viewport, frame *ebiten.Image) (ebiten.GeoM, ebiten.Filter) {
	frameBounds := frame.Bounds()
	viewBounds := viewport.Bounds()
	vwWidth, vwHeight := viewBounds.Dx(), viewBounds.Dy()
	frWidth, frHeight := frameBounds.Dx(), frameBounds.Dy()

	tx, ty := float64(viewBounds.Min.X), float64(viewBounds.Min.Y)

	var geom ebiten.GeoM
	filter := ebiten.FilterLinear
	wf, hf := float64(vwWidth)/float64(frWidth), float64(vwHeight)/float64(frHeight)
	sf := wf
	if hf < wf {
		sf = hf
	}
	if sf == 1.0 {
		offx := (float64(vwWidth) - float64(frWidth)) / 2
		offy := (float64(vwHeight) - float64(frHeight)) / 2
		geom.Translate(tx+offx, ty+offy)
	} else {
		sfrWidth := float64(frWidth) * sf
		sfrHeight := float64(frHeight) * sf
		geom.Scale(sf, sf)
		geom.Translate(tx+(float64(vwWidth)-sfrWidth)/2, ty+(float64(vwHeight)-sfrHeight)/2)
	}
	return geom, filter
}
