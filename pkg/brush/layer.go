// Package brush implements the touch-driven paint and erase layer that
// mutates a composited image after the blur pipeline has produced it.
package brush

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	"github.com/menta2k/blur-studio/pkg/blur"
)

// Mode selects what a gesture does to the canvas
type Mode int

const (
	None Mode = iota
	Erase
	Paint
)

func (m Mode) String() string {
	switch m {
	case Erase:
		return "erase"
	case Paint:
		return "paint"
	default:
		return "none"
	}
}

// ParseMode parses "none", "erase" or "paint"
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "none":
		return None, nil
	case "erase", "eraser":
		return Erase, nil
	case "paint", "brush":
		return Paint, nil
	}
	return None, fmt.Errorf("brush: unknown mode %q", s)
}

// Phase is the touch phase of an event
type Phase int

const (
	Down Phase = iota
	Move
	Up
	Cancel
)

// Event is a touch event in image pixel coordinates
type Event struct {
	Phase Phase
	X     float64
	Y     float64
}

// Config holds brush geometry
type Config struct {
	EraseRadius  int
	PaintRadius  int
	PaintBlur    float64 // clamped to the kernel's radius bounds
	EraseSpacing float64 // minimum drag distance before erasing along the path
}

// DefaultConfig returns the stock brush sizes
func DefaultConfig() Config {
	return Config{
		EraseRadius:  40,
		PaintRadius:  30,
		PaintBlur:    50,
		EraseSpacing: 5,
	}
}

// ErrEmptyImage is returned when the layer is created without pixels
var ErrEmptyImage = errors.New("brush: empty image")

// Layer holds the untouched original and the live canvas that gestures
// mutate. It is not safe for concurrent use.
type Layer struct {
	cfg      Config
	original *image.NRGBA
	canvas   *image.NRGBA
	mode     Mode

	tracking     bool
	lastX, lastY float64
}

// NewLayer copies original and composited into a new layer. The composited
// image is rescaled when its size differs from the original.
func NewLayer(original, composited image.Image, cfg Config) (*Layer, error) {
	if original == nil || original.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	l := &Layer{cfg: normalize(cfg), original: imaging.Clone(original)}
	l.Reset(composited)
	return l, nil
}

func normalize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.EraseRadius <= 0 {
		cfg.EraseRadius = def.EraseRadius
	}
	if cfg.PaintRadius <= 0 {
		cfg.PaintRadius = def.PaintRadius
	}
	if cfg.PaintBlur <= 0 {
		cfg.PaintBlur = def.PaintBlur
	}
	if cfg.EraseSpacing <= 0 {
		cfg.EraseSpacing = def.EraseSpacing
	}
	return cfg
}

// Reset replaces the canvas with a copy of composited and drops any gesture
// in progress. A nil composited restores the original.
func (l *Layer) Reset(composited image.Image) {
	w, h := l.original.Bounds().Dx(), l.original.Bounds().Dy()
	switch {
	case composited == nil || composited.Bounds().Empty():
		l.canvas = imaging.Clone(l.original)
	case composited.Bounds().Dx() != w || composited.Bounds().Dy() != h:
		l.canvas = imaging.Resize(composited, w, h, imaging.Linear)
	default:
		l.canvas = imaging.Clone(composited)
	}
	l.tracking = false
}

// SetMode switches the gesture mode and drops any gesture in progress
func (l *Layer) SetMode(m Mode) {
	l.mode = m
	l.tracking = false
}

func (l *Layer) Mode() Mode { return l.mode }

func (l *Layer) Config() Config { return l.cfg }

// Canvas returns the live canvas. It is mutated by later events.
func (l *Layer) Canvas() *image.NRGBA { return l.canvas }

// Original returns the untouched original
func (l *Layer) Original() *image.NRGBA { return l.original }

// Snapshot returns a copy of the canvas
func (l *Layer) Snapshot() *image.NRGBA { return imaging.Clone(l.canvas) }

// Handle applies ev according to the current mode and reports whether the
// gesture finished and the result should be redrawn.
func (l *Layer) Handle(ev Event) bool {
	switch l.mode {
	case Erase:
		return l.handleErase(ev)
	case Paint:
		return l.handlePaint(ev)
	}
	return false
}

func (l *Layer) handleErase(ev Event) bool {
	switch ev.Phase {
	case Down:
		l.EraseAt(round(ev.X), round(ev.Y))
		l.track(ev)
	case Move:
		if !l.tracking {
			l.EraseAt(round(ev.X), round(ev.Y))
			l.track(ev)
			return false
		}
		dist := math.Hypot(ev.X-l.lastX, ev.Y-l.lastY)
		if dist <= l.cfg.EraseSpacing {
			return false
		}
		steps := int(dist / l.cfg.EraseSpacing)
		for i := 0; i <= steps; i++ {
			t := float64(i) / float64(steps)
			l.EraseAt(round(lerp(l.lastX, ev.X, t)), round(lerp(l.lastY, ev.Y, t)))
		}
		l.track(ev)
	case Up:
		l.EraseAt(round(ev.X), round(ev.Y))
		l.tracking = false
		return true
	case Cancel:
		l.tracking = false
	}
	return false
}

func (l *Layer) handlePaint(ev Event) bool {
	switch ev.Phase {
	case Down:
		l.PaintAt(round(ev.X), round(ev.Y))
		l.track(ev)
	case Move:
		if !l.tracking {
			l.PaintAt(round(ev.X), round(ev.Y))
			l.track(ev)
			return false
		}
		dist := math.Hypot(ev.X-l.lastX, ev.Y-l.lastY)
		n := int(dist)
		for i := 0; i < n; i++ {
			t := float64(i) / dist
			l.PaintAt(round(lerp(l.lastX, ev.X, t)), round(lerp(l.lastY, ev.Y, t)))
		}
		l.track(ev)
	case Up:
		l.tracking = false
		return true
	case Cancel:
		l.tracking = false
	}
	return false
}

func (l *Layer) track(ev Event) {
	l.tracking = true
	l.lastX, l.lastY = ev.X, ev.Y
}

// EraseAt restores every canvas pixel within EraseRadius of (x, y) from the
// original.
func (l *Layer) EraseAt(x, y int) {
	r := l.cfg.EraseRadius
	area := image.Rect(x-r, y-r, x+r+1, y+r+1).Intersect(l.canvas.Bounds())
	if area.Empty() {
		return
	}

	r2 := r * r
	for py := area.Min.Y; py < area.Max.Y; py++ {
		dy := py - y
		for px := area.Min.X; px < area.Max.X; px++ {
			dx := px - x
			if dx*dx+dy*dy > r2 {
				continue
			}
			i := l.canvas.PixOffset(px, py)
			j := l.original.PixOffset(px, py)
			copy(l.canvas.Pix[i:i+4], l.original.Pix[j:j+4])
		}
	}
}

// PaintAt blurs the square patch [x-r, x+r) of the original, rounds it with
// an anti-aliased circular mask and draws it over the canvas. Patches that
// fall outside the image are skipped.
func (l *Layer) PaintAt(x, y int) {
	r := l.cfg.PaintRadius
	area := image.Rect(x-r, y-r, x+r, y+r).Intersect(l.canvas.Bounds())
	if area.Empty() {
		return
	}

	patch := blur.GaussianBlur(imaging.Crop(l.original, area), l.cfg.PaintBlur)
	xdraw.DrawMask(l.canvas, area, patch, image.Point{}, circleMask(area, x, y, r), area.Min, xdraw.Over)
}

// circleMask covers area with the coverage of a disc of radius r centered
// on (cx, cy), smoothed over one pixel at the rim.
func circleMask(area image.Rectangle, cx, cy, r int) *image.Alpha {
	m := image.NewAlpha(area)
	for py := area.Min.Y; py < area.Max.Y; py++ {
		for px := area.Min.X; px < area.Max.X; px++ {
			d := math.Hypot(float64(px)+0.5-float64(cx), float64(py)+0.5-float64(cy))
			cov := float64(r) - d + 0.5
			if cov <= 0 {
				continue
			}
			if cov > 1 {
				cov = 1
			}
			m.Pix[m.PixOffset(px, py)] = uint8(cov*255 + 0.5)
		}
	}
	return m
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func round(v float64) int { return int(math.Round(v)) }
