// Package band renders draggable focus bands as compositor masks. A band is
// pure geometry: the region inside it stays sharp, the feather fades into
// the blurred image and everything beyond is fully blurred.
package band

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Masker renders a w x h mask, 255 where the image stays sharp.
type Masker interface {
	Mask(w, h int) *image.NRGBA
}

// Pinch and gap constants of the linear band
const (
	MinScale    = 0.5
	MaxScale    = 5.0
	BaseHalfGap = 200.0
	DefaultFade = 80.0

	// pinchDivisor converts a change in finger distance into a scale delta
	pinchDivisor = 300.0
)

// Linear is a tilt band: a clear strip through (CenterX, CenterY) rotated by
// Angle degrees. A zero center is the image center.
type Linear struct {
	CenterX float64
	CenterY float64
	Angle   float64
	Scale   float64
	HalfGap float64
	Feather float64
}

// NewLinear returns an unrotated band at the image center with scale 1
func NewLinear() Linear {
	return Linear{Scale: 1, HalfGap: BaseHalfGap, Feather: DefaultFade}
}

// WithScale sets the pinch scale, clamped to [MinScale, MaxScale]. The half
// gap shrinks as the scale grows.
func (l Linear) WithScale(scale float64) Linear {
	if math.IsNaN(scale) || scale < MinScale {
		scale = MinScale
	}
	if scale > MaxScale {
		scale = MaxScale
	}
	l.Scale = scale
	l.HalfGap = BaseHalfGap / scale
	return l
}

// Pinch applies a two-finger distance change. Spreading the fingers lowers
// the scale and widens the band.
func (l Linear) Pinch(distanceDelta float64) Linear {
	s := l.Scale
	if s == 0 {
		s = 1
	}
	return l.WithScale(s - distanceDelta/pinchDivisor)
}

// Rotate adds deg degrees to the band angle
func (l Linear) Rotate(deg float64) Linear {
	l.Angle += deg
	return l
}

// Move translates the band center
func (l Linear) Move(dx, dy float64) Linear {
	l.CenterX += dx
	l.CenterY += dy
	return l
}

// Distance returns the perpendicular distance of (x, y) from the band's
// center line.
func (l Linear) Distance(x, y, cx, cy float64) float64 {
	rad := l.Angle * math.Pi / 180
	return math.Abs(-(x-cx)*math.Sin(rad) + (y-cy)*math.Cos(rad))
}

// Mask renders the band for a w x h image
func (l Linear) Mask(w, h int) *image.NRGBA {
	cx, cy := centerOf(l.CenterX, l.CenterY, w, h)
	return render(w, h, func(x, y float64) uint8 {
		return falloff(l.Distance(x, y, cx, cy), l.HalfGap, l.Feather)
	})
}

// Radial is a circular focus ring around (CenterX, CenterY). A zero center
// is the image center.
type Radial struct {
	CenterX     float64
	CenterY     float64
	InnerRadius float64
	Feather     float64
}

// NewRadial returns a centered ring with the given clear radius
func NewRadial(radius float64) Radial {
	return Radial{InnerRadius: radius, Feather: DefaultFade}
}

// Move translates the ring center
func (r Radial) Move(dx, dy float64) Radial {
	r.CenterX += dx
	r.CenterY += dy
	return r
}

// Resize scales the clear radius, never below one pixel
func (r Radial) Resize(factor float64) Radial {
	r.InnerRadius = math.Max(1, r.InnerRadius*factor)
	return r
}

// Mask renders the ring for a w x h image
func (r Radial) Mask(w, h int) *image.NRGBA {
	cx, cy := centerOf(r.CenterX, r.CenterY, w, h)
	return render(w, h, func(x, y float64) uint8 {
		return falloff(math.Hypot(x-cx, y-cy), r.InnerRadius, r.Feather)
	})
}

// falloff is 255 up to inner, fades linearly over feather and is 0 beyond.
func falloff(d, inner, feather float64) uint8 {
	if d <= inner {
		return 255
	}
	if feather <= 0 || d >= inner+feather {
		return 0
	}
	return uint8(math.Round(255 * (1 - (d-inner)/feather)))
}

func render(w, h int, alpha func(x, y float64) uint8) *image.NRGBA {
	m := imaging.New(w, h, color.NRGBA{R: 255, G: 255, B: 255})
	for y := 0; y < h; y++ {
		row := y * m.Stride
		for x := 0; x < w; x++ {
			m.Pix[row+x*4+3] = alpha(float64(x), float64(y))
		}
	}
	return m
}

func centerOf(cx, cy float64, w, h int) (float64, float64) {
	if cx == 0 && cy == 0 {
		return float64(w) / 2, float64(h) / 2
	}
	return cx, cy
}
