package blur

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// RadialParams configures the zoom-spin radial blur. A zero center means
// the image center.
type RadialParams struct {
	CenterX    float64
	CenterY    float64
	Passes     int
	ScaleStep  float64 // scale growth per pass
	Spin       float64 // rotation per pass, degrees
	PassRadius float64 // gaussian radius applied to each pass, 0 disables
}

// DefaultRadial returns the zoom-spin defaults: 25 passes growing 3% and
// turning 3 degrees each.
func DefaultRadial() RadialParams {
	return RadialParams{
		Passes:     25,
		ScaleStep:  0.03,
		Spin:       3,
		PassRadius: 15,
	}
}

// RadialBlur rescales and rotates the image around the center by a growing
// factor on every pass, blurs each pass and accumulates them with an alpha
// that fades linearly from 255 to zero.
func RadialBlur(img image.Image, p RadialParams) *image.NRGBA {
	src := imaging.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	cx, cy := center(p.CenterX, p.CenterY, w, h)

	passes := p.Passes
	if passes < 1 {
		passes = 1
	}

	out := transparent(w, h)
	for i := 0; i < passes; i++ {
		alpha := radialAlpha(i, passes)
		if alpha == 0 {
			continue
		}

		pass := transformAbout(src, 1+float64(i)*p.ScaleStep, float64(i)*p.Spin, cx, cy)
		if p.PassRadius > 0 {
			pass = GaussianBlur(pass, p.PassRadius)
		}
		out = imaging.Overlay(out, pass, image.Point{}, opacity(alpha))
	}
	return out
}

// radialAlpha is the opacity of pass i of n: 255 x (1 - i/n)
func radialAlpha(i, n int) int {
	return clampAlpha(int(255 * (1 - float64(i)/float64(n))))
}

// transformAbout scales by s and rotates by deg degrees around (cx, cy).
// The result keeps the source dimensions; uncovered pixels stay transparent.
func transformAbout(src *image.NRGBA, s, deg, cx, cy float64) *image.NRGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := transparent(w, h)

	rad := deg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	a, b := s*cos, -s*sin
	d, e := s*sin, s*cos

	s2d := f64.Aff3{
		a, b, cx - a*cx - b*cy,
		d, e, cy - d*cx - e*cy,
	}
	xdraw.ApproxBiLinear.Transform(dst, s2d, src, src.Bounds(), xdraw.Over, nil)
	return dst
}

// center resolves a zero center to the middle of a w x h image
func center(cx, cy float64, w, h int) (float64, float64) {
	if cx == 0 && cy == 0 {
		return float64(w) / 2, float64(h) / 2
	}
	return cx, cy
}
