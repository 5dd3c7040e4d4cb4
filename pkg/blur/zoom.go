package blur

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ZoomParams configures the zoom blur. A zero center means the image center.
type ZoomParams struct {
	CenterX    float64
	CenterY    float64
	Amount     float64 // total scale growth over all passes
	Passes     int
	PassRadius float64
}

// DefaultZoom returns 10 passes growing to 110% with a radius 10 blur each
func DefaultZoom() ZoomParams {
	return ZoomParams{Amount: 0.1, Passes: 10, PassRadius: 10}
}

// shareFactor damps the equal per-pass opacity share of the zoom blur.
const shareFactor = 0.8

// ZoomBlur draws Passes blurred copies scaled by 1 + Amount*i/Passes, each
// positioned so the center stays fixed, with an equal opacity share per pass.
func ZoomBlur(img image.Image, p ZoomParams) *image.NRGBA {
	src := imaging.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	cx, cy := center(p.CenterX, p.CenterY, w, h)

	passes := p.Passes
	if passes < 1 {
		passes = 1
	}
	alpha := zoomAlpha(passes)

	out := transparent(w, h)
	if alpha == 0 {
		return out
	}
	for i := 1; i <= passes; i++ {
		scale := 1 + p.Amount*(float64(i)/float64(passes))
		sw := int(math.Round(float64(w) * scale))
		sh := int(math.Round(float64(h) * scale))
		if sw <= 0 || sh <= 0 {
			continue
		}

		var scaled *image.NRGBA
		if sw == w && sh == h {
			scaled = src
		} else {
			scaled = imaging.Resize(src, sw, sh, imaging.Linear)
		}
		if p.PassRadius > 0 {
			scaled = GaussianBlur(scaled, p.PassRadius)
		}

		out = imaging.Overlay(out, scaled, scaledOffset(cx, cy, scale), opacity(alpha))
	}
	return out
}

// zoomAlpha is the opacity shared by each of n passes: 255/n x 0.8
func zoomAlpha(n int) int {
	return clampAlpha(int(255 / float64(n) * shareFactor))
}

// scaledOffset positions a copy scaled by s so that (cx, cy) stays in place.
// For the image center this is ((w-sw)/2, (h-sh)/2).
func scaledOffset(cx, cy, s float64) image.Point {
	return image.Pt(int(math.Round(cx*(1-s))), int(math.Round(cy*(1-s))))
}
