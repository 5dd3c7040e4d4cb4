package blur

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// MotionParams configures the directional motion blur
type MotionParams struct {
	Angle    float64 // degrees, 0 points right, 90 points down
	Distance float64 // offset per pass in pixels
	Passes   int
}

// DefaultMotion returns 10 horizontal passes 10px apart
func DefaultMotion() MotionParams {
	return MotionParams{Angle: 0, Distance: 10, Passes: 10}
}

// MotionOffset returns the per-pass offset vector for angle degrees
func MotionOffset(angle, distance float64) (dx, dy float64) {
	rad := angle * math.Pi / 180
	return math.Cos(rad) * distance, math.Sin(rad) * distance
}

// MotionBlur pre-blurs the image once and draws Passes translated copies
// along the direction vector, the opacity decaying linearly from 255 by
// 255/Passes per copy.
func MotionBlur(img image.Image, p MotionParams) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	passes := p.Passes
	if passes < 1 {
		passes = 1
	}
	offX, offY := MotionOffset(p.Angle, p.Distance)
	blurred := GaussianBlur(img, float64(passes))

	out := transparent(w, h)
	for i := 0; i < passes; i++ {
		alpha := motionAlpha(i, passes)
		if alpha == 0 {
			continue
		}
		pos := image.Pt(int(math.Round(offX*float64(i))), int(math.Round(offY*float64(i))))
		out = imaging.Overlay(out, blurred, pos, opacity(alpha))
	}
	return out
}

// motionAlpha is the opacity of copy i of n: 255 - i x 255/n
func motionAlpha(i, n int) int {
	step := 255 / float64(n)
	return clampAlpha(int(255 - float64(i)*step))
}
