package blur

import (
	"image"
	"image/color"
	"math"

	bildblur "github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
)

// Radius bounds of a single convolution pass
const (
	MinRadius = 1
	MaxRadius = 25
)

// ClampRadius limits r to [MinRadius, MaxRadius]
func ClampRadius(r float64) float64 {
	if math.IsNaN(r) || r < MinRadius {
		return MinRadius
	}
	if r > MaxRadius {
		return MaxRadius
	}
	return r
}

// sigmaForRadius follows the intrinsic-blur convention sigma = 0.4r + 0.6.
func sigmaForRadius(r float64) float64 {
	return 0.4*r + 0.6
}

// GaussianBlur applies one gaussian convolution with the radius clamped to
// [1,25]. Larger radii are smoother.
func GaussianBlur(img image.Image, radius float64) *image.NRGBA {
	return imaging.Blur(img, sigmaForRadius(ClampRadius(radius)))
}

// BoxBlur applies one box convolution with the radius clamped to [1,25].
func BoxBlur(img image.Image, radius float64) *image.NRGBA {
	return imaging.Clone(bildblur.Box(img, ClampRadius(radius)))
}

// transparent returns an empty w x h canvas for pass accumulation
func transparent(w, h int) *image.NRGBA {
	return imaging.New(w, h, color.NRGBA{})
}

// clampAlpha limits a paint alpha to [0,255]
func clampAlpha(a int) int {
	if a < 0 {
		return 0
	}
	if a > 255 {
		return 255
	}
	return a
}

// opacity converts a paint alpha into an overlay opacity
func opacity(alpha int) float64 {
	return float64(clampAlpha(alpha)) / 255
}
