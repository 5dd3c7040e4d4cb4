// Package mask turns foreground confidence buffers into alpha masks for the
// compositor.
package mask

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/blur-studio/pkg/segment"
)

// AlphaFor maps a confidence to a mask alpha: round(c*255), or
// round((1-c)*255) when invert is set. The result is clamped to [0,255].
func AlphaFor(c float32, invert bool) uint8 {
	v := float64(c)
	if math.IsNaN(v) {
		v = 0
	}
	if invert {
		v = 1 - v
	}
	a := math.Round(v * 255)
	if a < 0 {
		return 0
	}
	if a > 255 {
		return 255
	}
	return uint8(a)
}

// FromConfidence builds a white mask at the buffer's native size whose alpha
// follows the confidence.
func FromConfidence(conf *segment.Confidence, invert bool) (*image.NRGBA, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	m := image.NewNRGBA(image.Rect(0, 0, conf.Width, conf.Height))
	for i, c := range conf.Values {
		p := m.Pix[i*4 : i*4+4 : i*4+4]
		p[0], p[1], p[2] = 255, 255, 255
		p[3] = AlphaFor(c, invert)
	}
	return m, nil
}

// Fit rescales m to w x h with bilinear interpolation. A mask that already
// has the target size is returned as a zero-origin copy.
func Fit(m image.Image, w, h int) *image.NRGBA {
	b := m.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return imaging.Clone(m)
	}
	return imaging.Resize(m, w, h, imaging.Linear)
}

// Build converts conf to a mask sized for a w x h image.
func Build(conf *segment.Confidence, invert bool, w, h int) (*image.NRGBA, error) {
	m, err := FromConfidence(conf, invert)
	if err != nil {
		return nil, err
	}
	return Fit(m, w, h), nil
}

// Invert returns a copy of m with every alpha replaced by 255-alpha
func Invert(m image.Image) *image.NRGBA {
	out := imaging.Clone(m)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255 - out.Pix[i]
	}
	return out
}

// Uniform returns a w x h white mask with constant alpha
func Uniform(w, h int, alpha uint8) *image.NRGBA {
	return imaging.New(w, h, color.NRGBA{R: 255, G: 255, B: 255, A: alpha})
}
