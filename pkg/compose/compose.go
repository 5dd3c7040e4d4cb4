// Package compose blends a sharp original and its blurred variant through an
// alpha mask.
package compose

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// ErrEmptyImage is returned when the original has no pixels
var ErrEmptyImage = errors.New("compose: empty image")

// Composite blends original and blurred per pixel:
//
//	out = original*a + blurred*(1-a), a = maskAlpha/255
//
// applied to each RGB channel and truncated to an integer. The output is
// fully opaque. Blurred and mask are rescaled to the original's size when
// their dimensions differ.
func Composite(original, blurred, mask image.Image) (*image.NRGBA, error) {
	if original == nil || original.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if blurred == nil || blurred.Bounds().Empty() || mask == nil || mask.Bounds().Empty() {
		return nil, errors.New("compose: missing blurred image or mask")
	}

	orig := imaging.Clone(original)
	w, h := orig.Bounds().Dx(), orig.Bounds().Dy()
	blur := fitTo(blurred, w, h)
	m := fitTo(mask, w, h)

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		oi := y * orig.Stride
		bi := y * blur.Stride
		mi := y * m.Stride
		di := y * out.Stride
		for x := 0; x < w; x++ {
			a := float64(m.Pix[mi+3]) / 255
			for c := 0; c < 3; c++ {
				out.Pix[di+c] = uint8(float64(orig.Pix[oi+c])*a + float64(blur.Pix[bi+c])*(1-a))
			}
			out.Pix[di+3] = 255

			oi += 4
			bi += 4
			mi += 4
			di += 4
		}
	}
	return out, nil
}

func fitTo(img image.Image, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, w, h, imaging.Linear)
}
