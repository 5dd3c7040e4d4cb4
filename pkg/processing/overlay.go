package processing

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Overlay colors
var (
	maskTint   = color.NRGBA{255, 0, 80, 255}  // blurred area
	regionEdge = color.NRGBA{0, 255, 0, 255}   // detected regions
	centerMark = color.NRGBA{0, 170, 255, 255} // image center
)

// CreateDebugOverlay tints the parts of img that the mask leaves blurred,
// outlines the given subject regions and marks the image center. The mask
// is rescaled to the image size when needed.
func (p *Processor) CreateDebugOverlay(img image.Image, mask image.Image, regions []image.Rectangle) *image.NRGBA {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	if mask != nil && !mask.Bounds().Empty() {
		m := mask
		if mb := mask.Bounds(); mb.Dx() != w || mb.Dy() != h {
			m = imaging.Resize(mask, w, h, imaging.Linear)
		}
		tint(nrgba, imaging.Clone(m), maskTint, 0.5)
	}

	stroke := int(math.Max(2, 0.004*float64(minInt(w, h)))) // ~0.4% of min side
	for _, r := range regions {
		drawRect(nrgba, r, regionEdge, stroke)
	}

	ix, iy := w/2, h/2
	drawHLine(nrgba, iy, ix-6, ix+6, centerMark)
	drawVLine(nrgba, ix, iy-6, iy+6, centerMark)

	return nrgba
}

// tint blends c into every pixel in proportion to how transparent the mask
// is there, scaled by strength.
func tint(img, mask *image.NRGBA, c color.NRGBA, strength float64) {
	for i := 0; i+3 < len(img.Pix) && i+3 < len(mask.Pix); i += 4 {
		a := (1 - float64(mask.Pix[i+3])/255) * strength
		if a == 0 {
			continue
		}
		img.Pix[i] = uint8(float64(img.Pix[i])*(1-a) + float64(c.R)*a)
		img.Pix[i+1] = uint8(float64(img.Pix[i+1])*(1-a) + float64(c.G)*a)
		img.Pix[i+2] = uint8(float64(img.Pix[i+2])*(1-a) + float64(c.B)*a)
	}
}

// Helper functions
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	r = r.Canon()
	if r.Empty() {
		return
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
