package brush

import "math"

// Viewport maps between screen and image coordinates for an image drawn
// with a scale and a translation.
type Viewport struct {
	ScaleX      float64
	ScaleY      float64
	TransX      float64
	TransY      float64
	ImageWidth  int
	ImageHeight int
}

// FitCenter returns the aspect-preserving transform that centers an
// imgW x imgH image inside a viewW x viewH view.
func FitCenter(imgW, imgH int, viewW, viewH float64) Viewport {
	if imgW <= 0 || imgH <= 0 {
		return Viewport{ScaleX: 1, ScaleY: 1}
	}
	s := math.Min(viewW/float64(imgW), viewH/float64(imgH))
	return Viewport{
		ScaleX:      s,
		ScaleY:      s,
		TransX:      (viewW - float64(imgW)*s) / 2,
		TransY:      (viewH - float64(imgH)*s) / 2,
		ImageWidth:  imgW,
		ImageHeight: imgH,
	}
}

// ToImage inverts the display transform. ok is false when the point falls
// outside the image or the transform is degenerate.
func (v Viewport) ToImage(sx, sy float64) (x, y float64, ok bool) {
	if v.ScaleX == 0 || v.ScaleY == 0 {
		return 0, 0, false
	}
	x = (sx - v.TransX) / v.ScaleX
	y = (sy - v.TransY) / v.ScaleY
	if x < 0 || y < 0 || x >= float64(v.ImageWidth) || y >= float64(v.ImageHeight) {
		return 0, 0, false
	}
	return x, y, true
}

// ToScreen applies the display transform to an image point
func (v Viewport) ToScreen(x, y float64) (sx, sy float64) {
	return x*v.ScaleX + v.TransX, y*v.ScaleY + v.TransY
}

// Event maps a screen touch into an image-space event
func (v Viewport) Event(phase Phase, sx, sy float64) (Event, bool) {
	x, y, ok := v.ToImage(sx, sy)
	if !ok {
		return Event{}, false
	}
	return Event{Phase: phase, X: x, Y: y}, true
}
