package brush

import (
	"image"
	"image/color"
	"math"
	"testing"
)

// createTestImage creates a checkered gradient so blurring visibly changes it
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(x * 255 / width)
			if (x/4+y/4)%2 == 0 {
				v = 255 - v
			}
			img.Set(x, y, color.NRGBA{v, uint8(y * 255 / height), 128, 255})
		}
	}
	return img
}

func solidImage(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func newTestLayer(t *testing.T) (*Layer, *image.NRGBA, *image.NRGBA) {
	t.Helper()
	orig := createTestImage(200, 150)
	composited := solidImage(200, 150, color.NRGBA{0, 0, 0, 255})
	l, err := NewLayer(orig, composited, DefaultConfig())
	if err != nil {
		t.Fatalf("NewLayer failed: %v", err)
	}
	return l, orig, composited
}

func samePixel(a, b *image.NRGBA, x, y int) bool {
	return a.NRGBAAt(x, y) == b.NRGBAAt(x, y)
}

func TestEraseRestoresCircle(t *testing.T) {
	l, orig, _ := newTestLayer(t)
	l.SetMode(Erase)
	l.Handle(Event{Phase: Down, X: 100, Y: 75})

	c := l.Canvas()
	r := l.Config().EraseRadius
	for y := 0; y < 150; y++ {
		for x := 0; x < 200; x++ {
			dx, dy := x-100, y-75
			inside := dx*dx+dy*dy <= r*r
			if inside && !samePixel(c, orig, x, y) {
				t.Fatalf("pixel (%d,%d) inside the radius was not restored", x, y)
			}
			if !inside && c.NRGBAAt(x, y) != (color.NRGBA{0, 0, 0, 255}) {
				t.Fatalf("pixel (%d,%d) outside the radius was modified", x, y)
			}
		}
	}
}

func TestEraseMoveNeedsMinimumDistance(t *testing.T) {
	l, _, _ := newTestLayer(t)
	l.SetMode(Erase)
	l.Handle(Event{Phase: Down, X: 50, Y: 75})

	// 3px is below the spacing and must not erase at the new point's far edge
	l.Handle(Event{Phase: Move, X: 53, Y: 75})
	if got := l.Canvas().NRGBAAt(92, 75); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("short move erased beyond the first circle: %v", got)
	}

	l.Handle(Event{Phase: Move, X: 150, Y: 75})
	for x := 50; x <= 150; x += 10 {
		if l.Canvas().NRGBAAt(x, 75) == (color.NRGBA{0, 0, 0, 255}) {
			t.Errorf("expected erased pixel along the drag at x=%d", x)
		}
	}
}

func TestEraseUpRequestsRedraw(t *testing.T) {
	l, _, _ := newTestLayer(t)
	l.SetMode(Erase)
	if l.Handle(Event{Phase: Down, X: 10, Y: 10}) {
		t.Error("down should not request a redraw")
	}
	if !l.Handle(Event{Phase: Up, X: 10, Y: 10}) {
		t.Error("up should request a redraw")
	}
}

func TestPaintBlursInsideCircleOnly(t *testing.T) {
	orig := createTestImage(200, 150)
	l, err := NewLayer(orig, orig, DefaultConfig())
	if err != nil {
		t.Fatalf("NewLayer failed: %v", err)
	}
	l.SetMode(Paint)
	l.Handle(Event{Phase: Down, X: 100, Y: 75})

	c := l.Canvas()
	if samePixel(c, orig, 100, 75) && samePixel(c, orig, 101, 75) && samePixel(c, orig, 102, 75) {
		t.Error("expected the patch center to be blurred")
	}
	// corner of the square patch lies outside the circle
	if !samePixel(c, orig, 72, 47) {
		t.Error("patch corner outside the circle was modified")
	}
	if !samePixel(c, orig, 140, 75) {
		t.Error("pixel outside the patch was modified")
	}
}

func TestPaintThenEraseRestoresOriginal(t *testing.T) {
	l, orig, _ := newTestLayer(t)

	l.SetMode(Paint)
	l.Handle(Event{Phase: Down, X: 80, Y: 60})
	l.Handle(Event{Phase: Move, X: 90, Y: 64})
	l.Handle(Event{Phase: Up, X: 90, Y: 64})

	l.SetMode(Erase)
	l.Handle(Event{Phase: Down, X: 85, Y: 62})
	l.Handle(Event{Phase: Up, X: 85, Y: 62})

	c := l.Canvas()
	r := l.Config().EraseRadius
	for y := 62 - r; y <= 62+r; y++ {
		for x := 85 - r; x <= 85+r; x++ {
			dx, dy := x-85, y-62
			if dx*dx+dy*dy > r*r || !image.Pt(x, y).In(c.Bounds()) {
				continue
			}
			if !samePixel(c, orig, x, y) {
				t.Fatalf("pixel (%d,%d) differs from the original after erase", x, y)
			}
		}
	}
}

func TestPaintMoveInterpolates(t *testing.T) {
	orig := createTestImage(300, 100)
	l, err := NewLayer(orig, orig, DefaultConfig())
	if err != nil {
		t.Fatalf("NewLayer failed: %v", err)
	}
	l.SetMode(Paint)
	l.Handle(Event{Phase: Down, X: 40, Y: 50})
	l.Handle(Event{Phase: Move, X: 260, Y: 50})

	c := l.Canvas()
	changed := 0
	for x := 40; x < 260; x += 20 {
		if !samePixel(c, orig, x, 50) || !samePixel(c, orig, x+1, 50) {
			changed++
		}
	}
	if changed < 10 {
		t.Errorf("expected the drag path to be painted, only %d samples changed", changed)
	}
}

func TestPaintOutsideImageIsSkipped(t *testing.T) {
	l, _, composited := newTestLayer(t)
	l.SetMode(Paint)
	l.PaintAt(-500, -500)
	l.EraseAt(1000, 1000)

	for i := range composited.Pix {
		if l.Canvas().Pix[i] != composited.Pix[i] {
			t.Fatal("degenerate patch modified the canvas")
		}
	}
}

func TestNoneModeIgnoresEvents(t *testing.T) {
	l, _, composited := newTestLayer(t)
	if l.Handle(Event{Phase: Down, X: 50, Y: 50}) || l.Handle(Event{Phase: Up, X: 50, Y: 50}) {
		t.Error("none mode should never request a redraw")
	}
	if l.Canvas().NRGBAAt(50, 50) != composited.NRGBAAt(50, 50) {
		t.Error("none mode modified the canvas")
	}
}

func TestResetRestoresComposited(t *testing.T) {
	l, orig, composited := newTestLayer(t)
	l.SetMode(Erase)
	l.Handle(Event{Phase: Down, X: 100, Y: 75})

	l.Reset(composited)
	if !samePixel(l.Canvas(), composited, 100, 75) {
		t.Error("Reset should replace the canvas")
	}
	l.Reset(nil)
	if !samePixel(l.Canvas(), orig, 100, 75) {
		t.Error("Reset(nil) should restore the original")
	}
}

func TestNewLayerRejectsEmpty(t *testing.T) {
	if _, err := NewLayer(nil, nil, DefaultConfig()); err != ErrEmptyImage {
		t.Errorf("expected ErrEmptyImage, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{None, Erase, Paint} {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseMode("smudge"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestCircleMaskCoverage(t *testing.T) {
	area := image.Rect(0, 0, 20, 20)
	m := circleMask(area, 10, 10, 5)
	if a := m.AlphaAt(10, 10).A; a != 255 {
		t.Errorf("expected full coverage at center, got %d", a)
	}
	if a := m.AlphaAt(0, 0).A; a != 0 {
		t.Errorf("expected no coverage in the corner, got %d", a)
	}
	// rim pixels are partially covered
	d := math.Hypot(14.5-10, 10.5-10)
	want := uint8((5-d+0.5)*255 + 0.5)
	if a := m.AlphaAt(14, 10).A; a != want {
		t.Errorf("expected rim coverage %d, got %d", want, a)
	}
}

func BenchmarkPaintAt(b *testing.B) {
	orig := createTestImage(640, 480)
	l, _ := NewLayer(orig, orig, DefaultConfig())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.PaintAt(320, 240)
	}
}
