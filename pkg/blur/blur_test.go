package blur

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

// createTestImage creates a gradient test image with a bright square subject
func createTestImage(width, height int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.NRGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.NRGBA{uint8(x * 255 / width), uint8(y * 255 / height), 128, 255})
			}
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

func TestClampRadius(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-3, 1},
		{0, 1},
		{1, 1},
		{12.5, 12.5},
		{25, 25},
		{50, 25},
		{math.NaN(), 1},
	}
	for _, tt := range tests {
		if got := ClampRadius(tt.in); got != tt.want {
			t.Errorf("ClampRadius(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseVariant(t *testing.T) {
	tests := []struct {
		in   string
		want Variant
	}{
		{"linear", Linear},
		{"Normal", Linear},
		{"radial", Radial},
		{" MOTION ", Motion},
		{"zoom", Zoom},
	}
	for _, tt := range tests {
		got, err := ParseVariant(tt.in)
		if err != nil {
			t.Fatalf("ParseVariant(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseVariant(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if back, _ := ParseVariant(got.String()); back != got {
			t.Errorf("String/Parse mismatch for %v", got)
		}
	}

	if _, err := ParseVariant("circle"); !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestMotionOffset(t *testing.T) {
	dx, dy := MotionOffset(0, 10)
	if math.Abs(dy) > 1e-9 || math.Abs(dx-10) > 1e-9 {
		t.Errorf("angle 0: got (%f, %f), want (10, 0)", dx, dy)
	}

	dx, dy = MotionOffset(90, 10)
	if math.Abs(dx) > 1e-9 || math.Abs(dy-10) > 1e-9 {
		t.Errorf("angle 90: got (%f, %f), want (0, 10)", dx, dy)
	}

	dx, dy = MotionOffset(180, 4)
	if math.Abs(dx+4) > 1e-9 || math.Abs(dy) > 1e-9 {
		t.Errorf("angle 180: got (%f, %f), want (-4, 0)", dx, dy)
	}
}

func TestKernelsPreserveDimensions(t *testing.T) {
	img := createTestImage(120, 80)

	params := DefaultParams()
	params.Radial.Passes = 6
	params.Zoom.Passes = 4
	params.Zoom.Amount = 0.5
	params.Motion.Passes = 5

	for _, v := range Variants() {
		out, err := Apply(img, v, params)
		if err != nil {
			t.Fatalf("Apply(%v) failed: %v", v, err)
		}
		b := out.Bounds()
		if b.Dx() != 120 || b.Dy() != 80 {
			t.Errorf("%v: expected 120x80, got %dx%d", v, b.Dx(), b.Dy())
		}
		if b.Min != (image.Point{}) {
			t.Errorf("%v: expected zero origin, got %v", v, b.Min)
		}
	}
}

func TestZoomPreservesDimensionsForLargeScale(t *testing.T) {
	img := createTestImage(64, 48)
	out := ZoomBlur(img, ZoomParams{Amount: 3, Passes: 3, PassRadius: 2})
	if out.Bounds().Dx() != 64 || out.Bounds().Dy() != 48 {
		t.Errorf("expected 64x48, got %v", out.Bounds())
	}
}

func TestRadialPreservesDimensionsWithOffCenter(t *testing.T) {
	img := createTestImage(50, 70)
	out := RadialBlur(img, RadialParams{CenterX: 5, CenterY: 60, Passes: 4, ScaleStep: 0.5, Spin: 45})
	if out.Bounds().Dx() != 50 || out.Bounds().Dy() != 70 {
		t.Errorf("expected 50x70, got %v", out.Bounds())
	}
}

func TestGaussianBlurSolidColorUnchanged(t *testing.T) {
	red := color.NRGBA{255, 0, 0, 255}
	out := GaussianBlur(solidImage(100, 100, red), 10)
	for i := 0; i < len(out.Pix); i += 4 {
		if out.Pix[i] != 255 || out.Pix[i+1] != 0 || out.Pix[i+2] != 0 || out.Pix[i+3] != 255 {
			t.Fatalf("pixel %d changed: %v", i/4, out.Pix[i:i+4])
		}
	}
}

func TestBoxBlurSmoothsEdge(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 40; x++ {
			v := uint8(0)
			if x >= 20 {
				v = 255
			}
			img.Set(x, y, color.NRGBA{v, v, v, 255})
		}
	}

	out, err := Apply(img, Linear, Params{Radius: 4, Convolution: Box})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	edge := out.NRGBAAt(20, 5).R
	if edge == 0 || edge == 255 {
		t.Errorf("expected a smoothed edge value, got %d", edge)
	}
}

func TestMotionBlurShiftsAlongAngle(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 60, 60))
	for y := 25; y < 35; y++ {
		for x := 25; x < 35; x++ {
			img.Set(x, y, color.NRGBA{255, 255, 255, 255})
		}
	}

	out := MotionBlur(img, MotionParams{Angle: 0, Distance: 3, Passes: 5})
	// Copies move right only.
	if out.NRGBAAt(48, 30).A == 0 {
		t.Error("expected trail to the right of the subject")
	}
	if out.NRGBAAt(12, 30).A != 0 {
		t.Error("expected no trail left of the subject for angle 0")
	}
	if out.NRGBAAt(30, 5).A != 0 {
		t.Error("expected no trail above the subject for angle 0")
	}
}

func TestApplyErrors(t *testing.T) {
	if _, err := Apply(nil, Linear, DefaultParams()); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("expected ErrEmptyImage, got %v", err)
	}
	img := createTestImage(10, 10)
	if _, err := Apply(img, Variant(42), DefaultParams()); !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestScaledOffsetCentersImage(t *testing.T) {
	pt := scaledOffset(50, 40, 1.2)
	// (w - sw) / 2 for a 100x80 image scaled to 120x96
	if pt.X != -10 || pt.Y != -8 {
		t.Errorf("expected (-10,-8), got %v", pt)
	}
}

func TestPassOpacity(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"radial first pass", radialAlpha(0, 10), 255},
		{"radial second pass", radialAlpha(1, 10), 229},
		{"radial middle pass", radialAlpha(5, 10), 127},
		{"radial last pass", radialAlpha(9, 10), 25},
		{"radial 4 passes", radialAlpha(1, 4), 191},
		{"motion first copy", motionAlpha(0, 10), 255},
		{"motion second copy", motionAlpha(1, 10), 229},
		{"motion last copy", motionAlpha(9, 10), 25},
		{"motion 4 copies", motionAlpha(3, 4), 63},
		{"zoom 10 passes", zoomAlpha(10), 20},
		{"zoom 4 passes", zoomAlpha(4), 51},
		{"zoom 300 passes", zoomAlpha(300), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got alpha %d, want %d", tt.got, tt.want)
			}
		})
	}
}

func TestAccumulatedOpacity(t *testing.T) {
	src := solidImage(40, 40, color.NRGBA{200, 100, 50, 255})

	tests := []struct {
		name     string
		out      *image.NRGBA
		min, max uint8
	}{
		{"radial", RadialBlur(src, RadialParams{Passes: 10, ScaleStep: 0.03, Spin: 3}), 255, 255},
		{"motion", MotionBlur(src, MotionParams{Distance: 2, Passes: 10}), 255, 255},
		// ten passes at 20/255 each never reach full opacity
		{"zoom", ZoomBlur(src, ZoomParams{Amount: 0.1, Passes: 10}), 120, 160},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.out.NRGBAAt(20, 20).A
			if a < tt.min || a > tt.max {
				t.Errorf("center alpha %d, want %d..%d", a, tt.min, tt.max)
			}
		})
	}
}

func BenchmarkRadialBlur(b *testing.B) {
	img := createTestImage(320, 240)
	p := DefaultRadial()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RadialBlur(img, p)
	}
}

func BenchmarkMotionBlur(b *testing.B) {
	img := createTestImage(320, 240)
	p := DefaultMotion()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		MotionBlur(img, p)
	}
}
