package blurstudio

import (
	"context"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/blur-studio/pkg/band"
	"github.com/menta2k/blur-studio/pkg/blur"
	"github.com/menta2k/blur-studio/pkg/segment"
)

// createTestImage creates a test image with a bright subject in the center
// over a striped background
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else if (x/4)%2 == 0 {
				img.Set(x, y, color.RGBA{200, 40, 40, 255})
			} else {
				img.Set(x, y, color.RGBA{20, 20, 90, 255})
			}
		}
	}
	return img
}

func TestNew(t *testing.T) {
	studio, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer studio.Close()

	if studio.Provider() == nil {
		t.Error("provider is nil")
	}
	if err := studio.Ping(context.Background()); err != nil {
		t.Errorf("Ping without redis should succeed, got %v", err)
	}
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Segmentation.Backend = "opencv"
	if _, err := New(cfg, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestApplyKeepsSubjectSharp(t *testing.T) {
	img := createTestImage(90, 60)

	sharp := NewWithProvider(segment.Uniform(1), nil)
	out, err := sharp.Apply(context.Background(), img, Options{Variant: blur.Linear, Intensity: 100})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.Bounds() != img.Bounds() {
		t.Fatalf("expected %v, got %v", img.Bounds(), out.Bounds())
	}
	r, g, b, _ := img.At(5, 5).RGBA()
	got := out.NRGBAAt(5, 5)
	if got.R != uint8(r>>8) || got.G != uint8(g>>8) || got.B != uint8(b>>8) {
		t.Errorf("full confidence should keep the original, got %v", got)
	}

	blurred := NewWithProvider(segment.Uniform(0), nil)
	out, err = blurred.Apply(context.Background(), img, Options{Variant: blur.Linear, Intensity: 100})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.NRGBAAt(4, 5) == (color.NRGBA{20, 20, 90, 255}) {
		t.Error("zero confidence should blur the stripes")
	}
}

func TestApplyAllVariants(t *testing.T) {
	studio, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	img := createTestImage(64, 48)

	for _, v := range blur.Variants() {
		out, err := studio.Apply(context.Background(), img, Options{Variant: v, Intensity: 40, Angle: 30})
		if err != nil {
			t.Errorf("%v: Apply failed: %v", v, err)
			continue
		}
		if out.Bounds().Dx() != 64 || out.Bounds().Dy() != 48 {
			t.Errorf("%v: unexpected size %v", v, out.Bounds())
		}
	}
}

func TestApplyWithBand(t *testing.T) {
	studio := NewWithProvider(segment.Uniform(0), nil)
	img := createTestImage(80, 80)

	out, err := studio.Apply(context.Background(), img, Options{
		Variant:   blur.Linear,
		Intensity: 100,
		Band:      band.NewRadial(15),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.NRGBAAt(40, 40) != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("band center should stay sharp, got %v", out.NRGBAAt(40, 40))
	}
}

func TestModelBackendFallsBackToSaliency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"primary\":{\"label\":\"none\",\"box\":{\"x\":0.25,\"y\":0.25,\"w\":0.5,\"h\":0.5}},\"description\":\"no subject\",\"tags\":[\"none\"]}"}}]}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Segmentation.Backend = "llamacpp"
	cfg.Segmentation.URL = srv.URL
	cfg.Segmentation.Model = "test"
	studio, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	conf, err := studio.Segment(context.Background(), createTestImage(60, 60))
	if err != nil {
		t.Fatalf("Segment should fall back, got %v", err)
	}
	if err := conf.Validate(); err != nil {
		t.Errorf("invalid buffer: %v", err)
	}
}

func TestModelBackendSubject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"primary\":{\"label\":\"person\",\"confidence\":0.9,\"box\":{\"x\":0.25,\"y\":0.25,\"w\":0.5,\"h\":0.5}},\"description\":\"a person\",\"tags\":[\"person\"]}"}}]}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Segmentation.Backend = "llamacpp"
	cfg.Segmentation.URL = srv.URL
	cfg.Segmentation.Model = "test"
	studio, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	conf, err := studio.Segment(context.Background(), createTestImage(60, 60))
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if conf.At(30, 30) != 1 || conf.At(1, 1) != 0 {
		t.Errorf("unexpected confidence center=%f corner=%f", conf.At(30, 30), conf.At(1, 1))
	}
}

func TestSaveAndLoadImage(t *testing.T) {
	studio := NewWithProvider(segment.Uniform(1), nil)
	path := filepath.Join(t.TempDir(), "out.png")

	if err := studio.SaveImage(createTestImage(20, 10), path); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	img, err := studio.LoadImage(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
		t.Errorf("expected 20x10, got %v", img.Bounds())
	}
}

func TestSaveImageUnknownExtension(t *testing.T) {
	studio := NewWithProvider(segment.Uniform(1), nil)
	path := filepath.Join(t.TempDir(), "out.bmp")

	if err := studio.SaveImage(createTestImage(20, 10), path); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, format, err := image.DecodeConfig(f); err != nil || format != "jpeg" {
		t.Errorf("expected the configured jpeg output, got %q (%v)", format, err)
	}
}

func TestDebugOverlay(t *testing.T) {
	studio, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	img := createTestImage(64, 64)
	conf, err := studio.Segment(context.Background(), img)
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}

	out, err := studio.DebugOverlay(img, conf, false)
	if err != nil {
		t.Fatalf("DebugOverlay failed: %v", err)
	}
	if out.Bounds() != img.Bounds() {
		t.Errorf("expected %v, got %v", img.Bounds(), out.Bounds())
	}
}

func TestDefaultOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Blur.Variant = "zoom"
	cfg.Blur.Intensity = 70
	studio, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	opts, err := studio.DefaultOptions()
	if err != nil {
		t.Fatalf("DefaultOptions failed: %v", err)
	}
	if opts.Variant != blur.Zoom || opts.Intensity != 70 {
		t.Errorf("unexpected options %+v", opts)
	}

	bc := studio.BrushConfig()
	if bc.EraseRadius != 40 || bc.PaintRadius != 30 {
		t.Errorf("unexpected brush config %+v", bc)
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("expected %s, got %s", Version, GetVersion())
	}
}

func BenchmarkApply(b *testing.B) {
	studio := NewWithProvider(segment.Uniform(0.5), nil)
	img := createTestImage(200, 150)
	opts := Options{Variant: blur.Linear, Intensity: 50}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := studio.Apply(context.Background(), img, opts); err != nil {
			b.Fatal(err)
		}
	}
}
