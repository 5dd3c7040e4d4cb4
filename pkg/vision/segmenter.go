// Package vision provides an offline segmentation provider that estimates
// foreground confidence from local contrast, brightness and a center prior.
package vision

import (
	"context"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/menta2k/blur-studio/pkg/segment"
)

// Segmenter estimates foreground confidence without a model
type Segmenter struct {
	config Config
}

// Config holds the saliency weights
type Config struct {
	MaxDim         int     // working resolution; the buffer is rescaled by the mask builder
	ContrastWeight float64 // weight of the 8-neighbor color difference
	ColorWeight    float64 // weight of the pixel brightness
	CenterWeight   float64 // share of the center prior in the final score
	Smoothing      float64 // gaussian sigma applied to the normalized map
	Threshold      float64 // normalized scores below this become background
}

// DefaultConfig returns weights tuned for portrait-like photos
func DefaultConfig() Config {
	return Config{
		MaxDim:         256,
		ContrastWeight: 0.3,
		ColorWeight:    0.2,
		CenterWeight:   0.5,
		Smoothing:      2,
		Threshold:      0.01,
	}
}

// New creates a Segmenter with the default configuration
func New() *Segmenter {
	return &Segmenter{config: DefaultConfig()}
}

// NewWithConfig creates a Segmenter with custom configuration
func NewWithConfig(config Config) *Segmenter {
	if config.MaxDim <= 0 {
		config.MaxDim = DefaultConfig().MaxDim
	}
	return &Segmenter{config: config}
}

// Segment implements segment.Provider. The buffer has the working
// resolution, at most MaxDim on its longer side.
func (s *Segmenter) Segment(ctx context.Context, img image.Image) (*segment.Confidence, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, segment.ErrEmptyImage
	}

	b := img.Bounds()
	var work *image.NRGBA
	if b.Dx() > s.config.MaxDim || b.Dy() > s.config.MaxDim {
		work = imaging.Fit(img, s.config.MaxDim, s.config.MaxDim, imaging.Linear)
	} else {
		work = imaging.Clone(img)
	}

	saliency, err := s.saliencyMap(ctx, work)
	if err != nil {
		return nil, err
	}
	normalize(saliency.Values)
	s.applyCenterPrior(saliency)
	if s.config.Smoothing > 0 {
		smooth(saliency, s.config.Smoothing)
	}
	normalize(saliency.Values)

	for i, v := range saliency.Values {
		if float64(v) < s.config.Threshold {
			saliency.Values[i] = 0
		}
	}
	return saliency, nil
}

// saliencyMap scores every interior pixel by its summed color difference to
// the 8 neighbors plus its brightness.
func (s *Segmenter) saliencyMap(ctx context.Context, img *image.NRGBA) (*segment.Confidence, error) {
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	out := segment.NewConfidence(width, height)

	neighbors := [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	for y := 1; y < height-1; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 1; x < width-1; x++ {
			i := img.PixOffset(x, y)
			r1, g1, b1 := float64(img.Pix[i]), float64(img.Pix[i+1]), float64(img.Pix[i+2])

			var edge float64
			for _, off := range neighbors {
				j := img.PixOffset(x+off[0], y+off[1])
				dr := r1 - float64(img.Pix[j])
				dg := g1 - float64(img.Pix[j+1])
				db := b1 - float64(img.Pix[j+2])
				edge += math.Sqrt(dr*dr + dg*dg + db*db)
			}
			edge /= 8 * 255

			brightness := (r1 + g1 + b1) / (3 * 255)
			out.Set(x, y, float32(s.config.ContrastWeight*edge+s.config.ColorWeight*brightness))
		}
	}
	return out, nil
}

// applyCenterPrior blends each score with an elliptical falloff from the
// image center.
func (s *Segmenter) applyCenterPrior(c *segment.Confidence) {
	w := s.config.CenterWeight
	if w <= 0 {
		return
	}
	if w > 1 {
		w = 1
	}
	cx, cy := float64(c.Width)/2, float64(c.Height)/2
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			dx := (float64(x) + 0.5 - cx) / cx
			dy := (float64(y) + 0.5 - cy) / cy
			prior := 1 - math.Min(1, math.Sqrt(dx*dx+dy*dy))
			i := y*c.Width + x
			c.Values[i] = float32((1-w)*float64(c.Values[i]) + w*prior)
		}
	}
}

// normalize scales values to [0,1] by the maximum
func normalize(values []float32) {
	var peak float32
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}
	if peak <= 0 {
		return
	}
	for i := range values {
		values[i] /= peak
	}
}

// smooth blurs the buffer through an 8-bit gray image
func smooth(c *segment.Confidence, sigma float64) {
	g := image.NewGray(image.Rect(0, 0, c.Width, c.Height))
	for i, v := range c.Values {
		g.Pix[i] = uint8(math.Round(float64(clamp01(v)) * 255))
	}
	blurred := imaging.Blur(g, sigma)
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			c.Values[y*c.Width+x] = float32(blurred.Pix[blurred.PixOffset(x, y)]) / 255
		}
	}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Region represents a rectangular region of interest
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// Rect returns the region as an image rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Scale maps a region found on a w x h buffer onto a tw x th image
func (r Region) Scale(w, h, tw, th int) Region {
	if w <= 0 || h <= 0 {
		return r
	}
	sx, sy := float64(tw)/float64(w), float64(th)/float64(h)
	return Region{
		X:      int(float64(r.X) * sx),
		Y:      int(float64(r.Y) * sy),
		Width:  int(float64(r.Width) * sx),
		Height: int(float64(r.Height) * sy),
		Score:  r.Score,
	}
}

// Regions slides square windows of several sizes over the buffer and returns
// up to limit windows whose mean confidence exceeds minScore, best first.
func Regions(c *segment.Confidence, minScore float64, limit int) []Region {
	if c.Validate() != nil {
		return nil
	}

	var regions []Region
	for _, size := range []int{c.Width / 8, c.Width / 4, c.Width / 2} {
		if size < 4 {
			continue
		}
		step := size / 4
		for y := 0; y+size <= c.Height; y += step {
			for x := 0; x+size <= c.Width; x += step {
				score := regionScore(c, x, y, size, size)
				if score > minScore {
					regions = append(regions, Region{X: x, Y: y, Width: size, Height: size, Score: score})
				}
			}
		}
	}

	sort.SliceStable(regions, func(i, j int) bool { return regions[i].Score > regions[j].Score })
	if limit > 0 && len(regions) > limit {
		regions = regions[:limit]
	}
	return regions
}

func regionScore(c *segment.Confidence, x, y, w, h int) float64 {
	var total float64
	for ry := y; ry < y+h; ry++ {
		for rx := x; rx < x+w; rx++ {
			total += float64(c.At(rx, ry))
		}
	}
	return total / float64(w*h)
}

// ConfidenceImage renders the buffer as a gray image for debugging
func ConfidenceImage(c *segment.Confidence) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, c.Width, c.Height))
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			g.SetGray(x, y, color.Gray{Y: uint8(math.Round(float64(clamp01(c.At(x, y))) * 255))})
		}
	}
	return g
}
