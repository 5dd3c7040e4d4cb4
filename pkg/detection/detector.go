package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/menta2k/blur-studio/pkg/client"
	"github.com/menta2k/blur-studio/pkg/processing"
	"github.com/menta2k/blur-studio/pkg/segment"
	"github.com/menta2k/blur-studio/pkg/types"
)

// ErrNoSubject is returned when the model reports no usable subject
var ErrNoSubject = errors.New("detection: no subject found")

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks for the box of the foreground subject to keep sharp
const DefaultPrompt = `You are a foreground subject locator for a portrait blur effect.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence (≤ 20 words)",
  "tags": ["tag1", "tag2", "tag3"]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels).
- The box must tightly include the foreground subject that should stay in focus (prefer people, then animals, then the most prominent object).
- Include hair, hands and held objects of a person inside the box.
- Description must be brief and factual. Do not guess real identities.
- Tags: lowercase, concise, no punctuation or duplicates.
- If no subject is found, return:
  {"primary":{"label":"none","confidence":0.0,"box":{"x":0.25,"y":0.25,"w":0.50,"h":0.50},"cx":0.5,"cy":0.5},"description":"no subject","tags":["none"]}
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Config tunes the model request and the rasterized confidence
type Config struct {
	Model    string
	Prompt   string
	MaxDim   int     // longest side of the image sent to the model
	Quality  int     // JPEG quality of the payload
	GridSize int     // longest side of the produced confidence buffer
	Feather  float64 // normalized width of the soft edge around the subject
}

// DefaultConfig returns the default detection settings for model
func DefaultConfig(model string) Config {
	return Config{
		Model:    model,
		Prompt:   DefaultPrompt,
		MaxDim:   768,
		Quality:  85,
		GridSize: 128,
		Feather:  0.08,
	}
}

// Detector locates the foreground subject with a vision model and turns
// its box into a feathered confidence buffer.
type Detector struct {
	client    client.VisionClient
	processor *processing.Processor
	config    Config
	logger    *zap.Logger
}

// NewDetector creates a new detector with a vision client
func NewDetector(c client.VisionClient, config Config, logger *zap.Logger) *Detector {
	def := DefaultConfig(config.Model)
	if config.Prompt == "" {
		config.Prompt = def.Prompt
	}
	if config.MaxDim <= 0 {
		config.MaxDim = def.MaxDim
	}
	if config.Quality <= 0 {
		config.Quality = def.Quality
	}
	if config.GridSize <= 0 {
		config.GridSize = def.GridSize
	}
	if config.Feather < 0 {
		config.Feather = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		client:    c,
		processor: processing.NewProcessor(),
		config:    config,
		logger:    logger,
	}
}

// Segment implements segment.Provider
func (d *Detector) Segment(ctx context.Context, img image.Image) (*segment.Confidence, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, segment.ErrEmptyImage
	}

	result, err := d.DetectSubject(ctx, img)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	gw, gh := gridSize(b.Dx(), b.Dy(), d.config.GridSize)
	return Rasterize(result.Primary.Box, gw, gh, d.config.Feather), nil
}

// DetectSubject asks the model for the primary subject of img
func (d *Detector) DetectSubject(ctx context.Context, img image.Image) (*types.AnalysisResult, error) {
	imgB64, err := d.processor.PrepareImageForModel(img, "jpg", d.config.MaxDim, d.config.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	result, err := d.client.AnalyzeImage(ctx, d.config.Model, d.config.Prompt, imgB64)
	if err != nil {
		return nil, fmt.Errorf("vision model: %w", err)
	}

	// boxes in pixels refer to the payload, not the source image
	b := img.Bounds()
	pw, ph := gridSize(b.Dx(), b.Dy(), d.config.MaxDim)
	result.Primary.Box = normalizeBox(result.Primary.Box, pw, ph)
	result.Tags = normalizeTags(result.Tags)

	d.logger.Debug("subject detected",
		zap.String("label", result.Primary.Label),
		zap.Float64("confidence", result.Primary.Confidence),
		zap.Strings("tags", result.Tags))

	if isFallback(result) || result.Primary.Box.Empty() {
		return result, fmt.Errorf("%w: %s", ErrNoSubject, result.Description)
	}
	return result, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, img image.Image) (string, error) {
	imgB64, err := d.processor.PrepareImageForModel(img, "jpg", d.config.MaxDim, d.config.Quality)
	if err != nil {
		return "", fmt.Errorf("failed to prepare image: %w", err)
	}
	return d.client.SimpleQuery(ctx, d.config.Model, SimpleTestPrompt, imgB64)
}

// isFallback reports whether the result is the model's "none" answer or a
// parse fallback.
func isFallback(result *types.AnalysisResult) bool {
	if strings.ToLower(result.Primary.Label) == "none" {
		return true
	}

	fallbackIndicators := []string{"unclear", "empty", "parse", "error", "fallback", "non-json", "no json"}
	label := strings.ToLower(result.Primary.Label)
	for _, indicator := range fallbackIndicators {
		if strings.Contains(label, indicator) {
			return true
		}
	}
	for _, tag := range result.Tags {
		if tag == "fallback" {
			return true
		}
	}
	return false
}

// Rasterize renders box as a w x h confidence buffer: 1 inside an ellipse
// inscribed in the box, falling to 0 over feather (normalized to the
// shorter box side) outside it.
func Rasterize(box types.Box, w, h int, feather float64) *segment.Confidence {
	c := segment.NewConfidence(w, h)
	if box.Empty() || w <= 0 || h <= 0 {
		return c
	}

	cx, cy := box.Center()
	rx, ry := box.W/2, box.H/2
	soft := feather / math.Min(box.W, box.H)

	for y := 0; y < h; y++ {
		ny := (float64(y) + 0.5) / float64(h)
		for x := 0; x < w; x++ {
			nx := (float64(x) + 0.5) / float64(w)
			dx := (nx - cx) / rx
			dy := (ny - cy) / ry
			d := math.Sqrt(dx*dx + dy*dy)

			var v float64
			switch {
			case d <= 1:
				v = 1
			case soft > 0 && d < 1+soft:
				v = 1 - (d-1)/soft
			}
			c.Values[y*w+x] = float32(v)
		}
	}
	return c
}

// gridSize scales w x h so its longer side is at most limit
func gridSize(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox ensures box coordinates are within [0,1] bounds
func normalizeBox(b types.Box, imgW, imgH int) types.Box {
	// Convert from pixel coordinates if needed
	if imgW > 1 && imgH > 1 && (b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1) {
		b = types.Box{
			X: b.X / float64(imgW),
			Y: b.Y / float64(imgH),
			W: b.W / float64(imgW),
			H: b.H / float64(imgH),
		}
	}

	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// normalizeTags ensures tags are cleaned and limited to 5 entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}
