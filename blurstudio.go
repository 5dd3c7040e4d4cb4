// Package blurstudio applies portrait-aware blur effects to images.
//
// A segmentation provider estimates how likely each pixel belongs to the
// foreground subject. The confidence becomes an alpha mask, the selected
// blur kernel (linear, radial, motion or zoom) runs over the whole image and
// the compositor blends original and blurred copies through the mask, so
// the subject stays sharp. A paint/erase layer can then retouch the result.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		blurstudio "github.com/menta2k/blur-studio"
//		"github.com/menta2k/blur-studio/pkg/blur"
//	)
//
//	func main() {
//		studio, err := blurstudio.New(blurstudio.DefaultConfig(), nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer studio.Close()
//
//		img, err := studio.LoadImage(context.Background(), "photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		out, err := studio.Apply(context.Background(), img, blurstudio.Options{
//			Variant:   blur.Radial,
//			Intensity: 60,
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//		if err := studio.SaveImage(out, "photo_blur.jpg"); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// Segmentation backends:
//
//   - saliency: offline contrast and center-prior heuristic (pkg/vision)
//   - ollama, llamacpp: a vision model locates the subject box, which is
//     rasterized into a feathered confidence buffer (pkg/detection). When
//     the model finds no subject the saliency heuristic is used instead.
//
// Results are cached by image content, in memory or in redis.
package blurstudio

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/menta2k/blur-studio/internal/config"
	"github.com/menta2k/blur-studio/pkg/band"
	"github.com/menta2k/blur-studio/pkg/blur"
	"github.com/menta2k/blur-studio/pkg/brush"
	"github.com/menta2k/blur-studio/pkg/client"
	"github.com/menta2k/blur-studio/pkg/detection"
	"github.com/menta2k/blur-studio/pkg/editor"
	"github.com/menta2k/blur-studio/pkg/llamacpp"
	"github.com/menta2k/blur-studio/pkg/mask"
	"github.com/menta2k/blur-studio/pkg/ollama"
	"github.com/menta2k/blur-studio/pkg/processing"
	"github.com/menta2k/blur-studio/pkg/segment"
	"github.com/menta2k/blur-studio/pkg/vision"
)

// Version of the blur studio library
const Version = "1.0.0"

// Config is the studio configuration, see LoadConfig
type Config = config.Config

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig reads a YAML or JSON configuration file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// Options selects the effect applied by Apply
type Options struct {
	Variant   blur.Variant
	Intensity int     // 0..100
	Angle     float64 // motion direction in degrees
	Invert    bool    // blur the subject instead of the background
	Band      band.Masker
}

// Studio wires a segmentation provider, the blur pipeline and image I/O
type Studio struct {
	config    *config.Config
	processor *processing.Processor
	saliency  *vision.Segmenter
	provider  segment.Provider
	redis     *segment.RedisCache
	logger    *zap.Logger
}

// New builds a Studio from cfg. A nil cfg uses the defaults.
func New(cfg *Config, logger *zap.Logger) (*Studio, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Studio{
		config:    cfg,
		processor: processing.NewProcessor(),
		saliency:  vision.New(),
		logger:    logger,
	}

	provider, err := s.buildProvider()
	if err != nil {
		return nil, err
	}
	s.provider = s.withCache(provider)
	return s, nil
}

// NewWithProvider builds a Studio around a custom segmentation provider.
// No cache is added.
func NewWithProvider(p segment.Provider, logger *zap.Logger) *Studio {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Studio{
		config:    config.Default(),
		processor: processing.NewProcessor(),
		saliency:  vision.New(),
		provider:  p,
		logger:    logger,
	}
}

func (s *Studio) buildProvider() (segment.Provider, error) {
	sc := s.config.Segmentation

	var vc client.VisionClient
	switch sc.Backend {
	case "saliency":
		return s.saliency, nil
	case "ollama":
		c, err := ollama.NewClient(sc.URL, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		vc = c
	case "llamacpp":
		c, err := llamacpp.NewClient(sc.URL, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		vc = c
	default:
		return nil, fmt.Errorf("unknown segmentation backend %q", sc.Backend)
	}

	det := detection.NewDetector(vc, detection.Config{
		Model:    sc.Model,
		MaxDim:   sc.MaxDim,
		GridSize: sc.GridSize,
		Feather:  sc.Feather,
	}, s.logger)

	var p segment.Provider = det
	if sc.Timeout > 0 {
		timeout := sc.Timeout
		p = segment.ProviderFunc(func(ctx context.Context, img image.Image) (*segment.Confidence, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return det.Segment(ctx, img)
		})
	}
	return segment.WithFallback(p, s.saliency, s.logger), nil
}

func (s *Studio) withCache(p segment.Provider) segment.Provider {
	cc := s.config.Cache
	if !cc.Enabled {
		return p
	}
	if cc.Redis.Addr != "" {
		s.redis = segment.NewRedisCache(segment.RedisOptions{
			Addr:     cc.Redis.Addr,
			Password: cc.Redis.Password,
			DB:       cc.Redis.DB,
			TTL:      cc.Redis.TTL,
			Prefix:   cc.Redis.Prefix,
		})
		return segment.WithCache(p, s.redis, s.logger)
	}
	return segment.WithCache(p, segment.NewMemoryCache(cc.MemorySize), s.logger)
}

// Provider returns the segmentation provider in use
func (s *Studio) Provider() segment.Provider {
	return s.provider
}

// Ping checks the redis cache connection when one is configured
func (s *Studio) Ping(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Ping(ctx)
}

// Close releases the redis connection, if any
func (s *Studio) Close() error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Close()
}

// LoadImage loads an image from a file path or an http(s) URL
func (s *Studio) LoadImage(ctx context.Context, source string) (image.Image, error) {
	return s.processor.LoadImageSmart(ctx, source)
}

// SaveImage saves img to path. The format follows the extension, falling
// back to the configured output format.
func (s *Studio) SaveImage(img image.Image, path string) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch format {
	case "jpg", "jpeg", "png", "webp":
	default:
		format = s.config.Output.Format
	}
	return s.processor.SaveImage(img, path, format, s.config.Output.Quality, s.config.Output.Lossless)
}

// BrushConfig returns the paint/erase geometry from the configuration
func (s *Studio) BrushConfig() brush.Config {
	b := s.config.Brush
	return brush.Config{
		EraseRadius:  b.EraseRadius,
		PaintRadius:  b.PaintRadius,
		PaintBlur:    b.PaintBlur,
		EraseSpacing: b.EraseSpacing,
	}
}

// DefaultOptions returns the effect configured in the blur section
func (s *Studio) DefaultOptions() (Options, error) {
	v, err := blur.ParseVariant(s.config.Blur.Variant)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Variant:   v,
		Intensity: s.config.Blur.Intensity,
		Angle:     s.config.Blur.Angle,
		Invert:    s.config.Blur.Invert,
	}, nil
}

// NewSession starts an interactive edit session on img
func (s *Studio) NewSession(img image.Image, opts ...editor.Option) (*editor.Session, error) {
	base := []editor.Option{
		editor.WithLogger(s.logger),
		editor.WithBrushConfig(s.BrushConfig()),
	}
	return editor.NewSession(img, s.provider, append(base, opts...)...)
}

// Apply renders img once with the given effect
func (s *Studio) Apply(ctx context.Context, img image.Image, opts Options) (*image.NRGBA, error) {
	var extra []editor.Option
	if opts.Band != nil {
		extra = append(extra, editor.WithBand(opts.Band))
	}
	sess, err := s.NewSession(img, extra...)
	if err != nil {
		return nil, err
	}

	st, err := sess.Update(ctx, func(st editor.State) editor.State {
		return st.WithVariant(opts.Variant).
			WithIntensity(opts.Intensity).
			WithAngle(opts.Angle).
			WithInvert(opts.Invert)
	})
	if err != nil {
		return nil, err
	}
	return st.Current, nil
}

// Segment runs the configured provider on img
func (s *Studio) Segment(ctx context.Context, img image.Image) (*segment.Confidence, error) {
	return s.provider.Segment(ctx, img)
}

// DebugOverlay tints the area conf leaves blurred and outlines the most
// salient regions.
func (s *Studio) DebugOverlay(img image.Image, conf *segment.Confidence, invert bool) (*image.NRGBA, error) {
	b := img.Bounds()
	m, err := mask.Build(conf, invert, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}

	var rects []image.Rectangle
	for _, r := range vision.Regions(conf, 0.5, 3) {
		rects = append(rects, r.Scale(conf.Width, conf.Height, b.Dx(), b.Dy()).Rect())
	}
	return s.processor.CreateDebugOverlay(img, m, rects), nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
