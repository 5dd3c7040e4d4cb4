package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	blurstudio "github.com/menta2k/blur-studio"
	"github.com/menta2k/blur-studio/internal/config"
	"github.com/menta2k/blur-studio/internal/logger"
	"github.com/menta2k/blur-studio/internal/utils"
	"github.com/menta2k/blur-studio/pkg/band"
	"github.com/menta2k/blur-studio/pkg/brush"
	"github.com/menta2k/blur-studio/pkg/editor"
)

type point struct{ X, Y float64 }

type options struct {
	in, out    string
	configPath string
	saveConfig string
	bandKind   string
	bandSize   float64
	erase      string
	paint      string
	view       string
	debug      bool
}

func main() {
	var o options
	cfg := config.Default()

	flag.StringVar(&o.in, "in", "", "input image path, directory or URL (jpg/png/webp)")
	flag.StringVar(&o.out, "out", "", "output directory (default from config)")
	flag.StringVar(&o.configPath, "config", "", "config file (yaml or json)")
	flag.StringVar(&o.saveConfig, "save-config", "", "write the effective configuration to this file and exit")

	variant := flag.String("variant", "", "blur variant: linear|radial|motion|zoom")
	intensity := flag.Int("intensity", -1, "blur intensity 0..100")
	angle := flag.Float64("angle", 0, "motion blur direction in degrees")
	invert := flag.Bool("invert", false, "blur the subject instead of the background")

	flag.StringVar(&o.bandKind, "band", "none", "focus band instead of segmentation: none|linear|radial")
	flag.Float64Var(&o.bandSize, "band-size", 1, "linear band scale (0.5..5) or radial band radius in px")

	backend := flag.String("backend", "", "segmentation backend: saliency|ollama|llamacpp")
	model := flag.String("model", "", "vision model name")
	url := flag.String("url", "", "vision model server URL")
	redisAddr := flag.String("redis", "", "redis address for the segmentation cache")

	flag.StringVar(&o.erase, "erase", "", `erase stroke points "x,y x,y ..."`)
	flag.StringVar(&o.paint, "paint", "", `paint stroke points "x,y x,y ..."`)
	flag.StringVar(&o.view, "view", "", `stroke points are screen coordinates in a WxH view, e.g. "1080x1920"`)

	ext := flag.String("ext", "", "output format: jpg|png|webp")
	quality := flag.Int("quality", 0, "JPEG/WebP output quality (1-100)")
	lossless := flag.Bool("lossless", false, "WebP output lossless mode")
	flag.BoolVar(&o.debug, "debug", false, "write a segmentation debug overlay")
	logMode := flag.String("log", "", "log mode: debug|release")

	flag.Parse()

	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else if _, err := os.Stat(config.GetConfigPath()); err == nil {
		cfg = config.New(config.GetConfigPath())
	}

	// explicit flags win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "variant":
			cfg.Blur.Variant = *variant
		case "intensity":
			cfg.Blur.Intensity = *intensity
		case "angle":
			cfg.Blur.Angle = *angle
		case "invert":
			cfg.Blur.Invert = *invert
		case "backend":
			cfg.Segmentation.Backend = *backend
		case "model":
			cfg.Segmentation.Model = *model
		case "url":
			cfg.Segmentation.URL = *url
		case "redis":
			cfg.Cache.Redis.Addr = *redisAddr
		case "ext":
			cfg.Output.Format = *ext
		case "quality":
			cfg.Output.Quality = *quality
		case "lossless":
			cfg.Output.Lossless = *lossless
		case "out":
			cfg.Output.Dir = o.out
		case "log":
			cfg.Log.Mode = *logMode
		}
	})

	if o.saveConfig != "" {
		if err := cfg.SaveToFile(o.saveConfig); err != nil {
			fmt.Fprintf(os.Stderr, "failed to save config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", o.saveConfig)
		return
	}

	if o.in == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -in image.jpg|dir|URL [-variant linear|radial|motion|zoom] [-intensity 0..100] [-angle deg] [-invert] [-band none|linear|radial] [-backend saliency|ollama|llamacpp] [-erase \"x,y ...\"] [-paint \"x,y ...\"] [-out dir]\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	if err := run(o, cfg, log); err != nil {
		log.Error("blur-studio failed", zap.Error(err))
		logger.Sync(log)
		os.Exit(1)
	}
}

func run(o options, cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	studio, err := blurstudio.New(cfg, log)
	if err != nil {
		return err
	}
	defer studio.Close()

	if err := studio.Ping(ctx); err != nil {
		log.Warn("redis cache unavailable", zap.String("addr", cfg.Cache.Redis.Addr), zap.Error(err))
	}

	opts, err := studio.DefaultOptions()
	if err != nil {
		return err
	}
	if opts.Band, err = parseBand(o.bandKind, o.bandSize); err != nil {
		return err
	}

	erase, err := parsePoints(o.erase)
	if err != nil {
		return fmt.Errorf("invalid -erase: %w", err)
	}
	paint, err := parsePoints(o.paint)
	if err != nil {
		return fmt.Errorf("invalid -paint: %w", err)
	}

	if err := utils.EnsureDir(cfg.Output.Dir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	inputs := []string{o.in}
	if utils.DirExists(o.in) {
		if inputs, err = utils.ListImageFiles(o.in); err != nil {
			return fmt.Errorf("failed to list images: %w", err)
		}
		log.Info("processing directory", zap.String("dir", o.in), zap.Int("images", len(inputs)))
	}

	failed := 0
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := process(ctx, studio, cfg, o, opts, erase, paint, in, log); err != nil {
			log.Error("processing failed", zap.String("input", in), zap.Error(err))
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(inputs))
	}
	return nil
}

func process(ctx context.Context, studio *blurstudio.Studio, cfg *config.Config, o options,
	opts blurstudio.Options, erase, paint []point, in string, log *zap.Logger) error {
	fields := []zap.Field{zap.String("input", in), zap.Stringer("variant", opts.Variant), zap.Int("intensity", opts.Intensity)}
	if sum, err := utils.FileMD5(in); err == nil {
		fields = append(fields, zap.String("md5", sum))
	}
	log.Info("processing image", fields...)

	img, err := studio.LoadImage(ctx, in)
	if err != nil {
		return err
	}

	var sessOpts []editor.Option
	if opts.Band != nil {
		sessOpts = append(sessOpts, editor.WithBand(opts.Band))
	}
	sess, err := studio.NewSession(img, sessOpts...)
	if err != nil {
		return err
	}
	st, err := sess.Update(ctx, func(st editor.State) editor.State {
		return st.WithVariant(opts.Variant).
			WithIntensity(opts.Intensity).
			WithAngle(opts.Angle).
			WithInvert(opts.Invert)
	})
	if err != nil {
		return err
	}

	b := img.Bounds()
	toImage, err := pointMapper(b.Dx(), b.Dy(), o.view)
	if err != nil {
		return err
	}

	stroke(sess, brush.Erase, erase, toImage, log)
	stroke(sess, brush.Paint, paint, toImage, log)
	if len(erase) > 0 || len(paint) > 0 {
		st = sess.State()
	}

	ext := cfg.Output.Format
	outPath := utils.GenerateOutputFilename(outputName(in), cfg.Output.Dir, cfg.Output.Prefix, cfg.Output.Suffix, ext)
	if err := studio.SaveImage(st.Current, outPath); err != nil {
		return fmt.Errorf("failed to save %s: %w", outPath, err)
	}
	log.Info("wrote image", zap.String("path", outPath))

	if o.debug && opts.Band == nil {
		conf, err := studio.Segment(ctx, img)
		if err != nil {
			log.Warn("debug overlay skipped", zap.Error(err))
			return nil
		}
		overlay, err := studio.DebugOverlay(img, conf, opts.Invert)
		if err != nil {
			log.Warn("debug overlay failed", zap.Error(err))
			return nil
		}
		dbgPath := utils.GenerateOutputFilename(outputName(in), cfg.Output.Dir, cfg.Output.Prefix, "_debug", "png")
		if err := studio.SaveImage(overlay, dbgPath); err != nil {
			log.Warn("debug overlay save failed", zap.String("path", dbgPath), zap.Error(err))
		} else {
			log.Info("wrote debug overlay", zap.String("path", dbgPath))
		}
	}
	return nil
}

// pointMapper converts stroke points to image events. Points are image
// coordinates unless view names the display size they were picked on.
// Points outside the image are rejected in both cases.
func pointMapper(w, h int, view string) (func(point) (brush.Event, bool), error) {
	vp := brush.FitCenter(w, h, float64(w), float64(h))
	if view != "" {
		vw, vh, err := parseSize(view)
		if err != nil {
			return nil, fmt.Errorf("invalid -view: %w", err)
		}
		vp = brush.FitCenter(w, h, vw, vh)
	}
	return func(p point) (brush.Event, bool) {
		return vp.Event(brush.Down, p.X, p.Y)
	}, nil
}

// stroke replays pts as one drag gesture in mode m
func stroke(sess *editor.Session, m brush.Mode, pts []point, toImage func(point) (brush.Event, bool), log *zap.Logger) {
	if len(pts) == 0 {
		return
	}
	sess.SetMode(m)
	defer sess.SetMode(brush.None)

	var last brush.Event
	touched := false
	for _, p := range pts {
		ev, ok := toImage(p)
		if !ok {
			log.Warn("stroke point outside the image", zap.Stringer("mode", m), zap.Float64("x", p.X), zap.Float64("y", p.Y))
			continue
		}
		ev.Phase = brush.Move
		if !touched {
			ev.Phase = brush.Down
		}
		sess.Touch(ev)
		last, touched = ev, true
	}
	if touched {
		last.Phase = brush.Up
		sess.Touch(last)
	}
}

// outputName strips URL query strings so remote inputs get a usable name
func outputName(in string) string {
	if i := strings.IndexAny(in, "?#"); i >= 0 && strings.Contains(in, "://") {
		in = in[:i]
	}
	return in
}

func parseBand(kind string, size float64) (band.Masker, error) {
	switch strings.ToLower(kind) {
	case "", "none":
		return nil, nil
	case "linear":
		return band.NewLinear().WithScale(size), nil
	case "radial":
		if size <= 1 {
			size = 150
		}
		return band.NewRadial(size), nil
	default:
		return nil, fmt.Errorf("unknown band %q (use none, linear or radial)", kind)
	}
}

// parsePoints parses "x,y x,y ..." (also ";" separated)
func parsePoints(s string) ([]point, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ';' || r == '\t' })
	pts := make([]point, 0, len(fields))
	for _, f := range fields {
		xs, ys, ok := strings.Cut(f, ",")
		if !ok {
			return nil, fmt.Errorf("point %q: expected x,y", f)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		if err != nil {
			return nil, fmt.Errorf("point %q: %w", f, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if err != nil {
			return nil, fmt.Errorf("point %q: %w", f, err)
		}
		pts = append(pts, point{x, y})
	}
	return pts, nil
}

// parseSize parses "WxH"
func parseSize(s string) (float64, float64, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q: expected WxH", s)
	}
	w, err := strconv.ParseFloat(ws, 64)
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.ParseFloat(hs, 64)
	if err != nil {
		return 0, 0, err
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("size %q must be positive", s)
	}
	return w, h, nil
}
