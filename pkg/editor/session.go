// Package editor runs an edit session: segmentation, mask, blur kernel and
// compositor in order, plus the paint/erase layer on top of the result.
package editor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/menta2k/blur-studio/pkg/band"
	"github.com/menta2k/blur-studio/pkg/blur"
	"github.com/menta2k/blur-studio/pkg/brush"
	"github.com/menta2k/blur-studio/pkg/compose"
	"github.com/menta2k/blur-studio/pkg/mask"
	"github.com/menta2k/blur-studio/pkg/segment"
)

var (
	// ErrStale is returned by a render superseded by a newer one. Its result
	// is discarded.
	ErrStale = errors.New("editor: stale render discarded")
	// ErrNoImage is returned when a session is created without pixels
	ErrNoImage = errors.New("editor: no source image")
)

// Result is delivered by RenderAsync
type Result struct {
	State State
	Err   error
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBrushConfig sets the paint/erase geometry
func WithBrushConfig(cfg brush.Config) Option {
	return func(s *Session) { s.brushCfg = cfg }
}

// WithUpdateHandler registers fn to receive every committed state
func WithUpdateHandler(fn func(State)) Option {
	return func(s *Session) { s.onUpdate = fn }
}

// WithBand starts the session with a band mask instead of segmentation
func WithBand(b band.Masker) Option {
	return func(s *Session) { s.band = b }
}

// Session owns the edit state of one image. All methods are safe for
// concurrent use; renders may run on background goroutines.
type Session struct {
	mu       sync.Mutex
	state    State
	band     band.Masker
	layer    *brush.Layer
	provider segment.Provider
	tracker  segment.Tracker
	wg       sync.WaitGroup

	logger   *zap.Logger
	brushCfg brush.Config
	onUpdate func(State)
}

// NewSession starts a session on a copy of img. A nil provider treats the
// whole image as background.
func NewSession(img image.Image, provider segment.Provider, opts ...Option) (*Session, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrNoImage
	}

	s := &Session{
		provider: provider,
		logger:   zap.NewNop(),
		brushCfg: brush.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.provider == nil {
		s.provider = segment.Uniform(0)
	}

	original := imaging.Clone(img)
	layer, err := brush.NewLayer(original, original, s.brushCfg)
	if err != nil {
		return nil, err
	}
	s.layer = layer
	s.state = NewState(original)
	return s, nil
}

// State returns the current snapshot
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update applies fn to the state and renders once. Used to set several
// parameters together.
func (s *Session) Update(ctx context.Context, fn func(State) State) (State, error) {
	s.update(fn)
	return s.Render(ctx)
}

// SelectVariant switches the blur variant and renders
func (s *Session) SelectVariant(ctx context.Context, v blur.Variant) (State, error) {
	s.update(func(st State) State { return st.WithVariant(v) })
	return s.Render(ctx)
}

// SetIntensity moves the slider and renders
func (s *Session) SetIntensity(ctx context.Context, p int) (State, error) {
	s.update(func(st State) State { return st.WithIntensity(p) })
	return s.Render(ctx)
}

// SetAngle changes the motion direction and renders on a background
// goroutine. Other variants ignore the angle.
func (s *Session) SetAngle(ctx context.Context, deg float64) <-chan Result {
	s.update(func(st State) State { return st.WithAngle(deg) })
	return s.RenderAsync(ctx)
}

// ToggleInvert flips between blurring the background and the subject
func (s *Session) ToggleInvert(ctx context.Context) (State, error) {
	s.update(func(st State) State { return st.WithInvert(!st.Invert) })
	return s.Render(ctx)
}

// ApplyBand replaces the segmentation mask with a band mask and renders.
// A nil band returns to segmentation.
func (s *Session) ApplyBand(ctx context.Context, b band.Masker) (State, error) {
	s.mu.Lock()
	s.band = b
	s.mu.Unlock()
	return s.Render(ctx)
}

// Reset restores the original image and default parameters. Renders in
// flight are discarded.
func (s *Session) Reset() State {
	_, gen := s.tracker.Begin(context.Background())
	s.tracker.Finish(gen)

	s.mu.Lock()
	s.state = s.state.Reset()
	s.band = nil
	s.layer.Reset(s.state.Original)
	s.layer.SetMode(brush.None)
	st := s.state
	s.mu.Unlock()

	s.notify(st)
	return st
}

// SetMode selects the paint/erase mode for later touches
func (s *Session) SetMode(m brush.Mode) State {
	s.mu.Lock()
	s.layer.SetMode(m)
	s.state = s.state.WithMode(m)
	st := s.state
	s.mu.Unlock()
	return st
}

// Touch feeds an image-space event to the paint/erase layer. The state's
// current image is updated when the gesture finishes.
func (s *Session) Touch(ev brush.Event) bool {
	s.mu.Lock()
	redraw := s.layer.Handle(ev)
	if !redraw {
		s.mu.Unlock()
		return false
	}
	s.state = s.state.WithCurrent(s.layer.Snapshot())
	st := s.state
	s.mu.Unlock()

	s.notify(st)
	return true
}

// Display returns the image to show: the original while holdOriginal is
// set, otherwise a copy of the live canvas taken under the session lock.
// The original must not be modified.
func (s *Session) Display(holdOriginal bool) *image.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if holdOriginal {
		return s.state.Original
	}
	return s.layer.Snapshot()
}

// Render runs the pipeline for the current state and commits the result
// unless a newer render started meanwhile, in which case ErrStale is
// returned. On failure the last image is kept.
func (s *Session) Render(ctx context.Context) (State, error) {
	ctx, gen := s.tracker.Begin(ctx)
	defer s.tracker.Finish(gen)

	s.mu.Lock()
	st := s.state
	bm := s.band
	s.mu.Unlock()

	start := time.Now()
	out, err := s.render(ctx, st, bm)
	if err != nil {
		if !s.tracker.IsCurrent(gen) {
			return st, ErrStale
		}
		s.logger.Error("render failed",
			zap.Stringer("variant", st.Variant),
			zap.Int("intensity", st.Intensity),
			zap.Error(err))
		return st, err
	}

	s.mu.Lock()
	if !s.tracker.IsCurrent(gen) {
		s.mu.Unlock()
		s.logger.Debug("discarding stale render", zap.Uint64("generation", gen))
		return st, ErrStale
	}
	s.state = s.state.WithCurrent(out)
	s.layer.Reset(out)
	committed := s.state
	s.mu.Unlock()

	s.logger.Debug("render committed",
		zap.Stringer("variant", st.Variant),
		zap.Int("intensity", st.Intensity),
		zap.Uint64("generation", gen),
		zap.Duration("elapsed", time.Since(start)))

	s.notify(committed)
	return committed, nil
}

// RenderAsync runs Render on a new goroutine. The channel receives exactly
// one Result.
func (s *Session) RenderAsync(ctx context.Context) <-chan Result {
	ch := make(chan Result, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		st, err := s.Render(ctx)
		ch <- Result{State: st, Err: err}
	}()
	return ch
}

// Wait blocks until every background render has returned
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) render(ctx context.Context, st State, bm band.Masker) (*image.NRGBA, error) {
	b := st.Original.Bounds()
	w, h := b.Dx(), b.Dy()

	var m *image.NRGBA
	if bm != nil {
		m = bm.Mask(w, h)
		if st.Invert {
			m = mask.Invert(m)
		}
	} else {
		conf, err := s.provider.Segment(ctx, st.Original)
		if err != nil {
			return nil, fmt.Errorf("segmentation failed: %w", err)
		}
		if m, err = mask.Build(conf, st.Invert, w, h); err != nil {
			return nil, fmt.Errorf("failed to build mask: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blurred, err := blur.Apply(st.Original, st.Variant, st.BlurParams())
	if err != nil {
		return nil, fmt.Errorf("failed to blur image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return compose.Composite(st.Original, blurred, m)
}

func (s *Session) update(fn func(State) State) {
	s.mu.Lock()
	s.state = fn(s.state)
	s.mu.Unlock()
}

func (s *Session) notify(st State) {
	if s.onUpdate != nil {
		s.onUpdate(st)
	}
}
