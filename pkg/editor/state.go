package editor

import (
	"image"

	"github.com/menta2k/blur-studio/pkg/blur"
	"github.com/menta2k/blur-studio/pkg/brush"
)

// Slider bounds and defaults
const (
	MinIntensity     = 0
	MaxIntensity     = 100
	DefaultIntensity = 50

	// intensitySpan maps the slider onto the pass and zoom range
	intensitySpan = 20.0
	// motionDistance is the per-pass offset of the motion variant
	motionDistance = 10.0
	zoomPasses     = 10
)

// State is an immutable snapshot of an edit session. Transitions return a
// new value and never modify the receiver's images.
type State struct {
	Original  *image.NRGBA
	Current   *image.NRGBA
	Variant   blur.Variant
	Intensity int
	Angle     float64
	Invert    bool // blur the subject instead of the background
	Mode      brush.Mode
}

// NewState returns the initial state for original
func NewState(original *image.NRGBA) State {
	return State{
		Original:  original,
		Current:   original,
		Variant:   blur.Linear,
		Intensity: DefaultIntensity,
	}
}

func (s State) WithVariant(v blur.Variant) State {
	s.Variant = v
	return s
}

// WithIntensity clamps p to [MinIntensity, MaxIntensity]
func (s State) WithIntensity(p int) State {
	if p < MinIntensity {
		p = MinIntensity
	}
	if p > MaxIntensity {
		p = MaxIntensity
	}
	s.Intensity = p
	return s
}

func (s State) WithAngle(deg float64) State {
	s.Angle = deg
	return s
}

func (s State) WithInvert(invert bool) State {
	s.Invert = invert
	return s
}

func (s State) WithMode(m brush.Mode) State {
	s.Mode = m
	return s
}

func (s State) WithCurrent(img *image.NRGBA) State {
	s.Current = img
	return s
}

// Reset drops every edit but keeps the selected variant
func (s State) Reset() State {
	return NewState(s.Original).WithVariant(s.Variant)
}

// BlurParams maps the slider position onto the kernel parameters of the
// selected variant.
func (s State) BlurParams() blur.Params {
	p := float64(s.Intensity)
	b := p / 100 * intensitySpan

	params := blur.DefaultParams()
	params.Radius = blur.ClampRadius(p / 100 * blur.MaxRadius)

	params.Radial.ScaleStep = 0.03 * p / 50

	params.Zoom.Amount = b / 100
	params.Zoom.Passes = zoomPasses

	passes := int(b)
	if passes < 1 {
		passes = 1
	}
	params.Motion = blur.MotionParams{Angle: s.Angle, Distance: motionDistance, Passes: passes}
	return params
}
