// Package blur implements the blur kernels behind each effect variant:
// gaussian/box convolution, radial zoom-spin, directional motion and zoom
// accumulation. Every kernel returns a new image with the source dimensions.
package blur

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// Variant selects a blur kernel and its parameter set
type Variant int

const (
	Linear Variant = iota
	Radial
	Motion
	Zoom
)

var (
	// ErrUnknownVariant is returned for variants outside the known set
	ErrUnknownVariant = errors.New("blur: unknown variant")
	// ErrEmptyImage is returned when a kernel is given an image without pixels
	ErrEmptyImage = errors.New("blur: empty image")
)

func (v Variant) String() string {
	switch v {
	case Linear:
		return "linear"
	case Radial:
		return "radial"
	case Motion:
		return "motion"
	case Zoom:
		return "zoom"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// Variants lists all variants in selection order
func Variants() []Variant {
	return []Variant{Linear, Radial, Motion, Zoom}
}

// ParseVariant parses a variant name. "normal" and "gaussian" are accepted
// as aliases for Linear.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear", "normal", "gaussian":
		return Linear, nil
	case "radial":
		return Radial, nil
	case "motion":
		return Motion, nil
	case "zoom":
		return Zoom, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

// Convolution selects the kernel used by the Linear variant
type Convolution int

const (
	Gaussian Convolution = iota
	Box
)

// Params aggregates the parameters of every variant. Only the set matching
// the selected variant is used.
type Params struct {
	Radius      float64
	Convolution Convolution
	Radial      RadialParams
	Motion      MotionParams
	Zoom        ZoomParams
}

// DefaultParams returns the parameters used when nothing is tuned
func DefaultParams() Params {
	return Params{
		Radius:      10,
		Convolution: Gaussian,
		Radial:      DefaultRadial(),
		Motion:      DefaultMotion(),
		Zoom:        DefaultZoom(),
	}
}

// Apply runs the kernel selected by v on img
func Apply(img image.Image, v Variant, p Params) (*image.NRGBA, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	switch v {
	case Linear:
		if p.Convolution == Box {
			return BoxBlur(img, p.Radius), nil
		}
		return GaussianBlur(img, p.Radius), nil
	case Radial:
		return RadialBlur(img, p.Radial), nil
	case Motion:
		return MotionBlur(img, p.Motion), nil
	case Zoom:
		return ZoomBlur(img, p.Zoom), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownVariant, int(v))
	}
}
