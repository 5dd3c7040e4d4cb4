// Package segment defines the foreground segmentation contract used by the
// blur pipeline together with the confidence buffer it produces, a result
// cache and a request tracker that discards stale results.
package segment

import (
	"context"
	"errors"
	"fmt"
	"image"
)

var (
	// ErrEmptyImage is returned when a provider is handed an image without pixels.
	ErrEmptyImage = errors.New("segment: empty image")
	// ErrInvalidBuffer is returned when a confidence buffer's length does not
	// match its dimensions.
	ErrInvalidBuffer = errors.New("segment: invalid confidence buffer")
)

// Confidence is a per-pixel foreground confidence buffer in row-major order.
// Values are expected in [0,1].
type Confidence struct {
	Width  int
	Height int
	Values []float32
}

// NewConfidence allocates a zeroed buffer of the given size
func NewConfidence(width, height int) *Confidence {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Confidence{
		Width:  width,
		Height: height,
		Values: make([]float32, width*height),
	}
}

// At returns the confidence at (x, y), or 0 outside the buffer.
func (c *Confidence) At(x, y int) float32 {
	if x < 0 || y < 0 || x >= c.Width || y >= c.Height {
		return 0
	}
	return c.Values[y*c.Width+x]
}

// Set stores v at (x, y). Writes outside the buffer are ignored.
func (c *Confidence) Set(x, y int, v float32) {
	if x < 0 || y < 0 || x >= c.Width || y >= c.Height {
		return
	}
	c.Values[y*c.Width+x] = v
}

// Validate checks that the buffer is non-empty and consistent with its size.
func (c *Confidence) Validate() error {
	if c == nil || c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: empty dimensions", ErrInvalidBuffer)
	}
	if len(c.Values) != c.Width*c.Height {
		return fmt.Errorf("%w: %d values for %dx%d", ErrInvalidBuffer, len(c.Values), c.Width, c.Height)
	}
	return nil
}

// Provider produces a foreground confidence buffer for an image. The buffer
// may be smaller than the image; callers rescale it.
type Provider interface {
	Segment(ctx context.Context, img image.Image) (*Confidence, error)
}

// ProviderFunc adapts a function to the Provider interface
type ProviderFunc func(ctx context.Context, img image.Image) (*Confidence, error)

// Segment calls f(ctx, img).
func (f ProviderFunc) Segment(ctx context.Context, img image.Image) (*Confidence, error) {
	return f(ctx, img)
}

// Uniform returns a provider that reports the same confidence everywhere.
// Useful when no model is available and a band mask drives the composite.
func Uniform(value float32) Provider {
	return ProviderFunc(func(ctx context.Context, img image.Image) (*Confidence, error) {
		if img == nil || img.Bounds().Empty() {
			return nil, ErrEmptyImage
		}
		b := img.Bounds()
		c := NewConfidence(b.Dx(), b.Dy())
		for i := range c.Values {
			c.Values[i] = value
		}
		return c, nil
	})
}
