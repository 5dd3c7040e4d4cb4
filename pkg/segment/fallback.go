package segment

import (
	"context"
	"errors"
	"image"

	"go.uber.org/zap"
)

type fallbackProvider struct {
	primary  Provider
	fallback Provider
	logger   *zap.Logger
}

// WithFallback returns a Provider that asks primary first and falls back to
// fallback when primary fails. Cancellation is never retried.
func WithFallback(primary, fallback Provider, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fallbackProvider{primary: primary, fallback: fallback, logger: logger}
}

func (p *fallbackProvider) Segment(ctx context.Context, img image.Image) (*Confidence, error) {
	c, err := p.primary.Segment(ctx, img)
	if err == nil {
		return c, nil
	}
	if errors.Is(err, ErrEmptyImage) || ctx.Err() != nil {
		return nil, err
	}
	p.logger.Warn("segmentation failed, using fallback provider", zap.Error(err))
	return p.fallback.Segment(ctx, img)
}
