package client

import (
	"context"

	"github.com/menta2k/blur-studio/pkg/types"
)

// VisionClient is a vision-language model backend. Images are passed as
// base64-encoded JPEG.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}
