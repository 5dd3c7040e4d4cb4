package types

import (
	"encoding/json"
	"image"
	"math"
	"regexp"
	"strings"
)

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Empty reports whether the box has no area
func (b Box) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Center returns the normalized center of the box
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Rect converts the box to pixel coordinates of a w x h image
func (b Box) Rect(w, h int) image.Rectangle {
	return image.Rect(
		int(math.Round(b.X*float64(w))),
		int(math.Round(b.Y*float64(h))),
		int(math.Round((b.X+b.W)*float64(w))),
		int(math.Round((b.Y+b.H)*float64(h))),
	).Intersect(image.Rect(0, 0, w, h))
}

// Primary represents the primary subject detected in an image
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// AnalysisResult contains the complete analysis result from the vision model
type AnalysisResult struct {
	Primary     Primary  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// centeredBox is reported when the model answer cannot be used
var centeredBox = Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}

// Fallback returns the conservative centered result used when the model
// answer cannot be parsed. The tags always contain "fallback".
func Fallback(label, description string, tags ...string) *AnalysisResult {
	return &AnalysisResult{
		Primary: Primary{
			Label:      label,
			Confidence: 0.1,
			Box:        centeredBox,
			Cx:         0.5,
			Cy:         0.5,
		},
		Description: description,
		Tags:        append(tags, "fallback"),
	}
}

// ParseAnalysis parses a model answer into an AnalysisResult. Answers that
// are not valid JSON yield a Fallback result rather than an error.
func ParseAnalysis(raw string) *AnalysisResult {
	raw = SanitizeModelJSON(raw)

	// If the response doesn't look like JSON, return a conservative fallback
	if !strings.HasPrefix(raw, "{") {
		return Fallback("unclear image", "Model returned non-JSON response", "unclear", "non-json")
	}

	var result AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Fallback("parse error", "Failed to parse model response", "parse-error")
	}

	// Empty answers get the centered defaults
	if result.Primary.Label == "" && result.Primary.Confidence == 0 {
		if result.Primary.Cx == 0 && result.Primary.Cy == 0 {
			result.Primary.Cx = 0.5
			result.Primary.Cy = 0.5
		}
		if result.Primary.Box.W == 0 && result.Primary.Box.H == 0 {
			result.Primary.Box = centeredBox
		}
	}
	return &result
}

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInlineComment = regexp.MustCompile(`(?m)([,{}\[\]])[ \t]*//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// SanitizeModelJSON removes code fences, comments, and trailing commas from
// a model answer and keeps only the outermost object.
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reInlineComment.ReplaceAllString(raw, "$1")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
