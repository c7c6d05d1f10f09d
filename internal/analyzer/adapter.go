// Package analyzer defines the interface for vision analysis providers.
package analyzer

import (
	"context"

	"crowd-safety-service/internal/segmenter"
)

// Adapter defines the interface for per-window safety analyzers (OpenAI,
// Vertex, etc.). Implementations return the model's raw text; extracting and
// validating the JSON object is the analysis package's job.
type Adapter interface {
	// AnalyzeFrame submits one encoded frame (JPEG bytes) for the given
	// window and returns the raw model output.
	AnalyzeFrame(ctx context.Context, frame []byte, window segmenter.TimeWindow) (string, error)

	// Close releases provider resources.
	Close() error
}
