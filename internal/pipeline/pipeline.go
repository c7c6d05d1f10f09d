// Package pipeline runs the end-to-end splitting flow: plan overlapping
// windows over a source video, cut chunks, analyze one frame per chunk,
// persist accepted assessments and hand intervention-worthy records to the
// dispatch engine.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"crowd-safety-service/internal/analysis"
	"crowd-safety-service/internal/analyzer"
	"crowd-safety-service/internal/dispatch"
	"crowd-safety-service/internal/media"
	"crowd-safety-service/internal/models"
	"crowd-safety-service/internal/observability/logging"
	"crowd-safety-service/internal/observability/metrics"
	"crowd-safety-service/internal/segmenter"
	"crowd-safety-service/internal/store"
)

// Media is the slice of chunking capability the pipeline needs. Satisfied by
// the ffmpeg-backed implementation in production and by fakes in tests.
type Media interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
	ExtractChunk(ctx context.Context, src, dst string, start, duration time.Duration) error
	ExtractFrame(ctx context.Context, chunkPath string, chunkDuration time.Duration) ([]byte, error)
}

// FFmpegMedia implements Media by shelling out to ffmpeg/ffprobe.
type FFmpegMedia struct{}

func (FFmpegMedia) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	return media.ProbeDuration(ctx, path)
}

func (FFmpegMedia) ExtractChunk(ctx context.Context, src, dst string, start, duration time.Duration) error {
	return media.ExtractChunk(ctx, src, dst, start, duration)
}

func (FFmpegMedia) ExtractFrame(ctx context.Context, chunkPath string, chunkDuration time.Duration) ([]byte, error) {
	return media.ExtractFrame(ctx, chunkPath, chunkDuration)
}

// Config tunes the splitting flow.
type Config struct {
	ChunkDuration time.Duration
	Overlap       time.Duration
	// WorkDir receives the extracted chunk files.
	WorkDir string
	// Location tags dispatches triggered by this video source.
	Location string
	// AnalysisDelay paces analyzer calls to stay under provider rate limits.
	AnalysisDelay time.Duration
}

// Result summarizes one pipeline run.
type Result struct {
	WindowsPlanned int
	Records        []analysis.AssessmentRecord
	Decisions      []models.DispatchDecision
	Dropped        int
}

// Splitter is the pipeline over its collaborators. One Splitter per video
// source; Process is not safe for concurrent calls on the same WorkDir.
type Splitter struct {
	media    Media
	analyzer analyzer.Adapter
	events   store.EventStore
	engine   *dispatch.Engine
	cfg      Config
	metrics  *metrics.Metrics
}

// NewSplitter creates a splitter. A nil engine disables dispatching;
// assessments are still persisted.
func NewSplitter(m Media, a analyzer.Adapter, events store.EventStore, engine *dispatch.Engine, cfg Config) *Splitter {
	return &Splitter{
		media:    m,
		analyzer: a,
		events:   events,
		engine:   engine,
		cfg:      cfg,
		metrics:  metrics.DefaultMetrics,
	}
}

// Process runs the full flow over one video file. startUTC anchors window
// offsets to wall-clock time. A chunk that fails extraction or analysis is
// dropped and the run continues; Process fails only when the source itself
// cannot be processed.
func (s *Splitter) Process(ctx context.Context, videoPath string, startUTC time.Time) (Result, error) {
	total, err := s.media.ProbeDuration(ctx, videoPath)
	if err != nil {
		return Result{}, fmt.Errorf("probe %s: %w", videoPath, err)
	}

	windows, err := segmenter.Plan(total, s.cfg.ChunkDuration, s.cfg.Overlap, startUTC)
	if err != nil {
		return Result{}, fmt.Errorf("plan windows: %w", err)
	}
	s.metrics.RecordWindowsPlanned(len(windows))

	log.Info().
		Str("video", videoPath).
		Str("duration", total.String()).
		Int("windows", len(windows)).
		Msg("Starting video split")

	result := Result{WindowsPlanned: len(windows)}
	for i, window := range windows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if i > 0 && s.cfg.AnalysisDelay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(s.cfg.AnalysisDelay):
			}
		}

		rec, ok := s.processWindow(ctx, videoPath, window, &result)
		if !ok {
			result.Dropped++
			continue
		}
		result.Records = append(result.Records, rec)
	}

	log.Info().
		Str("video", videoPath).
		Int("accepted", len(result.Records)).
		Int("dropped", result.Dropped).
		Int("dispatches", len(result.Decisions)).
		Msg("Video split complete")
	return result, nil
}

func (s *Splitter) processWindow(ctx context.Context, videoPath string, window segmenter.TimeWindow, result *Result) (analysis.AssessmentRecord, bool) {
	logger := logging.WithWindow(window.Index, window.EndUTC)
	chunkPath := filepath.Join(s.cfg.WorkDir, fmt.Sprintf("chunk_%03d.mp4", window.Index))

	if err := s.media.ExtractChunk(ctx, videoPath, chunkPath, window.StartOffset, window.Duration()); err != nil {
		logger.Error().Err(err).Msg("Failed to extract chunk")
		s.metrics.RecordRecordDropped("chunk_failed")
		return analysis.AssessmentRecord{}, false
	}
	s.metrics.RecordChunkProcessed()

	frame, err := s.media.ExtractFrame(ctx, chunkPath, window.Duration())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to extract frame")
		s.metrics.RecordRecordDropped("frame_failed")
		return analysis.AssessmentRecord{}, false
	}

	raw, err := s.analyzer.AnalyzeFrame(ctx, frame, window)
	if err != nil {
		logger.Error().Err(err).Msg("Frame analysis failed")
		s.metrics.RecordRecordDropped("analysis_failed")
		return analysis.AssessmentRecord{}, false
	}

	rec, err := analysis.ParseRecord(raw, window)
	if err != nil {
		logger.Warn().Err(err).Msg("Dropping malformed assessment")
		s.metrics.RecordRecordDropped("malformed")
		return analysis.AssessmentRecord{}, false
	}
	s.metrics.RecordRecordAccepted()

	doc := analysis.RecordToDocument(rec, uuid.NewString(), chunkPath)
	if err := s.events.Append(ctx, window.EndUTC, doc); err != nil {
		logger.Error().Err(err).Msg("Failed to persist assessment")
	}

	logger.Debug().
		Str("density", rec.CrowdDensity.String()).
		Str("safetyLevel", rec.SafetyLevel.String()).
		Bool("intervention", rec.NeedsIntervention).
		Msg("Assessment accepted")

	if rec.NeedsIntervention && s.engine != nil {
		decision := s.engine.DecideForRecord(ctx, rec, s.cfg.Location, time.Now().UTC())
		if decision.UnitType != models.UnitNone {
			result.Decisions = append(result.Decisions, decision)
		}
	}
	return rec, true
}
