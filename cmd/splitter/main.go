// Command splitter runs the video splitting pipeline over one source file:
// plan windows, cut chunks, analyze, persist and dispatch.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"crowd-safety-service/internal/analysis"
	"crowd-safety-service/internal/analyzer"
	"crowd-safety-service/internal/analyzer/mock"
	"crowd-safety-service/internal/analyzer/openai"
	"crowd-safety-service/internal/config"
	"crowd-safety-service/internal/dispatch"
	"crowd-safety-service/internal/events"
	"crowd-safety-service/internal/media"
	"crowd-safety-service/internal/models"
	"crowd-safety-service/internal/observability/logging"
	"crowd-safety-service/internal/pipeline"
	"crowd-safety-service/internal/store"
)

func main() {
	videoPath := flag.String("video", "", "path to the source video file")
	workDir := flag.String("workdir", "chunks", "directory for extracted chunks")
	location := flag.String("location", "", "zone location for triggered dispatches")
	delay := flag.Duration("delay", time.Second, "pause between analyzer calls")
	flag.Parse()

	cfg := config.Load()

	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	if *videoPath == "" {
		log.Fatal().Msg("-video is required")
	}
	if !media.Available() {
		log.Fatal().Msg("ffmpeg not found on PATH")
	}
	if err := os.MkdirAll(*workDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", *workDir).Msg("Failed to create work directory")
	}

	dispatchLocation := *location
	if dispatchLocation == "" {
		dispatchLocation = cfg.Dispatch.DefaultLocation
	}

	publisher := events.New(&events.Config{
		Enabled:   cfg.Kafka.Enabled,
		Brokers:   cfg.Kafka.Brokers,
		Topic:     cfg.Kafka.Topic,
		Principal: cfg.Kafka.Principal,
		Timeout:   cfg.Kafka.Timeout,
	})
	defer publisher.Close()

	var (
		eventStore store.EventStore
		ledger     dispatch.Ledger
	)
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable")
		}
		defer client.Close()

		eventStore = store.NewRedisStore(client, 5*time.Second)
		ledger = dispatch.NewRedisLedger(client, cfg.Redis.Retention)
	} else {
		eventStore = store.NewMemoryStore()
		ledger = dispatch.NewMemoryLedger(cfg.Redis.Retention)
		log.Warn().Msg("Redis disabled, assessments will not outlive this run")
	}

	adapter := newAnalyzer(cfg)
	defer adapter.Close()

	engine := dispatch.NewEngine(ledger, publisher, cfg.Dispatch.Cooldown)
	splitter := pipeline.NewSplitter(pipeline.FFmpegMedia{}, adapter, eventStore, engine, pipeline.Config{
		ChunkDuration: cfg.Segmenter.ChunkDuration,
		Overlap:       cfg.Segmenter.Overlap,
		WorkDir:       *workDir,
		Location:      dispatchLocation,
		AnalysisDelay: *delay,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := splitter.Process(ctx, *videoPath, time.Now().UTC())
	if err != nil {
		log.Fatal().Err(err).Msg("Pipeline failed")
	}

	resultsPath := filepath.Join(*workDir, "analysis_results.json")
	if err := writeResults(resultsPath, result); err != nil {
		log.Error().Err(err).Str("path", resultsPath).Msg("Failed to write results file")
	}

	log.Info().
		Int("windows", result.WindowsPlanned).
		Int("accepted", len(result.Records)).
		Int("dropped", result.Dropped).
		Int("dispatches", len(result.Decisions)).
		Str("results", resultsPath).
		Msg("Done")
}

func writeResults(path string, result pipeline.Result) error {
	assessments := make([]models.EventDocument, 0, len(result.Records))
	for _, rec := range result.Records {
		assessments = append(assessments, analysis.RecordToDocument(rec, "", ""))
	}

	summary := struct {
		WindowsPlanned int                       `json:"windows_planned"`
		Accepted       int                       `json:"accepted"`
		Dropped        int                       `json:"dropped"`
		Assessments    []models.EventDocument    `json:"assessments"`
		Dispatches     []models.DispatchDecision `json:"dispatches"`
	}{
		WindowsPlanned: result.WindowsPlanned,
		Accepted:       len(result.Records),
		Dropped:        result.Dropped,
		Assessments:    assessments,
		Dispatches:     result.Decisions,
	}

	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

func newAnalyzer(cfg *config.Configuration) analyzer.Adapter {
	switch cfg.Analyzer.Provider {
	case "openai":
		return openai.New(openai.Config{
			APIKey:  cfg.Analyzer.APIKey,
			BaseURL: cfg.Analyzer.BaseURL,
			Model:   cfg.Analyzer.Model,
			Timeout: cfg.Analyzer.Timeout,
		})
	default:
		log.Info().Str("provider", cfg.Analyzer.Provider).Msg("Using mock analyzer")
		return mock.New()
	}
}
