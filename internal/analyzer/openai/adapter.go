// Package openai provides an Adapter backed by an OpenAI-compatible vision
// chat-completion endpoint.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/rs/zerolog/log"

	"crowd-safety-service/internal/observability/metrics"
	"crowd-safety-service/internal/segmenter"
)

// analysisPrompt asks the model for the exact loosely-typed JSON shape the
// analysis package normalizes.
const analysisPrompt = `From the image, analyze and return ONLY a JSON object with this structure:
{
    "crowd_density": "low|medium|high|severe",
    "crowd_flow": "unrestricted|moderately_restricted|severely_restricted",
    "estimated_count": number_or_null,
    "fire_smoke_detected": "yes|no",
    "congested_entry_exits": "yes|no",
    "safety_level": "safe|moderate_risk|high_risk|critical",
    "needs_security_intervention": "yes|no",
    "additional_observations": "brief description"
}`

// Config holds provider settings for the vision analyzer.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Adapter implements analyzer.Adapter against an OpenAI-compatible API.
type Adapter struct {
	cli     *openai.Client
	model   string
	timeout time.Duration
	metrics *metrics.Metrics
}

// New creates a vision analyzer adapter.
func New(cfg Config) *Adapter {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Adapter{
		cli:     openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
		metrics: metrics.DefaultMetrics,
	}
}

// AnalyzeFrame sends one JPEG frame with the structured-analysis prompt and
// returns the raw model text.
func (a *Adapter) AnalyzeFrame(ctx context.Context, frame []byte, window segmenter.TimeWindow) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame)

	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: analysisPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
		Temperature: 0.1,
	}

	resp, err := a.cli.CreateChatCompletion(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		a.metrics.RecordAnalysis("openai", err, elapsed.Seconds())
		log.Error().Err(err).Int("window", window.Index).Msg("Vision analysis call failed")
		return "", fmt.Errorf("vision analysis: %w", err)
	}
	if len(resp.Choices) == 0 {
		a.metrics.RecordAnalysis("openai", fmt.Errorf("empty response"), elapsed.Seconds())
		return "", fmt.Errorf("vision analysis: response contained no choices")
	}
	a.metrics.RecordAnalysis("openai", nil, elapsed.Seconds())

	log.Debug().
		Int("window", window.Index).
		Dur("duration", elapsed).
		Msg("Vision analysis completed")
	return resp.Choices[0].Message.Content, nil
}

// Close is a no-op; the OpenAI client holds no persistent connection state.
func (a *Adapter) Close() error { return nil }
