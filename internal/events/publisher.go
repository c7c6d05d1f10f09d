// Package events provides dispatch event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"crowd-safety-service/internal/models"
	"crowd-safety-service/internal/observability/metrics"
)

// ErrPublishUnacked means the broker did not acknowledge the dispatch
// message. The caller owns the retry policy; the publisher never retries,
// a duplicate physical dispatch is worse than a delayed one.
var ErrPublishUnacked = errors.New("dispatch publish not acknowledged")

// Publisher publishes dispatch requests to the dispatcher Kafka topic.
type Publisher struct {
	writer    *kafka.Writer
	principal string
	topic     string
	enabled   bool
	timeout   time.Duration
	metrics   *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers   []string
	Topic     string
	Principal string
	Enabled   bool
	Timeout   time.Duration
}

// New creates a new Kafka dispatch publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{enabled: false, metrics: m}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal: cfg.Principal,
			topic:     cfg.Topic,
			enabled:   false,
			timeout:   timeout,
			metrics:   m,
		}
	}

	// Custom dialer with longer timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: timeout,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("principal", cfg.Principal).
		Msg("Kafka dispatch publisher initialized")

	return &Publisher{
		writer:    writer,
		principal: cfg.Principal,
		topic:     cfg.Topic,
		enabled:   true,
		timeout:   timeout,
		metrics:   m,
	}
}

// PublishDispatch publishes a dispatch request keyed by unit type and
// location. Returns ErrPublishUnacked when the broker does not confirm the
// write within the configured timeout.
func (p *Publisher) PublishDispatch(ctx context.Context, req models.DispatchRequest) error {
	start := time.Now()

	payload, err := json.Marshal(req)
	if err != nil {
		log.Error().Err(err).Str("topic", p.topic).Msg("Failed to marshal dispatch request")
		return err
	}

	key := fmt.Sprintf("%s:%s", req.UnitType, req.Location)

	log.Debug().
		Str("principal", p.principal).
		Str("topic", p.topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing dispatch request")

	// If Kafka is disabled, just log.
	if !p.enabled || p.writer == nil {
		p.metrics.RecordPublish(p.topic, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte("dispatch")},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", p.topic).
			Str("key", key).
			Msg("Failed to write dispatch to Kafka")
		p.metrics.RecordPublish(p.topic, err, time.Since(start).Seconds())
		return fmt.Errorf("%w: %v", ErrPublishUnacked, err)
	}

	p.metrics.RecordPublish(p.topic, nil, time.Since(start).Seconds())
	return nil
}

// Close closes the Kafka writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing dispatch writer")
		return err
	}
	return nil
}
