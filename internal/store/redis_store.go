package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"crowd-safety-service/internal/models"
	"crowd-safety-service/internal/observability/metrics"
)

const eventsKeyV1 = "safety_events_v1"

// RedisStore is an EventStore backed by a Redis sorted set scored by the
// window's end UTC time in epoch milliseconds.
type RedisStore struct {
	client      *redis.Client
	readTimeout time.Duration
	metrics     *metrics.Metrics
}

// NewRedisStore creates a Redis-backed event store.
func NewRedisStore(client *redis.Client, readTimeout time.Duration) *RedisStore {
	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}
	return &RedisStore{
		client:      client,
		readTimeout: readTimeout,
		metrics:     metrics.DefaultMetrics,
	}
}

// Append persists the document scored by its end UTC time.
func (s *RedisStore) Append(ctx context.Context, endUTC time.Time, doc models.EventDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal event document: %w", err)
	}

	if err := s.client.ZAdd(ctx, eventsKeyV1, &redis.Z{
		Score:  float64(endUTC.UnixMilli()),
		Member: payload,
	}).Err(); err != nil {
		return fmt.Errorf("append event document: %w", err)
	}
	s.metrics.RecordStoreAppend()
	return nil
}

// GetRecent reads up to limit documents, newest first, within the configured
// read timeout.
func (s *RedisStore) GetRecent(ctx context.Context, limit int) ([]models.EventDocument, error) {
	if limit <= 0 {
		limit = 20
	}

	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	raws, err := s.client.ZRevRange(ctx, eventsKeyV1, 0, int64(limit-1)).Result()
	s.metrics.RecordStoreRead(err)
	if err != nil {
		return nil, fmt.Errorf("read recent events: %w", err)
	}

	docs := make([]models.EventDocument, 0, len(raws))
	for _, raw := range raws {
		var doc models.EventDocument
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("unmarshal event document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
