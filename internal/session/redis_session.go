package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"crowd-safety-service/internal/observability/metrics"
)

const sessionKeyFormat = "session_v1:%s"

// RedisStore is a Store backed by one Redis list per session id, capped with
// LTRIM so histories stay bounded without an eviction pass.
type RedisStore struct {
	client  *redis.Client
	cap     int
	metrics *metrics.Metrics
}

// NewRedisStore creates a Redis-backed session store capped at historyCap
// entries per session. A cap of zero falls back to DefaultHistoryCap.
func NewRedisStore(client *redis.Client, historyCap int) *RedisStore {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &RedisStore{
		client:  client,
		cap:     historyCap,
		metrics: metrics.DefaultMetrics,
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf(sessionKeyFormat, id)
}

// Get returns the session's ordered history, oldest first.
func (s *RedisStore) Get(ctx context.Context, id string) ([]Entry, error) {
	raw, err := s.client.LRange(ctx, sessionKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			log.Warn().Err(err).Str("sessionId", id).Msg("Skipping unreadable session entry")
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Append adds an entry, trimming the oldest beyond the cap.
func (s *RedisStore) Append(ctx context.Context, id string, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal session entry: %w", err)
	}

	key := sessionKey(id)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, int64(-s.cap), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append session %s: %w", id, err)
	}

	s.metrics.RecordSessionMessage()
	return nil
}
