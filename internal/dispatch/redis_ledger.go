package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"crowd-safety-service/internal/models"
)

const (
	dedupKeyFormat   = "dispatch_dedup_v1:%s:%s"
	recentListKeyV1  = "dispatch_recent_v1"
	recentListMaxLen = 200
)

// RedisLedger is a Ledger backed by Redis. Dedup state lives in per
// (unit, location) keys that expire with the cool-down window, so stale
// entries drop out without an eviction pass.
type RedisLedger struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisLedger creates a Redis-backed ledger with the given retention.
func NewRedisLedger(client *redis.Client, retention time.Duration) *RedisLedger {
	if retention <= 0 {
		retention = 10 * time.Minute
	}
	return &RedisLedger{client: client, retention: retention}
}

func dedupKey(unit models.UnitType, location string) string {
	return fmt.Sprintf(dedupKeyFormat, unit, strings.ToLower(strings.TrimSpace(location)))
}

// SeenWithin checks the dedup key for the unit/location pair. The key's TTL
// bounds its age, so existence alone answers the question when since falls
// inside the retention window.
func (l *RedisLedger) SeenWithin(ctx context.Context, unit models.UnitType, location string, since time.Time) (bool, error) {
	val, err := l.client.Get(ctx, dedupKey(unit, location)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}

	issuedAt, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		// Unparsable marker still proves a recent dispatch.
		return true, nil
	}
	return !issuedAt.Before(since), nil
}

// Append records the dispatch in both the dedup key and the recent list.
func (l *RedisLedger) Append(ctx context.Context, entry models.RecentDispatch) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}

	pipe := l.client.TxPipeline()
	pipe.Set(ctx, dedupKey(entry.UnitType, entry.Location), entry.IssuedAt.Format(time.RFC3339Nano), l.retention)
	pipe.LPush(ctx, recentListKeyV1, payload)
	pipe.LTrim(ctx, recentListKeyV1, 0, recentListMaxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ledger append: %w", err)
	}
	return nil
}

// Recent returns up to limit newest entries, newest first.
func (l *RedisLedger) Recent(ctx context.Context, limit int) ([]models.RecentDispatch, error) {
	if limit <= 0 || limit > recentListMaxLen {
		limit = recentListMaxLen
	}
	raws, err := l.client.LRange(ctx, recentListKeyV1, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("ledger recent: %w", err)
	}

	entries := make([]models.RecentDispatch, 0, len(raws))
	for _, raw := range raws {
		var e models.RecentDispatch
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("unmarshal ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
