package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
	"github.com/kirillkom/patent-assistant-client/internal/core/ports"
)

const (
	DefaultCacheKey = "last_analysis_data"
	DefaultCacheTTL = 24 * time.Hour
)

type AnalysisCacheOptions struct {
	Key      string
	TTL      time.Duration
	Logger   *slog.Logger
	Recorder ports.LifecycleRecorder
}

// AnalysisCache keeps the single most recent analysis in a key-value store.
// Expiry is checked against the record timestamp at read time.
type AnalysisCache struct {
	kv       ports.KeyValueStore
	clock    ports.Clock
	key      string
	ttl      time.Duration
	logger   *slog.Logger
	recorder ports.LifecycleRecorder
}

func NewAnalysisCache(kv ports.KeyValueStore, clock ports.Clock, opts AnalysisCacheOptions) *AnalysisCache {
	if opts.Key == "" {
		opts.Key = DefaultCacheKey
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &AnalysisCache{
		kv:       kv,
		clock:    clock,
		key:      opts.Key,
		ttl:      opts.TTL,
		logger:   opts.Logger,
		recorder: opts.Recorder,
	}
}

// Save overwrites the cached record. Failures are logged, never returned.
func (c *AnalysisCache) Save(ctx context.Context, record domain.AnalysisRecord) {
	raw, err := json.Marshal(record)
	if err != nil {
		c.logger.Error("analysis_cache_save_failed", "stage", "encode", "error", err)
		return
	}
	if err := c.kv.Set(ctx, c.key, raw); err != nil {
		c.logger.Error("analysis_cache_save_failed", "stage", "write", "key", c.key, "error", err)
	}
}

// Load returns the cached record, or false when there is none, it cannot be
// decoded, or it is older than the TTL. Expired entries are purged.
func (c *AnalysisCache) Load(ctx context.Context) (*domain.AnalysisRecord, bool) {
	raw, err := c.kv.Get(ctx, c.key)
	if err != nil {
		if !domain.IsKind(err, domain.ErrKeyNotFound) {
			c.logger.Error("analysis_cache_load_failed", "stage", "read", "key", c.key, "error", err)
		}
		c.recorder.ObserveCacheLookup(false)
		return nil, false
	}

	var record domain.AnalysisRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		c.logger.Error("analysis_cache_load_failed", "stage", "decode", "key", c.key, "error", err)
		c.recorder.ObserveCacheLookup(false)
		return nil, false
	}

	if c.clock.Now().Sub(record.Timestamp) > c.ttl {
		c.logger.Info("analysis_cache_expired",
			"document_id", record.DocumentID,
			"age", c.clock.Now().Sub(record.Timestamp).String(),
		)
		c.Clear(ctx)
		c.recorder.ObserveCacheLookup(false)
		return nil, false
	}

	c.recorder.ObserveCacheLookup(true)
	return &record, true
}

func (c *AnalysisCache) Clear(ctx context.Context) {
	if err := c.kv.Delete(ctx, c.key); err != nil && !domain.IsKind(err, domain.ErrKeyNotFound) {
		c.logger.Error("analysis_cache_clear_failed", "key", c.key, "error", err)
	}
}
