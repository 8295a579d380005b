package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// Cache keys for timetable payloads.
const (
	TimetableViewCacheKey = "timetable:view"
	TimetableCachePattern = "timetable:*"
	defaultTimetableTTL   = 10 * time.Minute
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cacheMetrics interface {
	RecordCacheOperation(hit bool, duration time.Duration)
	ObserveCacheWrite(duration time.Duration)
}

// CacheService wraps the cache repository with metrics and failure logging.
// Cache errors never fail a request; callers fall back to the database.
type CacheService struct {
	repo       CacheRepository
	metrics    cacheMetrics
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool

	// timetableMu orders conditional timetable writes against invalidation.
	timetableMu    sync.Mutex
	timetableEpoch uint64
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics cacheMetrics, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = defaultTimetableTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to read a cached entry into dest and reports a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	hit := err == nil
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit, time.Since(start))
	}
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return hit
}

// Set stores the value using ttl, or the default TTL when ttl is zero.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	if s.metrics != nil {
		s.metrics.ObserveCacheWrite(time.Since(start))
	}
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes cached values matching pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

// TimetableEpoch returns a counter bumped by every InvalidateTimetable call.
// Read it before loading data that will later go through SetTimetable.
func (s *CacheService) TimetableEpoch() uint64 {
	if s == nil {
		return 0
	}
	s.timetableMu.Lock()
	defer s.timetableMu.Unlock()
	return s.timetableEpoch
}

// SetTimetable stores a timetable payload only if no invalidation happened
// since epoch was read, and reports whether it was written.
func (s *CacheService) SetTimetable(ctx context.Context, key string, value interface{}, ttl time.Duration, epoch uint64) bool {
	if !s.Enabled() {
		return false
	}
	s.timetableMu.Lock()
	defer s.timetableMu.Unlock()
	if epoch != s.timetableEpoch {
		s.logger.Debug("skipping stale timetable cache write", zap.String("key", key))
		return false
	}
	s.Set(ctx, key, value, ttl)
	return true
}

// InvalidateTimetable drops every cached timetable payload.
func (s *CacheService) InvalidateTimetable(ctx context.Context) {
	if s == nil {
		return
	}
	s.timetableMu.Lock()
	defer s.timetableMu.Unlock()
	s.timetableEpoch++
	s.Invalidate(ctx, TimetableCachePattern)
}
