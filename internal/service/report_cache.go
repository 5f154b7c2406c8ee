package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grade-sanchalaak/internal/evaluation"
)

// ReportCache keeps assignment reports in Redis. A nil client disables caching.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewReportCache builds a cache; ttl defaults to five minutes.
func NewReportCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *ReportCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ReportCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "report_cache").Logger(),
	}
}

func reportCacheKey(assignmentID uint) string {
	return fmt.Sprintf("report:assignment:%d", assignmentID)
}

// Get returns a cached report when present.
func (c *ReportCache) Get(ctx context.Context, assignmentID uint) (evaluation.Report, bool) {
	if c == nil || c.client == nil {
		return evaluation.Report{}, false
	}

	cached, err := c.client.Get(ctx, reportCacheKey(assignmentID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("failed to read report cache")
		}
		return evaluation.Report{}, false
	}

	var report evaluation.Report
	if err := json.Unmarshal([]byte(cached), &report); err != nil {
		c.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("discarding unreadable cached report")
		return evaluation.Report{}, false
	}
	return report, true
}

// Set stores report for the configured ttl.
func (c *ReportCache) Set(ctx context.Context, assignmentID uint, report evaluation.Report) {
	if c == nil || c.client == nil {
		return
	}

	payload, err := json.Marshal(report)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode report for cache")
		return
	}
	if err := c.client.Set(ctx, reportCacheKey(assignmentID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("failed to write report cache")
	}
}

// Invalidate drops the cached report of an assignment.
func (c *ReportCache) Invalidate(ctx context.Context, assignmentID uint) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, reportCacheKey(assignmentID)).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("failed to invalidate report cache")
	}
}
