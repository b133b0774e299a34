package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sena-attendance-api/internal/dto"
	"github.com/noah-isme/sena-attendance-api/internal/observability"
)

// SummaryCache stores student summaries in Redis. A nil client disables it.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewSummaryCache builds the cache. A non-positive ttl falls back to five
// minutes.
func NewSummaryCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *SummaryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SummaryCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "summary_cache").Logger(),
	}
}

func summaryKey(studentID uint) string {
	return fmt.Sprintf("summary:student:%d", studentID)
}

// Get returns the cached summary and whether it was found.
func (c *SummaryCache) Get(ctx context.Context, studentID uint) (dto.StudentSummaryResponse, bool) {
	if c == nil || c.client == nil {
		return dto.StudentSummaryResponse{}, false
	}

	cached, err := c.client.Get(ctx, summaryKey(studentID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to read summary cache")
		}
		observability.SummaryCacheLookups().WithLabelValues("miss").Inc()
		return dto.StudentSummaryResponse{}, false
	}

	var summary dto.StudentSummaryResponse
	if err := json.Unmarshal([]byte(cached), &summary); err != nil {
		c.logger.Warn().Err(err).Uint("student_id", studentID).Msg("discarding malformed summary cache entry")
		observability.SummaryCacheLookups().WithLabelValues("miss").Inc()
		return dto.StudentSummaryResponse{}, false
	}

	observability.SummaryCacheLookups().WithLabelValues("hit").Inc()
	return summary, true
}

// Set stores the summary for the configured ttl.
func (c *SummaryCache) Set(ctx context.Context, summary dto.StudentSummaryResponse) {
	if c == nil || c.client == nil {
		return
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode summary")
		return
	}
	if err := c.client.Set(ctx, summaryKey(summary.StudentID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("student_id", summary.StudentID).Msg("failed to store summary cache")
	}
}

// Invalidate drops the cached summaries of the given students.
func (c *SummaryCache) Invalidate(ctx context.Context, studentIDs ...uint) {
	if c == nil || c.client == nil || len(studentIDs) == 0 {
		return
	}

	keys := make([]string, 0, len(studentIDs))
	for _, id := range uniqueIDs(studentIDs) {
		keys = append(keys, summaryKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Int("keys", len(keys)).Msg("failed to invalidate summary cache")
	}
}
