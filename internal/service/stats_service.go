package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ahmad-Mosha/chat-api/internal/dto"
	"github.com/Ahmad-Mosha/chat-api/internal/models"
	"github.com/Ahmad-Mosha/chat-api/internal/repository"
)

// Daily volume looks back this many days.
const statsVolumeWindowDays = 14

// UsageStatsService aggregates operational figures for the admin dashboard.
type UsageStatsService interface {
	GetUsage(ctx context.Context) (dto.UsageStatsResponse, error)
}

type usageStatsService struct {
	repo     repository.StatsRepository
	presence *PresenceRegistry
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewUsageStatsService constructs the stats service. A nil cache disables
// caching; every call then aggregates from the database.
func NewUsageStatsService(repo repository.StatsRepository, presence *PresenceRegistry, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) UsageStatsService {
	return &usageStatsService{
		repo:     repo,
		presence: presence,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "usage_stats_service").Logger(),
		now:      time.Now,
	}
}

func (s *usageStatsService) GetUsage(ctx context.Context) (dto.UsageStatsResponse, error) {
	const cacheKey = "stats:usage"
	tracer := otel.Tracer("github.com/Ahmad-Mosha/chat-api/internal/service/stats")
	ctx, span := tracer.Start(ctx, "stats.aggregate")
	span.SetAttributes(attribute.String("stats.cache_key", cacheKey))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var response dto.UsageStatsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				response.OnlineUsers = s.onlineCount()
				span.SetAttributes(attribute.Bool("stats.cache_hit", true))
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read stats cache")
			span.RecordError(err)
		}
	}

	totalUsers, err := s.repo.CountUsers(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count_users_failed")
		return dto.UsageStatsResponse{}, err
	}

	byType, err := s.repo.CountConversationsByType(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count_conversations_failed")
		return dto.UsageStatsResponse{}, err
	}

	totalMessages, err := s.repo.CountMessages(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count_messages_failed")
		return dto.UsageStatsResponse{}, err
	}

	cutoff := s.now().UTC().AddDate(0, 0, -statsVolumeWindowDays)
	recent, err := s.repo.ListMessagesSince(ctx, cutoff)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_recent_messages_failed")
		return dto.UsageStatsResponse{}, err
	}

	usage := s.buildUsage(totalUsers, byType, totalMessages, recent)
	span.SetAttributes(
		attribute.Int64("stats.total_users", totalUsers),
		attribute.Int64("stats.total_messages", totalMessages),
	)

	if s.cache != nil {
		payload, err := json.Marshal(usage)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store stats cache")
				span.RecordError(err)
			}
		}
	}

	usage.OnlineUsers = s.onlineCount()
	return usage, nil
}

func (s *usageStatsService) onlineCount() int64 {
	if s.presence == nil {
		return 0
	}
	return int64(len(s.presence.OnlineUsers()))
}

func (s *usageStatsService) buildUsage(totalUsers int64, byType map[string]int64, totalMessages int64, recent []models.Message) dto.UsageStatsResponse {
	breakdown := dto.ConversationBreakdown{
		"direct":  0,
		"group":   0,
		"channel": 0,
	}
	for kind, count := range byType {
		breakdown[kind] = count
	}

	daily := map[time.Time]int64{}
	for _, message := range recent {
		day := startOfDay(message.CreatedAt)
		daily[day]++
	}

	days := make([]time.Time, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	volume := make([]dto.DailyMessagePoint, 0, len(days))
	for _, day := range days {
		volume = append(volume, dto.DailyMessagePoint{Day: day, Messages: daily[day]})
	}

	return dto.UsageStatsResponse{
		TotalUsers:    totalUsers,
		Conversations: breakdown,
		TotalMessages: totalMessages,
		DailyVolume:   volume,
		GeneratedAt:   s.now().UTC(),
		CacheHit:      false,
	}
}

func startOfDay(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
