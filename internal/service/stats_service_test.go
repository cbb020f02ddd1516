package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Ahmad-Mosha/chat-api/internal/models"
)

type fakeStatsRepo struct {
	users         int64
	byType        map[string]int64
	messages      int64
	recent        []models.Message
	aggregateRuns int
}

func (f *fakeStatsRepo) CountUsers(ctx context.Context) (int64, error) {
	f.aggregateRuns++
	return f.users, nil
}

func (f *fakeStatsRepo) CountConversationsByType(ctx context.Context) (map[string]int64, error) {
	return f.byType, nil
}

func (f *fakeStatsRepo) CountMessages(ctx context.Context) (int64, error) {
	return f.messages, nil
}

func (f *fakeStatsRepo) ListMessagesSince(ctx context.Context, since time.Time) ([]models.Message, error) {
	result := make([]models.Message, 0)
	for _, message := range f.recent {
		if !message.CreatedAt.Before(since) {
			result = append(result, message)
		}
	}
	return result, nil
}

func TestUsageStatsServiceCaching(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	now := time.Date(2026, time.March, 14, 15, 0, 0, 0, time.UTC)
	repo := &fakeStatsRepo{
		users:    4,
		byType:   map[string]int64{"direct": 2, "group": 1},
		messages: 9,
		recent: []models.Message{
			{ID: 1, ConversationID: 1, SenderID: 1, CreatedAt: now.Add(-26 * time.Hour)},
			{ID: 2, ConversationID: 1, SenderID: 2, CreatedAt: now.Add(-25 * time.Hour)},
			{ID: 3, ConversationID: 2, SenderID: 1, CreatedAt: now.Add(-time.Hour)},
		},
	}

	presence := NewPresenceRegistry()
	presence.Connect(1, "conn-a")

	svc := NewUsageStatsService(repo, presence, client, time.Minute, testLogger())
	svc.(*usageStatsService).now = func() time.Time { return now }

	usage, err := svc.GetUsage(context.Background())
	require.NoError(t, err)
	require.False(t, usage.CacheHit)
	require.Equal(t, int64(4), usage.TotalUsers)
	require.Equal(t, int64(1), usage.OnlineUsers)
	require.Equal(t, int64(9), usage.TotalMessages)
	require.Equal(t, int64(2), usage.Conversations["direct"])
	require.Equal(t, int64(1), usage.Conversations["group"])
	require.Equal(t, int64(0), usage.Conversations["channel"])
	require.Len(t, usage.DailyVolume, 2)
	require.Equal(t, int64(2), usage.DailyVolume[0].Messages)
	require.Equal(t, int64(1), usage.DailyVolume[1].Messages)

	// The summary comes from the cache now, but the online count stays live.
	repo.users = 40
	presence.Connect(2, "conn-b")

	cached, err := svc.GetUsage(context.Background())
	require.NoError(t, err)
	require.True(t, cached.CacheHit)
	require.Equal(t, int64(4), cached.TotalUsers)
	require.Equal(t, int64(2), cached.OnlineUsers)
	require.Equal(t, 1, repo.aggregateRuns)
}

func TestUsageStatsServiceWithoutCache(t *testing.T) {
	repo := &fakeStatsRepo{users: 2, byType: map[string]int64{}, messages: 0}
	svc := NewUsageStatsService(repo, NewPresenceRegistry(), nil, time.Minute, testLogger())

	first, err := svc.GetUsage(context.Background())
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	repo.users = 5
	second, err := svc.GetUsage(context.Background())
	require.NoError(t, err)
	require.False(t, second.CacheHit)
	require.Equal(t, int64(5), second.TotalUsers)
	require.Equal(t, 2, repo.aggregateRuns)
}
