package dto

import "time"

// ConversationBreakdown maps conversation type to its count.
type ConversationBreakdown map[string]int64

// DailyMessagePoint is one day of message volume.
type DailyMessagePoint struct {
	Day      time.Time `json:"day"`
	Messages int64     `json:"messages"`
}

// UsageStatsResponse aggregates operational figures for the admin dashboard.
// OnlineUsers is always read live from the presence registry, even when the
// rest of the summary comes out of the cache.
type UsageStatsResponse struct {
	TotalUsers    int64                 `json:"total_users"`
	OnlineUsers   int64                 `json:"online_users"`
	Conversations ConversationBreakdown `json:"conversations"`
	TotalMessages int64                 `json:"total_messages"`
	DailyVolume   []DailyMessagePoint   `json:"daily_volume"`
	GeneratedAt   time.Time             `json:"generated_at"`
	CacheHit      bool                  `json:"cache_hit"`
}
