package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Ahmad-Mosha/chat-api/internal/models"
)

// StatsRepository supplies aggregate figures for the operational stats
// endpoint. Soft-deleted messages are excluded from every count.
type StatsRepository interface {
	CountUsers(ctx context.Context) (int64, error)
	CountConversationsByType(ctx context.Context) (map[string]int64, error)
	CountMessages(ctx context.Context) (int64, error)
	ListMessagesSince(ctx context.Context, since time.Time) ([]models.Message, error)
}

type statsRepository struct {
	db *gorm.DB
}

// NewStatsRepository constructs the stats repository.
func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

func (r *statsRepository) CountConversationsByType(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Type  string
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Select("type, COUNT(*) AS count").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Type] = row.Count
	}
	return counts, nil
}

func (r *statsRepository) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("deleted = ?", false).
		Count(&count).Error
	return count, err
}

func (r *statsRepository) ListMessagesSince(ctx context.Context, since time.Time) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND deleted = ?", since, false).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}
