package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ahmad-Mosha/chat-api/internal/models"
)

// MessageRepository owns the append-mostly message log plus its reaction and
// read-marker sub-records.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	FindByID(ctx context.Context, id uint) (models.Message, error)
	FindBySender(ctx context.Context, id, senderID uint) (models.Message, error)
	Update(ctx context.Context, msg *models.Message) error
	ListPage(ctx context.Context, conversationID uint, page, limit int) ([]models.Message, int64, error)
	Search(ctx context.Context, conversationID uint, query string, limit int) ([]models.Message, error)
	ToggleReaction(ctx context.Context, messageID, userID uint, emoji string) (models.MessageReaction, bool, error)
	MarkRead(ctx context.Context, conversationID, userID uint) (int64, error)
	UnreadCount(ctx context.Context, conversationID, userID uint) (int64, error)
	UnreadCounts(ctx context.Context, conversationIDs []uint, userID uint) (map[uint]int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(msg).Error; err != nil {
		return err
	}
	// Reload with the sender joined so callers can render it without a second trip.
	return r.db.WithContext(ctx).Preload("Sender").First(msg, msg.ID).Error
}

// FindByID returns the row regardless of the deleted flag; soft-deleted
// messages stay addressable as reply targets. Visibility is decided upstream.
func (r *messageRepository) FindByID(ctx context.Context, id uint) (models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).Preload("Sender").First(&msg, id).Error; err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// FindBySender scopes the lookup to the author, so a foreign message is
// indistinguishable from a missing one.
func (r *messageRepository) FindBySender(ctx context.Context, id, senderID uint) (models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("id = ? AND sender_id = ?", id, senderID).
		First(&msg).Error
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func (r *messageRepository) Update(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(msg).Error
}

// ListPage returns one window of conversation history. Rows are fetched
// newest-first so page 1 is always the latest window, then reversed in place
// so each page reads chronologically. The count ignores soft-deleted rows.
func (r *messageRepository) ListPage(ctx context.Context, conversationID uint, page, limit int) ([]models.Message, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}

	base := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND deleted = ?", conversationID, false)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND deleted = ?", conversationID, false).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Preload("Sender").
		Preload("Reactions").
		Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, total, nil
}

func (r *messageRepository) Search(ctx context.Context, conversationID uint, query string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	pattern := "%" + strings.ToLower(query) + "%"
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND deleted = ?", conversationID, false).
		Where("LOWER(content) LIKE ?", pattern).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Preload("Sender").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ToggleReaction removes the (message, user, emoji) reaction when present and
// creates it otherwise. A duplicate-key conflict means a concurrent toggle won
// the insert, so the losing call resolves to removal; two racing calls always
// land on opposite outcomes.
func (r *messageRepository) ToggleReaction(ctx context.Context, messageID, userID uint, emoji string) (models.MessageReaction, bool, error) {
	removed := models.MessageReaction{MessageID: messageID, UserID: userID, Emoji: emoji}

	result := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&models.MessageReaction{})
	if result.Error != nil {
		return models.MessageReaction{}, false, result.Error
	}
	if result.RowsAffected > 0 {
		return removed, false, nil
	}

	reaction := models.MessageReaction{MessageID: messageID, UserID: userID, Emoji: emoji}
	if err := r.db.WithContext(ctx).Create(&reaction).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			del := r.db.WithContext(ctx).
				Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
				Delete(&models.MessageReaction{})
			if del.Error != nil {
				return models.MessageReaction{}, false, del.Error
			}
			return removed, false, nil
		}
		return models.MessageReaction{}, false, err
	}
	return reaction, true, nil
}

// MarkRead backfills read markers for every non-deleted message in the
// conversation that this user has not marked yet. The unique (message, user)
// index plus ON CONFLICT DO NOTHING keeps concurrent calls idempotent.
func (r *messageRepository) MarkRead(ctx context.Context, conversationID, userID uint) (int64, error) {
	seen := r.db.Model(&models.MessageRead{}).
		Select("message_id").
		Where("user_id = ?", userID)

	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND deleted = ?", conversationID, false).
		Where("id NOT IN (?)", seen).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	marks := make([]models.MessageRead, 0, len(ids))
	for _, id := range ids {
		marks = append(marks, models.MessageRead{MessageID: id, UserID: userID, ReadAt: now})
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&marks, 200).Error
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

// UnreadCount counts non-deleted messages from other senders that lack this
// user's read marker.
func (r *messageRepository) UnreadCount(ctx context.Context, conversationID, userID uint) (int64, error) {
	seen := r.db.Model(&models.MessageRead{}).
		Select("message_id").
		Where("user_id = ?", userID)

	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND deleted = ? AND sender_id <> ?", conversationID, false, userID).
		Where("id NOT IN (?)", seen).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// UnreadCounts is the batched form of UnreadCount, one row group per
// conversation. Conversations with nothing unread are absent from the map.
func (r *messageRepository) UnreadCounts(ctx context.Context, conversationIDs []uint, userID uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return counts, nil
	}

	seen := r.db.Model(&models.MessageRead{}).
		Select("message_id").
		Where("user_id = ?", userID)

	type unreadRow struct {
		ConversationID uint
		Total          int64
	}
	var rows []unreadRow
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("conversation_id, COUNT(*) AS total").
		Where("conversation_id IN ?", conversationIDs).
		Where("deleted = ? AND sender_id <> ?", false, userID).
		Where("id NOT IN (?)", seen).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.ConversationID] = row.Total
	}
	return counts, nil
}
