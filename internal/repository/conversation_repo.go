package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Ahmad-Mosha/chat-api/internal/models"
)

// ConversationRepository owns conversations, participant rows and admin grants.
// Authorization lives in the service layer; this is pure data access.
type ConversationRepository interface {
	Create(ctx context.Context, conv *models.Conversation, participantIDs, adminIDs []uint) error
	FindByID(ctx context.Context, id uint) (models.Conversation, error)
	FindDirectBetween(ctx context.Context, userA, userB uint) (models.Conversation, error)
	FindChannelByName(ctx context.Context, name string) (models.Conversation, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Conversation, error)
	Update(ctx context.Context, conv *models.Conversation) error
	AddParticipant(ctx context.Context, conversationID, userID uint) error
	RemoveParticipant(ctx context.Context, conversationID, userID uint) error
	IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error)
	IsAdmin(ctx context.Context, conversationID, userID uint) (bool, error)
	ParticipantIDs(ctx context.Context, conversationID uint) ([]uint, error)
	IDsByUser(ctx context.Context, userID uint) ([]uint, error)
	TouchActivity(ctx context.Context, conversationID uint, at time.Time) error
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository constructs a conversation repository backed by GORM.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(ctx context.Context, conv *models.Conversation, participantIDs, adminIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		participants := make([]models.ConversationParticipant, 0, len(participantIDs))
		for _, id := range participantIDs {
			participants = append(participants, models.ConversationParticipant{
				ConversationID: conv.ID,
				UserID:         id,
				JoinedAt:       now,
			})
		}
		if err := tx.Create(&participants).Error; err != nil {
			return err
		}

		for _, id := range adminIDs {
			admin := models.ConversationAdmin{ConversationID: conv.ID, UserID: id, GrantedAt: now}
			if err := tx.Create(&admin).Error; err != nil {
				return err
			}
		}

		conv.Participants = participants
		return nil
	})
}

func (r *conversationRepository) FindByID(ctx context.Context, id uint) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).Preload("Participants").First(&conv, id).Error
	if err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

func (r *conversationRepository) FindDirectBetween(ctx context.Context, userA, userB uint) (models.Conversation, error) {
	memberOf := func(userID uint) *gorm.DB {
		return r.db.Model(&models.ConversationParticipant{}).
			Select("conversation_id").
			Where("user_id = ?", userID)
	}

	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Where("type = ?", models.ConversationTypeDirect).
		Where("id IN (?)", memberOf(userA)).
		Where("id IN (?)", memberOf(userB)).
		Preload("Participants").
		First(&conv).Error
	if err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

func (r *conversationRepository) FindChannelByName(ctx context.Context, name string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Where("type = ? AND name = ?", models.ConversationTypeChannel, name).
		Preload("Participants").
		First(&conv).Error
	if err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

func (r *conversationRepository) ListByUser(ctx context.Context, userID uint) ([]models.Conversation, error) {
	memberships := r.db.Model(&models.ConversationParticipant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	var convs []models.Conversation
	err := r.db.WithContext(ctx).
		Where("id IN (?)", memberships).
		Order("last_activity_at DESC").
		Preload("Participants").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *conversationRepository) Update(ctx context.Context, conv *models.Conversation) error {
	return r.db.WithContext(ctx).Omit("Participants").Save(conv).Error
}

func (r *conversationRepository) AddParticipant(ctx context.Context, conversationID, userID uint) error {
	participant := models.ConversationParticipant{
		ConversationID: conversationID,
		UserID:         userID,
		JoinedAt:       time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&participant).Error
}

func (r *conversationRepository) RemoveParticipant(ctx context.Context, conversationID, userID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("conversation_id = ? AND user_id = ?", conversationID, userID).
			Delete(&models.ConversationParticipant{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		// Leaving revokes any admin grant along with membership.
		return tx.
			Where("conversation_id = ? AND user_id = ?", conversationID, userID).
			Delete(&models.ConversationAdmin{}).Error
	})
}

func (r *conversationRepository) IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *conversationRepository) IsAdmin(ctx context.Context, conversationID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ConversationAdmin{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *conversationRepository) ParticipantIDs(ctx context.Context, conversationID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *conversationRepository) IDsByUser(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("user_id = ?", userID).
		Order("conversation_id").
		Pluck("conversation_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *conversationRepository) TouchActivity(ctx context.Context, conversationID uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("last_activity_at", at).Error
}
