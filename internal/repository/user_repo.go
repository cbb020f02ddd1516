package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ahmad-Mosha/chat-api/internal/models"
)

// UserRepository reads identities and owns the durable status/last-seen fields.
type UserRepository interface {
	FindByID(ctx context.Context, id uint) (models.User, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	UpdateStatus(ctx context.Context, id uint, status models.UserStatus, lastSeen time.Time) (models.User, error)
	UpsertBatch(ctx context.Context, items []models.User) (int64, error)
	Block(ctx context.Context, blockerID, blockedID uint) error
	Unblock(ctx context.Context, blockerID, blockedID uint) error
	BlockExistsBetween(ctx context.Context, userA, userB uint) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) UpdateStatus(ctx context.Context, id uint, status models.UserStatus, lastSeen time.Time) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			return err
		}
		user.Status = status
		user.LastSeenAt = lastSeen
		return tx.Model(&user).Updates(map[string]interface{}{
			"status":       status,
			"last_seen_at": lastSeen,
		}).Error
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) UpsertBatch(ctx context.Context, items []models.User) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "avatar_url", "updated_at"}),
	})

	result := tx.Create(&items)
	return result.RowsAffected, result.Error
}

func (r *userRepository) Block(ctx context.Context, blockerID, blockedID uint) error {
	block := models.UserBlock{BlockerID: blockerID, BlockedID: blockedID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&block).Error
}

func (r *userRepository) Unblock(ctx context.Context, blockerID, blockedID uint) error {
	result := r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&models.UserBlock{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) BlockExistsBetween(ctx context.Context, userA, userB uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserBlock{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", userA, userB, userB, userA).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
