package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Ahmad-Mosha/chat-api/internal/dto"
	"github.com/Ahmad-Mosha/chat-api/internal/models"
	"github.com/Ahmad-Mosha/chat-api/internal/repository"
)

// UserService exposes profile reads, durable status writes and block
// relations.
type UserService interface {
	Get(ctx context.Context, userID uint) (dto.UserResponse, error)
	// UpdateStatus applies a client-chosen status after validation.
	UpdateStatus(ctx context.Context, userID uint, payload dto.StatusUpdateRequest) (dto.PresenceEvent, error)
	// SetPresence applies a lifecycle-driven status transition (connect,
	// last disconnect) without a request payload.
	SetPresence(ctx context.Context, userID uint, status models.UserStatus) (dto.PresenceEvent, error)
	Block(ctx context.Context, blockerID, blockedID uint) error
	Unblock(ctx context.Context, blockerID, blockedID uint) error
}

type userService struct {
	users     repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewUserService constructs a user service.
func NewUserService(users repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:     users,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
		now:       time.Now,
	}
}

func (s *userService) Get(ctx context.Context, userID uint) (dto.UserResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) UpdateStatus(ctx context.Context, userID uint, payload dto.StatusUpdateRequest) (dto.PresenceEvent, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.PresenceEvent{}, err
	}
	return s.SetPresence(ctx, userID, models.UserStatus(payload.Status))
}

func (s *userService) SetPresence(ctx context.Context, userID uint, status models.UserStatus) (dto.PresenceEvent, error) {
	lastSeen := s.now().UTC()
	user, err := s.users.UpdateStatus(ctx, userID, status, lastSeen)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PresenceEvent{}, ErrUserNotFound
		}
		return dto.PresenceEvent{}, err
	}

	s.logger.Debug().
		Uint("user_id", user.ID).
		Str("status", string(status)).
		Msg("status updated")

	return dto.PresenceEvent{
		UserID:     user.ID,
		Status:     string(user.Status),
		LastSeenAt: &user.LastSeenAt,
	}, nil
}

func (s *userService) Block(ctx context.Context, blockerID, blockedID uint) error {
	if blockerID == blockedID {
		return fmt.Errorf("cannot block yourself: %w", ErrInvalid)
	}

	if _, err := s.users.FindByID(ctx, blockedID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.users.Block(ctx, blockerID, blockedID); err != nil {
		return err
	}

	s.logger.Info().Uint("blocker_id", blockerID).Uint("blocked_id", blockedID).Msg("user blocked")
	return nil
}

func (s *userService) Unblock(ctx context.Context, blockerID, blockedID uint) error {
	if err := s.users.Unblock(ctx, blockerID, blockedID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("block not found: %w", ErrNotFound)
		}
		return err
	}
	return nil
}
