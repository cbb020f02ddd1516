package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Ahmad-Mosha/chat-api/internal/models"
	"github.com/Ahmad-Mosha/chat-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// SeedChannel describes one channel fixture. The creator is always included
// in the participant set and receives the admin grant.
type SeedChannel struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	CreatorID      uint   `json:"creator_id"`
	ParticipantIDs []uint `json:"participant_ids"`
}

// SeedService provisions demo fixtures: user identities and public channels.
// Seeding is idempotent; reruns update users in place and leave existing
// channels untouched.
type SeedService interface {
	SeedUsers(ctx context.Context, token string, items []models.User) (int64, error)
	SeedChannels(ctx context.Context, token string, items []SeedChannel) (int64, error)
}

type seedService struct {
	users         repository.UserRepository
	conversations repository.ConversationRepository
	enabled       bool
	token         string
	logger        zerolog.Logger
	now           func() time.Time
}

// NewSeedService constructs a seeding service.
func NewSeedService(users repository.UserRepository, conversations repository.ConversationRepository, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		users:         users,
		conversations: conversations,
		enabled:       enabled,
		token:         token,
		logger:        logger.With().Str("component", "seed_service").Logger(),
		now:           time.Now,
	}
}

func (s *seedService) SeedUsers(ctx context.Context, token string, items []models.User) (int64, error) {
	if !s.enabled {
		return 0, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return 0, ErrSeedUnauthorized
	}

	normalized := s.normalizeUsers(items)
	affected, err := s.users.UpsertBatch(ctx, normalized)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("affected", affected).Msg("users seeded")
	return affected, nil
}

func (s *seedService) SeedChannels(ctx context.Context, token string, items []SeedChannel) (int64, error) {
	if !s.enabled {
		return 0, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return 0, ErrSeedUnauthorized
	}

	now := s.now().UTC()
	created := int64(0)
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		participants := normalizeChannelMembers(item)
		if name == "" || len(participants) == 0 {
			continue
		}

		_, err := s.conversations.FindChannelByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, err
		}

		// normalizeChannelMembers puts the creator first.
		conv := models.Conversation{
			Type:           models.ConversationTypeChannel,
			Name:           name,
			Description:    item.Description,
			CreatorID:      participants[0],
			LastActivityAt: now,
		}
		if err := s.conversations.Create(ctx, &conv, participants, []uint{conv.CreatorID}); err != nil {
			return created, err
		}
		created++
	}

	s.logger.Info().Int64("created", created).Msg("channels seeded")
	return created, nil
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	provided := strings.TrimSpace(token)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}

func (s *seedService) normalizeUsers(items []models.User) []models.User {
	now := s.now().UTC()
	for i := range items {
		if !items[i].Status.Valid() {
			items[i].Status = models.UserStatusOffline
		}
		if items[i].DisplayName == "" {
			items[i].DisplayName = items[i].Username
		}
		if items[i].LastSeenAt.IsZero() {
			items[i].LastSeenAt = now
		}
	}
	return items
}

// normalizeChannelMembers dedupes the participant list and makes sure the
// creator is part of it.
func normalizeChannelMembers(item SeedChannel) []uint {
	seen := make(map[uint]struct{}, len(item.ParticipantIDs)+1)
	members := make([]uint, 0, len(item.ParticipantIDs)+1)

	add := func(id uint) {
		if id == 0 {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}

	add(item.CreatorID)
	for _, id := range item.ParticipantIDs {
		add(id)
	}
	return members
}
