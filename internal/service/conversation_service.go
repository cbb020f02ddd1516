package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Ahmad-Mosha/chat-api/internal/dto"
	"github.com/Ahmad-Mosha/chat-api/internal/models"
	"github.com/Ahmad-Mosha/chat-api/internal/repository"
)

// ConversationService exposes conversation lifecycle and membership use-cases.
// Every operation is scoped to the acting user; non-members observe missing
// conversations rather than forbidden ones.
type ConversationService interface {
	// Create starts a conversation. The returned flag is false when an
	// existing direct conversation between the same pair was reused.
	Create(ctx context.Context, userID uint, payload dto.ConversationCreateRequest) (dto.ConversationResponse, bool, error)
	List(ctx context.Context, userID uint) ([]dto.ConversationResponse, error)
	Get(ctx context.Context, userID, conversationID uint) (dto.ConversationResponse, error)
	Update(ctx context.Context, userID, conversationID uint, payload dto.ConversationUpdateRequest) (dto.ConversationResponse, error)
	AddParticipant(ctx context.Context, userID, conversationID, targetID uint) (dto.ConversationResponse, error)
	RemoveParticipant(ctx context.Context, userID, conversationID, targetID uint) (dto.ConversationResponse, error)
}

type conversationService struct {
	conversations repository.ConversationRepository
	users         repository.UserRepository
	messages      repository.MessageRepository
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	sanitizer     *bluemonday.Policy
	now           func() time.Time
}

// NewConversationService constructs a conversation service.
func NewConversationService(conversations repository.ConversationRepository, users repository.UserRepository, messages repository.MessageRepository, validate *validator.Validate, logger zerolog.Logger) ConversationService {
	return &conversationService{
		conversations: conversations,
		users:         users,
		messages:      messages,
		validator:     validate,
		logger:        logger.With().Str("component", "conversation_service").Logger(),
		tracer:        otel.Tracer("github.com/Ahmad-Mosha/chat-api/internal/service/conversation"),
		sanitizer:     bluemonday.StrictPolicy(),
		now:           time.Now,
	}
}

func (s *conversationService) Create(ctx context.Context, userID uint, payload dto.ConversationCreateRequest) (dto.ConversationResponse, bool, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ConversationResponse{}, false, err
	}

	// The requester always participates; duplicates in the payload collapse.
	seen := map[uint]struct{}{userID: {}}
	participantIDs := []uint{userID}
	for _, id := range payload.ParticipantIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		participantIDs = append(participantIDs, id)
	}

	users, err := s.users.FindByIDs(ctx, participantIDs)
	if err != nil {
		return dto.ConversationResponse{}, false, err
	}
	if len(users) != len(participantIDs) {
		return dto.ConversationResponse{}, false, ErrUserNotFound
	}

	convType := models.ConversationType(payload.Type)
	name := ""
	description := strings.TrimSpace(s.sanitizer.Sanitize(payload.Description))

	if convType == models.ConversationTypeDirect {
		if len(participantIDs) != 2 {
			return dto.ConversationResponse{}, false, fmt.Errorf("direct conversations require exactly two participants: %w", ErrInvalid)
		}

		blocked, err := s.users.BlockExistsBetween(ctx, participantIDs[0], participantIDs[1])
		if err != nil {
			return dto.ConversationResponse{}, false, err
		}
		if blocked {
			return dto.ConversationResponse{}, false, ErrBlockedCounterpart
		}

		existing, err := s.conversations.FindDirectBetween(ctx, participantIDs[0], participantIDs[1])
		if err == nil {
			response := dto.NewConversationResponse(existing)
			unread, err := s.messages.UnreadCount(ctx, existing.ID, userID)
			if err != nil {
				return dto.ConversationResponse{}, false, err
			}
			response.UnreadCount = unread
			return response, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ConversationResponse{}, false, err
		}
	} else {
		name = strings.TrimSpace(s.sanitizer.Sanitize(payload.Name))
		if name == "" {
			return dto.ConversationResponse{}, false, fmt.Errorf("conversation name required: %w", ErrInvalid)
		}
	}

	attrs := []attribute.KeyValue{
		attribute.String("conversation.type", payload.Type),
		attribute.Int("conversation.participants", len(participantIDs)),
	}
	spanCtx, span := s.tracer.Start(ctx, "conversation.create", trace.WithAttributes(attrs...))
	defer span.End()

	conv := models.Conversation{
		Type:           convType,
		Name:           name,
		Description:    description,
		AvatarURL:      strings.TrimSpace(payload.AvatarURL),
		IsPrivate:      payload.IsPrivate,
		CreatorID:      userID,
		LastActivityAt: s.now().UTC(),
	}

	var adminIDs []uint
	if convType != models.ConversationTypeDirect {
		adminIDs = []uint{userID}
	}

	if err := s.conversations.Create(spanCtx, &conv, participantIDs, adminIDs); err != nil {
		span.RecordError(err)
		return dto.ConversationResponse{}, false, err
	}

	s.logger.Info().
		Uint("conversation_id", conv.ID).
		Str("type", payload.Type).
		Int("participants", len(participantIDs)).
		Msg("conversation created")

	return dto.NewConversationResponse(conv), true, nil
}

func (s *conversationService) List(ctx context.Context, userID uint) ([]dto.ConversationResponse, error) {
	convs, err := s.conversations.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(convs))
	for _, conv := range convs {
		ids = append(ids, conv.ID)
	}
	unread, err := s.messages.UnreadCounts(ctx, ids, userID)
	if err != nil {
		return nil, err
	}

	responses := dto.NewConversationResponseSlice(convs)
	for i := range responses {
		responses[i].UnreadCount = unread[responses[i].ID]
	}
	return responses, nil
}

func (s *conversationService) Get(ctx context.Context, userID, conversationID uint) (dto.ConversationResponse, error) {
	conv, err := s.memberConversation(ctx, userID, conversationID)
	if err != nil {
		return dto.ConversationResponse{}, err
	}

	response := dto.NewConversationResponse(conv)
	unread, err := s.messages.UnreadCount(ctx, conversationID, userID)
	if err != nil {
		return dto.ConversationResponse{}, err
	}
	response.UnreadCount = unread
	return response, nil
}

func (s *conversationService) Update(ctx context.Context, userID, conversationID uint, payload dto.ConversationUpdateRequest) (dto.ConversationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ConversationResponse{}, err
	}

	conv, err := s.memberConversation(ctx, userID, conversationID)
	if err != nil {
		return dto.ConversationResponse{}, err
	}

	// Direct conversations accept metadata patches from either participant;
	// group and channel patches require an admin grant.
	if conv.Type != models.ConversationTypeDirect {
		admin, err := s.conversations.IsAdmin(ctx, conversationID, userID)
		if err != nil {
			return dto.ConversationResponse{}, err
		}
		if !admin {
			return dto.ConversationResponse{}, ErrAdminRequired
		}
	}

	if payload.Name != nil {
		name := strings.TrimSpace(s.sanitizer.Sanitize(*payload.Name))
		if name == "" {
			return dto.ConversationResponse{}, fmt.Errorf("conversation name empty after sanitization: %w", ErrInvalid)
		}
		conv.Name = name
	}
	if payload.Description != nil {
		conv.Description = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Description))
	}
	if payload.AvatarURL != nil {
		conv.AvatarURL = strings.TrimSpace(*payload.AvatarURL)
	}

	if err := s.conversations.Update(ctx, &conv); err != nil {
		return dto.ConversationResponse{}, err
	}

	return dto.NewConversationResponse(conv), nil
}

func (s *conversationService) AddParticipant(ctx context.Context, userID, conversationID, targetID uint) (dto.ConversationResponse, error) {
	conv, err := s.memberConversation(ctx, userID, conversationID)
	if err != nil {
		return dto.ConversationResponse{}, err
	}
	if conv.Type == models.ConversationTypeDirect {
		return dto.ConversationResponse{}, ErrDirectParticipantsFixed
	}

	admin, err := s.conversations.IsAdmin(ctx, conversationID, userID)
	if err != nil {
		return dto.ConversationResponse{}, err
	}
	if !admin {
		return dto.ConversationResponse{}, ErrAdminRequired
	}

	if _, err := s.users.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ConversationResponse{}, ErrUserNotFound
		}
		return dto.ConversationResponse{}, err
	}

	if err := s.conversations.AddParticipant(ctx, conversationID, targetID); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.ConversationResponse{}, ErrAlreadyParticipant
		}
		return dto.ConversationResponse{}, err
	}

	s.logger.Info().
		Uint("conversation_id", conversationID).
		Uint("user_id", targetID).
		Msg("participant added")

	refreshed, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return dto.ConversationResponse{}, err
	}
	return dto.NewConversationResponse(refreshed), nil
}

func (s *conversationService) RemoveParticipant(ctx context.Context, userID, conversationID, targetID uint) (dto.ConversationResponse, error) {
	conv, err := s.memberConversation(ctx, userID, conversationID)
	if err != nil {
		return dto.ConversationResponse{}, err
	}
	if conv.Type == models.ConversationTypeDirect {
		return dto.ConversationResponse{}, ErrDirectParticipantsFixed
	}

	// Members may leave on their own; removing someone else takes an admin.
	if userID != targetID {
		admin, err := s.conversations.IsAdmin(ctx, conversationID, userID)
		if err != nil {
			return dto.ConversationResponse{}, err
		}
		if !admin {
			return dto.ConversationResponse{}, ErrAdminRequired
		}
	}

	if err := s.conversations.RemoveParticipant(ctx, conversationID, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ConversationResponse{}, fmt.Errorf("participant not found: %w", ErrNotFound)
		}
		return dto.ConversationResponse{}, err
	}

	s.logger.Info().
		Uint("conversation_id", conversationID).
		Uint("user_id", targetID).
		Msg("participant removed")

	refreshed, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return dto.ConversationResponse{}, err
	}
	return dto.NewConversationResponse(refreshed), nil
}

// memberConversation loads a conversation after verifying membership, so
// outsiders cannot distinguish hidden conversations from missing ones.
func (s *conversationService) memberConversation(ctx context.Context, userID, conversationID uint) (models.Conversation, error) {
	member, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return models.Conversation{}, err
	}
	if !member {
		return models.Conversation{}, ErrConversationNotFound
	}

	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Conversation{}, ErrConversationNotFound
		}
		return models.Conversation{}, err
	}
	return conv, nil
}
