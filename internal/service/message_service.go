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
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Ahmad-Mosha/chat-api/internal/dto"
	"github.com/Ahmad-Mosha/chat-api/internal/models"
	"github.com/Ahmad-Mosha/chat-api/internal/observability"
	"github.com/Ahmad-Mosha/chat-api/internal/repository"
)

// MessageService exposes the message log use-cases: sending, history,
// editing, deletion, reactions, read markers and search.
type MessageService interface {
	Send(ctx context.Context, userID uint, payload dto.MessageSendRequest) (dto.MessageResponse, error)
	History(ctx context.Context, userID, conversationID uint, query dto.MessageHistoryQuery) (dto.MessageHistoryResponse, error)
	Edit(ctx context.Context, userID, messageID uint, payload dto.MessageEditRequest) (dto.MessageResponse, error)
	Delete(ctx context.Context, userID, messageID uint) (dto.MessageDeletedEvent, error)
	React(ctx context.Context, userID, messageID uint, payload dto.ReactionRequest) (dto.ReactionEvent, error)
	MarkRead(ctx context.Context, userID, conversationID uint) (dto.ConversationReadEvent, error)
	Search(ctx context.Context, userID, conversationID uint, query dto.MessageSearchQuery) ([]dto.MessageResponse, error)
}

type messageService struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	sanitizer     *bluemonday.Policy
	now           func() time.Time
}

// NewMessageService constructs a message service.
func NewMessageService(messages repository.MessageRepository, conversations repository.ConversationRepository, validate *validator.Validate, logger zerolog.Logger) MessageService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	return &messageService{
		messages:      messages,
		conversations: conversations,
		validator:     validate,
		logger:        logger.With().Str("component", "message_service").Logger(),
		tracer:        otel.Tracer("github.com/Ahmad-Mosha/chat-api/internal/service/message"),
		sanitizer:     sanitizer,
		now:           time.Now,
	}
}

func (s *messageService) Send(ctx context.Context, userID uint, payload dto.MessageSendRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	member, err := s.conversations.IsParticipant(ctx, payload.ConversationID, userID)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	if !member {
		return dto.MessageResponse{}, ErrConversationNotFound
	}

	msgType := models.MessageTypeText
	if payload.Type != "" {
		msgType = models.MessageType(payload.Type)
	}

	content := strings.TrimSpace(s.sanitizer.Sanitize(payload.Content))
	if msgType == models.MessageTypeText && content == "" {
		return dto.MessageResponse{}, fmt.Errorf("message content empty after sanitization: %w", ErrInvalid)
	}
	if err := validateMessageMetadata(msgType, payload.Metadata); err != nil {
		return dto.MessageResponse{}, err
	}

	// A reply target must exist in the same conversation. Soft-deleted
	// targets stay valid.
	if payload.ReplyToID != nil {
		target, err := s.messages.FindByID(ctx, *payload.ReplyToID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.MessageResponse{}, fmt.Errorf("reply target not found: %w", ErrInvalid)
			}
			return dto.MessageResponse{}, err
		}
		if target.ConversationID != payload.ConversationID {
			return dto.MessageResponse{}, fmt.Errorf("reply target belongs to another conversation: %w", ErrInvalid)
		}
	}

	attrs := []attribute.KeyValue{
		attribute.Int("message.conversation_id", int(payload.ConversationID)),
		attribute.String("message.type", string(msgType)),
	}
	spanCtx, span := s.tracer.Start(ctx, "message.send", trace.WithAttributes(attrs...))
	defer span.End()

	msg := models.Message{
		ConversationID: payload.ConversationID,
		SenderID:       userID,
		Content:        content,
		Type:           msgType,
		Status:         models.MessageStatusSent,
		ReplyToID:      payload.ReplyToID,
		Metadata:       datatypes.JSONMap(payload.Metadata),
	}
	if err := s.messages.Create(spanCtx, &msg); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	if err := s.conversations.TouchActivity(spanCtx, payload.ConversationID, s.now().UTC()); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	observability.MessagesSent().WithLabelValues(string(msgType)).Inc()

	s.logger.Info().
		Uint("message_id", msg.ID).
		Uint("conversation_id", msg.ConversationID).
		Str("type", string(msgType)).
		Msg("message sent")

	return dto.NewMessageResponse(msg), nil
}

func (s *messageService) History(ctx context.Context, userID, conversationID uint, query dto.MessageHistoryQuery) (dto.MessageHistoryResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.MessageHistoryResponse{}, err
	}

	member, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return dto.MessageHistoryResponse{}, err
	}
	if !member {
		return dto.MessageHistoryResponse{}, ErrConversationNotFound
	}

	page, limit := query.Page, query.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}

	messages, total, err := s.messages.ListPage(ctx, conversationID, page, limit)
	if err != nil {
		return dto.MessageHistoryResponse{}, err
	}

	return dto.MessageHistoryResponse{
		Messages: dto.NewMessageResponseSlice(messages),
		Total:    total,
		Page:     page,
		Limit:    limit,
	}, nil
}

func (s *messageService) Edit(ctx context.Context, userID, messageID uint, payload dto.MessageEditRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	// Sender-scoped lookup: a foreign message reads as missing, never as
	// forbidden, so existence does not leak.
	msg, err := s.messages.FindBySender(ctx, messageID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, ErrMessageNotFound
		}
		return dto.MessageResponse{}, err
	}
	if msg.Deleted {
		return dto.MessageResponse{}, ErrMessageNotFound
	}

	content := strings.TrimSpace(s.sanitizer.Sanitize(payload.Content))
	if content == "" {
		return dto.MessageResponse{}, fmt.Errorf("message content empty after sanitization: %w", ErrInvalid)
	}

	editedAt := s.now().UTC()
	msg.Content = content
	msg.Edited = true
	msg.EditedAt = &editedAt

	if err := s.messages.Update(ctx, &msg); err != nil {
		return dto.MessageResponse{}, err
	}

	s.logger.Info().Uint("message_id", msg.ID).Msg("message edited")

	return dto.NewMessageResponse(msg), nil
}

func (s *messageService) Delete(ctx context.Context, userID, messageID uint) (dto.MessageDeletedEvent, error) {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageDeletedEvent{}, ErrMessageNotFound
		}
		return dto.MessageDeletedEvent{}, err
	}
	if msg.Deleted {
		return dto.MessageDeletedEvent{}, ErrMessageNotFound
	}

	if msg.SenderID != userID {
		admin, err := s.conversations.IsAdmin(ctx, msg.ConversationID, userID)
		if err != nil {
			return dto.MessageDeletedEvent{}, err
		}
		if !admin {
			return dto.MessageDeletedEvent{}, ErrForbidden
		}
	}

	deletedAt := s.now().UTC()
	msg.Deleted = true
	msg.DeletedAt = &deletedAt

	if err := s.messages.Update(ctx, &msg); err != nil {
		return dto.MessageDeletedEvent{}, err
	}

	s.logger.Info().
		Uint("message_id", msg.ID).
		Uint("conversation_id", msg.ConversationID).
		Msg("message deleted")

	return dto.MessageDeletedEvent{MessageID: msg.ID, ConversationID: msg.ConversationID}, nil
}

func (s *messageService) React(ctx context.Context, userID, messageID uint, payload dto.ReactionRequest) (dto.ReactionEvent, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ReactionEvent{}, err
	}

	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReactionEvent{}, ErrMessageNotFound
		}
		return dto.ReactionEvent{}, err
	}
	if msg.Deleted {
		return dto.ReactionEvent{}, ErrMessageNotFound
	}

	reaction, added, err := s.messages.ToggleReaction(ctx, messageID, userID, payload.Emoji)
	if err != nil {
		return dto.ReactionEvent{}, err
	}

	action := "removed"
	if added {
		action = "added"
	}
	observability.ReactionsToggled().WithLabelValues(action).Inc()

	event := dto.ReactionEvent{
		MessageID:      messageID,
		ConversationID: msg.ConversationID,
		UserID:         userID,
		Emoji:          payload.Emoji,
		Added:          added,
	}
	if added {
		response := dto.NewReactionResponse(reaction)
		event.Reaction = &response
	}
	return event, nil
}

// MarkRead backfills read markers for every message currently in the
// conversation; repeated and concurrent calls converge on the same state.
func (s *messageService) MarkRead(ctx context.Context, userID, conversationID uint) (dto.ConversationReadEvent, error) {
	member, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return dto.ConversationReadEvent{}, err
	}
	if !member {
		return dto.ConversationReadEvent{}, ErrConversationNotFound
	}

	count, err := s.messages.MarkRead(ctx, conversationID, userID)
	if err != nil {
		return dto.ConversationReadEvent{}, err
	}

	return dto.ConversationReadEvent{
		ConversationID: conversationID,
		UserID:         userID,
		Count:          count,
		ReadAt:         s.now().UTC(),
	}, nil
}

func (s *messageService) Search(ctx context.Context, userID, conversationID uint, query dto.MessageSearchQuery) ([]dto.MessageResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	member, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrConversationNotFound
	}

	messages, err := s.messages.Search(ctx, conversationID, query.Query, query.Limit)
	if err != nil {
		return nil, err
	}
	return dto.NewMessageResponseSlice(messages), nil
}

// validateMessageMetadata checks the typed metadata variant for media
// messages; they must carry a source url.
func validateMessageMetadata(msgType models.MessageType, metadata map[string]interface{}) error {
	switch msgType {
	case models.MessageTypeImage, models.MessageTypeVideo, models.MessageTypeAudio, models.MessageTypeFile:
		url, _ := metadata["url"].(string)
		if strings.TrimSpace(url) == "" {
			return fmt.Errorf("%s messages require metadata.url: %w", msgType, ErrInvalid)
		}
	}
	return nil
}
