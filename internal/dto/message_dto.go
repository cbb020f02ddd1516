package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/Ahmad-Mosha/chat-api/internal/models"
)

// MessageSendRequest is the payload to post a message, over HTTP or the
// gateway. Content requirements depend on the message type and are enforced
// by the service.
type MessageSendRequest struct {
	ConversationID uint                   `json:"conversation_id" validate:"required"`
	Content        string                 `json:"content" validate:"omitempty,max=4000"`
	Type           string                 `json:"type" validate:"omitempty,oneof=text image video audio file"`
	ReplyToID      *uint                  `json:"reply_to_id" validate:"omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// MessageEditRequest replaces the content of an own message.
type MessageEditRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
}

// ReactionRequest toggles an emoji reaction on a message.
type ReactionRequest struct {
	Emoji string `json:"emoji" validate:"required,min=1,max=32"`
}

// MessageHistoryQuery represents pagination filters for conversation history.
type MessageHistoryQuery struct {
	Page  int `query:"page" validate:"omitempty,min=1"`
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

// MessageSearchQuery represents filters for in-conversation search.
type MessageSearchQuery struct {
	Query string `query:"q" validate:"required,min=1,max=255"`
	Limit int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// ReactionResponse is the serialized representation of a reaction.
type ReactionResponse struct {
	ID        uint      `json:"id"`
	MessageID uint      `json:"message_id"`
	UserID    uint      `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// NewReactionResponse converts a reaction model into a DTO.
func NewReactionResponse(model models.MessageReaction) ReactionResponse {
	return ReactionResponse{
		ID:        model.ID,
		MessageID: model.MessageID,
		UserID:    model.UserID,
		Emoji:     model.Emoji,
		CreatedAt: model.CreatedAt,
	}
}

// MessageResponse is the serialized representation of a message.
type MessageResponse struct {
	ID             uint               `json:"id"`
	ConversationID uint               `json:"conversation_id"`
	SenderID       uint               `json:"sender_id"`
	Content        string             `json:"content"`
	Type           string             `json:"type"`
	Status         string             `json:"status"`
	ReplyToID      *uint              `json:"reply_to_id,omitempty"`
	Metadata       datatypes.JSONMap  `json:"metadata,omitempty"`
	Edited         bool               `json:"edited"`
	EditedAt       *time.Time         `json:"edited_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	Sender         *UserResponse      `json:"sender,omitempty"`
	Reactions      []ReactionResponse `json:"reactions,omitempty"`
}

// NewMessageResponse converts a model into a DTO including the sender and
// reactions when preloaded.
func NewMessageResponse(model models.Message) MessageResponse {
	response := MessageResponse{
		ID:             model.ID,
		ConversationID: model.ConversationID,
		SenderID:       model.SenderID,
		Content:        model.Content,
		Type:           string(model.Type),
		Status:         string(model.Status),
		ReplyToID:      model.ReplyToID,
		Metadata:       model.Metadata,
		Edited:         model.Edited,
		EditedAt:       model.EditedAt,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
	if model.Sender.ID != 0 {
		sender := NewUserResponse(model.Sender)
		response.Sender = &sender
	}
	if len(model.Reactions) > 0 {
		reactions := make([]ReactionResponse, 0, len(model.Reactions))
		for _, reaction := range model.Reactions {
			reactions = append(reactions, NewReactionResponse(reaction))
		}
		response.Reactions = reactions
	}
	return response
}

// NewMessageResponseSlice converts a slice of messages into DTOs.
func NewMessageResponseSlice(items []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewMessageResponse(item))
	}
	return out
}

// MessageHistoryResponse is one chronological page of conversation history.
// Total counts every non-deleted message in the conversation, not the page.
type MessageHistoryResponse struct {
	Messages []MessageResponse `json:"messages"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}
