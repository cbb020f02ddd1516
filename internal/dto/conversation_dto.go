package dto

import (
	"time"

	"github.com/Ahmad-Mosha/chat-api/internal/models"
)

// ConversationCreateRequest is the payload to start a conversation. The
// requester is always included as a participant whether or not they appear in
// participant_ids.
type ConversationCreateRequest struct {
	Type           string `json:"type" validate:"required,oneof=direct group channel"`
	Name           string `json:"name" validate:"omitempty,max=255"`
	Description    string `json:"description" validate:"omitempty,max=2000"`
	AvatarURL      string `json:"avatar_url" validate:"omitempty,max=1024"`
	IsPrivate      bool   `json:"is_private"`
	ParticipantIDs []uint `json:"participant_ids" validate:"required,min=1,dive,required"`
}

// ConversationUpdateRequest patches conversation metadata. Absent fields are
// left untouched.
type ConversationUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	AvatarURL   *string `json:"avatar_url" validate:"omitempty,max=1024"`
}

// ParticipantAddRequest adds one user to a group or channel.
type ParticipantAddRequest struct {
	UserID uint `json:"user_id" validate:"required"`
}

// ConversationResponse describes a conversation returned by the API.
type ConversationResponse struct {
	ID             uint      `json:"id"`
	Type           string    `json:"type"`
	Name           string    `json:"name,omitempty"`
	Description    string    `json:"description,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	IsPrivate      bool      `json:"is_private"`
	CreatorID      uint      `json:"creator_id"`
	ParticipantIDs []uint    `json:"participant_ids"`
	UnreadCount    int64     `json:"unread_count,omitempty"`
	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewConversationResponse converts a model into a DTO including participant
// ids when preloaded.
func NewConversationResponse(model models.Conversation) ConversationResponse {
	response := ConversationResponse{
		ID:             model.ID,
		Type:           string(model.Type),
		Name:           model.Name,
		Description:    model.Description,
		AvatarURL:      model.AvatarURL,
		IsPrivate:      model.IsPrivate,
		CreatorID:      model.CreatorID,
		ParticipantIDs: make([]uint, 0, len(model.Participants)),
		LastActivityAt: model.LastActivityAt,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
	for _, participant := range model.Participants {
		response.ParticipantIDs = append(response.ParticipantIDs, participant.UserID)
	}
	return response
}

// NewConversationResponseSlice converts a slice of conversations into DTOs.
func NewConversationResponseSlice(items []models.Conversation) []ConversationResponse {
	out := make([]ConversationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewConversationResponse(item))
	}
	return out
}
