package dto

import (
	"time"

	"github.com/Ahmad-Mosha/chat-api/internal/models"
)

// UserResponse is the serialized representation of a user profile.
type UserResponse struct {
	ID          uint      `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Status      string    `json:"status"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewUserResponse converts a user model into a DTO.
func NewUserResponse(model models.User) UserResponse {
	return UserResponse{
		ID:          model.ID,
		Username:    model.Username,
		DisplayName: model.DisplayName,
		AvatarURL:   model.AvatarURL,
		Status:      string(model.Status),
		LastSeenAt:  model.LastSeenAt,
		CreatedAt:   model.CreatedAt,
	}
}

// NewUserResponseSlice converts a slice of users into DTOs.
func NewUserResponseSlice(items []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewUserResponse(item))
	}
	return out
}

// StatusUpdateRequest sets the caller's presence status.
type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=online away busy offline"`
}
