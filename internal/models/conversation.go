package models

import "time"

// ConversationType enumerates the supported conversation kinds.
type ConversationType string

const (
	ConversationTypeDirect  ConversationType = "direct"
	ConversationTypeGroup   ConversationType = "group"
	ConversationTypeChannel ConversationType = "channel"
)

// Valid reports whether the type is one of the known kinds.
func (t ConversationType) Valid() bool {
	switch t {
	case ConversationTypeDirect, ConversationTypeGroup, ConversationTypeChannel:
		return true
	}
	return false
}

// Conversation groups a set of participants exchanging messages. Direct
// conversations hold exactly two fixed participants and carry no admin grants.
type Conversation struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	Type           ConversationType `gorm:"size:16;not null;index" json:"type"`
	Name           string           `gorm:"size:255" json:"name"`
	Description    string           `gorm:"type:text" json:"description"`
	AvatarURL      string           `gorm:"size:512" json:"avatar_url"`
	IsPrivate      bool             `gorm:"not null;default:false" json:"is_private"`
	CreatorID      uint             `gorm:"index;not null" json:"creator_id"`
	LastActivityAt time.Time        `gorm:"index" json:"last_activity_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

// ConversationParticipant is the membership record binding a user to a conversation.
type ConversationParticipant struct {
	ConversationID uint      `gorm:"primaryKey;autoIncrement:false" json:"conversation_id"`
	UserID         uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	JoinedAt       time.Time `json:"joined_at"`
}

// ConversationAdmin grants elevated rights on group and channel conversations.
type ConversationAdmin struct {
	ConversationID uint      `gorm:"primaryKey;autoIncrement:false" json:"conversation_id"`
	UserID         uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	GrantedAt      time.Time `json:"granted_at"`
}
