package models

import (
	"time"

	"gorm.io/datatypes"
)

// MessageType enumerates the supported message payload kinds.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeVideo  MessageType = "video"
	MessageTypeAudio  MessageType = "audio"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// Valid reports whether the type is one of the known kinds.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeAudio, MessageTypeFile, MessageTypeSystem:
		return true
	}
	return false
}

// MessageStatus tracks the delivery state of a message.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// Message is a single entry in a conversation's log. Deletion is a soft flag:
// deleted messages stay addressable as reply targets but are excluded from
// history, search and counts.
type Message struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	ConversationID uint              `gorm:"index;not null" json:"conversation_id"`
	SenderID       uint              `gorm:"index;not null" json:"sender_id"`
	Content        string            `gorm:"type:text" json:"content"`
	Type           MessageType       `gorm:"size:16;not null;default:text" json:"type"`
	Status         MessageStatus     `gorm:"size:16;not null;default:sent" json:"status"`
	ReplyToID      *uint             `gorm:"index" json:"reply_to_id,omitempty"`
	Metadata       datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	Edited         bool              `gorm:"not null;default:false" json:"edited"`
	EditedAt       *time.Time        `json:"edited_at,omitempty"`
	Deleted        bool              `gorm:"not null;default:false;index" json:"deleted"`
	DeletedAt      *time.Time        `json:"deleted_at,omitempty"`
	CreatedAt      time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`

	Sender    User              `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Reactions []MessageReaction `gorm:"foreignKey:MessageID" json:"reactions,omitempty"`
}

// MessageReaction records a single emoji reaction. The composite unique index
// backs the toggle semantics: a second identical reaction removes the first.
type MessageReaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID uint      `gorm:"not null;uniqueIndex:idx_message_reactions_toggle" json:"message_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_message_reactions_toggle" json:"user_id"`
	Emoji     string    `gorm:"size:32;not null;uniqueIndex:idx_message_reactions_toggle" json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageRead marks that a user has seen a message. At most one row per
// (message, user) pair; the unique index keeps mark-as-read idempotent.
type MessageRead struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID uint      `gorm:"not null;uniqueIndex:idx_message_reads_marker" json:"message_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_message_reads_marker;index" json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
}

// Attachment is a stored upload referenced from file-typed message metadata.
type Attachment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UploaderID uint      `gorm:"index" json:"uploader_id"`
	FileName   string    `gorm:"size:255;not null" json:"file_name"`
	URL        string    `gorm:"size:1024;not null" json:"url"`
	MimeType   string    `gorm:"size:128" json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	Checksum   string    `gorm:"size:64;index" json:"checksum"`
	CreatedAt  time.Time `json:"created_at"`
}
