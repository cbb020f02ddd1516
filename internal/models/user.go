package models

import "time"

// UserStatus enumerates the durable availability states of a user.
type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusOffline UserStatus = "offline"
	UserStatusAway    UserStatus = "away"
	UserStatusBusy    UserStatus = "busy"
)

// Valid reports whether the status is one of the known states.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusOnline, UserStatusOffline, UserStatusAway, UserStatusBusy:
		return true
	}
	return false
}

// User represents a chat participant. Identity issuance lives in the auth
// subsystem; this service reads identity fields and owns status/last-seen.
type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Username    string     `gorm:"size:64;uniqueIndex;not null" json:"username"`
	DisplayName string     `gorm:"size:255" json:"display_name"`
	AvatarURL   string     `gorm:"size:512" json:"avatar_url"`
	Status      UserStatus `gorm:"size:16;not null;default:offline" json:"status"`
	LastSeenAt  time.Time  `json:"last_seen_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// UserBlock records that blocker does not want contact with blocked.
type UserBlock struct {
	BlockerID uint      `gorm:"primaryKey;autoIncrement:false" json:"blocker_id"`
	BlockedID uint      `gorm:"primaryKey;autoIncrement:false" json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}
