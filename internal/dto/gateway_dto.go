package dto

import (
	"encoding/json"
	"time"
)

// Gateway event names, shared by both directions of the socket and by the
// cross-node bus.
const (
	EventConversationJoin = "conversation.join"
	EventMessageSend      = "message.send"
	EventMessageEdit      = "message.edit"
	EventMessageDelete    = "message.delete"
	EventMessageReact     = "message.react"
	EventConversationRead = "conversation.read"
	EventTypingStart      = "typing.start"
	EventTypingStop       = "typing.stop"

	// presence.status is both an inbound command and the outbound broadcast.
	EventPresenceStatus = "presence.status"

	EventConversationCreated = "conversation.created"
	EventConversationUpdated = "conversation.updated"
	EventConversationJoined  = "conversation.joined"
	EventConversationLeft    = "conversation.left"
	EventMessageNew          = "message.new"
	EventMessageEdited       = "message.edited"
	EventMessageDeleted      = "message.deleted"
	EventMessageReaction     = "message.reaction"
	EventPresenceOnline      = "presence.online"
	EventPresenceOffline     = "presence.offline"
	EventError               = "error"
)

// GatewayEnvelope frames every inbound gateway frame; data stays raw until the
// event name selects a payload type.
type GatewayEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// GatewayEvent frames every outbound gateway frame.
type GatewayEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// GatewayJoinPayload subscribes the connection to a conversation room.
type GatewayJoinPayload struct {
	ConversationID uint `json:"conversation_id" validate:"required"`
}

// GatewayMessageEditPayload edits an own message over the socket.
type GatewayMessageEditPayload struct {
	MessageID uint   `json:"message_id" validate:"required"`
	Content   string `json:"content" validate:"required,min=1,max=4000"`
}

// GatewayMessageDeletePayload soft-deletes a message over the socket.
type GatewayMessageDeletePayload struct {
	MessageID uint `json:"message_id" validate:"required"`
}

// GatewayReactionPayload toggles a reaction over the socket.
type GatewayReactionPayload struct {
	MessageID uint   `json:"message_id" validate:"required"`
	Emoji     string `json:"emoji" validate:"required,min=1,max=32"`
}

// GatewayReadPayload marks a conversation read over the socket.
type GatewayReadPayload struct {
	ConversationID uint `json:"conversation_id" validate:"required"`
}

// GatewayTypingPayload starts or stops a typing indicator.
type GatewayTypingPayload struct {
	ConversationID uint `json:"conversation_id" validate:"required"`
}

// GatewayErrorPayload is sent to the acting connection when an inbound frame
// fails; the connection itself stays up.
type GatewayErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TypingEvent notifies a room that a member started or stopped typing.
type TypingEvent struct {
	ConversationID uint `json:"conversation_id"`
	UserID         uint `json:"user_id"`
}

// PresenceEvent announces a user's presence or durable status change.
type PresenceEvent struct {
	UserID     uint       `json:"user_id"`
	Status     string     `json:"status"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// MessageDeletedEvent notifies a room that a message was removed.
type MessageDeletedEvent struct {
	MessageID      uint `json:"message_id"`
	ConversationID uint `json:"conversation_id"`
}

// ReactionEvent carries the outcome of a reaction toggle. Reaction is set
// only when the toggle added one.
type ReactionEvent struct {
	MessageID      uint              `json:"message_id"`
	ConversationID uint              `json:"conversation_id"`
	UserID         uint              `json:"user_id"`
	Emoji          string            `json:"emoji"`
	Added          bool              `json:"added"`
	Reaction       *ReactionResponse `json:"reaction,omitempty"`
}

// ConversationReadEvent reports a read-marker backfill to the room.
type ConversationReadEvent struct {
	ConversationID uint      `json:"conversation_id"`
	UserID         uint      `json:"user_id"`
	Count          int64     `json:"count"`
	ReadAt         time.Time `json:"read_at"`
}

// ParticipantEvent reports membership changes. Conversation is attached for
// joins so the new member can render the conversation without a fetch.
type ParticipantEvent struct {
	ConversationID uint                  `json:"conversation_id"`
	UserID         uint                  `json:"user_id"`
	Conversation   *ConversationResponse `json:"conversation,omitempty"`
}
