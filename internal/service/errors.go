package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Shared error kinds. Concrete sentinels wrap one of these so errors.Is
// matches both the specific failure and its kind; handlers and the gateway
// translate kinds into HTTP statuses and error-event codes.
var (
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("operation not permitted")
	ErrConflict  = errors.New("conflict with existing state")
	ErrInvalid   = errors.New("invalid request")
)

var (
	// ErrUserNotFound covers unknown user ids, including participant lists
	// that reference users that do not exist.
	ErrUserNotFound = fmt.Errorf("user not found: %w", ErrNotFound)

	// ErrConversationNotFound is returned both for missing conversations and
	// for conversations the caller is not a member of.
	ErrConversationNotFound = fmt.Errorf("conversation not found: %w", ErrNotFound)

	// ErrMessageNotFound covers missing, soft-deleted and foreign-authored
	// messages when the operation is scoped to the sender.
	ErrMessageNotFound = fmt.Errorf("message not found: %w", ErrNotFound)

	// ErrDirectParticipantsFixed rejects membership changes on direct
	// conversations, whose participant pair never changes.
	ErrDirectParticipantsFixed = fmt.Errorf("direct conversation participants cannot change: %w", ErrForbidden)

	// ErrAdminRequired rejects privileged conversation mutations by
	// non-admin members.
	ErrAdminRequired = fmt.Errorf("conversation admin privileges required: %w", ErrForbidden)

	// ErrAlreadyParticipant rejects adding a user who is already a member.
	ErrAlreadyParticipant = fmt.Errorf("user is already a participant: %w", ErrConflict)

	// ErrBlockedCounterpart rejects direct conversations between users with
	// a block relation in either direction.
	ErrBlockedCounterpart = fmt.Errorf("direct conversation with a blocked user: %w", ErrForbidden)
)

// ErrorCode maps an error to the wire-level code carried by gateway error
// events and HTTP error envelopes.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalid):
		return "invalid"
	default:
		return "internal"
	}
}
