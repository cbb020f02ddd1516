package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/Ahmad-Mosha/chat-api/internal/dto"
	"github.com/Ahmad-Mosha/chat-api/internal/models"
)

func TestUserServiceGet(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")

	response, err := env.users.Get(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Equal(t, alice.ID, response.ID)
	require.Equal(t, "alice", response.Username)
	require.Equal(t, "offline", response.Status)

	_, err = env.users.Get(context.Background(), 9999)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserServiceUpdateStatusPersists(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")

	event, err := env.users.UpdateStatus(context.Background(), alice.ID, dto.StatusUpdateRequest{Status: "away"})
	require.NoError(t, err)
	require.Equal(t, alice.ID, event.UserID)
	require.Equal(t, "away", event.Status)
	require.NotNil(t, event.LastSeenAt)
	require.WithinDuration(t, time.Now().UTC(), *event.LastSeenAt, 5*time.Second)

	var stored models.User
	require.NoError(t, env.db.First(&stored, alice.ID).Error)
	require.Equal(t, models.UserStatusAway, stored.Status)
}

func TestUserServiceUpdateStatusRejectsUnknownValues(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")

	_, err := env.users.UpdateStatus(context.Background(), alice.ID, dto.StatusUpdateRequest{Status: "invisible"})
	require.Error(t, err)

	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
}

func TestUserServiceSetPresenceUnknownUser(t *testing.T) {
	env := setupChatServices(t)

	_, err := env.users.SetPresence(context.Background(), 9999, models.UserStatusOnline)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserServiceBlockLifecycle(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	ctx := context.Background()

	require.ErrorIs(t, env.users.Block(ctx, alice.ID, alice.ID), ErrInvalid)
	require.ErrorIs(t, env.users.Block(ctx, alice.ID, 9999), ErrUserNotFound)

	require.NoError(t, env.users.Block(ctx, alice.ID, bob.ID))
	// Repeating a block is a no-op, not a conflict.
	require.NoError(t, env.users.Block(ctx, alice.ID, bob.ID))

	var count int64
	require.NoError(t, env.db.Model(&models.UserBlock{}).Where("blocker_id = ?", alice.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)

	require.NoError(t, env.users.Unblock(ctx, alice.ID, bob.ID))
	require.ErrorIs(t, env.users.Unblock(ctx, alice.ID, bob.ID), ErrNotFound)
}
