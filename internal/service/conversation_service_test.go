package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Ahmad-Mosha/chat-api/internal/dto"
	"github.com/Ahmad-Mosha/chat-api/internal/models"
	"github.com/Ahmad-Mosha/chat-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type chatServiceEnv struct {
	db            *gorm.DB
	conversations ConversationService
	messages      MessageService
	users         UserService
}

func setupChatServices(t *testing.T) *chatServiceEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:chat_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.UserBlock{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.ConversationAdmin{},
		&models.Message{},
		&models.MessageReaction{},
		&models.MessageRead{},
	))

	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	validate := validator.New(validator.WithRequiredStructEnabled())

	return &chatServiceEnv{
		db:            db,
		conversations: NewConversationService(convRepo, userRepo, msgRepo, validate, testLogger()),
		messages:      NewMessageService(msgRepo, convRepo, validate, testLogger()),
		users:         NewUserService(userRepo, validate, testLogger()),
	}
}

func (e *chatServiceEnv) createUser(t *testing.T, username string) models.User {
	t.Helper()

	user := models.User{Username: username, DisplayName: username, Status: models.UserStatusOffline}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

func (e *chatServiceEnv) createGroup(t *testing.T, creatorID uint, name string, memberIDs ...uint) dto.ConversationResponse {
	t.Helper()

	response, created, err := e.conversations.Create(context.Background(), creatorID, dto.ConversationCreateRequest{
		Type:           "group",
		Name:           name,
		ParticipantIDs: memberIDs,
	})
	require.NoError(t, err)
	require.True(t, created)
	return response
}

func TestConversationServiceCreateGroupGrantsCreatorAdmin(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	response, created, err := env.conversations.Create(context.Background(), alice.ID, dto.ConversationCreateRequest{
		Type:           "group",
		Name:           "  Release <b>Crew</b>  ",
		Description:    "ship <i>things</i>",
		ParticipantIDs: []uint{bob.ID, bob.ID, alice.ID},
	})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "Release Crew", response.Name)
	require.Equal(t, "ship things", response.Description)
	require.Equal(t, alice.ID, response.CreatorID)
	require.ElementsMatch(t, []uint{alice.ID, bob.ID}, response.ParticipantIDs)

	var admins []models.ConversationAdmin
	require.NoError(t, env.db.Where("conversation_id = ?", response.ID).Find(&admins).Error)
	require.Len(t, admins, 1)
	require.Equal(t, alice.ID, admins[0].UserID)
}

func TestConversationServiceCreateGroupRequiresName(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	_, _, err := env.conversations.Create(context.Background(), alice.ID, dto.ConversationCreateRequest{
		Type:           "group",
		Name:           "<script>alert(1)</script>",
		ParticipantIDs: []uint{bob.ID},
	})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestConversationServiceCreateRejectsUnknownParticipants(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")

	_, _, err := env.conversations.Create(context.Background(), alice.ID, dto.ConversationCreateRequest{
		Type:           "group",
		Name:           "ghosts",
		ParticipantIDs: []uint{9999},
	})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestConversationServiceCreateDirectReusesExistingPair(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	ctx := context.Background()

	first, created, err := env.conversations.Create(ctx, alice.ID, dto.ConversationCreateRequest{
		Type:           "direct",
		ParticipantIDs: []uint{bob.ID},
	})
	require.NoError(t, err)
	require.True(t, created)

	// Unread messages surface when the counterpart re-opens the pair.
	_, err = env.messages.Send(ctx, bob.ID, dto.MessageSendRequest{ConversationID: first.ID, Content: "ping"})
	require.NoError(t, err)

	second, created, err := env.conversations.Create(ctx, alice.ID, dto.ConversationCreateRequest{
		Type:           "direct",
		ParticipantIDs: []uint{bob.ID},
	})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, int64(1), second.UnreadCount)
}

func TestConversationServiceCreateDirectRequiresExactlyTwo(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")

	_, _, err := env.conversations.Create(context.Background(), alice.ID, dto.ConversationCreateRequest{
		Type:           "direct",
		ParticipantIDs: []uint{bob.ID, carol.ID},
	})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestConversationServiceCreateDirectRejectsBlockedCounterpart(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	ctx := context.Background()

	require.NoError(t, env.users.Block(ctx, bob.ID, alice.ID))

	// The block applies in both directions.
	_, _, err := env.conversations.Create(ctx, alice.ID, dto.ConversationCreateRequest{
		Type:           "direct",
		ParticipantIDs: []uint{bob.ID},
	})
	require.ErrorIs(t, err, ErrBlockedCounterpart)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestConversationServiceGetHidesForeignConversations(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	group := env.createGroup(t, alice.ID, "core", bob.ID)

	_, err := env.conversations.Get(context.Background(), carol.ID, group.ID)
	require.ErrorIs(t, err, ErrConversationNotFound)

	response, err := env.conversations.Get(context.Background(), bob.ID, group.ID)
	require.NoError(t, err)
	require.Equal(t, group.ID, response.ID)
}

func TestConversationServiceUpdatePermissions(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	ctx := context.Background()
	group := env.createGroup(t, alice.ID, "core", bob.ID)

	newName := "renamed"
	_, err := env.conversations.Update(ctx, bob.ID, group.ID, dto.ConversationUpdateRequest{Name: &newName})
	require.ErrorIs(t, err, ErrAdminRequired)

	updated, err := env.conversations.Update(ctx, alice.ID, group.ID, dto.ConversationUpdateRequest{Name: &newName})
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Name)

	// Direct conversations take metadata patches from either participant.
	direct, created, err := env.conversations.Create(ctx, alice.ID, dto.ConversationCreateRequest{
		Type:           "direct",
		ParticipantIDs: []uint{bob.ID},
	})
	require.NoError(t, err)
	require.True(t, created)

	description := "pair notes"
	patched, err := env.conversations.Update(ctx, bob.ID, direct.ID, dto.ConversationUpdateRequest{Description: &description})
	require.NoError(t, err)
	require.Equal(t, "pair notes", patched.Description)
}

func TestConversationServiceUpdateRejectsEmptyName(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	group := env.createGroup(t, alice.ID, "core", bob.ID)

	blank := "<span> </span>"
	_, err := env.conversations.Update(context.Background(), alice.ID, group.ID, dto.ConversationUpdateRequest{Name: &blank})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestConversationServiceAddParticipant(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	ctx := context.Background()
	group := env.createGroup(t, alice.ID, "core", bob.ID)

	_, err := env.conversations.AddParticipant(ctx, bob.ID, group.ID, carol.ID)
	require.ErrorIs(t, err, ErrAdminRequired)

	response, err := env.conversations.AddParticipant(ctx, alice.ID, group.ID, carol.ID)
	require.NoError(t, err)
	require.Contains(t, response.ParticipantIDs, carol.ID)

	_, err = env.conversations.AddParticipant(ctx, alice.ID, group.ID, carol.ID)
	require.ErrorIs(t, err, ErrAlreadyParticipant)

	_, err = env.conversations.AddParticipant(ctx, alice.ID, group.ID, 9999)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestConversationServiceDirectMembershipIsFixed(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	ctx := context.Background()

	direct, _, err := env.conversations.Create(ctx, alice.ID, dto.ConversationCreateRequest{
		Type:           "direct",
		ParticipantIDs: []uint{bob.ID},
	})
	require.NoError(t, err)

	_, err = env.conversations.AddParticipant(ctx, alice.ID, direct.ID, carol.ID)
	require.ErrorIs(t, err, ErrDirectParticipantsFixed)

	_, err = env.conversations.RemoveParticipant(ctx, alice.ID, direct.ID, bob.ID)
	require.ErrorIs(t, err, ErrDirectParticipantsFixed)
}

func TestConversationServiceRemoveParticipant(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	ctx := context.Background()
	group := env.createGroup(t, alice.ID, "core", bob.ID, carol.ID)

	// Removing someone else takes an admin grant.
	_, err := env.conversations.RemoveParticipant(ctx, bob.ID, group.ID, carol.ID)
	require.ErrorIs(t, err, ErrAdminRequired)

	// Members may always leave on their own.
	response, err := env.conversations.RemoveParticipant(ctx, bob.ID, group.ID, bob.ID)
	require.NoError(t, err)
	require.NotContains(t, response.ParticipantIDs, bob.ID)

	response, err = env.conversations.RemoveParticipant(ctx, alice.ID, group.ID, carol.ID)
	require.NoError(t, err)
	require.NotContains(t, response.ParticipantIDs, carol.ID)

	_, err = env.conversations.RemoveParticipant(ctx, alice.ID, group.ID, carol.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConversationServiceListOrdersByActivityAndCountsUnread(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	ctx := context.Background()

	first := env.createGroup(t, alice.ID, "first", bob.ID)
	second := env.createGroup(t, alice.ID, "second", bob.ID)

	// Activity in the older conversation moves it back to the front.
	_, err := env.messages.Send(ctx, bob.ID, dto.MessageSendRequest{ConversationID: first.ID, Content: "hello"})
	require.NoError(t, err)

	listed, err := env.conversations.List(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, first.ID, listed[0].ID)
	require.Equal(t, int64(1), listed[0].UnreadCount)
	require.Equal(t, second.ID, listed[1].ID)
	require.Zero(t, listed[1].UnreadCount)
}
