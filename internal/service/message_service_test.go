package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ahmad-Mosha/chat-api/internal/dto"
	"github.com/Ahmad-Mosha/chat-api/internal/models"
)

func TestMessageServiceSendSanitizesAndBumpsActivity(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	ctx := context.Background()
	group := env.createGroup(t, alice.ID, "core", bob.ID)

	var before models.Conversation
	require.NoError(t, env.db.First(&before, group.ID).Error)

	response, err := env.messages.Send(ctx, alice.ID, dto.MessageSendRequest{
		ConversationID: group.ID,
		Content:        "<script>alert(1)</script>Hello <b>team</b>",
	})
	require.NoError(t, err)
	require.Equal(t, "Hello <b>team</b>", response.Content)
	require.Equal(t, "text", response.Type)
	require.Equal(t, "sent", response.Status)
	require.NotNil(t, response.Sender)
	require.Equal(t, "alice", response.Sender.Username)

	var after models.Conversation
	require.NoError(t, env.db.First(&after, group.ID).Error)
	require.True(t, after.LastActivityAt.After(before.LastActivityAt))
}

func TestMessageServiceSendRejectsOutsiders(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	group := env.createGroup(t, alice.ID, "core", bob.ID)

	_, err := env.messages.Send(context.Background(), carol.ID, dto.MessageSendRequest{
		ConversationID: group.ID,
		Content:        "let me in",
	})
	require.ErrorIs(t, err, ErrConversationNotFound)
}

func TestMessageServiceSendRejectsContentEmptyAfterSanitization(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	group := env.createGroup(t, alice.ID, "core", bob.ID)

	_, err := env.messages.Send(context.Background(), alice.ID, dto.MessageSendRequest{
		ConversationID: group.ID,
		Content:        "<script>alert(1)</script>",
	})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestMessageServiceSendMediaRequiresSourceURL(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	ctx := context.Background()
	group := env.createGroup(t, alice.ID, "core", bob.ID)

	_, err := env.messages.Send(ctx, alice.ID, dto.MessageSendRequest{
		ConversationID: group.ID,
		Type:           "image",
	})
	require.ErrorIs(t, err, ErrInvalid)

	response, err := env.messages.Send(ctx, alice.ID, dto.MessageSendRequest{
		ConversationID: group.ID,
		Type:           "image",
		Metadata:       map[string]interface{}{"url": "https://cdn.test/shot.png", "width": 800},
	})
	require.NoError(t, err)
	require.Equal(t, "image", response.Type)
	require.Equal(t, "https://cdn.test/shot.png", response.Metadata["url"])
}

func TestMessageServiceSendValidatesReplyTarget(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	ctx := context.Background()
	group := env.createGroup(t, alice.ID, "core", bob.ID)
	other := env.createGroup(t, alice.ID, "other", bob.ID)

	missing := uint(9999)
	_, err := env.messages.Send(ctx, alice.ID, dto.MessageSendRequest{
		ConversationID: group.ID,
		Content:        "re",
		ReplyToID:      &missing,
	})
	require.ErrorIs(t, err, ErrInvalid)

	foreign, err := env.messages.Send(ctx, alice.ID, dto.MessageSendRequest{ConversationID: other.ID, Content: "elsewhere"})
	require.NoError(t, err)

	_, err = env.messages.Send(ctx, alice.ID, dto.MessageSendRequest{
		ConversationID: group.ID,
		Content:        "re",
		ReplyToID:      &foreign.ID,
	})
	require.ErrorIs(t, err, ErrInvalid)

	target, err := env.messages.Send(ctx, bob.ID, dto.MessageSendRequest{ConversationID: group.ID, Content: "original"})
	require.NoError(t, err)

	reply, err := env.messages.Send(ctx, alice.ID, dto.MessageSendRequest{
		ConversationID: group.ID,
		Content:        "agreed",
		ReplyToID:      &target.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyToID)
	require.Equal(t, target.ID, *reply.ReplyToID)
}

func TestMessageServiceHistoryPaginatesNewestFirst(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	ctx := context.Background()
	group := env.createGroup(t, alice.ID, "core", bob.ID)

	contents := []string{"one", "two", "three"}
	for _, content := range contents {
		_, err := env.messages.Send(ctx, alice.ID, dto.MessageSendRequest{ConversationID: group.ID, Content: content})
		require.NoError(t, err)
	}

	// Page one is the newest window, chronological inside the page.
	page, err := env.messages.History(ctx, alice.ID, group.ID, dto.MessageHistoryQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), page.Total)
	require.Len(t, page.Messages, 2)
	require.Equal(t, "two", page.Messages[0].Content)
	require.Equal(t, "three", page.Messages[1].Content)

	page, err = env.messages.History(ctx, alice.ID, group.ID, dto.MessageHistoryQuery{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	require.Equal(t, "one", page.Messages[0].Content)

	// Out-of-range values fall back to the defaults.
	page, err = env.messages.History(ctx, alice.ID, group.ID, dto.MessageHistoryQuery{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 50, page.Limit)
	require.Len(t, page.Messages, 3)
}

func TestMessageServiceHistoryHidesFromOutsiders(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	group := env.createGroup(t, alice.ID, "core", bob.ID)

	_, err := env.messages.History(context.Background(), carol.ID, group.ID, dto.MessageHistoryQuery{})
	require.ErrorIs(t, err, ErrConversationNotFound)
}

func TestMessageServiceEditIsSenderScoped(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	ctx := context.Background()
	group := env.createGroup(t, alice.ID, "core", bob.ID)

	msg, err := env.messages.Send(ctx, alice.ID, dto.MessageSendRequest{ConversationID: group.ID, Content: "draft"})
	require.NoError(t, err)

	// Someone else's message reads as missing, not forbidden.
	_, err = env.messages.Edit(ctx, bob.ID, msg.ID, dto.MessageEditRequest{Content: "hijacked"})
	require.ErrorIs(t, err, ErrMessageNotFound)

	edited, err := env.messages.Edit(ctx, alice.ID, msg.ID, dto.MessageEditRequest{Content: "final <script>x</script>text"})
	require.NoError(t, err)
	require.Equal(t, "final text", edited.Content)
	require.True(t, edited.Edited)
	require.NotNil(t, edited.EditedAt)

	_, err = env.messages.Delete(ctx, alice.ID, msg.ID)
	require.NoError(t, err)

	_, err = env.messages.Edit(ctx, alice.ID, msg.ID, dto.MessageEditRequest{Content: "too late"})
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessageServiceDeletePermissions(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	ctx := context.Background()
	group := env.createGroup(t, alice.ID, "core", bob.ID, carol.ID)

	msg, err := env.messages.Send(ctx, bob.ID, dto.MessageSendRequest{ConversationID: group.ID, Content: "remove me"})
	require.NoError(t, err)

	// A plain member cannot delete someone else's message.
	_, err = env.messages.Delete(ctx, carol.ID, msg.ID)
	require.ErrorIs(t, err, ErrForbidden)

	// The conversation admin can.
	event, err := env.messages.Delete(ctx, alice.ID, msg.ID)
	require.NoError(t, err)
	require.Equal(t, msg.ID, event.MessageID)
	require.Equal(t, group.ID, event.ConversationID)

	_, err = env.messages.Delete(ctx, alice.ID, msg.ID)
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessageServiceReactTogglesPerEmoji(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	ctx := context.Background()
	group := env.createGroup(t, alice.ID, "core", bob.ID)

	msg, err := env.messages.Send(ctx, alice.ID, dto.MessageSendRequest{ConversationID: group.ID, Content: "announcement"})
	require.NoError(t, err)

	added, err := env.messages.React(ctx, bob.ID, msg.ID, dto.ReactionRequest{Emoji: "🎉"})
	require.NoError(t, err)
	require.True(t, added.Added)
	require.Equal(t, group.ID, added.ConversationID)
	require.NotNil(t, added.Reaction)
	require.Equal(t, "🎉", added.Reaction.Emoji)

	removed, err := env.messages.React(ctx, bob.ID, msg.ID, dto.ReactionRequest{Emoji: "🎉"})
	require.NoError(t, err)
	require.False(t, removed.Added)
	require.Nil(t, removed.Reaction)

	_, err = env.messages.React(ctx, bob.ID, 9999, dto.ReactionRequest{Emoji: "🎉"})
	require.ErrorIs(t, err, ErrMessageNotFound)

	_, err = env.messages.Delete(ctx, alice.ID, msg.ID)
	require.NoError(t, err)
	_, err = env.messages.React(ctx, bob.ID, msg.ID, dto.ReactionRequest{Emoji: "👀"})
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessageServiceMarkReadConverges(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	ctx := context.Background()
	group := env.createGroup(t, alice.ID, "core", bob.ID)

	for _, content := range []string{"one", "two"} {
		_, err := env.messages.Send(ctx, bob.ID, dto.MessageSendRequest{ConversationID: group.ID, Content: content})
		require.NoError(t, err)
	}

	event, err := env.messages.MarkRead(ctx, alice.ID, group.ID)
	require.NoError(t, err)
	require.Equal(t, group.ID, event.ConversationID)
	require.Equal(t, alice.ID, event.UserID)
	require.Equal(t, int64(2), event.Count)
	require.WithinDuration(t, time.Now().UTC(), event.ReadAt, 5*time.Second)

	event, err = env.messages.MarkRead(ctx, alice.ID, group.ID)
	require.NoError(t, err)
	require.Zero(t, event.Count)

	_, err = env.messages.MarkRead(ctx, carol.ID, group.ID)
	require.ErrorIs(t, err, ErrConversationNotFound)
}

func TestMessageServiceSearchIsMemberScoped(t *testing.T) {
	env := setupChatServices(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	ctx := context.Background()
	group := env.createGroup(t, alice.ID, "core", bob.ID)

	_, err := env.messages.Send(ctx, alice.ID, dto.MessageSendRequest{ConversationID: group.ID, Content: "Deploy notes for Friday"})
	require.NoError(t, err)
	_, err = env.messages.Send(ctx, bob.ID, dto.MessageSendRequest{ConversationID: group.ID, Content: "lunch?"})
	require.NoError(t, err)

	results, err := env.messages.Search(ctx, alice.ID, group.ID, dto.MessageSearchQuery{Query: "DEPLOY", Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Deploy notes for Friday", results[0].Content)

	_, err = env.messages.Search(ctx, carol.ID, group.ID, dto.MessageSearchQuery{Query: "deploy", Limit: 10})
	require.ErrorIs(t, err, ErrConversationNotFound)
}
