package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/Ahmad-Mosha/chat-api/internal/dto"
	"github.com/Ahmad-Mosha/chat-api/internal/models"
)

func createTestGroup(t *testing.T, app *fiber.App, creatorID uint, memberIDs ...uint) dto.ConversationResponse {
	t.Helper()

	resp := performJSON(t, app, http.MethodPost, "/api/v1/conversations", creatorID, map[string]interface{}{
		"type":            "group",
		"name":            "core",
		"participant_ids": memberIDs,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Data dto.ConversationResponse `json:"data"`
	}
	decodeResponse(t, resp, &created)
	return created.Data
}

func TestMessageHandlerSendLifecycle(t *testing.T) {
	app, db, delivery := setupChatApp(t)
	alice := seedChatUser(t, db, "alice")
	bob := seedChatUser(t, db, "bob")
	group := createTestGroup(t, app, alice.ID, bob.ID)

	resp := performJSON(t, app, http.MethodPost, "/api/v1/messages", alice.ID, map[string]interface{}{
		"conversation_id": group.ID,
		"content":         "hello <b>team</b>",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sent struct {
		Data    dto.MessageResponse `json:"data"`
		Message string              `json:"message"`
	}
	decodeResponse(t, resp, &sent)
	require.Equal(t, "message sent", sent.Message)
	require.Equal(t, "hello <b>team</b>", sent.Data.Content)
	require.Len(t, delivery.messages, 1)
	require.Equal(t, sent.Data.ID, delivery.messages[0].ID)

	// Editing someone else's message reads as missing.
	resp = performJSON(t, app, http.MethodPut, fmt.Sprintf("/api/v1/messages/%d", sent.Data.ID), bob.ID, map[string]interface{}{
		"content": "hijacked",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = performJSON(t, app, http.MethodPut, fmt.Sprintf("/api/v1/messages/%d", sent.Data.ID), alice.ID, map[string]interface{}{
		"content": "hello everyone",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var edited struct {
		Data dto.MessageResponse `json:"data"`
	}
	decodeResponse(t, resp, &edited)
	require.True(t, edited.Data.Edited)
	require.Equal(t, "hello everyone", edited.Data.Content)
	require.Len(t, delivery.edited, 1)

	resp = performJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/v1/messages/%d", sent.Data.ID), alice.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var deleted struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	decodeResponse(t, resp, &deleted)
	require.True(t, deleted.Success)
	require.Equal(t, "message deleted", deleted.Message)
	require.Len(t, delivery.deleted, 1)
	require.Equal(t, sent.Data.ID, delivery.deleted[0].MessageID)

	// Deleted messages stay hidden from history.
	resp = performJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/conversations/%d/messages", group.ID), alice.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history struct {
		Data dto.MessageHistoryResponse `json:"data"`
	}
	decodeResponse(t, resp, &history)
	require.Zero(t, history.Data.Total)
	require.Empty(t, history.Data.Messages)
}

func TestMessageHandlerReactionToggle(t *testing.T) {
	app, db, delivery := setupChatApp(t)
	alice := seedChatUser(t, db, "alice")
	bob := seedChatUser(t, db, "bob")
	group := createTestGroup(t, app, alice.ID, bob.ID)

	resp := performJSON(t, app, http.MethodPost, "/api/v1/messages", alice.ID, map[string]interface{}{
		"conversation_id": group.ID,
		"content":         "announcement",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sent struct {
		Data dto.MessageResponse `json:"data"`
	}
	decodeResponse(t, resp, &sent)
	path := fmt.Sprintf("/api/v1/messages/%d/reactions", sent.Data.ID)

	resp = performJSON(t, app, http.MethodPost, path, bob.ID, map[string]interface{}{"emoji": "🎉"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var added struct {
		Data    dto.ReactionEvent `json:"data"`
		Message string            `json:"message"`
	}
	decodeResponse(t, resp, &added)
	require.Equal(t, "reaction added", added.Message)
	require.True(t, added.Data.Added)
	require.NotNil(t, added.Data.Reaction)

	resp = performJSON(t, app, http.MethodPost, path, bob.ID, map[string]interface{}{"emoji": "🎉"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var removed struct {
		Data    dto.ReactionEvent `json:"data"`
		Message string            `json:"message"`
	}
	decodeResponse(t, resp, &removed)
	require.Equal(t, "reaction removed", removed.Message)
	require.False(t, removed.Data.Added)
	require.Len(t, delivery.reactions, 2)
}

func TestMessageHandlerHistoryAndSearch(t *testing.T) {
	app, db, _ := setupChatApp(t)
	alice := seedChatUser(t, db, "alice")
	bob := seedChatUser(t, db, "bob")
	carol := seedChatUser(t, db, "carol")
	group := createTestGroup(t, app, alice.ID, bob.ID)

	for _, content := range []string{"deploy window opens", "lunch?", "deploy done"} {
		resp := performJSON(t, app, http.MethodPost, "/api/v1/messages", alice.ID, map[string]interface{}{
			"conversation_id": group.ID,
			"content":         content,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := performJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/conversations/%d/messages?page=1&limit=2", group.ID), alice.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history struct {
		Data dto.MessageHistoryResponse `json:"data"`
	}
	decodeResponse(t, resp, &history)
	require.Equal(t, int64(3), history.Data.Total)
	require.Len(t, history.Data.Messages, 2)
	require.Equal(t, 1, history.Data.Page)
	require.Equal(t, 2, history.Data.Limit)

	resp = performJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/conversations/%d/messages?limit=oops", group.ID), alice.ID, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = performJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/conversations/%d/messages/search?q=deploy", group.ID), alice.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var found struct {
		Data []dto.MessageResponse `json:"data"`
	}
	decodeResponse(t, resp, &found)
	require.Len(t, found.Data, 2)

	// Outsiders cannot search someone else's conversation.
	resp = performJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/conversations/%d/messages/search?q=deploy", group.ID), carol.ID, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMessageHandlerMarkRead(t *testing.T) {
	app, db, delivery := setupChatApp(t)
	alice := seedChatUser(t, db, "alice")
	bob := seedChatUser(t, db, "bob")
	group := createTestGroup(t, app, alice.ID, bob.ID)

	resp := performJSON(t, app, http.MethodPost, "/api/v1/messages", bob.ID, map[string]interface{}{
		"conversation_id": group.ID,
		"content":         "unread",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = performJSON(t, app, http.MethodPost, fmt.Sprintf("/api/v1/conversations/%d/read", group.ID), alice.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var read struct {
		Data    dto.ConversationReadEvent `json:"data"`
		Message string                    `json:"message"`
	}
	decodeResponse(t, resp, &read)
	require.Equal(t, "conversation read", read.Message)
	require.Equal(t, int64(1), read.Data.Count)
	require.Len(t, delivery.reads, 1)

	var markers int64
	require.NoError(t, db.Model(&models.MessageRead{}).Where("user_id = ?", alice.ID).Count(&markers).Error)
	require.Equal(t, int64(1), markers)
}
