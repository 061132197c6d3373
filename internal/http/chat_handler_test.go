package http

import (
	"net/http"
	"testing"

	"github.com/fjod/cybershop/internal/chatbot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatReply(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/chat", ChatRequestDTO{SessionID: "s1", Message: "hi"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[ChatResponseDTO](t, rec)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "re: hi", resp.Reply)

	rec = env.do(t, http.MethodPost, "/api/v1/chat", ChatRequestDTO{Message: "hi"}, asGuest("from-header"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"s1", "from-header"}, env.chat.Sessions)
}

func TestChatReply_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.chat.Err = chatbot.ErrEmptyMessage

	rec := env.do(t, http.MethodPost, "/api/v1/chat", ChatRequestDTO{SessionID: "s1"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.chat.Err = chatbot.ErrMissingSession
	rec = env.do(t, http.MethodPost, "/api/v1/chat", ChatRequestDTO{Message: "hi"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_session", decodeBody[ErrorResponse](t, rec).Code)
}

func TestChatHistory(t *testing.T) {
	env := newTestEnv(t)
	env.chat.Messages = []chatbot.Message{
		{SessionID: "s1", Role: chatbot.RoleUser, Text: "hi"},
		{SessionID: "s1", Role: chatbot.RoleBot, Text: "hello", Intent: chatbot.IntentGreeting},
	}

	rec := env.do(t, http.MethodGet, "/api/v1/chat/s1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[[]chatbot.Message](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, chatbot.IntentGreeting, history[1].Intent)
}
