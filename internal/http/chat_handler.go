package http

import (
	"net/http"
	"strings"

	"github.com/fjod/cybershop/internal/chatbot"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ChatHandler struct {
	chat   Chat
	logger *zap.Logger
}

func NewChatHandler(chat Chat, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

type ChatRequestDTO struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type ChatResponseDTO struct {
	SessionID string         `json:"session_id"`
	Reply     string         `json:"reply"`
	Intent    chatbot.Intent `json:"intent"`
}

// Reply answers one chat message. The session comes from the body or, when
// absent there, from X-Session-ID.
func (h *ChatHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var req ChatRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = identityFrom(r.Context()).SessionID
	}

	msg, err := h.chat.Reply(r.Context(), sessionID, req.Message)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, ChatResponseDTO{SessionID: msg.SessionID, Reply: msg.Text, Intent: msg.Intent})
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.chat.History(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}
