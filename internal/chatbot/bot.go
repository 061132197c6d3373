// Package chatbot answers storefront support questions from a fixed set of
// keyword rules, deferring everything else to a remote language backend.
package chatbot

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	MaxMessageLength = 1000
	historyLimit     = 100
)

var (
	ErrEmptyMessage   = errors.New("message must not be empty")
	ErrMessageTooLong = errors.New("message is too long")
	ErrMissingSession = errors.New("session id is required")
)

type Bot struct {
	backend Backend
	store   TranscriptStore
	logger  *zap.Logger
	now     func() time.Time
}

// NewBot builds a bot. A nil backend answers unmatched messages with the
// default answer.
func NewBot(backend Backend, store TranscriptStore, logger *zap.Logger) *Bot {
	return &Bot{
		backend: backend,
		store:   store,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (b *Bot) Reply(ctx context.Context, sessionID, message string) (*Message, error) {
	sessionID = strings.TrimSpace(sessionID)
	message = strings.TrimSpace(message)
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	intent, answer := Classify(message)
	if intent == IntentUnknown {
		answer = b.askBackend(ctx, sessionID, message)
	}

	at := b.now()
	userTurn := Message{SessionID: sessionID, Role: RoleUser, Text: message, CreatedAt: at}
	botTurn := Message{SessionID: sessionID, Role: RoleBot, Text: answer, Intent: intent, CreatedAt: at}

	if err := b.store.Append(ctx, userTurn, botTurn); err != nil {
		b.logger.Warn("failed to store chat transcript", zap.String("session_id", sessionID), zap.Error(err))
	}
	return &botTurn, nil
}

func (b *Bot) askBackend(ctx context.Context, sessionID, message string) string {
	if b.backend == nil {
		return defaultAnswer
	}
	answer, err := b.backend.Answer(ctx, sessionID, message)
	if err != nil {
		b.logger.Warn("chat backend failed, using default answer", zap.String("session_id", sessionID), zap.Error(err))
		return defaultAnswer
	}
	return answer
}

func (b *Bot) History(ctx context.Context, sessionID string) ([]Message, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	return b.store.History(ctx, sessionID, historyLimit)
}
