package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/guard"
	"github.com/teamsheet/platform/internal/repository"
)

// ChatService posts to the per-match chat.
type ChatService struct {
	adapter *repository.Adapter
	dedupe  *guard.IdempotencyGuard
	logger  *slog.Logger
}

// NewChatService creates a ChatService. Posts carrying an idempotency key already
// seen by dedupe are rejected.
func NewChatService(adapter *repository.Adapter, dedupe *guard.IdempotencyGuard, logger *slog.Logger) *ChatService {
	return &ChatService{adapter: adapter, dedupe: dedupe, logger: logger}
}

// Post adds a message by playerID. Retries with the same key return ErrConflict.
func (s *ChatService) Post(ctx context.Context, teamID string, matchID, playerID int64, text, idempotencyKey string) (domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatMessage{}, domain.ErrValidation("message text is required")
	}

	key := ""
	if idempotencyKey != "" {
		key = teamID + ":" + idempotencyKey
	}
	if res := s.dedupe.Check(ctx, key); !res.Allowed {
		return domain.ChatMessage{}, domain.ErrConflict(res.Reason)
	}

	msg, err := s.adapter.AddMessage(ctx, teamID, matchID, domain.ChatMessage{PlayerID: playerID, Text: text})
	if err != nil {
		s.dedupe.Remove(key)
		return domain.ChatMessage{}, err
	}
	s.logger.Debug("chat message posted", "team_id", teamID, "match_id", matchID, "message_id", msg.ID)
	return msg, nil
}

// Delete removes a message. Only its author or a manager may delete it.
func (s *ChatService) Delete(ctx context.Context, teamID string, matchID int64, messageID string, playerID int64, role domain.Role) error {
	msg, err := repository.Get[domain.ChatMessage](ctx, s.adapter, teamID, domain.MessagesCollection(matchID), messageID)
	if err != nil {
		return err
	}
	if msg.PlayerID != playerID && !role.CanManage() {
		return domain.ErrForbidden("only the author can delete this message")
	}
	return s.adapter.DeleteMessage(ctx, teamID, matchID, messageID)
}

// React toggles playerID's reaction on a message.
func (s *ChatService) React(ctx context.Context, teamID string, matchID int64, messageID, emoji string, playerID int64) (domain.ChatMessage, error) {
	if emoji == "" {
		return domain.ChatMessage{}, domain.ErrValidation("emoji is required")
	}
	return s.adapter.ToggleReaction(ctx, teamID, matchID, messageID, emoji, playerID)
}
