package handler

import (
	"net/http"

	"github.com/teamsheet/platform/internal/auth"
	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/repository"
	"github.com/teamsheet/platform/internal/service"
)

// ChatHandler handles the per-match chat.
type ChatHandler struct {
	chat    *service.ChatService
	adapter *repository.Adapter
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chat *service.ChatService, adapter *repository.Adapter) *ChatHandler {
	return &ChatHandler{chat: chat, adapter: adapter}
}

// List handles GET /v1/matches/{matchID}/messages, oldest first.
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		RespondError(w, err)
		return
	}
	msgs, err := repository.List[domain.ChatMessage](r.Context(), h.adapter, auth.TeamFromContext(r.Context()), domain.MessagesCollection(matchID), "timestamp")
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, msgs)
}

type postMessageRequest struct {
	Text string `json:"text"`
}

// Post handles POST /v1/matches/{matchID}/messages. Clients send an
// Idempotency-Key header so retries do not duplicate the message.
func (h *ChatHandler) Post(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		RespondError(w, err)
		return
	}
	playerID, _, err := actor(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var req postMessageRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	msg, err := h.chat.Post(r.Context(), auth.TeamFromContext(r.Context()), matchID, playerID, req.Text, r.Header.Get("Idempotency-Key"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, msg)
}

// Delete handles DELETE /v1/matches/{matchID}/messages/{messageID}.
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		RespondError(w, err)
		return
	}
	playerID, role, err := actor(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	if err := h.chat.Delete(r.Context(), auth.TeamFromContext(r.Context()), matchID, chiParam(r, "messageID"), playerID, role); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

type reactRequest struct {
	Emoji string `json:"emoji"`
}

// React handles POST /v1/matches/{matchID}/messages/{messageID}/reactions.
func (h *ChatHandler) React(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		RespondError(w, err)
		return
	}
	playerID, _, err := actor(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var req reactRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	msg, err := h.chat.React(r.Context(), auth.TeamFromContext(r.Context()), matchID, chiParam(r, "messageID"), req.Emoji, playerID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, msg)
}
