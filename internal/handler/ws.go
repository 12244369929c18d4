package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/teamsheet/platform/internal/auth"
	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/infra"
	"github.com/teamsheet/platform/internal/mirror"
	"github.com/teamsheet/platform/internal/repository"
	"github.com/teamsheet/platform/internal/store"
)

const (
	// EventSnapshot carries a changed team state to subscribed clients.
	EventSnapshot = "snapshot"
	// EventChat carries the full chat of a match that a client asked to follow.
	EventChat = "chat"
)

// ChatUpdate is the payload of EventChat.
type ChatUpdate struct {
	MatchID  int64                `json:"matchId"`
	Messages []domain.ChatMessage `json:"messages"`
}

// Snapshot is the payload of EventSnapshot. Collection names what changed; it is
// empty for the initial push after connecting.
type Snapshot struct {
	Collection string       `json:"collection,omitempty"`
	State      mirror.State `json:"state"`
}

func newSnapshot(collection string, s mirror.State) Snapshot {
	s.Players = redact(s.Players)
	return Snapshot{Collection: collection, State: s}
}

// SubscribeHandler upgrades authenticated clients to a WebSocket that receives
// the team's snapshots and stopwatch alerts, plus the chat of a match when asked.
type SubscribeHandler struct {
	hub      *infra.WSHub
	tickets  *auth.TicketManager
	registry *mirror.Registry
	adapter  *repository.Adapter
	logger   *slog.Logger

	chatMu sync.Mutex
	chats  map[chatKey]*chatFeed
}

type chatKey struct {
	teamID  string
	matchID int64
}

// chatFeed is one message subscription shared by every connection following
// the same match.
type chatFeed struct {
	refs  int
	unsub store.Unsubscribe
	last  []domain.ChatMessage
}

// NewSubscribeHandler creates a SubscribeHandler and hooks it into every mirror
// the registry opens.
func NewSubscribeHandler(hub *infra.WSHub, tickets *auth.TicketManager, registry *mirror.Registry, adapter *repository.Adapter, logger *slog.Logger) *SubscribeHandler {
	h := &SubscribeHandler{
		hub:      hub,
		tickets:  tickets,
		registry: registry,
		adapter:  adapter,
		logger:   logger,
		chats:    make(map[chatKey]*chatFeed),
	}
	registry.OnOpen(h.attach)
	return h
}

// attach forwards every snapshot of a team's mirror to the team's room.
func (h *SubscribeHandler) attach(teamID string, m *mirror.Mirror) {
	m.OnChange(func(collection string, s mirror.State) {
		h.hub.Publish(teamID, EventSnapshot, newSnapshot(collection, s))
	})
}

// Subscribe handles GET /v1/ws?ticket=...[&match=ID]. Browsers cannot set
// headers on the handshake, so a short-lived ticket from /v1/auth/ticket stands
// in for the JWT. With match set the team's room also receives that match's chat.
func (h *SubscribeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.tickets.Validate(r.URL.Query().Get("ticket"))
	if err != nil {
		RespondError(w, domain.ErrUnauthorized("invalid ticket"))
		return
	}
	if !ticket.Allows(ScopeSubscribe) {
		RespondError(w, domain.ErrForbidden("ticket does not allow subscribing"))
		return
	}

	ctx := auth.WithClaims(r.Context(), ticket.Claims())
	m, err := h.registry.Get(ctx, ticket.TeamID)
	if err != nil {
		RespondError(w, err)
		return
	}

	var matchID int64
	if raw := r.URL.Query().Get("match"); raw != "" {
		matchID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || matchID <= 0 {
			RespondError(w, domain.ErrValidation("invalid match"))
			return
		}
		if _, ok := m.State().Match(matchID); !ok {
			RespondError(w, domain.ErrNotFound("match", raw))
			return
		}
	}

	var key chatKey
	err = h.hub.Serve(w, r.WithContext(ctx), ticket.TeamID, ticket.PlayerID, func(c *infra.WSConn) {
		h.push(c, EventSnapshot, newSnapshot("", m.State()))
		if matchID == 0 {
			return
		}
		key = chatKey{teamID: ticket.TeamID, matchID: matchID}
		if last, ok := h.followChat(context.WithoutCancel(ctx), key); ok {
			h.push(c, EventChat, ChatUpdate{MatchID: matchID, Messages: last})
		}
	})
	if key.matchID != 0 {
		h.unfollowChat(key)
	}
	if err != nil {
		h.logger.Warn("ws subscribe failed", "error", err, "team_id", ticket.TeamID)
	}
}

// push sends one event to a single connection.
func (h *SubscribeHandler) push(c *infra.WSConn, event string, data interface{}) {
	payload, err := json.Marshal(infra.WSMessage{Event: event, Data: data})
	if err != nil {
		h.logger.Error("ws marshal error", "error", err, "room", c.Room, "event", event)
		return
	}
	select {
	case c.Send <- payload:
	default:
		h.logger.Warn("ws send buffer full", "conn_id", c.ID, "room", c.Room)
	}
}

// followChat opens the message subscription of key on first use. When the feed
// already delivered, the latest messages are returned for the new connection.
func (h *SubscribeHandler) followChat(ctx context.Context, key chatKey) ([]domain.ChatMessage, bool) {
	h.chatMu.Lock()
	defer h.chatMu.Unlock()

	if f, ok := h.chats[key]; ok {
		f.refs++
		return f.last, f.last != nil
	}
	f := &chatFeed{refs: 1}
	h.chats[key] = f
	f.unsub = h.adapter.SubscribeToMessages(ctx, key.teamID, key.matchID,
		func(msgs []domain.ChatMessage) {
			h.chatMu.Lock()
			if h.chats[key] != f {
				h.chatMu.Unlock()
				return
			}
			f.last = msgs
			h.chatMu.Unlock()
			h.hub.Publish(key.teamID, EventChat, ChatUpdate{MatchID: key.matchID, Messages: msgs})
		},
		func(err error) {
			h.logger.Warn("chat subscription error", "team_id", key.teamID, "match_id", key.matchID, "error", err)
		})
	return nil, false
}

// unfollowChat drops one reference and closes the subscription with the last.
func (h *SubscribeHandler) unfollowChat(key chatKey) {
	h.chatMu.Lock()
	f, ok := h.chats[key]
	if !ok {
		h.chatMu.Unlock()
		return
	}
	f.refs--
	if f.refs > 0 {
		h.chatMu.Unlock()
		return
	}
	delete(h.chats, key)
	h.chatMu.Unlock()
	f.unsub()
}

// followers reports how many connections follow the chat of a match.
func (h *SubscribeHandler) followers(teamID string, matchID int64) int {
	h.chatMu.Lock()
	defer h.chatMu.Unlock()
	if f, ok := h.chats[chatKey{teamID: teamID, matchID: matchID}]; ok {
		return f.refs
	}
	return 0
}
