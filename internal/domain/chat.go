package domain

import (
	"fmt"
	"slices"
	"unicode/utf8"
)

// MaxMessageLength bounds chat message text, in runes.
const MaxMessageLength = 1000

// ChatMessage is stored at matches/{matchId}/messages/{id}, ordered by Timestamp.
type ChatMessage struct {
	ID        string             `json:"id"`
	PlayerID  int64              `json:"playerId"`
	Text      string             `json:"text"`
	Timestamp int64              `json:"timestamp"`
	Reactions map[string][]int64 `json:"reactions,omitempty"`
}

func (m ChatMessage) DocID() string { return m.ID }

func (m ChatMessage) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("message id is required")
	}
	if m.Text == "" {
		return fmt.Errorf("message text is required")
	}
	if utf8.RuneCountInString(m.Text) > MaxMessageLength {
		return fmt.Errorf("message exceeds %d characters", MaxMessageLength)
	}
	if m.Timestamp <= 0 {
		return fmt.Errorf("message timestamp is required")
	}
	return nil
}

// ToggleReaction adds playerID to the emoji's reactor set, or removes it when already
// present. Emojis without reactors are dropped from the map.
func (m *ChatMessage) ToggleReaction(emoji string, playerID int64) {
	if m.Reactions == nil {
		m.Reactions = make(map[string][]int64)
	}
	reactors := m.Reactions[emoji]
	if i := slices.Index(reactors, playerID); i >= 0 {
		reactors = slices.Delete(reactors, i, i+1)
	} else {
		reactors = append(reactors, playerID)
	}
	if len(reactors) == 0 {
		delete(m.Reactions, emoji)
		return
	}
	m.Reactions[emoji] = reactors
}
