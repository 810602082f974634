// Package chat implements the per-room chat relay: spam-rate limiting and
// banned-word filtering over the realtime chatMessage event.
package chat

import (
	"strings"

	"boxborne/internal/config"
)

// Section is one rendered fragment of a relayed chat message, the element
// type of the chatMessage(sections[]) wire event. A single plain message is
// one section; richer client-side formatting is out of scope.
type Section struct {
	Username string `json:"username"`
	Text     string `json:"text"`
}

// Relay enforces chatMinMillisPerMessage / chatSpamGraceCount /
// chatMaxSpamPerMinute and a case-insensitive substring match against
// chatBannedWordList before a message is allowed through.
type Relay struct {
	guard       *SpamGuard
	bannedWords []string
}

// NewRelay builds a relay from a room's chat configuration.
func NewRelay(cfg config.ChatConfig) *Relay {
	lowered := make([]string, len(cfg.BannedWordList))
	for i, w := range cfg.BannedWordList {
		lowered[i] = strings.ToLower(strings.TrimSpace(w))
	}
	return &Relay{
		guard:       NewSpamGuard(cfg),
		bannedWords: lowered,
	}
}

// Accept checks message against the spam guard and banned-word list. On
// success it returns the sections to broadcast; on rejection ok is false
// and the message is silently dropped.
func (r *Relay) Accept(username, message string) ([]Section, bool) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, false
	}
	if r.containsBannedWord(message) {
		return nil, false
	}
	if !r.guard.Allow(username) {
		return nil, false
	}
	return []Section{{Username: username, Text: message}}, true
}

// Forget releases the spam-guard state for a member who left the room.
func (r *Relay) Forget(username string) {
	r.guard.Forget(username)
}

func (r *Relay) containsBannedWord(message string) bool {
	if len(r.bannedWords) == 0 {
		return false
	}
	lowered := strings.ToLower(message)
	for _, word := range r.bannedWords {
		if word != "" && strings.Contains(lowered, word) {
			return true
		}
	}
	return false
}
