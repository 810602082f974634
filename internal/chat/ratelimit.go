package chat

import (
	"sync"
	"time"

	"boxborne/internal/config"
)

// chatterState tracks one room member's recent chat activity.
type chatterState struct {
	sent      int // messages relayed in the current window
	total     int // lifetime messages this session, for the new-chatter grace
	windowEnd time.Time
	lastSent  time.Time
}

// SpamGuard applies a room's chat policy per member: a minimum delay
// between messages, a per-minute cap, and a grace allowance so a brand new
// chatter is never throttled on arrival. A room never holds more chatters
// than its player cap, so state is released when a member leaves (Forget)
// rather than by a periodic sweep.
type SpamGuard struct {
	mu       sync.Mutex
	chatters map[string]*chatterState

	cooldown     time.Duration
	window       time.Duration
	maxPerWindow int
	grace        int
}

// NewSpamGuard builds a guard from a room's chat configuration.
func NewSpamGuard(cfg config.ChatConfig) *SpamGuard {
	return &SpamGuard{
		chatters:     make(map[string]*chatterState),
		cooldown:     time.Duration(cfg.MinMillisPerMessage) * time.Millisecond,
		window:       time.Minute,
		maxPerWindow: cfg.MaxSpamPerMinute,
		grace:        cfg.SpamGraceCount,
	}
}

// Allow reports whether username may send a message right now, recording
// the send when it does.
func (g *SpamGuard) Allow(username string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	c, ok := g.chatters[username]
	if !ok {
		c = &chatterState{}
		g.chatters[username] = c
	}

	if now.After(c.windowEnd) {
		c.sent = 0
		c.windowEnd = now.Add(g.window)
	}

	// Grace messages skip the cooldown but still count toward the
	// per-minute cap, so the grace cannot be abused as a burst channel.
	if c.total >= g.grace {
		if now.Sub(c.lastSent) < g.cooldown {
			return false
		}
		if c.sent >= g.maxPerWindow {
			return false
		}
	}

	c.sent++
	c.total++
	c.lastSent = now
	return true
}

// Forget releases username's state when the member leaves the room.
func (g *SpamGuard) Forget(username string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.chatters, username)
}
