// Package room implements the per-room runtime: an isolated worker
// goroutine driving one game.World at a fixed tick rate, reachable only
// through message passing, plus the manager that tracks the set of live
// rooms and the cross-room one-player-one-room invariant.
package room

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	mrand "math/rand"
	"time"

	"boxborne/internal/chat"
	"boxborne/internal/config"
	"boxborne/internal/game"
	"boxborne/internal/worldmap"
)

// roomIDAlphabet is the character set room ids are drawn from.
const roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Options are a room's merged-with-defaults creation options.
type Options struct {
	MaxPlayers int
	AIPlayers  int // reserved option; bot players are not implemented
	Public     bool
	MapPool    string // pool to draw the room's map from; defaults to "all"
}

// DefaultOptions returns the standard room defaults.
func DefaultOptions() Options {
	return Options{MaxPlayers: 8, AIPlayers: 2, Public: true, MapPool: "all"}
}

func mergeOptions(o Options) Options {
	merged := DefaultOptions()
	if o.MaxPlayers > 0 {
		merged.MaxPlayers = o.MaxPlayers
	}
	if o.AIPlayers > 0 {
		merged.AIPlayers = o.AIPlayers
	}
	merged.Public = o.Public
	if o.MapPool != "" {
		merged.MapPool = o.MapPool
	}
	return merged
}

// Info is the read-only snapshot a hub lists games with.
type Info struct {
	ID         string `json:"id"`
	Host       string `json:"host"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	Public     bool   `json:"public"`
	Started    bool   `json:"started"`
}

// Event is one outbound message a room hands to the hub for delivery. An
// empty Username broadcasts to every socket bound to the room.
type Event struct {
	Username string
	Name     string
	Payload  interface{}
}

type pendingJoin struct {
	account   game.Account
	expiresAt time.Time
}

// Room is one isolated game worker. Every field below is touched only by
// the worker goroutine started in run(); all outside interaction happens
// through the channel-backed methods further down, so rooms share no
// mutable state and interact only by messages.
type Room struct {
	ID       string
	Host     string
	opts     Options
	cfg      config.AppConfig
	world    *game.World
	chat     *chat.Relay
	log      *logLink
	metrics  Metrics
	accounts game.AccountStore

	pending map[string]pendingJoin
	bound   map[string]bool // usernames currently bound to a live socket
	started bool

	actions chan func()
	outbox  chan Event
	closed  chan struct{}

	onClose func(r *Room, err bool)
}

// Metrics is the subset of the hub's Prometheus instrumentation a room
// reports into; see internal/api/observability.go for the concrete
// implementation wired in production.
type Metrics interface {
	RecordTick(d time.Duration)
	SetPlayerCount(roomID string, n int)
	SetRoomsActive(n int)
	IncKick(reason string)
	IncAuthCodeIssued()
}

type noopMetrics struct{}

func (noopMetrics) RecordTick(time.Duration)   {}
func (noopMetrics) SetPlayerCount(string, int) {}
func (noopMetrics) SetRoomsActive(int)         {}
func (noopMetrics) IncKick(string)             {}
func (noopMetrics) IncAuthCodeIssued()         {}

// New constructs and starts a room's worker goroutine. onClose is invoked
// exactly once, from the worker goroutine's final act, whether the room
// shut down cleanly or crashed.
func New(id, host string, opts Options, cfg config.AppConfig, maps *worldmap.Registry, accounts game.AccountStore, metrics Metrics, onClose func(r *Room, err bool)) *Room {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	merged := mergeOptions(opts)
	roomMaps := maps.RoomView()
	if m, ok := roomMaps.RandomInPool(merged.MapPool); ok {
		roomMaps.SetCurrent(m)
		if len(m.Spawns) < merged.MaxPlayers {
			log.Printf("❌ room %s: map %s has %d player spawns, fewer than maxPlayers %d", id, m.ID, len(m.Spawns), merged.MaxPlayers)
		}
	} else {
		log.Printf("⚠️  room %s: no maps registered in pool %q", id, merged.MapPool)
	}

	r := &Room{
		ID:       id,
		Host:     host,
		opts:     merged,
		cfg:      cfg,
		world:    game.NewWorld(cfg, roomMaps),
		chat:     chat.NewRelay(cfg.Chat),
		log:      newLogLink(id),
		metrics:  metrics,
		accounts: accounts,
		pending:  make(map[string]pendingJoin),
		bound:    make(map[string]bool),
		actions:  make(chan func(), 256),
		outbox:   make(chan Event, 512),
		closed:   make(chan struct{}),
		onClose:  onClose,
	}
	r.world.Events.Start("")
	go r.run()
	return r
}

// Outbox is the channel the hub drains to route events to bound sockets.
func (r *Room) Outbox() <-chan Event { return r.outbox }

// Closed is closed once the worker has fully shut down.
func (r *Room) Closed() <-chan struct{} { return r.closed }

// do enqueues fn to run on the worker goroutine and blocks until it has,
// giving every exported method exclusive access to room state without a
// mutex. There is no parallelism inside a room.
func (r *Room) do(fn func()) {
	done := make(chan struct{})
	select {
	case <-r.closed:
		return
	default:
	}
	select {
	case r.actions <- func() { fn(); close(done) }:
		// The worker may shut down with fn still queued; waiting on done
		// alone would then block the caller forever.
		select {
		case <-done:
		case <-r.closed:
		}
	case <-r.closed:
	}
}

// RequestJoin is the hub-side half of the join protocol: it validates the
// username against this room, loads the account, and mints a one-time auth
// code good for cfg.Game.ConnectTimeoutSec seconds.
func (r *Room) RequestJoin(username string) (code string, err error) {
	r.do(func() {
		if r.bound[username] {
			err = ErrAlreadyExists
			return
		}
		for pendCode, p := range r.pending {
			if p.account.Username == username {
				delete(r.pending, pendCode)
			}
		}
		if len(r.bound) >= r.opts.MaxPlayers {
			err = ErrRoomFull
			return
		}
		acct, loadErr := r.accounts.Load(username)
		if loadErr != nil {
			err = fmt.Errorf("%w: %v", ErrAccountLoadFailed, loadErr)
			return
		}
		code = newAuthCode()
		r.pending[code] = pendingJoin{account: acct, expiresAt: time.Now().Add(time.Duration(r.cfg.Game.ConnectTimeoutSec) * time.Second)}
		r.metrics.IncAuthCodeIssued()

		ttl := time.Duration(r.cfg.Game.ConnectTimeoutSec) * time.Second
		time.AfterFunc(ttl, func() {
			r.do(func() {
				if _, stillPending := r.pending[code]; stillPending {
					delete(r.pending, code)
					r.log.emit(LogInfo, fmt.Sprintf("auth code expired for %s", acct.Username))
				}
			})
		})
	})
	return code, err
}

// Join consumes a one-time auth code atomically: success binds the socket
// to the account's username and admits the player into the world; reuse or
// an unknown code is rejected.
func (r *Room) Join(code string) (username string, base game.Properties, err error) {
	r.do(func() {
		p, ok := r.pending[code]
		if !ok {
			err = ErrAuthCodeUnknown
			return
		}
		if time.Now().After(p.expiresAt) {
			delete(r.pending, code)
			err = ErrAuthCodeExpired
			return
		}
		delete(r.pending, code)

		player := game.NewPlayer(p.account, r.pickColor())
		if addErr := r.world.AddPlayer(player); addErr != nil {
			err = addErr
			return
		}
		r.bound[p.account.Username] = true
		r.metrics.SetPlayerCount(r.ID, len(r.bound))
		username = p.account.Username
		base = player.Effective
		r.log.emit(LogInfo, fmt.Sprintf("%s joined", username))
	})
	return username, base, err
}

// HasPlayer reports whether username is bound to a live socket or still
// pending on an unredeemed auth code. The manager uses it to decide when a
// hub-wide username reservation can be dropped.
func (r *Room) HasPlayer(username string) bool {
	var has bool
	r.do(func() {
		if r.bound[username] {
			has = true
			return
		}
		for _, p := range r.pending {
			if p.account.Username == username {
				has = true
				return
			}
		}
	})
	return has
}

// HandleTick applies one PlayerTickInput from a bound player.
func (r *Room) HandleTick(username string, input game.PlayerTickInput) {
	r.do(func() {
		p, ok := r.world.Player(username)
		if !ok {
			return
		}
		m := r.world.Maps.Current()
		if reason := p.ClientTick(input, m, r.cfg.Game.PhysicsResolution); reason != "" {
			r.kick(p, reason)
		}
	})
}

// HandleReadyStart begins the match: players are spread across distinct
// spawn points, loot boxes are placed, and the started gate opens so the
// not-enough-players shutdown condition can apply from here on.
func (r *Room) HandleReadyStart(start bool) {
	r.do(func() {
		if start && !r.started {
			r.started = true
			if m := r.world.Maps.Current(); m != nil {
				if err := game.SpreadPlayers(r.world.Players(), m); err != nil {
					r.log.emit(LogError, err.Error())
				}
			}
			r.world.SpawnLootBoxes()
			r.broadcast("", "gameInfo", r.info())
		}
	})
}

// HandleChat relays a chat message subject to the room's spam and
// banned-word policy.
func (r *Room) HandleChat(username, message string) {
	r.do(func() {
		sections, ok := r.chat.Accept(username, message)
		if !ok {
			return
		}
		r.broadcast("", "chatMessage", sections)
	})
}

// Leave unbinds a disconnected socket's player and removes it from the
// world, applying shutdown condition (b) if the room has started and now
// has fewer than two players.
func (r *Room) Leave(username string) {
	r.do(func() {
		if !r.bound[username] {
			return
		}
		r.removePlayer(username)
		r.log.emit(LogInfo, fmt.Sprintf("%s left", username))
		if r.started && len(r.bound) < 2 {
			r.shutdown(errors.New("not enough players"))
		}
	})
}

// Shutdown implements shutdown condition (a): an explicit hub request.
func (r *Room) Shutdown() {
	r.do(func() { r.shutdown(nil) })
}

func (r *Room) kick(p *game.Player, reason string) {
	payload := p.Kick(reason)
	r.metrics.IncKick(reason)
	r.broadcast(p.Account.Username, "leave", payload)
	r.removePlayer(p.Account.Username)
}

// removePlayer saves the player's account back to the store before
// deregistering it from the world and the bound-socket set, so every
// removal path writes the account exactly once.
func (r *Room) removePlayer(username string) {
	if p, ok := r.world.Player(username); ok {
		if err := r.accounts.Save(p.Account); err != nil {
			r.log.emit(LogError, fmt.Sprintf("account save failed for %s: %v", username, err))
		}
	}
	delete(r.bound, username)
	r.world.RemovePlayer(username)
	r.chat.Forget(username)
	r.metrics.SetPlayerCount(r.ID, len(r.bound))
}

func (r *Room) broadcast(username, event string, payload interface{}) {
	select {
	case r.outbox <- Event{Username: username, Name: event, Payload: payload}:
	default:
		r.log.emit(LogWarn, "outbox full, dropping event "+event)
	}
}

// Info reports the room's current joinable-list row.
func (r *Room) Info() Info {
	var info Info
	r.do(func() { info = r.info() })
	return info
}

// info builds the joinable-list row from worker-owned fields directly. It
// must only be called from the worker goroutine (inside an already-running
// r.do closure, or from run() itself) — calling r.do from within r.do would
// deadlock, since the outer closure never returns to drain r.actions.
func (r *Room) info() Info {
	return Info{ID: r.ID, Host: r.Host, Players: len(r.bound), MaxPlayers: r.opts.MaxPlayers, Public: r.opts.Public, Started: r.started}
}

// run is the room's cooperative event loop: it interleaves the fixed-rate
// physics tick with incoming action closures on one goroutine. It recovers
// from a panicking action so an escaped exception shuts the room down via
// onClose instead of crashing the whole hub.
func (r *Room) run() {
	period := time.Second / time.Duration(r.cfg.Game.TickRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	lowTPSSince := time.Time{}
	var lastWarn time.Time

	defer func() {
		if rec := recover(); rec != nil {
			r.log.emit(LogFatal, fmt.Sprintf("room crashed: %v", rec))
			r.finish(fmt.Errorf("panic: %v", rec))
		}
	}()

	for {
		select {
		case <-r.closed:
			return
		default:
		}
		select {
		case fn := <-r.actions:
			fn()
		case <-ticker.C:
			start := time.Now()
			kicks := r.world.Tick()
			for _, k := range kicks {
				r.kick(k.Player, k.Reason)
			}
			if len(kicks) > 0 && r.started && len(r.bound) < 2 {
				r.shutdown(errors.New("not enough players"))
			}
			select {
			case <-r.closed:
				return
			default:
			}
			snap := r.world.Snapshot()
			r.metrics.RecordTick(time.Since(start))
			r.broadcast("", "tick", map[string]interface{}{
				"tick":    snap.Tick,
				"tps":     tps(period, time.Since(start)),
				"players": snap.Players,
			})

			if tps(period, time.Since(start)) < 30 {
				if lowTPSSince.IsZero() {
					lowTPSSince = time.Now()
				} else if time.Since(lowTPSSince) > 2*time.Second && time.Since(lastWarn) > time.Minute {
					log.Printf("⚠️  room %s running below 30 tps", r.ID)
					lastWarn = time.Now()
				}
			} else {
				lowTPSSince = time.Time{}
			}
		case <-r.closed:
			return
		}
	}
}

func tps(period, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return float64(time.Second) / float64(period)
	}
	return float64(time.Second) / float64(elapsed)
}

// shutdown runs the documented teardown path: stop ticking, remove every
// player (triggering a final account save per player), close the logging
// channel, then signal the hub via onClose.
func (r *Room) shutdown(cause error) {
	standings := game.Leaderboard(r.world.Players())
	for username := range r.bound {
		r.removePlayer(username)
	}
	r.broadcast("", "gameEnd", standings)
	r.finish(cause)
}

func (r *Room) finish(cause error) {
	select {
	case <-r.closed:
		return
	default:
	}
	r.world.Events.Stop()
	r.log.shutdown()
	close(r.closed)
	// Nothing sends on outbox past this point: the worker loop exits on
	// closed, and do() refuses new actions. Closing it ends the hub's
	// fan-out drain for this room.
	close(r.outbox)
	if r.onClose != nil {
		r.onClose(r, cause != nil)
	}
}

// newAuthCode mints a random version-4 UUID string for the one-time join
// handshake.
func newAuthCode() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the OS entropy source is broken; there
		// is nothing sensible left to do but produce a code from a
		// weaker source rather than panic mid-join.
		for i := range buf {
			buf[i] = byte(mrand.Intn(256))
		}
	}
	buf[6] = (buf[6] & 0x0f) | 0x40
	buf[8] = (buf[8] & 0x3f) | 0x80
	s := hex.EncodeToString(buf)
	return s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:32]
}

func newRoomID(taken func(string) bool) string {
	for {
		b := make([]byte, 6)
		for i := range b {
			b[i] = roomIDAlphabet[mrand.Intn(len(roomIDAlphabet))]
		}
		id := string(b)
		if !taken(id) {
			return id
		}
	}
}

// pickColor returns the first palette colour no live player in the room
// holds, falling back to cycling the palette once every colour is taken.
func (r *Room) pickColor() string {
	used := make(map[string]bool)
	for _, p := range r.world.Players() {
		used[p.Color] = true
	}
	for _, c := range game.Palette {
		if !used[c] {
			return c
		}
	}
	return game.Palette[len(r.bound)%len(game.Palette)]
}
