package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"boxborne/internal/game"
	"boxborne/internal/room"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	// MaxWSConnectionsTotal is the maximum number of room WebSocket
	// connections allowed on this hub at once.
	MaxWSConnectionsTotal = 2000

	// MaxWSConnectionsPerIP is the maximum room WebSocket connections
	// allowed from a single IP.
	MaxWSConnectionsPerIP = 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if IsAllowedOrigin(origin) {
			return true
		}
		log.Printf("⚠️  room socket rejected from origin: %s", origin)
		RecordConnectionRejected("origin")
		return false
	},
}

// inboundFrame is the envelope every hub<-client event arrives in: the
// event-based wire protocol's {event, data} pair.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// clientConn serialises writes to one WebSocket connection. The room's
// fan-out goroutine and the per-socket read loop (pong replies) both write,
// and gorilla/websocket permits only one writer at a time.
type clientConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *clientConn) writeFrame(frame outboundFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *clientConn) close() {
	c.conn.Close()
}

// roomFanout bridges one room's single Outbox channel to every socket
// bound to it, delivering both targeted (username-addressed) and broadcast
// (empty-username) events.
type roomFanout struct {
	mu    sync.Mutex
	conns map[string]*clientConn
}

func newRoomFanout() *roomFanout {
	return &roomFanout{conns: make(map[string]*clientConn)}
}

func (f *roomFanout) bind(username string, conn *clientConn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conns[username] = conn
}

func (f *roomFanout) unbind(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conns, username)
}

func (f *roomFanout) send(ev room.Event) {
	frame := outboundFrame{Event: ev.Name, Data: ev.Payload}

	f.mu.Lock()
	var targets []*clientConn
	if ev.Username == "" {
		targets = make([]*clientConn, 0, len(f.conns))
		for _, conn := range f.conns {
			targets = append(targets, conn)
		}
	} else if conn, ok := f.conns[ev.Username]; ok {
		targets = []*clientConn{conn}
	}
	f.mu.Unlock()

	for _, conn := range targets {
		conn.writeFrame(frame)
	}

	// A targeted leave is the room telling this client it has been
	// removed (kick, room ending); the hub owns the socket, so it closes
	// it here and the read loop's teardown does the rest.
	if ev.Name == "leave" && ev.Username != "" {
		for _, conn := range targets {
			conn.close()
		}
	}
}

// closeAll closes every bound socket, for a room that ended.
func (f *roomFanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conn := range f.conns {
		conn.close()
	}
}

// Hub upgrades and bridges room WebSocket connections: one fan-out per
// live room, plus per-IP and total connection limits so a single client
// cannot exhaust the hub.
type Hub struct {
	manager *room.Manager

	wsLimiter *WebSocketRateLimiter

	mu      sync.Mutex
	fanouts map[string]*roomFanout
	total   int
}

// NewHub constructs a Hub bound to manager.
func NewHub(manager *room.Manager) *Hub {
	return &Hub{
		manager:   manager,
		wsLimiter: NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
		fanouts:   make(map[string]*roomFanout),
	}
}

func (h *Hub) fanoutFor(r *room.Room) *roomFanout {
	h.mu.Lock()
	defer h.mu.Unlock()
	if f, ok := h.fanouts[r.ID]; ok {
		return f
	}
	f := newRoomFanout()
	h.fanouts[r.ID] = f
	go h.drain(r, f)
	return f
}

func (h *Hub) drain(r *room.Room, f *roomFanout) {
	for ev := range r.Outbox() {
		f.send(ev)
	}
	// Outbox closed: the room worker has exited. Disconnect every socket
	// still bound in its namespace.
	f.closeAll()
	h.mu.Lock()
	delete(h.fanouts, r.ID)
	h.mu.Unlock()
}

// HandleSocket admits one client into a room's namespace: the client
// presents its one-time auth code, the room consumes it atomically, and on
// success a fixed event set is bridged between the socket and the room's
// worker.
func (h *Hub) HandleSocket(w http.ResponseWriter, req *http.Request) {
	roomID := chi.URLParam(req, "id")
	code := req.URL.Query().Get("code")

	r, ok := h.manager.GetGame(roomID)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	ip := GetClientIP(req)

	h.mu.Lock()
	total := h.total
	h.mu.Unlock()
	if total >= MaxWSConnectionsTotal {
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.wsLimiter.Allow(ip) {
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	rawConn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.wsLimiter.Release(ip)
		return
	}
	conn := &clientConn{conn: rawConn}

	username, base, err := r.Join(code)
	if err != nil {
		conn.writeFrame(outboundFrame{Event: "leave", Data: err.Error()})
		conn.close()
		h.wsLimiter.Release(ip)
		return
	}

	h.mu.Lock()
	h.total++
	h.mu.Unlock()
	UpdateWSConnections(h.total)

	fanout := h.fanoutFor(r)
	fanout.bind(username, conn)

	conn.writeFrame(outboundFrame{Event: "initPlayerPhysics", Data: map[string]interface{}{
		"username":       username,
		"baseProperties": base,
	}})

	h.readLoop(r, fanout, conn, username, ip)
}

// readLoop pumps inbound events (ping, ready, tick, chatMessage,
// readyStart) to the matching room method until the socket closes, then
// drops the socket binding, removes the player, and frees the hub-wide
// username reservation.
func (h *Hub) readLoop(r *room.Room, fanout *roomFanout, conn *clientConn, username, ip string) {
	defer func() {
		fanout.unbind(username)
		r.Leave(username)
		h.manager.ReleaseUsername(username)
		conn.close()
		h.wsLimiter.Release(ip)
		h.mu.Lock()
		h.total--
		h.mu.Unlock()
		UpdateWSConnections(h.total)
	}()

	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			// Malformed packet: silently dropped at the message boundary,
			// treated as potentially hostile outside traffic.
			continue
		}

		switch frame.Event {
		case "ping":
			conn.writeFrame(outboundFrame{Event: "pong"})
		case "tick":
			var input game.PlayerTickInput
			if json.Unmarshal(frame.Data, &input) != nil {
				continue
			}
			r.HandleTick(username, input)
		case "chatMessage":
			var msg string
			if json.Unmarshal(frame.Data, &msg) != nil {
				continue
			}
			r.HandleChat(username, msg)
		case "readyStart":
			var start bool
			if json.Unmarshal(frame.Data, &start) != nil {
				continue
			}
			r.HandleReadyStart(start)
		case "ready":
			// Part of the bridged event set; lobby-readiness bookkeeping
			// beyond readyStart does not exist server-side.
		}
	}
}
