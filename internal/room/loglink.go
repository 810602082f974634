package room

import (
	"log"
	"time"
)

// LogMethod enumerates the framed log methods forwarded from a room worker
// to the hub over the [methodCode, payload] logging channel.
type LogMethod int

const (
	LogDebug LogMethod = iota
	LogInfo
	LogWarn
	LogError
	LogFatal
	LogHandleError
	LogHandleFatal
	LogSenderDebug
	LogSenderError
)

func (m LogMethod) String() string {
	switch m {
	case LogDebug:
		return "debug"
	case LogInfo:
		return "info"
	case LogWarn:
		return "warn"
	case LogError:
		return "error"
	case LogFatal:
		return "fatal"
	case LogHandleError:
		return "handleError"
	case LogHandleFatal:
		return "handleFatal"
	case LogSenderDebug:
		return "sender-side-debug"
	case LogSenderError:
		return "sender-side-error"
	default:
		return "unknown"
	}
}

// logFrame is one [methodCode, payload] entry on the logging channel.
type logFrame struct {
	method  LogMethod
	payload string
}

// logControl carries the handshake and teardown signals that establish and
// close the logging link.
type logControl int

const (
	logHandshake logControl = iota
	logHandshakeAck
	logClose
	logCloseAck
)

// handshakeTimeout bounds how long either side waits for the peer's ack
// before giving up on the logging link.
const handshakeTimeout = 2 * time.Second

// logLink is the worker side of the per-room logging channel. Frames only
// flow once HANDSHAKE / HANDSHAKE-ACK has completed; CLOSE / CLOSE-ACK
// tears the link down with every queued frame flushed, so no frame is lost
// or duplicated across shutdown.
type logLink struct {
	roomID  string
	frames  chan logFrame
	control chan logControl // worker -> sink
	acks    chan logControl // sink -> worker
	ready   bool
}

func newLogLink(roomID string) *logLink {
	l := &logLink{
		roomID:  roomID,
		frames:  make(chan logFrame, 64),
		control: make(chan logControl, 1),
		acks:    make(chan logControl, 1),
	}
	go l.run()

	l.control <- logHandshake
	select {
	case sig := <-l.acks:
		l.ready = sig == logHandshakeAck
	case <-time.After(handshakeTimeout):
		// Sink never acknowledged; frames will be dropped rather than
		// queued against a dead listener.
	}
	return l
}

// run is the sink side: it completes the handshake, relays frames to the
// process log, and acknowledges close once every queued frame is flushed.
func (l *logLink) run() {
	handshook := false
	for {
		select {
		case sig := <-l.control:
			switch sig {
			case logHandshake:
				handshook = true
				l.acks <- logHandshakeAck
			case logClose:
				l.drain()
				l.acks <- logCloseAck
				return
			}
		case f := <-l.frames:
			if handshook {
				log.Printf("[room %s] %s: %s", l.roomID, f.method, f.payload)
			}
		}
	}
}

func (l *logLink) drain() {
	for {
		select {
		case f := <-l.frames:
			log.Printf("[room %s] %s: %s", l.roomID, f.method, f.payload)
		default:
			return
		}
	}
}

func (l *logLink) emit(method LogMethod, payload string) {
	if !l.ready {
		return
	}
	select {
	case l.frames <- logFrame{method: method, payload: payload}:
	default:
		// Buffer full: drop rather than block the tick loop. Logging is
		// best-effort; the tick deadline is not.
	}
}

// shutdown runs the CLOSE / CLOSE-ACK half of the protocol, bounded by the
// same timeout as establishment so a wedged sink cannot hang room teardown.
func (l *logLink) shutdown() {
	if !l.ready {
		return
	}
	l.ready = false
	select {
	case l.control <- logClose:
	case <-time.After(handshakeTimeout):
		return
	}
	select {
	case <-l.acks:
	case <-time.After(handshakeTimeout):
	}
}
