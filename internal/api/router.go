// Package api implements the hub's HTTP and WebSocket surface: the
// /games/* endpoints and the per-room real-time transport that joined
// clients connect to. Login/signup/captcha and the account database are
// external collaborators and are not implemented here; RouterConfig takes
// the room manager (which holds the account store) as an already-constructed
// dependency.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"boxborne/internal/room"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds everything NewRouter needs to build the hub's mux.
type RouterConfig struct {
	Manager *room.Manager
	Hub     *Hub

	// RateLimiter is an optional pre-configured limiter; if nil one is
	// built from RateLimitConfig (or DefaultRateLimitConfig).
	RateLimiter     *IPRateLimiter
	RateLimitConfig *RateLimitConfig

	// CORSOrigins overrides the default localhost-only CORS allowlist.
	CORSOrigins []string

	DisableLogging bool
}

// NewRouter constructs the HTTP router with all middleware and routes. It
// opens no listeners and is safe to drop into httptest.NewServer. When
// cfg.RateLimiter is nil it builds one, which starts that limiter's cleanup
// goroutine.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rlCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rlCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rlCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = AllowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Use(latencyMiddleware)

	h := &gamesHandler{manager: cfg.Manager}

	r.Route("/games", func(r chi.Router) {
		r.Post("/createGame", h.handleCreateGame)
		r.Post("/joinGame/{id}", h.handleJoinGame)
		r.Get("/gameList", h.handleGameList)
	})

	if cfg.Hub != nil {
		r.Get("/rooms/{id}/socket", cfg.Hub.HandleSocket)
	}

	return r
}

type gamesHandler struct {
	manager *room.Manager
}

type createGameRequest struct {
	Host       string `json:"host"`
	MaxPlayers int    `json:"maxPlayers"`
	AIPlayers  int    `json:"aiPlayers"`
	Public     bool   `json:"public"`
	MapPool    string `json:"mapPool"`
}

func (h *gamesHandler) handleCreateGame(w http.ResponseWriter, req *http.Request) {
	var body createGameRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "malformed request body")
		return
	}
	if body.Host == "" {
		writeError(w, http.StatusBadRequest, "MISSING_HOST", "host is required")
		return
	}

	r := h.manager.CreateGame(body.Host, room.Options{
		MaxPlayers: body.MaxPlayers,
		AIPlayers:  body.AIPlayers,
		Public:     body.Public,
		MapPool:    body.MapPool,
	})
	writeJSON(w, http.StatusOK, r.Info())
}

type joinGameRequest struct {
	Username string `json:"username"`
}

type joinGameResponse struct {
	Code string `json:"code"`
}

func (h *gamesHandler) handleJoinGame(w http.ResponseWriter, req *http.Request) {
	roomID := chi.URLParam(req, "id")

	var body joinGameRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "malformed request body")
		return
	}
	if body.Username == "" {
		writeError(w, http.StatusBadRequest, "MISSING_USERNAME", "username is required")
		return
	}

	code, err := h.manager.RequestJoin(roomID, body.Username)
	if err != nil {
		writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, joinGameResponse{Code: code})
}

func (h *gamesHandler) handleGameList(w http.ResponseWriter, req *http.Request) {
	onlyJoinable := req.URL.Query().Get("onlyJoinable") == "true"
	writeJSON(w, http.StatusOK, h.manager.GetGames(onlyJoinable))
}

func writeRoomError(w http.ResponseWriter, err error) {
	var status int
	code := "UNKNOWN"
	var rerr *room.RoomError
	if errors.As(err, &rerr) {
		code = rerr.Code
		switch rerr {
		case room.ErrAlreadyExists, room.ErrRoomFull:
			status = http.StatusConflict
		case room.ErrRoomNotFound:
			status = http.StatusNotFound
		case room.ErrAccountLoadFailed:
			status = http.StatusInternalServerError
		default:
			status = http.StatusBadRequest
		}
	} else {
		status = http.StatusInternalServerError
	}
	writeError(w, status, code, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "error": message})
}

// latencyMiddleware reports every request into the http_request_duration
// and http_requests_total series the debug server's /metrics exposes.
func latencyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		endpoint := req.URL.Path
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(req.Method, endpoint, status, time.Since(start))
	})
}
