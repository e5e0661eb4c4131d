package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/Wyydra/ya-signal/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/ya-signal/internal/config"
	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/Wyydra/ya-signal/internal/core/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	Signaling *service.SignalingService
	Broker    *service.BrokerService
	Hub       *ws.Hub

	cfg       config.Config
	upgrader  websocket.Upgrader
	accessLog zerolog.Logger
}

func NewHandler(signaling *service.SignalingService, broker *service.BrokerService, hub *ws.Hub, cfg config.Config) *Handler {
	return &Handler{
		Signaling: signaling,
		Broker:    broker,
		Hub:       hub,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		accessLog: log.Logger,
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(accessLogFormatter{l: h.accessLog}))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Get("/ws", h.ServeWS)

	r.Route("/livekit", func(r chi.Router) {
		r.Get("/token", h.LiveKitToken)
		r.Get("/rooms", h.LiveKitRooms)
	})

	if h.cfg.StaticDir != "" {
		fs := http.FileServer(http.Dir(h.cfg.StaticDir))
		r.Handle("/*", fs)
	}

	return r
}

type healthResponse struct {
	Status       string `json:"status"`
	Connections  int    `json:"connections"`
	Negotiations int    `json:"negotiations"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.Signaling.Stats()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		Connections:  stats.Connections,
		Negotiations: stats.Negotiations,
	})
}

type tokenResponse struct {
	Token string `json:"token"`
}

type roomResponse struct {
	Name            string `json:"name"`
	NumParticipants int    `json:"numParticipants"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) LiveKitToken(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token, err := h.Broker.IssueToken(r.Context(), q.Get("room"), q.Get("username"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, tokenResponse{Token: token})
	case errors.Is(err, domain.ErrInvalidTokenRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "room and username are required"})
	case errors.Is(err, domain.ErrBrokerDisabled):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "livekit is not configured"})
	default:
		log.Error().Err(err).Str("room", q.Get("room")).Msg("Failed to issue token")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to issue token"})
	}
}

func (h *Handler) LiveKitRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.Broker.ListRooms(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrBrokerDisabled) {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "livekit is not configured"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list rooms"})
		return
	}

	out := make([]roomResponse, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, roomResponse{Name: room.Name, NumParticipants: room.NumParticipants})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

// originChecker allows every origin when the list is empty. Requests
// without an Origin header are non-browser clients and always allowed.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}
