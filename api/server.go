package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/wricardo/mcp-training/chopsticks/game/service"
	"github.com/wricardo/mcp-training/chopsticks/identity"
	"github.com/wricardo/mcp-training/chopsticks/transport/websocket"
)

// maxBodySize bounds request bodies; a move is a few dozen bytes
const maxBodySize = 4096

// Server represents the REST API server
type Server struct {
	service  service.GameService
	hub      *websocket.Hub
	router   *mux.Router
	logger   zerolog.Logger
	resolver identity.Resolver
	mcp      http.Handler
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger.With().Str("component", "api").Logger()
	}
}

// WithResolver sets how callers are identified
func WithResolver(resolver identity.Resolver) Option {
	return func(s *Server) { s.resolver = resolver }
}

// WithMCPHandler mounts an MCP JSON-RPC handler at /mcp
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// NewServer creates a new API server
func NewServer(gameService service.GameService, hub *websocket.Hub, opts ...Option) *Server {
	s := &Server{
		service:  gameService,
		hub:      hub,
		router:   mux.NewRouter(),
		logger:   zerolog.Nop(),
		resolver: identity.NewHeaderResolver(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)
	s.router.Use(identity.Middleware(s.resolver))

	api := s.router.PathPrefix("/api").Subrouter()

	// Games
	api.HandleFunc("/games", s.handleStartGame).Methods("POST")
	api.HandleFunc("/games", s.handleListGames).Methods("GET")
	api.HandleFunc("/games/{id}", s.handleGetGameState).Methods("GET")
	api.HandleFunc("/games/{id}/join", s.handleJoinGame).Methods("POST")
	api.HandleFunc("/games/{id}/move", s.handleMakeMove).Methods("POST")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods("GET")

	// MCP over HTTP
	if s.mcp != nil {
		s.router.Handle("/mcp", s.mcp).Methods("POST")
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"error": message, "code": code})
}

// respondServiceError maps a service error onto its HTTP status
func respondServiceError(w http.ResponseWriter, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		respondError(w, http.StatusInternalServerError, string(service.CodeInternal), "internal error")
		return
	}
	respondError(w, statusFor(se.Code), string(se.Code), se.Message)
}

func statusFor(code service.Code) int {
	switch code {
	case service.CodeSessionNotFound:
		return http.StatusNotFound
	case service.CodeNotJoinable, service.CodeNotInProgress:
		return http.StatusConflict
	case service.CodeNotYourTurn:
		return http.StatusForbidden
	case service.CodeEmptySourceSlot, service.CodeInvalidSlot:
		return http.StatusUnprocessableEntity
	case service.CodeUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func caller(r *http.Request) string {
	id, _ := identity.FromContext(r.Context())
	return id
}

// Game Handlers

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	sessionID, err := s.service.StartGame(r.Context(), caller(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Location", "/api/games/"+sessionID)
	respondJSON(w, http.StatusCreated, map[string]string{"session_id": sessionID})
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.service.ListGames(r.Context(), caller(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(games),
		"games": games,
	})
}

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetGameState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.JoinGame(r.Context(), caller(r), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// MoveRequest is the body of POST /api/games/{id}/move
type MoveRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func (s *Server) handleMakeMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}

	state, err := s.service.MakeMove(r.Context(), caller(r), mux.Vars(r)["id"], req.Source, req.Target)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "websocket updates are disabled")
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "session parameter required")
		return
	}

	player := caller(r)
	if player == "" {
		respondError(w, http.StatusUnauthorized, string(service.CodeUnauthenticated), "identity required")
		return
	}

	state, err := s.service.GetGameState(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !state.IsSeated(player) {
		respondError(w, http.StatusForbidden, "not_seated", "only seated players can subscribe")
		return
	}

	s.hub.ServeWS(w, r, sessionID, player, state)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrader take over the connection
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
