package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const maxMatchesLimit = 200

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Server bundles what the HTTP handlers need
type Server struct {
	hub  *Hub
	auth *Auth
	db   *DB
	cfg  Config
	log  zerolog.Logger
}

// SetupRoutes configures HTTP routes. db may be nil.
func SetupRoutes(cfg Config, hub *Hub, auth *Auth, db *DB, logger zerolog.Logger) *http.ServeMux {
	s := &Server{
		hub:  hub,
		auth: auth,
		db:   db,
		cfg:  cfg,
		log:  logger.With().Str("component", "http").Logger(),
	}
	mux := http.NewServeMux()

	if cfg.ClientDir != "" {
		// Serve static files with no-cache so browsers always revalidate
		fs := http.FileServer(http.Dir(cfg.ClientDir))
		mux.Handle("GET /", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-cache")
			fs.ServeHTTP(w, r)
		}))
	}

	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /invite/{file}", s.handleInvite)
	mux.HandleFunc("POST /api/admin/login", s.handleLogin)
	mux.HandleFunc("GET /api/rooms", s.requireAdmin(s.handleRooms))
	mux.HandleFunc("GET /api/matches", s.requireAdmin(s.handleMatches))
	mux.HandleFunc("GET /api/events", s.requireAdmin(s.handleEvents))

	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ip := extractIP(r)
	if !s.hub.CanAccept(ip) {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("upgrade")
		return
	}

	s.hub.TrackConnect(ip)

	client := NewClient(s.hub, conn, ip, s.cfg)
	if !s.hub.Register(client) {
		s.hub.TrackDisconnect(ip)
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"rooms": s.hub.Engine().Rooms().Len(),
		"conns": s.hub.TotalConns(),
	})
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	if !strings.HasSuffix(file, ".png") {
		http.NotFound(w, r)
		return
	}
	png, err := InvitePNG(s.cfg.PublicURL, strings.TrimSuffix(file, ".png"))
	if errors.Is(err, ErrInvalidPasscode) {
		http.Error(w, "invalid passcode", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("invite")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(png)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	token, err := s.auth.Login(req.Password, extractIP(r))
	switch {
	case errors.Is(err, ErrLoginDisabled):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ErrBadCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case err != nil:
		s.log.Error().Err(err).Msg("login")
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

// requireAdmin rejects requests without a valid Bearer token
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || s.auth.ValidateToken(token) != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	var rooms []RoomInfo
	ok := s.hub.Call(func() {
		for _, room := range s.hub.Engine().Rooms().List() {
			rooms = append(rooms, room.Info())
		}
	})
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	if rooms == nil {
		rooms = []RoomInfo{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "match ledger disabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxMatchesLimit)
	}
	matches, err := s.db.RecentMatches(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("recent matches")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if matches == nil {
		matches = []MatchRecord{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "match ledger disabled")
		return
	}
	counts, err := s.db.EventCounts()
	if err != nil {
		s.log.Error().Err(err).Msg("event counts")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
