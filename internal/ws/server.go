package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/termrack/backend/internal/config"
	"github.com/termrack/backend/internal/proc"
	"github.com/termrack/backend/internal/service"
	"github.com/termrack/backend/internal/session"
	"github.com/termrack/backend/internal/shell"
)

type Server struct {
	registry       *session.Registry
	resolver       *shell.Resolver
	svc            *service.Service
	broadcaster    *Broadcaster
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string
}

func NewServer(cfg config.ServerConfig, registry *session.Registry, resolver *shell.Resolver, svc *service.Service, broadcaster *Broadcaster) *Server {
	s := &Server{
		registry:       registry,
		resolver:       resolver,
		svc:            svc,
		broadcaster:    broadcaster,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      cfg.AuthToken,
	}

	for _, origin := range cfg.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionRoutes)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/locks/wake", s.handleLock((*service.Service).ToggleWakeLock))
	mux.HandleFunc("/api/locks/net", s.handleLock((*service.Service).ToggleNetLock))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	c, err := s.broadcaster.AddClient(conn)
	if err != nil {
		log.Printf("ws client rejected: %v", err)
		conn.Close()
		return
	}
	log.Printf("WebSocket client connected: %s", r.RemoteAddr)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}()
}

type createSessionRequest struct {
	Path     string   `json:"path,omitempty"`
	Args     []string `json:"args,omitempty"`
	Cwd      string   `json:"cwd,omitempty"`
	Name     string   `json:"name,omitempty"`
	SafeMode bool     `json:"safeMode,omitempty"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		sessions := s.registry.Sessions()
		infos := make([]SessionInfo, 0, len(sessions))
		for _, sess := range sessions {
			infos = append(infos, infoFor(sess))
		}
		writeJSON(w, http.StatusOK, infos)

	case http.MethodPost:
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		cmd := s.resolver.Resolve(req.Path, req.Args, req.Cwd, req.SafeMode)
		sess, err := s.registry.Create(cmd, req.Cwd)
		if err != nil {
			log.Printf("session create failed: %v", err)
			http.Error(w, fmt.Sprintf("creating session: %v", err), http.StatusInternalServerError)
			return
		}
		if req.Name != "" {
			sess.SetName(req.Name)
		}
		writeJSON(w, http.StatusCreated, infoFor(sess))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Parse: /api/sessions/{id} or /api/sessions/{id}/{action}
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.SplitN(path, "/", 2)

	id, err := url.PathUnescape(parts[0])
	if err != nil || id == "" {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	sess := s.registry.Lookup(id)
	if sess == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	if len(parts) == 1 {
		s.handleSession(w, r, sess)
		return
	}

	switch parts[1] {
	case "attach":
		s.requirePost(w, r, func() { sess.Attach(); w.WriteHeader(http.StatusNoContent) })
	case "detach":
		s.requirePost(w, r, func() { sess.Detach(); w.WriteHeader(http.StatusNoContent) })
	case "input":
		s.handleInput(w, r, sess)
	case "resize":
		s.handleResize(w, r, sess)
	case "output":
		s.handleOutput(w, r, sess)
	case "stats":
		s.handleStats(w, r, sess)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, infoFor(sess))

	case http.MethodDelete:
		sess.FinishIfRunning()
		if idx := s.registry.Remove(sess); idx < 0 {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type inputRequest struct {
	Data string `json:"data"`
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := sess.Write([]byte(req.Data)); err != nil {
		http.Error(w, fmt.Sprintf("writing to session: %v", err), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resizeRequest struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req resizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Cols <= 0 || req.Rows <= 0 {
		http.Error(w, "cols and rows must be positive", http.StatusBadRequest)
		return
	}
	if err := sess.Resize(req.Cols, req.Rows); err != nil {
		http.Error(w, fmt.Sprintf("resizing session: %v", err), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(sess.Output())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st, err := proc.Sample(sess.PID())
	if err != nil {
		http.Error(w, fmt.Sprintf("sampling process: %v", err), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type statusResponse struct {
	Status       string `json:"status"`
	Sessions     int    `json:"sessions"`
	WakeLockHeld bool   `json:"wakeLockHeld"`
	NetLockHeld  bool   `json:"netLockHeld"`
	Clients      int    `json:"clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:       s.svc.Status(),
		Sessions:     s.registry.Count(),
		WakeLockHeld: s.svc.WakeLockHeld(),
		NetLockHeld:  s.svc.NetLockHeld(),
		Clients:      s.broadcaster.ClientCount(),
	})
}

type lockResponse struct {
	Held bool `json:"held"`
}

func (s *Server) handleLock(toggle func(*service.Service) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, lockResponse{Held: toggle(s.svc)})
	}
}

func (s *Server) requirePost(w http.ResponseWriter, r *http.Request, fn func()) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	fn()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-Termrack-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Server listening on %s", addr)
	return http.ListenAndServe(addr, securityHeaders(mux))
}
