// Package webui provides the HTTP surface of the sales bot: the chat API,
// admin endpoints, the embeddable widget, and operational endpoints.
package webui

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"salesbot/pkg/chat"
	"salesbot/pkg/config"
	"salesbot/pkg/logx"
	"salesbot/pkg/persistence"
)

//go:embed web/widget.html web/widget.js
var widgetFS embed.FS

// Server is the HTTP server for the sales bot.
type Server struct {
	chatService *chat.Service
	admin       config.AdminConfig
	logger      *logx.Logger
	started     time.Time
}

// NewServer creates the HTTP server around a chat service.
func NewServer(chatService *chat.Service, admin config.AdminConfig) *Server {
	return &Server{
		chatService: chatService,
		admin:       admin,
		logger:      logx.NewLogger("webui"),
		started:     time.Now(),
	}
}

// RegisterRoutes sets up all HTTP routes.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", s.withCORS(s.handleChat))
	mux.HandleFunc("OPTIONS /chat", s.withCORS(s.handlePreflight))
	mux.HandleFunc("GET /conversation/{id}", s.requireAuth(s.handleGetConversation))
	mux.HandleFunc("GET /conversations", s.requireAuth(s.handleListConversations))
	mux.HandleFunc("GET /logs", s.requireAuth(s.handleLogs))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /widget", s.handleWidget)
	mux.HandleFunc("GET /widget.js", s.handleWidgetJS)
}

// StartServer starts the HTTP server and shuts it down when ctx is
// cancelled. Non-blocking.
func (s *Server) StartServer(ctx context.Context, host string, port int) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	addr := fmt.Sprintf("%s:%d", host, port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting server on %s", addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down server")
		// Parent context is cancelled, use a fresh one for shutdown.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown failed: %v", err)
		}
	}()

	return nil
}

// requireAuth wraps a handler with Basic Authentication against the
// configured admin password hash. Admin endpoints are disabled entirely
// when no hash is configured.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.admin.PasswordHash == "" {
			s.logger.Error("Admin password not configured - denying access")
			http.Error(w, "Admin endpoints disabled", http.StatusForbidden)
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok || username != "admin" || !config.VerifyAdminPassword(s.admin.PasswordHash, password) {
			if ok {
				s.logger.Warn("Failed authentication attempt from %s (username: %s)", r.RemoteAddr, username)
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="Sales Bot Admin"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

// withCORS allows the widget to call the chat API from any origin.
func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next(w, r)
	}
}

func (s *Server) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// handleChat implements POST /chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := s.chatService.ProcessTurn(r.Context(), &req)
	if err != nil {
		s.logger.Error("Turn failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleGetConversation implements GET /conversation/{id}.
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	detail, err := s.chatService.GetConversation(id)
	if err != nil {
		if chat.IsNotFound(err) {
			s.writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logger.Error("Get conversation failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

// handleListConversations implements GET /conversations with optional
// source, limit, and offset query parameters.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	filter := &persistence.ConversationFilter{
		Source: r.URL.Query().Get("source"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	summaries, err := s.chatService.ListConversations(filter)
	if err != nil {
		s.logger.Error("List conversations failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if summaries == nil {
		summaries = []*persistence.ConversationSummary{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conversations": summaries})
}

// handleLogs implements GET /logs, returning recent in-memory log entries.
// Supports component and since (RFC3339) query parameters.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = parsed
	}
	entries := logx.RecentEntries(r.URL.Query().Get("component"), since)
	s.writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

// handleHealth implements GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

// handleWidget serves the standalone widget page.
func (s *Server) handleWidget(w http.ResponseWriter, _ *http.Request) {
	data, err := widgetFS.ReadFile("web/widget.html")
	if err != nil {
		http.Error(w, "widget not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}

// handleWidgetJS serves the embeddable widget script.
func (s *Server) handleWidgetJS(w http.ResponseWriter, _ *http.Request) {
	data, err := widgetFS.ReadFile("web/widget.js")
	if err != nil {
		http.Error(w, "widget script not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(data)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
