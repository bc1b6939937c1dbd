package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ai-band/orchestrator/internal/files"
	"github.com/ai-band/orchestrator/internal/generator"
	"github.com/ai-band/orchestrator/internal/hub"
	"github.com/ai-band/orchestrator/internal/session"
	"github.com/ai-band/orchestrator/internal/ws"
)

const serviceName = "ai-band-orchestrator"

// Server is the REST surface over the coordination hub. It owns no state of
// its own; everything routes into the registry, hub, gateway, generator, or
// files manager.
type Server struct {
	registry  *session.Registry
	hub       *hub.Hub
	gateway   *ws.Gateway
	gen       generator.Generator
	files     *files.Manager
	authToken string
}

func NewServer(registry *session.Registry, h *hub.Hub, gw *ws.Gateway, gen generator.Generator, fm *files.Manager, authToken string) *Server {
	return &Server{
		registry:  registry,
		hub:       h,
		gateway:   gw,
		gen:       gen,
		files:     fm,
		authToken: authToken,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Get("/ws/{plugin_id}", func(w http.ResponseWriter, req *http.Request) {
		s.gateway.ServeWS(w, req, chi.URLParam(req, "plugin_id"))
	})

	r.Handle("/files/*", http.StripPrefix("/files/",
		http.FileServer(http.Dir(s.files.Dir()))))

	r.Route("/api", func(r chi.Router) {
		if s.authToken != "" {
			r.Use(s.bearerAuth)
		}

		r.Post("/generate", s.handleGenerate)

		r.Get("/files", s.handleListFiles)
		r.Get("/files/usage", s.handleDiskUsage)
		r.Get("/files/{filename}", s.handleDownloadFile)
		r.Delete("/files/{filename}", s.handleDeleteFile)

		r.Post("/transport/sync", s.handleTransportSync)
		r.Post("/broadcast", s.handleBroadcast)

		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/stats", s.handleStats)
		r.Post("/sessions/{id}", s.handleRegister)
		r.Delete("/sessions/{id}", s.handleUnregister)
		r.Post("/sessions/{id}/heartbeat", s.handleHeartbeat)
		r.Post("/sessions/{id}/notify", s.handleNotify)
	})

	return r
}

// bearerAuth checks the shared token from the query string, custom header, or
// Authorization bearer all pass.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") == s.authToken ||
			r.Header.Get("X-Orchestrator-Token") == s.authToken ||
			strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") == s.authToken {
			next.ServeHTTP(w, r)
			return
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":           serviceName,
		"status":            "running",
		"connected_plugins": s.gateway.ConnectionCount(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.registry.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"active_plugins":  stats.Active,
		"generated_files": s.files.Count(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
