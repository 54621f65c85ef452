// Package server is the transport bridge: a chi router exposing the websocket
// chat endpoint, an out-of-band log sink for the browser extension, and a
// health probe. One websocket connection owns one session; inbound text frames
// become human turns and every message a run emits streams back out as JSON.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/calassist/calassist/core"
	"github.com/calassist/calassist/logging"
	"github.com/calassist/calassist/runner"
)

// Options configures the transport bridge.
type Options struct {
	// AllowedOrigin restricts websocket upgrades and CORS. "*" allows any.
	AllowedOrigin string

	// Mode and Supersede seed each connection's session.
	Mode      core.Mode
	Supersede core.SupersedePolicy

	Logger logging.Logger
}

// Server bridges websocket connections to the runner.
type Server struct {
	runner   *runner.Runner
	sessions *sessionRegistry
	opts     Options
}

// New constructs the transport bridge over a runner.
func New(run *runner.Runner, optFns ...func(o *Options)) *Server {
	opts := Options{
		AllowedOrigin: "*",
		Mode:          core.ModeMultiTurn,
		Supersede:     core.SupersedeKeep,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Server{runner: run, sessions: newSessionRegistry(), opts: opts}
}

// Shutdown cancels the in-flight runs of all connected sessions and waits
// for them to wind down. Connections themselves close when the HTTP server
// shuts down.
func (s *Server) Shutdown() {
	s.sessions.cancelAll()
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.opts.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Post("/log", s.handleLog)
	r.Get("/ws", s.handleWS)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.sessions.count(),
	})
}

// logEntry is the out-of-band log line posted by the browser extension.
type logEntry struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	var entry logEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "malformed log entry", http.StatusBadRequest)
		return
	}

	msg := "client: " + entry.Message
	switch logging.ParseLevel(entry.Level) {
	case logging.LevelDebug:
		s.opts.Logger.Debug(msg)
	case logging.LevelWarn:
		s.opts.Logger.Warn(msg)
	case logging.LevelError:
		s.opts.Logger.Error(msg)
	default:
		s.opts.Logger.Info(msg)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
