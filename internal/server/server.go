// Package server exposes chat sessions, the access log and metrics over HTTP.
package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/medicrypt/internal/access"
	"github.com/ziadkadry99/medicrypt/internal/audit"
	"github.com/ziadkadry99/medicrypt/internal/chat"
	"github.com/ziadkadry99/medicrypt/internal/db"
	"github.com/ziadkadry99/medicrypt/internal/metrics"
)

// DefaultHost is the bind address when Config.Host is empty.
const DefaultHost = "127.0.0.1"

// localOrigins are the browser origins accepted for CORS and WebSocket
// upgrades unless AllowAll is set.
var localOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}

// Config holds server configuration.
type Config struct {
	Host     string
	Port     int
	AllowAll bool // allow all origins (dev mode)

	// Role is the role of every chat session. Researcher servers never
	// mount the access log, which carries patient identifiers.
	Role access.Role
	// AuditAPI mounts /api/audit.
	AuditAPI bool
}

// SessionFactory opens a new chat session for a WebSocket connection.
// The role and patient identity are fixed by the factory, never by the client.
type SessionFactory func() (*chat.Session, error)

// Server serves chat over WebSocket plus the access log and metrics.
type Server struct {
	cfg        Config
	db         *db.DB
	audit      *audit.Store
	metrics    *metrics.Metrics
	newSession SessionFactory
	log        logrus.FieldLogger
	router     chi.Router
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// New creates a server. database, m and newSession may be nil; the
// matching routes then report that the feature is not configured.
func New(cfg Config, database *db.DB, newSession SessionFactory, m *metrics.Metrics, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		cfg:        cfg,
		db:         database,
		metrics:    m,
		newSession: newSession,
		log:        log.WithField("component", "server"),
	}
	if database != nil {
		s.audit = audit.NewStore(database)
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	if cfg.AuditAPI && cfg.Role == access.RoleResearcher {
		s.log.Warn("audit API is not served to researcher sessions")
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   localOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
		corsOpts.AllowCredentials = false
	}
	r.Use(cors.Handler(corsOpts))

	// WebSocket connections outlive any request timeout.
	r.Get("/ws/chat", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		if s.metrics != nil {
			r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
		}
		if s.auditEnabled() {
			audit.RegisterRoutes(r, s.audit)
		}
	})

	return r
}

func (s *Server) auditEnabled() bool {
	return s.audit != nil && s.cfg.AuditAPI && s.cfg.Role != access.RoleResearcher
}

// checkOrigin accepts upgrades without an Origin header (non-browser
// clients) and browser origins from localOrigins.
func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowAll {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return localOrigin(origin)
}

func localOrigin(origin string) bool {
	for _, pattern := range localOrigins {
		port, ok := strings.CutPrefix(origin, strings.TrimSuffix(pattern, "*"))
		if !ok || port == "" {
			continue
		}
		if _, err := strconv.ParseUint(port, 10, 16); err == nil {
			return true
		}
	}
	return false
}

// requestLogger logs one line per request through logrus.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("http request")
		})
	}
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Addr is the listen address, loopback unless Config.Host says otherwise.
func (s *Server) Addr() string {
	host := s.cfg.Host
	if host == "" {
		host = DefaultHost
	}
	return net.JoinHostPort(host, strconv.Itoa(s.cfg.Port))
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	addr := s.Addr()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.log.WithField("addr", addr).Info("medicrypt server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
