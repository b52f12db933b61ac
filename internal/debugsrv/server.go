// Package debugsrv serves operator endpoints over HTTP: liveness, the
// current tasks info snapshot, recent audit entries and pprof.
package debugsrv

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"crmintctl/internal/runtime/supervisor"
	"crmintctl/internal/storage"
	"crmintctl/internal/tasksinfo"
	"crmintctl/pkg/logx"
)

const DefaultAddr = "127.0.0.1:6060"

var ErrInsecureBind = errors.New("debug server refused to start: non-loopback addr requires token or allow_insecure")

type Config struct {
	Enabled       bool
	Addr          string
	Token         string
	AllowInsecure bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Sources feeds the endpoints. Nil members disable their endpoint.
type Sources struct {
	Tasks      func() tasksinfo.Snapshot
	Goroutines func() []supervisor.TaskStats
	Audit      storage.Store
}

type Server struct {
	log logx.Logger
	src Sources

	mu   sync.Mutex
	cfg  Config
	srv  *http.Server
	addr string
	done chan struct{}
}

func New(cfg Config, src Sources, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, src: src, log: log.With(logx.String("comp", "debugsrv"))}
}

// Addr is the bound address while running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler builds the router for cfg.
func (s *Server) Handler(token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(bearerAuth(token))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if s.src.Tasks != nil {
		r.Get("/tasks", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.src.Tasks())
		})
	}
	if s.src.Goroutines != nil {
		r.Get("/goroutines", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.src.Goroutines())
		})
	}
	if s.src.Audit != nil {
		r.Get("/audit", s.handleAudit)
	}
	r.Mount("/debug", middleware.Profiler())
	return r
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "limit must be 1..1000", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := s.src.Audit.RecentAudit(r.Context(), limit)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		http.Error(w, "audit storage disabled", http.StatusNotFound)
		return
	case err != nil:
		s.log.Warn("audit query failed", logx.Err(err))
		http.Error(w, "audit query failed", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []storage.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Start binds the listener and serves in the background. It is a no-op
// when disabled or already running.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil || !s.cfg.Enabled {
		return nil
	}
	cfg := s.cfg
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = DefaultAddr
	}
	if cfg.Token == "" && !isLoopbackAddr(addr) {
		if !cfg.AllowInsecure {
			return ErrInsecureBind
		}
		s.log.Warn("debug server running without token on non-loopback addr", logx.String("addr", addr))
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(cfg.Token),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	done := make(chan struct{})
	s.srv, s.addr, s.done = srv, ln.Addr().String(), done

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("debug server stopped", logx.Err(err))
		}
	}()
	s.log.Info("debug server started", logx.String("addr", s.addr), logx.Bool("token_set", cfg.Token != ""))
	return nil
}

// Stop shuts the server down gracefully within ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv, s.addr, s.done = nil, "", nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	if err != nil {
		_ = srv.Close()
	}
	<-done
	s.log.Info("debug server stopped")
	return err
}

// Reconfigure applies cfg, restarting the server when its listener or
// handler settings changed.
func (s *Server) Reconfigure(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	prev := s.cfg
	running := s.srv != nil
	s.cfg = cfg
	s.mu.Unlock()

	switch {
	case !cfg.Enabled:
		return s.Stop(ctx)
	case !running:
		return s.Start(ctx)
	case prev != cfg:
		if err := s.Stop(ctx); err != nil {
			return err
		}
		return s.Start(ctx)
	}
	return nil
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		if tok == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.URL.Query().Get("token")
			if got == "" {
				got = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
			}
			if got != tok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil || strings.TrimSpace(h) == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
