// Package server exposes the notification core over HTTP: the SSE stream,
// the fallback pull endpoints, and the admin trigger/reminder surface.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"taskpulse/internal/hub"
	"taskpulse/internal/mail"
	"taskpulse/internal/scan"
	"taskpulse/internal/store"
	"taskpulse/pkg/logx"
)

// Config controls the HTTP listener.
type Config struct {
	Addr string // default :8080

	// AdminToken guards the trigger/reminder endpoints; empty disables them.
	AdminToken string

	// Per-IP request rate for the admin endpoints. Defaults 1 rps, burst 5.
	RateRPS   float64
	RateBurst int

	ReadHeaderTimeout time.Duration // default 10s
	IdleTimeout       time.Duration // default 2m

	// Pull endpoint windows. Wider than the scheduled sweep on purpose:
	// the pull path is a catch-up view, not an urgency signal.
	PullDueWindow   time.Duration // default 24h
	PullStartWindow time.Duration // default 2h
	PullProjWindow  time.Duration // default 24h
	PullLimit       int           // default 50
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.RateRPS <= 0 {
		c.RateRPS = 1
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 5
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = 10 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.PullDueWindow <= 0 {
		c.PullDueWindow = 24 * time.Hour
	}
	if c.PullStartWindow <= 0 {
		c.PullStartWindow = 2 * time.Hour
	}
	if c.PullProjWindow <= 0 {
		c.PullProjWindow = 24 * time.Hour
	}
	if c.PullLimit <= 0 {
		c.PullLimit = 50
	}
	return c
}

type Server struct {
	cfg    Config
	log    logx.Logger
	hub    *hub.Hub
	scan   *scan.Service
	job    *mail.Job
	sender *mail.Sender
	store  store.Store
	stats  *Stats

	limiter *ipLimiter
	srv     *http.Server
	nowFn   func() time.Time
}

func New(cfg Config, h *hub.Hub, sc *scan.Service, job *mail.Job, sender *mail.Sender, st store.Store, stats *Stats, log logx.Logger) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		cfg:     cfg,
		log:     log,
		hub:     h,
		scan:    sc,
		job:     job,
		sender:  sender,
		store:   st,
		stats:   stats,
		limiter: newIPLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst),
		nowFn:   time.Now,
	}
	s.srv = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.routes(),
		// WriteTimeout stays zero: the SSE stream is a deliberately
		// unbounded response.
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /notifications/tasks", s.handleTaskPull)
	mux.HandleFunc("GET /notifications/projects", s.handleProjectPull)
	mux.HandleFunc("POST /scan", s.admin(s.handleScan))
	mux.HandleFunc("POST /reminders", s.admin(s.handleReminders))
	mux.HandleFunc("POST /reminders/send", s.admin(s.handleRemindersSend))
	mux.HandleFunc("GET /reminders/preview", s.admin(s.handleReminderPreview))
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /statusz", s.handleStatusz)
	return mux
}

// Start begins serving in the background. The returned channel yields the
// terminal ListenAndServe error, if any.
func (s *Server) Start(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", logx.String("addr", s.cfg.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

func (s *Server) Stop(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Warn("http shutdown", logx.Err(err))
	}
}

// userID extracts the caller identity. The service sits behind a fronting
// proxy that authenticates the session and injects X-User-ID; an absent
// header means an unauthenticated request.
func (s *Server) userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
}

// admin wraps h with the bearer-token check and the per-IP rate limit.
func (s *Server) admin(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.limiter.allow(ip) {
			s.log.Warn("rate limit exceeded", logx.String("ip", ip), logx.String("path", r.URL.Path))
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		if s.cfg.AdminToken == "" {
			http.Error(w, "admin endpoints disabled", http.StatusForbidden)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("response encode failed", logx.Err(err))
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	ip := r.RemoteAddr
	if i := strings.LastIndex(ip, ":"); i != -1 {
		ip = ip[:i]
	}
	return ip
}

// ipLimiter keeps one token bucket per client IP.
type ipLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*rate.Limiter
}

func newIPLimiter(limit rate.Limit, burst int) *ipLimiter {
	return &ipLimiter{limit: limit, burst: burst, clients: map[string]*rate.Limiter{}}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	lim, ok := l.clients[ip]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients[ip] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
