package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"clubfines/internal/cache"
	"clubfines/internal/core"
	applog "clubfines/internal/log"
	"clubfines/internal/middleware/ratelimit"
	"clubfines/internal/middleware/security"
	"clubfines/internal/middleware/trace"
	"clubfines/internal/services"
)

// Options tunes the server around the fine service.
type Options struct {
	AdminPassword string
	CacheTTL      time.Duration
	CacheSize     int
	RateLimit     ratelimit.Config
}

// Server is the JSON API over a FineService.
type Server struct {
	http.Server
	svc    *services.FineService
	logger *applog.Logger

	// Reporting caches, cleared on every committed change
	leaderboardCache *cache.LRUCache[[]standingView]
	feedCache        *cache.LRUCache[[]entryView]
	summaryCache     *cache.LRUCache[summaryView]
	cacheManager     *cache.Manager
	generation       atomic.Uint64

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	admin            *security.AdminGuard

	metrics      appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime         time.Time
	membersAdded   atomic.Int64
	finesRecorded  atomic.Int64
	entriesDeleted atomic.Int64
	catalogEdits   atomic.Int64
}

func (s *Server) cacheKey(name string) string {
	return strconv.FormatUint(s.generation.Load(), 10) + ":" + name
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc *services.FineService, opts Options) *Server {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}

	detector := security.NewDetector()
	s := &Server{
		svc:              svc,
		logger:           applog.NewLogger(applog.ComponentHTTP),
		leaderboardCache: cache.NewLRUCache[[]standingView](1, opts.CacheTTL),
		feedCache:        cache.NewLRUCache[[]entryView](1, opts.CacheTTL),
		summaryCache:     cache.NewLRUCache[summaryView](opts.CacheSize, opts.CacheTTL),
		cacheManager:     cache.NewManager(),
		rateLimiter:      ratelimit.NewLimiter(opts.RateLimit),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP),
		admin:            security.NewAdminGuard(opts.AdminPassword),
	}
	s.metrics.uptime = time.Now()

	s.cacheManager.Register(s.leaderboardCache)
	s.cacheManager.Register(s.feedCache)
	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	svc.OnChange(s.onChange)

	if !s.admin.Enabled() {
		s.logger.Warn("ADMIN_PASSWORD is empty, admin routes are disabled")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/members", s.handleListMembers)
	mux.HandleFunc("POST /api/members", s.write(s.handleAddMember))
	mux.HandleFunc("GET /api/members/{name}", s.handleMemberSummary)

	mux.HandleFunc("GET /api/fines", s.adminOnly(s.handleFeed))
	mux.HandleFunc("POST /api/fines", s.write(s.handleRecordFine))
	mux.HandleFunc("DELETE /api/fines/{id}", s.write(s.handleDeleteFine))

	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)

	mux.HandleFunc("GET /api/catalog/events", s.handleListEventTypes)
	mux.HandleFunc("PUT /api/catalog/events", s.write(s.handleReplaceEventTypes))
	mux.HandleFunc("GET /api/catalog/rules", s.handleListRules)
	mux.HandleFunc("PUT /api/catalog/rules", s.write(s.handleReplaceRules))
	mux.HandleFunc("GET /api/catalog/rules/default", s.handleDefaultAmount)

	var handler http.Handler = mux
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = applog.Middleware(s.logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// adminOnly guards h with the shared admin password.
func (s *Server) adminOnly(h http.HandlerFunc) http.HandlerFunc {
	return s.admin.Require(h, s.denyAdmin)
}

// write guards a mutating handler: rate limited per client, admin only.
func (s *Server) write(h http.HandlerFunc) http.HandlerFunc {
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	})
	return limited(s.adminOnly(h)).ServeHTTP
}

func (s *Server) denyAdmin(w http.ResponseWriter, _ *http.Request) {
	if !s.admin.Enabled() {
		ErrorResponse(http.StatusForbidden, "admin access is disabled").Write(w)
		return
	}
	ErrorResponse(http.StatusUnauthorized, "admin password required").Write(w)
}

func (s *Server) onChange(c core.Change) {
	switch c.Op {
	case core.OpMemberAdded:
		s.metrics.membersAdded.Add(1)
	case core.OpFineRecorded:
		s.metrics.finesRecorded.Add(1)
	case core.OpEntryDeleted:
		s.metrics.entriesDeleted.Add(1)
	case core.OpEventsReplaced, core.OpRulesReplaced:
		s.metrics.catalogEdits.Add(1)
	}
	s.invalidateReports()
}

// invalidateReports moves readers to a fresh key space before clearing, so a
// read computed from the previous book cannot be served after the change.
func (s *Server) invalidateReports() {
	s.generation.Add(1)
	s.leaderboardCache.Clear()
	s.feedCache.Clear()
	s.summaryCache.Clear()
}

// Shutdown stops background cleanup and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		s.cacheManager.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
