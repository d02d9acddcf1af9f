package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"clubfines/internal/core"
	applog "clubfines/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.uptime).String(),
	}).Write(w)
}

// handleReady reports whether the ledger has been loaded
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.svc.Ready() {
		checks["ledger"] = map[string]any{
			"status":        "ok",
			"next_entry_id": s.svc.NextEntryID(),
		}
	} else {
		checks["ledger"] = "not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	checks["cache"] = map[string]any{
		"leaderboard_entries": s.leaderboardCache.Size(),
		"feed_entries":        s.feedCache.Size(),
		"summary_entries":     s.summaryCache.Size(),
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
	}
	checks["admin"] = s.admin.Enabled()

	NewJSONResponse().Status(httpStatus).Data(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()
	summaryStats := s.summaryCache.Stats()
	boardStats := s.leaderboardCache.Stats()
	feedStats := s.feedCache.Stats()
	snap := s.svc.Snapshot()

	w.WriteHeader(http.StatusOK)

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
	}
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", name, help, name, name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	gauge("http_response_time_avg_microseconds", "Average response time", traceMetrics.AverageResponseTime)
	counter("members_added_total", "Members added since start", s.metrics.membersAdded.Load())
	counter("fines_recorded_total", "Fines recorded since start", s.metrics.finesRecorded.Load())
	counter("entries_deleted_total", "Ledger entries deleted since start", s.metrics.entriesDeleted.Load())
	counter("catalog_replacements_total", "Catalog replacements since start", s.metrics.catalogEdits.Load())
	gauge("members", "Members on the roster", int64(len(snap.Members)))
	gauge("ledger_entries", "Entries in the ledger", int64(len(snap.Entries)))
	counter("cache_hits_total", "Total cache hits", summaryStats.Hits+boardStats.Hits+feedStats.Hits)
	counter("cache_misses_total", "Total cache misses", summaryStats.Misses+boardStats.Misses+feedStats.Misses)
	counter("rate_limit_hits_total", "Total rate limit hits", rateLimitMetrics.TotalHits)
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	counter("suspicious_requests_total", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	gauge("uptime_seconds", "Application uptime in seconds", int64(time.Since(s.metrics.uptime).Seconds()))
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(toMemberViews(s.svc.Members())).Write(w)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	m, err := s.svc.AddMember(ctx, p.Get("name"))
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(toMemberView(m)).Write(w)
}

// handleMemberSummary lists one member's balance and entries. It is also
// where entries are picked for deletion.
func (s *Server) handleMemberSummary(w http.ResponseWriter, r *http.Request) {
	name := sanitizeInput(r.PathValue("name"))
	key := s.cacheKey(name)

	if v, ok := s.summaryCache.Get(key); ok {
		s.logger.DebugContext(r.Context(), "Summary cache hit", applog.FieldMember, name)
		NewJSONResponse().Data(v).Write(w)
		return
	}

	ps, err := s.svc.PersonalSummary(name)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	v := toSummaryView(ps)
	s.summaryCache.Set(key, v)
	NewJSONResponse().Data(v).Write(w)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	key := s.cacheKey("feed")
	v, ok := s.feedCache.Get(key)
	if !ok {
		v = toEntryViews(s.svc.FullFeed())
		s.feedCache.Set(key, v)
	}
	NewJSONResponse().Data(v).Write(w)
}

func (s *Server) handleRecordFine(w http.ResponseWriter, r *http.Request) {
	in, err := ParseFineRequest(NewRequestBodyParser(w, r), FineRequestDefaults{
		Today:         core.Today,
		DefaultAmount: s.svc.DefaultAmountFor,
	})
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	e, m, err := s.svc.RecordFine(ctx, in)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", fmt.Sprintf("/api/fines/%d", e.ID)).
		Data(fineResult{Entry: toEntryView(e), Member: toMemberView(m)}).
		Write(w)
}

func (s *Server) handleDeleteFine(w http.ResponseWriter, r *http.Request) {
	id, err := ParseEntryID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	e, m, err := s.svc.DeleteEntry(ctx, id)
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Data(fineResult{
		Entry:    toEntryView(e),
		Member:   toMemberView(m),
		Refunded: e.Amount,
	}).Write(w)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	key := s.cacheKey("leaderboard")
	v, ok := s.leaderboardCache.Get(key)
	if !ok {
		v = toStandingViews(s.svc.Leaderboard())
		s.leaderboardCache.Set(key, v)
	}
	NewJSONResponse().Data(v).Write(w)
}

func (s *Server) handleListEventTypes(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(toEventTypeViews(s.svc.EventTypes())).Write(w)
}

func (s *Server) handleReplaceEventTypes(w http.ResponseWriter, r *http.Request) {
	rows, err := DecodeEventTypes(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	if err := s.svc.ReplaceEventTypes(ctx, rows); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(toEventTypeViews(s.svc.EventTypes())).Write(w)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(toRuleViews(s.svc.Rules())).Write(w)
}

func (s *Server) handleReplaceRules(w http.ResponseWriter, r *http.Request) {
	rows, err := DecodeRules(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	if err := s.svc.ReplaceRules(ctx, rows); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(toRuleViews(s.svc.Rules())).Write(w)
}

// handleDefaultAmount prefills the amount field for a chosen violation.
func (s *Server) handleDefaultAmount(w http.ResponseWriter, r *http.Request) {
	violation := sanitizeInput(r.URL.Query().Get("violation"))
	if violation == "" {
		writeError(w, r, applog.OpRead, fmt.Errorf("%w: violation is required", ErrMalformed))
		return
	}
	NewJSONResponse().Data(ruleView{
		Violation: violation,
		Amount:    s.svc.DefaultAmountFor(violation),
	}).Write(w)
}

// requestContext bounds service calls that might block on the store.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 15*time.Second)
}
