package main

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/mahaj/streamfeed/pkg/auth"
	"github.com/mahaj/streamfeed/pkg/directory"
	"github.com/mahaj/streamfeed/pkg/errs"
)

// limiterPool rate-limits mention autocomplete per user. Typing fires
// a query every debounce tick, so a modest per-user budget is plenty.
type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   rate.Limit
	burst int
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	return &limiterPool{m: make(map[string]*rate.Limiter), rps: rate.Limit(rps), burst: burst}
}

func (p *limiterPool) allow(key string) bool {
	p.mu.Lock()
	l, ok := p.m[key]
	if !ok {
		l = rate.NewLimiter(p.rps, p.burst)
		p.m[key] = l
	}
	p.mu.Unlock()
	return l.Allow()
}

// handleMentions serves GET /messages/mentions?q=<partial>.
func (s *server) handleMentions(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())
	if claims == nil {
		writeError(w, errs.Unauthorized("missing claims"))
		return
	}

	if !s.limiters.allow(claims.UserID) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	q := r.URL.Query().Get("q")
	if len(q) > 40 {
		writeError(w, errs.Validation("query too long"))
		return
	}

	entries, err := s.directory.Search(r.Context(), q, s.cfg.MentionLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []directory.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
