// Package session keeps browser sessions in memory: each holds a score
// history and the reports available for download.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrsingh-rishi/articulate/history"
	"github.com/mrsingh-rishi/articulate/metrics"
	"github.com/mrsingh-rishi/articulate/report"
)

type Session struct {
	ID      string
	History *history.Log

	mu         sync.Mutex
	reports    []*report.Report
	maxReports int
	lastSeen   time.Time
}

// AddReports stores reports for download, keeping the newest maxReports.
func (s *Session) AddReports(reports ...*report.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, reports...)
	if s.maxReports > 0 && len(s.reports) > s.maxReports {
		s.reports = append([]*report.Report(nil), s.reports[len(s.reports)-s.maxReports:]...)
	}
}

func (s *Session) Report(id string) (*report.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reports {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

func (s *Session) touch(t time.Time) {
	s.mu.Lock()
	s.lastSeen = t
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

type Registry struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	ttl        time.Duration
	maxReports int
	now        func() time.Time
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

func NewRegistry(ttl time.Duration, maxReports int, m *metrics.Metrics, logger zerolog.Logger) *Registry {
	if m == nil {
		m = metrics.Default
	}
	return &Registry{
		sessions:   make(map[string]*Session),
		ttl:        ttl,
		maxReports: maxReports,
		now:        time.Now,
		metrics:    m,
		logger:     logger.With().Str("component", "session").Logger(),
	}
}

// Get returns a live session and refreshes its idle timer.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

// GetOrCreate returns the session for id, starting a new one with a fresh ID
// when id is empty or unknown.
func (r *Registry) GetOrCreate(id string) *Session {
	if s, ok := r.Get(id); ok {
		return s
	}
	s := &Session{
		ID:         uuid.NewString(),
		History:    history.New(),
		maxReports: r.maxReports,
		lastSeen:   r.now(),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.metrics.SessionsActive.Set(float64(len(r.sessions)))
	r.mu.Unlock()
	r.logger.Debug().Str("sessionId", s.ID).Msg("session started")
	return s
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the TTL and returns how many were
// removed.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			s.History.Reset()
			delete(r.sessions, id)
			removed++
		}
	}
	r.metrics.SessionsActive.Set(float64(len(r.sessions)))
	if removed > 0 {
		r.logger.Info().Int("removed", removed).Int("remaining", len(r.sessions)).Msg("expired idle sessions")
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
