// Package toast serializes near-simultaneous notification bursts into an
// orderly stream of transient presentations: one visible at a time, FIFO,
// deduplicated per session and rate-limited between starts.
package toast

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"portfolio-notify/internal/model"
)

// Reason is why a presentation ended.
type Reason string

const (
	ReasonTimeout   Reason = "timeout"
	ReasonDismissed Reason = "dismissed"
	ReasonActed     Reason = "acted"
)

// Presenter displays one scheduled record and reports completion exactly
// once.
type Presenter interface {
	Present(rec model.NotificationRecord, onComplete func(Reason))
}

// SchedulerConfig carries the timing knobs. These were hard-coded literals
// in the first cut of the web app; now they come from configuration.
type SchedulerConfig struct {
	// RecencyWindow separates live pushes from historical records surfaced
	// by a page-load fetch; only records created within the window of the
	// evaluation instant may toast.
	RecencyWindow time.Duration
	// MinSpacing is the minimum gap between two presentation starts.
	MinSpacing time.Duration
	// GraceDelay is the pause between a completion and the next drain.
	GraceDelay time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		RecencyWindow: 5 * time.Second,
		MinSpacing:    2 * time.Second,
		GraceDelay:    100 * time.Millisecond,
	}
}

// Scheduler owns the session's dedup set, FIFO queue and last-shown
// timestamp exclusively. One instance per active user; Reset before
// reusing it for another user, otherwise toasts leak across accounts.
type Scheduler struct {
	cfg       SchedulerConfig
	presenter Presenter
	logger    *zap.Logger

	// injectable for tests
	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer

	mu           sync.Mutex
	queue        []model.NotificationRecord
	shown        map[int]struct{}
	presenting   bool
	lastShownAt  time.Time
	spacingTimer *time.Timer
	// gen invalidates timer and completion callbacks that outlive a Reset.
	gen uint64
}

func NewScheduler(cfg SchedulerConfig, presenter Presenter, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		presenter: presenter,
		logger:    logger,
		now:       time.Now,
		afterFunc: time.AfterFunc,
		shown:     make(map[int]struct{}),
	}
}

// Evaluate decides whether rec toasts. Eligible only when unread, not yet
// scheduled this session, and created within the recency window of now.
// Eligible records are queued in arrival order and the dedup set gains the
// id immediately, for the rest of the session.
func (s *Scheduler) Evaluate(rec model.NotificationRecord) {
	s.mu.Lock()
	if rec.IsRead {
		s.mu.Unlock()
		return
	}
	if _, seen := s.shown[rec.ID]; seen {
		s.mu.Unlock()
		return
	}
	if s.now().Sub(rec.CreatedAt) > s.cfg.RecencyWindow {
		s.logger.Debug("Skipping stale notification for toast",
			zap.Int("id", rec.ID),
			zap.Time("created_at", rec.CreatedAt),
		)
		s.mu.Unlock()
		return
	}

	s.shown[rec.ID] = struct{}{}
	s.queue = append(s.queue, rec)
	s.mu.Unlock()

	s.drain()
}

// Reset clears queue, dedup set and spacing state. Mandatory before
// reconnecting for a different user.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.queue = nil
	s.shown = make(map[int]struct{})
	s.presenting = false
	s.lastShownAt = time.Time{}
	if s.spacingTimer != nil {
		s.spacingTimer.Stop()
		s.spacingTimer = nil
	}
}

// Pending returns the number of queued, not yet presented records.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// drain pops the queue head into presentation when nothing is presented
// and the spacing constraint is satisfied; otherwise it arms a retry timer
// for the remaining wait.
func (s *Scheduler) drain() {
	s.mu.Lock()
	if s.presenting || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}

	now := s.now()
	if !s.lastShownAt.IsZero() {
		if wait := s.cfg.MinSpacing - now.Sub(s.lastShownAt); wait > 0 {
			if s.spacingTimer == nil {
				gen := s.gen
				s.spacingTimer = s.afterFunc(wait, func() { s.onSpacingTimer(gen) })
			}
			s.mu.Unlock()
			return
		}
	}

	rec := s.queue[0]
	s.queue = s.queue[1:]
	s.presenting = true
	s.lastShownAt = now
	gen := s.gen
	s.mu.Unlock()

	s.logger.Debug("Presenting toast", zap.Int("id", rec.ID), zap.String("type", rec.Type))
	s.presenter.Present(rec, func(r Reason) { s.onComplete(gen, rec.ID, r) })
}

func (s *Scheduler) onSpacingTimer(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.spacingTimer = nil
	s.mu.Unlock()

	s.drain()
}

func (s *Scheduler) onComplete(gen uint64, id int, reason Reason) {
	s.mu.Lock()
	if gen != s.gen {
		// Completion of a toast presented before a Reset; the new session
		// owns the state now.
		s.mu.Unlock()
		return
	}
	s.presenting = false
	s.mu.Unlock()

	s.logger.Debug("Toast completed",
		zap.Int("id", id),
		zap.String("reason", string(reason)),
	)

	s.afterFunc(s.cfg.GraceDelay, func() {
		s.mu.Lock()
		stale := gen != s.gen
		s.mu.Unlock()
		if !stale {
			s.drain()
		}
	})
}
