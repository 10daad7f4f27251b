package toast

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"portfolio-notify/internal/model"
	"portfolio-notify/pkg/metrics"
)

// Renderer is the visual surface a toast appears on. The core does not
// render; cmd/notifytail brings a terminal renderer.
type Renderer interface {
	Show(rec model.NotificationRecord)
	Hide(rec model.NotificationRecord)
}

// Navigator performs the deep-link jump when a toast's action fires.
type Navigator interface {
	Navigate(url string)
}

// Toast is one live presentation. Dismiss and Act are the manual overrides
// of the auto-hide countdown; whichever path ends the toast first wins and
// the completion callback fires exactly once.
type Toast struct {
	rec        model.NotificationRecord
	renderer   Renderer
	navigator  Navigator
	onComplete func(Reason)

	mu    sync.Mutex
	done  bool
	timer *time.Timer
}

// Dismiss ends the toast manually.
func (t *Toast) Dismiss() {
	t.complete(ReasonDismissed)
}

// Act ends the toast and triggers navigation to the record's action URL
// (no-op if absent). Navigation only happens when this call wins the
// completion race: a timeout that fired first must not navigate.
func (t *Toast) Act() {
	if !t.complete(ReasonActed) {
		return
	}

	if t.rec.ActionURL != "" && t.navigator != nil {
		t.navigator.Navigate(t.rec.ActionURL)
	}
}

// complete reports whether this call is the one that ended the toast.
func (t *Toast) complete(reason Reason) bool {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return false
	}
	t.done = true
	if t.timer != nil {
		// Stopping the countdown here is what keeps the timeout path from
		// firing a second completion.
		t.timer.Stop()
	}
	t.mu.Unlock()

	t.renderer.Hide(t.rec)
	metrics.IncrementToastCompleted(string(reason))
	t.onComplete(reason)
	return true
}

// TimedPresenter shows one record at a time with a bounded display window.
type TimedPresenter struct {
	duration  time.Duration
	renderer  Renderer
	navigator Navigator
	logger    *zap.Logger

	mu     sync.Mutex
	active *Toast
}

func NewTimedPresenter(duration time.Duration, renderer Renderer, navigator Navigator, logger *zap.Logger) *TimedPresenter {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return &TimedPresenter{
		duration:  duration,
		renderer:  renderer,
		navigator: navigator,
		logger:    logger,
	}
}

// Present displays rec and starts the auto-hide countdown. The scheduler
// guarantees at most one record is ever in presentation; Active exposes the
// live toast so the UI can wire its dismiss and act controls.
func (p *TimedPresenter) Present(rec model.NotificationRecord, onComplete func(Reason)) {
	t := &Toast{
		rec:       rec,
		renderer:  p.renderer,
		navigator: p.navigator,
	}
	t.onComplete = func(r Reason) {
		p.mu.Lock()
		if p.active == t {
			p.active = nil
		}
		p.mu.Unlock()
		onComplete(r)
	}

	p.mu.Lock()
	p.active = t
	p.mu.Unlock()

	p.renderer.Show(rec)
	t.mu.Lock()
	t.timer = time.AfterFunc(p.duration, func() { t.complete(ReasonTimeout) })
	t.mu.Unlock()
}

// Active returns the toast currently on screen, or nil.
func (p *TimedPresenter) Active() *Toast {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}
