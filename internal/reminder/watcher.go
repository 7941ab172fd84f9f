// Package reminder polls the schedule and raises due alerts at most once per
// entry, plus a rolling list of hearings coming up soon.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/csheth/lexdesk/internal/backend"
	"github.com/csheth/lexdesk/internal/logger"
)

const (
	DefaultPeriod    = 30 * time.Second
	DefaultDueWindow = 60 * time.Second
	DefaultHorizon   = 24 * time.Hour
)

var (
	// ErrAuthExpired is returned by Poll when the schedule fetch was rejected
	// with 401. The polling loop stops.
	ErrAuthExpired = errors.New("session expired; log in again")
	// ErrInvalidConfig reports a period that could skip over a due window.
	ErrInvalidConfig = errors.New("invalid reminder configuration")
)

// API is the part of the Backend API the watcher polls.
type API interface {
	ListSchedule(ctx context.Context) ([]backend.ScheduleEntry, error)
}

// Config tunes a Watcher. Zero durations take the defaults.
type Config struct {
	Period    time.Duration
	DueWindow time.Duration
	Horizon   time.Duration
	Now       func() time.Time
	// Handler receives events on the polling goroutine together with the
	// poll's context. It may block until ctx is done but must not call Stop.
	Handler func(ctx context.Context, ev Event)
}

// Handle identifies one running polling loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed when the loop has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Watcher owns the notified set for one authenticated session.
type Watcher struct {
	api API
	cfg Config

	mu          sync.Mutex
	handle      *Handle
	notified    map[int64]struct{}
	upcoming    []backend.ScheduleEntry
	authExpired bool
}

func New(api API, cfg Config) (*Watcher, error) {
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.DueWindow == 0 {
		cfg.DueWindow = DefaultDueWindow
	}
	if cfg.Horizon == 0 {
		cfg.Horizon = DefaultHorizon
	}
	if cfg.Period < 0 || cfg.DueWindow < 0 || cfg.Horizon < 0 {
		return nil, fmt.Errorf("%w: durations must be positive", ErrInvalidConfig)
	}
	// Every due window must contain at least one tick.
	if cfg.Period >= cfg.DueWindow {
		return nil, fmt.Errorf("%w: period %s must be shorter than due window %s", ErrInvalidConfig, cfg.Period, cfg.DueWindow)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Watcher{api: api, cfg: cfg, notified: make(map[int64]struct{})}, nil
}

// Start launches the polling loop. The first poll runs immediately. If a loop
// is already running its handle is returned and nothing new starts.
func (w *Watcher) Start(ctx context.Context) *Handle {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.handle != nil {
		return w.handle
	}
	loopCtx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	w.handle = h
	go w.run(loopCtx, h)
	logger.Debugf("[reminder] watcher started (every %s)", w.cfg.Period)
	return h
}

// Stop cancels the loop behind h and waits for it to exit. No handler call
// happens after Stop returns. A nil or stale handle is ignored.
func (w *Watcher) Stop(h *Handle) {
	if h == nil {
		return
	}
	w.mu.Lock()
	if w.handle == h {
		w.handle = nil
	}
	w.mu.Unlock()
	h.cancel()
	<-h.done
}

// Running reports whether a polling loop is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.handle != nil
}

func (w *Watcher) run(ctx context.Context, h *Handle) {
	defer close(h.done)
	defer func() {
		w.mu.Lock()
		if w.handle == h {
			w.handle = nil
		}
		w.mu.Unlock()
	}()

	ticker := time.NewTicker(w.cfg.Period)
	defer ticker.Stop()

	for {
		if err := w.Poll(ctx); errors.Is(err, ErrAuthExpired) {
			logger.Warnf("[reminder] stopping: %v", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll runs one fetch-and-evaluate cycle.
func (w *Watcher) Poll(ctx context.Context) error {
	entries, err := w.api.ListSchedule(ctx)
	if backend.IsUnauthorized(err) {
		w.mu.Lock()
		w.upcoming = nil
		first := !w.authExpired
		w.authExpired = true
		w.mu.Unlock()
		if first && ctx.Err() == nil {
			w.emit(ctx, Event{Kind: EventAuthExpired, At: w.cfg.Now()})
		}
		return ErrAuthExpired
	}
	if err != nil {
		if ctx.Err() == nil {
			logger.Warnf("[reminder] fetch schedule: %v", err)
		}
		return fmt.Errorf("fetch schedule: %w", err)
	}

	// A poll cancelled during the fetch must not consume due ids it will
	// never announce.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	now := w.cfg.Now()
	var due []backend.ScheduleEntry
	upcoming := make([]backend.ScheduleEntry, 0)

	w.mu.Lock()
	w.authExpired = false
	for _, entry := range entries {
		if !entry.NotificationEnabled {
			continue
		}
		diff := entry.CourtDate.Sub(now)
		if abs(diff) < w.cfg.DueWindow {
			if _, seen := w.notified[entry.ID]; !seen {
				w.notified[entry.ID] = struct{}{}
				due = append(due, entry)
			}
		}
		if diff > 0 && diff < w.cfg.Horizon {
			upcoming = append(upcoming, entry)
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].CourtDate.Before(upcoming[j].CourtDate.Time)
	})
	w.upcoming = upcoming
	w.mu.Unlock()

	for _, entry := range due {
		logger.WithField("schedule_id", entry.ID).Infof("[reminder] due: %s at %s", entry.CaseName, entry.CourtDate)
		w.emit(ctx, Event{Kind: EventDue, Entry: entry, At: now})
	}
	w.emit(ctx, Event{Kind: EventUpcoming, Upcoming: append([]backend.ScheduleEntry(nil), upcoming...), At: now})
	return nil
}

// Upcoming returns the list computed by the last successful poll.
func (w *Watcher) Upcoming() []backend.ScheduleEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]backend.ScheduleEntry(nil), w.upcoming...)
}

// Notified reports whether a due alert was already raised for id.
func (w *Watcher) Notified(id int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.notified[id]
	return ok
}

func (w *Watcher) emit(ctx context.Context, ev Event) {
	if w.cfg.Handler != nil {
		w.cfg.Handler(ctx, ev)
	}
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
