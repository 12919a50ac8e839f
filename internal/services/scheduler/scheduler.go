// Package scheduler arms the timed phase transitions of running games.
package scheduler

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/impostorgame/internal/dependencies/clock"
	"github.com/mcoot/impostorgame/internal/model"
)

// ErrStopped is returned by Arm once the scheduler has been stopped
var ErrStopped = errors.New("scheduler stopped")

// Scheduler keeps at most one pending task per game
type Scheduler struct {
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	tasks   map[model.GameID]*task
	gen     uint64
	stopped bool
}

type task struct {
	gen   uint64
	phase model.Phase
	due   time.Time
	timer clock.Timer
}

// New creates a new Scheduler
func New(clk clock.Clock, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		clock:  clk,
		logger: logger,
		tasks:  make(map[model.GameID]*task),
	}
}

// Arm schedules fn to run after d for the given game, superseding any pending task.
// phase records which window the task closes.
func (s *Scheduler) Arm(gameID model.GameID, phase model.Phase, d time.Duration, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if d < 0 {
		d = 0
	}

	if prev, ok := s.tasks[gameID]; ok {
		prev.timer.Stop()
	}

	s.gen++
	gen := s.gen
	t := &task{
		gen:   gen,
		phase: phase,
		due:   s.clock.Now().Add(d),
	}
	t.timer = s.clock.AfterFunc(d, func() {
		s.fire(gameID, gen, fn)
	})
	s.tasks[gameID] = t

	s.logger.Debug("timer armed",
		slog.String("game_id", string(gameID)),
		slog.String("phase", string(phase)),
		slog.Duration("delay", d),
	)
	return nil
}

// fire runs fn only if the task is still the current one for the game
func (s *Scheduler) fire(gameID model.GameID, gen uint64, fn func()) {
	s.mu.Lock()
	t, ok := s.tasks[gameID]
	if !ok || t.gen != gen || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, gameID)
	s.mu.Unlock()

	fn()
}

// Cancel drops the pending task for a game. Returns false if none was pending.
func (s *Scheduler) Cancel(gameID model.GameID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[gameID]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, gameID)
	return true
}

// Pending reports the phase and due time of the game's pending task
func (s *Scheduler) Pending(gameID model.GameID) (model.Phase, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[gameID]
	if !ok {
		return "", time.Time{}, false
	}
	return t.phase, t.due, true
}

// Len returns the number of pending tasks
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels every pending task; later calls to Arm fail with ErrStopped
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, id)
	}
	s.stopped = true
}

// Interface for dependency injection
type SchedulerInterface interface {
	Arm(gameID model.GameID, phase model.Phase, d time.Duration, fn func()) error
	Cancel(gameID model.GameID) bool
	Pending(gameID model.GameID) (model.Phase, time.Time, bool)
	Stop()
}

var _ SchedulerInterface = (*Scheduler)(nil)
