// Package scheduler runs periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/emergent-company/emergent.kos/pkg/logger"
)

// taskTimeout bounds a single run of any task.
const taskTimeout = 30 * time.Minute

var (
	// ErrTaskNotFound is returned by RunNow for names that were never registered.
	ErrTaskNotFound = errors.New("scheduler: task not found")
	// ErrTaskRunning is returned by RunNow while another run of the same task is in flight.
	ErrTaskRunning = errors.New("scheduler: task already running")
)

// TaskFunc is the function signature for scheduled tasks
type TaskFunc func(ctx context.Context) error

type entry struct {
	id   cron.EntryID
	task TaskFunc
}

// Scheduler manages named cron tasks. A task never runs twice at the same time.
type Scheduler struct {
	cron     *cron.Cron
	log      *slog.Logger
	tasks    map[string]entry
	inFlight map[string]bool
	mu       sync.RWMutex
	running  bool
}

// NewScheduler creates a scheduler whose cron specs carry a leading seconds field.
func NewScheduler(log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		log:      log.With(logger.Scope("scheduler")),
		tasks:    make(map[string]entry),
		inFlight: make(map[string]bool),
	}
}

// Start begins the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.cron.Start()
	s.running = true
	s.log.Info("scheduler started", slog.Int("tasks", len(s.tasks)))
	return nil
}

// Stop waits for running tasks to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.log.Info("scheduler stopped gracefully")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timeout")
	}

	s.running = false
	return nil
}

// AddCronTask registers task under name, replacing any task of the same name.
// Cron format: "second minute hour day-of-month month day-of-week"
func (s *Scheduler) AddCronTask(name, schedule string, task TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.tasks[name]; ok {
		s.cron.Remove(e.id)
		delete(s.tasks, name)
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		if err := s.runTask(context.Background(), name, task); errors.Is(err, ErrTaskRunning) {
			s.log.Warn("skipping cron run, task still running", slog.String("name", name))
		}
	})
	if err != nil {
		return err
	}

	s.tasks[name] = entry{id: entryID, task: task}
	s.log.Info("added cron task",
		slog.String("name", name),
		slog.String("schedule", schedule))
	return nil
}

// RunNow executes a registered task synchronously, outside its schedule. The run is bounded by
// ctx and the task timeout.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	e, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return ErrTaskNotFound
	}
	return s.runTask(ctx, name, e.task)
}

func (s *Scheduler) runTask(parent context.Context, name string, task TaskFunc) error {
	s.mu.Lock()
	if s.inFlight[name] {
		s.mu.Unlock()
		return ErrTaskRunning
	}
	s.inFlight[name] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, name)
		s.mu.Unlock()
	}()

	start := time.Now()
	s.log.Debug("running scheduled task", slog.String("name", name))

	ctx, cancel := context.WithTimeout(parent, taskTimeout)
	defer cancel()

	if err := task(ctx); err != nil {
		s.log.Error("scheduled task failed",
			slog.String("name", name),
			logger.Error(err),
			slog.Duration("duration", time.Since(start)))
		return err
	}

	s.log.Debug("scheduled task completed",
		slog.String("name", name),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// ListTasks returns the sorted names of all scheduled tasks
func (s *Scheduler) ListTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
