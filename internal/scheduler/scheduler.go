// ABOUTME: Single-goroutine task runtime that owns all session and conversation state
// ABOUTME: Foreign goroutines hand work in through Submit; blocking jobs run on a bounded pool

package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrNotRunning is returned when work is handed to a scheduler that has not
// started yet or has already stopped.
var ErrNotRunning = errors.New("scheduler not running")

// ErrAlreadyStarted is returned when Run is called twice.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Task is a unit of work executed on the scheduler goroutine.
type Task func(ctx context.Context)

// Job is blocking work executed on the worker pool.
type Job func(ctx context.Context) error

// Config sizes the scheduler.
type Config struct {
	// QueueSize is the capacity of the hand-off queue.
	QueueSize int
	// Workers bounds how many pool jobs run at once.
	Workers int
}

// Scheduler runs tasks one at a time on a single goroutine. It is the only
// goroutine allowed to touch session and conversation state.
type Scheduler struct {
	tasks   chan Task
	pool    *semaphore.Weighted
	stopped chan struct{}
	logger  *slog.Logger

	mu      sync.RWMutex
	started bool
	running bool

	// pending counts queued or executing tasks, inflight counts pool jobs.
	// A job's completion task is queued before the job stops counting, so
	// both reaching zero means the scheduler is idle.
	pending  atomic.Int64
	inflight atomic.Int64
}

// New creates a scheduler. Pass nil logger for default.
func New(cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Scheduler{
		tasks:   make(chan Task, cfg.QueueSize),
		pool:    semaphore.NewWeighted(int64(cfg.Workers)),
		stopped: make(chan struct{}),
		logger:  logger.With("component", "scheduler"),
	}
}

// Run executes tasks until ctx is canceled. It may only be called once.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.running = true
	s.mu.Unlock()

	s.logger.Info("scheduler started", "queue_size", cap(s.tasks))

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.stopped)
		s.logger.Info("scheduler stopped", "dropped_tasks", len(s.tasks))
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case task := <-s.tasks:
			s.execute(ctx, task)
		}
	}
}

// execute runs one task, keeping a panicking task from killing the scheduler.
func (s *Scheduler) execute(ctx context.Context, task Task) {
	defer s.pending.Add(-1)
	defer recoverPanic(s.logger, "task")
	task(ctx)
}

// Running reports whether the scheduler is accepting tasks.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Submit hands a task to the scheduler goroutine. It is safe to call from any
// goroutine. It blocks while the queue is full and returns false if the
// scheduler is not running.
func (s *Scheduler) Submit(task Task) bool {
	if task == nil || !s.Running() {
		return false
	}
	s.pending.Add(1)
	select {
	case s.tasks <- task:
		return true
	case <-s.stopped:
		s.pending.Add(-1)
		return false
	}
}

// Do submits fn and waits for it to finish on the scheduler goroutine.
func (s *Scheduler) Do(ctx context.Context, fn Task) error {
	done := make(chan struct{})
	if !s.Submit(func(taskCtx context.Context) {
		defer close(done)
		fn(taskCtx)
	}) {
		return ErrNotRunning
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrNotRunning
		}
	}
}

// Go runs a blocking job on the worker pool without waiting for it. Failures
// and panics are logged and never returned. Jobs are not canceled when the
// scheduler stops; they carry their own timeouts.
func (s *Scheduler) Go(name string, job Job) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Add(-1)
		if err := s.runJob(name, job); err != nil {
			s.logger.Warn("background job failed", "job", name, "error", err)
		}
	}()
}

// runJob acquires a pool slot and runs job with panic recovery.
func (s *Scheduler) runJob(name string, job Job) (err error) {
	ctx := context.Background()
	if err := s.pool.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.pool.Release(1)
	defer func() {
		if r := recoverValue(s.logger, name, recover()); r != nil {
			err = r
		}
	}()
	return job(ctx)
}

// Await runs job on the worker pool, then hands its result back to the
// scheduler goroutine by submitting then. If the scheduler has stopped by the
// time job finishes, the result is dropped and logged.
func Await[T any](s *Scheduler, name string, job func(ctx context.Context) (T, error), then func(ctx context.Context, result T, err error)) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Add(-1)

		var result T
		jobErr := s.runJob(name, func(ctx context.Context) error {
			var err error
			result, err = job(ctx)
			return err
		})

		if !s.Submit(func(ctx context.Context) { then(ctx, result, jobErr) }) {
			s.logger.Warn("scheduler not running; dropping job result", "job", name)
		}
	}()
}

// Idle reports whether no task is queued or executing and no pool job is in flight.
func (s *Scheduler) Idle() bool {
	return s.pending.Load() == 0 && s.inflight.Load() == 0
}

// WaitIdle polls until the scheduler is idle or ctx is done.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.Idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
