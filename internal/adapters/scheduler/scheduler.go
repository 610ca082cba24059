// Package scheduler runs the deferred grading loop. Tasks are recovered from
// the session store on every poll, so armed gradings survive process
// restarts; an in-flight guard keeps one session from grading twice
// concurrently even when a run outlasts the poll interval.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/FelixJx/fupan-game/internal/domain/model"
	"github.com/FelixJx/fupan-game/pkg/logger"
	"github.com/FelixJx/fupan-game/pkg/metrics"
)

// Default scheduler configuration constants.
const (
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 5
	defaultBackoffBase  = 30 * time.Second
	maxBackoff          = 30 * time.Minute
)

// TaskSource is the slice of the session store the scheduler needs.
type TaskSource interface {
	DueGradings(ctx context.Context, now time.Time) ([]model.GradingTask, error)
	RescheduleGrading(ctx context.Context, sessionID string, nextDue time.Time, attempts int) error
	MarkGradingFailed(ctx context.Context, sessionID string) error
}

// Grader performs one grading run for a session. Implementations must be
// safe to retry: the report attach is idempotent.
type Grader interface {
	GradeSession(ctx context.Context, task model.GradingTask) error
}

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithPollInterval sets how often due tasks are polled.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithMaxAttempts bounds grading retries before a session is marked failed.
func WithMaxAttempts(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoffBase sets the base delay for the exponential retry backoff.
func WithBackoffBase(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.backoffBase = d
		}
	}
}

// WithLogger sets a custom logger for the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scheduler polls for due grading tasks and dispatches them to the grader.
type Scheduler struct {
	source TaskSource
	grader Grader

	pollInterval time.Duration
	maxAttempts  int
	backoffBase  time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}

	logger logger.Logger
}

// New creates a scheduler with configuration options.
func New(source TaskSource, grader Grader, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:       source,
		grader:       grader,
		pollInterval: defaultPollInterval,
		maxAttempts:  defaultMaxAttempts,
		backoffBase:  defaultBackoffBase,
		inflight:     make(map[string]struct{}),
		logger:       logger.Named("scheduler"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run polls until ctx is canceled. Call it in a goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

// dispatchDue fetches due tasks and grades each one in its own goroutine.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	tasks, err := s.source.DueGradings(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Warn(ctx, "listing due gradings failed", logger.Error(err))
		return
	}

	for _, task := range tasks {
		if !s.acquire(task.SessionID) {
			continue
		}
		go func(task model.GradingTask) {
			defer s.release(task.SessionID)
			s.runTask(ctx, task)
		}(task)
	}
}

// runTask grades one session, rescheduling with exponential backoff on
// failure and marking the session grading_failed once attempts run out.
func (s *Scheduler) runTask(ctx context.Context, task model.GradingTask) {
	start := time.Now()
	err := s.grader.GradeSession(ctx, task)
	metrics.ObserveGradingDuration(time.Since(start).Seconds())

	if err == nil {
		metrics.RecordGradingCompleted()
		s.logger.Info(ctx, "grading completed",
			logger.String("sessionID", task.SessionID),
			logger.Int("attempts", task.Attempts+1),
		)
		return
	}

	attempts := task.Attempts + 1
	if attempts >= s.maxAttempts {
		metrics.RecordGradingFailed()
		s.logger.Error(ctx, "grading failed permanently",
			logger.String("sessionID", task.SessionID),
			logger.Int("attempts", attempts),
			logger.Error(err),
		)
		if markErr := s.source.MarkGradingFailed(ctx, task.SessionID); markErr != nil {
			s.logger.Error(ctx, "marking grading failure failed",
				logger.String("sessionID", task.SessionID), logger.Error(markErr))
		}
		return
	}

	next := time.Now().UTC().Add(s.backoff(attempts))
	metrics.RecordGradingRetry()
	s.logger.Warn(ctx, "grading attempt failed, rescheduling",
		logger.String("sessionID", task.SessionID),
		logger.Int("attempts", attempts),
		logger.Any("nextDue", next),
		logger.Error(err),
	)
	if schedErr := s.source.RescheduleGrading(ctx, task.SessionID, next, attempts); schedErr != nil {
		s.logger.Error(ctx, "rescheduling grading failed",
			logger.String("sessionID", task.SessionID), logger.Error(schedErr))
	}
}

// backoff doubles the base per attempt, bounded by maxBackoff.
func (s *Scheduler) backoff(attempts int) time.Duration {
	d := s.backoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func (s *Scheduler) acquire(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[sessionID]; busy {
		return false
	}
	s.inflight[sessionID] = struct{}{}
	return true
}

func (s *Scheduler) release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, sessionID)
}

// InflightCount reports how many gradings are currently running.
func (s *Scheduler) InflightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}
