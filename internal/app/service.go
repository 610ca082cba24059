// Package app provides the core business service that implements the
// dependencies required by the HTTP API: session lifecycle, step
// progression, prediction submission and deferred grading.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/FelixJx/fupan-game/internal/adapters/repository"
	"github.com/FelixJx/fupan-game/internal/adapters/scheduler"
	"github.com/FelixJx/fupan-game/internal/adapters/ws"
	"github.com/FelixJx/fupan-game/internal/domain/model"
	"github.com/FelixJx/fupan-game/internal/domain/scoring"
	"github.com/FelixJx/fupan-game/internal/domain/steps"
	"github.com/FelixJx/fupan-game/internal/market"
	"github.com/FelixJx/fupan-game/pkg/logger"
	"github.com/FelixJx/fupan-game/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultGradingDelay       = 24 * time.Hour
	defaultMarketPushInterval = 30 * time.Second
	gradingDateFormat         = "2006-01-02"
)

// StepResult is returned to the caller after an accepted step submission.
type StepResult struct {
	CurrentStep    int                 `json:"current_step"`
	CompletedSteps []int               `json:"completed_steps"`
	SkillPoints    map[model.Skill]int `json:"skill_points"`
	SkillReward    model.SkillReward   `json:"skill_reward"`
	StepName       string              `json:"step_name"`
}

// PredictionReceipt acknowledges an accepted prediction bundle.
type PredictionReceipt struct {
	Accepted   bool      `json:"accepted"`
	GradingETA time.Time `json:"grading_eta"`
}

// Service implements the game core on top of the session store, the step
// engine, the scoring policy, the deferred-grading scheduler and the live
// update hub.
type Service struct {
	mu sync.Mutex

	store     repository.Store
	engine    *steps.Engine
	policy    *scoring.Policy
	hub       *ws.Hub
	sched     *scheduler.Scheduler
	snapshots market.SnapshotProvider
	outcomes  market.OutcomeProvider

	gradingDelay       time.Duration
	marketPushInterval time.Duration
	schedOpts          []scheduler.Option

	started bool
	cancel  context.CancelFunc
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the session store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithStepEngine sets the step progression engine.
func WithStepEngine(engine *steps.Engine) Option {
	return func(s *Service) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithScoringPolicy sets the grading policy.
func WithScoringPolicy(policy *scoring.Policy) Option {
	return func(s *Service) {
		if policy != nil {
			s.policy = policy
		}
	}
}

// WithSnapshotProvider sets the market snapshot collaborator.
func WithSnapshotProvider(p market.SnapshotProvider) Option {
	return func(s *Service) {
		if p != nil {
			s.snapshots = p
		}
	}
}

// WithOutcomeProvider sets the realized-outcome collaborator.
func WithOutcomeProvider(p market.OutcomeProvider) Option {
	return func(s *Service) {
		if p != nil {
			s.outcomes = p
		}
	}
}

// WithGradingDelay sets the horizon between prediction submission and
// grading, nominally the next market close.
func WithGradingDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.gradingDelay = d
		}
	}
}

// WithMarketPushInterval sets the cadence of market_update pushes.
func WithMarketPushInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.marketPushInterval = d
		}
	}
}

// WithSchedulerOptions forwards options to the grading scheduler.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(s *Service) {
		s.schedOpts = append(s.schedOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		gradingDelay:       defaultGradingDelay,
		marketPushInterval: defaultMarketPushInterval,
		logger:             logger.Named("app"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes defaults and launches the background loops.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.engine == nil {
		s.engine = steps.NewEngine()
	}
	if s.policy == nil {
		s.policy = scoring.NewPolicy()
	}
	if s.hub == nil {
		s.hub = ws.NewHub(ws.WithLogger(s.logger.Named("ws")))
	}
	if s.snapshots == nil || s.outcomes == nil {
		static := market.NewStaticProvider()
		if s.snapshots == nil {
			s.snapshots = static
		}
		if s.outcomes == nil {
			s.outcomes = static
		}
	}
	s.sched = scheduler.New(s.store, s, s.schedOpts...)

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.sched.Run(runCtx)
	go s.marketPushLoop(runCtx)

	s.started = true
	s.logger.Info(ctx, "review game service started",
		logger.Any("gradingDelay", s.gradingDelay),
		logger.Any("marketPushInterval", s.marketPushInterval),
	)
	return nil
}

// Stop halts the background loops.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.cancel()
	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	s.started = false
	s.logger.Info(context.Background(), "review game service stopped")
}

// Hub exposes the live update hub for the websocket handler.
func (s *Service) Hub() *ws.Hub {
	return s.hub
}

// StartSession creates a new review session for userID.
func (s *Service) StartSession(ctx context.Context, userID string) (model.Session, error) {
	if userID == "" {
		userID = "guest"
	}
	session, err := s.store.CreateSession(ctx, userID)
	if err != nil {
		return model.Session{}, fmt.Errorf("create session: %w", err)
	}
	metrics.RecordSessionStarted()
	s.logger.Info(ctx, "session started",
		logger.String("sessionID", session.ID),
		logger.String("userID", userID),
	)
	return session, nil
}

// GetSession returns the current session state.
func (s *Service) GetSession(ctx context.Context, sessionID string) (model.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

// SubmitStep validates one step analysis, applies its skill reward and
// notifies the live channel. Validation failures never mutate state.
func (s *Service) SubmitStep(ctx context.Context, sessionID string, step int, fields map[string]string) (StepResult, error) {
	if err := s.engine.ValidateFields(fields); err != nil {
		metrics.RecordStepRejected()
		return StepResult{}, err
	}
	reward, err := s.engine.Reward(step, fields)
	if err != nil {
		metrics.RecordStepRejected()
		return StepResult{}, err
	}

	sub := model.StepSubmission{
		Step:        step,
		Fields:      fields,
		SubmittedAt: time.Now().UTC(),
	}
	session, err := s.store.ApplyStepSubmission(ctx, sessionID, sub, reward)
	if err != nil {
		metrics.RecordStepRejected()
		return StepResult{}, err
	}
	metrics.RecordStepSubmitted()

	result := StepResult{
		CurrentStep:    session.CurrentStep,
		CompletedSteps: session.CompletedSteps,
		SkillPoints:    session.SkillPoints,
		SkillReward:    reward,
		StepName:       steps.Name(step),
	}
	s.hub.Publish(sessionID, ws.MessageAchievement, result)
	return result, nil
}

// SubmitPredictions accepts the one-time bundle and arms deferred grading.
func (s *Service) SubmitPredictions(ctx context.Context, sessionID string, bundle model.PredictionBundle) (PredictionReceipt, error) {
	if err := bundle.Validate(); err != nil {
		return PredictionReceipt{}, err
	}
	bundle.SubmittedAt = time.Now().UTC()
	eta := bundle.SubmittedAt.Add(s.gradingDelay)

	if err := s.store.ApplyPredictionBundle(ctx, sessionID, bundle, eta); err != nil {
		return PredictionReceipt{}, err
	}
	metrics.RecordPredictionSubmitted()
	s.logger.Info(ctx, "predictions submitted",
		logger.String("sessionID", sessionID),
		logger.Any("gradingETA", eta),
	)
	return PredictionReceipt{Accepted: true, GradingETA: eta}, nil
}

// ScoreReport returns the final report once grading has completed. Before
// that it reports why the score is unavailable.
func (s *Service) ScoreReport(ctx context.Context, sessionID string) (model.ScoreReport, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return model.ScoreReport{}, err
	}
	switch session.Status {
	case model.StatusCompleted:
		return s.store.ScoreReport(ctx, sessionID)
	case model.StatusGradingFailed:
		return model.ScoreReport{}, model.ErrGradingFailed
	default:
		return model.ScoreReport{}, model.ErrReportNotReady
	}
}

// Leaderboard returns the top-n completed sessions.
func (s *Service) Leaderboard(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	return s.store.Leaderboard(ctx, n)
}

// MarketSnapshot returns the current market overview for display.
func (s *Service) MarketSnapshot(ctx context.Context) (market.Snapshot, error) {
	return s.snapshots.GetCurrentSnapshot(ctx)
}

// GradeSession performs one grading run for a due task. It is the
// scheduler's Grader: safe to retry because AttachScoreReport is idempotent
// and the outcome lookup is idempotent per date.
func (s *Service) GradeSession(ctx context.Context, task model.GradingTask) error {
	session, err := s.store.GetSession(ctx, task.SessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session.Status == model.StatusCompleted {
		// A previous attempt already attached the report.
		return nil
	}

	bundle, err := s.store.PredictionBundle(ctx, task.SessionID)
	if err != nil {
		return fmt.Errorf("load bundle: %w", err)
	}
	submissions, err := s.store.StepSubmissions(ctx, task.SessionID)
	if err != nil {
		return fmt.Errorf("load submissions: %w", err)
	}

	date := bundle.SubmittedAt.UTC().Format(gradingDateFormat)
	outcome, err := s.outcomes.GetRealizedOutcome(ctx, date)
	if err != nil {
		return fmt.Errorf("realized outcome for %s: %w", date, err)
	}

	report := s.policy.BuildReport(&bundle, &outcome, submissions, session.SkillPoints, time.Now())
	if err := s.store.AttachScoreReport(ctx, task.SessionID, report); err != nil {
		return fmt.Errorf("attach report: %w", err)
	}

	// Best-effort: the report is durable, so a missed push only costs the
	// client a pull after reconnecting.
	s.hub.Publish(task.SessionID, ws.MessageScoreCalculated, report)
	return nil
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{
		"sessions":         s.store.Count(ctx),
		"live_sessions":    s.hub.SessionCount(),
		"grading_inflight": 0,
	}
	if s.sched != nil {
		stats["grading_inflight"] = s.sched.InflightCount()
	}
	return stats
}

// marketPushLoop broadcasts periodic market_update hints to every
// subscribed session.
func (s *Service) marketPushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.marketPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hub.SessionCount() == 0 {
				continue
			}
			snapshot, err := s.snapshots.GetCurrentSnapshot(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					s.logger.Warn(ctx, "market snapshot failed", logger.Error(err))
				}
				continue
			}
			s.hub.Broadcast(ws.MessageMarketUpdate, snapshot)
		}
	}
}
