// Package repository defines the session store contract and its two
// implementations: an in-memory store and a sqlite-backed store. The store
// exclusively owns persisted session state; all mutating operations on one
// session are serialized.
package repository

import (
	"context"
	"time"

	"github.com/FelixJx/fupan-game/internal/domain/model"
)

// Store provides read/write access to session state.
type Store interface {
	// CreateSession allocates a new active session at step 1 with all
	// skills at baseline.
	CreateSession(ctx context.Context, userID string) (model.Session, error)

	// GetSession returns a session by id, or ErrNotFound.
	GetSession(ctx context.Context, sessionID string) (model.Session, error)

	// ApplyStepSubmission atomically records a step submission and its
	// skill reward, enforcing step order and session status.
	ApplyStepSubmission(ctx context.Context, sessionID string, sub model.StepSubmission, reward model.SkillReward) (model.Session, error)

	// ApplyPredictionBundle records the one-time prediction bundle and
	// arms the deferred grading task at dueAt.
	ApplyPredictionBundle(ctx context.Context, sessionID string, bundle model.PredictionBundle, dueAt time.Time) error

	// AttachScoreReport stores the final report and completes the session.
	// It is an idempotent no-op when a report already exists.
	AttachScoreReport(ctx context.Context, sessionID string, report model.ScoreReport) error

	// MarkGradingFailed records the terminal grading failure status.
	MarkGradingFailed(ctx context.Context, sessionID string) error

	// DueGradings lists grading tasks whose due time has passed.
	DueGradings(ctx context.Context, now time.Time) ([]model.GradingTask, error)

	// RescheduleGrading pushes a grading task to a later attempt.
	RescheduleGrading(ctx context.Context, sessionID string, nextDue time.Time, attempts int) error

	// StepSubmissions returns the stored submissions for a session in
	// step order.
	StepSubmissions(ctx context.Context, sessionID string) ([]model.StepSubmission, error)

	// PredictionBundle returns the stored bundle, or ErrNotFound when the
	// session has not submitted one.
	PredictionBundle(ctx context.Context, sessionID string) (model.PredictionBundle, error)

	// ScoreReport returns the stored report, or ErrNotFound before grading.
	ScoreReport(ctx context.Context, sessionID string) (model.ScoreReport, error)

	// Leaderboard returns up to n completed sessions ranked by total score.
	Leaderboard(ctx context.Context, n int) ([]model.LeaderboardEntry, error)

	// Count returns the number of sessions tracked by the store.
	Count(ctx context.Context) int
}
