package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver, CGO-free

	"github.com/FelixJx/fupan-game/internal/domain/model"
)

// timeFormat keeps timestamps lexicographically sortable in sqlite: the
// fractional second is fixed-width, unlike RFC3339Nano which trims zeros.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id       TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	current_step     INTEGER NOT NULL,
	completed_steps  TEXT NOT NULL,
	skill_points     TEXT NOT NULL,
	status           TEXT NOT NULL,
	grading_due_at   TEXT,
	grading_attempts INTEGER NOT NULL DEFAULT 0,
	created_at       TEXT NOT NULL,
	last_updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS step_submissions (
	session_id   TEXT NOT NULL,
	step         INTEGER NOT NULL,
	fields       TEXT NOT NULL,
	submitted_at TEXT NOT NULL,
	UNIQUE(session_id, step)
);

CREATE TABLE IF NOT EXISTS prediction_bundles (
	session_id   TEXT PRIMARY KEY,
	sectors      TEXT NOT NULL,
	stocks       TEXT NOT NULL,
	direction    TEXT NOT NULL,
	sentiment    TEXT NOT NULL,
	submitted_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS score_reports (
	session_id       TEXT PRIMARY KEY,
	total_score      REAL NOT NULL,
	prediction_score REAL NOT NULL,
	depth_score      REAL NOT NULL,
	skill_bonus      INTEGER NOT NULL,
	grade            TEXT NOT NULL,
	feedback         TEXT NOT NULL,
	graded_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_due
	ON sessions(status, grading_due_at);
`

// SQLStore implements Store on sqlite via sqlx. Grading tasks live in the
// sessions table, so the deferred scorer recovers them after a restart.
type SQLStore struct {
	db    *sqlx.DB
	locks *keyedLocks
}

// NewSQLStore opens (creating if needed) the sqlite database at path and
// bootstraps the schema. Use ":memory:" for an ephemeral database.
func NewSQLStore(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &SQLStore{db: db, locks: newKeyedLocks()}, nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// sessionRow mirrors the sessions table.
type sessionRow struct {
	SessionID       string         `db:"session_id"`
	UserID          string         `db:"user_id"`
	CurrentStep     int            `db:"current_step"`
	CompletedSteps  string         `db:"completed_steps"`
	SkillPoints     string         `db:"skill_points"`
	Status          string         `db:"status"`
	GradingDueAt    sql.NullString `db:"grading_due_at"`
	GradingAttempts int            `db:"grading_attempts"`
	CreatedAt       string         `db:"created_at"`
	LastUpdatedAt   string         `db:"last_updated_at"`
}

func (r *sessionRow) toModel() (model.Session, error) {
	var completed []int
	if err := json.Unmarshal([]byte(r.CompletedSteps), &completed); err != nil {
		return model.Session{}, fmt.Errorf("decode completed_steps: %w", err)
	}
	var points map[model.Skill]int
	if err := json.Unmarshal([]byte(r.SkillPoints), &points); err != nil {
		return model.Session{}, fmt.Errorf("decode skill_points: %w", err)
	}
	createdAt, err := time.Parse(timeFormat, r.CreatedAt)
	if err != nil {
		return model.Session{}, fmt.Errorf("decode created_at: %w", err)
	}
	updatedAt, err := time.Parse(timeFormat, r.LastUpdatedAt)
	if err != nil {
		return model.Session{}, fmt.Errorf("decode last_updated_at: %w", err)
	}

	session := model.Session{
		ID:              r.SessionID,
		UserID:          r.UserID,
		CurrentStep:     r.CurrentStep,
		CompletedSteps:  completed,
		SkillPoints:     points,
		Status:          model.Status(r.Status),
		GradingAttempts: r.GradingAttempts,
		CreatedAt:       createdAt,
		LastUpdatedAt:   updatedAt,
	}
	if r.GradingDueAt.Valid {
		due, err := time.Parse(timeFormat, r.GradingDueAt.String)
		if err != nil {
			return model.Session{}, fmt.Errorf("decode grading_due_at: %w", err)
		}
		session.GradingDueAt = &due
	}
	return session, nil
}

func toRow(s *model.Session) (sessionRow, error) {
	completed, err := json.Marshal(s.CompletedSteps)
	if err != nil {
		return sessionRow{}, fmt.Errorf("encode completed_steps: %w", err)
	}
	points, err := json.Marshal(s.SkillPoints)
	if err != nil {
		return sessionRow{}, fmt.Errorf("encode skill_points: %w", err)
	}
	row := sessionRow{
		SessionID:       s.ID,
		UserID:          s.UserID,
		CurrentStep:     s.CurrentStep,
		CompletedSteps:  string(completed),
		SkillPoints:     string(points),
		Status:          string(s.Status),
		GradingAttempts: s.GradingAttempts,
		CreatedAt:       s.CreatedAt.UTC().Format(timeFormat),
		LastUpdatedAt:   s.LastUpdatedAt.UTC().Format(timeFormat),
	}
	if s.GradingDueAt != nil {
		row.GradingDueAt = sql.NullString{String: s.GradingDueAt.UTC().Format(timeFormat), Valid: true}
	}
	return row, nil
}

// CreateSession allocates a new active session at step 1.
func (s *SQLStore) CreateSession(ctx context.Context, userID string) (model.Session, error) {
	now := time.Now().UTC()
	session := model.Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		CurrentStep:    1,
		CompletedSteps: []int{},
		SkillPoints:    model.BaselineSkillPoints(),
		Status:         model.StatusActive,
		CreatedAt:      now,
		LastUpdatedAt:  now,
	}
	row, err := toRow(&session)
	if err != nil {
		return model.Session{}, err
	}
	const q = `INSERT INTO sessions
		(session_id, user_id, current_step, completed_steps, skill_points,
		 status, grading_due_at, grading_attempts, created_at, last_updated_at)
		VALUES (:session_id, :user_id, :current_step, :completed_steps, :skill_points,
		 :status, :grading_due_at, :grading_attempts, :created_at, :last_updated_at)`
	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		return model.Session{}, fmt.Errorf("%w: insert session: %w", ErrStorageUnavailable, err)
	}
	return session, nil
}

// GetSession returns a session by id.
func (s *SQLStore) GetSession(ctx context.Context, sessionID string) (model.Session, error) {
	return s.loadSession(ctx, s.db, sessionID)
}

func (s *SQLStore) loadSession(ctx context.Context, q sqlx.QueryerContext, sessionID string) (model.Session, error) {
	var row sessionRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT * FROM sessions WHERE session_id = ?`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("%w: select session: %w", ErrStorageUnavailable, err)
	}
	return row.toModel()
}

func (s *SQLStore) saveSession(ctx context.Context, e sqlx.ExtContext, session *model.Session) error {
	row, err := toRow(session)
	if err != nil {
		return err
	}
	const q = `UPDATE sessions SET
		current_step = :current_step,
		completed_steps = :completed_steps,
		skill_points = :skill_points,
		status = :status,
		grading_due_at = :grading_due_at,
		grading_attempts = :grading_attempts,
		last_updated_at = :last_updated_at
		WHERE session_id = :session_id`
	if _, err := sqlx.NamedExecContext(ctx, e, q, row); err != nil {
		return fmt.Errorf("%w: update session: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// ApplyStepSubmission atomically validates and records one step submission.
// The submission insert and the session update commit together, so a failed
// call leaves no partial state behind and stays safe to retry.
func (s *SQLStore) ApplyStepSubmission(ctx context.Context, sessionID string, sub model.StepSubmission, reward model.SkillReward) (model.Session, error) {
	lock := s.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Session{}, fmt.Errorf("%w: begin tx: %w", ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	session, err := s.loadSession(ctx, tx, sessionID)
	if err != nil {
		return model.Session{}, err
	}
	if err := applyStep(&session, sub, reward, time.Now().UTC()); err != nil {
		return model.Session{}, err
	}

	fields, err := json.Marshal(sub.Fields)
	if err != nil {
		return model.Session{}, fmt.Errorf("encode fields: %w", err)
	}
	const q = `INSERT INTO step_submissions (session_id, step, fields, submitted_at)
		VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q, sessionID, sub.Step, string(fields),
		sub.SubmittedAt.UTC().Format(timeFormat)); err != nil {
		return model.Session{}, fmt.Errorf("%w: insert submission: %w", ErrStorageUnavailable, err)
	}
	if err := s.saveSession(ctx, tx, &session); err != nil {
		return model.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Session{}, fmt.Errorf("%w: commit submission: %w", ErrStorageUnavailable, err)
	}
	return session, nil
}

// ApplyPredictionBundle records the one-time bundle and arms grading.
func (s *SQLStore) ApplyPredictionBundle(ctx context.Context, sessionID string, bundle model.PredictionBundle, dueAt time.Time) error {
	lock := s.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	session, err := s.loadSession(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	var existing int
	if err := sqlx.GetContext(ctx, tx, &existing,
		`SELECT COUNT(*) FROM prediction_bundles WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("%w: check bundle: %w", ErrStorageUnavailable, err)
	}
	if err := applyBundle(&session, existing > 0, dueAt, time.Now().UTC()); err != nil {
		return err
	}

	sectors, err := json.Marshal(bundle.Sectors)
	if err != nil {
		return fmt.Errorf("encode sectors: %w", err)
	}
	stocks, err := json.Marshal(bundle.Stocks)
	if err != nil {
		return fmt.Errorf("encode stocks: %w", err)
	}
	const q = `INSERT INTO prediction_bundles
		(session_id, sectors, stocks, direction, sentiment, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q, sessionID, string(sectors), string(stocks),
		string(bundle.MarketDirection), string(bundle.FundSentiment),
		bundle.SubmittedAt.UTC().Format(timeFormat)); err != nil {
		return fmt.Errorf("%w: insert bundle: %w", ErrStorageUnavailable, err)
	}
	if err := s.saveSession(ctx, tx, &session); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit bundle: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// AttachScoreReport stores the report once; repeated calls are no-ops.
func (s *SQLStore) AttachScoreReport(ctx context.Context, sessionID string, report model.ScoreReport) error {
	lock := s.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	session, err := s.loadSession(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	var existing int
	if err := sqlx.GetContext(ctx, tx, &existing,
		`SELECT COUNT(*) FROM score_reports WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("%w: check report: %w", ErrStorageUnavailable, err)
	}
	if existing > 0 {
		return nil
	}

	feedback, err := json.Marshal(report.Feedback)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}
	const q = `INSERT INTO score_reports
		(session_id, total_score, prediction_score, depth_score, skill_bonus, grade, feedback, graded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q, sessionID, report.TotalScore, report.PredictionScore,
		report.DepthScore, report.SkillBonus, report.Grade, string(feedback),
		report.GradedAt.UTC().Format(timeFormat)); err != nil {
		return fmt.Errorf("%w: insert report: %w", ErrStorageUnavailable, err)
	}
	completeWithReport(&session, time.Now().UTC())
	if err := s.saveSession(ctx, tx, &session); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit report: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// MarkGradingFailed records the terminal grading failure status.
func (s *SQLStore) MarkGradingFailed(ctx context.Context, sessionID string) error {
	lock := s.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.loadSession(ctx, s.db, sessionID)
	if err != nil {
		return err
	}
	if session.Status == model.StatusCompleted {
		return nil
	}
	session.Status = model.StatusGradingFailed
	session.GradingDueAt = nil
	session.LastUpdatedAt = time.Now().UTC()
	return s.saveSession(ctx, s.db, &session)
}

// DueGradings lists armed grading tasks whose due time has passed.
func (s *SQLStore) DueGradings(ctx context.Context, now time.Time) ([]model.GradingTask, error) {
	var rows []sessionRow
	const q = `SELECT * FROM sessions
		WHERE status = ? AND grading_due_at IS NOT NULL AND grading_due_at <= ?
		ORDER BY grading_due_at`
	err := s.db.SelectContext(ctx, &rows, q,
		string(model.StatusAwaitingResult), now.UTC().Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("%w: select due gradings: %w", ErrStorageUnavailable, err)
	}

	tasks := make([]model.GradingTask, 0, len(rows))
	for i := range rows {
		session, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, model.GradingTask{
			SessionID: session.ID,
			DueAt:     *session.GradingDueAt,
			Attempts:  session.GradingAttempts,
		})
	}
	return tasks, nil
}

// RescheduleGrading pushes a grading task to a later attempt.
func (s *SQLStore) RescheduleGrading(ctx context.Context, sessionID string, nextDue time.Time, attempts int) error {
	lock := s.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	const q = `UPDATE sessions SET grading_due_at = ?, grading_attempts = ?, last_updated_at = ?
		WHERE session_id = ?`
	res, err := s.db.ExecContext(ctx, q, nextDue.UTC().Format(timeFormat), attempts,
		time.Now().UTC().Format(timeFormat), sessionID)
	if err != nil {
		return fmt.Errorf("%w: reschedule grading: %w", ErrStorageUnavailable, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// StepSubmissions returns stored submissions in step order.
func (s *SQLStore) StepSubmissions(ctx context.Context, sessionID string) ([]model.StepSubmission, error) {
	if _, err := s.loadSession(ctx, s.db, sessionID); err != nil {
		return nil, err
	}

	type submissionRow struct {
		Step        int    `db:"step"`
		Fields      string `db:"fields"`
		SubmittedAt string `db:"submitted_at"`
	}
	var rows []submissionRow
	const q = `SELECT step, fields, submitted_at FROM step_submissions
		WHERE session_id = ? ORDER BY step`
	if err := s.db.SelectContext(ctx, &rows, q, sessionID); err != nil {
		return nil, fmt.Errorf("%w: select submissions: %w", ErrStorageUnavailable, err)
	}

	subs := make([]model.StepSubmission, 0, len(rows))
	for _, row := range rows {
		var fields map[string]string
		if err := json.Unmarshal([]byte(row.Fields), &fields); err != nil {
			return nil, fmt.Errorf("decode fields: %w", err)
		}
		submittedAt, err := time.Parse(timeFormat, row.SubmittedAt)
		if err != nil {
			return nil, fmt.Errorf("decode submitted_at: %w", err)
		}
		subs = append(subs, model.StepSubmission{Step: row.Step, Fields: fields, SubmittedAt: submittedAt})
	}
	return subs, nil
}

// PredictionBundle returns the stored bundle.
func (s *SQLStore) PredictionBundle(ctx context.Context, sessionID string) (model.PredictionBundle, error) {
	type bundleRow struct {
		Sectors     string `db:"sectors"`
		Stocks      string `db:"stocks"`
		Direction   string `db:"direction"`
		Sentiment   string `db:"sentiment"`
		SubmittedAt string `db:"submitted_at"`
	}
	var row bundleRow
	const q = `SELECT sectors, stocks, direction, sentiment, submitted_at
		FROM prediction_bundles WHERE session_id = ?`
	err := s.db.GetContext(ctx, &row, q, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PredictionBundle{}, ErrNotFound
	}
	if err != nil {
		return model.PredictionBundle{}, fmt.Errorf("%w: select bundle: %w", ErrStorageUnavailable, err)
	}

	var bundle model.PredictionBundle
	if err := json.Unmarshal([]byte(row.Sectors), &bundle.Sectors); err != nil {
		return model.PredictionBundle{}, fmt.Errorf("decode sectors: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Stocks), &bundle.Stocks); err != nil {
		return model.PredictionBundle{}, fmt.Errorf("decode stocks: %w", err)
	}
	bundle.MarketDirection = model.Direction(row.Direction)
	bundle.FundSentiment = model.Sentiment(row.Sentiment)
	submittedAt, err := time.Parse(timeFormat, row.SubmittedAt)
	if err != nil {
		return model.PredictionBundle{}, fmt.Errorf("decode submitted_at: %w", err)
	}
	bundle.SubmittedAt = submittedAt
	return bundle, nil
}

// ScoreReport returns the stored report.
func (s *SQLStore) ScoreReport(ctx context.Context, sessionID string) (model.ScoreReport, error) {
	type reportRow struct {
		TotalScore      float64 `db:"total_score"`
		PredictionScore float64 `db:"prediction_score"`
		DepthScore      float64 `db:"depth_score"`
		SkillBonus      int     `db:"skill_bonus"`
		Grade           string  `db:"grade"`
		Feedback        string  `db:"feedback"`
		GradedAt        string  `db:"graded_at"`
	}
	var row reportRow
	const q = `SELECT total_score, prediction_score, depth_score, skill_bonus, grade, feedback, graded_at
		FROM score_reports WHERE session_id = ?`
	err := s.db.GetContext(ctx, &row, q, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScoreReport{}, ErrNotFound
	}
	if err != nil {
		return model.ScoreReport{}, fmt.Errorf("%w: select report: %w", ErrStorageUnavailable, err)
	}

	var feedback []string
	if err := json.Unmarshal([]byte(row.Feedback), &feedback); err != nil {
		return model.ScoreReport{}, fmt.Errorf("decode feedback: %w", err)
	}
	gradedAt, err := time.Parse(timeFormat, row.GradedAt)
	if err != nil {
		return model.ScoreReport{}, fmt.Errorf("decode graded_at: %w", err)
	}
	return model.ScoreReport{
		TotalScore:      row.TotalScore,
		PredictionScore: row.PredictionScore,
		DepthScore:      row.DepthScore,
		SkillBonus:      row.SkillBonus,
		Grade:           row.Grade,
		Feedback:        feedback,
		GradedAt:        gradedAt,
	}, nil
}

// Leaderboard ranks completed sessions by total score.
func (s *SQLStore) Leaderboard(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}

	type entryRow struct {
		SessionID  string  `db:"session_id"`
		UserID     string  `db:"user_id"`
		TotalScore float64 `db:"total_score"`
		Grade      string  `db:"grade"`
		GradedAt   string  `db:"graded_at"`
	}
	var rows []entryRow
	const q = `SELECT r.session_id, s.user_id, r.total_score, r.grade, r.graded_at
		FROM score_reports r JOIN sessions s ON s.session_id = r.session_id
		ORDER BY r.total_score DESC, r.graded_at ASC LIMIT ?`
	if err := s.db.SelectContext(ctx, &rows, q, n); err != nil {
		return nil, fmt.Errorf("%w: select leaderboard: %w", ErrStorageUnavailable, err)
	}

	entries := make([]model.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		gradedAt, err := time.Parse(timeFormat, row.GradedAt)
		if err != nil {
			return nil, fmt.Errorf("decode graded_at: %w", err)
		}
		entries = append(entries, model.LeaderboardEntry{
			Rank:       i + 1,
			SessionID:  row.SessionID,
			UserID:     row.UserID,
			TotalScore: row.TotalScore,
			Grade:      row.Grade,
			GradedAt:   gradedAt,
		})
	}
	return entries, nil
}

// Count returns the number of sessions tracked.
func (s *SQLStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sessions`); err != nil {
		return 0
	}
	return n
}
