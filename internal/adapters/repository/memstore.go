package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FelixJx/fupan-game/internal/domain/model"
)

// MemoryStore implements Store with in-process maps. It backs tests and
// ephemeral deployments; durable deployments use SQLStore.
type MemoryStore struct {
	locks *keyedLocks

	// mu guards only the map accesses; read-modify-writes serialize on the
	// per-session locks, so unrelated sessions contend just for the brief
	// lookup and swap. Stored sessions are replaced wholesale on mutation,
	// never written in place, which keeps lock-free reads of a fetched
	// pointer safe.
	mu          sync.RWMutex
	sessions    map[string]*model.Session
	submissions map[string][]model.StepSubmission
	bundles     map[string]*model.PredictionBundle
	reports     map[string]*model.ScoreReport
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:       newKeyedLocks(),
		sessions:    make(map[string]*model.Session),
		submissions: make(map[string][]model.StepSubmission),
		bundles:     make(map[string]*model.PredictionBundle),
		reports:     make(map[string]*model.ScoreReport),
	}
}

// CreateSession allocates a new active session at step 1.
func (m *MemoryStore) CreateSession(_ context.Context, userID string) (model.Session, error) {
	now := time.Now().UTC()
	session := &model.Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		CurrentStep:    1,
		CompletedSteps: []int{},
		SkillPoints:    model.BaselineSkillPoints(),
		Status:         model.StatusActive,
		CreatedAt:      now,
		LastUpdatedAt:  now,
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	return session.Clone(), nil
}

// GetSession returns a copy of the session.
func (m *MemoryStore) GetSession(_ context.Context, sessionID string) (model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return session.Clone(), nil
}

// ApplyStepSubmission atomically validates and records one step submission.
func (m *MemoryStore) ApplyStepSubmission(_ context.Context, sessionID string, sub model.StepSubmission, reward model.SkillReward) (model.Session, error) {
	lock := m.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	stored, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return model.Session{}, ErrNotFound
	}

	session := stored.Clone()
	if err := applyStep(&session, sub, reward, time.Now().UTC()); err != nil {
		return model.Session{}, err
	}

	m.mu.Lock()
	m.sessions[sessionID] = &session
	m.submissions[sessionID] = append(m.submissions[sessionID], sub)
	m.mu.Unlock()
	return session.Clone(), nil
}

// ApplyPredictionBundle records the one-time bundle and arms grading.
func (m *MemoryStore) ApplyPredictionBundle(_ context.Context, sessionID string, bundle model.PredictionBundle, dueAt time.Time) error {
	lock := m.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	stored, ok := m.sessions[sessionID]
	_, hasBundle := m.bundles[sessionID]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	session := stored.Clone()
	if err := applyBundle(&session, hasBundle, dueAt, time.Now().UTC()); err != nil {
		return err
	}

	kept := bundle
	m.mu.Lock()
	m.sessions[sessionID] = &session
	m.bundles[sessionID] = &kept
	m.mu.Unlock()
	return nil
}

// AttachScoreReport stores the report once; repeated calls are no-ops.
func (m *MemoryStore) AttachScoreReport(_ context.Context, sessionID string, report model.ScoreReport) error {
	lock := m.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	stored, ok := m.sessions[sessionID]
	_, hasReport := m.reports[sessionID]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if hasReport {
		return nil
	}

	session := stored.Clone()
	completeWithReport(&session, time.Now().UTC())

	kept := report
	m.mu.Lock()
	m.sessions[sessionID] = &session
	m.reports[sessionID] = &kept
	m.mu.Unlock()
	return nil
}

// MarkGradingFailed records the terminal grading failure status.
func (m *MemoryStore) MarkGradingFailed(_ context.Context, sessionID string) error {
	lock := m.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	stored, ok := m.sessions[sessionID]
	_, hasReport := m.reports[sessionID]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if hasReport {
		// Grading already succeeded; nothing to fail.
		return nil
	}

	session := stored.Clone()
	session.Status = model.StatusGradingFailed
	session.GradingDueAt = nil
	session.LastUpdatedAt = time.Now().UTC()

	m.mu.Lock()
	m.sessions[sessionID] = &session
	m.mu.Unlock()
	return nil
}

// DueGradings lists armed grading tasks whose due time has passed.
func (m *MemoryStore) DueGradings(_ context.Context, now time.Time) ([]model.GradingTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tasks []model.GradingTask
	for _, session := range m.sessions {
		if session.Status != model.StatusAwaitingResult || session.GradingDueAt == nil {
			continue
		}
		if session.GradingDueAt.After(now) {
			continue
		}
		tasks = append(tasks, model.GradingTask{
			SessionID: session.ID,
			DueAt:     *session.GradingDueAt,
			Attempts:  session.GradingAttempts,
		})
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].DueAt.Before(tasks[j].DueAt) })
	return tasks, nil
}

// RescheduleGrading pushes a grading task to a later attempt.
func (m *MemoryStore) RescheduleGrading(_ context.Context, sessionID string, nextDue time.Time, attempts int) error {
	lock := m.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	stored, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	session := stored.Clone()
	due := nextDue.UTC()
	session.GradingDueAt = &due
	session.GradingAttempts = attempts
	session.LastUpdatedAt = time.Now().UTC()

	m.mu.Lock()
	m.sessions[sessionID] = &session
	m.mu.Unlock()
	return nil
}

// StepSubmissions returns stored submissions in step order.
func (m *MemoryStore) StepSubmissions(_ context.Context, sessionID string) ([]model.StepSubmission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}
	subs := append([]model.StepSubmission(nil), m.submissions[sessionID]...)
	sort.Slice(subs, func(i, j int) bool { return subs[i].Step < subs[j].Step })
	return subs, nil
}

// PredictionBundle returns the stored bundle.
func (m *MemoryStore) PredictionBundle(_ context.Context, sessionID string) (model.PredictionBundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bundle, ok := m.bundles[sessionID]
	if !ok {
		return model.PredictionBundle{}, ErrNotFound
	}
	return *bundle, nil
}

// ScoreReport returns the stored report.
func (m *MemoryStore) ScoreReport(_ context.Context, sessionID string) (model.ScoreReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report, ok := m.reports[sessionID]
	if !ok {
		return model.ScoreReport{}, ErrNotFound
	}
	return *report, nil
}

// Leaderboard ranks completed sessions by total score.
func (m *MemoryStore) Leaderboard(_ context.Context, n int) ([]model.LeaderboardEntry, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}

	m.mu.RLock()
	entries := make([]model.LeaderboardEntry, 0, len(m.reports))
	for id, report := range m.reports {
		session := m.sessions[id]
		entries = append(entries, model.LeaderboardEntry{
			SessionID:  id,
			UserID:     session.UserID,
			TotalScore: report.TotalScore,
			Grade:      report.Grade,
			GradedAt:   report.GradedAt,
		})
	}
	m.mu.RUnlock()

	rankEntries(entries)
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// Count returns the number of sessions tracked.
func (m *MemoryStore) Count(_ context.Context) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
