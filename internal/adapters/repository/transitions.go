package repository

import (
	"fmt"
	"sort"
	"time"

	"github.com/FelixJx/fupan-game/internal/domain/model"
)

// The transition helpers below hold the state-machine rules shared by both
// store implementations. Callers must hold the session's lock.

// applyStep mutates the session for an accepted step submission. It returns
// a taxonomy error and leaves the session untouched when the submission is
// out of order, duplicated, or the session is not active.
func applyStep(s *model.Session, sub model.StepSubmission, reward model.SkillReward, now time.Time) error {
	if s.Status != model.StatusActive {
		return fmt.Errorf("%w: status is %s", model.ErrSessionNotActive, s.Status)
	}
	if s.HasCompleted(sub.Step) {
		return fmt.Errorf("%w: step %d", model.ErrStepAlreadyCompleted, sub.Step)
	}
	if sub.Step != s.CurrentStep {
		return fmt.Errorf("%w: submitted %d, expected %d", model.ErrInvalidStepOrder, sub.Step, s.CurrentStep)
	}

	s.CompletedSteps = append(s.CompletedSteps, sub.Step)
	for skill, delta := range reward {
		s.SkillPoints[skill] = model.ClampSkill(s.SkillPoints[skill] + delta)
	}
	// Step 6 does not auto-advance past the last step; the prediction
	// submission is a separate call.
	if s.CurrentStep < model.StepCount {
		s.CurrentStep++
	}
	s.LastUpdatedAt = now
	return nil
}

// applyBundle transitions the session into awaiting_prediction_result and
// arms the grading task. hasBundle reflects whether a bundle already exists.
func applyBundle(s *model.Session, hasBundle bool, dueAt, now time.Time) error {
	if hasBundle {
		return model.ErrPredictionAlreadySubmitted
	}
	if !s.AllStepsCompleted() {
		return fmt.Errorf("%w: completed %d of %d", model.ErrStepsIncomplete, len(s.CompletedSteps), model.StepCount)
	}
	if s.Status != model.StatusActive {
		return fmt.Errorf("%w: status is %s", model.ErrSessionNotActive, s.Status)
	}

	s.Status = model.StatusAwaitingResult
	due := dueAt.UTC()
	s.GradingDueAt = &due
	s.GradingAttempts = 0
	s.LastUpdatedAt = now
	return nil
}

// completeWithReport finalizes the session once a report is attached.
func completeWithReport(s *model.Session, now time.Time) {
	s.Status = model.StatusCompleted
	s.GradingDueAt = nil
	s.LastUpdatedAt = now
}

// rankEntries sorts completed-session entries by score descending (earlier
// grading wins ties) and assigns 1-based ranks.
func rankEntries(entries []model.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		return entries[i].GradedAt.Before(entries[j].GradedAt)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}
