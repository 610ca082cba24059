// Package model defines the core domain types for the market review game:
// sessions, step submissions, prediction bundles and score reports.
package model

import (
	"time"
)

// Status enumerates the lifecycle states of a review session.
type Status string

// Session lifecycle states.
const (
	StatusActive         Status = "active"
	StatusAwaitingResult Status = "awaiting_prediction_result"
	StatusCompleted      Status = "completed"
	StatusAbandoned      Status = "abandoned"
	StatusGradingFailed  Status = "grading_failed"
)

// Skill identifies one of the six analytical skills tracked per session.
type Skill string

// The six fixed skills, one per review step.
const (
	SkillMarketPerception    Skill = "market_perception"
	SkillRiskSense           Skill = "risk_sense"
	SkillOpportunityCapture  Skill = "opportunity_capture"
	SkillCapitalSense        Skill = "capital_sense"
	SkillLogicThinking       Skill = "logic_thinking"
	SkillPortfolioManagement Skill = "portfolio_management"
)

// Skill point bounds.
const (
	SkillBaseline = 50
	SkillMin      = 0
	SkillMax      = 100
)

// StepCount is the number of ordered review steps in a session.
const StepCount = 6

// Skills returns the six skills in step order.
func Skills() []Skill {
	return []Skill{
		SkillMarketPerception,
		SkillRiskSense,
		SkillOpportunityCapture,
		SkillCapitalSense,
		SkillLogicThinking,
		SkillPortfolioManagement,
	}
}

// BaselineSkillPoints returns a fresh skill map with every skill at baseline.
func BaselineSkillPoints() map[Skill]int {
	points := make(map[Skill]int, StepCount)
	for _, s := range Skills() {
		points[s] = SkillBaseline
	}
	return points
}

// ClampSkill bounds a skill value to [SkillMin, SkillMax].
func ClampSkill(v int) int {
	if v < SkillMin {
		return SkillMin
	}
	if v > SkillMax {
		return SkillMax
	}
	return v
}

// Session is one player's playthrough of the six-step review workout.
type Session struct {
	ID              string        `json:"session_id"`
	UserID          string        `json:"user_id"`
	CurrentStep     int           `json:"current_step"`
	CompletedSteps  []int         `json:"completed_steps"`
	SkillPoints     map[Skill]int `json:"skill_points"`
	Status          Status        `json:"status"`
	GradingDueAt    *time.Time    `json:"grading_due_at,omitempty"`
	GradingAttempts int           `json:"grading_attempts,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	LastUpdatedAt   time.Time     `json:"last_updated_at"`
}

// HasCompleted reports whether the given step is in CompletedSteps.
func (s *Session) HasCompleted(step int) bool {
	for _, done := range s.CompletedSteps {
		if done == step {
			return true
		}
	}
	return false
}

// AllStepsCompleted reports whether steps 1..6 have all been submitted.
func (s *Session) AllStepsCompleted() bool {
	for step := 1; step <= StepCount; step++ {
		if !s.HasCompleted(step) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so stores can hand out sessions without
// exposing their internal state to mutation.
func (s *Session) Clone() Session {
	out := *s
	out.CompletedSteps = append([]int(nil), s.CompletedSteps...)
	out.SkillPoints = make(map[Skill]int, len(s.SkillPoints))
	for k, v := range s.SkillPoints {
		out.SkillPoints[k] = v
	}
	if s.GradingDueAt != nil {
		due := *s.GradingDueAt
		out.GradingDueAt = &due
	}
	return out
}

// StepSubmission is one user's analysis for one step. Immutable once accepted.
type StepSubmission struct {
	Step        int               `json:"step"`
	Fields      map[string]string `json:"fields"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// SkillReward maps skills to the point delta earned by one step submission.
type SkillReward map[Skill]int

// GradingTask describes a pending deferred grading job, recoverable from
// persisted session state.
type GradingTask struct {
	SessionID string
	DueAt     time.Time
	Attempts  int
}

// LeaderboardEntry is a read-model row over completed sessions.
type LeaderboardEntry struct {
	Rank       int       `json:"rank"`
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	TotalScore float64   `json:"total_score"`
	Grade      string    `json:"grade"`
	GradedAt   time.Time `json:"graded_at"`
}
