package model

import "time"

// ScoreReport is the final graded result, produced at most once per session.
type ScoreReport struct {
	TotalScore      float64   `json:"total_score"`
	PredictionScore float64   `json:"prediction_score"`
	DepthScore      float64   `json:"depth_score"`
	SkillBonus      int       `json:"skill_bonus"`
	Grade           string    `json:"grade"`
	Feedback        []string  `json:"feedback"`
	GradedAt        time.Time `json:"graded_at"`
}
