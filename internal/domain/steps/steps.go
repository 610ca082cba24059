// Package steps implements the ordered six-step review workflow: the fixed
// step table, the content-validity gate and the deterministic skill rewards.
package steps

import (
	"fmt"
	"unicode/utf8"

	"github.com/FelixJx/fupan-game/internal/domain/model"
)

// Default engine configuration constants, matching the original game rules.
const (
	defaultBaseReward        = 5
	defaultRichnessBonus     = 2
	defaultMinFieldRunes     = 10
	defaultRichnessThreshold = 200
)

// stepInfo binds a step number to its display name and rewarded skill.
type stepInfo struct {
	Name  string
	Skill model.Skill
}

// The six review steps. Names keep the original methodology wording.
var stepTable = map[int]stepInfo{
	1: {Name: "市场鸟瞰", Skill: model.SkillMarketPerception},
	2: {Name: "风险扫描", Skill: model.SkillRiskSense},
	3: {Name: "机会扫描", Skill: model.SkillOpportunityCapture},
	4: {Name: "资金验证", Skill: model.SkillCapitalSense},
	5: {Name: "逻辑核对", Skill: model.SkillLogicThinking},
	6: {Name: "标记分组", Skill: model.SkillPortfolioManagement},
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithBaseReward sets the base skill reward per accepted step.
func WithBaseReward(points int) Option {
	return func(e *Engine) {
		if points > 0 {
			e.baseReward = points
		}
	}
}

// WithRichnessBonus sets the extra reward granted for rich submissions.
func WithRichnessBonus(points int) Option {
	return func(e *Engine) {
		if points >= 0 {
			e.richnessBonus = points
		}
	}
}

// WithMinFieldLength sets the minimum rune count one field must reach for a
// submission to pass the content gate.
func WithMinFieldLength(runes int) Option {
	return func(e *Engine) {
		if runes > 0 {
			e.minFieldRunes = runes
		}
	}
}

// WithRichnessThreshold sets the aggregate rune count above which the
// richness bonus applies.
func WithRichnessThreshold(runes int) Option {
	return func(e *Engine) {
		if runes > 0 {
			e.richnessThreshold = runes
		}
	}
}

// Engine validates step submissions and computes their skill rewards. All of
// its outputs are pure functions of the submission, never of external state.
type Engine struct {
	baseReward        int
	richnessBonus     int
	minFieldRunes     int
	richnessThreshold int
}

// NewEngine creates a step engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		baseReward:        defaultBaseReward,
		richnessBonus:     defaultRichnessBonus,
		minFieldRunes:     defaultMinFieldRunes,
		richnessThreshold: defaultRichnessThreshold,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Name returns the display name for a step, or an empty string if unknown.
func Name(step int) string {
	return stepTable[step].Name
}

// SkillFor returns the skill rewarded by a step.
func SkillFor(step int) (model.Skill, bool) {
	info, ok := stepTable[step]
	return info.Skill, ok
}

// ValidateFields applies the content-validity gate: at least one field whose
// value has minFieldRunes runes or more. Semantic correctness is not judged.
func (e *Engine) ValidateFields(fields map[string]string) error {
	for _, v := range fields {
		if utf8.RuneCountInString(v) >= e.minFieldRunes {
			return nil
		}
	}
	return fmt.Errorf("%w: need at least one field with %d+ characters",
		model.ErrInsufficientContent, e.minFieldRunes)
}

// Reward computes the skill reward for a validated submission. The base
// reward goes to the step's skill; submissions whose aggregate length
// exceeds the richness threshold earn the bonus on top.
func (e *Engine) Reward(step int, fields map[string]string) (model.SkillReward, error) {
	info, ok := stepTable[step]
	if !ok {
		return nil, fmt.Errorf("%w: step %d out of range", model.ErrInvalidStepOrder, step)
	}

	points := e.baseReward
	if aggregateRunes(fields) > e.richnessThreshold {
		points += e.richnessBonus
	}

	return model.SkillReward{info.Skill: points}, nil
}

// aggregateRunes counts runes across all field values.
func aggregateRunes(fields map[string]string) int {
	total := 0
	for _, v := range fields {
		total += utf8.RuneCountInString(v)
	}
	return total
}
