// Package scoring computes the deferred score report: weighted prediction
// accuracy, review depth and the skill bonus. Every computation here is
// deterministic and side-effect-free given its inputs, so grading can be
// retried safely.
package scoring

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/FelixJx/fupan-game/internal/domain/model"
)

// Default policy weights. The prediction block sums to 70 and the depth
// block to 30, mirroring the original scoring tables.
const (
	defaultSectorWeight    = 30.0
	defaultStockWeight     = 25.0
	defaultDirectionWeight = 8.0
	defaultSentimentWeight = 7.0

	defaultCompletionWeight = 10.0
	defaultQualityWeight    = 10.0
	defaultLogicWeight      = 10.0

	defaultQualityTargetRunes = 600
	defaultLogicTargetFields  = 12

	defaultBonusThreshold = 70
	defaultBonusCap       = 5

	maxBaseScore = 100.0
	maxFeedback  = 8
)

// Option applies a configuration option to the Policy.
type Option func(*Policy)

// WithPredictionWeights overrides the four prediction weights. Non-positive
// values leave the corresponding default untouched.
func WithPredictionWeights(sector, stock, direction, sentiment float64) Option {
	return func(p *Policy) {
		if sector > 0 {
			p.sectorWeight = sector
		}
		if stock > 0 {
			p.stockWeight = stock
		}
		if direction > 0 {
			p.directionWeight = direction
		}
		if sentiment > 0 {
			p.sentimentWeight = sentiment
		}
	}
}

// WithDepthTargets sets the content targets used to scale quality and logic
// sub-scores.
func WithDepthTargets(qualityRunes, logicFields int) Option {
	return func(p *Policy) {
		if qualityRunes > 0 {
			p.qualityTargetRunes = qualityRunes
		}
		if logicFields > 0 {
			p.logicTargetFields = logicFields
		}
	}
}

// WithSkillBonus sets the skill level that earns bonus points and the cap.
func WithSkillBonus(threshold, limit int) Option {
	return func(p *Policy) {
		if threshold > 0 {
			p.bonusThreshold = threshold
		}
		if limit >= 0 {
			p.bonusCap = limit
		}
	}
}

// Policy holds the configurable weight tables for grading.
type Policy struct {
	sectorWeight    float64
	stockWeight     float64
	directionWeight float64
	sentimentWeight float64

	completionWeight float64
	qualityWeight    float64
	logicWeight      float64

	qualityTargetRunes int
	logicTargetFields  int

	bonusThreshold int
	bonusCap       int
}

// NewPolicy creates a scoring policy with configuration options.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		sectorWeight:       defaultSectorWeight,
		stockWeight:        defaultStockWeight,
		directionWeight:    defaultDirectionWeight,
		sentimentWeight:    defaultSentimentWeight,
		completionWeight:   defaultCompletionWeight,
		qualityWeight:      defaultQualityWeight,
		logicWeight:        defaultLogicWeight,
		qualityTargetRunes: defaultQualityTargetRunes,
		logicTargetFields:  defaultLogicTargetFields,
		bonusThreshold:     defaultBonusThreshold,
		bonusCap:           defaultBonusCap,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// PredictionScore grades predicted sectors/stocks/direction/sentiment against
// the realized outcome using weighted overlap.
func (p *Policy) PredictionScore(bundle *model.PredictionBundle, outcome *model.Outcome) float64 {
	score := 0.0
	score += overlapRatio(bundle.Sectors, outcome.TopSectors) * p.sectorWeight
	score += overlapRatio(bundle.Stocks, outcome.TopStocks) * p.stockWeight
	if bundle.MarketDirection == outcome.Direction {
		score += p.directionWeight
	}
	if bundle.FundSentiment == outcome.FundSentiment {
		score += p.sentimentWeight
	}
	return roundScore(score)
}

// DepthScore grades the aggregate content richness of the stored step
// submissions: completion across the six steps, quality from total length
// and logic from field count.
func (p *Policy) DepthScore(submissions []model.StepSubmission) float64 {
	totalRunes := 0
	totalFields := 0
	completed := make(map[int]struct{}, len(submissions))
	for i := range submissions {
		completed[submissions[i].Step] = struct{}{}
		totalFields += len(submissions[i].Fields)
		for _, v := range submissions[i].Fields {
			totalRunes += utf8.RuneCountInString(v)
		}
	}

	completion := float64(len(completed)) / float64(model.StepCount) * p.completionWeight
	quality := math.Min(p.qualityWeight,
		float64(totalRunes)/float64(p.qualityTargetRunes)*p.qualityWeight)
	logic := math.Min(p.logicWeight,
		float64(totalFields)/float64(p.logicTargetFields)*p.logicWeight)

	return roundScore(completion + quality + logic)
}

// SkillBonus grants one point per skill at or above the threshold, capped.
// The bonus sits outside the 100-point base cap.
func (p *Policy) SkillBonus(points map[model.Skill]int) int {
	bonus := 0
	for _, v := range points {
		if v >= p.bonusThreshold {
			bonus++
		}
	}
	if bonus > p.bonusCap {
		bonus = p.bonusCap
	}
	return bonus
}

// Grade derives the coarse label from a total score via fixed bands.
func (p *Policy) Grade(total float64) string {
	switch {
	case total >= 90:
		return "S级 - 先知先觉"
	case total >= 80:
		return "A级 - 后知后觉"
	case total >= 70:
		return "B级 - 不知不觉"
	case total >= 60:
		return "C级 - 初学者"
	default:
		return "D级 - 需要努力"
	}
}

// BuildReport assembles the full score report for a session. The base score
// (prediction + depth) is capped at 100 before the skill bonus is added.
func (p *Policy) BuildReport(
	bundle *model.PredictionBundle,
	outcome *model.Outcome,
	submissions []model.StepSubmission,
	skillPoints map[model.Skill]int,
	now time.Time,
) model.ScoreReport {
	prediction := p.PredictionScore(bundle, outcome)
	depth := p.DepthScore(submissions)
	bonus := p.SkillBonus(skillPoints)

	base := math.Min(maxBaseScore, prediction+depth)
	total := base + float64(bonus)

	return model.ScoreReport{
		TotalScore:      roundScore(total),
		PredictionScore: prediction,
		DepthScore:      depth,
		SkillBonus:      bonus,
		Grade:           p.Grade(total),
		Feedback:        p.feedback(prediction, depth, bonus),
		GradedAt:        now.UTC(),
	}
}

// feedback produces a bounded, non-empty list of remarks derived only from
// the computed sub-scores.
func (p *Policy) feedback(prediction, depth float64, bonus int) []string {
	remarks := make([]string, 0, maxFeedback)

	predictionCeiling := p.sectorWeight + p.stockWeight + p.directionWeight + p.sentimentWeight
	switch {
	case prediction >= predictionCeiling*0.8:
		remarks = append(remarks, "预测准确度很高，板块与个股判断到位")
	case prediction >= predictionCeiling*0.5:
		remarks = append(remarks, "预测方向基本正确，个股命中还有提升空间")
	default:
		remarks = append(remarks, "预测偏差较大，建议复盘板块轮动与资金流向")
	}

	depthCeiling := p.completionWeight + p.qualityWeight + p.logicWeight
	switch {
	case depth >= depthCeiling*0.8:
		remarks = append(remarks, "复盘深度扎实，六步法执行完整")
	case depth >= depthCeiling*0.5:
		remarks = append(remarks, "复盘有一定深度，分析内容可以再充实")
	default:
		remarks = append(remarks, "复盘内容偏少，需要加强量价与逻辑分析")
	}

	if bonus > 0 {
		remarks = append(remarks, fmt.Sprintf("技能加分 +%d，继续保持", bonus))
	}

	// Methodology reminders, always appended.
	remarks = append(remarks, "记住：价格永远领先情绪", "量为价先导，价为王")

	if len(remarks) > maxFeedback {
		remarks = remarks[:maxFeedback]
	}
	return remarks
}

// overlapRatio returns |predicted ∩ actual| / |predicted| in [0, 1].
// An empty prediction list scores zero for its block.
func overlapRatio(predicted, actual []string) float64 {
	if len(predicted) == 0 {
		return 0
	}
	actualSet := make(map[string]struct{}, len(actual))
	for _, a := range actual {
		actualSet[a] = struct{}{}
	}
	hits := 0
	for _, label := range predicted {
		if _, ok := actualSet[label]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(predicted))
}

// roundScore keeps scores stable across platforms at two decimal places.
func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}
