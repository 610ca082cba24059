package scoring_test

import (
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/FelixJx/fupan-game/internal/domain/model"
	"github.com/FelixJx/fupan-game/internal/domain/scoring"
)

// fullSubmissions builds six step submissions that saturate the depth block:
// 600+ total runes across 12 fields.
func fullSubmissions() []model.StepSubmission {
	subs := make([]model.StepSubmission, 0, model.StepCount)
	for step := 1; step <= model.StepCount; step++ {
		subs = append(subs, model.StepSubmission{
			Step: step,
			Fields: map[string]string{
				"analysis": strings.Repeat("涨", 60),
				"evidence": strings.Repeat("量", 60),
			},
		})
	}
	return subs
}

func TestPredictionScore(t *testing.T) {
	Convey("Given the default scoring policy", t, func() {
		policy := scoring.NewPolicy()

		Convey("When every part of the bundle matches the outcome", func() {
			bundle := &model.PredictionBundle{
				Sectors:         []string{"新能源汽车", "人工智能"},
				Stocks:          []string{"比亚迪"},
				MarketDirection: model.DirectionSideway,
				FundSentiment:   model.SentimentNeutral,
			}
			outcome := &model.Outcome{
				Direction:     model.DirectionSideway,
				FundSentiment: model.SentimentNeutral,
				TopSectors:    []string{"新能源汽车", "人工智能", "医疗器械"},
				TopStocks:     []string{"比亚迪", "宁德时代"},
			}

			Convey("Then the prediction block reaches its 70-point ceiling", func() {
				So(policy.PredictionScore(bundle, outcome), ShouldEqual, 70)
			})
		})

		Convey("When the bundle only partially overlaps the outcome", func() {
			bundle := &model.PredictionBundle{
				Sectors:         []string{"半导体", "白酒", "军工"},
				Stocks:          []string{"贵州茅台", "中芯国际"},
				MarketDirection: model.DirectionUp,
				FundSentiment:   model.SentimentNeutral,
			}
			outcome := &model.Outcome{
				Direction:     model.DirectionDown,
				FundSentiment: model.SentimentNeutral,
				TopSectors:    []string{"半导体"},
				TopStocks:     []string{"中芯国际"},
			}

			Convey("Then overlap ratios weight each block", func() {
				// sectors 1/3*30 + stocks 1/2*25 + sentiment 7.
				So(policy.PredictionScore(bundle, outcome), ShouldEqual, 29.5)
			})
		})

		Convey("When nothing matches", func() {
			bundle := &model.PredictionBundle{
				Sectors:         []string{"白酒"},
				MarketDirection: model.DirectionSurge,
				FundSentiment:   model.SentimentEuphoric,
			}
			outcome := &model.Outcome{
				Direction:     model.DirectionPlunge,
				FundSentiment: model.SentimentPanic,
				TopSectors:    []string{"银行"},
				TopStocks:     []string{"招商银行"},
			}

			Convey("Then the prediction score is zero", func() {
				So(policy.PredictionScore(bundle, outcome), ShouldEqual, 0)
			})
		})
	})
}

func TestDepthScore(t *testing.T) {
	Convey("Given the default scoring policy", t, func() {
		policy := scoring.NewPolicy()

		Convey("When all six steps are rich and complete", func() {
			Convey("Then the depth block reaches its 30-point ceiling", func() {
				So(policy.DepthScore(fullSubmissions()), ShouldEqual, 30)
			})
		})

		Convey("When only half the steps were submitted with thin content", func() {
			subs := []model.StepSubmission{
				{Step: 1, Fields: map[string]string{"a": strings.Repeat("x", 60)}},
				{Step: 2, Fields: map[string]string{"a": strings.Repeat("x", 60)}},
				{Step: 3, Fields: map[string]string{"a": strings.Repeat("x", 60)}},
			}

			Convey("Then each sub-score scales down", func() {
				// completion 3/6*10 + quality 180/600*10 + logic 3/12*10.
				So(policy.DepthScore(subs), ShouldEqual, 10.5)
			})
		})

		Convey("When there are no submissions at all", func() {
			So(policy.DepthScore(nil), ShouldEqual, 0)
		})
	})
}

func TestSkillBonusAndGrade(t *testing.T) {
	Convey("Given the default scoring policy", t, func() {
		policy := scoring.NewPolicy()

		Convey("When counting skills at or above the threshold", func() {
			points := map[model.Skill]int{
				model.SkillMarketPerception:    70,
				model.SkillRiskSense:           85,
				model.SkillOpportunityCapture:  69,
				model.SkillCapitalSense:        50,
				model.SkillLogicThinking:       100,
				model.SkillPortfolioManagement: 71,
			}

			Convey("Then one point per qualifying skill is granted", func() {
				So(policy.SkillBonus(points), ShouldEqual, 4)
			})
		})

		Convey("When every skill qualifies", func() {
			points := make(map[model.Skill]int)
			for _, s := range model.Skills() {
				points[s] = 90
			}

			Convey("Then the bonus is capped", func() {
				So(policy.SkillBonus(points), ShouldEqual, 5)
			})
		})

		Convey("When mapping totals to grade bands", func() {
			So(policy.Grade(95), ShouldEqual, "S级 - 先知先觉")
			So(policy.Grade(90), ShouldEqual, "S级 - 先知先觉")
			So(policy.Grade(84), ShouldEqual, "A级 - 后知后觉")
			So(policy.Grade(73), ShouldEqual, "B级 - 不知不觉")
			So(policy.Grade(60), ShouldEqual, "C级 - 初学者")
			So(policy.Grade(12), ShouldEqual, "D级 - 需要努力")
		})
	})
}

func TestBuildReport(t *testing.T) {
	Convey("Given the default scoring policy", t, func() {
		policy := scoring.NewPolicy()
		now := time.Date(2025, 6, 17, 15, 30, 0, 0, time.UTC)

		Convey("When grading a flawless playthrough", func() {
			bundle := &model.PredictionBundle{
				Sectors:         []string{"新能源汽车", "人工智能"},
				Stocks:          []string{"比亚迪"},
				MarketDirection: model.DirectionSideway,
				FundSentiment:   model.SentimentNeutral,
			}
			outcome := &model.Outcome{
				Direction:     model.DirectionSideway,
				FundSentiment: model.SentimentNeutral,
				TopSectors:    []string{"新能源汽车", "人工智能"},
				TopStocks:     []string{"比亚迪", "宁德时代"},
			}
			points := make(map[model.Skill]int)
			for _, s := range model.Skills() {
				points[s] = 80
			}

			report := policy.BuildReport(bundle, outcome, fullSubmissions(), points, now)

			Convey("Then the base is capped at 100 and the bonus sits on top", func() {
				So(report.PredictionScore, ShouldEqual, 70)
				So(report.DepthScore, ShouldEqual, 30)
				So(report.SkillBonus, ShouldEqual, 5)
				So(report.TotalScore, ShouldEqual, 105)
				So(report.Grade, ShouldEqual, "S级 - 先知先觉")
				So(report.GradedAt, ShouldEqual, now)
			})

			Convey("Then feedback is present and bounded", func() {
				So(len(report.Feedback), ShouldBeGreaterThan, 0)
				So(len(report.Feedback), ShouldBeLessThanOrEqualTo, 8)
			})
		})

		Convey("When grading a weak playthrough", func() {
			bundle := &model.PredictionBundle{
				Sectors:         []string{"白酒"},
				MarketDirection: model.DirectionSurge,
				FundSentiment:   model.SentimentEuphoric,
			}
			outcome := &model.Outcome{
				Direction:     model.DirectionPlunge,
				FundSentiment: model.SentimentPanic,
				TopSectors:    []string{"银行"},
			}
			subs := []model.StepSubmission{
				{Step: 1, Fields: map[string]string{"a": strings.Repeat("x", 30)}},
			}

			report := policy.BuildReport(bundle, outcome, subs, model.BaselineSkillPoints(), now)

			Convey("Then the report lands in the lowest band with no bonus", func() {
				So(report.TotalScore, ShouldBeLessThan, 10)
				So(report.SkillBonus, ShouldEqual, 0)
				So(report.Grade, ShouldEqual, "D级 - 需要努力")
				So(len(report.Feedback), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When grading the same inputs twice", func() {
			bundle := &model.PredictionBundle{
				Sectors:         []string{"人工智能"},
				MarketDirection: model.DirectionUp,
				FundSentiment:   model.SentimentPositive,
			}
			outcome := &model.Outcome{
				Direction:     model.DirectionUp,
				FundSentiment: model.SentimentPositive,
				TopSectors:    []string{"人工智能"},
			}

			first := policy.BuildReport(bundle, outcome, fullSubmissions(), model.BaselineSkillPoints(), now)
			second := policy.BuildReport(bundle, outcome, fullSubmissions(), model.BaselineSkillPoints(), now)

			Convey("Then grading is deterministic", func() {
				So(second, ShouldResemble, first)
			})
		})
	})
}
