package model_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/FelixJx/fupan-game/internal/domain/model"
)

func TestSkillPoints(t *testing.T) {
	Convey("Given the skill point rules", t, func() {
		Convey("When building the baseline map", func() {
			points := model.BaselineSkillPoints()

			Convey("Then every skill starts at the baseline", func() {
				So(len(points), ShouldEqual, model.StepCount)
				for _, s := range model.Skills() {
					So(points[s], ShouldEqual, model.SkillBaseline)
				}
			})
		})

		Convey("When clamping skill values", func() {
			So(model.ClampSkill(-3), ShouldEqual, 0)
			So(model.ClampSkill(0), ShouldEqual, 0)
			So(model.ClampSkill(55), ShouldEqual, 55)
			So(model.ClampSkill(100), ShouldEqual, 100)
			So(model.ClampSkill(104), ShouldEqual, 100)
		})
	})
}

func TestSessionProgress(t *testing.T) {
	Convey("Given a session mid-playthrough", t, func() {
		s := model.Session{
			CurrentStep:    4,
			CompletedSteps: []int{1, 2, 3},
		}

		Convey("When checking completed steps", func() {
			So(s.HasCompleted(2), ShouldBeTrue)
			So(s.HasCompleted(4), ShouldBeFalse)
			So(s.AllStepsCompleted(), ShouldBeFalse)
		})

		Convey("When all six steps are done", func() {
			s.CompletedSteps = []int{1, 2, 3, 4, 5, 6}
			So(s.AllStepsCompleted(), ShouldBeTrue)
		})
	})
}

func TestSessionClone(t *testing.T) {
	Convey("Given a session with nested state", t, func() {
		due := time.Now().UTC()
		s := model.Session{
			ID:             "s1",
			CompletedSteps: []int{1, 2},
			SkillPoints:    map[model.Skill]int{model.SkillRiskSense: 55},
			GradingDueAt:   &due,
		}

		Convey("When cloning and mutating the copy", func() {
			clone := s.Clone()
			clone.CompletedSteps[0] = 99
			clone.SkillPoints[model.SkillRiskSense] = 1
			*clone.GradingDueAt = clone.GradingDueAt.Add(time.Hour)

			Convey("Then the original is unaffected", func() {
				So(s.CompletedSteps[0], ShouldEqual, 1)
				So(s.SkillPoints[model.SkillRiskSense], ShouldEqual, 55)
				So(s.GradingDueAt.Equal(due), ShouldBeTrue)
			})
		})
	})
}
