package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/FelixJx/fupan-game/internal/adapters/repository"
	"github.com/FelixJx/fupan-game/internal/adapters/scheduler"
	"github.com/FelixJx/fupan-game/internal/app"
	"github.com/FelixJx/fupan-game/internal/domain/model"
)

func richFields() map[string]string {
	return map[string]string{
		"analysis": strings.Repeat("市场震荡整理，量能温和", 10),
		"evidence": strings.Repeat("板块轮动明显", 10),
	}
}

// startService builds a service with fast grading turnaround for tests.
func startService(opts ...app.Option) (*app.Service, func()) {
	base := []app.Option{
		app.WithStore(repository.NewMemoryStore()),
		app.WithGradingDelay(20 * time.Millisecond),
		app.WithSchedulerOptions(scheduler.WithPollInterval(10 * time.Millisecond)),
	}
	svc := app.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	return svc, svc.Stop
}

func playAllSteps(ctx context.Context, svc *app.Service, sessionID string) error {
	for step := 1; step <= model.StepCount; step++ {
		if _, err := svc.SubmitStep(ctx, sessionID, step, richFields()); err != nil {
			return err
		}
	}
	return nil
}

func TestServiceSessionFlow(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		svc, stop := startService()
		defer stop()

		Convey("When starting a session", func() {
			session, err := svc.StartSession(ctx, "trader-1")

			Convey("Then it begins active at step 1", func() {
				So(err, ShouldBeNil)
				So(session.Status, ShouldEqual, model.StatusActive)
				So(session.CurrentStep, ShouldEqual, 1)
			})

			Convey("And an empty user id falls back to guest", func() {
				guest, err := svc.StartSession(ctx, "")
				So(err, ShouldBeNil)
				So(guest.UserID, ShouldEqual, "guest")
			})
		})

		Convey("When submitting a step with thin content", func() {
			session, err := svc.StartSession(ctx, "trader-1")
			So(err, ShouldBeNil)

			_, err = svc.SubmitStep(ctx, session.ID, 1, map[string]string{"analysis": "短"})

			Convey("Then the submission is rejected without advancing", func() {
				So(errors.Is(err, model.ErrInsufficientContent), ShouldBeTrue)
				got, getErr := svc.GetSession(ctx, session.ID)
				So(getErr, ShouldBeNil)
				So(got.CurrentStep, ShouldEqual, 1)
				So(got.CompletedSteps, ShouldBeEmpty)
			})
		})

		Convey("When submitting a valid step", func() {
			session, err := svc.StartSession(ctx, "trader-1")
			So(err, ShouldBeNil)

			result, err := svc.SubmitStep(ctx, session.ID, 1, richFields())

			Convey("Then the result carries progress, reward and step name", func() {
				So(err, ShouldBeNil)
				So(result.CurrentStep, ShouldEqual, 2)
				So(result.CompletedSteps, ShouldResemble, []int{1})
				So(result.StepName, ShouldEqual, "市场鸟瞰")
				So(result.SkillReward[model.SkillMarketPerception], ShouldBeGreaterThanOrEqualTo, 5)
			})
		})

		Convey("When submitting steps out of order", func() {
			session, err := svc.StartSession(ctx, "trader-1")
			So(err, ShouldBeNil)

			_, err = svc.SubmitStep(ctx, session.ID, 4, richFields())

			Convey("Then the order violation surfaces", func() {
				So(errors.Is(err, model.ErrInvalidStepOrder), ShouldBeTrue)
			})
		})
	})
}

func TestServicePredictionsAndGrading(t *testing.T) {
	Convey("Given a running service with a finished six-step review", t, func() {
		ctx := context.Background()
		svc, stop := startService()
		defer stop()

		session, err := svc.StartSession(ctx, "trader-1")
		So(err, ShouldBeNil)
		So(playAllSteps(ctx, svc, session.ID), ShouldBeNil)

		bundle := model.PredictionBundle{
			Sectors:         []string{"新能源汽车", "人工智能"},
			Stocks:          []string{"比亚迪"},
			MarketDirection: model.DirectionSideway,
			FundSentiment:   model.SentimentNeutral,
		}

		Convey("When submitting an invalid bundle", func() {
			bad := bundle
			bad.MarketDirection = "up"
			_, err := svc.SubmitPredictions(ctx, session.ID, bad)

			Convey("Then validation rejects it before any state change", func() {
				So(errors.Is(err, model.ErrInvalidBundle), ShouldBeTrue)
				got, getErr := svc.GetSession(ctx, session.ID)
				So(getErr, ShouldBeNil)
				So(got.Status, ShouldEqual, model.StatusActive)
			})
		})

		Convey("When submitting a valid bundle", func() {
			receipt, err := svc.SubmitPredictions(ctx, session.ID, bundle)

			Convey("Then the receipt is accepted with a grading ETA", func() {
				So(err, ShouldBeNil)
				So(receipt.Accepted, ShouldBeTrue)
				So(receipt.GradingETA.After(time.Now().Add(-time.Second)), ShouldBeTrue)
			})

			Convey("Then the report is not ready immediately", func() {
				_, err := svc.ScoreReport(ctx, session.ID)
				So(errors.Is(err, model.ErrReportNotReady) || err == nil, ShouldBeTrue)
			})

			Convey("Then deferred grading eventually completes the session", func() {
				var report model.ScoreReport
				deadline := time.Now().Add(3 * time.Second)
				for time.Now().Before(deadline) {
					report, err = svc.ScoreReport(ctx, session.ID)
					if err == nil {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}

				So(err, ShouldBeNil)
				// Steps were rich and the bundle matches the static outcome.
				So(report.PredictionScore, ShouldEqual, 70)
				So(report.TotalScore, ShouldBeGreaterThan, 90)
				So(report.Grade, ShouldStartWith, "S级")
				So(len(report.Feedback), ShouldBeGreaterThan, 0)

				got, getErr := svc.GetSession(ctx, session.ID)
				So(getErr, ShouldBeNil)
				So(got.Status, ShouldEqual, model.StatusCompleted)

				Convey("And the leaderboard lists the completed session", func() {
					entries, err := svc.Leaderboard(ctx, 10)
					So(err, ShouldBeNil)
					So(len(entries), ShouldEqual, 1)
					So(entries[0].SessionID, ShouldEqual, session.ID)
					So(entries[0].Rank, ShouldEqual, 1)
				})
			})

			Convey("And a second bundle is refused", func() {
				_, err := svc.SubmitPredictions(ctx, session.ID, bundle)
				So(errors.Is(err, model.ErrPredictionAlreadySubmitted), ShouldBeTrue)
			})
		})
	})
}

func TestServiceReads(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		svc, stop := startService()
		defer stop()

		Convey("When fetching the market snapshot", func() {
			snapshot, err := svc.MarketSnapshot(ctx)

			Convey("Then the fixture overview is served", func() {
				So(err, ShouldBeNil)
				So(len(snapshot.Indices), ShouldBeGreaterThan, 0)
				So(len(snapshot.HotSectors), ShouldBeGreaterThan, 0)
				So(snapshot.Timestamp.IsZero(), ShouldBeFalse)
			})
		})

		Convey("When fetching stats", func() {
			_, err := svc.StartSession(ctx, "trader-1")
			So(err, ShouldBeNil)

			stats := svc.Stats(ctx)

			Convey("Then session counts are reported", func() {
				So(stats["sessions"], ShouldEqual, 1)
				So(stats["live_sessions"], ShouldEqual, 0)
			})
		})

		Convey("When fetching an unknown session", func() {
			_, err := svc.GetSession(ctx, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}
