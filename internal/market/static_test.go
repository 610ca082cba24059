package market_test

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/FelixJx/fupan-game/internal/domain/model"
	"github.com/FelixJx/fupan-game/internal/market"
)

func TestStaticProvider(t *testing.T) {
	Convey("Given the static market provider", t, func() {
		ctx := context.Background()
		provider := market.NewStaticProvider()

		Convey("When fetching the current snapshot", func() {
			snapshot, err := provider.GetCurrentSnapshot(ctx)

			Convey("Then the fixture overview is served with a fresh timestamp", func() {
				So(err, ShouldBeNil)
				So(snapshot.Indices, ShouldContainKey, "上证指数")
				So(len(snapshot.HotSectors), ShouldBeGreaterThan, 0)
				So(len(snapshot.RiskSectors), ShouldBeGreaterThan, 0)
				So(snapshot.Timestamp.IsZero(), ShouldBeFalse)
			})
		})

		Convey("When fetching the realized outcome twice for one date", func() {
			first, err := provider.GetRealizedOutcome(ctx, "2025-06-17")
			So(err, ShouldBeNil)
			second, err := provider.GetRealizedOutcome(ctx, "2025-06-17")
			So(err, ShouldBeNil)

			Convey("Then lookups are idempotent and date-stamped", func() {
				So(first.Date, ShouldEqual, "2025-06-17")
				So(second, ShouldResemble, first)
				So(first.Direction, ShouldEqual, model.DirectionSideway)
			})
		})

		Convey("When overriding the outcome", func() {
			custom := market.NewStaticProvider(market.WithOutcome(model.Outcome{
				Direction:     model.DirectionSurge,
				FundSentiment: model.SentimentEuphoric,
				TopSectors:    []string{"半导体"},
			}))
			outcome, err := custom.GetRealizedOutcome(ctx, "2025-06-18")

			Convey("Then the override is served", func() {
				So(err, ShouldBeNil)
				So(outcome.Direction, ShouldEqual, model.DirectionSurge)
				So(outcome.TopSectors, ShouldResemble, []string{"半导体"})
			})
		})
	})
}
