package model_test

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/FelixJx/fupan-game/internal/domain/model"
)

func TestPredictionBundleValidate(t *testing.T) {
	Convey("Given a prediction bundle", t, func() {
		valid := model.PredictionBundle{
			Sectors:         []string{"新能源汽车", "人工智能"},
			Stocks:          []string{"比亚迪", "宁德时代"},
			MarketDirection: model.DirectionUp,
			FundSentiment:   model.SentimentPositive,
		}

		Convey("When the bundle is well-formed", func() {
			So(valid.Validate(), ShouldBeNil)
		})

		Convey("When both label lists are empty", func() {
			b := valid
			b.Sectors = nil
			b.Stocks = nil
			So(errors.Is(b.Validate(), model.ErrInvalidBundle), ShouldBeTrue)
		})

		Convey("When only stocks are predicted", func() {
			b := valid
			b.Sectors = nil
			So(b.Validate(), ShouldBeNil)
		})

		Convey("When the sector cap is exceeded", func() {
			b := valid
			b.Sectors = []string{"a", "b", "c", "d"}
			So(errors.Is(b.Validate(), model.ErrInvalidBundle), ShouldBeTrue)
		})

		Convey("When the stock cap is exceeded", func() {
			b := valid
			b.Stocks = []string{"a", "b", "c", "d", "e", "f"}
			So(errors.Is(b.Validate(), model.ErrInvalidBundle), ShouldBeTrue)
		})

		Convey("When a sector label repeats", func() {
			b := valid
			b.Sectors = []string{"人工智能", "人工智能"}
			So(errors.Is(b.Validate(), model.ErrInvalidBundle), ShouldBeTrue)
		})

		Convey("When a stock label repeats", func() {
			b := valid
			b.Stocks = []string{"比亚迪", "比亚迪"}
			So(errors.Is(b.Validate(), model.ErrInvalidBundle), ShouldBeTrue)
		})

		Convey("When the direction is not one of the five labels", func() {
			b := valid
			b.MarketDirection = model.Direction("sideways")
			So(errors.Is(b.Validate(), model.ErrInvalidBundle), ShouldBeTrue)
		})

		Convey("When the sentiment is not one of the five labels", func() {
			b := valid
			b.FundSentiment = model.Sentiment("开心")
			So(errors.Is(b.Validate(), model.ErrInvalidBundle), ShouldBeTrue)
		})
	})
}
