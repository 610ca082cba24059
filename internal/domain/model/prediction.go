package model

import (
	"fmt"
	"time"
)

// Direction enumerates the five predictable market directions.
type Direction string

// Market direction labels, kept in the original Chinese wording.
const (
	DirectionSurge   Direction = "大涨"
	DirectionUp      Direction = "上涨"
	DirectionSideway Direction = "震荡"
	DirectionDown    Direction = "下跌"
	DirectionPlunge  Direction = "大跌"
)

// Sentiment enumerates the five predictable fund sentiment readings.
type Sentiment string

// Fund sentiment labels.
const (
	SentimentEuphoric Sentiment = "狂热"
	SentimentPositive Sentiment = "积极"
	SentimentNeutral  Sentiment = "中性"
	SentimentCautious Sentiment = "谨慎"
	SentimentPanic    Sentiment = "恐慌"
)

// Bundle size caps.
const (
	MaxPredictedSectors = 3
	MaxPredictedStocks  = 5
)

// PredictionBundle is the single next-day forecast submitted after step 6.
type PredictionBundle struct {
	Sectors         []string  `json:"sectors"`
	Stocks          []string  `json:"stocks"`
	MarketDirection Direction `json:"market_direction"`
	FundSentiment   Sentiment `json:"fund_sentiment"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// Validate checks size caps, duplicates and enum membership. It returns an
// error wrapping ErrInvalidBundle so callers can match the taxonomy.
func (b *PredictionBundle) Validate() error {
	if len(b.Sectors) == 0 && len(b.Stocks) == 0 {
		return fmt.Errorf("%w: at least one sector or stock required", ErrInvalidBundle)
	}
	if len(b.Sectors) > MaxPredictedSectors {
		return fmt.Errorf("%w: at most %d sectors", ErrInvalidBundle, MaxPredictedSectors)
	}
	if len(b.Stocks) > MaxPredictedStocks {
		return fmt.Errorf("%w: at most %d stocks", ErrInvalidBundle, MaxPredictedStocks)
	}
	if hasDuplicates(b.Sectors) {
		return fmt.Errorf("%w: duplicate sector labels", ErrInvalidBundle)
	}
	if hasDuplicates(b.Stocks) {
		return fmt.Errorf("%w: duplicate stock labels", ErrInvalidBundle)
	}
	if !b.MarketDirection.valid() {
		return fmt.Errorf("%w: unknown market direction %q", ErrInvalidBundle, b.MarketDirection)
	}
	if !b.FundSentiment.valid() {
		return fmt.Errorf("%w: unknown fund sentiment %q", ErrInvalidBundle, b.FundSentiment)
	}
	return nil
}

func (d Direction) valid() bool {
	switch d {
	case DirectionSurge, DirectionUp, DirectionSideway, DirectionDown, DirectionPlunge:
		return true
	}
	return false
}

func (s Sentiment) valid() bool {
	switch s {
	case SentimentEuphoric, SentimentPositive, SentimentNeutral, SentimentCautious, SentimentPanic:
		return true
	}
	return false
}

func hasDuplicates(labels []string) bool {
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			return true
		}
		seen[l] = struct{}{}
	}
	return false
}

// Outcome is the realized next-day market result a bundle is graded against.
type Outcome struct {
	Date          string    `json:"date"`
	Direction     Direction `json:"direction"`
	FundSentiment Sentiment `json:"fund_sentiment"`
	TopSectors    []string  `json:"top_sectors"`
	TopStocks     []string  `json:"top_stocks"`
}
