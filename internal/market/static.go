package market

import (
	"context"
	"time"

	"github.com/FelixJx/fupan-game/internal/domain/model"
)

// StaticProvider serves fixed snapshot and outcome data. It stands in for a
// real market feed in development and tests; outcomes are keyed by date so
// repeated lookups return identical results.
type StaticProvider struct {
	snapshot Snapshot
	outcome  model.Outcome
}

// StaticOption applies a configuration option to the StaticProvider.
type StaticOption func(*StaticProvider)

// WithSnapshot overrides the served snapshot.
func WithSnapshot(s Snapshot) StaticOption {
	return func(p *StaticProvider) { p.snapshot = s }
}

// WithOutcome overrides the served outcome template.
func WithOutcome(o model.Outcome) StaticOption {
	return func(p *StaticProvider) { p.outcome = o }
}

// NewStaticProvider creates a static provider with fixture defaults.
func NewStaticProvider(opts ...StaticOption) *StaticProvider {
	p := &StaticProvider{
		snapshot: Snapshot{
			Indices: map[string]IndexQuote{
				"上证指数": {Value: 3245.67, ChangePct: -1.2},
				"深证成指": {Value: 12456.32, ChangePct: 0.8},
				"创业板指": {Value: 2876.45, ChangePct: 1.5},
			},
			HotSectors: []SectorQuote{
				{Name: "新能源汽车", ChangePct: 3.2},
				{Name: "人工智能", ChangePct: 2.8},
				{Name: "医疗器械", ChangePct: 2.1},
			},
			RiskSectors: []SectorQuote{
				{Name: "房地产", ChangePct: -2.8},
				{Name: "银行", ChangePct: -1.5},
			},
			TotalVolume: "1.15万亿",
		},
		outcome: model.Outcome{
			Direction:     model.DirectionSideway,
			FundSentiment: model.SentimentNeutral,
			TopSectors:    []string{"新能源汽车", "人工智能"},
			TopStocks:     []string{"比亚迪", "宁德时代"},
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// GetCurrentSnapshot returns the fixture snapshot stamped with the call time.
func (p *StaticProvider) GetCurrentSnapshot(_ context.Context) (Snapshot, error) {
	s := p.snapshot
	s.Timestamp = time.Now().UTC()
	return s, nil
}

// GetRealizedOutcome returns the fixture outcome for the requested date.
func (p *StaticProvider) GetRealizedOutcome(_ context.Context, date string) (model.Outcome, error) {
	o := p.outcome
	o.Date = date
	o.TopSectors = append([]string(nil), p.outcome.TopSectors...)
	o.TopStocks = append([]string(nil), p.outcome.TopStocks...)
	return o, nil
}
