// Package market declares the collaborator interfaces through which the
// game core reads market data: a display snapshot and the realized next-day
// outcome used by deferred grading.
package market

import (
	"context"
	"time"

	"github.com/FelixJx/fupan-game/internal/domain/model"
)

// IndexQuote is one index reading in a snapshot.
type IndexQuote struct {
	Value     float64 `json:"value"`
	ChangePct float64 `json:"change_pct"`
}

// SectorQuote is one sector reading in a snapshot.
type SectorQuote struct {
	Name      string  `json:"name"`
	ChangePct float64 `json:"change_pct"`
}

// Snapshot is the current market overview, used for display only.
type Snapshot struct {
	Indices     map[string]IndexQuote `json:"indices"`
	HotSectors  []SectorQuote         `json:"hot_sectors"`
	RiskSectors []SectorQuote         `json:"risk_sectors"`
	TotalVolume string                `json:"total_volume"`
	Timestamp   time.Time             `json:"timestamp"`
}

// SnapshotProvider serves the current market overview.
type SnapshotProvider interface {
	GetCurrentSnapshot(ctx context.Context) (Snapshot, error)
}

// OutcomeProvider serves realized market outcomes for grading. Lookups must
// be idempotent for a given date.
type OutcomeProvider interface {
	GetRealizedOutcome(ctx context.Context, date string) (model.Outcome, error)
}
