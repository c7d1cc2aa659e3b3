// Package portfolio tracks model portfolios: composition snapshots and the
// daily return records derived from them.
package portfolio

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a portfolio
type Status string

const (
	// StatusActive - portfolio is live and included in the daily batch
	StatusActive Status = "ACTIVE"
	// StatusDeleted - soft-deleted, excluded from computation
	StatusDeleted Status = "DELETED"
)

// Portfolio is one model portfolio
type Portfolio struct {
	ID        uuid.UUID
	Name      string
	Status    Status
	StartedAt time.Time // activation date; no returns are computed before it
}

// SnapshotEntry is one instrument's initial weight inside a snapshot
type SnapshotEntry struct {
	InstrumentID uuid.UUID
	WeightPct    decimal.Decimal
}

// Snapshot is a dated record of a portfolio's instrument weights, valid from
// its effective date until superseded by a later snapshot.
type Snapshot struct {
	ID            uuid.UUID
	PortfolioID   uuid.UUID
	EffectiveDate time.Time
	Note          string
	Entries       []SnapshotEntry
}

// PortfolioDailyReturn is one portfolio-level return record.
// Invariant: ReturnTotal = ReturnLocal + ReturnFx.
// At most one exists per (portfolio, date).
type PortfolioDailyReturn struct {
	PortfolioID uuid.UUID
	SnapshotID  uuid.UUID
	ReturnDate  time.Time
	ReturnTotal decimal.Decimal
	ReturnLocal decimal.Decimal
	ReturnFx    decimal.Decimal
	TotalValue  decimal.Decimal
}

// InstrumentDailyReturn is one holding's return record for a date.
//
// WeightUsed is the drifted, market-value-based weight; ContributionTotal is
// computed from the snapshot's initial weight. The two deliberately differ:
// contribution attributes return to the original allocation decision, drifted
// weight reports the current de-facto exposure.
type InstrumentDailyReturn struct {
	PortfolioID       uuid.UUID
	SnapshotID        uuid.UUID
	InstrumentID      uuid.UUID
	ReturnDate        time.Time
	WeightUsed        decimal.Decimal
	ReturnLocal       decimal.Decimal
	ReturnTotal       decimal.Decimal
	FxReturn          decimal.Decimal
	ContributionTotal decimal.Decimal
	Valuation         decimal.Decimal
}

// WithDriftedWeight returns a copy of the record with the drifted-weight
// fields replaced. Used by the weight rebuild job to correct records written
// before valuation-based weights existed.
func (r InstrumentDailyReturn) WithDriftedWeight(weightUsed, valuation, contribution decimal.Decimal) InstrumentDailyReturn {
	r.WeightUsed = weightUsed
	r.Valuation = valuation
	r.ContributionTotal = contribution
	return r
}
