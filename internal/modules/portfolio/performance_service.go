package portfolio

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/porcana/quantcore/internal/database"
	"github.com/porcana/quantcore/internal/modules/market"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// InitialInvestment is the fixed notional every portfolio is assumed to start
// with, in domestic currency. Valuations and drifted weights are derived from
// it; it never changes within a run.
var InitialInvestment = decimal.RequireFromString("10000000.00")

// valuationScale is the fixed number of decimal places for currency amounts
const valuationScale = 2

// InstrumentProvider supplies instrument metadata for snapshot entries
type InstrumentProvider interface {
	GetByIDs(ids []uuid.UUID) (map[uuid.UUID]market.Instrument, error)
}

// PerformanceService computes the daily decomposed return of each active
// portfolio and persists one portfolio record plus one record per holding.
//
// Each portfolio is an independent unit of work with its own transaction:
// a failure in one portfolio never rolls back portfolios already written.
type PerformanceService struct {
	db          *database.DB
	portfolios  *PortfolioRepository
	snapshots   *SnapshotRepository
	returns     *ReturnRepository
	instruments InstrumentProvider
	decomposer  *Decomposer
	log         zerolog.Logger
}

// NewPerformanceService creates a new performance service
func NewPerformanceService(
	db *database.DB,
	portfolios *PortfolioRepository,
	snapshots *SnapshotRepository,
	returns *ReturnRepository,
	instruments InstrumentProvider,
	decomposer *Decomposer,
	log zerolog.Logger,
) *PerformanceService {
	return &PerformanceService{
		db:          db,
		portfolios:  portfolios,
		snapshots:   snapshots,
		returns:     returns,
		instruments: instruments,
		decomposer:  decomposer,
		log:         log.With().Str("component", "performance").Logger(),
	}
}

// RunStats summarizes one batch run
type RunStats struct {
	Processed int
	Skipped   int
	Failed    int
}

// ComputeDaily runs the daily return computation for every ACTIVE portfolio.
// Per-portfolio failures are logged and skipped; the batch never aborts
// because of a single bad portfolio.
func (s *PerformanceService) ComputeDaily(targetDate time.Time) (RunStats, error) {
	portfolios, err := s.portfolios.GetAllActive()
	if err != nil {
		return RunStats{}, fmt.Errorf("failed to load active portfolios: %w", err)
	}

	var stats RunStats
	for _, p := range portfolios {
		processed, err := s.ComputePortfolio(p, targetDate)
		if err != nil {
			stats.Failed++
			s.log.Error().
				Err(err).
				Str("portfolio_id", p.ID.String()).
				Str("target_date", targetDate.Format(dateLayout)).
				Msg("Portfolio computation failed")
			continue
		}
		if processed {
			stats.Processed++
		} else {
			stats.Skipped++
		}
	}

	s.log.Info().
		Str("target_date", targetDate.Format(dateLayout)).
		Int("processed", stats.Processed).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("Daily performance run completed")

	return stats, nil
}

// ComputePortfolio computes and persists one portfolio's return for the date.
// Returns false when the portfolio was legitimately skipped (record already
// exists, or the date precedes activation).
//
// The computation is all-or-nothing: if any single holding's decomposition
// fails, nothing is written for the portfolio on this date.
func (s *PerformanceService) ComputePortfolio(p Portfolio, targetDate time.Time) (bool, error) {
	exists, err := s.returns.Exists(p.ID, targetDate)
	if err != nil {
		return false, err
	}
	if exists {
		s.log.Debug().
			Str("portfolio_id", p.ID.String()).
			Str("target_date", targetDate.Format(dateLayout)).
			Msg("Daily return already exists, skipping")
		return false, nil
	}

	if targetDate.Before(p.StartedAt) {
		s.log.Debug().
			Str("portfolio_id", p.ID.String()).
			Str("target_date", targetDate.Format(dateLayout)).
			Str("started_at", p.StartedAt.Format(dateLayout)).
			Msg("Target date precedes activation, skipping")
		return false, nil
	}

	snapshot, err := s.snapshots.Effective(p.ID, targetDate)
	if err != nil {
		return false, err
	}
	if len(snapshot.Entries) == 0 {
		return false, fmt.Errorf("snapshot %s has no entries", snapshot.ID)
	}

	ids := make([]uuid.UUID, 0, len(snapshot.Entries))
	for _, entry := range snapshot.Entries {
		ids = append(ids, entry.InstrumentID)
	}
	instruments, err := s.instruments.GetByIDs(ids)
	if err != nil {
		return false, fmt.Errorf("failed to load instruments: %w", err)
	}

	// First pass: decompose every holding's return and value the position.
	// Any failure abandons the whole portfolio for this date.
	type holding struct {
		entry      SnapshotEntry
		decomposed DecomposedReturn
		value      decimal.Decimal
	}

	holdings := make([]holding, 0, len(snapshot.Entries))
	totalValue := decimal.Zero

	for _, entry := range snapshot.Entries {
		instrument, ok := instruments[entry.InstrumentID]
		if !ok {
			return false, fmt.Errorf("instrument %s not found", entry.InstrumentID)
		}

		decomposed, err := s.decomposer.Decompose(instrument, snapshot.EffectiveDate, targetDate)
		if err != nil {
			return false, fmt.Errorf("decomposition failed for %s: %w", instrument.Symbol, err)
		}

		initialValue := InitialInvestment.Mul(entry.WeightPct).Div(hundred).Round(valuationScale)
		multiplier := decimal.NewFromInt(1).Add(decomposed.Total.DivRound(hundred, 8))
		value := initialValue.Mul(multiplier).Round(valuationScale)

		totalValue = totalValue.Add(value)
		holdings = append(holdings, holding{entry: entry, decomposed: decomposed, value: value})
	}

	// Second pass: drifted weights from valuations, contributions and the
	// portfolio aggregate from initial weights.
	instrumentRecords := make([]InstrumentDailyReturn, 0, len(holdings))
	portfolioLocal := decimal.Zero
	portfolioFx := decimal.Zero

	for _, h := range holdings {
		driftedWeight := h.entry.WeightPct
		if totalValue.IsPositive() {
			driftedWeight = h.value.Div(totalValue).Mul(hundred).Round(returnScale)
		}

		contribution := h.decomposed.Total.Mul(h.entry.WeightPct).Div(hundred).Round(returnScale)

		instrumentRecords = append(instrumentRecords, InstrumentDailyReturn{
			PortfolioID:       p.ID,
			SnapshotID:        snapshot.ID,
			InstrumentID:      h.entry.InstrumentID,
			ReturnDate:        targetDate,
			WeightUsed:        driftedWeight,
			ReturnLocal:       h.decomposed.Local,
			ReturnTotal:       h.decomposed.Total,
			FxReturn:          h.decomposed.Fx,
			ContributionTotal: contribution,
			Valuation:         h.value,
		})

		portfolioLocal = portfolioLocal.Add(h.decomposed.Local.Mul(h.entry.WeightPct).Div(hundred).Round(returnScale))
		portfolioFx = portfolioFx.Add(h.decomposed.Fx.Mul(h.entry.WeightPct).Div(hundred).Round(returnScale))
	}

	portfolioRecord := PortfolioDailyReturn{
		PortfolioID: p.ID,
		SnapshotID:  snapshot.ID,
		ReturnDate:  targetDate,
		ReturnTotal: portfolioLocal.Add(portfolioFx),
		ReturnLocal: portfolioLocal,
		ReturnFx:    portfolioFx,
		TotalValue:  totalValue,
	}

	err = database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		if err := s.returns.SavePortfolioReturn(tx, portfolioRecord); err != nil {
			return err
		}
		for _, record := range instrumentRecords {
			if err := s.returns.SaveInstrumentReturn(tx, record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// A concurrent run may have won the unique-constraint race; treat
		// the conflict as a benign skip rather than a failure.
		if isUniqueConstraintError(err) {
			s.log.Info().
				Str("portfolio_id", p.ID.String()).
				Str("target_date", targetDate.Format(dateLayout)).
				Msg("Daily return written by a concurrent run, skipping")
			return false, nil
		}
		return false, err
	}

	s.log.Info().
		Str("portfolio_id", p.ID.String()).
		Str("target_date", targetDate.Format(dateLayout)).
		Str("return_total", portfolioRecord.ReturnTotal.String()).
		Str("return_local", portfolioLocal.String()).
		Str("return_fx", portfolioFx.String()).
		Str("total_value", totalValue.String()).
		Msg("Portfolio daily return stored")

	return true, nil
}

// isUniqueConstraintError matches SQLite primary-key / unique violations
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
