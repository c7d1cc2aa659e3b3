package portfolio

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WeightRebuildJob recomputes the drifted-weight fields of stored instrument
// daily returns from snapshot initial weights and stored total returns.
//
// Records written before valuation-based weights existed carry the snapshot's
// initial weight in weight_used; this maintenance pass rebuilds valuation,
// drifted weight, and contribution for every stored date, and reconciles the
// portfolio record's total value. Updates go through the record's
// WithDriftedWeight mutator.
type WeightRebuildJob struct {
	portfolios *PortfolioRepository
	snapshots  *SnapshotRepository
	returns    *ReturnRepository
	log        zerolog.Logger
}

// NewWeightRebuildJob creates a new weight rebuild job
func NewWeightRebuildJob(
	portfolios *PortfolioRepository,
	snapshots *SnapshotRepository,
	returns *ReturnRepository,
	log zerolog.Logger,
) *WeightRebuildJob {
	return &WeightRebuildJob{
		portfolios: portfolios,
		snapshots:  snapshots,
		returns:    returns,
		log:        log.With().Str("job", "weight_rebuild").Logger(),
	}
}

// Run rebuilds drifted weights for every portfolio, one portfolio at a time.
// A failure in one portfolio is logged and does not stop the others.
func (j *WeightRebuildJob) Run() error {
	portfolios, err := j.portfolios.GetAll()
	if err != nil {
		return fmt.Errorf("failed to load portfolios: %w", err)
	}

	j.log.Info().Int("portfolios", len(portfolios)).Msg("Starting weight rebuild")

	totalRebuilt := 0
	failed := 0

	for _, p := range portfolios {
		rebuilt, err := j.rebuildPortfolio(p.ID)
		if err != nil {
			failed++
			j.log.Error().
				Err(err).
				Str("portfolio_id", p.ID.String()).
				Msg("Failed to rebuild portfolio weights")
			continue
		}
		totalRebuilt += rebuilt
	}

	j.log.Info().
		Int("records_rebuilt", totalRebuilt).
		Int("portfolios_failed", failed).
		Msg("Weight rebuild completed")

	if failed > 0 {
		return fmt.Errorf("weight rebuild completed with %d failed portfolios", failed)
	}

	return nil
}

// Name returns the job name for scheduler
func (j *WeightRebuildJob) Name() string {
	return "weight_rebuild"
}

// rebuildPortfolio rebuilds all stored dates of one portfolio
func (j *WeightRebuildJob) rebuildPortfolio(portfolioID uuid.UUID) (int, error) {
	records, err := j.returns.GetInstrumentReturns(portfolioID)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	byDate := make(map[time.Time][]InstrumentDailyReturn)
	for _, record := range records {
		byDate[record.ReturnDate] = append(byDate[record.ReturnDate], record)
	}

	// Initial weights per snapshot, fetched once per snapshot id
	weightsBySnapshot := make(map[uuid.UUID]map[uuid.UUID]decimal.Decimal)

	rebuilt := 0
	for returnDate, dateRecords := range byDate {
		snapshotID := dateRecords[0].SnapshotID
		weights, ok := weightsBySnapshot[snapshotID]
		if !ok {
			weights, err = j.snapshots.EntriesBySnapshot(snapshotID)
			if err != nil {
				return rebuilt, err
			}
			weightsBySnapshot[snapshotID] = weights
		}

		if err := j.rebuildDate(portfolioID, returnDate, dateRecords, weights); err != nil {
			return rebuilt, fmt.Errorf("rebuild failed for %s: %w", returnDate.Format(dateLayout), err)
		}
		rebuilt += len(dateRecords)
	}

	return rebuilt, nil
}

// rebuildDate recomputes valuation-based fields for all records of one date
func (j *WeightRebuildJob) rebuildDate(
	portfolioID uuid.UUID,
	returnDate time.Time,
	records []InstrumentDailyReturn,
	initialWeights map[uuid.UUID]decimal.Decimal,
) error {
	// First pass: re-derive each position's valuation from the stored total
	// return and the snapshot's initial weight.
	values := make([]decimal.Decimal, len(records))
	totalValue := decimal.Zero

	for i, record := range records {
		weight, ok := initialWeights[record.InstrumentID]
		if !ok {
			return fmt.Errorf("instrument %s missing from snapshot %s", record.InstrumentID, record.SnapshotID)
		}

		initialValue := InitialInvestment.Mul(weight).Div(hundred).Round(valuationScale)
		multiplier := decimal.NewFromInt(1).Add(record.ReturnTotal.DivRound(hundred, 8))
		value := initialValue.Mul(multiplier).Round(valuationScale)

		values[i] = value
		totalValue = totalValue.Add(value)
	}

	// Second pass: drifted weight and contribution, then persist
	for i, record := range records {
		weight := initialWeights[record.InstrumentID]

		driftedWeight := weight
		if totalValue.IsPositive() {
			driftedWeight = values[i].Div(totalValue).Mul(hundred).Round(returnScale)
		}

		contribution := record.ReturnTotal.Mul(weight).Div(hundred).Round(returnScale)

		updated := record.WithDriftedWeight(driftedWeight, values[i], contribution)
		if err := j.returns.UpdateDriftedWeight(updated); err != nil {
			return err
		}
	}

	return j.returns.UpdateTotalValue(portfolioID, returnDate, totalValue)
}
