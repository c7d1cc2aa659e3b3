package risk

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/porcana/quantcore/internal/modules/market"
)

// WeeklyRiskJob recomputes risk levels for the active instrument universe.
//
// The run is two-phase by necessity: raw metrics are collected for every
// qualifying instrument first, then the whole population is scored at once,
// since percentile ranks are relative to the full cross-section. Instruments
// with insufficient history are skipped and do not enter the population.
type WeeklyRiskJob struct {
	instruments *market.InstrumentRepository
	prices      *market.PriceRepository
	calculator  *Calculator
	scorer      *Scorer
	history     *HistoryRepository
	location    *time.Location
	now         func() time.Time
	log         zerolog.Logger
}

// NewWeeklyRiskJob creates a new weekly risk scoring job
func NewWeeklyRiskJob(
	instruments *market.InstrumentRepository,
	prices *market.PriceRepository,
	calculator *Calculator,
	scorer *Scorer,
	history *HistoryRepository,
	location *time.Location,
	log zerolog.Logger,
) *WeeklyRiskJob {
	return &WeeklyRiskJob{
		instruments: instruments,
		prices:      prices,
		calculator:  calculator,
		scorer:      scorer,
		history:     history,
		location:    location,
		now:         time.Now,
		log:         log.With().Str("job", "weekly_risk").Logger(),
	}
}

// Run executes the weekly risk computation for all active instruments.
// The week key follows the market timezone: an early-Monday run there is
// still Sunday in UTC, and must not land in the previous ISO week.
func (j *WeeklyRiskJob) Run() error {
	week := isoWeek(j.now().In(j.location))

	instruments, err := j.instruments.GetAllActive()
	if err != nil {
		return fmt.Errorf("failed to load instruments: %w", err)
	}

	j.log.Info().
		Str("week", week).
		Int("instruments", len(instruments)).
		Msg("Starting weekly risk job")

	// Phase one: raw metrics for every instrument with enough history.
	// A bad instrument is logged and left out of the population; it never
	// aborts the run.
	population := make([]RawMetrics, 0, len(instruments))
	skipped := 0
	failed := 0

	for _, instrument := range instruments {
		prices, err := j.prices.History(instrument.ID)
		if err != nil {
			failed++
			j.log.Error().Err(err).Str("symbol", instrument.Symbol).Msg("Failed to load price history")
			continue
		}

		metrics, err := j.calculator.Calculate(prices)
		if err != nil {
			if errors.Is(err, ErrInsufficientHistory) {
				skipped++
				j.log.Debug().
					Str("symbol", instrument.Symbol).
					Int("observations", len(prices)).
					Msg("Skipping instrument with insufficient history")
			} else {
				failed++
				j.log.Error().Err(err).Str("symbol", instrument.Symbol).Msg("Failed to compute risk metrics")
			}
			continue
		}

		population = append(population, RawMetrics{
			InstrumentID:   instrument.ID,
			Volatility:     metrics.Volatility,
			MaxDrawdown:    metrics.MaxDrawdown,
			WorstDayReturn: metrics.WorstDayReturn,
		})
	}

	// Phase two: score the full cross-section and persist
	scored := j.scorer.Score(population)

	updated := 0
	for _, s := range scored {
		if err := j.persist(s, week); err != nil {
			failed++
			j.log.Error().Err(err).Str("instrument_id", s.InstrumentID.String()).Msg("Failed to persist risk result")
			continue
		}
		updated++
	}

	j.log.Info().
		Str("week", week).
		Int("scored", len(scored)).
		Int("skipped", skipped).
		Int("failed", failed).
		Int("history_written", updated).
		Msg("Weekly risk job completed")

	if failed > 0 {
		return fmt.Errorf("weekly risk run completed with %d failed instruments", failed)
	}

	return nil
}

// persist updates the instrument's cached level and appends a history record
// unless one already exists for the week.
func (j *WeeklyRiskJob) persist(s ScoredMetrics, week string) error {
	if err := j.instruments.UpdateRiskLevel(s.InstrumentID, s.RiskLevel); err != nil {
		return err
	}

	exists, err := j.history.Exists(s.InstrumentID, week)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return j.history.Insert(HistoryRecord{
		InstrumentID:   s.InstrumentID,
		Week:           week,
		RiskLevel:      s.RiskLevel,
		RiskScore:      s.RiskScore,
		Volatility:     s.Volatility,
		MaxDrawdown:    s.MaxDrawdown,
		WorstDayReturn: s.WorstDayReturn,
	})
}

// Name returns the job name for scheduler
func (j *WeeklyRiskJob) Name() string {
	return "weekly_risk"
}

// isoWeek formats a time as an ISO-8601 year-week key, e.g. "2026-W35"
func isoWeek(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
