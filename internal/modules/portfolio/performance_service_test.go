package portfolio

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porcana/quantcore/internal/modules/market"
	testdb "github.com/porcana/quantcore/internal/testing"
)

type perfFixture struct {
	instruments *market.InstrumentRepository
	prices      *market.PriceRepository
	rates       *market.RateRepository
	portfolios  *PortfolioRepository
	snapshots   *SnapshotRepository
	returns     *ReturnRepository
	service     *PerformanceService
}

func newPerfFixture(t *testing.T) *perfFixture {
	t.Helper()

	marketDB, marketCleanup := testdb.NewTestDB(t, "market")
	t.Cleanup(marketCleanup)
	portfolioDB, portfolioCleanup := testdb.NewTestDB(t, "portfolio")
	t.Cleanup(portfolioCleanup)

	log := zerolog.Nop()

	f := &perfFixture{
		instruments: market.NewInstrumentRepository(marketDB.Conn(), log),
		prices:      market.NewPriceRepository(marketDB.Conn(), log),
		rates:       market.NewRateRepository(marketDB.Conn(), log),
		portfolios:  NewPortfolioRepository(portfolioDB.Conn(), log),
		snapshots:   NewSnapshotRepository(portfolioDB.Conn(), log),
		returns:     NewReturnRepository(portfolioDB.Conn(), log),
	}

	decomposer := NewDecomposer(f.prices, f.rates, log)
	f.service = NewPerformanceService(portfolioDB, f.portfolios, f.snapshots, f.returns, f.instruments, decomposer, log)

	return f
}

func (f *perfFixture) addInstrument(t *testing.T, symbol, currency string, prices map[time.Time]string) uuid.UUID {
	t.Helper()

	instrument := market.Instrument{ID: uuid.New(), Symbol: symbol, Market: "KR", Currency: currency, Active: true}
	require.NoError(t, f.instruments.Insert(instrument))

	for d, p := range prices {
		require.NoError(t, f.prices.Insert(market.PricePoint{
			InstrumentID: instrument.ID,
			Date:         d,
			Price:        decimal.RequireFromString(p),
		}))
	}

	return instrument.ID
}

func TestComputePortfolio_TwoDomesticHoldings(t *testing.T) {
	f := newPerfFixture(t)

	startDate := date(2026, 1, 14)
	targetDate := date(2026, 1, 15)

	// 60% up 20%, 40% down 10%
	a := f.addInstrument(t, "ALPHA", "KRW", map[time.Time]string{startDate: "1000", targetDate: "1200"})
	b := f.addInstrument(t, "BETA", "KRW", map[time.Time]string{startDate: "1000", targetDate: "900"})

	p := Portfolio{ID: uuid.New(), Name: "Growth 60/40", Status: StatusActive, StartedAt: date(2026, 1, 1)}
	require.NoError(t, f.portfolios.Insert(p))

	_, err := f.snapshots.Replace(p.ID, startDate, []SnapshotEntry{
		{InstrumentID: a, WeightPct: decimal.RequireFromString("60")},
		{InstrumentID: b, WeightPct: decimal.RequireFromString("40")},
	}, "")
	require.NoError(t, err)

	processed, err := f.service.ComputePortfolio(p, targetDate)
	require.NoError(t, err)
	assert.True(t, processed)

	records, err := f.returns.GetPortfolioReturns(p.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.True(t, record.ReturnTotal.Equal(decimal.RequireFromString("8")), "total = %s", record.ReturnTotal)
	assert.True(t, record.ReturnLocal.Equal(decimal.RequireFromString("8")), "local = %s", record.ReturnLocal)
	assert.True(t, record.ReturnFx.IsZero(), "fx = %s", record.ReturnFx)
	assert.True(t, record.TotalValue.Equal(decimal.RequireFromString("10800000")), "total value = %s", record.TotalValue)

	instrumentRecords, err := f.returns.GetInstrumentReturns(p.ID)
	require.NoError(t, err)
	require.Len(t, instrumentRecords, 2)

	byInstrument := make(map[uuid.UUID]InstrumentDailyReturn)
	for _, r := range instrumentRecords {
		byInstrument[r.InstrumentID] = r
	}

	winner := byInstrument[a]
	assert.Equal(t, "66.666667", winner.WeightUsed.String())
	assert.True(t, winner.Valuation.Equal(decimal.RequireFromString("7200000")), "valuation = %s", winner.Valuation)
	assert.True(t, winner.ContributionTotal.Equal(decimal.RequireFromString("12")), "contribution = %s", winner.ContributionTotal)

	loser := byInstrument[b]
	assert.Equal(t, "33.333333", loser.WeightUsed.String())
	assert.True(t, loser.Valuation.Equal(decimal.RequireFromString("3600000")), "valuation = %s", loser.Valuation)
	assert.True(t, loser.ContributionTotal.Equal(decimal.RequireFromString("-4")), "contribution = %s", loser.ContributionTotal)

	// Contributions reconcile with the portfolio aggregate; drifted weights
	// cover the whole portfolio.
	contributions := winner.ContributionTotal.Add(loser.ContributionTotal)
	assert.True(t, contributions.Equal(record.ReturnTotal), "contributions = %s", contributions)

	weightSum := winner.WeightUsed.Add(loser.WeightUsed)
	assert.True(t, weightSum.Equal(decimal.RequireFromString("100")), "weight sum = %s", weightSum)
}

func TestComputePortfolio_ForeignHoldingCarriesFxComponent(t *testing.T) {
	f := newPerfFixture(t)

	startDate := date(2026, 1, 14)
	targetDate := date(2026, 1, 15)

	id := f.addInstrument(t, "AAPL", "USD", map[time.Time]string{startDate: "50", targetDate: "55"})
	require.NoError(t, f.rates.Insert(market.RatePoint{CurrencyCode: "USD", Date: startDate, BaseRate: decimal.RequireFromString("1200")}))
	require.NoError(t, f.rates.Insert(market.RatePoint{CurrencyCode: "USD", Date: targetDate, BaseRate: decimal.RequireFromString("1260")}))

	p := Portfolio{ID: uuid.New(), Name: "US Single", Status: StatusActive, StartedAt: date(2026, 1, 1)}
	require.NoError(t, f.portfolios.Insert(p))

	_, err := f.snapshots.Replace(p.ID, startDate, []SnapshotEntry{
		{InstrumentID: id, WeightPct: decimal.RequireFromString("100")},
	}, "")
	require.NoError(t, err)

	processed, err := f.service.ComputePortfolio(p, targetDate)
	require.NoError(t, err)
	assert.True(t, processed)

	records, err := f.returns.GetPortfolioReturns(p.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.True(t, records[0].ReturnLocal.Equal(decimal.RequireFromString("10")), "local = %s", records[0].ReturnLocal)
	assert.True(t, records[0].ReturnFx.Equal(decimal.RequireFromString("5")), "fx = %s", records[0].ReturnFx)
	assert.True(t, records[0].ReturnTotal.Equal(decimal.RequireFromString("15")), "total = %s", records[0].ReturnTotal)
}

func TestComputePortfolio_SecondRunIsNoOp(t *testing.T) {
	f := newPerfFixture(t)

	startDate := date(2026, 1, 14)
	targetDate := date(2026, 1, 15)

	id := f.addInstrument(t, "ALPHA", "KRW", map[time.Time]string{startDate: "1000", targetDate: "1100"})

	p := Portfolio{ID: uuid.New(), Name: "Mono", Status: StatusActive, StartedAt: date(2026, 1, 1)}
	require.NoError(t, f.portfolios.Insert(p))
	_, err := f.snapshots.Replace(p.ID, startDate, []SnapshotEntry{
		{InstrumentID: id, WeightPct: decimal.RequireFromString("100")},
	}, "")
	require.NoError(t, err)

	processed, err := f.service.ComputePortfolio(p, targetDate)
	require.NoError(t, err)
	assert.True(t, processed)

	processed, err = f.service.ComputePortfolio(p, targetDate)
	require.NoError(t, err)
	assert.False(t, processed, "existing record must short-circuit the run")

	records, err := f.returns.GetPortfolioReturns(p.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestComputePortfolio_SkipsDatesBeforeActivation(t *testing.T) {
	f := newPerfFixture(t)

	p := Portfolio{ID: uuid.New(), Name: "Future", Status: StatusActive, StartedAt: date(2026, 2, 1)}
	require.NoError(t, f.portfolios.Insert(p))

	processed, err := f.service.ComputePortfolio(p, date(2026, 1, 15))
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestComputePortfolio_AllOrNothingOnMissingData(t *testing.T) {
	f := newPerfFixture(t)

	startDate := date(2026, 1, 14)
	targetDate := date(2026, 1, 15)

	healthy := f.addInstrument(t, "ALPHA", "KRW", map[time.Time]string{startDate: "1000", targetDate: "1100"})
	// No price anywhere near the target date
	broken := f.addInstrument(t, "BETA", "KRW", map[time.Time]string{startDate: "500"})

	p := Portfolio{ID: uuid.New(), Name: "Partial", Status: StatusActive, StartedAt: date(2026, 1, 1)}
	require.NoError(t, f.portfolios.Insert(p))
	_, err := f.snapshots.Replace(p.ID, startDate, []SnapshotEntry{
		{InstrumentID: healthy, WeightPct: decimal.RequireFromString("50")},
		{InstrumentID: broken, WeightPct: decimal.RequireFromString("50")},
	}, "")
	require.NoError(t, err)

	_, err = f.service.ComputePortfolio(p, targetDate)
	require.Error(t, err)

	// Nothing was written, not even for the healthy holding
	records, err := f.returns.GetPortfolioReturns(p.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	instrumentRecords, err := f.returns.GetInstrumentReturns(p.ID)
	require.NoError(t, err)
	assert.Empty(t, instrumentRecords)
}

func TestComputeDaily_IsolatesPortfolioFailures(t *testing.T) {
	f := newPerfFixture(t)

	startDate := date(2026, 1, 14)
	targetDate := date(2026, 1, 15)

	id := f.addInstrument(t, "ALPHA", "KRW", map[time.Time]string{startDate: "1000", targetDate: "1100"})

	healthy := Portfolio{ID: uuid.New(), Name: "Healthy", Status: StatusActive, StartedAt: date(2026, 1, 1)}
	require.NoError(t, f.portfolios.Insert(healthy))
	_, err := f.snapshots.Replace(healthy.ID, startDate, []SnapshotEntry{
		{InstrumentID: id, WeightPct: decimal.RequireFromString("100")},
	}, "")
	require.NoError(t, err)

	// Active portfolio without any snapshot: fails, must not poison the batch
	orphan := Portfolio{ID: uuid.New(), Name: "Orphan", Status: StatusActive, StartedAt: date(2026, 1, 1)}
	require.NoError(t, f.portfolios.Insert(orphan))

	// Deleted portfolio is not part of the run at all
	deleted := Portfolio{ID: uuid.New(), Name: "Gone", Status: StatusDeleted, StartedAt: date(2026, 1, 1)}
	require.NoError(t, f.portfolios.Insert(deleted))

	stats, err := f.service.ComputeDaily(targetDate)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Skipped)
}
