// quantcore is the batch core for daily portfolio return decomposition and
// weekly cross-sectional risk scoring.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/porcana/quantcore/internal/config"
	"github.com/porcana/quantcore/internal/database"
	"github.com/porcana/quantcore/internal/modules/market"
	"github.com/porcana/quantcore/internal/modules/portfolio"
	"github.com/porcana/quantcore/internal/modules/risk"
	"github.com/porcana/quantcore/internal/scheduler"
	"github.com/porcana/quantcore/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("timezone", cfg.Timezone).
		Msg("Starting quantcore")

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("Invalid market timezone")
	}

	// Market data (prices, rates, risk history) is append-mostly time series;
	// portfolio data sees in-place updates.
	marketDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "market.db"),
		Profile: database.ProfileHistory,
		Name:    "market",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open market database")
	}
	defer marketDB.Close()

	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	for _, db := range []*database.DB{marketDB, portfolioDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Migration failed")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.HealthCheck(ctx); err != nil {
			cancel()
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Health check failed")
		}
		cancel()
	}

	// Repositories
	instruments := market.NewInstrumentRepository(marketDB.Conn(), log)
	prices := market.NewPriceRepository(marketDB.Conn(), log)
	rates := market.NewRateRepository(marketDB.Conn(), log)
	riskHistory := risk.NewHistoryRepository(marketDB.Conn())

	portfolios := portfolio.NewPortfolioRepository(portfolioDB.Conn(), log)
	snapshots := portfolio.NewSnapshotRepository(portfolioDB.Conn(), log)
	returns := portfolio.NewReturnRepository(portfolioDB.Conn(), log)

	// Services and jobs
	decomposer := portfolio.NewDecomposer(prices, rates, log)
	performance := portfolio.NewPerformanceService(portfolioDB, portfolios, snapshots, returns, instruments, decomposer, log)
	performanceJob := portfolio.NewDailyPerformanceJob(performance, location, log)

	calculator := risk.NewCalculator(log)
	riskJob := risk.NewWeeklyRiskJob(instruments, prices, calculator, risk.NewScorer(), riskHistory, location, log)

	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.PerformanceSchedule, performanceJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register performance job")
	}
	if err := sched.AddJob(cfg.RiskSchedule, riskJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register risk job")
	}

	if cfg.RunJobsOnStart {
		for _, job := range []scheduler.Job{performanceJob, riskJob} {
			if err := sched.RunNow(job); err != nil {
				log.Error().Err(err).Str("job", job.Name()).Msg("Startup run failed")
			}
		}
	}

	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	sched.Stop()

	for _, db := range []*database.DB{marketDB, portfolioDB} {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
		}
	}

	log.Info().Msg("Shutdown complete")
}
