package portfolio

import (
	"time"

	"github.com/rs/zerolog"
)

// DailyPerformanceJob runs the daily return computation for all active
// portfolios. The target date is always the prior calendar day in the market
// timezone: end-of-day data for "today" is not assumed ready.
type DailyPerformanceJob struct {
	service  *PerformanceService
	location *time.Location
	now      func() time.Time
	log      zerolog.Logger
}

// NewDailyPerformanceJob creates a new daily performance job
func NewDailyPerformanceJob(service *PerformanceService, location *time.Location, log zerolog.Logger) *DailyPerformanceJob {
	return &DailyPerformanceJob{
		service:  service,
		location: location,
		now:      time.Now,
		log:      log.With().Str("job", "portfolio_performance").Logger(),
	}
}

// Run executes the daily performance computation
func (j *DailyPerformanceJob) Run() error {
	targetDate := j.TargetDate()

	j.log.Info().
		Str("target_date", targetDate.Format(dateLayout)).
		Msg("Starting daily performance job")

	stats, err := j.service.ComputeDaily(targetDate)
	if err != nil {
		return err
	}

	j.log.Info().
		Int("processed", stats.Processed).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("Daily performance job completed")

	return nil
}

// TargetDate returns the prior day in the market timezone, truncated to date
func (j *DailyPerformanceJob) TargetDate() time.Time {
	now := j.now().In(j.location)
	y, m, d := now.AddDate(0, 0, -1).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Name returns the job name for scheduler
func (j *DailyPerformanceJob) Name() string {
	return "portfolio_performance"
}
