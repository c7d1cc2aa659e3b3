package portfolio

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTargetDate_PriorDayInMarketTimezone(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	job := NewDailyPerformanceJob(nil, seoul, zerolog.Nop())

	// 02:00 UTC is 11:00 in Seoul: prior Seoul day is the 14th
	job.now = func() time.Time { return time.Date(2026, 1, 15, 2, 0, 0, 0, time.UTC) }
	assert.Equal(t, date(2026, 1, 14), job.TargetDate())

	// 16:00 UTC on the 14th is already the 15th in Seoul
	job.now = func() time.Time { return time.Date(2026, 1, 14, 16, 0, 0, 0, time.UTC) }
	assert.Equal(t, date(2026, 1, 14), job.TargetDate())

	// Month boundary
	job.now = func() time.Time { return time.Date(2026, 2, 1, 2, 0, 0, 0, time.UTC) }
	assert.Equal(t, date(2026, 1, 31), job.TargetDate())
}
