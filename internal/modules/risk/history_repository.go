package risk

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HistoryRepository persists weekly risk results to the market database
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new risk history repository
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Exists reports whether a record already exists for the instrument and week
func (r *HistoryRepository) Exists(instrumentID uuid.UUID, week string) (bool, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM risk_history
		WHERE instrument_id = ? AND week = ?
	`, instrumentID.String(), week).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check risk history: %w", err)
	}
	return count > 0, nil
}

// Insert writes one weekly risk record. A concurrent insert for the same
// instrument and week is benign: the unique constraint violation is swallowed
// and the existing record wins.
func (r *HistoryRepository) Insert(record HistoryRecord) error {
	_, err := r.db.Exec(`
		INSERT INTO risk_history (
			instrument_id, week, risk_level, risk_score,
			volatility, max_drawdown, worst_day_return, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.InstrumentID.String(),
		record.Week,
		record.RiskLevel,
		record.RiskScore.String(),
		record.Volatility.String(),
		record.MaxDrawdown.String(),
		record.WorstDayReturn.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil
		}
		return fmt.Errorf("failed to insert risk history: %w", err)
	}
	return nil
}

// GetByWeek returns all records of one ISO week, ordered by instrument id
func (r *HistoryRepository) GetByWeek(week string) ([]HistoryRecord, error) {
	rows, err := r.db.Query(`
		SELECT instrument_id, week, risk_level, risk_score,
		       volatility, max_drawdown, worst_day_return
		FROM risk_history
		WHERE week = ?
		ORDER BY instrument_id
	`, week)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk history: %w", err)
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		var record HistoryRecord
		var id, score, vol, mdd, worst string
		if err := rows.Scan(&id, &record.Week, &record.RiskLevel, &score, &vol, &mdd, &worst); err != nil {
			return nil, fmt.Errorf("failed to scan risk history: %w", err)
		}
		record.InstrumentID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid instrument id in risk history: %w", err)
		}
		if record.RiskScore, err = decimal.NewFromString(score); err != nil {
			return nil, fmt.Errorf("invalid risk score: %w", err)
		}
		if record.Volatility, err = decimal.NewFromString(vol); err != nil {
			return nil, fmt.Errorf("invalid volatility: %w", err)
		}
		if record.MaxDrawdown, err = decimal.NewFromString(mdd); err != nil {
			return nil, fmt.Errorf("invalid max drawdown: %w", err)
		}
		if record.WorstDayReturn, err = decimal.NewFromString(worst); err != nil {
			return nil, fmt.Errorf("invalid worst day return: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
