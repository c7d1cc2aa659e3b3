package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ReturnRepository persists portfolio-level and instrument-level daily return
// records. Both record kinds carry unique keys per (owner, date); duplicate
// writes surface as constraint errors, which callers avoid via Exists.
type ReturnRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewReturnRepository creates a new return repository
func NewReturnRepository(db *sql.DB, log zerolog.Logger) *ReturnRepository {
	return &ReturnRepository{
		db:  db,
		log: log.With().Str("repo", "returns").Logger(),
	}
}

// Exists reports whether a portfolio daily return is already stored for the date
func (r *ReturnRepository) Exists(portfolioID uuid.UUID, date time.Time) (bool, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM portfolio_daily_returns
		WHERE portfolio_id = ? AND return_date = ?`,
		portfolioID.String(), date.Format(dateLayout)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check daily return existence: %w", err)
	}

	return count > 0, nil
}

// SavePortfolioReturn inserts one portfolio daily return inside a transaction
func (r *ReturnRepository) SavePortfolioReturn(tx *sql.Tx, record PortfolioDailyReturn) error {
	_, err := tx.Exec(`INSERT INTO portfolio_daily_returns
		(portfolio_id, snapshot_id, return_date, return_total, return_local, return_fx, total_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.PortfolioID.String(), record.SnapshotID.String(), record.ReturnDate.Format(dateLayout),
		record.ReturnTotal.String(), record.ReturnLocal.String(), record.ReturnFx.String(),
		record.TotalValue.String(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert portfolio daily return: %w", err)
	}

	return nil
}

// SaveInstrumentReturn inserts one instrument daily return inside a transaction
func (r *ReturnRepository) SaveInstrumentReturn(tx *sql.Tx, record InstrumentDailyReturn) error {
	_, err := tx.Exec(`INSERT INTO instrument_daily_returns
		(portfolio_id, snapshot_id, instrument_id, return_date, weight_used,
		 return_local, return_total, fx_return, contribution_total, valuation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.PortfolioID.String(), record.SnapshotID.String(), record.InstrumentID.String(),
		record.ReturnDate.Format(dateLayout), record.WeightUsed.String(),
		record.ReturnLocal.String(), record.ReturnTotal.String(), record.FxReturn.String(),
		record.ContributionTotal.String(), record.Valuation.String())
	if err != nil {
		return fmt.Errorf("failed to insert instrument daily return: %w", err)
	}

	return nil
}

// GetPortfolioReturns returns all stored portfolio daily returns, oldest first
func (r *ReturnRepository) GetPortfolioReturns(portfolioID uuid.UUID) ([]PortfolioDailyReturn, error) {
	rows, err := r.db.Query(`SELECT portfolio_id, snapshot_id, return_date,
		return_total, return_local, return_fx, total_value
		FROM portfolio_daily_returns WHERE portfolio_id = ? ORDER BY return_date ASC`,
		portfolioID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio returns: %w", err)
	}
	defer rows.Close()

	var records []PortfolioDailyReturn
	for rows.Next() {
		var rec PortfolioDailyReturn
		var portfolioStr, snapshotStr, dateStr string
		var total, local, fx, value string

		if err := rows.Scan(&portfolioStr, &snapshotStr, &dateStr, &total, &local, &fx, &value); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio return: %w", err)
		}

		if rec.PortfolioID, err = uuid.Parse(portfolioStr); err != nil {
			return nil, fmt.Errorf("invalid portfolio id %q: %w", portfolioStr, err)
		}
		if rec.SnapshotID, err = uuid.Parse(snapshotStr); err != nil {
			return nil, fmt.Errorf("invalid snapshot id %q: %w", snapshotStr, err)
		}
		if rec.ReturnDate, err = time.Parse(dateLayout, dateStr); err != nil {
			return nil, fmt.Errorf("invalid return date %q: %w", dateStr, err)
		}
		if rec.ReturnTotal, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("invalid return_total %q: %w", total, err)
		}
		if rec.ReturnLocal, err = decimal.NewFromString(local); err != nil {
			return nil, fmt.Errorf("invalid return_local %q: %w", local, err)
		}
		if rec.ReturnFx, err = decimal.NewFromString(fx); err != nil {
			return nil, fmt.Errorf("invalid return_fx %q: %w", fx, err)
		}
		if rec.TotalValue, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("invalid total_value %q: %w", value, err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolio returns: %w", err)
	}

	return records, nil
}

// GetInstrumentReturns returns all stored instrument daily returns for a
// portfolio, oldest first.
func (r *ReturnRepository) GetInstrumentReturns(portfolioID uuid.UUID) ([]InstrumentDailyReturn, error) {
	rows, err := r.db.Query(`SELECT portfolio_id, snapshot_id, instrument_id, return_date,
		weight_used, return_local, return_total, fx_return, contribution_total, valuation
		FROM instrument_daily_returns WHERE portfolio_id = ? ORDER BY return_date ASC`,
		portfolioID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query instrument returns: %w", err)
	}
	defer rows.Close()

	var records []InstrumentDailyReturn
	for rows.Next() {
		rec, err := scanInstrumentReturn(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instrument returns: %w", err)
	}

	return records, nil
}

// UpdateDriftedWeight rewrites the drifted-weight fields of one stored
// instrument daily return.
func (r *ReturnRepository) UpdateDriftedWeight(record InstrumentDailyReturn) error {
	result, err := r.db.Exec(`UPDATE instrument_daily_returns
		SET weight_used = ?, valuation = ?, contribution_total = ?
		WHERE portfolio_id = ? AND instrument_id = ? AND return_date = ?`,
		record.WeightUsed.String(), record.Valuation.String(), record.ContributionTotal.String(),
		record.PortfolioID.String(), record.InstrumentID.String(), record.ReturnDate.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("failed to update drifted weight: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		r.log.Warn().
			Str("portfolio_id", record.PortfolioID.String()).
			Str("instrument_id", record.InstrumentID.String()).
			Str("return_date", record.ReturnDate.Format(dateLayout)).
			Msg("Drifted weight update matched no record")
	}

	return nil
}

// UpdateTotalValue rewrites the stored portfolio valuation for one date
func (r *ReturnRepository) UpdateTotalValue(portfolioID uuid.UUID, date time.Time, totalValue decimal.Decimal) error {
	_, err := r.db.Exec(`UPDATE portfolio_daily_returns SET total_value = ?
		WHERE portfolio_id = ? AND return_date = ?`,
		totalValue.String(), portfolioID.String(), date.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("failed to update total value: %w", err)
	}

	return nil
}

func scanInstrumentReturn(rows *sql.Rows) (InstrumentDailyReturn, error) {
	var rec InstrumentDailyReturn
	var portfolioStr, snapshotStr, instrumentStr, dateStr string
	var weight, local, total, fx, contribution, valuation string
	var err error

	if err = rows.Scan(&portfolioStr, &snapshotStr, &instrumentStr, &dateStr,
		&weight, &local, &total, &fx, &contribution, &valuation); err != nil {
		return rec, fmt.Errorf("failed to scan instrument return: %w", err)
	}

	if rec.PortfolioID, err = uuid.Parse(portfolioStr); err != nil {
		return rec, fmt.Errorf("invalid portfolio id %q: %w", portfolioStr, err)
	}
	if rec.SnapshotID, err = uuid.Parse(snapshotStr); err != nil {
		return rec, fmt.Errorf("invalid snapshot id %q: %w", snapshotStr, err)
	}
	if rec.InstrumentID, err = uuid.Parse(instrumentStr); err != nil {
		return rec, fmt.Errorf("invalid instrument id %q: %w", instrumentStr, err)
	}
	if rec.ReturnDate, err = time.Parse(dateLayout, dateStr); err != nil {
		return rec, fmt.Errorf("invalid return date %q: %w", dateStr, err)
	}
	if rec.WeightUsed, err = decimal.NewFromString(weight); err != nil {
		return rec, fmt.Errorf("invalid weight_used %q: %w", weight, err)
	}
	if rec.ReturnLocal, err = decimal.NewFromString(local); err != nil {
		return rec, fmt.Errorf("invalid return_local %q: %w", local, err)
	}
	if rec.ReturnTotal, err = decimal.NewFromString(total); err != nil {
		return rec, fmt.Errorf("invalid return_total %q: %w", total, err)
	}
	if rec.FxReturn, err = decimal.NewFromString(fx); err != nil {
		return rec, fmt.Errorf("invalid fx_return %q: %w", fx, err)
	}
	if rec.ContributionTotal, err = decimal.NewFromString(contribution); err != nil {
		return rec, fmt.Errorf("invalid contribution_total %q: %w", contribution, err)
	}
	if rec.Valuation, err = decimal.NewFromString(valuation); err != nil {
		return rec, fmt.Errorf("invalid valuation %q: %w", valuation, err)
	}

	return rec, nil
}
