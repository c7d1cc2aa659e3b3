package market

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// InstrumentRepository handles instrument database operations
type InstrumentRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewInstrumentRepository creates a new instrument repository
func NewInstrumentRepository(db *sql.DB, log zerolog.Logger) *InstrumentRepository {
	return &InstrumentRepository{
		db:  db,
		log: log.With().Str("repo", "instrument").Logger(),
	}
}

// Insert stores a new instrument
func (r *InstrumentRepository) Insert(instrument Instrument) error {
	active := 0
	if instrument.Active {
		active = 1
	}

	_, err := r.db.Exec(`INSERT INTO instruments (id, symbol, name, market, currency, active, current_risk_level, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		instrument.ID.String(), instrument.Symbol, instrument.Name, instrument.Market,
		instrument.Currency, active, instrument.CurrentRiskLevel,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert instrument %s: %w", instrument.Symbol, err)
	}

	return nil
}

// GetAllActive returns all active instruments
func (r *InstrumentRepository) GetAllActive() ([]Instrument, error) {
	rows, err := r.db.Query(`SELECT id, symbol, name, market, currency, active, current_risk_level
		FROM instruments WHERE active = 1 ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active instruments: %w", err)
	}
	defer rows.Close()

	var instruments []Instrument
	for rows.Next() {
		instrument, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, instrument)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instruments: %w", err)
	}

	return instruments, nil
}

// GetByIDs returns instruments keyed by ID. IDs with no matching row are
// simply absent from the result; the caller decides whether that is fatal.
func (r *InstrumentRepository) GetByIDs(ids []uuid.UUID) (map[uuid.UUID]Instrument, error) {
	result := make(map[uuid.UUID]Instrument, len(ids))

	for _, id := range ids {
		row := r.db.QueryRow(`SELECT id, symbol, name, market, currency, active, current_risk_level
			FROM instruments WHERE id = ?`, id.String())

		instrument, err := scanInstrument(row)
		if err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, fmt.Errorf("failed to scan instrument %s: %w", id, err)
		}
		result[instrument.ID] = instrument
	}

	return result, nil
}

// UpdateRiskLevel overwrites the cached current risk level for an instrument
func (r *InstrumentRepository) UpdateRiskLevel(id uuid.UUID, level int) error {
	result, err := r.db.Exec(`UPDATE instruments SET current_risk_level = ?, updated_at = ? WHERE id = ?`,
		level, time.Now().UTC().Format(time.RFC3339), id.String())
	if err != nil {
		return fmt.Errorf("failed to update risk level for %s: %w", id, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		r.log.Warn().Str("instrument_id", id.String()).Msg("Risk level update matched no instrument")
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInstrument(row rowScanner) (Instrument, error) {
	var instrument Instrument
	var idStr string
	var name sql.NullString
	var active int
	var riskLevel sql.NullInt64

	if err := row.Scan(&idStr, &instrument.Symbol, &name, &instrument.Market,
		&instrument.Currency, &active, &riskLevel); err != nil {
		return Instrument{}, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return Instrument{}, fmt.Errorf("invalid instrument id %q: %w", idStr, err)
	}

	instrument.ID = id
	instrument.Name = name.String
	instrument.Active = active == 1
	if riskLevel.Valid {
		level := int(riskLevel.Int64)
		instrument.CurrentRiskLevel = &level
	}

	return instrument, nil
}
