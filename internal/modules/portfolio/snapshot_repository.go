package portfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/porcana/quantcore/internal/database"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrNoSnapshot indicates no composition snapshot exists on or before the
// requested date.
var ErrNoSnapshot = errors.New("no snapshot effective on or before date")

var weightSumTarget = decimal.NewFromInt(100)

// SnapshotRepository stores composition snapshots and resolves the snapshot
// effective on a given date.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "snapshot").Logger(),
	}
}

// Effective returns the snapshot with the latest effective date not after the
// given date, entries included. Returns ErrNoSnapshot when the date precedes
// the portfolio's first snapshot.
func (r *SnapshotRepository) Effective(portfolioID uuid.UUID, date time.Time) (*Snapshot, error) {
	row := r.db.QueryRow(`SELECT id, portfolio_id, effective_date, note FROM snapshots
		WHERE portfolio_id = ? AND effective_date <= ?
		ORDER BY effective_date DESC LIMIT 1`,
		portfolioID.String(), date.Format(dateLayout))

	snapshot, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("portfolio %s on %s: %w", portfolioID, date.Format(dateLayout), ErrNoSnapshot)
		}
		return nil, fmt.Errorf("failed to query effective snapshot: %w", err)
	}

	entries, err := r.entries(snapshot.ID)
	if err != nil {
		return nil, err
	}
	snapshot.Entries = entries

	return snapshot, nil
}

// Replace creates a snapshot for the portfolio at the given effective date.
// If a snapshot already exists for that exact date its entries are deleted
// wholesale and replaced by the new set; entries are never merged.
// A weight sum other than 100 is logged and accepted as-is.
func (r *SnapshotRepository) Replace(portfolioID uuid.UUID, effectiveDate time.Time, entries []SnapshotEntry, note string) (*Snapshot, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("cannot create snapshot for portfolio %s: no entries", portfolioID)
	}

	totalWeight := decimal.Zero
	for _, entry := range entries {
		totalWeight = totalWeight.Add(entry.WeightPct)
	}
	if !totalWeight.Equal(weightSumTarget) {
		r.log.Warn().
			Str("portfolio_id", portfolioID.String()).
			Str("total_weight", totalWeight.String()).
			Msg("Snapshot weights do not sum to 100, proceeding as given")
	}

	var snapshot *Snapshot

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		row := tx.QueryRow(`SELECT id, portfolio_id, effective_date, note FROM snapshots
			WHERE portfolio_id = ? AND effective_date = ?`,
			portfolioID.String(), effectiveDate.Format(dateLayout))

		existing, err := scanSnapshot(row)
		switch {
		case err == nil:
			// Same effective date: wipe the old composition and note
			if _, err := tx.Exec(`DELETE FROM snapshot_entries WHERE snapshot_id = ?`, existing.ID.String()); err != nil {
				return fmt.Errorf("failed to delete existing snapshot entries: %w", err)
			}
			if _, err := tx.Exec(`UPDATE snapshots SET note = ? WHERE id = ?`, note, existing.ID.String()); err != nil {
				return fmt.Errorf("failed to update snapshot note: %w", err)
			}
			existing.Note = note
			snapshot = existing

		case errors.Is(err, sql.ErrNoRows):
			snapshot = &Snapshot{
				ID:            uuid.New(),
				PortfolioID:   portfolioID,
				EffectiveDate: effectiveDate,
				Note:          note,
			}
			if _, err := tx.Exec(`INSERT INTO snapshots (id, portfolio_id, effective_date, note, created_at)
				VALUES (?, ?, ?, ?, ?)`,
				snapshot.ID.String(), portfolioID.String(), effectiveDate.Format(dateLayout),
				note, time.Now().UTC().Format(time.RFC3339)); err != nil {
				return fmt.Errorf("failed to insert snapshot: %w", err)
			}

		default:
			return fmt.Errorf("failed to query snapshot: %w", err)
		}

		for _, entry := range entries {
			if _, err := tx.Exec(`INSERT INTO snapshot_entries (snapshot_id, instrument_id, weight_pct)
				VALUES (?, ?, ?)`,
				snapshot.ID.String(), entry.InstrumentID.String(), entry.WeightPct.String()); err != nil {
				return fmt.Errorf("failed to insert snapshot entry: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	snapshot.Entries = entries

	r.log.Info().
		Str("snapshot_id", snapshot.ID.String()).
		Str("portfolio_id", portfolioID.String()).
		Str("effective_date", effectiveDate.Format(dateLayout)).
		Int("entries", len(entries)).
		Msg("Snapshot stored")

	return snapshot, nil
}

// entries loads the composition of one snapshot
func (r *SnapshotRepository) entries(snapshotID uuid.UUID) ([]SnapshotEntry, error) {
	rows, err := r.db.Query(`SELECT instrument_id, weight_pct FROM snapshot_entries
		WHERE snapshot_id = ? ORDER BY instrument_id`, snapshotID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot entries: %w", err)
	}
	defer rows.Close()

	var entries []SnapshotEntry
	for rows.Next() {
		var idStr, weightStr string
		if err := rows.Scan(&idStr, &weightStr); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot entry: %w", err)
		}

		instrumentID, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid instrument id %q: %w", idStr, err)
		}
		weight, err := decimal.NewFromString(weightStr)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: %w", weightStr, err)
		}

		entries = append(entries, SnapshotEntry{InstrumentID: instrumentID, WeightPct: weight})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot entries: %w", err)
	}

	return entries, nil
}

// EntriesBySnapshot returns the initial weights of a snapshot keyed by instrument
func (r *SnapshotRepository) EntriesBySnapshot(snapshotID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	entries, err := r.entries(snapshotID)
	if err != nil {
		return nil, err
	}

	weights := make(map[uuid.UUID]decimal.Decimal, len(entries))
	for _, entry := range entries {
		weights[entry.InstrumentID] = entry.WeightPct
	}
	return weights, nil
}

type snapshotScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row snapshotScanner) (*Snapshot, error) {
	var idStr, portfolioStr, dateStr string
	var note sql.NullString

	if err := row.Scan(&idStr, &portfolioStr, &dateStr, &note); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot id %q: %w", idStr, err)
	}
	portfolioID, err := uuid.Parse(portfolioStr)
	if err != nil {
		return nil, fmt.Errorf("invalid portfolio id %q: %w", portfolioStr, err)
	}
	effectiveDate, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid effective date %q: %w", dateStr, err)
	}

	return &Snapshot{
		ID:            id,
		PortfolioID:   portfolioID,
		EffectiveDate: effectiveDate,
		Note:          note.String,
	}, nil
}
