package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// PortfolioRepository handles portfolio database operations
type PortfolioRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db *sql.DB, log zerolog.Logger) *PortfolioRepository {
	return &PortfolioRepository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// Insert stores a new portfolio
func (r *PortfolioRepository) Insert(p Portfolio) error {
	_, err := r.db.Exec(`INSERT INTO portfolios (id, name, status, started_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID.String(), p.Name, string(p.Status), p.StartedAt.Format(dateLayout),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert portfolio %s: %w", p.Name, err)
	}

	return nil
}

// GetAllActive returns all ACTIVE portfolios ordered by creation time
func (r *PortfolioRepository) GetAllActive() ([]Portfolio, error) {
	return r.getByStatus(StatusActive)
}

// GetAll returns every portfolio regardless of status
func (r *PortfolioRepository) GetAll() ([]Portfolio, error) {
	rows, err := r.db.Query(`SELECT id, name, status, started_at FROM portfolios ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	return scanPortfolios(rows)
}

func (r *PortfolioRepository) getByStatus(status Status) ([]Portfolio, error) {
	rows, err := r.db.Query(`SELECT id, name, status, started_at FROM portfolios
		WHERE status = ? ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios by status: %w", err)
	}
	defer rows.Close()

	return scanPortfolios(rows)
}

func scanPortfolios(rows *sql.Rows) ([]Portfolio, error) {
	var portfolios []Portfolio
	for rows.Next() {
		var p Portfolio
		var idStr, status string
		var startedAt sql.NullString

		if err := rows.Scan(&idStr, &p.Name, &status, &startedAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid portfolio id %q: %w", idStr, err)
		}
		p.ID = id
		p.Status = Status(status)

		if startedAt.Valid {
			started, err := time.Parse(dateLayout, startedAt.String)
			if err != nil {
				return nil, fmt.Errorf("invalid started_at %q: %w", startedAt.String, err)
			}
			p.StartedAt = started
		}

		portfolios = append(portfolios, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}

	return portfolios, nil
}
