package database

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T, name string) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), name+".db")
	db, err := New(Config{Path: path, Profile: ProfileStandard, Name: name})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestMigrate_CreatesMarketTables(t *testing.T) {
	db := newDB(t, "market")
	require.NoError(t, db.Migrate())

	// Applying the schema twice must be harmless
	require.NoError(t, db.Migrate())

	for _, table := range []string{"instruments", "daily_prices", "exchange_rates", "risk_history"} {
		var count int
		err := db.Conn().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "missing table %s", table)
	}
}

func TestMigrate_CreatesPortfolioTables(t *testing.T) {
	db := newDB(t, "portfolio")
	require.NoError(t, db.Migrate())

	for _, table := range []string{"portfolios", "snapshots", "snapshot_entries", "portfolio_daily_returns", "instrument_daily_returns"} {
		var count int
		err := db.Conn().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "missing table %s", table)
	}
}

func TestMigrate_UnknownNameIsNoOp(t *testing.T) {
	db := newDB(t, "scratch")
	assert.NoError(t, db.Migrate())
}

func TestWithTransaction_CommitsOnSuccess(t *testing.T) {
	db := newDB(t, "tx")
	_, err := db.Conn().Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, label TEXT)`)
	require.NoError(t, err)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO items (label) VALUES ('kept')`)
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newDB(t, "tx")
	_, err := db.Conn().Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, label TEXT)`)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO items (label) VALUES ('discarded')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestWithTransaction_RecoversFromPanic(t *testing.T) {
	db := newDB(t, "tx")
	_, err := db.Conn().Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("unexpected")
	})
	assert.Error(t, err)
}

func TestNew_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "data.db")

	db, err := New(Config{Path: path, Name: "nested"})
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}
