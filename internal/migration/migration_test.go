package migration

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CreatesTablesIdempotently(t *testing.T) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	runner := NewRunner(nil)
	require.NoError(t, runner.Run(context.Background(), db))
	require.NoError(t, runner.Run(context.Background(), db))

	var tables []string
	require.NoError(t, db.Select(&tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE 'quality_%' ORDER BY name`))
	assert.Equal(t, []string{"quality_findings", "quality_reports"}, tables)
	assert.Equal(t, "1.0.0", runner.Version())
}
