package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/subscription/pgstore"
)

func TestVersionCmd(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := Version, BuildTime, GitCommit
	t.Cleanup(func() {
		Version, BuildTime, GitCommit = oldVersion, oldBuildTime, oldGitCommit
	})

	Version = "1.2.3"
	BuildTime = "2025-01-01"
	GitCommit = "abcdef"

	out := &bytes.Buffer{}
	root := newRootCmd()
	root.SetOut(out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "billing 1.2.3")
	assert.Contains(t, out.String(), "Built: 2025-01-01")
	assert.Contains(t, out.String(), "Commit: abcdef")
}

func TestRootCmd_Subcommands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	for _, name := range []string{"run", "migrate", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}

	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	assert.NotNil(t, run.Flags().Lookup("now"))
	assert.NotNil(t, root.PersistentFlags().Lookup("env-file"))
}

func TestRunCmd_InvalidNow(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--now", "yesterday"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --now value")
}

func TestParseNow(t *testing.T) {
	t.Parallel()

	got, err := parseNow("2025-03-10T14:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())

	before := time.Now().UTC()
	got, err = parseNow("")
	require.NoError(t, err)
	assert.False(t, got.Before(before))

	_, err = parseNow("2025-03-10")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	log, err := newLogger(appConfig{Env: "production", ServiceName: "billing", LogLevel: "debug"})
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = newLogger(appConfig{Env: "production", ServiceName: "billing", LogLevel: "loud"})
	assert.Error(t, err)
}

func TestNewCatalog(t *testing.T) {
	t.Parallel()

	store := pgstore.New(nopDB{})
	catalog, err := newCatalog(appConfig{PriceCatalog: catalogPostgres}, store)
	require.NoError(t, err)
	assert.Same(t, store, catalog)

	_, err = newCatalog(appConfig{PriceCatalog: "chargebee"}, store)
	assert.Error(t, err)
}

type nopDB struct{}

func (nopDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (nopDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (nopDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}
