package store_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/mcslog/internal/errors"
	"codeberg.org/mutker/mcslog/internal/logger"
	"codeberg.org/mutker/mcslog/internal/sample"
	"codeberg.org/mutker/mcslog/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2014, 3, 1, 12, 0, 0, 0, time.UTC)

func samplesFor(source string, col sample.Column, n int) []sample.Sample {
	out := make([]sample.Sample, n)
	for i := range out {
		out[i] = sample.Sample{
			Source:        source,
			Column:        col,
			Time:          base.Add(time.Duration(i) * 250 * time.Millisecond),
			Value:         float64(i) / 2,
			Reconstructed: i%2 == 1,
		}
	}

	return out
}

func newRepo(t *testing.T, batch int) (store.Repository, string) {
	t.Helper()

	cfg := store.DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = filepath.Join(t.TempDir(), "db", "samples.db")
	cfg.BatchSize = batch

	repo, err := store.NewRepository(cfg, logger.Default())
	require.NoError(t, err)

	return repo, cfg.DBPath
}

func TestRepositoryRoundTrip(t *testing.T) {
	repo, _ := newRepo(t, 3)
	defer repo.Close()

	cols := sample.NewColumns([]string{"azPos", "elPos"}, 2)
	require.NoError(t, repo.Record(samplesFor("az.log", cols[0], 5)))
	require.NoError(t, repo.Record(samplesFor("az.log", cols[1], 2)))
	require.NoError(t, repo.Flush())

	got, err := repo.Query(context.Background(), "az.log", cols[0].ID)
	require.NoError(t, err)
	require.Len(t, got, 5)

	want := samplesFor("az.log", cols[0], 5)
	for i := range want {
		assert.True(t, want[i].Time.Equal(got[i].Time), "sample %d", i)
		assert.InDelta(t, want[i].Value, got[i].Value, 0)
		assert.Equal(t, want[i].Reconstructed, got[i].Reconstructed)
		assert.Equal(t, cols[0], got[i].Column)
	}

	other, err := repo.Query(context.Background(), "el.log", cols[0].ID)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRepositoryUpsertsDuplicateTimestamps(t *testing.T) {
	repo, _ := newRepo(t, 100)
	defer repo.Close()

	col := sample.NewColumns(nil, 1)[0]
	first := samplesFor("az.log", col, 2)
	second := samplesFor("az.log", col, 2)
	second[1].Value = 42

	require.NoError(t, repo.Record(first))
	require.NoError(t, repo.Record(second))
	require.NoError(t, repo.Flush())

	got, err := repo.Query(context.Background(), "az.log", col.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 42, got[1].Value, 0)
}

func TestRepositoryCloseFlushes(t *testing.T) {
	repo, path := newRepo(t, 1000)

	col := sample.NewColumns([]string{"azPos"}, 1)[0]
	require.NoError(t, repo.Record(samplesFor("az.log", col, 4)))
	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close())

	err := repo.Record(samplesFor("az.log", col, 1))
	assert.True(t, errors.HasCode(err, store.ErrStoreClosed))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&n))
	assert.Equal(t, 4, n)
}

func TestSchemaMigrationBacksUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "samples.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions VALUES (99, datetime('now'));`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cfg := store.DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = path
	repo, err := store.NewRepository(cfg, logger.Default())
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	backups, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Contains(t, backups[0].Name(), "samples_v99_")

	db, err = sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	version, err := store.GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, store.SchemaVersion, version)

	exists, err := store.TableExists(db, "samples")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestServiceDisabledIsNoop(t *testing.T) {
	s, err := store.NewService(store.DefaultConfig(), logger.Default())
	require.NoError(t, err)

	col := sample.NewColumns(nil, 1)[0]
	require.NoError(t, s.Record(context.Background(), samplesFor("az.log", col, 1)))
	require.NoError(t, s.Close())
}

func TestServiceRecord(t *testing.T) {
	repo, _ := newRepo(t, 2)
	s := store.NewServiceWithRepository(repo, store.DefaultConfig())

	col := sample.NewColumns([]string{"elPos"}, 1)[0]
	require.NoError(t, s.Record(context.Background(), samplesFor("el.log", col, 3)))
	require.NoError(t, s.Record(context.Background(), nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Record(ctx, samplesFor("el.log", col, 1))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, store.ErrOperationCanceled))

	require.NoError(t, repo.Flush())
	got, err := repo.Query(context.Background(), "el.log", col.ID)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	require.NoError(t, s.Close())
}

func TestConfigValidate(t *testing.T) {
	cfg := store.DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, store.ErrInvalidDBPath))

	cfg.DBPath = "/tmp/x.db"
	cfg.BatchSize = -1
	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, store.ErrInvalidConfig))

	_, err = store.NewService(cfg, logger.Default())
	require.Error(t, err)
}
