package pipeline_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/mcslog/internal/errors"
	"codeberg.org/mutker/mcslog/internal/export"
	"codeberg.org/mutker/mcslog/internal/logger"
	"codeberg.org/mutker/mcslog/internal/pipeline"
	"codeberg.org/mutker/mcslog/internal/rlecsv"
	"codeberg.org/mutker/mcslog/internal/sample"
	"codeberg.org/mutker/mcslog/internal/store"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "MCS log\nazDemand elDemand\nstart 03/01/2014\nTime\tAz\tEl\n"

var base = time.Date(2014, 3, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) string {
	return rlecsv.FormatTimestamp(base.Add(d))
}

// compressedLog expands to four records, two of them reconstructed.
func compressedLog() string {
	return header +
		at(0) + "\t1\t2\tRepeat 3\n" +
		at(3*time.Second) + "\t4\t5\n"
}

func writeLog(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func writeZstdLog(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	enc, err := zstd.NewWriter(f)
	require.NoError(t, err)
	_, err = enc.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	return path
}

// captureSink keeps copies of every batch it sees.
type captureSink struct {
	mu      sync.Mutex
	records map[string][]rlecsv.Record
	samples map[string][]sample.Sample
	closed  int
	onWrite func()
}

func newCapture() *captureSink {
	return &captureSink{
		records: make(map[string][]rlecsv.Record),
		samples: make(map[string][]sample.Sample),
	}
}

func (c *captureSink) factory() pipeline.SinkFactory {
	return func(string, []string) (pipeline.Sink, error) {
		return c, nil
	}
}

func (c *captureSink) Write(_ context.Context, b *pipeline.Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records[b.Source] = append(c.records[b.Source], b.Records...)
	c.samples[b.Source] = append(c.samples[b.Source], b.Samples...)
	if c.onWrite != nil {
		c.onWrite()
	}

	return nil
}

func (c *captureSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++

	return nil
}

func newPipeline(opts pipeline.Options) *pipeline.Pipeline {
	opts.Cols = 2
	opts.Columns = []string{"az", "el"}
	opts.Log = logger.Default()

	return pipeline.New(opts)
}

func TestProcess(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "demand.log", compressedLog())
	capture := newCapture()

	p := newPipeline(pipeline.Options{Sinks: []pipeline.SinkFactory{capture.factory()}, BatchSize: 3})
	stats, err := p.Process(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "demand.log", stats.Source)
	assert.Equal(t, 4, stats.Records)
	assert.Equal(t, 8, stats.Samples)
	assert.Equal(t, 2, stats.Reader.Rows)
	assert.Equal(t, 1, stats.Reader.Runs)
	assert.Equal(t, 2, stats.Reader.Reconstructed)
	assert.Equal(t, 1, capture.closed)

	recs := capture.records["demand.log"]
	require.Len(t, recs, 4)
	for i, rec := range recs {
		assert.Equal(t, base.Add(time.Duration(i)*time.Second), rec.Time)
	}
	assert.Equal(t, []float64{4, 5}, recs[3].Values)

	samples := capture.samples["demand.log"]
	require.Len(t, samples, 8)
	assert.Equal(t, "az", samples[2].Column.Name)
	assert.Equal(t, sample.ID("el"), samples[3].Column.ID)
	assert.True(t, samples[2].Reconstructed)
	assert.False(t, samples[6].Reconstructed)
}

func TestProcessCompressedSource(t *testing.T) {
	dir := t.TempDir()
	path := writeZstdLog(t, dir, "demand.log.zst", compressedLog())
	capture := newCapture()

	p := newPipeline(pipeline.Options{Sinks: []pipeline.SinkFactory{capture.factory()}})
	stats, err := p.Process(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Records)
	assert.Len(t, capture.records["demand.log.zst"], 4)
}

func TestProcessCorruptLog(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "bad.log", header+at(0)+"\t1\t2\n"+at(time.Second)+"\t1\n")
	capture := newCapture()

	p := newPipeline(pipeline.Options{Sinks: []pipeline.SinkFactory{capture.factory()}})
	stats, err := p.Process(context.Background(), path)
	require.Error(t, err)

	assert.True(t, errors.HasCode(err, pipeline.ErrProcessFile))
	assert.True(t, errors.HasCode(err, rlecsv.ErrCorruptData))
	assert.Contains(t, err.Error(), "bad.log")
	assert.Zero(t, stats.Records, "Expected the partial batch to be dropped")
	assert.Equal(t, 1, capture.closed)
}

func TestProcessMissingFile(t *testing.T) {
	p := newPipeline(pipeline.Options{})
	_, err := p.Process(context.Background(), filepath.Join(t.TempDir(), "absent.log"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, pipeline.ErrProcessFile))
}

func TestProcessCanceled(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "demand.log", compressedLog())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newPipeline(pipeline.Options{})
	_, err := p.Process(ctx, path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, pipeline.ErrCanceled))
}

func TestProcessStopsWhenCanceledMidScan(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "demand.log", compressedLog())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	capture := newCapture()
	capture.onWrite = cancel

	p := newPipeline(pipeline.Options{Sinks: []pipeline.SinkFactory{capture.factory()}, BatchSize: 1})
	stats, err := p.Process(ctx, path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, pipeline.ErrCanceled))
	assert.Equal(t, 1, stats.Records)
	assert.Len(t, capture.records["demand.log"], 1)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeLog(t, dir, "a.log", compressedLog()),
		writeZstdLog(t, dir, "b.log.zst", compressedLog()),
		writeLog(t, dir, "c.log", header+at(0)+"\t7\t8\n"),
	}
	capture := newCapture()

	p := newPipeline(pipeline.Options{Sinks: []pipeline.SinkFactory{capture.factory()}, Workers: 2})
	stats, err := p.Run(context.Background(), paths)
	require.NoError(t, err)

	require.Len(t, stats, 3)
	assert.Equal(t, "a.log", stats[0].Source)
	assert.Equal(t, "b.log.zst", stats[1].Source)
	assert.Equal(t, 1, stats[2].Records)
	assert.Equal(t, 3, capture.closed)
	assert.Len(t, capture.records["b.log.zst"], 4)
}

func TestRunReportsFirstFailure(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeLog(t, dir, "good.log", compressedLog()),
		writeLog(t, dir, "bad.log", header+"not a timestamp\t1\t2\n"),
	}

	p := newPipeline(pipeline.Options{Workers: 1})
	stats, err := p.Run(context.Background(), paths)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, rlecsv.ErrMalformedTimestamp))
	assert.Equal(t, 4, stats[0].Records)
}

func TestDirSink(t *testing.T) {
	dir := t.TempDir()
	path := writeZstdLog(t, dir, "demand.log.zst", compressedLog())
	out := filepath.Join(dir, "expanded")

	p := newPipeline(pipeline.Options{Sinks: []pipeline.SinkFactory{pipeline.DirSink(out)}})
	_, err := p.Process(context.Background(), path)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "demand.expanded.log"))
	require.NoError(t, err)

	want := header +
		at(0) + "\t1\t2\n" +
		at(time.Second) + "\t1\t2\n" +
		at(2*time.Second) + "\t1\t2\n" +
		at(3*time.Second) + "\t4\t5\n"
	assert.Equal(t, want, string(data))
}

func TestStdoutSinkKeepsLogsApart(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeLog(t, dir, "a.log", compressedLog()),
		writeLog(t, dir, "b.log", compressedLog()),
	}
	var buf bytes.Buffer

	p := newPipeline(pipeline.Options{Sinks: []pipeline.SinkFactory{pipeline.StdoutSink(&buf)}, Workers: 2, BatchSize: 1})
	_, err := p.Run(context.Background(), paths)
	require.NoError(t, err)

	single := header +
		at(0) + "\t1\t2\n" +
		at(time.Second) + "\t1\t2\n" +
		at(2*time.Second) + "\t1\t2\n" +
		at(3*time.Second) + "\t4\t5\n"
	assert.Equal(t, single+single, buf.String())
}

func TestParquetSink(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "demand.log", compressedLog())
	out := filepath.Join(dir, "parquet")

	p := newPipeline(pipeline.Options{Sinks: []pipeline.SinkFactory{
		pipeline.ParquetSink(out, export.Options{Compression: export.CompressionZstd}),
	}})
	_, err := p.Process(context.Background(), path)
	require.NoError(t, err)

	rows, err := export.ReadFile(filepath.Join(out, "demand.parquet"))
	require.NoError(t, err)
	require.Len(t, rows, 8)
	assert.Equal(t, "demand.log", rows[0].Source)
	assert.Equal(t, base.Add(time.Second).UnixMicro(), rows[2].TimestampUs)
	assert.True(t, rows[2].Reconstructed)
}

func TestStoreSink(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "demand.log", compressedLog())

	cfg := store.DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = filepath.Join(dir, "samples.db")
	repo, err := store.NewRepository(cfg, logger.Default())
	require.NoError(t, err)
	st := store.NewServiceWithRepository(repo, cfg)
	defer st.Close()

	p := newPipeline(pipeline.Options{Sinks: []pipeline.SinkFactory{pipeline.StoreSink(st)}})
	_, err = p.Process(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, repo.Flush())

	got, err := repo.Query(context.Background(), "demand.log", sample.ID("el"))
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.InDelta(t, 2, got[1].Value, 0)
	assert.True(t, got[1].Reconstructed)
	assert.InDelta(t, 5, got[3].Value, 0)
}

func TestFailingSinkFactoryClosesOpenedSinks(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "demand.log", compressedLog())
	capture := newCapture()
	failing := func(string, []string) (pipeline.Sink, error) {
		return nil, assert.AnError
	}

	p := newPipeline(pipeline.Options{Sinks: []pipeline.SinkFactory{capture.factory(), failing}})
	_, err := p.Process(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, pipeline.ErrOpenSink))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, capture.closed)
}

func TestExpandedName(t *testing.T) {
	tests := map[string]string{
		"/logs/az.log":        "az.expanded.log",
		"az.log.zst":          "az.expanded.log",
		"az.20140301.tsv.lz4": "az.20140301.expanded.tsv",
		"azCurrentMaxAcc":     "azCurrentMaxAcc.expanded",
		"azCurrentMaxAcc.s2":  "azCurrentMaxAcc.expanded",
	}
	for in, want := range tests {
		assert.Equal(t, want, pipeline.ExpandedName(in), in)
	}

	assert.True(t, strings.HasSuffix(export.FileName("az.log.zst"), ".parquet"))
}

func TestDirSinkKeepsHeaderOfEmptyLog(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "empty.log", header)
	out := filepath.Join(dir, "expanded")

	p := newPipeline(pipeline.Options{Sinks: []pipeline.SinkFactory{pipeline.DirSink(out)}})
	stats, err := p.Process(context.Background(), path)
	require.NoError(t, err)
	assert.Zero(t, stats.Records)

	data, err := os.ReadFile(filepath.Join(out, "empty.expanded.log"))
	require.NoError(t, err)
	assert.Equal(t, header, string(data))
}

func TestMaxRepeatReachesReader(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "demand.log", compressedLog())

	p := newPipeline(pipeline.Options{MaxRepeat: 2})
	_, err := p.Process(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, rlecsv.ErrCorruptData))
}
