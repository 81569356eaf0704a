package source_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/mcslog/internal/errors"
	"codeberg.org/mutker/mcslog/internal/source"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = "header\n\n\n\n03/01/2014 12:00:00.000000\t1.0\tRepeat 3\n03/01/2014 12:00:03.000000\t1.0\n"

func writeCompressed(t *testing.T, path string, wrap func(io.Writer) io.WriteCloser) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := wrap(f)
	_, err = io.WriteString(w, payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestDetect(t *testing.T) {
	assert.Equal(t, source.CompressionNone, source.Detect("az.log"))
	assert.Equal(t, source.CompressionZstd, source.Detect("az.log.zst"))
	assert.Equal(t, source.CompressionS2, source.Detect("az.log.S2"))
	assert.Equal(t, source.CompressionS2, source.Detect("az.sz"))
	assert.Equal(t, source.CompressionLZ4, source.Detect("/var/log/mcs/el.lz4"))
	assert.Equal(t, "lz4", source.CompressionLZ4.String())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		wrap func(io.Writer) io.WriteCloser
	}{
		{"az.log", nil},
		{"az.log.zst", func(w io.Writer) io.WriteCloser {
			enc, err := zstd.NewWriter(w)
			require.NoError(t, err)
			return enc
		}},
		{"az.log.s2", func(w io.Writer) io.WriteCloser { return s2.NewWriter(w) }},
		{"az.log.lz4", func(w io.Writer) io.WriteCloser { return lz4.NewWriter(w) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			if tt.wrap == nil {
				require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))
			} else {
				writeCompressed(t, path, tt.wrap)
			}

			rc, err := source.Open(path)
			require.NoError(t, err)

			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, payload, string(got))
			require.NoError(t, rc.Close())
		})
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := source.Open(filepath.Join(t.TempDir(), "missing.log"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, source.ErrOpenSource))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewReaderUnsupported(t *testing.T) {
	_, err := source.NewReader(nil, source.Compression(42))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, source.ErrUnsupportedFormat))
}
