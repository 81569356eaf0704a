// Package config loads mcslog settings from a TOML file, MCSLOG_ environment
// variables and command line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/mcslog/internal/errors"
	"codeberg.org/mutker/mcslog/internal/export"
	"codeberg.org/mutker/mcslog/internal/logger"
	"codeberg.org/mutker/mcslog/internal/rlecsv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix          = "MCSLOG"
	DefaultLogLevel           = "info"
	DefaultLocation           = "UTC"
	DefaultBatchSize          = 5000
	DefaultParquetCompression = "zstd"

	// StdoutOutput writes the expanded log to standard output.
	StdoutOutput = "-"
)

type Config struct {
	Inputs []string

	Cols             int
	Columns          []string
	Location         *time.Location
	FallbackInterval time.Duration
	MaxRepeat        int

	Output             string
	Database           string
	ParquetDir         string
	ParquetCompression export.CompressionType

	Workers   int
	BatchSize int
	LogLevel  string
}

// Load reads the configuration for a command line. args excludes the program
// name; positional arguments are the input logs. pflag.ErrHelp is returned
// unchanged when help was requested.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}

		return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
	}
	if err := bindFlags(v, fs); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, o.configPath); err != nil {
		return nil, err
	}

	fallback, err := parseInterval(v.GetString("fallback_interval"))
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(v.GetString("location"))
	if err != nil {
		return nil, errFactory.Wrap(ErrInvalidLocation, err).
			WithData(FieldError{Field: "location", Value: v.GetString("location")})
	}

	compressionName := v.GetString("parquet_compression")
	compression, ok := export.ParseCompressionType(compressionName)
	if !ok {
		return nil, errFactory.WithData(ErrInvalidCompression,
			FieldError{Field: "parquet_compression", Value: compressionName})
	}

	cfg := &Config{
		Inputs:             fs.Args(),
		Cols:               v.GetInt("cols"),
		Columns:            v.GetStringSlice("columns"),
		Location:           loc,
		FallbackInterval:   fallback,
		MaxRepeat:          v.GetInt("max_repeat"),
		Output:             v.GetString("output"),
		Database:           v.GetString("database"),
		ParquetDir:         v.GetString("parquet_dir"),
		ParquetCompression: compression,
		Workers:            v.GetInt("workers"),
		BatchSize:          v.GetInt("batch_size"),
		LogLevel:           v.GetString("log_level"),
	}

	if cfg.Cols == 0 {
		cfg.Cols = len(cfg.Columns)
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
		if cfg.Output == StdoutOutput {
			cfg.Workers = 1
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values Load cannot check while parsing.
func (c *Config) Validate() error {
	errFactory := errors.New()

	switch {
	case len(c.Inputs) == 0:
		return errFactory.New(ErrNoInputs)
	case c.Cols < 1:
		return errFactory.WithData(ErrInvalidColumns, FieldError{Field: "cols", Value: c.Cols})
	case len(c.Columns) > c.Cols:
		return errFactory.WithData(ErrInvalidColumns, FieldError{Field: "columns", Value: c.Columns})
	case c.FallbackInterval < 0:
		return errFactory.WithData(errors.ErrInvalidInterval,
			FieldError{Field: "fallback_interval", Value: c.FallbackInterval})
	case c.MaxRepeat < 1:
		return errFactory.WithData(ErrInvalidMaxRepeat, FieldError{Field: "max_repeat", Value: c.MaxRepeat})
	case c.Workers < 1:
		return errFactory.WithData(ErrInvalidWorkers, FieldError{Field: "workers", Value: c.Workers})
	case c.Output == StdoutOutput && c.Workers > 1:
		return errFactory.WithData(ErrStdoutConcurrency, FieldError{Field: "workers", Value: c.Workers})
	case c.BatchSize < 1:
		return errFactory.WithData(ErrInvalidBatchSize, FieldError{Field: "batch_size", Value: c.BatchSize})
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cols", 0)
	v.SetDefault("location", DefaultLocation)
	v.SetDefault("fallback_interval", "0")
	v.SetDefault("max_repeat", rlecsv.DefaultMaxRepeat)
	v.SetDefault("parquet_compression", DefaultParquetCompression)
	v.SetDefault("workers", 0)
	v.SetDefault("batch_size", DefaultBatchSize)
	v.SetDefault("log_level", DefaultLogLevel)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("mcslog", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	fs.String("config", "", "Path to a TOML configuration file")
	fs.Int("cols", 0, "Number of value columns per row (defaults to the number of --columns)")
	fs.StringSlice("columns", nil, "Names of the value columns")
	fs.String("location", DefaultLocation, "Time zone the log timestamps are recorded in")
	fs.String("fallback-interval", "0", "Sample spacing for truncated runs with no observed interval")
	fs.Int("max-repeat", rlecsv.DefaultMaxRepeat, "Largest repeat count accepted on a compressed row")
	fs.StringP("output", "o", "", `Directory for expanded logs, or "-" for standard output`)
	fs.String("database", "", "SQLite database receiving the samples")
	fs.String("parquet-dir", "", "Directory for Parquet exports")
	fs.String("parquet-compression", DefaultParquetCompression, "Parquet compression: none, snappy, zstd, lz4, gzip")
	fs.IntP("workers", "j", 0, "Files processed concurrently (defaults to the number of CPUs)")
	fs.Int("batch-size", DefaultBatchSize, "Records buffered before they are handed to the sinks")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warning, error")

	return fs
}

// Usage writes the command line help to w.
func Usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: mcslog [flags] FILE...\n\nFlags:\n%s", newFlagSet().FlagUsages())
}

// bindFlags maps dashed flag names onto underscored config keys.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})

	return err
}

func readConfigFile(v *viper.Viper, path string) error {
	errFactory := errors.New()

	if path == "" {
		path = v.GetString("config")
	}

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mcslog")
		v.AddConfigPath("/etc")
		v.AddConfigPath("$HOME/.config/mcslog")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}

		return errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

// parseInterval accepts a Go duration or a plain number of seconds.
func parseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.New().Wrap(errors.ErrInvalidInterval, err).
			WithData(FieldError{Field: "fallback_interval", Value: s})
	}

	return d, nil
}
