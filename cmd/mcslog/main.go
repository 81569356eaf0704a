package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/mcslog/internal/config"
	"codeberg.org/mutker/mcslog/internal/errors"
	"codeberg.org/mutker/mcslog/internal/export"
	"codeberg.org/mutker/mcslog/internal/logger"
	"codeberg.org/mutker/mcslog/internal/pipeline"
	"codeberg.org/mutker/mcslog/internal/store"
	"github.com/spf13/pflag"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			config.Usage(stdout)
			return exitOK
		}
		fmt.Fprintf(stderr, "mcslog: %v\n\n", err)
		config.Usage(stderr)

		return exitUsage
	}

	logger.InitWithWriter(stderr, cfg.LogLevel)
	logger.Debug().Strs("inputs", cfg.Inputs).Int("workers", cfg.Workers).Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(ctx, cancel)

	st, err := store.NewService(storeConfig(cfg), logger.Default())
	if err != nil {
		logError(err, "Failed to open sample store")
		return exitError
	}
	defer func() {
		if err := st.Close(); err != nil {
			logError(err, "Failed to close sample store")
		}
	}()

	p := pipeline.New(pipeline.Options{
		Cols:             cfg.Cols,
		Columns:          cfg.Columns,
		Location:         cfg.Location,
		FallbackInterval: cfg.FallbackInterval,
		MaxRepeat:        cfg.MaxRepeat,
		Sinks:            sinks(cfg, st, stdout),
		Workers:          cfg.Workers,
		BatchSize:        cfg.BatchSize,
		Log:              logger.Default(),
	})

	if _, err := p.Run(ctx, cfg.Inputs); err != nil {
		logError(err, "Failed to expand logs")
		return exitError
	}

	return exitOK
}

func storeConfig(cfg *config.Config) store.Config {
	sc := store.DefaultConfig()
	sc.DBPath = cfg.Database
	sc.BatchSize = cfg.BatchSize
	sc.Enabled = cfg.Database != ""

	return sc
}

func sinks(cfg *config.Config, st store.Store, stdout io.Writer) []pipeline.SinkFactory {
	var out []pipeline.SinkFactory

	switch cfg.Output {
	case "":
	case config.StdoutOutput:
		out = append(out, pipeline.StdoutSink(stdout))
	default:
		out = append(out, pipeline.DirSink(cfg.Output))
	}

	if cfg.Database != "" {
		out = append(out, pipeline.StoreSink(st))
	}

	if cfg.ParquetDir != "" {
		out = append(out, pipeline.ParquetSink(cfg.ParquetDir, export.Options{
			Compression: cfg.ParquetCompression,
		}))
	}

	return out
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		logger.Info().Msg("Received termination signal, stopping")
		cancel()
	case <-ctx.Done():
	}
}

func logError(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.ErrorWithCode(appErr).Msg(msg)
		return
	}
	logger.Error().Err(err).Msg(msg)
}
