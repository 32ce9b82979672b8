package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freeeve/cbin/internal/archive"
	"github.com/freeeve/cbin/internal/logx"
	"github.com/freeeve/cbin/internal/pgnconv"
)

func main() {
	defaultLevel := "info"
	if env := os.Getenv("CBIN_LOG_LEVEL"); env != "" {
		defaultLevel = env
	}

	var (
		archivePath = flag.String("archive", "", "Archive to export")
		outputPath  = flag.String("out", "games.pgn", "Output PGN path (.zst compresses)")
		first       = flag.Uint64("first", 0, "First game index to export")
		count       = flag.Uint64("count", 0, "Number of games to export (0 = through the end)")
		logLevel    = flag.String("log-level", defaultLevel, "Log level (trace..error)")
	)
	flag.Parse()

	if *archivePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: cbin-export -archive <file.cbin> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := logx.New(*logLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r, err := archive.Open(*archivePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open archive")
	}
	defer r.Close()

	logger.Info().
		Uint64("games", r.GameCount()).
		Uint64("first", *first).
		Uint64("count", *count).
		Str("out", *outputPath).
		Msg("exporting")

	start := time.Now()
	e := pgnconv.NewExporter(pgnconv.ExportConfig{Logger: logger})
	n, err := e.ExportFile(ctx, r, *outputPath, *first, *count)
	if err != nil {
		logger.Fatal().Err(err).Int64("written", n).Msg("export failed")
	}

	elapsed := time.Since(start)
	logger.Info().
		Int64("games", n).
		Dur("elapsed", elapsed).
		Float64("games_per_sec", float64(n)/elapsed.Seconds()).
		Msg("export complete")
}
