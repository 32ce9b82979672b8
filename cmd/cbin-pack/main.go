package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

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
		inputPath     = flag.String("pgn", "", "Path to input PGN file (supports .pgn.zst)")
		outputPath    = flag.String("out", "games.cbin", "Output archive path")
		blockBytes    = flag.Int("block-bytes", archive.DefaultBlockTargetBytes, "Target encoded bytes per block")
		maxBlockGames = flag.Int("max-block-games", archive.DefaultMaxGamesPerBlock, "Hard game bound per block")
		openingPlies  = flag.Int("opening-plies", archive.DefaultOpeningPlies, "Opening prefix length deduped archive-wide (negative disables)")
		maxGames      = flag.Int("max-games", 0, "Maximum games to pack (0 = unlimited)")
		spoolDir      = flag.String("spool", "", "Spool sealed blocks to a temp file in this directory (empty = memory)")
		logLevel      = flag.String("log-level", defaultLevel, "Log level (trace..error)")
	)
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: cbin-pack -pgn <file.pgn[.zst]> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := logx.New(*logLevel)
	logger.Info().
		Str("pgn", *inputPath).
		Str("out", *outputPath).
		Int("block_bytes", *blockBytes).
		Msg("starting pack")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b := archive.NewBuilder(archive.BuilderConfig{
		BlockTargetBytes: *blockBytes,
		MaxGamesPerBlock: *maxBlockGames,
		OpeningPlies:     *openingPlies,
		SpoolDir:         *spoolDir,
	})
	b.SetLogger(func(format string, args ...any) {
		logger.Debug().Msgf(format, args...)
	})

	conv := pgnconv.NewConverter(b, pgnconv.ConvertConfig{
		MaxGames: *maxGames,
		Logger:   logger,
	})
	cstats, err := conv.ConvertFile(ctx, *inputPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("convert failed")
	}

	stats, err := b.WriteFile(*outputPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("write archive failed")
	}

	ev := logger.Info().
		Uint64("games", stats.Games).
		Int64("skipped", cstats.Skipped).
		Int("blocks", stats.Blocks).
		Uint64("archive_bytes", stats.ArchiveBytes).
		Uint64("payload_bytes", stats.PayloadBytes).
		Int("table_bytes", stats.TableBytes).
		Dur("elapsed", stats.Elapsed)
	for cat := archive.Category(0); cat < archive.NumCategories; cat++ {
		ev = ev.Int(cat.String()+"_entries", stats.TableEntries[cat])
	}
	ev.Msg("pack complete")
}
