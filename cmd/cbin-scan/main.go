package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/freeeve/cbin/internal/archive"
	"github.com/freeeve/cbin/internal/logx"
)

// chunkStats aggregates one worker's pass over its chunk. Each worker
// owns exactly one slot, so the scan needs no locks.
type chunkStats struct {
	games     uint64
	moves     uint64
	damaged   []int // block indexes that failed to decode
	lostGames uint64
}

func main() {
	defaultLevel := "info"
	if env := os.Getenv("CBIN_LOG_LEVEL"); env != "" {
		defaultLevel = env
	}

	var (
		archivePath = flag.String("archive", "", "Archive to scan")
		workers     = flag.Int("workers", runtime.NumCPU(), "Parallel scan workers")
		verify      = flag.Bool("verify", false, "Resolve every interned field, not just move counts")
		logLevel    = flag.String("log-level", defaultLevel, "Log level (trace..error)")
	)
	flag.Parse()

	if *archivePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: cbin-scan -archive <file.cbin> [options]")
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

	chunks := r.Split(*workers)
	logger.Info().
		Uint64("games", r.GameCount()).
		Int("blocks", r.BlockCount()).
		Int("chunks", len(chunks)).
		Bool("verify", *verify).
		Msg("scanning")

	start := time.Now()
	stats := make([]chunkStats, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	for ci, c := range chunks {
		g.Go(func() error {
			return scanChunk(ctx, r, c, *verify, &stats[ci])
		})
	}
	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("scan aborted")
	}

	var total chunkStats
	damagedBlocks := 0
	for ci, s := range stats {
		logger.Info().
			Int("chunk", ci).
			Int("first_block", chunks[ci].FirstBlock).
			Int("blocks", chunks[ci].BlockCount).
			Uint64("games", s.games).
			Uint64("moves", s.moves).
			Ints("damaged_blocks", s.damaged).
			Msg("chunk scanned")
		total.games += s.games
		total.moves += s.moves
		total.lostGames += s.lostGames
		damagedBlocks += len(s.damaged)
	}

	elapsed := time.Since(start)
	logger.Info().
		Uint64("games", total.games).
		Uint64("moves", total.moves).
		Dur("elapsed", elapsed).
		Float64("games_per_sec", float64(total.games)/elapsed.Seconds()).
		Msg("scan complete")

	if damagedBlocks > 0 {
		logger.Error().
			Int("damaged_blocks", damagedBlocks).
			Uint64("lost_games", total.lostGames).
			Uint64("readable_games", total.games).
			Msg("archive damaged")
		os.Exit(1)
	}
}

// scanChunk walks the chunk block by block, so damage in one block
// costs its own games only and the rest of the chunk still gets
// scanned. Per-game decode errors count against the block they live in.
func scanChunk(ctx context.Context, r *archive.Reader, c archive.Chunk, verify bool, out *chunkStats) error {
	for b := c.FirstBlock; b < c.FirstBlock+c.BlockCount; b++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		var read uint64
		it := r.BlockGames(b, b+1)
		blockErr := error(nil)
		for it.Next() {
			gv := it.Game()
			var n int
			var err error
			if verify {
				rec, rerr := gv.Record()
				if rerr != nil {
					err = rerr
				} else {
					n = len(rec.Moves)
				}
			} else {
				n, err = gv.MoveCount()
			}
			if err != nil {
				blockErr = fmt.Errorf("game %d: %w", gv.Index(), err)
				break
			}
			out.games++
			out.moves += uint64(n)
			read++
		}
		if blockErr == nil {
			blockErr = it.Err()
		}
		if blockErr != nil {
			out.damaged = append(out.damaged, b)
			out.lostGames += uint64(r.Descriptor(b).Games) - read
		}
	}
	return nil
}
