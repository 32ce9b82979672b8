package pgnconv

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"github.com/freeeve/cbin/internal/archive"
	"github.com/freeeve/cbin/internal/game"
)

// movetextWidth is the soft line width for exported movetext.
const movetextWidth = 80

// ExportConfig configures an Exporter. The zero value is usable.
type ExportConfig struct {
	Logger zerolog.Logger
}

// Exporter renders archived games back to PGN text.
type Exporter struct {
	log zerolog.Logger
}

func NewExporter(cfg ExportConfig) *Exporter {
	return &Exporter{log: cfg.Logger}
}

// ExportFile writes games [first, first+count) of the archive to path
// as PGN, count 0 meaning through the end. A path ending in .zst is
// zstd-compressed. The file is created fresh; partial output is
// removed on error.
func (e *Exporter) ExportFile(ctx context.Context, r *archive.Reader, path string, first, count uint64) (int64, error) {
	hi := r.GameCount()
	if count > 0 && first+count < hi {
		hi = first + count
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := e.export(ctx, r, f, first, hi)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return n, err
	}
	return n, nil
}

func (e *Exporter) export(ctx context.Context, r *archive.Reader, f *os.File, lo, hi uint64) (int64, error) {
	var w io.Writer = f
	var zw *zstd.Encoder
	if strings.HasSuffix(f.Name(), ".zst") {
		enc, err := zstd.NewWriter(f)
		if err != nil {
			return 0, fmt.Errorf("zstd writer: %w", err)
		}
		zw = enc
		w = enc
	}
	bw := bufio.NewWriter(w)

	start := time.Now()
	lastLog := start
	var written int64
	it := r.GamesRange(lo, hi)
	for it.Next() {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}
		rec, err := it.Game().Record()
		if err != nil {
			return written, fmt.Errorf("game %d: %w", it.Game().Index(), err)
		}
		if err := WriteGame(bw, rec); err != nil {
			return written, err
		}
		written++
		if time.Since(lastLog) > 10*time.Second {
			e.log.Info().
				Int64("games", written).
				Float64("games_per_sec", float64(written)/time.Since(start).Seconds()).
				Msg("export progress")
			lastLog = time.Now()
		}
	}
	if err := it.Err(); err != nil {
		return written, err
	}
	if err := bw.Flush(); err != nil {
		return written, err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return written, err
		}
	}
	return written, nil
}

// WriteGame writes one game as PGN: the seven-tag roster (absent values
// render as "?", absent results as "*"), any extra tags, a blank line,
// then movetext terminated by the result.
func WriteGame(w io.Writer, rec *game.Record) error {
	result := rec.Result
	if result == "" {
		result = "*"
	}
	roster := [...][2]string{
		{"Event", orUnknown(rec.Event)},
		{"Site", orUnknown(rec.Site)},
		{"Date", orUnknown(rec.Date)},
		{"White", orUnknown(rec.White)},
		{"Black", orUnknown(rec.Black)},
		{"Result", result},
	}
	for _, tag := range roster {
		if _, err := fmt.Fprintf(w, "[%s %q]\n", tag[0], tag[1]); err != nil {
			return err
		}
	}
	if rec.ECO != "" {
		if _, err := fmt.Fprintf(w, "[ECO %q]\n", rec.ECO); err != nil {
			return err
		}
	}
	for _, tag := range rec.Tags {
		if _, err := fmt.Fprintf(w, "[%s %q]\n", tag.Key, tag.Value); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	if _, err := io.WriteString(w, movetext(rec.Moves, result)); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n\n")
	return err
}

// movetext renders the move list with move numbers, soft-wrapped, with
// the result token appended.
func movetext(moves []game.Move, result string) string {
	var sb strings.Builder
	line := 0
	emit := func(tok string) {
		if line > 0 && line+1+len(tok) > movetextWidth {
			sb.WriteByte('\n')
			line = 0
		} else if line > 0 {
			sb.WriteByte(' ')
			line++
		}
		sb.WriteString(tok)
		line += len(tok)
	}
	for i, m := range moves {
		if i%2 == 0 {
			emit(fmt.Sprintf("%d.", i/2+1))
		}
		emit(m.String())
	}
	emit(result)
	return sb.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
