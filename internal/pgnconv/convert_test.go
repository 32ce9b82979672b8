package pgnconv_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/freeeve/cbin/internal/archive"
	"github.com/freeeve/cbin/internal/pgnconv"
)

const testPGN = `[Event "Test Open"]
[Site "London"]
[Date "2024.01.01"]
[Round "1"]
[White "Adams"]
[Black "Baird"]
[Result "1-0"]

1. e4 e5 2. Nf3 Nc6 3. Bc4 1-0

[Event "Test Open"]
[Site "London"]
[Date "2024.01.02"]
[Round "2"]
[White "Clarke"]
[Black "Dunn"]
[Result "0-1"]

1. e4 d5 2. exd5 Qxd5 0-1

`

func convertPGN(t *testing.T, text string, cfg pgnconv.ConvertConfig) (*archive.Reader, pgnconv.ConvertStats) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "games.pgn")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write pgn: %v", err)
	}

	b := archive.NewBuilder(archive.BuilderConfig{})
	c := pgnconv.NewConverter(b, cfg)
	stats, err := c.ConvertFile(t.Context(), path)
	if err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}
	var buf bytes.Buffer
	if _, err := b.Finish(&buf); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	r, err := archive.OpenBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r, stats
}

func TestConvertFile(t *testing.T) {
	r, stats := convertPGN(t, testPGN, pgnconv.ConvertConfig{})
	if stats.Games != 2 || stats.Skipped != 0 {
		t.Fatalf("stats = %+v, want 2 games, 0 skipped", stats)
	}
	if r.GameCount() != 2 {
		t.Fatalf("archive holds %d games, want 2", r.GameCount())
	}

	gv, err := r.Get(0)
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	rec, err := gv.Record()
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.White != "Adams" || rec.Black != "Baird" || rec.Site != "London" || rec.Result != "1-0" {
		t.Errorf("game 0 metadata = %+v", rec)
	}
	if len(rec.Tags) != 1 || rec.Tags[0].Key != "Round" || rec.Tags[0].Value != "1" {
		t.Errorf("game 0 extra tags = %v, want Round=1", rec.Tags)
	}
	if len(rec.Moves) != 5 {
		t.Fatalf("game 0 has %d moves, want 5", len(rec.Moves))
	}
	if got := rec.Moves[0].String(); got != "e4" {
		t.Errorf("move 1 = %q, want e4", got)
	}
	if got := rec.Moves[2].String(); got != "Ng1f3" {
		t.Errorf("move 3 = %q, want Ng1f3", got)
	}
}

func TestConvertDerivesCaptures(t *testing.T) {
	r, _ := convertPGN(t, testPGN, pgnconv.ConvertConfig{})
	gv, err := r.Get(1)
	if err != nil {
		t.Fatalf("Get(1): %v", err)
	}
	moves, err := gv.Moves()
	if err != nil {
		t.Fatalf("Moves: %v", err)
	}
	if len(moves) != 4 {
		t.Fatalf("game 1 has %d moves, want 4", len(moves))
	}
	if !moves[2].IsCapture() || moves[2].String() != "exd5" {
		t.Errorf("move 3 = %q (capture=%v), want exd5", moves[2], moves[2].IsCapture())
	}
	if !moves[3].IsCapture() || moves[3].String() != "Qd8xd5" {
		t.Errorf("move 4 = %q (capture=%v), want Qd8xd5", moves[3], moves[3].IsCapture())
	}
}

func TestConvertSharedMetadataDedups(t *testing.T) {
	r, _ := convertPGN(t, testPGN, pgnconv.ConvertConfig{})
	// Both games share Event and Site strings.
	if n := r.TableLen(archive.CategoryEvent); n != 2 {
		t.Errorf("event table holds %d entries, want 2 (Test Open, London)", n)
	}
}

func TestConvertMaxGames(t *testing.T) {
	r, stats := convertPGN(t, testPGN, pgnconv.ConvertConfig{MaxGames: 1})
	if stats.Games != 1 {
		t.Fatalf("stats.Games = %d, want 1", stats.Games)
	}
	if r.GameCount() != 1 {
		t.Errorf("archive holds %d games, want 1", r.GameCount())
	}
}
