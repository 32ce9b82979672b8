package archive_test

import (
	"testing"

	"github.com/freeeve/cbin/internal/archive"
)

// manyBlockArchive builds an archive whose tiny byte target forces one
// block per game or close to it.
func manyBlockArchive(t *testing.T, games int) *archive.Reader {
	t.Helper()
	data := buildArchive(t, testRecords(games), archive.BuilderConfig{BlockTargetBytes: 1})
	return openArchive(t, data)
}

func TestSplitInvalidN(t *testing.T) {
	if chunks := archive.SplitIndex(nil, 0); chunks != nil {
		t.Errorf("SplitIndex(nil, 0) = %v, want nil", chunks)
	}
	if chunks := archive.SplitIndex(nil, -3); chunks != nil {
		t.Errorf("SplitIndex(nil, -3) = %v, want nil", chunks)
	}
}

func TestSplitEmptyIndex(t *testing.T) {
	chunks := archive.SplitIndex(nil, 4)
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}
	for i, c := range chunks {
		if c.BlockCount != 0 || c.Bytes != 0 || c.Games != 0 {
			t.Errorf("chunk %d = %+v, want empty", i, c)
		}
	}
}

func TestSplitCoversIndex(t *testing.T) {
	r := manyBlockArchive(t, 23)
	index := r.Index()
	if len(index) < 4 {
		t.Fatalf("want several blocks, got %d", len(index))
	}

	for _, n := range []int{1, 2, 3, 5, len(index), len(index) + 3} {
		chunks := r.Split(n)
		if len(chunks) != n {
			t.Fatalf("Split(%d) returned %d chunks", n, len(chunks))
		}

		nextBlock := 0
		var games, bytes uint64
		for i, c := range chunks {
			if c.FirstBlock != nextBlock {
				t.Errorf("n=%d chunk %d starts at block %d, want %d", n, i, c.FirstBlock, nextBlock)
			}
			if c.BlockCount > 0 {
				first := index[c.FirstBlock]
				if c.Offset != first.Offset {
					t.Errorf("n=%d chunk %d offset %d, want %d", n, i, c.Offset, first.Offset)
				}
				last := index[c.FirstBlock+c.BlockCount-1]
				if c.End() != last.End() {
					t.Errorf("n=%d chunk %d end %d, want %d", n, i, c.End(), last.End())
				}
			}
			nextBlock += c.BlockCount
			games += c.Games
			bytes += c.Bytes
		}
		if nextBlock != len(index) {
			t.Errorf("n=%d chunks cover %d blocks, index has %d", n, nextBlock, len(index))
		}
		if games != r.GameCount() {
			t.Errorf("n=%d chunks hold %d games, archive has %d", n, games, r.GameCount())
		}
		var total uint64
		for _, d := range index {
			total += d.Length
		}
		if bytes != total {
			t.Errorf("n=%d chunks hold %d bytes, payload region has %d", n, bytes, total)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	r := manyBlockArchive(t, 17)
	for _, n := range []int{2, 4, 7} {
		a := r.Split(n)
		b := r.Split(n)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("n=%d chunk %d differs between runs: %+v vs %+v", n, i, a[i], b[i])
			}
		}
	}
}

func TestSplitBalancesUniformBlocks(t *testing.T) {
	index := make([]archive.BlockDescriptor, 12)
	var off uint64
	for i := range index {
		index[i] = archive.BlockDescriptor{Offset: off, Length: 100, Games: 10}
		off += 100
	}

	chunks := archive.SplitIndex(index, 4)
	for i, c := range chunks {
		if c.BlockCount != 3 {
			t.Errorf("chunk %d holds %d blocks, want 3", i, c.BlockCount)
		}
		if c.Bytes != 300 {
			t.Errorf("chunk %d holds %d bytes, want 300", i, c.Bytes)
		}
	}
}

func TestSplitNeverSplitsABlock(t *testing.T) {
	// One giant block followed by small ones: the giant block must land
	// whole in the first chunk, never shared.
	index := []archive.BlockDescriptor{
		{Offset: 0, Length: 1000, Games: 5},
		{Offset: 1000, Length: 50, Games: 1},
		{Offset: 1050, Length: 50, Games: 1},
		{Offset: 1100, Length: 50, Games: 1},
	}
	chunks := archive.SplitIndex(index, 2)
	if chunks[0].BlockCount != 1 || chunks[0].Bytes != 1000 {
		t.Errorf("chunk 0 = %+v, want the single giant block", chunks[0])
	}
	if chunks[1].BlockCount != 3 || chunks[1].Bytes != 150 {
		t.Errorf("chunk 1 = %+v, want the three small blocks", chunks[1])
	}
}

func TestParallelScanEquivalence(t *testing.T) {
	recs := testRecords(31)
	data := buildArchive(t, recs, archive.BuilderConfig{BlockTargetBytes: 1})
	r := openArchive(t, data)

	for _, n := range []int{1, 2, 3, 4, 9, r.BlockCount() + 2} {
		var got []*archive.GameView
		for _, c := range r.Split(n) {
			it := r.ChunkGames(c)
			for it.Next() {
				got = append(got, it.Game())
			}
			if err := it.Err(); err != nil {
				t.Fatalf("n=%d chunk scan: %v", n, err)
			}
		}
		if len(got) != len(recs) {
			t.Fatalf("n=%d yielded %d games, want %d", n, len(got), len(recs))
		}
		for i, gv := range got {
			if gv.Index() != uint64(i) {
				t.Fatalf("n=%d game %d has index %d", n, i, gv.Index())
			}
			rec, err := gv.Record()
			if err != nil {
				t.Fatalf("n=%d game %d: %v", n, i, err)
			}
			if !recordsEqual(rec, recs[i]) {
				t.Errorf("n=%d game %d differs from sequential order", n, i)
			}
		}
	}
}
