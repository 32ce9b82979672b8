package wire_test

import (
	"testing"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/freeeve/cbin/internal/wire"
)

// buildPayload encodes the games into a standalone block payload.
func buildPayload(t *testing.T, games []*wire.EncodedGame) []byte {
	t.Helper()
	fbb := flatbuffers.NewBuilder(1024)
	offs := make([]flatbuffers.UOffsetT, 0, len(games))
	for _, g := range games {
		offs = append(offs, wire.AppendGame(fbb, g))
	}
	payload := wire.FinishBlock(fbb, offs)
	return append([]byte(nil), payload...)
}

// walkBlock decodes the payload and reads every field of every game.
func walkBlock(payload []byte) error {
	blk, err := wire.NewBlock(payload)
	if err != nil {
		return err
	}
	for i := 0; i < blk.GameCount(); i++ {
		g, err := blk.Game(i)
		if err != nil {
			return err
		}
		_ = g.WhiteID() + g.BlackID() + g.EventID() + g.SiteID()
		_ = g.ResultID() + g.DateID() + g.ECOID() + g.OpeningID()
		for m := 0; m < g.MovesLen(); m++ {
			_ = g.MoveAt(m)
		}
		for p := 0; p < g.TagsLen(); p++ {
			_ = g.TagKeyAt(p)
			_ = g.TagValueAt(p)
		}
	}
	return nil
}

func safeWalk(payload []byte) (err error, panicked any) {
	defer func() { panicked = recover() }()
	err = walkBlock(payload)
	return
}

func TestBlockRoundTrip(t *testing.T) {
	games := []*wire.EncodedGame{
		{
			White: 0, Black: 1, Event: 2, Site: 3, Result: 4, Date: 5,
			ECO: 6, Opening: 0,
			Moves: []uint32{100, 200, 300},
			Tags:  []uint32{7, 8, 9, 10},
		},
		{
			White: wire.NilID, Black: wire.NilID, Event: wire.NilID,
			Site: wire.NilID, Result: wire.NilID, Date: wire.NilID,
			ECO: wire.NilID, Opening: wire.NilID,
		},
		{
			White: 11, Black: 0, Event: wire.NilID, Site: wire.NilID,
			Result: 4, Date: wire.NilID, ECO: wire.NilID, Opening: 1,
			Moves: []uint32{400},
		},
	}
	payload := buildPayload(t, games)

	blk, err := wire.NewBlock(payload)
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	if blk.GameCount() != 3 {
		t.Fatalf("GameCount = %d, want 3", blk.GameCount())
	}

	g0, err := blk.Game(0)
	if err != nil {
		t.Fatalf("Game(0): %v", err)
	}
	if g0.WhiteID() != 0 || g0.BlackID() != 1 || g0.EventID() != 2 || g0.SiteID() != 3 {
		t.Errorf("game 0 ids = %d %d %d %d", g0.WhiteID(), g0.BlackID(), g0.EventID(), g0.SiteID())
	}
	if g0.ResultID() != 4 || g0.DateID() != 5 || g0.ECOID() != 6 || g0.OpeningID() != 0 {
		t.Errorf("game 0 ids = %d %d %d %d", g0.ResultID(), g0.DateID(), g0.ECOID(), g0.OpeningID())
	}
	if g0.MovesLen() != 3 {
		t.Fatalf("game 0 MovesLen = %d, want 3", g0.MovesLen())
	}
	for m, want := range []uint32{100, 200, 300} {
		if got := g0.MoveAt(m); got != want {
			t.Errorf("game 0 move %d = %d, want %d", m, got, want)
		}
	}
	if g0.TagsLen() != 2 {
		t.Fatalf("game 0 TagsLen = %d, want 2", g0.TagsLen())
	}
	if g0.TagKeyAt(0) != 7 || g0.TagValueAt(0) != 8 || g0.TagKeyAt(1) != 9 || g0.TagValueAt(1) != 10 {
		t.Errorf("game 0 tags = %d %d %d %d", g0.TagKeyAt(0), g0.TagValueAt(0), g0.TagKeyAt(1), g0.TagValueAt(1))
	}

	g1, err := blk.Game(1)
	if err != nil {
		t.Fatalf("Game(1): %v", err)
	}
	if g1.WhiteID() != wire.NilID || g1.OpeningID() != wire.NilID {
		t.Errorf("game 1 absent ids = %d %d, want NilID", g1.WhiteID(), g1.OpeningID())
	}
	if g1.MovesLen() != 0 || g1.TagsLen() != 0 {
		t.Errorf("game 1 lens = %d %d, want 0 0", g1.MovesLen(), g1.TagsLen())
	}

	g2, err := blk.Game(2)
	if err != nil {
		t.Fatalf("Game(2): %v", err)
	}
	if g2.OpeningID() != 1 || g2.MovesLen() != 1 || g2.MoveAt(0) != 400 {
		t.Errorf("game 2 = opening %d moves %d", g2.OpeningID(), g2.MovesLen())
	}
}

func TestEmptyBlock(t *testing.T) {
	payload := buildPayload(t, nil)
	blk, err := wire.NewBlock(payload)
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	if blk.GameCount() != 0 {
		t.Errorf("GameCount = %d, want 0", blk.GameCount())
	}
}

func TestVectorLengthsDecodeExactly(t *testing.T) {
	moves := make([]uint32, 301)
	for i := range moves {
		moves[i] = uint32(i * 3)
	}
	tags := make([]uint32, 64)
	for i := range tags {
		tags[i] = uint32(i)
	}
	payload := buildPayload(t, []*wire.EncodedGame{
		{White: 1, Moves: moves, Tags: tags},
		{White: 2},
	})

	blk, err := wire.NewBlock(payload)
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	if blk.GameCount() != 2 {
		t.Fatalf("GameCount = %d, want 2", blk.GameCount())
	}
	g, err := blk.Game(0)
	if err != nil {
		t.Fatalf("Game(0): %v", err)
	}
	if g.MovesLen() != len(moves) {
		t.Fatalf("MovesLen = %d, want %d", g.MovesLen(), len(moves))
	}
	if g.TagsLen() != len(tags)/2 {
		t.Fatalf("TagsLen = %d, want %d", g.TagsLen(), len(tags)/2)
	}
	if got := g.MoveAt(len(moves) - 1); got != moves[len(moves)-1] {
		t.Errorf("last move = %d, want %d", got, moves[len(moves)-1])
	}
}

func TestGameIndexOutOfRange(t *testing.T) {
	payload := buildPayload(t, []*wire.EncodedGame{{White: 1}})
	blk, err := wire.NewBlock(payload)
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	if _, err := blk.Game(1); err == nil {
		t.Error("Game(1) on 1-game block succeeded")
	}
	if _, err := blk.Game(-1); err == nil {
		t.Error("Game(-1) succeeded")
	}
}

func TestShortPayloadRejected(t *testing.T) {
	for _, payload := range [][]byte{nil, {}, {1}, {1, 2, 3}} {
		if _, err := wire.NewBlock(payload); err == nil {
			t.Errorf("NewBlock(%d bytes) succeeded", len(payload))
		}
	}
}

func TestTruncatedPayloadErrorsNotPanics(t *testing.T) {
	payload := buildPayload(t, []*wire.EncodedGame{
		{White: 1, Black: 2, Moves: []uint32{10, 20, 30, 40}, Tags: []uint32{1, 2}},
		{White: 3, Black: 4, Moves: []uint32{50}},
	})
	for cut := 0; cut < len(payload); cut++ {
		err, panicked := safeWalk(payload[:cut])
		if panicked != nil {
			t.Fatalf("walk of %d-byte prefix panicked: %v", cut, panicked)
		}
		_ = err
	}
}

func TestMutatedPayloadNeverPanics(t *testing.T) {
	payload := buildPayload(t, []*wire.EncodedGame{
		{White: 1, Black: 2, Event: 3, Moves: []uint32{10, 20}, Tags: []uint32{4, 5}},
		{White: 6, Opening: 0, Moves: []uint32{30}},
	})
	for i := range payload {
		orig := payload[i]
		for _, b := range []byte{0x00, 0xFF, orig ^ 0x55} {
			payload[i] = b
			if _, panicked := safeWalk(payload); panicked != nil {
				t.Fatalf("walk with byte %d = %#x panicked: %v", i, b, panicked)
			}
		}
		payload[i] = orig
	}
	if err := walkBlock(payload); err != nil {
		t.Fatalf("restored payload no longer walks: %v", err)
	}
}
