// Package wire implements the block payload codec.
//
// A payload is a FlatBuffers buffer with this schema:
//
//	table Game {
//	  white:   uint32 = NilID;   // interned ids into the archive dedup tables
//	  black:   uint32 = NilID;
//	  event:   uint32 = NilID;
//	  site:    uint32 = NilID;
//	  result:  uint32 = NilID;
//	  date:    uint32 = NilID;
//	  eco:     uint32 = NilID;
//	  opening: uint32 = NilID;   // interned opening token sequence
//	  moves:   [uint32];         // move tokens after the opening prefix
//	  tags:    [uint32];         // flattened key,value id pairs
//	}
//	table Block { games: [Game]; }
//
// The vtable indirection is what gives O(1) access to any game in a
// block without touching the others. Views never copy payload bytes;
// decode validates structure once so the accessors that follow cannot
// read out of bounds on corrupt input.
package wire

import (
	flatbuffers "github.com/google/flatbuffers/go"
)

// NilID marks an absent interned reference. It is the encoded default
// for all id fields, so absent metadata costs no payload bytes.
const NilID uint32 = 0xFFFFFFFF

// Game field vtable offsets (slot i lives at 4 + 2i).
const (
	fieldWhite   = 4
	fieldBlack   = 6
	fieldEvent   = 8
	fieldSite    = 10
	fieldResult  = 12
	fieldDate    = 14
	fieldECO     = 16
	fieldOpening = 18
	fieldMoves   = 20
	fieldTags    = 22

	gameNumFields  = 10
	blockNumFields = 1
	fieldGames     = 4
)

// EncodedGame is one game with metadata already interned. Moves and
// Tags are encoded as-is; Tags must hold an even number of ids
// (key,value pairs).
type EncodedGame struct {
	White   uint32
	Black   uint32
	Event   uint32
	Site    uint32
	Result  uint32
	Date    uint32
	ECO     uint32
	Opening uint32
	Moves   []uint32
	Tags    []uint32
}

// AppendGame encodes one game table into the running builder and
// returns its offset for the block's games vector.
func AppendGame(b *flatbuffers.Builder, g *EncodedGame) flatbuffers.UOffsetT {
	var movesOff, tagsOff flatbuffers.UOffsetT
	if len(g.Moves) > 0 {
		b.StartVector(4, len(g.Moves), 4)
		for i := len(g.Moves) - 1; i >= 0; i-- {
			b.PrependUint32(g.Moves[i])
		}
		movesOff = b.EndVector(len(g.Moves))
	}
	if len(g.Tags) > 0 {
		b.StartVector(4, len(g.Tags), 4)
		for i := len(g.Tags) - 1; i >= 0; i-- {
			b.PrependUint32(g.Tags[i])
		}
		tagsOff = b.EndVector(len(g.Tags))
	}
	b.StartObject(gameNumFields)
	b.PrependUint32Slot(0, g.White, NilID)
	b.PrependUint32Slot(1, g.Black, NilID)
	b.PrependUint32Slot(2, g.Event, NilID)
	b.PrependUint32Slot(3, g.Site, NilID)
	b.PrependUint32Slot(4, g.Result, NilID)
	b.PrependUint32Slot(5, g.Date, NilID)
	b.PrependUint32Slot(6, g.ECO, NilID)
	b.PrependUint32Slot(7, g.Opening, NilID)
	if movesOff != 0 {
		b.PrependUOffsetTSlot(8, movesOff, 0)
	}
	if tagsOff != 0 {
		b.PrependUOffsetTSlot(9, tagsOff, 0)
	}
	return b.EndObject()
}

// FinishBlock closes the block around the given game offsets and
// returns the finished payload. The returned slice aliases the
// builder's buffer and is valid until the next Reset.
func FinishBlock(b *flatbuffers.Builder, games []flatbuffers.UOffsetT) []byte {
	b.StartVector(4, len(games), 4)
	for i := len(games) - 1; i >= 0; i-- {
		b.PrependUOffsetT(games[i])
	}
	vec := b.EndVector(len(games))
	b.StartObject(blockNumFields)
	b.PrependUOffsetTSlot(0, vec, 0)
	root := b.EndObject()
	b.Finish(root)
	return b.FinishedBytes()
}
