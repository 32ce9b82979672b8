package wire

import (
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
)

// ErrMalformed reports a payload whose structure does not survive
// bounds validation. It is wrapped with positional detail.
var ErrMalformed = errors.New("malformed block payload")

// Block is a validated view over one block payload. The zero value is
// not usable; construct with NewBlock.
type Block struct {
	buf []byte
	vec uint64 // byte offset of the first games-vector element
	n   int
}

// Game is a validated view over one game table. Accessors are plain
// reads and cannot fail after construction.
type Game struct {
	buf      []byte
	pos      uint64
	vt       uint64
	vtLen    uint16
	tblLen   uint16
	movesVec uint64
	movesLen int
	tagsVec  uint64
	tagsLen  int // id count, always even
}

// NewBlock validates the root table and games vector header of a
// payload and returns a view over it. Individual games are validated
// on access.
func NewBlock(payload []byte) (Block, error) {
	size := uint64(len(payload))
	if size < flatbuffers.SizeUOffsetT {
		return Block{}, fmt.Errorf("%w: short root offset", ErrMalformed)
	}
	root := uint64(flatbuffers.GetUOffsetT(payload))
	vt, vtLen, tblLen, err := verifyTable(payload, root)
	if err != nil {
		return Block{}, fmt.Errorf("root table: %w", err)
	}
	fo := fieldOffset(payload, vt, vtLen, fieldGames)
	if fo == 0 {
		return Block{buf: payload}, nil
	}
	if uint64(fo)+flatbuffers.SizeUOffsetT > uint64(tblLen) {
		return Block{}, fmt.Errorf("%w: games field outside table", ErrMalformed)
	}
	vec, n, err := verifyU32Vector(payload, root+uint64(fo))
	if err != nil {
		return Block{}, fmt.Errorf("games vector: %w", err)
	}
	return Block{buf: payload, vec: vec, n: int(n)}, nil
}

// GameCount returns the number of games in the block.
func (b Block) GameCount() int {
	return b.n
}

// Game validates game i and returns its view. The work per call is
// constant: one vtable walk, no touch of other games.
func (b Block) Game(i int) (Game, error) {
	if i < 0 || i >= b.n {
		return Game{}, fmt.Errorf("%w: game %d of %d", ErrMalformed, i, b.n)
	}
	elem := b.vec + uint64(i)*flatbuffers.SizeUOffsetT
	pos := elem + uint64(flatbuffers.GetUOffsetT(b.buf[elem:]))
	vt, vtLen, tblLen, err := verifyTable(b.buf, pos)
	if err != nil {
		return Game{}, fmt.Errorf("game %d: %w", i, err)
	}
	g := Game{buf: b.buf, pos: pos, vt: vt, vtLen: vtLen, tblLen: tblLen}
	for _, f := range [...]uint16{fieldWhite, fieldBlack, fieldEvent, fieldSite, fieldResult, fieldDate, fieldECO, fieldOpening} {
		if fo := fieldOffset(b.buf, vt, vtLen, f); fo != 0 {
			if uint64(fo)+4 > uint64(tblLen) {
				return Game{}, fmt.Errorf("%w: game %d field %d outside table", ErrMalformed, i, f)
			}
		}
	}
	if fo := fieldOffset(b.buf, vt, vtLen, fieldMoves); fo != 0 {
		if uint64(fo)+flatbuffers.SizeUOffsetT > uint64(tblLen) {
			return Game{}, fmt.Errorf("%w: game %d moves field outside table", ErrMalformed, i)
		}
		vec, n, err := verifyU32Vector(b.buf, pos+uint64(fo))
		if err != nil {
			return Game{}, fmt.Errorf("game %d moves: %w", i, err)
		}
		g.movesVec, g.movesLen = vec, int(n)
	}
	if fo := fieldOffset(b.buf, vt, vtLen, fieldTags); fo != 0 {
		if uint64(fo)+flatbuffers.SizeUOffsetT > uint64(tblLen) {
			return Game{}, fmt.Errorf("%w: game %d tags field outside table", ErrMalformed, i)
		}
		vec, n, err := verifyU32Vector(b.buf, pos+uint64(fo))
		if err != nil {
			return Game{}, fmt.Errorf("game %d tags: %w", i, err)
		}
		if n%2 != 0 {
			return Game{}, fmt.Errorf("%w: game %d tags length %d odd", ErrMalformed, i, n)
		}
		g.tagsVec, g.tagsLen = vec, int(n)
	}
	return g, nil
}

func (g Game) scalar(vtOff uint16) uint32 {
	fo := fieldOffset(g.buf, g.vt, g.vtLen, vtOff)
	if fo == 0 {
		return NilID
	}
	return flatbuffers.GetUint32(g.buf[g.pos+uint64(fo):])
}

func (g Game) WhiteID() uint32   { return g.scalar(fieldWhite) }
func (g Game) BlackID() uint32   { return g.scalar(fieldBlack) }
func (g Game) EventID() uint32   { return g.scalar(fieldEvent) }
func (g Game) SiteID() uint32    { return g.scalar(fieldSite) }
func (g Game) ResultID() uint32  { return g.scalar(fieldResult) }
func (g Game) DateID() uint32    { return g.scalar(fieldDate) }
func (g Game) ECOID() uint32     { return g.scalar(fieldECO) }
func (g Game) OpeningID() uint32 { return g.scalar(fieldOpening) }

// MovesLen returns the number of inline move tokens (the interned
// opening prefix, if any, is not included).
func (g Game) MovesLen() int {
	return g.movesLen
}

// MoveAt returns inline move token i without copying.
func (g Game) MoveAt(i int) uint32 {
	return flatbuffers.GetUint32(g.buf[g.movesVec+uint64(i)*4:])
}

// TagsLen returns the number of extra tag pairs.
func (g Game) TagsLen() int {
	return g.tagsLen / 2
}

// TagKeyAt returns the interned key id of tag pair i.
func (g Game) TagKeyAt(i int) uint32 {
	return flatbuffers.GetUint32(g.buf[g.tagsVec+uint64(i)*8:])
}

// TagValueAt returns the interned value id of tag pair i.
func (g Game) TagValueAt(i int) uint32 {
	return flatbuffers.GetUint32(g.buf[g.tagsVec+uint64(i)*8+4:])
}

// verifyTable bounds-checks a table's soffset, vtable, and inline data
// region against the payload.
func verifyTable(buf []byte, pos uint64) (vt uint64, vtLen, tblLen uint16, err error) {
	size := uint64(len(buf))
	if pos+flatbuffers.SizeSOffsetT > size {
		return 0, 0, 0, fmt.Errorf("%w: table position %d past end", ErrMalformed, pos)
	}
	soff := int64(flatbuffers.GetSOffsetT(buf[pos:]))
	v := int64(pos) - soff
	if v < 0 || uint64(v)+4 > size {
		return 0, 0, 0, fmt.Errorf("%w: vtable offset out of range", ErrMalformed)
	}
	vt = uint64(v)
	vtLen = flatbuffers.GetUint16(buf[vt:])
	tblLen = flatbuffers.GetUint16(buf[vt+2:])
	if vtLen < 4 || vtLen%2 != 0 || vt+uint64(vtLen) > size {
		return 0, 0, 0, fmt.Errorf("%w: vtable length %d invalid", ErrMalformed, vtLen)
	}
	if uint64(tblLen) < flatbuffers.SizeSOffsetT || pos+uint64(tblLen) > size {
		return 0, 0, 0, fmt.Errorf("%w: table length %d out of range", ErrMalformed, tblLen)
	}
	return vt, vtLen, tblLen, nil
}

// fieldOffset reads the vtable entry for a field, returning 0 when the
// field is absent (or the vtable is too short to hold it).
func fieldOffset(buf []byte, vt uint64, vtLen uint16, vtOff uint16) uint16 {
	if vtOff+2 > vtLen {
		return 0
	}
	return flatbuffers.GetUint16(buf[vt+uint64(vtOff):])
}

// verifyU32Vector follows a vector field's uoffset and checks the
// length prefix and element region. fieldPos must already be validated
// as readable.
func verifyU32Vector(buf []byte, fieldPos uint64) (vec uint64, n uint32, err error) {
	size := uint64(len(buf))
	uoff := uint64(flatbuffers.GetUOffsetT(buf[fieldPos:]))
	if uoff == 0 {
		return 0, 0, fmt.Errorf("%w: zero vector offset", ErrMalformed)
	}
	vpos := fieldPos + uoff
	if vpos+flatbuffers.SizeUOffsetT > size {
		return 0, 0, fmt.Errorf("%w: vector header past end", ErrMalformed)
	}
	n = uint32(flatbuffers.GetUOffsetT(buf[vpos:]))
	vec = vpos + flatbuffers.SizeUOffsetT
	if vec+uint64(n)*4 > size {
		return 0, 0, fmt.Errorf("%w: vector of %d elements past end", ErrMalformed, n)
	}
	return vec, n, nil
}
