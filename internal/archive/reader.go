package archive

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/freeeve/cbin/internal/game"
	"github.com/freeeve/cbin/internal/mmap"
	"github.com/freeeve/cbin/internal/wire"
)

// blockCacheSize bounds how many decoded block views a reader keeps.
const blockCacheSize = 32

// Reader serves an archive read-only. Open validates the header, dedup
// tables, and block index eagerly; block payloads are validated only
// when first accessed, so damage to one block never blocks the rest.
// A Reader is safe for concurrent use by any number of goroutines.
type Reader struct {
	data   []byte
	f      *os.File
	mapped bool

	gameCount  uint64
	tables     [NumCategories][][]byte
	index      []BlockDescriptor
	cum        []uint64 // cum[i] = games before block i
	payloadEnd uint64

	cache *lru.Cache[int, *BlockView]
}

// Open maps the archive at path read-only and validates its metadata.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() < HeaderSize {
		f.Close()
		return nil, fmt.Errorf("%w: %d byte file", ErrTruncatedArchive, fi.Size())
	}
	data, err := mmap.Map(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("map %s: %w", path, err)
	}
	r, err := newReader(data)
	if err != nil {
		mmap.Unmap(data)
		f.Close()
		return nil, err
	}
	r.f = f
	r.mapped = true
	return r, nil
}

// OpenBytes serves an archive already held in memory. The reader
// aliases buf; the caller must keep it unchanged.
func OpenBytes(buf []byte) (*Reader, error) {
	return newReader(buf)
}

func newReader(data []byte) (*Reader, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	tables, tn, err := decodeTables(data[HeaderSize:], h.TableCount)
	if err != nil {
		return nil, err
	}
	index, in, err := decodeIndex(data[HeaderSize+tn:])
	if err != nil {
		return nil, err
	}
	blockBase := uint64(HeaderSize + tn + in)

	cum := make([]uint64, len(index)+1)
	expect := blockBase
	var sum uint64
	for i, d := range index {
		if d.Offset != expect {
			return nil, fmt.Errorf("%w: block %d at offset %d, want %d", ErrCorruptArchive, i, d.Offset, expect)
		}
		if d.Length < FramePrefixSize || d.Length > ^uint64(0)-d.Offset {
			return nil, fmt.Errorf("%w: block %d length %d", ErrCorruptArchive, i, d.Length)
		}
		expect = d.End()
		sum += uint64(d.Games)
		cum[i+1] = sum
	}
	if sum != h.GameCount {
		return nil, fmt.Errorf("%w: blocks hold %d games, header says %d", ErrCorruptArchive, sum, h.GameCount)
	}

	cache, err := lru.New[int, *BlockView](blockCacheSize)
	if err != nil {
		return nil, err
	}
	return &Reader{
		data:       data,
		gameCount:  h.GameCount,
		tables:     tables,
		index:      index,
		cum:        cum,
		payloadEnd: expect,
		cache:      cache,
	}, nil
}

// Close releases the mapping. Views handed out by this reader must not
// be used afterwards.
func (r *Reader) Close() error {
	if r.data == nil {
		return nil
	}
	r.cache.Purge()
	var err error
	if r.mapped {
		err = mmap.Unmap(r.data)
	}
	r.data = nil
	if r.f != nil {
		if cerr := r.f.Close(); err == nil {
			err = cerr
		}
		r.f = nil
	}
	return err
}

// GameCount returns the total number of games in the archive.
func (r *Reader) GameCount() uint64 {
	return r.gameCount
}

// BlockCount returns the number of blocks.
func (r *Reader) BlockCount() int {
	return len(r.index)
}

// Descriptor returns block i's index entry. i must be in range.
func (r *Reader) Descriptor(i int) BlockDescriptor {
	return r.index[i]
}

// Index returns the block index. Treat it as read-only.
func (r *Reader) Index() []BlockDescriptor {
	return r.index
}

// TableLen returns the number of dedup entries in a category.
func (r *Reader) TableLen(cat Category) int {
	if cat >= NumCategories {
		return 0
	}
	return len(r.tables[cat])
}

// lookup resolves an interned id. NilID resolves to nil with no error.
func (r *Reader) lookup(cat Category, id uint32) ([]byte, error) {
	if id == NilID {
		return nil, nil
	}
	t := r.tables[cat]
	if id >= uint32(len(t)) {
		return nil, fmt.Errorf("%w: %s id %d, table holds %d", ErrDanglingReference, cat, id, len(t))
	}
	return t[id], nil
}

// Block validates and decodes block i, serving repeats from the view
// cache. The returned errors distinguish a block that extends past the
// end of the file (ErrTruncatedArchive) from one whose framing or
// payload structure is damaged (ErrCorruptBlock).
func (r *Reader) Block(i int) (*BlockView, error) {
	if r.data == nil {
		return nil, ErrReaderClosed
	}
	if i < 0 || i >= len(r.index) {
		return nil, fmt.Errorf("%w: block %d of %d", ErrOutOfRange, i, len(r.index))
	}
	if bv, ok := r.cache.Get(i); ok {
		return bv, nil
	}
	d := r.index[i]
	size := uint64(len(r.data))
	if d.End() > size {
		return nil, fmt.Errorf("%w: block %d needs bytes [%d,%d), file ends at %d", ErrTruncatedArchive, i, d.Offset, d.End(), size)
	}
	prefix := binary.LittleEndian.Uint64(r.data[d.Offset:])
	if prefix != d.Length-FramePrefixSize {
		return nil, fmt.Errorf("%w: block %d prefix says %d payload bytes, index says %d", ErrCorruptBlock, i, prefix, d.Length-FramePrefixSize)
	}
	payload := r.data[d.Offset+FramePrefixSize : d.End() : d.End()]
	blk, err := wire.NewBlock(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: block %d: %v", ErrCorruptBlock, i, err)
	}
	if blk.GameCount() != int(d.Games) {
		return nil, fmt.Errorf("%w: block %d holds %d games, index says %d", ErrCorruptBlock, i, blk.GameCount(), d.Games)
	}
	bv := &BlockView{r: r, block: i, blk: blk, first: r.cum[i]}
	r.cache.Add(i, bv)
	return bv, nil
}

// Get returns game k in archive order: binary search over the block
// game counts, then constant-time access within the block.
func (r *Reader) Get(k uint64) (*GameView, error) {
	if r.data == nil {
		return nil, ErrReaderClosed
	}
	if k >= r.gameCount {
		return nil, fmt.Errorf("%w: game %d of %d", ErrOutOfRange, k, r.gameCount)
	}
	b := sort.Search(len(r.index), func(i int) bool { return r.cum[i+1] > k })
	bv, err := r.Block(b)
	if err != nil {
		return nil, err
	}
	return bv.Game(int(k - r.cum[b]))
}

// BlockView is one decoded, validated block. Safe for concurrent use.
type BlockView struct {
	r     *Reader
	block int
	blk   wire.Block
	first uint64
}

// GameCount returns the number of games in the block.
func (v *BlockView) GameCount() int {
	return v.blk.GameCount()
}

// Game returns game i of the block. The work is constant per call;
// other games in the block are never touched.
func (v *BlockView) Game(i int) (*GameView, error) {
	if i < 0 || i >= v.blk.GameCount() {
		return nil, fmt.Errorf("%w: game %d of %d in block %d", ErrOutOfRange, i, v.blk.GameCount(), v.block)
	}
	g, err := v.blk.Game(i)
	if err != nil {
		return nil, fmt.Errorf("%w: block %d: %v", ErrCorruptBlock, v.block, err)
	}
	return &GameView{r: v.r, g: g, index: v.first + uint64(i)}, nil
}

// GameView is a zero-copy view of one archived game. Metadata resolves
// through the dedup tables on demand.
type GameView struct {
	r     *Reader
	g     wire.Game
	index uint64
}

// Index returns the game's position in archive order.
func (v *GameView) Index() uint64 {
	return v.index
}

func (v *GameView) str(cat Category, id uint32) (string, error) {
	b, err := v.r.lookup(cat, id)
	if err != nil || b == nil {
		return "", err
	}
	return string(b), nil
}

func (v *GameView) White() (string, error) {
	return v.str(CategoryPlayer, v.g.WhiteID())
}

func (v *GameView) Black() (string, error) {
	return v.str(CategoryPlayer, v.g.BlackID())
}

func (v *GameView) Event() (string, error) {
	return v.str(CategoryEvent, v.g.EventID())
}

func (v *GameView) Site() (string, error) {
	return v.str(CategoryEvent, v.g.SiteID())
}

func (v *GameView) Result() (string, error) {
	return v.str(CategoryTag, v.g.ResultID())
}

func (v *GameView) Date() (string, error) {
	return v.str(CategoryTag, v.g.DateID())
}

func (v *GameView) ECO() (string, error) {
	return v.str(CategoryTag, v.g.ECOID())
}

// MoveCount returns the full move count, opening prefix included.
func (v *GameView) MoveCount() (int, error) {
	n := v.g.MovesLen()
	op := v.g.OpeningID()
	if op == NilID {
		return n, nil
	}
	entry, err := v.r.lookup(CategoryOpening, op)
	if err != nil {
		return 0, err
	}
	if len(entry)%4 != 0 {
		return 0, fmt.Errorf("%w: opening entry of %d bytes", ErrCorruptArchive, len(entry))
	}
	return len(entry)/4 + n, nil
}

// Moves returns the full move sequence: the interned opening prefix,
// if any, followed by the inline tokens.
func (v *GameView) Moves() ([]game.Move, error) {
	var opening []byte
	if op := v.g.OpeningID(); op != NilID {
		entry, err := v.r.lookup(CategoryOpening, op)
		if err != nil {
			return nil, err
		}
		if len(entry)%4 != 0 {
			return nil, fmt.Errorf("%w: opening entry of %d bytes", ErrCorruptArchive, len(entry))
		}
		opening = entry
	}
	n := len(opening)/4 + v.g.MovesLen()
	if n == 0 {
		return nil, nil
	}
	moves := make([]game.Move, 0, n)
	for i := 0; i+4 <= len(opening); i += 4 {
		moves = append(moves, game.Move(binary.LittleEndian.Uint32(opening[i:])))
	}
	for i := 0; i < v.g.MovesLen(); i++ {
		moves = append(moves, game.Move(v.g.MoveAt(i)))
	}
	return moves, nil
}

// Tags returns the extra tag pairs beyond the standard roster.
func (v *GameView) Tags() ([]game.Tag, error) {
	n := v.g.TagsLen()
	if n == 0 {
		return nil, nil
	}
	tags := make([]game.Tag, 0, n)
	for i := 0; i < n; i++ {
		key, err := v.str(CategoryTag, v.g.TagKeyAt(i))
		if err != nil {
			return nil, err
		}
		val, err := v.str(CategoryTag, v.g.TagValueAt(i))
		if err != nil {
			return nil, err
		}
		tags = append(tags, game.Tag{Key: key, Value: val})
	}
	return tags, nil
}

// Record materializes the full game record.
func (v *GameView) Record() (*game.Record, error) {
	rec := &game.Record{}
	var err error
	if rec.White, err = v.White(); err != nil {
		return nil, err
	}
	if rec.Black, err = v.Black(); err != nil {
		return nil, err
	}
	if rec.Event, err = v.Event(); err != nil {
		return nil, err
	}
	if rec.Site, err = v.Site(); err != nil {
		return nil, err
	}
	if rec.Result, err = v.Result(); err != nil {
		return nil, err
	}
	if rec.Date, err = v.Date(); err != nil {
		return nil, err
	}
	if rec.ECO, err = v.ECO(); err != nil {
		return nil, err
	}
	if rec.Moves, err = v.Moves(); err != nil {
		return nil, err
	}
	if rec.Tags, err = v.Tags(); err != nil {
		return nil, err
	}
	return rec, nil
}
