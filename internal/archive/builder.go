package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/freeeve/cbin/internal/game"
	"github.com/freeeve/cbin/internal/wire"
)

// Builder defaults.
const (
	DefaultBlockTargetBytes = 4 << 20
	DefaultMaxGamesPerBlock = 500000
	DefaultOpeningPlies     = 12
)

// BuilderConfig configures a Builder. The zero value is usable.
type BuilderConfig struct {
	BlockTargetBytes int    // target encoded payload bytes per block, default 4MB
	MaxGamesPerBlock int    // hard per-block game bound, default 500000
	OpeningPlies     int    // tokens deduped as the opening prefix, default 12, negative disables
	SpoolDir         string // when set, sealed blocks spool to a temp file there instead of memory
}

// Builder accumulates game records and produces one archive. Records
// keep their insertion order. A Builder is single-use and not safe for
// concurrent use.
type Builder struct {
	cfg BuilderConfig
	in  *Interner
	fbb *flatbuffers.Builder

	pending []flatbuffers.UOffsetT // game offsets in the open block

	descs        []BlockDescriptor // offsets relative to the payload region
	spool        spool
	payloadBytes uint64
	games        uint64

	start    time.Time
	finished bool
	logf     func(format string, args ...any)
}

// BuildStats summarizes a finished archive.
type BuildStats struct {
	Games        uint64
	Blocks       int
	PayloadBytes uint64
	TableBytes   int
	TableEntries [NumCategories]int
	ArchiveBytes uint64
	Elapsed      time.Duration
}

func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.BlockTargetBytes <= 0 {
		cfg.BlockTargetBytes = DefaultBlockTargetBytes
	}
	if cfg.MaxGamesPerBlock <= 0 {
		cfg.MaxGamesPerBlock = DefaultMaxGamesPerBlock
	}
	if cfg.OpeningPlies == 0 {
		cfg.OpeningPlies = DefaultOpeningPlies
	}
	return &Builder{
		cfg:   cfg,
		in:    NewInterner(),
		fbb:   flatbuffers.NewBuilder(64 * 1024),
		start: time.Now(),
	}
}

// SetLogger installs an optional printf-style progress logger. Nil
// disables logging.
func (b *Builder) SetLogger(fn func(format string, args ...any)) {
	b.logf = fn
}

func (b *Builder) debugf(format string, args ...any) {
	if b.logf != nil {
		b.logf(format, args...)
	}
}

// Games returns the number of records added so far.
func (b *Builder) Games() uint64 {
	return b.games
}

// Add interns the record's metadata and opening prefix and encodes it
// into the current block. The block is sealed first if admitting the
// record would push it past the byte target or the game bound, so a
// single oversized record still gets a block of its own.
func (b *Builder) Add(rec *game.Record) error {
	if b.finished {
		return ErrBuilderFinished
	}
	eg := b.encode(rec)
	if len(b.pending) > 0 &&
		(int(b.fbb.Offset())+estimateGameBytes(eg) > b.cfg.BlockTargetBytes ||
			len(b.pending) >= b.cfg.MaxGamesPerBlock) {
		if err := b.sealBlock(); err != nil {
			return err
		}
	}
	b.pending = append(b.pending, wire.AppendGame(b.fbb, eg))
	b.games++
	return nil
}

// encode interns everything the record references and returns the
// wire-level form.
func (b *Builder) encode(rec *game.Record) *wire.EncodedGame {
	eg := &wire.EncodedGame{
		White:   b.in.InternString(CategoryPlayer, rec.White),
		Black:   b.in.InternString(CategoryPlayer, rec.Black),
		Event:   b.in.InternString(CategoryEvent, rec.Event),
		Site:    b.in.InternString(CategoryEvent, rec.Site),
		Result:  b.in.InternString(CategoryTag, rec.Result),
		Date:    b.in.InternString(CategoryTag, rec.Date),
		ECO:     b.in.InternString(CategoryTag, rec.ECO),
		Opening: NilID,
	}
	moves := rec.Moves
	if n := b.cfg.OpeningPlies; n > 0 && len(moves) >= n {
		eg.Opening = b.in.Intern(CategoryOpening, encodeOpening(moves[:n]))
		moves = moves[n:]
	}
	if len(moves) > 0 {
		eg.Moves = make([]uint32, len(moves))
		for i, m := range moves {
			eg.Moves[i] = uint32(m)
		}
	}
	if len(rec.Tags) > 0 {
		eg.Tags = make([]uint32, 0, len(rec.Tags)*2)
		for _, tag := range rec.Tags {
			eg.Tags = append(eg.Tags,
				b.in.InternString(CategoryTag, tag.Key),
				b.in.InternString(CategoryTag, tag.Value))
		}
	}
	return eg
}

// estimateGameBytes bounds the encoded size of a game before it is
// admitted to a block: table plus vtable overhead and the vectors.
func estimateGameBytes(eg *wire.EncodedGame) int {
	est := 64
	if len(eg.Moves) > 0 {
		est += 8 + 4*len(eg.Moves)
	}
	if len(eg.Tags) > 0 {
		est += 8 + 4*len(eg.Tags)
	}
	return est
}

func encodeOpening(moves []game.Move) []byte {
	buf := make([]byte, 4*len(moves))
	for i, m := range moves {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(m))
	}
	return buf
}

// sealBlock frames the open block's payload, spools it, and records its
// descriptor.
func (b *Builder) sealBlock() error {
	if len(b.pending) == 0 {
		return nil
	}
	payload := wire.FinishBlock(b.fbb, b.pending)
	sp, err := b.spoolWriter()
	if err != nil {
		return err
	}
	var prefix [FramePrefixSize]byte
	binary.LittleEndian.PutUint64(prefix[:], uint64(len(payload)))
	if _, err := sp.Write(prefix[:]); err != nil {
		return fmt.Errorf("spool block %d: %w", len(b.descs), err)
	}
	if _, err := sp.Write(payload); err != nil {
		return fmt.Errorf("spool block %d: %w", len(b.descs), err)
	}
	length := uint64(FramePrefixSize + len(payload))
	b.descs = append(b.descs, BlockDescriptor{
		Offset: b.payloadBytes,
		Length: length,
		Games:  uint32(len(b.pending)),
	})
	b.payloadBytes += length
	b.debugf("sealed block %d: %d games, %d payload bytes", len(b.descs)-1, len(b.pending), len(payload))
	b.pending = b.pending[:0]
	b.fbb.Reset()
	return nil
}

func (b *Builder) spoolWriter() (spool, error) {
	if b.spool != nil {
		return b.spool, nil
	}
	if b.cfg.SpoolDir != "" {
		sp, err := newFileSpool(b.cfg.SpoolDir)
		if err != nil {
			return nil, fmt.Errorf("create spool: %w", err)
		}
		b.spool = sp
	} else {
		b.spool = &memSpool{}
	}
	return b.spool, nil
}

// Finish seals the open block and writes the complete archive: header,
// dedup tables, block index with absolute offsets, then the spooled
// payload region. The builder cannot be used afterwards.
func (b *Builder) Finish(w io.Writer) (BuildStats, error) {
	if b.finished {
		return BuildStats{}, ErrBuilderFinished
	}
	b.finished = true
	defer func() {
		if b.spool != nil {
			b.spool.cleanup()
			b.spool = nil
		}
	}()
	if err := b.sealBlock(); err != nil {
		return BuildStats{}, err
	}

	h := header{Version: Version, GameCount: b.games, TableCount: NumCategories}
	copy(h.Magic[:], Magic)
	meta := encodeHeader(&h)
	meta = appendTables(meta, b.in)
	tableBytes := len(meta) - HeaderSize

	blockBase := uint64(len(meta)) + uint64(4+len(b.descs)*DescriptorSize)
	descs := make([]BlockDescriptor, len(b.descs))
	copy(descs, b.descs)
	for i := range descs {
		descs[i].Offset += blockBase
	}
	meta = appendIndex(meta, descs)

	if _, err := w.Write(meta); err != nil {
		return BuildStats{}, fmt.Errorf("write metadata: %w", err)
	}
	if b.spool != nil {
		r, err := b.spool.reader()
		if err != nil {
			return BuildStats{}, fmt.Errorf("reopen spool: %w", err)
		}
		n, err := io.Copy(w, r)
		if err != nil {
			return BuildStats{}, fmt.Errorf("write blocks: %w", err)
		}
		if uint64(n) != b.payloadBytes {
			return BuildStats{}, fmt.Errorf("write blocks: spool holds %d bytes, want %d", n, b.payloadBytes)
		}
	}

	stats := BuildStats{
		Games:        b.games,
		Blocks:       len(b.descs),
		PayloadBytes: b.payloadBytes,
		TableBytes:   tableBytes,
		ArchiveBytes: uint64(len(meta)) + b.payloadBytes,
		Elapsed:      time.Since(b.start),
	}
	for cat := Category(0); cat < NumCategories; cat++ {
		stats.TableEntries[cat] = b.in.Len(cat)
	}
	b.debugf("finished archive: %d games, %d blocks, %d bytes", stats.Games, stats.Blocks, stats.ArchiveBytes)
	return stats, nil
}

// WriteFile writes the archive to path atomically: a temp file in the
// same directory, synced, then renamed over the target.
func (b *Builder) WriteFile(path string) (BuildStats, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return BuildStats{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	stats, err := b.Finish(tmp)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return BuildStats{}, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return BuildStats{}, fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return BuildStats{}, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return BuildStats{}, fmt.Errorf("rename into place: %w", err)
	}
	return stats, nil
}

// spool holds sealed block frames until Finish streams them out.
type spool interface {
	io.Writer
	reader() (io.Reader, error)
	cleanup() error
}

type memSpool struct {
	buf bytes.Buffer
}

func (s *memSpool) Write(p []byte) (int, error) {
	return s.buf.Write(p)
}

func (s *memSpool) reader() (io.Reader, error) {
	return bytes.NewReader(s.buf.Bytes()), nil
}

func (s *memSpool) cleanup() error {
	return nil
}

type fileSpool struct {
	f *os.File
}

func newFileSpool(dir string) (*fileSpool, error) {
	f, err := os.CreateTemp(dir, "cbin-spool-*")
	if err != nil {
		return nil, err
	}
	return &fileSpool{f: f}, nil
}

func (s *fileSpool) Write(p []byte) (int, error) {
	return s.f.Write(p)
}

func (s *fileSpool) reader() (io.Reader, error) {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return s.f, nil
}

func (s *fileSpool) cleanup() error {
	name := s.f.Name()
	s.f.Close()
	return os.Remove(name)
}
