// Package archive implements the cbin on-disk format: a single
// self-contained artifact holding deduplicated chess game collections
// with zero-copy random access and independently decodable blocks.
package archive

import (
	"encoding/binary"
	"fmt"
)

// Archive layout (all integers little-endian):
//
//	offset 0   Magic      "CBIN" (4 bytes)
//	offset 4   Version    uint16
//	offset 6   GameCount  uint64 - total games in the archive
//	offset 14  TableCount uint16 - dedup table count
//	offset 16  dedup tables, sequential:
//	             tag uint16 | entryCount uint32 | entries
//	             each entry: length uint32 | bytes
//	...        BlockCount uint32
//	...        block index: BlockCount entries of
//	             offset uint64 | length uint64 | games uint32   (20 bytes)
//	...        block payloads, contiguous:
//	             each block: payloadLen uint64 | payload
//
// A descriptor's offset is the absolute file position of the block's
// own length prefix, and its length covers prefix plus payload, so
// consecutive descriptors tile the payload region exactly. Everything
// before the payloads decodes eagerly at open; payloads are validated
// only when their block is first accessed.

const (
	Magic   = "CBIN"
	Version = 1

	// HeaderSize covers magic through TableCount.
	HeaderSize = 16

	// DescriptorSize is the on-disk size of one block index entry.
	DescriptorSize = 20

	// FramePrefixSize is the byte length prefix in front of every block
	// payload.
	FramePrefixSize = 8
)

// Category tags a dedup table. The numeric values are the on-disk table
// tags.
type Category uint16

const (
	CategoryPlayer  Category = 0 // player name strings
	CategoryEvent   Category = 1 // event and site strings
	CategoryTag     Category = 2 // results, dates, ECO codes, extra tag keys and values
	CategoryOpening Category = 3 // opening move-token sequences

	NumCategories = 4
)

func (c Category) String() string {
	switch c {
	case CategoryPlayer:
		return "player"
	case CategoryEvent:
		return "event"
	case CategoryTag:
		return "tag"
	case CategoryOpening:
		return "opening"
	}
	return fmt.Sprintf("category(%d)", uint16(c))
}

// BlockDescriptor locates one block inside the archive.
type BlockDescriptor struct {
	Offset uint64 // file offset of the block's length prefix
	Length uint64 // prefix + payload bytes
	Games  uint32
}

// End returns the file offset one past the block.
func (d BlockDescriptor) End() uint64 {
	return d.Offset + d.Length
}

type header struct {
	Magic      [4]byte
	Version    uint16
	GameCount  uint64
	TableCount uint16
}

func encodeHeader(h *header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint64(buf[6:14], h.GameCount)
	binary.LittleEndian.PutUint16(buf[14:16], h.TableCount)
	return buf
}

func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: %d byte header", ErrTruncatedArchive, len(buf))
	}
	h := &header{}
	copy(h.Magic[:], buf[0:4])
	if string(h.Magic[:]) != Magic {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, h.Magic)
	}
	h.Version = binary.LittleEndian.Uint16(buf[4:6])
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	h.GameCount = binary.LittleEndian.Uint64(buf[6:14])
	h.TableCount = binary.LittleEndian.Uint16(buf[14:16])
	return h, nil
}

// appendTables serializes every dedup table in tag order.
func appendTables(dst []byte, in *Interner) []byte {
	for cat := Category(0); cat < NumCategories; cat++ {
		entries := in.entries[cat]
		dst = binary.LittleEndian.AppendUint16(dst, uint16(cat))
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(entries)))
		for _, e := range entries {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(len(e)))
			dst = append(dst, e...)
		}
	}
	return dst
}

// decodeTables parses count dedup tables starting at buf[0], returning
// entry slices that alias buf and the number of bytes consumed.
func decodeTables(buf []byte, count uint16) (tables [NumCategories][][]byte, n int, err error) {
	var seen [NumCategories]bool
	off := 0
	for t := uint16(0); t < count; t++ {
		if off+6 > len(buf) {
			return tables, 0, fmt.Errorf("%w: table %d header", ErrTruncatedArchive, t)
		}
		tag := binary.LittleEndian.Uint16(buf[off : off+2])
		entryCount := binary.LittleEndian.Uint32(buf[off+2 : off+6])
		off += 6
		if tag >= NumCategories {
			return tables, 0, fmt.Errorf("%w: unknown dedup table tag %d", ErrCorruptArchive, tag)
		}
		if seen[tag] {
			return tables, 0, fmt.Errorf("%w: duplicate dedup table tag %d", ErrCorruptArchive, tag)
		}
		seen[tag] = true
		if int64(entryCount)*4 > int64(len(buf)-off) {
			return tables, 0, fmt.Errorf("%w: %s table claims %d entries", ErrTruncatedArchive, Category(tag), entryCount)
		}
		entries := make([][]byte, 0, entryCount)
		for e := uint32(0); e < entryCount; e++ {
			if off+4 > len(buf) {
				return tables, 0, fmt.Errorf("%w: %s table entry %d length", ErrTruncatedArchive, Category(tag), e)
			}
			elen := int(binary.LittleEndian.Uint32(buf[off : off+4]))
			off += 4
			if elen < 0 || off+elen > len(buf) {
				return tables, 0, fmt.Errorf("%w: %s table entry %d of %d bytes", ErrTruncatedArchive, Category(tag), e, elen)
			}
			entries = append(entries, buf[off:off+elen:off+elen])
			off += elen
		}
		tables[tag] = entries
	}
	return tables, off, nil
}

// appendIndex serializes the block count and every descriptor.
func appendIndex(dst []byte, descs []BlockDescriptor) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(descs)))
	for _, d := range descs {
		dst = binary.LittleEndian.AppendUint64(dst, d.Offset)
		dst = binary.LittleEndian.AppendUint64(dst, d.Length)
		dst = binary.LittleEndian.AppendUint32(dst, d.Games)
	}
	return dst
}

// decodeIndex parses the block index at buf[0] and returns the
// descriptors and bytes consumed.
func decodeIndex(buf []byte) ([]BlockDescriptor, int, error) {
	if len(buf) < 4 {
		return nil, 0, fmt.Errorf("%w: block count", ErrTruncatedArchive)
	}
	count := int(binary.LittleEndian.Uint32(buf[0:4]))
	off := 4
	if count < 0 || count > (len(buf)-off)/DescriptorSize {
		return nil, 0, fmt.Errorf("%w: index of %d blocks", ErrTruncatedArchive, count)
	}
	descs := make([]BlockDescriptor, count)
	for i := range descs {
		descs[i].Offset = binary.LittleEndian.Uint64(buf[off : off+8])
		descs[i].Length = binary.LittleEndian.Uint64(buf[off+8 : off+16])
		descs[i].Games = binary.LittleEndian.Uint32(buf[off+16 : off+20])
		off += DescriptorSize
	}
	return descs, off, nil
}
