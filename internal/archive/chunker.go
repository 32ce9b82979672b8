package archive

// Chunk is a contiguous run of whole blocks assigned to one scan
// worker. Workers can seek straight to [Offset, End()) without reading
// anything else.
type Chunk struct {
	FirstBlock int
	BlockCount int
	Offset     uint64
	Bytes      uint64
	Games      uint64
}

// End returns the file offset one past the chunk.
func (c Chunk) End() uint64 {
	return c.Offset + c.Bytes
}

// SplitIndex partitions a block index into exactly n contiguous chunks
// whose concatenation covers the whole archive in order. It is a pure
// function of the index: no payload is decoded, and the same index and
// n always produce the same chunks. When n exceeds the block count the
// tail chunks come back empty.
//
// Balance is by payload bytes. The walk recomputes its target from the
// remaining bytes per remaining chunk, and a block moves to the next
// chunk when taking it would overshoot the target by at least as much
// as stopping short undershoots it.
func SplitIndex(index []BlockDescriptor, n int) []Chunk {
	if n < 1 {
		return nil
	}
	var total uint64
	for _, d := range index {
		total += d.Length
	}
	var endOffset uint64
	if len(index) > 0 {
		endOffset = index[len(index)-1].End()
	}

	chunks := make([]Chunk, n)
	bi := 0
	var consumed uint64
	for ci := range chunks {
		c := &chunks[ci]
		c.FirstBlock = bi
		if bi == len(index) {
			c.Offset = endOffset
			continue
		}
		c.Offset = index[bi].Offset
		target := (total - consumed) / uint64(n-ci)
		for bi < len(index) {
			bl := index[bi].Length
			if c.Bytes > 0 && ci < n-1 {
				if c.Bytes >= target {
					break
				}
				if c.Bytes+bl > target && c.Bytes+bl-target >= target-c.Bytes {
					break
				}
			}
			c.BlockCount++
			c.Bytes += bl
			c.Games += uint64(index[bi].Games)
			consumed += bl
			bi++
		}
	}
	return chunks
}

// Split partitions the reader's archive into n chunks.
func (r *Reader) Split(n int) []Chunk {
	return SplitIndex(r.index, n)
}

// ChunkGames iterates every game within one chunk.
func (r *Reader) ChunkGames(c Chunk) *Iterator {
	return r.BlockGames(c.FirstBlock, c.FirstBlock+c.BlockCount)
}
