package archive

import "sort"

// Iterator walks games in archive order:
//
//	it := r.Games()
//	for it.Next() {
//	    g := it.Game()
//	}
//	if err := it.Err(); err != nil { ... }
//
// Each block is decoded once as the scan crosses into it. The iterator
// stops at the first damaged block and reports it through Err; salvage
// reads can continue block by block via Block or BlockGames.
type Iterator struct {
	r      *Reader
	lo, hi uint64 // global game range [lo, hi)

	next  uint64
	block int
	idx   int
	bv    *BlockView
	cur   *GameView
	err   error
}

// Games iterates every game in the archive.
func (r *Reader) Games() *Iterator {
	return r.GamesRange(0, r.gameCount)
}

// GamesRange iterates games [lo, hi) in archive order. Bounds are
// clamped to the archive.
func (r *Reader) GamesRange(lo, hi uint64) *Iterator {
	if hi > r.gameCount {
		hi = r.gameCount
	}
	if lo > hi {
		lo = hi
	}
	it := &Iterator{r: r, lo: lo, hi: hi}
	it.Reset()
	return it
}

// BlockGames iterates every game in blocks [lo, hi). Bounds are
// clamped to the block count.
func (r *Reader) BlockGames(lo, hi int) *Iterator {
	if lo < 0 {
		lo = 0
	}
	if hi > len(r.index) {
		hi = len(r.index)
	}
	if lo > hi {
		lo = hi
	}
	return r.GamesRange(r.cum[lo], r.cum[hi])
}

// Reset rewinds the iterator to the start of its range.
func (it *Iterator) Reset() {
	it.err = nil
	it.bv = nil
	it.cur = nil
	it.next = it.lo
	it.idx = 0
	it.block = len(it.r.index)
	if it.lo < it.hi {
		b := sort.Search(len(it.r.index), func(i int) bool { return it.r.cum[i+1] > it.lo })
		it.block = b
		it.idx = int(it.lo - it.r.cum[b])
	}
}

// Next advances to the next game. It returns false at the end of the
// range or on error; Err tells which.
func (it *Iterator) Next() bool {
	if it.err != nil || it.next >= it.hi {
		it.cur = nil
		return false
	}
	for it.bv == nil || it.idx >= it.bv.GameCount() {
		if it.bv != nil {
			it.block++
			it.idx = 0
		}
		bv, err := it.r.Block(it.block)
		if err != nil {
			it.err = err
			it.cur = nil
			return false
		}
		it.bv = bv
	}
	g, err := it.bv.Game(it.idx)
	if err != nil {
		it.err = err
		it.cur = nil
		return false
	}
	it.cur = g
	it.idx++
	it.next++
	return true
}

// Game returns the current game. Valid after a true Next.
func (it *Iterator) Game() *GameView {
	return it.cur
}

// Err returns the error that stopped iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}
