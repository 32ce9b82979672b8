package archive

import "github.com/freeeve/cbin/internal/wire"

// NilID marks an absent interned reference.
const NilID = wire.NilID

// Interner assigns dense per-category ids to deduplicated values.
// Ids count up from zero in first-seen order; equal values always get
// the same id within a category, and ids from different categories are
// unrelated. Not safe for concurrent use (archives are built by one
// writer).
type Interner struct {
	ids     [NumCategories]map[string]uint32
	entries [NumCategories][][]byte
	bytes   int64
}

func NewInterner() *Interner {
	in := &Interner{}
	for c := range in.ids {
		in.ids[c] = make(map[string]uint32)
	}
	return in
}

// Intern returns the id for v, assigning the next dense id on first
// sight. Empty values intern to NilID. The bytes are copied.
func (in *Interner) Intern(cat Category, v []byte) uint32 {
	if len(v) == 0 {
		return NilID
	}
	if id, ok := in.ids[cat][string(v)]; ok {
		return id
	}
	cp := append([]byte(nil), v...)
	id := uint32(len(in.entries[cat]))
	in.ids[cat][string(cp)] = id
	in.entries[cat] = append(in.entries[cat], cp)
	in.bytes += int64(len(cp))
	return id
}

// InternString is Intern for string values.
func (in *Interner) InternString(cat Category, s string) uint32 {
	if s == "" {
		return NilID
	}
	if id, ok := in.ids[cat][s]; ok {
		return id
	}
	id := uint32(len(in.entries[cat]))
	in.ids[cat][s] = id
	in.entries[cat] = append(in.entries[cat], []byte(s))
	in.bytes += int64(len(s))
	return id
}

// Entry returns the value for an id previously returned by Intern.
func (in *Interner) Entry(cat Category, id uint32) []byte {
	return in.entries[cat][id]
}

// Len returns the number of distinct entries in a category.
func (in *Interner) Len(cat Category) int {
	return len(in.entries[cat])
}

// EntryBytes returns the total value bytes across all categories.
func (in *Interner) EntryBytes() int64 {
	return in.bytes
}
