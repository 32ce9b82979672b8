package archive_test

import (
	"bytes"
	"testing"

	"github.com/freeeve/cbin/internal/archive"
)

func TestInternAssignsDenseIDs(t *testing.T) {
	in := archive.NewInterner()
	a := in.InternString(archive.CategoryPlayer, "Carlsen, Magnus")
	b := in.InternString(archive.CategoryPlayer, "Caruana, Fabiano")
	c := in.InternString(archive.CategoryPlayer, "Nakamura, Hikaru")
	if a != 0 || b != 1 || c != 2 {
		t.Errorf("ids = %d %d %d, want 0 1 2", a, b, c)
	}
	if in.Len(archive.CategoryPlayer) != 3 {
		t.Errorf("Len = %d, want 3", in.Len(archive.CategoryPlayer))
	}
}

func TestInternDedups(t *testing.T) {
	in := archive.NewInterner()
	first := in.InternString(archive.CategoryEvent, "London")
	for i := 0; i < 10; i++ {
		if id := in.InternString(archive.CategoryEvent, "London"); id != first {
			t.Fatalf("repeat intern returned %d, want %d", id, first)
		}
	}
	if in.Len(archive.CategoryEvent) != 1 {
		t.Errorf("Len = %d, want 1", in.Len(archive.CategoryEvent))
	}
	if got := string(in.Entry(archive.CategoryEvent, first)); got != "London" {
		t.Errorf("Entry = %q, want %q", got, "London")
	}
}

func TestInternCategoriesIndependent(t *testing.T) {
	in := archive.NewInterner()
	p := in.InternString(archive.CategoryPlayer, "London")
	e := in.InternString(archive.CategoryEvent, "London")
	if p != 0 || e != 0 {
		t.Errorf("ids = %d %d, want 0 0", p, e)
	}
	in.InternString(archive.CategoryPlayer, "Berlin")
	if in.Len(archive.CategoryPlayer) != 2 || in.Len(archive.CategoryEvent) != 1 {
		t.Errorf("lens = %d %d, want 2 1",
			in.Len(archive.CategoryPlayer), in.Len(archive.CategoryEvent))
	}
}

func TestInternEmptyValueIsNil(t *testing.T) {
	in := archive.NewInterner()
	if id := in.InternString(archive.CategoryPlayer, ""); id != archive.NilID {
		t.Errorf("empty string interned to %d, want NilID", id)
	}
	if id := in.Intern(archive.CategoryOpening, nil); id != archive.NilID {
		t.Errorf("nil bytes interned to %d, want NilID", id)
	}
	if in.Len(archive.CategoryPlayer) != 0 || in.Len(archive.CategoryOpening) != 0 {
		t.Error("empty values occupied table slots")
	}
}

func TestInternCopiesBytes(t *testing.T) {
	in := archive.NewInterner()
	buf := []byte("sequence-one")
	id := in.Intern(archive.CategoryOpening, buf)
	buf[0] = 'X'
	if !bytes.Equal(in.Entry(archive.CategoryOpening, id), []byte("sequence-one")) {
		t.Error("interned entry aliases caller buffer")
	}
	if id2 := in.Intern(archive.CategoryOpening, []byte("sequence-one")); id2 != id {
		t.Errorf("re-intern returned %d, want %d", id2, id)
	}
}

func TestInternEntryBytes(t *testing.T) {
	in := archive.NewInterner()
	in.InternString(archive.CategoryPlayer, "abcd")
	in.InternString(archive.CategoryPlayer, "abcd")
	in.InternString(archive.CategoryEvent, "xy")
	if got := in.EntryBytes(); got != 6 {
		t.Errorf("EntryBytes = %d, want 6", got)
	}
}
