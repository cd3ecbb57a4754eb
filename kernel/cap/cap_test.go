package cap

import (
	"nova/kernel/kobj"
	"nova/kernel/sched"
	"testing"
)

func testObject() kobj.Object {
	h := new(kobj.Header)
	h.Init(kobj.TypeSemaphore, nil)
	return h
}

func TestNew(t *testing.T) {
	obj := testObject()

	c := New(obj, PermUp|PermDown|0x80)
	if c.Null() || c.Object() != obj {
		t.Fatal("expected capability to refer to the object")
	}

	if exp := PermUp | PermDown; c.Perm() != exp {
		t.Fatalf("expected unknown bits to be dropped; got %x", c.Perm())
	}

	if !c.Has(PermUp) || !c.Has(PermUp|PermDown) || c.Has(PermCall) {
		t.Fatal("unexpected result from Has")
	}

	null := New(nil, PermAll)
	if !null.Null() || null.Perm() != 0 || null.Has(0) {
		t.Fatal("expected capability without object to be null")
	}
}

func TestDeriveNeverEscalates(t *testing.T) {
	obj := testObject()

	// Exhaustively check every source/mask combination
	for srcPerm := Perm(0); srcPerm <= PermAll; srcPerm++ {
		src := New(obj, srcPerm)
		for mask := Perm(0); mask <= PermAll; mask++ {
			derived, err := Derive(src, mask)

			if mask&^srcPerm != 0 {
				if err != ErrEscalation {
					t.Fatalf("[src %x mask %x] expected ErrEscalation; got %v", srcPerm, mask, err)
				}
				continue
			}

			if err != nil {
				t.Fatalf("[src %x mask %x] unexpected error: %v", srcPerm, mask, err)
			}

			if derived.Perm()&^src.Perm() != 0 {
				t.Fatalf("[src %x mask %x] derived rights %x exceed source", srcPerm, mask, derived.Perm())
			}

			if derived.Object() != obj {
				t.Fatalf("[src %x mask %x] derived capability refers to a different object", srcPerm, mask)
			}
		}
	}
}

func TestDeriveNull(t *testing.T) {
	if _, err := Derive(Capability{}, 0); err != ErrNullCapability {
		t.Fatalf("expected ErrNullCapability; got %v", err)
	}
}

func TestLiveness(t *testing.T) {
	var (
		pool = kobj.NewPool[kobj.Portal](1)
		ec   = sched.NewEC(0, nil)
	)

	pt, err := kobj.NewPortal(pool, nil, ec, 0x10)
	if err != nil {
		t.Fatal(err)
	}

	c := New(pt, PermCall|PermDelegate)
	if !c.Live() {
		t.Fatal("expected capability to a live object to be live")
	}

	if err = pt.Destroy(); err != nil {
		t.Fatal(err)
	}
	if c.Live() {
		t.Fatal("expected capability to a destroyed object to be stale")
	}

	if _, err = Derive(c, PermCall); err != ErrStaleCapability {
		t.Fatalf("expected ErrStaleCapability; got %v", err)
	}

	// The slot is reused by a new portal.
	if _, err = kobj.NewPortal(pool, nil, ec, 0x20); err != nil {
		t.Fatal(err)
	}
	if c.Live() {
		t.Fatal("expected capability to stay stale after its slot is reused")
	}

	if (Capability{}).Live() {
		t.Fatal("expected the null capability to not be live")
	}
}
