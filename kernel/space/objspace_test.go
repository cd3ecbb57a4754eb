package space

import (
	"nova/kernel"
	"nova/kernel/cap"
	"nova/kernel/kobj"
	"sync"
	"testing"
)

func newTestObject(typ kobj.Type) kobj.Object {
	h := new(kobj.Header)
	h.Init(typ, nil)
	return h
}

// renewableObject lets tests change the id reported for an object, the way a
// destroyed object's storage is handed to a new object.
type renewableObject struct {
	typ kobj.Type
	id  uint64
}

func (o *renewableObject) Type() kobj.Type    { return o.typ }
func (o *renewableObject) ID() uint64         { return o.id }
func (o *renewableObject) Owner() kobj.Object { return nil }

func TestObjectSpaceInsert(t *testing.T) {
	var (
		obs = NewObjectSpace(nil, 8)
		a   = cap.New(newTestObject(kobj.TypeSemaphore), cap.PermUp)
		b   = cap.New(newTestObject(kobj.TypePortal), cap.PermCall)
		sel = uint64(5)
	)

	if err := obs.Insert(sel, a, false); err != nil {
		t.Fatal(err)
	}

	if err := obs.Insert(sel, b, false); err != ErrSlotOccupied {
		t.Fatalf("expected ErrSlotOccupied; got %v", err)
	}

	if got, ok := obs.Lookup(sel); !ok || got != a {
		t.Fatalf("expected slot to still hold the first capability")
	}

	if err := obs.Insert(sel, b, true); err != nil {
		t.Fatalf("expected override to succeed; got %v", err)
	}

	if got, ok := obs.Lookup(sel); !ok || got != b {
		t.Fatalf("expected slot to hold the overriding capability")
	}

	// Errors
	if err := obs.Insert(8, a, false); err != ErrBadSelector {
		t.Errorf("expected ErrBadSelector; got %v", err)
	}

	if err := obs.Insert(0, cap.Capability{}, false); err != ErrNullInsert {
		t.Errorf("expected ErrNullInsert; got %v", err)
	}

	if _, ok := obs.Lookup(8); ok {
		t.Error("expected out of range lookup to fail")
	}

	if _, ok := obs.Lookup(0); ok {
		t.Error("expected empty slot lookup to fail")
	}
}

func TestObjectSpaceConcurrentInsert(t *testing.T) {
	var (
		obs        = NewObjectSpace(nil, 4)
		wg         sync.WaitGroup
		numWorkers = 16
		mu         sync.Mutex
		winners    []cap.Capability
	)

	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			c := cap.New(newTestObject(kobj.TypeSemaphore), cap.PermAll)
			if obs.Insert(2, c, false) == nil {
				mu.Lock()
				winners = append(winners, c)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected exactly one insert to succeed; got %d", len(winners))
	}

	if got, _ := obs.Lookup(2); got != winners[0] {
		t.Fatal("expected slot to hold the winning capability")
	}
}

func TestObjectSpaceRemove(t *testing.T) {
	obs := NewObjectSpace(nil, 2)
	c := cap.New(newTestObject(kobj.TypeSemaphore), cap.PermUp)

	if err := obs.Insert(1, c, false); err != nil {
		t.Fatal(err)
	}

	if got, err := obs.Remove(1); err != nil || got != c {
		t.Fatalf("expected Remove to return the stored capability; got %v", err)
	}

	if _, err := obs.Remove(1); err != ErrSlotEmpty {
		t.Fatalf("expected ErrSlotEmpty; got %v", err)
	}

	if _, err := obs.Remove(2); err != ErrBadSelector {
		t.Fatalf("expected ErrBadSelector; got %v", err)
	}

	// A cleared slot accepts a new capability without override
	if err := obs.Insert(1, c, false); err != nil {
		t.Fatal(err)
	}
}

func TestObjectSpaceDelegate(t *testing.T) {
	var (
		src = NewObjectSpace(nil, 4)
		dst = NewObjectSpace(nil, 4)
		obj = newTestObject(kobj.TypeSemaphore)
	)

	if err := src.Insert(0, cap.New(obj, cap.PermDelegate|cap.PermUp|cap.PermDown), false); err != nil {
		t.Fatal(err)
	}
	if err := src.Insert(1, cap.New(obj, cap.PermUp), false); err != nil {
		t.Fatal(err)
	}

	if err := src.Delegate(dst, 0, 3, cap.PermUp, false); err != nil {
		t.Fatal(err)
	}

	got, ok := dst.Lookup(3)
	if !ok || got.Object() != obj || got.Perm() != cap.PermUp {
		t.Fatalf("expected delegated capability with PermUp; got %+v", got)
	}

	specs := []struct {
		srcSel, dstSel uint64
		mask           cap.Perm
		expErr         *kernel.Error
	}{
		{0, 2, cap.PermCall, cap.ErrEscalation},
		{1, 2, cap.PermUp, ErrNoDelegate},
		{2, 2, cap.PermUp, ErrSlotEmpty},
		{9, 2, cap.PermUp, ErrBadSelector},
		{0, 3, cap.PermDown, ErrSlotOccupied},
		{0, 9, cap.PermDown, ErrBadSelector},
	}

	for specIndex, spec := range specs {
		err := src.Delegate(dst, spec.srcSel, spec.dstSel, spec.mask, false)
		if err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}
	}
}

func TestObjectSpaceResolve(t *testing.T) {
	obs := NewObjectSpace(nil, 4)
	obj := newTestObject(kobj.TypeSemaphore)

	if err := obs.Insert(1, cap.New(obj, cap.PermUp), false); err != nil {
		t.Fatal(err)
	}

	if got, err := obs.Resolve(1, kobj.TypeSemaphore, cap.PermUp); err != nil || got != obj {
		t.Fatalf("expected to resolve the semaphore; got %v", err)
	}

	specs := []struct {
		sel    uint64
		typ    kobj.Type
		perm   cap.Perm
		expErr *kernel.Error
	}{
		{1, kobj.TypePortal, cap.PermUp, ErrWrongType},
		{1, kobj.TypeSemaphore, cap.PermDown, ErrPermission},
		{2, kobj.TypeSemaphore, cap.PermUp, ErrSlotEmpty},
		{4, kobj.TypeSemaphore, cap.PermUp, ErrBadSelector},
	}

	for specIndex, spec := range specs {
		if _, err := obs.Resolve(spec.sel, spec.typ, spec.perm); err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}
	}
}

func TestObjectSpaceResolveStale(t *testing.T) {
	var (
		obs = NewObjectSpace(nil, 4)
		dst = NewObjectSpace(nil, 4)
		obj = &renewableObject{typ: kobj.TypeSemaphore, id: 7}
	)

	if err := obs.Insert(0, cap.New(obj, cap.PermAll), false); err != nil {
		t.Fatal(err)
	}

	specs := []struct {
		name string
		id   uint64
	}{
		{"destroyed", 0},
		{"storage reused", 8},
	}

	for _, spec := range specs {
		obj.id = spec.id

		if _, err := obs.Resolve(0, kobj.TypeSemaphore, cap.PermUp); err != cap.ErrStaleCapability {
			t.Errorf("[%s] expected ErrStaleCapability from Resolve; got %v", spec.name, err)
		}
		if err := obs.Delegate(dst, 0, 1, cap.PermUp, true); err != cap.ErrStaleCapability {
			t.Errorf("[%s] expected ErrStaleCapability from Delegate; got %v", spec.name, err)
		}
	}

	// A capability created for the new occupant works.
	if err := obs.Insert(1, cap.New(obj, cap.PermUp), false); err != nil {
		t.Fatal(err)
	}
	if got, err := obs.Resolve(1, kobj.TypeSemaphore, cap.PermUp); err != nil || got != kobj.Object(obj) {
		t.Fatalf("expected fresh capability to resolve; got %v", err)
	}
}
