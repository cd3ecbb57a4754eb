package sched

import (
	"sync"
	"testing"
	"time"
)

// waitForState polls ec until it reaches the expected state.
func waitForState(t *testing.T, ec *EC, exp State) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for ec.State() != exp {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for ec %d to become %s; state is %s", ec.ID(), exp, ec.State())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestParkRelease(t *testing.T) {
	var (
		s    = NewCooperative(PolicyFIFO)
		ec   = NewEC(0, nil)
		done = make(chan struct{})
	)

	if ec.State() != Running {
		t.Fatalf("expected new ec to be running; got %s", ec.State())
	}

	go func() {
		s.Park(ec)
		close(done)
	}()

	waitForState(t, ec, Parked)
	s.Release(ec)
	<-done

	if ec.State() != Running {
		t.Fatalf("expected resumed ec to be running; got %s", ec.State())
	}
}

func TestReleaseBeforePark(t *testing.T) {
	s := NewCooperative(PolicyFIFO)
	ec := NewEC(0, nil)

	// A release that arrives first must satisfy the next park
	s.Release(ec)
	if ec.State() != Runnable {
		t.Fatalf("expected released ec to be runnable; got %s", ec.State())
	}

	s.Park(ec)
	if ec.State() != Running {
		t.Fatalf("expected ec to be running; got %s", ec.State())
	}
}

func TestQueues(t *testing.T) {
	var (
		low  = NewEC(1, nil)
		mid  = NewEC(5, nil)
		high = NewEC(9, nil)
		mid2 = NewEC(5, nil)
	)

	specs := []struct {
		policy Policy
		exp    []*EC
	}{
		{PolicyFIFO, []*EC{low, mid, high, mid2}},
		{PolicyPriority, []*EC{high, mid, mid2, low}},
	}

	for specIndex, spec := range specs {
		q := NewCooperative(spec.policy).NewQueue()
		for _, ec := range []*EC{low, mid, high, mid2} {
			q.Push(ec)
		}

		if q.Len() != 4 {
			t.Errorf("[spec %d] expected queue length 4; got %d", specIndex, q.Len())
		}

		for i, exp := range spec.exp {
			if got := q.Pop(); got != exp {
				t.Errorf("[spec %d] expected pop %d to return ec %d; got ec %d", specIndex, i, exp.ID(), got.ID())
			}
		}

		if q.Pop() != nil || q.Len() != 0 {
			t.Errorf("[spec %d] expected drained queue to be empty", specIndex)
		}
	}
}

func TestCall(t *testing.T) {
	s := NewCooperative(PolicyFIFO)
	callee := NewEC(0, func(ip uintptr, arg uint64) uint64 {
		return uint64(ip) + arg
	})
	caller := NewEC(0, nil)

	got, err := s.Call(caller, callee, 0x1000, 42)
	if err != nil {
		t.Fatal(err)
	}

	if exp := uint64(0x1000 + 42); got != exp {
		t.Fatalf("expected call result %d; got %d", exp, got)
	}

	if _, err := s.Call(caller, NewEC(0, nil), 0, 0); err != ErrNoHandler {
		t.Fatalf("expected ErrNoHandler; got %v", err)
	}
}

func TestCallBusy(t *testing.T) {
	var (
		s       = NewCooperative(PolicyFIFO)
		entered = make(chan struct{})
		unblock = make(chan struct{})
		wg      sync.WaitGroup
	)

	callee := NewEC(0, func(uintptr, uint64) uint64 {
		close(entered)
		<-unblock
		return 1
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := s.Call(NewEC(0, nil), callee, 0, 0); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}()

	<-entered
	if _, err := s.Call(NewEC(0, nil), callee, 0, 0); err != ErrBusy {
		t.Errorf("expected ErrBusy; got %v", err)
	}

	close(unblock)
	wg.Wait()
}

func TestStateString(t *testing.T) {
	for exp, state := range map[string]State{"running": Running, "parked": Parked, "runnable": Runnable, "unknown": State(9)} {
		if got := state.String(); got != exp {
			t.Errorf("expected %q; got %q", exp, got)
		}
	}
}
