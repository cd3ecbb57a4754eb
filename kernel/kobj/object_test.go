package kobj

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestHeaderInit(t *testing.T) {
	defer func() {
		EnableTrace(false)
		SetTraceSink(nil)
	}()

	var (
		buf   bytes.Buffer
		owner Header
		h     Header
	)

	owner.Init(TypeObjSpace, nil)

	EnableTrace(true)
	SetTraceSink(&buf)
	h.Init(TypeSemaphore, &owner)

	if h.Type() != TypeSemaphore || h.Owner() != Object(&owner) {
		t.Fatalf("unexpected header contents: type %s owner %v", h.Type(), h.Owner())
	}

	if h.ID() <= owner.ID() {
		t.Fatalf("expected ids to increase; got %d after %d", h.ID(), owner.ID())
	}

	if exp, got := fmt.Sprintf("[kobj] create semaphore id=%d\n", h.ID()), buf.String(); got != exp {
		t.Fatalf("expected trace %q; got %q", exp, got)
	}

	buf.Reset()
	id := h.ID()
	if !h.retire() {
		t.Fatal("expected first retire to succeed")
	}
	if exp, got := fmt.Sprintf("[kobj] destroy semaphore id=%d\n", id), buf.String(); got != exp {
		t.Fatalf("expected trace %q; got %q", exp, got)
	}

	if h.ID() != 0 {
		t.Fatalf("expected retired header to report id 0; got %d", h.ID())
	}

	buf.Reset()
	if h.retire() {
		t.Fatal("expected second retire to fail")
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no trace output for a failed retire; got %q", buf.String())
	}

	// tracing disabled
	buf.Reset()
	EnableTrace(false)
	h.Init(TypePortal, nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no trace output while disabled; got %q", buf.String())
	}
}

// lockedBuffer fails the test if two writes overlap.
type lockedBuffer struct {
	t      *testing.T
	mu     sync.Mutex
	buf    bytes.Buffer
	inside bool
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	if b.inside {
		b.t.Error("concurrent write to trace sink")
	}
	b.inside = true
	b.mu.Unlock()

	n, err := b.buf.Write(p)

	b.mu.Lock()
	b.inside = false
	b.mu.Unlock()
	return n, err
}

func TestTraceSinkConcurrentUse(t *testing.T) {
	defer func() {
		EnableTrace(false)
		SetTraceSink(nil)
	}()

	const (
		workers = 8
		objects = 50
	)

	var (
		sinks = []*lockedBuffer{{t: t}, {t: t}}
		wg    sync.WaitGroup
	)

	EnableTrace(true)
	SetTraceSink(sinks[0])

	wg.Add(workers + 1)
	go func() {
		defer wg.Done()
		for i := 0; i < objects; i++ {
			SetTraceSink(sinks[i%2])
		}
	}()

	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < objects; i++ {
				var h Header
				h.Init(TypePortal, nil)
				h.retire()
			}
		}()
	}
	wg.Wait()

	var lines int
	for _, sink := range sinks {
		for _, line := range strings.Split(strings.TrimSpace(sink.buf.String()), "\n") {
			if line == "" {
				continue
			}
			if !strings.HasPrefix(line, "[kobj] create portal id=") && !strings.HasPrefix(line, "[kobj] destroy portal id=") {
				t.Errorf("malformed trace line %q", line)
			}
			lines++
		}
	}

	if exp := 2 * workers * objects; lines != exp {
		t.Fatalf("expected %d trace lines; got %d", exp, lines)
	}
}

func TestTypeString(t *testing.T) {
	specs := map[Type]string{
		TypeHostSpace: "host-space",
		TypeObjSpace:  "obj-space",
		TypeSemaphore: "semaphore",
		TypePortal:    "portal",
		Type(42):      "unknown",
	}

	for typ, exp := range specs {
		if got := typ.String(); got != exp {
			t.Errorf("expected %q; got %q", exp, got)
		}
	}
}
