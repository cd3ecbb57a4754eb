package kfmt

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestPrintf(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	specs := []struct {
		format string
		args   []interface{}
		exp    string
	}{
		{"[kmain] booting", nil, "[kmain] booting"},
		// bool values
		{"initialized: %t", []interface{}{true}, "initialized: true"},
		{"trace: %41t", []interface{}{false}, "trace: false"},
		// strings and byte slices
		{"[%s] online", []interface{}{"cpu3"}, "[cpu3] online"},
		{"type %s", []interface{}{[]byte("semaphore")}, "type semaphore"},
		{"'%6s'", []interface{}{"rwx"}, "'   rwx'"},
		{"'%3s'", []interface{}{"host-space"}, "'host-space'"},
		// uints
		{"cpus: %d", []interface{}{uint8(4)}, "cpus: 4"},
		{"mode %o", []interface{}{uint16(0755)}, "mode 755"},
		{"tag 0x%x", []interface{}{uint32(0xfeed)}, "tag 0xfeed"},
		{"free: '%6d'", []interface{}{uint64(2048)}, "free: '  2048'"},
		{"perm '%4o'", []interface{}{uint64(0644)}, "perm '0644'"},
		{"pte 0x%16x", []interface{}{uint64(0x40000703)}, "pte 0x0000000040000703"},
		{"frame '0x%3x'", []interface{}{int64(0x40001)}, "frame '0x40001'"},
		{"slots %d", []interface{}{uint(512)}, "slots 512"},
		// pointers
		{"link at %x", []interface{}{uintptr(0x800040000000)}, "link at 800040000000"},
		// ints
		{"delta %d", []interface{}{int8(-12)}, "delta -12"},
		{"delta %o", []interface{}{int16(0644)}, "delta 644"},
		{"delta %x", []interface{}{int32(-0x1000)}, "delta -1000"},
		{"'%10d'", []interface{}{int64(-4096)}, "'     -4096'"},
		{"'%10d'", []interface{}{int64(-123456789)}, "'-123456789'"},
		{"'%10d'", []interface{}{int64(-1234567890)}, "'-1234567890'"},
		{"'%3x'", []interface{}{int(-0x20_0000)}, "'-200000'"},
		{"'%128x'", []interface{}{int(-0x20_0000)}, fmt.Sprintf("'-%s200000'", strings.Repeat("0", maxBufSize-7))},
		// multiple arguments
		{"%%%s%d%t", []interface{}{"cpu", 1, true}, "%cpu1true"},
		// errors
		{"extra", []interface{}{"a", "b", "c"}, "extra%!(EXTRA)%!(EXTRA)%!(EXTRA)"},
		{"missing %s", nil, "missing (MISSING)"},
		{"bad verb %Q", nil, "bad verb %!(NOVERB)"},
		{"not bool %t", []interface{}{"yes"}, "not bool %!(WRONGTYPE)"},
		{"not int %d", []interface{}{"four"}, "not int %!(WRONGTYPE)"},
		{"not string %s", []interface{}{4}, "not string %!(WRONGTYPE)"},
	}

	var buf bytes.Buffer
	SetOutputSink(&buf)

	for specIndex, spec := range specs {
		buf.Reset()
		Printf(spec.format, spec.args...)

		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] expected to get\n%q\ngot:\n%q", specIndex, spec.exp, got)
		}
	}
}

func TestPrintfToRingBuffer(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	exp := "[kmain] early output"
	Printf(exp)

	var buf bytes.Buffer
	SetOutputSink(&buf)

	if got := buf.String(); got != exp {
		t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
	}
}

func TestFprintf(t *testing.T) {
	var buf bytes.Buffer

	exp := "[vmm] root 1 flushed"
	Fprintf(&buf, "[vmm] root %d flushed", 1)

	if got := buf.String(); got != exp {
		t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
	}
}

func TestFprintfConcurrentLines(t *testing.T) {
	var (
		buf        bytes.Buffer
		wg         sync.WaitGroup
		numWorkers = 8
		numLines   = 50
	)

	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func(worker int) {
			defer wg.Done()
			for line := 0; line < numLines; line++ {
				Fprintf(&buf, "[cpu%d] line %3d\n", worker, line)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if exp, got := numWorkers*numLines, len(lines); got != exp {
		t.Fatalf("expected %d lines; got %d", exp, got)
	}

	for lineIndex, line := range lines {
		if !strings.HasPrefix(line, "[cpu") || len(line) != len("[cpu0] line   0") {
			t.Errorf("[line %d] unexpected interleaved output %q", lineIndex, line)
		}
	}
}

func TestGetOutputSink(t *testing.T) {
	defer SetOutputSink(nil)

	var buf bytes.Buffer
	SetOutputSink(&buf)

	if got := GetOutputSink(); got != &buf {
		t.Fatalf("expected GetOutputSink to return the attached sink; got %v", got)
	}
}
