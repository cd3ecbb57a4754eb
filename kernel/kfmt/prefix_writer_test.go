package kfmt

import (
	"bytes"
	"errors"
	"testing"
)

func TestPrefixWriter(t *testing.T) {
	specs := []struct {
		input string
		exp   string
	}{
		{"", ""},
		{"\n", "[vmm] \n"},
		{"root 2 flushed", "[vmm] root 2 flushed"},
		{"root 2 flushed\n", "[vmm] root 2 flushed\n"},
		{
			"\nshare level 1\nshare level 2\nsync\ndone",
			"[vmm] \n[vmm] share level 1\n[vmm] share level 2\n[vmm] sync\n[vmm] done",
		},
	}

	var (
		buf bytes.Buffer
		w   = PrefixWriter{
			Sink:   &buf,
			Prefix: []byte("[vmm] "),
		}
	)

	for specIndex, spec := range specs {
		buf.Reset()
		w.bytesAfterPrefix = 0

		wrote, err := w.Write([]byte(spec.input))
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
		}

		if expLen := len(spec.input); expLen != wrote {
			t.Errorf("[spec %d] expected writer to write %d bytes; wrote %d", specIndex, expLen, wrote)
		}

		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] expected output:\n%q\ngot:\n%q", specIndex, spec.exp, got)
		}
	}
}

func TestPrefixWriterErrors(t *testing.T) {
	specs := []string{
		"root 2 flushed",
		"\nshare level 1\nshare level 2",
	}

	var (
		expErr = errors.New("sink closed")
		w      = PrefixWriter{
			Sink:   writerThatAlwaysErrors{expErr},
			Prefix: []byte("[vmm] "),
		}
	)

	for specIndex, spec := range specs {
		w.bytesAfterPrefix = 0
		_, err := w.Write([]byte(spec))
		if err != expErr {
			t.Errorf("[spec %d] expected error: %v; got %v", specIndex, expErr, err)
		}
	}
}

type writerThatAlwaysErrors struct {
	err error
}

func (w writerThatAlwaysErrors) Write(_ []byte) (int, error) {
	return 0, w.err
}

func TestNewCPUWriter(t *testing.T) {
	var buf bytes.Buffer

	w := NewCPUWriter(&buf, 3)
	Fprintf(w, "share %x\nready\n", uintptr(0x200000))

	exp := "[cpu3] share 200000\n[cpu3] ready\n"
	if got := buf.String(); got != exp {
		t.Fatalf("expected output:\n%q\ngot:\n%q", exp, got)
	}
}

func TestPrefixWriterDefaultSink(t *testing.T) {
	defer SetOutputSink(nil)

	var buf bytes.Buffer
	SetOutputSink(&buf)

	w := PrefixWriter{Prefix: []byte("> ")}
	Fprintf(&w, "line\n")

	if exp, got := "> line\n", buf.String(); got != exp {
		t.Fatalf("expected output %q; got %q", exp, got)
	}
}
