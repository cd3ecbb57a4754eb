package main

import (
	"bytes"
	"flag"
	"nova/kernel/kfmt"
	"nova/kernel/kmain"
	"nova/kernel/mm"
	"testing"
)

// bootTestSystem boots a small machine with the given number of CPUs.
func bootTestSystem(t *testing.T, cpus int) *kmain.System {
	t.Helper()

	kfmt.SetOutputSink(&bytes.Buffer{})
	t.Cleanup(func() { kfmt.SetOutputSink(nil) })

	cfg := kmain.DefaultConfig()
	cfg.CPUs = cpus
	cfg.RAMSize = 8 * mm.Mb
	cfg.ImageOffset = 0x10_0000
	cfg.ImageSize = 64 * mm.Kb
	cfg.ImageTextSize = 32 * mm.Kb
	cfg.Selectors = 16

	sys, err := kmain.Boot(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sys.Shutdown() })
	return sys
}

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer

	opts, err := parseFlags([]string{"-cpus", "2", "-ram", "16", "-image", "256", "-o", "-", "-i", "-tty", "/dev/ttyS0"}, &stderr)
	if err != nil {
		t.Fatal(err)
	}

	if opts.cfg.CPUs != 2 || opts.cfg.RAMSize != 16*mm.Mb || opts.cfg.ImageSize != 256*mm.Kb || opts.cfg.ImageTextSize != 128*mm.Kb {
		t.Errorf("unexpected config: %+v", opts.cfg)
	}
	if opts.output != "-" || !opts.interactive || opts.ttyPath != "/dev/ttyS0" {
		t.Errorf("unexpected options: %+v", opts)
	}

	defaults, err := parseFlags(nil, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	if defaults.cfg != kmain.DefaultConfig() || defaults.output != "spacemap.png" || defaults.interactive {
		t.Errorf("unexpected default options: %+v", defaults)
	}

	specs := [][]string{
		{"-image", "0"},
		{"-image", "12"},
		{"extra"},
		{"-bogus"},
	}
	for specIndex, args := range specs {
		if _, err := parseFlags(args, &stderr); err == nil {
			t.Errorf("[spec %d] expected an error for args %v", specIndex, args)
		}
	}

	if _, err := parseFlags([]string{"-h"}, &stderr); err != flag.ErrHelp {
		t.Errorf("expected flag.ErrHelp; got %v", err)
	}
}
