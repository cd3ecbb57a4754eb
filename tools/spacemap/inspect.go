package main

import (
	"fmt"
	"io"
	"nova/kernel/cpu"
	"nova/kernel/kmain"
	"nova/kernel/mm/vmm"
	"strconv"
	"strings"

	"github.com/mattn/go-tty"
)

// inspector translates addresses through the local root of a selected CPU.
type inspector struct {
	sys *kmain.System
	cpu cpu.ID
	out io.Writer
}

func (in *inspector) prompt() string {
	return fmt.Sprintf("cpu%d> ", in.cpu)
}

// execLine runs a single command and reports whether the prompt should exit.
func (in *inspector) execLine(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "q", "quit":
		return true
	case "help":
		fmt.Fprint(in.out, "<hex address>  translate an address\ncpu <n>        switch to cpu n\nmaps           list the mappings of the current cpu\nq              exit\n")
	case "cpu":
		if len(fields) != 2 {
			fmt.Fprint(in.out, "usage: cpu <n>\n")
			break
		}

		id, err := strconv.ParseUint(fields[1], 10, 16)
		if err != nil || int(id) >= in.sys.Config.CPUs {
			fmt.Fprintf(in.out, "invalid cpu %q\n", fields[1])
			break
		}
		in.cpu = cpu.ID(id)
	case "maps":
		in.sys.Kernel().Local(in.cpu).Visit(func(m vmm.Mapping) bool {
			fmt.Fprintf(in.out, "0x%016x-0x%016x -> 0x%x %s %s\n", m.Virt, m.Virt+m.Size-1, m.Phys, m.Perm, m.Attr)
			return true
		})
	default:
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(fields[0]), "0x"), 16, 64)
		if err != nil {
			fmt.Fprintf(in.out, "invalid address %q\n", fields[0])
			break
		}

		t, kErr := in.sys.Kernel().Local(in.cpu).Lookup(uintptr(v))
		if kErr != nil {
			fmt.Fprint(in.out, "unmapped\n")
			break
		}
		fmt.Fprintf(in.out, "0x%x -> 0x%x %s %s\n", v, t.Phys, t.Perm, t.Attr)
	}

	return false
}

// runInspector reads commands from the terminal at ttyPath until the user
// exits or the terminal is closed.
func runInspector(sys *kmain.System, ttyPath string) error {
	t, err := tty.OpenDevice(ttyPath)
	if err != nil {
		return err
	}
	defer t.Close()

	in := &inspector{sys: sys, out: t.Output()}
	for {
		fmt.Fprint(in.out, in.prompt())

		line, err := t.ReadString()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		if in.execLine(line) {
			return nil
		}
	}
}
