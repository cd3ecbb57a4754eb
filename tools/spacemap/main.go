package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"nova/kernel/kfmt"
	"nova/kernel/kmain"
	"nova/kernel/mm"
	"os"
)

type options struct {
	cfg         kmain.Config
	output      string
	interactive bool
	ttyPath     string
	verbose     bool
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[spacemap] error: %s\n", err.Error())
	os.Exit(1)
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var (
		opts  = &options{cfg: kmain.DefaultConfig()}
		fs    = flag.NewFlagSet("spacemap", flag.ContinueOnError)
		cpus  = fs.Int("cpus", opts.cfg.CPUs, "the number of CPUs to bring up")
		ramMb = fs.Uint("ram", uint(opts.cfg.RAMSize/mm.Mb), "the amount of RAM in MiB")
		imgKb = fs.Uint("image", uint(opts.cfg.ImageSize/mm.Kb), "the size of the hypervisor image in KiB; the first half is mapped executable")
	)

	fs.SetOutput(stderr)
	fs.StringVar(&opts.output, "o", "spacemap.png", "a file to write the rendered layout to or - to output to STDOUT")
	fs.BoolVar(&opts.interactive, "i", false, "start an interactive address translation prompt instead of rendering")
	fs.StringVar(&opts.ttyPath, "tty", "/dev/tty", "the terminal device used by the interactive prompt")
	fs.BoolVar(&opts.verbose, "v", false, "print the boot log to STDERR")
	fs.Usage = func() {
		fmt.Fprint(stderr, "spacemap: boot the hypervisor core on a simulated machine and inspect its address spaces\n\n")
		fmt.Fprint(stderr, "Usage: spacemap [options]\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() != 0 {
		return nil, errors.New("unexpected arguments")
	}

	if *imgKb == 0 || *imgKb%8 != 0 {
		return nil, errors.New("image size must be a non-zero multiple of 8 KiB")
	}

	opts.cfg.CPUs = *cpus
	opts.cfg.RAMSize = mm.Size(*ramMb) * mm.Mb
	opts.cfg.ImageSize = mm.Size(*imgKb) * mm.Kb
	opts.cfg.ImageTextSize = opts.cfg.ImageSize / 2
	return opts, nil
}

func runTool() error {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}

	if opts.verbose {
		kfmt.SetOutputSink(os.Stderr)
	} else {
		kfmt.SetOutputSink(io.Discard)
	}

	sys, kErr := kmain.Boot(opts.cfg)
	if kErr != nil {
		return kErr
	}
	defer sys.Shutdown()

	if opts.interactive {
		return runInspector(sys, opts.ttyPath)
	}

	switch opts.output {
	case "-":
		return renderLayout(sys, os.Stdout)
	default:
		fOut, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer fOut.Close()

		return renderLayout(sys, fOut)
	}
}

func main() {
	if err := runTool(); err != nil {
		exit(err)
	}
}
