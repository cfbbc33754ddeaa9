package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

// version is injected at build time with -ldflags "-X main.version=...".
var version = "dev"

// cliConfig holds user-supplied flag values prior to translation into
// engine.Config, so main.go can validate and map (spec.md §6's CLI surface).
type cliConfig struct {
	name string

	ppSize  int
	ppStep  int
	pbcRate float64
	useFEC  bool

	policyFile string
	outputFile string
	statsFile  string
	logLevel   string

	faceAddr string

	showVersion bool
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("ndnrtc-fetch", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	fs.Usage = func() {
		fmt.Fprintln(os.Stdout, "usage: ndnrtc-fetch <name> [flags]")
		fs.PrintDefaults()
	}

	cfg := &cliConfig{}
	fs.IntVar(&cfg.ppSize, "pp-size", 0, "fixed pipeline size (0=auto from DRD)")
	fs.IntVar(&cfg.ppStep, "pp-step", 1, "sequence number stride")
	fs.Float64Var(&cfg.pbcRate, "pbc-rate", 0, "override producer sample rate (samples/sec; 0=derive from the sample period)")
	fs.BoolVar(&cfg.useFEC, "use-fec", false, "request and decode parity segments")
	fs.StringVar(&cfg.policyFile, "policy", "", "validation policy file (trust anchor); empty disables manifest signature checking")
	fs.StringVar(&cfg.outputFile, "output", "", "write decoded frame payloads to this file (empty=discard)")
	fs.StringVar(&cfg.statsFile, "stats", "", "write a final stats CSV snapshot to this file on exit")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: none|info|debug|trace")
	fs.StringVar(&cfg.faceAddr, "face", "unix:///run/nfd/nfd.sock", "forwarder face address (unix:// or tcp://)")
	fs.BoolVar(&cfg.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.showVersion {
		return cfg, nil
	}

	rest := fs.Args()
	if len(rest) != 1 {
		fs.Usage()
		return nil, errors.New("exactly one <name> argument is required")
	}
	cfg.name = rest[0]

	if cfg.ppSize < 0 {
		return nil, errors.New("pp-size must be >= 0")
	}
	if cfg.ppStep < 1 {
		return nil, errors.New("pp-step must be >= 1")
	}
	if cfg.pbcRate < 0 {
		return nil, errors.New("pbc-rate must be >= 0")
	}

	switch cfg.logLevel {
	case "none", "info", "debug", "trace":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}

	return cfg, nil
}
