package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ndnrtc/fetch-engine/internal/logger"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/engine"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/name"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/pipeline"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	logger.Init()
	if err := logger.SetLevel(cfg.logLevel); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", cfg.logLevel)
	}
	log := logger.Logger().With("component", "cli")

	econf, outputFile, err := buildEngineConfig(cfg)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if outputFile != nil {
		defer outputFile.Close()
	}

	transport, closeFace, err := newTransport(cfg.faceAddr)
	if err != nil {
		log.Error("failed to connect face", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeFace(); err != nil {
			log.Warn("face shutdown error", "error", err)
		}
	}()

	eng := engine.New(transport, *econf)
	eng.Start()
	log.Info("fetch started", "name", cfg.name, "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode := waitForOutcome(ctx, eng, log)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		eng.Stop()
		close(done)
	}()
	select {
	case <-done:
		log.Info("engine stopped cleanly")
	case <-shutdownCtx.Done():
		log.Error("forced exit after timeout")
	}

	if cfg.statsFile != "" {
		if err := writeStats(eng, cfg.statsFile); err != nil {
			log.Warn("failed to write stats file", "error", err)
		}
	}

	os.Exit(exitCode)
}

// waitForOutcome blocks until either the shutdown signal fires or the
// Pipeline-Control FSM settles into StateIdle after exhausting its
// rightmost/meta retry budget (spec.md §6's exit code 2, MetaUnavailable).
// It gives the FSM a brief grace period to leave StateIdle's initial value
// before treating a later return to it as a real failure.
func waitForOutcome(ctx context.Context, eng *engine.Engine, log interface {
	Info(string, ...any)
}) int {
	grace := time.NewTimer(2 * time.Second)
	defer grace.Stop()
	armed := false

	poll := time.NewTicker(200 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return 0
		case <-grace.C:
			armed = true
		case <-poll.C:
			if armed && eng.State() == pipeline.StateIdle {
				log.Info("meta unavailable: giving up after retry budget exhausted")
				return 2
			}
		}
	}
}

func buildEngineConfig(cfg *cliConfig) (*engine.Config, *os.File, error) {
	n, err := name.Parse(cfg.name)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing name: %w", err)
	}
	info, err := name.Extract(n)
	if err != nil {
		return nil, nil, fmt.Errorf("extracting namespace info: %w", err)
	}

	econf := &engine.Config{
		BasePrefix: info.BasePrefix,
		APIVersion: info.APIVersion,
		StreamType: info.StreamType,
		StreamName: info.StreamName,
		StreamTS:   info.StreamTS,
		ThreadName: info.ThreadName,

		TargetRate:   cfg.pbcRate,
		UseFEC:       cfg.useFEC,
		PipelineSize: cfg.ppSize,
		SampleStride: uint64(cfg.ppStep),
	}

	if cfg.policyFile != "" {
		checker, err := loadPolicy(cfg.policyFile)
		if err != nil {
			return nil, nil, err
		}
		econf.ManifestChecker = checker
	}

	var outputFile *os.File
	if cfg.outputFile != "" {
		f, err := os.Create(cfg.outputFile)
		if err != nil {
			return nil, nil, fmt.Errorf("creating output file: %w", err)
		}
		econf.Decoder = newWritingDecoder(engine.FECMergeDecoder{}, f)
		outputFile = f
	}

	return econf, outputFile, nil
}

func writeStats(eng *engine.Engine, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating stats file: %w", err)
	}
	defer f.Close()
	return eng.Stats().WriteCSV(f)
}
