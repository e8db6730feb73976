package runtimeinit

import (
	"context"
	"fmt"
	"time"

	"screen-ocr/src/clipboard"
	"screen-ocr/src/config"
	"screen-ocr/src/extract"
	"screen-ocr/src/logutil"
	"screen-ocr/src/notification"
	"screen-ocr/src/ocr"
	"screen-ocr/src/output"
)

const engineCheckTimeout = 10 * time.Second

type Options struct {
	LoadOptions config.LoadOptions
	// Verbose mirrors logs to stderr.
	Verbose bool
	// ShowBlockingEngineError reports a failed engine check to the user.
	ShowBlockingEngineError bool
	// NewEngine overrides engine construction, mainly for tests.
	NewEngine func(cfg *config.Config) (ocr.Engine, error)
}

// Runtime is everything the entry points need after startup.
type Runtime struct {
	Config   *config.Config
	Engine   ocr.Engine
	Pipeline *extract.Pipeline
	Sink     *output.Sink
	// Clipboard is false when the system clipboard could not be initialized.
	Clipboard bool
}

// ExtractOptions returns the per-request extraction options from config.
func (r *Runtime) ExtractOptions() extract.Options {
	opts := extract.Options{Language: r.Config.Language}
	if r.Config.PDFFilter {
		opts.Filter = true
		opts.MinLineLength = r.Config.PDFMinLineLength
	}
	return opts
}

// Bootstrap loads configuration, sets up logging, checks the OCR engine
// (fatal) and initializes the clipboard (soft).
func Bootstrap(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logutil.Setup(logutil.Options{
		FilePath:          cfg.LogFile,
		EnableFileLogging: cfg.EnableFileLogging,
		Level:             cfg.LogLevel,
		Verbose:           opts.Verbose,
	}); err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	log := logutil.Logger()

	newEngine := opts.NewEngine
	if newEngine == nil {
		newEngine = ocr.New
	}
	engine, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	checkCtx, cancel := context.WithTimeout(ctx, engineCheckTimeout)
	defer cancel()
	if err := engine.Check(checkCtx); err != nil {
		if opts.ShowBlockingEngineError {
			notification.ShowBlockingError("OCR engine unavailable", fmt.Sprintf("Startup check failed: %v", err))
		}
		return nil, fmt.Errorf("startup check failed: %w", err)
	}
	log.Infof("OCR engine %s ready", engine.Name())

	rt := &Runtime{
		Config:   cfg,
		Engine:   engine,
		Pipeline: extract.NewPipeline(engine, extract.NewPdftoppm(), cfg.PDFWorkers),
	}

	sinkOpts := output.Options{}
	if err := clipboard.Init(); err != nil {
		log.Warnf("Clipboard unavailable, results will not be copied: %v", err)
	} else {
		rt.Clipboard = true
		sinkOpts.Clipboard = clipboard.System{}
	}
	if cfg.SaveOutput {
		sinkOpts.FilePath = cfg.OutputPath
	}
	rt.Sink = output.New(sinkOpts)

	log.WithField("engine", engine.Name()).
		WithField("lang", cfg.Language).
		WithField("hotkey", cfg.Hotkey).
		Info("Screen OCR initialized")
	return rt, nil
}
